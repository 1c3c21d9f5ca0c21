package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"
	"runtime"
	"slices"
	"sync"
	"time"

	"github.com/wildstyl3r/pandel/internal/config"
	"github.com/wildstyl3r/pandel/internal/detector"
	"github.com/wildstyl3r/pandel/internal/ice"
	"github.com/wildstyl3r/pandel/internal/likelihood"
	"github.com/wildstyl3r/pandel/internal/logging"
	"github.com/wildstyl3r/pandel/internal/report"
)

func main() {
	startTime := time.Now()
	configFileName := flag.String("input", "config", "configuration file, .toml extension may be omitted")
	threads := flag.Int("threads", runtime.NumCPU(), "number of worker goroutines per model")
	verbose := flag.Bool("v", false, "verbose output")
	fitAll := flag.Bool("fit", false, "fit every event starting from its seed")
	dataFlags := report.NewDataFlags(flag.CommandLine)
	flag.Parse()

	slog.SetDefault(logging.New(os.Stderr, *verbose))

	if err := run(*configFileName, max(*threads, 1), *fitAll, dataFlags); err != nil {
		slog.Error(err.Error())
		os.Exit(1)
	}
	slog.Info(fmt.Sprintf("Elapsed time: %v", time.Since(startTime)))
}

type runner struct {
	cfg       *config.Config
	scales    scales
	seeds     map[int][]seed
	pulses    map[string]detector.Pulses
	geometry  map[float64]*detector.Configuration
	ice       map[string]ice.Model
	priors    likelihood.Priors
	threads   int
	fitAll    bool
	dataFlags report.DataFlags
}

func run(configFileName string, threads int, fitAll bool, dataFlags report.DataFlags) error {
	cfg, err := config.Load(configFileName)
	if err != nil {
		return fmt.Errorf("unable to load config: %w", err)
	}
	models := make(map[string]config.LikelihoodParameters, len(cfg.Models))
	for _, name := range cfg.ModelNames() {
		if models[name], err = cfg.Model(name); err != nil {
			return err
		}
	}

	rn := runner{
		cfg:       cfg,
		scales:    newScales(cfg.InputUnits),
		pulses:    map[string]detector.Pulses{},
		geometry:  map[float64]*detector.Configuration{},
		ice:       map[string]ice.Model{},
		threads:   threads,
		fitAll:    fitAll,
		dataFlags: dataFlags,
	}
	if rn.priors, err = loadPriors(models); err != nil {
		return err
	}
	if rn.seeds, err = loadSeeds(cfg.Seeds, rn.scales); err != nil {
		return err
	}
	if cfg.OutputDir != "" {
		if err := os.MkdirAll(cfg.OutputDir, 0750); err != nil {
			return err
		}
	}
	rn.dataFlags.SetOutputPath(cfg.OutputDir)

	for _, name := range cfg.ModelNames() {
		p := models[name]
		if err := rn.model(name, &p); err != nil {
			return fmt.Errorf("model %s: %w", name, err)
		}
	}
	return nil
}

// eventPulses returns the pulses of the model's pulse map, read once per file.
func (rn *runner) eventPulses(p *config.LikelihoodParameters) (detector.Pulses, error) {
	file, ok := rn.cfg.PulseFile(p.PulseMapName)
	if !ok {
		slog.Warn("pulse map not found, every event will be empty", "map", p.PulseMapName)
		return detector.Pulses{}, nil
	}
	if pulses, some := rn.pulses[file]; some {
		return pulses, nil
	}
	pulses, err := loadPulses(file, rn.scales)
	if err != nil {
		return nil, err
	}
	rn.pulses[file] = pulses
	return pulses, nil
}

func (rn *runner) sensors(p *config.LikelihoodParameters) (*detector.Configuration, error) {
	if geo, some := rn.geometry[p.JitterTime]; some {
		return geo, nil
	}
	geo, err := loadGeometry(rn.cfg.Geometry, rn.scales, p.JitterTime)
	if err != nil {
		return nil, err
	}
	rn.geometry[p.JitterTime] = geo
	return geo, nil
}

// medium returns the ice model of p, read once per preset or table file
// and shared by every worker of every model using it.
func (rn *runner) medium(p *config.LikelihoodParameters) (ice.Model, error) {
	key := p.IcePreset
	if p.IceTable != "" {
		key = "table:" + p.IceTable
	}
	if model, some := rn.ice[key]; some {
		return model, nil
	}
	model, err := iceModel(p)
	if err != nil {
		return nil, err
	}
	rn.ice[key] = model
	return model, nil
}

func (rn *runner) model(name string, p *config.LikelihoodParameters) error {
	geo, err := rn.sensors(p)
	if err != nil {
		return err
	}
	pulses, err := rn.eventPulses(p)
	if err != nil {
		return err
	}
	model, err := rn.medium(p)
	if err != nil {
		return err
	}
	var prior likelihood.Prior
	if p.ZenithWeight != "" {
		if prior, err = rn.priors.Lookup(p.ZenithWeight); err != nil {
			return err
		}
	}

	workers := make([]*worker, rn.threads)
	for i := range workers {
		if workers[i], err = newWorker(p, model, geo, prior); err != nil {
			return err
		}
		workers[i].fit = p.Fit || rn.fitAll
		workers[i].contributions = rn.dataFlags.Enabled("llh")
		workers[i].scan = rn.dataFlags.Enabled("pdf") || rn.dataFlags.Enabled("modes")
	}

	ids := make([]int, 0, len(rn.seeds))
	for id := range rn.seeds {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	for id := range pulses {
		if _, some := rn.seeds[id]; !some {
			slog.Warn("event without seed skipped", "event", id)
		}
	}

	jobs := make(chan job)
	dataflow := make(chan report.Record)
	var wg sync.WaitGroup
	for _, w := range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := range jobs {
				dataflow <- w.process(j)
			}
		}()
	}
	go func() {
		for _, id := range ids {
			jobs <- job{id: id, pulses: pulses[id], seeds: rn.seeds[id]}
		}
		close(jobs)
	}()
	// chan killer
	go func() {
		wg.Wait()
		close(dataflow)
	}()

	extractor := report.NewExtractor(p)
	counter := 0
	fmt.Fprintf(os.Stderr, "\r%s done:[0/%d]", name, len(ids))
	for rec := range dataflow {
		extractor.Add(rec)
		counter++
		fmt.Fprintf(os.Stderr, "\r%s done:[%d/%d]", name, counter, len(ids))
	}
	fmt.Fprintln(os.Stderr)

	total, failed := extractor.TotalLogLikelihood()
	mean, std := extractor.Spread()
	slog.Info("model done", "model", name, "events", counter, "failed", failed, "llh", total, "mean", mean, "std", std)
	return extractor.Save(name, rn.dataFlags)
}
