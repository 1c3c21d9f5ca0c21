package main

import (
	"fmt"
	"log/slog"
	"slices"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/wildstyl3r/pandel/internal/config"
	"github.com/wildstyl3r/pandel/internal/detector"
	"github.com/wildstyl3r/pandel/internal/geometry"
	"github.com/wildstyl3r/pandel/internal/ice"
	"github.com/wildstyl3r/pandel/internal/likelihood"
	"github.com/wildstyl3r/pandel/internal/utils"
)

type scales struct {
	length, time, energy float64
}

func newScales(units []string) scales {
	return scales{
		length: config.Canonical(1, config.LengthUnit, units, true),
		time:   config.Canonical(1, config.TimeUnit, units, true),
		energy: config.Canonical(1, config.EnergyUnit, units, true),
	}
}

// loadGeometry reads the sensor table in input units; sensors without a
// jitter column get defaultJitter [ns].
func loadGeometry(filename string, s scales, defaultJitter float64) (*detector.Configuration, error) {
	raw, err := detector.ReadGeometry(filename, defaultJitter/s.time)
	if err != nil {
		return nil, err
	}
	sensors := slices.Clone(raw.Sensors())
	for i := range sensors {
		sensors[i].Position = r3.Scale(s.length, sensors[i].Position)
		sensors[i].Jitter *= s.time
	}
	return detector.NewConfiguration(sensors, defaultJitter)
}

func loadPulses(filename string, s scales) (detector.Pulses, error) {
	pulses, err := detector.ReadPulses(filename)
	if err != nil {
		return nil, err
	}
	for _, event := range pulses {
		for _, hits := range event {
			for i := range hits {
				hits[i].Time *= s.time
				hits[i].Width *= s.time
			}
		}
	}
	return pulses, nil
}

// seed is one row of the seeds table in canonical units.
type seed struct {
	kind       geometry.Kind
	pos        r3.Vec
	theta, phi float64
	energy, t0 float64
}

func (sd seed) hypothesis(kind geometry.Kind) (geometry.Hypothesis, error) {
	if kind != sd.kind {
		slog.Debug("seed kind replaced by model hypothesis", "seed", sd.kind, "model", kind)
	}
	return geometry.NewFromAngles(kind, sd.pos, sd.theta, sd.phi, sd.energy, sd.t0)
}

// loadSeeds reads rows of "event kind x y z theta phi energy t0". An event
// may list a second seed for the coincident-track likelihood.
func loadSeeds(filename string, s scales) (map[int][]seed, error) {
	rows, err := utils.ReadFloatRows(filename, 9, 9)
	if err != nil {
		return nil, fmt.Errorf("seeds %s: %w", filename, err)
	}
	seeds := map[int][]seed{}
	for _, row := range rows {
		event := int(row[0])
		if float64(event) != row[0] {
			return nil, fmt.Errorf("seeds %s: non-integer event id %v", filename, row[0])
		}
		kind := geometry.Kind(row[1])
		if float64(kind) != row[1] || kind < geometry.InfiniteTrack || kind > geometry.DirectionalCascade {
			return nil, fmt.Errorf("seeds %s: event %d: unknown hypothesis kind %v", filename, event, row[1])
		}
		if len(seeds[event]) == 2 {
			return nil, fmt.Errorf("seeds %s: event %d has more than two seeds", filename, event)
		}
		seeds[event] = append(seeds[event], seed{
			kind:   kind,
			pos:    r3.Scale(s.length, r3.Vec{X: row[2], Y: row[3], Z: row[4]}),
			theta:  row[5],
			phi:    row[6],
			energy: row[7] * s.energy,
			t0:     row[8] * s.time,
		})
	}
	return seeds, nil
}

func iceModel(p *config.LikelihoodParameters) (ice.Model, error) {
	if p.IceTable == "" {
		return ice.Preset(p.IcePreset)
	}
	base, err := ice.PresetProperties(ice.DefaultPreset)
	if err != nil {
		return nil, err
	}
	return ice.ReadLayered(p.IceTable, base)
}

// loadPriors reads the zenith weight table of every model that names one.
func loadPriors(models map[string]config.LikelihoodParameters) (likelihood.Priors, error) {
	priors := likelihood.Priors{}
	for _, p := range models {
		if p.ZenithWeight == "" {
			continue
		}
		if _, some := priors[p.ZenithWeight]; some {
			continue
		}
		zw, err := likelihood.ReadZenithWeight(p.ZenithTable)
		if err != nil {
			return nil, fmt.Errorf("zenith weight %s: %w", p.ZenithWeight, err)
		}
		priors[p.ZenithWeight] = zw
	}
	return priors, nil
}
