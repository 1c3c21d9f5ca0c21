package main

import (
	"fmt"
	"log/slog"
	"math"

	"github.com/wildstyl3r/pandel/internal/config"
	"github.com/wildstyl3r/pandel/internal/detector"
	"github.com/wildstyl3r/pandel/internal/fit"
	"github.com/wildstyl3r/pandel/internal/geometry"
	"github.com/wildstyl3r/pandel/internal/ice"
	"github.com/wildstyl3r/pandel/internal/likelihood"
	"github.com/wildstyl3r/pandel/internal/pep"
	"github.com/wildstyl3r/pandel/internal/report"
)

// worker owns its density, combinators and objective; the ice model, the
// detector geometry and the prior are built once per model and shared.
type worker struct {
	params    *config.LikelihoodParameters
	pdf       *pep.PEP
	event     *likelihood.Event
	objective *likelihood.Objective
	double    *likelihood.Double
	minimizer fit.Minimizer

	fit           bool
	contributions bool
	scan          bool
}

type job struct {
	id     int
	pulses map[detector.Key][]detector.Hit
	seeds  []seed
}

func newWorker(p *config.LikelihoodParameters, model ice.Model, geo *detector.Configuration, prior likelihood.Prior) (*worker, error) {
	density, err := pep.New(p.PDFKind(), model,
		pep.WithStrategy(p.Strategy()),
		pep.WithMinDistance(p.MinDistance),
		pep.WithMaxPE(p.MaxPEFromNoHit),
	)
	if err != nil {
		return nil, err
	}
	opts := []likelihood.Option{likelihood.WithBoxTolerance(p.MPEBoxTolerance)}
	if p.MPETimingError > 0 {
		opts = append(opts, likelihood.WithTimingError(p.MPETimingError))
	}
	comb, err := likelihood.NewCombinator(p.Variant(), density, opts...)
	if err != nil {
		return nil, err
	}
	event, err := likelihood.NewEvent(comb, p.NoiseRate)
	if err != nil {
		return nil, err
	}
	w := worker{
		params:    p,
		pdf:       density,
		event:     event,
		objective: likelihood.NewObjective(event, prior, p.ChargeCap),
		minimizer: fit.NewNelderMead(),
	}
	w.objective.SetGeometry(geo)
	if mode, some := p.DoubleMode(); some {
		if w.double, err = likelihood.NewDouble(mode, density, p.NoiseRate, prior); err != nil {
			return nil, err
		}
	}
	return &w, nil
}

// process never panics: a failing event is logged and reported with a NaN
// log-likelihood.
func (w *worker) process(j job) (rec report.Record) {
	rec = report.Record{Event: j.id, LogLikelihood: math.NaN(), DoubleLogLikelihood: math.NaN()}
	defer func() {
		if r := recover(); r != nil {
			slog.Error(fmt.Sprint(r), "event", j.id)
			rec.LogLikelihood = math.NaN()
		}
	}()

	hypotheses := make([]geometry.Hypothesis, len(j.seeds))
	for i, sd := range j.seeds {
		h, err := sd.hypothesis(w.params.HypothesisKind())
		if err != nil {
			slog.Error("bad seed: "+err.Error(), "event", j.id)
			return rec
		}
		hypotheses[i] = h
	}
	rec.Best = hypotheses[0]
	w.objective.SetSeed(rec.Best)
	if err := w.objective.SetEvent(j.pulses); err != nil {
		slog.Error(err.Error(), "event", j.id)
		return rec
	}
	r := w.objective.Response()
	rec.Sensors = r.Len()
	rec.Charge = r.TotalCharge()
	if r.Len() == 0 {
		slog.Warn("no pulses", "event", j.id)
		return rec
	}

	if w.fit {
		best, res, err := fit.Hypothesis(w.objective, w.minimizer, rec.Best)
		rec.Fitted = true
		rec.Converged = res.Converged
		rec.Evaluations = res.Evaluations
		if err != nil {
			slog.Warn("fit failed: "+err.Error(), "event", j.id)
		} else {
			rec.Best = best
		}
		if !rec.Converged {
			slog.Debug("fit did not converge", "event", j.id, "evaluations", res.Evaluations)
		}
	}
	rec.LogLikelihood = w.objective.LogLikelihood(rec.Best)

	if w.double != nil {
		if len(hypotheses) > 1 {
			rec.DoubleLogLikelihood = w.double.LogLikelihood(r, rec.Best, hypotheses[1])
		} else {
			rec.DoubleLogLikelihood = w.double.SingleLogLikelihood(r, rec.Best)
		}
	}
	if w.contributions {
		rec.Contributions = w.event.Contributions(r, rec.Best)
	}
	if w.scan {
		sc, err := report.NewScan(w.pdf, rec.Best, report.Brightest(r))
		if err != nil {
			slog.Warn(err.Error(), "event", j.id)
		} else {
			rec.Scan = sc
		}
	}
	slog.Debug("event done", "event", j.id, "llh", rec.LogLikelihood)
	return rec
}
