package likelihood

import (
	"fmt"
	"log/slog"
	"math"

	"github.com/wildstyl3r/pandel/internal/detector"
	"github.com/wildstyl3r/pandel/internal/geometry"
	"github.com/wildstyl3r/pandel/internal/special"
	"github.com/wildstyl3r/pandel/internal/utils"
)

// Event combines the sensors of a detector response. Each sensor adds the
// constant noise probability to its likelihood, which keeps sensors without
// expected signal from zeroing the event.
type Event struct {
	comb  *Combinator
	noise float64
}

// NewEvent requires a positive noise probability, which keeps every sensor
// term positive.
func NewEvent(comb *Combinator, noise float64) (*Event, error) {
	if comb == nil {
		return nil, fmt.Errorf("%w: no combinator", ErrBadOption)
	}
	if !(noise > 0) || math.IsInf(noise, 1) {
		return nil, fmt.Errorf("%w: %v", ErrNoiseRate, noise)
	}
	return &Event{comb: comb, noise: noise}, nil
}

func (e *Event) Combinator() *Combinator {
	return e.comb
}

func (e *Event) Noise() float64 {
	return e.noise
}

func (e *Event) sensorTerm(hs *detector.HitSensor, h geometry.Hypothesis) float64 {
	v := e.noise + e.comb.Likelihood(hs, h)
	if math.IsNaN(v) || math.IsInf(v, 0) || v <= 0 {
		panic(fmt.Sprintf("likelihood: %v contribution %v on sensor %s for %v",
			e.comb.Variant(), v, hs.Sensor.Key.Label(), h))
	}
	return v
}

// LogLikelihood is NaN for an empty response.
func (e *Event) LogLikelihood(r *detector.Response, h geometry.Hypothesis) float64 {
	if r.Len() == 0 {
		slog.Warn("log-likelihood of an empty detector response")
		return math.NaN()
	}
	sum := special.NewFastLogSum()
	for i := range r.Len() {
		sum.FastAdd(e.sensorTerm(r.Sensor(i), h))
	}
	return sum.LogSum()
}

// Likelihood multiplies the sensor terms directly and may under- or overflow
// on large responses.
func (e *Event) Likelihood(r *detector.Response, h geometry.Hypothesis) float64 {
	if r.Len() == 0 {
		slog.Warn("likelihood of an empty detector response")
		return math.NaN()
	}
	p := 1.
	for i := range r.Len() {
		p *= e.sensorTerm(r.Sensor(i), h)
	}
	return p
}

func (e *Event) IntLikelihood(r *detector.Response, h geometry.Hypothesis) float64 {
	if r.Len() == 0 {
		slog.Warn("integrated likelihood of an empty detector response")
		return math.NaN()
	}
	p := 1.
	for i := range r.Len() {
		p *= e.comb.IntLikelihood(r.Sensor(i), h)
	}
	return p
}

// Contribution is the share of one sensor in the event log-likelihood.
type Contribution struct {
	Key           detector.Key
	Hits          int
	Charge        float64
	FirstTime     float64
	LogLikelihood float64
}

func (e *Event) Contributions(r *detector.Response, h geometry.Hypothesis) []Contribution {
	out := make([]Contribution, r.Len())
	for i := range out {
		hs := r.Sensor(i)
		out[i] = Contribution{
			Key:           hs.Sensor.Key,
			Hits:          hs.Len(),
			Charge:        hs.Charge(),
			FirstTime:     hs.First().Time,
			LogLikelihood: math.Log(e.sensorTerm(hs, h)),
		}
	}
	return out
}

// TotalLogLikelihood sums contributions; it agrees with LogLikelihood up to rounding.
func TotalLogLikelihood(cs []Contribution) float64 {
	logs := make([]float64, len(cs))
	for i := range cs {
		logs[i] = cs[i].LogLikelihood
	}
	return utils.SumSlice(logs)
}
