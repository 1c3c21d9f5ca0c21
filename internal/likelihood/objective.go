package likelihood

import (
	"errors"
	"math"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/wildstyl3r/pandel/internal/detector"
	"github.com/wildstyl3r/pandel/internal/geometry"
)

var ErrNoGeometry = errors.New("likelihood: no detector geometry set")

// Objective is the negative event log-likelihood over the parameters
// (x, y, z, theta, phi). Energy, start time and kind come from the seed.
type Objective struct {
	event     *Event
	prior     Prior
	cfg       *detector.Configuration
	chargeCap float64
	response  *detector.Response
	seed      geometry.Hypothesis
}

func NewObjective(event *Event, prior Prior, chargeCap float64) *Objective {
	return &Objective{event: event, prior: prior, chargeCap: chargeCap}
}

func (o *Objective) SetGeometry(cfg *detector.Configuration) {
	o.cfg = cfg
	o.response = nil
}

// SetEvent binds the pulses of the next event.
func (o *Objective) SetEvent(pulses map[detector.Key][]detector.Hit) error {
	if o.cfg == nil {
		return ErrNoGeometry
	}
	o.response = detector.NewResponse(o.cfg, pulses, o.chargeCap)
	return nil
}

func (o *Objective) Response() *detector.Response {
	return o.response
}

func (o *Objective) SetSeed(h geometry.Hypothesis) {
	o.seed = h
}

func (o *Objective) Params(h geometry.Hypothesis) []float64 {
	pos := h.Position()
	return []float64{pos.X, pos.Y, pos.Z, h.Theta(), h.Phi()}
}

func (o *Objective) Hypothesis(params []float64) (geometry.Hypothesis, error) {
	pos := r3.Vec{X: params[0], Y: params[1], Z: params[2]}
	return geometry.NewFromAngles(o.seed.Kind(), pos, params[3], params[4], o.seed.Energy(), o.seed.T0())
}

// LogLikelihood is the event log-likelihood of h plus the prior, if any.
func (o *Objective) LogLikelihood(h geometry.Hypothesis) float64 {
	if o.response == nil {
		return math.NaN()
	}
	v := o.event.LogLikelihood(o.response, h)
	if o.prior != nil {
		v += o.prior.LogLikelihood(h)
	}
	return v
}

// Value is +Inf where the parameters give no valid hypothesis or the
// likelihood is not a number.
func (o *Objective) Value(params []float64) float64 {
	h, err := o.Hypothesis(params)
	if err != nil {
		return math.Inf(1)
	}
	v := -o.LogLikelihood(h)
	if math.IsNaN(v) {
		return math.Inf(1)
	}
	return v
}
