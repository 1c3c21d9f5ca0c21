package likelihood

import (
	"fmt"
	"math"
	"strings"

	"github.com/wildstyl3r/pandel/internal/detector"
	"github.com/wildstyl3r/pandel/internal/geometry"
	"github.com/wildstyl3r/pandel/internal/pep"
)

// Mode selects how the double combinator treats the hits of a sensor.
type Mode int

const (
	DoubleSPE Mode = iota
	DoubleMPE
)

var modeNames = []string{"SPE", "MPE"}

func (m Mode) String() string {
	if m < 0 || int(m) >= len(modeNames) {
		return fmt.Sprintf("Mode(%d)", int(m))
	}
	return modeNames[m]
}

func ParseMode(name string) (Mode, error) {
	for i := range modeNames {
		if strings.EqualFold(name, modeNames[i]) {
			return Mode(i), nil
		}
	}
	return 0, fmt.Errorf("%w: double mode %q", ErrUnknownVariant, name)
}

// Double is the likelihood of two coincident emitters, each sensor seeing the
// mixture of the two densities weighted by their expected photoelectrons.
type Double struct {
	mode     Mode
	pdf      pep.Provider
	noise    float64
	logNoise float64
	prior    Prior
}

// NewDouble takes an optional prior, added once per hypothesis.
func NewDouble(mode Mode, pdf pep.Provider, noise float64, prior Prior) (*Double, error) {
	switch {
	case mode < DoubleSPE || mode > DoubleMPE:
		return nil, fmt.Errorf("%w: double mode %d", ErrUnknownVariant, int(mode))
	case pdf == nil:
		return nil, fmt.Errorf("%w: no density", ErrBadOption)
	case !(noise > 0) || math.IsInf(noise, 1):
		return nil, fmt.Errorf("%w: %v", ErrNoiseRate, noise)
	}
	return &Double{mode: mode, pdf: pdf, noise: noise, logNoise: math.Log(noise), prior: prior}, nil
}

type source struct {
	pt pep.Point
	n  float64
}

func (d *Double) source(h geometry.Hypothesis, s *detector.Sensor) source {
	pt, err := d.pdf.Prepare(h, s)
	if err != nil {
		return source{}
	}
	return source{pt: pt, n: d.pdf.ExpectedPE(pt)}
}

func (d *Double) mixture(srcs []source, total, t float64) (pdf, cdf float64) {
	for _, s := range srcs {
		if s.n == 0 {
			continue
		}
		pdf += s.n * d.pdf.Pdf(s.pt, t)
		cdf += s.n * d.pdf.Cdf(s.pt, t)
	}
	return pdf / total, cdf / total
}

func (d *Double) sensor(hs *detector.HitSensor, srcs []source) float64 {
	if hs.Len() == 0 {
		panic("likelihood: empty hit sensor reached the double combinator")
	}
	var total float64
	for _, s := range srcs {
		total += s.n
	}
	if total == 0 {
		if d.mode == DoubleSPE {
			return float64(hs.Len()) * d.logNoise
		}
		return d.logNoise
	}
	if d.mode == DoubleMPE {
		t := hs.First().Time
		pdf, cdf := d.mixture(srcs, total, t)
		return math.Log(d.noise + firstOfN(math.Round(hs.Charge()), pdf, cdf))
	}
	var sum float64
	for _, hit := range hs.Hits {
		pdf, _ := d.mixture(srcs, total, hit.Time)
		sum += math.Log(d.noise + pdf)
	}
	return sum
}

func (d *Double) logLikelihood(r *detector.Response, hs ...geometry.Hypothesis) float64 {
	if r.Len() == 0 {
		return math.NaN()
	}
	srcs := make([]source, len(hs))
	var sum float64
	for i := range r.Len() {
		sensor := r.Sensor(i)
		for j, h := range hs {
			srcs[j] = d.source(h, sensor.Sensor)
		}
		v := d.sensor(sensor, srcs)
		if math.IsNaN(v) || math.IsInf(v, 0) {
			panic(fmt.Sprintf("likelihood: double %v contribution %v on sensor %s", d.mode, v, sensor.Sensor.Key.Label()))
		}
		sum += v
	}
	if d.prior != nil {
		for _, h := range hs {
			sum += d.prior.LogLikelihood(h)
		}
	}
	return sum
}

// LogLikelihood of two coincident emitters; NaN for an empty response.
func (d *Double) LogLikelihood(r *detector.Response, h1, h2 geometry.Hypothesis) float64 {
	return d.logLikelihood(r, h1, h2)
}

// SingleLogLikelihood treats the response as coming from h alone with the
// same mixture rules.
func (d *Double) SingleLogLikelihood(r *detector.Response, h geometry.Hypothesis) float64 {
	return d.logLikelihood(r, h)
}
