// Package likelihood turns photon arrival densities into per-sensor and
// per-event likelihoods of an emission hypothesis.
package likelihood

import (
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strings"

	"github.com/wildstyl3r/pandel/internal/detector"
	"github.com/wildstyl3r/pandel/internal/geometry"
	"github.com/wildstyl3r/pandel/internal/pep"
)

var (
	ErrUnknownVariant = errors.New("likelihood: unknown variant")
	ErrNoiseRate      = errors.New("likelihood: noise rate must be finite and positive")
	ErrUnknownPrior   = errors.New("likelihood: unknown prior")
	ErrBadOption      = errors.New("likelihood: invalid option")
)

// Variant is the way the hits of one sensor are combined.
type Variant int

const (
	SPE1st Variant = iota
	SPEAll
	SPEqAll
	MPE
	MPEAll
	PSA
)

var variantNames = []string{"SPE1st", "SPEAll", "SPEqAll", "MPE", "MPEAll", "PSA"}

func (v Variant) String() string {
	if v < 0 || int(v) >= len(variantNames) {
		return fmt.Sprintf("Variant(%d)", int(v))
	}
	return variantNames[v]
}

func ParseVariant(name string) (Variant, error) {
	for i := range variantNames {
		if strings.EqualFold(name, variantNames[i]) {
			return Variant(i), nil
		}
	}
	return 0, fmt.Errorf("%w %q", ErrUnknownVariant, name)
}

const DefaultBoxTolerance = 1e-6

// Combinator evaluates the likelihood of the hits on one sensor. It holds no
// per-call state and may be used from several goroutines if its Provider can.
type Combinator struct {
	variant      Variant
	pdf          pep.Provider
	timingError  float64
	boxTolerance float64
}

type Option func(*Combinator)

// WithTimingError smears the MPE first hit time uniformly over ±dt [ns].
func WithTimingError(dt float64) Option {
	return func(c *Combinator) { c.timingError = dt }
}

// WithBoxTolerance sets how far the two CDF values of the smeared MPE may be
// misordered before it is treated as a bug.
func WithBoxTolerance(tol float64) Option {
	return func(c *Combinator) { c.boxTolerance = tol }
}

func NewCombinator(v Variant, pdf pep.Provider, opts ...Option) (*Combinator, error) {
	c := Combinator{variant: v, pdf: pdf, boxTolerance: DefaultBoxTolerance}
	for _, opt := range opts {
		opt(&c)
	}
	switch {
	case v < SPE1st || v > PSA:
		return nil, fmt.Errorf("%w %d", ErrUnknownVariant, int(v))
	case pdf == nil:
		return nil, fmt.Errorf("%w: no density", ErrBadOption)
	case !(c.timingError >= 0) || math.IsInf(c.timingError, 1):
		return nil, fmt.Errorf("%w: timing error %v", ErrBadOption, c.timingError)
	case c.timingError > 0 && v != MPE:
		return nil, fmt.Errorf("%w: timing error is only used by %v, not %v", ErrBadOption, MPE, v)
	case !(c.boxTolerance >= 0):
		return nil, fmt.Errorf("%w: box tolerance %v", ErrBadOption, c.boxTolerance)
	}
	if v == MPEAll {
		slog.Warn("MPEAll likelihood is experimental and not meant for production fits")
	}
	return &c, nil
}

func (c *Combinator) Variant() Variant {
	return c.variant
}

func (c *Combinator) Provider() pep.Provider {
	return c.pdf
}

func (c *Combinator) prepare(hs *detector.HitSensor, h geometry.Hypothesis) (pep.Point, bool) {
	if hs == nil || hs.Len() == 0 {
		panic("likelihood: empty hit sensor reached a combinator")
	}
	pt, err := c.pdf.Prepare(h, hs.Sensor)
	if err != nil {
		slog.Debug("hypothesis cannot reach sensor", "sensor", hs.Sensor.Key.Label(), "hypothesis", h, "err", err)
		return pt, false
	}
	return pt, true
}

// Likelihood is in [0, ∞).
func (c *Combinator) Likelihood(hs *detector.HitSensor, h geometry.Hypothesis) float64 {
	pt, ok := c.prepare(hs, h)
	if !ok {
		return 0
	}
	switch c.variant {
	case SPE1st:
		return c.pdf.Pdf(pt, hs.First().Time)
	case MPE:
		return c.mpe(pt, hs)
	}
	return math.Exp(c.logLikelihood(pt, hs))
}

// LogLikelihood is -Inf for a hit pattern impossible under h.
func (c *Combinator) LogLikelihood(hs *detector.HitSensor, h geometry.Hypothesis) float64 {
	pt, ok := c.prepare(hs, h)
	if !ok {
		return math.Inf(-1)
	}
	return c.logLikelihood(pt, hs)
}

func (c *Combinator) logLikelihood(pt pep.Point, hs *detector.HitSensor) float64 {
	switch c.variant {
	case SPE1st:
		return c.pdf.LogPdf(pt, hs.First().Time)
	case SPEAll:
		var sum float64
		for _, hit := range hs.Hits {
			sum += c.pdf.LogPdf(pt, hit.Time)
		}
		return sum
	case SPEqAll:
		var sum float64
		for _, hit := range hs.Hits {
			if hit.Charge > 0 {
				sum += hit.Charge * c.pdf.LogPdf(pt, hit.Time)
			}
		}
		return sum
	case MPE:
		return math.Log(c.mpe(pt, hs))
	case MPEAll:
		var sum float64
		for _, hit := range hs.Hits {
			t := hit.Time
			sum += math.Log(firstOfN(math.Round(hit.Charge), c.pdf.Pdf(pt, t), c.pdf.Cdf(pt, t)))
		}
		return sum
	case PSA:
		return c.psa(pt, hs.First().Time)
	}
	panic(fmt.Sprintf("likelihood: unhandled variant %v", c.variant))
}

// IntLikelihood is the probability of observing the hits no later than they were, in [0, 1].
func (c *Combinator) IntLikelihood(hs *detector.HitSensor, h geometry.Hypothesis) float64 {
	pt, ok := c.prepare(hs, h)
	if !ok {
		return 0
	}
	first := hs.First().Time
	switch c.variant {
	case SPE1st:
		return c.pdf.Cdf(pt, first)
	case SPEAll, SPEqAll:
		p := 1.
		for _, hit := range hs.Hits {
			v := c.pdf.Cdf(pt, hit.Time)
			if c.variant == SPEqAll {
				v = math.Pow(v, hit.Charge)
			}
			p *= v
		}
		return p
	case MPE:
		return firstOfNCdf(math.Round(hs.Charge()), c.pdf.Cdf(pt, first))
	case MPEAll:
		p := 1.
		for _, hit := range hs.Hits {
			p *= firstOfNCdf(math.Round(hit.Charge), c.pdf.Cdf(pt, hit.Time))
		}
		return p
	case PSA:
		mu := c.pdf.ExpectedPE(pt)
		hit := c.pdf.HitProbability(pt)
		if hit == 0 {
			return c.pdf.Cdf(pt, first)
		}
		return -math.Expm1(-mu*c.pdf.Cdf(pt, first)) / hit
	}
	panic(fmt.Sprintf("likelihood: unhandled variant %v", c.variant))
}

// firstOfN is the density of the earliest of n photons: n pdf (1-cdf)^(n-1).
func firstOfN(n, pdf, cdf float64) float64 {
	switch {
	case n < 1.5:
		return pdf
	case cdf >= 1:
		return n * pdf
	case cdf <= 0:
		return 0
	}
	return n * pdf * math.Exp((n-1)*math.Log1p(-cdf))
}

func firstOfNCdf(n, cdf float64) float64 {
	if n < 1.5 {
		return cdf
	}
	return -math.Expm1(n * math.Log1p(-cdf))
}

func (c *Combinator) mpe(pt pep.Point, hs *detector.HitSensor) float64 {
	n := math.Round(hs.Charge())
	t := hs.First().Time
	if n < 1.5 || c.timingError == 0 {
		return firstOfN(n, c.pdf.Pdf(pt, t), c.pdf.Cdf(pt, t))
	}
	early := c.pdf.Cdf(pt, t-c.timingError)
	late := c.pdf.Cdf(pt, t+c.timingError)
	if early > late+c.boxTolerance {
		panic(fmt.Sprintf("likelihood: cdf(t-%v)=%v exceeds cdf(t+%v)=%v on sensor %s",
			c.timingError, early, c.timingError, late, hs.Sensor.Key.Label()))
	}
	if late-early <= c.boxTolerance || early >= 1 || late <= 0 {
		return firstOfN(n, c.pdf.Pdf(pt, t), c.pdf.Cdf(pt, t))
	}
	// ∫ n pdf (1-cdf)^(n-1) over the window is (1-early)^n - (1-late)^n
	logEarly := n * math.Log1p(-early)
	logLate := n * math.Log1p(-late)
	return -math.Exp(logEarly) * math.Expm1(logLate-logEarly) / (2 * c.timingError)
}

// psa weights the first hit density with the Poisson probability that no
// other photon came earlier, given the expected count mu.
func (c *Combinator) psa(pt pep.Point, t float64) float64 {
	logPdf := c.pdf.LogPdf(pt, t)
	hit := c.pdf.HitProbability(pt)
	if hit == 0 {
		return logPdf
	}
	mu := c.pdf.ExpectedPE(pt)
	return math.Log(mu/hit) + logPdf - mu*c.pdf.Cdf(pt, t)
}
