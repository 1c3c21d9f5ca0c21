// Package pep evaluates photon arrival time densities of the Pandel family:
// the plain gamma-type density and its convolutions with the sensor jitter.
package pep

import (
	"errors"
	"fmt"
	"math"
	"strings"

	c "github.com/wildstyl3r/pandel/internal/constants"
	"github.com/wildstyl3r/pandel/internal/detector"
	"github.com/wildstyl3r/pandel/internal/geometry"
	"github.com/wildstyl3r/pandel/internal/ice"
)

var (
	ErrUnknownKind     = errors.New("pep: unknown density kind")
	ErrUnknownStrategy = errors.New("pep: unknown integral strategy")
	ErrBadOption       = errors.New("pep: invalid option")
)

type Kind int

const (
	Unconvoluted Kind = iota
	GaussConvoluted
	BoxConvoluted
	Patched
)

var kindNames = []string{"Unconvoluted", "GaussConvoluted", "BoxConvoluted", "Patched"}

func (k Kind) String() string {
	if k < 0 || int(k) >= len(kindNames) {
		return fmt.Sprintf("Kind(%d)", int(k))
	}
	return kindNames[k]
}

func ParseKind(name string) (Kind, error) {
	for i := range kindNames {
		if strings.EqualFold(name, kindNames[i]) {
			return Kind(i), nil
		}
	}
	return 0, fmt.Errorf("%w %q", ErrUnknownKind, name)
}

// Strategy selects how the Gauss-convolved cumulative distribution is computed.
type Strategy int

const (
	FastPlain Strategy = iota
	SlowNumeric
	FastApprox
)

var strategyNames = []string{"fastPlain", "slowNumeric", "fastApprox"}

func (s Strategy) String() string {
	if s < 0 || int(s) >= len(strategyNames) {
		return fmt.Sprintf("Strategy(%d)", int(s))
	}
	return strategyNames[s]
}

func ParseStrategy(name string) (Strategy, error) {
	for i := range strategyNames {
		if strings.EqualFold(name, strategyNames[i]) {
			return Strategy(i), nil
		}
	}
	return 0, fmt.Errorf("%w %q", ErrUnknownStrategy, name)
}

// Point carries everything a density evaluation needs about one
// hypothesis-sensor pair. It is a value; nothing is cached between calls.
type Point struct {
	Xi          float64 // effective distance in scattering lengths
	Rho         float64 // [1/ns]
	Sigma       float64 // sensor jitter [ns]
	Attenuation float64 // [m]
	Sensitivity float64
	Energy      float64 // [GeV]
	Hypothesis  geometry.Kind
	Emission    geometry.Emission
}

// Delay is the time residual of a hit at time t.
func (pt Point) Delay(t float64) float64 {
	return t - pt.Emission.GeometricalTime
}

// Provider is the capability the likelihood combinators need from a density.
type Provider interface {
	Prepare(h geometry.Hypothesis, s *detector.Sensor) (Point, error)
	Pdf(pt Point, t float64) float64
	LogPdf(pt Point, t float64) float64
	Cdf(pt Point, t float64) float64
	HitProbability(pt Point) float64
	ExpectedPE(pt Point) float64
}

type PEP struct {
	kind        Kind
	strategy    Strategy
	ice         ice.Model
	minDistance float64
	maxPE       float64
}

type Option func(*PEP)

func WithStrategy(s Strategy) Option {
	return func(p *PEP) { p.strategy = s }
}

// WithMinDistance sets the floor of the emitter-sensor distance [m].
func WithMinDistance(d float64) Option {
	return func(p *PEP) { p.minDistance = d }
}

// WithMaxPE caps ExpectedPE when the probability of no hit underflows.
func WithMaxPE(n float64) Option {
	return func(p *PEP) { p.maxPE = n }
}

const (
	DefaultMinDistance = 0.1
	DefaultMaxPE       = 1e4
)

func New(kind Kind, model ice.Model, opts ...Option) (*PEP, error) {
	p := PEP{
		kind:        kind,
		strategy:    FastPlain,
		ice:         model,
		minDistance: DefaultMinDistance,
		maxPE:       DefaultMaxPE,
	}
	for _, opt := range opts {
		opt(&p)
	}
	switch {
	case kind < Unconvoluted || kind > Patched:
		return nil, fmt.Errorf("%w %d", ErrUnknownKind, int(kind))
	case p.strategy < FastPlain || p.strategy > FastApprox:
		return nil, fmt.Errorf("%w %d", ErrUnknownStrategy, int(p.strategy))
	case model == nil:
		return nil, fmt.Errorf("%w: no ice model", ErrBadOption)
	case !(p.minDistance > 0) || math.IsInf(p.minDistance, 0):
		return nil, fmt.Errorf("%w: minimal distance %v", ErrBadOption, p.minDistance)
	case !(p.maxPE > 0):
		return nil, fmt.Errorf("%w: max PE %v", ErrBadOption, p.maxPE)
	}
	return &p, nil
}

func (p *PEP) Kind() Kind {
	return p.kind
}

func (p *PEP) Strategy() Strategy {
	return p.strategy
}

func (p *PEP) Prepare(h geometry.Hypothesis, s *detector.Sensor) (Point, error) {
	e, err := geometry.Compute(h, s.Position, s.Orientation, p.minDistance)
	if err != nil {
		return Point{}, err
	}
	props := p.ice.Between(s.Position.Z, e.EmissionZ)
	return Point{
		Xi:          props.EffectiveDistance(e.Distance, e.CosEta) * props.InvEffScattLength(),
		Rho:         1./props.TauScale + c.GroupSpeed*props.Absorptivity(),
		Sigma:       s.Jitter,
		Attenuation: math.Sqrt(props.AbsorptionLength * props.EffectiveScatteringLength / 3.),
		Sensitivity: s.Sensitivity,
		Energy:      h.Energy(),
		Hypothesis:  h.Kind(),
		Emission:    e,
	}, nil
}

func (p *PEP) Pdf(pt Point, t float64) float64 {
	delay := pt.Delay(t)
	switch p.kind {
	case Unconvoluted:
		return pandelPdf(pt.Xi, pt.Rho, delay)
	case GaussConvoluted:
		return math.Max(math.Exp(logConvolvedPdf(pt.Xi, pt.Rho, pt.Sigma, delay)), pdfFloor)
	case BoxConvoluted:
		return boxPdf(pt.Xi, pt.Rho, pt.Sigma, delay)
	case Patched:
		return newPatch(pt.Xi, pt.Rho, pt.Sigma).pdf(delay)
	}
	panic(fmt.Sprintf("pep: unhandled kind %v", p.kind))
}

// LogPdf is -Inf where the density vanishes.
func (p *PEP) LogPdf(pt Point, t float64) float64 {
	switch p.kind {
	case Unconvoluted:
		return pandelLogPdf(pt.Xi, pt.Rho, pt.Delay(t))
	case GaussConvoluted:
		return math.Max(logConvolvedPdf(pt.Xi, pt.Rho, pt.Sigma, pt.Delay(t)), logPdfFloor)
	}
	v := p.Pdf(pt, t)
	if !(v > 0) {
		return math.Inf(-1)
	}
	return math.Log(v)
}

// Cdf is the probability that the photon arrives before t, in [0, 1].
func (p *PEP) Cdf(pt Point, t float64) float64 {
	delay := pt.Delay(t)
	var v float64
	switch p.kind {
	case Unconvoluted:
		v = pandelCdf(pt.Xi, pt.Rho, delay)
	case GaussConvoluted:
		v = p.convolvedCdf(pt.Xi, pt.Rho, pt.Sigma, delay)
	case BoxConvoluted:
		v = boxCdf(pt.Xi, pt.Rho, pt.Sigma, delay)
	case Patched:
		v = newPatch(pt.Xi, pt.Rho, pt.Sigma).cdf(delay)
	}
	return math.Max(0, math.Min(1, v))
}
