package pep

import (
	"math"

	"gonum.org/v1/gonum/stat/distuv"

	c "github.com/wildstyl3r/pandel/internal/constants"
	"github.com/wildstyl3r/pandel/internal/special"
)

// Box jitter of full width sigma centered on the delay.
func boxPdf(xi, rho, sigma, delay float64) float64 {
	half := 0.5 * sigma
	return math.Max(0, pandelCdf(xi, rho, delay+half)-pandelCdf(xi, rho, delay-half)) / sigma
}

func boxCdf(xi, rho, sigma, delay float64) float64 {
	half := 0.5 * sigma
	return (integratedPandelCdf(xi, rho, delay+half) - integratedPandelCdf(xi, rho, delay-half)) / sigma
}

// integratedPandelCdf is ∫_0^y P(xi, rho s) ds.
func integratedPandelCdf(xi, rho, y float64) float64 {
	if y <= 0 {
		return 0
	}
	if !(xi > 0) {
		return y
	}
	return gammaRamp(xi, rho*y) / rho
}

// patch joins a Gaussian for delay <= 0 to the Pandel density from
// boundary = sigma √(2π) on, through a cubic matching value and slope at both
// ends. The whole is renormalized to unit mass.
type patch struct {
	xi, rho  float64
	gauss    distuv.Normal
	boundary float64
	c0       float64
	c2, c3   float64
	bridge   float64
	total    float64
}

func newPatch(xi, rho, sigma float64) patch {
	b := sigma * c.Sqrt2Pi
	pb := pandelPdf(xi, rho, b)
	slope := pb * ((xi-1)/b - rho)
	c0 := 1. / b
	diff := pb - c0
	pt := patch{
		xi:       xi,
		rho:      rho,
		gauss:    distuv.Normal{Mu: 0, Sigma: sigma},
		boundary: b,
		c0:       c0,
		c3:       (slope*b - 2*diff) / (b * b * b),
		c2:       (3*diff - slope*b) / (b * b),
	}
	pt.bridge = pt.bridgeIntegral(b)
	pt.total = 0.5 + pt.bridge + pandelSurvival(xi, rho, b)
	return pt
}

func pandelSurvival(xi, rho, delay float64) float64 {
	if !(xi > 0) {
		return 0
	}
	return special.GammaQ(xi, rho*delay)
}

func (pt patch) bridgeIntegral(d float64) float64 {
	d2 := d * d
	return d * (pt.c0 + d2*(pt.c2/3+d*pt.c3/4))
}

func (pt patch) pdf(delay float64) float64 {
	var v float64
	switch {
	case delay <= 0:
		v = pt.gauss.Prob(delay)
	case delay < pt.boundary:
		v = math.Max(0, pt.c0+delay*delay*(pt.c2+delay*pt.c3))
	default:
		v = pandelPdf(pt.xi, pt.rho, delay)
	}
	return v / pt.total
}

func (pt patch) cdf(delay float64) float64 {
	var v float64
	switch {
	case delay <= 0:
		v = pt.gauss.CDF(delay)
	case delay < pt.boundary:
		v = 0.5 + pt.bridgeIntegral(delay)
	default:
		v = 0.5 + pt.bridge + pandelSurvival(pt.xi, pt.rho, pt.boundary) - pandelSurvival(pt.xi, pt.rho, delay)
	}
	return v / pt.total
}
