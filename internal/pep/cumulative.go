package pep

import (
	"math"

	"gonum.org/v1/gonum/stat/distuv"

	"github.com/wildstyl3r/pandel/internal/special"
)

const (
	numericLowerSigmas = -10.
	numericPanels      = 64
	numericTolerance   = 1e-10
	approxHalfWidth    = 6.
	approxIntervals    = 16
)

func (p *PEP) convolvedCdf(xi, rho, sigma, delay float64) float64 {
	if xi <= 0 {
		return distuv.Normal{Mu: 0, Sigma: sigma}.CDF(delay)
	}
	switch p.strategy {
	case SlowNumeric:
		return numericCdf(xi, rho, sigma, delay)
	case FastApprox:
		return approxCdf(xi, rho, sigma, delay)
	}
	return special.GammaP(xi, rho*delay)
}

// numericCdf integrates the convolved density from -10 sigma. Beyond the
// point where the unconvolved tail is negligible the integral is frozen.
func numericCdf(xi, rho, sigma, delay float64) float64 {
	lo := numericLowerSigmas * sigma
	if delay <= lo {
		return 0
	}
	hi := xi/rho + 40*(math.Sqrt(xi)+1)/rho + 10*sigma
	return special.IntegratePanels(func(t float64) float64 {
		return math.Exp(logConvolvedPdf(xi, rho, sigma, t))
	}, lo, math.Min(delay, hi), numericPanels, numericTolerance)
}

// approxCdf integrates P(xi, rho (delay-u)) against the jitter Gaussian. On
// each interval of [-6 sigma, 6 sigma] the Gaussian is replaced by the line
// with the same mass and first moment, which integrates against P in closed
// form. The tails take P at the interval ends.
func approxCdf(xi, rho, sigma, delay float64) float64 {
	g := distuv.Normal{Mu: 0, Sigma: sigma}
	lo, hi := -approxHalfWidth*sigma, approxHalfWidth*sigma
	sum := special.GammaP(xi, rho*(delay-lo)) * g.CDF(lo)
	if delay > hi {
		sum += special.GammaP(xi, rho*(delay-hi)) * g.Survival(hi)
	}
	step := (hi - lo) / approxIntervals
	for i := range approxIntervals {
		a := lo + float64(i)*step
		if a >= delay {
			break
		}
		b := a + step
		mid := 0.5 * (a + b)
		mass := g.CDF(b) - g.CDF(a)
		level := mass / step
		slope := 12 * (sigma*sigma*(g.Prob(a)-g.Prob(b)) - mid*mass) / (step * step * step)

		near, far := rho*(delay-b), rho*(delay-a)
		ramp, moment := gammaSegment(xi, near, far)
		sum += level*ramp/rho + slope*moment/(rho*rho)
	}
	return sum
}

// gammaSegment returns ∫ P(xi, y) dy and ∫ P(xi, y) (mid-y) dy over
// [near, far], mid being the center. Above xi the complement Q is integrated.
func gammaSegment(xi, near, far float64) (ramp, moment float64) {
	mid := 0.5 * (near + far)
	if near > xi {
		dq := gammaTailRamp(xi, far) - gammaTailRamp(xi, near)
		return far - near - dq, gammaTailMoment(xi, far) - gammaTailMoment(xi, near) - mid*dq
	}
	ramp = gammaRamp(xi, far) - gammaRamp(xi, near)
	return ramp, mid*ramp - gammaMoment(xi, far) + gammaMoment(xi, near)
}

// gammaRamp is ∫_0^y P(xi, s) ds.
func gammaRamp(xi, y float64) float64 {
	if y <= 0 {
		return 0
	}
	return y*special.GammaP(xi, y) - xi*special.GammaP(xi+1, y)
}

// gammaMoment is ∫_0^y s P(xi, s) ds.
func gammaMoment(xi, y float64) float64 {
	if y <= 0 {
		return 0
	}
	return 0.5 * (y*y*special.GammaP(xi, y) - xi*(xi+1)*special.GammaP(xi+2, y))
}

// antiderivatives of Q(xi, y) and y Q(xi, y)
func gammaTailRamp(xi, y float64) float64 {
	return y*special.GammaQ(xi, y) - xi*special.GammaQ(xi+1, y)
}

func gammaTailMoment(xi, y float64) float64 {
	return 0.5 * (y*y*special.GammaQ(xi, y) - xi*(xi+1)*special.GammaQ(xi+2, y))
}
