package pep

import (
	"math"

	"github.com/wildstyl3r/pandel/internal/special"
)

// pandelLogPdf is log(rho^xi delay^(xi-1) e^(-rho delay) / Γ(xi)).
func pandelLogPdf(xi, rho, delay float64) float64 {
	if !(delay > 0) || !(xi > 0) {
		return math.Inf(-1)
	}
	return xi*math.Log(rho) + (xi-1)*math.Log(delay) - rho*delay - special.LogGamma(xi)
}

func pandelPdf(xi, rho, delay float64) float64 {
	if !(delay > 0) || !(xi > 0) {
		return 0
	}
	return math.Exp(pandelLogPdf(xi, rho, delay))
}

func pandelCdf(xi, rho, delay float64) float64 {
	if !(xi > 0) {
		if delay >= 0 {
			return 1
		}
		return 0
	}
	return special.GammaP(xi, rho*delay)
}
