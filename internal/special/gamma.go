package special

import (
	"math"

	"gonum.org/v1/gonum/mathext"
)

func LogGamma(x float64) float64 {
	v, _ := math.Lgamma(x)
	return v
}

// GammaP is the regularized lower incomplete gamma function, zero for x <= 0.
func GammaP(a, x float64) float64 {
	switch {
	case math.IsNaN(x) || math.IsNaN(a):
		return math.NaN()
	case x <= 0:
		return 0
	case math.IsInf(x, 1):
		return 1
	}
	return mathext.GammaIncReg(a, x)
}

// GammaQ is 1 - GammaP evaluated without cancellation.
func GammaQ(a, x float64) float64 {
	switch {
	case math.IsNaN(x) || math.IsNaN(a):
		return math.NaN()
	case x <= 0:
		return 1
	case math.IsInf(x, 1):
		return 0
	}
	return mathext.GammaIncRegComp(a, x)
}

// LogGammaDensity is the log of x^(a-1) e^-x / Γ(a).
func LogGammaDensity(a, x float64) float64 {
	if x <= 0 {
		return math.Inf(-1)
	}
	return (a-1)*math.Log(x) - x - LogGamma(a)
}

func GammaDensity(a, x float64) float64 {
	if x <= 0 {
		return 0
	}
	return math.Exp(LogGammaDensity(a, x))
}
