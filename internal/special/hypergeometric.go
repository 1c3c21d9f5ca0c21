package special

import "math"

const (
	kummerAsymptoticFrom = 50.
	kummerMaxTerms       = 200
	millerTerms          = 200
	millerTolerance      = 1e-17
	millerRescale        = 1e200
	millerRatioDigits    = 37. // e^-37 bounds the start-up error of the recurrence ratio
)

// ScaledKummerM returns e^-x M(a, b, x), M being the confluent hypergeometric
// function 1F1, for a, b > 0 and x >= 0.
func ScaledKummerM(a, b, x float64) float64 {
	if x < kummerAsymptoticFrom {
		return kummerSeries(a, b, x)
	}
	return kummerAsymptotic(a, b, x)
}

func kummerSeries(a, b, x float64) float64 {
	term, sum := 1., 1.
	for n := 1; n < kummerMaxTerms; n++ {
		fn := float64(n)
		term *= (a + fn - 1) / (b + fn - 1) * x / fn
		sum += term
		if math.Abs(term) < 1e-17*math.Abs(sum) {
			break
		}
	}
	return sum * math.Exp(-x)
}

// large x: M(a,b,x) ~ Γ(b)/Γ(a) e^x x^(a-b) Σ (b-a)_n (1-a)_n / (n! x^n)
func kummerAsymptotic(a, b, x float64) float64 {
	term, sum := 1., 1.
	for n := 1; n < kummerMaxTerms; n++ {
		fn := float64(n)
		next := term * (b - a + fn - 1) * (fn - a) / (fn * x)
		if math.Abs(next) > math.Abs(term) {
			break
		}
		term = next
		sum += term
		if math.Abs(term) < 1e-17*math.Abs(sum) {
			break
		}
	}
	return sum * math.Exp(LogGamma(b)-LogGamma(a)+(a-b)*math.Log(x))
}

// LogTricomiU returns log U(a, 1/2, z) for a, z > 0 through
//
//	U(a, 1/2, z) = 2^a / Γ(2a) J(2a, √(2z)),  J(xi, eta) = ∫ x^(xi-1) e^(-eta x - x²/2) dx
//
// ok is false when the backward recurrence has not settled within
// millerTerms steps, that is for z below about 1 or above about 150.
func LogTricomiU(a, z float64) (logU float64, ok bool) {
	if !(a > 0) || !(z > 0) || math.IsInf(z, 0) {
		return math.NaN(), false
	}
	lnJ, ok := LogGaussLaplace(2*a, math.Sqrt(2*z))
	return lnJ + a*math.Ln2 - LogGamma(2*a), ok
}

func TricomiU(a, z float64) float64 {
	u, _ := LogTricomiU(a, z)
	return math.Exp(u)
}

// LogGaussLaplace returns log J(xi, eta) = log ∫ x^(xi-1) e^(-eta x - x²/2) dx
// for xi, eta > 0. J(xi+n, eta) is the minimal solution of
// (xi+n) J_n = eta J_(n+1) + J_(n+2), so it is recurred downwards from
// n = millerTerms and normalised with
//
//	Σ eta^n/n! J(xi+n, eta) = J(xi, 0) = 2^(xi/2-1) Γ(xi/2).
//
// The recurrence runs on the terms w_n = eta^n/n! J_n of that sum.
func LogGaussLaplace(xi, eta float64) (lnJ float64, ok bool) {
	if !(xi > 0) || !(eta > 0) || math.IsInf(eta, 0) {
		return math.NaN(), false
	}
	inv2 := 1. / (eta * eta)
	var next float64
	cur, sum, start := 1., 1., 1.
	for n := millerTerms - 1; n >= 0; n-- {
		fn := float64(n)
		next, cur = cur, ((fn+1)*cur+(fn+1)*(fn+2)*inv2*next)/(xi+fn)
		sum += cur
		if cur > millerRescale {
			next /= millerRescale
			cur /= millerRescale
			sum /= millerRescale
			start /= millerRescale
		}
	}
	ok = start < millerTolerance*sum && 2*eta*math.Sqrt(millerTerms) > millerRatioDigits
	return math.Log(cur/sum) + (0.5*xi-1)*math.Ln2 + LogGamma(0.5*xi), ok
}
