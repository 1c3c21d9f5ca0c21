package pep

import (
	"math"

	"gonum.org/v1/gonum/stat/distuv"

	c "github.com/wildstyl3r/pandel/internal/constants"
	"github.com/wildstyl3r/pandel/internal/special"
)

// Region boundaries of the Gauss-convolved density. Delays are in units of
// the jitter sigma.
const (
	earlyDelay      = -5.
	lateDelay       = 30.
	exactMaxXi      = 5.
	asymptoticMaxXi = 1.
	tricomiMinEta   = 1.35
	seriesMaxEta2   = 200.
	seriesMaxXi     = 10.
	seriesMaxPairs  = 200
	recurrenceShift = 6
	hugeEta         = 1e4
)

const pdfFloor = 1e-300

var logPdfFloor = math.Log(pdfFloor)

type region int

const (
	regionGauss region = iota
	regionExact
	regionLate
	regionSaddle
	regionRecurrence
	regionEarly
)

func selectRegion(xi, sigma, delay, eta float64) region {
	switch {
	case xi <= 0:
		return regionGauss
	case xi <= exactMaxXi && delay >= earlyDelay*sigma && delay <= lateDelay*sigma:
		return regionExact
	case xi <= asymptoticMaxXi && delay > lateDelay*sigma:
		return regionLate
	case xi <= asymptoticMaxXi && delay < earlyDelay*sigma:
		return regionEarly
	case eta > 0:
		return regionRecurrence
	}
	return regionSaddle
}

// logConvolvedPdf is the log of the Pandel density convolved with a
// zero-mean Gaussian of width sigma:
//
//	log p = xi ln(rho) + (xi-1) ln(sigma) + rho²sigma²/2 - rho t + ln Ĵ - lnΓ(xi) - ln√(2π)
//	Ĵ = ∫ x^(xi-1) exp(-(x+eta)²/2) dx,  eta = rho sigma - t/sigma
func logConvolvedPdf(xi, rho, sigma, delay float64) float64 {
	eta := rho*sigma - delay/sigma
	var lnJ float64
	switch selectRegion(xi, sigma, delay, eta) {
	case regionGauss:
		return distuv.Normal{Mu: 0, Sigma: sigma}.LogProb(delay)
	case regionExact:
		lnJ = logJExact(xi, eta)
	case regionLate:
		lnJ = logJLate(xi, eta)
	case regionEarly:
		lnJ = logJEarly(xi, eta)
	case regionRecurrence:
		lnJ = logJRecurrence(xi, eta)
	case regionSaddle:
		if xi <= seriesMaxXi && eta*eta < seriesMaxEta2 {
			lnJ = logJSeries(xi, eta)
		} else {
			lnJ = logJSaddle(xi, eta)
		}
	}
	return xi*math.Log(rho) + (xi-1)*math.Log(sigma) + rho*(0.5*rho*sigma*sigma-delay) + lnJ -
		special.LogGamma(xi) - c.LnSqrt2Pi
}

func logJExact(xi, eta float64) float64 {
	switch {
	case eta > tricomiMinEta:
		if lnJ, ok := logJTricomi(xi, eta); ok {
			return lnJ
		}
		return logJRecurrence(xi, eta)
	case xi <= exactMaxXi && eta*eta < seriesMaxEta2:
		return logJSeries(xi, eta)
	}
	return logJKummer(xi, eta)
}

// Ĵ = Γ(xi) 2^(-xi/2) U(xi/2, 1/2, eta²/2) e^(-eta²/2)
func logJTricomi(xi, eta float64) (float64, bool) {
	x := 0.5 * eta * eta
	lnU, ok := special.LogTricomiU(0.5*xi, x)
	return special.LogGamma(xi) - 0.5*xi*math.Ln2 + lnU - x, ok
}

var invPairs = func() (t [2*seriesMaxPairs + 2]float64) {
	for n := 2; n < len(t); n++ {
		t[n] = 1. / float64(n*(n-1))
	}
	return
}()

// J = Σ (-eta)^n/n! 2^((xi+n)/2-1) Γ((xi+n)/2), summed in even/odd pairs
// relative to the n = 0 term: T_n = T_(n-2) eta² (xi+n-2) / (n(n-1)).
func logJSeries(xi, eta float64) float64 {
	eta2 := eta * eta
	even := 1.
	odd := -eta * math.Sqrt2 * math.Exp(special.LogGamma(0.5*(xi+1))-special.LogGamma(0.5*xi))
	sum := even + odd
	for k := 1; k <= seriesMaxPairs; k++ {
		n := 2 * k
		even *= eta2 * (xi + float64(n-2)) * invPairs[n]
		odd *= eta2 * (xi + float64(n-1)) * invPairs[n+1]
		sum += even + odd
		if math.Abs(even)+math.Abs(odd) < 1e-17*math.Abs(sum) {
			break
		}
	}
	return (0.5*xi-1)*math.Ln2 + special.LogGamma(0.5*xi) + math.Log(sum) - 0.5*eta2
}

// Ĵ = Γ(xi) 2^(-xi/2) √π [M̃(xi/2, 1/2) / Γ((1+xi)/2) - √2 eta M̃((1+xi)/2, 3/2) / Γ(xi/2)]
// with M̃(a, b) = e^(-eta²/2) 1F1(a; b; eta²/2).
func logJKummer(xi, eta float64) float64 {
	x := 0.5 * eta * eta
	first := special.ScaledKummerM(0.5*xi, 0.5, x) * math.Exp(-special.LogGamma(0.5*(1+xi)))
	second := math.Sqrt2 * eta * special.ScaledKummerM(0.5*(1+xi), 1.5, x) * math.Exp(-special.LogGamma(0.5*xi))
	return special.LogGamma(xi) - 0.5*xi*math.Ln2 + 0.5*math.Log(math.Pi) + math.Log(first-second)
}

// Late photons, eta << 0: the Gaussian sits at x = |eta|.
// Ĵ ≈ √(2π) |eta|^(xi-1) (1 + Σ_k C(xi-1, 2k) (2k-1)!! / eta^(2k))
func logJLate(xi, eta float64) float64 {
	inv2 := 1. / (eta * eta)
	sum, binom, dfact, pow := 1., 1., 1., 1.
	for k := 1; k <= 3; k++ {
		m := float64(2 * k)
		binom *= (xi - m + 1) * (xi - m) / (m * (m - 1))
		dfact *= m - 1
		pow *= inv2
		sum += binom * dfact * pow
	}
	return c.LnSqrt2Pi + (xi-1)*math.Log(math.Abs(eta)) + math.Log(sum)
}

// Early photons, eta >> 0: expand e^(-x²/2) against e^(-eta x).
// J ≈ Γ(xi) eta^(-xi) Σ_k (-1/2)^k/k! (xi)_(2k) / eta^(2k)
func logJEarly(xi, eta float64) float64 {
	inv2 := 1. / (eta * eta)
	sum, term := 1., 1.
	for k := 1; k <= 3; k++ {
		fk := float64(k)
		term *= -0.5 / fk * (xi + 2*fk - 2) * (xi + 2*fk - 1) * inv2
		sum += term
	}
	return special.LogGamma(xi) - xi*math.Log(eta) - 0.5*eta*eta + math.Log(sum)
}

// logJSaddle is the Laplace expansion of J = ∫ exp(phi(s)) ds,
// phi(s) = xi s - eta e^s - e^(2s)/2, around the saddle x0 = e^s0 solving
// x0² + eta x0 = xi, with corrections through the sixth derivative.
func logJSaddle(xi, eta float64) float64 {
	root := math.Sqrt(eta*eta + 4*xi)
	var x0 float64
	if eta > 0 {
		x0 = 2 * xi / (eta + root)
	} else {
		x0 = 0.5 * (root - eta)
	}
	s := x0 * x0
	k := xi + s
	// phi^(n)(s0) = -xi - (2^(n-1)-1) x0²
	a3 := -xi - 3*s
	a4 := -xi - 7*s
	a5 := -xi - 15*s
	a6 := -xi - 31*s
	k2 := k * k
	k3 := k2 * k
	k4 := k3 * k
	first := a4/(8*k2) + 5*a3*a3/(24*k3)
	second := a6/(48*k3) + 35*a4*a4/(384*k4) + 7*a3*a5/(48*k4) +
		35*a3*a3*a4/(64*k4*k) + 385*a3*a3*a3*a3/(1152*k4*k2)
	r := xi / x0
	return xi*math.Log(x0) - 0.5*r*r + 0.5*math.Log(2*math.Pi/k) + math.Log1p(first+second)
}

// logJRecurrence evaluates the saddle expansion at xi+6 and xi+7, where it
// is accurate, and steps down with n u_n = u_(n+2) + eta u_(n+1); every term
// is positive for eta > 0.
func logJRecurrence(xi, eta float64) float64 {
	if eta > hugeEta {
		return logJEarly(xi, eta)
	}
	base := logJSaddle(xi+recurrenceShift, eta)
	next := math.Exp(logJSaddle(xi+recurrenceShift+1, eta) - base)
	cur := 1.
	for n := recurrenceShift - 1; n >= 0; n-- {
		next, cur = cur, (next+eta*cur)/(xi+float64(n))
	}
	return base + math.Log(cur)
}
