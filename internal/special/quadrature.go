package special

import (
	"math"

	"gonum.org/v1/gonum/integrate/quad"
)

const (
	panelOrder    = 20
	maxBisections = 30
)

var panelNodes, panelWeights = legendrePanel(panelOrder)

func legendrePanel(n int) ([]float64, []float64) {
	x := make([]float64, n)
	w := make([]float64, n)
	quad.Legendre{}.FixedLocations(x, w, -1, 1)
	return x, w
}

func gaussPanel(f func(float64) float64, a, b float64) float64 {
	half := 0.5 * (b - a)
	mid := 0.5 * (a + b)
	var s float64
	for i := range panelNodes {
		s += panelWeights[i] * f(math.FMA(half, panelNodes[i], mid))
	}
	return s * half
}

// Integrate approximates the integral of f over [a, b] by adaptive bisection
// of Gauss-Legendre panels until halves agree with the whole to relTol.
func Integrate(f func(float64) float64, a, b, relTol float64) float64 {
	return IntegratePanels(f, a, b, 1, relTol)
}

// IntegratePanels splits [a, b] into equal panels before adapting each of them.
func IntegratePanels(f func(float64) float64, a, b float64, panels int, relTol float64) float64 {
	if b < a {
		return -IntegratePanels(f, b, a, panels, relTol)
	}
	if b == a {
		return 0
	}
	panels = max(panels, 1)
	step := (b - a) / float64(panels)
	estimates := make([]float64, panels)
	var total float64
	for i := range panels {
		estimates[i] = gaussPanel(f, a+float64(i)*step, a+float64(i+1)*step)
		total += math.Abs(estimates[i])
	}
	absTol := 1e-3 * relTol * total
	var sum float64
	for i := range panels {
		lo := a + float64(i)*step
		hi := b
		if i+1 < panels {
			hi = lo + step
		}
		sum += adapt(f, lo, hi, estimates[i], relTol, absTol, maxBisections)
	}
	return sum
}

func adapt(f func(float64) float64, a, b, whole, relTol, absTol float64, depth int) float64 {
	m := 0.5 * (a + b)
	left := gaussPanel(f, a, m)
	right := gaussPanel(f, m, b)
	if depth == 0 || math.Abs(left+right-whole) <= max(relTol*math.Abs(left+right), absTol) {
		return left + right
	}
	return adapt(f, a, m, left, relTol, absTol, depth-1) + adapt(f, m, b, right, relTol, absTol, depth-1)
}
