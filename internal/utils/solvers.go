package utils

import "math"

// Bracket is a closed interval narrowed by the searches below.
type Bracket struct {
	Lo, Hi float64
}

func (b Bracket) Mid() float64 {
	return (b.Lo + b.Hi) * 0.5
}

func (b Bracket) Width() float64 {
	return math.Abs(b.Hi - b.Lo)
}

// Peak narrows b to eps around the maximum of a unimodal f and returns the
// midpoint together with f there.
func Peak(f func(float64) float64, b Bracket, eps float64) (x, fx float64) {
	for b.Width() > eps {
		a := math.FMA(b.Lo, 2., b.Hi) / 3.
		c := math.FMA(b.Hi, 2., b.Lo) / 3.
		if f(a) > f(c) {
			b.Hi = c
		} else {
			b.Lo = a
		}
	}
	x = b.Mid()
	return x, f(x)
}

// Crossing narrows b to eps around the point where cond turns true.
// cond must be false at b.Lo and true at b.Hi; Hi stays on the true side.
func Crossing(cond func(float64) bool, b Bracket, eps float64) Bracket {
	for b.Width() > eps {
		c := b.Mid()
		if cond(c) {
			b.Hi = c
		} else {
			b.Lo = c
		}
	}
	return b
}
