package utils

import (
	"cmp"
	"math"
	"slices"
	"sort"

	"golang.org/x/exp/constraints"
)

func Argmax[T cmp.Ordered](arr []T) (argmax int) {
	for i := range arr {
		if cmp.Compare(arr[i], arr[argmax]) == 1 {
			argmax = i
		}
	}
	return
}

type Number interface {
	constraints.Float | constraints.Integer
}

func SumSlice[T Number](arr []T) (r T) {
	for i := range arr {
		r += arr[i]
	}
	return
}

func Average[T Number](s []T) (mean float64) {
	for i := range s {
		mean += float64(s[i])
	}
	mean /= float64(len(s))
	return
}

func MeanAndVariance[T Number](s []T, unbiased bool) (mean, variance float64) {
	mean = Average(s)
	for i := range s {
		variance += (float64(s[i]) - mean) * (float64(s[i]) - mean)
	}
	if unbiased {
		variance /= float64(len(s) - 1)
	} else {
		variance /= float64(len(s))
	}

	return
}

func IntAbs(a int) int {
	if a < 0 {
		return -a
	} else {
		return a
	}
}

func IsFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

// Interpolate evaluates the piecewise-linear function through (xs, ys) at x.
// xs must be ascending; outside the table the edge values are returned.
func Interpolate(xs, ys []float64, x float64) float64 {
	n := len(xs)
	if n == 0 {
		return math.NaN()
	}
	if x <= xs[0] {
		return ys[0]
	}
	if x >= xs[n-1] {
		return ys[n-1]
	}
	i := sort.SearchFloat64s(xs, x)
	if xs[i] == x {
		return ys[i]
	}
	w := (x - xs[i-1]) / (xs[i] - xs[i-1])
	return math.FMA(w, ys[i]-ys[i-1], ys[i-1])
}

// AverageOver is the mean of the interpolated function on [a, b] (in either order).
func AverageOver(xs, ys []float64, a, b float64) float64 {
	if a > b {
		a, b = b, a
	}
	if b-a < 1e-12 {
		return Interpolate(xs, ys, a)
	}
	nodes := []float64{a}
	for _, x := range xs {
		if x > a && x < b {
			nodes = append(nodes, x)
		}
	}
	nodes = append(nodes, b)
	var area float64
	for i := 1; i < len(nodes); i++ {
		area += 0.5 * (nodes[i] - nodes[i-1]) * (Interpolate(xs, ys, nodes[i-1]) + Interpolate(xs, ys, nodes[i]))
	}
	return area / (b - a)
}

func Intersect(a, b []string) *string {
	for i := range a {
		if slices.Contains(b, a[i]) {
			return &a[i]
		}
	}
	return nil
}
