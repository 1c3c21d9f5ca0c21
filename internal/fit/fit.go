// Package fit drives a minimizer over the likelihood objective.
package fit

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/optimize"

	"github.com/wildstyl3r/pandel/internal/geometry"
	"github.com/wildstyl3r/pandel/internal/likelihood"
)

var ErrBadStart = errors.New("fit: objective is not finite at the start point")

type Result struct {
	X           []float64
	F           float64
	Converged   bool
	Evaluations int
}

// Minimizer finds the arg-min of f starting from x0.
type Minimizer interface {
	Minimize(f func([]float64) float64, x0 []float64) (Result, error)
}

// NelderMead is a downhill simplex over parameters rescaled by Scale, so
// that a unit step means the same in metres and radians.
type NelderMead struct {
	MaxIterations  int
	MaxEvaluations int
	Tolerance      float64 // absolute, on the function value
	Stall          int     // iterations without improvement before stopping
	Scale          []float64
}

const (
	DefaultMaxIterations  = 2000
	DefaultMaxEvaluations = 10000
	DefaultTolerance      = 1e-6
	DefaultStall          = 50
)

// DefaultScale is a step of 10 m in position and 0.1 rad in direction.
var DefaultScale = []float64{10, 10, 10, 0.1, 0.1}

func NewNelderMead() *NelderMead {
	return &NelderMead{
		MaxIterations:  DefaultMaxIterations,
		MaxEvaluations: DefaultMaxEvaluations,
		Tolerance:      DefaultTolerance,
		Stall:          DefaultStall,
		Scale:          DefaultScale,
	}
}

func (nm *NelderMead) scale(i int) float64 {
	if i < len(nm.Scale) && nm.Scale[i] > 0 {
		return nm.Scale[i]
	}
	return 1
}

func (nm *NelderMead) Minimize(f func([]float64) float64, x0 []float64) (Result, error) {
	if len(x0) == 0 {
		return Result{}, fmt.Errorf("fit: empty start point")
	}
	x := make([]float64, len(x0))
	toX := func(u []float64) []float64 {
		for i := range u {
			x[i] = u[i] * nm.scale(i)
		}
		return x
	}
	u0 := make([]float64, len(x0))
	for i := range x0 {
		u0[i] = x0[i] / nm.scale(i)
	}
	if v := f(toX(u0)); math.IsNaN(v) || math.IsInf(v, 0) {
		return Result{X: append([]float64(nil), x0...), F: v}, fmt.Errorf("%w: %v", ErrBadStart, v)
	}

	problem := optimize.Problem{
		Func: func(u []float64) float64 { return f(toX(u)) },
	}
	settings := &optimize.Settings{
		MajorIterations: nm.MaxIterations,
		FuncEvaluations: nm.MaxEvaluations,
		Converger: &optimize.FunctionConverge{
			Absolute:   nm.Tolerance,
			Iterations: nm.Stall,
		},
	}
	res, err := optimize.Minimize(problem, u0, settings, &optimize.NelderMead{SimplexSize: 1})
	if res == nil {
		return Result{}, fmt.Errorf("fit: %w", err)
	}
	out := Result{
		X:           make([]float64, len(res.X)),
		F:           res.F,
		Evaluations: res.Stats.FuncEvaluations,
	}
	for i := range res.X {
		out.X[i] = res.X[i] * nm.scale(i)
	}
	switch res.Status {
	case optimize.Success, optimize.FunctionConvergence, optimize.MethodConverge:
		out.Converged = true
	}
	if err != nil {
		return out, fmt.Errorf("fit: %v: %w", res.Status, err)
	}
	return out, nil
}

// Hypothesis minimizes the objective from seed and returns the best
// hypothesis found together with the raw minimizer result.
func Hypothesis(obj *likelihood.Objective, m Minimizer, seed geometry.Hypothesis) (geometry.Hypothesis, Result, error) {
	obj.SetSeed(seed)
	res, err := m.Minimize(obj.Value, obj.Params(seed))
	if err != nil {
		return seed, res, err
	}
	best, err := obj.Hypothesis(res.X)
	if err != nil {
		return seed, res, fmt.Errorf("fit: best point: %w", err)
	}
	return best, res, nil
}
