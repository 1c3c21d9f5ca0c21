package special

import "math"

// FastLogSum accumulates a product of positive factors as a mantissa in [1,2)
// and a separate power-of-two exponent, so that the log of the product never
// under- or overflows.
type FastLogSum struct {
	mantissa float64
	exponent int
	failed   bool
}

func NewFastLogSum() FastLogSum {
	return FastLogSum{mantissa: 1}
}

func (f *FastLogSum) Reset() {
	f.mantissa = 1
	f.exponent = 0
	f.failed = false
}

// Add multiplies x into the product. A non-finite or non-positive x marks the
// accumulator as failed and LogSum returns NaN until Reset.
func (f *FastLogSum) Add(x float64) {
	if !(x > 0) || math.IsInf(x, 1) {
		f.failed = true
		return
	}
	f.FastAdd(x)
}

// FastAdd multiplies x into the product without validating it.
func (f *FastLogSum) FastAdd(x float64) {
	fx, ex := math.Frexp(x)
	fm, em := math.Frexp(f.mantissa * fx)
	f.mantissa = 2 * fm
	f.exponent += ex + em - 1
}

func (f *FastLogSum) Failed() bool {
	return f.failed
}

func (f *FastLogSum) LogSum() float64 {
	if f.failed {
		return math.NaN()
	}
	return math.Log(f.mantissa) + float64(f.exponent)*math.Ln2
}
