package pep

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/wildstyl3r/pandel/internal/detector"
	"github.com/wildstyl3r/pandel/internal/geometry"
	"github.com/wildstyl3r/pandel/internal/ice"
	"github.com/wildstyl3r/pandel/internal/special"
)

func bulk(t *testing.T) *ice.Bulk {
	t.Helper()
	model, err := ice.Preset(ice.DefaultPreset)
	require.NoError(t, err)
	return model
}

func newPEP(t *testing.T, kind Kind, opts ...Option) *PEP {
	t.Helper()
	p, err := New(kind, bulk(t), opts...)
	require.NoError(t, err)
	return p
}

func sensorAt(pos r3.Vec, jitter float64) *detector.Sensor {
	return &detector.Sensor{
		Key:         detector.Key{String: 1, Position: 1},
		Position:    pos,
		Orientation: -1,
		Jitter:      jitter,
		Sensitivity: 1.3,
	}
}

func relDiff(a, b float64) float64 {
	return 2 * math.Abs(a-b) / (a + b)
}

func TestParseNames(t *testing.T) {
	t.Parallel()
	for _, k := range []Kind{Unconvoluted, GaussConvoluted, BoxConvoluted, Patched} {
		parsed, err := ParseKind(k.String())
		require.NoError(t, err)
		assert.Equal(t, k, parsed)
	}
	for _, s := range []Strategy{FastPlain, SlowNumeric, FastApprox} {
		parsed, err := ParseStrategy(s.String())
		require.NoError(t, err)
		assert.Equal(t, s, parsed)
	}
	parsed, err := ParseStrategy("SLOWNUMERIC")
	require.NoError(t, err)
	assert.Equal(t, SlowNumeric, parsed)

	_, err = ParseKind("Lorentz")
	assert.ErrorIs(t, err, ErrUnknownKind)
	_, err = ParseStrategy("exact")
	assert.ErrorIs(t, err, ErrUnknownStrategy)
}

func TestNewRejectsBadOptions(t *testing.T) {
	t.Parallel()
	model := bulk(t)
	_, err := New(Kind(9), model)
	assert.ErrorIs(t, err, ErrUnknownKind)
	_, err = New(GaussConvoluted, model, WithStrategy(Strategy(-1)))
	assert.ErrorIs(t, err, ErrUnknownStrategy)
	_, err = New(GaussConvoluted, nil)
	assert.ErrorIs(t, err, ErrBadOption)
	_, err = New(GaussConvoluted, model, WithMinDistance(0))
	assert.ErrorIs(t, err, ErrBadOption)
	_, err = New(GaussConvoluted, model, WithMaxPE(math.NaN()))
	assert.ErrorIs(t, err, ErrBadOption)

	p, err := New(Patched, model, WithStrategy(FastApprox))
	require.NoError(t, err)
	assert.Equal(t, Patched, p.Kind())
	assert.Equal(t, FastApprox, p.Strategy())
}

func TestUnconvolutedReferenceTrack(t *testing.T) {
	t.Parallel()
	h, err := geometry.NewInfiniteTrack(r3.Vec{X: 1, Y: 2, Z: 3}, r3.Vec{X: 4, Y: 5, Z: -1}, 1e6, 0)
	require.NoError(t, err)
	p := newPEP(t, Unconvoluted)
	pt, err := p.Prepare(h, sensorAt(r3.Vec{}, 15))
	require.NoError(t, err)

	assert.InDelta(t, 0.34558116251329, pt.Xi, 1e-12)
	assert.InDelta(t, 0.004050745022805384, pt.Rho, 1e-15)
	assert.Equal(t, 15., pt.Sigma)
	assert.Equal(t, 1.3, pt.Sensitivity)

	hit := 10 + pt.Emission.GeometricalTime
	want := math.Pow(pt.Rho, pt.Xi) * math.Pow(10, pt.Xi-1) * math.Exp(-10*pt.Rho) / math.Gamma(pt.Xi)
	got := p.Pdf(pt, hit)
	assert.InEpsilon(t, want, got, 1e-12)
	assert.InEpsilon(t, 0.01229061086462096, got, 1e-13)
	assert.InDelta(t, math.Log(want), p.LogPdf(pt, hit), 1e-12)
	assert.InDelta(t, special.GammaP(pt.Xi, 10*pt.Rho), p.Cdf(pt, hit), 1e-12)
}

func TestUnconvolutedSupport(t *testing.T) {
	t.Parallel()
	p := newPEP(t, Unconvoluted)
	pt := Point{Xi: 0.7, Rho: 0.004, Sigma: 15, Emission: geometry.Emission{GeometricalTime: 100}}
	for _, delay := range []float64{-1e3, -1, 0} {
		assert.Equal(t, 0., p.Pdf(pt, 100+delay))
		assert.True(t, math.IsInf(p.LogPdf(pt, 100+delay), -1))
		assert.Equal(t, 0., p.Cdf(pt, 100+delay))
	}
	assert.Greater(t, p.Pdf(pt, 101), 0.)
	assert.InDelta(t, 1., p.Cdf(pt, 1e7), 1e-15)

	// all light is direct when there is no scattering to do
	pt.Xi = 0
	assert.Equal(t, 0., p.Pdf(pt, 150))
	assert.Equal(t, 1., p.Cdf(pt, 100))
	assert.Equal(t, 0., p.Cdf(pt, 99))
}

func TestConvolvedDensityPositive(t *testing.T) {
	t.Parallel()
	for _, xi := range []float64{0, 0.01, 0.3, 1, 2.5, 5, 7, 15, 60} {
		for _, rho := range []float64{0.001, 0.004, 0.02} {
			for _, sigma := range []float64{3, 15, 21} {
				for _, delay := range []float64{-1e6, -50 * sigma, -6 * sigma, -sigma, 0, sigma, 10 * sigma, 35 * sigma, 2e3, 1e6} {
					v := logConvolvedPdf(xi, rho, sigma, delay)
					assert.False(t, math.IsNaN(v), "xi=%v rho=%v sigma=%v delay=%v", xi, rho, sigma, delay)
					assert.False(t, math.IsInf(v, 1), "xi=%v rho=%v sigma=%v delay=%v", xi, rho, sigma, delay)
				}
			}
		}
	}
	p := newPEP(t, GaussConvoluted)
	pt := Point{Xi: 3, Rho: 0.004, Sigma: 3}
	assert.Equal(t, pdfFloor, p.Pdf(pt, -1e6))
	assert.Equal(t, logPdfFloor, p.LogPdf(pt, -1e6))
	assert.Greater(t, p.Pdf(pt, 20), pdfFloor)
}

func TestConvolvedMatchesNumericConvolution(t *testing.T) {
	t.Parallel()
	for _, xi := range []float64{1.5, 3, 7, 20} {
		for _, sigma := range []float64{3, 15} {
			rho := 0.02
			for _, delay := range []float64{-3 * sigma, 0, 2 * sigma, 10 * sigma, 40 * sigma} {
				lo := math.Max(0, delay-12*sigma)
				want := special.IntegratePanels(func(s float64) float64 {
					u := (delay - s) / sigma
					return pandelPdf(xi, rho, s) * math.Exp(-0.5*u*u) / (sigma * math.Sqrt(2*math.Pi))
				}, lo, delay+12*sigma, 48, 1e-11)
				got := math.Exp(logConvolvedPdf(xi, rho, sigma, delay))
				assert.InEpsilon(t, want, got, 2e-4, "xi=%v sigma=%v delay=%v", xi, sigma, delay)
			}
		}
	}
}

func TestGaussianLimit(t *testing.T) {
	t.Parallel()
	for _, delay := range []float64{-40, -3, 0, 7, 50} {
		want := -0.5*delay*delay/225 - math.Log(15) - 0.5*math.Log(2*math.Pi)
		assert.InDelta(t, want, logConvolvedPdf(0, 0.004, 15, delay), 1e-12)
		assert.InDelta(t, want, logConvolvedPdf(-1, 0.004, 15, delay), 1e-12)
	}
}

func TestRegionMethodsAgree(t *testing.T) {
	t.Parallel()
	for _, xi := range []float64{0.05, 0.3, 1, 2.5, 5} {
		for _, eta := range []float64{1.4, 2, 2.5, 3} {
			lnJ, ok := logJTricomi(xi, eta)
			require.True(t, ok, "xi=%v eta=%v", xi, eta)
			assert.InDelta(t, logJSeries(xi, eta), lnJ, 1e-8, "xi=%v eta=%v", xi, eta)
		}
		for _, eta := range []float64{-12, -5, -1, 0, 0.5, 1.2} {
			assert.InDelta(t, logJSeries(xi, eta), logJKummer(xi, eta), 1e-9, "xi=%v eta=%v", xi, eta)
		}
	}
	for _, xi := range []float64{12, 20, 40} {
		for _, eta := range []float64{-8, -2, -0.5} {
			assert.InDelta(t, logJSeries(xi, eta), logJSaddle(xi, eta), 2e-5, "xi=%v eta=%v", xi, eta)
		}
		for _, eta := range []float64{1.5, 2, 6} {
			lnJ, ok := logJTricomi(xi, eta)
			require.True(t, ok, "xi=%v eta=%v", xi, eta)
			assert.InDelta(t, lnJ, logJRecurrence(xi, eta), 2e-5, "xi=%v eta=%v", xi, eta)
		}
	}
}

func TestRegionContinuity(t *testing.T) {
	t.Parallel()
	const step = 1e-9
	type crossing struct {
		xiA, xiB       float64
		delayA, delayB float64
		early          bool
	}
	for _, sigma := range []float64{3, 7, 15, 21} {
		for _, rho := range []float64{0.001, 0.004050745, 0.02} {
			var crossings []crossing
			for _, xi := range []float64{0.05, 0.3, 0.9, 1, 2, 4.5, 5} {
				for _, b := range []float64{earlyDelay * sigma, lateDelay * sigma} {
					crossings = append(crossings, crossing{xi, xi, b - step, b + step, xi <= 1 && b < 0})
				}
			}
			for _, b := range []float64{-20, -8, -5.0001, 30.0001, 40, 100} {
				crossings = append(crossings, crossing{1 - step, 1 + step, b * sigma, b * sigma, b < 0})
			}
			for _, b := range []float64{-4.99, -2, 0, 0.5, 5, 25, 29.99} {
				crossings = append(crossings, crossing{exactMaxXi - step, exactMaxXi + step, b * sigma, b * sigma, false})
			}
			for _, b := range []float64{-10, -3, 0, 0.5, 2, 5, 40} {
				crossings = append(crossings, crossing{seriesMaxXi - step, seriesMaxXi + step, b * sigma, b * sigma, false})
			}
			for _, cr := range crossings {
				a := math.Exp(logConvolvedPdf(cr.xiA, rho, sigma, cr.delayA))
				b := math.Exp(logConvolvedPdf(cr.xiB, rho, sigma, cr.delayB))
				limit := 1e-4
				if cr.early {
					limit = 3e-2
				}
				assert.Less(t, relDiff(a, b), limit, "sigma=%v rho=%v %+v", sigma, rho, cr)
			}
		}
	}
}

func TestRegionContinuityAlongHypotheses(t *testing.T) {
	t.Parallel()
	p := newPEP(t, GaussConvoluted)
	track, err := geometry.NewInfiniteTrack(r3.Vec{}, r3.Vec{Z: -1}, 1e4, 0)
	require.NoError(t, err)
	cascade, err := geometry.NewPointCascade(r3.Vec{}, 1e4, 0)
	require.NoError(t, err)
	const step = 1e-9
	for _, h := range []geometry.Hypothesis{track, cascade} {
		for _, sigma := range []float64{3, 9, 15, 21} {
			for _, d := range []float64{2, 10, 40, 90, 160, 210} {
				pt, err := p.Prepare(h, sensorAt(r3.Vec{X: d, Z: 20}, sigma))
				require.NoError(t, err)
				for _, b := range []float64{earlyDelay * sigma, lateDelay * sigma} {
					at := pt.Emission.GeometricalTime + b
					limit := 1e-4
					if pt.Xi <= 1 && b < 0 {
						limit = 3e-2
					}
					assert.Less(t, relDiff(p.Pdf(pt, at-step), p.Pdf(pt, at+step)), limit,
						"%v d=%v sigma=%v xi=%v", h.Kind(), d, sigma, pt.Xi)
				}
			}
		}
	}
}

func TestNumericCdfNormalized(t *testing.T) {
	t.Parallel()
	for _, xi := range []float64{0.1, 0.8, 3, 12} {
		for _, rho := range []float64{0.004, 0.02} {
			for _, sigma := range []float64{3, 15} {
				assert.InDelta(t, 1., numericCdf(xi, rho, sigma, 1e6), 1e-3, "xi=%v rho=%v sigma=%v", xi, rho, sigma)
			}
		}
	}
	assert.Equal(t, 0., numericCdf(1, 0.004, 15, -151))
}

func TestApproxCdfMatchesNumeric(t *testing.T) {
	t.Parallel()
	for _, xi := range []float64{0.05, 0.3, 1, 3, 8} {
		for _, rho := range []float64{0.004, 0.02} {
			for _, sigma := range []float64{3, 15} {
				for _, delay := range []float64{-10 * sigma, -3 * sigma, 0, 2 * sigma, 20 * sigma, 3000} {
					assert.InDelta(t, numericCdf(xi, rho, sigma, delay), approxCdf(xi, rho, sigma, delay), 1e-3,
						"xi=%v rho=%v sigma=%v delay=%v", xi, rho, sigma, delay)
				}
			}
		}
	}
}

func TestCdfBoundedAndMonotone(t *testing.T) {
	t.Parallel()
	pts := []Point{
		{Xi: 0.2, Rho: 0.004, Sigma: 15},
		{Xi: 2.5, Rho: 0.02, Sigma: 3},
		{Xi: 9, Rho: 0.004, Sigma: 21},
	}
	delays := []float64{-1e6, -300, -50, -10, -1, 0, 1, 5, 20, 80, 300, 1500, 1e4, 1e6}
	for _, kind := range []Kind{Unconvoluted, GaussConvoluted, BoxConvoluted, Patched} {
		for _, s := range []Strategy{FastPlain, SlowNumeric, FastApprox} {
			p := newPEP(t, kind, WithStrategy(s))
			for _, pt := range pts {
				prev := 0.
				for _, delay := range delays {
					v := p.Cdf(pt, delay)
					assert.GreaterOrEqual(t, v, 0.)
					assert.LessOrEqual(t, v, 1.)
					assert.GreaterOrEqual(t, v, prev-1e-9, "%v %v xi=%v delay=%v", kind, s, pt.Xi, delay)
					prev = v
				}
				assert.Equal(t, 0., p.Cdf(pt, -1e6), "%v %v", kind, s)
				assert.InDelta(t, 1., p.Cdf(pt, 1e6), 1e-7, "%v %v", kind, s)
			}
		}
	}
}

func TestBoxDensity(t *testing.T) {
	t.Parallel()
	p := newPEP(t, BoxConvoluted)
	pt := Point{Xi: 1.7, Rho: 0.004, Sigma: 15}
	const h = 1e-3
	for _, delay := range []float64{-5, 0, 3, 7.5, 20, 100, 900} {
		num := (p.Cdf(pt, delay+h) - p.Cdf(pt, delay-h)) / (2 * h)
		assert.InDelta(t, p.Pdf(pt, delay), num, 1e-8, "delay=%v", delay)
	}
	assert.Equal(t, 0., p.Pdf(pt, -7.5))
	assert.True(t, math.IsInf(p.LogPdf(pt, -8), -1))
	assert.InDelta(t, 1., p.Cdf(pt, 1e5), 1e-9)
}

func TestPatchedDensity(t *testing.T) {
	t.Parallel()
	p := newPEP(t, Patched)
	for _, pt := range []Point{{Xi: 0.5, Rho: 0.004, Sigma: 15}, {Xi: 2, Rho: 0.004, Sigma: 15}, {Xi: 1, Rho: 0.02, Sigma: 3}} {
		patch := newPatch(pt.Xi, pt.Rho, pt.Sigma)
		b := patch.boundary
		assert.InDelta(t, b, pt.Sigma*math.Sqrt(2*math.Pi), 1e-12)

		// value and slope continuity at both joints
		assert.InEpsilon(t, p.Pdf(pt, -1e-9), p.Pdf(pt, 1e-9), 1e-6)
		assert.InEpsilon(t, p.Pdf(pt, b-1e-9), p.Pdf(pt, b+1e-9), 1e-6)
		const h = 1e-4
		left := (p.Pdf(pt, b-h) - p.Pdf(pt, b-3*h)) / (2 * h)
		right := (p.Pdf(pt, b+3*h) - p.Pdf(pt, b+h)) / (2 * h)
		assert.InDelta(t, left, right, 1e-7)

		for _, delay := range []float64{-20, -1, 0.5 * b, 0.9 * b, 2 * b, 300} {
			num := (p.Cdf(pt, delay+h) - p.Cdf(pt, delay-h)) / (2 * h)
			assert.InDelta(t, p.Pdf(pt, delay), num, 1e-7, "xi=%v delay=%v", pt.Xi, delay)
		}
		assert.InDelta(t, 1., p.Cdf(pt, 1e6), 1e-12)
	}
}

func TestExpectedPhotoelectrons(t *testing.T) {
	t.Parallel()
	p := newPEP(t, GaussConvoluted)
	sensor := sensorAt(r3.Vec{X: 30}, 15)

	var prev float64
	for i, e := range []float64{10, 100, 1e3, 1e4} {
		h, err := geometry.NewPointCascade(r3.Vec{}, e, 0)
		require.NoError(t, err)
		pt, err := p.Prepare(h, sensor)
		require.NoError(t, err)
		mu := p.ExpectedPE(pt)
		if i > 0 {
			assert.InEpsilon(t, 10*prev, mu, 1e-9)
		}
		assert.InDelta(t, -math.Expm1(-mu), p.HitProbability(pt), 1e-15)
		prev = mu
	}

	track, err := geometry.NewInfiniteTrack(r3.Vec{}, r3.Vec{Z: -1}, 670, 0)
	require.NoError(t, err)
	prev = math.Inf(1)
	for _, d := range []float64{1, 5, 20, 80, 200} {
		pt, err := p.Prepare(track, sensorAt(r3.Vec{X: d}, 15))
		require.NoError(t, err)
		mu := p.ExpectedPE(pt)
		assert.Less(t, mu, prev, "d=%v", d)
		assert.Greater(t, mu, 0.)
		prev = mu
	}
	bright, err := geometry.NewInfiniteTrack(r3.Vec{}, r3.Vec{Z: -1}, 2*670, 0)
	require.NoError(t, err)
	a, err := p.Prepare(bright, sensorAt(r3.Vec{X: 20}, 15))
	require.NoError(t, err)
	b, err := p.Prepare(track, sensorAt(r3.Vec{X: 20}, 15))
	require.NoError(t, err)
	assert.InEpsilon(t, 1.5*p.ExpectedPE(b), p.ExpectedPE(a), 1e-9)
}

func TestExpectedPhotoelectronsCap(t *testing.T) {
	t.Parallel()
	h, err := geometry.NewPointCascade(r3.Vec{}, 1e15, 0)
	require.NoError(t, err)
	p := newPEP(t, Unconvoluted)
	pt, err := p.Prepare(h, sensorAt(r3.Vec{X: 1}, 15))
	require.NoError(t, err)
	assert.Equal(t, DefaultMaxPE, p.ExpectedPE(pt))
	assert.Equal(t, 1., p.HitProbability(pt))

	capped := newPEP(t, Unconvoluted, WithMaxPE(50))
	mid, err := geometry.NewPointCascade(r3.Vec{}, 1e5, 0)
	require.NoError(t, err)
	pt, err = capped.Prepare(mid, sensorAt(r3.Vec{X: 5}, 15))
	require.NoError(t, err)
	require.Greater(t, meanPE(pt), 50.)
	assert.Equal(t, 50., capped.ExpectedPE(pt))
}

func TestDirectionalCascadeFavorsCherenkovCone(t *testing.T) {
	t.Parallel()
	p := newPEP(t, GaussConvoluted)
	dc, err := geometry.NewDirectionalCascade(r3.Vec{}, r3.Vec{X: 1}, 1e3, 0)
	require.NoError(t, err)
	// sensors at the same height so the acceptance term is identical
	cone := r3.Vec{X: 40 * 0.75, Y: 40 * math.Sqrt(1-0.75*0.75)}
	behind := r3.Vec{X: -40}
	a, err := p.Prepare(dc, sensorAt(cone, 15))
	require.NoError(t, err)
	b, err := p.Prepare(dc, sensorAt(behind, 15))
	require.NoError(t, err)
	assert.Greater(t, p.ExpectedPE(a), p.ExpectedPE(b))
}

func TestDelay(t *testing.T) {
	t.Parallel()
	pt := Point{Emission: geometry.Emission{GeometricalTime: 120}}
	assert.Equal(t, -20., pt.Delay(100))
	assert.Equal(t, 0., pt.Delay(120))
}
