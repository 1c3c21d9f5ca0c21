package pep

import (
	"math"

	c "github.com/wildstyl3r/pandel/internal/constants"
	"github.com/wildstyl3r/pandel/internal/geometry"
)

// Empirical light yield of the expected photoelectron count.
const (
	trackYield        = 1.4  // [PE m^1/2]
	criticalEnergy    = 670. // [GeV], radiative losses take over above
	cascadeYield      = 0.1  // [PE m / GeV]
	acceptanceSlope   = 0.6  // sensor acceptance against arrival cosine
	cherenkovBoostAmp = 0.6  // directional cascade light at the Cherenkov angle
)

// meanPE is the mean photoelectron count of a sensor for the prepared point.
func meanPE(pt Point) float64 {
	e := pt.Emission
	acceptance := 0.5 * (1 + acceptanceSlope*e.CosEta)
	attenuation := math.Exp(-e.Distance / pt.Attenuation)
	var mu float64
	switch pt.Hypothesis {
	case geometry.InfiniteTrack:
		mu = trackYield * (1 + pt.Energy/criticalEnergy) * attenuation / math.Sqrt(e.Distance)
	case geometry.PointCascade, geometry.DirectionalCascade:
		mu = cascadeYield * pt.Energy * attenuation / e.Distance
		if pt.Hypothesis == geometry.DirectionalCascade {
			sinAxis := math.Sqrt(math.Max(0, 1-e.CosAxis*e.CosAxis))
			mu *= 1 + cherenkovBoostAmp*(e.CosAxis*c.CosCherenkov+sinAxis*c.SinCherenkov)
		}
	}
	mu *= pt.Sensitivity * acceptance
	if !(mu > 0) {
		return 0
	}
	return mu
}

// HitProbability is the Poisson probability of at least one photoelectron.
func (p *PEP) HitProbability(pt Point) float64 {
	return -math.Expm1(-meanPE(pt))
}

// ExpectedPE is -log of the probability of no hit, capped at the configured maximum.
func (p *PEP) ExpectedPE(pt Point) float64 {
	noHit := math.Exp(-meanPE(pt))
	if noHit == 0 {
		return p.maxPE
	}
	return math.Min(-math.Log(noHit), p.maxPE)
}
