package constants

import "math"

const SpeedOfLight float64 = 0.299792458 // [m/ns]
const PhaseIndex float64 = 1.3195        // ice, phase refractive index
const GroupIndex float64 = 1.35634       // ice, group refractive index
const GroupSpeed = SpeedOfLight / GroupIndex
const CosCherenkov = 1. / PhaseIndex

var SinCherenkov = math.Sqrt(1. - CosCherenkov*CosCherenkov)
var TanCherenkov = SinCherenkov / CosCherenkov

const Sqrt2Pi = 2.50662827463100050242
const LnSqrt2Pi = 0.91893853320467274178
