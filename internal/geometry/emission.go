package geometry

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/spatial/r3"

	c "github.com/wildstyl3r/pandel/internal/constants"
)

const cosineRoundOff = 1e-9

// Emission is the unscattered light path between a hypothesis and a sensor.
type Emission struct {
	Distance        float64 // [m], never below the configured minimum
	CosEta          float64 // arrival direction against the sensor axis
	GeometricalTime float64 // [ns], includes the hypothesis t0
	EmissionZ       float64 // [m], z of the effective emission point
	CosAxis         float64 // directional cascades: emitter axis against the sensor direction
}

// Compute derives the emission geometry for a sensor at pos whose axis has
// z-cosine orientation.
func Compute(h Hypothesis, pos r3.Vec, orientation, minDistance float64) (Emission, error) {
	var (
		e         Emission
		photonDir r3.Vec
	)
	r := r3.Sub(pos, h.pos)
	switch h.kind {
	case InfiniteTrack:
		l := r3.Dot(r, h.dir)
		perp := r3.Sub(r, r3.Scale(l, h.dir))
		d := r3.Norm(perp)
		var radial r3.Vec
		if d > 0 {
			radial = r3.Scale(1/d, perp)
		} else {
			radial = anyPerpendicular(h.dir)
		}
		d = math.Max(d, minDistance)
		e.Distance = d
		e.GeometricalTime = h.t0 + (l-d/c.TanCherenkov)/c.SpeedOfLight + d/c.SinCherenkov/c.GroupSpeed
		e.EmissionZ = h.pos.Z + (l-d/c.TanCherenkov)*h.dir.Z
		photonDir = r3.Add(r3.Scale(c.CosCherenkov, h.dir), r3.Scale(c.SinCherenkov, radial))
	case PointCascade, DirectionalCascade:
		d := r3.Norm(r)
		if d > 0 {
			photonDir = r3.Scale(1/d, r)
		} else {
			photonDir = r3.Vec{Z: 1}
		}
		d = math.Max(d, minDistance)
		e.Distance = d
		e.GeometricalTime = h.t0 + d/c.GroupSpeed
		e.EmissionZ = h.pos.Z
		if h.kind == DirectionalCascade {
			e.CosAxis = clampCosine(r3.Dot(h.dir, photonDir))
		}
	default:
		return Emission{}, fmt.Errorf("%w %d", ErrUnknownKind, int(h.kind))
	}

	cosEta := -photonDir.Z * orientation
	if math.Abs(cosEta) > 1+cosineRoundOff || math.IsNaN(cosEta) {
		return Emission{}, fmt.Errorf("%w: %v", ErrCosineRange, cosEta)
	}
	e.CosEta = clampCosine(cosEta)
	return e, nil
}

func clampCosine(v float64) float64 {
	return math.Max(-1, math.Min(1, v))
}

func anyPerpendicular(u r3.Vec) r3.Vec {
	axis := r3.Vec{X: 1}
	if math.Abs(u.X) > 0.9 {
		axis = r3.Vec{Y: 1}
	}
	return r3.Unit(r3.Cross(u, axis))
}
