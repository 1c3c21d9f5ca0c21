// Package geometry describes emission hypotheses and the light path from an
// emitter to a sensor.
package geometry

import (
	"errors"
	"fmt"
	"math"
	"strings"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/wildstyl3r/pandel/internal/utils"
)

var (
	ErrZeroDirection = errors.New("geometry: zero length direction")
	ErrNonFinite     = errors.New("geometry: non-finite hypothesis parameter")
	ErrCosineRange   = errors.New("geometry: emission angle cosine out of range")
	ErrUnknownKind   = errors.New("geometry: unknown hypothesis kind")
	ErrEnergy        = errors.New("geometry: hypothesis energy must be positive")
)

type Kind int

const (
	InfiniteTrack Kind = iota
	PointCascade
	DirectionalCascade
)

var kindNames = []string{"InfiniteTrack", "PointCascade", "DirectionalCascade"}

func (k Kind) String() string {
	if k < 0 || int(k) >= len(kindNames) {
		return fmt.Sprintf("Kind(%d)", int(k))
	}
	return kindNames[k]
}

func ParseKind(name string) (Kind, error) {
	for i := range kindNames {
		if strings.EqualFold(name, kindNames[i]) {
			return Kind(i), nil
		}
	}
	return 0, fmt.Errorf("%w %q", ErrUnknownKind, name)
}

// Hypothesis is an immutable emitter: a track or a cascade with a vertex,
// a unit direction, an energy [GeV] and a reference time [ns].
type Hypothesis struct {
	kind   Kind
	pos    r3.Vec
	dir    r3.Vec
	energy float64
	t0     float64
}

func finiteVec(v r3.Vec) bool {
	return utils.IsFinite(v.X) && utils.IsFinite(v.Y) && utils.IsFinite(v.Z)
}

// New validates the parameters and normalizes dir. A point cascade accepts a
// zero direction.
func New(kind Kind, pos, dir r3.Vec, energy, t0 float64) (Hypothesis, error) {
	if kind < InfiniteTrack || kind > DirectionalCascade {
		return Hypothesis{}, fmt.Errorf("%w %d", ErrUnknownKind, int(kind))
	}
	if !finiteVec(pos) || !finiteVec(dir) || !utils.IsFinite(energy) || !utils.IsFinite(t0) {
		return Hypothesis{}, fmt.Errorf("%w: pos=%v dir=%v energy=%v t0=%v", ErrNonFinite, pos, dir, energy, t0)
	}
	if energy <= 0 {
		return Hypothesis{}, fmt.Errorf("%s: %w, got %v", kind, ErrEnergy, energy)
	}
	norm := r3.Norm(dir)
	switch {
	case norm > 0:
		dir = r3.Scale(1/norm, dir)
	case kind != PointCascade:
		return Hypothesis{}, fmt.Errorf("%s: %w", kind, ErrZeroDirection)
	}
	return Hypothesis{kind: kind, pos: pos, dir: dir, energy: energy, t0: t0}, nil
}

func NewInfiniteTrack(pos, dir r3.Vec, energy, t0 float64) (Hypothesis, error) {
	return New(InfiniteTrack, pos, dir, energy, t0)
}

func NewPointCascade(pos r3.Vec, energy, t0 float64) (Hypothesis, error) {
	return New(PointCascade, pos, r3.Vec{}, energy, t0)
}

func NewDirectionalCascade(pos, dir r3.Vec, energy, t0 float64) (Hypothesis, error) {
	return New(DirectionalCascade, pos, dir, energy, t0)
}

// NewFromAngles takes the direction the particle comes from: zenith theta and azimuth phi.
func NewFromAngles(kind Kind, pos r3.Vec, theta, phi, energy, t0 float64) (Hypothesis, error) {
	return New(kind, pos, Direction(theta, phi), energy, t0)
}

// Direction is the propagation direction of a particle arriving from (theta, phi).
func Direction(theta, phi float64) r3.Vec {
	sinTheta, cosTheta := math.Sincos(theta)
	sinPhi, cosPhi := math.Sincos(phi)
	return r3.Vec{X: -sinTheta * cosPhi, Y: -sinTheta * sinPhi, Z: -cosTheta}
}

func (h Hypothesis) Kind() Kind        { return h.kind }
func (h Hypothesis) Position() r3.Vec  { return h.pos }
func (h Hypothesis) Direction() r3.Vec { return h.dir }
func (h Hypothesis) DirCosX() float64  { return h.dir.X }
func (h Hypothesis) DirCosY() float64  { return h.dir.Y }
func (h Hypothesis) DirCosZ() float64  { return h.dir.Z }
func (h Hypothesis) Energy() float64   { return h.energy }
func (h Hypothesis) T0() float64       { return h.t0 }

func (h Hypothesis) Theta() float64 {
	return math.Atan2(math.Hypot(h.dir.X, h.dir.Y), -h.dir.Z)
}

func (h Hypothesis) Phi() float64 {
	phi := math.Atan2(-h.dir.Y, -h.dir.X)
	if phi < 0 {
		phi += 2 * math.Pi
	}
	return phi
}

// Translated returns the same emitter moved by offset.
func (h Hypothesis) Translated(offset r3.Vec) Hypothesis {
	h.pos = r3.Add(h.pos, offset)
	return h
}

func (h Hypothesis) String() string {
	return fmt.Sprintf("%s{pos=(%.3f, %.3f, %.3f) theta=%.4f phi=%.4f E=%g t0=%g}",
		h.kind, h.pos.X, h.pos.Y, h.pos.Z, h.Theta(), h.Phi(), h.energy, h.t0)
}
