package likelihood

import (
	"fmt"
	"math"
	"slices"

	"github.com/wildstyl3r/pandel/internal/geometry"
	"github.com/wildstyl3r/pandel/internal/utils"
)

// Prior is an auxiliary log-likelihood term depending on the hypothesis only.
type Prior interface {
	LogLikelihood(h geometry.Hypothesis) float64
}

// Priors holds named priors for lookup by configuration.
type Priors map[string]Prior

func (p Priors) Lookup(name string) (Prior, error) {
	prior, ok := p[name]
	if !ok {
		known := make([]string, 0, len(p))
		for k := range p {
			known = append(known, k)
		}
		slices.Sort(known)
		return nil, fmt.Errorf("%w %q (known: %v)", ErrUnknownPrior, name, known)
	}
	return prior, nil
}

// ZenithWeight is a tabulated weight against the cosine of the zenith angle
// the particle comes from, linearly interpolated.
type ZenithWeight struct {
	cosZenith []float64
	weight    []float64
}

func NewZenithWeight(rows [][]float64) (*ZenithWeight, error) {
	if len(rows) < 2 {
		return nil, fmt.Errorf("zenith weight table needs at least two rows, got %d", len(rows))
	}
	for _, row := range rows {
		if len(row) != 2 {
			return nil, fmt.Errorf("bad zenith weight row %v", row)
		}
	}
	rows = slices.Clone(rows)
	slices.SortFunc(rows, func(a, b []float64) int {
		switch {
		case a[0] < b[0]:
			return -1
		case a[0] > b[0]:
			return 1
		}
		return 0
	})
	z := ZenithWeight{cosZenith: make([]float64, len(rows)), weight: make([]float64, len(rows))}
	for i, row := range rows {
		if !(row[0] >= -1 && row[0] <= 1) || !(row[1] >= 0) || math.IsInf(row[1], 1) {
			return nil, fmt.Errorf("bad zenith weight row %v", row)
		}
		if i > 0 && row[0] == rows[i-1][0] {
			return nil, fmt.Errorf("repeated cos zenith %v", row[0])
		}
		z.cosZenith[i], z.weight[i] = row[0], row[1]
	}
	return &z, nil
}

func ReadZenithWeight(filename string) (*ZenithWeight, error) {
	rows, err := utils.ReadFloatPairs(filename)
	if err != nil {
		return nil, err
	}
	z, err := NewZenithWeight(rows)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", filename, err)
	}
	return z, nil
}

// LogLikelihood is -Inf where the weight vanishes. A point cascade has no
// direction and gets weight one.
func (z *ZenithWeight) LogLikelihood(h geometry.Hypothesis) float64 {
	if h.Kind() == geometry.PointCascade {
		return 0
	}
	return math.Log(utils.Interpolate(z.cosZenith, z.weight, -h.DirCosZ()))
}
