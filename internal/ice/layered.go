package ice

import (
	"fmt"
	"slices"

	"github.com/wildstyl3r/pandel/internal/utils"
)

// Layered interpolates absorptivity and inverse scattering length linearly in
// depth. The time scale and the distance correction come from a base preset.
type Layered struct {
	name         string
	base         Properties
	depths       []float64
	absorptivity []float64
	invScatt     []float64
}

// NewLayered builds the model from rows of (depth, absorption length, effective scattering length).
func NewLayered(name string, rows [][]float64, base Properties) (*Layered, error) {
	if len(rows) < 2 {
		return nil, fmt.Errorf("%w: need at least 2 layers, got %d", ErrMalformedTable, len(rows))
	}
	if err := base.Validate(); err != nil {
		return nil, err
	}
	sorted := slices.Clone(rows)
	slices.SortFunc(sorted, func(a, b []float64) int {
		switch {
		case a[0] < b[0]:
			return -1
		case a[0] > b[0]:
			return 1
		}
		return 0
	})
	l := Layered{name: name, base: base}
	for i, row := range sorted {
		if len(row) != 3 {
			return nil, fmt.Errorf("%w: row %v must hold depth, absorption and scattering lengths", ErrMalformedTable, row)
		}
		if i > 0 && row[0] == sorted[i-1][0] {
			return nil, fmt.Errorf("%w: duplicate depth %v", ErrMalformedTable, row[0])
		}
		if !utils.IsFinite(row[0]) || !(row[1] > 0) || !(row[2] > 0) || !utils.IsFinite(row[1]) || !utils.IsFinite(row[2]) {
			return nil, fmt.Errorf("%w: invalid layer %v", ErrMalformedTable, row)
		}
		l.depths = append(l.depths, row[0])
		l.absorptivity = append(l.absorptivity, 1./row[1])
		l.invScatt = append(l.invScatt, 1./row[2])
	}
	return &l, nil
}

func ReadLayered(filename string, base Properties) (*Layered, error) {
	rows, err := utils.ReadFloatRows(filename, 3, 3)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformedTable, err)
	}
	return NewLayered(utils.GetFilename(filename), rows, base)
}

func (l *Layered) Name() string {
	return l.name
}

func (l *Layered) with(absorptivity, invScatt float64) Properties {
	p := l.base
	p.AbsorptionLength = 1. / absorptivity
	p.EffectiveScatteringLength = 1. / invScatt
	return p
}

func (l *Layered) At(depth float64) Properties {
	return l.with(
		utils.Interpolate(l.depths, l.absorptivity, depth),
		utils.Interpolate(l.depths, l.invScatt, depth),
	)
}

func (l *Layered) Between(receiverZ, emitterZ float64) Properties {
	return l.with(
		utils.AverageOver(l.depths, l.absorptivity, receiverZ, emitterZ),
		utils.AverageOver(l.depths, l.invScatt, receiverZ, emitterZ),
	)
}
