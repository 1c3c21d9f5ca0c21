package ice

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPresets(t *testing.T) {
	t.Parallel()
	assert.Equal(t, []string{"H0", "H1", "H2", "H3", "H4"}, PresetNames())
	for _, name := range PresetNames() {
		model, err := Preset(name)
		require.NoError(t, err)
		assert.Equal(t, name, model.Name())
		require.NoError(t, model.At(0).Validate())
		assert.Equal(t, model.At(-500), model.Between(100, -300))
	}

	h2, err := Preset(DefaultPreset)
	require.NoError(t, err)
	p := h2.At(0)
	assert.InDelta(t, 1./98., p.Absorptivity(), 1e-15)
	assert.InDelta(t, 1./33.3, p.InvEffScattLength(), 1e-15)
	assert.InDelta(t, 0.84*10+3.1386486973881-3.9*0.5+4.6*0.25, p.EffectiveDistance(10, 0.5), 1e-12)

	_, err = Preset("H9")
	assert.ErrorIs(t, err, ErrUnknownPreset)
}

func TestNewBulkValidates(t *testing.T) {
	t.Parallel()
	_, err := NewBulk("bad", Properties{AbsorptionLength: 10, TauScale: 0, EffectiveScatteringLength: 10, P1: 1})
	assert.ErrorIs(t, err, ErrBadProperties)
}

func TestLayered(t *testing.T) {
	t.Parallel()
	base, err := PresetProperties("H0")
	require.NoError(t, err)
	model, err := NewLayered("test", [][]float64{{100, 50, 20}, {-100, 100, 40}}, base)
	require.NoError(t, err)

	p := model.At(0)
	assert.InDelta(t, 0.5*(1./50+1./100), p.Absorptivity(), 1e-15)
	assert.InDelta(t, 0.5*(1./20+1./40), p.InvEffScattLength(), 1e-15)
	assert.Equal(t, base.TauScale, p.TauScale)
	assert.InDelta(t, 1./100, model.At(-1000).Absorptivity(), 1e-15)

	avg := model.Between(-100, 100)
	assert.InDelta(t, p.Absorptivity(), avg.Absorptivity(), 1e-15)
	assert.InDelta(t, model.At(50).Absorptivity(), model.Between(50, 50).Absorptivity(), 1e-15)
}

func TestLayeredMalformed(t *testing.T) {
	t.Parallel()
	base, _ := PresetProperties("H2")
	for name, rows := range map[string][][]float64{
		"single":    {{0, 1, 1}},
		"duplicate": {{0, 1, 1}, {0, 2, 2}},
		"negative":  {{0, 1, 1}, {10, -2, 2}},
		"columns":   {{0, 1}, {10, 2}},
	} {
		_, err := NewLayered(name, rows, base)
		assert.ErrorIs(t, err, ErrMalformedTable, name)
	}

	dir := t.TempDir()
	_, err := ReadLayered(filepath.Join(dir, "missing.txt"), base)
	assert.ErrorIs(t, err, ErrMalformedTable)

	name := filepath.Join(dir, "spice.txt")
	require.NoError(t, os.WriteFile(name, []byte("# z abs scat\n-500 120 30\n500 80 20\n"), 0o600))
	model, err := ReadLayered(name, base)
	require.NoError(t, err)
	assert.Equal(t, "spice", model.Name())
	assert.InDelta(t, 0.5*(1./120+1./80), model.At(0).Absorptivity(), 1e-15)
}
