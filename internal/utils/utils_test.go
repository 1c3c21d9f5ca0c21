package utils

import (
	"encoding/csv"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInterpolate(t *testing.T) {
	t.Parallel()
	xs := []float64{0, 10, 20}
	ys := []float64{1, 3, -1}

	tests := []struct {
		x, want float64
	}{
		{-5, 1},
		{0, 1},
		{5, 2},
		{10, 3},
		{15, 1},
		{25, -1},
	}
	for _, tt := range tests {
		assert.InDelta(t, tt.want, Interpolate(xs, ys, tt.x), 1e-15, "x=%v", tt.x)
	}
	assert.True(t, math.IsNaN(Interpolate(nil, nil, 1)))
}

func TestAverageOver(t *testing.T) {
	t.Parallel()
	xs := []float64{0, 10, 20}
	ys := []float64{0, 10, 0}

	assert.InDelta(t, 5., AverageOver(xs, ys, 0, 20), 1e-12)
	assert.InDelta(t, 5., AverageOver(xs, ys, 20, 0), 1e-12)
	assert.InDelta(t, 7.5, AverageOver(xs, ys, 5, 10), 1e-12)
	assert.InDelta(t, 4., AverageOver(xs, ys, 4, 4), 1e-12)
}

func TestSearches(t *testing.T) {
	t.Parallel()
	x, fx := Peak(func(x float64) float64 { return 3 - (x-1.25)*(x-1.25) }, Bracket{Lo: -10, Hi: 10}, 1e-9)
	assert.InDelta(t, 1.25, x, 1e-8)
	assert.InDelta(t, 3., fx, 1e-15)

	b := Crossing(func(x float64) bool { return x*x >= 2 }, Bracket{Lo: 0, Hi: 2}, 1e-12)
	assert.LessOrEqual(t, b.Width(), 1e-12)
	assert.Less(t, b.Lo*b.Lo, 2.)
	assert.GreaterOrEqual(t, b.Hi*b.Hi, 2.)
	assert.InDelta(t, math.Sqrt2, b.Mid(), 1e-11)

	// an empty bracket is already narrow enough
	b = Crossing(func(float64) bool { panic("no evaluation expected") }, Bracket{Lo: 1, Hi: 1}, 1e-12)
	assert.Equal(t, Bracket{Lo: 1, Hi: 1}, b)
}

func TestStatistics(t *testing.T) {
	t.Parallel()
	s := []int{1, 2, 3, 4}
	assert.Equal(t, 10, SumSlice(s))
	assert.InDelta(t, 2.5, Average(s), 1e-15)
	mean, variance := MeanAndVariance(s, true)
	assert.InDelta(t, 2.5, mean, 1e-15)
	assert.InDelta(t, 5./3., variance, 1e-15)
	assert.Equal(t, 3, Argmax(s))
}

func TestReadFloatRows(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	name := filepath.Join(dir, "table.txt")
	require.NoError(t, os.WriteFile(name, []byte("# depth abs scat\n\n1 2 3\n4 5 6 7\n"), 0o600))

	rows, err := ReadFloatRows(name, 3, 4)
	require.NoError(t, err)
	assert.Equal(t, [][]float64{{1, 2, 3}, {4, 5, 6, 7}}, rows)

	_, err = ReadFloatRows(name, 3, 3)
	assert.Error(t, err)

	_, err = ReadFloatPairs(filepath.Join(dir, "missing.txt"))
	assert.Error(t, err)

	bad := filepath.Join(dir, "bad.txt")
	require.NoError(t, os.WriteFile(bad, []byte("1 x\n"), 0o600))
	_, err = ReadFloatPairs(bad)
	assert.Error(t, err)
}

func TestWriteAsCSV(t *testing.T) {
	t.Parallel()
	dir := t.TempDir() + "/"
	data := CSV{{"2-10", "b"}, {"2-9", "a"}, {"1-30", "c"}}
	require.NoError(t, WriteAsCSV(data, true, dir, "llh", "model.toml", []string{"key", "value"}))

	file, err := os.Open(filepath.Join(dir, "llh", "model.csv"))
	require.NoError(t, err)
	defer file.Close()
	rows, err := csv.NewReader(file).ReadAll()
	require.NoError(t, err)
	assert.Equal(t, [][]string{{"key", "value"}, {"1-30", "c"}, {"2-9", "a"}, {"2-10", "b"}}, rows)
	assert.Equal(t, "model", GetFilename("/tmp/model.toml"))
}
