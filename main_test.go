package main

import (
	"encoding/csv"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/wildstyl3r/pandel/internal/config"
	"github.com/wildstyl3r/pandel/internal/geometry"
	"github.com/wildstyl3r/pandel/internal/ice"
	"github.com/wildstyl3r/pandel/internal/pep"
	"github.com/wildstyl3r/pandel/internal/report"
)

type fixture struct {
	dir    string
	config string
}

func writeFile(t *testing.T, name string, lines []string) {
	t.Helper()
	require.NoError(t, os.WriteFile(name, []byte(strings.Join(lines, "\n")+"\n"), 0o600))
}

// newFixture writes a 3x3 string detector, pulses of one down-going track
// and the seeds table. Lengths are written in cm.
func newFixture(t *testing.T) fixture {
	t.Helper()
	dir := t.TempDir()
	track, err := geometry.NewFromAngles(geometry.InfiniteTrack, r3.Vec{X: 10, Y: -5}, 2.6, 1, 1e4, 0)
	require.NoError(t, err)

	geo := []string{"# string om x y z orientation sensitivity"}
	pulses := []string{"# event string om time charge"}
	n := 0
	for s := range 9 {
		x := float64(s%3)*60 - 60
		y := float64(s/3)*60 - 60
		for om := range 10 {
			pos := r3.Vec{X: x, Y: y, Z: 90 - 20*float64(om)}
			geo = append(geo, fmt.Sprintf("%d %d %g %g %g -1 1", s+1, om+1, 100*pos.X, 100*pos.Y, 100*pos.Z))
			e, err := geometry.Compute(track, pos, -1, pep.DefaultMinDistance)
			require.NoError(t, err)
			if e.Distance < 80 {
				for _, event := range []int{1, 2, 4} {
					pulses = append(pulses, fmt.Sprintf("%d %d %d %g %d", event, s+1, om+1, e.GeometricalTime+5+float64(n%7), 1+n%3))
				}
				n++
			}
		}
	}
	require.Greater(t, n, 5)

	seeds := []string{
		"# event kind x y z theta phi energy t0",
		"1 0 1500 -300 0 2.5 1.1 1e4 0",
		"2 0 1000 -500 0 2.6 1 1e4 0",
		"2 0 100000 0 0 2.6 1 1e4 0",
		"3 0 0 0 0 2.6 1 1e4 0",
	}
	writeFile(t, filepath.Join(dir, "geo.txt"), geo)
	writeFile(t, filepath.Join(dir, "pulses.txt"), pulses)
	writeFile(t, filepath.Join(dir, "seeds.txt"), seeds)
	writeFile(t, filepath.Join(dir, "zenith.txt"), []string{"-1 0.5", "0 1", "1 2"})

	cfg := filepath.Join(dir, "run.toml")
	writeFile(t, cfg, []string{
		fmt.Sprintf("OutputDir = %q", filepath.Join(dir, "out")),
		fmt.Sprintf("Geometry = %q", filepath.Join(dir, "geo.txt")),
		fmt.Sprintf("Pulses = %q", filepath.Join(dir, "pulses.txt")),
		fmt.Sprintf("Seeds = %q", filepath.Join(dir, "seeds.txt")),
		`InputUnits = ["cm"]`,
		"NoiseRate = 1e-8",
		"",
		"[Models.spe]",
		`Likelihood = "SPE1st"`,
		"",
		"[Models.mpe]",
		`Likelihood = "MPE"`,
		`Double = "MPE"`,
		`ZenithWeight = "atm"`,
		fmt.Sprintf("ZenithTable = %q", filepath.Join(dir, "zenith.txt")),
		"Fit = true",
		"",
		"[Models.absent]",
		`PulseMapName = "clean"`,
	})
	return fixture{dir: dir, config: cfg}
}

func readTable(t *testing.T, name string) map[string][]string {
	t.Helper()
	file, err := os.Open(name)
	require.NoError(t, err)
	defer file.Close()
	rows, err := csv.NewReader(file).ReadAll()
	require.NoError(t, err)
	table := map[string][]string{}
	for _, row := range rows[1:] {
		table[row[0]] = row
	}
	return table
}

func value(t *testing.T, s string) float64 {
	t.Helper()
	v, err := strconv.ParseFloat(s, 64)
	require.NoError(t, err)
	return v
}

func TestRun(t *testing.T) {
	fx := newFixture(t)
	fs := flag.NewFlagSet("pandel", flag.ContinueOnError)
	df := report.NewDataFlags(fs)
	require.NoError(t, fs.Parse([]string{"-llh", "-modes"}))

	require.NoError(t, run(fx.config, 3, false, df))
	out := filepath.Join(fx.dir, "out")

	spe := readTable(t, filepath.Join(out, "spe_summary.csv"))
	require.Len(t, spe, 3, "event 4 has no seed")
	for _, event := range []string{"1", "2"} {
		llh := value(t, spe[event][1])
		assert.Less(t, llh, 0.)
		assert.Equal(t, "0", spe[event][7], "spe is not fitted")
		assert.Equal(t, "NaN", spe[event][12])
	}
	assert.Equal(t, "NaN", spe["3"][1], "no pulses")
	assert.InDelta(t, 1500., value(t, spe["1"][2]), 1e-9, "output units follow the input units")

	mpe := readTable(t, filepath.Join(out, "mpe_summary.csv"))
	for _, event := range []string{"1", "2"} {
		assert.Equal(t, "1", mpe[event][7], "mpe is fitted")
		assert.False(t, strings.EqualFold(mpe[event][12], "NaN"))
		fitted := value(t, mpe[event][1])
		assert.Less(t, fitted, 0.)
	}

	absent := readTable(t, filepath.Join(out, "absent_summary.csv"))
	for _, row := range absent {
		assert.Equal(t, "NaN", row[1])
	}

	llh := readTable(t, filepath.Join(out, "spe_llh.csv"))
	assert.NotEmpty(t, llh)
	var sum float64
	for key, row := range llh {
		if strings.HasPrefix(key, "1/") {
			sum += value(t, row[4])
		}
	}
	assert.InDelta(t, value(t, spe["1"][1]), sum, 1e-6)

	modes := readTable(t, filepath.Join(out, "spe_modes.csv"))
	assert.Len(t, modes, 2)
	for _, row := range modes {
		require.Len(t, row, 6)
		assert.Greater(t, value(t, row[2]), 0.)
	}
	_, err := os.Stat(filepath.Join(out, "spe_pdf.csv"))
	assert.True(t, os.IsNotExist(err))
}

func TestRunErrors(t *testing.T) {
	fx := newFixture(t)
	df := report.NewDataFlags(flag.NewFlagSet("pandel", flag.ContinueOnError))
	assert.Error(t, run(filepath.Join(fx.dir, "missing"), 1, false, df))

	bad := filepath.Join(fx.dir, "bad.toml")
	body, err := os.ReadFile(fx.config)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(bad, []byte(strings.Replace(string(body), `"SPE1st"`, `"SPE2nd"`, 1)), 0o600))
	assert.Error(t, run(bad, 1, false, df))
}

func TestIceModelShared(t *testing.T) {
	dir := t.TempDir()
	table := filepath.Join(dir, "layers.txt")
	writeFile(t, table, []string{"# depth absorption scattering", "-500 120 30", "0 98 33.3", "500 80 25"})

	rn := runner{ice: map[string]ice.Model{}}
	layered := config.LikelihoodParameters{IceTable: table}
	first, err := rn.medium(&layered)
	require.NoError(t, err)
	require.NoError(t, os.Remove(table))
	second, err := rn.medium(&layered)
	require.NoError(t, err, "the table is read only once")
	assert.Same(t, first, second)

	preset := config.LikelihoodParameters{IcePreset: ice.DefaultPreset}
	bulk, err := rn.medium(&preset)
	require.NoError(t, err)
	again, err := rn.medium(&preset)
	require.NoError(t, err)
	assert.Same(t, bulk, again)
	assert.NotSame(t, first, bulk)
	assert.Len(t, rn.ice, 2)
}
