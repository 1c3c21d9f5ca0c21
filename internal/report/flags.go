// Package report writes the per-model CSV outputs of a run.
package report

import (
	"flag"
	"strconv"

	"github.com/wildstyl3r/pandel/internal/config"
)

type DataItem struct {
	saveFlag   *bool
	fileSuffix string
}

// Column is one output column and the unit its values carry.
type Column struct {
	Name string
	Unit []config.UnitElement
}

type TableItem struct {
	DataItem
	columns []Column
	rows    func(*Extractor) [][]float64
	labels  func(*Extractor) []string
}

type DataFlags struct {
	all        *bool
	tables     map[string]TableItem
	outputPath string
}

// NewDataFlags registers the output flags on fs.
func NewDataFlags(fs *flag.FlagSet) DataFlags {
	return DataFlags{
		all: fs.Bool("all", false, "save every available output"),
		tables: map[string]TableItem{
			"Event summary": {
				DataItem: DataItem{
					saveFlag:   fs.Bool("sum", true, "save per-event summary"),
					fileSuffix: "summary",
				},
				columns: []Column{
					{Name: "event"},
					{Name: "logL"},
					{Name: "x", Unit: config.LengthUnit},
					{Name: "y", Unit: config.LengthUnit},
					{Name: "z", Unit: config.LengthUnit},
					{Name: "theta"},
					{Name: "phi"},
					{Name: "fitted"},
					{Name: "converged"},
					{Name: "evaluations"},
					{Name: "sensors"},
					{Name: "charge"},
					{Name: "double logL"},
				},
				rows:   summaryRows,
				labels: eventLabels,
			},
			"Sensor likelihood": {
				DataItem: DataItem{
					saveFlag:   fs.Bool("llh", false, "save per-sensor log-likelihood contributions"),
					fileSuffix: "llh",
				},
				columns: []Column{
					{Name: "event/sensor"},
					{Name: "hits"},
					{Name: "charge"},
					{Name: "first time", Unit: config.TimeUnit},
					{Name: "logL"},
				},
				rows:   contributionRows,
				labels: contributionLabels,
			},
			"PDF scan": {
				DataItem: DataItem{
					saveFlag:   fs.Bool("pdf", false, "save arrival time density scan of the brightest sensor"),
					fileSuffix: "pdf",
				},
				columns: []Column{
					{Name: "event/sensor"},
					{Name: "delay", Unit: config.TimeUnit},
					{Name: "pdf", Unit: []config.UnitElement{{Class: config.Time, Power: -1}}},
					{Name: "cdf"},
				},
				rows:   scanRows,
				labels: scanLabels,
			},
			"PDF landmarks": {
				DataItem: DataItem{
					saveFlag:   fs.Bool("modes", false, "save mode and median delay of the scanned sensors"),
					fileSuffix: "modes",
				},
				columns: []Column{
					{Name: "event/sensor"},
					{Name: "mode", Unit: config.TimeUnit},
					{Name: "peak pdf", Unit: []config.UnitElement{{Class: config.Time, Power: -1}}},
					{Name: "median", Unit: config.TimeUnit},
					{Name: "hit probability"},
					{Name: "expected PE"},
				},
				rows:   landmarkRows,
				labels: landmarkLabels,
			},
		},
	}
}

func (df *DataFlags) SetOutputPath(path string) {
	if path != "" && path[len(path)-1] != '/' {
		df.outputPath = path + "/"
	} else {
		df.outputPath = path
	}
}

func (df *DataFlags) GetOutputPath() string {
	return df.outputPath
}

// Enabled tells whether the output with the given file suffix is selected.
func (df *DataFlags) Enabled(fileSuffix string) bool {
	for _, item := range df.tables {
		if item.fileSuffix == fileSuffix {
			return *item.saveFlag || *df.all
		}
	}
	return false
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}
