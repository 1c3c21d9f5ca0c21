package report

import (
	"fmt"
	"math"
	"strconv"

	"gonum.org/v1/gonum/floats"

	"github.com/wildstyl3r/pandel/internal/config"
	"github.com/wildstyl3r/pandel/internal/detector"
	"github.com/wildstyl3r/pandel/internal/geometry"
	"github.com/wildstyl3r/pandel/internal/likelihood"
	"github.com/wildstyl3r/pandel/internal/pep"
	"github.com/wildstyl3r/pandel/internal/utils"
)

// Record is the outcome of one event under one model.
type Record struct {
	Event               int
	Best                geometry.Hypothesis
	LogLikelihood       float64
	Fitted              bool
	Converged           bool
	Evaluations         int
	Sensors             int
	Charge              float64
	DoubleLogLikelihood float64
	Contributions       []likelihood.Contribution
	Scan                *Scan
}

// Scan samples the arrival time density of one sensor over the delay.
type Scan struct {
	Key            detector.Key
	Delay          []float64
	Pdf            []float64
	Cdf            []float64
	Mode           float64
	Peak           float64 // density at Mode
	Median         float64
	HitProbability float64
	ExpectedPE     float64
}

const (
	scanPoints    = 200
	scanSigmas    = 5.
	scanPrecision = 1e-3 // [ns]
)

// NewScan samples from -5 sigma to a few mean Pandel delays. The median is
// NaN when less than half the distribution lies inside the range.
func NewScan(pdf pep.Provider, h geometry.Hypothesis, s *detector.Sensor) (*Scan, error) {
	pt, err := pdf.Prepare(h, s)
	if err != nil {
		return nil, fmt.Errorf("scan of %s: %w", s.Key.Label(), err)
	}
	from := -scanSigmas * pt.Sigma
	to := math.Max(2*scanSigmas*pt.Sigma, 4*(pt.Xi+1)/pt.Rho)
	at := func(delay float64) float64 { return pt.Emission.GeometricalTime + delay }

	sc := Scan{
		Key:            s.Key,
		Delay:          make([]float64, scanPoints),
		Pdf:            make([]float64, scanPoints),
		Cdf:            make([]float64, scanPoints),
		HitProbability: pdf.HitProbability(pt),
		ExpectedPE:     pdf.ExpectedPE(pt),
	}
	floats.Span(sc.Delay, from, to)
	for i, d := range sc.Delay {
		sc.Pdf[i] = pdf.Pdf(pt, at(d))
		sc.Cdf[i] = pdf.Cdf(pt, at(d))
	}
	span := utils.Bracket{Lo: from, Hi: to}
	sc.Mode, sc.Peak = utils.Peak(func(d float64) float64 { return pdf.Pdf(pt, at(d)) }, span, scanPrecision)
	sc.Median = math.NaN()
	if pdf.Cdf(pt, at(to)) >= 0.5 {
		sc.Median = utils.Crossing(func(d float64) bool { return pdf.Cdf(pt, at(d)) >= 0.5 }, span, scanPrecision).Hi
	}
	return &sc, nil
}

// Brightest is the sensor with the largest charge in r, nil for an empty response.
func Brightest(r *detector.Response) *detector.Sensor {
	if r.Len() == 0 {
		return nil
	}
	charges := make([]float64, r.Len())
	for i := range charges {
		charges[i] = r.Sensor(i).Charge()
	}
	return r.Sensor(utils.Argmax(charges)).Sensor
}

type Extractor struct {
	params  *config.LikelihoodParameters
	records []Record
}

func NewExtractor(params *config.LikelihoodParameters) *Extractor {
	return &Extractor{params: params}
}

func (de *Extractor) Add(r Record) {
	de.records = append(de.records, r)
}

func (de *Extractor) Records() []Record {
	return de.records
}

// TotalLogLikelihood sums the finite event log-likelihoods and counts the rest.
func (de *Extractor) TotalLogLikelihood() (sum float64, failed int) {
	logs := make([]float64, 0, len(de.records))
	for _, r := range de.records {
		if math.IsNaN(r.LogLikelihood) || math.IsInf(r.LogLikelihood, 0) {
			failed++
			continue
		}
		logs = append(logs, r.LogLikelihood)
	}
	return floats.Sum(logs), failed
}

// Spread is the mean and standard deviation of the finite event
// log-likelihoods; NaN when fewer than two are finite.
func (de *Extractor) Spread() (mean, std float64) {
	logs := make([]float64, 0, len(de.records))
	for _, r := range de.records {
		if utils.IsFinite(r.LogLikelihood) {
			logs = append(logs, r.LogLikelihood)
		}
	}
	if len(logs) < 2 {
		return math.NaN(), math.NaN()
	}
	mean, variance := utils.MeanAndVariance(logs, true)
	return mean, math.Sqrt(variance)
}

func (de *Extractor) Save(modelName string, df DataFlags) error {
	for name, item := range df.tables {
		if !*item.saveFlag && !*df.all {
			continue
		}
		header := make([]string, len(item.columns))
		for i, c := range item.columns {
			header[i] = c.Name
		}
		labels, rows := item.labels(de), item.rows(de)
		data := make(utils.CSV, len(rows))
		for i, row := range rows {
			line := []string{labels[i]}
			for j, v := range row {
				line = append(line, formatFloat(config.Canonical(v, item.columns[j+1].Unit, de.params.OutputUnits(), false)))
			}
			data[i] = line
		}
		if err := utils.WriteAsCSV(data, de.params.MakeDir, df.outputPath, item.fileSuffix, modelName, header); err != nil {
			return fmt.Errorf("unable to save %s: %w", name, err)
		}
	}
	return nil
}

func boolValue(b bool) float64 {
	if b {
		return 1
	}
	return 0
}

func eventLabels(de *Extractor) []string {
	labels := make([]string, len(de.records))
	for i, r := range de.records {
		labels[i] = strconv.Itoa(r.Event)
	}
	return labels
}

func summaryRows(de *Extractor) [][]float64 {
	rows := make([][]float64, len(de.records))
	for i, r := range de.records {
		pos := r.Best.Position()
		rows[i] = []float64{
			r.LogLikelihood,
			pos.X, pos.Y, pos.Z,
			r.Best.Theta(), r.Best.Phi(),
			boolValue(r.Fitted), boolValue(r.Converged),
			float64(r.Evaluations),
			float64(r.Sensors), r.Charge,
			r.DoubleLogLikelihood,
		}
	}
	return rows
}

func sensorLabel(event int, k detector.Key) string {
	return strconv.Itoa(event) + "/" + k.Label()
}

func contributionLabels(de *Extractor) (labels []string) {
	for _, r := range de.records {
		for _, c := range r.Contributions {
			labels = append(labels, sensorLabel(r.Event, c.Key))
		}
	}
	return labels
}

func contributionRows(de *Extractor) (rows [][]float64) {
	for _, r := range de.records {
		for _, c := range r.Contributions {
			rows = append(rows, []float64{float64(c.Hits), c.Charge, c.FirstTime, c.LogLikelihood})
		}
	}
	return rows
}

func scanLabels(de *Extractor) (labels []string) {
	for _, r := range de.records {
		if r.Scan == nil {
			continue
		}
		for range r.Scan.Delay {
			labels = append(labels, sensorLabel(r.Event, r.Scan.Key))
		}
	}
	return labels
}

func scanRows(de *Extractor) (rows [][]float64) {
	for _, r := range de.records {
		if r.Scan == nil {
			continue
		}
		for i := range r.Scan.Delay {
			rows = append(rows, []float64{r.Scan.Delay[i], r.Scan.Pdf[i], r.Scan.Cdf[i]})
		}
	}
	return rows
}

func landmarkLabels(de *Extractor) (labels []string) {
	for _, r := range de.records {
		if r.Scan != nil {
			labels = append(labels, sensorLabel(r.Event, r.Scan.Key))
		}
	}
	return labels
}

func landmarkRows(de *Extractor) (rows [][]float64) {
	for _, r := range de.records {
		if s := r.Scan; s != nil {
			rows = append(rows, []float64{s.Mode, s.Peak, s.Median, s.HitProbability, s.ExpectedPE})
		}
	}
	return rows
}
