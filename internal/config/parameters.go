// Package config loads the TOML run description: input files, units and
// one or more likelihood setups.
package config

import (
	"errors"
	"fmt"
	"math"
	"path/filepath"
	"reflect"
	"slices"

	"github.com/BurntSushi/toml"

	"github.com/wildstyl3r/pandel/internal/geometry"
	"github.com/wildstyl3r/pandel/internal/ice"
	"github.com/wildstyl3r/pandel/internal/likelihood"
	"github.com/wildstyl3r/pandel/internal/pep"
	"github.com/wildstyl3r/pandel/internal/utils"
)

var (
	ErrUnknownModel = errors.New("config: unknown model")
	ErrAmbiguous    = errors.New("config: conflicting fields")
	ErrMissing      = errors.New("config: missing fields")
	ErrInvalid      = errors.New("config: invalid value")
)

type Config struct {
	OutputDir string
	Geometry  string
	Pulses    string
	PulseMaps map[string]string // named alternatives to Pulses
	Seeds     string
	Models    map[string]LikelihoodParameters
	LikelihoodParameters

	InputUnits  []string
	OutputUnits []string

	meta toml.MetaData
}

// Load decodes filename, adding the .toml extension when missing. Without
// a Models table the global section becomes a single model named after the
// file.
func Load(filename string) (*Config, error) {
	if filepath.Ext(filename) != ".toml" {
		filename += ".toml"
	}
	var config Config
	meta, err := toml.DecodeFile(filename, &config)
	if err != nil {
		return nil, err
	}
	config.meta = meta

	if config.InputUnits, err = checkUnits(config.InputUnits); err != nil {
		return nil, fmt.Errorf("input units: %w", err)
	}
	if len(config.OutputUnits) == 0 {
		config.OutputUnits = config.InputUnits
	}
	if config.OutputUnits, err = checkUnits(config.OutputUnits); err != nil {
		return nil, fmt.Errorf("output units: %w", err)
	}

	var missing []string
	if config.Geometry == "" {
		missing = append(missing, "Geometry")
	}
	if config.Pulses == "" && len(config.PulseMaps) == 0 {
		missing = append(missing, "Pulses")
	}
	if config.Seeds == "" {
		missing = append(missing, "Seeds")
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("%w: %v", ErrMissing, missing)
	}

	if len(config.Models) == 0 {
		config.Models = map[string]LikelihoodParameters{utils.GetFilename(filename): {}}
	}
	return &config, nil
}

// ModelNames lists the models in sorted order.
func (c *Config) ModelNames() []string {
	names := make([]string, 0, len(c.Models))
	for name := range c.Models {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// PulseFile resolves a pulse map name; the empty name is the Pulses file.
func (c *Config) PulseFile(name string) (string, bool) {
	if name == "" {
		return c.Pulses, c.Pulses != ""
	}
	file, ok := c.PulseMaps[name]
	return file, ok
}

type LikelihoodParameters struct {
	PulseMapName     string
	NoiseRate        float64 // noise probability per ns
	JitterTime       float64 // [ns]
	IcePreset        string
	IceTable         string
	PDF              string
	Likelihood       string
	IntegralStrategy string
	MPETimingError   float64 // [ns]
	MPEBoxTolerance  float64
	Hypothesis       string
	MinDistance      float64 // [m]
	MaxPEFromNoHit   float64
	ChargeCap        float64 // [PE]
	ZenithWeight     string
	ZenithTable      string
	Double           string
	Fit              bool
	MakeDir          bool

	_pdf         pep.Kind
	_strategy    pep.Strategy
	_variant     likelihood.Variant
	_hypothesis  geometry.Kind
	_double      likelihood.Mode
	_outputUnits []string
	_inputUnits  []string
}

func (p *LikelihoodParameters) PDFKind() pep.Kind                   { return p._pdf }
func (p *LikelihoodParameters) Strategy() pep.Strategy              { return p._strategy }
func (p *LikelihoodParameters) Variant() likelihood.Variant         { return p._variant }
func (p *LikelihoodParameters) HypothesisKind() geometry.Kind       { return p._hypothesis }
func (p *LikelihoodParameters) InputUnits() []string                { return p._inputUnits }
func (p *LikelihoodParameters) OutputUnits() []string               { return p._outputUnits }
func (p *LikelihoodParameters) DoubleMode() (likelihood.Mode, bool) { return p._double, p.Double != "" }

var defaultValues = map[string]any{ // in m, ns, GeV
	"JitterTime":       15.,
	"IcePreset":        ice.DefaultPreset,
	"PDF":              pep.GaussConvoluted.String(),
	"Likelihood":       likelihood.SPE1st.String(),
	"IntegralStrategy": pep.FastPlain.String(),
	"MPEBoxTolerance":  likelihood.DefaultBoxTolerance,
	"Hypothesis":       geometry.InfiniteTrack.String(),
	"MinDistance":      pep.DefaultMinDistance,
	"MaxPEFromNoHit":   pep.DefaultMaxPE,
	"ChargeCap":        1e5,
	"Fit":              false,
	"MakeDir":          false,
}

var requiredFields = []string{"NoiseRate"}

var fieldsXor = map[string][]string{
	"IcePreset": {"IceTable"},
	"IceTable":  {"IcePreset"},
}

var fieldsAnd = map[string][]string{
	"ZenithWeight": {"ZenithTable"},
	"ZenithTable":  {"ZenithWeight"},
}

var valueUnits = map[string][]UnitElement{
	"JitterTime":     TimeUnit,
	"MPETimingError": TimeUnit,
	"MinDistance":    LengthUnit,
}

func (p *LikelihoodParameters) toCanonical(parameterNames map[string]struct{}, units []string) {
	v := reflect.ValueOf(p).Elem()
	for name := range parameterNames {
		field := v.FieldByName(name)
		if classes, some := valueUnits[name]; some && field.CanFloat() {
			field.SetFloat(Canonical(field.Float(), classes, units, true))
		}
	}
}

func (c *Config) isDefined(path []string, field string) bool {
	return c.meta.IsDefined(append(slices.Clone(path), field)...)
}

func (c *Config) checkFieldProblems(path []string) error {
	var ambiguities [][]string
	for field, alternatives := range fieldsXor {
		if !c.isDefined(path, field) {
			continue
		}
		found := []string{field}
		for _, alternative := range alternatives {
			if c.isDefined(path, alternative) {
				found = append(found, alternative)
			}
		}
		if len(found) > 1 && field < found[1] {
			ambiguities = append(ambiguities, found)
		}
	}
	if len(ambiguities) > 0 {
		return fmt.Errorf("%w: %v", ErrAmbiguous, ambiguities)
	}
	return nil
}

/*
field value priority:
1. model table
2. global section
3. default

a field defined at a higher level also hides its xor alternatives below it.
*/

// Model returns the unified parameters of the named model, converted to
// m, ns and GeV and checked.
func (c *Config) Model(name string) (LikelihoodParameters, error) {
	local, ok := c.Models[name]
	if !ok {
		return LikelihoodParameters{}, fmt.Errorf("%w %q", ErrUnknownModel, name)
	}
	localPath := []string{"Models", name}
	if err := c.checkFieldProblems(nil); err != nil {
		return LikelihoodParameters{}, fmt.Errorf("global section: %w", err)
	}
	if err := c.checkFieldProblems(localPath); err != nil {
		return LikelihoodParameters{}, fmt.Errorf("model %s: %w", name, err)
	}

	p := local
	defined := map[string]struct{}{}
	exclude := map[string]struct{}{}
	markDefined := func(field string) {
		defined[field] = struct{}{}
		for _, x := range fieldsXor[field] {
			exclude[x] = struct{}{}
		}
	}

	modelReflect := reflect.ValueOf(&p).Elem()
	globalReflect := reflect.ValueOf(&c.LikelihoodParameters).Elem()
	modelType := modelReflect.Type()
	for i := range modelType.NumField() {
		if f := modelType.Field(i); f.IsExported() && c.isDefined(localPath, f.Name) {
			markDefined(f.Name)
		}
	}
	for i := range modelType.NumField() {
		f := modelType.Field(i)
		if !f.IsExported() || !c.meta.IsDefined(f.Name) {
			continue
		}
		_, isDefined := defined[f.Name]
		_, isExcluded := exclude[f.Name]
		if !isDefined && !isExcluded {
			modelReflect.Field(i).Set(globalReflect.Field(i))
			markDefined(f.Name)
		}
	}

	p.toCanonical(defined, c.InputUnits)

	for field, value := range defaultValues {
		_, isDefined := defined[field]
		_, isExcluded := exclude[field]
		if !isDefined && !isExcluded {
			modelReflect.FieldByName(field).Set(reflect.ValueOf(value))
		}
	}

	var missing []string
	for _, field := range requiredFields {
		if _, some := defined[field]; !some {
			missing = append(missing, field)
		}
	}
	for field, requirements := range fieldsAnd {
		if _, some := defined[field]; !some {
			continue
		}
		for _, requirement := range requirements {
			if _, some := defined[requirement]; !some {
				missing = append(missing, fmt.Sprintf("%s (required by %s)", requirement, field))
			}
		}
	}
	if len(missing) > 0 {
		slices.Sort(missing)
		return LikelihoodParameters{}, fmt.Errorf("model %s: %w: %v", name, ErrMissing, missing)
	}

	p._inputUnits = c.InputUnits
	p._outputUnits = c.OutputUnits
	if err := p.resolve(); err != nil {
		return LikelihoodParameters{}, fmt.Errorf("model %s: %w", name, err)
	}
	if _, some := defined["MPETimingError"]; some && p._variant != likelihood.MPE {
		return LikelihoodParameters{}, fmt.Errorf("model %s: %w: MPETimingError needs the MPE likelihood, got %s", name, ErrInvalid, p.Likelihood)
	}
	return p, nil
}

func positive(name string, v float64) error {
	if !(v > 0) || math.IsInf(v, 1) {
		return fmt.Errorf("%w: %s must be positive and finite, got %v", ErrInvalid, name, v)
	}
	return nil
}

func nonNegative(name string, v float64) error {
	if !(v >= 0) || math.IsInf(v, 1) {
		return fmt.Errorf("%w: %s must be non-negative and finite, got %v", ErrInvalid, name, v)
	}
	return nil
}

// resolve parses the named choices and checks the numeric ranges.
func (p *LikelihoodParameters) resolve() error {
	var errs []error
	var err error
	if p._pdf, err = pep.ParseKind(p.PDF); err != nil {
		errs = append(errs, err)
	}
	if p._strategy, err = pep.ParseStrategy(p.IntegralStrategy); err != nil {
		errs = append(errs, err)
	}
	if p._variant, err = likelihood.ParseVariant(p.Likelihood); err != nil {
		errs = append(errs, err)
	}
	if p._hypothesis, err = geometry.ParseKind(p.Hypothesis); err != nil {
		errs = append(errs, err)
	}
	if p.Double != "" {
		if p._double, err = likelihood.ParseMode(p.Double); err != nil {
			errs = append(errs, err)
		}
	}
	if p.IceTable == "" {
		if _, err = ice.PresetProperties(p.IcePreset); err != nil {
			errs = append(errs, err)
		}
	}
	errs = append(errs,
		positive("NoiseRate", p.NoiseRate),
		positive("JitterTime", p.JitterTime),
		positive("MinDistance", p.MinDistance),
		positive("MaxPEFromNoHit", p.MaxPEFromNoHit),
		nonNegative("ChargeCap", p.ChargeCap),
		nonNegative("MPETimingError", p.MPETimingError),
		nonNegative("MPEBoxTolerance", p.MPEBoxTolerance),
	)
	return errors.Join(errs...)
}
