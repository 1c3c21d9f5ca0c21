package config

import (
	"fmt"

	"github.com/wildstyl3r/pandel/internal/utils"
)

// canonical units: m, ns, GeV
var unitToCanonical = map[string]float64{
	"km":  1e3,  // [m]
	"m":   1,    // [m]
	"cm":  1e-2, // [m]
	"mm":  1e-3, // [m]
	"s":   1e9,  // [ns]
	"ms":  1e6,  // [ns]
	"us":  1e3,  // [ns]
	"ns":  1,    // [ns]
	"MeV": 1e-3, // [GeV]
	"GeV": 1,    // [GeV]
	"TeV": 1e3,  // [GeV]
	"PeV": 1e6,  // [GeV]
}

type UnitClass int

const (
	Length UnitClass = iota
	Time
	Energy
)

var unitsInClass = map[UnitClass][]string{
	Length: {"mm", "cm", "m", "km"},
	Time:   {"ns", "us", "ms", "s"},
	Energy: {"MeV", "GeV", "TeV", "PeV"},
}

var classesOfUnits = map[string]UnitClass{
	"km":  Length,
	"m":   Length,
	"cm":  Length,
	"mm":  Length,
	"s":   Time,
	"ms":  Time,
	"us":  Time,
	"ns":  Time,
	"MeV": Energy,
	"GeV": Energy,
	"TeV": Energy,
	"PeV": Energy,
}

type UnitElement = struct {
	Class UnitClass
	Power int
}

var defaultUnits = []string{"m", "ns", "GeV"}

var (
	LengthUnit = []UnitElement{{Class: Length, Power: 1}}
	TimeUnit   = []UnitElement{{Class: Time, Power: 1}}
	EnergyUnit = []UnitElement{{Class: Energy, Power: 1}}
)

// checkUnits completes units with the canonical unit of every class not
// named, and reports unknown units and classes named twice.
func checkUnits(units []string) (extended []string, err error) {
	classes := map[UnitClass]string{}
	for _, unit := range units {
		class, known := classesOfUnits[unit]
		if !known {
			return nil, fmt.Errorf("unknown unit %q", unit)
		}
		if other, some := classes[class]; some {
			return nil, fmt.Errorf("unit conflict: %s and %s", other, unit)
		}
		classes[class] = unit
	}
	extended = append([]string(nil), units...)
	for _, unit := range defaultUnits {
		if _, some := classes[classesOfUnits[unit]]; !some {
			extended = append(extended, unit)
		}
	}
	return extended, nil
}

// Canonical converts v measured in units to m, ns and GeV when direct is
// set, and back otherwise.
func Canonical(v float64, classes []UnitElement, units []string, direct bool) float64 {
	for _, uc := range classes {
		unit := utils.Intersect(unitsInClass[uc.Class], units)
		if unit == nil {
			continue
		}
		factor := unitToCanonical[*unit]
		if (uc.Power > 0) != direct {
			factor = 1 / factor
		}
		for range utils.IntAbs(uc.Power) {
			v *= factor
		}
	}
	return v
}
