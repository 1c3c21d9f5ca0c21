package detector

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/wildstyl3r/pandel/internal/utils"
)

// ReadGeometry reads rows of "string position x y z orientation sensitivity [jitter]".
func ReadGeometry(filename string, defaultJitter float64) (*Configuration, error) {
	rows, err := utils.ReadFloatRows(filename, 7, 8)
	if err != nil {
		return nil, fmt.Errorf("geometry %s: %w", filename, err)
	}
	sensors := make([]Sensor, 0, len(rows))
	for _, row := range rows {
		s := Sensor{
			Key:         Key{String: int(row[0]), Position: int(row[1])},
			Position:    r3.Vec{X: row[2], Y: row[3], Z: row[4]},
			Orientation: row[5],
			Sensitivity: row[6],
		}
		if len(row) == 8 {
			s.Jitter = row[7]
		}
		sensors = append(sensors, s)
	}
	cfg, err := NewConfiguration(sensors, defaultJitter)
	if err != nil {
		return nil, fmt.Errorf("geometry %s: %w", filename, err)
	}
	return cfg, nil
}

// Pulses maps event id to the hits of every sensor in that event.
type Pulses map[int]map[Key][]Hit

// ReadPulses reads rows of "event string position time charge [width]".
func ReadPulses(filename string) (Pulses, error) {
	rows, err := utils.ReadFloatRows(filename, 5, 6)
	if err != nil {
		return nil, fmt.Errorf("pulses %s: %w", filename, err)
	}
	pulses := Pulses{}
	for _, row := range rows {
		event := int(row[0])
		if float64(event) != row[0] || math.IsInf(row[0], 0) {
			return nil, fmt.Errorf("pulses %s: non-integer event id %v", filename, row[0])
		}
		if pulses[event] == nil {
			pulses[event] = map[Key][]Hit{}
		}
		key := Key{String: int(row[1]), Position: int(row[2])}
		hit := Hit{Time: row[3], Charge: row[4]}
		if len(row) == 6 {
			hit.Width = row[5]
		}
		pulses[event][key] = append(pulses[event][key], hit)
	}
	return pulses, nil
}
