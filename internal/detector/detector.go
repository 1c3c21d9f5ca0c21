// Package detector holds the static sensor geometry and the per-event hit data.
package detector

import (
	"errors"
	"fmt"
	"log/slog"
	"math"
	"slices"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/wildstyl3r/pandel/internal/utils"
)

var (
	ErrDuplicateSensor = errors.New("detector: duplicate sensor key")
	ErrBadSensor       = errors.New("detector: invalid sensor record")
)

// Key identifies a sensor by string number and position on the string.
type Key struct {
	String   int
	Position int
}

func (k Key) Label() string {
	return fmt.Sprintf("%d-%d", k.String, k.Position)
}

func (k Key) Compare(o Key) int {
	if k.String != o.String {
		return k.String - o.String
	}
	return k.Position - o.Position
}

type Sensor struct {
	Key         Key
	Position    r3.Vec  // [m]
	Orientation float64 // z-cosine of the sensor axis, -1 for down-looking
	Jitter      float64 // [ns]
	Sensitivity float64
}

// Configuration owns the sensors of a detector. It is read-only once built
// and may be shared between goroutines.
type Configuration struct {
	sensors []Sensor
	index   map[Key]int
}

// NewConfiguration copies sensors; a zero jitter is replaced by defaultJitter.
func NewConfiguration(sensors []Sensor, defaultJitter float64) (*Configuration, error) {
	c := Configuration{
		sensors: make([]Sensor, 0, len(sensors)),
		index:   make(map[Key]int, len(sensors)),
	}
	for _, s := range sensors {
		if _, some := c.index[s.Key]; some {
			return nil, fmt.Errorf("%w %s", ErrDuplicateSensor, s.Key.Label())
		}
		if s.Jitter == 0 {
			s.Jitter = defaultJitter
		}
		if !utils.IsFinite(s.Position.X) || !utils.IsFinite(s.Position.Y) || !utils.IsFinite(s.Position.Z) ||
			!(s.Jitter > 0) || math.IsInf(s.Jitter, 0) ||
			!(s.Sensitivity >= 0) || math.IsInf(s.Sensitivity, 0) ||
			math.IsNaN(s.Orientation) || math.Abs(s.Orientation) > 1 {
			return nil, fmt.Errorf("%w %s: %+v", ErrBadSensor, s.Key.Label(), s)
		}
		c.index[s.Key] = len(c.sensors)
		c.sensors = append(c.sensors, s)
	}
	return &c, nil
}

func (c *Configuration) Len() int {
	return len(c.sensors)
}

func (c *Configuration) Sensor(k Key) (*Sensor, bool) {
	i, ok := c.index[k]
	if !ok {
		return nil, false
	}
	return &c.sensors[i], true
}

func (c *Configuration) Sensors() []Sensor {
	return c.sensors
}

type Hit struct {
	Time   float64 // [ns], leading edge
	Charge float64 // [PE]
	Width  float64 // [ns]
}

// HitSensor is one sensor with its hits of one event, ordered by time.
type HitSensor struct {
	Sensor    *Sensor
	Hits      []Hit
	chargeCap float64
	charge    float64
	summed    bool
}

// NewHitSensor drops hits with a non-finite time or an anomalous charge and
// returns false when nothing is left.
func NewHitSensor(sensor *Sensor, hits []Hit, chargeCap float64) (*HitSensor, bool) {
	hs := HitSensor{Sensor: sensor, chargeCap: chargeCap}
	for _, hit := range hits {
		if !utils.IsFinite(hit.Time) {
			continue
		}
		if !(hit.Charge >= 0) || math.IsInf(hit.Charge, 0) {
			slog.Warn("dropping hit with anomalous charge", "sensor", sensor.Key.Label(), "time", hit.Time, "charge", hit.Charge)
			continue
		}
		hs.Hits = append(hs.Hits, hit)
	}
	if len(hs.Hits) == 0 {
		return nil, false
	}
	slices.SortStableFunc(hs.Hits, func(a, b Hit) int {
		switch {
		case a.Time < b.Time:
			return -1
		case a.Time > b.Time:
			return 1
		}
		return 0
	})
	return &hs, true
}

func (hs *HitSensor) Len() int {
	return len(hs.Hits)
}

// First is the earliest hit.
func (hs *HitSensor) First() Hit {
	return hs.Hits[0]
}

// Charge is the total charge, summed once and clamped to the configured cap.
func (hs *HitSensor) Charge() float64 {
	if hs.summed {
		return hs.charge
	}
	var sum float64
	for _, hit := range hs.Hits {
		sum += hit.Charge
	}
	if hs.chargeCap > 0 && sum > hs.chargeCap {
		slog.Warn("clamping sensor charge", "sensor", hs.Sensor.Key.Label(), "charge", sum, "cap", hs.chargeCap)
		sum = hs.chargeCap
	}
	hs.charge = sum
	hs.summed = true
	return sum
}

// Response owns the hit sensors of one event.
type Response struct {
	sensors []HitSensor
}

// NewResponse keeps the sensors known to cfg that have at least one valid hit.
// Sensors are ordered by key.
func NewResponse(cfg *Configuration, pulses map[Key][]Hit, chargeCap float64) *Response {
	keys := make([]Key, 0, len(pulses))
	for k := range pulses {
		keys = append(keys, k)
	}
	slices.SortFunc(keys, Key.Compare)

	r := Response{sensors: make([]HitSensor, 0, len(keys))}
	for _, k := range keys {
		sensor, ok := cfg.Sensor(k)
		if !ok {
			slog.Warn("pulses on unknown sensor", "sensor", k.Label())
			continue
		}
		if hs, ok := NewHitSensor(sensor, pulses[k], chargeCap); ok {
			r.sensors = append(r.sensors, *hs)
		}
	}
	return &r
}

func (r *Response) Len() int {
	return len(r.sensors)
}

// Sensor returns the i-th hit sensor; the pointer stays owned by the response.
func (r *Response) Sensor(i int) *HitSensor {
	return &r.sensors[i]
}

func (r *Response) TotalCharge() (q float64) {
	for i := range r.sensors {
		q += r.sensors[i].Charge()
	}
	return
}

func (r *Response) HitCount() (n int) {
	for i := range r.sensors {
		n += r.sensors[i].Len()
	}
	return
}
