package track

import (
	"math"
	"time"
)

// Observation is one timestamped target estimate from the perception
// subsystem. Positions and velocities are in the vehicle-carried NED frame:
// X north, Y east, Z down, origin at the vehicle. The commander forwards
// observations to the active guidance controller unmodified; staleness and
// confidence filtering is the controller's responsibility.
type Observation struct {
	Timestamp time.Time `json:"timestamp"`

	// Target offset from the vehicle in meters.
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`

	// Target velocity relative to the vehicle in m/s, when the tracker
	// provides one. Zero otherwise.
	VX float64 `json:"vx"`
	VY float64 `json:"vy"`
	VZ float64 `json:"vz"`

	// Confidence is the tracker's estimate quality in [0, 1].
	Confidence float64 `json:"confidence"`
}

// Age returns the observation age at the given instant.
func (o Observation) Age(now time.Time) time.Duration {
	return now.Sub(o.Timestamp)
}

// HorizontalRange returns the horizontal distance to the target in meters.
func (o Observation) HorizontalRange() float64 {
	return math.Hypot(o.X, o.Y)
}
