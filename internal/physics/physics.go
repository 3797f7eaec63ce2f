package physics

import (
	"math"
	"time"

	"github.com/westphae/geomag/pkg/egm96"
	"github.com/westphae/geomag/pkg/wmm"
)

// Constants
const (
	G         = 9.80665  // Gravity (m/s^2)
	FtToM     = 0.3048   // Conversion factor from feet to meters
	MToFt     = 3.28084  // Conversion factor from meters to feet
	DegToRad  = math.Pi / 180
	RadToDeg  = 180 / math.Pi
	KnotsToMs = 0.514444 // Conversion factor from Knots to m/s
	MsToKnots = 1.94384  // Conversion factor from m/s to Knots
)

// ------------------------------------------------------------------------------------------------
// NAVIGATION
// ------------------------------------------------------------------------------------------------

// Vector2D represents a 2D vector in the local horizontal plane
type Vector2D struct {
	N float64 // North component
	E float64 // East component
}

// Magnitude returns the vector length
func (v Vector2D) Magnitude() float64 {
	return math.Hypot(v.N, v.E)
}

// Scale returns the vector scaled by k
func (v Vector2D) Scale(k float64) Vector2D {
	return Vector2D{N: v.N * k, E: v.E * k}
}

// ClampMagnitude returns the vector with its magnitude limited to max,
// preserving direction
func (v Vector2D) ClampMagnitude(max float64) Vector2D {
	m := v.Magnitude()
	if m <= max || m == 0 {
		return v
	}
	return v.Scale(max / m)
}

// Rotate returns the vector rotated compass-wise (clockwise viewed from
// above) by the given angle in degrees
func (v Vector2D) Rotate(deg float64) Vector2D {
	rad := deg * DegToRad
	cos, sin := math.Cos(rad), math.Sin(rad)
	return Vector2D{
		N: v.N*cos - v.E*sin,
		E: v.N*sin + v.E*cos,
	}
}

// Bearing returns the compass bearing of the vector in degrees (0 = North)
func (v Vector2D) Bearing() float64 {
	deg := math.Atan2(v.E, v.N) * RadToDeg
	return NormalizeHeading(deg)
}

// HeadingToVector converts a compass heading (degrees) and magnitude to N/E components
func HeadingToVector(headingDeg float64, magnitude float64) Vector2D {
	rad := headingDeg * DegToRad
	return Vector2D{
		N: magnitude * math.Cos(rad),
		E: magnitude * math.Sin(rad),
	}
}

// NormalizeHeading wraps a heading into [0, 360)
func NormalizeHeading(deg float64) float64 {
	deg = math.Mod(deg, 360)
	if deg < 0 {
		deg += 360
	}
	return deg
}

// HeadingError returns the shortest signed angular difference from one
// heading to another, in degrees within (-180, 180]
func HeadingError(fromDeg, toDeg float64) float64 {
	diff := math.Mod(toDeg-fromDeg, 360)
	if diff > 180 {
		diff -= 360
	}
	if diff <= -180 {
		diff += 360
	}
	return diff
}

// ------------------------------------------------------------------------------------------------
// DESCENT PROFILE
// ------------------------------------------------------------------------------------------------

// DescentTime returns the time needed to descend the given height at the
// given rate. Non-positive rates yield zero, the caller treats that as
// "unknown".
func DescentTime(heightM, rateMs float64) time.Duration {
	if rateMs <= 0 || heightM <= 0 {
		return 0
	}
	return time.Duration(heightM / rateMs * float64(time.Second))
}

// ------------------------------------------------------------------------------------------------
// GEOMAGNETICS
// ------------------------------------------------------------------------------------------------

// MagneticDeclination calculates the magnetic declination for a given
// position and time using the World Magnetic Model.
// Returns declination in degrees (+East, -West).
func MagneticDeclination(lat, lon, altM float64, date time.Time) float64 {
	loc := egm96.NewLocationGeodetic(lat, lon, altM)

	mag, err := wmm.CalculateWMMMagneticField(loc, date)
	if err != nil {
		// Return 0 for safety if calculation fails
		return 0.0
	}

	return mag.D() // Declination
}

// TrueToMagnetic converts a true heading to a magnetic heading given the
// local declination (+East)
func TrueToMagnetic(trueDeg, declinationDeg float64) float64 {
	return NormalizeHeading(trueDeg - declinationDeg)
}

// MagneticToTrue converts a magnetic heading to a true heading given the
// local declination (+East)
func MagneticToTrue(magDeg, declinationDeg float64) float64 {
	return NormalizeHeading(magDeg + declinationDeg)
}
