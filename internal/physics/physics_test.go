package physics

import (
	"math"
	"testing"
	"time"
)

func almostEqual(a, b, eps float64) bool {
	return math.Abs(a-b) <= eps
}

func TestHeadingToVector(t *testing.T) {
	cases := []struct {
		heading   float64
		magnitude float64
		n, e      float64
	}{
		{0, 1, 1, 0},
		{90, 1, 0, 1},
		{180, 2, -2, 0},
		{270, 1, 0, -1},
		{45, math.Sqrt2, 1, 1},
	}
	for _, tc := range cases {
		v := HeadingToVector(tc.heading, tc.magnitude)
		if !almostEqual(v.N, tc.n, 1e-9) || !almostEqual(v.E, tc.e, 1e-9) {
			t.Errorf("HeadingToVector(%v, %v) = (%v, %v), want (%v, %v)",
				tc.heading, tc.magnitude, v.N, v.E, tc.n, tc.e)
		}
	}
}

func TestVectorBearing(t *testing.T) {
	cases := []struct {
		v       Vector2D
		bearing float64
	}{
		{Vector2D{N: 1, E: 0}, 0},
		{Vector2D{N: 0, E: 1}, 90},
		{Vector2D{N: -1, E: 0}, 180},
		{Vector2D{N: 0, E: -1}, 270},
	}
	for _, tc := range cases {
		if got := tc.v.Bearing(); !almostEqual(got, tc.bearing, 1e-9) {
			t.Errorf("Bearing(%+v) = %v, want %v", tc.v, got, tc.bearing)
		}
	}
}

func TestRotate(t *testing.T) {
	north := Vector2D{N: 1, E: 0}

	east := north.Rotate(90)
	if !almostEqual(east.N, 0, 1e-9) || !almostEqual(east.E, 1, 1e-9) {
		t.Errorf("north rotated 90 = %+v, want east", east)
	}

	west := north.Rotate(-90)
	if !almostEqual(west.N, 0, 1e-9) || !almostEqual(west.E, -1, 1e-9) {
		t.Errorf("north rotated -90 = %+v, want west", west)
	}

	back := north.Rotate(37).Rotate(-37)
	if !almostEqual(back.N, 1, 1e-9) || !almostEqual(back.E, 0, 1e-9) {
		t.Errorf("rotation round trip = %+v, want north", back)
	}
}

func TestClampMagnitude(t *testing.T) {
	t.Run("within limit is unchanged", func(t *testing.T) {
		v := Vector2D{N: 1, E: 1}
		if got := v.ClampMagnitude(5); got != v {
			t.Errorf("ClampMagnitude = %+v, want %+v", got, v)
		}
	})

	t.Run("over limit preserves direction", func(t *testing.T) {
		v := Vector2D{N: 3, E: 4}
		got := v.ClampMagnitude(1)
		if !almostEqual(got.Magnitude(), 1, 1e-9) {
			t.Errorf("magnitude = %v, want 1", got.Magnitude())
		}
		if !almostEqual(got.N/got.E, v.N/v.E, 1e-9) {
			t.Errorf("direction changed: %+v vs %+v", got, v)
		}
	})

	t.Run("zero vector stays zero", func(t *testing.T) {
		got := Vector2D{}.ClampMagnitude(1)
		if got.Magnitude() != 0 {
			t.Errorf("magnitude = %v, want 0", got.Magnitude())
		}
	})
}

func TestHeadingError(t *testing.T) {
	cases := []struct {
		from, to, want float64
	}{
		{0, 10, 10},
		{10, 0, -10},
		{350, 10, 20},
		{10, 350, -20},
		{0, 180, 180},
		{90, 90, 0},
	}
	for _, tc := range cases {
		if got := HeadingError(tc.from, tc.to); !almostEqual(got, tc.want, 1e-9) {
			t.Errorf("HeadingError(%v, %v) = %v, want %v", tc.from, tc.to, got, tc.want)
		}
	}
}

func TestDescentTime(t *testing.T) {
	if got := DescentTime(10, 0.5); got != 20*time.Second {
		t.Errorf("DescentTime(10, 0.5) = %v, want 20s", got)
	}
	if got := DescentTime(10, 0); got != 0 {
		t.Errorf("DescentTime with zero rate = %v, want 0", got)
	}
	if got := DescentTime(-1, 1); got != 0 {
		t.Errorf("DescentTime with negative height = %v, want 0", got)
	}
}

func TestMagneticDeclination(t *testing.T) {
	// Toronto area: declination is roughly -10 degrees (West) in the 2020s.
	d := MagneticDeclination(43.68, -79.63, 170, time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC))
	if d > -5 || d < -15 {
		t.Errorf("declination near Toronto = %v, want roughly -10", d)
	}
}

func TestTrueMagneticRoundTrip(t *testing.T) {
	const decl = -10.5
	for _, h := range []float64{0, 5, 90, 179.9, 355} {
		m := TrueToMagnetic(h, decl)
		back := MagneticToTrue(m, decl)
		if !almostEqual(back, h, 1e-9) {
			t.Errorf("round trip %v -> %v -> %v", h, m, back)
		}
	}
}
