package vehicle

// Setpoint is a velocity command in the vehicle-carried NED frame:
// VX north, VY east, VZ down (positive descends), all in m/s.
// YawRate is in rad/s, positive clockwise viewed from above.
type Setpoint struct {
	VX      float64 `json:"vx"`
	VY      float64 `json:"vy"`
	VZ      float64 `json:"vz"`
	YawRate float64 `json:"yaw_rate"`
}

// FullStop is the all-axes-zero setpoint commanded when relinquishing control.
var FullStop = Setpoint{}

// Interface is the command/telemetry surface of the flight control unit.
// Commands are latest-wins at the FCU; callers do not retry here, retry
// policy (if any) belongs to the implementation owning the transport.
type Interface interface {
	// SetVelocitySetpoint commands a velocity setpoint. The FCU applies it
	// until replaced. Only valid while the FCU is in a guided mode; the FCU
	// silently ignores it otherwise.
	SetVelocitySetpoint(sp Setpoint) error

	// SetMode requests an FCU flight mode change by name. Confirmation
	// arrives asynchronously through the mode event stream.
	SetMode(name string) error

	// Mode returns the most recently reported FCU flight mode, or the empty
	// string before the first report.
	Mode() string
}

// ModeHandler receives FCU flight mode reports as they arrive.
type ModeHandler func(mode string)
