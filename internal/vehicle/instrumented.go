package vehicle

// SetpointObserver is notified of every commanded velocity setpoint.
type SetpointObserver func(sp Setpoint)

// Instrumented wraps a vehicle and fans each commanded setpoint out to
// observers, for flight logging and live streaming. Observers run on the
// caller's goroutine and must not block.
type Instrumented struct {
	Interface
	observers []SetpointObserver
}

// NewInstrumented wraps inner with the given observers.
func NewInstrumented(inner Interface, observers ...SetpointObserver) *Instrumented {
	return &Instrumented{Interface: inner, observers: observers}
}

// SetVelocitySetpoint forwards the setpoint and notifies observers. The
// setpoint is reported even when the forward fails, so the log reflects
// what was commanded.
func (v *Instrumented) SetVelocitySetpoint(sp Setpoint) error {
	err := v.Interface.SetVelocitySetpoint(sp)
	for _, observe := range v.observers {
		observe(sp)
	}
	return err
}
