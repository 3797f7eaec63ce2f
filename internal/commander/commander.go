package commander

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/kenanunal/lander/internal/track"
	"github.com/kenanunal/lander/internal/vehicle"
	"github.com/kenanunal/lander/pkg/logger"
)

// Config contains commander configuration.
type Config struct {
	// LoopPeriod is the control-loop period. Also the poll interval of
	// RelinquishControl.
	LoopPeriod time.Duration

	// GuidedModes is the non-empty set of FCU mode names in which the
	// program has setpoint authority.
	GuidedModes []string

	// HoldMode is the FCU mode commanded when relinquishing control.
	HoldMode string
}

// TransitionSink is notified after every completed state transition.
// Notifications are delivered from the serialized commander context and must
// return promptly.
type TransitionSink interface {
	StateChanged(oldState, newState FlightState, at time.Time)
}

// TransitionSinkFunc adapts a function to the TransitionSink interface.
type TransitionSinkFunc func(oldState, newState FlightState, at time.Time)

func (f TransitionSinkFunc) StateChanged(oldState, newState FlightState, at time.Time) {
	f(oldState, newState, at)
}

// Commander owns the flight state machine: it decides which guidance
// controller is active, transitions between controllers, and drives the
// active controller once per tick while forwarding external events to it.
//
// All event entry points (OnFcuMode, OnTrackUpdate, OnTick) serialize on one
// mutex; event sources call in from their own goroutines and the mutex is
// the single-writer discipline. Controller hooks therefore never run
// concurrently with one another or with a transition in progress.
type Commander struct {
	vehicle    vehicle.Interface
	registry   Registry
	classifier ModeClassifier
	holdMode   string
	period     time.Duration
	logger     *logger.Logger

	mu     sync.Mutex
	state  FlightState
	active Controller

	sinks []TransitionSink
}

// New creates a commander and performs the construction-time transition from
// INIT to PENDING, so INIT is never observable once New returns.
//
// The registry is produced by the build callback, which receives the
// commander so controllers can hold a back-reference for requesting
// transitions (e.g. Seek requesting APPROACH).
func New(veh vehicle.Interface, cfg Config, build func(*Commander) Registry, log *logger.Logger) (*Commander, error) {
	if veh == nil {
		return nil, fmt.Errorf("vehicle interface is required")
	}
	if cfg.LoopPeriod <= 0 {
		return nil, fmt.Errorf("loop period must be positive: %v", cfg.LoopPeriod)
	}
	if len(cfg.GuidedModes) == 0 {
		return nil, fmt.Errorf("at least one guided mode is required")
	}
	if cfg.HoldMode == "" {
		return nil, fmt.Errorf("hold mode is required")
	}

	c := &Commander{
		vehicle:    veh,
		classifier: NewModeClassifier(cfg.GuidedModes),
		holdMode:   cfg.HoldMode,
		period:     cfg.LoopPeriod,
		logger:     log.Named("commander"),
		state:      StateInit,
	}

	c.registry = build(c)
	if err := c.registry.validate(); err != nil {
		return nil, err
	}

	// Construction happens-before any event delivery, so no lock is needed
	// for the initial transition.
	c.transitionLocked(StatePending)

	return c, nil
}

// AddTransitionSink registers a sink for transition notifications. Must be
// called before event delivery begins; sinks are not removable.
func (c *Commander) AddTransitionSink(sink TransitionSink) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sinks = append(c.sinks, sink)
}

// State returns the current flight state.
func (c *Commander) State() FlightState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// VehicleMode returns the last FCU mode reported by the vehicle.
func (c *Commander) VehicleMode() string {
	return c.vehicle.Mode()
}

// LoopPeriod returns the configured control-loop period.
func (c *Commander) LoopPeriod() time.Duration {
	return c.period
}

// IsGuidedMode reports whether the named FCU mode is classified as guided.
func (c *Commander) IsGuidedMode(name string) bool {
	return c.classifier.IsGuided(name)
}

// OnFcuMode handles an FCU flight mode report.
//
// Entering a guided mode while PENDING begins the landing program (SEEK).
// Leaving guided mode in any active phase aborts immediately to PENDING.
// Everything else, including repeated guided reports during an active phase,
// is a no-op.
func (c *Commander) OnFcuMode(mode string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	guided := c.classifier.IsGuided(mode)
	switch {
	case guided && c.state == StatePending:
		c.transitionLocked(StateSeek)
	case !guided && c.state != StatePending:
		c.logger.Warn("FCU left guided mode, aborting landing program",
			logger.String("mode", mode),
			logger.String("state", c.state.String()))
		c.transitionLocked(StatePending)
	}
}

// OnTrackUpdate forwards a track observation to the active controller.
// No filtering, rate limiting or staleness check happens here; that belongs
// to the guidance controller.
func (c *Commander) OnTrackUpdate(obs track.Observation) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.runHook("track", func() { c.active.HandleTrackUpdate(obs) })
}

// OnTick drives the active controller once. This is the only place that may
// issue new vehicle setpoints proactively.
func (c *Commander) OnTick() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.runHook("run", func() { c.active.Run() })
}

// RequestState transitions to the given state. It is the transition channel
// for guidance controllers and must only be called from within a controller
// hook (Enter, Exit, Run, HandleTrackUpdate), which already executes in the
// serialized commander context.
func (c *Commander) RequestState(newState FlightState) {
	c.transitionLocked(newState)
}

// transitionLocked performs the transition protocol. Caller must hold c.mu
// (or be the constructor, before the commander is shared).
//
// A panicking controller hook is logged and never aborts the bookkeeping:
// state and the active controller are always updated, so the machine cannot
// get stuck referencing a stale controller.
func (c *Commander) transitionLocked(newState FlightState) {
	c.logger.Info("State transition",
		logger.String("from", c.state.String()),
		logger.String("to", newState.String()))

	if c.active != nil {
		c.runHook("exit", c.active.Exit)
	}

	oldState := c.state
	c.state = newState
	c.active = c.registry[newState]

	c.runHook("enter", c.active.Enter)

	now := time.Now().UTC()
	for _, sink := range c.sinks {
		sink.StateChanged(oldState, newState, now)
	}
}

// runHook invokes a controller hook, converting a panic into a logged error.
// The failure is not retried.
func (c *Commander) runHook(name string, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			c.logger.Error("Controller hook failed",
				logger.String("hook", name),
				logger.String("state", c.state.String()),
				logger.Any("panic", r))
		}
	}()
	fn()
}

// RelinquishControl forces an abort outside the normal mode-event channel:
// it commands a full stop, asks the FCU to hold position, and then blocks,
// polling at the loop rate, until the state machine has returned to PENDING
// (driven by the FCU's asynchronous mode report) or the context is done.
//
// There is no built-in deadline; the FCU may take several loop ticks to
// confirm, and in theory may never confirm. Callers needing a hard bound
// must supply a context with one. A context cancellation return does not
// imply the FCU reached the hold mode.
func (c *Commander) RelinquishControl(ctx context.Context) error {
	c.logger.Warn("Relinquishing control", logger.String("hold_mode", c.holdMode))

	// Full stop, bypassing the active controller entirely.
	if err := c.vehicle.SetVelocitySetpoint(vehicle.FullStop); err != nil {
		// Still ask for the hold mode before giving up: the FCU taking over
		// matters more than the stop setpoint landing.
		if modeErr := c.vehicle.SetMode(c.holdMode); modeErr != nil {
			c.logger.Error("Hold mode command failed", logger.Error(modeErr))
		}
		return fmt.Errorf("full-stop setpoint failed: %w", err)
	}

	if err := c.vehicle.SetMode(c.holdMode); err != nil {
		return fmt.Errorf("hold mode command failed: %w", err)
	}

	ticker := time.NewTicker(c.period)
	defer ticker.Stop()

	for {
		if c.State() == StatePending {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}
