package commander

import (
	"fmt"

	"github.com/kenanunal/lander/internal/track"
)

// Controller is one phase-specific guidance strategy. The commander owns the
// call discipline: Enter, Exit, Run and HandleTrackUpdate are never invoked
// concurrently, and each Enter is eventually paired with an Exit before the
// controller is entered again. A controller must not assume any retained
// state survives a full Exit/Enter cycle.
//
// Run is invoked once per control-loop tick while the controller is active
// and must not block: a blocking Run stalls the whole loop, including the
// delivery of mode-change aborts.
type Controller interface {
	Enter()
	Exit()
	Run()
	HandleTrackUpdate(obs track.Observation)
}

// Registry maps each non-INIT flight state to its controller. It is built
// once at startup and never mutated afterward.
type Registry map[FlightState]Controller

// validate checks that the registry covers exactly the controller states.
func (r Registry) validate() error {
	for _, s := range ControllerStates() {
		if r[s] == nil {
			return fmt.Errorf("no controller registered for state %s", s)
		}
	}
	for s := range r {
		switch s {
		case StatePending, StateSeek, StateApproach, StateDescend, StateLand:
		default:
			return fmt.Errorf("controller registered for unknown state %s", s)
		}
	}
	return nil
}
