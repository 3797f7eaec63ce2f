package commander

// FlightState identifies one segment of the landing maneuver. Exactly one
// state is active at any time.
type FlightState string

const (
	// StateInit is the transient pre-startup state. It exists only between
	// commander allocation and the construction-time transition to PENDING
	// and is never observed by external callers.
	StateInit FlightState = "INIT"

	// StatePending means the vehicle is not under program control. The
	// landing program starts when the FCU enters a guided mode, and every
	// loss of guided authority returns here.
	StatePending FlightState = "PENDING"

	// StateSeek climbs and sweeps until the tracker produces a usable fix.
	StateSeek FlightState = "SEEK"

	// StateApproach closes the horizontal offset to the target.
	StateApproach FlightState = "APPROACH"

	// StateDescend lowers the vehicle over the target.
	StateDescend FlightState = "DESCEND"

	// StateLand hands the final touchdown to the FCU's native landing mode.
	StateLand FlightState = "LAND"
)

// ControllerStates lists every state that must have a guidance controller
// registered, in maneuver order. INIT has no controller.
func ControllerStates() []FlightState {
	return []FlightState{StatePending, StateSeek, StateApproach, StateDescend, StateLand}
}

func (s FlightState) String() string { return string(s) }

// ModeClassifier decides whether an FCU mode name grants this program
// authority to command setpoints. The recognized set is configured, not
// hard-coded: ArduCopter reports "GUIDED" while PX4 reports "OFFBOARD".
// Unknown mode names classify as not guided, which is the fail-safe bias.
type ModeClassifier struct {
	guided map[string]struct{}
}

// NewModeClassifier builds a classifier over the given guided-mode names.
func NewModeClassifier(modes []string) ModeClassifier {
	guided := make(map[string]struct{}, len(modes))
	for _, m := range modes {
		guided[m] = struct{}{}
	}
	return ModeClassifier{guided: guided}
}

// IsGuided reports whether the named mode is in the configured guided set.
func (mc ModeClassifier) IsGuided(name string) bool {
	_, ok := mc.guided[name]
	return ok
}
