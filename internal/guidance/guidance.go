// Package guidance implements the per-phase landing strategies driven by the
// commander: Pending, Seek, Approach, Descend and Land. Controllers never
// touch the commander's lock themselves; every hook already executes in the
// serialized commander context, so a controller may request a transition
// inline from any hook.
package guidance

import (
	"time"

	"github.com/kenanunal/lander/internal/commander"
	"github.com/kenanunal/lander/internal/config"
	"github.com/kenanunal/lander/internal/physics"
	"github.com/kenanunal/lander/internal/track"
	"github.com/kenanunal/lander/internal/vehicle"
	"github.com/kenanunal/lander/pkg/logger"
)

// Transitioner is the commander surface controllers use to request phase
// changes. Satisfied by *commander.Commander.
type Transitioner interface {
	RequestState(commander.FlightState)
}

// NewRegistry builds the controller registry for the commander. The
// magnetic declination at the landing site is computed once here: the
// tracker reports offsets in the compass-stabilized camera frame, and the
// approach and descend controllers rotate them into the true NED frame
// before commanding velocities.
func NewRegistry(cmdr Transitioner, veh vehicle.Interface, cfg config.GuidanceConfig, station config.StationConfig, log *logger.Logger) commander.Registry {
	decl := physics.MagneticDeclination(station.Latitude, station.Longitude, station.ElevationM, time.Now())
	log.Named("guidance").Info("Landing site declination",
		logger.Float64("declination_deg", decl),
		logger.Float64("lat", station.Latitude),
		logger.Float64("lon", station.Longitude))

	return commander.Registry{
		commander.StatePending:  NewPending(log),
		commander.StateSeek:     NewSeek(cmdr, veh, cfg, log),
		commander.StateApproach: NewApproach(cmdr, veh, cfg, decl, log),
		commander.StateDescend:  NewDescend(cmdr, veh, cfg, decl, log),
		commander.StateLand:     NewLand(veh, cfg, log),
	}
}

// usable reports whether an observation is fresh and confident enough to
// act on.
func usable(obs *track.Observation, cfg config.GuidanceConfig, now time.Time) bool {
	if obs == nil {
		return false
	}
	if obs.Confidence < cfg.MinTrackConfidence {
		return false
	}
	return obs.Age(now) <= time.Duration(cfg.TrackStaleSecs*float64(time.Second))
}
