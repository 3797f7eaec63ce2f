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

// SeekController climbs toward the search altitude while slowly spinning so
// the camera sweeps the area. The first confident track fix hands off to
// APPROACH.
type SeekController struct {
	cmdr   Transitioner
	veh    vehicle.Interface
	cfg    config.GuidanceConfig
	logger *logger.Logger

	lastObs *track.Observation
}

// NewSeek creates the seek-phase controller.
func NewSeek(cmdr Transitioner, veh vehicle.Interface, cfg config.GuidanceConfig, log *logger.Logger) *SeekController {
	return &SeekController{
		cmdr:   cmdr,
		veh:    veh,
		cfg:    cfg,
		logger: log.Named("seek"),
	}
}

func (c *SeekController) Enter() {
	c.lastObs = nil
	c.logger.Info("Seeking target",
		logger.Float64("search_altitude_m", c.cfg.SeekAltitudeM),
		logger.Float64("climb_rate", c.cfg.SeekClimbRate))
}

func (c *SeekController) Exit() {
	c.lastObs = nil
}

func (c *SeekController) Run() {
	sp := vehicle.Setpoint{
		VZ:      -c.cfg.SeekClimbRate, // NED: negative is up
		YawRate: c.cfg.SeekYawRateDPS * physics.DegToRad,
	}

	// A weak fix still tells us how far below the target is. Once it is at
	// least the search altitude below, stop climbing and just sweep.
	if c.lastObs != nil && c.lastObs.Z >= c.cfg.SeekAltitudeM {
		sp.VZ = 0
	}

	if err := c.veh.SetVelocitySetpoint(sp); err != nil {
		c.logger.Warn("Setpoint command failed", logger.Error(err))
	}
}

func (c *SeekController) HandleTrackUpdate(obs track.Observation) {
	c.lastObs = &obs

	if usable(&obs, c.cfg, time.Now()) {
		c.logger.Info("Target acquired",
			logger.Float64("range_m", obs.HorizontalRange()),
			logger.Float64("confidence", obs.Confidence))
		c.cmdr.RequestState(commander.StateApproach)
	}
}
