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

// ApproachController closes the horizontal offset to the target with a
// proportional controller on the track observation. Once the vehicle is
// inside the capture radius and moving slowly, it hands off to DESCEND.
// Altitude is held throughout.
type ApproachController struct {
	cmdr        Transitioner
	veh         vehicle.Interface
	cfg         config.GuidanceConfig
	declination float64
	logger      *logger.Logger

	lastObs *track.Observation
	lastSp  vehicle.Setpoint
}

// NewApproach creates the approach-phase controller.
func NewApproach(cmdr Transitioner, veh vehicle.Interface, cfg config.GuidanceConfig, declination float64, log *logger.Logger) *ApproachController {
	return &ApproachController{
		cmdr:        cmdr,
		veh:         veh,
		cfg:         cfg,
		declination: declination,
		logger:      log.Named("approach"),
	}
}

func (c *ApproachController) Enter() {
	c.lastObs = nil
	c.lastSp = vehicle.Setpoint{}
	c.logger.Info("Approaching target",
		logger.Float64("gain", c.cfg.ApproachGain),
		logger.Float64("max_speed", c.cfg.ApproachMaxSpeed))
}

func (c *ApproachController) Exit() {
	c.lastObs = nil
}

// Run holds the last commanded approach velocity between observations, and
// falls back to a hover when the track has gone stale.
func (c *ApproachController) Run() {
	sp := c.lastSp
	if !usable(c.lastObs, c.cfg, time.Now()) {
		sp = vehicle.Setpoint{}
	}
	if err := c.veh.SetVelocitySetpoint(sp); err != nil {
		c.logger.Warn("Setpoint command failed", logger.Error(err))
	}
}

func (c *ApproachController) HandleTrackUpdate(obs track.Observation) {
	if obs.Confidence < c.cfg.MinTrackConfidence {
		return
	}
	c.lastObs = &obs

	// Tracker offsets are in the compass-stabilized camera frame; rotate by
	// the local declination into the true NED frame before commanding.
	offset := physics.Vector2D{N: obs.X, E: obs.Y}.Rotate(c.declination)
	v := offset.Scale(c.cfg.ApproachGain).ClampMagnitude(c.cfg.ApproachMaxSpeed)

	sp := vehicle.Setpoint{VX: v.N, VY: v.E}
	c.lastSp = sp
	if err := c.veh.SetVelocitySetpoint(sp); err != nil {
		c.logger.Warn("Setpoint command failed", logger.Error(err))
	}

	if obs.HorizontalRange() <= c.cfg.ApproachCaptureRadius && v.Magnitude() <= c.cfg.ApproachCaptureSpeed {
		c.logger.Info("Target captured, beginning descent",
			logger.Float64("range_m", obs.HorizontalRange()))
		c.cmdr.RequestState(commander.StateDescend)
	}
}
