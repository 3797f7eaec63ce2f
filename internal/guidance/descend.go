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

// DescendController lowers the vehicle over the target at a constant rate,
// applying lateral corrections from each observation. A stale track pauses
// the descent rather than drifting blind. Below the handoff altitude the
// FCU's native landing takes over via LAND.
type DescendController struct {
	cmdr        Transitioner
	veh         vehicle.Interface
	cfg         config.GuidanceConfig
	declination float64
	logger      *logger.Logger

	lastObs *track.Observation
	lastSp  vehicle.Setpoint
}

// NewDescend creates the descend-phase controller.
func NewDescend(cmdr Transitioner, veh vehicle.Interface, cfg config.GuidanceConfig, declination float64, log *logger.Logger) *DescendController {
	return &DescendController{
		cmdr:        cmdr,
		veh:         veh,
		cfg:         cfg,
		declination: declination,
		logger:      log.Named("descend"),
	}
}

func (c *DescendController) Enter() {
	c.lastObs = nil
	c.lastSp = vehicle.Setpoint{VZ: c.cfg.DescendRate}
	c.logger.Info("Descending over target",
		logger.Float64("rate", c.cfg.DescendRate),
		logger.Float64("handoff_alt_m", c.cfg.DescendHandoffAlt))
}

func (c *DescendController) Exit() {
	c.lastObs = nil
}

// Run re-issues the last descent command, or pauses the descent and holds
// position when the track has gone stale.
func (c *DescendController) Run() {
	sp := c.lastSp
	if !usable(c.lastObs, c.cfg, time.Now()) {
		sp = vehicle.Setpoint{}
	}
	if err := c.veh.SetVelocitySetpoint(sp); err != nil {
		c.logger.Warn("Setpoint command failed", logger.Error(err))
	}
}

func (c *DescendController) HandleTrackUpdate(obs track.Observation) {
	if obs.Confidence < c.cfg.MinTrackConfidence {
		return
	}
	c.lastObs = &obs

	offset := physics.Vector2D{N: obs.X, E: obs.Y}.Rotate(c.declination)
	v := offset.Scale(c.cfg.ApproachGain).ClampMagnitude(c.cfg.ApproachMaxSpeed)

	sp := vehicle.Setpoint{VX: v.N, VY: v.E, VZ: c.cfg.DescendRate}
	c.lastSp = sp
	if err := c.veh.SetVelocitySetpoint(sp); err != nil {
		c.logger.Warn("Setpoint command failed", logger.Error(err))
	}

	// Z is the target's offset below the vehicle: our height over the pad.
	if obs.Z <= c.cfg.DescendHandoffAlt {
		c.logger.Info("Handoff altitude reached",
			logger.Float64("height_m", obs.Z),
			logger.Duration("descent_remaining", physics.DescentTime(obs.Z, c.cfg.DescendRate)))
		c.cmdr.RequestState(commander.StateLand)
	}
}
