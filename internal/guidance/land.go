package guidance

import (
	"github.com/kenanunal/lander/internal/config"
	"github.com/kenanunal/lander/internal/track"
	"github.com/kenanunal/lander/internal/vehicle"
	"github.com/kenanunal/lander/pkg/logger"
)

// LandController hands the final touchdown to the FCU's native landing
// mode. The mode change takes the FCU out of the guided set, so touchdown
// resolves back to PENDING through the normal mode-event path.
type LandController struct {
	veh    vehicle.Interface
	cfg    config.GuidanceConfig
	logger *logger.Logger
}

// NewLand creates the land-phase controller.
func NewLand(veh vehicle.Interface, cfg config.GuidanceConfig, log *logger.Logger) *LandController {
	return &LandController{
		veh:    veh,
		cfg:    cfg,
		logger: log.Named("land"),
	}
}

func (c *LandController) Enter() {
	c.logger.Info("Commanding native landing", logger.String("mode", c.cfg.LandMode))

	if err := c.veh.SetVelocitySetpoint(vehicle.FullStop); err != nil {
		c.logger.Warn("Full-stop setpoint failed", logger.Error(err))
	}
	if err := c.veh.SetMode(c.cfg.LandMode); err != nil {
		c.logger.Error("Land mode command failed", logger.Error(err))
	}
}

func (c *LandController) Exit() {}

// Run is deliberately empty: the FCU owns the vehicle during its native
// landing sequence.
func (c *LandController) Run() {}

func (c *LandController) HandleTrackUpdate(track.Observation) {}
