package guidance

import (
	"github.com/kenanunal/lander/internal/track"
	"github.com/kenanunal/lander/pkg/logger"
)

// PendingController is active while the vehicle is not under program
// control. It commands nothing and ignores track updates; the commander
// leaves this state only on a guided-mode report from the FCU.
type PendingController struct {
	logger *logger.Logger
}

// NewPending creates the pending-phase controller.
func NewPending(log *logger.Logger) *PendingController {
	return &PendingController{logger: log.Named("pending")}
}

func (c *PendingController) Enter() {
	c.logger.Info("Waiting for guided mode")
}

func (c *PendingController) Exit() {}

func (c *PendingController) Run() {}

func (c *PendingController) HandleTrackUpdate(track.Observation) {}
