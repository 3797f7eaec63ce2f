package commander

import (
	"context"
	"time"

	"github.com/kenanunal/lander/pkg/logger"
)

// Tickable receives fixed-rate ticks from a Driver.
type Tickable interface {
	OnTick()
}

// Driver runs the fixed-rate control loop. It owns the rate and defers
// cancellation to the context passed to Run; there is no ambient global
// scheduler. The ticker's fixed-rate semantics mean an overrunning tick does
// not accumulate drift: the next tick fires immediately rather than being
// double-delayed.
type Driver struct {
	target Tickable
	period time.Duration
	logger *logger.Logger
}

// NewDriver creates a control loop driver with the given period.
func NewDriver(target Tickable, period time.Duration, log *logger.Logger) *Driver {
	return &Driver{
		target: target,
		period: period,
		logger: log.Named("control-loop"),
	}
}

// Run ticks the target until the context is done. Cancellation is
// cooperative, checked once per iteration.
func (d *Driver) Run(ctx context.Context) {
	ticker := time.NewTicker(d.period)
	defer ticker.Stop()

	d.logger.Info("Control loop started", logger.Duration("period", d.period))

	for {
		select {
		case <-ctx.Done():
			d.logger.Info("Control loop stopped")
			return
		case <-ticker.C:
			d.target.OnTick()
		}
	}
}
