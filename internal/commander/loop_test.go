package commander

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/kenanunal/lander/pkg/logger"
)

type countingTickable struct {
	ticks atomic.Int64
}

func (c *countingTickable) OnTick() { c.ticks.Add(1) }

func TestDriver(t *testing.T) {
	t.Run("ticks at the configured rate until cancelled", func(t *testing.T) {
		target := &countingTickable{}
		driver := NewDriver(target, 10*time.Millisecond, logger.NewNop())

		ctx, cancel := context.WithCancel(context.Background())
		done := make(chan struct{})
		go func() {
			driver.Run(ctx)
			close(done)
		}()

		time.Sleep(105 * time.Millisecond)
		cancel()

		select {
		case <-done:
		case <-time.After(time.Second):
			t.Fatal("driver did not stop after cancellation")
		}

		// Roughly 10 ticks over 105ms at 10ms; leave slack for scheduling.
		got := target.ticks.Load()
		if got < 5 || got > 15 {
			t.Errorf("tick count = %d, want ~10", got)
		}

		// No ticks after Run returned.
		after := target.ticks.Load()
		time.Sleep(30 * time.Millisecond)
		if target.ticks.Load() != after {
			t.Error("ticks continued after the driver stopped")
		}
	})
}
