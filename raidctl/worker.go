package raidctl

import (
	"time"

	"machinerun.io/mptraid/entity"
)

// wake asks the worker for another cycle. Wakeups coalesce; this never
// blocks.
func (c *Controller) wake() {
	select {
	case c.wakeup <- struct{}{}:
	default:
	}
}

func (c *Controller) run() {
	defer close(c.done)

	for range c.wakeup {
		c.mu.Lock()
		if c.shutdown {
			c.cycled.Broadcast()
			c.mu.Unlock()

			return
		}

		c.started++
		c.refresh()

		rescan := c.rescan
		c.rescan = false
		first := !c.ranOnce
		c.ranOnce = true
		c.mu.Unlock()

		if first {
			c.blk.ReleaseBus(c.limits.PassthruBus)
		}

		if rescan {
			c.blk.RescanBus(c.limits.PassthruBus)
		}

		c.mu.Lock()
		c.finished++
		c.cycled.Broadcast()
		c.mu.Unlock()
	}
}

// armProgressTimer schedules a progress refresh unless one is pending.
func (c *Controller) armProgressTimer() {
	if c.progressTimer != nil || c.shutdown {
		return
	}

	c.progressTimer = time.AfterFunc(c.progressInterval, c.progressTick)
}

func (c *Controller) stopProgressTimer() {
	if c.progressTimer != nil {
		c.progressTimer.Stop()
		c.progressTimer = nil
	}
}

// progressTick forces every resyncing volume to be re-read so its progress
// is reported even when the firmware stays quiet.
func (c *Controller) progressTick() {
	c.mu.Lock()
	c.progressTimer = nil
	if c.shutdown {
		c.mu.Unlock()
		return
	}

	c.tables.ForEachActiveVolume(func(v *entity.Volume) {
		if v.Resyncing() {
			v.MarkStale()
		}
	})
	c.mu.Unlock()

	c.wake()
}
