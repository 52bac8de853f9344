package raidctl

import (
	"github.com/pkg/errors"
	"machinerun.io/mptraid"
	"machinerun.io/mptraid/entity"
)

// SetWriteCacheMode changes the write cache policy and applies it to every
// active volume before returning.
func (c *Controller) SetWriteCacheMode(mode mptraid.WriteCacheMode) error {
	if mode < mptraid.WriteCacheOff || mode > mptraid.WriteCacheNoChange {
		return errors.Wrapf(mptraid.ErrInvalidTunable, "write cache mode %d", mode)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.shutdown {
		return mptraid.ErrDetached
	}

	if mode == c.tun.WriteCache {
		return nil
	}

	// A volume found resyncing with its cache on the first time rebuild-only
	// is chosen may have lost cached writes in an unsafe shutdown.
	firstRebuildOnly := !c.mwceSet &&
		c.tun.WriteCache == mptraid.WriteCacheNoChange &&
		mode == mptraid.WriteCacheRebuildOnly

	c.tun.WriteCache = mode
	c.mwceSet = true

	c.log.Info("write cache policy changed", "mode", mode.String())

	c.tables.ForEachActiveVolume(func(v *entity.Volume) {
		if firstRebuildOnly && v.Resyncing() && v.Page.WriteCacheEnabled() {
			c.volLog(v).Info("WARNING: unsafe shutdown with write cache enabled detected, " +
				"a full resync is required for data integrity")
		}

		c.verifyWriteCache(v)
	})

	return nil
}

// SetResyncRate changes the resync rate and applies it to every active
// volume before returning.
func (c *Controller) SetResyncRate(rate mptraid.ResyncRate) error {
	if !rate.Valid() {
		return errors.Wrapf(mptraid.ErrInvalidTunable, "resync rate %d", rate)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.shutdown {
		return mptraid.ErrDetached
	}

	if rate == c.tun.ResyncRate {
		return nil
	}

	c.tun.ResyncRate = rate
	c.log.Info("resync rate changed", "rate", rate.String())

	c.tables.ForEachActiveVolume(c.verifyResyncRate)

	return nil
}

// SetQueueDepth changes the per volume queue depth and pushes it to the
// block layer for every active volume.
func (c *Controller) SetQueueDepth(depth int) error {
	if !mptraid.ValidQueueDepth(depth) {
		return errors.Wrapf(mptraid.ErrInvalidTunable, "queue depth %d", depth)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.shutdown {
		return mptraid.ErrDetached
	}

	c.tun.QueueDepth = depth
	c.tables.ForEachActiveVolume(c.adjustVolumeQueueDepth)

	return nil
}
