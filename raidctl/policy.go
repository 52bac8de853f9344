package raidctl

import (
	"machinerun.io/mptraid"
	"machinerun.io/mptraid/entity"
)

// verifyWriteCache pushes the write cache policy to v. Under rebuild-only a
// mismatch has to be seen on two consecutive checks before it is corrected
// so a resync that is just starting or finishing does not flap the cache.
func (c *Controller) verifyWriteCache(v *entity.Volume) {
	enabled := v.Page.WriteCacheEnabled()

	switch c.tun.WriteCache {
	case mptraid.WriteCacheNoChange:
		return
	case mptraid.WriteCacheOn:
		if enabled {
			return
		}
	case mptraid.WriteCacheOff:
		if !enabled {
			return
		}
	case mptraid.WriteCacheRebuildOnly:
		if v.Resyncing() == enabled {
			v.ClearWCELatch()
			return
		}

		if v.ToggleWCELatch() {
			c.volLog(v).V(1).Info("write cache mismatch, rechecking next refresh",
				"resyncing", v.Resyncing(), "writeCache", enabled)
			return
		}
	}

	want := v.Page.Settings.Toggle(mptraid.SettingWriteCacheEnable)

	if _, err := c.volumeAction(v, mptraid.ActionChangeVolumeSettings, want.Word()); err != nil {
		c.logActionError(v, "write cache change", err)
		return
	}

	v.Page.Settings = want
	c.volLog(v).Info("write cache changed", "enabled", want.Has(mptraid.SettingWriteCacheEnable))
}

// verifyResyncRate pushes the resync rate to v. A differing rate is always
// set. When both the volume and the tunable are at zero only the priority
// resync setting is left to converge; rates from ResyncRateHigh up map to
// priority on.
func (c *Controller) verifyResyncRate(v *entity.Volume) {
	rate := c.tun.ResyncRate
	if rate == mptraid.ResyncRateNoChange {
		return
	}

	cur := v.Page.ResyncRate

	switch {
	case int(cur) != int(rate):
		if _, err := c.volumeAction(v, mptraid.ActionSetResyncRate, uint32(rate)); err != nil {
			c.logActionError(v, "resync rate change", err)
			return
		}

		v.Page.ResyncRate = uint8(rate)
		c.volLog(v).Info("resync rate changed", "rate", int(rate))
	case cur == 0 && v.Page.Settings.Has(mptraid.SettingPriorityResync) != rate.HighPriority():
		want := v.Page.Settings.Toggle(mptraid.SettingPriorityResync)

		if _, err := c.volumeAction(v, mptraid.ActionChangeVolumeSettings, want.Word()); err != nil {
			c.logActionError(v, "resync priority change", err)
			return
		}

		v.Page.Settings = want
		c.volLog(v).Info("resync priority changed", "high", want.Has(mptraid.SettingPriorityResync))
	}
}

// adjustVolumeQueueDepth pushes the configured depth to the block layer.
// No controller action is involved.
func (c *Controller) adjustVolumeQueueDepth(v *entity.Volume) {
	depth := c.tun.QueueDepth

	if err := c.blk.AdjustQueueDepth(v.Bus(), v.ID(), depth); err != nil {
		c.volLog(v).Error(err, "failed to adjust queue depth", "depth", depth)
		return
	}

	v.QueueDepth = depth
}
