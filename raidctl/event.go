package raidctl

import (
	"machinerun.io/mptraid"
	"machinerun.io/mptraid/entity"
)

// NotifyEvent classifies a controller RAID event: it invalidates the
// affected records, notes whether the pass-through bus needs a rescan and
// wakes the worker. It never issues I/O.
func (c *Controller) NotifyEvent(ev mptraid.Event) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.shutdown {
		return
	}

	v := c.tables.VolumeByID(ev.VolumeBus, ev.VolumeID)

	var d *entity.PhysDisk
	if ev.PhysDisk != mptraid.NoDisk {
		d = c.tables.DiskByNumber(ev.PhysDisk)
	}

	report := true

	switch ev.Reason {
	case mptraid.EventVolumeCreated, mptraid.EventVolumeDeleted:
		c.rescan = true
	case mptraid.EventVolumeSettingsChanged, mptraid.EventVolumePhysDiskChanged:
		if v != nil {
			v.MarkStale()
			v.Unannounce()
		}

		c.rescan = true
	case mptraid.EventVolumeStatusChanged:
		// The firmware repeats status changes while a volume is settling.
		// A record already waiting for refresh stays quiet.
		if v != nil {
			if v.UpToDate() {
				v.MarkStale()
			} else {
				report = false
			}
		}
	case mptraid.EventPhysDiskCreated, mptraid.EventPhysDiskDeleted:
		c.rescan = true
	case mptraid.EventPhysDiskSettingsChanged, mptraid.EventPhysDiskStatusChanged:
		if d != nil {
			d.MarkStale()
		}

		c.rescan = true
	case mptraid.EventDomainValNeeded:
		c.rescan = true
	case mptraid.EventSmartData, mptraid.EventReplaceActionStarted:
	}

	if report {
		c.logEvent(ev, v, d)
	}

	c.wake()
}

func (c *Controller) logEvent(ev mptraid.Event, v *entity.Volume, d *entity.PhysDisk) {
	kv := []interface{}{"reason", ev.Reason.String()}

	switch {
	case v != nil:
		kv = append(kv, "vol", v.String())
	case ev.Reason <= mptraid.EventVolumePhysDiskChanged:
		kv = append(kv, "vol", target(ev.VolumeBus, ev.VolumeID))
	}

	switch {
	case d != nil && d.Active():
		kv = append(kv, "disk", d.String())
	case ev.PhysDisk != mptraid.NoDisk:
		kv = append(kv, "disk", ev.PhysDisk)
	}

	if ev.ASC != 0 || ev.ASCQ != 0 {
		kv = append(kv, "asc", ev.ASC, "ascq", ev.ASCQ)
	}

	c.log.Info("raid event", kv...)
}
