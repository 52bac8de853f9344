package raidctl

import (
	"machinerun.io/mptraid"
	"machinerun.io/mptraid/entity"
)

// refresh reconciles the tables with the controller directories. Called
// by the worker with c.mu held. A failed directory read abandons the pass
// with every record left as it was.
func (c *Controller) refresh() {
	c.tables.ForEachVolume((*entity.Volume).ClearReferenced)
	c.tables.ForEachDisk((*entity.PhysDisk).ClearReferenced)

	disks, err := c.hba.ReadDiskDirectory()
	if err != nil {
		c.log.Error(err, "failed to read physical disk directory")
		return
	}

	// records whose page read failed this pass sit out reconciliation
	unreadDisks := map[int]bool{}

	for _, ref := range disks {
		if !c.refreshDisk(ref) {
			unreadDisks[ref.Num] = true
		}
	}

	vols, err := c.hba.ReadVolumeDirectory()
	if err != nil {
		c.log.Error(err, "failed to read volume directory")
		return
	}

	// Slots of volumes gone from the directory are freed before new
	// identities are claimed so a replaced volume finds a slot.
	for _, ref := range vols {
		if v := c.tables.VolumeByID(ref.Bus, ref.ID); v != nil {
			v.MarkReferenced()
		}
	}

	c.tables.ForEachVolume(c.retireVolume)

	unreadVols := map[int]bool{}

	for _, ref := range vols {
		if v, ok := c.refreshVolume(ref); !ok && v != nil {
			unreadVols[v.Slot] = true
		}
	}

	c.linkMembers()

	c.tables.ForEachVolume(func(v *entity.Volume) {
		c.reconcileVolume(v, unreadVols[v.Slot])
	})
	c.tables.ForEachDisk(func(d *entity.PhysDisk) {
		c.reconcileDisk(d, unreadDisks[d.Num])
	})
}

func (c *Controller) refreshDisk(ref mptraid.DiskRef) bool {
	d := c.tables.DiskByNumber(ref.Num)
	if d == nil {
		c.log.Info("ignoring physical disk beyond controller limit",
			"num", ref.Num, "max", c.tables.MaxDisks())
		return true
	}

	d.MarkReferenced()

	if d.Active() && d.UpToDate() {
		d.MarkRead()
		return true
	}

	d.MarkRead()

	page, err := c.hba.ReadPhysDiskPage(ref.Num)
	if err != nil {
		c.log.Error(err, "failed to read physical disk page", "num", ref.Num)
		return false
	}

	d.Page = page
	d.MarkActive()
	c.rescan = true

	return true
}

// refreshVolume claims and re-reads one directory entry. It reports false
// when the page could not be read.
func (c *Controller) refreshVolume(ref mptraid.VolumeRef) (*entity.Volume, bool) {
	v, err := c.tables.ClaimVolume(ref)
	if err != nil {
		c.log.Error(err, "no volume slot left")
		return nil, false
	}

	v.MarkReferenced()

	if v.UpToDate() && !v.Resyncing() {
		v.MarkRead()
		return v, true
	}

	v.MarkRead()

	page, err := c.hba.ReadVolumePage(ref)
	if err != nil {
		c.volLog(v).Error(err, "failed to read volume page")
		return v, false
	}

	if v.Update(page) && v.Active() {
		v.Unannounce()
	}

	v.MarkActive()

	if !v.Resyncing() {
		v.Progress = mptraid.ResyncIndicator{}
		return v, true
	}

	reply, err := c.volumeAction(v, mptraid.ActionIndicatorStruct, 0)
	if err != nil {
		c.logActionError(v, "progress indicator fetch", err)
		return v, true
	}

	v.Progress = reply.Indicator

	return v, true
}

// linkMembers rebuilds the disk to volume backreferences from the member
// lists of the volumes still configured.
func (c *Controller) linkMembers() {
	c.tables.ForEachDisk((*entity.PhysDisk).ClearVolume)

	c.tables.ForEachActiveVolume(func(v *entity.Volume) {
		if !v.Referenced() {
			return
		}

		for i, m := range v.Page.Members {
			d := c.tables.DiskByNumber(m.PhysDiskNum)
			if d == nil || !d.Active() || !d.Referenced() {
				continue
			}

			d.SetVolume(v, memberIndex(v.Page.Type, m, i))
		}
	})
}

// memberIndex is the member slot of a disk: mirror role for RAID-1, stripe
// position otherwise.
func memberIndex(t mptraid.VolumeType, m mptraid.VolumeMember, pos int) int {
	if t == mptraid.RAID1 {
		switch {
		case m.Map&mptraid.MemberPrimary != 0:
			return 0
		case m.Map&mptraid.MemberSecondary != 0:
			return 1
		}
	}

	return pos
}

func (c *Controller) reconcileVolume(v *entity.Volume, unread bool) {
	if !v.Claimed() {
		return
	}

	if !v.Referenced() {
		c.retireVolume(v)
		return
	}

	if !v.Active() || unread {
		return
	}

	if !v.Announced() {
		c.announceVolume(v)
		v.Announce()
	}

	if v.QueueDepth != c.tun.QueueDepth {
		c.adjustVolumeQueueDepth(v)
	}

	if v.UpToDate() {
		return
	}

	// An event that arrived while another volume's enforcer had the lock
	// released postdates the snapshot.
	if v.StaleSinceRead() {
		c.wake()
		return
	}

	// Marked before the enforcers run: they drop the lock, and an event
	// landing meanwhile must leave the record stale.
	v.MarkFresh()

	c.verifyWriteCache(v)
	c.verifyResyncRate(v)
	c.logVolumeStatus(v)

	if v.Resyncing() {
		c.logProgress(v)
		c.armProgressTimer()
	}
}

// retireVolume frees a claimed slot the directory no longer lists.
func (c *Controller) retireVolume(v *entity.Volume) {
	if !v.Claimed() || v.Referenced() {
		return
	}

	if v.Active() {
		c.volLog(v).Info("volume no longer configured")
	}

	c.tables.ForEachDisk(func(d *entity.PhysDisk) {
		if d.Volume == v {
			d.ClearVolume()
		}
	})

	v.Retire()
}

func (c *Controller) reconcileDisk(d *entity.PhysDisk, unread bool) {
	if !d.Active() {
		return
	}

	if !d.Referenced() {
		c.diskLog(d).Info("physical disk no longer configured")
		d.Retire()
		c.rescan = true

		return
	}

	if unread {
		return
	}

	if !d.Announced() {
		c.announceDisk(d)
		d.Announce()
	}

	if d.UpToDate() {
		return
	}

	if d.StaleSinceRead() {
		c.wake()
		return
	}

	c.logDiskStatus(d)
	d.MarkFresh()
}
