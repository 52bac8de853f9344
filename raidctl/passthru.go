package raidctl

import (
	"github.com/pkg/errors"
	"machinerun.io/mptraid"
	"machinerun.io/mptraid/entity"
)

// QuiesceState is the result of a QuiesceDisk call.
type QuiesceState int

const (
	// QuiesceError - the disk could not be quiesced.
	QuiesceError QuiesceState = iota

	// QuiesceInProgress - the quiesce request is outstanding.
	QuiesceInProgress

	// QuiesceComplete - RAID I/O to the disk is stopped.
	QuiesceComplete
)

func (q QuiesceState) String() string {
	switch q {
	case QuiesceInProgress:
		return "in-progress"
	case QuiesceComplete:
		return "complete"
	}

	return "error"
}

// MapPassthroughTarget returns the disk number addressed by target on the
// pass-through bus.
func (c *Controller) MapPassthroughTarget(target int) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	d := c.tables.DiskByTarget(target)
	if d == nil {
		return 0, errors.Wrapf(mptraid.ErrNotFound, "pass-through target %d", target)
	}

	return d.Num, nil
}

// IsVolumeTarget - does target on the volume bus address an active volume.
func (c *Controller) IsVolumeTarget(target int) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	found := false

	c.tables.ForEachActiveVolume(func(v *entity.Volume) {
		if v.ID() == target {
			found = true
		}
	})

	return found
}

// QuiesceDisk stops RAID I/O to disk num so pass-through commands can be
// sent to it. The first call starts the quiesce and reports in progress;
// later calls report the outcome without issuing anything.
func (c *Controller) QuiesceDisk(num int) (QuiesceState, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	d := c.tables.DiskByNumber(num)
	if d == nil || !d.Active() {
		return QuiesceError, errors.Wrapf(mptraid.ErrNotFound, "disk %d", num)
	}

	switch {
	case d.Quiesced():
		return QuiesceComplete, nil
	case d.Quiescing():
		return QuiesceInProgress, nil
	}

	bus, tgt := c.limits.PassthruBus, d.Page.ID

	req := mptraid.ActionRequest{
		Action:   mptraid.ActionQuiescePhysIO,
		PhysDisk: num,
	}
	if d.Volume != nil {
		req.VolumeBus = d.Volume.Bus()
		req.VolumeID = d.Volume.ID()
	}

	d.BeginQuiesce()
	c.blk.FreezeDevice(bus, tgt)

	err := c.actions.Go(req, func(_ mptraid.ActionReply, err error) {
		c.blk.ReleaseDevice(bus, tgt)
		c.quiesceDone(num, err)
	})
	if err != nil {
		d.ClearQuiesce()
		c.blk.ReleaseDevice(bus, tgt)
		c.diskLog(d).Error(err, "failed to start quiesce")

		return QuiesceError, err
	}

	return QuiesceInProgress, nil
}

func (c *Controller) quiesceDone(num int, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	d := c.tables.DiskByNumber(num)
	if d == nil || !d.Quiescing() {
		return
	}

	d.FinishQuiesce(err == nil)

	if err != nil {
		c.diskLog(d).Error(err, "quiesce failed")
		return
	}

	c.diskLog(d).V(1).Info("physical disk quiesced")
}

// ResumeDisk re-enables RAID I/O to a quiesced disk. A disk still being
// quiesced reports ErrInProgress; try again once QuiesceDisk completes.
func (c *Controller) ResumeDisk(num int) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	d := c.tables.DiskByNumber(num)
	if d == nil || !d.Active() {
		return errors.Wrapf(mptraid.ErrNotFound, "disk %d", num)
	}

	// the quiesce reply would land after the resume and be ignored
	if d.Quiescing() {
		return errors.Wrapf(mptraid.ErrInProgress, "quiesce of %s", d)
	}

	if !d.Quiesced() {
		return nil
	}

	if _, err := c.diskAction(d, mptraid.ActionEnablePhysIO, 0); err != nil {
		return errors.Wrapf(err, "resume %s", d)
	}

	d.ClearQuiesce()

	return nil
}
