package raidctl

import (
	"github.com/pkg/errors"
	"machinerun.io/mptraid"
	"machinerun.io/mptraid/entity"
)

// doAction issues req and waits for its completion. c.mu is held on entry
// and exit but released while waiting so replies and events keep flowing.
func (c *Controller) doAction(req mptraid.ActionRequest) (mptraid.ActionReply, error) {
	call, err := c.actions.Start(req)
	if err != nil {
		return mptraid.ActionReply{}, err
	}

	c.mu.Unlock()
	reply, err := call.Wait()
	c.mu.Lock()

	return reply, err
}

// volumeAction runs one synchronous action against v. Only one action per
// volume is in flight; later callers wait their turn.
func (c *Controller) volumeAction(v *entity.Volume, code mptraid.ActionCode, data uint32) (mptraid.ActionReply, error) {
	for v.Busy() {
		c.idle.Wait()
	}

	ref := v.Ref
	if !v.Claimed() {
		return mptraid.ActionReply{}, errors.Wrapf(mptraid.ErrNotFound, "%s", v)
	}

	v.SetBusy(true)

	reply, err := c.doAction(mptraid.ActionRequest{
		Action:     code,
		VolumeBus:  ref.Bus,
		VolumeID:   ref.ID,
		PhysDisk:   mptraid.NoDisk,
		ActionData: data,
	})

	v.SetBusy(false)
	c.idle.Broadcast()

	if !v.Claimed() || v.Ref.Bus != ref.Bus || v.Ref.ID != ref.ID {
		return reply, errors.Wrapf(mptraid.ErrNotFound, "volume %s removed during %s", target(ref.Bus, ref.ID), code)
	}

	return reply, err
}

// diskAction runs one synchronous action against d.
func (c *Controller) diskAction(d *entity.PhysDisk, code mptraid.ActionCode, data uint32) (mptraid.ActionReply, error) {
	for d.Busy() {
		c.idle.Wait()
	}

	if !d.Active() {
		return mptraid.ActionReply{}, errors.Wrapf(mptraid.ErrNotFound, "%s", d)
	}

	req := mptraid.ActionRequest{
		Action:     code,
		PhysDisk:   d.Num,
		ActionData: data,
	}

	if d.Volume != nil {
		req.VolumeBus = d.Volume.Bus()
		req.VolumeID = d.Volume.ID()
	}

	d.SetBusy(true)
	reply, err := c.doAction(req)
	d.SetBusy(false)
	c.idle.Broadcast()

	if !d.Active() {
		return reply, errors.Wrapf(mptraid.ErrNotFound, "disk %d removed during %s", d.Num, code)
	}

	return reply, err
}

// logActionError reports a failed or timed out action on behalf of a
// policy enforcer.
func (c *Controller) logActionError(v *entity.Volume, what string, err error) {
	log := c.volLog(v)

	switch {
	case errors.Is(err, mptraid.ErrTimeout):
		log.Info(what+" timed out", "timeout", c.actions.Timeout().String())
	case errors.Is(err, mptraid.ErrNoRequestSlot):
		log.Info(what+" skipped, no request slot")
	default:
		log.Error(err, what+" failed")
	}
}
