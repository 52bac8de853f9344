package mockhba

import (
	"github.com/pkg/errors"
	"machinerun.io/mptraid"
)

// Submit implements mptraid.CommandChannel.
func (h *HBA) Submit(req mptraid.ActionRequest) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return ErrClosed
	}

	if h.submit != nil {
		return h.submit
	}

	h.requests = append(h.requests, req)

	if h.holding[req.Action] {
		h.held[req.Action] = append(h.held[req.Action], req)
		return nil
	}

	h.completeLocked(h.executeLocked(req))

	return nil
}

// Hold parks every later request for code until Deliver is called. Parked
// requests get no reply, which the caller sees as a timeout.
func (h *HBA) Hold(code mptraid.ActionCode) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.holding[code] = true
}

// Deliver stops holding code, executes the parked requests and replies to
// them. It returns how many were parked.
func (h *HBA) Deliver(code mptraid.ActionCode) int {
	h.mu.Lock()
	defer h.mu.Unlock()

	delete(h.holding, code)
	parked := h.held[code]
	delete(h.held, code)

	for _, req := range parked {
		h.completeLocked(h.executeLocked(req))
	}

	return len(parked)
}

// Held returns how many requests for code are parked.
func (h *HBA) Held(code mptraid.ActionCode) int {
	h.mu.Lock()
	defer h.mu.Unlock()

	return len(h.held[code])
}

// FailAction makes every later request for code complete with result and
// leave the simulated state untouched. ResultSuccess clears the failure.
func (h *HBA) FailAction(code mptraid.ActionCode, result mptraid.ActionResult) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if result == mptraid.ResultSuccess {
		delete(h.results, code)
		return
	}

	h.results[code] = result
}

// FailSubmit makes Submit return err. nil clears it.
func (h *HBA) FailSubmit(err error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.submit = err
}

// Requests returns every request accepted so far.
func (h *HBA) Requests() []mptraid.ActionRequest {
	h.mu.Lock()
	defer h.mu.Unlock()

	return append([]mptraid.ActionRequest{}, h.requests...)
}

// Count returns how many requests for code were accepted.
func (h *HBA) Count(code mptraid.ActionCode) int {
	h.mu.Lock()
	defer h.mu.Unlock()

	n := 0

	for _, r := range h.requests {
		if r.Action == code {
			n++
		}
	}

	return n
}

// executeLocked applies req to the simulated firmware and builds the reply.
func (h *HBA) executeLocked(req mptraid.ActionRequest) mptraid.ActionReply {
	reply := mptraid.ActionReply{
		Tag:       req.Tag,
		Action:    req.Action,
		IOCStatus: mptraid.IOCStatusSuccess,
		Result:    mptraid.ResultSuccess,
	}

	if result, ok := h.results[req.Action]; ok {
		reply.Result = result
		return reply
	}

	var err error

	switch req.Action {
	case mptraid.ActionGetStatus, mptraid.ActionIndicatorStruct,
		mptraid.ActionChangeVolumeSettings, mptraid.ActionSetResyncRate:
		err = h.volumeActionLocked(req, &reply)
	case mptraid.ActionQuiescePhysIO, mptraid.ActionEnablePhysIO,
		mptraid.ActionPhysDiskOffline, mptraid.ActionPhysDiskOnline, mptraid.ActionFailPhysDisk:
		err = h.diskActionLocked(req)
	default:
		reply.Result = mptraid.ResultInvalidAction
	}

	if err != nil {
		reply.IOCStatus = mptraid.IOCStatusInvalidField
		reply.Result = mptraid.ResultFailure
	}

	return reply
}

func (h *HBA) volumeActionLocked(req mptraid.ActionRequest, reply *mptraid.ActionReply) error {
	v := h.volumeLocked(req.VolumeBus, req.VolumeID)
	if v == nil {
		return errors.Errorf("no volume %d:%d", req.VolumeBus, req.VolumeID)
	}

	ev := mptraid.Event{
		Reason:    mptraid.EventVolumeSettingsChanged,
		VolumeBus: v.page.Bus,
		VolumeID:  v.page.ID,
		PhysDisk:  mptraid.NoDisk,
	}

	switch req.Action {
	case mptraid.ActionGetStatus:
		reply.VolumeStatus = v.page.Status
	case mptraid.ActionIndicatorStruct:
		reply.Indicator = v.indicator
	case mptraid.ActionChangeVolumeSettings:
		v.page.Settings = mptraid.SettingsFromWord(req.ActionData)
		reply.Data = req.ActionData
		h.eventLocked(ev)
	case mptraid.ActionSetResyncRate:
		v.page.ResyncRate = uint8(req.ActionData)
		h.eventLocked(ev)
	}

	reply.VolumeStatus = v.page.Status

	return nil
}

func (h *HBA) diskActionLocked(req mptraid.ActionRequest) error {
	d := h.diskLocked(req.PhysDisk)
	if d == nil {
		return errors.Errorf("no physical disk %d", req.PhysDisk)
	}

	switch req.Action {
	case mptraid.ActionQuiescePhysIO:
		d.Status.Flags |= mptraid.DiskQuiesced
		return nil
	case mptraid.ActionEnablePhysIO:
		d.Status.Flags &^= mptraid.DiskQuiesced
		return nil
	case mptraid.ActionPhysDiskOffline:
		d.Status.State = mptraid.DiskOfflineRequested
	case mptraid.ActionPhysDiskOnline:
		d.Status.State = mptraid.DiskOnline
	case mptraid.ActionFailPhysDisk:
		d.Status.State = mptraid.DiskFailedRequested
	}

	h.eventLocked(mptraid.Event{
		Reason:   mptraid.EventPhysDiskStatusChanged,
		PhysDisk: d.Num,
	})

	return nil
}
