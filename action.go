package mptraid

import (
	"fmt"
)

// ActionCode is the function code of a RAID action request.
type ActionCode uint8

const (
	ActionGetStatus              ActionCode = 0x00
	ActionIndicatorStruct        ActionCode = 0x01
	ActionCreateVolume           ActionCode = 0x02
	ActionDeleteVolume           ActionCode = 0x03
	ActionDisableVolume          ActionCode = 0x04
	ActionEnableVolume           ActionCode = 0x05
	ActionQuiescePhysIO          ActionCode = 0x06
	ActionEnablePhysIO           ActionCode = 0x07
	ActionChangeVolumeSettings   ActionCode = 0x08
	ActionPhysDiskOffline        ActionCode = 0x0A
	ActionPhysDiskOnline         ActionCode = 0x0B
	ActionChangePhysDiskSettings ActionCode = 0x0C
	ActionCreatePhysDisk         ActionCode = 0x0D
	ActionDeletePhysDisk         ActionCode = 0x0E
	ActionFailPhysDisk           ActionCode = 0x0F
	ActionReplacePhysDisk        ActionCode = 0x10
	ActionActivateVolume         ActionCode = 0x11
	ActionInactivateVolume       ActionCode = 0x12
	ActionSetResyncRate          ActionCode = 0x13
	ActionSetDataScrubRate       ActionCode = 0x14
)

//nolint:gochecknoglobals
var actionNames = map[ActionCode]string{
	ActionGetStatus:              "status",
	ActionIndicatorStruct:        "indicator-struct",
	ActionCreateVolume:           "create-volume",
	ActionDeleteVolume:           "delete-volume",
	ActionDisableVolume:          "disable-volume",
	ActionEnableVolume:           "enable-volume",
	ActionQuiescePhysIO:          "quiesce-phys-io",
	ActionEnablePhysIO:           "enable-phys-io",
	ActionChangeVolumeSettings:   "change-volume-settings",
	ActionPhysDiskOffline:        "physdisk-offline",
	ActionPhysDiskOnline:         "physdisk-online",
	ActionChangePhysDiskSettings: "change-physdisk-settings",
	ActionCreatePhysDisk:         "create-physdisk",
	ActionDeletePhysDisk:         "delete-physdisk",
	ActionFailPhysDisk:           "fail-physdisk",
	ActionReplacePhysDisk:        "replace-physdisk",
	ActionActivateVolume:         "activate-volume",
	ActionInactivateVolume:       "inactivate-volume",
	ActionSetResyncRate:          "set-resync-rate",
	ActionSetDataScrubRate:       "set-data-scrub-rate",
}

func (a ActionCode) String() string {
	if name, ok := actionNames[a]; ok {
		return name
	}

	return fmt.Sprintf("action-0x%02x", uint8(a))
}

// ActionResult is the action specific status in a RAID action reply.
type ActionResult uint16

const (
	ResultSuccess       ActionResult = 0x0000
	ResultInvalidAction ActionResult = 0x0001
	ResultFailure       ActionResult = 0x0002
	ResultInProgress    ActionResult = 0x0004
)

func (r ActionResult) String() string {
	switch r {
	case ResultSuccess:
		return "success"
	case ResultInvalidAction:
		return "invalid action"
	case ResultFailure:
		return "failure"
	case ResultInProgress:
		return "in progress"
	}

	return fmt.Sprintf("action status 0x%x", uint16(r))
}

// IOCStatus is the transport level status of any reply.
type IOCStatus uint16

const (
	IOCStatusSuccess           IOCStatus = 0x0000
	IOCStatusInvalidFunction   IOCStatus = 0x0001
	IOCStatusBusy              IOCStatus = 0x0002
	IOCStatusInvalidSGL        IOCStatus = 0x0003
	IOCStatusInternalError     IOCStatus = 0x0004
	IOCStatusInsufficientRsrcs IOCStatus = 0x0006
	IOCStatusInvalidField      IOCStatus = 0x0007
	IOCStatusInvalidState      IOCStatus = 0x0008
)

// NoDisk marks a request that addresses no physical disk.
const NoDisk = -1

// ActionRequest is one RAID action message. Tag is assigned by the action
// channel and echoed back in the matching ActionReply.
type ActionRequest struct {
	Tag        uint32
	Action     ActionCode
	VolumeBus  int
	VolumeID   int
	PhysDisk   int
	ActionData uint32
	Buffer     []byte
}

// ActionReply is the completion of an ActionRequest.
type ActionReply struct {
	Tag          uint32
	Action       ActionCode
	IOCStatus    IOCStatus
	Result       ActionResult
	VolumeStatus VolumeStatus
	// Data holds the settings word, the disk number or is unused depending
	// on Action.
	Data uint32
	// Indicator is filled for ActionIndicatorStruct.
	Indicator ResyncIndicator
}

// OK - did both the transport and the action succeed.
func (r ActionReply) OK() bool {
	return r.IOCStatus == IOCStatusSuccess && r.Result == ResultSuccess
}

// Err returns an *ActionError for a failed reply, nil otherwise.
func (r ActionReply) Err() error {
	if r.OK() {
		return nil
	}

	return &ActionError{Action: r.Action, IOCStatus: r.IOCStatus, Result: r.Result}
}

// ActionError reports a RAID action the controller refused or failed.
type ActionError struct {
	Action    ActionCode
	IOCStatus IOCStatus
	Result    ActionResult
}

func (e *ActionError) Error() string {
	return fmt.Sprintf("%s failed: ioc status 0x%x, %s", e.Action, uint16(e.IOCStatus), e.Result)
}

// ResyncIndicator is the resync progress of one volume.
type ResyncIndicator struct {
	TotalBlocks     uint64
	BlocksRemaining uint64
}
