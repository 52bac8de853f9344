package mptraid

import "fmt"

// EventReason is the reason code of an Integrated RAID event.
type EventReason uint8

const (
	EventVolumeCreated           EventReason = 0x00
	EventVolumeDeleted           EventReason = 0x01
	EventVolumeSettingsChanged   EventReason = 0x02
	EventVolumeStatusChanged     EventReason = 0x03
	EventVolumePhysDiskChanged   EventReason = 0x04
	EventPhysDiskCreated         EventReason = 0x05
	EventPhysDiskDeleted         EventReason = 0x06
	EventPhysDiskSettingsChanged EventReason = 0x07
	EventPhysDiskStatusChanged   EventReason = 0x08
	EventDomainValNeeded         EventReason = 0x09
	EventSmartData               EventReason = 0x0A
	EventReplaceActionStarted    EventReason = 0x0B
)

//nolint:gochecknoglobals
var reasonNames = []string{
	"Volume Created",
	"Volume Deleted",
	"Volume Settings Changed",
	"Volume Status Changed",
	"Volume Physical Disk Membership Changed",
	"Physical Disk Created",
	"Physical Disk Deleted",
	"Physical Disk Settings Changed",
	"Physical Disk Status Changed",
	"Domain Validation Required",
	"SMART Data Received",
	"Replace Action Started",
}

func (r EventReason) String() string {
	if int(r) < len(reasonNames) {
		return reasonNames[r]
	}

	return fmt.Sprintf("Unknown Reason 0x%x", uint8(r))
}

// ReasonByName maps the short names used on command lines and in layouts
// to a reason code.
func ReasonByName(name string) (EventReason, bool) {
	short := map[string]EventReason{
		"volume-created":            EventVolumeCreated,
		"volume-deleted":            EventVolumeDeleted,
		"volume-settings-changed":   EventVolumeSettingsChanged,
		"volume-status-changed":     EventVolumeStatusChanged,
		"volume-physdisk-changed":   EventVolumePhysDiskChanged,
		"physdisk-created":          EventPhysDiskCreated,
		"physdisk-deleted":          EventPhysDiskDeleted,
		"physdisk-settings-changed": EventPhysDiskSettingsChanged,
		"physdisk-status-changed":   EventPhysDiskStatusChanged,
		"domain-val-needed":         EventDomainValNeeded,
		"smart-data":                EventSmartData,
		"replace-action-started":    EventReplaceActionStarted,
	}

	r, ok := short[name]

	return r, ok
}

// Event is one Integrated RAID notification from the controller.
type Event struct {
	Reason    EventReason
	VolumeBus int
	VolumeID  int
	PhysDisk  int
	ASC       uint8
	ASCQ      uint8
}
