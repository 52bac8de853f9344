package mptraid

import (
	"encoding/json"
	"fmt"
	"strings"
)

// VolumeType enumerates the Integrated RAID volume types.
type VolumeType uint8

const (
	// RAID0 - integrated striping (IS)
	RAID0 VolumeType = 0x00

	// RAID1E - integrated mirroring enhanced (IME)
	RAID1E VolumeType = 0x01

	// RAID1 - integrated mirroring (IM)
	RAID1 VolumeType = 0x02
)

func (t VolumeType) String() string {
	switch t {
	case RAID0:
		return "RAID-0"
	case RAID1E:
		return "RAID-1E"
	case RAID1:
		return "RAID-1"
	}

	return fmt.Sprintf("Unknown(0x%x)", uint8(t))
}

// MarshalJSON for string output rather than int
func (t VolumeType) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.String())
}

// VolumeState is the hardware computed health of a volume.
type VolumeState uint8

const (
	VolumeOptimal  VolumeState = 0x00
	VolumeDegraded VolumeState = 0x01
	VolumeFailed   VolumeState = 0x02
	VolumeMissing  VolumeState = 0x03
)

func (s VolumeState) String() string {
	names := []string{"Optimal", "Degraded", "Failed", "Missing"}
	if int(s) < len(names) {
		return names[s]
	}

	return fmt.Sprintf("State 0x%x", uint8(s))
}

// MarshalJSON for string output rather than int
func (s VolumeState) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

// VolumeStatusFlags are the status bits of RAID volume page 0.
type VolumeStatusFlags uint8

const (
	VolumeEnabled          VolumeStatusFlags = 0x01
	VolumeQuiesced         VolumeStatusFlags = 0x02
	VolumeResyncInProgress VolumeStatusFlags = 0x04
	VolumeInactive         VolumeStatusFlags = 0x08
)

func (f VolumeStatusFlags) String() string {
	names := []struct {
		flag VolumeStatusFlags
		name string
	}{
		{VolumeEnabled, "Enabled"},
		{VolumeQuiesced, "Quiesced"},
		{VolumeResyncInProgress, "Re-Syncing"},
		{VolumeInactive, "Inactive"},
	}

	set := []string{}

	for _, n := range names {
		if f&n.flag != 0 {
			set = append(set, n.name)
		}
	}

	if len(set) == 0 {
		return "Disabled"
	}

	return strings.Join(set, ",")
}

// VolumeStatus pairs the volume status flags with its state.
type VolumeStatus struct {
	Flags VolumeStatusFlags
	State VolumeState
}

// Resyncing - is the firmware rebuilding redundancy on this volume.
func (s VolumeStatus) Resyncing() bool {
	return s.Flags&VolumeResyncInProgress != 0
}

// VolumeSettingBits are the settings word of RAID volume page 0.
type VolumeSettingBits uint16

const (
	SettingWriteCacheEnable   VolumeSettingBits = 0x0001
	SettingOfflineOnSmart     VolumeSettingBits = 0x0002
	SettingAutoConfigure      VolumeSettingBits = 0x0004
	SettingPriorityResync     VolumeSettingBits = 0x0008
	SettingUseProductIDSuffix VolumeSettingBits = 0x0010
	SettingFastDataScrubbing  VolumeSettingBits = 0x0020
	SettingUseDefaults        VolumeSettingBits = 0x8000
)

// VolumeSettings is the settings word plus the hot spare pool bitmap. The
// pair is also the data word of a change-volume-settings action.
type VolumeSettings struct {
	Settings     VolumeSettingBits
	HotSparePool uint8
}

// Has - is the setting bit set.
func (s VolumeSettings) Has(bit VolumeSettingBits) bool {
	return s.Settings&bit != 0
}

// Toggle returns a copy with bit inverted.
func (s VolumeSettings) Toggle(bit VolumeSettingBits) VolumeSettings {
	s.Settings ^= bit
	return s
}

// Word encodes the settings as the 32 bit action data word.
func (s VolumeSettings) Word() uint32 {
	return uint32(s.Settings) | uint32(s.HotSparePool)<<16
}

// SettingsFromWord decodes an action data word.
func SettingsFromWord(w uint32) VolumeSettings {
	return VolumeSettings{
		Settings:     VolumeSettingBits(w & 0xffff),
		HotSparePool: uint8(w >> 16),
	}
}

// SparePools returns the hot spare pool numbers in the bitmap.
func SparePools(bitmap uint8) []int {
	pools := []int{}

	for i := 0; i < 8; i++ {
		if bitmap&(1<<i) != 0 {
			pools = append(pools, i)
		}
	}

	return pools
}

// PhysDiskState is the state of a physical disk.
type PhysDiskState uint8

const (
	DiskOnline           PhysDiskState = 0x00
	DiskMissing          PhysDiskState = 0x01
	DiskNotCompatible    PhysDiskState = 0x02
	DiskFailed           PhysDiskState = 0x03
	DiskInitializing     PhysDiskState = 0x04
	DiskOfflineRequested PhysDiskState = 0x05
	DiskFailedRequested  PhysDiskState = 0x06
	DiskOtherOffline     PhysDiskState = 0xFF
)

func (s PhysDiskState) String() string {
	switch s {
	case DiskOnline:
		return "Online"
	case DiskMissing:
		return "Missing"
	case DiskNotCompatible:
		return "Incompatible"
	case DiskFailed:
		return "Failed"
	case DiskInitializing:
		return "Initializing"
	case DiskOfflineRequested:
		return "Offline Requested"
	case DiskFailedRequested:
		return "Failed per Host Request"
	case DiskOtherOffline:
		return "Offline"
	}

	return fmt.Sprintf("State 0x%x", uint8(s))
}

// MarshalJSON for string output rather than int
func (s PhysDiskState) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

// PhysDiskStatusFlags are the status bits of physical disk page 0.
type PhysDiskStatusFlags uint8

const (
	DiskOutOfSync          PhysDiskStatusFlags = 0x01
	DiskQuiesced           PhysDiskStatusFlags = 0x02
	DiskInactiveVolume     PhysDiskStatusFlags = 0x04
	DiskNotOptimalPrevious PhysDiskStatusFlags = 0x08
)

func (f PhysDiskStatusFlags) String() string {
	names := []struct {
		flag PhysDiskStatusFlags
		name string
	}{
		{DiskOutOfSync, "Out-Of-Sync"},
		{DiskQuiesced, "Quiesced"},
		{DiskInactiveVolume, "Inactive-Volume"},
		{DiskNotOptimalPrevious, "Was-Not-Optimal"},
	}

	set := []string{}

	for _, n := range names {
		if f&n.flag != 0 {
			set = append(set, n.name)
		}
	}

	return strings.Join(set, ",")
}

// PhysDiskStatus pairs the disk status flags with its state.
type PhysDiskStatus struct {
	Flags PhysDiskStatusFlags
	State PhysDiskState
}

// MemberMap is the role bitmap of a volume member entry.
type MemberMap uint8

const (
	MemberPrimary   MemberMap = 0x01
	MemberSecondary MemberMap = 0x02
)

func (m MemberMap) String() string {
	switch {
	case m&MemberPrimary != 0:
		return "Primary"
	case m&MemberSecondary != 0:
		return "Secondary"
	}

	return "Unassigned"
}
