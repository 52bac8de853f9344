package mptraid

// VolumeRef is one entry of the active volume directory (IOC page 2).
type VolumeRef struct {
	Bus  int
	ID   int
	Type VolumeType
	// PageNumber is the RAID volume page 0 instance for this volume.
	PageNumber int
}

// DiskRef is one entry of the physical disk directory (IOC page 3).
type DiskRef struct {
	Bus int
	ID  int
	Num int
}

// VolumeMember is one member disk slot of a volume.
type VolumeMember struct {
	PhysDiskNum int
	Map         MemberMap
}

// VolumePage is RAID volume page 0: the full configuration of a volume.
type VolumePage struct {
	Bus        int
	ID         int
	Type       VolumeType
	Status     VolumeStatus
	Settings   VolumeSettings
	ResyncRate uint8
	MaxLBA     uint64
	StripeSize uint32
	Members    []VolumeMember
}

// Resyncing - is a resync in progress on this volume.
func (p *VolumePage) Resyncing() bool {
	return p.Status.Resyncing()
}

// WriteCacheEnabled - is the volume write cache on.
func (p *VolumePage) WriteCacheEnabled() bool {
	return p.Settings.Has(SettingWriteCacheEnable)
}

// InquiryData is the identity the disk reported to the controller.
type InquiryData struct {
	Vendor   string
	Product  string
	Revision string
	Serial   string
}

// PhysDiskPage is physical disk page 0.
type PhysDiskPage struct {
	Num          int
	Bus          int
	ID           int
	HotSparePool uint8
	Inquiry      InquiryData
	Status       PhysDiskStatus
	MaxLBA       uint64
}

// Limits are the controller reported table sizes (IOC page 2 maxima).
type Limits struct {
	MaxVolumes   int
	MaxPhysDisks int
	// VolumeBus is the host bus on which volumes are exposed, PassthruBus
	// the bus addressing hidden member disks directly.
	VolumeBus   int
	PassthruBus int
}
