package entity

// VolumeFlags are the lifecycle bits of a Volume.
type VolumeFlags uint8

const (
	VolActive VolumeFlags = 1 << iota
	VolUpToDate
	VolAnnounced
	VolWCEChanged
	VolReferenced
	VolBusy
)

// DiskFlags are the lifecycle bits of a PhysDisk.
type DiskFlags uint8

const (
	DiskActive DiskFlags = 1 << iota
	DiskUpToDate
	DiskAnnounced
	DiskReferenced
	DiskQuiescing
	DiskQuiesced
	DiskBusy
)
