package mptraid

// CommandChannel - the shared request path into the controller. Submit
// must not wait for the reply and must never deliver it from within the
// Submit call; replies reach the attached ReplyHandler from another
// goroutine.
type CommandChannel interface {
	Submit(ActionRequest) error
}

// ReplyHandler consumes action replies and RAID events posted by the
// controller. Both methods may be invoked from interrupt context.
type ReplyHandler interface {
	HandleReply(ActionReply)
	NotifyEvent(Event)
}

// PageReader reads controller maintained configuration pages. Reads block
// and may fail, leaving nothing changed on the controller.
type PageReader interface {
	// ReadVolumeDirectory reads IOC page 2.
	ReadVolumeDirectory() ([]VolumeRef, error)

	// ReadDiskDirectory reads IOC page 3.
	ReadDiskDirectory() ([]DiskRef, error)

	// ReadVolumePage reads RAID volume page 0 for the volume.
	ReadVolumePage(VolumeRef) (VolumePage, error)

	// ReadPhysDiskPage reads physical disk page 0 for disk number.
	ReadPhysDiskPage(int) (PhysDiskPage, error)
}

// HBA - the host bus adapter as seen by the RAID core.
type HBA interface {
	CommandChannel
	PageReader

	// Attach registers the handler that receives replies and events.
	Attach(ReplyHandler)

	// Limits returns the controller reported table sizes.
	Limits() Limits
}

// BlockLayer is the client storage stack addressing volumes and
// pass-through disks.
type BlockLayer interface {
	// RescanBus asynchronously rescans the pass-through bus.
	RescanBus(bus int)

	// AdjustQueueDepth sets the command openings of a volume path.
	AdjustQueueDepth(bus, target, depth int) error

	// FreezeBus holds all new I/O to the bus, ReleaseBus lets it run.
	FreezeBus(bus int)
	ReleaseBus(bus int)

	// FreezeDevice pauses I/O to one target, ReleaseDevice resumes it.
	FreezeDevice(bus, target int)
	ReleaseDevice(bus, target int)
}
