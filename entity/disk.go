package entity

import (
	"fmt"

	"machinerun.io/mptraid"
)

// PhysDisk is the in-core record of one physical disk.
type PhysDisk struct {
	// Num is the controller disk number, the table index.
	Num int

	Page mptraid.PhysDiskPage

	// Volume is the owning volume while the disk is one of its members.
	Volume *Volume

	// Member is the slot of the disk in Volume's member list.
	Member int

	flags DiskFlags

	gen     uint64
	readGen uint64
}

func (d *PhysDisk) String() string {
	return fmt.Sprintf("disk%d(%d:%d)", d.Num, d.Page.Bus, d.Page.ID)
}

// Flags returns the raw lifecycle bits.
func (d *PhysDisk) Flags() DiskFlags { return d.flags }

func (d *PhysDisk) Active() bool     { return d.flags&DiskActive != 0 }
func (d *PhysDisk) UpToDate() bool   { return d.flags&DiskUpToDate != 0 }
func (d *PhysDisk) Announced() bool  { return d.flags&DiskAnnounced != 0 }
func (d *PhysDisk) Referenced() bool { return d.flags&DiskReferenced != 0 }
func (d *PhysDisk) Quiescing() bool  { return d.flags&DiskQuiescing != 0 }
func (d *PhysDisk) Quiesced() bool   { return d.flags&DiskQuiesced != 0 }
func (d *PhysDisk) Busy() bool       { return d.flags&DiskBusy != 0 }

func (d *PhysDisk) MarkActive()      { d.flags |= DiskActive }
func (d *PhysDisk) MarkFresh()       { d.flags |= DiskUpToDate }
func (d *PhysDisk) Announce()        { d.flags |= DiskAnnounced }
func (d *PhysDisk) MarkReferenced()  { d.flags |= DiskReferenced }
func (d *PhysDisk) ClearReferenced() { d.flags &^= DiskReferenced }

// MarkStale forces a page re-read on the next refresh.
func (d *PhysDisk) MarkStale() {
	d.flags &^= DiskUpToDate
	d.gen++
}

// MarkRead records that the snapshot reflects every invalidation so far.
func (d *PhysDisk) MarkRead() { d.readGen = d.gen }

// StaleSinceRead - was the record invalidated after its snapshot was taken.
func (d *PhysDisk) StaleSinceRead() bool { return d.gen != d.readGen }

// SetBusy marks a synchronous action in flight on this disk.
func (d *PhysDisk) SetBusy(busy bool) {
	if busy {
		d.flags |= DiskBusy
	} else {
		d.flags &^= DiskBusy
	}
}

// BeginQuiesce moves the disk to quiescing.
func (d *PhysDisk) BeginQuiesce() {
	d.flags = d.flags&^DiskQuiesced | DiskQuiescing
}

// FinishQuiesce records the quiesce outcome.
func (d *PhysDisk) FinishQuiesce(ok bool) {
	d.flags &^= DiskQuiescing
	if ok {
		d.flags |= DiskQuiesced
	}
}

// ClearQuiesce forgets any quiesce state.
func (d *PhysDisk) ClearQuiesce() {
	d.flags &^= DiskQuiescing | DiskQuiesced
}

// IsMember - is the disk hidden inside a volume.
func (d *PhysDisk) IsMember() bool {
	return d.Volume != nil
}

// SetVolume links the disk to the volume slot it occupies.
func (d *PhysDisk) SetVolume(v *Volume, member int) {
	d.Volume = v
	d.Member = member
}

// ClearVolume drops the volume backreference.
func (d *PhysDisk) ClearVolume() {
	d.Volume = nil
	d.Member = 0
}

// Retire resets the record to its never used state.
func (d *PhysDisk) Retire() {
	*d = PhysDisk{Num: d.Num}
}
