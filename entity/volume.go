package entity

import (
	"fmt"

	"github.com/google/go-cmp/cmp"
	"machinerun.io/mptraid"
)

// Volume is the in-core record of one RAID volume.
type Volume struct {
	// Slot is the fixed table index of this record.
	Slot int

	// Ref is the directory entry that claimed the slot.
	Ref mptraid.VolumeRef

	// Page is the last successfully read config page.
	Page mptraid.VolumePage

	// Progress is the last resync indicator fetched.
	Progress mptraid.ResyncIndicator

	// QueueDepth is the depth last pushed to the block layer.
	QueueDepth int

	claimed bool
	flags   VolumeFlags

	// gen counts invalidations, readGen is gen as of the last page read.
	gen     uint64
	readGen uint64
}

func (v *Volume) String() string {
	return fmt.Sprintf("vol%d(%d:%d)", v.Slot, v.Ref.Bus, v.Ref.ID)
}

// Bus returns the host bus of the volume.
func (v *Volume) Bus() int { return v.Ref.Bus }

// ID returns the target id of the volume.
func (v *Volume) ID() int { return v.Ref.ID }

// Claimed - does the slot hold an identity.
func (v *Volume) Claimed() bool { return v.claimed }

// Flags returns the raw lifecycle bits.
func (v *Volume) Flags() VolumeFlags { return v.flags }

func (v *Volume) Active() bool     { return v.flags&VolActive != 0 }
func (v *Volume) UpToDate() bool   { return v.flags&VolUpToDate != 0 }
func (v *Volume) Announced() bool  { return v.flags&VolAnnounced != 0 }
func (v *Volume) Referenced() bool { return v.flags&VolReferenced != 0 }
func (v *Volume) Busy() bool       { return v.flags&VolBusy != 0 }

// Resyncing - does the current snapshot report resync in progress.
func (v *Volume) Resyncing() bool {
	return v.Page.Resyncing()
}

// MarkActive records that the controller reports this volume and its page
// was read.
func (v *Volume) MarkActive() { v.flags |= VolActive }

// MarkStale forces a page re-read on the next refresh.
func (v *Volume) MarkStale() {
	v.flags &^= VolUpToDate
	v.gen++
}

// MarkRead records that the snapshot reflects every invalidation so far.
func (v *Volume) MarkRead() { v.readGen = v.gen }

// StaleSinceRead - was the record invalidated after its snapshot was taken.
func (v *Volume) StaleSinceRead() bool { return v.gen != v.readGen }

// MarkFresh records that policy ran against the current snapshot.
func (v *Volume) MarkFresh() { v.flags |= VolUpToDate }

// Announce records the one time description was emitted.
func (v *Volume) Announce() { v.flags |= VolAnnounced }

// Unannounce forces the description to be emitted again.
func (v *Volume) Unannounce() { v.flags &^= VolAnnounced }

// MarkReferenced / ClearReferenced drive the refresh scratch bit.
func (v *Volume) MarkReferenced()  { v.flags |= VolReferenced }
func (v *Volume) ClearReferenced() { v.flags &^= VolReferenced }

// SetBusy marks a synchronous action in flight on this volume.
func (v *Volume) SetBusy(busy bool) {
	if busy {
		v.flags |= VolBusy
	} else {
		v.flags &^= VolBusy
	}
}

// ToggleWCELatch flips the rebuild-only write cache latch and reports
// whether it is now set.
func (v *Volume) ToggleWCELatch() bool {
	v.flags ^= VolWCEChanged
	return v.flags&VolWCEChanged != 0
}

// ClearWCELatch resets the rebuild-only latch.
func (v *Volume) ClearWCELatch() { v.flags &^= VolWCEChanged }

// WCELatched - is the rebuild-only latch set.
func (v *Volume) WCELatched() bool { return v.flags&VolWCEChanged != 0 }

// Update installs a freshly read page and reports whether settings or
// membership changed compared to the previous snapshot.
func (v *Volume) Update(page mptraid.VolumePage) bool {
	changed := v.SettingsChanged(page)
	v.Page = page

	return changed
}

// SettingsChanged - does page differ from the snapshot in anything other
// than status.
func (v *Volume) SettingsChanged(page mptraid.VolumePage) bool {
	old := v.Page
	old.Status = mptraid.VolumeStatus{}
	page.Status = mptraid.VolumeStatus{}

	return !cmp.Equal(old, page)
}

// Retire resets the slot to its never used state.
func (v *Volume) Retire() {
	*v = Volume{Slot: v.Slot}
}

func (v *Volume) claim(ref mptraid.VolumeRef) {
	*v = Volume{Slot: v.Slot, Ref: ref, claimed: true}
}
