// Package entity holds the in-core mirror of the controller RAID topology.
// Nothing here touches hardware and nothing here locks; callers serialize
// access with the controller lock.
package entity

import (
	"github.com/pkg/errors"
	"machinerun.io/mptraid"
)

// ErrTableFull - no free volume slot is left.
var ErrTableFull = errors.New("volume table full")

// Tables are the bounded volume and disk arrays of one controller.
type Tables struct {
	vols  []Volume
	disks []PhysDisk
}

// NewTables sizes the tables at the controller reported maxima.
func NewTables(maxVolumes, maxDisks int) *Tables {
	t := &Tables{
		vols:  make([]Volume, maxVolumes),
		disks: make([]PhysDisk, maxDisks),
	}

	for i := range t.vols {
		t.vols[i].Slot = i
	}

	for i := range t.disks {
		t.disks[i].Num = i
	}

	return t
}

// MaxVolumes returns the volume table size.
func (t *Tables) MaxVolumes() int { return len(t.vols) }

// MaxDisks returns the disk table size.
func (t *Tables) MaxDisks() int { return len(t.disks) }

// VolumeByID returns the claimed volume with the bus/target identity, or
// nil.
func (t *Tables) VolumeByID(bus, id int) *Volume {
	for i := range t.vols {
		v := &t.vols[i]
		if v.claimed && v.Ref.Bus == bus && v.Ref.ID == id {
			return v
		}
	}

	return nil
}

// VolumeBySlot returns the record at slot or nil when out of range.
func (t *Tables) VolumeBySlot(slot int) *Volume {
	if slot < 0 || slot >= len(t.vols) {
		return nil
	}

	return &t.vols[slot]
}

// ClaimVolume returns the record for ref, claiming a free slot when the
// identity is new.
func (t *Tables) ClaimVolume(ref mptraid.VolumeRef) (*Volume, error) {
	if v := t.VolumeByID(ref.Bus, ref.ID); v != nil {
		v.Ref = ref
		return v, nil
	}

	for i := range t.vols {
		v := &t.vols[i]
		if !v.claimed {
			v.claim(ref)
			return v, nil
		}
	}

	return nil, errors.Wrapf(ErrTableFull, "volume %d:%d", ref.Bus, ref.ID)
}

// DiskByNumber returns the disk record for num or nil when out of range.
func (t *Tables) DiskByNumber(num int) *PhysDisk {
	if num < 0 || num >= len(t.disks) {
		return nil
	}

	return &t.disks[num]
}

// DiskByTarget returns the active disk addressed by target id on the
// pass-through bus.
func (t *Tables) DiskByTarget(target int) *PhysDisk {
	for i := range t.disks {
		d := &t.disks[i]
		if d.Active() && d.Page.ID == target {
			return d
		}
	}

	return nil
}

// ForEachVolume visits every slot, claimed or not.
func (t *Tables) ForEachVolume(fn func(*Volume)) {
	for i := range t.vols {
		fn(&t.vols[i])
	}
}

// ForEachActiveVolume visits active volumes in slot order.
func (t *Tables) ForEachActiveVolume(fn func(*Volume)) {
	for i := range t.vols {
		if t.vols[i].Active() {
			fn(&t.vols[i])
		}
	}
}

// ForEachDisk visits every disk record.
func (t *Tables) ForEachDisk(fn func(*PhysDisk)) {
	for i := range t.disks {
		fn(&t.disks[i])
	}
}

// ForEachActiveDisk visits active disks in number order.
func (t *Tables) ForEachActiveDisk(fn func(*PhysDisk)) {
	for i := range t.disks {
		if t.disks[i].Active() {
			fn(&t.disks[i])
		}
	}
}

// MembersOf returns the disks whose backreference is v.
func (t *Tables) MembersOf(v *Volume) []*PhysDisk {
	members := []*PhysDisk{}

	for i := range t.disks {
		if t.disks[i].Volume == v {
			members = append(members, &t.disks[i])
		}
	}

	return members
}
