package mockhba

import (
	"github.com/pkg/errors"
	"machinerun.io/mptraid"
)

// FailRead makes the read identified by key return err. nil clears it.
func (h *HBA) FailRead(key string, err error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if err == nil {
		delete(h.reads, key)
		return
	}

	h.reads[key] = err
}

// Reads returns how often the read identified by key was attempted.
func (h *HBA) Reads(key string) int {
	h.mu.Lock()
	defer h.mu.Unlock()

	return h.readLog[key]
}

func (h *HBA) readLocked(key string) error {
	h.readLog[key]++
	return h.reads[key]
}

// ReadVolumeDirectory implements mptraid.PageReader.
func (h *HBA) ReadVolumeDirectory() ([]mptraid.VolumeRef, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if err := h.readLocked(ReadVolumeDirectory); err != nil {
		return nil, err
	}

	refs := []mptraid.VolumeRef{}

	for i, v := range h.vols {
		refs = append(refs, mptraid.VolumeRef{
			Bus:        v.page.Bus,
			ID:         v.page.ID,
			Type:       v.page.Type,
			PageNumber: i,
		})
	}

	return refs, nil
}

// ReadDiskDirectory implements mptraid.PageReader.
func (h *HBA) ReadDiskDirectory() ([]mptraid.DiskRef, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if err := h.readLocked(ReadDiskDirectory); err != nil {
		return nil, err
	}

	refs := []mptraid.DiskRef{}

	for _, d := range h.disks {
		refs = append(refs, mptraid.DiskRef{Bus: d.Bus, ID: d.ID, Num: d.Num})
	}

	return refs, nil
}

// ReadVolumePage implements mptraid.PageReader.
func (h *HBA) ReadVolumePage(ref mptraid.VolumeRef) (mptraid.VolumePage, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if err := h.readLocked(ReadVolumePage(ref.Bus, ref.ID)); err != nil {
		return mptraid.VolumePage{}, err
	}

	v := h.volumeLocked(ref.Bus, ref.ID)
	if v == nil {
		return mptraid.VolumePage{}, errors.Errorf("no volume %d:%d", ref.Bus, ref.ID)
	}

	page := v.page
	page.Members = append([]mptraid.VolumeMember{}, v.page.Members...)

	return page, nil
}

// ReadPhysDiskPage implements mptraid.PageReader.
func (h *HBA) ReadPhysDiskPage(num int) (mptraid.PhysDiskPage, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if err := h.readLocked(ReadPhysDiskPage(num)); err != nil {
		return mptraid.PhysDiskPage{}, err
	}

	d := h.diskLocked(num)
	if d == nil {
		return mptraid.PhysDiskPage{}, errors.Errorf("no physical disk %d", num)
	}

	return *d, nil
}

func (h *HBA) volumeLocked(bus, id int) *volume {
	for _, v := range h.vols {
		if v.page.Bus == bus && v.page.ID == id {
			return v
		}
	}

	return nil
}

func (h *HBA) diskLocked(num int) *mptraid.PhysDiskPage {
	for i := range h.disks {
		if h.disks[i].Num == num {
			return &h.disks[i]
		}
	}

	return nil
}

// UpdateVolume edits the page of volume bus:id in place. It returns false
// when no such volume exists. No event is raised.
func (h *HBA) UpdateVolume(bus, id int, fn func(*mptraid.VolumePage)) bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	v := h.volumeLocked(bus, id)
	if v == nil {
		return false
	}

	fn(&v.page)

	return true
}

// SetProgress sets what the resync indicator of volume bus:id reports.
func (h *HBA) SetProgress(bus, id int, total, remaining uint64) bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	v := h.volumeLocked(bus, id)
	if v == nil {
		return false
	}

	v.indicator = mptraid.ResyncIndicator{TotalBlocks: total, BlocksRemaining: remaining}

	return true
}

// AddVolume adds a volume to the directory.
func (h *HBA) AddVolume(l VolumeLayout) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.vols = append(h.vols, &volume{
		page:      l.page(),
		indicator: mptraid.ResyncIndicator{TotalBlocks: l.TotalBlocks, BlocksRemaining: l.BlocksRemaining},
	})
}

// RemoveVolume deletes volume bus:id from the directory.
func (h *HBA) RemoveVolume(bus, id int) bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	for i, v := range h.vols {
		if v.page.Bus == bus && v.page.ID == id {
			h.vols = append(h.vols[:i], h.vols[i+1:]...)
			return true
		}
	}

	return false
}

// AddDisk adds a physical disk to the directory.
func (h *HBA) AddDisk(l DiskLayout) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.disks = append(h.disks, l.page())
}

// UpdateDisk edits the page of disk num in place.
func (h *HBA) UpdateDisk(num int, fn func(*mptraid.PhysDiskPage)) bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	d := h.diskLocked(num)
	if d == nil {
		return false
	}

	fn(d)

	return true
}

// RemoveDisk deletes disk num from the directory.
func (h *HBA) RemoveDisk(num int) bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	for i := range h.disks {
		if h.disks[i].Num == num {
			h.disks = append(h.disks[:i], h.disks[i+1:]...)
			return true
		}
	}

	return false
}

// Volume returns a copy of the page of volume bus:id.
func (h *HBA) Volume(bus, id int) (mptraid.VolumePage, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()

	v := h.volumeLocked(bus, id)
	if v == nil {
		return mptraid.VolumePage{}, false
	}

	return v.page, true
}

// Disk returns a copy of the page of disk num.
func (h *HBA) Disk(num int) (mptraid.PhysDiskPage, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()

	d := h.diskLocked(num)
	if d == nil {
		return mptraid.PhysDiskPage{}, false
	}

	return *d, true
}
