package raidctl

import (
	"machinerun.io/mptraid"
	"machinerun.io/mptraid/entity"
)

// VolumeInfo is a point in time copy of one active volume.
type VolumeInfo struct {
	Slot       int                     `json:"slot"`
	Bus        int                     `json:"bus"`
	ID         int                     `json:"id"`
	Type       mptraid.VolumeType      `json:"type"`
	State      mptraid.VolumeState     `json:"state"`
	Status     string                  `json:"status"`
	Settings   mptraid.VolumeSettings  `json:"settings"`
	WriteCache bool                    `json:"writeCache"`
	ResyncRate int                     `json:"resyncRate"`
	Resyncing  bool                    `json:"resyncing"`
	Progress   mptraid.ResyncIndicator `json:"progress"`
	QueueDepth int                     `json:"queueDepth"`
	MaxLBA     uint64                  `json:"maxLBA"`
	Members    []int                   `json:"members"`
	UpToDate   bool                    `json:"upToDate"`
}

// DiskInfo is a point in time copy of one active physical disk.
type DiskInfo struct {
	Num       int                   `json:"num"`
	Bus       int                   `json:"bus"`
	ID        int                   `json:"id"`
	State     mptraid.PhysDiskState `json:"state"`
	Status    string                `json:"status"`
	Inquiry   mptraid.InquiryData   `json:"inquiry"`
	MaxLBA    uint64                `json:"maxLBA"`
	Volume    int                   `json:"volume"`
	Member    int                   `json:"member"`
	SparePool uint8                 `json:"sparePool"`
	Quiesced  bool                  `json:"quiesced"`
}

// Volumes returns the active volumes in slot order.
func (c *Controller) Volumes() []VolumeInfo {
	c.mu.Lock()
	defer c.mu.Unlock()

	vols := []VolumeInfo{}

	c.tables.ForEachActiveVolume(func(v *entity.Volume) {
		info := VolumeInfo{
			Slot:       v.Slot,
			Bus:        v.Bus(),
			ID:         v.ID(),
			Type:       v.Page.Type,
			State:      v.Page.Status.State,
			Status:     v.Page.Status.Flags.String(),
			Settings:   v.Page.Settings,
			WriteCache: v.Page.WriteCacheEnabled(),
			ResyncRate: int(v.Page.ResyncRate),
			Resyncing:  v.Resyncing(),
			Progress:   v.Progress,
			QueueDepth: v.QueueDepth,
			MaxLBA:     v.Page.MaxLBA,
			Members:    []int{},
			UpToDate:   v.UpToDate(),
		}

		for _, m := range v.Page.Members {
			info.Members = append(info.Members, m.PhysDiskNum)
		}

		vols = append(vols, info)
	})

	return vols
}

// Disks returns the active physical disks in number order. Volume is -1
// for disks outside any volume.
func (c *Controller) Disks() []DiskInfo {
	c.mu.Lock()
	defer c.mu.Unlock()

	disks := []DiskInfo{}

	c.tables.ForEachActiveDisk(func(d *entity.PhysDisk) {
		info := DiskInfo{
			Num:       d.Num,
			Bus:       d.Page.Bus,
			ID:        d.Page.ID,
			State:     d.Page.Status.State,
			Status:    d.Page.Status.Flags.String(),
			Inquiry:   d.Page.Inquiry,
			MaxLBA:    d.Page.MaxLBA,
			Volume:    -1,
			SparePool: d.Page.HotSparePool,
			Quiesced:  d.Quiesced(),
		}

		if d.Volume != nil {
			info.Volume = d.Volume.Slot
			info.Member = d.Member
		}

		disks = append(disks, info)
	})

	return disks
}
