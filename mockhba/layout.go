package mockhba

import (
	"encoding/json"
	"os"

	"machinerun.io/mptraid"
)

// Layout describes the RAID configuration of a simulated controller.
type Layout struct {
	MaxVolumes   int            `json:"maxVolumes"`
	MaxPhysDisks int            `json:"maxPhysDisks"`
	VolumeBus    int            `json:"volumeBus"`
	PassthruBus  int            `json:"passthruBus"`
	Volumes      []VolumeLayout `json:"volumes"`
	Disks        []DiskLayout   `json:"disks"`
}

// VolumeLayout is one volume. Enumerated fields carry the raw page values.
type VolumeLayout struct {
	Bus        int            `json:"bus"`
	ID         int            `json:"id"`
	Type       uint8          `json:"type"`
	State      uint8          `json:"state"`
	Status     uint8          `json:"status"`
	Settings   uint16         `json:"settings"`
	SparePool  uint8          `json:"sparePool"`
	ResyncRate uint8          `json:"resyncRate"`
	MaxLBA     uint64         `json:"maxLBA"`
	StripeSize uint32         `json:"stripeSize"`
	Members    []MemberLayout `json:"members"`

	// TotalBlocks and BlocksRemaining are what the resync indicator
	// action reports.
	TotalBlocks     uint64 `json:"totalBlocks"`
	BlocksRemaining uint64 `json:"blocksRemaining"`
}

// MemberLayout is one member slot of a volume.
type MemberLayout struct {
	Disk int   `json:"disk"`
	Map  uint8 `json:"map"`
}

// DiskLayout is one physical disk.
type DiskLayout struct {
	Num       int    `json:"num"`
	Bus       int    `json:"bus"`
	ID        int    `json:"id"`
	State     uint8  `json:"state"`
	Status    uint8  `json:"status"`
	SparePool uint8  `json:"sparePool"`
	Vendor    string `json:"vendor"`
	Product   string `json:"product"`
	Revision  string `json:"revision"`
	Serial    string `json:"serial"`
	MaxLBA    uint64 `json:"maxLBA"`
}

// LoadLayout reads a JSON layout file.
func LoadLayout(path string) (Layout, error) {
	layout := Layout{}

	file, err := os.ReadFile(path)
	if err != nil {
		return layout, err
	}

	err = json.Unmarshal(file, &layout)

	return layout, err
}

func (l VolumeLayout) page() mptraid.VolumePage {
	page := mptraid.VolumePage{
		Bus:  l.Bus,
		ID:   l.ID,
		Type: mptraid.VolumeType(l.Type),
		Status: mptraid.VolumeStatus{
			Flags: mptraid.VolumeStatusFlags(l.Status),
			State: mptraid.VolumeState(l.State),
		},
		Settings: mptraid.VolumeSettings{
			Settings:     mptraid.VolumeSettingBits(l.Settings),
			HotSparePool: l.SparePool,
		},
		ResyncRate: l.ResyncRate,
		MaxLBA:     l.MaxLBA,
		StripeSize: l.StripeSize,
		Members:    []mptraid.VolumeMember{},
	}

	for _, m := range l.Members {
		page.Members = append(page.Members, mptraid.VolumeMember{
			PhysDiskNum: m.Disk,
			Map:         mptraid.MemberMap(m.Map),
		})
	}

	return page
}

func (l DiskLayout) page() mptraid.PhysDiskPage {
	return mptraid.PhysDiskPage{
		Num:          l.Num,
		Bus:          l.Bus,
		ID:           l.ID,
		HotSparePool: l.SparePool,
		Inquiry: mptraid.InquiryData{
			Vendor:   l.Vendor,
			Product:  l.Product,
			Revision: l.Revision,
			Serial:   l.Serial,
		},
		Status: mptraid.PhysDiskStatus{
			Flags: mptraid.PhysDiskStatusFlags(l.Status),
			State: mptraid.PhysDiskState(l.State),
		},
		MaxLBA: l.MaxLBA,
	}
}
