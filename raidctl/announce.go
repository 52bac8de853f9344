package raidctl

import (
	"strconv"
	"strings"

	"machinerun.io/mptraid"
	"machinerun.io/mptraid/entity"
)

//nolint:gochecknoglobals
var settingNames = []struct {
	bit  mptraid.VolumeSettingBits
	name string
}{
	{mptraid.SettingWriteCacheEnable, "Write-Cache"},
	{mptraid.SettingOfflineOnSmart, "Offline-On-SMART-Error"},
	{mptraid.SettingAutoConfigure, "Auto-Configure"},
	{mptraid.SettingPriorityResync, "Priority-Resync"},
	{mptraid.SettingUseProductIDSuffix, "Product-ID-Suffix"},
	{mptraid.SettingFastDataScrubbing, "Fast-Data-Scrubbing"},
}

func settingsString(s mptraid.VolumeSettings) string {
	set := []string{}

	for _, n := range settingNames {
		if s.Has(n.bit) {
			set = append(set, n.name)
		}
	}

	if len(set) == 0 {
		return "none"
	}

	return strings.Join(set, ",")
}

// memberRole describes the place of a disk in its volume.
func memberRole(v *entity.Volume, d *entity.PhysDisk) string {
	if v.Page.Type == mptraid.RAID1 {
		for _, m := range v.Page.Members {
			if m.PhysDiskNum == d.Num {
				return m.Map.String()
			}
		}
	}

	return "Stripe Position " + strconv.Itoa(d.Member)
}

func (c *Controller) announceVolume(v *entity.Volume) {
	log := c.volLog(v)
	page := &v.Page

	log.Info("raid volume",
		"type", page.Type.String(), "members", len(page.Members),
		"maxLBA", page.MaxLBA, "stripeSize", page.StripeSize)
	log.Info("volume settings", "settings", settingsString(page.Settings))

	if page.Settings.HotSparePool != 0 {
		log.Info("volume uses spare pools", "pools", mptraid.SparePools(page.Settings.HotSparePool))
	}

	for _, d := range c.tables.MembersOf(v) {
		log.Info("volume member",
			"disk", d.String(),
			"passthru", target(c.limits.PassthruBus, d.Page.ID),
			"role", memberRole(v, d))
	}
}

func (c *Controller) announceDisk(d *entity.PhysDisk) {
	log := c.diskLog(d)
	inq := d.Page.Inquiry

	kv := []interface{}{
		"vendor", inq.Vendor, "product", inq.Product,
		"revision", inq.Revision, "serial", inq.Serial,
		"maxLBA", d.Page.MaxLBA,
	}

	if d.Volume != nil {
		kv = append(kv, "volume", d.Volume.String(), "role", memberRole(d.Volume, d))
	}

	if d.Page.HotSparePool != 0 {
		kv = append(kv, "sparePools", mptraid.SparePools(d.Page.HotSparePool))
	}

	log.Info("physical disk", kv...)
}

func (c *Controller) logVolumeStatus(v *entity.Volume) {
	st := v.Page.Status
	c.volLog(v).Info("volume status", "state", st.State.String(), "flags", st.Flags.String())
}

func (c *Controller) logProgress(v *entity.Volume) {
	p := v.Progress
	if p.TotalBlocks == 0 || p.BlocksRemaining > p.TotalBlocks {
		return
	}

	c.volLog(v).Info("resync progress",
		"remaining", p.BlocksRemaining, "total", p.TotalBlocks,
		"percentDone", (p.TotalBlocks-p.BlocksRemaining)*100/p.TotalBlocks)
}

func (c *Controller) logDiskStatus(d *entity.PhysDisk) {
	st := d.Page.Status
	kv := []interface{}{"state", st.State.String()}

	if st.Flags != 0 {
		kv = append(kv, "flags", st.Flags.String())
	}

	c.diskLog(d).Info("physical disk status", kv...)
}
