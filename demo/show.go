package main

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/urfave/cli/v2"
	"machinerun.io/mptraid/raidctl"
)

//nolint:gochecknoglobals
var showCommand = cli.Command{
	Name:      "show",
	Usage:     "Attach to a layout and show volumes and disks",
	ArgsUsage: "LAYOUT",
	Action:    showLayout,
	Flags: []cli.Flag{
		&cli.BoolFlag{
			Name:  "json",
			Usage: "print json instead of tables",
		},
	},
}

func showLayout(c *cli.Context) error {
	s, err := attachLayout(c)
	if err != nil {
		return err
	}
	defer s.close()

	if c.Bool("json") {
		return printJSON(s.ctrl)
	}

	printTables(s.ctrl)

	return nil
}

func printJSON(ctrl *raidctl.Controller) error {
	jbytes, err := json.MarshalIndent(
		map[string]interface{}{
			"volumes": ctrl.Volumes(),
			"disks":   ctrl.Disks(),
		}, "", "  ")
	if err != nil {
		return err
	}

	fmt.Printf("%s\n", string(jbytes))

	return nil
}

func printTables(ctrl *raidctl.Controller) {
	vols := [][]string{{"Volume", "Type", "State", "Status", "WCE", "Rate", "Depth", "Members", "Progress"}}

	for _, v := range ctrl.Volumes() {
		members := make([]string, len(v.Members))
		for i, m := range v.Members {
			members[i] = strconv.Itoa(m)
		}

		progress := "-"
		if v.Resyncing && v.Progress.TotalBlocks > 0 {
			done := v.Progress.TotalBlocks - v.Progress.BlocksRemaining
			progress = fmt.Sprintf("%d%%", done*100/v.Progress.TotalBlocks) //nolint: gomnd
		}

		vols = append(vols, []string{
			fmt.Sprintf("%d:%d", v.Bus, v.ID),
			v.Type.String(),
			v.State.String(),
			v.Status,
			strconv.FormatBool(v.WriteCache),
			strconv.Itoa(v.ResyncRate),
			strconv.Itoa(v.QueueDepth),
			strings.Join(members, ","),
			progress,
		})
	}

	printTextTable(vols)
	fmt.Println()

	disks := [][]string{{"Disk", "Target", "Vendor", "Product", "State", "Status", "Volume", "Spare"}}

	for _, d := range ctrl.Disks() {
		vol := "-"
		if d.Volume >= 0 {
			vol = fmt.Sprintf("%d/%d", d.Volume, d.Member)
		}

		disks = append(disks, []string{
			strconv.Itoa(d.Num),
			fmt.Sprintf("%d:%d", d.Bus, d.ID),
			d.Inquiry.Vendor,
			d.Inquiry.Product,
			d.State.String(),
			d.Status,
			vol,
			strconv.Itoa(int(d.SparePool)),
		})
	}

	printTextTable(disks)
}
