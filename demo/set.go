package main

import (
	"fmt"
	"strconv"

	"github.com/urfave/cli/v2"
	"machinerun.io/mptraid"
)

//nolint:gochecknoglobals
var setCommand = cli.Command{
	Name:      "set",
	Usage:     "Apply tunables and show the actions sent to the firmware",
	ArgsUsage: "LAYOUT",
	Action:    setTunables,
	Flags: []cli.Flag{
		&cli.StringFlag{
			Name:  "write-cache",
			Usage: "off, on, rebuild-only or nochange",
		},
		&cli.StringFlag{
			Name:  "resync-rate",
			Usage: "0-255 or nochange",
		},
		&cli.IntFlag{
			Name:  "queue-depth",
			Usage: "volume queue depth 1-255",
		},
	},
}

func setTunables(c *cli.Context) error {
	s, err := attachLayout(c)
	if err != nil {
		return err
	}
	defer s.close()

	before := len(s.hba.Requests())

	if c.IsSet("write-cache") {
		mode, err := mptraid.ParseWriteCacheMode(c.String("write-cache"))
		if err != nil {
			return err
		}

		if err := s.ctrl.SetWriteCacheMode(mode); err != nil {
			return err
		}
	}

	if c.IsSet("resync-rate") {
		rate, err := mptraid.ParseResyncRate(c.String("resync-rate"))
		if err != nil {
			return err
		}

		if err := s.ctrl.SetResyncRate(rate); err != nil {
			return err
		}
	}

	if c.IsSet("queue-depth") {
		if err := s.ctrl.SetQueueDepth(c.Int("queue-depth")); err != nil {
			return err
		}
	}

	if err := s.settle(); err != nil {
		return err
	}

	data := [][]string{{"Action", "Volume", "Disk", "Data"}}

	for _, req := range s.hba.Requests()[before:] {
		disk := "-"
		if req.PhysDisk != mptraid.NoDisk {
			disk = strconv.Itoa(req.PhysDisk)
		}

		data = append(data, []string{
			req.Action.String(),
			fmt.Sprintf("%d:%d", req.VolumeBus, req.VolumeID),
			disk,
			fmt.Sprintf("%#x", req.ActionData),
		})
	}

	printTextTable(data)
	fmt.Println()
	printTables(s.ctrl)

	return nil
}
