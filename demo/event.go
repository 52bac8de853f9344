package main

import (
	"github.com/pkg/errors"
	"github.com/urfave/cli/v2"
	"machinerun.io/mptraid"
)

//nolint:gochecknoglobals
var eventCommand = cli.Command{
	Name:      "event",
	Usage:     "Inject a firmware event and show the resulting state",
	ArgsUsage: "LAYOUT REASON",
	Action:    injectEvent,
	Flags: []cli.Flag{
		&cli.IntFlag{
			Name:  "vol",
			Value: -1,
			Usage: "target id of the volume the event names",
		},
		&cli.IntFlag{
			Name:  "disk",
			Value: mptraid.NoDisk,
			Usage: "physical disk number the event names",
		},
		&cli.IntFlag{
			Name:  "asc",
			Usage: "additional sense code",
		},
		&cli.IntFlag{
			Name:  "ascq",
			Usage: "additional sense code qualifier",
		},
	},
}

func injectEvent(c *cli.Context) error {
	name := c.Args().Get(1)

	reason, ok := mptraid.ReasonByName(name)
	if !ok {
		return errors.Errorf("unknown event reason %q", name)
	}

	s, err := attachLayout(c)
	if err != nil {
		return err
	}
	defer s.close()

	ev := mptraid.Event{
		Reason:    reason,
		VolumeBus: s.ctrl.Limits().VolumeBus,
		VolumeID:  c.Int("vol"),
		PhysDisk:  c.Int("disk"),
		ASC:       uint8(c.Int("asc")),
		ASCQ:      uint8(c.Int("ascq")),
	}

	s.hba.Post(ev)

	if err := s.settle(); err != nil {
		return err
	}

	printTables(s.ctrl)

	return nil
}
