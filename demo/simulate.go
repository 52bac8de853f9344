package main

import (
	"context"
	"time"

	"github.com/urfave/cli/v2"
	"golang.org/x/sync/errgroup"
	"machinerun.io/mptraid"
)

//nolint:gochecknoglobals
var simulateCommand = cli.Command{
	Name:      "simulate",
	Usage:     "Run the resync of every resyncing volume to completion",
	ArgsUsage: "LAYOUT",
	Action:    simulateResync,
	Flags: []cli.Flag{
		&cli.DurationFlag{
			Name:  "duration",
			Value: 10 * time.Second,
			Usage: "give up after this long",
		},
		&cli.DurationFlag{
			Name:  "tick",
			Value: 500 * time.Millisecond,
			Usage: "firmware progress interval",
		},
		&cli.IntFlag{
			Name:  "steps",
			Value: 10,
			Usage: "number of ticks a resync takes",
		},
	},
}

type resync struct {
	bus, id   int
	total     uint64
	remaining uint64
}

func resyncingVolumes(s *session) []*resync {
	syncs := []*resync{}

	for _, v := range s.ctrl.Volumes() {
		if !v.Resyncing {
			continue
		}

		r := &resync{bus: v.Bus, id: v.ID, total: v.Progress.TotalBlocks, remaining: v.Progress.BlocksRemaining}
		if r.total == 0 {
			r.total = v.MaxLBA + 1
			r.remaining = r.total
		}

		syncs = append(syncs, r)
	}

	return syncs
}

// advance moves every resync one step along and reports whether any is
// still running.
func advance(s *session, syncs []*resync, step uint64) bool {
	running := false

	for _, r := range syncs {
		if r.remaining == 0 {
			continue
		}

		if r.remaining > step {
			r.remaining -= step
		} else {
			r.remaining = 0
		}

		s.hba.SetProgress(r.bus, r.id, r.total, r.remaining)

		if r.remaining == 0 {
			s.hba.UpdateVolume(r.bus, r.id, func(p *mptraid.VolumePage) {
				p.Status.Flags &^= mptraid.VolumeResyncInProgress
			})
		} else {
			running = true
		}

		s.hba.Post(mptraid.Event{
			Reason:    mptraid.EventVolumeStatusChanged,
			VolumeBus: r.bus,
			VolumeID:  r.id,
			PhysDisk:  mptraid.NoDisk,
		})
	}

	return running
}

func simulateResync(c *cli.Context) error {
	s, err := attachLayout(c)
	if err != nil {
		return err
	}
	defer s.close()

	syncs := resyncingVolumes(s)
	if len(syncs) == 0 {
		printTables(s.ctrl)
		return nil
	}

	steps := uint64(1)
	if n := c.Int("steps"); n > 1 {
		steps = uint64(n)
	}

	ctx, cancel := context.WithTimeout(c.Context, c.Duration("duration"))
	defer cancel()

	done := make(chan struct{})
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		defer close(done)

		ticker := time.NewTicker(c.Duration("tick"))
		defer ticker.Stop()

		step := uint64(0)
		for _, r := range syncs {
			if n := r.remaining/steps + 1; n > step {
				step = n
			}
		}

		for {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-ticker.C:
				if !advance(s, syncs, step) {
					return nil
				}
			}
		}
	})

	g.Go(func() error {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-done:
		}

		return s.settle()
	})

	err = g.Wait()

	printTables(s.ctrl)

	return err
}
