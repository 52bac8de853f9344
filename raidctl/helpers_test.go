package raidctl_test

import (
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-logr/logr"
	"github.com/go-logr/logr/funcr"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"
	"machinerun.io/mptraid"
	"machinerun.io/mptraid/mockhba"
	"machinerun.io/mptraid/raidctl"
)

const settle = 2 * time.Second

var errInjected = errors.New("injected failure")

type logLines struct {
	mu    sync.Mutex
	lines []string
}

func newLogger() (logr.Logger, *logLines) {
	ll := &logLines{}
	log := funcr.New(func(prefix, args string) {
		ll.mu.Lock()
		defer ll.mu.Unlock()

		ll.lines = append(ll.lines, prefix+" "+args)
	}, funcr.Options{Verbosity: 1})

	return log, ll
}

// count returns the number of lines containing every one of subs.
func (l *logLines) count(subs ...string) int {
	l.mu.Lock()
	defer l.mu.Unlock()

	n := 0

	for _, line := range l.lines {
		all := true

		for _, s := range subs {
			if !strings.Contains(line, s) {
				all = false
				break
			}
		}

		if all {
			n++
		}
	}

	return n
}

func (l *logLines) dump() string {
	l.mu.Lock()
	defer l.mu.Unlock()

	return strings.Join(l.lines, "\n")
}

type rig struct {
	c    *raidctl.Controller
	hba  *mockhba.HBA
	blk  *mockhba.Block
	logs *logLines
}

// attach brings up a controller on the test layout. prep runs before
// Attach so firmware state and options can be adjusted.
func attach(t *testing.T, prep func(*mockhba.HBA, *raidctl.Options)) *rig {
	t.Helper()

	hba := mockhba.New("testdata/layout.json")
	blk := mockhba.NewBlock()
	log, logs := newLogger()

	opts := raidctl.DefaultOptions()
	opts.Log = log
	opts.ActionTimeout = 200 * time.Millisecond

	if prep != nil {
		prep(hba, &opts)
	}

	c, err := raidctl.Attach(hba, blk, opts)
	require.NoError(t, err)

	t.Cleanup(func() {
		c.Detach()
		hba.Close()
	})

	require.NoError(t, c.Sync(settle))

	return &rig{c: c, hba: hba, blk: blk, logs: logs}
}

func (r *rig) sync(t *testing.T) {
	t.Helper()
	require.NoError(t, r.c.Sync(settle))
}

// flush waits until every event posted before it has been classified.
func (r *rig) flush(t *testing.T) {
	t.Helper()

	before := r.logs.count(mptraid.EventReplaceActionStarted.String())
	r.hba.Post(mptraid.Event{Reason: mptraid.EventReplaceActionStarted, PhysDisk: mptraid.NoDisk})

	require.Eventually(t, func() bool {
		return r.logs.count(mptraid.EventReplaceActionStarted.String()) > before
	}, settle, time.Millisecond)
}

func (r *rig) volume(t *testing.T, id int) raidctl.VolumeInfo {
	t.Helper()

	for _, v := range r.c.Volumes() {
		if v.ID == id {
			return v
		}
	}

	t.Fatalf("volume %d not active", id)

	return raidctl.VolumeInfo{}
}

func (r *rig) disk(num int) (raidctl.DiskInfo, bool) {
	for _, d := range r.c.Disks() {
		if d.Num == num {
			return d, true
		}
	}

	return raidctl.DiskInfo{}, false
}

func requestsFor(reqs []mptraid.ActionRequest, code mptraid.ActionCode, volID int) []mptraid.ActionRequest {
	out := []mptraid.ActionRequest{}

	for _, r := range reqs {
		if r.Action == code && r.VolumeID == volID {
			out = append(out, r)
		}
	}

	return out
}
