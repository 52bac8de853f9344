// Package raidctl keeps an in-core mirror of an Integrated RAID controller
// in step with its hardware events and pushes administrator policy back to
// the firmware.
package raidctl

import (
	"fmt"
	"sync"
	"time"

	"github.com/go-logr/logr"
	"github.com/pkg/errors"
	"machinerun.io/mptraid"
	"machinerun.io/mptraid/action"
	"machinerun.io/mptraid/entity"
)

// DefaultProgressInterval is how often resync progress is re-reported
// without new events.
const DefaultProgressInterval = 15 * time.Minute

// DefaultRequestSlots is the size of the RAID request arena.
const DefaultRequestSlots = 16

// ErrNoRAID - the controller reports no Integrated RAID capability.
var ErrNoRAID = errors.New("controller has no integrated raid support")

// Options configure a Controller. Start from DefaultOptions.
type Options struct {
	Log logr.Logger

	// ActionTimeout bounds every synchronous RAID action.
	ActionTimeout time.Duration

	// ProgressInterval re-arms resync progress reporting.
	ProgressInterval time.Duration

	// RequestSlots is the number of concurrently outstanding actions.
	RequestSlots int

	WriteCache mptraid.WriteCacheMode
	ResyncRate mptraid.ResyncRate
	QueueDepth int
}

// DefaultOptions returns the attach time defaults.
func DefaultOptions() Options {
	return Options{
		Log:              logr.Discard(),
		ActionTimeout:    action.DefaultTimeout,
		ProgressInterval: DefaultProgressInterval,
		RequestSlots:     DefaultRequestSlots,
		WriteCache:       mptraid.WriteCacheNoChange,
		ResyncRate:       mptraid.ResyncRateNoChange,
		QueueDepth:       mptraid.QueueDepthDefault,
	}
}

// Tunables are the administrator settings in effect.
type Tunables struct {
	WriteCache mptraid.WriteCacheMode
	ResyncRate mptraid.ResyncRate
	QueueDepth int
}

// ResetKind distinguishes the controller reset flavours.
type ResetKind int

const (
	SoftReset ResetKind = iota
	HardReset
)

func (k ResetKind) String() string {
	if k == HardReset {
		return "hard"
	}

	return "soft"
}

// Controller is the RAID state of one host adapter. All table state is
// guarded by mu; the worker goroutine is the only one reconciling it.
type Controller struct {
	mu sync.Mutex

	hba     mptraid.HBA
	blk     mptraid.BlockLayer
	log     logr.Logger
	limits  mptraid.Limits
	actions *action.Channel
	tables  *entity.Tables
	tun     Tunables
	mwceSet bool

	progressInterval time.Duration
	progressTimer    *time.Timer

	// idle is signalled when an entity drops its busy flag, cycled when
	// a refresh cycle finishes.
	idle   *sync.Cond
	cycled *sync.Cond

	rescan   bool
	ranOnce  bool
	shutdown bool
	started  uint64
	finished uint64

	wakeup chan struct{}
	done   chan struct{}
}

// Attach builds the RAID state for hba and starts the worker. Pass-through
// I/O on the block layer stays frozen until the first refresh completes.
func Attach(hba mptraid.HBA, blk mptraid.BlockLayer, opts Options) (*Controller, error) {
	limits := hba.Limits()
	if limits.MaxVolumes <= 0 || limits.MaxPhysDisks <= 0 {
		return nil, ErrNoRAID
	}

	if err := validate(opts); err != nil {
		return nil, err
	}

	if opts.Log.GetSink() == nil {
		opts.Log = logr.Discard()
	}

	if opts.ProgressInterval <= 0 {
		opts.ProgressInterval = DefaultProgressInterval
	}

	if opts.RequestSlots <= 0 {
		opts.RequestSlots = DefaultRequestSlots
	}

	c := &Controller{
		hba:    hba,
		blk:    blk,
		log:    opts.Log,
		limits: limits,
		tables: entity.NewTables(limits.MaxVolumes, limits.MaxPhysDisks),
		tun: Tunables{
			WriteCache: opts.WriteCache,
			ResyncRate: opts.ResyncRate,
			QueueDepth: opts.QueueDepth,
		},
		progressInterval: opts.ProgressInterval,
		wakeup:           make(chan struct{}, 1),
		done:             make(chan struct{}),
	}
	c.idle = sync.NewCond(&c.mu)
	c.cycled = sync.NewCond(&c.mu)
	c.actions = action.New(hba, opts.RequestSlots, opts.ActionTimeout, c.log.WithName("action"))

	blk.FreezeBus(limits.PassthruBus)
	hba.Attach(c)

	c.log.Info("raid attached",
		"maxVolumes", limits.MaxVolumes, "maxPhysDisks", limits.MaxPhysDisks,
		"writeCache", c.tun.WriteCache.String(), "resyncRate", c.tun.ResyncRate.String(),
		"queueDepth", c.tun.QueueDepth)

	go c.run()
	c.wake()

	return c, nil
}

func validate(opts Options) error {
	if opts.WriteCache < mptraid.WriteCacheOff || opts.WriteCache > mptraid.WriteCacheNoChange {
		return errors.Wrapf(mptraid.ErrInvalidTunable, "write cache mode %d", opts.WriteCache)
	}

	if !opts.ResyncRate.Valid() {
		return errors.Wrapf(mptraid.ErrInvalidTunable, "resync rate %d", opts.ResyncRate)
	}

	if !mptraid.ValidQueueDepth(opts.QueueDepth) {
		return errors.Wrapf(mptraid.ErrInvalidTunable, "queue depth %d", opts.QueueDepth)
	}

	return nil
}

// Detach stops the worker after its current cycle and waits for it. In
// flight synchronous actions are left to time out.
func (c *Controller) Detach() {
	c.mu.Lock()
	if c.shutdown {
		c.mu.Unlock()
		return
	}

	c.shutdown = true
	c.stopProgressTimer()
	c.cycled.Broadcast()
	c.mu.Unlock()

	c.wake()
	<-c.done

	c.mu.Lock()
	released := c.ranOnce
	c.ranOnce = true
	c.mu.Unlock()

	if !released {
		c.blk.ReleaseBus(c.limits.PassthruBus)
	}

	c.log.Info("raid detached")
}

// Reset handles a controller reset: outstanding requests are lost, quiesce
// state is forgotten and every entity is re-read.
func (c *Controller) Reset(kind ResetKind) {
	aborted := c.actions.Abort(mptraid.ErrAborted)

	c.mu.Lock()
	c.log.Info("controller reset", "kind", kind.String(), "abortedRequests", aborted)

	c.tables.ForEachVolume(func(v *entity.Volume) {
		v.MarkStale()
	})
	c.tables.ForEachDisk(func(d *entity.PhysDisk) {
		d.MarkStale()
		d.ClearQuiesce()
	})
	c.rescan = true
	c.mu.Unlock()

	c.wake()
}

// Shutdown prepares the volumes for host power off. Under the rebuild-only
// policy the write cache of every volume is turned off.
func (c *Controller) Shutdown() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.tun.WriteCache != mptraid.WriteCacheRebuildOnly {
		return
	}

	c.tun.WriteCache = mptraid.WriteCacheOff
	c.tables.ForEachActiveVolume(c.verifyWriteCache)
}

// HandleReply posts an action reply from the controller.
func (c *Controller) HandleReply(reply mptraid.ActionReply) {
	c.actions.Complete(reply)
}

// Sync wakes the worker and waits up to timeout for a refresh cycle that
// started after the call.
func (c *Controller) Sync(timeout time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.shutdown {
		return mptraid.ErrDetached
	}

	want := c.started + 1
	expired := false

	timer := time.AfterFunc(timeout, func() {
		c.mu.Lock()
		expired = true
		c.cycled.Broadcast()
		c.mu.Unlock()
	})
	defer timer.Stop()

	c.wake()

	for c.finished < want && !expired && !c.shutdown {
		c.cycled.Wait()
	}

	if c.finished < want {
		if c.shutdown {
			return mptraid.ErrDetached
		}

		return errors.Wrap(mptraid.ErrTimeout, "waiting for raid refresh")
	}

	return nil
}

// Tunables returns the administrator settings in effect.
func (c *Controller) Tunables() Tunables {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.tun
}

// Limits returns the controller reported limits.
func (c *Controller) Limits() mptraid.Limits {
	return c.limits
}

func (c *Controller) volLog(v *entity.Volume) logr.Logger {
	return c.log.WithValues("vol", v.String())
}

func (c *Controller) diskLog(d *entity.PhysDisk) logr.Logger {
	return c.log.WithValues("disk", d.String())
}

func target(bus, id int) string {
	return fmt.Sprintf("%d:%d", bus, id)
}
