// Package mockhba simulates an Integrated RAID controller for tests and the
// demo tool. Replies and events are delivered in order from one goroutine,
// never from inside Submit.
package mockhba

import (
	"fmt"
	"sync"

	"github.com/pkg/errors"
	"machinerun.io/mptraid"
)

// Read failure keys for FailRead.
const (
	ReadVolumeDirectory = "volumes"
	ReadDiskDirectory   = "disks"
)

// ReadVolumePage returns the FailRead key of one volume page.
func ReadVolumePage(bus, id int) string {
	return fmt.Sprintf("volume:%d:%d", bus, id)
}

// ReadPhysDiskPage returns the FailRead key of one disk page.
func ReadPhysDiskPage(num int) string {
	return fmt.Sprintf("disk:%d", num)
}

// ErrClosed - the simulated controller was closed.
var ErrClosed = errors.New("mock hba closed")

type volume struct {
	page      mptraid.VolumePage
	indicator mptraid.ResyncIndicator
}

// HBA is a simulated controller. It implements mptraid.HBA.
type HBA struct {
	mu     sync.Mutex
	limits mptraid.Limits
	vols   []*volume
	disks  []mptraid.PhysDiskPage

	handler mptraid.ReplyHandler
	events  bool
	closed  bool

	requests []mptraid.ActionRequest
	held     map[mptraid.ActionCode][]mptraid.ActionRequest
	holding  map[mptraid.ActionCode]bool
	results  map[mptraid.ActionCode]mptraid.ActionResult
	submit   error
	reads    map[string]error
	readLog  map[string]int

	fired  []mptraid.Event
	queue  []func(mptraid.ReplyHandler)
	signal chan struct{}
	stop   chan struct{}
}

// New builds a controller from a JSON layout file and panics when the
// file cannot be used.
func New(path string) *HBA {
	layout, err := LoadLayout(path)
	if err != nil {
		panic(err)
	}

	return FromLayout(layout)
}

// FromLayout builds a controller from an in-memory layout.
func FromLayout(layout Layout) *HBA {
	h := &HBA{
		limits: mptraid.Limits{
			MaxVolumes:   layout.MaxVolumes,
			MaxPhysDisks: layout.MaxPhysDisks,
			VolumeBus:    layout.VolumeBus,
			PassthruBus:  layout.PassthruBus,
		},
		events:  true,
		held:    map[mptraid.ActionCode][]mptraid.ActionRequest{},
		holding: map[mptraid.ActionCode]bool{},
		results: map[mptraid.ActionCode]mptraid.ActionResult{},
		reads:   map[string]error{},
		readLog: map[string]int{},
		signal:  make(chan struct{}, 1),
		stop:    make(chan struct{}),
	}

	for _, v := range layout.Volumes {
		h.vols = append(h.vols, &volume{
			page: v.page(),
			indicator: mptraid.ResyncIndicator{
				TotalBlocks:     v.TotalBlocks,
				BlocksRemaining: v.BlocksRemaining,
			},
		})
	}

	for _, d := range layout.Disks {
		h.disks = append(h.disks, d.page())
	}

	return h
}

// Limits implements mptraid.HBA.
func (h *HBA) Limits() mptraid.Limits {
	return h.limits
}

// Attach implements mptraid.HBA and starts delivery.
func (h *HBA) Attach(handler mptraid.ReplyHandler) {
	h.mu.Lock()
	defer h.mu.Unlock()

	start := h.handler == nil
	h.handler = handler

	if start {
		go h.deliverLoop()
	}
}

// Close stops delivery. Pending replies are discarded.
func (h *HBA) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return
	}

	h.closed = true
	h.queue = nil
	close(h.stop)
}

// EmitEvents controls whether simulated firmware changes post events.
func (h *HBA) EmitEvents(on bool) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.events = on
}

func (h *HBA) deliverLoop() {
	for {
		select {
		case <-h.stop:
			return
		case <-h.signal:
		}

		for {
			h.mu.Lock()
			if h.closed || len(h.queue) == 0 {
				h.mu.Unlock()
				break
			}

			fn := h.queue[0]
			h.queue = h.queue[1:]
			handler := h.handler
			h.mu.Unlock()

			fn(handler)
		}
	}
}

// enqueueLocked schedules fn on the delivery goroutine.
func (h *HBA) enqueueLocked(fn func(mptraid.ReplyHandler)) {
	if h.closed {
		return
	}

	h.queue = append(h.queue, fn)

	select {
	case h.signal <- struct{}{}:
	default:
	}
}

func (h *HBA) replyLocked(reply mptraid.ActionReply) {
	h.enqueueLocked(func(rh mptraid.ReplyHandler) { rh.HandleReply(reply) })
}

// eventLocked records a firmware event raised by an action. It is posted
// after the action reply.
func (h *HBA) eventLocked(ev mptraid.Event) {
	if h.events {
		h.fired = append(h.fired, ev)
	}
}

func (h *HBA) completeLocked(reply mptraid.ActionReply) {
	h.replyLocked(reply)

	for _, ev := range h.fired {
		ev := ev
		h.enqueueLocked(func(rh mptraid.ReplyHandler) { rh.NotifyEvent(ev) })
	}

	h.fired = nil
}

// Post delivers ev to the attached handler as if the firmware raised it.
func (h *HBA) Post(ev mptraid.Event) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.enqueueLocked(func(rh mptraid.ReplyHandler) { rh.NotifyEvent(ev) })
}
