// Package action issues RAID action requests on the controller command
// channel and correlates their replies.
package action

import (
	"strconv"
	"sync"
	"time"

	"github.com/go-logr/logr"
	"github.com/patrickmn/go-cache"
	"github.com/pkg/errors"
	"machinerun.io/mptraid"
)

// DefaultTimeout bounds a synchronous action.
const DefaultTimeout = 2 * time.Second

// expiredTTL is how long the tag of a timed out request is remembered.
const expiredTTL = 5 * time.Minute

// Continuation receives the completion of an asynchronous request. err is
// non-nil when the reply reports failure, the request timed out or was
// aborted.
type Continuation func(reply mptraid.ActionReply, err error)

type result struct {
	reply mptraid.ActionReply
	err   error
}

type slot struct {
	tag   uint32
	req   mptraid.ActionRequest
	done  chan result
	cont  Continuation
	timer *time.Timer
}

// Channel owns a fixed arena of request slots. Every slot holds at most
// one in-flight request, tracked by tag until its reply, timeout or abort.
type Channel struct {
	mu      sync.Mutex
	port    mptraid.CommandChannel
	log     logr.Logger
	timeout time.Duration
	slots   []slot
	free    []int
	pending map[uint32]int
	nextTag uint32
	expired *cache.Cache
}

// New returns a Channel with nslots request slots submitting on port.
func New(port mptraid.CommandChannel, nslots int, timeout time.Duration, log logr.Logger) *Channel {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	ch := &Channel{
		port:    port,
		log:     log,
		timeout: timeout,
		slots:   make([]slot, nslots),
		free:    make([]int, 0, nslots),
		pending: map[uint32]int{},
		expired: cache.New(expiredTTL, expiredTTL),
	}

	for i := nslots - 1; i >= 0; i-- {
		ch.free = append(ch.free, i)
	}

	return ch
}

// Timeout returns the completion bound of a request.
func (ch *Channel) Timeout() time.Duration {
	return ch.timeout
}

// InFlight returns the number of slots currently held.
func (ch *Channel) InFlight() int {
	ch.mu.Lock()
	defer ch.mu.Unlock()

	return len(ch.pending)
}

// Call is a submitted synchronous request.
type Call struct {
	ch   *Channel
	tag  uint32
	done chan result
}

// Start submits req in synchronous mode. The slot stays held until Wait
// observes the reply or the timeout.
func (ch *Channel) Start(req mptraid.ActionRequest) (*Call, error) {
	done := make(chan result, 1)

	tag, err := ch.submit(req, done, nil)
	if err != nil {
		return nil, err
	}

	return &Call{ch: ch, tag: tag, done: done}, nil
}

// Wait blocks until the reply is posted or the channel timeout elapses.
func (c *Call) Wait() (mptraid.ActionReply, error) {
	timer := time.NewTimer(c.ch.timeout)
	defer timer.Stop()

	select {
	case r := <-c.done:
		return r.reply, r.err
	case <-timer.C:
	}

	if c.ch.expire(c.tag) {
		return mptraid.ActionReply{Tag: c.tag}, mptraid.ErrTimeout
	}

	// the reply won the race against the timer.
	r := <-c.done

	return r.reply, r.err
}

// Do issues req and waits for its completion.
func (ch *Channel) Do(req mptraid.ActionRequest) (mptraid.ActionReply, error) {
	call, err := ch.Start(req)
	if err != nil {
		return mptraid.ActionReply{}, err
	}

	return call.Wait()
}

// Go issues req in asynchronous mode. cont runs exactly once, from the
// goroutine delivering the reply or from the timeout timer.
func (ch *Channel) Go(req mptraid.ActionRequest, cont Continuation) error {
	ch.mu.Lock()
	defer ch.mu.Unlock()

	tag, err := ch.submitLocked(req, nil, cont)
	if err != nil {
		return err
	}

	ch.slots[ch.pending[tag]].timer = time.AfterFunc(ch.timeout, func() {
		ch.expireAsync(tag)
	})

	return nil
}

func (ch *Channel) submit(req mptraid.ActionRequest, done chan result, cont Continuation) (uint32, error) {
	ch.mu.Lock()
	defer ch.mu.Unlock()

	return ch.submitLocked(req, done, cont)
}

func (ch *Channel) submitLocked(req mptraid.ActionRequest, done chan result, cont Continuation) (uint32, error) {
	if len(ch.free) == 0 {
		ch.log.Info("get request failed", "action", req.Action.String())
		return 0, mptraid.ErrNoRequestSlot
	}

	idx := ch.free[len(ch.free)-1]
	ch.free = ch.free[:len(ch.free)-1]

	ch.nextTag++
	if ch.nextTag == 0 {
		ch.nextTag++
	}

	req.Tag = ch.nextTag
	ch.slots[idx] = slot{tag: req.Tag, req: req, done: done, cont: cont}
	ch.pending[req.Tag] = idx

	if err := ch.port.Submit(req); err != nil {
		ch.releaseLocked(req.Tag)
		return 0, errors.Wrapf(err, "submit %s", req.Action)
	}

	return req.Tag, nil
}

// releaseLocked frees the slot of tag and returns its contents.
func (ch *Channel) releaseLocked(tag uint32) (slot, bool) {
	idx, ok := ch.pending[tag]
	if !ok {
		return slot{}, false
	}

	s := ch.slots[idx]
	ch.slots[idx] = slot{}
	delete(ch.pending, tag)
	ch.free = append(ch.free, idx)

	return s, true
}

func (ch *Channel) expire(tag uint32) bool {
	ch.mu.Lock()
	defer ch.mu.Unlock()

	s, ok := ch.releaseLocked(tag)
	if ok {
		ch.expired.SetDefault(tagKey(tag), s.req.Action)
	}

	return ok
}

func (ch *Channel) expireAsync(tag uint32) {
	ch.mu.Lock()
	s, ok := ch.releaseLocked(tag)

	if ok {
		ch.expired.SetDefault(tagKey(tag), s.req.Action)
	}
	ch.mu.Unlock()

	if ok {
		s.cont(mptraid.ActionReply{Tag: tag, Action: s.req.Action}, mptraid.ErrTimeout)
	}
}

// Complete posts a reply. It never blocks and is safe from interrupt
// context; an asynchronous continuation runs on the calling goroutine.
func (ch *Channel) Complete(reply mptraid.ActionReply) {
	ch.mu.Lock()
	s, ok := ch.releaseLocked(reply.Tag)

	if !ok {
		action, late := ch.expired.Get(tagKey(reply.Tag))
		ch.mu.Unlock()

		if late {
			ch.expired.Delete(tagKey(reply.Tag))
			ch.log.V(1).Info("dropping late reply", "tag", reply.Tag, "action", action.(mptraid.ActionCode).String())
		} else {
			ch.log.Info("reply for unknown request", "tag", reply.Tag, "action", reply.Action.String())
		}

		return
	}
	ch.mu.Unlock()

	reply.Action = s.req.Action

	ch.deliver(s, result{reply: reply, err: reply.Err()})
}

// Abort fails every in-flight request with err and returns how many were
// dropped.
func (ch *Channel) Abort(err error) int {
	ch.mu.Lock()
	dropped := make([]slot, 0, len(ch.pending))

	for tag := range ch.pending {
		if s, ok := ch.releaseLocked(tag); ok {
			dropped = append(dropped, s)
		}
	}
	ch.mu.Unlock()

	for _, s := range dropped {
		ch.deliver(s, result{reply: mptraid.ActionReply{Tag: s.tag, Action: s.req.Action}, err: err})
	}

	return len(dropped)
}

func (ch *Channel) deliver(s slot, r result) {
	if s.done != nil {
		s.done <- r
		return
	}

	if s.timer != nil {
		s.timer.Stop()
	}

	if s.cont != nil {
		s.cont(r.reply, r.err)
	}
}

func tagKey(tag uint32) string {
	return strconv.FormatUint(uint64(tag), 10)
}
