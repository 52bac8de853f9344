package action

import (
	"sync"
	"testing"
	"time"

	"github.com/go-logr/logr"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"machinerun.io/mptraid"
)

// fakePort answers every request from its own goroutine unless hold is set.
type fakePort struct {
	mu      sync.Mutex
	sent    []mptraid.ActionRequest
	hold    bool
	result  mptraid.ActionResult
	fail    error
	replies func(mptraid.ActionReply)
}

func (p *fakePort) Submit(req mptraid.ActionRequest) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.fail != nil {
		return p.fail
	}

	p.sent = append(p.sent, req)

	if !p.hold {
		reply := mptraid.ActionReply{Tag: req.Tag, Action: req.Action, Result: p.result, Data: req.ActionData}
		go p.replies(reply)
	}

	return nil
}

func (p *fakePort) requests() []mptraid.ActionRequest {
	p.mu.Lock()
	defer p.mu.Unlock()

	return append([]mptraid.ActionRequest{}, p.sent...)
}

func newTestChannel(port *fakePort, nslots int, timeout time.Duration) *Channel {
	ch := New(port, nslots, timeout, logr.Discard())
	port.replies = ch.Complete

	return ch
}

func TestDoSuccess(t *testing.T) {
	assert := assert.New(t)
	port := &fakePort{}
	ch := newTestChannel(port, 2, time.Second)

	reply, err := ch.Do(mptraid.ActionRequest{
		Action: mptraid.ActionSetResyncRate, VolumeID: 2, PhysDisk: mptraid.NoDisk, ActionData: 200})

	assert.NoError(err)
	assert.True(reply.OK())
	assert.Equal(uint32(200), reply.Data)
	assert.Equal(mptraid.ActionSetResyncRate, reply.Action)
	assert.Equal(0, ch.InFlight())
	assert.Len(port.requests(), 1)
	assert.NotZero(port.requests()[0].Tag)
}

func TestDoReportsFailureStatus(t *testing.T) {
	for _, result := range []mptraid.ActionResult{
		mptraid.ResultInvalidAction, mptraid.ResultFailure, mptraid.ResultInProgress} {
		port := &fakePort{result: result}
		ch := newTestChannel(port, 1, time.Second)

		_, err := ch.Do(mptraid.ActionRequest{Action: mptraid.ActionChangeVolumeSettings})
		require.Error(t, err)
		assert.True(t, mptraid.IsActionFailure(err), "result %s", result)

		var ae *mptraid.ActionError
		require.True(t, errors.As(err, &ae))
		assert.Equal(t, result, ae.Result)
		assert.Equal(t, 0, ch.InFlight())
	}
}

func TestDoTimeout(t *testing.T) {
	assert := assert.New(t)
	port := &fakePort{hold: true}
	timeout := 50 * time.Millisecond
	ch := newTestChannel(port, 1, timeout)

	start := time.Now()
	_, err := ch.Do(mptraid.ActionRequest{Action: mptraid.ActionQuiescePhysIO, PhysDisk: 3})
	elapsed := time.Since(start)

	assert.Equal(mptraid.ErrTimeout, err)
	assert.GreaterOrEqual(elapsed, timeout)
	assert.Less(elapsed, 10*timeout)
	assert.Equal(0, ch.InFlight(), "slot must be released on timeout")

	// a late reply for the expired tag is dropped quietly.
	tag := port.requests()[0].Tag
	ch.Complete(mptraid.ActionReply{Tag: tag, Action: mptraid.ActionQuiescePhysIO})
	_, late := ch.expired.Get(tagKey(tag))
	assert.False(late)
}

func TestNoRequestSlot(t *testing.T) {
	assert := assert.New(t)
	port := &fakePort{hold: true}
	ch := newTestChannel(port, 1, time.Second)

	call, err := ch.Start(mptraid.ActionRequest{Action: mptraid.ActionGetStatus})
	assert.NoError(err)
	assert.NotNil(call)

	_, err = ch.Start(mptraid.ActionRequest{Action: mptraid.ActionGetStatus})
	assert.Equal(mptraid.ErrNoRequestSlot, err)
	assert.Len(port.requests(), 1, "nothing sent without a slot")

	ch.Complete(mptraid.ActionReply{Tag: port.requests()[0].Tag})
	_, err = call.Wait()
	assert.NoError(err)
	assert.Equal(0, ch.InFlight())
}

func TestSubmitErrorReleasesSlot(t *testing.T) {
	port := &fakePort{fail: errors.New("doorbell stuck")}
	ch := newTestChannel(port, 1, time.Second)

	_, err := ch.Do(mptraid.ActionRequest{Action: mptraid.ActionGetStatus})
	assert.Error(t, err)
	assert.Equal(t, 0, ch.InFlight())
}

func TestGoContinuation(t *testing.T) {
	port := &fakePort{}
	ch := newTestChannel(port, 1, time.Second)

	done := make(chan error, 1)
	err := ch.Go(mptraid.ActionRequest{Action: mptraid.ActionQuiescePhysIO, PhysDisk: 3},
		func(reply mptraid.ActionReply, err error) {
			assert.Equal(t, mptraid.ActionQuiescePhysIO, reply.Action)
			done <- err
		})
	require.NoError(t, err)

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("continuation never ran")
	}

	assert.Equal(t, 0, ch.InFlight())
}

func TestGoTimeout(t *testing.T) {
	port := &fakePort{hold: true}
	ch := newTestChannel(port, 1, 20*time.Millisecond)

	done := make(chan error, 1)
	require.NoError(t, ch.Go(mptraid.ActionRequest{Action: mptraid.ActionQuiescePhysIO},
		func(_ mptraid.ActionReply, err error) { done <- err }))

	select {
	case err := <-done:
		assert.Equal(t, mptraid.ErrTimeout, err)
	case <-time.After(time.Second):
		t.Fatal("continuation never ran")
	}

	assert.Equal(t, 0, ch.InFlight())
}

func TestAbort(t *testing.T) {
	assert := assert.New(t)
	port := &fakePort{hold: true}
	ch := newTestChannel(port, 4, time.Second)

	call, err := ch.Start(mptraid.ActionRequest{Action: mptraid.ActionGetStatus})
	assert.NoError(err)

	asyncErr := make(chan error, 1)
	assert.NoError(ch.Go(mptraid.ActionRequest{Action: mptraid.ActionQuiescePhysIO},
		func(_ mptraid.ActionReply, err error) { asyncErr <- err }))

	assert.Equal(2, ch.Abort(mptraid.ErrAborted))

	_, err = call.Wait()
	assert.Equal(mptraid.ErrAborted, err)
	assert.Equal(mptraid.ErrAborted, <-asyncErr)
	assert.Equal(0, ch.InFlight())
}

func TestTagsAreUnique(t *testing.T) {
	port := &fakePort{}
	ch := newTestChannel(port, 2, time.Second)

	for i := 0; i < 5; i++ {
		_, err := ch.Do(mptraid.ActionRequest{Action: mptraid.ActionGetStatus})
		require.NoError(t, err)
	}

	seen := map[uint32]bool{}
	for _, r := range port.requests() {
		assert.False(t, seen[r.Tag], "tag %d reused", r.Tag)
		seen[r.Tag] = true
	}
}
