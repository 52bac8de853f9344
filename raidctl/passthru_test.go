package raidctl_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"machinerun.io/mptraid"
	"machinerun.io/mptraid/mockhba"
	"machinerun.io/mptraid/raidctl"
)

func TestPassthroughMapping(t *testing.T) {
	assert := assert.New(t)
	r := attach(t, nil)

	num, err := r.c.MapPassthroughTarget(12)
	require.NoError(t, err)
	assert.Equal(4, num)

	_, err = r.c.MapPassthroughTarget(2)
	assert.ErrorIs(err, mptraid.ErrNotFound)

	assert.True(r.c.IsVolumeTarget(2))
	assert.True(r.c.IsVolumeTarget(3))
	assert.False(r.c.IsVolumeTarget(8))
}

func TestQuiesceDisk(t *testing.T) {
	assert := assert.New(t)
	r := attach(t, nil)

	r.hba.Hold(mptraid.ActionQuiescePhysIO)

	state, err := r.c.QuiesceDisk(1)
	require.NoError(t, err)
	assert.Equal(raidctl.QuiesceInProgress, state)
	assert.True(r.blk.DeviceFrozen(1, 9))

	state, err = r.c.QuiesceDisk(1)
	require.NoError(t, err)
	assert.Equal(raidctl.QuiesceInProgress, state, "repeat calls do not re-issue")
	assert.Equal(1, r.hba.Count(mptraid.ActionQuiescePhysIO))

	reqs := r.hba.Requests()
	last := reqs[len(reqs)-1]
	assert.Equal(1, last.PhysDisk)
	assert.Equal(2, last.VolumeID, "addressed through the owning volume")

	require.Equal(t, 1, r.hba.Deliver(mptraid.ActionQuiescePhysIO))
	require.Eventually(t, func() bool {
		state, err := r.c.QuiesceDisk(1)
		return err == nil && state == raidctl.QuiesceComplete
	}, settle, time.Millisecond)

	assert.False(r.blk.DeviceFrozen(1, 9))
	assert.Equal(1, r.hba.Count(mptraid.ActionQuiescePhysIO))

	d, _ := r.disk(1)
	assert.True(d.Quiesced)

	require.NoError(t, r.c.ResumeDisk(1))
	assert.Equal(1, r.hba.Count(mptraid.ActionEnablePhysIO))

	d, _ = r.disk(1)
	assert.False(d.Quiesced)

	require.NoError(t, r.c.ResumeDisk(1))
	assert.Equal(1, r.hba.Count(mptraid.ActionEnablePhysIO), "resuming a running disk is a no-op")
}

func TestQuiesceFailure(t *testing.T) {
	assert := assert.New(t)
	r := attach(t, nil)

	r.hba.FailAction(mptraid.ActionQuiescePhysIO, mptraid.ResultFailure)

	state, err := r.c.QuiesceDisk(4)
	require.NoError(t, err)
	assert.Equal(raidctl.QuiesceInProgress, state)

	require.Eventually(t, func() bool {
		return r.logs.count("quiesce failed", "disk4(1:12)") == 1
	}, settle, time.Millisecond)

	assert.False(r.blk.DeviceFrozen(1, 12))

	d, _ := r.disk(4)
	assert.False(d.Quiesced)
}

func TestQuiesceTimeout(t *testing.T) {
	r := attach(t, func(_ *mockhba.HBA, opts *raidctl.Options) {
		opts.ActionTimeout = 30 * time.Millisecond
	})

	r.hba.Hold(mptraid.ActionQuiescePhysIO)

	state, err := r.c.QuiesceDisk(0)
	require.NoError(t, err)
	assert.Equal(t, raidctl.QuiesceInProgress, state)

	require.Eventually(t, func() bool {
		return r.logs.count("quiesce failed", "disk0(1:8)") == 1
	}, settle, time.Millisecond)

	assert.False(t, r.blk.DeviceFrozen(1, 8), "a timed out quiesce releases the device")
}

func TestQuiesceUnknownDisk(t *testing.T) {
	r := attach(t, nil)

	state, err := r.c.QuiesceDisk(7)
	assert.ErrorIs(t, err, mptraid.ErrNotFound)
	assert.Equal(t, raidctl.QuiesceError, state)

	state, err = r.c.QuiesceDisk(99)
	assert.ErrorIs(t, err, mptraid.ErrNotFound)
	assert.Equal(t, raidctl.QuiesceError, state)

	assert.ErrorIs(t, r.c.ResumeDisk(7), mptraid.ErrNotFound)
}

func TestQuiesceSubmitFailure(t *testing.T) {
	assert := assert.New(t)
	r := attach(t, nil)

	r.hba.FailSubmit(errInjected)

	state, err := r.c.QuiesceDisk(2)
	assert.ErrorIs(err, errInjected)
	assert.Equal(raidctl.QuiesceError, state)
	assert.False(r.blk.DeviceFrozen(1, 10))

	r.hba.FailSubmit(nil)

	state, err = r.c.QuiesceDisk(2)
	require.NoError(t, err)
	assert.NotEqual(raidctl.QuiesceError, state)
}

func TestResumeWaitsForQuiesce(t *testing.T) {
	assert := assert.New(t)
	r := attach(t, func(_ *mockhba.HBA, opts *raidctl.Options) {
		opts.ActionTimeout = 2 * time.Second
	})

	r.hba.Hold(mptraid.ActionQuiescePhysIO)

	state, err := r.c.QuiesceDisk(3)
	require.NoError(t, err)
	require.Equal(t, raidctl.QuiesceInProgress, state)

	assert.ErrorIs(r.c.ResumeDisk(3), mptraid.ErrInProgress)
	assert.Equal(0, r.hba.Count(mptraid.ActionEnablePhysIO))

	require.Equal(t, 1, r.hba.Deliver(mptraid.ActionQuiescePhysIO))
	require.Eventually(t, func() bool {
		state, err := r.c.QuiesceDisk(3)
		return err == nil && state == raidctl.QuiesceComplete
	}, settle, time.Millisecond)

	require.NoError(t, r.c.ResumeDisk(3))
	assert.Equal(1, r.hba.Count(mptraid.ActionEnablePhysIO))

	d, _ := r.disk(3)
	assert.False(d.Quiesced)
}
