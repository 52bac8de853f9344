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

func wce(t *testing.T, hba *mockhba.HBA, id int) bool {
	t.Helper()

	page, ok := hba.Volume(0, id)
	require.True(t, ok)

	return page.WriteCacheEnabled()
}

func TestWriteCacheOnOff(t *testing.T) {
	assert := assert.New(t)
	r := attach(t, func(hba *mockhba.HBA, opts *raidctl.Options) {
		hba.EmitEvents(false)
		opts.WriteCache = mptraid.WriteCacheOn
	})

	assert.True(wce(t, r.hba, 2), "enabled at attach")
	assert.True(wce(t, r.hba, 3))
	assert.Equal(1, r.hba.Count(mptraid.ActionChangeVolumeSettings))
	assert.True(r.volume(t, 2).WriteCache)

	require.NoError(t, r.c.SetWriteCacheMode(mptraid.WriteCacheOff))
	assert.False(wce(t, r.hba, 2))
	assert.False(wce(t, r.hba, 3))
	assert.Equal(3, r.hba.Count(mptraid.ActionChangeVolumeSettings))

	require.NoError(t, r.c.SetWriteCacheMode(mptraid.WriteCacheOff))
	r.sync(t)
	assert.Equal(3, r.hba.Count(mptraid.ActionChangeVolumeSettings), "nothing to correct")
}

func TestWriteCacheSettingsWordKeepsOtherBits(t *testing.T) {
	r := attach(t, func(hba *mockhba.HBA, opts *raidctl.Options) {
		hba.EmitEvents(false)
		hba.UpdateVolume(0, 2, func(p *mptraid.VolumePage) {
			p.Settings.Settings = mptraid.SettingAutoConfigure
			p.Settings.HotSparePool = 0x3
		})
		opts.WriteCache = mptraid.WriteCacheOn
	})

	reqs := requestsFor(r.hba.Requests(), mptraid.ActionChangeVolumeSettings, 2)
	require.Len(t, reqs, 1)

	got := mptraid.SettingsFromWord(reqs[0].ActionData)
	assert.Equal(t, mptraid.SettingAutoConfigure|mptraid.SettingWriteCacheEnable, got.Settings)
	assert.Equal(t, uint8(0x3), got.HotSparePool)
}

func TestRebuildOnlyNeedsTwoMismatches(t *testing.T) {
	assert := assert.New(t)
	r := attach(t, func(hba *mockhba.HBA, _ *raidctl.Options) {
		hba.EmitEvents(false)
	})

	// vol 0:3 has its cache on but is not resyncing
	require.NoError(t, r.c.SetWriteCacheMode(mptraid.WriteCacheRebuildOnly))
	assert.Equal(0, r.hba.Count(mptraid.ActionChangeVolumeSettings), "first mismatch only latches")
	assert.True(wce(t, r.hba, 3))

	r.hba.Post(statusChanged(3))
	r.flush(t)
	r.sync(t)

	reqs := requestsFor(r.hba.Requests(), mptraid.ActionChangeVolumeSettings, 3)
	require.Len(t, reqs, 1, "second mismatch corrects")
	assert.False(wce(t, r.hba, 3))
	assert.Empty(requestsFor(r.hba.Requests(), mptraid.ActionChangeVolumeSettings, 2), "vol 0:2 already matches")

	r.hba.Post(statusChanged(3))
	r.flush(t)
	r.sync(t)
	assert.Len(requestsFor(r.hba.Requests(), mptraid.ActionChangeVolumeSettings, 3), 1)
}

func TestRebuildOnlyFollowsResync(t *testing.T) {
	assert := assert.New(t)
	r := attach(t, func(hba *mockhba.HBA, opts *raidctl.Options) {
		hba.EmitEvents(false)
		opts.WriteCache = mptraid.WriteCacheRebuildOnly
	})

	// a starting resync on vol 0:2 asks for the cache to come on
	r.hba.UpdateVolume(0, 2, func(p *mptraid.VolumePage) {
		p.Status.Flags |= mptraid.VolumeResyncInProgress
		p.Status.State = mptraid.VolumeDegraded
	})

	r.hba.Post(statusChanged(2))
	r.flush(t)
	r.sync(t)
	assert.False(wce(t, r.hba, 2))

	r.hba.Post(statusChanged(2))
	r.flush(t)
	r.sync(t)
	assert.True(wce(t, r.hba, 2))
}

func TestUnsafeShutdownWarning(t *testing.T) {
	assert := assert.New(t)
	r := attach(t, func(hba *mockhba.HBA, _ *raidctl.Options) {
		hba.EmitEvents(false)
		hba.UpdateVolume(0, 3, func(p *mptraid.VolumePage) {
			p.Status.Flags |= mptraid.VolumeResyncInProgress
		})
	})

	require.NoError(t, r.c.SetWriteCacheMode(mptraid.WriteCacheRebuildOnly))
	assert.Equal(1, r.logs.count("unsafe shutdown", "vol1(0:3)"))
	assert.Equal(0, r.logs.count("unsafe shutdown", "vol0(0:2)"))

	require.NoError(t, r.c.SetWriteCacheMode(mptraid.WriteCacheOn))
	require.NoError(t, r.c.SetWriteCacheMode(mptraid.WriteCacheRebuildOnly))
	assert.Equal(1, r.logs.count("unsafe shutdown"), "only the first selection warns")
}

func TestShutdownDisablesRebuildCache(t *testing.T) {
	assert := assert.New(t)
	r := attach(t, func(hba *mockhba.HBA, opts *raidctl.Options) {
		hba.EmitEvents(false)
		opts.WriteCache = mptraid.WriteCacheRebuildOnly
	})

	require.True(t, wce(t, r.hba, 3))

	r.c.Shutdown()

	assert.False(wce(t, r.hba, 3))
	assert.Equal(mptraid.WriteCacheOff, r.c.Tunables().WriteCache)
}

func TestSetResyncRate(t *testing.T) {
	assert := assert.New(t)
	r := attach(t, nil)

	require.NoError(t, r.c.SetResyncRate(200))

	reqs := requestsFor(r.hba.Requests(), mptraid.ActionSetResyncRate, 2)
	require.Len(t, reqs, 1)
	assert.Equal(uint32(200), reqs[0].ActionData)
	assert.Equal(200, r.volume(t, 2).ResyncRate)
	assert.Equal(200, r.volume(t, 3).ResyncRate)

	// the firmware reports the change, the re-read agrees
	r.flush(t)
	r.sync(t)
	assert.Equal(2, r.hba.Count(mptraid.ActionSetResyncRate))
	assert.Equal(0, r.hba.Count(mptraid.ActionChangeVolumeSettings))
}

func TestResyncRateFailureKeepsPriority(t *testing.T) {
	assert := assert.New(t)
	r := attach(t, func(hba *mockhba.HBA, opts *raidctl.Options) {
		hba.EmitEvents(false)
		hba.FailAction(mptraid.ActionSetResyncRate, mptraid.ResultInvalidAction)
		opts.ResyncRate = 0
	})

	// a rate of 0 on vol 0:2 with priority clear already agrees
	assert.Equal(0, r.hba.Count(mptraid.ActionChangeVolumeSettings))

	require.NoError(t, r.c.SetResyncRate(0))
	assert.Equal(0, r.hba.Count(mptraid.ActionChangeVolumeSettings))

	require.NoError(t, r.c.SetResyncRate(mptraid.ResyncRateHigh))
	assert.Equal(1, r.logs.count("resync rate change failed", "vol0(0:2)"))

	page, _ := r.hba.Volume(0, 2)
	assert.False(page.Settings.Has(mptraid.SettingPriorityResync))
}

func TestResyncPriorityToggle(t *testing.T) {
	assert := assert.New(t)
	r := attach(t, func(hba *mockhba.HBA, opts *raidctl.Options) {
		hba.EmitEvents(false)
		hba.UpdateVolume(0, 2, func(p *mptraid.VolumePage) {
			p.Settings.Settings |= mptraid.SettingPriorityResync
		})
		opts.ResyncRate = 0
	})

	reqs := requestsFor(r.hba.Requests(), mptraid.ActionChangeVolumeSettings, 2)
	require.Len(t, reqs, 1, "rate 0 clears priority resync")
	assert.False(mptraid.SettingsFromWord(reqs[0].ActionData).Has(mptraid.SettingPriorityResync))
	assert.Empty(requestsFor(r.hba.Requests(), mptraid.ActionSetResyncRate, 2))
}

func TestInvalidTunables(t *testing.T) {
	assert := assert.New(t)
	r := attach(t, nil)

	assert.ErrorIs(r.c.SetResyncRate(256), mptraid.ErrInvalidTunable)
	assert.ErrorIs(r.c.SetWriteCacheMode(mptraid.WriteCacheMode(9)), mptraid.ErrInvalidTunable)
	assert.ErrorIs(r.c.SetQueueDepth(0), mptraid.ErrInvalidTunable)
	assert.ErrorIs(r.c.SetQueueDepth(256), mptraid.ErrInvalidTunable)

	assert.Equal(raidctl.Tunables{
		WriteCache: mptraid.WriteCacheNoChange,
		ResyncRate: mptraid.ResyncRateNoChange,
		QueueDepth: mptraid.QueueDepthDefault,
	}, r.c.Tunables())
	assert.Empty(r.hba.Requests())
}

func TestSetQueueDepth(t *testing.T) {
	assert := assert.New(t)
	r := attach(t, nil)

	require.NoError(t, r.c.SetQueueDepth(64))
	assert.Equal(64, r.blk.QueueDepth(0, 2))
	assert.Equal(64, r.blk.QueueDepth(0, 3))
	assert.Equal(64, r.volume(t, 3).QueueDepth)
	assert.Empty(r.hba.Requests(), "queue depth needs no controller action")

	r.blk.FailQueueDepth(errInjected)
	require.NoError(t, r.c.SetQueueDepth(32))
	assert.Equal(64, r.volume(t, 3).QueueDepth)
	assert.Equal(2, r.logs.count("failed to adjust queue depth"))
}

func TestActionTimeoutLeavesStateAlone(t *testing.T) {
	assert := assert.New(t)
	r := attach(t, func(hba *mockhba.HBA, opts *raidctl.Options) {
		hba.EmitEvents(false)
		hba.Hold(mptraid.ActionChangeVolumeSettings)
		opts.WriteCache = mptraid.WriteCacheOff
		opts.ActionTimeout = 50 * time.Millisecond
	})

	assert.Equal(1, r.logs.count("write cache change timed out", "vol1(0:3)"))
	assert.True(r.volume(t, 3).WriteCache, "cached settings untouched")
	assert.True(r.volume(t, 3).UpToDate)

	require.Equal(t, 1, r.hba.Deliver(mptraid.ActionChangeVolumeSettings))
	require.Eventually(t, func() bool {
		return r.logs.count("dropping late reply") == 1
	}, settle, time.Millisecond)
	assert.True(r.volume(t, 3).WriteCache, "late replies are ignored")
}

func TestActionFailureIsLogged(t *testing.T) {
	r := attach(t, func(hba *mockhba.HBA, opts *raidctl.Options) {
		hba.EmitEvents(false)
		hba.FailAction(mptraid.ActionChangeVolumeSettings, mptraid.ResultFailure)
		opts.WriteCache = mptraid.WriteCacheOn
	})

	assert.Equal(t, 1, r.logs.count("write cache change failed", "vol0(0:2)"))
	assert.False(t, r.volume(t, 2).WriteCache)
}

func TestResyncProgressIsReported(t *testing.T) {
	assert := assert.New(t)
	r := attach(t, func(hba *mockhba.HBA, opts *raidctl.Options) {
		hba.EmitEvents(false)
		hba.UpdateVolume(0, 2, func(p *mptraid.VolumePage) {
			p.Status.Flags |= mptraid.VolumeResyncInProgress
			p.Status.State = mptraid.VolumeDegraded
		})
		hba.SetProgress(0, 2, 1000, 250)
		opts.ProgressInterval = 20 * time.Millisecond
	})

	vol := r.volume(t, 2)
	assert.True(vol.Resyncing)
	assert.Equal(uint64(1000), vol.Progress.TotalBlocks)
	assert.GreaterOrEqual(r.logs.count("resync progress", "vol0(0:2)", `"percentDone"=75`), 1)

	r.hba.SetProgress(0, 2, 1000, 100)
	require.Eventually(t, func() bool {
		return r.logs.count("resync progress", `"percentDone"=90`) >= 1
	}, settle, time.Millisecond, "the progress timer re-reads quiet volumes")

	r.hba.UpdateVolume(0, 2, func(p *mptraid.VolumePage) {
		p.Status.Flags &^= mptraid.VolumeResyncInProgress
		p.Status.State = mptraid.VolumeOptimal
	})
	require.Eventually(t, func() bool {
		return !r.volume(t, 2).Resyncing
	}, settle, time.Millisecond)
	assert.Equal(uint64(0), r.volume(t, 2).Progress.TotalBlocks)
}

func TestResyncRateZeroLowersNumericRate(t *testing.T) {
	assert := assert.New(t)
	r := attach(t, func(hba *mockhba.HBA, _ *raidctl.Options) {
		hba.EmitEvents(false)
	})

	require.NoError(t, r.c.SetResyncRate(0))

	reqs := requestsFor(r.hba.Requests(), mptraid.ActionSetResyncRate, 3)
	require.Len(t, reqs, 1, "vol 0:3 runs at 64")
	assert.Equal(uint32(0), reqs[0].ActionData)
	assert.Equal(0, r.volume(t, 3).ResyncRate)

	assert.Empty(requestsFor(r.hba.Requests(), mptraid.ActionSetResyncRate, 2), "vol 0:2 is already at 0")
	assert.Equal(0, r.hba.Count(mptraid.ActionChangeVolumeSettings))

	page, _ := r.hba.Volume(0, 3)
	assert.Equal(uint8(0), page.ResyncRate)
}

func TestOneActionPerVolumeAtATime(t *testing.T) {
	assert := assert.New(t)
	r := attach(t, func(hba *mockhba.HBA, opts *raidctl.Options) {
		hba.EmitEvents(false)
		opts.ActionTimeout = 2 * time.Second
	})

	r.hba.Hold(mptraid.ActionChangeVolumeSettings)
	r.hba.Hold(mptraid.ActionSetResyncRate)

	wceDone := make(chan error, 1)
	go func() { wceDone <- r.c.SetWriteCacheMode(mptraid.WriteCacheOn) }()

	require.Eventually(t, func() bool {
		return r.hba.Held(mptraid.ActionChangeVolumeSettings) == 1
	}, settle, time.Millisecond)

	rateDone := make(chan error, 1)
	go func() { rateDone <- r.c.SetResyncRate(200) }()

	assert.Never(func() bool {
		return r.hba.Held(mptraid.ActionSetResyncRate) > 0
	}, 100*time.Millisecond, time.Millisecond, "vol 0:2 already has an action in flight")

	require.Equal(t, 1, r.hba.Deliver(mptraid.ActionChangeVolumeSettings))
	require.NoError(t, <-wceDone)

	require.Eventually(t, func() bool {
		return r.hba.Held(mptraid.ActionSetResyncRate) == 1
	}, settle, time.Millisecond)
	assert.Len(requestsFor(r.hba.Requests(), mptraid.ActionSetResyncRate, 2), 1)
	assert.Empty(requestsFor(r.hba.Requests(), mptraid.ActionSetResyncRate, 3))

	require.Equal(t, 1, r.hba.Deliver(mptraid.ActionSetResyncRate))
	require.NoError(t, <-rateDone)

	assert.Len(requestsFor(r.hba.Requests(), mptraid.ActionSetResyncRate, 3), 1)
	assert.Equal(200, r.volume(t, 2).ResyncRate)
	assert.True(r.volume(t, 2).WriteCache)
}
