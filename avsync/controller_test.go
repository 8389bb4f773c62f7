package avsync_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zenplay-go/zenplay/avsync"
)

func TestNormalizePTSFirstValueIsZero(t *testing.T) {
	c := avsync.New(avsync.AudioMaster)
	assert.Equal(t, int64(0), c.NormalizePTS(0, 120000))
	assert.Equal(t, int64(50), c.NormalizePTS(0, 120050))
	assert.Equal(t, int64(100), c.NormalizePTS(0, 120100))
}

func TestNormalizePTSIsPerStream(t *testing.T) {
	c := avsync.New(avsync.AudioMaster)
	assert.Equal(t, int64(0), c.NormalizePTS(0, 1000))
	assert.Equal(t, int64(0), c.NormalizePTS(1, 5000))
	assert.Equal(t, int64(10), c.NormalizePTS(0, 1010))
	assert.Equal(t, int64(10), c.NormalizePTS(1, 5010))
}

func TestMasterClockExtrapolatesWallTime(t *testing.T) {
	c := avsync.New(avsync.AudioMaster)
	t0 := time.Now()
	c.UpdateAudioClock(1000, t0)

	later := t0.Add(200 * time.Millisecond)
	got := c.MasterClock(later)
	assert.InDelta(t, 1200, got, 5)
}

func TestPauseResumeShiftsClockForward(t *testing.T) {
	c := avsync.New(avsync.AudioMaster)
	t0 := time.Now()
	c.UpdateAudioClock(1000, t0)

	pauseAt := t0.Add(500 * time.Millisecond)
	c.Pause(pauseAt)

	resumeAt := pauseAt.Add(2 * time.Second)
	c.Resume(resumeAt)

	// Immediately after resume, the clock should read ~1500ms (the value at
	// pause time), not 1500+2000, because the paused interval was excluded.
	got := c.MasterClock(resumeAt)
	assert.InDelta(t, 1500, got, 5)
}

func TestResetForSeekJumpsToTargetAndPreservesBaseline(t *testing.T) {
	c := avsync.New(avsync.AudioMaster)
	t0 := time.Now()

	// Establish a baseline away from zero.
	assert.Equal(t, int64(0), c.NormalizePTS(0, 500))
	assert.Equal(t, int64(100), c.NormalizePTS(0, 600))

	c.UpdateAudioClock(100, t0)
	seekAt := t0.Add(time.Second)
	c.ResetForSeek(7000, seekAt)

	got := c.MasterClock(seekAt)
	assert.InDelta(t, 7000, got, 5)

	// Baseline (500) must survive the seek: a frame reporting raw PTS 700
	// normalizes to 200, not a fresh 0.
	assert.Equal(t, int64(200), c.NormalizePTS(0, 700))
}

func TestDelayDropRepeatPredicates(t *testing.T) {
	c := avsync.New(avsync.AudioMaster)
	t0 := time.Now()
	c.UpdateAudioClock(1000, t0)

	// Frame PTS far behind the master clock: should drop.
	assert.True(t, c.ShouldDrop(800, t0))
	assert.False(t, c.ShouldRepeat(800, t0))

	// Frame PTS far ahead of the master clock: should repeat.
	assert.True(t, c.ShouldRepeat(1100, t0))
	assert.False(t, c.ShouldDrop(1100, t0))

	// Frame PTS close to master clock: neither.
	assert.False(t, c.ShouldDrop(1010, t0))
	assert.False(t, c.ShouldRepeat(1010, t0))
}

func TestDelayMsIsClamped(t *testing.T) {
	c := avsync.New(avsync.AudioMaster)
	t0 := time.Now()
	c.UpdateAudioClock(0, t0)

	assert.Equal(t, int64(100), c.DelayMs(10000, t0))
	assert.Equal(t, int64(-100), c.DelayMs(-10000, t0))
}

func TestSelectAudioVideoMaster(t *testing.T) {
	assert.Equal(t, avsync.AudioMaster, avsync.SelectAudioVideoMaster(true, true))
	assert.Equal(t, avsync.AudioMaster, avsync.SelectAudioVideoMaster(true, false))
	assert.Equal(t, avsync.ExternalMaster, avsync.SelectAudioVideoMaster(false, true))
	assert.Equal(t, avsync.ExternalMaster, avsync.SelectAudioVideoMaster(false, false))
}

func TestSetMasterRejectsVideoMaster(t *testing.T) {
	c := avsync.New(avsync.AudioMaster)
	err := c.SetMaster(avsync.VideoMaster)
	require.Error(t, err)
	assert.ErrorIs(t, err, avsync.ErrNotSupported)
	assert.Equal(t, avsync.AudioMaster, c.SelectedMaster(), "rejected SetMaster must not change the mode")
}

func TestResetZeroesClocksAndBaselines(t *testing.T) {
	c := avsync.New(avsync.AudioMaster)
	t0 := time.Now()
	assert.Equal(t, int64(0), c.NormalizePTS(0, 500))
	c.UpdateAudioClock(1000, t0)

	c.Reset(t0)
	assert.Equal(t, int64(0), c.MasterClock(t0))

	// Baseline cleared: next NormalizePTS call re-establishes a fresh zero.
	assert.Equal(t, int64(0), c.NormalizePTS(0, 900))
}
