package avsync

import (
	"sync"
	"sync/atomic"
	"time"
)

// Clock is one of the three clocks (audio, video, external) described in
// spec.md §3/§4.3: current value is extrapolated from the last reported PTS
// plus elapsed wall time plus a low-pass-filtered drift correction.
//
// lastPTSMs and driftMs are stored as atomics (ms-scaled) so hot-path reads
// (Value) don't need the mutex that guards the compound update of
// last_pts_ms + last_system_time, per spec.md §5's "atomic for pts_ms and
// drift to allow lock-free reads" note.
type Clock struct {
	lastPTSMs atomic.Int64
	driftMs   atomic.Int64

	mu             sync.Mutex
	lastSystemTime time.Time
	haveBaseline   bool
}

func newClock(now time.Time) *Clock {
	c := &Clock{}
	c.lastSystemTime = now
	return c
}

// update records a newly-observed, already-normalized PTS (ms) at wall time
// now, applying the drift low-pass filter of spec.md §4.3: expected E is the
// prior PTS plus the wall time elapsed since it; drift is set to 0.1*(P-E).
func (c *Clock) update(normalizedPTSMs int64, now time.Time) {
	c.mu.Lock()
	prevPTS := c.lastPTSMs.Load()
	prevTime := c.lastSystemTime
	prevDrift := c.driftMs.Load()
	hadBaseline := c.haveBaseline

	newDrift := prevDrift
	if hadBaseline {
		elapsed := now.Sub(prevTime).Milliseconds()
		expected := prevPTS + elapsed
		diff := float64(normalizedPTSMs - expected)
		newDrift = int64(0.1 * diff)
	}

	c.lastPTSMs.Store(normalizedPTSMs)
	c.driftMs.Store(newDrift)
	c.lastSystemTime = now
	c.haveBaseline = true
	c.mu.Unlock()
}

// Value extrapolates the clock's current value at wall-clock instant t:
// last_pts_ms + (t - last_system_time) + drift.
func (c *Clock) Value(t time.Time) int64 {
	c.mu.Lock()
	lastTime := c.lastSystemTime
	c.mu.Unlock()

	lastPTS := c.lastPTSMs.Load()
	drift := c.driftMs.Load()
	elapsed := t.Sub(lastTime).Milliseconds()
	return lastPTS + elapsed + drift
}

// shiftSystemTime adds delta to last_system_time, used by Resume to exclude
// paused wall-clock time from every clock's extrapolation (spec.md §4.3).
func (c *Clock) shiftSystemTime(delta time.Duration) {
	c.mu.Lock()
	c.lastSystemTime = c.lastSystemTime.Add(delta)
	c.mu.Unlock()
}

// reset zeroes the clock entirely (used on Stop).
func (c *Clock) reset(now time.Time) {
	c.lastPTSMs.Store(0)
	c.driftMs.Store(0)
	c.mu.Lock()
	c.lastSystemTime = now
	c.haveBaseline = false
	c.mu.Unlock()
}

// resetForSeek sets last_pts_ms to targetMs, last_system_time to now, and
// drift to 0, per spec.md §4.3 reset_for_seek. First-PTS baselines are owned
// by the SyncController and are not touched here.
func (c *Clock) resetForSeek(targetMs int64, now time.Time) {
	c.lastPTSMs.Store(targetMs)
	c.driftMs.Store(0)
	c.mu.Lock()
	c.lastSystemTime = now
	c.haveBaseline = true
	c.mu.Unlock()
}

// DriftMs returns the clock's current low-pass-filtered drift, in
// milliseconds. Exposed for diagnostics (SyncControlTask, tests).
func (c *Clock) DriftMs() int64 {
	return c.driftMs.Load()
}
