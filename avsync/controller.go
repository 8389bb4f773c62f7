// Package avsync implements the A/V synchronization policy of spec.md §4.3:
// the three clocks (audio/video/external), PTS normalization with a
// per-stream first-PTS baseline, master-clock selection, and the
// frame-scheduling predicates (delay/drop/repeat) the video render loop
// evaluates against the master clock.
package avsync

import (
	"errors"
	"sync"
	"time"
)

// Master identifies which clock frame scheduling is evaluated against.
type Master uint8

const (
	AudioMaster Master = iota
	ExternalMaster
	VideoMaster
)

// ErrNotSupported is returned by SetMaster for VideoMaster: spec.md §9
// leaves it explicitly optional ("may be unimplemented").
var ErrNotSupported = errors.New("avsync: VideoMaster is not implemented")

// Params holds the tunables of spec.md §4.3's "Default parameters".
type Params struct {
	MaxDelayMs         int64
	MaxSpeedupMs       int64
	SyncThresholdMs    int64
	DropThresholdMs    int64
	RepeatThresholdMs  int64
	FrameDropEnabled   bool
	FrameRepeatEnabled bool
}

// DefaultParams returns spec.md §4.3's defaults.
func DefaultParams() Params {
	return Params{
		MaxDelayMs:         100,
		MaxSpeedupMs:       100,
		SyncThresholdMs:    40,
		DropThresholdMs:    80,
		RepeatThresholdMs:  20,
		FrameDropEnabled:   true,
		FrameRepeatEnabled: true,
	}
}

// Controller owns the three clocks and the PTS-normalization baselines, and
// implements master selection plus the frame-scheduling predicates.
type Controller struct {
	params Params
	master Master

	audio    *Clock
	video    *Clock
	external *Clock

	baselineMu sync.Mutex
	baselines  map[int]int64 // stream index -> first observed raw PTS
	haveBase   map[int]bool

	pauseMu    sync.Mutex
	paused     bool
	pauseStart time.Time
	playStart  time.Time // external clock's play-start anchor
}

// New creates a Controller with the given master-selection mode (see
// SelectAudioVideoMaster for how PlaybackController should pick it) and
// spec.md §4.3 default parameters.
func New(master Master) *Controller {
	now := time.Now()
	return &Controller{
		params:    DefaultParams(),
		master:    master,
		audio:     newClock(now),
		video:     newClock(now),
		external:  newClock(now),
		baselines: make(map[int]int64),
		haveBase:  make(map[int]bool),
		playStart: now,
	}
}

// SelectAudioVideoMaster implements spec.md §4.10's sync-mode choice on
// construction: audio present (with or without video) -> AudioMaster;
// video only -> ExternalMaster; neither -> ExternalMaster (the caller is
// expected to log and fail subsequent transitions).
func SelectAudioVideoMaster(hasAudio, hasVideo bool) Master {
	if hasAudio {
		return AudioMaster
	}
	return ExternalMaster
}

// SetParams overrides the default scheduling parameters.
func (c *Controller) SetParams(p Params) { c.params = p }

// SetMaster overrides the sync mode chosen at construction. VideoMaster is
// rejected with ErrNotSupported (spec.md §9 Open Question: "repeated-frame
// semantics under video-master mode" is left unimplemented by this module).
func (c *Controller) SetMaster(m Master) error {
	if m == VideoMaster {
		return ErrNotSupported
	}
	c.master = m
	return nil
}

// NormalizePTS converts a stream's raw PTS (ms) into normalized PTS per
// spec.md invariant 2: the first accepted value becomes baseline 0;
// subsequent values are raw-baseline. A nil/sentinel raw value (represented
// by the caller never calling this for that frame) never establishes a
// baseline, per spec.md's boundary behavior for invalid PTS.
func (c *Controller) NormalizePTS(streamIndex int, rawMs int64) int64 {
	c.baselineMu.Lock()
	defer c.baselineMu.Unlock()
	if !c.haveBase[streamIndex] {
		c.baselines[streamIndex] = rawMs
		c.haveBase[streamIndex] = true
		return 0
	}
	return rawMs - c.baselines[streamIndex]
}

// UpdateAudioClock records a presented audio frame's normalized PTS.
func (c *Controller) UpdateAudioClock(normalizedPTSMs int64, now time.Time) {
	c.audio.update(normalizedPTSMs, now)
}

// UpdateVideoClock records a presented video frame's normalized PTS.
func (c *Controller) UpdateVideoClock(normalizedPTSMs int64, now time.Time) {
	c.video.update(normalizedPTSMs, now)
}

// TickExternal advances the external (wall-clock) clock. Called by the
// low-frequency sync-monitor worker; only meaningful under ExternalMaster.
func (c *Controller) TickExternal(now time.Time) {
	elapsedMs := now.Sub(c.playStart).Milliseconds()
	c.external.update(elapsedMs, now)
}

// MasterClock returns the current value, in ms, of whichever clock is
// selected as master.
func (c *Controller) MasterClock(now time.Time) int64 {
	switch c.master {
	case AudioMaster:
		return c.audio.Value(now)
	case ExternalMaster:
		return c.external.Value(now)
	case VideoMaster:
		return c.video.Value(now)
	default:
		return c.external.Value(now)
	}
}

// SelectedMaster returns the controller's current sync mode.
func (c *Controller) SelectedMaster() Master { return c.master }

// AudioClockMs, VideoClockMs, ExternalClockMs expose individual clocks for
// diagnostics and the facade's CurrentPlayTimeMs.
func (c *Controller) AudioClockMs(now time.Time) int64    { return c.audio.Value(now) }
func (c *Controller) VideoClockMs(now time.Time) int64    { return c.video.Value(now) }
func (c *Controller) ExternalClockMs(now time.Time) int64 { return c.external.Value(now) }

// DelayMs implements spec.md §4.3's delay_ms(p, now): the clamped gap
// between a video frame's normalized PTS p and the master clock.
func (c *Controller) DelayMs(normalizedPTSMs int64, now time.Time) int64 {
	d := normalizedPTSMs - c.MasterClock(now)
	if d < -c.params.MaxSpeedupMs {
		return -c.params.MaxSpeedupMs
	}
	if d > c.params.MaxDelayMs {
		return c.params.MaxDelayMs
	}
	return d
}

// ShouldDrop implements spec.md §4.3's should_drop predicate.
func (c *Controller) ShouldDrop(normalizedPTSMs int64, now time.Time) bool {
	if !c.params.FrameDropEnabled {
		return false
	}
	return c.DelayMs(normalizedPTSMs, now) < -c.params.DropThresholdMs
}

// ShouldRepeat implements spec.md §4.3's should_repeat predicate.
func (c *Controller) ShouldRepeat(normalizedPTSMs int64, now time.Time) bool {
	if !c.params.FrameRepeatEnabled {
		return false
	}
	return c.DelayMs(normalizedPTSMs, now) > c.params.RepeatThresholdMs
}

// Pause records a pause start per spec.md §4.3's pause accounting.
func (c *Controller) Pause(now time.Time) {
	c.pauseMu.Lock()
	defer c.pauseMu.Unlock()
	if c.paused {
		return
	}
	c.paused = true
	c.pauseStart = now
}

// Resume adds the paused wall-clock interval to every clock's
// last_system_time, and to the external clock's play-start anchor, so that
// current = last_pts + (now - last_system_time_adjusted) + drift naturally
// excludes paused wall time (spec.md §4.3).
func (c *Controller) Resume(now time.Time) {
	c.pauseMu.Lock()
	defer c.pauseMu.Unlock()
	if !c.paused {
		return
	}
	c.paused = false
	interval := now.Sub(c.pauseStart)
	c.audio.shiftSystemTime(interval)
	c.video.shiftSystemTime(interval)
	c.external.shiftSystemTime(interval)
	c.playStart = c.playStart.Add(interval)
}

// Reset implements spec.md §4.3's reset() (on Stop): zero all clocks and
// clear baselines and the pause accumulator.
func (c *Controller) Reset(now time.Time) {
	c.audio.reset(now)
	c.video.reset(now)
	c.external.reset(now)

	c.baselineMu.Lock()
	c.baselines = make(map[int]int64)
	c.haveBase = make(map[int]bool)
	c.baselineMu.Unlock()

	c.pauseMu.Lock()
	c.paused = false
	c.playStart = now
	c.pauseMu.Unlock()
}

// ResetForSeek implements spec.md §4.3's reset_for_seek(target_ms): every
// clock jumps to target_ms with drift cleared, play_start shifts to
// now-target_ms, and first-PTS baselines are preserved so post-seek PTS
// normalization stays in the same coordinate system.
func (c *Controller) ResetForSeek(targetMs int64, now time.Time) {
	c.audio.resetForSeek(targetMs, now)
	c.video.resetForSeek(targetMs, now)
	c.external.resetForSeek(targetMs, now)

	c.pauseMu.Lock()
	c.paused = false
	c.playStart = now.Add(-time.Duration(targetMs) * time.Millisecond)
	c.pauseMu.Unlock()
}
