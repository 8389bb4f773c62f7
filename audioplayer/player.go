// Package audioplayer drives the ebitengine audio device from this
// engine's decoded-and-resampled audio frame queue (spec.md §4.8).
//
// Player implements io.Reader for ebiten's audio.Player to pull from, but
// unlike a decoder driven directly off the same call stack as the audio
// device, decode here runs on its own worker goroutine feeding a bounded
// queue (spec.md §5's producer/consumer pipeline): Read only drains
// pre-decoded, pre-resampled frames off a queue.Bounded. The leftover-bytes
// buffering trick (serve partial frames across Read calls, clamped to a
// multiple of 4 bytes for whole-sample reads) carries the same shape a
// streaming io.Reader over PCM data always needs.
package audioplayer

import (
	"errors"
	"io"
	"math"
	"sync"
	"time"

	"github.com/hajimehoshi/ebiten/v2/audio"

	"github.com/zenplay-go/zenplay/avsync"
	"github.com/zenplay-go/zenplay/queue"
	"github.com/zenplay-go/zenplay/resample"
)

// BufferSize: 200ms is comfortable headroom on desktop audio devices
// without adding noticeable latency.
const BufferSize = 200 * time.Millisecond

// clockUpdateInterval is spec.md §4.3's "periodic, not per-frame" audio
// clock update cadence.
const clockUpdateInterval = 500 * time.Millisecond

// ErrNotInitialized is returned by operations that require Init to have
// run first.
var ErrNotInitialized = errors.New("audioplayer: not initialized")

// Player owns the ebiten audio.Player and the frame queue feeding it.
type Player struct {
	mu sync.Mutex

	ctx    *audio.Context
	player *audio.Player
	sync   *avsync.Controller
	queue  *queue.Bounded[*resample.ResampledAudioFrame]

	leftover []byte
	volume   float64
	muted    bool

	lastClockUpdate time.Time
	streamIndex     int
}

// New constructs a Player bound to ctx (the process-wide ebiten audio
// context, created once for the whole engine) and syncCtrl (for periodic
// UpdateAudioClock calls).
func New(ctx *audio.Context, syncCtrl *avsync.Controller, frameQueueCapacity int) *Player {
	return &Player{
		ctx:    ctx,
		sync:   syncCtrl,
		queue:  queue.New[*resample.ResampledAudioFrame](frameQueueCapacity),
		volume: 1.0,
	}
}

// Init creates the underlying ebiten audio.Player bound to this Player's
// Read method, matching noLockCreateAudioPlayer's setup sequence. It also
// re-arms a frame queue left stopped by a previous Stop.
func (p *Player) Init(streamIndex int) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.queue.Reset()

	var err error
	p.player, err = p.ctx.NewPlayer(&struct{ io.Reader }{p})
	if err != nil {
		return err
	}
	p.player.SetBufferSize(BufferSize)
	p.player.SetVolume(p.effectiveVolumeLocked())
	p.streamIndex = streamIndex
	return nil
}

// Start begins playback.
func (p *Player) Start() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.player == nil {
		return ErrNotInitialized
	}
	p.player.Play()
	return nil
}

// Pause pauses the device without tearing down the player, so Resume can
// continue from the same position (spec.md §4.10 pause/resume ordering).
func (p *Player) Pause() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.player == nil {
		return ErrNotInitialized
	}
	p.player.Pause()
	return nil
}

// Resume continues a paused player.
func (p *Player) Resume() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.player == nil {
		return ErrNotInitialized
	}
	p.player.Play()
	return nil
}

// Stop tears down the ebiten player so a later Init/Start starts clean:
// always stop through EOF/Close, never by calling Pause from inside Read.
// It stops the frame queue, so a producer blocked in PushFrame wakes.
func (p *Player) Stop() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.queue.Stop()
	if p.player == nil {
		return nil
	}
	p.player.Pause()
	err := p.player.Close()
	p.player = nil
	p.leftover = p.leftover[:0]
	return err
}

// PushFrame enqueues a resampled frame, blocking if the queue is full
// (spec.md §5 backpressure). It returns false if the queue was stopped
// concurrently (e.g. during a seek or Stop).
func (p *Player) PushFrame(frame *resample.ResampledAudioFrame) bool {
	return p.queue.Push(frame)
}

// Flush clears the frame queue and any leftover partial-frame bytes,
// called as part of the seek protocol (spec.md §4.10a) after the decoder's
// FlushBuffers.
func (p *Player) Flush() {
	p.queue.Clear(nil)
	p.mu.Lock()
	p.leftover = p.leftover[:0]
	p.mu.Unlock()
}

// ResetTimestamps forces the next played frame to immediately push a fresh
// audio clock update instead of waiting out clockUpdateInterval, part of
// the seek protocol's step 9 (spec.md §4.10a).
func (p *Player) ResetTimestamps() {
	p.mu.Lock()
	p.lastClockUpdate = time.Time{}
	p.mu.Unlock()
}

// ClearFrames is an alias kept for symmetry with videoplayer.Player's
// naming; it is exactly Flush's queue-clearing half, without touching
// leftover device bytes.
func (p *Player) ClearFrames() {
	p.queue.Clear(nil)
}

func (p *Player) SetVolume(volume float64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.volume = volume
	if p.player != nil {
		p.player.SetVolume(p.effectiveVolumeLocked())
	}
}

func (p *Player) SetMuted(muted bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.muted = muted
	if p.player != nil {
		p.player.SetVolume(p.effectiveVolumeLocked())
	}
}

func (p *Player) effectiveVolumeLocked() float64 {
	if p.muted {
		return 0
	}
	return p.volume
}

// Read implements io.Reader for ebiten's audio.Player, pulling queued
// resampled frames instead of decoding inline (see package doc): serve
// leftover bytes first, then drain ready frames non-blockingly. On an
// explicit Stop the queue is drained and reports !ok via Pop semantics, so
// Read returns io.EOF; on a transient underrun (decode momentarily behind,
// queue temporarily empty but not stopped) Read instead zero-fills the
// remainder of buffer and returns immediately, per spec.md:252's "on partial
// availability emit silence for the remainder" rather than blocking the
// audio device's own read loop.
func (p *Player) Read(buffer []byte) (int, error) {
	if len(buffer)&0b11 != 0 {
		buffer = buffer[:len(buffer)&(math.MaxInt-0b11)]
	}
	total := len(buffer)

	p.mu.Lock()
	defer p.mu.Unlock()

	var served int
	if len(p.leftover) > 0 {
		n := p.copyLeftoverLocked(buffer)
		buffer = buffer[n:]
		served += n
	}

	for len(buffer) > 0 {
		frame, ok := p.queue.TryPop()
		if !ok {
			if p.queue.Stopped() && served == 0 {
				return 0, io.EOF
			}
			zeroFill(buffer)
			return total, nil
		}
		p.leftover = append(p.leftover[:0], frame.Data...)
		p.maybeUpdateClockLocked(frame)

		if len(p.leftover) == 0 {
			continue
		}
		n := p.copyLeftoverLocked(buffer)
		buffer = buffer[n:]
		served += n
	}
	return served, nil
}

func zeroFill(buffer []byte) {
	for i := range buffer {
		buffer[i] = 0
	}
}

func (p *Player) copyLeftoverLocked(buffer []byte) int {
	n := copy(buffer, p.leftover)
	if n >= len(p.leftover) {
		p.leftover = p.leftover[:0]
	} else {
		remaining := copy(p.leftover, p.leftover[n:])
		p.leftover = p.leftover[:remaining]
	}
	return n
}

// maybeUpdateClockLocked implements the periodic (not per-frame) audio
// clock update of spec.md §4.3.
func (p *Player) maybeUpdateClockLocked(frame *resample.ResampledAudioFrame) {
	if p.sync == nil {
		return
	}
	now := time.Now()
	if now.Sub(p.lastClockUpdate) < clockUpdateInterval {
		return
	}
	p.lastClockUpdate = now
	// PTSRaw is already rescaled to milliseconds by the decoder/resampler
	// (codec.TimeBase{Num:1,Den:1000}), so it is used directly here.
	normalized := p.sync.NormalizePTS(p.streamIndex, frame.PTSRaw)
	p.sync.UpdateAudioClock(normalized, now)
}

// Position reports the device's playback position, used when no frame has
// updated the sync clock recently.
func (p *Player) Position() time.Duration {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.player == nil {
		return 0
	}
	return p.player.Position()
}
