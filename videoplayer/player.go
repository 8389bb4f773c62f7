package videoplayer

import (
	"errors"
	"time"

	"github.com/zenplay-go/zenplay/avsync"
	"github.com/zenplay-go/zenplay/codec"
	"github.com/zenplay-go/zenplay/queue"
)

// ErrPushTimeout is returned by PushFrameBlocking when the queue stays full
// for longer than the given timeout (spec.md §4.9's backpressure escape
// hatch, needed because demux/decode must not stall forever behind a
// render loop that's catching up after a pause or seek).
var ErrPushTimeout = errors.New("videoplayer: push timed out")

// Player pulls decoded video frames off a bounded queue and paces their
// presentation against an avsync.Controller, applying the drop/delay/
// repeat predicates of spec.md §4.9.
type Player struct {
	queue       *queue.Bounded[*codec.VideoFrame]
	sync        *avsync.Controller
	renderer    Renderer
	streamIndex int

	renderedWidth, renderedHeight int
	lastFrame                     *codec.VideoFrame

	gate   *pauseGate
	stopCh chan struct{}
	doneCh chan struct{}
}

// New constructs a Player. renderer may be swapped later via SetRenderer
// before Start, to support the pluggable-backend contract of spec.md §4.9.
func New(syncCtrl *avsync.Controller, renderer Renderer, frameQueueCapacity int) *Player {
	return &Player{
		queue:    queue.New[*codec.VideoFrame](frameQueueCapacity),
		sync:     syncCtrl,
		renderer: renderer,
		gate:     newPauseGate(),
	}
}

// Pause halts the render loop from popping new frames or advancing the
// video clock, without tearing down the loop goroutine (spec.md §4.10
// pause ordering, step 1).
func (p *Player) Pause() { p.gate.pause() }

// Resume wakes a paused render loop.
func (p *Player) Resume() { p.gate.resume() }

func (p *Player) SetRenderer(r Renderer) { p.renderer = r }

func (p *Player) SetStreamIndex(i int) { p.streamIndex = i }

// PushFrameBlocking enqueues frame, blocking until space frees, the queue
// is stopped, or timeout elapses (spec.md §4.9 push_frame_blocking). A timed
// out attempt never inserts frame: queue.Bounded.PushTimeout's deadline
// wakes the same wait loop the push is blocked in, instead of abandoning a
// background goroutine that could still deliver frame after the caller has
// moved on to retry it, which would risk the same frame being enqueued
// twice.
func (p *Player) PushFrameBlocking(frame *codec.VideoFrame, timeout time.Duration) error {
	delivered, timedOut := p.queue.PushTimeout(frame, timeout)
	switch {
	case delivered:
		return nil
	case timedOut:
		return ErrPushTimeout
	default:
		return errors.New("videoplayer: push: queue stopped")
	}
}

// Start launches the render-pacing loop in a new goroutine. Stop joins it.
// Start re-arms a frame queue left stopped by a previous Stop.
func (p *Player) Start() {
	p.queue.Reset()
	p.stopCh = make(chan struct{})
	p.doneCh = make(chan struct{})
	go p.renderLoop()
}

// Stop halts the render loop and waits for it to exit. It stops the frame
// queue so a loop blocked in Pop, or a producer blocked in a push, wakes.
func (p *Player) Stop() {
	if p.stopCh == nil {
		return
	}
	close(p.stopCh)
	p.queue.Stop()
	p.gate.wake()
	<-p.doneCh
	p.renderer.ClearCaches()
}

// Flush clears the frame queue, used by the seek protocol before the
// demuxer seek and the decoders' FlushBuffers (spec.md §4.10a).
func (p *Player) Flush() {
	p.queue.Clear(nil)
}

// ClearRendererCache invokes the renderer's clear_caches, called once from
// the seek protocol's step 6 to invalidate stale hardware-surface views
// before the codec framework reallocates them post-seek (spec.md §4.10a,
// §6 Renderer contract).
func (p *Player) ClearRendererCache() {
	p.renderer.ClearCaches()
}

// renderLoop implements spec.md §4.9's scheduling contract: pop a frame,
// compute delay_ms against the master clock, drop if should_drop, sleep
// delay_ms otherwise (clamped to zero if negative), then render. A
// "repeat" condition renders the same frame a second time, without
// consuming a new one from the queue, when its PTS is still ahead of the
// master clock by more than the repeat threshold.
func (p *Player) renderLoop() {
	defer close(p.doneCh)

	for {
		p.gate.wait(p.stopCh)
		select {
		case <-p.stopCh:
			return
		default:
		}

		frame, ok := p.queue.Pop()
		if !ok {
			return
		}

		normalized := p.sync.NormalizePTS(p.streamIndex, frame.PresentationMs())
		now := time.Now()

		if p.sync.ShouldDrop(normalized, now) {
			continue
		}

		delay := p.sync.DelayMs(normalized, now)
		if delay > 0 {
			select {
			case <-time.After(time.Duration(delay) * time.Millisecond):
			case <-p.stopCh:
				return
			}
		}

		p.renderFrame(frame)
		p.sync.UpdateVideoClock(normalized, time.Now())

		if p.sync.ShouldRepeat(normalized, time.Now()) {
			p.renderFrame(frame)
		}

		select {
		case <-p.stopCh:
			return
		default:
		}
	}
}

func (p *Player) renderFrame(frame *codec.VideoFrame) {
	if p.renderer == nil || frame == nil {
		return
	}
	if frame.Format == codec.PixelFormatHardware {
		// Zero-copy hardware surfaces carry no CPU pixel buffer by design
		// (spec.md invariant 5); this software Renderer has nothing to
		// blit until a GPU-aware Renderer implementation exists.
		return
	}
	_ = p.renderer.RenderFrame(frame.Pixels, frame.Width, frame.Height)
	p.lastFrame = frame
	p.renderedWidth, p.renderedHeight = frame.Width, frame.Height
}

// LastFrame returns the most recently rendered frame, or nil.
func (p *Player) LastFrame() *codec.VideoFrame { return p.lastFrame }

// ResetTimestamps drops any cached last-rendered-frame state, part of the
// seek protocol's step 9 (spec.md §4.10a): after a seek the next rendered
// frame must not be compared against a pre-seek presentation offset.
func (p *Player) ResetTimestamps() {
	p.lastFrame = nil
}
