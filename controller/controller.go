// Package controller implements PlaybackController (spec.md §4.10): the
// five worker goroutines (demux, video-decode, audio-decode, sync-monitor,
// seek), pause/resume/stop ordering, and the full seek protocol (§4.10a).
//
// A hand-rolled stopCh/sync.WaitGroup pair is the natural starting shape for
// one or two ad hoc goroutines, but doesn't scale cleanly past that. This
// package generalizes to five cooperating workers using
// golang.org/x/sync/errgroup instead, the natural fit for "launch N
// workers, propagate the first unexpected error."
package controller

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/zenplay-go/zenplay/audioplayer"
	"github.com/zenplay-go/zenplay/avsync"
	"github.com/zenplay-go/zenplay/codec"
	"github.com/zenplay-go/zenplay/queue"
	"github.com/zenplay-go/zenplay/resample"
	"github.com/zenplay-go/zenplay/state"
	"github.com/zenplay-go/zenplay/videoplayer"
)

// Logger is the minimal logging contract this package needs.
type Logger interface {
	Printf(format string, v ...any)
}

type noopLogger struct{}

func (noopLogger) Printf(string, ...any) {}

const (
	packetQueueCapacity = 80
	videoFrameQueueCap  = 30
	audioFrameQueueCap  = 64
	seekQueueCapacity   = 4

	videoPushTimeout = 500 * time.Millisecond
	seekPauseSettle  = 100 * time.Millisecond
)

// SeekRequest is spec.md §4.2's SeekRequest: latest-wins in its queue.
type SeekRequest struct {
	TargetMs     int64
	Backward     bool
	RestoreState state.State
}

// PlaybackController owns every worker goroutine for one open media
// session.
type PlaybackController struct {
	demuxer      codec.Demuxer
	videoDecoder codec.VideoDecoder // nil if the source has no video
	audioDecoder codec.AudioDecoder // nil if the source has no audio

	videoStreamIndex int
	audioStreamIndex int

	videoPacketQueue *queue.Bounded[*codec.Packet]
	audioPacketQueue *queue.Bounded[*codec.Packet]
	seekQueue        *queue.Bounded[*SeekRequest]

	videoPlayer *videoplayer.Player
	audioPlayer *audioplayer.Player
	resampler   *resample.AudioResampler

	sync     *avsync.Controller
	state    *state.Manager
	log      Logger
	seeking  atomic.Bool

	eg     *errgroup.Group
	cancel context.CancelFunc
}

// Params bundles PlaybackController's fixed collaborators, assembled by
// the facade after probing the opened source.
type Params struct {
	Demuxer          codec.Demuxer
	VideoDecoder     codec.VideoDecoder
	AudioDecoder     codec.AudioDecoder
	VideoStreamIndex int
	AudioStreamIndex int
	VideoPlayer      *videoplayer.Player
	AudioPlayer      *audioplayer.Player
	Resampler        *resample.AudioResampler
	Sync             *avsync.Controller
	State            *state.Manager
	Logger           Logger
}

// New constructs a PlaybackController. SelectAudioVideoMaster (avsync
// package) should already have driven Params.Sync's construction before
// this call, per spec.md §4.10's "sync-mode choice on construction".
func New(p Params) *PlaybackController {
	logger := p.Logger
	if logger == nil {
		logger = noopLogger{}
	}
	return &PlaybackController{
		demuxer:          p.Demuxer,
		videoDecoder:     p.VideoDecoder,
		audioDecoder:     p.AudioDecoder,
		videoStreamIndex: p.VideoStreamIndex,
		audioStreamIndex: p.AudioStreamIndex,
		videoPacketQueue: queue.New[*codec.Packet](packetQueueCapacity),
		audioPacketQueue: queue.New[*codec.Packet](packetQueueCapacity),
		seekQueue:        queue.New[*SeekRequest](seekQueueCapacity),
		videoPlayer:      p.VideoPlayer,
		audioPlayer:      p.AudioPlayer,
		resampler:        p.Resampler,
		sync:             p.Sync,
		state:            p.State,
		log:              logger,
	}
}

// Start launches the five worker goroutines of spec.md §4.10.
func (c *PlaybackController) Start(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	c.cancel = cancel
	c.eg, ctx = errgroup.WithContext(ctx)

	if c.videoPlayer != nil {
		c.videoPlayer.Start()
	}

	c.eg.Go(func() error { return c.demuxTask(ctx) })
	if c.videoDecoder != nil {
		c.eg.Go(func() error { return c.videoDecodeTask(ctx) })
	}
	if c.audioDecoder != nil {
		c.eg.Go(func() error { return c.audioDecodeTask(ctx) })
	}
	c.eg.Go(func() error { return c.syncMonitorTask(ctx) })
	c.eg.Go(func() error { return c.seekTask(ctx) })
}

// Wait blocks until every worker has exited and returns the first
// unexpected error, if any (spec.md §5.1's "propagate the first unexpected
// error").
func (c *PlaybackController) Wait() error {
	if c.eg == nil {
		return nil
	}
	return c.eg.Wait()
}

// demuxTask drains the demuxer into per-stream packet queues, matching
// spec.md §4.10's DemuxTask responsibility.
func (c *PlaybackController) demuxTask(ctx context.Context) error {
	for {
		if c.state.ShouldStop() {
			c.pushEOSToConsumers()
			return nil
		}
		c.state.WaitForResume()

		pkt, err := c.demuxer.ReadPacket()
		if err != nil {
			c.log.Printf("WARNING: demux read error: %v", err)
			c.pushEOSToConsumers()
			return fmt.Errorf("controller: demux: %w", err)
		}
		if pkt == nil {
			c.pushEOSToConsumers()
			return nil
		}

		switch {
		case pkt.StreamIndex == c.videoStreamIndex && c.videoDecoder != nil:
			if !c.videoPacketQueue.Push(pkt) {
				return nil
			}
		case pkt.StreamIndex == c.audioStreamIndex && c.audioDecoder != nil:
			if !c.audioPacketQueue.Push(pkt) {
				return nil
			}
		}

		select {
		case <-ctx.Done():
			return nil
		default:
		}
	}
}

func (c *PlaybackController) pushEOSToConsumers() {
	if c.videoDecoder != nil {
		c.videoPacketQueue.Push(nil)
	}
	if c.audioDecoder != nil {
		c.audioPacketQueue.Push(nil)
	}
}

// videoDecodeTask pops packets, decodes, and pushes frames with a timeout
// so it can re-check pause/stop (spec.md §4.10, §4.12 "Cancellation").
func (c *PlaybackController) videoDecodeTask(ctx context.Context) error {
	var frames []codec.Frame
	for {
		pkt, ok := c.videoPacketQueue.Pop()
		if !ok {
			return nil
		}
		if c.state.ShouldStop() {
			return nil
		}
		c.state.WaitForResume()

		frames = frames[:0]
		okDecode, outcome := c.videoDecoder.Decode(pkt, &frames)
		if !okDecode {
			c.log.Printf("WARNING: video decode error (outcome=%d)", outcome)
			continue
		}
		for i := range frames {
			if frames[i].Video == nil {
				continue
			}
			for {
				err := c.videoPlayer.PushFrameBlocking(frames[i].Video, videoPushTimeout)
				if err == nil {
					break
				}
				if err != videoplayer.ErrPushTimeout || c.state.ShouldStop() {
					return nil
				}
				// Timed out: loop back around to re-check pause/stop, per
				// spec.md §4.12's "timeouts preferred over indefinite waits".
			}
		}

		if pkt == nil {
			// End-of-stream sentinel fully processed (flush drained).
			return nil
		}

		select {
		case <-ctx.Done():
			return nil
		default:
		}
	}
}

// audioDecodeTask pops packets, decodes, resamples, and pushes to
// AudioPlayer (spec.md §4.10 AudioDecodeTask responsibility).
func (c *PlaybackController) audioDecodeTask(ctx context.Context) error {
	var frames []codec.Frame
	for {
		pkt, ok := c.audioPacketQueue.Pop()
		if !ok {
			return nil
		}
		if c.state.ShouldStop() {
			return nil
		}
		c.state.WaitForResume()

		frames = frames[:0]
		okDecode, outcome := c.audioDecoder.Decode(pkt, &frames)
		if !okDecode {
			c.log.Printf("WARNING: audio decode error (outcome=%d)", outcome)
			continue
		}
		for i := range frames {
			if frames[i].Audio == nil {
				continue
			}
			resampled, err := c.resampler.Convert(frames[i].Audio)
			if err != nil {
				c.log.Printf("ERROR: resample error, stopping audio: %v", err)
				_ = c.state.Transition(state.Error)
				return fmt.Errorf("controller: resample: %w", err)
			}
			if !c.audioPlayer.PushFrame(resampled) {
				return nil
			}
		}

		if pkt == nil {
			// End-of-stream sentinel fully processed (flush drained).
			return nil
		}

		select {
		case <-ctx.Done():
			return nil
		default:
		}
	}
}

// syncMonitorTask is the low-frequency (~1 Hz) observer of spec.md §4.10,
// reserved for drift alerts; it also ticks the external clock when that's
// the selected master.
func (c *PlaybackController) syncMonitorTask(ctx context.Context) error {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if c.state.ShouldStop() {
				return nil
			}
			if c.sync.SelectedMaster() == avsync.ExternalMaster {
				c.sync.TickExternal(time.Now())
			}
			if drift := c.sync.VideoClockMs(time.Now()) - c.sync.AudioClockMs(time.Now()); drift > 200 || drift < -200 {
				c.log.Printf("WARNING: audio/video drift %dms", drift)
			}
		}
	}
}

// SeekAsync enqueues a SeekRequest; the queue's latest-wins/try_pop
// draining in seekTask implements spec.md §4.10a step 1's coalescing.
func (c *PlaybackController) SeekAsync(targetMs int64, backward bool) {
	restore := c.state.Current()
	c.seekQueue.Push(&SeekRequest{TargetMs: targetMs, Backward: backward, RestoreState: restore})
}
