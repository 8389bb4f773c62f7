// Package zenplay is the facade of spec.md §4.11: Open/Close/Play/Pause/
// Stop/SeekAsync/DurationMs/CurrentPlayTimeMs/State plus the state-change
// subscription pair. The facade only wires component lifecycles together
// and delegates frame delivery to videoplayer/audioplayer; there is no
// CurrentFrame-style pixel polling because frames are pushed straight into
// the Renderer instead.
package zenplay

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/audio"

	"github.com/zenplay-go/zenplay/audioplayer"
	"github.com/zenplay-go/zenplay/avsync"
	"github.com/zenplay-go/zenplay/codec"
	"github.com/zenplay-go/zenplay/codec/reisen"
	"github.com/zenplay-go/zenplay/controller"
	"github.com/zenplay-go/zenplay/hwaccel"
	"github.com/zenplay-go/zenplay/resample"
	"github.com/zenplay-go/zenplay/state"
	"github.com/zenplay-go/zenplay/videoplayer"
)

// State re-exports state.State so callers never need to import the state
// package directly for the facade's State()/callback signatures.
type State = state.State

const (
	Idle    = state.Idle
	Opening = state.Opening
	Stopped = state.Stopped
	Playing = state.Playing
	Paused  = state.Paused
	Seeking = state.Seeking
	Failed  = state.Error
)

// StateChangeCallback mirrors state.Callback at the facade boundary.
type StateChangeCallback = state.Callback

// Options carries every tunable spec.md §10.3 leaves to the embedder,
// an Options struct rather than an ever-growing constructor parameter list
// (SPEC_FULL.md §10.3).
type Options struct {
	// AudioContext is the process-wide ebiten audio context. Required if
	// the opened source has an audio stream; ErrNilAudioContext otherwise.
	AudioContext *audio.Context

	// Renderer overrides the default EbitenRenderer. Leave nil to use it.
	Renderer videoplayer.Renderer

	// HardwareDecodeEnabled attempts a platform hardware-decode device
	// before falling back to software (spec.md §4.5a). Default true; the
	// attempt always degrades gracefully on failure (scenario S6).
	HardwareDecodeEnabled bool

	PacketQueueCapacity     int
	VideoFrameQueueCapacity int
	AudioFrameQueueCapacity int

	Logger Logger
}

// DefaultOptions returns spec.md §5's default queue capacities and a
// hardware-decode attempt enabled by default.
func DefaultOptions() Options {
	return Options{
		HardwareDecodeEnabled:   true,
		PacketQueueCapacity:     80,
		VideoFrameQueueCapacity: 30,
		AudioFrameQueueCapacity: 64,
	}
}

// Player is the facade of spec.md §4.11.
type Player struct {
	mu   sync.Mutex
	opts Options
	log  Logger

	demuxer      *reisen.Demuxer
	videoDecoder *reisen.VideoDecoder
	audioDecoder *reisen.AudioDecoder
	hw           *hwaccel.Context

	videoStreamIndex int
	audioStreamIndex int
	hasAudio         bool
	durationMs       int64

	renderer    videoplayer.Renderer
	videoPlayer *videoplayer.Player
	audioPlayer *audioplayer.Player
	resampler   *resample.AudioResampler
	sync        *avsync.Controller

	state *state.Manager
	ctrl  *controller.PlaybackController
	ctx   context.Context

	everStarted bool
}

// New constructs an unopened Player in state Idle.
func New(opts Options) *Player {
	logger := opts.Logger
	if logger == nil {
		logger = pkgLogger
	}
	if opts.PacketQueueCapacity == 0 {
		opts.PacketQueueCapacity = 80
	}
	if opts.VideoFrameQueueCapacity == 0 {
		opts.VideoFrameQueueCapacity = 30
	}
	if opts.AudioFrameQueueCapacity == 0 {
		opts.AudioFrameQueueCapacity = 64
	}
	return &Player{
		opts:  opts,
		log:   logger,
		state: state.New(),
	}
}

// Open implements spec.md §4.11's open(url): demuxer open, stream probe,
// hardware/software decoder choice, decoder opens, PlaybackController
// construction. Any failure cleans up components in reverse dependency
// order and transitions to Error, per spec.md §7's "Catastrophic" policy.
func (p *Player) Open(url string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if err := p.state.Transition(state.Opening); err != nil {
		return newCoreError("facade", ErrorAlreadyRunning, err)
	}

	demuxer := reisen.New()
	if err := demuxer.Open(url, codec.NetworkPreset()); err != nil {
		_ = p.state.Transition(state.Error)
		return newCoreError("demuxer", classifyDemuxOpenError(err), err)
	}

	if _, err := demuxer.ProbeStreams(); err != nil {
		demuxer.Close()
		_ = p.state.Transition(state.Error)
		return newCoreError("demuxer", ErrorDecoderInitFailed, err)
	}

	videoStreams := demuxer.VideoStreams()
	audioStreams := demuxer.AudioStreams()
	if len(videoStreams) == 0 {
		demuxer.Close()
		_ = p.state.Transition(state.Error)
		return ErrNoVideo
	}
	if len(videoStreams) > 1 {
		p.log.Printf("WARNING: '%s' has multiple video streams; defaulting to the first", filepath.Base(url))
	}
	hasAudio := len(audioStreams) > 0
	if hasAudio && len(audioStreams) > 1 {
		p.log.Printf("WARNING: '%s' has multiple audio streams; defaulting to the first", filepath.Base(url))
	}
	if hasAudio && p.opts.AudioContext == nil {
		demuxer.Close()
		_ = p.state.Transition(state.Error)
		return ErrNilAudioContext
	}
	if hasAudio && p.opts.AudioContext.SampleRate() <= 0 {
		demuxer.Close()
		_ = p.state.Transition(state.Error)
		return ErrBadSampleRate
	}

	hw := p.setupHardware(videoStreams[0])

	if err := demuxer.OpenDecode(); err != nil {
		p.closeHardware(hw)
		demuxer.Close()
		_ = p.state.Transition(state.Error)
		return newCoreError("demuxer", ErrorDecoderInitFailed, err)
	}

	vStream, _ := demuxer.ActiveVideoStream()
	videoDecoder := reisen.NewVideoDecoder(vStream, hw)
	if err := videoDecoder.Open(codec.OpenParams{Stream: videoStreams[0]}); err != nil {
		_ = demuxer.CloseDecode()
		p.closeHardware(hw)
		demuxer.Close()
		_ = p.state.Transition(state.Error)
		return newCoreError("video_decoder", ErrorDecoderInitFailed, err)
	}

	var audioDecoder *reisen.AudioDecoder
	var audioDesc codec.StreamDescriptor
	if hasAudio {
		audioDesc = audioStreams[0]
		aStream, _ := demuxer.ActiveAudioStream()
		audioDecoder = reisen.NewAudioDecoder(aStream)
		if err := audioDecoder.Open(codec.OpenParams{Stream: audioDesc}); err != nil {
			_ = videoDecoder.Close()
			_ = demuxer.CloseDecode()
			p.closeHardware(hw)
			demuxer.Close()
			_ = p.state.Transition(state.Error)
			return newCoreError("audio_decoder", ErrorDecoderInitFailed, err)
		}
	}

	p.demuxer = demuxer
	p.videoDecoder = videoDecoder
	p.audioDecoder = audioDecoder
	p.hw = hw
	p.videoStreamIndex = videoStreams[0].Index
	p.hasAudio = hasAudio
	if hasAudio {
		p.audioStreamIndex = audioDesc.Index
	} else {
		p.audioStreamIndex = -1
	}
	p.durationMs = demuxer.DurationMs()
	p.ctx = context.Background()

	p.renderer = p.opts.Renderer
	if p.renderer == nil {
		p.renderer = videoplayer.NewEbitenRenderer()
	}

	master := avsync.SelectAudioVideoMaster(hasAudio, true)
	p.sync = avsync.New(master)
	p.videoPlayer = videoplayer.New(p.sync, p.renderer, p.opts.VideoFrameQueueCapacity)
	p.videoPlayer.SetStreamIndex(p.videoStreamIndex)

	if hasAudio {
		p.resampler = resample.New(resample.TargetFormat{
			SampleRate: p.opts.AudioContext.SampleRate(),
			Channels:   2,
			Format:     codec.SamplePacked,
		})
		p.audioPlayer = audioplayer.New(p.opts.AudioContext, p.sync, p.opts.AudioFrameQueueCapacity)
		if err := p.audioPlayer.Init(p.audioStreamIndex); err != nil {
			_ = videoDecoder.Close()
			_ = audioDecoder.Close()
			_ = demuxer.CloseDecode()
			p.closeHardware(hw)
			demuxer.Close()
			_ = p.state.Transition(state.Error)
			return newCoreError("audio_player", ErrorDecoderInitFailed, err)
		}
	}

	p.buildController()
	p.everStarted = false

	return p.state.Transition(state.Stopped)
}

func (p *Player) buildController() {
	p.ctrl = controller.New(controller.Params{
		Demuxer:          p.demuxer,
		VideoDecoder:     p.videoDecoder,
		AudioDecoder:     audioDecoderOrNil(p.audioDecoder),
		VideoStreamIndex: p.videoStreamIndex,
		AudioStreamIndex: p.audioStreamIndex,
		VideoPlayer:      p.videoPlayer,
		AudioPlayer:      p.audioPlayer,
		Resampler:        p.resampler,
		Sync:             p.sync,
		State:            p.state,
		Logger:           p.log,
	})
}

// audioDecoderOrNil avoids handing controller.New a non-nil interface value
// wrapping a nil *reisen.AudioDecoder pointer (the classic Go "typed nil"
// trap), which would make controller.PlaybackController think audio is
// present.
func audioDecoderOrNil(d *reisen.AudioDecoder) codec.AudioDecoder {
	if d == nil {
		return nil
	}
	return d
}

func (p *Player) setupHardware(videoStream codec.StreamDescriptor) *hwaccel.Context {
	if !p.opts.HardwareDecodeEnabled {
		return nil
	}
	device, err := hwaccel.NewPlatformDevice()
	if err != nil {
		p.log.Printf("WARNING: hardware device unavailable, falling back to software: %v", err)
		return nil
	}
	hw, err := hwaccel.NewContext(device, p.log)
	if err != nil {
		p.log.Printf("WARNING: hardware context init failed, falling back to software: %v", err)
		return nil
	}
	return hw
}

func (p *Player) closeHardware(hw *hwaccel.Context) {
	if hw != nil {
		_ = hw.Close()
	}
}

func classifyDemuxOpenError(err error) ErrorCode {
	switch {
	case errors.Is(err, codec.ErrFileNotFound):
		return ErrorFileNotFound
	case errors.Is(err, codec.ErrAccessDenied):
		return ErrorAccessDenied
	case errors.Is(err, codec.ErrNetworkTimeout):
		return ErrorNetworkTimeout
	default:
		return ErrorIOError
	}
}

// Close implements spec.md §4.11's close(): tear down every component in
// reverse dependency order and return to Idle.
func (p *Player) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.demuxer == nil {
		return nil
	}
	if p.ctrl != nil && p.everStarted {
		_ = p.ctrl.Stop()
	}
	if p.audioPlayer != nil {
		_ = p.audioPlayer.Stop()
	}
	if p.videoDecoder != nil {
		_ = p.videoDecoder.Close()
	}
	if p.audioDecoder != nil {
		_ = p.audioDecoder.Close()
	}
	_ = p.demuxer.CloseDecode()
	p.closeHardware(p.hw)
	_ = p.demuxer.Close()
	if p.renderer != nil {
		_ = p.renderer.Cleanup()
	}

	p.demuxer = nil
	p.videoDecoder = nil
	p.audioDecoder = nil
	p.hw = nil
	p.ctrl = nil
	p.videoPlayer = nil
	p.audioPlayer = nil
	p.resampler = nil
	p.sync = nil
	p.renderer = nil

	return p.state.Transition(state.Idle)
}

// SetRenderWindow implements spec.md §4.11's set_render_window: handle is
// expected to be an *ebiten.Image render target (this module's only
// Renderer implementation, EbitenRenderer, projects into one via DrawTo).
// It may run on a background goroutine per spec.md; on failure the player
// transitions to Error.
func (p *Player) SetRenderWindow(handle any, w, h int) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	target, ok := handle.(*ebiten.Image)
	if !ok {
		_ = p.state.Transition(state.Error)
		return newCoreError("renderer", ErrorInvalidParameter, fmt.Errorf("handle is not *ebiten.Image"))
	}
	if setter, ok := p.renderer.(interface{ SetTarget(*ebiten.Image) }); ok {
		setter.SetTarget(target)
	}
	p.renderer.OnResize(w, h)
	return nil
}

// OnWindowResize implements spec.md §4.11's on_window_resize.
func (p *Player) OnWindowResize(w, h int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.renderer != nil {
		p.renderer.OnResize(w, h)
	}
}

// DrawTo is an EbitenRenderer convenience: if the facade's renderer
// implements it, blit the current frame into viewport. Games embedding this
// player call it from their own Draw callback. Not part of the abstract
// Renderer contract (spec.md §6): that contract stops at render_frame.
func (p *Player) DrawTo(viewport *ebiten.Image) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if drawer, ok := p.renderer.(interface{ DrawTo(*ebiten.Image) }); ok {
		drawer.DrawTo(viewport)
	}
}

// Play implements spec.md §4.11's play(): activates or resumes playback.
func (p *Player) Play() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.ctrl == nil {
		return ErrNotOpen
	}

	switch p.state.Current() {
	case state.Playing:
		return nil
	case state.Paused:
		return p.ctrl.Resume()
	case state.Stopped:
		if p.everStarted {
			// Restarting after a prior Stop(): per DESIGN.md's
			// "Re-open-on-play" decision, rewind the already-open
			// demuxer/decoders instead of reopening the source, and
			// rebuild the controller since its worker queues were
			// permanently stopped.
			if err := p.demuxer.Seek(0, true); err != nil {
				_ = p.state.Transition(state.Error)
				return newCoreError("demuxer", ErrorIOError, err)
			}
			p.videoDecoder.FlushBuffers()
			if p.audioDecoder != nil {
				p.audioDecoder.FlushBuffers()
			}
			now := time.Now()
			p.sync.Reset(now)
			if p.resampler != nil {
				p.resampler.Reset()
			}
			if p.hasAudio {
				if err := p.audioPlayer.Init(p.audioStreamIndex); err != nil {
					_ = p.state.Transition(state.Error)
					return newCoreError("audio_player", ErrorDecoderInitFailed, err)
				}
			}
			p.buildController()
		}
		if err := p.state.Transition(state.Playing); err != nil {
			return newCoreError("facade", ErrorInvalidParameter, err)
		}
		if p.hasAudio {
			if err := p.audioPlayer.Start(); err != nil {
				_ = p.state.Transition(state.Error)
				return newCoreError("audio_player", ErrorNotInitialized, err)
			}
		}
		p.ctrl.Start(p.ctx)
		p.everStarted = true
		return nil
	default:
		return fmt.Errorf("zenplay: cannot play from state %s", p.state.Current())
	}
}

// Pause implements spec.md §4.11's pause().
func (p *Player) Pause() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.ctrl == nil {
		return ErrNotOpen
	}
	return p.ctrl.Pause()
}

// Stop implements spec.md §4.11's stop().
func (p *Player) Stop() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.ctrl == nil {
		return ErrNotOpen
	}
	return p.ctrl.Stop()
}

// SeekAsync implements spec.md §4.11's seek_async(ts, backward).
func (p *Player) SeekAsync(tsMs int64, backward bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.ctrl == nil {
		return
	}
	p.ctrl.SeekAsync(tsMs, backward)
}

// DurationMs implements spec.md §4.11's duration_ms() (0 if not opened).
func (p *Player) DurationMs() int64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.durationMs
}

// CurrentPlayTimeMs implements spec.md §4.11's current_play_time_ms(),
// reading the sync controller's selected master clock.
func (p *Player) CurrentPlayTimeMs() int64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.sync == nil {
		return 0
	}
	return p.sync.MasterClock(time.Now())
}

// State implements spec.md §4.11's state().
func (p *Player) State() State {
	return p.state.Current()
}

// RegisterStateChangeCallback implements spec.md §4.11's
// register_state_change_callback(cb).
func (p *Player) RegisterStateChangeCallback(cb StateChangeCallback) uuid.UUID {
	return p.state.Register(cb)
}

// UnregisterStateChangeCallback implements spec.md §4.11's
// unregister_state_change_callback(id).
func (p *Player) UnregisterStateChangeCallback(id uuid.UUID) {
	p.state.Unregister(id)
}
