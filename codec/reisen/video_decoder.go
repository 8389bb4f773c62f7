package reisen

import (
	"fmt"

	"github.com/erparts/reisen"

	"github.com/zenplay-go/zenplay/codec"
	"github.com/zenplay-go/zenplay/hwaccel"
)

// VideoDecoder adapts a *reisen.VideoStream to codec.VideoDecoder. reisen
// pulls its own packets internally (ReadVideoFrame), so Decode here treats
// packet as a routing ticket (see package doc in demuxer.go): every call
// pulls exactly one frame from the stream, regardless of what's inside
// packet, as long as its StreamIndex matches.
type VideoDecoder struct {
	stream *reisen.VideoStream

	width, height int
	timeBase      codec.TimeBase

	hw           *hwaccel.Context
	hwAttempted  bool
	hwValidated  bool
	hwEnabled    bool
}

// NewVideoDecoder constructs a VideoDecoder over stream. hw may be nil, in
// which case the decoder runs software-only.
func NewVideoDecoder(stream *reisen.VideoStream, hw *hwaccel.Context) *VideoDecoder {
	return &VideoDecoder{stream: stream, hw: hw}
}

// Open configures the decoder's dimensions and, if a hardware context was
// supplied, attempts the before_open hardware-acceleration hook of
// spec.md §4.5a: on failure it logs a warning and continues in software,
// it never fails Open.
func (d *VideoDecoder) Open(params codec.OpenParams) error {
	d.width = params.Stream.Width
	d.height = params.Stream.Height
	d.timeBase = params.Stream.TimeBase

	if d.hw != nil {
		d.hwAttempted = true
		err := d.hw.ConfigureDecoder(d.width, d.height, "nv12", "yuv420p", func() (*hwaccel.FramePool, error) {
			// The real framework derives this from codec profile/level; this
			// adapter has no such hook, so it offers a reasonable base and
			// lets hwaccel's own +6+2 headroom logic take over from there.
			return &hwaccel.FramePool{InitialPoolSize: 16}, nil
		})
		if err != nil {
			d.hw = nil // graceful software fallback, scenario S6
		}
	}
	return nil
}

// Decode pulls exactly one frame from the stream if packet targets this
// stream's index (or is the nil flush/end sentinel, in which case it
// behaves like Flush). It reads the underlying stream one call at a time
// instead of in a loop, since this module's worker owns the loop.
func (d *VideoDecoder) Decode(packet *codec.Packet, out *[]codec.Frame) (bool, codec.DecodeOutcome) {
	if packet == nil {
		return d.Flush(out), codec.DecodeEndOfStream
	}
	if packet.StreamIndex != d.stream.Index() {
		return true, codec.DecodeAccepted
	}

	frame, found, err := d.stream.ReadVideoFrame()
	if err != nil {
		return false, codec.DecodeOther
	}
	if !found {
		return true, codec.DecodeEndOfStream
	}

	vf, err := d.toCodecFrame(frame)
	if err != nil {
		return true, codec.DecodeInvalidData
	}
	*out = append(*out, codec.Frame{Video: vf})

	if d.hw != nil && !d.hwValidated {
		d.hwEnabled, d.hwValidated = d.hw.ValidateZeroCopy()
	}
	return true, codec.DecodeAccepted
}

func (d *VideoDecoder) toCodecFrame(frame *reisen.VideoFrame) (*codec.VideoFrame, error) {
	presOffset, err := frame.PresentationOffset()
	if err != nil {
		return nil, fmt.Errorf("reisen: presentation offset: %w", err)
	}

	vf := &codec.VideoFrame{
		Format:   codec.PixelFormatSoftware,
		Width:    d.width,
		Height:   d.height,
		PTSRaw:   presOffset.Milliseconds(),
		TimeBase: codec.TimeBase{Num: 1, Den: 1000},
		Pixels:   frame.Data(),
	}
	// reisen decodes to CPU memory regardless of whether a hwaccel.Context
	// was configured (no cgo GPU binding in this module, see hwaccel
	// package doc): a hardware surface is never actually populated here,
	// matching the software-fallback path of scenario S6.
	return vf, nil
}

// Flush has nothing buffered to drain: reisen's ReadVideoFrame already
// yields frames as decoded, with no internal reorder buffer exposed to
// this binding.
func (d *VideoDecoder) Flush(out *[]codec.Frame) bool { return true }

// FlushBuffers is reisen's per-stream Rewind target discard; reisen has no
// separate "discard buffered frames without seeking" operation, so this is
// a no-op here — Demuxer.Seek's Rewind call is what actually discards
// state, matching the adapter's Seek doc comment in demuxer.go.
func (d *VideoDecoder) FlushBuffers() {}

func (d *VideoDecoder) Close() error {
	if d.hw != nil {
		return d.hw.Close()
	}
	return nil
}

func (d *VideoDecoder) Width() int              { return d.width }
func (d *VideoDecoder) Height() int             { return d.height }
func (d *VideoDecoder) TimeBase() codec.TimeBase { return d.timeBase }

// ZeroCopyEnabled reports the one-time hardware validation result. It is
// always (false, false) when no hwaccel.Context was ever configured or the
// hardware attempt failed during Open, and (false, true) once a frame has
// been decoded on an unconfigured-for-zero-copy pool.
func (d *VideoDecoder) ZeroCopyEnabled() (enabled bool, validated bool) {
	return d.hwEnabled, d.hwValidated
}
