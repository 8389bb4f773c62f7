// Package codec defines the abstract contract this module requires from a
// C media-decoding framework (spec.md §6 "Codec service"). It never imports
// a concrete decoder library itself; codec/reisen provides the only
// implementation shipped with this module, backed by
// github.com/erparts/reisen.
package codec

import "time"

// MediaType classifies a stream.
type MediaType uint8

const (
	MediaVideo MediaType = iota
	MediaAudio
	MediaOther
)

// SampleFormat discriminates planar vs packed PCM layouts.
type SampleFormat uint8

const (
	SampleFormatUnknown SampleFormat = iota
	SamplePlanar
	SamplePacked
)

// PixelFormat discriminates software planar pixel layouts from an opaque
// hardware-surface format. Concrete pixel layouts (e.g. YUV420P, NV12) are
// left to the decoder adapter; the core only needs to know whether a frame
// is hardware-resident.
type PixelFormat uint8

const (
	PixelFormatSoftware PixelFormat = iota
	PixelFormatHardware
)

// TimeBase is a rational num/den giving the unit of one tick for a stream.
type TimeBase struct {
	Num, Den int
}

// Rescale converts a raw tick count into milliseconds using this time base.
func (tb TimeBase) Rescale(ticks int64) int64 {
	if tb.Den == 0 {
		return 0
	}
	return ticks * int64(tb.Num) * 1000 / int64(tb.Den)
}

// StreamDescriptor is immutable probe-time metadata for one stream.
type StreamDescriptor struct {
	Index       int
	Type        MediaType
	CodecID     string
	TimeBase    TimeBase
	Width       int // video only
	Height      int // video only
	SampleRate  int // audio only
	Channels    int // audio only
	SampleFmt   SampleFormat
	FrameRateN  int // video only
	FrameRateD  int // video only
}

// Packet is an opaque compressed-data unit. A nil *Packet from ReadPacket
// denotes end-of-stream; decoders also accept a nil packet as the flush
// sentinel (spec.md §4.5 flush() == decode(sentinel)).
type Packet struct {
	StreamIndex int
	PTS         int64 // raw ticks, stream time base
	DTS         int64 // raw ticks, stream time base
	Size        int
	KeyFrame    bool
	Data        []byte
}

// VideoFrame is a decoded video unit. Exactly one of Pixels or Surface is
// set: Surface identifies a hardware-resident frame (device handle owned
// elsewhere, pool index into that device's frame pool); copying a VideoFrame
// with Format == PixelFormatHardware must never deep-copy Pixels (there are
// none) and must not be done on the hot path, per spec.md invariant 5.
type VideoFrame struct {
	Format      PixelFormat
	Width       int
	Height      int
	PTSRaw      int64
	TimeBase    TimeBase
	Pixels      []byte // software path: packed RGBA or decoder-native layout
	Surface     HardwareSurface
}

// PresentationMs returns the frame's PTS rescaled to milliseconds.
func (f *VideoFrame) PresentationMs() int64 { return f.TimeBase.Rescale(f.PTSRaw) }

// HardwareSurface identifies a GPU-resident decoded frame: an opaque device
// handle plus the pool slot it occupies. It carries no data of its own.
type HardwareSurface struct {
	DeviceHandle any
	PoolIndex    int
}

// AudioFrame is a decoded audio unit.
type AudioFrame struct {
	SampleCount   int
	SampleRate    int
	Channels      int
	Format        SampleFormat
	BytesPerSample int
	PTSRaw        int64
	TimeBase      TimeBase
	Data          [][]byte // one slice per plane; packed formats use Data[0]
}

// PresentationMs returns the frame's PTS rescaled to milliseconds.
func (f *AudioFrame) PresentationMs() int64 { return f.TimeBase.Rescale(f.PTSRaw) }

// DecodeOutcome distinguishes the codec-level error discriminants of
// spec.md §6: BufferFull/EndOfStream/InvalidData are not decode failures,
// they steer the send/receive loop; Other is a logged-but-tolerated warning.
type DecodeOutcome uint8

const (
	DecodeAccepted DecodeOutcome = iota
	DecodeBufferFull
	DecodeEndOfStream
	DecodeInvalidData
	DecodeOther
)

// now is overridable in tests that need deterministic wall-clock behavior
// downstream of this package; production code always uses time.Now.
var now = time.Now
