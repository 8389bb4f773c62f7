package codec

// OpenParams carries the codec parameters and adapter-specific options
// passed to Decoder.Open.
type OpenParams struct {
	Stream  StreamDescriptor
	Options map[string]string
}

// Decoder implements the send/receive decode loop contract of spec.md §4.5.
// VideoDecoder and AudioDecoder specialize it with a handful of extra
// methods; each codec/reisen adapter implements its own send/receive loop
// in its Decode method.
type Decoder interface {
	// Open allocates the codec context for the given stream.
	Open(params OpenParams) error

	// Decode submits packet (nil means the end-of-stream sentinel) and
	// appends every frame the codec's receive loop yields to out. Per
	// spec.md §4.5, InvalidData/BufferFull/EndOfStream are not decode
	// failures: only a genuine receive-loop error returns false.
	//
	// Per spec.md invariant 4, packet is released by the decoder before
	// this call returns, regardless of outcome; the caller must not reuse
	// it afterward.
	Decode(packet *Packet, out *[]Frame) (ok bool, outcome DecodeOutcome)

	// Flush is equivalent to Decode(nil, out): it drains any frames the
	// codec is still holding.
	Flush(out *[]Frame) bool

	// FlushBuffers discards internal decoder state without producing
	// frames (used by the seek protocol).
	FlushBuffers()

	// Close releases working buffers and the codec context.
	Close() error
}

// Frame is the sum type a Decoder yields: exactly one of Video or Audio is
// non-nil, matching which decoder specialization produced it.
type Frame struct {
	Video *VideoFrame
	Audio *AudioFrame
}

// VideoDecoder specializes Decoder with hardware-acceleration wiring and
// zero-copy validation (spec.md §4.5a).
type VideoDecoder interface {
	Decoder

	// Width, Height, TimeBase are accessors for the opened
	// stream's video parameters.
	Width() int
	Height() int
	TimeBase() TimeBase

	// ZeroCopyEnabled reports the result of the one-time zero-copy
	// validation performed on the first hardware frame. It returns
	// (false, false) if no frame has been decoded yet or the path is
	// software-only.
	ZeroCopyEnabled() (enabled bool, validated bool)
}

// AudioDecoder specializes Decoder; it validates that the stream is audio
// and otherwise defers entirely to the base decode loop (spec.md §4.5b).
type AudioDecoder interface {
	Decoder

	SampleRate() int
	Channels() int
	SampleFormat() SampleFormat
}
