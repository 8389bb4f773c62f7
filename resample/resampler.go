// Package resample implements the lazy audio-format-adaptation contract of
// spec.md §4.7: a decoded codec.AudioFrame may not match the audio device's
// configured format (sample rate, channel count, sample format), and
// conversion is only set up the first time a mismatch is actually observed,
// never up front.
//
// A naive player can get away with assuming the decoded stream's sample
// rate already matches the ebiten audio.Context, logging a warning and
// proceeding anyway when they differ; this package instead actually bridges
// the formats with a linear-interpolation rate converter plus a mono<->
// stereo mixer, composed as needed, with a small struct, explicit error
// returns, and no panics.
package resample

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"

	"github.com/zenplay-go/zenplay/codec"
)

// TargetFormat is the audio device's fixed output contract.
type TargetFormat struct {
	SampleRate int
	Channels   int
	Format     codec.SampleFormat
}

// ErrUnsupportedConversion is returned when the resampler doesn't know how
// to bridge the source and target formats (planar source data, or a channel
// layout this module's mixer can't down/up-mix).
var ErrUnsupportedConversion = errors.New("resample: unsupported source/target conversion")

// bytesPerSample is fixed because codec/reisen only ever produces packed
// float32 PCM (see codec/reisen/audio_decoder.go); a second codec.Decoder
// implementation emitting a different sample width would need its own
// conversion path, not addressed here.
const bytesPerSample = 4

// ResampledAudioFrame is the output of AudioResampler.Convert: PCM bytes
// already in TargetFormat, ready for the audio device queue.
type ResampledAudioFrame struct {
	Data       []byte
	PTSRaw     int64
	TimeBase   codec.TimeBase
	SampleRate int
	Channels   int
}

// AudioResampler lazily adapts frames to TargetFormat. Fields mirror
// spec.md §4.7's "lazily create one, and only set up a resampler context if
// the source format actually differs".
type AudioResampler struct {
	target TargetFormat

	configured  bool
	sourceRate  int
	sourceCh    int
	sourceFmt   codec.SampleFormat
	passthrough bool
	needsMix    bool
	needsRate   bool

	// phase is the fractional source-sample position left over from the
	// previous resampleRate call, carried across Convert calls so the rate
	// converter stays continuous at frame boundaries instead of restarting
	// from position zero on every packet.
	phase float64

	decodeBuf []float32 // reused source-bytes-as-float32 scratch
	mixBuf    []float32 // reused post-channel-mix scratch
	rateBuf   []float32 // reused post-rate-conversion scratch
	outBuf    []byte    // reused final encoded-to-bytes buffer (grow-only)
}

// New constructs an AudioResampler targeting target.
func New(target TargetFormat) *AudioResampler {
	return &AudioResampler{target: target}
}

// Convert adapts frame to the target format, configuring (or re-configuring,
// if the source format changed) the internal conversion state as needed.
func (r *AudioResampler) Convert(frame *codec.AudioFrame) (*ResampledAudioFrame, error) {
	if frame == nil {
		return nil, fmt.Errorf("resample: nil frame")
	}
	if !r.configured || r.sourceRate != frame.SampleRate || r.sourceCh != frame.Channels || r.sourceFmt != frame.Format {
		if err := r.configure(frame); err != nil {
			return nil, err
		}
	}
	if len(frame.Data) == 0 || len(frame.Data[0]) == 0 {
		return nil, fmt.Errorf("resample: empty frame data")
	}
	src := frame.Data[0]

	if r.passthrough {
		buf := r.ensureOutBuf(len(src))
		n := copy(buf, src)
		return r.frameOut(frame, buf[:n]), nil
	}

	samples := r.decodeFloat32(src)
	if r.needsMix {
		samples = r.mixChannels(samples)
	}
	if r.needsRate {
		samples = r.resampleRate(samples)
	}
	return r.frameOut(frame, r.encodeFloat32(samples)), nil
}

// configure decides, for the current source format, which conversion stages
// apply: an exact-match passthrough, a channel mix, a rate conversion, or
// both. It also validates that both stages, if needed, are ones this module
// knows how to do.
func (r *AudioResampler) configure(frame *codec.AudioFrame) error {
	if frame.Format != codec.SamplePacked {
		return fmt.Errorf("%w: planar source data not supported", ErrUnsupportedConversion)
	}

	r.sourceRate = frame.SampleRate
	r.sourceCh = frame.Channels
	r.sourceFmt = frame.Format

	r.passthrough = frame.SampleRate == r.target.SampleRate &&
		frame.Channels == r.target.Channels &&
		frame.Format == r.target.Format
	r.needsMix = !r.passthrough && frame.Channels != r.target.Channels
	r.needsRate = !r.passthrough && frame.SampleRate != r.target.SampleRate

	if r.needsMix {
		monoToStereo := frame.Channels == 1 && r.target.Channels == 2
		stereoToMono := frame.Channels == 2 && r.target.Channels == 1
		if !monoToStereo && !stereoToMono {
			return fmt.Errorf("%w: %d -> %d channels", ErrUnsupportedConversion, frame.Channels, r.target.Channels)
		}
	}

	r.phase = 0
	r.configured = true
	return nil
}

// decodeFloat32 reinterprets packed little-endian float32 PCM bytes as a
// reused []float32 scratch buffer.
func (r *AudioResampler) decodeFloat32(src []byte) []float32 {
	n := len(src) / bytesPerSample
	if cap(r.decodeBuf) < n {
		r.decodeBuf = make([]float32, n)
	}
	out := r.decodeBuf[:n]
	for i := range out {
		out[i] = math.Float32frombits(binary.LittleEndian.Uint32(src[i*bytesPerSample:]))
	}
	return out
}

// encodeFloat32 writes samples back out as packed little-endian float32 PCM
// bytes, into the grow-only outBuf.
func (r *AudioResampler) encodeFloat32(samples []float32) []byte {
	buf := r.ensureOutBuf(len(samples) * bytesPerSample)
	for i, s := range samples {
		binary.LittleEndian.PutUint32(buf[i*bytesPerSample:], math.Float32bits(s))
	}
	return buf
}

func (r *AudioResampler) ensureOutBuf(n int) []byte {
	if cap(r.outBuf) < n {
		r.outBuf = make([]byte, n)
	} else {
		r.outBuf = r.outBuf[:n]
	}
	return r.outBuf
}

// mixChannels bridges mono<->stereo in the float32 domain: duplication for
// mono->stereo, true averaging (not a byte-level approximation) for
// stereo->mono.
func (r *AudioResampler) mixChannels(samples []float32) []float32 {
	srcCh, dstCh := r.sourceCh, r.target.Channels
	frames := len(samples) / srcCh
	need := frames * dstCh
	if cap(r.mixBuf) < need {
		r.mixBuf = make([]float32, need)
	}
	out := r.mixBuf[:need]

	switch {
	case srcCh == 1 && dstCh == 2:
		for i := 0; i < frames; i++ {
			s := samples[i]
			out[i*2] = s
			out[i*2+1] = s
		}
	case srcCh == 2 && dstCh == 1:
		for i := 0; i < frames; i++ {
			out[i] = (samples[i*2] + samples[i*2+1]) / 2
		}
	}
	return out
}

// resampleRate linearly interpolates samples (already at r.target.Channels)
// from r.sourceRate to r.target.SampleRate. r.phase carries the fractional
// source position left over from the previous call so consecutive packets
// interpolate continuously instead of each restarting at position zero; the
// final output sample of a call is still clamped to the last available
// input frame, since the true next sample isn't known until the following
// call arrives.
func (r *AudioResampler) resampleRate(samples []float32) []float32 {
	ch := r.target.Channels
	frames := len(samples) / ch
	if frames == 0 {
		return r.rateBuf[:0]
	}
	ratio := float64(r.sourceRate) / float64(r.target.SampleRate)

	outFrames := 0
	for pos := r.phase; pos < float64(frames); pos += ratio {
		outFrames++
	}

	need := outFrames * ch
	if cap(r.rateBuf) < need {
		r.rateBuf = make([]float32, need)
	}
	out := r.rateBuf[:need]

	pos := r.phase
	for i := 0; i < outFrames; i++ {
		idx := int(pos)
		if idx >= frames {
			idx = frames - 1
		}
		frac := float32(pos - float64(idx))
		next := idx + 1
		if next >= frames {
			next = frames - 1
		}
		for c := 0; c < ch; c++ {
			s0 := samples[idx*ch+c]
			s1 := samples[next*ch+c]
			out[i*ch+c] = s0 + frac*(s1-s0)
		}
		pos += ratio
	}
	r.phase = pos - float64(frames)
	return out
}

func (r *AudioResampler) frameOut(frame *codec.AudioFrame, data []byte) *ResampledAudioFrame {
	return &ResampledAudioFrame{
		Data:       append([]byte(nil), data...),
		PTSRaw:     frame.PTSRaw,
		TimeBase:   frame.TimeBase,
		SampleRate: r.target.SampleRate,
		Channels:   r.target.Channels,
	}
}

// Reset clears configuration and interpolation phase so the next Convert
// re-derives the conversion path from scratch; used by the seek protocol
// alongside decoder FlushBuffers, since a post-seek stream position has no
// continuity with whatever phase preceded it.
func (r *AudioResampler) Reset() {
	r.configured = false
	r.phase = 0
}
