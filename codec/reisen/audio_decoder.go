package reisen

import (
	"fmt"

	"github.com/erparts/reisen"

	"github.com/zenplay-go/zenplay/codec"
)

// AudioDecoder adapts a *reisen.AudioStream to codec.AudioDecoder, mirroring
// VideoDecoder's ticket-packet bridge.
type AudioDecoder struct {
	stream *reisen.AudioStream

	sampleRate int
	channels   int
	format     codec.SampleFormat
	timeBase   codec.TimeBase
}

// NewAudioDecoder constructs an AudioDecoder over stream.
func NewAudioDecoder(stream *reisen.AudioStream) *AudioDecoder {
	return &AudioDecoder{stream: stream}
}

func (d *AudioDecoder) Open(params codec.OpenParams) error {
	d.sampleRate = params.Stream.SampleRate
	d.channels = params.Stream.Channels
	d.format = params.Stream.SampleFmt
	d.timeBase = params.Stream.TimeBase
	return nil
}

// Decode pulls exactly one frame from the audio stream, same ticket
// protocol as VideoDecoder.Decode (see demuxer.go package doc). reisen
// hands back raw packed PCM bytes via frame.Data(); this adapter returns
// them as a single-plane codec.AudioFrame for the resample package to pick
// up, rather than appending to a rolling byte buffer itself.
func (d *AudioDecoder) Decode(packet *codec.Packet, out *[]codec.Frame) (bool, codec.DecodeOutcome) {
	if packet == nil {
		return d.Flush(out), codec.DecodeEndOfStream
	}
	if packet.StreamIndex != d.stream.Index() {
		return true, codec.DecodeAccepted
	}

	frame, found, err := d.stream.ReadAudioFrame()
	if err != nil {
		return false, codec.DecodeOther
	}
	if !found {
		return true, codec.DecodeEndOfStream
	}

	af, err := d.toCodecFrame(frame)
	if err != nil {
		return true, codec.DecodeInvalidData
	}
	*out = append(*out, codec.Frame{Audio: af})
	return true, codec.DecodeAccepted
}

func (d *AudioDecoder) toCodecFrame(frame *reisen.AudioFrame) (*codec.AudioFrame, error) {
	presOffset, err := frame.PresentationOffset()
	if err != nil {
		return nil, fmt.Errorf("reisen: presentation offset: %w", err)
	}

	data := frame.Data()
	const bytesPerSample = 4 // reisen decodes to float32 packed PCM
	sampleCount := 0
	if d.channels > 0 {
		sampleCount = len(data) / (bytesPerSample * d.channels)
	}

	return &codec.AudioFrame{
		SampleCount:    sampleCount,
		SampleRate:     d.sampleRate,
		Channels:       d.channels,
		Format:         codec.SamplePacked,
		BytesPerSample: bytesPerSample,
		PTSRaw:         presOffset.Milliseconds(),
		TimeBase:       codec.TimeBase{Num: 1, Den: 1000},
		Data:           [][]byte{data},
	}, nil
}

func (d *AudioDecoder) Flush(out *[]codec.Frame) bool { return true }

func (d *AudioDecoder) FlushBuffers() {}

func (d *AudioDecoder) Close() error { return nil }

func (d *AudioDecoder) SampleRate() int                 { return d.sampleRate }
func (d *AudioDecoder) Channels() int                   { return d.channels }
func (d *AudioDecoder) SampleFormat() codec.SampleFormat { return d.format }
