// Package fake provides synthetic codec.Demuxer/VideoDecoder/AudioDecoder
// implementations for tests that exercise controller/player wiring without
// a real C decoder. This package is modeled on the same interfaces
// codec/reisen implements, generating deterministic packets and frames
// instead of reading a file.
package fake

import (
	"sync"

	"github.com/zenplay-go/zenplay/codec"
)

// Demuxer yields a fixed, pre-built sequence of packets, then end-of-stream.
// Seek rewinds the read cursor to the packet whose PTS is >= targetUs/1000.
type Demuxer struct {
	mu      sync.Mutex
	packets []*codec.Packet
	cursor  int

	videoStreams []codec.StreamDescriptor
	audioStreams []codec.StreamDescriptor
	durationMs   int64

	closed bool
}

// NewDemuxer builds a Demuxer that will yield packets in order.
func NewDemuxer(packets []*codec.Packet, videoStreams, audioStreams []codec.StreamDescriptor, durationMs int64) *Demuxer {
	return &Demuxer{packets: packets, videoStreams: videoStreams, audioStreams: audioStreams, durationMs: durationMs}
}

func (d *Demuxer) Open(string, codec.OpenOptions) error { return nil }

func (d *Demuxer) ProbeStreams() ([]codec.StreamDescriptor, error) {
	var all []codec.StreamDescriptor
	all = append(all, d.videoStreams...)
	all = append(all, d.audioStreams...)
	return all, nil
}

func (d *Demuxer) VideoStreams() []codec.StreamDescriptor { return d.videoStreams }
func (d *Demuxer) AudioStreams() []codec.StreamDescriptor { return d.audioStreams }

func (d *Demuxer) ReadPacket() (*codec.Packet, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.cursor >= len(d.packets) {
		return nil, nil
	}
	pkt := d.packets[d.cursor]
	d.cursor++
	return pkt, nil
}

func (d *Demuxer) Seek(targetUs int64, _ bool) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	targetMs := targetUs / 1000
	for i, p := range d.packets {
		if p.PTS >= targetMs {
			d.cursor = i
			return nil
		}
	}
	d.cursor = len(d.packets)
	return nil
}

func (d *Demuxer) DurationMs() int64 { return d.durationMs }
func (d *Demuxer) Metadata() map[string]string { return map[string]string{} }

func (d *Demuxer) FindStreamByIndex(index int) (codec.StreamDescriptor, bool) {
	for _, s := range d.videoStreams {
		if s.Index == index {
			return s, true
		}
	}
	for _, s := range d.audioStreams {
		if s.Index == index {
			return s, true
		}
	}
	return codec.StreamDescriptor{}, false
}

func (d *Demuxer) Close() error {
	d.mu.Lock()
	d.closed = true
	d.mu.Unlock()
	return nil
}

func (d *Demuxer) Closed() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.closed
}

// VideoDecoder turns a ticket codec.Packet into a synthetic codec.VideoFrame
// carrying the packet's own PTS, so tests can assert on PTS propagation
// through decode and render without needing real pixel data.
type VideoDecoder struct {
	width, height int
	flushCalls    int
	opened        bool
}

func NewVideoDecoder(width, height int) *VideoDecoder {
	return &VideoDecoder{width: width, height: height}
}

func (d *VideoDecoder) Open(codec.OpenParams) error { d.opened = true; return nil }

func (d *VideoDecoder) Decode(packet *codec.Packet, out *[]codec.Frame) (bool, codec.DecodeOutcome) {
	if packet == nil {
		return true, codec.DecodeEndOfStream
	}
	*out = append(*out, codec.Frame{Video: &codec.VideoFrame{
		Format:   codec.PixelFormatSoftware,
		Width:    d.width,
		Height:   d.height,
		PTSRaw:   packet.PTS,
		TimeBase: codec.TimeBase{Num: 1, Den: 1000},
		Pixels:   make([]byte, d.width*d.height*4),
	}})
	return true, codec.DecodeAccepted
}

func (d *VideoDecoder) Flush(*[]codec.Frame) bool { return true }
func (d *VideoDecoder) FlushBuffers()              { d.flushCalls++ }
func (d *VideoDecoder) Close() error                { return nil }
func (d *VideoDecoder) Width() int                  { return d.width }
func (d *VideoDecoder) Height() int                 { return d.height }
func (d *VideoDecoder) TimeBase() codec.TimeBase     { return codec.TimeBase{Num: 1, Den: 1000} }
func (d *VideoDecoder) ZeroCopyEnabled() (bool, bool) { return false, false }
func (d *VideoDecoder) FlushCalls() int              { return d.flushCalls }

// AudioDecoder mirrors VideoDecoder for audio packets.
type AudioDecoder struct {
	sampleRate, channels int
	flushCalls           int
}

func NewAudioDecoder(sampleRate, channels int) *AudioDecoder {
	return &AudioDecoder{sampleRate: sampleRate, channels: channels}
}

func (d *AudioDecoder) Open(codec.OpenParams) error { return nil }

func (d *AudioDecoder) Decode(packet *codec.Packet, out *[]codec.Frame) (bool, codec.DecodeOutcome) {
	if packet == nil {
		return true, codec.DecodeEndOfStream
	}
	*out = append(*out, codec.Frame{Audio: &codec.AudioFrame{
		SampleCount:    1,
		SampleRate:     d.sampleRate,
		Channels:       d.channels,
		Format:         codec.SamplePacked,
		BytesPerSample: 4,
		PTSRaw:         packet.PTS,
		TimeBase:       codec.TimeBase{Num: 1, Den: 1000},
		Data:           [][]byte{make([]byte, 4*d.channels)},
	}})
	return true, codec.DecodeAccepted
}

func (d *AudioDecoder) Flush(*[]codec.Frame) bool          { return true }
func (d *AudioDecoder) FlushBuffers()                       { d.flushCalls++ }
func (d *AudioDecoder) Close() error                        { return nil }
func (d *AudioDecoder) SampleRate() int                     { return d.sampleRate }
func (d *AudioDecoder) Channels() int                        { return d.channels }
func (d *AudioDecoder) SampleFormat() codec.SampleFormat     { return codec.SamplePacked }
func (d *AudioDecoder) FlushCalls() int                      { return d.flushCalls }
