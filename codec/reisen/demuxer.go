// Package reisen adapts github.com/erparts/reisen (a C decoder binding) to
// this module's codec.Demuxer/codec.VideoDecoder/codec.AudioDecoder
// interfaces, so the rest of the engine never imports reisen directly
// (the decoder library is an opaque collaborator behind those interfaces).
//
// reisen bundles demux-and-decode per stream object (VideoStream.
// ReadVideoFrame/AudioStream.ReadAudioFrame pull their own packets
// internally), unlike the explicit send/receive codec model the rest of
// this module assumes. This adapter bridges the two: Demuxer.ReadPacket
// calls media.ReadPacket() to get the next packet's routing metadata
// (stream index/type/timestamps), and hands a lightweight codec.Packet
// "ticket" down the packet queue; the corresponding Decoder.Decode, when it
// receives that ticket, pulls exactly one frame from the matching reisen
// stream.
package reisen

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/erparts/reisen"

	"github.com/zenplay-go/zenplay/codec"
)

// Demuxer wraps a *reisen.Media.
type Demuxer struct {
	media *reisen.Media
	url   string

	videoStreams []codec.StreamDescriptor
	audioStreams []codec.StreamDescriptor

	activeVideoIndex int
	activeAudioIndex int
}

// New constructs an unopened Demuxer.
func New() *Demuxer { return &Demuxer{activeVideoIndex: -1, activeAudioIndex: -1} }

// Open opens url. reisen only supports explicit filenames/URLs, so opts'
// protocol-specific tuning (buffer sizes, timeouts, reconnect policy) is
// accepted for interface compliance and forwarded where reisen exposes an
// equivalent open-dictionary hook; reisen has no such hook as of the
// version this module pins, so opts is currently unused.
func (d *Demuxer) Open(url string, opts codec.OpenOptions) error {
	media, err := reisen.NewMedia(url)
	if err != nil {
		return classifyOpenError(url, err)
	}
	d.media = media
	d.url = url
	return nil
}

func classifyOpenError(url string, err error) error {
	if _, statErr := os.Stat(url); statErr != nil && errors.Is(statErr, os.ErrNotExist) {
		return fmt.Errorf("%w: %s", codec.ErrFileNotFound, filepath.Base(url))
	}
	return fmt.Errorf("%w: %v", codec.ErrIOError, err)
}

// ProbeStreams populates and returns every stream; it also selects stream
// index 0 of each media type as active, per spec.md §4.4.
func (d *Demuxer) ProbeStreams() ([]codec.StreamDescriptor, error) {
	if d.media == nil {
		return nil, fmt.Errorf("reisen: ProbeStreams called before Open")
	}

	var all []codec.StreamDescriptor
	for _, vs := range d.media.VideoStreams() {
		desc := videoDescriptor(vs)
		d.videoStreams = append(d.videoStreams, desc)
		all = append(all, desc)
	}
	for _, as := range d.media.AudioStreams() {
		desc := audioDescriptor(as)
		d.audioStreams = append(d.audioStreams, desc)
		all = append(all, desc)
	}

	if len(d.videoStreams) > 0 {
		d.activeVideoIndex = d.videoStreams[0].Index
	}
	if len(d.audioStreams) > 0 {
		d.activeAudioIndex = d.audioStreams[0].Index
	}
	return all, nil
}

func videoDescriptor(vs *reisen.VideoStream) codec.StreamDescriptor {
	num, den := vs.FrameRate()
	return codec.StreamDescriptor{
		Index:      vs.Index(),
		Type:       codec.MediaVideo,
		TimeBase:   codec.TimeBase{Num: 1, Den: 1000}, // reisen reports offsets as time.Duration already
		Width:      vs.Width(),
		Height:     vs.Height(),
		FrameRateN: num,
		FrameRateD: den,
	}
}

// reisenOutputChannels is the channel count reisen's audio decode always
// produces: callers only ever read SampleRate() off a stream and feed an
// ebiten stereo audio.Context, never inspecting a per-stream channel count,
// so this adapter assumes the same stereo output reisen's underlying
// resampler is configured for.
const reisenOutputChannels = 2

func audioDescriptor(as *reisen.AudioStream) codec.StreamDescriptor {
	return codec.StreamDescriptor{
		Index:      as.Index(),
		Type:       codec.MediaAudio,
		TimeBase:   codec.TimeBase{Num: 1, Den: 1000},
		SampleRate: as.SampleRate(),
		Channels:   reisenOutputChannels,
		SampleFmt:  codec.SamplePacked,
	}
}

func (d *Demuxer) VideoStreams() []codec.StreamDescriptor { return d.videoStreams }
func (d *Demuxer) AudioStreams() []codec.StreamDescriptor { return d.audioStreams }

// ReadPacket returns the next packet belonging to the active video/audio
// stream. Packets for inactive streams (extra audio/video tracks, other
// stream types) are skipped internally, matching spec.md §4.4.
func (d *Demuxer) ReadPacket() (*codec.Packet, error) {
	for {
		pkt, found, err := d.media.ReadPacket()
		if err != nil {
			return nil, fmt.Errorf("%w: %v", codec.ErrIOError, err)
		}
		if !found {
			return nil, nil // end of stream
		}

		switch pkt.Type() {
		case reisen.StreamVideo:
			if pkt.StreamIndex() != d.activeVideoIndex {
				continue
			}
			return &codec.Packet{StreamIndex: pkt.StreamIndex(), KeyFrame: true}, nil
		case reisen.StreamAudio:
			if pkt.StreamIndex() != d.activeAudioIndex {
				continue
			}
			return &codec.Packet{StreamIndex: pkt.StreamIndex(), KeyFrame: true}, nil
		default:
			continue
		}
	}
}

// Seek delegates to reisen's per-stream Rewind. reisen doesn't expose a
// single "nearest key-frame, backward" flag at the Media level the way
// spec.md §4.4 describes (it offers per-stream frame-accurate rewind
// instead); this adapter rewinds every open stream to the same target and
// relies on the decoders' FlushBuffers to discard anything decoded past
// that point, same net effect for this module's seek protocol (§4.10a).
func (d *Demuxer) Seek(targetUs int64, backward bool) error {
	target := time.Duration(targetUs) * time.Microsecond
	for _, vs := range d.media.VideoStreams() {
		if vs.Index() != d.activeVideoIndex {
			continue
		}
		if err := vs.Rewind(target); err != nil {
			return fmt.Errorf("%w: video seek: %v", codec.ErrIOError, err)
		}
	}
	for _, as := range d.media.AudioStreams() {
		if as.Index() != d.activeAudioIndex {
			continue
		}
		if err := as.Rewind(target); err != nil {
			return fmt.Errorf("%w: audio seek: %v", codec.ErrIOError, err)
		}
	}
	return nil
}

// OpenDecode/CloseDecode expose reisen's explicit decode-session lifecycle
// (distinct from Open/Close, which manage the demux-only probe handle). The
// facade opens the decode session once in Open; a stop;play restart rewinds
// with Seek instead of reopening it or the underlying URL (see DESIGN.md's
// "Re-open-on-play" decision).
func (d *Demuxer) OpenDecode() error {
	if err := d.media.OpenDecode(); err != nil {
		return fmt.Errorf("%w: %v", codec.ErrIOError, err)
	}
	return nil
}

func (d *Demuxer) CloseDecode() error { return d.media.CloseDecode() }

func (d *Demuxer) DurationMs() int64 {
	var max time.Duration
	for _, vs := range d.media.VideoStreams() {
		if dur, err := vs.Duration(); err == nil && dur > max {
			max = dur
		}
	}
	for _, as := range d.media.AudioStreams() {
		if dur, err := as.Duration(); err == nil && dur > max {
			max = dur
		}
	}
	return max.Milliseconds()
}

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
	if d.media == nil {
		return nil
	}
	d.media.Close()
	return nil
}

// Media exposes the underlying *reisen.Media so the video/audio decoder
// adapters in this package can be constructed against the same handle and
// stay in the step-per-packet-ticket relationship described above.
func (d *Demuxer) Media() *reisen.Media { return d.media }

// ActiveVideoStream/ActiveAudioStream return the currently selected reisen
// stream objects, used by NewVideoDecoder/NewAudioDecoder.
func (d *Demuxer) ActiveVideoStream() (*reisen.VideoStream, bool) {
	for _, vs := range d.media.VideoStreams() {
		if vs.Index() == d.activeVideoIndex {
			return vs, true
		}
	}
	return nil, false
}

func (d *Demuxer) ActiveAudioStream() (*reisen.AudioStream, bool) {
	for _, as := range d.media.AudioStreams() {
		if as.Index() == d.activeAudioIndex {
			return as, true
		}
	}
	return nil, false
}
