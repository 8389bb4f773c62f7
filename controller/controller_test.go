package controller

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zenplay-go/zenplay/avsync"
	"github.com/zenplay-go/zenplay/codec"
	"github.com/zenplay-go/zenplay/codec/fake"
	"github.com/zenplay-go/zenplay/resample"
	"github.com/zenplay-go/zenplay/state"
	"github.com/zenplay-go/zenplay/videoplayer"
)

type recordingRenderer struct {
	frames []int64 // not written: RenderFrame receives no PTS
}

func (r *recordingRenderer) Init(int, int) error { return nil }
func (r *recordingRenderer) ClearCaches()         {}
func (r *recordingRenderer) OnResize(int, int)    {}
func (r *recordingRenderer) Cleanup() error       { return nil }
func (r *recordingRenderer) Name() string         { return "recording" }
func (r *recordingRenderer) RenderFrame(_ []byte, _, _ int) error {
	return nil
}

func videoPacket(ptsMs int64) *codec.Packet {
	return &codec.Packet{StreamIndex: 0, PTS: ptsMs, KeyFrame: true}
}

func newVideoOnlyController(t *testing.T, packets []*codec.Packet, durationMs int64) (*PlaybackController, *fake.Demuxer, *fake.VideoDecoder) {
	t.Helper()
	videoStreams := []codec.StreamDescriptor{{Index: 0, Type: codec.MediaVideo, Width: 4, Height: 4, TimeBase: codec.TimeBase{Num: 1, Den: 1000}}}
	demuxer := fake.NewDemuxer(packets, videoStreams, nil, durationMs)
	videoDec := fake.NewVideoDecoder(4, 4)

	syncCtrl := avsync.New(avsync.ExternalMaster)
	stateMgr := state.New()
	videoPlayer := videoplayer.New(syncCtrl, &recordingRenderer{}, 8)

	c := New(Params{
		Demuxer:          demuxer,
		VideoDecoder:     videoDec,
		VideoStreamIndex: 0,
		AudioStreamIndex: -1,
		VideoPlayer:      videoPlayer,
		Resampler:        resample.New(resample.TargetFormat{SampleRate: 48000, Channels: 2, Format: codec.SamplePacked}),
		Sync:             syncCtrl,
		State:            stateMgr,
	})
	return c, demuxer, videoDec
}

func TestDemuxToVideoPipelineDeliversAllFrames(t *testing.T) {
	packets := []*codec.Packet{videoPacket(0), videoPacket(33), videoPacket(66)}
	c, _, _ := newVideoOnlyController(t, packets, 100)

	require.NoError(t, c.state.Transition(state.Opening))
	require.NoError(t, c.state.Transition(state.Stopped))
	require.NoError(t, c.state.Transition(state.Playing))

	c.Start(context.Background())

	require.Eventually(t, func() bool {
		return c.videoPlayer.LastFrame() != nil
	}, 2*time.Second, 5*time.Millisecond)

	require.NoError(t, c.Stop())
}

func TestSeekProtocolFlushesAndRestoresPlayingState(t *testing.T) {
	packets := []*codec.Packet{videoPacket(0), videoPacket(1000), videoPacket(2000), videoPacket(3000), videoPacket(9000)}
	c, demuxer, videoDec := newVideoOnlyController(t, packets, 9000)

	require.NoError(t, c.state.Transition(state.Opening))
	require.NoError(t, c.state.Transition(state.Stopped))
	require.NoError(t, c.state.Transition(state.Playing))
	c.Start(context.Background())

	require.Eventually(t, func() bool { return c.videoPlayer.LastFrame() != nil }, 2*time.Second, 5*time.Millisecond)

	c.SeekAsync(9000, true)

	require.Eventually(t, func() bool {
		return c.state.Current() == state.Playing && demuxer.Closed() == false
	}, 2*time.Second, 5*time.Millisecond)

	assert.GreaterOrEqual(t, videoDec.FlushCalls(), 1)
	require.NoError(t, c.Stop())
}

func TestSeekCoalescesRapidRequestsToLatestOnly(t *testing.T) {
	packets := []*codec.Packet{videoPacket(0), videoPacket(1000), videoPacket(5000), videoPacket(9000)}
	c, _, _ := newVideoOnlyController(t, packets, 9000)

	require.NoError(t, c.state.Transition(state.Opening))
	require.NoError(t, c.state.Transition(state.Stopped))
	require.NoError(t, c.state.Transition(state.Playing))
	c.Start(context.Background())

	c.SeekAsync(1000, true)
	c.SeekAsync(5000, true)
	c.SeekAsync(9000, true)

	require.Eventually(t, func() bool {
		return c.state.Current() == state.Playing
	}, 2*time.Second, 5*time.Millisecond)

	require.NoError(t, c.Stop())
}

func TestPauseThenResumeReturnsToPlaying(t *testing.T) {
	c, _, _ := newVideoOnlyController(t, []*codec.Packet{videoPacket(0)}, 1000)
	require.NoError(t, c.state.Transition(state.Opening))
	require.NoError(t, c.state.Transition(state.Stopped))
	require.NoError(t, c.state.Transition(state.Playing))
	c.Start(context.Background())

	require.NoError(t, c.Pause())
	assert.Equal(t, state.Paused, c.state.Current())

	require.NoError(t, c.Resume())
	assert.Equal(t, state.Playing, c.state.Current())

	require.NoError(t, c.Stop())
}
