package videoplayer

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zenplay-go/zenplay/avsync"
	"github.com/zenplay-go/zenplay/codec"
)

type recordingRenderer struct {
	mu     sync.Mutex
	frames int
	clears int
}

func (r *recordingRenderer) Init(int, int) error { return nil }
func (r *recordingRenderer) ClearCaches() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.clears++
}
func (r *recordingRenderer) OnResize(int, int)           {}
func (r *recordingRenderer) Cleanup() error              { return nil }
func (r *recordingRenderer) Name() string                { return "recording" }
func (r *recordingRenderer) RenderFrame(_ []byte, _, _ int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.frames++
	return nil
}

func (r *recordingRenderer) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.frames
}

func videoFrame(ptsMs int64) *codec.VideoFrame {
	return &codec.VideoFrame{
		Format:   codec.PixelFormatSoftware,
		Width:    4,
		Height:   4,
		PTSRaw:   ptsMs,
		TimeBase: codec.TimeBase{Num: 1, Den: 1000},
		Pixels:   make([]byte, 64),
	}
}

func TestPushFrameBlockingSucceedsWithinCapacity(t *testing.T) {
	p := New(avsync.New(avsync.ExternalMaster), &recordingRenderer{}, 4)
	err := p.PushFrameBlocking(videoFrame(0), time.Second)
	assert.NoError(t, err)
	assert.Equal(t, 1, p.queue.Len())
}

func TestPushFrameBlockingTimesOutWhenQueueFull(t *testing.T) {
	p := New(avsync.New(avsync.ExternalMaster), &recordingRenderer{}, 1)
	require.NoError(t, p.PushFrameBlocking(videoFrame(0), time.Second))

	err := p.PushFrameBlocking(videoFrame(10), 20*time.Millisecond)
	assert.ErrorIs(t, err, ErrPushTimeout)

	// The timed-out frame was never inserted: the queue still holds only
	// the first, successfully pushed frame.
	assert.Equal(t, 1, p.queue.Len())
}

func TestRenderLoopRendersQueuedFrames(t *testing.T) {
	renderer := &recordingRenderer{}
	p := New(avsync.New(avsync.ExternalMaster), renderer, 4)
	p.Start()

	require.NoError(t, p.PushFrameBlocking(videoFrame(0), time.Second))
	require.NoError(t, p.PushFrameBlocking(videoFrame(10), time.Second))

	require.Eventually(t, func() bool { return renderer.count() >= 2 }, time.Second, 5*time.Millisecond)
	p.Stop()
}

func TestRenderLoopSkipsHardwareFramesWithoutPixels(t *testing.T) {
	renderer := &recordingRenderer{}
	p := New(avsync.New(avsync.ExternalMaster), renderer, 4)
	p.Start()

	hw := videoFrame(0)
	hw.Format = codec.PixelFormatHardware
	hw.Pixels = nil
	require.NoError(t, p.PushFrameBlocking(hw, time.Second))
	require.NoError(t, p.PushFrameBlocking(videoFrame(5), time.Second))

	require.Eventually(t, func() bool { return renderer.count() >= 1 }, time.Second, 5*time.Millisecond)
	p.Stop()
	assert.Equal(t, 1, renderer.count())
}

func TestFlushClearsQueuedFrames(t *testing.T) {
	p := New(avsync.New(avsync.ExternalMaster), &recordingRenderer{}, 4)
	require.NoError(t, p.PushFrameBlocking(videoFrame(0), time.Second))
	require.NoError(t, p.PushFrameBlocking(videoFrame(10), time.Second))

	p.Flush()
	assert.Equal(t, 0, p.queue.Len())
}

func TestStopDrainsRenderLoopAndClearsRendererCaches(t *testing.T) {
	renderer := &recordingRenderer{}
	p := New(avsync.New(avsync.ExternalMaster), renderer, 4)
	p.Start()
	p.Stop()

	renderer.mu.Lock()
	defer renderer.mu.Unlock()
	assert.Equal(t, 1, renderer.clears)
}
