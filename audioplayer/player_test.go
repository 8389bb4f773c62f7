package audioplayer

import (
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zenplay-go/zenplay/avsync"
	"github.com/zenplay-go/zenplay/resample"
)

func newTestPlayer() *Player {
	return New(nil, avsync.New(avsync.AudioMaster), 8)
}

func TestReadServesLeftoverBeforePullingNewFrames(t *testing.T) {
	p := newTestPlayer()
	p.leftover = []byte{1, 2, 3, 4, 5, 6, 7, 8}

	buf := make([]byte, 4)
	n, err := p.Read(buf)
	require.NoError(t, err)
	assert.Equal(t, 4, n)
	assert.Equal(t, []byte{1, 2, 3, 4}, buf)
	assert.Equal(t, []byte{5, 6, 7, 8}, p.leftover)
}

func TestReadPullsFromQueueWhenLeftoverExhausted(t *testing.T) {
	p := newTestPlayer()
	ok := p.PushFrame(&resample.ResampledAudioFrame{Data: []byte{9, 9, 9, 9}})
	require.True(t, ok)

	buf := make([]byte, 4)
	n, err := p.Read(buf)
	require.NoError(t, err)
	assert.Equal(t, 4, n)
	assert.Equal(t, []byte{9, 9, 9, 9}, buf)
}

func TestReadReturnsEOFWhenQueueStopped(t *testing.T) {
	p := newTestPlayer()
	p.queue.Stop()

	buf := make([]byte, 4)
	n, err := p.Read(buf)
	assert.Equal(t, 0, n)
	assert.ErrorIs(t, err, io.EOF)
}

func TestReadClampsBufferToMultipleOfFour(t *testing.T) {
	p := newTestPlayer()
	p.leftover = []byte{1, 2, 3, 4, 5, 6, 7, 8}

	buf := make([]byte, 7) // not a multiple of 4
	n, err := p.Read(buf)
	require.NoError(t, err)
	assert.Equal(t, 4, n)
}

func TestFlushClearsQueueAndLeftover(t *testing.T) {
	p := newTestPlayer()
	p.leftover = []byte{1, 2, 3, 4}
	require.True(t, p.PushFrame(&resample.ResampledAudioFrame{Data: []byte{1, 2, 3, 4}}))

	p.Flush()
	assert.Equal(t, 0, p.queue.Len())
	assert.Empty(t, p.leftover)
}

func TestSetVolumeAndMutedTrackEffectiveVolumeWithoutPlayer(t *testing.T) {
	p := newTestPlayer()
	p.SetVolume(0.5)
	p.SetMuted(true)
	assert.Equal(t, float64(0), p.effectiveVolumeLocked())
	p.SetMuted(false)
	assert.Equal(t, 0.5, p.effectiveVolumeLocked())
}

func TestOperationsFailBeforeInit(t *testing.T) {
	p := newTestPlayer()
	assert.ErrorIs(t, p.Start(), ErrNotInitialized)
	assert.ErrorIs(t, p.Pause(), ErrNotInitialized)
	assert.ErrorIs(t, p.Resume(), ErrNotInitialized)
}
