package zenplay

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zenplay-go/zenplay/codec"
)

// These tests exercise the facade's pre-Open contract: everything reachable
// without a real codec.Demuxer, since Player.Open always drives a real
// codec/reisen.Demuxer and this module does not construct reisen streams in
// tests (see codec/fake and controller_test.go for pipeline-level coverage).

func TestNewPlayerStartsIdleWithDefaultOptions(t *testing.T) {
	p := New(DefaultOptions())
	assert.Equal(t, Idle, p.State())
	assert.Equal(t, int64(0), p.DurationMs())
	assert.Equal(t, int64(0), p.CurrentPlayTimeMs())
}

func TestUnopenedPlayerRejectsTransportCalls(t *testing.T) {
	p := New(DefaultOptions())

	assert.ErrorIs(t, p.Play(), ErrNotOpen)
	assert.ErrorIs(t, p.Pause(), ErrNotOpen)
	assert.ErrorIs(t, p.Stop(), ErrNotOpen)

	// SeekAsync is fire-and-forget per spec.md §4.11 and must not panic
	// when called before Open.
	p.SeekAsync(1000, false)
}

func TestCloseOnUnopenedPlayerIsANoOp(t *testing.T) {
	p := New(DefaultOptions())
	require.NoError(t, p.Close())
	assert.Equal(t, Idle, p.State())
}

func TestDefaultOptionsFillsZeroQueueCapacities(t *testing.T) {
	opts := DefaultOptions()
	assert.True(t, opts.HardwareDecodeEnabled)
	assert.Positive(t, opts.PacketQueueCapacity)
	assert.Positive(t, opts.VideoFrameQueueCapacity)
	assert.Positive(t, opts.AudioFrameQueueCapacity)

	// New must patch in the same defaults when an embedder builds its own
	// zero-valued Options rather than starting from DefaultOptions().
	p := New(Options{})
	assert.Equal(t, opts.PacketQueueCapacity, p.opts.PacketQueueCapacity)
	assert.Equal(t, opts.VideoFrameQueueCapacity, p.opts.VideoFrameQueueCapacity)
	assert.Equal(t, opts.AudioFrameQueueCapacity, p.opts.AudioFrameQueueCapacity)
}

func TestRegisterAndUnregisterStateChangeCallback(t *testing.T) {
	p := New(DefaultOptions())

	var seen []State
	id := p.RegisterStateChangeCallback(func(_, next State) {
		seen = append(seen, next)
	})

	// Drive a transition directly through the underlying state.Manager to
	// confirm the facade's Register delegates rather than swallowing
	// callbacks (Open/Close aren't reachable here without real media).
	require.NoError(t, p.state.Transition(Opening))
	require.Len(t, seen, 1)
	assert.Equal(t, Opening, seen[0])

	p.UnregisterStateChangeCallback(id)
	require.NoError(t, p.state.Transition(Stopped))
	assert.Len(t, seen, 1)
}

func TestCoreErrorUnwrapsUnderlyingCause(t *testing.T) {
	cause := ErrNoVideo
	err := newCoreError("demuxer", ErrorFileNotFound, cause)

	assert.ErrorIs(t, err, cause)
	assert.Equal(t, ErrorFileNotFound, err.Code)
	assert.Contains(t, err.Error(), "FileNotFound")
}

func TestClassifyDemuxOpenErrorMapsKnownCauses(t *testing.T) {
	wrapped := fmt.Errorf("opening stream: %w", codec.ErrFileNotFound)
	assert.Equal(t, ErrorFileNotFound, classifyDemuxOpenError(wrapped))
	assert.Equal(t, ErrorIOError, classifyDemuxOpenError(errors.New("some other failure")))
}
