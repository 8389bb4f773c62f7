package resample

import (
	"encoding/binary"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zenplay-go/zenplay/codec"
)

func floatsToBytes(vals []float32) []byte {
	buf := make([]byte, len(vals)*4)
	for i, v := range vals {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(v))
	}
	return buf
}

func bytesToFloats(b []byte) []float32 {
	out := make([]float32, len(b)/4)
	for i := range out {
		out[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[i*4:]))
	}
	return out
}

func frame(rate, channels int, data []byte) *codec.AudioFrame {
	return &codec.AudioFrame{
		SampleRate: rate,
		Channels:   channels,
		Format:     codec.SamplePacked,
		Data:       [][]byte{data},
		PTSRaw:     1000,
		TimeBase:   codec.TimeBase{Num: 1, Den: 1000},
	}
}

func TestConvertPassthroughWhenFormatsMatch(t *testing.T) {
	r := New(TargetFormat{SampleRate: 48000, Channels: 2, Format: codec.SamplePacked})
	src := []byte{1, 2, 3, 4, 5, 6, 7, 8}
	out, err := r.Convert(frame(48000, 2, src))
	require.NoError(t, err)
	assert.Equal(t, src, out.Data)
	assert.Equal(t, 48000, out.SampleRate)
	assert.Equal(t, 2, out.Channels)
}

func TestConvertMonoToStereoDuplicatesSamples(t *testing.T) {
	r := New(TargetFormat{SampleRate: 48000, Channels: 2, Format: codec.SamplePacked})
	src := make([]byte, 4) // one float32 sample
	for i := range src {
		src[i] = byte(i + 1)
	}
	out, err := r.Convert(frame(48000, 1, src))
	require.NoError(t, err)
	require.Len(t, out.Data, 8)
	assert.Equal(t, src, out.Data[:4])
	assert.Equal(t, src, out.Data[4:])
}

func TestConvertStereoToMonoAveragesChannels(t *testing.T) {
	r := New(TargetFormat{SampleRate: 48000, Channels: 1, Format: codec.SamplePacked})
	src := floatsToBytes([]float32{1.0, 0.5})
	out, err := r.Convert(frame(48000, 2, src))
	require.NoError(t, err)
	assert.Equal(t, []float32{0.75}, bytesToFloats(out.Data))
}

func TestConvertResamplesRateViaLinearInterpolation(t *testing.T) {
	r := New(TargetFormat{SampleRate: 16000, Channels: 1, Format: codec.SamplePacked})
	src := floatsToBytes([]float32{0, 1, 2, 3})
	out, err := r.Convert(frame(8000, 1, src))
	require.NoError(t, err)
	assert.Equal(t, []float32{0, 0.5, 1, 1.5, 2, 2.5, 3, 3}, bytesToFloats(out.Data))
	assert.Equal(t, 16000, out.SampleRate)
}

func TestConvertRateConversionCarriesFractionalPhaseAcrossCalls(t *testing.T) {
	r := New(TargetFormat{SampleRate: 11025, Channels: 1, Format: codec.SamplePacked})
	_, err := r.Convert(frame(8000, 1, floatsToBytes([]float32{0, 10, 20})))
	require.NoError(t, err)

	out, err := r.Convert(frame(8000, 1, floatsToBytes([]float32{30, 40, 50})))
	require.NoError(t, err)
	// The first call leaves a nonzero fractional source position (3 input
	// frames don't divide evenly by the 8000/11025 source/target ratio), so
	// the second call's first output sample must not restart at phase zero.
	got := bytesToFloats(out.Data)
	assert.NotEqual(t, float32(30), got[0])
}

func TestConvertRejectsPlanarSource(t *testing.T) {
	r := New(TargetFormat{SampleRate: 48000, Channels: 2, Format: codec.SamplePacked})
	f := frame(48000, 2, make([]byte, 8))
	f.Format = codec.SamplePlanar
	_, err := r.Convert(f)
	assert.ErrorIs(t, err, ErrUnsupportedConversion)
}

func TestConvertReconfiguresWhenSourceFormatChangesMidStream(t *testing.T) {
	r := New(TargetFormat{SampleRate: 48000, Channels: 2, Format: codec.SamplePacked})
	_, err := r.Convert(frame(48000, 2, make([]byte, 8)))
	require.NoError(t, err)

	out, err := r.Convert(frame(48000, 1, make([]byte, 4)))
	require.NoError(t, err)
	assert.Len(t, out.Data, 8)
}

func TestResetForcesReconfiguration(t *testing.T) {
	r := New(TargetFormat{SampleRate: 48000, Channels: 2, Format: codec.SamplePacked})
	_, err := r.Convert(frame(48000, 2, make([]byte, 8)))
	require.NoError(t, err)
	r.Reset()
	assert.False(t, r.configured)
}

func TestConvertBufferNeverShrinksAcrossCalls(t *testing.T) {
	r := New(TargetFormat{SampleRate: 48000, Channels: 2, Format: codec.SamplePacked})
	_, err := r.Convert(frame(48000, 2, make([]byte, 64)))
	require.NoError(t, err)
	bigCap := cap(r.outBuf)

	_, err = r.Convert(frame(48000, 2, make([]byte, 8)))
	require.NoError(t, err)
	assert.GreaterOrEqual(t, cap(r.outBuf), bigCap)
}
