package hwaccel

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func d3d11Device() *Device {
	return &Device{Backend: BackendD3D11}
}

func TestConfigureDecoderRequiresDevice(t *testing.T) {
	c := &Context{log: noopLogger{}}
	err := c.ConfigureDecoder(1920, 1080, "nv12", "yuv420p", func() (*FramePool, error) {
		return &FramePool{InitialPoolSize: 16}, nil
	})
	assert.ErrorIs(t, err, ErrNoDevice)
}

func TestConfigureDecoderSizesPoolWithHeadroom(t *testing.T) {
	c, err := NewContext(d3d11Device(), nil)
	require.NoError(t, err)

	err = c.ConfigureDecoder(1920, 1080, "nv12", "yuv420p", func() (*FramePool, error) {
		return &FramePool{InitialPoolSize: 16}, nil
	})
	require.NoError(t, err)

	pool := c.Pool()
	require.NotNil(t, pool)
	assert.Equal(t, 16+6+2, pool.EffectivePoolSize)
}

func TestConfigureDecoderPatchesMissingShaderResourceOnD3D11(t *testing.T) {
	c, err := NewContext(d3d11Device(), nil)
	require.NoError(t, err)

	err = c.ConfigureDecoder(1280, 720, "nv12", "yuv420p", func() (*FramePool, error) {
		return &FramePool{InitialPoolSize: 10, BindFlags: BindDecoder}, nil
	})
	require.NoError(t, err)

	pool := c.Pool()
	assert.True(t, pool.BindFlags.Has(BindDecoder))
	assert.True(t, pool.BindFlags.Has(BindShaderResource))
}

func TestConfigureDecoderLeavesNonD3D11BindFlagsAlone(t *testing.T) {
	c, err := NewContext(&Device{Backend: BackendVAAPI}, nil)
	require.NoError(t, err)

	err = c.ConfigureDecoder(1280, 720, "nv12", "yuv420p", func() (*FramePool, error) {
		return &FramePool{InitialPoolSize: 10}, nil
	})
	require.NoError(t, err)

	assert.False(t, c.Pool().BindFlags.Has(BindShaderResource))
}

func TestConfigureDecoderPropagatesDerivationFailure(t *testing.T) {
	c, err := NewContext(d3d11Device(), nil)
	require.NoError(t, err)

	derivationErr := errors.New("profile unsupported")
	err = c.ConfigureDecoder(0, 0, "nv12", "yuv420p", func() (*FramePool, error) {
		return nil, derivationErr
	})
	assert.ErrorIs(t, err, derivationErr)
	assert.Nil(t, c.Pool())
}

func TestValidateZeroCopyTrueWhenBothFlagsPresent(t *testing.T) {
	c, err := NewContext(d3d11Device(), nil)
	require.NoError(t, err)
	require.NoError(t, c.ConfigureDecoder(1920, 1080, "nv12", "yuv420p", func() (*FramePool, error) {
		return &FramePool{InitialPoolSize: 16}, nil
	}))

	enabled, validated := c.ValidateZeroCopy()
	assert.True(t, validated)
	assert.True(t, enabled)
}

func TestValidateZeroCopyIsMemoizedAfterFirstCall(t *testing.T) {
	c, err := NewContext(&Device{Backend: BackendVAAPI}, nil)
	require.NoError(t, err)
	require.NoError(t, c.ConfigureDecoder(1920, 1080, "nv12", "yuv420p", func() (*FramePool, error) {
		return &FramePool{InitialPoolSize: 16}, nil
	}))

	first, _ := c.ValidateZeroCopy()
	// Mutate the pool after the fact; memoized result must not change.
	c.pool.BindFlags = BindDecoder | BindShaderResource
	second, validated := c.ValidateZeroCopy()
	assert.True(t, validated)
	assert.Equal(t, first, second)
}

func TestValidateZeroCopyBeforeConfigureReturnsNotValidated(t *testing.T) {
	c, err := NewContext(d3d11Device(), nil)
	require.NoError(t, err)
	_, validated := c.ValidateZeroCopy()
	assert.False(t, validated)
}

func TestOnGetFormatReentryBumpsGeneration(t *testing.T) {
	c, err := NewContext(d3d11Device(), nil)
	require.NoError(t, err)
	deriveFn := func() (*FramePool, error) { return &FramePool{InitialPoolSize: 16}, nil }
	require.NoError(t, c.ConfigureDecoder(1920, 1080, "nv12", "yuv420p", deriveFn))
	require.NoError(t, c.OnGetFormatReentry(1920, 1080, "nv12", "yuv420p", deriveFn))
	assert.Equal(t, 1, c.Pool().generation)
}

func TestLiveSurfaceCountRejectsOverPoolCapacity(t *testing.T) {
	pool := &FramePool{EffectivePoolSize: 2}
	var live LiveSurfaceCount
	require.NoError(t, live.Acquire(pool))
	require.NoError(t, live.Acquire(pool))
	assert.Error(t, live.Acquire(pool))
	assert.Equal(t, 2, live.Live())

	live.Release()
	assert.NoError(t, live.Acquire(pool))
}

func TestLiveSurfaceCountRequiresConfiguredPool(t *testing.T) {
	var live LiveSurfaceCount
	assert.Error(t, live.Acquire(nil))
}
