package embed

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHashProvider_Deterministic(t *testing.T) {
	p := NewHashProvider(384)

	a, err := p.Embed(context.Background(), "machine learning")
	require.NoError(t, err)
	b, err := p.Embed(context.Background(), "machine learning")
	require.NoError(t, err)

	assert.Equal(t, a, b)
}

func TestHashProvider_DimensionAndRange(t *testing.T) {
	p := NewHashProvider(384)

	vec, err := p.Embed(context.Background(), "some text")
	require.NoError(t, err)
	require.Len(t, vec, 384)

	// SHA-256 yields 16 two-byte values; the rest is zero padding.
	for i, v := range vec[:16] {
		assert.GreaterOrEqual(t, float64(v), -1.0, "index %d", i)
		assert.LessOrEqual(t, float64(v), 1.0, "index %d", i)
	}
	for _, v := range vec[16:] {
		assert.Zero(t, v)
	}
}

func TestHashProvider_TruncatesToSmallDimension(t *testing.T) {
	p := NewHashProvider(8)

	vec, err := p.Embed(context.Background(), "x")
	require.NoError(t, err)
	assert.Len(t, vec, 8)
}

func TestHashProvider_DistinctTexts(t *testing.T) {
	p := NewHashProvider(384)

	a, _ := p.Embed(context.Background(), "alpha")
	b, _ := p.Embed(context.Background(), "beta")
	assert.NotEqual(t, a, b)
}

// fakeRemote fails or succeeds on demand.
type fakeRemote struct {
	vec  []float32
	err  error
	dim  int
	hits int
}

func (f *fakeRemote) Embed(_ context.Context, _ string) ([]float32, error) {
	f.hits++
	if f.err != nil {
		return nil, f.err
	}
	return f.vec, nil
}

func (f *fakeRemote) Dimension() int { return f.dim }

func TestDegradingProvider_RemoteSuccess(t *testing.T) {
	remote := &fakeRemote{vec: []float32{1, 2, 3}, dim: 3}
	p := NewDegradingProvider(remote, NewHashProvider(3))

	vec, degraded, err := p.Embed(context.Background(), "text")
	require.NoError(t, err)
	assert.False(t, degraded)
	assert.Equal(t, []float32{1, 2, 3}, vec)
	assert.Equal(t, 1, remote.hits)
}

func TestDegradingProvider_RemoteFailureFallsBack(t *testing.T) {
	remote := &fakeRemote{err: errors.New("503 from upstream"), dim: 384}
	fallback := NewHashProvider(384)
	p := NewDegradingProvider(remote, fallback)

	vec, degraded, err := p.Embed(context.Background(), "text")
	require.NoError(t, err)
	assert.True(t, degraded)

	want, _ := fallback.Embed(context.Background(), "text")
	assert.Equal(t, want, vec)
}

func TestDegradingProvider_NoRemoteConfigured(t *testing.T) {
	p := NewDegradingProvider(nil, NewHashProvider(16))

	vec, degraded, err := p.Embed(context.Background(), "text")
	require.NoError(t, err)
	// The fallback is the configured strategy here, not a degradation.
	assert.False(t, degraded)
	assert.Len(t, vec, 16)
	assert.Equal(t, 16, p.Dimension())
}
