package quantum

import (
	"context"
	"math/cmplx"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPreload(t *testing.T) {
	t.Run("fills pool", func(t *testing.T) {
		c := NewCache(nil)
		require.NoError(t, c.Preload(context.Background(), "simulated", 64))

		assert.True(t, c.Loaded())
		assert.Equal(t, 64, c.Stats().Size)
	})

	t.Run("rejects non-positive count", func(t *testing.T) {
		c := NewCache(nil)
		assert.Error(t, c.Preload(context.Background(), "simulated", 0))
		assert.Error(t, c.Preload(context.Background(), "simulated", -5))
	})

	t.Run("honours cancellation", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		c := NewCache(nil)
		err := c.Preload(ctx, "simulated", 64)
		require.Error(t, err)
		assert.ErrorIs(t, err, context.Canceled)
		assert.False(t, c.Loaded())
	})

	t.Run("deterministic per source", func(t *testing.T) {
		a := NewCache(nil)
		b := NewCache(nil)
		require.NoError(t, a.Preload(context.Background(), "simulated", 16))
		require.NoError(t, b.Preload(context.Background(), "simulated", 16))

		for i := 0; i < 16; i++ {
			assert.Equal(t, a.Random(), b.Random(), "draw %d diverged", i)
		}
	})
}

func TestRandom(t *testing.T) {
	t.Run("in unit interval", func(t *testing.T) {
		c := NewCache(nil)
		require.NoError(t, c.Preload(context.Background(), "simulated", 128))

		for i := 0; i < 512; i++ {
			v := c.Random()
			require.GreaterOrEqual(t, v, 0.0)
			require.Less(t, v, 1.0)
		}
	})

	t.Run("empty pool falls back", func(t *testing.T) {
		c := NewCache(nil)

		assert.Equal(t, 0.5, c.Random())
		assert.Equal(t, 0.5, c.Random())

		st := c.Stats()
		assert.Equal(t, uint64(0), st.Hits)
		assert.Equal(t, uint64(2), st.Misses)
		assert.Equal(t, 0.0, st.HitRate())
	})

	t.Run("hit rate", func(t *testing.T) {
		c := NewCache(nil)
		c.Random() // miss
		require.NoError(t, c.Preload(context.Background(), "simulated", 8))
		c.Random() // hit
		c.Random() // hit
		c.Random() // hit

		assert.InDelta(t, 0.75, c.Stats().HitRate(), 1e-9)
	})
}

func TestAmplitude(t *testing.T) {
	c := NewCache(nil)
	require.NoError(t, c.Preload(context.Background(), "simulated", 64))

	for i := 0; i < 32; i++ {
		a := c.Amplitude()
		assert.GreaterOrEqual(t, real(a), -1.0)
		assert.Less(t, real(a), 1.0)
		assert.GreaterOrEqual(t, imag(a), -1.0)
		assert.Less(t, imag(a), 1.0)
		assert.LessOrEqual(t, cmplx.Abs(a), 2.0)
	}
}
