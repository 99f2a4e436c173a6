package buffer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// -----------------------------------------------------------------------------

func TestBlockPoolAcquireRelease(t *testing.T) {
	t.Run("released block is reused for the same size", func(t *testing.T) {
		p := NewBlockPool(8, 16)

		b := p.Acquire(1000)
		require.Equal(t, 1000, len(b.Data))
		p.Release(b)

		b2 := p.Acquire(1000)
		assert.Same(t, b, b2)

		stats := p.Stats()
		assert.Equal(t, uint64(1), stats.Allocations)
		assert.Equal(t, uint64(1), stats.Hits)
	})

	t.Run("size mismatch allocates fresh", func(t *testing.T) {
		p := NewBlockPool(8, 16)

		b := p.Acquire(1000)
		p.Release(b)

		b2 := p.Acquire(2000)
		assert.NotSame(t, b, b2)
		assert.Equal(t, 2000, b2.Size())

		stats := p.Stats()
		assert.Equal(t, uint64(2), stats.Allocations)
		assert.Equal(t, uint64(0), stats.Hits)
	})

	t.Run("steady state cycle allocates only once", func(t *testing.T) {
		p := NewBlockPool(8, 16)

		for i := 0; i < 100; i++ {
			b := p.Acquire(500)
			p.Release(b)
		}

		stats := p.Stats()
		assert.Equal(t, uint64(1), stats.Allocations)
		assert.Equal(t, uint64(99), stats.Hits)
	})
}

// -----------------------------------------------------------------------------

func TestBlockPoolCeilings(t *testing.T) {
	t.Run("idle count ceiling evicts the oldest", func(t *testing.T) {
		p := NewBlockPool(2, 16)

		a := p.Acquire(10)
		b := p.Acquire(20)
		c := p.Acquire(30)
		p.Release(a)
		p.Release(b)
		p.Release(c) // over the 2-block ceiling, a gets trimmed

		stats := p.Stats()
		assert.Equal(t, 2, stats.IdleBlocks)
		assert.Equal(t, uint64(1), stats.Trims)

		// The oldest (a, size 10) is gone; a new size-10 acquire allocates
		fresh := p.Acquire(10)
		assert.NotSame(t, a, fresh)
	})

	t.Run("byte ceiling bounds idle memory", func(t *testing.T) {
		// 1MB budget, blocks of 100k floats are 800KB each
		p := NewBlockPool(64, 1)

		a := p.Acquire(100000)
		b := p.Acquire(100000)
		p.Release(a)
		p.Release(b)

		stats := p.Stats()
		assert.Equal(t, 1, stats.IdleBlocks)
		assert.LessOrEqual(t, stats.IdleMB, 1.0)
	})

	t.Run("exhaustion degrades to one-off allocation", func(t *testing.T) {
		p := NewBlockPool(1, 16)

		a := p.Acquire(10)
		p.Release(a)

		// Pool is at its block ceiling holding a size-10 block; a size-20
		// request misses and must still succeed.
		b := p.Acquire(20)
		require.NotNil(t, b)
		assert.Equal(t, 20, len(b.Data))
		assert.Equal(t, uint64(1), p.Stats().Exhaustions)
	})
}

// -----------------------------------------------------------------------------

func TestBlockPoolClear(t *testing.T) {
	p := NewBlockPool(8, 16)
	p.Release(p.Acquire(100))
	p.Release(p.Acquire(200))

	p.Clear()
	stats := p.Stats()
	assert.Equal(t, 0, stats.IdleBlocks)
	assert.Equal(t, 0.0, stats.IdleMB)
}
