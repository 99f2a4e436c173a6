package buffer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"daq-observer/src/models"
)

// -----------------------------------------------------------------------------
// Helpers
// -----------------------------------------------------------------------------

// makeBlock builds a block with sequential values: channel c at sample i
// holds base+i on channel 0, (base+i)*10 on channel 1, etc.
func makeBlock(base, n, channels int) *models.MSampleBlock {
	b := &models.MSampleBlock{
		Timestamps: make([]float64, n),
		Values:     make([][]float64, n),
		Channels:   channels,
	}
	for i := 0; i < n; i++ {
		b.Timestamps[i] = float64(base + i)
		row := make([]float64, channels)
		for c := 0; c < channels; c++ {
			row[c] = float64(base+i) * pow10(c)
		}
		b.Values[i] = row
	}
	return b
}

func pow10(c int) float64 {
	v := 1.0
	for i := 0; i < c; i++ {
		v *= 10
	}
	return v
}

// -----------------------------------------------------------------------------

func TestRingBufferPush(t *testing.T) {
	t.Run("fits within capacity without drops", func(t *testing.T) {
		rb := NewChannelRingBuffer(100, 2)

		dropped := rb.Push(makeBlock(0, 60, 2))
		assert.Equal(t, 0, dropped)
		dropped = rb.Push(makeBlock(60, 40, 2))
		assert.Equal(t, 0, dropped)

		assert.Equal(t, 100, rb.Size())
		assert.Equal(t, uint64(100), rb.TotalWritten())
		assert.Equal(t, uint64(0), rb.Dropped())

		w := rb.ReadWindow(100)
		require.Equal(t, 100, w.Len())
		// Exact write order preserved
		for i := 0; i < 100; i++ {
			assert.Equal(t, float64(i), w.Timestamps[i])
			assert.Equal(t, float64(i), w.Values[0][i])
			assert.Equal(t, float64(i)*10, w.Values[1][i])
		}
	})

	t.Run("overflow drops exactly the overflow count", func(t *testing.T) {
		rb := NewChannelRingBuffer(100, 1)

		rb.Push(makeBlock(0, 100, 1))
		dropped := rb.Push(makeBlock(100, 7, 1))

		assert.Equal(t, 7, dropped)
		assert.Equal(t, uint64(7), rb.Dropped())

		// Newest 100 samples survive: 7..106
		w := rb.ReadWindow(100)
		require.Equal(t, 100, w.Len())
		assert.Equal(t, float64(7), w.Timestamps[0])
		assert.Equal(t, float64(106), w.Timestamps[99])
	})

	t.Run("block larger than capacity keeps only the newest samples", func(t *testing.T) {
		rb := NewChannelRingBuffer(50, 1)

		dropped := rb.Push(makeBlock(0, 130, 1))
		assert.Equal(t, 80, dropped)

		w := rb.ReadWindow(50)
		require.Equal(t, 50, w.Len())
		assert.Equal(t, float64(80), w.Timestamps[0])
		assert.Equal(t, float64(129), w.Timestamps[49])
	})

	t.Run("empty block is a no-op", func(t *testing.T) {
		rb := NewChannelRingBuffer(10, 1)
		dropped := rb.Push(&models.MSampleBlock{Channels: 1})
		assert.Equal(t, 0, dropped)
		assert.Equal(t, 0, rb.Size())
	})
}

// -----------------------------------------------------------------------------

func TestRingBufferReadWindow(t *testing.T) {
	t.Run("partial fill returns what is available", func(t *testing.T) {
		rb := NewChannelRingBuffer(100, 1)
		rb.Push(makeBlock(0, 30, 1))

		w := rb.ReadWindow(50)
		assert.Equal(t, 30, w.Len())
		assert.Equal(t, float64(29), w.Timestamps[29])
	})

	t.Run("read does not remove data", func(t *testing.T) {
		rb := NewChannelRingBuffer(100, 1)
		rb.Push(makeBlock(0, 40, 1))

		first := rb.ReadWindow(40)
		second := rb.ReadWindow(40)
		assert.Equal(t, first.Timestamps, second.Timestamps)
		assert.Equal(t, 40, rb.Size())
	})

	t.Run("window spans the wrap point", func(t *testing.T) {
		rb := NewChannelRingBuffer(10, 1)
		rb.Push(makeBlock(0, 8, 1))
		rb.Push(makeBlock(8, 5, 1)) // wraps

		w := rb.ReadWindow(10)
		require.Equal(t, 10, w.Len())
		assert.Equal(t, float64(3), w.Timestamps[0])
		assert.Equal(t, float64(12), w.Timestamps[9])
	})
}

// -----------------------------------------------------------------------------

func TestRingBufferOccupancy(t *testing.T) {
	rb := NewChannelRingBuffer(100, 1)

	assert.Equal(t, 0.0, rb.Occupancy())

	rb.Push(makeBlock(0, 50, 1))
	assert.InDelta(t, 0.5, rb.Occupancy(), 1e-9)

	// Consuming moves occupancy down
	w := rb.ReadWindow(50)
	rb.MarkConsumed(w.TotalAt)
	assert.Equal(t, 0.0, rb.Occupancy())

	// More data than capacity: occupancy caps at 1
	rb.Push(makeBlock(50, 250, 1))
	assert.Equal(t, 1.0, rb.Occupancy())

	// Reads alone never change occupancy
	rb.ReadWindow(100)
	assert.Equal(t, 1.0, rb.Occupancy())
}

// -----------------------------------------------------------------------------

func TestRingBufferMarkConsumed(t *testing.T) {
	rb := NewChannelRingBuffer(100, 1)
	rb.Push(makeBlock(0, 80, 1))

	w := rb.ReadWindow(80)
	rb.MarkConsumed(w.TotalAt)

	// Never moves backwards
	rb.MarkConsumed(10)
	assert.Equal(t, 0.0, rb.Occupancy())

	// Never beyond totalWritten
	rb.MarkConsumed(1 << 40)
	rb.Push(makeBlock(80, 10, 1))
	assert.InDelta(t, 0.1, rb.Occupancy(), 1e-9)
}

// -----------------------------------------------------------------------------

func TestCapacityForRate(t *testing.T) {
	assert.Equal(t, 250000, CapacityForRate(50000, 5))
	assert.Equal(t, 5000, CapacityForRate(1000, 5))
	assert.Equal(t, 1, CapacityForRate(0, 5))
}

// -----------------------------------------------------------------------------

func TestRingBufferClear(t *testing.T) {
	rb := NewChannelRingBuffer(10, 2)
	rb.Push(makeBlock(0, 25, 2))
	require.NotEqual(t, uint64(0), rb.Dropped())

	rb.Clear()
	assert.Equal(t, 0, rb.Size())
	assert.Equal(t, uint64(0), rb.TotalWritten())
	assert.Equal(t, uint64(0), rb.Dropped())
	assert.Equal(t, 0.0, rb.Occupancy())
}
