package buffer

import (
	"sync"

	"daq-observer/src/models"
)

// -----------------------------------------------------------------------------
// ChannelRingBuffer is a fixed-size circular store for multi-channel samples.
// True ring buffer - no resizing while acquisition is active!
//
// The producer is the only writer; the background processor and export reads
// are concurrent readers. The write cursor is advanced only after a block's
// contents are fully copied, so a reader never observes a half-written block.
// -----------------------------------------------------------------------------

type ChannelRingBuffer struct {
	// Per-channel sample storage plus a parallel timestamp array
	data  [][]float64 // data[c][i]
	times []float64

	channels int
	capacity int
	index    int // Next write position

	totalWritten uint64 // Monotonic count of samples ever pushed (per channel)
	consumed     uint64 // Advanced by the processor via MarkConsumed
	dropped      uint64 // Oldest samples overwritten before being read

	mu sync.RWMutex
}

// -----------------------------------------------------------------------------

// NewChannelRingBuffer creates a buffer with fixed capacity per channel
func NewChannelRingBuffer(capacity, channels int) *ChannelRingBuffer {
	if capacity <= 0 {
		capacity = 1000 // Default reasonable size
	}
	if channels <= 0 {
		channels = 1
	}

	data := make([][]float64, channels)
	for c := range data {
		data[c] = make([]float64, capacity)
	}

	return &ChannelRingBuffer{
		data:     data,
		times:    make([]float64, capacity),
		channels: channels,
		capacity: capacity,
	}
}

// -----------------------------------------------------------------------------

// CapacityForRate derives the buffer capacity from the configured sample rate
// and retention window.
func CapacityForRate(sampleRateHz, retentionSeconds float64) int {
	n := int(sampleRateHz * retentionSeconds)
	if n < 1 {
		n = 1
	}
	return n
}

// -----------------------------------------------------------------------------

// Push appends one sample block and returns the number of oldest samples
// overwritten to make room. Pushing an empty block is a no-op. Push never
// blocks on a full buffer.
func (rb *ChannelRingBuffer) Push(block *models.MSampleBlock) int {
	n := block.Len()
	if n == 0 {
		return 0
	}

	rb.mu.Lock()
	defer rb.mu.Unlock()

	// Blocks larger than the whole buffer: only the most recent capacity
	// samples survive, the rest are dropped up front.
	skip := 0
	if n > rb.capacity {
		skip = n - rb.capacity
	}

	for i := skip; i < n; i++ {
		rb.times[rb.index] = block.Timestamps[i]
		row := block.Values[i]
		for c := 0; c < rb.channels && c < len(row); c++ {
			rb.data[c][rb.index] = row[c]
		}
		rb.index = (rb.index + 1) % rb.capacity
	}

	prevDropped := rb.dropped
	rb.totalWritten += uint64(n)
	if rb.totalWritten > uint64(rb.capacity) {
		rb.dropped = rb.totalWritten - uint64(rb.capacity)
	}

	return int(rb.dropped - prevDropped)
}

// -----------------------------------------------------------------------------

// Window is a consistent read-only copy of the most recent samples.
type Window struct {
	Timestamps []float64
	Values     [][]float64 // Values[c][i]
	// TotalAt is the buffer's total written count at snapshot time,
	// used by the processor to advance the consumed cursor.
	TotalAt uint64
}

// Len returns the number of samples per channel in the window.
func (w *Window) Len() int {
	return len(w.Timestamps)
}

// -----------------------------------------------------------------------------

// ReadWindow returns the most recent n samples per channel (or fewer if not
// yet available) without removing them. n larger than capacity returns the
// full buffer. Multiple readers may call concurrently.
func (rb *ChannelRingBuffer) ReadWindow(n int) *Window {
	rb.mu.RLock()
	defer rb.mu.RUnlock()

	available := rb.sizeLocked()
	if n <= 0 || n > available {
		n = available
	}

	w := &Window{
		Timestamps: make([]float64, n),
		Values:     make([][]float64, rb.channels),
		TotalAt:    rb.totalWritten,
	}
	for c := range w.Values {
		w.Values[c] = make([]float64, n)
	}
	if n == 0 {
		return w
	}

	// Latest data ends at index-1; n is already clamped to capacity
	startIdx := (rb.index - n + rb.capacity) % rb.capacity
	for i := 0; i < n; i++ {
		idx := (startIdx + i) % rb.capacity
		w.Timestamps[i] = rb.times[idx]
		for c := 0; c < rb.channels; c++ {
			w.Values[c][i] = rb.data[c][idx]
		}
	}

	return w
}

// -----------------------------------------------------------------------------

// MarkConsumed advances the processor's consumed cursor to the given total
// written count (from Window.TotalAt). Never moves backwards.
func (rb *ChannelRingBuffer) MarkConsumed(upTo uint64) {
	rb.mu.Lock()
	defer rb.mu.Unlock()

	if upTo > rb.totalWritten {
		upTo = rb.totalWritten
	}
	if upTo > rb.consumed {
		rb.consumed = upTo
	}
}

// -----------------------------------------------------------------------------

// Occupancy returns the fraction of capacity holding data not yet consumed
// by the background processor.
func (rb *ChannelRingBuffer) Occupancy() float64 {
	rb.mu.RLock()
	defer rb.mu.RUnlock()

	unread := rb.totalWritten - rb.consumed
	if unread > uint64(rb.capacity) {
		unread = uint64(rb.capacity)
	}
	return float64(unread) / float64(rb.capacity)
}

// -----------------------------------------------------------------------------

// Size returns current number of stored samples per channel
func (rb *ChannelRingBuffer) Size() int {
	rb.mu.RLock()
	defer rb.mu.RUnlock()
	return rb.sizeLocked()
}

func (rb *ChannelRingBuffer) sizeLocked() int {
	if rb.totalWritten >= uint64(rb.capacity) {
		return rb.capacity
	}
	return int(rb.totalWritten)
}

// -----------------------------------------------------------------------------

// Capacity returns buffer capacity per channel (fixed)
func (rb *ChannelRingBuffer) Capacity() int {
	return rb.capacity
}

// -----------------------------------------------------------------------------

// Channels returns the channel count (fixed)
func (rb *ChannelRingBuffer) Channels() int {
	return rb.channels
}

// -----------------------------------------------------------------------------

// TotalWritten returns the monotonic count of samples pushed per channel
func (rb *ChannelRingBuffer) TotalWritten() uint64 {
	rb.mu.RLock()
	defer rb.mu.RUnlock()
	return rb.totalWritten
}

// -----------------------------------------------------------------------------

// Dropped returns the cumulative count of overwritten samples
func (rb *ChannelRingBuffer) Dropped() uint64 {
	rb.mu.RLock()
	defer rb.mu.RUnlock()
	return rb.dropped
}

// -----------------------------------------------------------------------------

// Clear resets the buffer for a new acquisition run
func (rb *ChannelRingBuffer) Clear() {
	rb.mu.Lock()
	defer rb.mu.Unlock()

	rb.index = 0
	rb.totalWritten = 0
	rb.consumed = 0
	rb.dropped = 0
}
