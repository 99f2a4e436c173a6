package buffer

import (
	"sync"

	"daq-observer/src/logger"
)

// -----------------------------------------------------------------------------
// BlockPool recycles preallocated float64 scratch blocks so the acquisition
// and processing hot paths stay allocation-free. A checked-out block is owned
// by exactly one stage until released.
// -----------------------------------------------------------------------------

// Block is a reusable array handle checked out from the pool for one cycle.
// After Release the caller must not retain references to it.
type Block struct {
	Data []float64
	size int
}

// Size returns the block's sample capacity.
func (b *Block) Size() int {
	return b.size
}

// -----------------------------------------------------------------------------

// PoolStats is a snapshot of pool counters.
type PoolStats struct {
	Allocations uint64  `json:"allocations"`
	Hits        uint64  `json:"hits"`
	Releases    uint64  `json:"releases"`
	Trims       uint64  `json:"trims"`
	Exhaustions uint64  `json:"exhaustions"`
	IdleBlocks  int     `json:"idle_blocks"`
	IdleMB      float64 `json:"idle_mb"`
}

// -----------------------------------------------------------------------------

type BlockPool struct {
	// Idle blocks in release order: index 0 is the oldest, trimmed first
	idle      []*Block
	idleBytes int

	maxIdleBlocks int
	maxIdleBytes  int

	allocations uint64
	hits        uint64
	releases    uint64
	trims       uint64
	exhaustions uint64

	Logger *logger.Logger
	mu     sync.Mutex
}

// -----------------------------------------------------------------------------

// NewBlockPool creates a pool with the given idle ceilings. maxIdleMB <= 0
// falls back to a 64MB budget.
func NewBlockPool(maxIdleBlocks, maxIdleMB int) *BlockPool {
	if maxIdleBlocks <= 0 {
		maxIdleBlocks = 64
	}
	if maxIdleMB <= 0 {
		maxIdleMB = 64
	}

	return &BlockPool{
		maxIdleBlocks: maxIdleBlocks,
		maxIdleBytes:  maxIdleMB * 1024 * 1024,
		Logger:        logger.NewLogger("BlockPool"),
	}
}

// -----------------------------------------------------------------------------

// Acquire returns a block of exactly size samples. Same-size idle blocks are
// recycled; a size miss allocates fresh and, above the ceilings, evicts the
// oldest idle block. Acquire never fails: exhaustion degrades to a one-off
// allocation and is counted.
func (p *BlockPool) Acquire(size int) *Block {
	if size <= 0 {
		size = 1
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	// Newest-first scan keeps recently used sizes hot
	for i := len(p.idle) - 1; i >= 0; i-- {
		b := p.idle[i]
		if b.size == size {
			p.idle = append(p.idle[:i], p.idle[i+1:]...)
			p.idleBytes -= b.size * 8
			p.hits++
			return b
		}
	}

	if len(p.idle) >= p.maxIdleBlocks || p.idleBytes+size*8 > p.maxIdleBytes {
		p.trimOldestLocked()
		p.exhaustions++
		p.Logger.Warning("Pool ceiling reached (idle=%d, %.1fMB). Falling back to one-off allocation of %d samples.",
			len(p.idle), float64(p.idleBytes)/(1024*1024), size)
	}

	p.allocations++
	return &Block{
		Data: make([]float64, size),
		size: size,
	}
}

// -----------------------------------------------------------------------------

// Release returns a block to the pool for reuse. Idle memory above the
// configured ceilings is proactively trimmed so long sessions stay bounded.
func (p *BlockPool) Release(b *Block) {
	if b == nil {
		return
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	p.releases++
	p.idle = append(p.idle, b)
	p.idleBytes += b.size * 8

	for len(p.idle) > p.maxIdleBlocks || p.idleBytes > p.maxIdleBytes {
		if !p.trimOldestLocked() {
			break
		}
	}
}

// -----------------------------------------------------------------------------

// trimOldestLocked evicts the oldest idle block. Caller holds the lock.
func (p *BlockPool) trimOldestLocked() bool {
	if len(p.idle) == 0 {
		return false
	}
	oldest := p.idle[0]
	p.idle = p.idle[1:]
	p.idleBytes -= oldest.size * 8
	p.trims++
	return true
}

// -----------------------------------------------------------------------------

// Stats returns a snapshot of the pool counters
func (p *BlockPool) Stats() PoolStats {
	p.mu.Lock()
	defer p.mu.Unlock()

	return PoolStats{
		Allocations: p.allocations,
		Hits:        p.hits,
		Releases:    p.releases,
		Trims:       p.trims,
		Exhaustions: p.exhaustions,
		IdleBlocks:  len(p.idle),
		IdleMB:      float64(p.idleBytes) / (1024 * 1024),
	}
}

// -----------------------------------------------------------------------------

// Clear drops all idle blocks (pipeline shutdown)
func (p *BlockPool) Clear() {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.idle = nil
	p.idleBytes = 0
}
