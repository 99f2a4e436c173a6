package acquisition

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"daq-observer/src/buffer"
	"daq-observer/src/helpers"
	"daq-observer/src/interfaces"
	"daq-observer/src/logger"
	"daq-observer/src/models"
)

// -----------------------------------------------------------------------------
// Producer owns the acquisition loop: read one block from the hardware source,
// timestamp it, push it into the ring buffer, update counters. Its only
// downstream action is the buffer push - no filtering, no FFT, no display I/O.
// -----------------------------------------------------------------------------

const (
	retryBaseDelay  = 10 * time.Millisecond
	readTimesWindow = 100
)

type Producer struct {
	Source interfaces.IHardwareSource
	Buffer *buffer.ChannelRingBuffer
	Pool   *buffer.BlockPool
	Logger *logger.Logger

	cfg       models.MAcquisitionConfig
	blockSize int
	timeout   time.Duration

	requested atomic.Uint64
	acquired  atomic.Uint64
	stalls    atomic.Uint64

	// Rolling read latencies (last readTimesWindow reads)
	readTimes []float64
	readIdx   int
	readCount int
	readMu    sync.Mutex
}

// -----------------------------------------------------------------------------

// Counters is a snapshot of producer-side counters.
type Counters struct {
	Requested uint64
	Acquired  uint64
	Stalls    uint64
	AvgReadMs float64
	MaxReadMs float64
}

// -----------------------------------------------------------------------------

func NewProducer(src interfaces.IHardwareSource, rb *buffer.ChannelRingBuffer, pool *buffer.BlockPool, cfg models.MAcquisitionConfig) *Producer {
	blockSize := cfg.BlockSize
	if blockSize <= 0 {
		blockSize = BlockSizeForRate(cfg.SampleRateHz)
	}

	return &Producer{
		Source:    src,
		Buffer:    rb,
		Pool:      pool,
		Logger:    logger.NewLogger("Producer-" + src.Name()),
		cfg:       cfg,
		blockSize: blockSize,
		timeout:   time.Duration(cfg.ReadTimeoutMs) * time.Millisecond,
		readTimes: make([]float64, readTimesWindow),
	}
}

// -----------------------------------------------------------------------------

// BlockSizeForRate picks the samples-per-read so each hardware read covers a
// short, rate-dependent slice of time. Higher rates get proportionally larger
// blocks to keep the read loop overhead bounded.
func BlockSizeForRate(rateHz float64) int {
	var n int
	switch {
	case rateHz >= 50000:
		n = int(rateHz * 0.02) // 20ms
	case rateHz >= 25000:
		n = int(rateHz * 0.015) // 15ms
	case rateHz >= 10000:
		n = int(rateHz * 0.01) // 10ms
	default:
		n = int(rateHz * 0.005) // 5ms for responsiveness
	}

	if n < 50 {
		n = 50
	}
	if n > 5000 {
		n = 5000
	}
	return n
}

// -----------------------------------------------------------------------------

// BlockSize returns the samples-per-read the producer settled on.
func (p *Producer) BlockSize() int {
	return p.blockSize
}

// -----------------------------------------------------------------------------

// Run drives the acquisition loop until the context is cancelled or the
// device reports a fatal condition. Transient read timeouts are retried with
// bounded backoff and counted as stalls; a fatal condition stops the loop and
// is returned as an AcquisitionFault.
func (p *Producer) Run(ctx context.Context) error {
	if err := p.Source.Start(p.cfg); err != nil {
		return helpers.NewAcquisitionFault("failed to start hardware source", err)
	}
	defer func() {
		if err := p.Source.Stop(); err != nil {
			p.Logger.Warning("Source stop failed: %v", err)
		}
	}()

	p.Logger.Info("Acquisition loop started: rate=%.0fHz, block=%d samples, channels=%d",
		p.cfg.SampleRateHz, p.blockSize, len(p.cfg.Channels))

	for {
		select {
		case <-ctx.Done():
			p.Logger.Info("Acquisition loop stopped.")
			return nil
		default:
		}

		p.requested.Add(uint64(p.blockSize))

		readStart := time.Now()
		res, err := helpers.RetryWithBackoff("read_block", p.cfg.MaxRetries, retryBaseDelay, func() (interface{}, error) {
			return p.Source.ReadBlock(p.blockSize, p.timeout)
		})
		p.recordReadTime(time.Since(readStart))

		if err != nil {
			if helpers.IsFault(err) {
				p.Logger.Error("Device fault, stopping acquisition: %v", err)
				return err
			}
			// Recoverable stall: report and keep acquiring
			p.stalls.Add(1)
			p.Logger.Warning("Acquisition stall (will continue): %v", err)
			continue
		}

		block := res.(*models.MSampleBlock)
		n := block.Len()
		if n == 0 {
			continue
		}
		p.acquired.Add(uint64(n))

		if p.cfg.AverageMs > 0 {
			block = p.averageBlock(block)
		}

		p.Buffer.Push(block)
	}
}

// -----------------------------------------------------------------------------

// averageBlock reduces a block to one mean sample per averaging interval.
// Scratch comes from the pool so the hot path stays allocation-free.
func (p *Producer) averageBlock(block *models.MSampleBlock) *models.MSampleBlock {
	group := int(p.cfg.AverageMs / 1000.0 * p.cfg.SampleRateHz)
	if group <= 1 || block.Len() < group {
		return block
	}

	n := block.Len() / group
	channels := block.Channels

	// Pooled accumulator for the per-interval channel sums
	scratch := p.Pool.Acquire(channels)
	defer p.Pool.Release(scratch)
	sums := scratch.Data[:channels]

	out := &models.MSampleBlock{
		Timestamps: make([]float64, n),
		Values:     make([][]float64, n),
		Channels:   channels,
	}

	for i := 0; i < n; i++ {
		start := i * group
		tSum := 0.0
		for c := range sums {
			sums[c] = 0
		}
		for j := start; j < start+group; j++ {
			tSum += block.Timestamps[j]
			for c := 0; c < channels; c++ {
				sums[c] += block.Values[j][c]
			}
		}

		out.Timestamps[i] = tSum / float64(group)
		row := make([]float64, channels)
		for c := 0; c < channels; c++ {
			row[c] = sums[c] / float64(group)
		}
		out.Values[i] = row
	}

	return out
}

// -----------------------------------------------------------------------------

// recordReadTime stores one read latency in the rolling window
func (p *Producer) recordReadTime(d time.Duration) {
	p.readMu.Lock()
	defer p.readMu.Unlock()

	p.readTimes[p.readIdx] = float64(d.Microseconds()) / 1000.0
	p.readIdx = (p.readIdx + 1) % readTimesWindow
	if p.readCount < readTimesWindow {
		p.readCount++
	}
}

// -----------------------------------------------------------------------------

// Counters returns a snapshot of the producer counters for the monitor
func (p *Producer) Counters() Counters {
	c := Counters{
		Requested: p.requested.Load(),
		Acquired:  p.acquired.Load(),
		Stalls:    p.stalls.Load(),
	}

	p.readMu.Lock()
	defer p.readMu.Unlock()
	for i := 0; i < p.readCount; i++ {
		t := p.readTimes[i]
		c.AvgReadMs += t
		if t > c.MaxReadMs {
			c.MaxReadMs = t
		}
	}
	if p.readCount > 0 {
		c.AvgReadMs /= float64(p.readCount)
	}

	return c
}
