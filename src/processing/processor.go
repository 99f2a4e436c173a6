package processing

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"daq-observer/src/buffer"
	"daq-observer/src/helpers"
	"daq-observer/src/logger"
	"daq-observer/src/models"
)

// -----------------------------------------------------------------------------
// Background Processor. Runs on a fixed cadence, decoupled from acquisition:
// each cycle reads the newest window from the ring buffer, conditions it,
// computes per-channel statistics and (optionally) a power spectrum, then
// publishes the result. A slow or stalled consumer never blocks acquisition,
// only stale results get replaced.
// -----------------------------------------------------------------------------

const cycleTimeWindow = 100 // rolling sample count for cycle time stats

// ProcessorStats is a snapshot of processor health counters.
type ProcessorStats struct {
	ProcessedCycles uint64
	Errors          uint64
	AvgCycleMs      float64
	MaxCycleMs      float64
	LastConsumed    uint64
}

// Processor consumes the ring buffer and produces immutable results.
type Processor struct {
	Buffer *buffer.ChannelRingBuffer
	Pool   *buffer.BlockPool
	Logger *logger.Logger

	cfg      models.MProcessingConfig
	rateHz   float64
	cadence  time.Duration
	window   int
	analyzer *SpectrumAnalyzer
	filter   FilterSettings

	out      chan *models.MProcessingResult
	sequence uint64
	cycles   uint64
	errors   uint64

	mu         sync.Mutex
	cycleTimes []float64
	maxCycleMs float64
	consumed   uint64
}

// -----------------------------------------------------------------------------

// NewProcessor builds a processor for the given configuration. The processing
// window covers at least one FFT length and one display trace.
func NewProcessor(rb *buffer.ChannelRingBuffer, pool *buffer.BlockPool, log *logger.Logger,
	cfg models.MProcessingConfig, rateHz float64) (*Processor, error) {

	if cfg.CadenceMs <= 0 {
		return nil, fmt.Errorf("processing cadence must be positive, got %d ms", cfg.CadenceMs)
	}

	p := &Processor{
		Buffer:  rb,
		Pool:    pool,
		Logger:  log,
		cfg:     cfg,
		rateHz:  rateHz,
		cadence: time.Duration(cfg.CadenceMs) * time.Millisecond,
		out:     make(chan *models.MProcessingResult, 1),
		filter:  FilterFromConfig(cfg),
	}

	traceSamples := int(float64(cfg.TraceWindowMs) / 1000.0 * rateHz)
	p.window = traceSamples

	if cfg.SpectrumEnabled {
		analyzer, err := NewSpectrumAnalyzer(cfg.FFTLength, cfg.WindowType, cfg.MaxFrequencyHz)
		if err != nil {
			return nil, err
		}
		p.analyzer = analyzer
		if analyzer.FFTLength() > p.window {
			p.window = analyzer.FFTLength()
		}
	}
	if p.window < 1 {
		p.window = 1
	}
	if p.window > rb.Capacity() {
		p.window = rb.Capacity()
	}

	return p, nil
}

// -----------------------------------------------------------------------------

// Results returns the single-slot output channel. Only the newest pending
// result is ever readable from it.
func (p *Processor) Results() <-chan *models.MProcessingResult {
	return p.out
}

// -----------------------------------------------------------------------------

// Run executes processing cycles until the context is cancelled.
func (p *Processor) Run(ctx context.Context) {
	p.Logger.Info("processor started, cadence %v, window %d samples", p.cadence, p.window)

	ticker := time.NewTicker(p.cadence)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			p.Logger.Info("processor stopped after %d cycles", atomic.LoadUint64(&p.cycles))
			return
		case <-ticker.C:
			if err := p.runCycle(); err != nil {
				atomic.AddUint64(&p.errors, 1)
				p.Logger.Error("processing cycle failed: %v", err)
			}
		}
	}
}

// -----------------------------------------------------------------------------

// runCycle performs one processing pass. A panic inside the numeric path is
// turned into a ProcessingError so a single bad window cannot take the
// pipeline down.
func (p *Processor) runCycle() (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = helpers.NewProcessingError(fmt.Sprintf("panic in processing cycle: %v", r), nil)
		}
	}()

	win := p.Buffer.ReadWindow(p.window)
	if win.Len() == 0 {
		return nil
	}

	start := time.Now()

	channelData := win.Values
	filtered := false
	if p.cfg.FilterEnabled {
		fs := SampleRateFromTimestamps(win.Timestamps)
		if fs <= 0 {
			fs = p.rateHz
		}
		filteredData := make([][]float64, len(channelData))
		for c, data := range channelData {
			out, ferr := p.filter.Apply(data, fs)
			if ferr != nil {
				return helpers.NewProcessingError("filter failed", ferr)
			}
			filteredData[c] = out
		}
		channelData = filteredData
		filtered = true
	}

	result := &models.MProcessingResult{
		Sequence:  atomic.AddUint64(&p.sequence, 1),
		Timestamp: time.Now().UnixMilli(),
		Stats:     make([]models.MChannelStats, len(channelData)),
		Filtered:  filtered,
	}
	for c, data := range channelData {
		result.Stats[c] = CalculateChannelStats(c, data)
	}

	if p.analyzer != nil && len(channelData) > 0 {
		spectrum, serr := p.analyzer.Compute(0, channelData[0], p.rateHz, p.Pool)
		switch serr {
		case nil:
			result.Spectrum = spectrum
		case ErrNotReady:
			// window not filled yet, skip the spectrum this cycle
		default:
			return helpers.NewProcessingError("spectrum failed", serr)
		}
	}

	cycleMs := float64(time.Since(start)) / float64(time.Millisecond)
	result.CycleTimeMs = cycleMs

	p.Buffer.MarkConsumed(win.TotalAt)
	p.publish(result)

	atomic.AddUint64(&p.cycles, 1)
	p.recordCycle(cycleMs, win.TotalAt)
	return nil
}

// -----------------------------------------------------------------------------

// publish places the result in the single-slot channel, replacing any stale
// result nobody has picked up yet.
func (p *Processor) publish(r *models.MProcessingResult) {
	select {
	case p.out <- r:
		return
	default:
	}
	select {
	case <-p.out:
	default:
	}
	select {
	case p.out <- r:
	default:
	}
}

// -----------------------------------------------------------------------------

func (p *Processor) recordCycle(cycleMs float64, consumed uint64) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.cycleTimes = append(p.cycleTimes, cycleMs)
	if len(p.cycleTimes) > cycleTimeWindow {
		p.cycleTimes = p.cycleTimes[len(p.cycleTimes)-cycleTimeWindow:]
	}
	if cycleMs > p.maxCycleMs {
		p.maxCycleMs = cycleMs
	}
	p.consumed = consumed
}

// -----------------------------------------------------------------------------

// Stats returns a snapshot of the processor counters.
func (p *Processor) Stats() ProcessorStats {
	p.mu.Lock()
	defer p.mu.Unlock()

	var avg float64
	if len(p.cycleTimes) > 0 {
		var sum float64
		for _, t := range p.cycleTimes {
			sum += t
		}
		avg = sum / float64(len(p.cycleTimes))
	}

	return ProcessorStats{
		ProcessedCycles: atomic.LoadUint64(&p.cycles),
		Errors:          atomic.LoadUint64(&p.errors),
		AvgCycleMs:      avg,
		MaxCycleMs:      p.maxCycleMs,
		LastConsumed:    p.consumed,
	}
}
