package monitor

import (
	"context"
	"math"
	"sync"
	"time"

	"github.com/google/uuid"

	"daq-observer/src/acquisition"
	"daq-observer/src/buffer"
	"daq-observer/src/logger"
	"daq-observer/src/models"
	"daq-observer/src/processing"
)

// -----------------------------------------------------------------------------
// Performance Monitor. Samples the pipeline counters on a fixed timer,
// computes interval rates and publishes leveled alerts. Strictly advisory:
// it observes the producer, processor, ring buffer and pool, it never
// changes their behavior.
// -----------------------------------------------------------------------------

const (
	defaultAlertHistory = 200
	alertQueueSize      = 32
)

// Monitor samples pipeline health on a fixed interval.
type Monitor struct {
	Buffer    *buffer.ChannelRingBuffer
	Pool      *buffer.BlockPool
	Producer  *acquisition.Producer
	Processor *processing.Processor
	Logger    *logger.Logger

	cfg       models.MMonitorConfig
	rateHz    float64
	cadenceMs int
	interval  time.Duration

	alerts chan *models.MAlert

	mu           sync.Mutex
	runID        string
	mode         string
	history      []*models.MAlert
	latest       *models.MPerformanceMetrics
	lastAcquired uint64
	lastDropped  uint64
	lastSample   time.Time
}

// -----------------------------------------------------------------------------

func NewMonitor(rb *buffer.ChannelRingBuffer, pool *buffer.BlockPool,
	prod *acquisition.Producer, proc *processing.Processor, log *logger.Logger,
	cfg models.MMonitorConfig, rateHz float64, cadenceMs int) *Monitor {

	intervalMs := cfg.IntervalMs
	if intervalMs <= 0 {
		intervalMs = 1000
	}

	return &Monitor{
		Buffer:    rb,
		Pool:      pool,
		Producer:  prod,
		Processor: proc,
		Logger:    log,
		cfg:       cfg,
		rateHz:    rateHz,
		cadenceMs: cadenceMs,
		interval:  time.Duration(intervalMs) * time.Millisecond,
		alerts:    make(chan *models.MAlert, alertQueueSize),
	}
}

// -----------------------------------------------------------------------------

// SetRun tags subsequent metrics with the active run identity.
func (m *Monitor) SetRun(runID, mode string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.runID = runID
	m.mode = mode
	m.lastAcquired = 0
	m.lastDropped = 0
	m.lastSample = time.Time{}
}

// -----------------------------------------------------------------------------

// Alerts returns the alert stream. Alerts are dropped, not blocked on, when
// nobody is reading.
func (m *Monitor) Alerts() <-chan *models.MAlert {
	return m.alerts
}

// -----------------------------------------------------------------------------

// Run samples metrics until the context is cancelled.
func (m *Monitor) Run(ctx context.Context) {
	m.Logger.Info("performance monitor started, interval %v", m.interval)

	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			m.Logger.Info("performance monitor stopped")
			return
		case <-ticker.C:
			metrics := m.Sample()
			m.evaluate(metrics)
		}
	}
}

// -----------------------------------------------------------------------------

// Sample computes a metrics snapshot from the current pipeline counters.
// Per-second figures cover the interval since the previous sample.
func (m *Monitor) Sample() *models.MPerformanceMetrics {
	now := time.Now()
	counters := m.Producer.Counters()
	procStats := m.Processor.Stats()
	poolStats := m.Pool.Stats()
	dropped := m.Buffer.Dropped()

	m.mu.Lock()
	defer m.mu.Unlock()

	metrics := &models.MPerformanceMetrics{
		Timestamp:        now.UnixMilli(),
		RunID:            m.runID,
		Mode:             m.mode,
		SampleRateHz:     m.rateHz,
		OccupancyPct:     m.Buffer.Occupancy() * 100,
		SamplesRequested: counters.Requested,
		SamplesAcquired:  counters.Acquired,
		SamplesDropped:   dropped,
		Stalls:           counters.Stalls,
		AvgProcessingMs:  procStats.AvgCycleMs,
		MaxProcessingMs:  procStats.MaxCycleMs,
		ProcessedCycles:  procStats.ProcessedCycles,
		ProcessingErrors: procStats.Errors,
		PoolHits:         poolStats.Hits,
		PoolAllocations:  poolStats.Allocations,
	}

	if !m.lastSample.IsZero() {
		elapsed := now.Sub(m.lastSample).Seconds()
		if elapsed > 0 {
			metrics.AchievedRateHz = float64(counters.Acquired-m.lastAcquired) / elapsed
			metrics.DroppedPerSec = float64(dropped-m.lastDropped) / elapsed
		}
	}
	if m.rateHz > 0 && metrics.AchievedRateHz > 0 {
		metrics.RateAccuracyPct = metrics.AchievedRateHz / m.rateHz * 100
	}

	m.lastAcquired = counters.Acquired
	m.lastDropped = dropped
	m.lastSample = now
	m.latest = metrics
	return metrics
}

// -----------------------------------------------------------------------------

// Latest returns the most recent metrics snapshot, or nil before the first
// sample.
func (m *Monitor) Latest() *models.MPerformanceMetrics {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.latest
}

// -----------------------------------------------------------------------------

// History returns a copy of the retained alerts, oldest first.
func (m *Monitor) History() []*models.MAlert {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*models.MAlert, len(m.history))
	copy(out, m.history)
	return out
}

// -----------------------------------------------------------------------------

// evaluate checks the snapshot against the configured thresholds and raises
// alerts for every violated one.
func (m *Monitor) evaluate(metrics *models.MPerformanceMetrics) {
	// First interval has no rate yet
	if metrics.AchievedRateHz > 0 {
		switch {
		case metrics.RateAccuracyPct < m.cfg.RateAccuracyCrit:
			m.Raise(models.AlertCritical, "rate_accuracy",
				"achieved sample rate critically below nominal",
				metrics.RateAccuracyPct, m.cfg.RateAccuracyCrit)
		case metrics.RateAccuracyPct < m.cfg.RateAccuracyWarn:
			m.Raise(models.AlertWarning, "rate_accuracy",
				"achieved sample rate below nominal",
				metrics.RateAccuracyPct, m.cfg.RateAccuracyWarn)
		}
	}

	if metrics.OccupancyPct > m.cfg.OccupancyHighPct {
		m.Raise(models.AlertWarning, "occupancy",
			"ring buffer occupancy high, processing is falling behind",
			metrics.OccupancyPct, m.cfg.OccupancyHighPct)
	}

	if metrics.DroppedPerSec > 0 {
		m.Raise(models.AlertWarning, "occupancy",
			"samples dropped from ring buffer",
			metrics.DroppedPerSec, 0)
	}

	if m.cadenceMs > 0 && metrics.AvgProcessingMs > float64(m.cadenceMs) {
		m.Raise(models.AlertCritical, "latency",
			"processing cycle slower than its cadence",
			metrics.AvgProcessingMs, float64(m.cadenceMs))
	}
}

// -----------------------------------------------------------------------------

// Raise publishes one alert to the stream and the bounded history.
func (m *Monitor) Raise(level, category, message string, value, threshold float64) {
	alert := &models.MAlert{
		ID:        uuid.New().String(),
		Level:     level,
		Category:  category,
		Message:   message,
		Value:     value,
		Threshold: threshold,
		Timestamp: time.Now().UnixMilli(),
	}

	m.mu.Lock()
	limit := m.cfg.AlertHistoryLimit
	if limit <= 0 {
		limit = defaultAlertHistory
	}
	m.history = append(m.history, alert)
	if len(m.history) > limit {
		m.history = m.history[len(m.history)-limit:]
	}
	m.mu.Unlock()

	switch level {
	case models.AlertCritical:
		m.Logger.Error("[%s] %s (value %.2f, threshold %.2f)", category, message, value, threshold)
	default:
		m.Logger.Warning("[%s] %s (value %.2f, threshold %.2f)", category, message, value, threshold)
	}

	select {
	case m.alerts <- alert:
	default:
	}
}

// -----------------------------------------------------------------------------
// Self-test benchmarks. These run against throwaway components so they can be
// triggered while a live run is active.
// -----------------------------------------------------------------------------

// BenchmarkResult summarizes one self-test run.
type BenchmarkResult struct {
	Name       string  `json:"name"`
	DurationMs float64 `json:"duration_ms"`
	Operations uint64  `json:"operations"`
	OpsPerSec  float64 `json:"ops_per_sec"`
	SamplesSec float64 `json:"samples_per_sec,omitempty"`
}

// BenchmarkRingBuffer measures raw push throughput on a scratch ring buffer
// sized like the live one.
func (m *Monitor) BenchmarkRingBuffer(d time.Duration) BenchmarkResult {
	channels := m.Buffer.Channels()
	rb := buffer.NewChannelRingBuffer(m.Buffer.Capacity(), channels)

	const blockLen = 1000
	block := &models.MSampleBlock{
		Timestamps: make([]float64, blockLen),
		Values:     make([][]float64, blockLen),
		Channels:   channels,
	}
	for i := range block.Values {
		block.Timestamps[i] = float64(i)
		row := make([]float64, channels)
		for c := range row {
			row[c] = math.Sin(float64(i) * 0.01 * float64(c+1))
		}
		block.Values[i] = row
	}

	var ops uint64
	start := time.Now()
	for time.Since(start) < d {
		rb.Push(block)
		ops++
	}
	elapsed := time.Since(start)

	result := BenchmarkResult{
		Name:       "ring_buffer",
		DurationMs: float64(elapsed) / float64(time.Millisecond),
		Operations: ops,
		OpsPerSec:  float64(ops) / elapsed.Seconds(),
		SamplesSec: float64(ops) * blockLen / elapsed.Seconds(),
	}
	m.Logger.Info("ring buffer benchmark: %.0f blocks/s (%.2e samples/s)", result.OpsPerSec, result.SamplesSec)
	return result
}

// BenchmarkProcessor measures statistics plus spectrum throughput on a
// synthetic signal the size of one processing window.
func (m *Monitor) BenchmarkProcessor(d time.Duration) BenchmarkResult {
	const n = 4096
	data := make([]float64, n)
	for i := range data {
		data[i] = math.Sin(2*math.Pi*50*float64(i)/m.rateHz) + 0.1*math.Sin(2*math.Pi*120*float64(i)/m.rateHz)
	}

	analyzer, err := processing.NewSpectrumAnalyzer(1024, "hann", 0)
	if err != nil {
		m.Logger.Error("processor benchmark setup failed: %v", err)
		return BenchmarkResult{Name: "processor"}
	}
	pool := buffer.NewBlockPool(8, 16)

	var ops uint64
	start := time.Now()
	for time.Since(start) < d {
		processing.CalculateChannelStats(0, data)
		if _, err := analyzer.Compute(0, data, m.rateHz, pool); err != nil {
			m.Logger.Error("processor benchmark cycle failed: %v", err)
			break
		}
		ops++
	}
	elapsed := time.Since(start)

	result := BenchmarkResult{
		Name:       "processor",
		DurationMs: float64(elapsed) / float64(time.Millisecond),
		Operations: ops,
		OpsPerSec:  float64(ops) / elapsed.Seconds(),
	}
	m.Logger.Info("processor benchmark: %.0f cycles/s over %d samples", result.OpsPerSec, n)
	return result
}
