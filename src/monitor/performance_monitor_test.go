package monitor

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"daq-observer/src/acquisition"
	"daq-observer/src/buffer"
	"daq-observer/src/logger"
	"daq-observer/src/models"
	"daq-observer/src/processing"
)

// -----------------------------------------------------------------------------
// Helpers
// -----------------------------------------------------------------------------

func testMonitorConfig() models.MMonitorConfig {
	return models.MMonitorConfig{
		IntervalMs:        50,
		RateAccuracyWarn:  95,
		RateAccuracyCrit:  80,
		OccupancyHighPct:  80,
		AlertHistoryLimit: 5,
	}
}

func newTestMonitor(t *testing.T, cfg models.MMonitorConfig) (*Monitor, *buffer.ChannelRingBuffer) {
	t.Helper()

	acq := models.MAcquisitionConfig{
		Channels:      []string{"ai0"},
		SampleRateHz:  10000,
		ReadTimeoutMs: 100,
		MaxRetries:    3,
	}

	rb := buffer.NewChannelRingBuffer(50000, 1)
	pool := buffer.NewBlockPool(8, 16)
	src := acquisition.NewSimulatedSource(false)
	prod := acquisition.NewProducer(src, rb, pool, acq)
	prod.Logger = logger.NewLogger("t")

	proc, err := processing.NewProcessor(rb, pool, logger.NewLogger("t"), models.MProcessingConfig{
		CadenceMs:     10,
		TraceWindowMs: 100,
	}, 10000)
	require.NoError(t, err)

	return NewMonitor(rb, pool, prod, proc, logger.NewLogger("MonitorTest"), cfg, 10000, 10), rb
}

// -----------------------------------------------------------------------------

func TestMonitorSample(t *testing.T) {
	m, rb := newTestMonitor(t, testMonitorConfig())
	m.SetRun("run-1", "standard")

	first := m.Sample()
	assert.Equal(t, "run-1", first.RunID)
	assert.Equal(t, "standard", first.Mode)
	assert.Equal(t, 10000.0, first.SampleRateHz)
	// No interval yet, no rate
	assert.Zero(t, first.AchievedRateHz)

	// Occupancy reflects the buffer
	fillSamples(rb, 25000)
	second := m.Sample()
	assert.InDelta(t, 50.0, second.OccupancyPct, 1e-9)

	assert.Same(t, second, m.Latest())
}

func fillSamples(rb *buffer.ChannelRingBuffer, n int) {
	block := &models.MSampleBlock{
		Timestamps: make([]float64, n),
		Values:     make([][]float64, n),
		Channels:   1,
	}
	for i := range block.Values {
		block.Values[i] = []float64{0}
	}
	rb.Push(block)
}

// -----------------------------------------------------------------------------

func TestMonitorAlerts(t *testing.T) {
	t.Run("rate accuracy warning and critical levels", func(t *testing.T) {
		m, _ := newTestMonitor(t, testMonitorConfig())

		m.evaluate(&models.MPerformanceMetrics{AchievedRateHz: 9000, RateAccuracyPct: 90})
		m.evaluate(&models.MPerformanceMetrics{AchievedRateHz: 5000, RateAccuracyPct: 50})

		history := m.History()
		require.Len(t, history, 2)
		assert.Equal(t, models.AlertWarning, history[0].Level)
		assert.Equal(t, "rate_accuracy", history[0].Category)
		assert.Equal(t, models.AlertCritical, history[1].Level)
	})

	t.Run("no rate alert before the first interval", func(t *testing.T) {
		m, _ := newTestMonitor(t, testMonitorConfig())
		m.evaluate(&models.MPerformanceMetrics{AchievedRateHz: 0, RateAccuracyPct: 0})
		assert.Empty(t, m.History())
	})

	t.Run("occupancy and drop alerts", func(t *testing.T) {
		m, _ := newTestMonitor(t, testMonitorConfig())
		m.evaluate(&models.MPerformanceMetrics{
			AchievedRateHz: 10000, RateAccuracyPct: 100,
			OccupancyPct: 95, DroppedPerSec: 120,
		})

		history := m.History()
		require.Len(t, history, 2)
		for _, a := range history {
			assert.Equal(t, "occupancy", a.Category)
		}
	})

	t.Run("latency alert when cycles outrun the cadence", func(t *testing.T) {
		m, _ := newTestMonitor(t, testMonitorConfig())
		m.evaluate(&models.MPerformanceMetrics{
			AchievedRateHz: 10000, RateAccuracyPct: 100,
			AvgProcessingMs: 15, // cadence is 10ms
		})

		history := m.History()
		require.Len(t, history, 1)
		assert.Equal(t, models.AlertCritical, history[0].Level)
		assert.Equal(t, "latency", history[0].Category)
	})

	t.Run("history is bounded and alerts carry unique ids", func(t *testing.T) {
		m, _ := newTestMonitor(t, testMonitorConfig())
		for i := 0; i < 10; i++ {
			m.Raise(models.AlertInfo, "test", "event", float64(i), 0)
		}

		history := m.History()
		require.Len(t, history, 5) // AlertHistoryLimit
		assert.Equal(t, 5.0, history[0].Value)
		assert.Equal(t, 9.0, history[4].Value)

		seen := make(map[string]struct{})
		for _, a := range history {
			assert.NotEmpty(t, a.ID)
			seen[a.ID] = struct{}{}
		}
		assert.Len(t, seen, 5)
	})

	t.Run("alert stream drops rather than blocks", func(t *testing.T) {
		m, _ := newTestMonitor(t, testMonitorConfig())
		// Overfill the stream with nobody reading
		for i := 0; i < alertQueueSize+10; i++ {
			m.Raise(models.AlertWarning, "test", "event", 0, 0)
		}
		// Queue holds at most its capacity
		assert.Len(t, m.Alerts(), alertQueueSize)
	})
}

// -----------------------------------------------------------------------------

func TestMonitorBenchmarks(t *testing.T) {
	m, _ := newTestMonitor(t, testMonitorConfig())

	rbRes := m.BenchmarkRingBuffer(20 * time.Millisecond)
	assert.Equal(t, "ring_buffer", rbRes.Name)
	assert.NotZero(t, rbRes.Operations)
	assert.NotZero(t, rbRes.OpsPerSec)

	procRes := m.BenchmarkProcessor(20 * time.Millisecond)
	assert.Equal(t, "processor", procRes.Name)
	assert.NotZero(t, procRes.Operations)
}
