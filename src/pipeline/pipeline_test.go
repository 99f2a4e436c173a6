package pipeline

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"daq-observer/src/acquisition"
	"daq-observer/src/config"
	"daq-observer/src/logger"
	"daq-observer/src/models"
)

// -----------------------------------------------------------------------------
// Helpers
// -----------------------------------------------------------------------------

// captureExchanger records frames instead of serving them.
type captureExchanger struct {
	mu     sync.Mutex
	frames []*models.MDisplayFrame
	latest *models.MDisplayFrame
}

func (e *captureExchanger) Broadcast(frame *models.MDisplayFrame) {
	e.mu.Lock()
	e.frames = append(e.frames, frame)
	e.mu.Unlock()
}

func (e *captureExchanger) UpdateFrame(frame *models.MDisplayFrame) {
	e.mu.Lock()
	e.latest = frame
	e.mu.Unlock()
}

func (e *captureExchanger) Start() error { return nil }
func (e *captureExchanger) Stop() error  { return nil }

func (e *captureExchanger) snapshot() []*models.MDisplayFrame {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]*models.MDisplayFrame, len(e.frames))
	copy(out, e.frames)
	return out
}

// -----------------------------------------------------------------------------

func testModel(rateHz float64) *models.MConfig {
	return &models.MConfig{
		Name:     "test",
		Host:     "127.0.0.1",
		Port:     8000,
		LogLevel: "INFO",
		Acquisition: models.MAcquisitionConfig{
			DeviceName:       "SimDev1",
			Channels:         []string{"ai0", "ai1"},
			SampleRateHz:     rateHz,
			ReadTimeoutMs:    100,
			MaxRetries:       3,
			RetentionSeconds: 5,
			ModeThresholdHz:  10000,
		},
		Processing: models.MProcessingConfig{
			CadenceMs:       10,
			SpectrumEnabled: true,
			FFTLength:       256,
			WindowType:      "hann",
			TraceWindowMs:   100,
			MaxPlotPoints:   500,
		},
		Display: models.MDisplayConfig{RefreshHz: 30},
		Monitor: models.MMonitorConfig{
			IntervalMs:       50,
			RateAccuracyWarn: 95,
			RateAccuracyCrit: 80,
			OccupancyHighPct: 80,
		},
		Pool: models.MPoolConfig{MaxIdleBlocks: 16, MaxIdleMB: 32},
	}
}

func newTestPipeline(t *testing.T, rateHz float64, realtime bool) (*Pipeline, *acquisition.SimulatedSource, *captureExchanger) {
	t.Helper()

	cfg, err := config.NewConfigFromModel(testModel(rateHz))
	require.NoError(t, err)

	src := acquisition.NewSimulatedSource(realtime)
	ex := &captureExchanger{}
	p, err := NewPipeline(cfg, src, ex, nil, logger.NewLogger("PipelineTest"))
	require.NoError(t, err)
	return p, src, ex
}

// -----------------------------------------------------------------------------

func TestSelectMode(t *testing.T) {
	assert.Equal(t, ModeStandard, SelectMode(5000, 10000))
	assert.Equal(t, ModeHighPerformance, SelectMode(10000, 10000))
	assert.Equal(t, ModeHighPerformance, SelectMode(50000, 10000))
	// Zero threshold falls back to the 10kHz default
	assert.Equal(t, ModeStandard, SelectMode(9999, 0))
	assert.Equal(t, ModeHighPerformance, SelectMode(10000, 0))
}

// -----------------------------------------------------------------------------

func TestPipelineModeWiring(t *testing.T) {
	low, _, _ := newTestPipeline(t, 5000, false)
	assert.Equal(t, ModeStandard, low.Mode())

	high, _, _ := newTestPipeline(t, 50000, false)
	assert.Equal(t, ModeHighPerformance, high.Mode())
}

// -----------------------------------------------------------------------------

func TestPipelineRun(t *testing.T) {
	t.Run("standard mode emits frames per result", func(t *testing.T) {
		p, _, ex := newTestPipeline(t, 5000, false)

		require.NoError(t, p.Start(context.Background()))
		require.NotEmpty(t, p.RunID())
		time.Sleep(300 * time.Millisecond)
		p.Stop()

		frames := ex.snapshot()
		require.NotEmpty(t, frames)

		first := frames[0]
		assert.Equal(t, "INITIAL", first.Type)
		assert.Equal(t, p.RunID(), first.RunID)
		require.NotNil(t, first.Result)
		assert.Len(t, first.Result.Stats, 2)

		if len(frames) > 1 {
			assert.Equal(t, "UPDATE", frames[1].Type)
		}

		// Trace respects the plotting budget
		require.NotNil(t, first.Trace)
		assert.LessOrEqual(t, len(first.Trace.Timestamps), 501)
		assert.Equal(t, []string{"ai0", "ai1"}, first.Trace.Channels)
	})

	t.Run("high rate run keeps up without drops", func(t *testing.T) {
		p, _, ex := newTestPipeline(t, 50000, true)

		require.NoError(t, p.Start(context.Background()))
		time.Sleep(time.Second)
		p.Stop()

		assert.Zero(t, p.Buffer.Dropped())
		counters := p.Producer.Counters()
		assert.NotZero(t, counters.Acquired)
		assert.Zero(t, counters.Stalls)
		assert.NotZero(t, p.Processor.Stats().ProcessedCycles)

		// The 30Hz gate paced roughly a second of frames
		frames := ex.snapshot()
		assert.GreaterOrEqual(t, len(frames), 15)
		assert.LessOrEqual(t, len(frames), 45)
	})

	t.Run("double start is rejected", func(t *testing.T) {
		p, _, _ := newTestPipeline(t, 5000, false)
		require.NoError(t, p.Start(context.Background()))
		assert.Error(t, p.Start(context.Background()))
		p.Stop()
	})

	t.Run("device fault raises a critical alert and stops the run", func(t *testing.T) {
		p, src, _ := newTestPipeline(t, 5000, false)

		require.NoError(t, p.Start(context.Background()))
		time.Sleep(50 * time.Millisecond)
		src.InjectFault(nil)
		time.Sleep(100 * time.Millisecond)
		p.Stop()

		var fault *models.MAlert
		for _, a := range p.Monitor.History() {
			if a.Category == "fault" {
				fault = a
			}
		}
		require.NotNil(t, fault)
		assert.Equal(t, models.AlertCritical, fault.Level)
	})
}

// -----------------------------------------------------------------------------

func TestDecimateTrace(t *testing.T) {
	n := 1000
	times := make([]float64, n)
	values := [][]float64{make([]float64, n)}
	for i := 0; i < n; i++ {
		times[i] = float64(i)
		values[0][i] = float64(i) * 2
	}

	t.Run("below budget passes through", func(t *testing.T) {
		tr := decimateTrace(times, values, []string{"ai0"}, 2000)
		assert.Equal(t, n, len(tr.Timestamps))
	})

	t.Run("above budget strides and keeps the newest sample", func(t *testing.T) {
		tr := decimateTrace(times, values, []string{"ai0"}, 100)
		assert.LessOrEqual(t, len(tr.Timestamps), 101)
		assert.Equal(t, 0.0, tr.Timestamps[0])
		assert.Equal(t, float64(n-1), tr.Timestamps[len(tr.Timestamps)-1])
		// Values stay aligned with their timestamps
		for i, ts := range tr.Timestamps {
			assert.Equal(t, ts*2, tr.Values[0][i])
		}
	})

	t.Run("export is unaffected by decimation", func(t *testing.T) {
		p, _, _ := newTestPipeline(t, 5000, false)
		require.NoError(t, p.Start(context.Background()))
		time.Sleep(200 * time.Millisecond)
		p.Stop()

		// No store configured: export reports it instead of panicking
		err := p.ExportWindow()
		assert.Error(t, err)
	})
}
