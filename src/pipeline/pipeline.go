package pipeline

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"daq-observer/src/acquisition"
	"daq-observer/src/buffer"
	"daq-observer/src/config"
	"daq-observer/src/helpers"
	"daq-observer/src/interfaces"
	"daq-observer/src/logger"
	"daq-observer/src/models"
	"daq-observer/src/monitor"
	"daq-observer/src/processing"
)

// -----------------------------------------------------------------------------
// Pipeline wires the acquisition producer, ring buffer, memory pool,
// background processor, performance monitor and display gate into one run.
// Data flows producer -> ring buffer -> processor -> display gate; the
// monitor observes from the side. Display and storage can stall or disappear
// without ever slowing acquisition down.
// -----------------------------------------------------------------------------

const stopTimeout = 5 * time.Second

type Pipeline struct {
	Config    *config.Config
	Source    interfaces.IHardwareSource
	Exchanger interfaces.IDataExchanger
	Store     interfaces.ISampleStore // optional
	Logger    *logger.Logger

	Buffer    *buffer.ChannelRingBuffer
	Pool      *buffer.BlockPool
	Producer  *acquisition.Producer
	Processor *processing.Processor
	Monitor   *monitor.Monitor

	mode         Mode
	runID        string
	traceSamples int
	gateFilter   processing.FilterSettings

	cancel  context.CancelFunc
	wg      sync.WaitGroup
	started bool
	mu      sync.Mutex
}

// -----------------------------------------------------------------------------

// NewPipeline builds all pipeline components from the configuration. The
// store may be nil when persistence is disabled.
func NewPipeline(cfg *config.Config, source interfaces.IHardwareSource,
	exchanger interfaces.IDataExchanger, store interfaces.ISampleStore,
	log *logger.Logger) (*Pipeline, error) {

	acq := cfg.Acquisition
	capacity := buffer.CapacityForRate(acq.SampleRateHz, acq.RetentionSeconds)
	rb := buffer.NewChannelRingBuffer(capacity, len(acq.Channels))

	budgetMB := cfg.Pool.MaxIdleMB
	if budgetMB <= 0 {
		budgetMB = helpers.GetRecommendedPoolBudgetMB()
	}
	pool := buffer.NewBlockPool(cfg.Pool.MaxIdleBlocks, budgetMB)

	producer := acquisition.NewProducer(source, rb, pool, acq)
	producer.Logger = logger.NewLogger("Producer")

	processor, err := processing.NewProcessor(rb, pool, logger.NewLogger("Processor"), cfg.Processing, acq.SampleRateHz)
	if err != nil {
		return nil, fmt.Errorf("failed to build processor: %w", err)
	}

	mon := monitor.NewMonitor(rb, pool, producer, processor, logger.NewLogger("Monitor"),
		cfg.Monitor, acq.SampleRateHz, cfg.Processing.CadenceMs)

	traceSamples := int(float64(cfg.Processing.TraceWindowMs) / 1000.0 * acq.SampleRateHz)
	if traceSamples < 1 {
		traceSamples = 1
	}
	if traceSamples > capacity {
		traceSamples = capacity
	}

	return &Pipeline{
		Config:       cfg,
		Source:       source,
		Exchanger:    exchanger,
		Store:        store,
		Logger:       log,
		Buffer:       rb,
		Pool:         pool,
		Producer:     producer,
		Processor:    processor,
		Monitor:      mon,
		mode:         SelectMode(acq.SampleRateHz, acq.ModeThresholdHz),
		traceSamples: traceSamples,
		gateFilter:   processing.FilterFromConfig(cfg.Processing),
	}, nil
}

// -----------------------------------------------------------------------------

// Mode returns the selected operating mode.
func (p *Pipeline) Mode() Mode {
	return p.mode
}

// RunID returns the identifier of the current run, empty before Start.
func (p *Pipeline) RunID() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.runID
}

// -----------------------------------------------------------------------------

// Start launches the acquisition run. It returns immediately; the run keeps
// going until Stop or a device fault.
func (p *Pipeline) Start(parent context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.started {
		return fmt.Errorf("pipeline already running")
	}

	ctx, cancel := context.WithCancel(parent)
	p.cancel = cancel
	p.runID = uuid.New().String()
	p.started = true
	p.Monitor.SetRun(p.runID, string(p.mode))

	p.Logger.Info("Run %s starting: mode=%s, rate=%.0fHz, channels=%d, buffer=%d samples",
		p.runID, p.mode, p.Config.Acquisition.SampleRateHz,
		len(p.Config.Acquisition.Channels), p.Buffer.Capacity())

	p.wg.Add(4)

	go func() {
		defer p.wg.Done()
		if err := p.Producer.Run(ctx); err != nil {
			p.Monitor.Raise(models.AlertCritical, "fault", err.Error(), 0, 0)
			p.Logger.Error("Acquisition fault, shutting run down: %v", err)
			cancel()
		}
	}()

	go func() {
		defer p.wg.Done()
		p.Processor.Run(ctx)
	}()

	go func() {
		defer p.wg.Done()
		p.Monitor.Run(ctx)
	}()

	go func() {
		defer p.wg.Done()
		p.runDisplayGate(ctx)
	}()

	return nil
}

// -----------------------------------------------------------------------------

// Stop winds the run down and waits up to a bounded timeout for the
// components to drain.
func (p *Pipeline) Stop() {
	p.mu.Lock()
	if !p.started {
		p.mu.Unlock()
		return
	}
	p.started = false
	cancel := p.cancel
	p.mu.Unlock()

	cancel()

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		p.Logger.Info("Run %s stopped.", p.runID)
	case <-time.After(stopTimeout):
		p.Logger.Warning("Run %s stop timed out after %v.", p.runID, stopTimeout)
	}
}

// -----------------------------------------------------------------------------

// runDisplayGate forwards processing results to the display. In standard
// mode every result becomes a frame; in high performance mode frames leave
// on a fixed refresh tick and intermediate results only update the latest
// state.
func (p *Pipeline) runDisplayGate(ctx context.Context) {
	refreshHz := p.Config.Display.RefreshHz
	if refreshHz <= 0 {
		refreshHz = 30
	}
	gated := p.mode == ModeHighPerformance

	var ticker *time.Ticker
	var tick <-chan time.Time
	if gated {
		ticker = time.NewTicker(time.Duration(float64(time.Second) / refreshHz))
		tick = ticker.C
		defer ticker.Stop()
	}

	var latest *models.MProcessingResult
	alertLevel := models.AlertInfo
	first := true

	for {
		select {
		case <-ctx.Done():
			return

		case alert := <-p.Monitor.Alerts():
			if alert.Level == models.AlertCritical || alertLevel == models.AlertInfo {
				alertLevel = alert.Level
			}

		case result := <-p.Processor.Results():
			latest = result
			if !gated {
				p.emitFrame(latest, alertLevel, first)
				first = false
				alertLevel = models.AlertInfo
			}

		case <-tick:
			if latest == nil {
				continue
			}
			p.emitFrame(latest, alertLevel, first)
			first = false
			alertLevel = models.AlertInfo
		}
	}
}

// -----------------------------------------------------------------------------

// emitFrame builds one display frame from the current pipeline state and
// hands it to the exchanger.
func (p *Pipeline) emitFrame(result *models.MProcessingResult, alertLevel string, first bool) {
	frameType := "UPDATE"
	if first {
		frameType = "INITIAL"
	}

	var metrics models.MPerformanceMetrics
	if m := p.Monitor.Latest(); m != nil {
		metrics = *m
	}

	frame := &models.MDisplayFrame{
		Type:       frameType,
		RunID:      p.runID,
		Timestamp:  time.Now().UnixMilli(),
		Trace:      p.buildTrace(),
		Result:     result,
		Metrics:    metrics,
		AlertLevel: alertLevel,
	}

	p.Exchanger.UpdateFrame(frame)
	p.Exchanger.Broadcast(frame)
}

// -----------------------------------------------------------------------------

// buildTrace snapshots the newest trace window, applies the configured
// conditioning and decimates the result down to the plotting budget.
func (p *Pipeline) buildTrace() *models.MTrace {
	win := p.Buffer.ReadWindow(p.traceSamples)
	if win.Len() == 0 {
		return nil
	}

	values := win.Values
	if p.Config.Processing.FilterEnabled {
		fs := processing.SampleRateFromTimestamps(win.Timestamps)
		if fs <= 0 {
			fs = p.Config.Acquisition.SampleRateHz
		}
		filtered := make([][]float64, len(values))
		ok := true
		for c, data := range values {
			out, err := p.gateFilter.Apply(data, fs)
			if err != nil {
				ok = false
				break
			}
			filtered[c] = out
		}
		if ok {
			values = filtered
		}
	}

	return decimateTrace(win.Timestamps, values, p.Config.Acquisition.Channels, p.Config.Processing.MaxPlotPoints)
}

// -----------------------------------------------------------------------------

// decimateTrace reduces a trace to at most maxPoints per channel with a
// uniform stride, always keeping the newest sample.
func decimateTrace(times []float64, values [][]float64, channels []string, maxPoints int) *models.MTrace {
	n := len(times)
	if maxPoints <= 0 || n <= maxPoints {
		return &models.MTrace{Timestamps: times, Values: values, Channels: channels}
	}

	stride := (n + maxPoints - 1) / maxPoints
	outT := make([]float64, 0, maxPoints+1)
	outV := make([][]float64, len(values))
	for c := range outV {
		outV[c] = make([]float64, 0, maxPoints+1)
	}

	for i := 0; i < n; i += stride {
		outT = append(outT, times[i])
		for c := range values {
			outV[c] = append(outV[c], values[c][i])
		}
	}
	if last := n - 1; last%stride != 0 {
		outT = append(outT, times[last])
		for c := range values {
			outV[c] = append(outV[c], values[c][last])
		}
	}

	return &models.MTrace{Timestamps: outT, Values: outV, Channels: channels}
}

// -----------------------------------------------------------------------------

// ExportWindow persists the newest raw trace window to the sample store.
func (p *Pipeline) ExportWindow() error {
	if p.Store == nil {
		return fmt.Errorf("storage is disabled")
	}

	win := p.Buffer.ReadWindow(p.traceSamples)
	if win.Len() == 0 {
		return fmt.Errorf("no samples to export")
	}

	trace := &models.MTrace{
		Timestamps: win.Timestamps,
		Values:     win.Values,
		Channels:   p.Config.Acquisition.Channels,
	}
	return p.Store.SaveWindow(p.RunID(), trace)
}
