package acquisition

import (
	"fmt"
	"math"
	"math/rand"
	"sync"
	"time"

	"daq-observer/src/helpers"
	"daq-observer/src/logger"
	"daq-observer/src/models"
)

// -----------------------------------------------------------------------------
// SimulatedSource is an in-process hardware collaborator producing
// multi-channel sine waves with additive noise. It paces reads against the
// wall clock (optional) so end-to-end runs behave like a real bounded-latency
// device. Used by the demo binary and the test suites.
// -----------------------------------------------------------------------------

type SimulatedSource struct {
	Logger *logger.Logger

	cfg      models.MAcquisitionConfig
	rate     float64
	channels int

	sampleIndex uint64
	started     bool
	startTime   time.Time
	realtime    bool

	// Test hooks
	pendingStalls int
	fault         error

	rng *rand.Rand
	mu  sync.Mutex
}

// -----------------------------------------------------------------------------

// NewSimulatedSource creates a simulated device. realtime enables wall-clock
// pacing of ReadBlock; tests usually disable it.
func NewSimulatedSource(realtime bool) *SimulatedSource {
	return &SimulatedSource{
		Logger:   logger.NewLogger("SimulatedSource"),
		realtime: realtime,
		rng:      rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// -----------------------------------------------------------------------------

func (s *SimulatedSource) Name() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cfg.DeviceName != "" {
		return s.cfg.DeviceName
	}
	return "SimDev1"
}

// -----------------------------------------------------------------------------

func (s *SimulatedSource) Start(cfg models.MAcquisitionConfig) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if cfg.SampleRateHz <= 0 {
		return fmt.Errorf("invalid sample rate: %f", cfg.SampleRateHz)
	}
	if len(cfg.Channels) == 0 {
		return fmt.Errorf("no channels configured")
	}

	s.cfg = cfg
	s.rate = cfg.SampleRateHz
	s.channels = len(cfg.Channels)
	s.sampleIndex = 0
	s.startTime = time.Now()
	s.started = true

	s.Logger.Info("Simulated device armed: %d channels at %.0fHz", s.channels, s.rate)
	return nil
}

// -----------------------------------------------------------------------------

// ReadBlock returns n samples per channel. Each channel c carries a sine at
// 50*(c+1) Hz with 2% noise, all channels sharing one timestamp per cycle.
func (s *SimulatedSource) ReadBlock(n int, timeout time.Duration) (*models.MSampleBlock, error) {
	s.mu.Lock()
	if !s.started {
		s.mu.Unlock()
		return nil, helpers.NewAcquisitionFault("device not started", nil)
	}
	if s.fault != nil {
		err := s.fault
		s.mu.Unlock()
		return nil, helpers.NewAcquisitionFault("device failure", err)
	}
	if s.pendingStalls > 0 {
		s.pendingStalls--
		s.mu.Unlock()
		return nil, helpers.NewAcquisitionStall("read timed out", nil)
	}

	startIdx := s.sampleIndex
	s.sampleIndex += uint64(n)
	rate := s.rate
	channels := s.channels
	realtime := s.realtime
	armedAt := s.startTime
	s.mu.Unlock()

	if realtime {
		// Pace against the wall clock: the block is "ready" once its last
		// sample's nominal time has passed. Waiting longer than the read
		// timeout is a stall.
		ready := armedAt.Add(time.Duration(float64(startIdx+uint64(n)) / rate * float64(time.Second)))
		wait := time.Until(ready)
		if wait > timeout {
			time.Sleep(timeout)
			return nil, helpers.NewAcquisitionStall("read timed out", nil)
		}
		if wait > 0 {
			time.Sleep(wait)
		}
	}

	block := &models.MSampleBlock{
		Timestamps: make([]float64, n),
		Values:     make([][]float64, n),
		Channels:   channels,
	}

	for i := 0; i < n; i++ {
		idx := startIdx + uint64(i)
		t := float64(idx) / rate // seconds since arm
		block.Timestamps[i] = t * 1000.0

		row := make([]float64, channels)
		for c := 0; c < channels; c++ {
			freq := 50.0 * float64(c+1)
			row[c] = math.Sin(2*math.Pi*freq*t) + 0.02*s.rng.NormFloat64()
		}
		block.Values[i] = row
	}

	return block, nil
}

// -----------------------------------------------------------------------------

func (s *SimulatedSource) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.started = false
	s.Logger.Info("Simulated device disarmed after %d samples", s.sampleIndex)
	return nil
}

// -----------------------------------------------------------------------------
// Fault injection hooks
// -----------------------------------------------------------------------------

// InjectStalls makes the next n reads time out.
func (s *SimulatedSource) InjectStalls(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pendingStalls = n
}

// InjectFault makes every subsequent read fail fatally.
func (s *SimulatedSource) InjectFault(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err == nil {
		err = fmt.Errorf("simulated device disconnect")
	}
	s.fault = err
}
