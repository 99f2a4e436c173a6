package pipeline

// -----------------------------------------------------------------------------
// Operating mode. The threshold splits runs into interactive low-rate
// operation and throughput-first high-rate operation; the mode is fixed for
// the lifetime of a run.
// -----------------------------------------------------------------------------

type Mode string

const (
	// ModeStandard refreshes the display on every processing result.
	ModeStandard Mode = "standard"

	// ModeHighPerformance decouples the display behind a fixed refresh gate
	// so rendering can never back-pressure acquisition.
	ModeHighPerformance Mode = "high_performance"
)

// -----------------------------------------------------------------------------

// SelectMode picks the mode for a nominal sample rate. Rates at or above the
// threshold run in high performance mode.
func SelectMode(rateHz, thresholdHz float64) Mode {
	if thresholdHz <= 0 {
		thresholdHz = 10000
	}
	if rateHz >= thresholdHz {
		return ModeHighPerformance
	}
	return ModeStandard
}
