package models

// -----------------------------------------------------------------------------
// Background Processor output. One immutable result per processing cycle.
// -----------------------------------------------------------------------------

// MChannelStats holds descriptive statistics for one channel over the
// processed window.
type MChannelStats struct {
	Channel int     `json:"channel"`
	Min     float64 `json:"min"`
	Max     float64 `json:"max"`
	Mean    float64 `json:"mean"`
	Std     float64 `json:"std"`
	RMS     float64 `json:"rms"`
	Samples int     `json:"samples"`
}

// MSpectrum is a windowed power spectrum for one channel.
type MSpectrum struct {
	Channel     int       `json:"channel"`
	Frequencies []float64 `json:"frequencies"` // Hz
	PowerDB     []float64 `json:"power_db"`
	FFTLength   int       `json:"fft_length"`
	WindowType  string    `json:"window_type"`
}

// MProcessingResult is emitted by the Background Processor toward the display
// gate. A pending result is replaced by a newer one, never queued up.
type MProcessingResult struct {
	Sequence    uint64          `json:"sequence"`
	Timestamp   int64           `json:"timestamp"` // unix ms at cycle end
	Stats       []MChannelStats `json:"stats"`
	Spectrum    *MSpectrum      `json:"spectrum,omitempty"`
	Filtered    bool            `json:"filtered"`
	CycleTimeMs float64         `json:"cycle_time_ms"`
}
