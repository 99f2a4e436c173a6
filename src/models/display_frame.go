package models

// -----------------------------------------------------------------------------
// Display gate payload. One frame per gate tick, carrying the latest trace
// window, the latest processing result and the metrics snapshot valid at
// that tick.
// -----------------------------------------------------------------------------

// MTrace is a per-channel time trace prepared for plotting (already
// decimated to the configured point budget).
type MTrace struct {
	Timestamps []float64   `json:"timestamps"` // milliseconds since run start
	Values     [][]float64 `json:"values"`     // Values[c][i]: channel c, sample i
	Channels   []string    `json:"channels"`
}

type MDisplayFrame struct {
	Type       string              `json:"type"` // "INITIAL" or "UPDATE"
	RunID      string              `json:"run_id"`
	Timestamp  int64               `json:"timestamp"` // unix ms
	Trace      *MTrace             `json:"trace,omitempty"`
	Result     *MProcessingResult  `json:"result,omitempty"`
	Metrics    MPerformanceMetrics `json:"metrics"`
	AlertLevel string              `json:"alert_level"`
}

// -----------------------------------------------------------------------------
// SubscribeCommand for display clients
// -----------------------------------------------------------------------------

type MSubscribeCommand struct {
	Command  string   `json:"command"`
	Channels []string `json:"channels"`
}
