package models

// -----------------------------------------------------------------------------
// Leveled performance alerts. Advisory only: the monitor reports, it never
// alters pipeline behavior.
// -----------------------------------------------------------------------------

// Alert levels
const (
	AlertInfo     = "info"
	AlertWarning  = "warning"
	AlertCritical = "critical"
)

// MAlert is a structured, leveled performance event.
type MAlert struct {
	ID        string  `json:"id"`
	Level     string  `json:"level"`
	Category  string  `json:"category"` // rate_accuracy, occupancy, latency, pool, fault
	Message   string  `json:"message"`
	Value     float64 `json:"value"`
	Threshold float64 `json:"threshold"`
	Timestamp int64   `json:"timestamp"` // unix ms
}
