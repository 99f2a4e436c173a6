package models

// MPerformanceMetrics represents the performance snapshot computed by the
// Performance Monitor on its fixed timer. Counters are cumulative since the
// start of the current acquisition run; rates are over the last interval.
type MPerformanceMetrics struct {
	Timestamp        int64   `json:"timestamp"` // unix ms
	RunID            string  `json:"run_id"`
	Mode             string  `json:"mode"`
	SampleRateHz     float64 `json:"sample_rate_hz"`
	AchievedRateHz   float64 `json:"achieved_rate_hz"`
	RateAccuracyPct  float64 `json:"rate_accuracy_pct"`
	OccupancyPct     float64 `json:"occupancy_pct"`
	SamplesRequested uint64  `json:"samples_requested"`
	SamplesAcquired  uint64  `json:"samples_acquired"`
	SamplesDropped   uint64  `json:"samples_dropped"`
	DroppedPerSec    float64 `json:"dropped_per_sec"`
	Stalls           uint64  `json:"stalls"`
	AvgProcessingMs  float64 `json:"avg_processing_ms"`
	MaxProcessingMs  float64 `json:"max_processing_ms"`
	ProcessedCycles  uint64  `json:"processed_cycles"`
	ProcessingErrors uint64  `json:"processing_errors"`
	PoolHits         uint64  `json:"pool_hits"`
	PoolAllocations  uint64  `json:"pool_allocations"`
}
