package models

// MSampleBlock represents one timestamped reading across all active channels
// from a single acquisition cycle. Immutable once pushed into the ring buffer.
type MSampleBlock struct {
	Timestamps []float64   `json:"timestamps"` // milliseconds since run start
	Values     [][]float64 `json:"values"`     // Values[i][c]: sample i, channel c
	Channels   int         `json:"channels"`
}

// -----------------------------------------------------------------------------

// Len returns the number of samples (per channel) in the block.
func (b *MSampleBlock) Len() int {
	if b == nil {
		return 0
	}
	return len(b.Timestamps)
}
