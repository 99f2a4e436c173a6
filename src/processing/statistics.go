package processing

import (
	"math"

	"daq-observer/src/models"
)

// -----------------------------------------------------------------------------

// CalculateChannelStats computes descriptive statistics for one channel over
// the processed window.
func CalculateChannelStats(channel int, data []float64) models.MChannelStats {
	stats := models.MChannelStats{
		Channel: channel,
		Samples: len(data),
	}
	if len(data) == 0 {
		return stats
	}

	stats.Min = data[0]
	stats.Max = data[0]
	sum := 0.0
	sumSq := 0.0
	for _, v := range data {
		if v < stats.Min {
			stats.Min = v
		}
		if v > stats.Max {
			stats.Max = v
		}
		sum += v
		sumSq += v * v
	}

	n := float64(len(data))
	stats.Mean = sum / n
	stats.RMS = math.Sqrt(sumSq / n)

	// Population standard deviation (N denominator)
	if len(data) > 1 {
		varianceSum := 0.0
		for _, v := range data {
			varianceSum += (v - stats.Mean) * (v - stats.Mean)
		}
		stats.Std = math.Sqrt(varianceSum / n)
	}

	return stats
}

// -----------------------------------------------------------------------------

// CalculateMeanStd computes mean and standard deviation.
func CalculateMeanStd(data []float64) (float64, float64) {
	if len(data) == 0 {
		return 0, 0
	}

	sum := 0.0
	for _, v := range data {
		sum += v
	}
	mean := sum / float64(len(data))

	if len(data) == 1 {
		return mean, 0
	}

	varianceSum := 0.0
	for _, v := range data {
		varianceSum += (v - mean) * (v - mean)
	}
	std := math.Sqrt(varianceSum / float64(len(data)))
	return mean, std
}
