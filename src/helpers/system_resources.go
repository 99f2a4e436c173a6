package helpers

import "fmt"

// GetRecommendedPoolBudgetMB calculates a safe idle-memory budget for the
// block pool. Default policy: 5% of total RAM, clamped to [64MB, 512MB].
// Fallback: 64MB when total memory cannot be determined.
func GetRecommendedPoolBudgetMB() int {
	// Call OS-specific implementation
	totalMB := GetTotalSystemMemoryMB()
	if totalMB == 0 {
		fmt.Println("Warning: Could not determine system memory. Defaulting pool budget to 64MB.")
		return 64
	}

	budget := int(float64(totalMB) * 0.05)
	if budget < 64 {
		return 64
	}
	if budget > 512 {
		return 512
	}
	return budget
}
