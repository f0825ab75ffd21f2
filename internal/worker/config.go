// Package worker provides background job processing for ClinicDesk.
package worker

import (
	"time"
)

// RefreshConfig holds configuration for the occupancy refresh job.
type RefreshConfig struct {
	// WeeksAhead is how many consecutive weeks to refresh, starting at the
	// requested week. Default: 4
	WeeksAhead int

	// Concurrency is the number of weeks refreshed concurrently.
	// Default: 3
	Concurrency int

	// Timeout is the timeout for refreshing a single week.
	// Default: 30 seconds
	Timeout time.Duration
}

// DefaultRefreshConfig returns the default refresh configuration.
func DefaultRefreshConfig() RefreshConfig {
	return RefreshConfig{
		WeeksAhead:  4,
		Concurrency: 3,
		Timeout:     30 * time.Second,
	}
}
