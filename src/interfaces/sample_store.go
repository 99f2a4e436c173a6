package interfaces

import "daq-observer/src/models"

// -----------------------------------------------------------------------------
// ISampleStore defines the contract for the export collaborator. Export reads
// come from ReadWindow snapshots and never disturb pipeline cursors.
// -----------------------------------------------------------------------------

type ISampleStore interface {

	// -----------------------------------------------------------------------------

	// Initialize sets up the database schema and tables.
	Initialize() error

	// -----------------------------------------------------------------------------

	// SaveWindow persists one exported trace window for a run.
	SaveWindow(runID string, trace *models.MTrace) error

	// -----------------------------------------------------------------------------

	// CleanupOldData removes data older than the retention policy.
	CleanupOldData() error

	// -----------------------------------------------------------------------------

	// Close the database connection
	Close() error
}
