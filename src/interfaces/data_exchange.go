package interfaces

import "daq-observer/src/models"

// -----------------------------------------------------------------------------
// IDataExchanger defines the interface for sharing data with the display
// collaborator (server/push).
// -----------------------------------------------------------------------------

type IDataExchanger interface {

	// -----------------------------------------------------------------------------
	// Broadcast pushes a display frame to connected listeners
	Broadcast(frame *models.MDisplayFrame)

	// -----------------------------------------------------------------------------
	// UpdateFrame updates the internal state without broadcasting
	UpdateFrame(frame *models.MDisplayFrame)

	// -----------------------------------------------------------------------------
	// Start the server
	Start() error

	// -----------------------------------------------------------------------------
	// Stop the server gracefully
	Stop() error
}
