package interfaces

import (
	"time"

	"daq-observer/src/models"
)

// -----------------------------------------------------------------------------
// IHardwareSource is the measurement device the producer reads from. The core
// treats it as an opaque bounded-latency source and does not know the
// underlying protocol.
// -----------------------------------------------------------------------------

type IHardwareSource interface {

	// Name returns the device identifier
	Name() string

	// -----------------------------------------------------------------------------

	// Start arms the device for the configured channel set and sample rate
	Start(cfg models.MAcquisitionConfig) error

	// -----------------------------------------------------------------------------

	// ReadBlock waits up to timeout for n samples per channel and returns them
	// as one block. A timeout is reported as an AcquisitionStall, a device
	// failure as an AcquisitionFault.
	ReadBlock(n int, timeout time.Duration) (*models.MSampleBlock, error)

	// -----------------------------------------------------------------------------

	// Stop disarms the device
	Stop() error
}
