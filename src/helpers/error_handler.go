package helpers

import (
	"errors"
	"fmt"
	"time"
)

// -----------------------------------------------------------------------------
// Custom Error Types
// -----------------------------------------------------------------------------

type DAQError struct {
	Message string
	Cause   error
}

func (e *DAQError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *DAQError) Unwrap() error {
	return e.Cause
}

// -----------------------------------------------------------------------------
// Error taxonomy. AcquisitionFault is fatal to the current run,
// AcquisitionStall and ProcessingError are absorbed and counted.
// -----------------------------------------------------------------------------

type AcquisitionFault struct{ DAQError }
type AcquisitionStall struct{ DAQError }
type ProcessingError struct{ DAQError }

func NewAcquisitionFault(msg string, cause error) *AcquisitionFault {
	return &AcquisitionFault{DAQError{Message: msg, Cause: cause}}
}

func NewAcquisitionStall(msg string, cause error) *AcquisitionStall {
	return &AcquisitionStall{DAQError{Message: msg, Cause: cause}}
}

func NewProcessingError(msg string, cause error) *ProcessingError {
	return &ProcessingError{DAQError{Message: msg, Cause: cause}}
}

// -----------------------------------------------------------------------------

// IsFault reports whether err carries a device-level fatal condition.
func IsFault(err error) bool {
	var fault *AcquisitionFault
	return errors.As(err, &fault)
}

// IsStall reports whether err is a transient read timeout.
func IsStall(err error) bool {
	var stall *AcquisitionStall
	return errors.As(err, &stall)
}

// -----------------------------------------------------------------------------
// Retry Logic
// -----------------------------------------------------------------------------

// RetryWithBackoff attempts to execute the operation up to maxRetries times
// with exponential backoff. A fault aborts the retry loop immediately: retrying
// a disconnected device only delays the escalation.
func RetryWithBackoff(operation string, maxRetries int, baseDelay time.Duration, fn func() (interface{}, error)) (interface{}, error) {
	var lastErr error

	for attempt := 0; attempt < maxRetries; attempt++ {
		res, err := fn()
		if err == nil {
			return res, nil
		}
		if IsFault(err) {
			return nil, err
		}

		lastErr = err
		if attempt == maxRetries-1 {
			break
		}

		delay := baseDelay * (1 << attempt)
		time.Sleep(delay)
	}

	return nil, fmt.Errorf("operation %s failed after %d attempts: %w", operation, maxRetries, lastErr)
}
