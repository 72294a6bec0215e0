package llm

import (
	"errors"
	"fmt"
)

// ErrCancelled is returned when the caller's context was cancelled before the
// reply arrived. It is an expected outcome, not a failure.
var ErrCancelled = errors.New("completion request cancelled")

// TransportError reports a non-2xx reply or a failure to reach the service.
// StatusCode is zero when no HTTP response was received.
type TransportError struct {
	StatusCode int
	Err        error
}

func (e *TransportError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("completion service returned status %d", e.StatusCode)
	}
	return fmt.Sprintf("completion service unreachable: %v", e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// ProtocolError reports a successful reply whose body could not be understood.
type ProtocolError struct {
	Err error
}

func (e *ProtocolError) Error() string {
	return fmt.Sprintf("malformed completion response: %v", e.Err)
}

func (e *ProtocolError) Unwrap() error { return e.Err }

// IsReportable tells whether err is a failure the user should hear about.
// Cancellation is not.
func IsReportable(err error) bool {
	return err != nil && !errors.Is(err, ErrCancelled)
}
