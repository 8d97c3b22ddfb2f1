package sim

import (
	"errors"
	"fmt"
)

// Domain errors for engine operations.
var (
	// ErrInvalidConfig indicates a run configuration that cannot be executed.
	ErrInvalidConfig = errors.New("sim: invalid configuration")

	// ErrNoGroups indicates an engine created without any groups to simulate.
	ErrNoGroups = errors.New("sim: no groups to simulate")

	// ErrNoBackend indicates an engine created without a compute backend.
	ErrNoBackend = errors.New("sim: no compute backend")

	// ErrClosed indicates use of an engine after Close.
	ErrClosed = errors.New("sim: engine closed")

	// ErrInvalidState indicates a downloaded state holding NaN or Inf.
	ErrInvalidState = errors.New("sim: invalid state (NaN or Inf detected)")
)

// FrameError wraps an error with the frame and substep it occurred in.
type FrameError struct {
	Frame   int
	Substep int
	Wrapped error
}

func (e *FrameError) Error() string {
	return fmt.Sprintf("frame %d substep %d: %v", e.Frame, e.Substep, e.Wrapped)
}

func (e *FrameError) Unwrap() error {
	return e.Wrapped
}
