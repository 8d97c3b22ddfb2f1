package compute

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/san-kum/pbdsim/internal/pbd"
)

var (
	// ErrUnavailable indicates the requested backend cannot run on this host
	// or was not compiled in.
	ErrUnavailable = errors.New("compute: backend not available")

	// ErrNotInitialized indicates use of a backend before Init.
	ErrNotInitialized = errors.New("compute: backend not initialized")

	// ErrTimestamp indicates a dispatch whose device timestamps could not be
	// read or were out of order.
	ErrTimestamp = errors.New("compute: invalid dispatch timestamps")

	// ErrSizeMismatch indicates a host buffer whose length differs from the
	// device buffer.
	ErrSizeMismatch = errors.New("compute: host and device group counts differ")
)

// DispatchError wraps a failure of one phase dispatch.
type DispatchError struct {
	Phase   pbd.Phase
	Wrapped error
}

func (e *DispatchError) Error() string {
	return fmt.Sprintf("dispatch %s: %v", e.Phase, e.Wrapped)
}

func (e *DispatchError) Unwrap() error {
	return e.Wrapped
}

// Backend runs the substep kernels over a device-resident copy of the group
// state. Each Dispatch is synchronous: it returns after every lane of the
// phase has finished, together with the device execution time.
type Backend interface {
	Name() string
	Available() bool
	Init(p pbd.Params, groupCount int) error
	Upload(groups []pbd.Group) error
	Dispatch(phase pbd.Phase) (time.Duration, error)
	Download(groups []pbd.Group) error
	Cleanup()
}

// SourceSetter is implemented by backends that compile kernel source at Init.
type SourceSetter interface {
	SetKernelSource(path string)
}

// Lanes is the global work size of every dispatch.
func Lanes(groupCount int) int {
	return groupCount * pbd.BeadCount
}

// New returns the backend called name. "auto" prefers OpenCL and falls back
// to the CPU.
func New(name string) (Backend, error) {
	switch name {
	case "", "auto":
		return AutoSelectBackend(), nil
	case "cpu":
		return NewCPUBackend(), nil
	case "opencl":
		cl := NewOpenCLBackend()
		if !cl.Available() {
			return nil, fmt.Errorf("%w: %s", ErrUnavailable, cl.Name())
		}
		return cl, nil
	default:
		return nil, fmt.Errorf("unknown backend: %s (available: auto, cpu, opencl)", name)
	}
}

func AutoSelectBackend() Backend {
	cl := NewOpenCLBackend()
	if cl.Available() {
		return cl
	}
	slog.Debug("opencl unavailable, using cpu backend", "reason", cl.Name())
	return NewCPUBackend()
}

func checkTimestamps(start, end int64) (time.Duration, error) {
	if start < 0 || end < start {
		return 0, fmt.Errorf("%w: start=%d end=%d", ErrTimestamp, start, end)
	}
	return time.Duration(end - start), nil
}
