//go:build !opencl

package compute

import (
	"fmt"
	"time"

	"github.com/san-kum/pbdsim/internal/pbd"
)

type OpenCLBackend struct{}

func NewOpenCLBackend() *OpenCLBackend {
	return &OpenCLBackend{}
}

func (b *OpenCLBackend) SetKernelSource(string) {}

func (b *OpenCLBackend) Name() string    { return "opencl (not compiled in, build with -tags opencl)" }
func (b *OpenCLBackend) Available() bool { return false }
func (b *OpenCLBackend) Cleanup()        {}

func (b *OpenCLBackend) Init(pbd.Params, int) error {
	return fmt.Errorf("%w: %s", ErrUnavailable, b.Name())
}

func (b *OpenCLBackend) Upload([]pbd.Group) error   { return ErrNotInitialized }
func (b *OpenCLBackend) Download([]pbd.Group) error { return ErrNotInitialized }

func (b *OpenCLBackend) Dispatch(phase pbd.Phase) (time.Duration, error) {
	return 0, &DispatchError{Phase: phase, Wrapped: ErrNotInitialized}
}
