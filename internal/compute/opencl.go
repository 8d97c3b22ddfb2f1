//go:build opencl

package compute

import (
	"errors"
	"fmt"
	"log/slog"
	"time"
	"unsafe"

	"github.com/jgillich/go-opencl/cl"
	"github.com/san-kum/pbdsim/internal/pbd"
)

// OpenCLBackend runs the substep kernels on the first OpenCL device found,
// preferring GPUs. The queue is created with profiling enabled so every
// dispatch reports its own start and end timestamps.
type OpenCLBackend struct {
	available  bool
	deviceName string
	reason     string
	sourcePath string

	device  *cl.Device
	context *cl.Context
	queue   *cl.CommandQueue
	program *cl.Program
	kernels [len(pbd.Phases)]*cl.Kernel
	buf     *cl.MemObject
	groups  int
}

func NewOpenCLBackend() *OpenCLBackend {
	b := &OpenCLBackend{}
	device, err := pickDevice()
	if err != nil {
		b.reason = err.Error()
		return b
	}
	b.device = device
	b.deviceName = device.Name()
	b.available = true
	return b
}

// SetKernelSource makes Init compile the file at path instead of the
// embedded kernels.
func (b *OpenCLBackend) SetKernelSource(path string) {
	b.sourcePath = path
}

func pickDevice() (*cl.Device, error) {
	platforms, err := cl.GetPlatforms()
	if err != nil {
		return nil, fmt.Errorf("querying OpenCL platforms: %w", err)
	}
	if len(platforms) == 0 {
		return nil, errors.New("no OpenCL platforms available")
	}
	for _, kind := range []cl.DeviceType{cl.DeviceTypeGPU, cl.DeviceTypeAll} {
		for _, p := range platforms {
			devices, derr := p.GetDevices(kind)
			if derr != nil && derr != cl.ErrDeviceNotFound {
				continue
			}
			if len(devices) > 0 {
				return devices[0], nil
			}
		}
	}
	return nil, errors.New("no suitable OpenCL devices found")
}

func (b *OpenCLBackend) Name() string {
	if b.available {
		return "opencl (" + b.deviceName + ")"
	}
	return "opencl (not available: " + b.reason + ")"
}

func (b *OpenCLBackend) Available() bool { return b.available }

func (b *OpenCLBackend) Init(p pbd.Params, groupCount int) error {
	if !b.available {
		return fmt.Errorf("%w: %s", ErrUnavailable, b.reason)
	}
	if err := p.Validate(); err != nil {
		return err
	}
	src, err := KernelSource(b.sourcePath)
	if err != nil {
		return err
	}

	ctx, err := cl.CreateContext([]*cl.Device{b.device})
	if err != nil {
		return fmt.Errorf("creating OpenCL context: %w", err)
	}
	b.context = ctx

	queue, err := ctx.CreateCommandQueue(b.device, cl.CommandQueueProfilingEnable)
	if err != nil {
		b.Cleanup()
		return fmt.Errorf("creating OpenCL command queue: %w", err)
	}
	b.queue = queue

	program, err := ctx.CreateProgramWithSource([]string{src})
	if err != nil {
		b.Cleanup()
		return fmt.Errorf("creating OpenCL program: %w", err)
	}
	b.program = program

	if err := program.BuildProgram([]*cl.Device{b.device}, BuildOptions(p)); err != nil {
		b.Cleanup()
		var buildErr cl.BuildError
		if errors.As(err, &buildErr) {
			return fmt.Errorf("building OpenCL program: %s", string(buildErr))
		}
		return fmt.Errorf("building OpenCL program: %w", err)
	}

	for _, phase := range pbd.Phases {
		k, err := program.CreateKernel(phase.String())
		if err != nil {
			b.Cleanup()
			return fmt.Errorf("creating kernel %s: %w", phase, err)
		}
		b.kernels[phase] = k
	}

	size := groupCount * pbd.GroupBytes
	if size == 0 {
		size = pbd.GroupBytes
	}
	buf, err := ctx.CreateEmptyBuffer(cl.MemReadWrite, size)
	if err != nil {
		b.Cleanup()
		return fmt.Errorf("creating group buffer: %w", err)
	}
	b.buf = buf
	b.groups = groupCount

	for _, phase := range pbd.Phases {
		if err := b.kernels[phase].SetArgBuffer(0, buf); err != nil {
			b.Cleanup()
			return fmt.Errorf("binding group buffer to %s: %w", phase, err)
		}
	}

	slog.Info("opencl backend ready", "device", b.deviceName, "groups", groupCount, "lanes", Lanes(groupCount))
	return nil
}

func (b *OpenCLBackend) Upload(groups []pbd.Group) error {
	if b.buf == nil {
		return ErrNotInitialized
	}
	if len(groups) != b.groups {
		return ErrSizeMismatch
	}
	if len(groups) == 0 {
		return nil
	}
	size := len(groups) * pbd.GroupBytes
	if _, err := b.queue.EnqueueWriteBuffer(b.buf, true, 0, size, unsafe.Pointer(&groups[0]), nil); err != nil {
		return fmt.Errorf("uploading groups: %w", err)
	}
	return nil
}

func (b *OpenCLBackend) Download(groups []pbd.Group) error {
	if b.buf == nil {
		return ErrNotInitialized
	}
	if len(groups) != b.groups {
		return ErrSizeMismatch
	}
	if len(groups) == 0 {
		return nil
	}
	size := len(groups) * pbd.GroupBytes
	if _, err := b.queue.EnqueueReadBuffer(b.buf, true, 0, size, unsafe.Pointer(&groups[0]), nil); err != nil {
		return fmt.Errorf("downloading groups: %w", err)
	}
	return nil
}

func (b *OpenCLBackend) Dispatch(phase pbd.Phase) (time.Duration, error) {
	if b.buf == nil {
		return 0, &DispatchError{Phase: phase, Wrapped: ErrNotInitialized}
	}
	if b.groups == 0 {
		return 0, nil
	}
	ev, err := b.queue.EnqueueNDRangeKernel(b.kernels[phase], nil, []int{Lanes(b.groups)}, nil, nil)
	if err != nil {
		return 0, &DispatchError{Phase: phase, Wrapped: err}
	}
	defer ev.Release()

	if err := cl.WaitForEvents([]*cl.Event{ev}); err != nil {
		return 0, &DispatchError{Phase: phase, Wrapped: err}
	}
	start, err := ev.GetEventProfilingInfo(cl.ProfilingInfoCommandStart)
	if err != nil {
		return 0, &DispatchError{Phase: phase, Wrapped: fmt.Errorf("%w: %v", ErrTimestamp, err)}
	}
	end, err := ev.GetEventProfilingInfo(cl.ProfilingInfoCommandEnd)
	if err != nil {
		return 0, &DispatchError{Phase: phase, Wrapped: fmt.Errorf("%w: %v", ErrTimestamp, err)}
	}
	d, err := checkTimestamps(start, end)
	if err != nil {
		return 0, &DispatchError{Phase: phase, Wrapped: err}
	}
	return d, nil
}

func (b *OpenCLBackend) Cleanup() {
	if b.buf != nil {
		b.buf.Release()
		b.buf = nil
	}
	for i, k := range b.kernels {
		if k != nil {
			k.Release()
			b.kernels[i] = nil
		}
	}
	if b.program != nil {
		b.program.Release()
		b.program = nil
	}
	if b.queue != nil {
		b.queue.Release()
		b.queue = nil
	}
	if b.context != nil {
		b.context.Release()
		b.context = nil
	}
}
