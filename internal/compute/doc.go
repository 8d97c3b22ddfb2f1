// Package compute provides the devices the substep kernels are dispatched on.
//
// Two backends implement [Backend]:
//
//   - OpenCL: the kernels in kernels.cl compiled for the first GPU (or any
//     device) found, timed with event profiling
//   - CPU: a pool of worker goroutines running the pbd lane functions, timed
//     with the monotonic clock
//
// Dispatches are synchronous, so consecutive phases are separated by a full
// barrier:
//
//	backend, _ := compute.New("auto")
//	_ = backend.Init(params, len(groups))
//	_ = backend.Upload(groups)
//	for _, phase := range pbd.Phases {
//		d, err := backend.Dispatch(phase)
//		...
//	}
//	_ = backend.Download(groups)
//
// Build with OpenCL support:
//
//	go build -tags opencl ./cmd/pbd
package compute
