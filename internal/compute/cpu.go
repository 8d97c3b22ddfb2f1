package compute

import (
	"runtime"
	"sync"
	"time"

	"github.com/san-kum/pbdsim/internal/pbd"
)

// parallelThreshold is the minimum group count that is split across
// workers. Smaller dispatches run on the calling goroutine.
const parallelThreshold = 16

type laneChunk struct {
	fn         pbd.LaneFunc
	start, end int // group range
}

// CPUBackend emulates a data-parallel device with a pool of persistent
// worker goroutines. Its "device memory" is a private copy of the groups,
// written only by Upload and dispatches and read back by Download.
type CPUBackend struct {
	workers int
	params  pbd.Params
	dev     []pbd.Group
	epoch   time.Time

	work    chan laneChunk
	done    chan struct{}
	stop    chan struct{}
	wg      sync.WaitGroup
	running bool
}

func NewCPUBackend() *CPUBackend {
	return &CPUBackend{
		workers: runtime.GOMAXPROCS(0),
	}
}

// NewCPUBackendWorkers returns a CPU backend limited to n workers.
func NewCPUBackendWorkers(n int) *CPUBackend {
	if n < 1 {
		n = 1
	}
	return &CPUBackend{workers: n}
}

func (c *CPUBackend) Name() string    { return "cpu" }
func (c *CPUBackend) Available() bool { return true }

func (c *CPUBackend) Init(p pbd.Params, groupCount int) error {
	if err := p.Validate(); err != nil {
		return err
	}
	c.params = p
	c.dev = make([]pbd.Group, groupCount)
	c.epoch = time.Now()
	if c.workers > 1 && groupCount >= parallelThreshold {
		c.startWorkers()
	}
	return nil
}

func (c *CPUBackend) Upload(groups []pbd.Group) error {
	if c.dev == nil {
		return ErrNotInitialized
	}
	if len(groups) != len(c.dev) {
		return ErrSizeMismatch
	}
	copy(c.dev, groups)
	return nil
}

func (c *CPUBackend) Download(groups []pbd.Group) error {
	if c.dev == nil {
		return ErrNotInitialized
	}
	if len(groups) != len(c.dev) {
		return ErrSizeMismatch
	}
	copy(groups, c.dev)
	return nil
}

// Dispatch runs one phase over every lane and blocks until all are done.
func (c *CPUBackend) Dispatch(phase pbd.Phase) (time.Duration, error) {
	if c.dev == nil {
		return 0, &DispatchError{Phase: phase, Wrapped: ErrNotInitialized}
	}
	fn := pbd.Lane(phase)
	n := len(c.dev)

	start := time.Since(c.epoch).Nanoseconds()
	if c.running {
		c.dispatchParallel(fn, n)
	} else {
		c.runGroups(fn, 0, n)
	}
	end := time.Since(c.epoch).Nanoseconds()

	d, err := checkTimestamps(start, end)
	if err != nil {
		return 0, &DispatchError{Phase: phase, Wrapped: err}
	}
	return d, nil
}

func (c *CPUBackend) Cleanup() {
	c.stopWorkers()
	c.dev = nil
}

func (c *CPUBackend) runGroups(fn pbd.LaneFunc, start, end int) {
	p := c.params
	for gi := start; gi < end; gi++ {
		g := &c.dev[gi]
		for b := 0; b < pbd.BeadCount; b++ {
			fn(g, b, p)
		}
	}
}

func (c *CPUBackend) dispatchParallel(fn pbd.LaneFunc, n int) {
	chunkSize := (n + c.workers - 1) / c.workers
	chunks := 0
	for start := 0; start < n; start += chunkSize {
		end := start + chunkSize
		if end > n {
			end = n
		}
		c.work <- laneChunk{fn: fn, start: start, end: end}
		chunks++
	}
	for i := 0; i < chunks; i++ {
		<-c.done
	}
}

func (c *CPUBackend) startWorkers() {
	if c.running {
		return
	}
	c.work = make(chan laneChunk, c.workers)
	c.done = make(chan struct{}, c.workers)
	c.stop = make(chan struct{})
	c.running = true

	for i := 0; i < c.workers; i++ {
		c.wg.Add(1)
		go c.worker()
	}
}

func (c *CPUBackend) stopWorkers() {
	if !c.running {
		return
	}
	close(c.stop)
	c.wg.Wait()
	close(c.work)
	close(c.done)
	c.running = false
}

func (c *CPUBackend) worker() {
	defer c.wg.Done()
	for {
		select {
		case <-c.stop:
			return
		case chunk, ok := <-c.work:
			if !ok {
				return
			}
			c.runGroups(chunk.fn, chunk.start, chunk.end)
			c.done <- struct{}{}
		}
	}
}
