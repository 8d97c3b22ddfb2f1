package sim

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/san-kum/pbdsim/internal/compute"
	"github.com/san-kum/pbdsim/internal/metrics"
	"github.com/san-kum/pbdsim/internal/pbd"
)

// Engine schedules substeps of one set of groups on a compute backend and
// aggregates the device time of every dispatch.
type Engine struct {
	cfg     Config
	backend compute.Backend
	groups  []pbd.Group
	timing  *metrics.Timing
	metrics []Metric

	frame   int
	substep int
	closed  bool
}

// New validates cfg, initializes backend for len(groups) groups and uploads
// a copy of groups. The caller keeps ownership of groups.
func New(cfg Config, backend compute.Backend, groups []pbd.Group) (*Engine, error) {
	if err := validateConfig(cfg); err != nil {
		return nil, err
	}
	if backend == nil {
		return nil, ErrNoBackend
	}
	if len(groups) == 0 {
		return nil, ErrNoGroups
	}

	if err := backend.Init(cfg.Params, len(groups)); err != nil {
		return nil, fmt.Errorf("initializing %s backend: %w", backend.Name(), err)
	}
	e := &Engine{
		cfg:     cfg,
		backend: backend,
		groups:  pbd.Clone(groups),
		timing:  metrics.NewTiming(cfg.KeepSamples),
	}
	if err := backend.Upload(e.groups); err != nil {
		backend.Cleanup()
		return nil, fmt.Errorf("uploading groups: %w", err)
	}
	slog.Debug("engine ready", "backend", backend.Name(), "groups", len(groups),
		"lanes", compute.Lanes(len(groups)), "substeps", cfg.Substeps, "frames", cfg.Frames)
	return e, nil
}

func validateConfig(cfg Config) error {
	if cfg.Substeps <= 0 {
		return fmt.Errorf("%w: substeps must be positive, got %d", ErrInvalidConfig, cfg.Substeps)
	}
	if cfg.Frames <= 0 {
		return fmt.Errorf("%w: frames must be positive, got %d", ErrInvalidConfig, cfg.Frames)
	}
	if cfg.Mode != FullTrace && cfg.Mode != EndsOnly {
		return fmt.Errorf("%w: unknown %s", ErrInvalidConfig, cfg.Mode)
	}
	if err := cfg.Params.Validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	return nil
}

func (e *Engine) AddMetric(m Metric) { e.metrics = append(e.metrics, m) }

// Groups returns the host copy as of the last download.
func (e *Engine) Groups() []pbd.Group { return e.groups }

func (e *Engine) Timing() *metrics.Timing { return e.timing }

func (e *Engine) Backend() compute.Backend { return e.backend }

// Substep dispatches the four phases in order. Every dispatch completes
// before the next one is issued.
func (e *Engine) Substep() error {
	if e.closed {
		return ErrClosed
	}
	for _, phase := range pbd.Phases {
		d, err := e.backend.Dispatch(phase)
		if err != nil {
			return &FrameError{Frame: e.frame, Substep: e.substep, Wrapped: err}
		}
		e.timing.Record(phase, d)
	}
	e.substep++
	return nil
}

func (e *Engine) advance() error {
	for s := 0; s < e.cfg.Substeps; s++ {
		if err := e.Substep(); err != nil {
			return err
		}
	}
	e.frame++
	return nil
}

// Download refreshes the host copy from the device.
func (e *Engine) Download() error {
	if e.closed {
		return ErrClosed
	}
	if err := e.backend.Download(e.groups); err != nil {
		return fmt.Errorf("downloading groups: %w", err)
	}
	return nil
}

// RunFrame runs one frame of substeps and downloads the result.
func (e *Engine) RunFrame() error {
	if err := e.advance(); err != nil {
		return err
	}
	return e.Download()
}

// Run advances cfg.Frames frames and hands the observed states to obs,
// which may be nil. The context is checked between frames.
func (e *Engine) Run(ctx context.Context, obs Observer) (*Result, error) {
	if e.closed {
		return nil, ErrClosed
	}
	if obs == nil {
		obs = Observers(nil)
	}
	for _, m := range e.metrics {
		m.Reset()
	}

	start := time.Now()
	observed := 0
	observe := func(frame int, groups []pbd.Group) error {
		for i := range groups {
			if !groups[i].IsValid() {
				return &FrameError{Frame: e.frame, Substep: e.substep, Wrapped: ErrInvalidState}
			}
		}
		for _, m := range e.metrics {
			m.Observe(frame, groups)
		}
		observed++
		if err := obs.Observe(frame, groups); err != nil {
			return fmt.Errorf("observing frame %d: %w", frame, err)
		}
		return nil
	}

	switch e.cfg.Mode {
	case FullTrace:
		if err := observe(0, e.groups); err != nil {
			return nil, err
		}
		for f := 1; f <= e.cfg.Frames; f++ {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			if err := e.RunFrame(); err != nil {
				return nil, err
			}
			slog.Debug("frame done", "frame", f, "total_ns", e.timing.Total().Nanoseconds())
			if err := observe(f, e.groups); err != nil {
				return nil, err
			}
		}

	case EndsOnly:
		initial := pbd.Clone(e.groups)
		for f := 1; f <= e.cfg.Frames; f++ {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			if err := e.advance(); err != nil {
				return nil, err
			}
		}
		if err := e.Download(); err != nil {
			return nil, err
		}
		if err := observe(0, initial); err != nil {
			return nil, err
		}
		if err := observe(1, e.groups); err != nil {
			return nil, err
		}
	}

	res := &Result{
		Groups:         len(e.groups),
		Backend:        e.backend.Name(),
		Mode:           e.cfg.Mode.String(),
		FramesRun:      e.frame,
		SubstepsRun:    e.substep,
		ObservedFrames: observed,
		Timing:         e.timing.Summary(len(e.groups)),
		Metrics:        make(map[string]float64, len(e.metrics)),
	}
	for _, m := range e.metrics {
		res.Metrics[m.Name()] = m.Value()
	}
	slog.Info("run complete", "mode", res.Mode, "frames", res.FramesRun,
		"substeps", res.SubstepsRun, "wall", time.Since(start).Round(time.Millisecond), "timing", res.Timing)
	return res, nil
}

// Close releases the backend. It is safe to call more than once.
func (e *Engine) Close() {
	if e.closed {
		return
	}
	e.closed = true
	e.backend.Cleanup()
}
