// Package sweep times ends-only runs over a doubling range of group counts.
package sweep

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"time"

	"gonum.org/v1/gonum/stat"

	"github.com/san-kum/pbdsim/internal/compute"
	"github.com/san-kum/pbdsim/internal/pbd"
	"github.com/san-kum/pbdsim/internal/sim"
)

// DefaultMax is the largest group count of a default sweep.
const DefaultMax = 1 << 19

type Options struct {
	Min, Max int
	Sim      sim.Config
	Init     pbd.InitOptions

	// NewBackend returns a fresh backend for every point.
	NewBackend func() (compute.Backend, error)

	// Observer, when set, returns the observer of the run with n groups.
	Observer func(n int) (sim.Observer, func() error, error)
}

// Point is the outcome of one run.
type Point struct {
	Groups int           `json:"groups"`
	Sum    time.Duration `json:"sum_ns"`
	Mean   time.Duration `json:"mean_ns"`
	Wall   time.Duration `json:"wall_ns"`
}

type Result struct {
	Points []Point `json:"points"`
	// Exponent is the least squares slope of log2(sum) over log2(groups).
	// A value near 1 means the total grows linearly with the group count.
	Exponent float64 `json:"exponent"`
}

// Counts lists the powers of two from min to max inclusive.
func Counts(min, max int) []int {
	if min < 1 {
		min = 1
	}
	var counts []int
	for n := 1; n <= max; n <<= 1 {
		if n >= min {
			counts = append(counts, n)
		}
	}
	return counts
}

func Run(ctx context.Context, opts Options) (*Result, error) {
	counts := Counts(opts.Min, opts.Max)
	if len(counts) == 0 {
		return nil, fmt.Errorf("empty sweep range [%d, %d]", opts.Min, opts.Max)
	}
	if opts.NewBackend == nil {
		opts.NewBackend = func() (compute.Backend, error) { return compute.New("auto") }
	}
	cfg := opts.Sim
	cfg.Mode = sim.EndsOnly

	res := &Result{Points: make([]Point, 0, len(counts))}
	for _, n := range counts {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		p, err := runPoint(ctx, n, cfg, opts)
		if err != nil {
			return res, fmt.Errorf("sweep at %d groups: %w", n, err)
		}
		slog.Info("sweep point", "groups", n, "sum_ns", p.Sum.Nanoseconds(), "mean_ns", p.Mean.Nanoseconds())
		res.Points = append(res.Points, p)
	}
	res.Exponent = Exponent(res.Points)
	return res, nil
}

func runPoint(ctx context.Context, n int, cfg sim.Config, opts Options) (Point, error) {
	backend, err := opts.NewBackend()
	if err != nil {
		return Point{}, err
	}
	e, err := sim.New(cfg, backend, pbd.NewGroups(n, opts.Init))
	if err != nil {
		return Point{}, err
	}
	defer e.Close()

	var obs sim.Observer
	closeObs := func() error { return nil }
	if opts.Observer != nil {
		if obs, closeObs, err = opts.Observer(n); err != nil {
			return Point{}, err
		}
	}

	start := time.Now()
	r, err := e.Run(ctx, obs)
	if cerr := closeObs(); err == nil {
		err = cerr
	}
	if err != nil {
		return Point{}, err
	}
	return Point{
		Groups: n,
		Sum:    r.Timing.Total,
		Mean:   r.Timing.Mean,
		Wall:   time.Since(start),
	}, nil
}

// Exponent fits log2(sum) against log2(groups). Points without timing are
// skipped; fewer than two usable points give zero.
func Exponent(points []Point) float64 {
	var xs, ys []float64
	for _, p := range points {
		if p.Groups <= 0 || p.Sum <= 0 {
			continue
		}
		xs = append(xs, math.Log2(float64(p.Groups)))
		ys = append(ys, math.Log2(float64(p.Sum)))
	}
	if len(xs) < 2 {
		return 0
	}
	_, beta := stat.LinearRegression(xs, ys, nil, false)
	return beta
}
