package sweep

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"

	"gonum.org/v1/gonum/stat"

	"github.com/san-kum/pbdsim/internal/compute"
	"github.com/san-kum/pbdsim/internal/metrics"
	"github.com/san-kum/pbdsim/internal/pbd"
	"github.com/san-kum/pbdsim/internal/sim"
)

// MonteCarloConfig describes repeated runs over randomly seeded layouts.
type MonteCarloConfig struct {
	Trials int
	Groups int
	// Seed drives the per-trial layout seeds and radius perturbations.
	Seed int64
	// Perturbation scales the bead radius range of each trial by a factor
	// drawn uniformly from [1-Perturbation, 1+Perturbation].
	Perturbation float64
	// Tolerance is the largest wire distance a stable trial may reach.
	Tolerance float64

	Sim        sim.Config
	Init       pbd.InitOptions
	NewBackend func() (compute.Backend, error)
}

// Trial is the outcome of one Monte Carlo run.
type Trial struct {
	ID          int     `json:"id"`
	Seed        int64   `json:"seed"`
	RadiusScale float64 `json:"radius_scale"`
	WireDrift   float64 `json:"wire_drift"`
	Penetration float64 `json:"penetration"`
	Stable      bool    `json:"stable"`
}

// RunMonteCarlo runs cfg.Trials simulations, each seeded from a generator
// initialized with cfg.Seed. A run that leaves the valid state space counts
// as an unstable trial instead of failing the study.
func RunMonteCarlo(ctx context.Context, cfg MonteCarloConfig) ([]Trial, error) {
	if cfg.Trials <= 0 || cfg.Groups <= 0 {
		return nil, fmt.Errorf("%w: %d trials of %d groups", sim.ErrInvalidConfig, cfg.Trials, cfg.Groups)
	}
	if cfg.NewBackend == nil {
		cfg.NewBackend = func() (compute.Backend, error) { return compute.New("auto") }
	}

	rng := rand.New(rand.NewSource(cfg.Seed))
	trials := make([]Trial, 0, cfg.Trials)
	for i := 0; i < cfg.Trials; i++ {
		if err := ctx.Err(); err != nil {
			return trials, err
		}
		tr := Trial{
			ID:          i,
			Seed:        rng.Int63(),
			RadiusScale: 1 + (rng.Float64()*2-1)*cfg.Perturbation,
		}
		if err := runTrial(ctx, &tr, cfg); err != nil {
			return trials, fmt.Errorf("trial %d: %w", i, err)
		}
		trials = append(trials, tr)

		if (i+1)%10 == 0 {
			slog.Info("monte carlo", "done", i+1, "trials", cfg.Trials)
		}
	}
	return trials, nil
}

func runTrial(ctx context.Context, tr *Trial, cfg MonteCarloConfig) error {
	opts := cfg.Init
	opts.Seed = tr.Seed
	opts.MinRadius *= float32(tr.RadiusScale)
	opts.MaxRadius *= float32(tr.RadiusScale)
	if err := opts.Validate(); err != nil {
		return err
	}

	backend, err := cfg.NewBackend()
	if err != nil {
		return err
	}
	e, err := sim.New(cfg.Sim, backend, pbd.NewGroups(cfg.Groups, opts))
	if err != nil {
		return err
	}
	defer e.Close()

	drift, pen := metrics.NewWireDrift(), metrics.NewPenetration()
	e.AddMetric(drift)
	e.AddMetric(pen)

	_, err = e.Run(ctx, nil)
	switch {
	case errors.Is(err, sim.ErrInvalidState):
		tr.Stable = false
	case err != nil:
		return err
	default:
		tr.Stable = drift.Value() <= cfg.Tolerance
	}
	tr.WireDrift, tr.Penetration = drift.Value(), pen.Value()
	return nil
}

// MonteCarloStats counts stable and unstable trials and reports the mean and
// standard deviation of the wire drift over all of them.
func MonteCarloStats(trials []Trial) (stable, unstable int, driftMean, driftStd float64) {
	drifts := make([]float64, 0, len(trials))
	for _, t := range trials {
		if t.Stable {
			stable++
		} else {
			unstable++
		}
		drifts = append(drifts, t.WireDrift)
	}
	switch len(drifts) {
	case 0:
	case 1:
		driftMean = drifts[0]
	default:
		driftMean, driftStd = stat.MeanStdDev(drifts, nil)
	}
	return stable, unstable, driftMean, driftStd
}
