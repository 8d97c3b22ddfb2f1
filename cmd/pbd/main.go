package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/san-kum/pbdsim/internal/analysis"
	"github.com/san-kum/pbdsim/internal/compute"
	"github.com/san-kum/pbdsim/internal/config"
	"github.com/san-kum/pbdsim/internal/export"
	"github.com/san-kum/pbdsim/internal/metrics"
	"github.com/san-kum/pbdsim/internal/pbd"
	"github.com/san-kum/pbdsim/internal/sim"
	"github.com/san-kum/pbdsim/internal/store"
	"github.com/san-kum/pbdsim/internal/sweep"
	"github.com/san-kum/pbdsim/internal/viz"
)

// stabilityTolerance is the wire distance above which a frame counts as
// unstable in the run metrics.
const stabilityTolerance = 1e-3

var (
	configFile  string
	preset      string
	groups      int
	endsOnly    bool
	outDir      string
	backendName string
	kernelPath  string
	seed        int64
	frames      int
	substeps    int
	gravityY    float32
	breakdown   bool
	saveConfig  string
	logLevel    string
	// sweep
	sweepMin   int
	sweepMax   int
	sweepOut   string
	sweepTrace bool
	sweepChart bool
	// montecarlo
	mcTrials       int
	mcPerturbation float64
	mcTolerance    float64
	// plot
	plotWidth  int
	plotHeight int
	plotFPS    float64
	plotPhase  int
	plotFreq   bool
	// replay
	replayTheme string
	// svg
	svgFrame int
	svgSize  int
	svgPaths bool
	svgOut   string
)

// main executes the root command, which runs one simulation. It exits with
// status 1 if the command fails.
func main() {
	if err := newRootCmd().Execute(); err != nil {
		slog.Error("pbd failed", "err", err)
		os.Exit(1)
	}
}

// newRootCmd registers the commands and flags.
func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "pbd",
		Short: "bead-on-wire position based dynamics benchmark",
		Long: "Simulates groups of beads sliding on circular wires with position based dynamics,\n" +
			"writes one out%06d.csv trace per group and reports the device time of every dispatch.",
		Args:              cobra.NoArgs,
		SilenceErrors:     true,
		PersistentPreRunE: setupLogging,
		RunE:              runSimulation,
	}
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level (debug, info, warn, error)")

	addRunFlags(rootCmd)
	rootCmd.Flags().IntVarP(&groups, "groups", "g", config.DefaultGroups, "number of bead groups")
	rootCmd.Flags().BoolVarP(&endsOnly, "ends-only", "e", false, "write only the initial and final frame")
	rootCmd.Flags().StringVar(&outDir, "out", config.DefaultOutput, "output directory for traces and summary.json")
	rootCmd.Flags().BoolVar(&breakdown, "breakdown", false, "print per-phase timing")
	rootCmd.Flags().StringVar(&saveConfig, "save-config", "", "write the resolved configuration to this yaml file")

	sweepCmd := &cobra.Command{
		Use:   "sweep",
		Short: "time ends-only runs for doubling group counts",
		Args:  cobra.NoArgs,
		RunE:  runSweep,
	}
	addRunFlags(sweepCmd)
	sweepCmd.Flags().IntVar(&sweepMin, "min", 1, "smallest group count")
	sweepCmd.Flags().IntVar(&sweepMax, "max", sweep.DefaultMax, "largest group count")
	sweepCmd.Flags().StringVar(&sweepOut, "out", "sweep", "output directory for per-count traces")
	sweepCmd.Flags().BoolVar(&sweepTrace, "trace", false, "write the traces of every run under --out")
	sweepCmd.Flags().BoolVar(&sweepChart, "chart", true, "plot mean time against group count")

	mcCmd := &cobra.Command{
		Use:   "montecarlo",
		Short: "check wire adherence over randomly seeded layouts",
		Args:  cobra.NoArgs,
		RunE:  runMonteCarlo,
	}
	addRunFlags(mcCmd)
	mcCmd.Flags().IntVarP(&groups, "groups", "g", config.DefaultGroups, "number of bead groups per trial")
	mcCmd.Flags().IntVar(&mcTrials, "trials", 20, "number of trials")
	mcCmd.Flags().Float64Var(&mcPerturbation, "perturbation", 0.2, "relative bead radius perturbation per trial")
	mcCmd.Flags().Float64Var(&mcTolerance, "tolerance", stabilityTolerance, "largest wire distance of a stable trial")

	plotCmd := &cobra.Command{
		Use:   "plot [trace.csv]",
		Short: "plot bead angles of a trace",
		Args:  cobra.ExactArgs(1),
		RunE:  plotTrace,
	}
	plotCmd.Flags().IntVar(&plotWidth, "width", 70, "plot width")
	plotCmd.Flags().IntVar(&plotHeight, "height", 15, "plot height")
	plotCmd.Flags().Float64Var(&plotFPS, "fps", config.DefaultFPS, "frames per second the trace was recorded at")
	plotCmd.Flags().IntVar(&plotPhase, "phase", -1, "also draw the phase portrait of this bead")
	plotCmd.Flags().BoolVar(&plotFreq, "spectrum", false, "also print the dominant frequency of every bead")

	replayCmd := &cobra.Command{
		Use:   "replay [trace.csv]",
		Short: "replay a trace in the terminal",
		Args:  cobra.ExactArgs(1),
		RunE:  replayTrace,
	}
	replayCmd.Flags().StringVar(&replayTheme, "theme", viz.ThemeCyberpunk.Name,
		"color theme ("+strings.Join(viz.ThemeNames(), ", ")+")")

	svgCmd := &cobra.Command{
		Use:   "svg [trace.csv]",
		Short: "render a trace frame or the bead paths as svg",
		Args:  cobra.ExactArgs(1),
		RunE:  exportSVG,
	}
	svgCmd.Flags().IntVar(&svgFrame, "frame", -1, "frame to render (default: last)")
	svgCmd.Flags().IntVar(&svgSize, "size", 600, "image width and height in pixels")
	svgCmd.Flags().BoolVar(&svgPaths, "paths", false, "draw the path of every bead instead of one frame")
	svgCmd.Flags().StringVarP(&svgOut, "output", "o", "", "output file (default: trace name with .svg)")

	presetsCmd := &cobra.Command{
		Use:   "presets",
		Short: "list available presets",
		Args:  cobra.NoArgs,
		RunE:  listPresets,
	}

	rootCmd.AddCommand(sweepCmd, mcCmd, plotCmd, replayCmd, svgCmd, presetsCmd)
	return rootCmd
}

func addRunFlags(cmd *cobra.Command) {
	cmd.Flags().StringVar(&configFile, "config", "", "config file path (yaml)")
	cmd.Flags().StringVar(&preset, "preset", "", "use preset configuration")
	cmd.Flags().StringVar(&backendName, "backend", config.DefaultBackend, "compute backend (auto, cpu, opencl)")
	cmd.Flags().StringVar(&kernelPath, "kernels", "", "OpenCL kernel source file (default: embedded)")
	cmd.Flags().Int64Var(&seed, "seed", pbd.DefaultSeed, "random seed for bead radii")
	cmd.Flags().IntVar(&frames, "frames", config.DefaultFPS*int(config.DefaultDuration), "frames to simulate")
	cmd.Flags().IntVar(&substeps, "substeps", config.DefaultSubsteps, "substeps per frame")
	cmd.Flags().Float32Var(&gravityY, "gravity", 0, "vertical gravity")
}

func setupLogging(cmd *cobra.Command, args []string) error {
	var level slog.Level
	if err := level.UnmarshalText([]byte(logLevel)); err != nil {
		return fmt.Errorf("invalid log level %q", logLevel)
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))
	return nil
}

// resolveConfig layers defaults, the preset, the config file and finally
// the flags that were set explicitly.
func resolveConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg := config.DefaultConfig()
	if preset != "" {
		cfg = config.GetPreset(preset)
		if cfg == nil {
			return nil, fmt.Errorf("unknown preset: %s (available: %v)", preset, config.ListPresets())
		}
	}
	if configFile != "" {
		loaded, err := config.Load(configFile)
		if err != nil {
			return nil, fmt.Errorf("failed to load config: %w", err)
		}
		cfg = loaded
	}

	flags := cmd.Flags()
	if flags.Changed("groups") {
		cfg.Groups = groups
	}
	if flags.Changed("ends-only") {
		cfg.EndsOnly = endsOnly
	}
	if flags.Changed("backend") {
		cfg.Backend = backendName
	}
	if flags.Changed("kernels") {
		cfg.KernelSource = kernelPath
	}
	if flags.Changed("seed") {
		cfg.Seed = seed
	}
	if flags.Changed("substeps") {
		cfg.Substeps = substeps
	}
	if flags.Changed("frames") {
		if frames <= 0 {
			return nil, fmt.Errorf("%w: frames must be positive, got %d", config.ErrInvalid, frames)
		}
		cfg.Duration = float64(frames) / float64(cfg.FPS)
	}
	if flags.Changed("gravity") {
		cfg.Gravity.Y = gravityY
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func newBackend(cfg *config.Config) (compute.Backend, error) {
	b, err := compute.New(cfg.Backend)
	if err != nil {
		return nil, err
	}
	if cfg.KernelSource != "" {
		if ss, ok := b.(compute.SourceSetter); ok {
			ss.SetKernelSource(cfg.KernelSource)
		}
	}
	return b, nil
}

func runSimulation(cmd *cobra.Command, args []string) error {
	cfg, err := resolveConfig(cmd)
	if err != nil {
		return err
	}
	if cmd.Flags().Changed("out") {
		cfg.OutputDir = outDir
	}

	st := store.New(cfg.OutputDir)
	if err := st.Init(); err != nil {
		return err
	}
	if saveConfig != "" {
		if err := config.Save(saveConfig, cfg); err != nil {
			return fmt.Errorf("saving config: %w", err)
		}
	}

	backend, err := newBackend(cfg)
	if err != nil {
		return err
	}

	simCfg := cfg.SimConfig()
	simCfg.KeepSamples = breakdown
	engine, err := sim.New(simCfg, backend, pbd.NewGroups(cfg.Groups, cfg.InitOptions()))
	if err != nil {
		return err
	}
	defer engine.Close()

	engine.AddMetric(metrics.NewWireDrift())
	engine.AddMetric(metrics.NewPenetration())
	engine.AddMetric(metrics.NewEnergy())
	engine.AddMetric(metrics.NewEnergyDrift())
	engine.AddMetric(metrics.NewStability(stabilityTolerance))

	slog.Info("starting run", "groups", cfg.Groups, "mode", simCfg.Mode, "frames", simCfg.Frames,
		"substeps", simCfg.Substeps, "backend", backend.Name(), "out", st.Dir())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	obs, closeTrace := st.TraceObserver(simCfg.Mode)
	result, err := engine.Run(ctx, obs)
	if cerr := closeTrace(); cerr != nil {
		err = errors.Join(err, fmt.Errorf("closing traces: %w", cerr))
	}
	if err != nil {
		return err
	}

	meta := store.RunMetadata{
		Timestamp: time.Now(),
		Seed:      cfg.Seed,
		Dt:        float64(simCfg.Params.Dt),
		Config:    configFile,
		Result:    *result,
	}
	if err := st.SaveSummary(meta); err != nil {
		return err
	}
	slog.Info("traces written", "first", st.TracePath(0), "last", st.TracePath(cfg.Groups-1))

	fmt.Printf("sum: %s ns\n", metrics.FormatNanos(result.Timing.Total.Nanoseconds()))
	fmt.Printf("mean: %s ns\n", metrics.FormatNanos(result.Timing.Mean.Nanoseconds()))
	if breakdown {
		fmt.Println(viz.TimingReport(result.Timing))
	}
	return nil
}

func runSweep(cmd *cobra.Command, args []string) error {
	cfg, err := resolveConfig(cmd)
	if err != nil {
		return err
	}

	opts := sweep.Options{
		Min:  sweepMin,
		Max:  sweepMax,
		Sim:  cfg.SimConfig(),
		Init: cfg.InitOptions(),
		NewBackend: func() (compute.Backend, error) {
			return newBackend(cfg)
		},
	}
	if sweepTrace {
		opts.Observer = func(n int) (sim.Observer, func() error, error) {
			st := store.New(filepath.Join(sweepOut, fmt.Sprintf("g%07d", n)))
			if err := st.Init(); err != nil {
				return nil, nil, err
			}
			obs, closeTrace := st.TraceObserver(sim.EndsOnly)
			return obs, closeTrace, nil
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	result, err := sweep.Run(ctx, opts)
	if result != nil && len(result.Points) > 0 {
		fmt.Println(viz.SweepTable(result))
		if sweepChart {
			fmt.Println(viz.SweepChart(result.Points, 60, 12))
		}
	}
	return err
}

func runMonteCarlo(cmd *cobra.Command, args []string) error {
	cfg, err := resolveConfig(cmd)
	if err != nil {
		return err
	}
	simCfg := cfg.SimConfig()
	simCfg.Mode = sim.FullTrace

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	trials, err := sweep.RunMonteCarlo(ctx, sweep.MonteCarloConfig{
		Trials:       mcTrials,
		Groups:       cfg.Groups,
		Seed:         cfg.Seed,
		Perturbation: mcPerturbation,
		Tolerance:    mcTolerance,
		Sim:          simCfg,
		Init:         cfg.InitOptions(),
		NewBackend: func() (compute.Backend, error) {
			return newBackend(cfg)
		},
	})
	if len(trials) > 0 {
		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "TRIAL\tSEED\tRADIUS SCALE\tWIRE DRIFT\tPENETRATION\tSTABLE")
		for _, t := range trials {
			fmt.Fprintf(w, "%d\t%d\t%.3f\t%.3g\t%.3g\t%v\n", t.ID, t.Seed, t.RadiusScale, t.WireDrift, t.Penetration, t.Stable)
		}
		if ferr := w.Flush(); ferr != nil {
			return ferr
		}
		stable, unstable, mean, std := sweep.MonteCarloStats(trials)
		fmt.Printf("\nstable: %d  unstable: %d  wire drift: %.3g ± %.3g\n", stable, unstable, mean, std)
	}
	return err
}

func loadFrames(path string) ([]store.Frame, error) {
	rows, err := store.LoadTrace(path)
	if err != nil {
		return nil, err
	}
	return store.SplitFrames(rows)
}

func plotTrace(cmd *cobra.Command, args []string) error {
	frames, err := loadFrames(args[0])
	if err != nil {
		return err
	}
	fmt.Printf("%s: %d frames\n\n", filepath.Base(args[0]), len(frames))
	fmt.Println(viz.AngleChart(frames, plotWidth, plotHeight))

	angles := viz.BeadAngles(frames)
	if plotFreq || plotPhase >= 0 {
		fmt.Println(viz.Separator(plotWidth))
	}
	if plotFreq {
		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "BEAD\tFREQ (Hz)\tPOWER")
		for b, series := range angles {
			f, p := analysis.PowerSpectrum(series, plotFPS).Dominant()
			fmt.Fprintf(w, "%d\t%.3f\t%.3g\n", b, f, p)
		}
		if err := w.Flush(); err != nil {
			return err
		}
	}
	if plotPhase >= 0 {
		if plotPhase >= len(angles) {
			return fmt.Errorf("bead %d out of range (trace has %d)", plotPhase, len(angles))
		}
		fmt.Printf("\nbead %d: angle (x) against angular velocity (y)\n", plotPhase)
		fmt.Print(analysis.PhasePortraitToASCII(analysis.PhasePortrait(angles[plotPhase], plotFPS), plotWidth, plotHeight))
	}
	return nil
}

func replayTrace(cmd *cobra.Command, args []string) error {
	frames, err := loadFrames(args[0])
	if err != nil {
		return err
	}
	return viz.Replay(filepath.Base(args[0]), frames, replayTheme)
}

func exportSVG(cmd *cobra.Command, args []string) error {
	frames, err := loadFrames(args[0])
	if err != nil {
		return err
	}
	if len(frames) == 0 {
		return fmt.Errorf("%s: empty trace", args[0])
	}

	var svg string
	if svgPaths {
		svg = export.TrajectoryToSVG(frames, svgSize)
		if svg == "" {
			return fmt.Errorf("%s: need at least two frames for paths", args[0])
		}
	} else {
		idx := svgFrame
		if idx < 0 {
			idx = len(frames) - 1
		}
		if idx >= len(frames) {
			return fmt.Errorf("frame %d out of range (trace has %d)", idx, len(frames))
		}
		svg = export.FrameToSVG(frames[idx], svgSize)
	}

	out := svgOut
	if out == "" {
		out = strings.TrimSuffix(args[0], filepath.Ext(args[0])) + ".svg"
	}
	if err := os.WriteFile(out, []byte(svg), 0644); err != nil {
		return err
	}
	slog.Info("wrote svg", "path", out)
	return nil
}

func listPresets(cmd *cobra.Command, args []string) error {
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "NAME\tGROUPS\tMODE\tFRAMES\tGRAVITY\tBEAD RADII")
	for _, name := range config.ListPresets() {
		p := config.GetPreset(name)
		fmt.Fprintf(w, "%s\t%d\t%s\t%d\t%g\t%g..%g\n", name, p.Groups, p.Mode(), p.Frames(),
			p.Gravity.Y, p.Beads.MinRadius, p.Beads.MaxRadius)
	}
	return w.Flush()
}
