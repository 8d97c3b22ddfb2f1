package config

import (
	"errors"
	"fmt"
	"math"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/san-kum/pbdsim/internal/pbd"
	"github.com/san-kum/pbdsim/internal/sim"
)

const (
	DefaultGroups   = 1
	DefaultFPS      = sim.DefaultFPS
	DefaultDuration = float64(sim.DefaultDuration)
	DefaultSubsteps = sim.DefaultSubsteps
	DefaultBackend  = "auto"
	DefaultOutput   = "."
)

var ErrInvalid = errors.New("config: invalid value")

type Config struct {
	Groups       int           `yaml:"groups"`
	EndsOnly     bool          `yaml:"ends_only"`
	Seed         int64         `yaml:"seed"`
	FPS          int           `yaml:"fps"`
	Duration     float64       `yaml:"duration"`
	Substeps     int           `yaml:"substeps"`
	Gravity      GravityConfig `yaml:"gravity"`
	Backend      string        `yaml:"backend"`
	OutputDir    string        `yaml:"output_dir"`
	KernelSource string        `yaml:"kernel_source,omitempty"`
	Wire         WireConfig    `yaml:"wire"`
	Beads        BeadConfig    `yaml:"beads"`
}

type GravityConfig struct {
	X float32 `yaml:"x"`
	Y float32 `yaml:"y"`
}

type WireConfig struct {
	CenterX float32 `yaml:"center_x"`
	CenterY float32 `yaml:"center_y"`
	Radius  float32 `yaml:"radius"`
}

type BeadConfig struct {
	FirstRadius float32 `yaml:"first_radius"`
	MinRadius   float32 `yaml:"min_radius"`
	MaxRadius   float32 `yaml:"max_radius"`
}

func DefaultConfig() *Config {
	return &Config{
		Groups:    DefaultGroups,
		Seed:      pbd.DefaultSeed,
		FPS:       DefaultFPS,
		Duration:  DefaultDuration,
		Substeps:  DefaultSubsteps,
		Backend:   DefaultBackend,
		OutputDir: DefaultOutput,
		Wire:      WireConfig{Radius: pbd.DefaultWireRadius},
		Beads: BeadConfig{
			FirstRadius: pbd.DefaultFirstRadius,
			MinRadius:   pbd.DefaultMinRadius,
			MaxRadius:   pbd.DefaultMaxRadius,
		},
	}
}

// Load reads a YAML file over the defaults, so a file only needs the keys
// it changes.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	return cfg, nil
}

func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// Frames is the number of frames in Duration seconds at FPS.
func (c *Config) Frames() int {
	return int(math.Round(float64(c.FPS) * c.Duration))
}

// SubstepDt is the time step of one substep.
func (c *Config) SubstepDt() float32 {
	return 1 / float32(c.FPS*c.Substeps)
}

func (c *Config) Validate() error {
	switch {
	case c.Groups <= 0:
		return fmt.Errorf("%w: group count must be positive, got %d", ErrInvalid, c.Groups)
	case c.FPS <= 0:
		return fmt.Errorf("%w: fps must be positive, got %d", ErrInvalid, c.FPS)
	case c.Substeps <= 0:
		return fmt.Errorf("%w: substeps must be positive, got %d", ErrInvalid, c.Substeps)
	case c.Duration <= 0 || c.Frames() <= 0:
		return fmt.Errorf("%w: duration %.3fs yields no frames at %d fps", ErrInvalid, c.Duration, c.FPS)
	}
	switch c.Backend {
	case "", "auto", "cpu", "opencl":
	default:
		return fmt.Errorf("%w: unknown backend %q", ErrInvalid, c.Backend)
	}
	if err := c.InitOptions().Validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalid, err)
	}
	if err := c.Params().Validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalid, err)
	}
	return nil
}

func (c *Config) Params() pbd.Params {
	return pbd.Params{
		Dt:      c.SubstepDt(),
		Gravity: pbd.V(c.Gravity.X, c.Gravity.Y),
	}
}

func (c *Config) InitOptions() pbd.InitOptions {
	return pbd.InitOptions{
		Seed:        c.Seed,
		WireCenter:  pbd.V(c.Wire.CenterX, c.Wire.CenterY),
		WireRadius:  c.Wire.Radius,
		FirstRadius: c.Beads.FirstRadius,
		MinRadius:   c.Beads.MinRadius,
		MaxRadius:   c.Beads.MaxRadius,
	}
}

func (c *Config) Mode() sim.Mode {
	if c.EndsOnly {
		return sim.EndsOnly
	}
	return sim.FullTrace
}

// SimConfig is the engine configuration of one run.
func (c *Config) SimConfig() sim.Config {
	return sim.Config{
		Frames:   c.Frames(),
		Substeps: c.Substeps,
		Mode:     c.Mode(),
		Params:   c.Params(),
	}
}
