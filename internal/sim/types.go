package sim

import (
	"fmt"

	"github.com/san-kum/pbdsim/internal/metrics"
	"github.com/san-kum/pbdsim/internal/pbd"
)

// Mode selects which frames a run hands to its observer.
type Mode int

const (
	// FullTrace observes the initial state and the state after every frame.
	FullTrace Mode = iota
	// EndsOnly observes only the initial and final states and keeps the
	// state on the device between frames.
	EndsOnly
)

func (m Mode) String() string {
	switch m {
	case FullTrace:
		return "full-trace"
	case EndsOnly:
		return "ends-only"
	default:
		return fmt.Sprintf("mode(%d)", int(m))
	}
}

const (
	DefaultFPS      = 60
	DefaultDuration = 10
	DefaultSubsteps = 100
)

type Config struct {
	Frames   int
	Substeps int
	Mode     Mode
	Params   pbd.Params

	// KeepSamples retains every dispatch duration for the per-phase spread
	// in the timing summary.
	KeepSamples bool
}

// DefaultConfig is ten seconds at 60 frames per second with 100 substeps
// per frame and no gravity.
func DefaultConfig() Config {
	return Config{
		Frames:   DefaultFPS * DefaultDuration,
		Substeps: DefaultSubsteps,
		Mode:     FullTrace,
		Params:   pbd.Params{Dt: 1.0 / float32(DefaultFPS*DefaultSubsteps)},
	}
}

// Observer receives snapshots of the host copy of the groups. The slice is
// only valid for the duration of the call.
type Observer interface {
	Observe(frame int, groups []pbd.Group) error
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(frame int, groups []pbd.Group) error

func (f ObserverFunc) Observe(frame int, groups []pbd.Group) error { return f(frame, groups) }

// Observers fans a snapshot out to several observers, stopping at the first
// error.
type Observers []Observer

func (o Observers) Observe(frame int, groups []pbd.Group) error {
	for _, obs := range o {
		if err := obs.Observe(frame, groups); err != nil {
			return err
		}
	}
	return nil
}

type Metric interface {
	Name() string
	Observe(frame int, groups []pbd.Group)
	Value() float64
	Reset()
}

type Result struct {
	Groups         int                `json:"groups"`
	Backend        string             `json:"backend"`
	Mode           string             `json:"mode"`
	FramesRun      int                `json:"frames"`
	SubstepsRun    int                `json:"substeps"`
	ObservedFrames int                `json:"observed_frames"`
	Timing         metrics.Summary    `json:"timing"`
	Metrics        map[string]float64 `json:"metrics,omitempty"`
}
