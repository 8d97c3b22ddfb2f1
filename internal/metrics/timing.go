package metrics

import (
	"log/slog"
	"strconv"
	"strings"
	"time"

	"gonum.org/v1/gonum/stat"

	"github.com/san-kum/pbdsim/internal/pbd"
)

// Timing accumulates device execution time of every phase dispatch of a run.
type Timing struct {
	total   time.Duration
	phases  [len(pbd.Phases)]time.Duration
	samples [len(pbd.Phases)][]float64
	keep    bool
}

// NewTiming returns an empty aggregator. With keepSamples set every dispatch
// duration is retained so Summary can report spread per phase.
func NewTiming(keepSamples bool) *Timing {
	return &Timing{keep: keepSamples}
}

// Record adds one dispatch of phase.
func (t *Timing) Record(phase pbd.Phase, d time.Duration) {
	t.total += d
	t.phases[phase] += d
	if t.keep {
		t.samples[phase] = append(t.samples[phase], float64(d))
	}
}

// Total is the summed device time of every recorded dispatch.
func (t *Timing) Total() time.Duration { return t.total }

// Mean is the total divided evenly over groupCount groups.
func (t *Timing) Mean(groupCount int) time.Duration {
	if groupCount <= 0 {
		return 0
	}
	return t.total / time.Duration(groupCount)
}

func (t *Timing) Phase(phase pbd.Phase) time.Duration { return t.phases[phase] }

func (t *Timing) Reset() {
	*t = Timing{keep: t.keep}
}

// PhaseStats describes the dispatches of one phase.
type PhaseStats struct {
	Phase  string        `json:"phase"`
	Total  time.Duration `json:"total_ns"`
	Share  float64       `json:"share"`
	Count  int           `json:"count,omitempty"`
	Mean   float64       `json:"mean_ns,omitempty"`
	StdDev float64       `json:"stddev_ns,omitempty"`
}

// Summary is the end-of-run timing report.
type Summary struct {
	Groups int           `json:"groups"`
	Total  time.Duration `json:"total_ns"`
	Mean   time.Duration `json:"mean_ns"`
	Phases []PhaseStats  `json:"phases"`
}

func (t *Timing) Summary(groupCount int) Summary {
	s := Summary{
		Groups: groupCount,
		Total:  t.total,
		Mean:   t.Mean(groupCount),
		Phases: make([]PhaseStats, 0, len(pbd.Phases)),
	}
	for _, phase := range pbd.Phases {
		ps := PhaseStats{Phase: phase.String(), Total: t.phases[phase]}
		if t.total > 0 {
			ps.Share = float64(t.phases[phase]) / float64(t.total)
		}
		if samples := t.samples[phase]; len(samples) > 0 {
			ps.Count = len(samples)
			if len(samples) > 1 {
				ps.Mean, ps.StdDev = stat.MeanStdDev(samples, nil)
			} else {
				ps.Mean = samples[0]
			}
		}
		s.Phases = append(s.Phases, ps)
	}
	return s
}

// LogValue implements slog.LogValuer for structured logging.
func (s Summary) LogValue() slog.Value {
	attrs := []slog.Attr{
		slog.Int("groups", s.Groups),
		slog.Int64("sum_ns", s.Total.Nanoseconds()),
		slog.Int64("mean_ns", s.Mean.Nanoseconds()),
	}
	for _, p := range s.Phases {
		attrs = append(attrs, slog.Float64(p.Phase+"_pct", p.Share*100))
	}
	return slog.GroupValue(attrs...)
}

// FormatNanos renders ns with comma thousands separators, e.g. 1,234,567.
func FormatNanos(ns int64) string {
	neg := ns < 0
	if neg {
		ns = -ns
	}
	digits := strconv.FormatInt(ns, 10)

	var b strings.Builder
	if neg {
		b.WriteByte('-')
	}
	lead := len(digits) % 3
	if lead == 0 {
		lead = 3
	}
	b.WriteString(digits[:lead])
	for i := lead; i < len(digits); i += 3 {
		b.WriteByte(',')
		b.WriteString(digits[i : i+3])
	}
	return b.String()
}
