package viz

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/guptarohit/asciigraph"

	"github.com/san-kum/pbdsim/internal/metrics"
	"github.com/san-kum/pbdsim/internal/store"
	"github.com/san-kum/pbdsim/internal/sweep"
)

// beadColors are cycled over the series of multi-bead plots.
var beadColors = []asciigraph.AnsiColor{
	asciigraph.Red, asciigraph.Green, asciigraph.Yellow, asciigraph.Blue,
	asciigraph.Magenta, asciigraph.Cyan, asciigraph.Orange, asciigraph.White,
}

// BeadAngles returns, per bead, its angle around the wire in every frame.
// Angles are unwrapped so a bead passing ±π draws a continuous line.
func BeadAngles(frames []store.Frame) [][]float64 {
	if len(frames) == 0 {
		return nil
	}
	series := make([][]float64, len(frames[0].Beads))
	for b := range series {
		series[b] = make([]float64, 0, len(frames))
		var prev float64
		for i, f := range frames {
			if b >= len(f.Beads) {
				break
			}
			a := math.Atan2(float64(f.Beads[b].Y-f.Wire.Y), float64(f.Beads[b].X-f.Wire.X))
			if i > 0 {
				for a-prev > math.Pi {
					a -= 2 * math.Pi
				}
				for a-prev < -math.Pi {
					a += 2 * math.Pi
				}
			}
			series[b] = append(series[b], a)
			prev = a
		}
	}
	return series
}

// AngleChart plots the angle of every bead over the frames of a trace.
func AngleChart(frames []store.Frame, width, height int) string {
	series := BeadAngles(frames)
	if len(series) == 0 || len(series[0]) == 0 {
		return Subtle.Render("(empty trace)")
	}
	for i := range series {
		if len(series[i]) == 1 {
			series[i] = append(series[i], series[i][0])
		}
	}
	colors := make([]asciigraph.AnsiColor, len(series))
	for i := range colors {
		colors[i] = beadColors[i%len(beadColors)]
	}
	return asciigraph.PlotMany(series,
		asciigraph.Height(height),
		asciigraph.Width(width),
		asciigraph.Precision(2),
		asciigraph.SeriesColors(colors...),
		asciigraph.Caption("bead angle (rad) per frame"))
}

// SweepChart plots log2 of the mean time per group against log2 of the
// group count.
func SweepChart(points []sweep.Point, width, height int) string {
	if len(points) == 0 {
		return Subtle.Render("(no sweep points)")
	}
	ys := make([]float64, 0, len(points))
	for _, p := range points {
		ys = append(ys, math.Log2(math.Max(float64(p.Mean), 1)))
	}
	if len(ys) == 1 {
		ys = append(ys, ys[0])
	}
	return graphStyle.Render(asciigraph.Plot(ys,
		asciigraph.Height(height),
		asciigraph.Width(width),
		asciigraph.Precision(1),
		asciigraph.Caption("log2(mean ns) over log2(groups)")))
}

// TimingReport renders the end-of-run sum and mean followed by the share of
// every phase.
func TimingReport(s metrics.Summary) string {
	var b strings.Builder
	b.WriteString(GradientTitle.Render("DEVICE TIME") + "\n\n")
	b.WriteString(MetricLabel.Render(fmt.Sprintf("%-20s", "sum")) +
		MetricValue.Render(metrics.FormatNanos(s.Total.Nanoseconds())+" ns") + "\n")
	b.WriteString(MetricLabel.Render(fmt.Sprintf("%-20s", "mean")) +
		MetricValue.Render(metrics.FormatNanos(s.Mean.Nanoseconds())+" ns") + "\n\n")

	for _, p := range s.Phases {
		line := MetricLabel.Render(fmt.Sprintf("%-20s", p.Phase)) +
			ProgressBar(p.Share, 20) +
			fmt.Sprintf(" %5.1f%% %16s ns", p.Share*100, metrics.FormatNanos(p.Total.Nanoseconds()))
		if p.Count > 1 {
			line += Subtle.Render(fmt.Sprintf("  %.0f ± %.0f ns/dispatch", p.Mean, p.StdDev))
		}
		b.WriteString(line + "\n")
	}
	return GlassPanel.Render(strings.TrimRight(b.String(), "\n"))
}

// SweepTable lists every sweep point and the fitted scaling exponent.
func SweepTable(r *sweep.Result) string {
	header := lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#ffffff"))
	var b strings.Builder
	b.WriteString(header.Render(fmt.Sprintf("%10s %20s %16s %12s", "groups", "sum ns", "mean ns", "wall")) + "\n")
	for _, p := range r.Points {
		b.WriteString(fmt.Sprintf("%10d %20s %16s %12s\n", p.Groups,
			metrics.FormatNanos(p.Sum.Nanoseconds()),
			metrics.FormatNanos(p.Mean.Nanoseconds()),
			p.Wall.Round(time.Millisecond)))
	}
	b.WriteString("\n" + MetricLabel.Render("scaling exponent ") + MetricValue.Render(fmt.Sprintf("%.3f", r.Exponent)))
	return GlassPanel.Render(b.String())
}
