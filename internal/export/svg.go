package export

import (
	"fmt"
	"strings"

	"github.com/san-kum/pbdsim/internal/store"
)

var beadStrokes = []string{"#ff4444", "#00ff88", "#ffcc00", "#0088ff", "#ff00ff", "#00ffff", "#ff8800", "#ffffff"}

// frameBounds maps trace coordinates onto a size x size image with the wire
// centered and a margin for the beads.
type frameBounds struct {
	cx, cy, scale, half float64
}

func boundsFor(f store.Frame, size int) frameBounds {
	extent := float64(f.Wire.R)
	for _, b := range f.Beads {
		extent = max(extent, float64(f.Wire.R+b.R))
	}
	if extent <= 0 {
		extent = 1
	}
	half := float64(size) / 2
	return frameBounds{
		cx:    float64(f.Wire.X),
		cy:    float64(f.Wire.Y),
		scale: half * 0.9 / extent,
		half:  half,
	}
}

func (b frameBounds) point(x, y store.Float) (float64, float64) {
	return b.half + (float64(x)-b.cx)*b.scale, b.half - (float64(y)-b.cy)*b.scale
}

func header(sb *strings.Builder, size int) {
	sb.WriteString(fmt.Sprintf(`<?xml version="1.0" encoding="UTF-8"?>
<svg xmlns="http://www.w3.org/2000/svg" width="%d" height="%d" viewBox="0 0 %d %d">
<rect width="100%%" height="100%%" fill="#0a0a0a"/>
`, size, size, size, size))
}

func wire(sb *strings.Builder, f store.Frame, b frameBounds) {
	x, y := b.point(f.Wire.X, f.Wire.Y)
	sb.WriteString(fmt.Sprintf(`<circle cx="%.1f" cy="%.1f" r="%.1f" fill="none" stroke="#444466" stroke-width="2"/>
`, x, y, float64(f.Wire.R)*b.scale))
}

// FrameToSVG draws the wire and every bead of one frame.
func FrameToSVG(f store.Frame, size int) string {
	b := boundsFor(f, size)

	var sb strings.Builder
	header(&sb, size)
	wire(&sb, f, b)
	for i, bead := range f.Beads {
		x, y := b.point(bead.X, bead.Y)
		sb.WriteString(fmt.Sprintf(`<circle cx="%.1f" cy="%.1f" r="%.1f" fill="none" stroke="%s" stroke-width="1.5"/>
`, x, y, float64(bead.R)*b.scale, beadStrokes[i%len(beadStrokes)]))
	}
	sb.WriteString("</svg>")
	return sb.String()
}

// TrajectoryToSVG draws the path of every bead over all frames on top of
// the wire of the first frame. Fewer than two frames give an empty string.
func TrajectoryToSVG(frames []store.Frame, size int) string {
	if len(frames) < 2 {
		return ""
	}
	b := boundsFor(frames[0], size)

	var sb strings.Builder
	header(&sb, size)
	wire(&sb, frames[0], b)
	for i := range frames[0].Beads {
		sb.WriteString(fmt.Sprintf(`<path fill="none" stroke="%s" stroke-width="1.5" d="M`, beadStrokes[i%len(beadStrokes)]))
		for j, f := range frames {
			if i >= len(f.Beads) {
				break
			}
			x, y := b.point(f.Beads[i].X, f.Beads[i].Y)
			if j == 0 {
				sb.WriteString(fmt.Sprintf("%.1f,%.1f", x, y))
			} else {
				sb.WriteString(fmt.Sprintf(" L%.1f,%.1f", x, y))
			}
		}
		sb.WriteString("\"/>\n")
	}
	sb.WriteString("</svg>")
	return sb.String()
}
