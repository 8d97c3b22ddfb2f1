package metrics

import (
	"math"

	"github.com/san-kum/pbdsim/internal/pbd"
)

// WireDrift records the largest distance of any bead from its wire seen in
// the observed frames.
type WireDrift struct {
	name     string
	maxDrift float64
}

func NewWireDrift() *WireDrift {
	return &WireDrift{name: "wire_drift"}
}

func (w *WireDrift) Name() string { return w.name }

func (w *WireDrift) Observe(frame int, groups []pbd.Group) {
	for gi := range groups {
		w.maxDrift = math.Max(w.maxDrift, float64(groups[gi].WireError()))
	}
}

func (w *WireDrift) Value() float64 { return w.maxDrift }

func (w *WireDrift) Reset() { w.maxDrift = 0 }

// Penetration records the deepest overlap along the wire between two beads
// of one group.
type Penetration struct {
	name     string
	maxDepth float64
}

func NewPenetration() *Penetration {
	return &Penetration{name: "penetration"}
}

func (p *Penetration) Name() string { return p.name }

func (p *Penetration) Observe(frame int, groups []pbd.Group) {
	for gi := range groups {
		g := &groups[gi]
		for i := 0; i < pbd.BeadCount; i++ {
			for j := i + 1; j < pbd.BeadCount; j++ {
				sep := pbd.ArcSeparation(g.Wire, g.Pos[i], g.Pos[j])
				depth := float64(g.Radius[i] + g.Radius[j] - sep)
				p.maxDepth = math.Max(p.maxDepth, depth)
			}
		}
	}
}

func (p *Penetration) Value() float64 { return p.maxDepth }

func (p *Penetration) Reset() { p.maxDepth = 0 }

// Stability is the fraction of observed frames in which every bead is finite
// and within threshold of its wire.
type Stability struct {
	name       string
	threshold  float64
	violations int
	samples    int
}

func NewStability(threshold float64) *Stability {
	return &Stability{
		name:      "stability",
		threshold: threshold,
	}
}

func (s *Stability) Name() string {
	return s.name
}

func (s *Stability) Observe(frame int, groups []pbd.Group) {
	s.samples++
	for gi := range groups {
		g := &groups[gi]
		if !g.IsValid() || float64(g.WireError()) > s.threshold {
			s.violations++
			break
		}
	}
}

func (s *Stability) Value() float64 {
	if s.samples == 0 {
		return 1.0
	}
	return 1.0 - float64(s.violations)/float64(s.samples)
}

func (s *Stability) Reset() {
	s.violations = 0
	s.samples = 0
}
