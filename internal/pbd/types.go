package pbd

import "math"

// BeadCount is the number of beads in every group. Device kernels are built
// against the same value.
const BeadCount = 8

// Wire is the circle every bead of a group is constrained to.
type Wire struct {
	Center Vec2
	Radius float32
	_      float32 // pads to the 8-byte alignment of float2 on the device
}

// Group is one independent wire with its beads, stored as arrays per field so
// the host copy can be handed to a device as a flat buffer.
type Group struct {
	Wire      Wire
	Radius    [BeadCount]float32
	Mass      [BeadCount]float32
	Pos       [BeadCount]Vec2
	Prev      [BeadCount]Vec2
	Next      [BeadCount]Vec2
	Corrected [BeadCount]Vec2
	Vel       [BeadCount]Vec2
}

// GroupBytes is the size of one Group in host and device memory.
const GroupBytes = 400

// Params are the constants every kernel is built with.
type Params struct {
	Dt      float32
	Gravity Vec2
}

func (p Params) Validate() error {
	if !(p.Dt > 0) || math.IsInf(float64(p.Dt), 0) {
		return ErrInvalidDt
	}
	if !p.Gravity.IsValid() {
		return ErrInvalidGravity
	}
	return nil
}

// Phase identifies one of the four substep kernels.
type Phase int

const (
	PhasePredict Phase = iota
	PhaseProject
	PhaseResolve
	PhaseCommit
)

// Phases lists the kernels in dispatch order.
var Phases = [...]Phase{PhasePredict, PhaseProject, PhaseResolve, PhaseCommit}

var phaseNames = [...]string{"predict", "project", "resolve_collisions", "commit"}

// String returns the kernel entry point name of the phase.
func (p Phase) String() string {
	if p < 0 || int(p) >= len(phaseNames) {
		return "unknown"
	}
	return phaseNames[p]
}

// Clone returns a deep copy of groups.
func Clone(groups []Group) []Group {
	c := make([]Group, len(groups))
	copy(c, groups)
	return c
}

// WireError returns the largest |distance(pos, center) - radius| over the
// beads of g.
func (g *Group) WireError() float32 {
	var worst float32
	for i := 0; i < BeadCount; i++ {
		d := g.Pos[i].Sub(g.Wire.Center).Len() - g.Wire.Radius
		if d < 0 {
			d = -d
		}
		if d > worst {
			worst = d
		}
	}
	return worst
}

// IsValid reports whether every position and velocity of g is finite.
func (g *Group) IsValid() bool {
	for i := 0; i < BeadCount; i++ {
		if !g.Pos[i].IsValid() || !g.Vel[i].IsValid() {
			return false
		}
	}
	return true
}
