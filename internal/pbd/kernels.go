package pbd

import "math"

// Predict stores the start-of-substep position and extrapolates the
// predicted position from velocity. Gravity is the only external force and
// is applied here.
func Predict(g *Group, i int, p Params) {
	g.Prev[i] = g.Pos[i]
	if !p.Gravity.IsZero() {
		g.Vel[i] = g.Vel[i].Add(p.Gravity.Scale(p.Dt))
	}
	g.Next[i] = g.Pos[i].Add(g.Vel[i].Scale(p.Dt))
}

// ProjectOntoWire returns the closest point on the wire to q. A point exactly
// at the center has no closest point and is returned unchanged.
func ProjectOntoWire(w Wire, q Vec2) Vec2 {
	d := q.Sub(w.Center)
	l := d.Len()
	if l == 0 {
		return q
	}
	return w.Center.Add(d.Scale(w.Radius / l))
}

// ArcSeparation is the distance from a to b measured along the wire, for two
// points on it: 2R·asin(chord/2R). Chords longer than the diameter count as
// half a revolution.
func ArcSeparation(w Wire, a, b Vec2) float32 {
	chord := b.Sub(a).Len()
	if !(w.Radius > 0) {
		return chord
	}
	s := math.Min(float64(chord)/float64(2*w.Radius), 1)
	return float32(2 * float64(w.Radius) * math.Asin(s))
}

// Project enforces the wire constraint on the predicted position.
func Project(g *Group, i int, _ Params) {
	g.Next[i] = ProjectOntoWire(g.Wire, g.Next[i])
}

// Resolve pushes bead i out of every bead of its group closer along the wire
// than the sum of their radii. The push follows the chord between the
// predicted positions and is re-projected onto the wire. It only
// reads Next, which no lane writes during this phase, and only writes
// Corrected[i], so lanes of the same group never race.
//
// Each pair's overlap is split by inverse mass: bead i takes w_i/(w_i+w_j)
// of it and bead j, running the same code in its own lane, takes the rest.
func Resolve(g *Group, i int, _ Params) {
	pi := g.Next[i]
	wi := 1 / g.Mass[i]

	var corr Vec2
	for j := 0; j < BeadCount; j++ {
		if j == i {
			continue
		}
		d := g.Next[j].Sub(pi)
		dist := d.Len()
		overlap := g.Radius[i] + g.Radius[j] - ArcSeparation(g.Wire, pi, g.Next[j])
		if dist == 0 || overlap <= 0 {
			continue
		}
		wj := 1 / g.Mass[j]
		n := d.Scale(1 / dist)
		corr = corr.Sub(n.Scale(overlap * wi / (wi + wj)))
	}

	if corr.IsZero() {
		g.Corrected[i] = pi
		return
	}
	g.Corrected[i] = ProjectOntoWire(g.Wire, pi.Add(corr))
}

// Commit accepts the corrected position and rebuilds velocity from the
// displacement over the substep.
func Commit(g *Group, i int, p Params) {
	g.Pos[i] = g.Corrected[i]
	g.Vel[i] = g.Pos[i].Sub(g.Prev[i]).Scale(1 / p.Dt)
}

// LaneFunc is the per-bead body of one phase.
type LaneFunc func(g *Group, bead int, p Params)

var laneFuncs = [...]LaneFunc{Predict, Project, Resolve, Commit}

// Lane returns the per-bead body of phase.
func Lane(phase Phase) LaneFunc {
	return laneFuncs[phase]
}

// RunLane executes one phase for bead of g.
func RunLane(phase Phase, g *Group, bead int, p Params) {
	laneFuncs[phase](g, bead, p)
}

// Substep runs all four phases over groups serially, in phase order. It is
// the reference the parallel backends are checked against.
func Substep(groups []Group, p Params) {
	for _, phase := range Phases {
		fn := laneFuncs[phase]
		for gi := range groups {
			for b := 0; b < BeadCount; b++ {
				fn(&groups[gi], b, p)
			}
		}
	}
}
