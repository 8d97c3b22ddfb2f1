// Package pbd holds the bead-on-wire state and the per-lane math of one
// position-based dynamics substep.
//
// A substep is split into four phases, each run over every bead of every
// group before the next phase starts:
//
//   - [PhasePredict]: remember the start position and extrapolate from velocity
//   - [PhaseProject]: snap the prediction back onto the wire circle
//   - [PhaseResolve]: push overlapping beads of the same group apart
//   - [PhaseCommit]: accept the position and derive velocity from the motion
//
// The functions here operate on a single lane (one bead of one group) so the
// same code can be driven serially in tests or fanned out by a compute
// backend.
//
// # Example
//
//	groups := pbd.NewGroups(4, pbd.DefaultInitOptions())
//	p := pbd.Params{Dt: 1.0 / 6000}
//	for _, phase := range pbd.Phases {
//		for g := range groups {
//			for b := 0; b < pbd.BeadCount; b++ {
//				pbd.RunLane(phase, &groups[g], b, p)
//			}
//		}
//	}
package pbd
