// Package analysis characterizes bead motion recorded in a trace.
//
//   - [PowerSpectrum]: one-sided power spectrum of a bead angle series
//   - [PhasePortrait]: angle against angular velocity of one bead
//
// Both take unwrapped angle series sampled once per frame, as produced by
// viz.BeadAngles:
//
//	angles := viz.BeadAngles(frames)
//	s := analysis.PowerSpectrum(angles[0], 60)
//	f, _ := s.Dominant()
package analysis
