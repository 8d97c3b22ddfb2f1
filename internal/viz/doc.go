// Package viz renders bead traces and timing reports in the terminal.
//
//   - [Canvas]: Braille-based pixel canvas, 2x4 sub-pixels per cell
//   - [Model]: Bubble Tea replay of one group's trace
//   - [AngleChart], [SweepChart]: asciigraph plots
//   - [TimingReport], [SweepTable]: lipgloss panels
//
// # Key Bindings
//
//	Space - Play/Pause
//	←/→   - Step one frame
//	R     - Restart
//	T     - Cycle color themes
//	G     - Toggle GIF recording
//	?     - Show help overlay
package viz
