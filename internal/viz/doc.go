// Package viz renders trajectories for the terminal.
//
//   - [Canvas]: braille pixel canvas, 2x4 sub-pixels per cell
//   - [Phase]: a planar projection of two state components
//   - [Orbit]: an orthographic view of a rotated 3D trajectory
//   - [Summary] and [Sparkline]: lipgloss styled run reports
package viz
