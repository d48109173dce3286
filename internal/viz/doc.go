// Package viz renders tuning progress in the terminal.
//
// [Model] is a Bubble Tea program fed by a [Feed], which a tuner session
// notifies after every trial. [PlotErrors] draws the same error history for a
// stored session.
//
// # Key Bindings
//
//	Space - Freeze/unfreeze the display
//	T     - Cycle color themes
//	Q     - Stop the search and quit
package viz
