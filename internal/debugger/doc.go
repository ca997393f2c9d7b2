// Package debugger ties the DIE store, the type resolver, the location
// evaluator and a target provider together into one debug session.
//
// The session owns the per-image type cache: reload the image, call
// InvalidateTypes. EvaluateVariable is the main entry point and runs the
// full pipeline, from name lookup at a pc down to a printed value.
package debugger
