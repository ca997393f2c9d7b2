// Package op executes DWARF location expressions on a typed stack
// machine, producing the ordered list of pieces that compose an object's
// location.
//
// Opcodes that depend on the target (memory dereference, register reads,
// frame base, TLS and indexed addressing) do not fail when the datum is
// absent: the evaluator suspends with an explicit Requirement, the caller
// performs the round trip and resumes it. One external round trip drives
// at most one evaluation step.
package op
