// Package die holds the in-memory model of DWARF debugging information
// entries: an arena of DIEs indexed by section offset, their attributes,
// and the compilation units that own them.
//
// Parent/child edges are offset lists into the arena. Cross-references
// such as DW_AT_type are plain offset lookups into the same arena, so
// self-referential type graphs never form ownership cycles.
package die
