// Package typeinfo resolves DWARF type DIEs into structured type
// descriptions with transitively computed byte sizes, memoized per
// session.
package typeinfo
