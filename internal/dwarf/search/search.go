package search

import (
	"debug/dwarf"

	"github.com/coral-mesh/tidepool/internal/dwarf/die"
)

// VariableMatch is the result of a variable lookup: the variable DIE and
// the subprogram whose scope it was found in. Subprogram is nil for
// unit-global variables.
type VariableMatch struct {
	Variable   *die.DIE
	Subprogram *die.DIE
}

// Variable locates the DIE of the variable visible as name at pc inside
// the given unit. Scoping follows the source program: the search
// descends only into subprograms and lexical blocks whose pc ranges
// cover pc, and when the name is bound in several nested scopes the
// innermost binding shadows the outer ones. With no in-scope local
// match, unit-global variables are the fallback. A nil return means no
// variable of that name is visible.
func Variable(store *die.Store, unit *die.Unit, name string, pc uint64) (*VariableMatch, error) {
	root, err := store.DIE(unit.Root)
	if err != nil {
		return nil, err
	}

	var best *VariableMatch
	bestDepth := -1

	var walk func(d *die.DIE, sub *die.DIE, depth int) error
	walk = func(d *die.DIE, sub *die.DIE, depth int) error {
		children, err := store.Children(d)
		if err != nil {
			return err
		}
		for _, c := range children {
			switch c.Tag {
			case dwarf.TagVariable, dwarf.TagFormalParameter:
				// Globals sit at depth 0; anything deeper is scoped
				// and only reachable through an in-range scope.
				if n, ok := c.Name(); ok && n == name && depth > bestDepth {
					best = &VariableMatch{Variable: c, Subprogram: sub}
					bestDepth = depth
				}
			case dwarf.TagSubprogram, dwarf.TagInlinedSubroutine:
				if !c.ContainsPC(pc) {
					continue
				}
				if err := walk(c, c, depth+1); err != nil {
					return err
				}
			case dwarf.TagLexDwarfBlock:
				// Blocks without explicit ranges inherit the
				// enclosing scope's coverage.
				if c.HasRanges() && !c.ContainsPC(pc) {
					continue
				}
				if err := walk(c, sub, depth+1); err != nil {
					return err
				}
			case dwarf.TagNamespace, dwarf.TagModule:
				if err := walk(c, sub, depth); err != nil {
					return err
				}
			}
		}
		return nil
	}

	if err := walk(root, nil, 0); err != nil {
		return nil, err
	}
	return best, nil
}

// typeTags are the DIE tags that define a named type.
var typeTags = map[dwarf.Tag]bool{
	dwarf.TagBaseType:        true,
	dwarf.TagPointerType:     true,
	dwarf.TagArrayType:       true,
	dwarf.TagStructType:      true,
	dwarf.TagUnionType:       true,
	dwarf.TagEnumerationType: true,
	dwarf.TagTypedef:         true,
}

// AllTypeDIEs returns the offsets of every type DIE named name, across
// all units in section order. DWARF has no name index, so this is a
// depth-first scan; several units may define the same name and all
// candidates are returned for the caller to disambiguate with its
// unit/pc context.
func AllTypeDIEs(store *die.Store, name string) ([]dwarf.Offset, error) {
	var out []dwarf.Offset

	var walk func(d *die.DIE) error
	walk = func(d *die.DIE) error {
		if typeTags[d.Tag] {
			if n, ok := d.Name(); ok && n == name {
				out = append(out, d.Offset)
			}
		}
		children, err := store.Children(d)
		if err != nil {
			return err
		}
		for _, c := range children {
			if err := walk(c); err != nil {
				return err
			}
		}
		return nil
	}

	for _, u := range store.Units() {
		root, err := store.DIE(u.Root)
		if err != nil {
			return nil, err
		}
		if err := walk(root); err != nil {
			return nil, err
		}
	}
	return out, nil
}
