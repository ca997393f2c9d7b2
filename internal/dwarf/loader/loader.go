package loader

import (
	"debug/dwarf"
	"encoding/binary"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/coral-mesh/tidepool/internal/dwarf/die"
)

// scopedTags carry pc ranges worth resolving at load time.
var scopedTags = map[dwarf.Tag]bool{
	dwarf.TagCompileUnit:       true,
	dwarf.TagSubprogram:        true,
	dwarf.TagLexDwarfBlock:     true,
	dwarf.TagInlinedSubroutine: true,
}

// Load walks the DWARF data once and materializes every entry into a
// die.Store arena. Attribute values are converted into the store's
// variant model; pc ranges of scope-carrying entries are resolved up
// front so later searches never touch the raw range sections.
func Load(d *dwarf.Data, logger zerolog.Logger) (*die.Store, error) {
	store := die.NewStore()
	r := d.Reader()

	var stack []*die.DIE
	var unit *die.Unit

	for {
		entry, err := r.Next()
		if err != nil {
			return nil, fmt.Errorf("failed to read DWARF entry: %w", err)
		}
		if entry == nil {
			break
		}

		// A null entry terminates the current sibling list.
		if entry.Tag == 0 {
			if len(stack) > 0 {
				stack = stack[:len(stack)-1]
			}
			continue
		}

		if entry.Tag == dwarf.TagCompileUnit {
			name, _ := entry.Val(dwarf.AttrName).(string)
			unit = store.AddUnit(name)
			unit.Root = entry.Offset
			if base, ok := asUint(entry.Val(dwarf.AttrAddrBase)); ok {
				unit.AddrBase = base
			}
			stack = stack[:0]
		}
		if unit == nil {
			// Entries before the first compile unit (type units we
			// do not model) are skipped.
			continue
		}

		de := die.NewDIE(entry.Offset, entry.Tag, unit.Index)
		for _, f := range entry.Field {
			de.SetAttr(convertField(f))
		}

		if scopedTags[entry.Tag] {
			if ranges, err := d.Ranges(entry); err == nil {
				for _, rr := range ranges {
					de.Ranges = append(de.Ranges, die.PCRange{Low: rr[0], High: rr[1]})
				}
			}
		}
		if entry.Tag == dwarf.TagCompileUnit {
			unit.Ranges = de.Ranges
		}

		store.AddDIE(de)
		if len(stack) > 0 {
			parent := stack[len(stack)-1]
			parent.Children = append(parent.Children, de.Offset)
		}
		if entry.Children {
			stack = append(stack, de)
		}
	}

	logger.Debug().
		Int("dies", store.Len()).
		Int("units", len(store.Units())).
		Msg("Loaded debug info")

	return store, nil
}

// convertField maps one debug/dwarf attribute field into the store's
// variant model, keyed by the field's value class.
func convertField(f dwarf.Field) die.Attribute {
	a := die.Attribute{Name: f.Attr}

	switch v := f.Val.(type) {
	case string:
		a.Class = die.ClassString
		a.Str = v
	case bool:
		a.Class = die.ClassFlag
		a.Flag = v
	case []byte:
		a.Class = die.ClassBlock
		a.Block = v
	case dwarf.Offset:
		a.Class = die.ClassReference
		a.Ref = v
	case uint64:
		if f.Class == dwarf.ClassAddress {
			a.Class = die.ClassAddress
			a.Addr = v
		} else {
			a.Class = die.ClassUint
			a.Uint = v
		}
	case int64:
		a.Class = die.ClassInt
		a.Int = v
	default:
		a.Class = die.ClassUnknown
	}
	return a
}

func asUint(v any) (uint64, bool) {
	switch n := v.(type) {
	case uint64:
		return n, true
	case int64:
		if n < 0 {
			return 0, false
		}
		return uint64(n), true
	default:
		return 0, false
	}
}

// byteOrderOf is a tiny helper for tests and callers that already know
// the image is little-endian but want to be explicit.
func byteOrderOf(littleEndian bool) binary.ByteOrder {
	if littleEndian {
		return binary.LittleEndian
	}
	return binary.BigEndian
}
