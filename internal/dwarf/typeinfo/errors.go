package typeinfo

import (
	"debug/dwarf"
	"errors"
	"fmt"
)

// ErrTypeNotFound is returned when a type offset does not resolve to a
// type-describing DIE.
var ErrTypeNotFound = errors.New("type not found")

// ErrMissingBound is returned when an array type has no subrange count or
// upper bound, so its size cannot be computed.
var ErrMissingBound = errors.New("array subrange has no count or upper bound")

// MissingAttributeError reports a type DIE lacking a required attribute.
type MissingAttributeError struct {
	Offset dwarf.Offset
	Attr   dwarf.Attr
}

func (e MissingAttributeError) Error() string {
	return fmt.Sprintf("type DIE at 0x%x is missing attribute %s", uint64(e.Offset), e.Attr)
}

// MalformedTypeError reports a type DIE the resolver cannot make sense
// of: unexpected tags, reference cycles, inconsistent layouts.
type MalformedTypeError struct {
	Offset dwarf.Offset
	Reason string
}

func (e MalformedTypeError) Error() string {
	return fmt.Sprintf("malformed type at 0x%x: %s", uint64(e.Offset), e.Reason)
}
