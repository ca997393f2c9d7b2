package value

import (
	"fmt"

	"github.com/coral-mesh/tidepool/internal/dwarf/typeinfo"
)

// InsufficientDataError reports a byte stream shorter than the type
// requires, typically an incomplete location for a partially optimized
// variable.
type InsufficientDataError struct {
	Need int64
	Have int64
}

func (e InsufficientDataError) Error() string {
	return fmt.Sprintf("need %d bytes, location provided %d", e.Need, e.Have)
}

// UnsupportedEncodingError reports a base type encoding the materializer
// does not understand.
type UnsupportedEncodingError struct {
	Encoding typeinfo.Encoding
	ByteSize int64
}

func (e UnsupportedEncodingError) Error() string {
	return fmt.Sprintf("unsupported encoding %s with byte size %d", e.Encoding, e.ByteSize)
}
