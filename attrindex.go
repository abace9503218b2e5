package attrindex

import (
	"errors"
	"fmt"
)

// HeaderSize is the size of the index file header in bytes.
const HeaderSize = 9

// RowIDSize is the size of the row identifier suffix of every record.
const RowIDSize = 8

// ErrNoColumn is returned when a table has no column with the requested name.
var ErrNoColumn = errors.New("attrindex: no such column")

// ErrMemoryBudget is returned when the build memory budget is not usable.
var ErrMemoryBudget = errors.New("attrindex: bad memory budget")

// ErrBadWidth is returned when a column declares a value width its kind
// cannot be stored with.
var ErrBadWidth = errors.New("attrindex: bad column width")

// ErrEndOfIndex is returned by Reader.Next when no records are left.
var ErrEndOfIndex = errors.New("attrindex: end of index")

// ErrOutOfRange is returned when a record number lies outside the index.
var ErrOutOfRange = errors.New("attrindex: record number out of range")

// ErrAlreadyIndexed is returned when a column already has a catalog entry.
var ErrAlreadyIndexed = errors.New("attrindex: column already indexed")

// ErrNotIndexed is returned when a column has no catalog entry.
var ErrNotIndexed = errors.New("attrindex: column not indexed")

// ErrTypeMismatch is wrapped by every TypeMismatchError.
var ErrTypeMismatch = errors.New("attrindex: type mismatch")

// Format errors, returned when an index file cannot be trusted.
var (
	ErrTruncated = errors.New("attrindex: truncated index file")
	ErrBadHeader = errors.New("attrindex: inconsistent header")
	ErrBadKind   = errors.New("attrindex: unknown type tag")
)

// ErrValueTooWide is returned when a value does not fit its fixed-width field.
var ErrValueTooWide = errors.New("attrindex: value exceeds field width")

// ErrBadColumnName is returned by the catalog for unusable column names.
var ErrBadColumnName = errors.New("attrindex: bad column name")

var (
	errBadCompression = errors.New("attrindex: bad compression codec")
	errClosed         = errors.New("attrindex: is closed")
)

// TypeMismatchError reports a value of one kind used where another was expected.
type TypeMismatchError struct {
	Want Kind
	Got  Kind
}

func (e *TypeMismatchError) Error() string {
	return fmt.Sprintf("attrindex: type mismatch, want %s, got %s", e.Want, e.Got)
}

// Unwrap allows errors.Is(err, ErrTypeMismatch).
func (e *TypeMismatchError) Unwrap() error { return ErrTypeMismatch }

// --------------------------------------------------------------------

// Kind is the single-byte type tag stored in the index header.
type Kind byte

// Supported kinds.
const (
	KindNumeric Kind = 'N'
	KindFloat   Kind = 'F'
	KindLogical Kind = 'L'
	KindDate    Kind = 'D'
	KindChar    Kind = 'C'
)

func (k Kind) isValid() bool {
	switch k {
	case KindNumeric, KindFloat, KindLogical, KindDate, KindChar:
		return true
	}
	return false
}

func (k Kind) String() string {
	switch k {
	case KindNumeric:
		return "numeric"
	case KindFloat:
		return "float"
	case KindLogical:
		return "logical"
	case KindDate:
		return "date"
	case KindChar:
		return "char"
	}
	return fmt.Sprintf("unknown(%#02x)", byte(k))
}

// ParseKind parses a type tag such as "N" or "C".
func ParseKind(s string) (Kind, error) {
	if len(s) != 1 || !Kind(s[0]).isValid() {
		return 0, fmt.Errorf("%w %q", ErrBadKind, s)
	}
	return Kind(s[0]), nil
}

// --------------------------------------------------------------------

// Compression is the codec applied to temporary chunk files.
type Compression byte

func (c Compression) isValid() bool {
	return c < unknownCompression
}

// Supported compression codecs
const (
	NoCompression Compression = iota
	SnappyCompression
	LZ4Compression
	ZstdCompression
	unknownCompression
)

// ParseCompression parses a codec name: none, snappy, lz4 or zstd.
func ParseCompression(s string) (Compression, error) {
	switch s {
	case "", "none":
		return NoCompression, nil
	case "snappy":
		return SnappyCompression, nil
	case "lz4":
		return LZ4Compression, nil
	case "zstd":
		return ZstdCompression, nil
	}
	return 0, fmt.Errorf("%w %q", errBadCompression, s)
}
