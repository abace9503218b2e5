package attrindex

import (
	"encoding/binary"
	"fmt"
	"math"

	"golang.org/x/text/encoding/charmap"
)

var byteOrder = binary.BigEndian

// Record is a single (value, row identifier) index entry. Records are
// ordered and compared by Value only; RowID tells duplicates apart.
type Record struct {
	Value Value
	RowID uint64 // 1-based
}

// Compare orders r and o by value.
func (r Record) Compare(o Record) (int, error) {
	return Compare(r.Value, o.Value)
}

// --------------------------------------------------------------------

// layout describes the fixed-width record encoding of a file. All byte
// offset arithmetic lives here.
type layout struct {
	kind  Kind
	width int // total record width, including the row id
}

func newLayout(kind Kind, width int) (layout, error) {
	l := layout{kind: kind, width: width}
	if !kind.isValid() {
		return l, fmt.Errorf("%w %#02x", ErrBadKind, byte(kind))
	}
	if !validValueWidth(kind, width-RowIDSize) {
		return l, fmt.Errorf("%w: record width %d is invalid for %s", ErrBadHeader, width, kind)
	}
	return l, nil
}

// layoutFor derives the record layout of a table column.
func layoutFor(col ColumnInfo) (layout, error) {
	if !col.Kind.isValid() {
		return layout{}, fmt.Errorf("%w %#02x", ErrBadKind, byte(col.Kind))
	}

	vw := col.Width
	switch col.Kind {
	case KindFloat, KindDate:
		vw = 8
	case KindLogical:
		vw = 1
	case KindNumeric:
		if vw == 0 {
			vw = 8
		}
	}
	if !validValueWidth(col.Kind, vw) {
		return layout{}, fmt.Errorf("%w: %d bytes for %s column %q", ErrBadWidth, col.Width, col.Kind, col.Name)
	}
	return layout{kind: col.Kind, width: vw + RowIDSize}, nil
}

func validValueWidth(kind Kind, vw int) bool {
	switch kind {
	case KindNumeric:
		return vw == 4 || vw == 8
	case KindFloat, KindDate:
		return vw == 8
	case KindLogical:
		return vw == 1
	case KindChar:
		return vw >= 1
	}
	return false
}

func (l layout) valueWidth() int { return l.width - RowIDSize }

// offset returns the file offset of record n.
func (l layout) offset(n int64) int64 { return HeaderSize + n*int64(l.width) }

// size returns the file size of an index holding count records.
func (l layout) size(count int64) int64 { return l.offset(count) }

// encode writes rec into dst, which must be exactly l.width bytes long.
func (l layout) encode(dst []byte, rec Record) error {
	if rec.Value == nil || rec.Value.Kind() != l.kind {
		got := Kind(0)
		if rec.Value != nil {
			got = rec.Value.Kind()
		}
		return &TypeMismatchError{Want: l.kind, Got: got}
	}

	vw := l.valueWidth()
	val := dst[:vw]

	switch v := rec.Value.(type) {
	case Int32, Int64:
		n := intOf(v)
		if vw == 4 {
			if n < math.MinInt32 || n > math.MaxInt32 {
				return fmt.Errorf("%w: %d does not fit 4 bytes", ErrValueTooWide, n)
			}
			byteOrder.PutUint32(val, uint32(int32(n)))
		} else {
			byteOrder.PutUint64(val, uint64(n))
		}
	case Float:
		byteOrder.PutUint64(val, math.Float64bits(float64(v)))
	case Bool:
		val[0] = 0
		if v {
			val[0] = 1
		}
	case Timestamp:
		byteOrder.PutUint64(val, uint64(v))
	case Text:
		enc, err := charmap.ISO8859_1.NewEncoder().Bytes([]byte(trimText(string(v))))
		if err != nil {
			return fmt.Errorf("attrindex: cannot encode %q as latin-1: %w", string(v), err)
		}
		if len(enc) > vw {
			return fmt.Errorf("%w: %q needs %d bytes, field has %d", ErrValueTooWide, string(v), len(enc), vw)
		}
		n := copy(val, enc)
		for i := n; i < vw; i++ {
			val[i] = ' '
		}
	}

	byteOrder.PutUint64(dst[vw:], rec.RowID)
	return nil
}

// decode reads a record from src, which must be exactly l.width bytes long.
func (l layout) decode(src []byte) Record {
	vw := l.valueWidth()
	val := src[:vw]

	var v Value
	switch l.kind {
	case KindNumeric:
		if vw == 4 {
			v = Int32(int32(byteOrder.Uint32(val)))
		} else {
			v = Int64(int64(byteOrder.Uint64(val)))
		}
	case KindFloat:
		v = Float(math.Float64frombits(byteOrder.Uint64(val)))
	case KindLogical:
		v = Bool(val[0] == 1 || parseLogical(string(val[:1])))
	case KindDate:
		v = Timestamp(int64(byteOrder.Uint64(val)))
	case KindChar:
		// latin-1 maps every byte, decoding cannot fail
		dec, _ := charmap.ISO8859_1.NewDecoder().Bytes(val)
		v = Text(trimText(string(dec)))
	}
	return Record{Value: v, RowID: byteOrder.Uint64(src[vw:])}
}

// --------------------------------------------------------------------

type header struct {
	kind  Kind
	width int32
	count int32
}

func (h header) encode(dst []byte) {
	dst[0] = byte(h.kind)
	byteOrder.PutUint32(dst[1:5], uint32(h.width))
	byteOrder.PutUint32(dst[5:9], uint32(h.count))
}

func decodeHeader(src []byte) header {
	return header{
		kind:  Kind(src[0]),
		width: int32(byteOrder.Uint32(src[1:5])),
		count: int32(byteOrder.Uint32(src[5:9])),
	}
}
