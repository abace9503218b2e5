package attrindex

import (
	"cmp"
	"strconv"
	"strings"
	"time"
)

// Value is a typed column value. The set of implementations is closed:
// Int32, Int64, Float, Bool, Timestamp and Text.
type Value interface {
	// Kind returns the type tag of the value.
	Kind() Kind
	// String returns a human readable form.
	String() string

	sealed()
}

// Int32 is a numeric value from a 32-bit column.
type Int32 int32

// Int64 is a numeric value from a 64-bit column.
type Int64 int64

// Float is a floating-point value.
type Float float64

// Bool is a logical value.
type Bool bool

// Timestamp is a date/time value in milliseconds since the Unix epoch.
type Timestamp int64

// Text is a fixed-width character value.
type Text string

// TimestampOf converts t to a Timestamp.
func TimestampOf(t time.Time) Timestamp { return Timestamp(t.UnixMilli()) }

// Time returns the timestamp as a UTC time.
func (v Timestamp) Time() time.Time { return time.UnixMilli(int64(v)).UTC() }

func (Int32) Kind() Kind     { return KindNumeric }
func (Int64) Kind() Kind     { return KindNumeric }
func (Float) Kind() Kind     { return KindFloat }
func (Bool) Kind() Kind      { return KindLogical }
func (Timestamp) Kind() Kind { return KindDate }
func (Text) Kind() Kind      { return KindChar }

func (v Int32) String() string     { return strconv.FormatInt(int64(v), 10) }
func (v Int64) String() string     { return strconv.FormatInt(int64(v), 10) }
func (v Float) String() string     { return strconv.FormatFloat(float64(v), 'g', -1, 64) }
func (v Bool) String() string      { return strconv.FormatBool(bool(v)) }
func (v Timestamp) String() string { return v.Time().Format(time.RFC3339Nano) }
func (v Text) String() string      { return string(v) }

func (Int32) sealed()     {}
func (Int64) sealed()     {}
func (Float) sealed()     {}
func (Bool) sealed()      {}
func (Timestamp) sealed() {}
func (Text) sealed()      {}

// Compare orders a and b by the natural order of their kind. It returns
// a negative number when a < b, zero when equal and a positive number
// otherwise. Values of different kinds return a *TypeMismatchError.
func Compare(a, b Value) (int, error) {
	if a.Kind() != b.Kind() {
		return 0, &TypeMismatchError{Want: a.Kind(), Got: b.Kind()}
	}

	switch x := a.(type) {
	case Int32, Int64:
		return cmp.Compare(intOf(x), intOf(b)), nil
	case Float:
		return cmp.Compare(float64(x), float64(b.(Float))), nil
	case Bool:
		y := b.(Bool)
		switch {
		case x == y:
			return 0, nil
		case !bool(x):
			return -1, nil
		}
		return 1, nil
	case Timestamp:
		return cmp.Compare(x, b.(Timestamp)), nil
	case Text:
		return strings.Compare(trimText(string(x)), trimText(string(b.(Text)))), nil
	}
	return 0, &TypeMismatchError{Want: b.Kind(), Got: a.Kind()}
}

// Equal reports whether a and b hold equal values of the same kind.
func Equal(a, b Value) bool {
	n, err := Compare(a, b)
	return err == nil && n == 0
}

func intOf(v Value) int64 {
	switch x := v.(type) {
	case Int32:
		return int64(x)
	case Int64:
		return int64(x)
	}
	return 0
}

func trimText(s string) string {
	return strings.Trim(s, " \x00")
}

// ParseValue parses s as a value of the given kind. Dates accept RFC 3339
// timestamps, YYYYMMDD dates or plain millisecond counts.
func ParseValue(kind Kind, s string) (Value, error) {
	switch kind {
	case KindNumeric:
		n, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
		if err != nil {
			return nil, err
		}
		if n >= -1<<31 && n < 1<<31 {
			return Int32(n), nil
		}
		return Int64(n), nil
	case KindFloat:
		f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
		if err != nil {
			return nil, err
		}
		return Float(f), nil
	case KindLogical:
		return Bool(parseLogical(strings.TrimSpace(s))), nil
	case KindDate:
		s = strings.TrimSpace(s)
		if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
			return TimestampOf(t), nil
		}
		if t, err := time.Parse("20060102", s); err == nil {
			return TimestampOf(t), nil
		}
		n, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return nil, err
		}
		return Timestamp(n), nil
	case KindChar:
		return Text(trimText(s)), nil
	}
	return nil, ErrBadKind
}

func parseLogical(s string) bool {
	switch s {
	case "1", "T", "t", "Y", "y", "true", "TRUE", "True":
		return true
	}
	return false
}
