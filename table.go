package attrindex

import "fmt"

// Table is the row source an index is built from. Build only needs
// forward-only access to a single column.
type Table interface {
	// Column describes the named column or returns ErrNoColumn.
	Column(name string) (ColumnInfo, error)
	// NumRows returns the total number of rows.
	NumRows() int64
	// Scan opens a cursor over the values of the named column in table order.
	Scan(column string) (Cursor, error)
}

// ColumnInfo describes a single table column.
type ColumnInfo struct {
	Name string
	Kind Kind
	// Width is the value width in bytes. It is required for KindChar,
	// must be 4 or 8 for KindNumeric (0 means 8) and ignored otherwise.
	Width int
}

// Cursor iterates over column values.
type Cursor interface {
	// Next advances the cursor and returns true if a value is available.
	Next() bool
	// Value returns the current value.
	Value() Value
	// Err exposes iteration errors, if any.
	Err() error
	// Close releases the cursor.
	Close() error
}

// --------------------------------------------------------------------

// MemTable is an in-memory Table.
type MemTable struct {
	cols   []ColumnInfo
	values map[string][]Value
	rows   int64
}

// NewMemTable creates an empty table.
func NewMemTable() *MemTable {
	return &MemTable{values: make(map[string][]Value)}
}

// AddColumn adds a column. All columns must hold the same number of values
// and every value must match the column kind.
func (t *MemTable) AddColumn(col ColumnInfo, values []Value) error {
	if _, ok := t.values[col.Name]; ok {
		return fmt.Errorf("attrindex: duplicate column %q", col.Name)
	}
	if len(t.cols) != 0 && int64(len(values)) != t.rows {
		return fmt.Errorf("attrindex: column %q has %d values, table has %d rows", col.Name, len(values), t.rows)
	}
	for _, v := range values {
		if v.Kind() != col.Kind {
			return &TypeMismatchError{Want: col.Kind, Got: v.Kind()}
		}
	}

	t.cols = append(t.cols, col)
	t.values[col.Name] = values
	t.rows = int64(len(values))
	return nil
}

// Column implements Table.
func (t *MemTable) Column(name string) (ColumnInfo, error) {
	for _, c := range t.cols {
		if c.Name == name {
			return c, nil
		}
	}
	return ColumnInfo{}, fmt.Errorf("%w %q", ErrNoColumn, name)
}

// NumRows implements Table.
func (t *MemTable) NumRows() int64 { return t.rows }

// Scan implements Table.
func (t *MemTable) Scan(column string) (Cursor, error) {
	vals, ok := t.values[column]
	if !ok {
		return nil, fmt.Errorf("%w %q", ErrNoColumn, column)
	}
	return &sliceCursor{vals: vals, pos: -1}, nil
}

type sliceCursor struct {
	vals []Value
	pos  int
}

func (c *sliceCursor) Next() bool {
	if c.pos+1 >= len(c.vals) {
		c.pos = len(c.vals)
		return false
	}
	c.pos++
	return true
}

func (c *sliceCursor) Value() Value { return c.vals[c.pos] }
func (c *sliceCursor) Err() error   { return nil }
func (c *sliceCursor) Close() error { return nil }
