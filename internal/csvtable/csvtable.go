// Package csvtable exposes CSV files with a header row as attrindex tables.
package csvtable

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"slices"
	"strconv"
	"strings"

	"github.com/bsm/attrindex"
)

// ParseColumn parses a column declaration of the form NAME:KIND[:WIDTH],
// e.g. "NAME:C:32", "POP:N:8" or "OPENED:D". Char columns require a width,
// numeric ones accept 4 or 8.
func ParseColumn(s string) (attrindex.ColumnInfo, error) {
	parts := strings.Split(s, ":")
	if len(parts) < 2 || len(parts) > 3 || parts[0] == "" {
		return attrindex.ColumnInfo{}, fmt.Errorf("csvtable: bad column declaration %q, want NAME:KIND[:WIDTH]", s)
	}

	kind, err := attrindex.ParseKind(parts[1])
	if err != nil {
		return attrindex.ColumnInfo{}, err
	}

	col := attrindex.ColumnInfo{Name: parts[0], Kind: kind}
	if len(parts) == 3 {
		if col.Width, err = strconv.Atoi(parts[2]); err != nil || col.Width < 1 {
			return attrindex.ColumnInfo{}, fmt.Errorf("csvtable: bad width in column declaration %q", s)
		}
	}

	switch {
	case kind == attrindex.KindChar && col.Width == 0:
		return attrindex.ColumnInfo{}, fmt.Errorf("%w: column declaration %q needs a width", attrindex.ErrBadWidth, s)
	case kind == attrindex.KindNumeric && col.Width != 0 && col.Width != 4 && col.Width != 8:
		return attrindex.ColumnInfo{}, fmt.Errorf("%w: numeric column declaration %q needs width 4 or 8", attrindex.ErrBadWidth, s)
	}
	return col, nil
}

// Table is a CSV file with a header row. Only declared columns can be
// scanned.
type Table struct {
	path   string
	header []string
	cols   []attrindex.ColumnInfo
	rows   int64
}

// Open reads the header of the CSV file at path and counts its rows.
// Every declared column must appear in the header.
func Open(path string, cols ...attrindex.ColumnInfo) (*Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	r := newCSVReader(f)
	header, err := r.Read()
	if errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("csvtable: %s has no header", path)
	} else if err != nil {
		return nil, fmt.Errorf("csvtable: read header of %s: %w", path, err)
	}

	for _, col := range cols {
		if !slices.Contains(header, col.Name) {
			return nil, fmt.Errorf("%w %q in %s", attrindex.ErrNoColumn, col.Name, path)
		}
	}

	t := &Table{path: path, header: header, cols: cols}
	for {
		if _, err := r.Read(); errors.Is(err, io.EOF) {
			break
		} else if err != nil {
			return nil, fmt.Errorf("csvtable: read %s: %w", path, err)
		}
		t.rows++
	}
	return t, nil
}

// Column implements attrindex.Table.
func (t *Table) Column(name string) (attrindex.ColumnInfo, error) {
	for _, col := range t.cols {
		if col.Name == name {
			return col, nil
		}
	}
	return attrindex.ColumnInfo{}, fmt.Errorf("%w %q", attrindex.ErrNoColumn, name)
}

// NumRows implements attrindex.Table.
func (t *Table) NumRows() int64 { return t.rows }

// Scan implements attrindex.Table.
func (t *Table) Scan(column string) (attrindex.Cursor, error) {
	col, err := t.Column(column)
	if err != nil {
		return nil, err
	}

	f, err := os.Open(t.path)
	if err != nil {
		return nil, err
	}

	r := newCSVReader(f)
	if _, err := r.Read(); err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("csvtable: read header of %s: %w", t.path, err)
	}

	return &cursor{
		f:    f,
		r:    r,
		col:  col,
		pos:  slices.Index(t.header, column),
		path: t.path,
	}, nil
}

func newCSVReader(r io.Reader) *csv.Reader {
	cr := csv.NewReader(r)
	cr.ReuseRecord = true
	return cr
}

type cursor struct {
	f    *os.File
	r    *csv.Reader
	col  attrindex.ColumnInfo
	pos  int
	path string

	row int64
	val attrindex.Value
	err error
}

func (c *cursor) Next() bool {
	if c.err != nil {
		return false
	}

	rec, err := c.r.Read()
	if errors.Is(err, io.EOF) {
		return false
	} else if err != nil {
		c.err = fmt.Errorf("csvtable: read %s: %w", c.path, err)
		return false
	}
	c.row++

	if c.pos >= len(rec) {
		c.err = fmt.Errorf("csvtable: %s row %d has no %q field", c.path, c.row, c.col.Name)
		return false
	}

	v, err := attrindex.ParseValue(c.col.Kind, rec[c.pos])
	if err != nil {
		c.err = fmt.Errorf("csvtable: %s row %d column %q: %w", c.path, c.row, c.col.Name, err)
		return false
	}
	c.val = v
	return true
}

func (c *cursor) Value() attrindex.Value { return c.val }
func (c *cursor) Err() error             { return c.err }
func (c *cursor) Close() error           { return c.f.Close() }
