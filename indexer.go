package attrindex

import (
	"errors"
	"fmt"
	"log/slog"
)

// Indexer builds and queries column indexes registered in a Catalog.
type Indexer struct {
	cat *Catalog
	o   BuildOptions
}

// NewIndexer creates an indexer. The options are used for every build.
func NewIndexer(cat *Catalog, o *BuildOptions) *Indexer {
	var oo BuildOptions
	if o != nil {
		oo = *o
	}
	return &Indexer{cat: cat, o: oo}
}

// Catalog returns the underlying catalog.
func (x *Indexer) Catalog() *Catalog { return x.cat }

// Build indexes a table column and records it in the catalog. It returns
// the index file name. Columns that already have an entry fail with
// ErrAlreadyIndexed and their index file is left untouched.
func (x *Indexer) Build(tbl Table, column string) (string, *BuildStats, error) {
	if err := x.o.validate(); err != nil {
		return "", nil, err
	}
	col, err := tbl.Column(column)
	if err != nil {
		return "", nil, err
	}
	if _, err := layoutFor(col); err != nil {
		return "", nil, fmt.Errorf("attrindex: column %q: %w", column, err)
	}

	var (
		stats *BuildStats
		built string
	)
	file, err := x.cat.Append(column, func(file string) (err error) {
		stats, err = Build(file, tbl, column, &x.o)
		built = file
		return err
	})
	if err != nil {
		if stats != nil {
			// built but not committed
			removeTemp(built)
		}
		return "", nil, err
	}
	return file, stats, nil
}

// Open opens the index of column.
func (x *Indexer) Open(column string) (*Reader, error) {
	file, ok, err := x.cat.Lookup(column)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrNotIndexed, column)
	}
	return Open(file, nil)
}

// Lookup returns the row identifiers of column values equal to v.
func (x *Indexer) Lookup(column string, v Value) ([]uint64, error) {
	r, err := x.Open(column)
	if err != nil {
		return nil, err
	}
	defer r.Close()

	ids, err := r.FindRowIDs(v)
	if err != nil && !errors.Is(err, ErrTypeMismatch) {
		x.logger().Warn("index lookup failed",
			slog.String("column", column),
			slog.String("error", err.Error()))
	}
	return ids, err
}

func (x *Indexer) logger() *slog.Logger {
	if x.o.Logger != nil {
		return x.o.Logger
	}
	return slog.New(slog.DiscardHandler)
}
