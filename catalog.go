package attrindex

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
)

// Catalog is a line-oriented text ledger of indexed columns. The column on
// line n (1-based) owns the index file "<base>.<n>.idx" next to the ledger,
// where base is the ledger file name without its extension.
//
// Readers may run concurrently with a single appender: a trailing line
// without a newline is not yet committed and is ignored. Appenders hold an
// exclusive file lock, so concurrent builds on one ledger run one at a time.
type Catalog struct {
	path string
	dir  string
	base string

	mu sync.Mutex // serializes appends within the process
}

// OpenCatalog opens the ledger at path, creating an empty one if needed.
func OpenCatalog(path string) (*Catalog, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("attrindex: open catalog: %w", err)
	}
	if err := f.Close(); err != nil {
		return nil, fmt.Errorf("attrindex: open catalog: %w", err)
	}

	base := filepath.Base(path)
	return &Catalog{
		path: path,
		dir:  filepath.Dir(path),
		base: strings.TrimSuffix(base, filepath.Ext(base)),
	}, nil
}

// Path returns the ledger path.
func (c *Catalog) Path() string { return c.path }

// FileName returns the index file name owned by the entry on line n.
func (c *Catalog) FileName(n int) string {
	return filepath.Join(c.dir, fmt.Sprintf("%s.%d.idx", c.base, n))
}

// Columns returns all committed column names in ledger order. It takes no
// lock and does not wait for appends in progress.
func (c *Catalog) Columns() ([]string, error) {
	f, err := os.Open(c.path)
	if err != nil {
		return nil, fmt.Errorf("attrindex: open catalog: %w", err)
	}
	defer f.Close()

	cols, _, err := readEntries(f)
	return cols, err
}

// Lookup returns the index file of column.
func (c *Catalog) Lookup(column string) (string, bool, error) {
	cols, err := c.Columns()
	if err != nil {
		return "", false, err
	}
	if i := slices.Index(cols, column); i > -1 {
		return c.FileName(i + 1), true, nil
	}
	return "", false, nil
}

// Has returns true if column has an entry.
func (c *Catalog) Has(column string) (bool, error) {
	_, ok, err := c.Lookup(column)
	return ok, err
}

// Register records that column now has an index and returns the name of
// the index file it owns. It returns ErrAlreadyIndexed for known columns.
func (c *Catalog) Register(column string) (string, error) {
	return c.Append(column, nil)
}

// Append appends column to the ledger while holding the ledger write lock.
// If fn is not nil it is called first with the index file name the new
// entry will own; the entry is only committed when fn succeeds. Known
// columns fail with ErrAlreadyIndexed before fn is called.
func (c *Catalog) Append(column string, fn func(file string) error) (string, error) {
	if column == "" || strings.ContainsAny(column, "\r\n") {
		return "", fmt.Errorf("%w %q", ErrBadColumnName, column)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	f, err := os.OpenFile(c.path, os.O_RDWR|os.O_APPEND, 0o644)
	if err != nil {
		return "", fmt.Errorf("attrindex: open catalog: %w", err)
	}
	defer f.Close()

	if err := lockFile(f); err != nil {
		return "", fmt.Errorf("attrindex: lock catalog %s: %w", c.path, err)
	}
	defer unlockFile(f)

	cols, committed, err := readEntries(f)
	if err != nil {
		return "", err
	}
	if slices.Index(cols, column) > -1 {
		return "", fmt.Errorf("%w: %q", ErrAlreadyIndexed, column)
	}

	file := c.FileName(len(cols) + 1)
	if fn != nil {
		if err := fn(file); err != nil {
			return "", err
		}
	}

	// drop a torn line left behind by an interrupted append
	if err := f.Truncate(committed); err != nil {
		return "", fmt.Errorf("attrindex: repair catalog %s: %w", c.path, err)
	}
	if _, err := io.WriteString(f, column+"\n"); err != nil {
		return "", fmt.Errorf("attrindex: append to catalog %s: %w", c.path, err)
	}
	if err := f.Sync(); err != nil {
		return "", fmt.Errorf("attrindex: sync catalog %s: %w", c.path, err)
	}
	return file, nil
}

// readEntries reads committed lines and returns them with the byte length
// of the committed part.
func readEntries(r io.Reader) ([]string, int64, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, 0, fmt.Errorf("attrindex: read catalog: %w", err)
	}

	committed := bytes.LastIndexByte(data, '\n') + 1
	data = data[:committed]

	var cols []string
	for len(data) != 0 {
		i := bytes.IndexByte(data, '\n')
		cols = append(cols, strings.TrimSuffix(string(data[:i]), "\r"))
		data = data[i+1:]
	}
	return cols, int64(committed), nil
}
