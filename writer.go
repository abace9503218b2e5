package attrindex

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
)

var mergeSpills = merge

// BuildStats summarises a finished build.
type BuildStats struct {
	BuildID     string        // unique build identifier, also used in logs
	Records     int64         // number of records in the index
	Chunks      int           // number of sorted chunks merged
	RecordWidth int           // bytes per record
	Duration    time.Duration // wall time
}

// Build creates the index file dst over a single table column.
//
// Values are sorted in chunks of at most o.MemoryBudget bytes, spilled to
// temporary files and merged. The index only appears under dst once it is
// complete; temporary files are removed on every exit path. Equal values
// are stored in ascending row order.
func Build(dst string, tbl Table, column string, o *BuildOptions) (*BuildStats, error) {
	o = o.norm(dst)
	if err := o.validate(); err != nil {
		return nil, err
	}

	col, err := tbl.Column(column)
	if err != nil {
		return nil, err
	}
	l, err := layoutFor(col)
	if err != nil {
		return nil, fmt.Errorf("attrindex: column %q: %w", column, err)
	}

	start := time.Now()
	stats := &BuildStats{BuildID: uuid.NewString(), RecordWidth: l.width}
	logger := o.Logger.With(
		slog.String("build_id", stats.BuildID),
		slog.String("column", column),
		slog.String("file", dst))

	cur, err := tbl.Scan(column)
	if err != nil {
		return nil, err
	}

	s := &sorter{
		l:      l,
		budget: o.MemoryBudget,
		dir:    o.TempDir,
		codec:  o.SpillCompression,
		logger: logger,
	}
	defer func() {
		for _, name := range s.spills {
			removeTemp(name)
		}
	}()

	err = s.Run(cur, tbl.NumRows())
	if e := cur.Close(); err == nil && e != nil {
		err = fmt.Errorf("attrindex: close cursor: %w", e)
	}
	if err != nil {
		return nil, err
	}
	logger.Debug("column sorted",
		slog.Int64("rows", s.rows),
		slog.Int("chunks", len(s.spills)))

	err = writeAtomic(dst, func(f *os.File) error {
		n, err := mergeSpills(f, l, s.spills, o.SpillCompression, o.MemoryBudget)
		stats.Records = n
		return err
	})
	if err != nil {
		return nil, err
	}

	stats.Chunks = len(s.spills)
	stats.Duration = time.Since(start)
	logger.Info("index built",
		slog.Int64("records", stats.Records),
		slog.Int("chunks", stats.Chunks),
		slog.Int("record_width", stats.RecordWidth),
		slog.Duration("duration", stats.Duration))
	return stats, nil
}

// writeAtomic writes a file through fn into a temporary sibling of name
// and renames it into place once complete.
func writeAtomic(name string, fn func(*os.File) error) error {
	dir, base := filepath.Split(name)
	if dir == "" {
		dir = "."
	}

	tmp, err := os.CreateTemp(dir, base+".tmp-*")
	if err != nil {
		return fmt.Errorf("attrindex: create %s: %w", name, err)
	}
	tmpName := tmp.Name()
	defer func() {
		_ = tmp.Close()
		if tmpName != "" {
			removeTemp(tmpName)
		}
	}()

	if err := fn(tmp); err != nil {
		return err
	}
	if err := tmp.Sync(); err != nil {
		return fmt.Errorf("attrindex: sync %s: %w", tmpName, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("attrindex: close %s: %w", tmpName, err)
	}
	if err := os.Rename(tmpName, name); err != nil {
		return fmt.Errorf("attrindex: rename %s: %w", tmpName, err)
	}

	// make the rename durable, best-effort
	if d, err := os.Open(dir); err == nil {
		_ = d.Sync()
		_ = d.Close()
	}

	tmpName = ""
	return nil
}
