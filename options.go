package attrindex

import (
	"fmt"
	"log/slog"
	"path/filepath"
)

// BuildOptions define build specific options.
type BuildOptions struct {
	// MemoryBudget is the maximum number of bytes of encoded records held
	// in memory at once while sorting. It has no default and must be > 0.
	// The merge splits it across chunk read buffers and keeps every chunk
	// file open, so tiny budgets over many rows can exhaust the process
	// file descriptor limit.
	MemoryBudget int64

	// TempDir is the directory for temporary chunk files.
	// Default: the directory of the destination file.
	TempDir string

	// SpillCompression is the codec applied to temporary chunk files.
	// Default: NoCompression.
	SpillCompression Compression

	// Logger receives build progress.
	// Default: discard.
	Logger *slog.Logger
}

func (o *BuildOptions) norm(dst string) *BuildOptions {
	var oo BuildOptions
	if o != nil {
		oo = *o
	}

	if oo.TempDir == "" {
		oo.TempDir = filepath.Dir(dst)
	}
	if !oo.SpillCompression.isValid() {
		oo.SpillCompression = NoCompression
	}
	if oo.Logger == nil {
		oo.Logger = slog.New(slog.DiscardHandler)
	}

	return &oo
}

func (o *BuildOptions) validate() error {
	if o.MemoryBudget < 1 {
		return fmt.Errorf("%w: %d, must be positive", ErrMemoryBudget, o.MemoryBudget)
	}
	return nil
}

// ReaderOptions define reader specific options.
type ReaderOptions struct {
	// BufferRecords is the number of records fetched per read during
	// sequential scans.
	// Default: 256.
	BufferRecords int
}

func (o *ReaderOptions) norm() *ReaderOptions {
	var oo ReaderOptions
	if o != nil {
		oo = *o
	}

	if oo.BufferRecords < 1 {
		oo.BufferRecords = 256
	}

	return &oo
}
