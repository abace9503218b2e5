package attrindex

import (
	"fmt"
	"log/slog"
	"math"
	"runtime/debug"
	"slices"
)

// sorter splits a column scan into sorted chunk files, holding at most
// one chunk of records in memory.
type sorter struct {
	l      layout
	budget int64
	dir    string
	codec  Compression
	logger *slog.Logger

	spills []string // chunk files, in creation order
	rows   int64    // rows consumed so far
}

// chunkCapacity returns the number of records per chunk.
func chunkCapacity(totalRows, budget int64, width int) int64 {
	return max(1, min(totalRows, budget/int64(width)))
}

// checkMemoryLimit rejects chunks that cannot fit under the runtime soft
// memory limit. Go does not surface allocation failures as errors.
func checkMemoryLimit(need int64) error {
	limit := debug.SetMemoryLimit(-1)
	if limit != math.MaxInt64 && need > limit {
		return fmt.Errorf("%w: chunks of %d bytes exceed the runtime memory limit of %d bytes, use a smaller memory budget",
			ErrMemoryBudget, need, limit)
	}
	return nil
}

// Run consumes the cursor. Chunk files created so far are recorded in
// s.spills even when an error is returned.
func (s *sorter) Run(cur Cursor, totalRows int64) error {
	capacity := chunkCapacity(totalRows, s.budget, s.l.width)
	if err := checkMemoryLimit(capacity * int64(s.l.width)); err != nil {
		return err
	}

	buf := make([]Record, 0, capacity)
	for {
		buf = buf[:0]
		for int64(len(buf)) < capacity && cur.Next() {
			s.rows++

			v := cur.Value()
			if v == nil || v.Kind() != s.l.kind {
				got := Kind(0)
				if v != nil {
					got = v.Kind()
				}
				return fmt.Errorf("attrindex: row %d: %w", s.rows, &TypeMismatchError{Want: s.l.kind, Got: got})
			}
			buf = append(buf, Record{Value: v, RowID: uint64(s.rows)})
		}
		if err := cur.Err(); err != nil {
			return fmt.Errorf("attrindex: scan after row %d: %w", s.rows, err)
		}
		if len(buf) == 0 {
			return nil
		}

		sortChunk(buf)
		if err := s.spill(buf); err != nil {
			return err
		}
		if int64(len(buf)) < capacity {
			return nil
		}
	}
}

// sortChunk sorts records by value. The sort is stable, so equal values
// keep their row order.
func sortChunk(recs []Record) {
	slices.SortStableFunc(recs, func(a, b Record) int {
		n, _ := Compare(a.Value, b.Value)
		return n
	})
}

func (s *sorter) spill(recs []Record) error {
	w, err := createSpill(s.dir, s.l, s.codec)
	if err != nil {
		return err
	}
	s.spills = append(s.spills, w.Name())

	for _, rec := range recs {
		if err := w.Append(rec); err != nil {
			_ = w.Close()
			return err
		}
	}
	if err := w.Close(); err != nil {
		return err
	}

	s.logger.Debug("chunk spilled",
		slog.String("file", w.Name()),
		slog.Int("chunk", len(s.spills)),
		slog.Int("records", len(recs)))
	return nil
}
