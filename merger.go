package attrindex

import (
	"bufio"
	"container/heap"
	"fmt"
	"io"
	"math"
	"os"
)

// mergeHead is the current record of one chunk.
type mergeHead struct {
	rec Record
	src int // chunk position
}

// mergeHeap orders chunk heads by value, then by chunk position, so the
// earlier chunk wins ties.
type mergeHeap []mergeHead

var _ heap.Interface = (*mergeHeap)(nil)

func (h mergeHeap) Len() int { return len(h) }
func (h mergeHeap) Less(i, j int) bool {
	if n, _ := Compare(h[i].rec.Value, h[j].rec.Value); n != 0 {
		return n < 0
	}
	return h[i].src < h[j].src
}
func (h mergeHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }
func (h *mergeHeap) Push(x any)   { *h = append(*h, x.(mergeHead)) }
func (h *mergeHeap) Pop() any {
	old := *h
	n := len(old)
	x := old[n-1]
	*h = old[:n-1]
	return x
}

// readBufferSize splits the memory budget across the chunk readers of a
// merge. Each reader buffers at least one record and at most
// spillBufferSize bytes.
func readBufferSize(budget int64, chunks, width int) int {
	n := budget / int64(max(chunks, 1))
	return int(max(int64(width), min(n, spillBufferSize)))
}

// merge combines the sorted chunk files into out: a header followed by
// all records in ascending order. It returns the number of records written.
// Chunk readers are always closed, the chunk files themselves are left
// for the caller to remove. All chunks are open at once, so the number of
// chunks is bounded by the process file descriptor limit.
func merge(out *os.File, l layout, spills []string, codec Compression, budget int64) (int64, error) {
	bufSize := readBufferSize(budget, len(spills), l.width)

	readers := make([]*spillReader, 0, len(spills))
	defer func() {
		for _, r := range readers {
			_ = r.Close()
		}
	}()

	heads := make(mergeHeap, 0, len(spills))
	for i, name := range spills {
		r, err := openSpill(name, l, codec, bufSize)
		if err != nil {
			return 0, err
		}
		readers = append(readers, r)

		rec, ok, err := r.Next()
		if err != nil {
			return 0, err
		}
		if ok {
			heads = append(heads, mergeHead{rec: rec, src: i})
		}
	}
	heap.Init(&heads)

	bw := bufio.NewWriterSize(out, spillBufferSize)
	if _, err := bw.Write(make([]byte, HeaderSize)); err != nil {
		return 0, fmt.Errorf("attrindex: write %s: %w", out.Name(), err)
	}

	tmp := make([]byte, l.width)
	var count int64
	for heads.Len() != 0 {
		head := &heads[0]
		if err := l.encode(tmp, head.rec); err != nil {
			return count, err
		}
		if _, err := bw.Write(tmp); err != nil {
			return count, fmt.Errorf("attrindex: write %s at offset %d: %w", out.Name(), l.offset(count), err)
		}
		count++

		rec, ok, err := readers[head.src].Next()
		if err != nil {
			return count, err
		}
		if ok {
			head.rec = rec
			heap.Fix(&heads, 0)
		} else {
			heap.Pop(&heads)
		}
	}

	if count > math.MaxInt32 {
		return count, fmt.Errorf("attrindex: %d records exceed the format limit of %d", count, math.MaxInt32)
	}
	if err := bw.Flush(); err != nil {
		return count, fmt.Errorf("attrindex: write %s: %w", out.Name(), err)
	}

	// header last, once the count is known
	hdr := make([]byte, HeaderSize)
	header{kind: l.kind, width: int32(l.width), count: int32(count)}.encode(hdr)
	if _, err := out.Seek(0, io.SeekStart); err != nil {
		return count, fmt.Errorf("attrindex: seek %s: %w", out.Name(), err)
	}
	if _, err := out.Write(hdr); err != nil {
		return count, fmt.Errorf("attrindex: write header of %s: %w", out.Name(), err)
	}
	return count, nil
}
