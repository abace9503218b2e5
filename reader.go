package attrindex

import (
	"fmt"
	"io"
	"os"

	"github.com/RoaringBitmap/roaring/v2/roaring64"
)

// Match is a record together with its position in the index.
type Match struct {
	Pos int64 // 0-based record number
	Record
}

// Reader instances can scan, seek and search index files. A Reader is not
// safe for concurrent use; open one Reader per goroutine instead.
type Reader struct {
	r    io.ReaderAt
	c    io.Closer // set when the reader owns the file
	name string

	l     layout
	count int64

	buf  []byte // read buffer
	bpos int64  // record number of the first buffered record
	blen int    // number of buffered records
	cur  int    // buffer-relative cursor
	tmp  []byte // scratch record
	err  error
}

// Open opens the index file name.
func Open(name string, o *ReaderOptions) (*Reader, error) {
	f, err := os.Open(name)
	if err != nil {
		return nil, fmt.Errorf("attrindex: open index: %w", err)
	}

	fi, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("attrindex: stat %s: %w", name, err)
	}

	r, err := newReader(f, fi.Size(), name, o)
	if err != nil {
		_ = f.Close()
		return nil, err
	}
	r.c = f
	return r, nil
}

// NewReader opens a reader over an index of the given size.
func NewReader(r io.ReaderAt, size int64, o *ReaderOptions) (*Reader, error) {
	return newReader(r, size, "index", o)
}

func newReader(r io.ReaderAt, size int64, name string, o *ReaderOptions) (*Reader, error) {
	o = o.norm()

	if size < HeaderSize {
		return nil, fmt.Errorf("%w: %s has %d bytes", ErrTruncated, name, size)
	}

	tmp := make([]byte, HeaderSize)
	if _, err := r.ReadAt(tmp, 0); err != nil {
		return nil, fmt.Errorf("attrindex: read header of %s: %w", name, err)
	}

	h := decodeHeader(tmp)
	if !h.kind.isValid() {
		return nil, fmt.Errorf("%w %#02x in %s", ErrBadKind, byte(h.kind), name)
	}
	l, err := newLayout(h.kind, int(h.width))
	if err != nil {
		return nil, fmt.Errorf("attrindex: %s: %w", name, err)
	}
	if h.count < 0 {
		return nil, fmt.Errorf("%w: %s has negative record count %d", ErrBadHeader, name, h.count)
	}

	count := int64(h.count)
	switch want := l.size(count); {
	case size < want:
		return nil, fmt.Errorf("%w: %s has %d bytes, header requires %d", ErrTruncated, name, size, want)
	case size > want:
		return nil, fmt.Errorf("%w: %s has %d bytes, header requires %d", ErrBadHeader, name, size, want)
	}

	return &Reader{
		r:     r,
		name:  name,
		l:     l,
		count: count,
		buf:   make([]byte, o.BufferRecords*l.width),
		tmp:   make([]byte, l.width),
	}, nil
}

// Kind returns the type tag of the indexed values.
func (r *Reader) Kind() Kind { return r.l.kind }

// RecordWidth returns the number of bytes per record.
func (r *Reader) RecordWidth() int { return r.l.width }

// NumRecords returns the number of records in the index.
func (r *Reader) NumRecords() int64 { return r.count }

// Pos returns the record number the next call to Next will return.
func (r *Reader) Pos() int64 { return r.bpos + int64(r.cur) }

// Err exposes read errors of the sequential cursor, if any.
func (r *Reader) Err() error { return r.err }

// More returns true if more records can be read, refilling the read
// buffer if necessary.
func (r *Reader) More() bool {
	if r.err != nil {
		return false
	}
	if r.cur < r.blen {
		return true
	}

	next := r.bpos + int64(r.blen)
	if next >= r.count {
		return false
	}
	if err := r.fill(next); err != nil {
		r.err = err
		return false
	}
	return true
}

// Next returns the next record. It returns ErrEndOfIndex once all records
// have been read.
func (r *Reader) Next() (Record, error) {
	if !r.More() {
		if r.err != nil {
			return Record{}, r.err
		}
		return Record{}, ErrEndOfIndex
	}

	off := r.cur * r.l.width
	rec := r.l.decode(r.buf[off : off+r.l.width])
	r.cur++
	return rec, nil
}

// Seek positions the cursor so that the next call to Next returns
// record n.
func (r *Reader) Seek(n int64) error {
	if err := r.checkRange(n); err != nil {
		return err
	}

	r.err = nil
	if n >= r.bpos && n < r.bpos+int64(r.blen) {
		r.cur = int(n - r.bpos)
		return nil
	}

	r.bpos, r.blen, r.cur = n, 0, 0
	return nil
}

// RecordAt reads record n without moving the cursor.
func (r *Reader) RecordAt(n int64) (Record, error) {
	if err := r.checkRange(n); err != nil {
		return Record{}, err
	}

	if n >= r.bpos && n < r.bpos+int64(r.blen) {
		off := int(n-r.bpos) * r.l.width
		return r.l.decode(r.buf[off : off+r.l.width]), nil
	}

	if _, err := r.r.ReadAt(r.tmp, r.l.offset(n)); err != nil {
		return Record{}, fmt.Errorf("attrindex: read %s at offset %d: %w", r.name, r.l.offset(n), err)
	}
	return r.l.decode(r.tmp), nil
}

// Search looks for a record holding v using binary search. When v occurs
// more than once, any of the matching records may be returned.
func (r *Reader) Search(v Value) (Match, bool, error) {
	if v == nil || v.Kind() != r.l.kind {
		return Match{}, false, r.mismatch(v)
	}

	low, high := int64(0), r.count-1
	for low <= high {
		mid := low + (high-low)/2

		rec, err := r.RecordAt(mid)
		if err != nil {
			return Match{}, false, err
		}

		switch n, _ := Compare(rec.Value, v); {
		case n < 0:
			low = mid + 1
		case n > 0:
			high = mid - 1
		default:
			return Match{Pos: mid, Record: rec}, true, nil
		}
	}
	return Match{}, false, nil
}

// FirstOccurrence walks backwards from m and returns the first record of
// the run of records equal to m.
func (r *Reader) FirstOccurrence(m Match) (Match, error) {
	for m.Pos > 0 {
		prev, err := r.RecordAt(m.Pos - 1)
		if err != nil {
			return m, err
		}
		if !Equal(prev.Value, m.Value) {
			break
		}
		m = Match{Pos: m.Pos - 1, Record: prev}
	}
	return m, nil
}

// FindRowIDs returns the row identifiers of all records equal to v, in
// index order. It returns an empty slice if v is not indexed. The
// sequential cursor is left after the last match.
func (r *Reader) FindRowIDs(v Value) ([]uint64, error) {
	ids := []uint64{}

	m, ok, err := r.Search(v)
	if err != nil || !ok {
		return ids, err
	}
	if m, err = r.FirstOccurrence(m); err != nil {
		return nil, err
	}
	if err := r.Seek(m.Pos); err != nil {
		return nil, err
	}

	for r.More() {
		pos := r.Pos()
		rec, err := r.Next()
		if err != nil {
			return nil, err
		}
		if !Equal(rec.Value, v) {
			_ = r.Seek(pos)
			break
		}
		ids = append(ids, rec.RowID)
	}
	if err := r.Err(); err != nil {
		return nil, err
	}
	return ids, nil
}

// FindRowIDSet is like FindRowIDs but returns the row identifiers as a
// bitmap.
func (r *Reader) FindRowIDSet(v Value) (*roaring64.Bitmap, error) {
	ids, err := r.FindRowIDs(v)
	if err != nil {
		return nil, err
	}
	return roaring64.BitmapOf(ids...), nil
}

// Close releases the reader. It closes the underlying file if the reader
// was created by Open.
func (r *Reader) Close() error {
	if r.buf == nil {
		return errClosed
	}
	r.buf, r.blen, r.cur = nil, 0, 0
	r.err = errClosed

	if r.c != nil {
		return r.c.Close()
	}
	return nil
}

func (r *Reader) fill(n int64) error {
	k := min(int64(len(r.buf)/r.l.width), r.count-n)
	p := r.buf[:int(k)*r.l.width]
	if _, err := r.r.ReadAt(p, r.l.offset(n)); err != nil {
		return fmt.Errorf("attrindex: read %s at offset %d: %w", r.name, r.l.offset(n), err)
	}

	r.bpos, r.blen, r.cur = n, int(k), 0
	return nil
}

func (r *Reader) checkRange(n int64) error {
	if r.buf == nil {
		return errClosed
	}
	if n < 0 || n >= r.count {
		return fmt.Errorf("%w: %d not in [0, %d)", ErrOutOfRange, n, r.count)
	}
	return nil
}

func (r *Reader) mismatch(v Value) error {
	got := Kind(0)
	if v != nil {
		got = v.Kind()
	}
	return &TypeMismatchError{Want: r.l.kind, Got: got}
}
