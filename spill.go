package attrindex

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/golang/snappy"
	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
)

const (
	spillBufferSize = 64 * 1024
	spillWindowSize = 64 * 1024 // codec window, bounds decoder memory per chunk
)

// spillWriter writes a sorted chunk to a temporary file. Chunk files carry
// no header, just the records, optionally wrapped in a stream codec.
type spillWriter struct {
	f  *os.File
	zw io.WriteCloser // codec writer, nil without compression
	bw *bufio.Writer
	l  layout

	tmp []byte
	n   int64
}

func createSpill(dir string, l layout, c Compression) (*spillWriter, error) {
	f, err := os.CreateTemp(dir, "attrindex-*.chunk")
	if err != nil {
		return nil, fmt.Errorf("attrindex: create chunk file in %s: %w", dir, err)
	}

	w := &spillWriter{f: f, l: l, tmp: make([]byte, l.width)}
	var sink io.Writer = f

	switch c {
	case NoCompression:
	case SnappyCompression:
		w.zw = snappy.NewBufferedWriter(f)
	case LZ4Compression:
		zw := lz4.NewWriter(f)
		if err := zw.Apply(lz4.BlockSizeOption(lz4.Block64Kb)); err != nil {
			_ = f.Close()
			removeTemp(f.Name())
			return nil, err
		}
		w.zw = zw
	case ZstdCompression:
		enc, err := zstd.NewWriter(f,
			zstd.WithEncoderLevel(zstd.SpeedFastest),
			zstd.WithWindowSize(spillWindowSize))
		if err != nil {
			_ = f.Close()
			removeTemp(f.Name())
			return nil, err
		}
		w.zw = enc
	default:
		_ = f.Close()
		removeTemp(f.Name())
		return nil, errBadCompression
	}
	if w.zw != nil {
		sink = w.zw
	}
	w.bw = bufio.NewWriterSize(sink, spillBufferSize)
	return w, nil
}

// Name returns the chunk file name.
func (w *spillWriter) Name() string { return w.f.Name() }

// Append appends a record.
func (w *spillWriter) Append(rec Record) error {
	if w.bw == nil {
		return errClosed
	}
	if err := w.l.encode(w.tmp, rec); err != nil {
		return err
	}
	if _, err := w.bw.Write(w.tmp); err != nil {
		return fmt.Errorf("attrindex: write chunk %s at record %d: %w", w.Name(), w.n, err)
	}
	w.n++
	return nil
}

// Close flushes and closes the chunk file. The file itself is kept.
func (w *spillWriter) Close() error {
	if w.bw == nil {
		return errClosed
	}

	err := w.bw.Flush()
	if w.zw != nil {
		if e := w.zw.Close(); err == nil {
			err = e
		}
	}
	if e := w.f.Close(); err == nil {
		err = e
	}
	w.bw = nil

	if err != nil {
		return fmt.Errorf("attrindex: close chunk %s: %w", w.Name(), err)
	}
	return nil
}

// --------------------------------------------------------------------

// spillReader reads records back from a chunk file, front to back.
type spillReader struct {
	name string
	f    *os.File
	zr   io.Closer // codec reader, nil without compression
	br   *bufio.Reader
	l    layout

	tmp []byte
	n   int64
}

// openSpill opens a chunk file for reading through a buffer of bufSize
// bytes.
func openSpill(name string, l layout, c Compression, bufSize int) (*spillReader, error) {
	f, err := os.Open(name)
	if err != nil {
		return nil, fmt.Errorf("attrindex: open chunk file: %w", err)
	}

	r := &spillReader{name: name, f: f, l: l, tmp: make([]byte, l.width)}
	var src io.Reader = f

	switch c {
	case NoCompression:
	case SnappyCompression:
		src = snappy.NewReader(f)
	case LZ4Compression:
		src = lz4.NewReader(f)
	case ZstdCompression:
		dec, err := zstd.NewReader(f, zstd.WithDecoderConcurrency(1), zstd.WithDecoderLowmem(true))
		if err != nil {
			_ = f.Close()
			return nil, err
		}
		rc := dec.IOReadCloser()
		r.zr, src = rc, rc
	default:
		_ = f.Close()
		return nil, errBadCompression
	}
	r.br = bufio.NewReaderSize(src, bufSize)
	return r, nil
}

// Next reads the next record. It returns false once the chunk is exhausted.
func (r *spillReader) Next() (Record, bool, error) {
	if _, err := io.ReadFull(r.br, r.tmp); err != nil {
		if errors.Is(err, io.EOF) {
			return Record{}, false, nil
		}
		return Record{}, false, fmt.Errorf("attrindex: read chunk %s at record %d: %w", r.name, r.n, err)
	}
	r.n++
	return r.l.decode(r.tmp), true, nil
}

// Close closes the chunk file.
func (r *spillReader) Close() error {
	if r.zr != nil {
		_ = r.zr.Close()
	}
	return r.f.Close()
}
