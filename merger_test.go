package attrindex

import (
	"os"
	"path/filepath"

	. "github.com/onsi/ginkgo"
	"github.com/onsi/gomega"
)

var _ = Describe("merge", func() {
	var dir string
	var l layout

	BeforeEach(func() {
		var err error
		dir, err = os.MkdirTemp("", "attrindex-merger")
		gomega.Expect(err).NotTo(gomega.HaveOccurred())
		l = layout{kind: KindChar, width: 12}
	})

	AfterEach(func() {
		gomega.Expect(os.RemoveAll(dir)).To(gomega.Succeed())
	})

	seedSpill := func(codec Compression, recs ...Record) string {
		w, err := createSpill(dir, l, codec)
		gomega.Expect(err).NotTo(gomega.HaveOccurred())
		for _, rec := range recs {
			gomega.Expect(w.Append(rec)).To(gomega.Succeed())
		}
		gomega.Expect(w.Close()).To(gomega.Succeed())
		return w.Name()
	}

	mergeInto := func(codec Compression, spills ...string) (int64, []byte) {
		f, err := os.Create(filepath.Join(dir, "out.idx"))
		gomega.Expect(err).NotTo(gomega.HaveOccurred())
		defer f.Close()

		n, err := merge(f, l, spills, codec, 1<<20)
		gomega.Expect(err).NotTo(gomega.HaveOccurred())

		data, err := os.ReadFile(f.Name())
		gomega.Expect(err).NotTo(gomega.HaveOccurred())
		return n, data
	}

	decodeAll := func(data []byte) []Record {
		var recs []Record
		for off := HeaderSize; off < len(data); off += l.width {
			recs = append(recs, l.decode(data[off:off+l.width]))
		}
		return recs
	}

	It("should merge sorted chunks", func() {
		a := seedSpill(NoCompression, Record{Value: Text("b"), RowID: 1}, Record{Value: Text("d"), RowID: 2})
		b := seedSpill(NoCompression)
		c := seedSpill(NoCompression, Record{Value: Text("a"), RowID: 5}, Record{Value: Text("b"), RowID: 3}, Record{Value: Text("e"), RowID: 4})

		n, data := mergeInto(NoCompression, a, b, c)
		gomega.Expect(n).To(gomega.Equal(int64(5)))
		gomega.Expect(data[:HeaderSize]).To(gomega.Equal([]byte{'C', 0, 0, 0, 12, 0, 0, 0, 5}))
		gomega.Expect(data).To(gomega.HaveLen(HeaderSize + 5*12))
		gomega.Expect(decodeAll(data)).To(gomega.Equal([]Record{
			{Value: Text("a"), RowID: 5},
			{Value: Text("b"), RowID: 1},
			{Value: Text("b"), RowID: 3},
			{Value: Text("d"), RowID: 2},
			{Value: Text("e"), RowID: 4},
		}))
	})

	It("should prefer earlier chunks on ties", func() {
		a := seedSpill(NoCompression, Record{Value: Text("x"), RowID: 9})
		b := seedSpill(NoCompression, Record{Value: Text("x"), RowID: 2})
		c := seedSpill(NoCompression, Record{Value: Text("x"), RowID: 4})

		_, data := mergeInto(NoCompression, c, a, b)
		gomega.Expect(decodeAll(data)).To(gomega.Equal([]Record{
			{Value: Text("x"), RowID: 4},
			{Value: Text("x"), RowID: 9},
			{Value: Text("x"), RowID: 2},
		}))
	})

	It("should merge compressed chunks", func() {
		for _, codec := range []Compression{SnappyCompression, LZ4Compression, ZstdCompression} {
			a := seedSpill(codec, Record{Value: Text("k"), RowID: 1}, Record{Value: Text("m"), RowID: 2})
			b := seedSpill(codec, Record{Value: Text("l"), RowID: 3})

			n, data := mergeInto(codec, a, b)
			gomega.Expect(n).To(gomega.Equal(int64(3)), "for codec %d", codec)
			gomega.Expect(decodeAll(data)).To(gomega.Equal([]Record{
				{Value: Text("k"), RowID: 1},
				{Value: Text("l"), RowID: 3},
				{Value: Text("m"), RowID: 2},
			}), "for codec %d", codec)
		}
	})

	It("should write empty indexes", func() {
		n, data := mergeInto(NoCompression)
		gomega.Expect(n).To(gomega.BeZero())
		gomega.Expect(data).To(gomega.Equal([]byte{'C', 0, 0, 0, 12, 0, 0, 0, 0}))
	})

	It("should fail on truncated chunks", func() {
		a := seedSpill(NoCompression, Record{Value: Text("k"), RowID: 1})
		gomega.Expect(os.Truncate(a, 5)).To(gomega.Succeed())

		f, err := os.Create(filepath.Join(dir, "out.idx"))
		gomega.Expect(err).NotTo(gomega.HaveOccurred())
		defer f.Close()

		_, err = merge(f, l, []string{a}, NoCompression, 1<<20)
		gomega.Expect(err).To(gomega.MatchError(gomega.ContainSubstring("unexpected EOF")))
	})
})

var _ = Describe("readBufferSize", func() {
	It("should split the budget across chunks", func() {
		gomega.Expect(readBufferSize(1<<20, 4, 12)).To(gomega.Equal(spillBufferSize))
		gomega.Expect(readBufferSize(1200, 10, 12)).To(gomega.Equal(120))
		gomega.Expect(readBufferSize(1024, 1200, 12)).To(gomega.Equal(12))
		gomega.Expect(readBufferSize(24, 0, 12)).To(gomega.Equal(24))
	})
})

var _ = Describe("Build", func() {
	var dir, dst string
	var tbl *MemTable

	BeforeEach(func() {
		var err error
		dir, err = os.MkdirTemp("", "attrindex-build")
		gomega.Expect(err).NotTo(gomega.HaveOccurred())

		dst = filepath.Join(dir, "n.idx")
		gomega.Expect(os.WriteFile(dst, []byte("previous"), 0o644)).To(gomega.Succeed())

		tbl = NewMemTable()
		gomega.Expect(tbl.AddColumn(ColumnInfo{Name: "n", Kind: KindNumeric, Width: 4}, []Value{
			Int32(10), Int32(3), Int32(7), Int32(3), Int32(9), Int32(1),
		})).To(gomega.Succeed())
	})

	AfterEach(func() {
		mergeSpills = merge
		gomega.Expect(os.RemoveAll(dir)).To(gomega.Succeed())
	})

	// breakChunks lets the merge run after fn has damaged the chunk files.
	breakChunks := func(fn func(l layout, spills []string)) *[]string {
		var seen []string
		mergeSpills = func(out *os.File, l layout, spills []string, codec Compression, budget int64) (int64, error) {
			seen = append(seen, spills...)
			fn(l, spills)
			return merge(out, l, spills, codec, budget)
		}
		return &seen
	}

	It("should clean up when the merge fails midway", func() {
		seen := breakChunks(func(l layout, spills []string) {
			gomega.Expect(spills).To(gomega.HaveLen(3))
			// chunk 3 holds [1, 9]; cut it inside the second record
			gomega.Expect(os.Truncate(spills[2], int64(l.width)+3)).To(gomega.Succeed())
		})

		_, err := Build(dst, tbl, "n", &BuildOptions{MemoryBudget: 24})
		gomega.Expect(err).To(gomega.MatchError(gomega.ContainSubstring("unexpected EOF")))

		gomega.Expect(*seen).To(gomega.HaveLen(3))
		for _, name := range *seen {
			gomega.Expect(name).NotTo(gomega.BeAnExistingFile())
		}
		gomega.Expect(os.ReadFile(dst)).To(gomega.Equal([]byte("previous")))
		gomega.Expect(os.ReadDir(dir)).To(gomega.HaveLen(1))
		gomega.Expect(Leftovers()).To(gomega.BeEmpty())
	})

	It("should clean up when a compressed chunk is corrupt", func() {
		seen := breakChunks(func(_ layout, spills []string) {
			gomega.Expect(os.WriteFile(spills[1], []byte("not a zstd frame at all"), 0o600)).To(gomega.Succeed())
		})

		_, err := Build(dst, tbl, "n", &BuildOptions{MemoryBudget: 24, SpillCompression: ZstdCompression})
		gomega.Expect(err).To(gomega.HaveOccurred())

		gomega.Expect(*seen).To(gomega.HaveLen(3))
		for _, name := range *seen {
			gomega.Expect(name).NotTo(gomega.BeAnExistingFile())
		}
		gomega.Expect(os.ReadFile(dst)).To(gomega.Equal([]byte("previous")))
		gomega.Expect(os.ReadDir(dir)).To(gomega.HaveLen(1))
	})
})
