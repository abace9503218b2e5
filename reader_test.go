package attrindex_test

import (
	"bytes"
	"os"
	"path/filepath"

	"github.com/bsm/attrindex"
	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"
)

var _ = Describe("Reader", func() {
	var dir string
	var subject *attrindex.Reader

	// The following seeds 12 records:
	//
	// pos:    0  1  2  3  4  5  6  7  8  9 10 11
	// value:  1  2  2  2  2  5  5  8  8  8  8  9
	//
	BeforeEach(func() {
		var err error
		dir, err = os.MkdirTemp("", "attrindex-reader")
		Expect(err).NotTo(HaveOccurred())

		dst := filepath.Join(dir, "n.idx")
		tbl := seedTable(intColumn, ints(8, 2, 5, 2, 9, 8, 1, 2, 8, 5, 2, 8))
		_, err = attrindex.Build(dst, tbl, "n", &attrindex.BuildOptions{MemoryBudget: 36})
		Expect(err).NotTo(HaveOccurred())

		subject, err = attrindex.Open(dst, &attrindex.ReaderOptions{BufferRecords: 5})
		Expect(err).NotTo(HaveOccurred())
	})

	AfterEach(func() {
		Expect(subject.Close()).To(Succeed())
		Expect(os.RemoveAll(dir)).To(Succeed())
	})

	It("should init", func() {
		Expect(subject.Kind()).To(Equal(attrindex.KindNumeric))
		Expect(subject.RecordWidth()).To(Equal(12))
		Expect(subject.NumRecords()).To(Equal(int64(12)))
		Expect(subject.Pos()).To(Equal(int64(0)))
	})

	It("should iterate across buffer refills", func() {
		recs := readAll(subject)
		Expect(recs).To(HaveLen(12))
		Expect(recs[0]).To(Equal(attrindex.Record{Value: attrindex.Int32(1), RowID: 7}))
		Expect(recs[11]).To(Equal(attrindex.Record{Value: attrindex.Int32(9), RowID: 5}))

		Expect(subject.More()).To(BeFalse())
		_, err := subject.Next()
		Expect(err).To(MatchError(attrindex.ErrEndOfIndex))
	})

	It("should seek", func() {
		Expect(subject.Seek(6)).To(Succeed())
		Expect(subject.Pos()).To(Equal(int64(6)))
		Expect(subject.Next()).To(Equal(attrindex.Record{Value: attrindex.Int32(5), RowID: 10}))
		Expect(subject.Next()).To(Equal(attrindex.Record{Value: attrindex.Int32(8), RowID: 1}))

		// within the current buffer
		Expect(subject.Seek(7)).To(Succeed())
		Expect(subject.Next()).To(Equal(attrindex.Record{Value: attrindex.Int32(8), RowID: 1}))

		Expect(subject.Seek(11)).To(Succeed())
		Expect(subject.Next()).To(Equal(attrindex.Record{Value: attrindex.Int32(9), RowID: 5}))
		_, err := subject.Next()
		Expect(err).To(MatchError(attrindex.ErrEndOfIndex))

		Expect(subject.Seek(0)).To(Succeed())
		Expect(subject.Next()).To(Equal(attrindex.Record{Value: attrindex.Int32(1), RowID: 7}))

		Expect(subject.Seek(12)).To(MatchError(attrindex.ErrOutOfRange))
		Expect(subject.Seek(-1)).To(MatchError(attrindex.ErrOutOfRange))
	})

	It("should read records at positions", func() {
		Expect(subject.RecordAt(4)).To(Equal(attrindex.Record{Value: attrindex.Int32(2), RowID: 11}))
		Expect(subject.RecordAt(10)).To(Equal(attrindex.Record{Value: attrindex.Int32(8), RowID: 12}))
		Expect(subject.Pos()).To(Equal(int64(0)))

		_, err := subject.RecordAt(12)
		Expect(err).To(MatchError(attrindex.ErrOutOfRange))
	})

	It("should search", func() {
		for _, n := range []int{1, 2, 5, 8, 9} {
			m, ok, err := subject.Search(attrindex.Int32(n))
			Expect(err).NotTo(HaveOccurred())
			Expect(ok).To(BeTrue(), "for %d", n)
			Expect(m.Value).To(Equal(attrindex.Int32(n)))

			rec, err := subject.RecordAt(m.Pos)
			Expect(err).NotTo(HaveOccurred())
			Expect(rec).To(Equal(m.Record))
		}

		for _, n := range []int{0, 3, 7, 10} {
			_, ok, err := subject.Search(attrindex.Int32(n))
			Expect(err).NotTo(HaveOccurred())
			Expect(ok).To(BeFalse(), "for %d", n)
		}

		m, ok, err := subject.Search(attrindex.Int64(9))
		Expect(err).NotTo(HaveOccurred())
		Expect(ok).To(BeTrue())
		Expect(m.Pos).To(Equal(int64(11)))
	})

	It("should find first occurrences", func() {
		m, ok, err := subject.Search(attrindex.Int32(8))
		Expect(err).NotTo(HaveOccurred())
		Expect(ok).To(BeTrue())

		first, err := subject.FirstOccurrence(m)
		Expect(err).NotTo(HaveOccurred())
		Expect(first.Pos).To(Equal(int64(7)))
		Expect(first.RowID).To(Equal(uint64(1)))

		first, err = subject.FirstOccurrence(attrindex.Match{Pos: 0, Record: attrindex.Record{Value: attrindex.Int32(1), RowID: 7}})
		Expect(err).NotTo(HaveOccurred())
		Expect(first.Pos).To(Equal(int64(0)))
	})

	It("should find row ids", func() {
		Expect(subject.FindRowIDs(attrindex.Int32(1))).To(Equal([]uint64{7}))
		Expect(subject.FindRowIDs(attrindex.Int32(2))).To(Equal([]uint64{2, 4, 8, 11}))
		Expect(subject.FindRowIDs(attrindex.Int32(5))).To(Equal([]uint64{3, 10}))
		Expect(subject.FindRowIDs(attrindex.Int32(8))).To(Equal([]uint64{1, 6, 9, 12}))
		Expect(subject.FindRowIDs(attrindex.Int32(9))).To(Equal([]uint64{5}))
		Expect(subject.FindRowIDs(attrindex.Int32(4))).To(BeEmpty())

		// cursor is left on the first non-matching record
		_, err := subject.FindRowIDs(attrindex.Int32(5))
		Expect(err).NotTo(HaveOccurred())
		Expect(subject.Pos()).To(Equal(int64(7)))
	})

	It("should find row id sets", func() {
		set, err := subject.FindRowIDSet(attrindex.Int32(8))
		Expect(err).NotTo(HaveOccurred())
		Expect(set.ToArray()).To(Equal([]uint64{1, 6, 9, 12}))

		set, err = subject.FindRowIDSet(attrindex.Int32(3))
		Expect(err).NotTo(HaveOccurred())
		Expect(set.IsEmpty()).To(BeTrue())
	})

	It("should reject values of other kinds", func() {
		_, _, err := subject.Search(attrindex.Text("8"))
		Expect(err).To(MatchError(attrindex.ErrTypeMismatch))
		_, err = subject.FindRowIDs(attrindex.Float(8))
		Expect(err).To(MatchError(`attrindex: type mismatch, want numeric, got float`))
	})

	It("should fail after close", func() {
		r, err := attrindex.Open(filepath.Join(dir, "n.idx"), nil)
		Expect(err).NotTo(HaveOccurred())
		Expect(r.Close()).To(Succeed())
		Expect(r.More()).To(BeFalse())
		Expect(r.Close()).To(HaveOccurred())
	})

	It("should not reposition after close", func() {
		data, err := os.ReadFile(filepath.Join(dir, "n.idx"))
		Expect(err).NotTo(HaveOccurred())

		r, err := attrindex.NewReader(bytes.NewReader(data), int64(len(data)), nil)
		Expect(err).NotTo(HaveOccurred())
		Expect(r.Close()).To(Succeed())

		Expect(r.Seek(0)).To(MatchError("attrindex: is closed"))
		Expect(r.More()).To(BeFalse())
		_, err = r.Next()
		Expect(err).To(MatchError("attrindex: is closed"))
		_, err = r.RecordAt(3)
		Expect(err).To(MatchError("attrindex: is closed"))
		_, err = r.FindRowIDs(attrindex.Int32(2))
		Expect(err).To(MatchError("attrindex: is closed"))
	})
})

var _ = Describe("NewReader", func() {
	open := func(data []byte) error {
		_, err := attrindex.NewReader(bytes.NewReader(data), int64(len(data)), nil)
		return err
	}

	It("should open valid indexes", func() {
		data := []byte{'L', 0, 0, 0, 9, 0, 0, 0, 1, 1, 0, 0, 0, 0, 0, 0, 0, 3}
		r, err := attrindex.NewReader(bytes.NewReader(data), int64(len(data)), nil)
		Expect(err).NotTo(HaveOccurred())
		Expect(r.FindRowIDs(attrindex.Bool(true))).To(Equal([]uint64{3}))
		Expect(r.FindRowIDs(attrindex.Bool(false))).To(BeEmpty())
	})

	It("should reject truncated files", func() {
		Expect(open(nil)).To(MatchError(attrindex.ErrTruncated))
		Expect(open([]byte{'N', 0, 0, 0})).To(MatchError(attrindex.ErrTruncated))
		Expect(open([]byte{'N', 0, 0, 0, 12, 0, 0, 0, 1, 0, 0})).To(MatchError(attrindex.ErrTruncated))
	})

	It("should reject inconsistent headers", func() {
		Expect(open([]byte{'N', 0, 0, 0, 12, 0, 0, 0, 0, 0})).To(MatchError(attrindex.ErrBadHeader))
		Expect(open([]byte{'N', 0, 0, 0, 11, 0, 0, 0, 0})).To(MatchError(attrindex.ErrBadHeader))
		Expect(open([]byte{'N', 0, 0, 0, 12, 0xff, 0xff, 0xff, 0xff})).To(MatchError(attrindex.ErrBadHeader))
	})

	It("should reject unknown type tags", func() {
		Expect(open([]byte{'X', 0, 0, 0, 12, 0, 0, 0, 0})).To(MatchError(attrindex.ErrBadKind))
	})
})
