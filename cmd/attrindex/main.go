// Command attrindex builds and queries column indexes over CSV files.
//
//	attrindex build  -catalog roads.cat -csv roads.csv -column NAME:C:32 -memory 64MiB [-spill zstd]
//	attrindex lookup -catalog roads.cat -column NAME -value "Main St"
//	attrindex dump   -file roads.1.idx
package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/bsm/attrindex"
	"github.com/bsm/attrindex/internal/csvtable"
	"github.com/bsm/attrindex/internal/logging"
	"github.com/dustin/go-humanize"
)

const (
	exitOK    = 0
	exitError = 1
	exitUsage = 2
)

var errUsage = errors.New("usage")

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	if len(args) == 0 {
		usage(stderr)
		return exitUsage
	}

	cfg, err := logging.ConfigFromEnv()
	if err != nil {
		fmt.Fprintf(stderr, "attrindex: bad ATTRINDEX_LOG_LEVEL: %v\n", err)
		return exitUsage
	}
	logger, closeLog := logging.Setup(cfg)
	defer closeLog()

	defer func() {
		if err := attrindex.RemoveLeftovers(); err != nil {
			logger.Warn("temp files left behind", slog.Any("files", attrindex.Leftovers()), slog.String("error", err.Error()))
		}
	}()

	var cmd func([]string, io.Writer, io.Writer, *slog.Logger) error
	switch args[0] {
	case "build":
		cmd = runBuild
	case "lookup":
		cmd = runLookup
	case "dump":
		cmd = runDump
	case "help", "-h", "-help", "--help":
		usage(stdout)
		return exitOK
	default:
		fmt.Fprintf(stderr, "attrindex: unknown command %q\n", args[0])
		usage(stderr)
		return exitUsage
	}

	if err := cmd(args[1:], stdout, stderr, logger); errors.Is(err, errUsage) {
		return exitUsage
	} else if err != nil {
		fmt.Fprintf(stderr, "attrindex %s: %v\n", args[0], err)
		return exitError
	}
	return exitOK
}

func usage(w io.Writer) {
	fmt.Fprintln(w, "Usage:")
	fmt.Fprintln(w, "  attrindex build  -catalog FILE -csv FILE -column NAME:KIND[:WIDTH] -memory SIZE [-spill CODEC]")
	fmt.Fprintln(w, "  attrindex lookup -catalog FILE -column NAME -value VALUE")
	fmt.Fprintln(w, "  attrindex dump   -file FILE")
}

func newFlagSet(name string, stderr io.Writer) *flag.FlagSet {
	fs := flag.NewFlagSet("attrindex "+name, flag.ContinueOnError)
	fs.SetOutput(stderr)
	return fs
}

// required reports missing flags to stderr.
func required(fs *flag.FlagSet, stderr io.Writer, names ...string) error {
	set := make(map[string]bool)
	fs.Visit(func(f *flag.Flag) { set[f.Name] = true })

	for _, name := range names {
		if !set[name] {
			fmt.Fprintf(stderr, "flag -%s is required\n", name)
			fs.Usage()
			return errUsage
		}
	}
	return nil
}

func runBuild(args []string, stdout, stderr io.Writer, logger *slog.Logger) error {
	var catalog, csvPath, column, memory, spill string

	fs := newFlagSet("build", stderr)
	fs.StringVar(&catalog, "catalog", "", "catalog ledger file")
	fs.StringVar(&csvPath, "csv", "", "CSV input file with a header row")
	fs.StringVar(&column, "column", "", "column declaration NAME:KIND[:WIDTH], KIND one of N, F, L, D, C")
	fs.StringVar(&memory, "memory", "", "sort memory budget, e.g. 64MiB")
	fs.StringVar(&spill, "spill", "none", "chunk file compression: none, snappy, lz4 or zstd")
	if err := fs.Parse(args); err != nil {
		return errUsage
	}
	if err := required(fs, stderr, "catalog", "csv", "column", "memory"); err != nil {
		return err
	}

	col, err := csvtable.ParseColumn(column)
	if err != nil {
		return err
	}
	budget, err := humanize.ParseBytes(memory)
	if err != nil {
		return fmt.Errorf("bad memory budget %q: %w", memory, err)
	}
	codec, err := attrindex.ParseCompression(spill)
	if err != nil {
		return err
	}

	tbl, err := csvtable.Open(csvPath, col)
	if err != nil {
		return err
	}
	cat, err := attrindex.OpenCatalog(catalog)
	if err != nil {
		return err
	}

	idx := attrindex.NewIndexer(cat, &attrindex.BuildOptions{
		MemoryBudget:     int64(min(budget, 1<<62)),
		SpillCompression: codec,
		Logger:           logger,
	})
	file, stats, err := idx.Build(tbl, col.Name)
	if err != nil {
		return err
	}

	size := uint64(attrindex.HeaderSize) + uint64(stats.Records)*uint64(stats.RecordWidth)
	fmt.Fprintf(stdout, "%s\t%d records\t%d chunks\t%s\t%s\n",
		file, stats.Records, stats.Chunks, humanize.IBytes(size), stats.Duration.Round(time.Millisecond))
	return nil
}

func runLookup(args []string, stdout, stderr io.Writer, logger *slog.Logger) error {
	var catalog, column, value string

	fs := newFlagSet("lookup", stderr)
	fs.StringVar(&catalog, "catalog", "", "catalog ledger file")
	fs.StringVar(&column, "column", "", "indexed column name")
	fs.StringVar(&value, "value", "", "value to look up")
	if err := fs.Parse(args); err != nil {
		return errUsage
	}
	if err := required(fs, stderr, "catalog", "column", "value"); err != nil {
		return err
	}

	cat, err := attrindex.OpenCatalog(catalog)
	if err != nil {
		return err
	}
	idx := attrindex.NewIndexer(cat, &attrindex.BuildOptions{Logger: logger})

	r, err := idx.Open(column)
	if err != nil {
		return err
	}
	defer r.Close()

	v, err := attrindex.ParseValue(r.Kind(), value)
	if err != nil {
		return fmt.Errorf("bad %s value %q: %w", r.Kind(), value, err)
	}

	ids, err := r.FindRowIDs(v)
	if err != nil {
		return err
	}
	logger.Debug("lookup done", slog.String("column", column), slog.Int("matches", len(ids)))

	for _, id := range ids {
		fmt.Fprintln(stdout, id)
	}
	return nil
}

func runDump(args []string, stdout, stderr io.Writer, _ *slog.Logger) error {
	var file string

	fs := newFlagSet("dump", stderr)
	fs.StringVar(&file, "file", "", "index file")
	if err := fs.Parse(args); err != nil {
		return errUsage
	}
	if err := required(fs, stderr, "file"); err != nil {
		return err
	}

	r, err := attrindex.Open(file, nil)
	if err != nil {
		return err
	}
	defer r.Close()

	fmt.Fprintf(stdout, "# kind=%s width=%d records=%d\n", r.Kind(), r.RecordWidth(), r.NumRecords())
	for r.More() {
		pos := r.Pos()
		rec, err := r.Next()
		if err != nil {
			return err
		}
		fmt.Fprintf(stdout, "%d\t%s\t%d\n", pos, rec.Value, rec.RowID)
	}
	return r.Err()
}
