// Command sddsdump prints the parameters, arrays, and rows of an SDDS-page
// file, one page at a time, optionally sparsed.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/SimonWaldherr/sddspage"
	"github.com/SimonWaldherr/sddspage/internal/pageio"
)

var (
	flagInterval   = flag.Int("sparse-interval", 1, "read every Nth row (1 = every row)")
	flagOffset     = flag.Int("sparse-offset", 0, "skip this many rows before sparsing")
	flagLastRows   = flag.Int64("last-rows", 0, "if > 0, return only the last N rows of each page (all rows if the page has fewer)")
	flagStatistic  = flag.String("statistic", "", "aggregate each sparsed window: mean, median, min, max")
	flagCompressed = flag.Bool("compressed", false, "force gzip decompression when the extension is not .gz, .xz or .lzma")
	flagMaxPages   = flag.Int("max-pages", 0, "stop after this many pages (0 = no limit)")
)

func parseStatistic(s string) pageio.Statistic {
	switch s {
	case "mean":
		return pageio.StatMean
	case "median":
		return pageio.StatMedian
	case "min":
		return pageio.StatMin
	case "max":
		return pageio.StatMax
	default:
		return pageio.StatNone
	}
}

func main() {
	flag.Parse()
	if flag.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "usage: sddsdump [flags] <file>")
		os.Exit(1)
	}
	path := flag.Arg(0)

	h, closeFn, err := sddspage.OpenFile(path, sddspage.OpenOptions{Compressed: *flagCompressed})
	if err != nil {
		log.Fatal(err)
	}
	defer closeFn()

	opts := pageio.ReadOptions{
		SparseInterval:   *flagInterval,
		SparseOffset:     *flagOffset,
		LastRows:         *flagLastRows,
		SparseStatistics: parseStatistic(*flagStatistic),
	}

	for pageNum := 1; *flagMaxPages == 0 || pageNum <= *flagMaxPages; pageNum++ {
		num, page, err := h.ReadPage(opts)
		if err != nil {
			log.Fatalf("page %d: %v", pageNum, err)
		}
		if num == -1 {
			break
		}
		dumpPage(h.Layout, num, page)
	}

	for _, e := range h.Errors() {
		fmt.Fprintln(os.Stderr, "warning:", e)
	}
}

func dumpPage(l *sddspage.Layout, num int, p *pageio.Page) {
	fmt.Printf("page %d: %d rows\n", num, len(p.Rows))
	for i, d := range l.Parameters() {
		fmt.Printf("  %s = %v\n", d.Name, p.Parameters[i])
	}
	for i, d := range l.Arrays() {
		a := p.Arrays[i]
		fmt.Printf("  %s: dims=%v elements=%d\n", d.Name, a.Dimensions, len(a.Elements))
	}
	cols := l.Columns()
	idx := l.ReadableColumnIndices()
	for _, row := range p.Rows {
		for i, ci := range idx {
			if i > 0 {
				fmt.Print("\t")
			}
			fmt.Printf("%s=%v", cols[ci].Name, row[i])
		}
		fmt.Println()
	}
}
