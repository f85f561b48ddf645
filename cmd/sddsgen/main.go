// Command sddsgen writes a synthetic SDDS-page file: one f64 "t" column,
// one f64 "value" column, and a handful of scalar parameters, useful for
// exercising sddsdump and the parallel engine without a real data source.
package main

import (
	"flag"
	"log"
	"math"

	"github.com/SimonWaldherr/sddspage"
)

var (
	flagRows       = flag.Int("rows", 1000, "number of rows to generate")
	flagPages      = flag.Int("pages", 1, "number of pages to write")
	flagCompress   = flag.String("compress", "", "compression envelope: gzip, xz, or empty for none")
	flagFixedCount = flag.Bool("fixed-row-count", false, "round the on-disk row count up to a fixed increment")
	flagIncrement  = flag.Uint("row-increment", 1000, "fixed_row_count rounding increment")
)

func main() {
	flag.Parse()
	if flag.NArg() != 1 {
		log.Fatal("usage: sddsgen [flags] <output-file>")
	}
	path := flag.Arg(0)

	l := sddspage.NewLayout()
	if err := l.DefineParameter(sddspage.ParameterDef{Name: "run_id", Type: sddspage.I32, Description: "synthetic run identifier"}); err != nil {
		log.Fatal(err)
	}
	if err := l.DefineParameter(sddspage.ParameterDef{Name: "source", Type: sddspage.String, Description: "generator name"}); err != nil {
		log.Fatal(err)
	}
	if err := l.DefineColumn(sddspage.ColumnDef{Name: "t", Type: sddspage.F64, Units: "s"}); err != nil {
		log.Fatal(err)
	}
	if err := l.DefineColumn(sddspage.ColumnDef{Name: "value", Type: sddspage.F64}); err != nil {
		log.Fatal(err)
	}
	l.FixedRowCount = *flagFixedCount
	l.FixedRowIncrement = uint32(*flagIncrement)

	h, closeFn, err := sddspage.CreateFile(path, l, sddspage.CreateOptions{Compress: *flagCompress})
	if err != nil {
		log.Fatal(err)
	}
	defer func() {
		if err := closeFn(); err != nil {
			log.Fatal(err)
		}
	}()

	for pg := 0; pg < *flagPages; pg++ {
		p := h.StartPage()
		p.Parameters = []sddspage.Value{int32(pg), "sddsgen"}
		p.Rows = make([]sddspage.Row, *flagRows)
		p.RowFlag = make([]bool, *flagRows)
		for i := 0; i < *flagRows; i++ {
			t := float64(i) * 0.001
			p.Rows[i] = sddspage.Row{t, math.Sin(t)}
			p.RowFlag[i] = true
		}
		if err := h.WritePage(p); err != nil {
			log.Fatal(err)
		}
	}

	log.Printf("wrote %d page(s) of %d rows to %s", *flagPages, *flagRows, path)
}
