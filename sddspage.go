// Package sddspage implements a self-describing binary tabular page
// format: a textual layout header followed by one or more binary pages of
// parameters, arrays, and row- or column-major data, with native and
// byte-swapped wire encodings, appendable row counts (including a 64-bit
// escape for counts beyond int32), sparsed/statistics-windowed reads, and
// a rank-partitioned parallel variant of the same page protocol.
//
// # Basic usage
//
// Define a layout and write a file:
//
//	l := sddspage.NewLayout()
//	l.DefineColumn(sddspage.ColumnDef{Name: "t", Type: sddspage.F64})
//	l.DefineColumn(sddspage.ColumnDef{Name: "signal", Type: sddspage.F64})
//
//	h, closeFn, err := sddspage.CreateFile("run.sdds", l, sddspage.CreateOptions{})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer closeFn()
//
//	p := h.StartPage()
//	p.Rows = []sddspage.Row{{0.0, 1.5}, {0.1, 1.7}}
//	if err := h.WritePage(p); err != nil {
//	    log.Fatal(err)
//	}
//
// Read it back, optionally sparsed:
//
//	h, closeFn, err := sddspage.OpenFile("run.sdds", sddspage.OpenOptions{})
//	defer closeFn()
//	_, page, err := h.ReadPage(sddspage.ReadOptions{SparseInterval: 1})
//
// # Parallel access
//
// See internal/parallel's ParallelHandle for the rank-partitioned variant:
// every rank opens its own buffer over the same file, broadcasts a page
// title, partitions rows, and reads/writes its own slice.
package sddspage

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/SimonWaldherr/sddspage/internal/codec"
	"github.com/SimonWaldherr/sddspage/internal/config"
	"github.com/SimonWaldherr/sddspage/internal/header"
	"github.com/SimonWaldherr/sddspage/internal/iobuf"
	"github.com/SimonWaldherr/sddspage/internal/layout"
	"github.com/SimonWaldherr/sddspage/internal/pageio"
)

// ─────────────────────────────────────────────────────────────────────────
// Re-exported types
// ─────────────────────────────────────────────────────────────────────────

// Layout describes a file's parameters, arrays, columns, and associates —
// the schema every page in the file shares. Build one with NewLayout.
type Layout = layout.Layout

// Type is one of the eleven wire scalar types (I16..String).
type Type = layout.Type

// ByteOrder is a file's declared wire byte order.
type ByteOrder = layout.ByteOrder

// ParameterDef, ArrayDef, ColumnDef, and AssociateDef describe one field
// each in a Layout.
type (
	ParameterDef = layout.ParameterDef
	ArrayDef     = layout.ArrayDef
	ColumnDef    = layout.ColumnDef
	AssociateDef = layout.AssociateDef
)

// Value is any one scalar wire value (the concrete Go type matching its
// layout.Type: int16, uint16, int32, ..., string).
type Value = codec.Value

// Row is one row-major record.
type Row = codec.Row

// ArrayValue is one array field's page-time payload.
type ArrayValue = codec.ArrayValue

// Handle is the PageEngine handle: the single owner of a file's layout,
// buffer, and current page.
type Handle = pageio.Handle

// Page is the mutable per-page state passed to WritePage/UpdatePage and
// returned by ReadPage.
type Page = pageio.Page

// ReadOptions configures ReadPage: sparsing interval/offset/statistics and
// a last_rows override.
type ReadOptions = pageio.ReadOptions

// UpdateOptions configures UpdatePage's FlushTable behaviour.
type UpdateOptions = pageio.UpdateOptions

// Statistic selects the aggregate sparse reads compute over a window.
type Statistic = pageio.Statistic

// Sparse statistic constants.
const (
	StatNone   = pageio.StatNone
	StatMean   = pageio.StatMean
	StatMedian = pageio.StatMedian
	StatMin    = pageio.StatMin
	StatMax    = pageio.StatMax
)

// Byte order constants.
const (
	OrderUnspecified = layout.OrderUnspecified
	OrderBig         = layout.OrderBig
	OrderLittle      = layout.OrderLittle
)

// Scalar type constants.
const (
	I16    = layout.I16
	U16    = layout.U16
	I32    = layout.I32
	U32    = layout.U32
	I64    = layout.I64
	U64    = layout.U64
	F32    = layout.F32
	F64    = layout.F64
	F80    = layout.F80
	Char   = layout.Char
	String = layout.String
)

// NewLayout returns an empty Layout ready for DefineParameter/DefineArray/
// DefineColumn/DefineAssociate calls.
func NewLayout() *Layout { return layout.New() }

// ─────────────────────────────────────────────────────────────────────────
// File open/create
// ─────────────────────────────────────────────────────────────────────────

// OpenOptions configures OpenFile.
type OpenOptions struct {
	// Compressed forces gzip decompression when the path's extension is
	// not a recognised compressed one (.gz, .xz, .lzma); a recognised
	// extension selects its backend either way. Leave false to detect
	// compression from the path alone.
	Compressed bool

	// AutoRecover sets Handle.SetAutoRecover on the returned handle.
	AutoRecover bool

	// Parser decodes fixed-value parameter text; defaults to
	// header.TextHeader{}.
	Parser codec.FixedValueParser
}

// CreateOptions configures CreateFile.
type CreateOptions struct {
	// Compress selects a compression envelope ("gzip", "xz", or "" for
	// none) regardless of the file extension.
	Compress string
}

func detectCompression(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".gz":
		return "gzip"
	case ".xz", ".lzma":
		return "xz"
	default:
		return ""
	}
}

// OpenFile opens path, parses its textual layout header, and returns a
// Handle positioned at the start of the first page plus a close function
// the caller must invoke when done (it closes both the compression
// wrapper, if any, and the underlying file).
func OpenFile(path string, opts OpenOptions) (*Handle, func() error, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("sddspage: open %s: %w", path, err)
	}

	compression := detectCompression(path)
	if opts.Compressed && compression == "" {
		compression = "gzip"
	}

	parser := opts.Parser
	if parser == nil {
		parser = header.TextHeader{}
	}

	// The textual header is always read uncompressed: compression wraps
	// only the binary page data that follows &data mode=binary &end
	// (spec §6.4).
	// The header lines up to and including the &data line are collected
	// first and f is then seeked to the byte just past them, because the
	// header parser reads ahead and would otherwise leave f beyond the
	// start of the first page.
	br := bufio.NewReader(f)
	var hdr bytes.Buffer
	for {
		line, rerr := br.ReadString('\n')
		hdr.WriteString(line)
		if rerr != nil || strings.HasPrefix(strings.TrimSpace(line), "&data") {
			break
		}
	}
	if _, err := f.Seek(int64(hdr.Len()), io.SeekStart); err != nil {
		f.Close()
		return nil, nil, fmt.Errorf("sddspage: seek past header: %w", err)
	}
	hio := header.TextHeader{}
	l, err := hio.ParseLayout(&hdr)
	if err != nil {
		f.Close()
		return nil, nil, fmt.Errorf("sddspage: parse header: %w", err)
	}

	var buf *iobuf.Buffer
	var closer func() error
	switch compression {
	case "gzip":
		gb, gc, gerr := iobuf.NewGzipReadBuffer(f, config.IOBufferSize())
		if gerr != nil {
			f.Close()
			return nil, nil, fmt.Errorf("sddspage: gzip reader: %w", gerr)
		}
		buf = gb
		closer = func() error {
			err1 := gc.Close()
			err2 := f.Close()
			if err1 != nil {
				return err1
			}
			return err2
		}
	case "xz":
		xb, xerr := iobuf.NewXZReadBuffer(f, config.IOBufferSize())
		if xerr != nil {
			f.Close()
			return nil, nil, fmt.Errorf("sddspage: xz reader: %w", xerr)
		}
		buf = xb
		closer = f.Close
	default:
		pb, perr := iobuf.NewPlainReadBuffer(f, config.IOBufferSize())
		if perr != nil {
			f.Close()
			return nil, nil, fmt.Errorf("sddspage: plain reader: %w", perr)
		}
		buf = pb
		closer = f.Close
	}

	h := pageio.Open(l, buf, compression != "", parser)
	h.SetAutoRecover(opts.AutoRecover)
	return h, closer, nil
}

// CreateFile writes l's textual header to a new file at path and returns a
// Handle ready for WritePage, plus a close function that flushes and
// closes the underlying file (and compression wrapper, if any).
func CreateFile(path string, l *Layout, opts CreateOptions) (*Handle, func() error, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, nil, fmt.Errorf("sddspage: create %s: %w", path, err)
	}

	hio := header.TextHeader{}
	if err := hio.WriteLayout(f, l); err != nil {
		f.Close()
		return nil, nil, fmt.Errorf("sddspage: write header: %w", err)
	}

	var buf *iobuf.Buffer
	var closer func() error
	switch opts.Compress {
	case "gzip":
		gb, gc, gerr := iobuf.NewGzipWriteBuffer(f, config.IOBufferSize())
		if gerr != nil {
			f.Close()
			return nil, nil, fmt.Errorf("sddspage: gzip writer: %w", gerr)
		}
		buf = gb
		closer = func() error {
			err1 := gc.Close()
			err2 := f.Close()
			if err1 != nil {
				return err1
			}
			return err2
		}
	case "xz":
		xb, xc, xerr := iobuf.NewXZWriteBuffer(f, config.IOBufferSize())
		if xerr != nil {
			f.Close()
			return nil, nil, fmt.Errorf("sddspage: xz writer: %w", xerr)
		}
		buf = xb
		closer = func() error {
			err1 := xc.Close()
			err2 := f.Close()
			if err1 != nil {
				return err1
			}
			return err2
		}
	default:
		pb, perr := iobuf.NewPlainWriteBuffer(f, config.IOBufferSize())
		if perr != nil {
			f.Close()
			return nil, nil, fmt.Errorf("sddspage: plain writer: %w", perr)
		}
		buf = pb
		closer = f.Close
	}

	h := pageio.Open(l, buf, opts.Compress != "", header.TextHeader{})
	return h, closer, nil
}
