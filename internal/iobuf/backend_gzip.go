package iobuf

import (
	"compress/gzip"
	"io"
)

// Gzip backend: used for the .gz compression envelope (spec §6.4).
// Grounded on the teacher's own use of compress/gzip for transparent
// decompression (internal/engine/io_functions.go, internal/storage/db.go).

// NewGzipReadBuffer wraps r in a gzip reader and a read Buffer. Compressed
// backends require capacity > 0 (spec §4.2).
func NewGzipReadBuffer(r io.Reader, capacity int) (*Buffer, io.Closer, error) {
	gr, err := gzip.NewReader(r)
	if err != nil {
		return nil, nil, err
	}
	buf, err := NewReadBuffer(gr, capacity, true)
	if err != nil {
		gr.Close()
		return nil, nil, err
	}
	return buf, gr, nil
}

// gzipSink adapts *gzip.Writer to satisfy Sink+Flusher+io.Closer in one
// value so callers get a single handle to close at terminate.
type gzipSink struct {
	*gzip.Writer
}

// NewGzipWriteBuffer wraps w in a gzip writer and a write Buffer.
func NewGzipWriteBuffer(w io.Writer, capacity int) (*Buffer, io.Closer, error) {
	gw := gzip.NewWriter(w)
	buf, err := NewWriteBuffer(gzipSink{gw}, capacity, true)
	if err != nil {
		gw.Close()
		return nil, nil, err
	}
	return buf, gw, nil
}
