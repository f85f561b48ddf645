package iobuf

import (
	"io"

	"github.com/ulikunitz/xz"
)

// Xz backend: used for the .xz/.lzma compression envelope (spec §6.4).
// Grounded on the same "transparent compressed sink" role that
// _examples/other_examples's google-rpmpack and dsnet-compress examples
// pull an xz/lzma package in for.

// NewXZReadBuffer wraps r in an xz reader and a read Buffer.
func NewXZReadBuffer(r io.Reader, capacity int) (*Buffer, error) {
	xr, err := xz.NewReader(r)
	if err != nil {
		return nil, err
	}
	return NewReadBuffer(xr, capacity, true)
}

// NewXZWriteBuffer wraps w in an xz writer and a write Buffer.
func NewXZWriteBuffer(w io.Writer, capacity int) (*Buffer, io.Closer, error) {
	xw, err := xz.NewWriter(w)
	if err != nil {
		return nil, nil, err
	}
	buf, err := NewWriteBuffer(xw, capacity, true)
	if err != nil {
		xw.Close()
		return nil, nil, err
	}
	return buf, xw, nil
}
