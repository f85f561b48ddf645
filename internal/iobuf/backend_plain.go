package iobuf

import "os"

// PlainSource/PlainSink wrap an *os.File directly. Plain files do not
// require buffering (capacity may be 0, in which case Buffer bypasses
// itself entirely and calls the file directly — spec §4.2).

// NewPlainReadBuffer opens a read buffer over f.
func NewPlainReadBuffer(f *os.File, capacity int) (*Buffer, error) {
	return NewReadBuffer(f, capacity, false)
}

// NewPlainWriteBuffer opens a write buffer over f.
func NewPlainWriteBuffer(f *os.File, capacity int) (*Buffer, error) {
	return NewWriteBuffer(f, capacity, false)
}
