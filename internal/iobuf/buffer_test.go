package iobuf

import (
	"bytes"
	"io"
	"testing"
)

func TestWriteThenReadRoundTrip(t *testing.T) {
	var sink bytes.Buffer
	wb, err := NewWriteBuffer(&sink, 8, false)
	if err != nil {
		t.Fatal(err)
	}
	payload := []byte("hello, sdds page engine buffer test")
	if err := wb.Write(payload); err != nil {
		t.Fatal(err)
	}
	if err := wb.Flush(); err != nil {
		t.Fatal(err)
	}

	rb, err := NewReadBuffer(bytes.NewReader(sink.Bytes()), 4, false)
	if err != nil {
		t.Fatal(err)
	}
	got := make([]byte, len(payload))
	if err := rb.Read(got); err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(got, payload) {
		t.Fatalf("got %q want %q", got, payload)
	}
}

func TestReadShortAtEOF(t *testing.T) {
	rb, err := NewReadBuffer(bytes.NewReader([]byte("abc")), 2, false)
	if err != nil {
		t.Fatal(err)
	}
	dst := make([]byte, 10)
	err = rb.Read(dst)
	if err != io.ErrUnexpectedEOF {
		t.Fatalf("expected ErrUnexpectedEOF, got %v", err)
	}
}

func TestReadCleanEOF(t *testing.T) {
	rb, err := NewReadBuffer(bytes.NewReader(nil), 4, false)
	if err != nil {
		t.Fatal(err)
	}
	dst := make([]byte, 5)
	err = rb.Read(dst)
	if err != io.EOF {
		t.Fatalf("expected io.EOF, got %v", err)
	}
}

func TestSkip(t *testing.T) {
	rb, err := NewReadBuffer(bytes.NewReader([]byte("0123456789")), 3, false)
	if err != nil {
		t.Fatal(err)
	}
	if err := rb.Skip(4); err != nil {
		t.Fatal(err)
	}
	got := make([]byte, 2)
	if err := rb.Read(got); err != nil {
		t.Fatal(err)
	}
	if string(got) != "45" {
		t.Fatalf("got %q want 45", got)
	}
}

func TestZeroCapacityBypass(t *testing.T) {
	var sink bytes.Buffer
	wb, err := NewWriteBuffer(&sink, 0, false)
	if err != nil {
		t.Fatal(err)
	}
	if err := wb.Write([]byte("direct")); err != nil {
		t.Fatal(err)
	}
	if sink.String() != "direct" {
		t.Fatalf("expected direct passthrough, got %q", sink.String())
	}
}

func TestCompressedBackendRequiresCapacity(t *testing.T) {
	var sink bytes.Buffer
	if _, err := NewWriteBuffer(&sink, 0, true); err == nil {
		t.Fatal("expected error for capacity=0 on a backend that requires buffering")
	}
}

func TestBytesLeft(t *testing.T) {
	rb, err := NewReadBuffer(bytes.NewReader([]byte("0123456789")), 16, false)
	if err != nil {
		t.Fatal(err)
	}
	got := make([]byte, 3)
	if err := rb.Read(got); err != nil {
		t.Fatal(err)
	}
	if rb.BytesLeft() != 7 {
		t.Fatalf("expected 7 bytes left, got %d", rb.BytesLeft())
	}
}
