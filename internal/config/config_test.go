package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/SimonWaldherr/sddspage/internal/layout"
)

func TestSettersReturnPreviousValue(t *testing.T) {
	orig := SetIOBufferSize(1024)
	defer SetIOBufferSize(orig)

	if got := IOBufferSize(); got != 1024 {
		t.Fatalf("IOBufferSize() = %d, want 1024", got)
	}
	prev := SetIOBufferSize(2048)
	if prev != 1024 {
		t.Fatalf("SetIOBufferSize returned %d, want 1024", prev)
	}
	SetIOBufferSize(orig)
}

func TestStringColumnWidthRoundTrip(t *testing.T) {
	orig := SetStringColumnWidth(32)
	defer SetStringColumnWidth(orig)
	if got := StringColumnWidth(); got != 32 {
		t.Fatalf("StringColumnWidth() = %d, want 32", got)
	}
}

func TestRowCountLimitRoundTrip(t *testing.T) {
	orig := SetRowCountLimit(42)
	defer SetRowCountLimit(orig)
	if got := RowCountLimit(); got != 42 {
		t.Fatalf("RowCountLimit() = %d, want 42", got)
	}
}

func TestApplyOverlayOnlySetsPresentFields(t *testing.T) {
	origIO := IOBufferSize()
	origWidth := StringColumnWidth()
	defer func() {
		SetIOBufferSize(origIO)
		SetStringColumnWidth(origWidth)
	}()

	n := 777
	ApplyOverlay(Overlay{IOBufferSize: &n})
	if got := IOBufferSize(); got != 777 {
		t.Fatalf("IOBufferSize() = %d, want 777", got)
	}
	if got := StringColumnWidth(); got != origWidth {
		t.Fatalf("StringColumnWidth() = %d, want unchanged %d", got, origWidth)
	}
}

func TestLoadOverlayFromYAMLFile(t *testing.T) {
	origIO := IOBufferSize()
	defer SetIOBufferSize(origIO)

	path := filepath.Join(t.TempDir(), "tunables.yaml")
	doc := "io_buffer_size: 9999\nstring_column_width: 20\n"
	if err := os.WriteFile(path, []byte(doc), 0o644); err != nil {
		t.Fatal(err)
	}
	origWidth := StringColumnWidth()
	defer SetStringColumnWidth(origWidth)

	if err := LoadOverlay(path); err != nil {
		t.Fatal(err)
	}
	if got := IOBufferSize(); got != 9999 {
		t.Fatalf("IOBufferSize() = %d, want 9999", got)
	}
	if got := StringColumnWidth(); got != 20 {
		t.Fatalf("StringColumnWidth() = %d, want 20", got)
	}
}

func TestOutputEndianess(t *testing.T) {
	t.Setenv("SDDS_OUTPUT_ENDIANESS", "")
	if _, ok := OutputEndianess(); ok {
		t.Fatal("expected no forced byte order when unset")
	}

	t.Setenv("SDDS_OUTPUT_ENDIANESS", "big")
	if order, ok := OutputEndianess(); !ok || order != layout.OrderBig {
		t.Fatalf("OutputEndianess() = %v, %v, want OrderBig, true", order, ok)
	}

	t.Setenv("SDDS_OUTPUT_ENDIANESS", "LITTLE")
	if order, ok := OutputEndianess(); !ok || order != layout.OrderLittle {
		t.Fatalf("OutputEndianess() = %v, %v, want OrderLittle, true", order, ok)
	}
}

func TestLongDouble64Bits(t *testing.T) {
	t.Setenv("SDDS_LONGDOUBLE_64BITS", "")
	os.Unsetenv("SDDS_LONGDOUBLE_64BITS")
	if !LongDouble64Bits() {
		t.Fatal("expected LongDouble64Bits to default true when unset")
	}

	t.Setenv("SDDS_LONGDOUBLE_64BITS", "1")
	if LongDouble64Bits() {
		t.Fatal("expected LongDouble64Bits to report false once the env var is set")
	}
}
