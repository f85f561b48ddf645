package header

import (
	"bytes"
	"strings"
	"testing"

	"github.com/SimonWaldherr/sddspage/internal/layout"
)

func buildLayout() *layout.Layout {
	l := layout.New()
	l.Description = "test run"
	l.Contents = "synthetic"
	l.Version = "1.0"
	l.DeclaredByteOrder = layout.OrderLittle
	l.FixedRowCount = true
	l.FixedRowIncrement = 500

	l.DefineParameter(layout.ParameterDef{Name: "run_id", Type: layout.I32, Description: "run identifier"})
	l.DefineParameter(layout.ParameterDef{Name: "gain", Type: layout.F64, FixedValue: "2.5"})
	l.DefineArray(layout.ArrayDef{Name: "coeffs", Type: layout.F32, Dimensions: 1})
	l.DefineColumn(layout.ColumnDef{Name: "t", Type: layout.F64, Units: "s"})
	l.DefineColumn(layout.ColumnDef{Name: "hidden", Type: layout.I32, Flags: layout.WriteOnly})
	l.DefineAssociate(layout.AssociateDef{Name: "cal", Filename: "cal.sdds", Description: "calibration file"})
	return l
}

func TestWriteThenParseLayoutRoundTrips(t *testing.T) {
	orig := buildLayout()
	h := TextHeader{}

	var buf bytes.Buffer
	if err := h.WriteLayout(&buf, orig); err != nil {
		t.Fatal(err)
	}

	got, err := h.ParseLayout(&buf)
	if err != nil {
		t.Fatalf("ParseLayout: %v\nheader was:\n%s", err, buf.String())
	}

	if got.Description != orig.Description || got.Contents != orig.Contents {
		t.Fatalf("description/contents mismatch: got %+v", got)
	}
	if got.DeclaredByteOrder != layout.OrderLittle {
		t.Fatalf("byte order = %v, want little", got.DeclaredByteOrder)
	}
	if !got.FixedRowCount || got.FixedRowIncrement != 500 {
		t.Fatalf("fixed row count/increment = %v/%d, want true/500", got.FixedRowCount, got.FixedRowIncrement)
	}

	if len(got.Parameters()) != 2 {
		t.Fatalf("got %d parameters, want 2", len(got.Parameters()))
	}
	if got.Parameters()[1].FixedValue != "2.5" {
		t.Fatalf("fixed_value = %q, want 2.5", got.Parameters()[1].FixedValue)
	}

	if len(got.Arrays()) != 1 || got.Arrays()[0].Dimensions != 1 {
		t.Fatalf("array round-trip failed: %+v", got.Arrays())
	}

	cols := got.Columns()
	if len(cols) != 2 {
		t.Fatalf("got %d columns, want 2", len(cols))
	}
	if cols[1].Flags&layout.WriteOnly == 0 {
		t.Fatal("hidden column lost its WriteOnly flag across round-trip")
	}

	if len(got.Associates()) != 1 || got.Associates()[0].Filename != "cal.sdds" {
		t.Fatalf("associate round-trip failed: %+v", got.Associates())
	}
}

func TestParseLayoutRejectsMissingMagic(t *testing.T) {
	h := TextHeader{}
	_, err := h.ParseLayout(strings.NewReader("not-sdds\n&data mode=binary &end\n"))
	if err == nil {
		t.Fatal("expected an error for a stream missing the SDDS1 magic line")
	}
}

func TestParseLayoutRejectsMissingData(t *testing.T) {
	h := TextHeader{}
	_, err := h.ParseLayout(strings.NewReader(Magic + "\n&description text=\"x\" &end\n"))
	if err == nil {
		t.Fatal("expected an error for a header missing its terminating &data line")
	}
}

func TestParseFixedValue(t *testing.T) {
	h := TextHeader{}

	cases := []struct {
		typ  layout.Type
		text string
		want any
	}{
		{layout.I32, " 42 ", int32(42)},
		{layout.F64, "3.5", float64(3.5)},
		{layout.Char, "Q", byte('Q')},
		{layout.String, `"hello world"`, "hello world"},
	}
	for _, c := range cases {
		got, err := h.ParseFixedValue(c.typ, c.text)
		if err != nil {
			t.Fatalf("ParseFixedValue(%v, %q): %v", c.typ, c.text, err)
		}
		if got != c.want {
			t.Fatalf("ParseFixedValue(%v, %q) = %#v, want %#v", c.typ, c.text, got, c.want)
		}
	}
}

func TestParseFixedValueUnknownType(t *testing.T) {
	h := TextHeader{}
	if _, err := h.ParseFixedValue(layout.Type(255), "x"); err == nil {
		t.Fatal("expected an error for an unrecognized type tag")
	}
}

func TestIdentityLocator(t *testing.T) {
	got, err := IdentityLocator("cal.sdds")
	if err != nil || got != "cal.sdds" {
		t.Fatalf("IdentityLocator = %q, %v, want cal.sdds, nil", got, err)
	}
}
