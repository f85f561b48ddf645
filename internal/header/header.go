// Package header implements the textual layout header — parsing and
// emitting the schema description that sits at the start of every SDDS
// file, ahead of its binary pages — plus the small string tokenizer used
// to parse fixed-value parameter text. Both are, per spec §1, external
// collaborators that the core (PageEngine/Codec) only ever reaches
// through a narrow interface; this package is a reference implementation
// of that interface, not part of the page engine itself.
//
// The line-oriented, namelist-style text format here (&parameter ... &end)
// is adapted from the teacher's own line-oriented text parsing in
// internal/importer/csv.go and formats.go — detect-a-structure-from-text
// is the one idiom kept; the content (a binary page schema rather than a
// CSV/XML table) is entirely new.
package header

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/SimonWaldherr/sddspage/internal/codec"
	"github.com/SimonWaldherr/sddspage/internal/layout"
)

// Magic is the first line of every header this package writes.
const Magic = "SDDS1"

// IO is the external HeaderIO collaborator: parse a layout from the start
// of a stream, or write one out. PageEngine.Open/Create call into this
// through the interface only.
type IO interface {
	ParseLayout(r io.Reader) (*layout.Layout, error)
	WriteLayout(w io.Writer, l *layout.Layout) error
}

// TextHeader is the reference textual HeaderIO implementation. It also
// satisfies codec.FixedValueParser, since the fixed-value tokenizer is the
// other external collaborator spec §1 names.
type TextHeader struct{}

var _ IO = TextHeader{}
var _ codec.FixedValueParser = TextHeader{}

// FileLocator resolves an associate definition's declared filename to a
// path the caller can open — the third external collaborator named in
// spec §1. The reference implementation here is the identity function;
// real search-path resolution is explicitly out of scope (spec §1).
type FileLocator func(name string) (string, error)

// IdentityLocator is the default FileLocator: it returns name unchanged.
func IdentityLocator(name string) (string, error) { return name, nil }

// ParseFixedValue tokenizes a fixed-value parameter's literal text into a
// typed codec.Value, standing in for the out-of-scope MPL-style scanner
// (spec §1: "the core consumes from them only... a string tokenizer for
// fixed values").
func (TextHeader) ParseFixedValue(t layout.Type, text string) (codec.Value, error) {
	text = strings.TrimSpace(text)
	switch t {
	case layout.I16:
		v, err := strconv.ParseInt(text, 10, 16)
		return int16(v), err
	case layout.U16:
		v, err := strconv.ParseUint(text, 10, 16)
		return uint16(v), err
	case layout.I32:
		v, err := strconv.ParseInt(text, 10, 32)
		return int32(v), err
	case layout.U32:
		v, err := strconv.ParseUint(text, 10, 32)
		return uint32(v), err
	case layout.I64:
		return strconv.ParseInt(text, 10, 64)
	case layout.U64:
		return strconv.ParseUint(text, 10, 64)
	case layout.F32:
		v, err := strconv.ParseFloat(text, 32)
		return float32(v), err
	case layout.F64, layout.F80:
		return strconv.ParseFloat(text, 64)
	case layout.Char:
		if len(text) == 0 {
			return byte(0), nil
		}
		return text[0], nil
	case layout.String:
		return unquote(text), nil
	default:
		return nil, fmt.Errorf("header: unknown type %v for fixed value %q", t, text)
	}
}

func unquote(s string) string {
	if len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"' {
		return s[1 : len(s)-1]
	}
	return s
}

// WriteLayout emits the textual header for l.
func (TextHeader) WriteLayout(w io.Writer, l *layout.Layout) error {
	bw := bufio.NewWriter(w)
	fmt.Fprintln(bw, Magic)
	fmt.Fprintf(bw, "&description text=%q, contents=%q &end\n", l.Description, l.Contents)
	fmt.Fprintf(bw, "&mode version=%q, byte_order=%s, column_major=%t, fixed_row_count=%t, fixed_row_increment=%d &end\n",
		l.Version, byteOrderName(l.DeclaredByteOrder), l.ColumnMajor, l.FixedRowCount, l.FixedRowIncrement)

	for _, p := range l.Parameters() {
		fmt.Fprintf(bw, "&parameter name=%s, type=%s", p.Name, p.Type)
		writeOptional(bw, "units", p.Units)
		writeOptional(bw, "symbol", p.Symbol)
		writeOptional(bw, "description", p.Description)
		writeOptional(bw, "format_string", p.Format)
		writeOptional(bw, "fixed_value", p.FixedValue)
		writeFlags(bw, p.Flags)
		fmt.Fprint(bw, " &end\n")
	}
	for _, a := range l.Arrays() {
		fmt.Fprintf(bw, "&array name=%s, type=%s, dimensions=%d", a.Name, a.Type, a.Dimensions)
		writeOptional(bw, "units", a.Units)
		writeOptional(bw, "symbol", a.Symbol)
		writeOptional(bw, "description", a.Description)
		writeFlags(bw, a.Flags)
		fmt.Fprint(bw, " &end\n")
	}
	for _, c := range l.Columns() {
		fmt.Fprintf(bw, "&column name=%s, type=%s", c.Name, c.Type)
		writeOptional(bw, "units", c.Units)
		writeOptional(bw, "symbol", c.Symbol)
		writeOptional(bw, "description", c.Description)
		writeFlags(bw, c.Flags)
		fmt.Fprint(bw, " &end\n")
	}
	for _, a := range l.Associates() {
		fmt.Fprintf(bw, "&associate name=%s, filename=%s", a.Name, a.Filename)
		writeOptional(bw, "path", a.Path)
		writeOptional(bw, "description", a.Description)
		writeOptional(bw, "contents", a.Contents)
		fmt.Fprint(bw, " &end\n")
	}
	fmt.Fprintln(bw, "&data mode=binary &end")
	return bw.Flush()
}

func writeOptional(bw *bufio.Writer, key, val string) {
	if val == "" {
		return
	}
	fmt.Fprintf(bw, ", %s=%q", key, val)
}

func writeFlags(bw *bufio.Writer, f layout.Flag) {
	if f&layout.WriteOnly != 0 {
		fmt.Fprint(bw, ", write_only=1")
	}
}

func byteOrderName(o layout.ByteOrder) string {
	switch o {
	case layout.OrderBig:
		return "big"
	case layout.OrderLittle:
		return "little"
	default:
		return "unspecified"
	}
}

// ParseLayout reads a textual header from the start of r and returns the
// Layout it describes.
func (TextHeader) ParseLayout(r io.Reader) (*layout.Layout, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 1<<20)
	if !sc.Scan() {
		return nil, fmt.Errorf("header: empty stream")
	}
	if strings.TrimSpace(sc.Text()) != Magic {
		return nil, fmt.Errorf("header: missing %s magic line", Magic)
	}

	l := layout.New()
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		if !strings.HasPrefix(line, "&") {
			return nil, fmt.Errorf("header: unexpected line %q", line)
		}
		fields := tokenizeNamelist(line)
		if len(fields) == 0 {
			continue
		}
		kind := strings.TrimPrefix(fields[0], "&")
		kv := parseKeyValues(fields[1:])

		switch kind {
		case "description":
			l.Description = kv["text"]
			l.Contents = kv["contents"]
		case "mode":
			l.Version = kv["version"]
			l.DeclaredByteOrder = parseByteOrder(kv["byte_order"])
			l.ColumnMajor = kv["column_major"] == "true"
			l.FixedRowCount = kv["fixed_row_count"] == "true"
			if v, err := strconv.ParseUint(kv["fixed_row_increment"], 10, 32); err == nil {
				l.FixedRowIncrement = uint32(v)
			}
		case "parameter":
			t, err := parseType(kv["type"])
			if err != nil {
				return nil, err
			}
			flags := layout.Flag(0)
			if kv["write_only"] == "1" {
				flags |= layout.WriteOnly
			}
			if err := l.DefineParameter(layout.ParameterDef{
				Name: kv["name"], Type: t, Units: kv["units"], Symbol: kv["symbol"],
				Description: kv["description"], Format: kv["format_string"],
				FixedValue: kv["fixed_value"], Flags: flags,
			}); err != nil {
				return nil, err
			}
		case "array":
			t, err := parseType(kv["type"])
			if err != nil {
				return nil, err
			}
			dims, _ := strconv.Atoi(kv["dimensions"])
			flags := layout.Flag(0)
			if kv["write_only"] == "1" {
				flags |= layout.WriteOnly
			}
			if err := l.DefineArray(layout.ArrayDef{
				Name: kv["name"], Type: t, Units: kv["units"], Symbol: kv["symbol"],
				Description: kv["description"], Dimensions: dims, Flags: flags,
			}); err != nil {
				return nil, err
			}
		case "column":
			t, err := parseType(kv["type"])
			if err != nil {
				return nil, err
			}
			flags := layout.Flag(0)
			if kv["write_only"] == "1" {
				flags |= layout.WriteOnly
			}
			if err := l.DefineColumn(layout.ColumnDef{
				Name: kv["name"], Type: t, Units: kv["units"], Symbol: kv["symbol"],
				Description: kv["description"], Flags: flags,
			}); err != nil {
				return nil, err
			}
		case "associate":
			if err := l.DefineAssociate(layout.AssociateDef{
				Name: kv["name"], Filename: kv["filename"], Path: kv["path"],
				Description: kv["description"], Contents: kv["contents"],
			}); err != nil {
				return nil, err
			}
		case "data":
			// Terminal namelist; nothing further to capture — binary
			// pages start immediately after this line.
			return l, nil
		default:
			return nil, fmt.Errorf("header: unknown namelist &%s", kind)
		}
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	return nil, fmt.Errorf("header: missing terminating &data line")
}

func parseByteOrder(s string) layout.ByteOrder {
	switch s {
	case "big":
		return layout.OrderBig
	case "little":
		return layout.OrderLittle
	default:
		return layout.OrderUnspecified
	}
}

func parseType(s string) (layout.Type, error) {
	switch s {
	case "i16":
		return layout.I16, nil
	case "u16":
		return layout.U16, nil
	case "i32":
		return layout.I32, nil
	case "u32":
		return layout.U32, nil
	case "i64":
		return layout.I64, nil
	case "u64":
		return layout.U64, nil
	case "f32":
		return layout.F32, nil
	case "f64":
		return layout.F64, nil
	case "f80":
		return layout.F80, nil
	case "char":
		return layout.Char, nil
	case "string":
		return layout.String, nil
	default:
		return 0, fmt.Errorf("header: unknown type %q", s)
	}
}

// tokenizeNamelist splits a "&kind key=val, key="quoted val" &end" line
// into ["&kind", "key=val", "key=\"quoted val\"", ...], honouring quotes
// and dropping the trailing "&end" sentinel.
func tokenizeNamelist(line string) []string {
	line = strings.TrimSuffix(strings.TrimSpace(line), "&end")
	var tokens []string
	var cur strings.Builder
	inQuotes := false
	flush := func() {
		if cur.Len() > 0 {
			tokens = append(tokens, strings.TrimSpace(cur.String()))
			cur.Reset()
		}
	}
	for i := 0; i < len(line); i++ {
		ch := line[i]
		switch {
		case ch == '"':
			inQuotes = !inQuotes
			cur.WriteByte(ch)
		case (ch == ',' || ch == ' ') && !inQuotes:
			if ch == ',' {
				flush()
			} else {
				cur.WriteByte(ch)
			}
		default:
			cur.WriteByte(ch)
		}
	}
	flush()

	// The first whitespace-separated token ("&kind") may have been bundled
	// with the first key=value pair; split it back out.
	if len(tokens) > 0 {
		first := tokens[0]
		if sp := strings.IndexByte(first, ' '); sp >= 0 && strings.HasPrefix(first, "&") {
			rest := strings.TrimSpace(first[sp+1:])
			tokens[0] = first[:sp]
			if rest != "" {
				tokens = append([]string{tokens[0], rest}, tokens[1:]...)
			}
		}
	}
	return tokens
}

func parseKeyValues(fields []string) map[string]string {
	out := make(map[string]string, len(fields))
	for _, f := range fields {
		eq := strings.IndexByte(f, '=')
		if eq < 0 {
			continue
		}
		key := strings.TrimSpace(f[:eq])
		val := strings.TrimSpace(f[eq+1:])
		val = unquote(val)
		out[key] = val
	}
	return out
}
