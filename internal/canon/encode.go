package canon

import (
	"bytes"
	"math"
	"sort"
	"strconv"
	"unicode/utf8"
)

// Encode serializes v into its canonical byte form. Two values that are
// structurally equal up to object key order produce identical bytes:
// object keys are sorted lexicographically, arrays keep their order, and
// numbers are emitted in a single textual form (see appendNumber).
func Encode(v Value) []byte {
	var buf bytes.Buffer
	appendValue(&buf, v)
	return buf.Bytes()
}

func appendValue(buf *bytes.Buffer, v Value) {
	switch v.kind {
	case KindNull:
		buf.WriteString("null")
	case KindBool:
		if v.b {
			buf.WriteString("true")
		} else {
			buf.WriteString("false")
		}
	case KindNumber:
		appendNumber(buf, v.n)
	case KindString:
		appendString(buf, v.s)
	case KindArray:
		buf.WriteByte('[')
		for i, e := range v.arr {
			if i > 0 {
				buf.WriteByte(',')
			}
			appendValue(buf, e)
		}
		buf.WriteByte(']')
	case KindObject:
		keys := make([]string, 0, len(v.obj))
		for k := range v.obj {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		buf.WriteByte('{')
		for i, k := range keys {
			if i > 0 {
				buf.WriteByte(',')
			}
			appendString(buf, k)
			buf.WriteByte(':')
			appendValue(buf, v.obj[k])
		}
		buf.WriteByte('}')
	}
}

// appendNumber writes the canonical text form of n: negative zero collapses
// to "0", values that are exact integers inside the float64-safe range print
// without fraction or exponent, and everything else uses the shortest
// round-trip decimal representation.
func appendNumber(buf *bytes.Buffer, n float64) {
	if n == 0 {
		buf.WriteByte('0')
		return
	}
	if n == math.Trunc(n) && math.Abs(n) < 1<<53 {
		buf.WriteString(strconv.FormatFloat(n, 'f', -1, 64))
		return
	}
	buf.WriteString(strconv.FormatFloat(n, 'g', -1, 64))
}

const hexDigits = "0123456789abcdef"

// appendString writes s as a JSON string with a fixed escaping policy so the
// same string always produces the same bytes.
func appendString(buf *bytes.Buffer, s string) {
	buf.WriteByte('"')
	for i := 0; i < len(s); {
		b := s[i]
		if b < utf8.RuneSelf {
			switch {
			case b == '"':
				buf.WriteString(`\"`)
			case b == '\\':
				buf.WriteString(`\\`)
			case b == '\n':
				buf.WriteString(`\n`)
			case b == '\r':
				buf.WriteString(`\r`)
			case b == '\t':
				buf.WriteString(`\t`)
			case b < 0x20:
				buf.WriteString(`\u00`)
				buf.WriteByte(hexDigits[b>>4])
				buf.WriteByte(hexDigits[b&0xF])
			default:
				buf.WriteByte(b)
			}
			i++
			continue
		}
		r, size := utf8.DecodeRuneInString(s[i:])
		if r == utf8.RuneError && size == 1 {
			// Invalid UTF-8 byte: encode as replacement to stay deterministic.
			buf.WriteString(`�`)
			i++
			continue
		}
		buf.WriteString(s[i : i+size])
		i += size
	}
	buf.WriteByte('"')
}

func bytesReader(data []byte) *bytes.Reader {
	return bytes.NewReader(data)
}
