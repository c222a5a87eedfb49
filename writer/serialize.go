package writer

import (
	"bytes"
	"encoding/hex"
	"fmt"

	"github.com/wudi/pdfstamp/ir/raw"
)

func writeObject(b *bytes.Buffer, o raw.Object) {
	switch v := o.(type) {
	case raw.NameObj:
		writeName(b, v.Val)
	case raw.NumberObj:
		if v.IsInteger() {
			fmt.Fprintf(b, "%d", v.Int())
		} else {
			b.WriteString(raw.FormatNumber(v.Float()))
		}
	case raw.BoolObj:
		if v.Value() {
			b.WriteString("true")
		} else {
			b.WriteString("false")
		}
	case raw.StringObj:
		writeString(b, v)
	case *raw.ArrayObj:
		b.WriteByte('[')
		for i, it := range v.Items {
			if i > 0 {
				b.WriteByte(' ')
			}
			writeObject(b, it)
		}
		b.WriteByte(']')
	case *raw.DictObj:
		b.WriteString("<<")
		for _, k := range v.Keys() {
			writeName(b, k)
			b.WriteByte(' ')
			writeObject(b, v.KV[k])
		}
		b.WriteString(">>")
	case *raw.StreamObj:
		writeObject(b, v.Dict)
		b.WriteString("\nstream\n")
		b.Write(v.Data)
		b.WriteString("\nendstream")
	case raw.RefObj:
		fmt.Fprintf(b, "%d %d R", v.R.Num, v.R.Gen)
	default:
		b.WriteString("null")
	}
}

// writeName escapes bytes outside the regular character set as #xx.
func writeName(b *bytes.Buffer, name string) {
	b.WriteByte('/')
	for i := 0; i < len(name); i++ {
		c := name[i]
		if c < '!' || c > '~' || c == '#' || isDelimiter(c) {
			fmt.Fprintf(b, "#%02X", c)
			continue
		}
		b.WriteByte(c)
	}
}

func writeString(b *bytes.Buffer, s raw.StringObj) {
	if s.Hex {
		b.WriteByte('<')
		b.WriteString(hex.EncodeToString(s.Bytes))
		b.WriteByte('>')
		return
	}
	b.WriteByte('(')
	for _, c := range s.Bytes {
		switch c {
		case '\\', '(', ')':
			b.WriteByte('\\')
			b.WriteByte(c)
		case '\r':
			b.WriteString(`\r`)
		default:
			b.WriteByte(c)
		}
	}
	b.WriteByte(')')
}

func isDelimiter(c byte) bool {
	switch c {
	case '(', ')', '<', '>', '[', ']', '{', '}', '/', '%':
		return true
	}
	return false
}
