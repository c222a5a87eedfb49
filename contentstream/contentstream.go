// Package contentstream builds PDF content streams from typed operations.
package contentstream

import (
	"bytes"
	"encoding/hex"

	"github.com/wudi/pdfstamp/ir/raw"
)

// Operand is a single operator argument.
type Operand interface {
	write(b *bytes.Buffer)
}

// NumberOperand is a numeric argument.
type NumberOperand struct{ Value float64 }

// NameOperand is a resource name such as /F1 or /GS1.
type NameOperand struct{ Value string }

// HexOperand is a string written in hex form, used for two-byte glyph codes.
type HexOperand struct{ Value []byte }

func (n NumberOperand) write(b *bytes.Buffer) { b.WriteString(raw.FormatNumber(n.Value)) }
func (n NameOperand) write(b *bytes.Buffer)   { b.WriteByte('/'); b.WriteString(n.Value) }
func (h HexOperand) write(b *bytes.Buffer) {
	b.WriteByte('<')
	b.WriteString(hex.EncodeToString(h.Value))
	b.WriteByte('>')
}

// Operation is one operator with its operands.
type Operation struct {
	Operator string
	Operands []Operand
}

// Builder accumulates operations in drawing order.
type Builder struct {
	ops []Operation
}

// New returns an empty builder.
func New() *Builder { return &Builder{} }

func nums(vals ...float64) []Operand {
	out := make([]Operand, len(vals))
	for i, v := range vals {
		out[i] = NumberOperand{Value: v}
	}
	return out
}

// Op appends an arbitrary operation.
func (b *Builder) Op(operator string, operands ...Operand) *Builder {
	b.ops = append(b.ops, Operation{Operator: operator, Operands: operands})
	return b
}

func (b *Builder) Save() *Builder    { return b.Op("q") }
func (b *Builder) Restore() *Builder { return b.Op("Q") }

// Concat multiplies the CTM by m (a b c d e f).
func (b *Builder) Concat(m [6]float64) *Builder {
	return b.Op("cm", nums(m[:]...)...)
}

func (b *Builder) ExtGState(name string) *Builder {
	return b.Op("gs", NameOperand{Value: name})
}

func (b *Builder) XObject(name string) *Builder {
	return b.Op("Do", NameOperand{Value: name})
}

func (b *Builder) FillRGB(r, g, bl float64) *Builder   { return b.Op("rg", nums(r, g, bl)...) }
func (b *Builder) StrokeRGB(r, g, bl float64) *Builder { return b.Op("RG", nums(r, g, bl)...) }
func (b *Builder) LineWidth(w float64) *Builder        { return b.Op("w", nums(w)...) }
func (b *Builder) Rect(x, y, w, h float64) *Builder    { return b.Op("re", nums(x, y, w, h)...) }
func (b *Builder) MoveTo(x, y float64) *Builder        { return b.Op("m", nums(x, y)...) }
func (b *Builder) LineTo(x, y float64) *Builder        { return b.Op("l", nums(x, y)...) }
func (b *Builder) Fill() *Builder                      { return b.Op("f") }
func (b *Builder) Stroke() *Builder                    { return b.Op("S") }

func (b *Builder) BeginText() *Builder { return b.Op("BT") }
func (b *Builder) EndText() *Builder   { return b.Op("ET") }

func (b *Builder) Font(name string, size float64) *Builder {
	return b.Op("Tf", NameOperand{Value: name}, NumberOperand{Value: size})
}

// TextMatrix sets Tm, which positions the text origin absolutely.
func (b *Builder) TextMatrix(x, y float64) *Builder {
	return b.Op("Tm", nums(1, 0, 0, 1, x, y)...)
}

// ShowGlyphs shows a run of two-byte glyph codes.
func (b *Builder) ShowGlyphs(codes []byte) *Builder {
	return b.Op("Tj", HexOperand{Value: codes})
}

// Operations returns the recorded operations.
func (b *Builder) Operations() []Operation { return b.ops }

// Bytes serializes the operations, one per line.
func (b *Builder) Bytes() []byte {
	var buf bytes.Buffer
	for _, op := range b.ops {
		for _, o := range op.Operands {
			o.write(&buf)
			buf.WriteByte(' ')
		}
		buf.WriteString(op.Operator)
		buf.WriteByte('\n')
	}
	return buf.Bytes()
}
