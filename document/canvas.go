package document

import (
	"bytes"
	"errors"
	"fmt"
	"strings"

	"seehuhn.de/go/geom/matrix"

	"github.com/wudi/pdfstamp/contentstream"
	"github.com/wudi/pdfstamp/fonts"
	"github.com/wudi/pdfstamp/ir/raw"
)

// ErrForeignForm is returned when a form is drawn into a document other than
// the one it was imported into.
var ErrForeignForm = errors.New("form belongs to another document")

// Color is an RGB colour with components in [0,1].
type Color struct{ R, G, B float64 }

var (
	Black = Color{}
	White = Color{1, 1, 1}
)

// Canvas records drawing operations for one page. Nothing reaches the page
// until Commit; the recorded operations run inside their own q/Q pair.
type Canvas struct {
	d      *Document
	page   raw.ObjectRef
	cs     *contentstream.Builder
	failed error
}

// NewCanvas opens a canvas on page i with the origin at the page's lower-left corner.
func (d *Document) NewCanvas(i int) (*Canvas, error) {
	ref, err := d.pageRef(i)
	if err != nil {
		return nil, err
	}
	c := &Canvas{d: d, page: ref, cs: contentstream.New()}
	box := d.mediaBox(d.pageDict(ref))
	if box.LLx != 0 || box.LLy != 0 {
		c.cs.Concat([6]float64(matrix.Translate(box.LLx, box.LLy)))
	}
	return c, nil
}

// Draw runs fn on a fresh canvas for page i and commits it.
func (d *Document) Draw(i int, fn func(c *Canvas) error) error {
	c, err := d.NewCanvas(i)
	if err != nil {
		return err
	}
	if err := fn(c); err != nil {
		return err
	}
	return c.Commit()
}

// Commit appends the recorded operations to the page. The page's existing
// content is wrapped in q/Q the first time so its graphics state cannot leak
// into the new content.
func (c *Canvas) Commit() error {
	if c.failed != nil {
		return c.failed
	}
	if err := c.d.check(); err != nil {
		return err
	}
	ops := c.cs.Bytes()
	if len(ops) == 0 {
		return nil
	}
	page := c.d.pageDict(c.page)
	var items []raw.Object
	contents, _ := page.Get("Contents")
	switch v := contents.(type) {
	case raw.RefObj:
		if arr, ok := c.d.raw.Objects[v.R].(*raw.ArrayObj); ok {
			items = append(items, arr.Items...)
		} else {
			items = append(items, v)
		}
	case *raw.ArrayObj:
		items = append(items, v.Items...)
	case *raw.StreamObj:
		items = append(items, c.d.raw.Add(v))
	}

	var body bytes.Buffer
	if !c.d.wrapped[c.page] {
		c.d.wrapped[c.page] = true
		if len(items) > 0 {
			open := c.d.raw.Add(raw.NewStream(nil, []byte("q\n")))
			items = append([]raw.Object{open}, items...)
			body.WriteString("\nQ\n")
		}
	}
	body.WriteString("q\n")
	body.Write(ops)
	body.WriteString("Q\n")
	items = append(items, c.d.raw.Add(raw.NewStream(nil, body.Bytes())))
	page.Set("Contents", raw.NewArray(items...))
	c.cs = contentstream.New()
	return nil
}

// Save pushes the graphics state.
func (c *Canvas) Save() { c.cs.Save() }

// Restore pops the graphics state.
func (c *Canvas) Restore() { c.cs.Restore() }

// Transform concatenates m onto the current transformation matrix.
func (c *Canvas) Transform(m matrix.Matrix) {
	if m == matrix.Identity {
		return
	}
	c.cs.Concat([6]float64(m))
}

// SetAlpha applies a constant fill and stroke opacity. Values of 1 or more are a no-op.
func (c *Canvas) SetAlpha(alpha float64) {
	if alpha >= 1 {
		return
	}
	if alpha < 0 {
		alpha = 0
	}
	gs, ok := c.d.gstates[alpha]
	if !ok {
		gs = c.d.raw.Add(raw.DictOf(
			"Type", raw.NameLiteral("ExtGState"),
			"ca", raw.NumberFloat(alpha),
			"CA", raw.NumberFloat(alpha),
		))
		c.d.gstates[alpha] = gs
	}
	c.cs.ExtGState(c.resource("ExtGState", "GS", gs))
}

// FillRect paints a rectangle.
func (c *Canvas) FillRect(x, y, w, h float64, col Color) {
	c.cs.FillRGB(col.R, col.G, col.B).Rect(x, y, w, h).Fill()
}

// StrokeLine strokes a straight segment.
func (c *Canvas) StrokeLine(x1, y1, x2, y2, width float64, col Color) {
	c.cs.StrokeRGB(col.R, col.G, col.B).LineWidth(width).MoveTo(x1, y1).LineTo(x2, y2).Stroke()
}

// TextRun is one line of text positioned by its baseline origin.
type TextRun struct {
	Text  string
	Face  *fonts.Face
	Size  float64
	Color Color
	X, Y  float64
}

// ShowText shapes and draws run with the face embedded as a Type0 font.
func (c *Canvas) ShowText(run TextRun) {
	if strings.TrimSpace(run.Text) == "" {
		return
	}
	face := run.Face
	if face == nil {
		face = fonts.Standard(fonts.Regular)
	}
	slot := c.d.fontSlot(face)
	codes := slot.usage.Encode(face.Shape(run.Text))
	name := c.resource("Font", "F", raw.RefObj{R: slot.ref})
	c.cs.BeginText().
		FillRGB(run.Color.R, run.Color.G, run.Color.B).
		Font(name, run.Size).
		TextMatrix(run.X, run.Y).
		ShowGlyphs(codes).
		EndText()
}

func (d *Document) fontSlot(face *fonts.Face) *fontSlot {
	if slot, ok := d.fonts[face]; ok {
		return slot
	}
	// Reserved now, filled in by Bytes once every glyph is known.
	ref := d.raw.Add(raw.NullObj{})
	slot := &fontSlot{ref: ref.R, usage: fonts.NewUsage(face)}
	d.fonts[face] = slot
	d.fontOrder = append(d.fontOrder, face)
	return slot
}

// DrawForm paints form f in the current coordinate system.
func (c *Canvas) DrawForm(f *Form) {
	if f == nil || f.doc != c.d {
		c.failed = ErrForeignForm
		return
	}
	c.cs.XObject(c.resource("XObject", "Fm", f.ref))
}

// DrawImage paints an image XObject into the box (x, y, w, h).
func (c *Canvas) DrawImage(img *ImageObject, x, y, w, h float64) {
	if img == nil || img.doc != c.d {
		c.failed = ErrForeignForm
		return
	}
	name := c.resource("XObject", "Im", img.ref)
	c.cs.Save().Concat([6]float64{w, 0, 0, h, x, y}).XObject(name).Restore()
}

// resource registers obj under category in the page's own resource
// dictionary and returns its name. An existing entry for the same object is reused.
func (c *Canvas) resource(category, prefix string, obj raw.RefObj) string {
	sub := c.d.categoryDict(c.page, category)
	for _, k := range sub.Keys() {
		if v, _ := sub.Get(k); v == obj {
			return k
		}
	}
	for i := 1; ; i++ {
		name := fmt.Sprintf("%s%d", prefix, i)
		if _, taken := sub.Get(name); !taken {
			sub.Set(name, obj)
			return name
		}
	}
}

// ownResources gives the page a private, direct resource dictionary whose
// Font, XObject and ExtGState sub-dictionaries are private too.
func (d *Document) ownResources(ref raw.ObjectRef) *raw.DictObj {
	page := d.pageDict(ref)
	if d.ownRes[ref] {
		if res, ok := page.KV["Resources"].(*raw.DictObj); ok {
			return res
		}
	}
	res := raw.Dict()
	if obj, ok := page.Get("Resources"); ok {
		if src, ok := d.raw.ResolveDict(obj); ok {
			for _, k := range src.Keys() {
				v, _ := src.Get(k)
				res.Set(k, v)
			}
		}
	}
	for _, category := range []string{"Font", "XObject", "ExtGState"} {
		obj, ok := res.Get(category)
		if !ok {
			continue
		}
		sub := raw.Dict()
		if src, ok := d.raw.ResolveDict(obj); ok {
			for _, k := range src.Keys() {
				v, _ := src.Get(k)
				sub.Set(k, v)
			}
		}
		res.Set(category, sub)
	}
	page.Set("Resources", res)
	d.ownRes[ref] = true
	return res
}

func (d *Document) categoryDict(ref raw.ObjectRef, category string) *raw.DictObj {
	res := d.ownResources(ref)
	if sub, ok := res.KV[category].(*raw.DictObj); ok {
		return sub
	}
	sub := raw.Dict()
	res.Set(category, sub)
	return sub
}
