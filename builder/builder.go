// Package builder creates new documents page by page with a fluent API.
package builder

import (
	"errors"
	"fmt"

	"seehuhn.de/go/geom/rect"

	"github.com/wudi/pdfstamp/coords"
	"github.com/wudi/pdfstamp/document"
	"github.com/wudi/pdfstamp/fonts"
	"github.com/wudi/pdfstamp/imaging"
)

// PDFBuilder provides a fluent API for PDF construction.
type PDFBuilder interface {
	NewPage(width, height float64) PageBuilder
	PageCount() int
	Build() (*document.Document, error)
}

// PageBuilder provides a fluent API for page construction. Coordinates are
// PDF user space with the origin at the page's lower-left corner.
type PageBuilder interface {
	DrawText(text string, x, y float64, opts TextOptions) PageBuilder
	DrawRectangle(x, y, width, height float64, opts RectOptions) PageBuilder
	DrawLine(x1, y1, x2, y2 float64, opts LineOptions) PageBuilder
	DrawImage(img *imaging.Image, x, y, width, height float64, opts ImageOptions) PageBuilder
	AddLink(x, y, width, height float64, uri string) PageBuilder
	Size() coords.Size
	Finish() PDFBuilder
}

// TextOptions configures text drawing.
type TextOptions struct {
	Face     *fonts.Face // nil means the regular sans face
	FontSize float64
	Color    Color
	Opacity  float64 // 0 means opaque
}

// PathOptions configures rectangle drawing.
type PathOptions struct {
	StrokeColor Color
	FillColor   Color
	LineWidth   float64
	Fill        bool
	Stroke      bool
	Opacity     float64
}

// RectOptions configures rectangle drawing (defaults to stroke if neither fill nor stroke is set).
type RectOptions = PathOptions

// LineOptions configures line drawing.
type LineOptions struct {
	StrokeColor Color
	LineWidth   float64
}

// ImageOptions configures image drawing.
type ImageOptions struct {
	Opacity float64
}

// Color represents an RGB color.
type Color = document.Color

// ErrNoDraw is returned by Build when a page operation failed.
var ErrNoDraw = errors.New("page drawing failed")

type builderImpl struct {
	doc    *document.Document
	pages  []*pageBuilderImpl
	images map[*imaging.Image]*document.ImageObject
	err    error
}

type pageBuilderImpl struct {
	parent *builderImpl
	index  int
	size   coords.Size
	canvas *document.Canvas
	links  []document.Link
}

// NewBuilder constructs a PDFBuilder backed by a fresh document.
func NewBuilder() PDFBuilder {
	return &builderImpl{
		doc:    document.New(),
		images: make(map[*imaging.Image]*document.ImageObject),
	}
}

func (b *builderImpl) NewPage(w, h float64) PageBuilder {
	p := &pageBuilderImpl{parent: b, size: coords.Size{W: w, H: h}}
	b.pages = append(b.pages, p)
	if b.err != nil {
		return p
	}
	if w <= 0 || h <= 0 {
		b.fail(fmt.Errorf("page size %gx%g must be positive", w, h))
		return p
	}
	idx, err := b.doc.AddPage(p.size)
	if err != nil {
		b.fail(err)
		return p
	}
	canvas, err := b.doc.NewCanvas(idx)
	if err != nil {
		b.fail(err)
		return p
	}
	p.index, p.canvas = idx, canvas
	return p
}

func (b *builderImpl) PageCount() int { return len(b.pages) }

func (b *builderImpl) fail(err error) {
	if b.err == nil {
		b.err = fmt.Errorf("%w: %w", ErrNoDraw, err)
	}
}

// Build commits every page and hands over the document. The builder must not
// be used afterwards.
func (b *builderImpl) Build() (*document.Document, error) {
	if b.err == nil {
		for _, p := range b.pages {
			if err := p.commit(); err != nil {
				b.fail(err)
				break
			}
		}
	}
	if b.err != nil {
		b.doc.Close()
		return nil, b.err
	}
	doc := b.doc
	b.doc = nil
	return doc, nil
}

func (p *pageBuilderImpl) commit() error {
	if p.canvas == nil {
		return nil
	}
	if err := p.canvas.Commit(); err != nil {
		return err
	}
	for _, l := range p.links {
		if err := p.parent.doc.AddLink(p.index, l, 0); err != nil {
			return err
		}
	}
	p.canvas, p.links = nil, nil
	return nil
}

func (p *pageBuilderImpl) ready() bool { return p.parent.err == nil && p.canvas != nil }

func (p *pageBuilderImpl) DrawText(text string, x, y float64, opts TextOptions) PageBuilder {
	if !p.ready() {
		return p
	}
	size := opts.FontSize
	if size <= 0 {
		size = 12
	}
	p.canvas.Save()
	p.applyOpacity(opts.Opacity)
	p.canvas.ShowText(document.TextRun{
		Text:  text,
		Face:  opts.Face,
		Size:  size,
		Color: opts.Color,
		X:     x,
		Y:     y,
	})
	p.canvas.Restore()
	return p
}

func (p *pageBuilderImpl) DrawRectangle(x, y, width, height float64, opts RectOptions) PageBuilder {
	if !p.ready() || width <= 0 || height <= 0 {
		return p
	}
	p.canvas.Save()
	p.applyOpacity(opts.Opacity)
	if opts.Fill {
		p.canvas.FillRect(x, y, width, height, opts.FillColor)
	}
	if opts.Stroke || !opts.Fill {
		lw := opts.LineWidth
		if lw <= 0 {
			lw = 1
		}
		c := opts.StrokeColor
		p.canvas.StrokeLine(x, y, x+width, y, lw, c)
		p.canvas.StrokeLine(x+width, y, x+width, y+height, lw, c)
		p.canvas.StrokeLine(x+width, y+height, x, y+height, lw, c)
		p.canvas.StrokeLine(x, y+height, x, y, lw, c)
	}
	p.canvas.Restore()
	return p
}

func (p *pageBuilderImpl) DrawLine(x1, y1, x2, y2 float64, opts LineOptions) PageBuilder {
	if !p.ready() {
		return p
	}
	lw := opts.LineWidth
	if lw <= 0 {
		lw = 1
	}
	p.canvas.Save()
	p.canvas.StrokeLine(x1, y1, x2, y2, lw, opts.StrokeColor)
	p.canvas.Restore()
	return p
}

func (p *pageBuilderImpl) DrawImage(img *imaging.Image, x, y, width, height float64, opts ImageOptions) PageBuilder {
	if !p.ready() || img == nil {
		return p
	}
	obj, ok := p.parent.images[img]
	if !ok {
		var err error
		obj, err = p.parent.doc.EmbedImage(img)
		if err != nil {
			p.parent.fail(err)
			return p
		}
		p.parent.images[img] = obj
	}
	p.canvas.Save()
	p.applyOpacity(opts.Opacity)
	p.canvas.DrawImage(obj, x, y, width, height)
	p.canvas.Restore()
	return p
}

// AddLink records a URI link over the box; it is written when the page is committed.
func (p *pageBuilderImpl) AddLink(x, y, width, height float64, uri string) PageBuilder {
	if !p.ready() || uri == "" {
		return p
	}
	p.links = append(p.links, document.Link{
		Rect: rect.Rect{LLx: x, LLy: y, URx: x + width, URy: y + height},
		URI:  uri,
	})
	return p
}

func (p *pageBuilderImpl) Size() coords.Size { return p.size }

func (p *pageBuilderImpl) Finish() PDFBuilder { return p.parent }

func (p *pageBuilderImpl) applyOpacity(opacity float64) {
	if opacity > 0 && opacity < 1 {
		p.canvas.SetAlpha(opacity)
	}
}
