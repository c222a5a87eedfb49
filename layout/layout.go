// Package layout renders a documented subset of HTML and Markdown into PDF
// pages. Layout produces a display list in top-down coordinates that is then
// paginated at line and table-row granularity and painted through builder.
package layout

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"

	"github.com/wudi/pdfstamp/builder"
	"github.com/wudi/pdfstamp/coords"
	"github.com/wudi/pdfstamp/document"
	"github.com/wudi/pdfstamp/fonts"
	"github.com/wudi/pdfstamp/imaging"
)

// Standard page sizes in points.
var (
	A4     = coords.A4
	Letter = coords.Size{W: 612, H: 792}
)

// Format selects the markup language of a source.
type Format int

const (
	HTML Format = iota
	Markdown
)

func (f Format) String() string {
	if f == Markdown {
		return "markdown"
	}
	return "html"
}

// ErrPageTooSmall is returned when the margins leave no room for content.
var ErrPageTooSmall = errors.New("page leaves no room for content")

// ResourceLoader fetches the bytes behind a non-data image URL.
type ResourceLoader func(ctx context.Context, src string) ([]byte, error)

// Engine handles the layout and rendering of structured content (Markdown/HTML) into PDF pages.
type Engine struct {
	b builder.PDFBuilder

	// Configuration
	DefaultFontSize float64
	LineHeight      float64 // Multiplier, e.g., 1.2
	Margins         Margins

	ctx        context.Context
	loader     ResourceLoader
	pageWidth  float64
	pageHeight float64
	images     map[string]*imaging.Image
}

// Margins defines page margins in points.
type Margins struct {
	Top, Bottom, Left, Right float64
}

// Option defines a configuration option for the Engine.
type Option func(*Engine)

// WithDefaultFontSize sets the default font size.
func WithDefaultFontSize(size float64) Option {
	return func(e *Engine) {
		e.DefaultFontSize = size
	}
}

// WithLineHeight sets the line height multiplier.
func WithLineHeight(height float64) Option {
	return func(e *Engine) {
		e.LineHeight = height
	}
}

// WithMargins sets the page margins. A body margin in the markup overrides them.
func WithMargins(margins Margins) Option {
	return func(e *Engine) {
		e.Margins = margins
	}
}

// WithPageSize sets the page dimensions.
func WithPageSize(width, height float64) Option {
	return func(e *Engine) {
		e.pageWidth = width
		e.pageHeight = height
	}
}

// WithResourceLoader lets <img> elements reference non-data URLs.
func WithResourceLoader(l ResourceLoader) Option {
	return func(e *Engine) {
		e.loader = l
	}
}

// WithContext sets the context passed to the resource loader.
func WithContext(ctx context.Context) Option {
	return func(e *Engine) {
		e.ctx = ctx
	}
}

// NewEngine creates a new layout engine with optional configuration.
func NewEngine(b builder.PDFBuilder, opts ...Option) *Engine {
	// 8px, the usual user-agent body margin.
	m := 8 * pxToPt
	e := &Engine{
		b:               b,
		DefaultFontSize: 12,
		LineHeight:      1.2,
		Margins:         Margins{Top: m, Bottom: m, Left: m, Right: m},
		ctx:             context.Background(),
		pageWidth:       A4.W,
		pageHeight:      A4.H,
		images:          make(map[string]*imaging.Image),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// SetPageSize sets the dimensions for new pages.
func (e *Engine) SetPageSize(width, height float64) {
	e.pageWidth = width
	e.pageHeight = height
}

// Render lays source out on pages of the given size and returns the new
// document. A zero size selects the natural size: the content laid out at A4
// width, then shrink-wrapped to the width it used and the height it needs.
func Render(ctx context.Context, source string, format Format, size coords.Size, opts ...Option) (*document.Document, error) {
	if format == Markdown {
		converted, err := MarkdownToHTML(source)
		if err != nil {
			return nil, err
		}
		source = converted
	}
	opts = append([]Option{WithContext(ctx)}, opts...)
	if size.W <= 0 || size.H <= 0 {
		natural, err := NaturalSize(ctx, source, opts...)
		if err != nil {
			return nil, err
		}
		size = natural
	}
	b := builder.NewBuilder()
	e := NewEngine(b, append(opts, WithPageSize(size.W, size.H))...)
	if err := e.RenderHTML(source); err != nil {
		if doc, berr := b.Build(); berr == nil {
			doc.Close()
		}
		return nil, err
	}
	return b.Build()
}

// NaturalSize measures HTML source laid out at A4 width and shrink-wrapped.
func NaturalSize(ctx context.Context, source string, opts ...Option) (coords.Size, error) {
	opts = append([]Option{WithContext(ctx)}, opts...)
	e := NewEngine(nil, append(opts, WithPageSize(A4.W, A4.H))...)
	root, err := parseHTML(source)
	if err != nil {
		return coords.Size{}, err
	}
	fl, err := e.layoutDocument(root, false)
	if err != nil {
		return coords.Size{}, err
	}
	w := math.Ceil(fl.used + fl.margins.Left + fl.margins.Right)
	if w < 1 {
		w = 1
	}
	// A second pass at the final width; percentage widths may wrap differently.
	e.pageWidth = w
	fl, err = e.layoutDocument(root, false)
	if err != nil {
		return coords.Size{}, err
	}
	h := math.Ceil(fl.height + fl.margins.Top + fl.margins.Bottom)
	if h < 1 {
		h = 1
	}
	return coords.Size{W: w, H: h}, nil
}

type itemKind int

const (
	itemText itemKind = iota
	itemRect
	itemStroke
	itemLine
	itemImage
	itemLink
	itemMath
)

// item is one display-list entry. x grows rightwards from the page's left
// edge, y grows downwards from the top of the content strip. Text and math
// are positioned by their baseline; everything else by its top-left corner.
type item struct {
	kind   itemKind
	x, y   float64
	w, h   float64
	text   string
	face   *fonts.Face
	size   float64
	color  builder.Color
	alpha  float64
	width  float64 // stroke width
	img    *imaging.Image
	uri    string
	math   *mathBox
	top    float64 // pagination band
	bottom float64
}

func (it *item) shift(dx, dy float64) {
	it.x += dx
	it.y += dy
	it.top += dy
	it.bottom += dy
}

// frag is a laid-out piece of content relative to its own top-left corner.
type frag struct {
	items []item
	w, h  float64 // used width and height
	base  float64 // first baseline, or -1
}

func (f *frag) place(child frag, dx, dy float64) {
	for _, it := range child.items {
		it.shift(dx, dy)
		f.items = append(f.items, it)
	}
}

// band sets the pagination band of every item to [top, bottom].
func band(items []item, top, bottom float64) {
	for i := range items {
		items[i].top, items[i].bottom = top, bottom
	}
}

// flow is a whole laid-out document.
type flow struct {
	items   []item
	used    float64
	height  float64
	margins Margins
}

// paint paginates fl and draws it through the builder.
func (e *Engine) paint(fl *flow) error {
	avail := e.pageHeight - fl.margins.Top - fl.margins.Bottom
	if avail <= 0 || e.pageWidth-fl.margins.Left-fl.margins.Right <= 0 {
		return fmt.Errorf("%w: %gx%g", ErrPageTooSmall, e.pageWidth, e.pageHeight)
	}
	starts := pageStarts(fl.items, avail)
	pages := make([]builder.PageBuilder, len(starts))
	for i := range pages {
		pages[i] = e.b.NewPage(e.pageWidth, e.pageHeight)
	}
	for _, it := range fl.items {
		k := sort.Search(len(starts), func(i int) bool { return starts[i] > it.top }) - 1
		if k < 0 {
			k = 0
		}
		pdfY := func(y float64) float64 { return e.pageHeight - fl.margins.Top - (y - starts[k]) }
		e.drawItem(pages[k], it, pdfY)
	}
	for _, p := range pages {
		p.Finish()
	}
	return nil
}

// pageStarts returns the strip offset at which each page begins. A band that
// would cross the bottom of the current page opens a new page at its top.
func pageStarts(items []item, avail float64) []float64 {
	bands := make([][2]float64, 0, len(items))
	for _, it := range items {
		bands = append(bands, [2]float64{it.top, it.bottom})
	}
	sort.Slice(bands, func(i, j int) bool { return bands[i][0] < bands[j][0] })
	starts := []float64{0}
	cur := 0.0
	const eps = 0.01
	for _, b := range bands {
		if b[0] > cur+eps && b[1]-cur > avail+eps {
			cur = b[0]
			starts = append(starts, cur)
		}
	}
	return starts
}

func (e *Engine) drawItem(p builder.PageBuilder, it item, pdfY func(float64) float64) {
	switch it.kind {
	case itemText:
		p.DrawText(it.text, it.x, pdfY(it.y), builder.TextOptions{
			Face: it.face, FontSize: it.size, Color: it.color,
		})
	case itemRect:
		p.DrawRectangle(it.x, pdfY(it.y+it.h), it.w, it.h, builder.RectOptions{
			Fill: true, FillColor: it.color, Opacity: it.alpha,
		})
	case itemStroke:
		p.DrawRectangle(it.x, pdfY(it.y+it.h), it.w, it.h, builder.RectOptions{
			Stroke: true, StrokeColor: it.color, LineWidth: it.width,
		})
	case itemLine:
		p.DrawLine(it.x, pdfY(it.y), it.x+it.w, pdfY(it.y+it.h), builder.LineOptions{
			StrokeColor: it.color, LineWidth: it.width,
		})
	case itemImage:
		p.DrawImage(it.img, it.x, pdfY(it.y+it.h), it.w, it.h, builder.ImageOptions{})
	case itemLink:
		p.AddLink(it.x, pdfY(it.y+it.h), it.w, it.h, it.uri)
	case itemMath:
		drawMathBox(p, it.math, it.x, pdfY(it.y), it.color)
	}
}
