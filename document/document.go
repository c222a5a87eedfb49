// Package document is the page-level editing layer: it opens PDF bytes,
// draws on pages, imports pages as forms, edits link annotations, prepends
// pages from other documents and serializes the result.
//
// All coordinates taken and returned by Document are page-local: the origin
// is the lower-left corner of the page's MediaBox.
package document

import (
	"context"
	"errors"
	"fmt"

	"seehuhn.de/go/geom/rect"

	"github.com/wudi/pdfstamp/coords"
	"github.com/wudi/pdfstamp/fonts"
	"github.com/wudi/pdfstamp/ir/raw"
	"github.com/wudi/pdfstamp/parser"
	"github.com/wudi/pdfstamp/writer"
)

var (
	// ErrEmpty is returned when Open is given no bytes.
	ErrEmpty = errors.New("document is empty")
	// ErrClosed is returned by every method once Close has been called.
	ErrClosed = errors.New("document is closed")
	// ErrNoPages is returned when the catalog has no usable page tree.
	ErrNoPages = errors.New("document has no page tree")
)

// PageIndexError reports a page index outside the document.
type PageIndexError struct {
	Index, Count int
}

func (e *PageIndexError) Error() string {
	return fmt.Sprintf("page index %d out of range (document has %d pages)", e.Index, e.Count)
}

// letter is used when neither the page nor its ancestors carry a MediaBox.
var letter = rect.Rect{URx: 612, URy: 792}

// inheritable page attributes, materialised onto each page at load time.
var inheritable = []string{"Resources", "MediaBox", "CropBox", "Rotate"}

// Document is an editable PDF. It is not safe for concurrent use.
type Document struct {
	raw   *raw.Document
	pages []raw.ObjectRef

	fonts     map[*fonts.Face]*fontSlot
	fontOrder []*fonts.Face
	gstates   map[float64]raw.RefObj
	wrapped   map[raw.ObjectRef]bool
	ownRes    map[raw.ObjectRef]bool
	closed    bool
}

type fontSlot struct {
	ref      raw.ObjectRef
	usage    *fonts.Usage
	embedded int
}

func newDocument(rd *raw.Document) *Document {
	return &Document{
		raw:     rd,
		fonts:   make(map[*fonts.Face]*fontSlot),
		gstates: make(map[float64]raw.RefObj),
		wrapped: make(map[raw.ObjectRef]bool),
		ownRes:  make(map[raw.ObjectRef]bool),
	}
}

// Open parses data and indexes its pages.
func Open(ctx context.Context, data []byte) (*Document, error) {
	if len(data) == 0 {
		return nil, ErrEmpty
	}
	rd, err := parser.NewDocumentParser(parser.DefaultConfig()).Parse(ctx, data)
	if err != nil {
		return nil, fmt.Errorf("open document: %w", err)
	}
	d := newDocument(rd)
	if err := d.loadPages(); err != nil {
		return nil, err
	}
	return d, nil
}

// New returns an empty document with a catalog and an empty page tree.
func New() *Document {
	rd := raw.NewDocument("1.7")
	pages := rd.Add(raw.DictOf(
		"Type", raw.NameLiteral("Pages"),
		"Kids", raw.NewArray(),
		"Count", raw.NumberInt(0),
	))
	catalog := rd.Add(raw.DictOf(
		"Type", raw.NameLiteral("Catalog"),
		"Pages", pages,
	))
	rd.Trailer.Set("Root", catalog)
	return newDocument(rd)
}

func (d *Document) check() error {
	if d == nil || d.closed {
		return ErrClosed
	}
	return nil
}

func (d *Document) pageTreeRoot() (*raw.DictObj, raw.RefObj, error) {
	root, _ := d.raw.Trailer.Get("Root")
	catalog, ok := d.raw.ResolveDict(root)
	if !ok {
		return nil, raw.RefObj{}, ErrNoPages
	}
	pagesObj, _ := catalog.Get("Pages")
	ref, isRef := pagesObj.(raw.RefObj)
	if !isRef {
		if dict, ok := pagesObj.(*raw.DictObj); ok {
			ref = d.raw.Add(dict)
			catalog.Set("Pages", ref)
		}
	}
	pages, ok := d.raw.ResolveDict(ref)
	if !ok {
		return nil, raw.RefObj{}, ErrNoPages
	}
	return pages, ref, nil
}

// loadPages flattens the page tree in reading order and copies inherited
// attributes onto every page so later edits never touch shared ancestors.
func (d *Document) loadPages() error {
	_, rootRef, err := d.pageTreeRoot()
	if err != nil {
		return err
	}
	d.pages = d.pages[:0]
	seen := make(map[raw.ObjectRef]bool)
	return d.walkPages(rootRef, map[string]raw.Object{}, seen, 0)
}

const maxTreeDepth = 64

func (d *Document) walkPages(ref raw.RefObj, inherited map[string]raw.Object, seen map[raw.ObjectRef]bool, depth int) error {
	if depth > maxTreeDepth {
		return fmt.Errorf("page tree deeper than %d levels", maxTreeDepth)
	}
	if seen[ref.R] {
		return nil
	}
	seen[ref.R] = true
	node, ok := d.raw.Objects[ref.R].(*raw.DictObj)
	if !ok {
		return nil
	}
	kidsObj, hasKids := node.Get("Kids")
	if node.Name("Type") == "Pages" || (hasKids && node.Name("Type") != "Page") {
		next := make(map[string]raw.Object, len(inheritable))
		for k, v := range inherited {
			next[k] = v
		}
		for _, k := range inheritable {
			if v, ok := node.Get(k); ok {
				next[k] = v
			}
		}
		kids, ok := d.raw.ResolveArray(kidsObj)
		if !ok {
			return nil
		}
		for i, kid := range kids.Items {
			kidRef, isRef := kid.(raw.RefObj)
			if !isRef {
				dict, isDict := kid.(*raw.DictObj)
				if !isDict {
					continue
				}
				kidRef = d.raw.Add(dict)
				kids.Items[i] = kidRef
			}
			if err := d.walkPages(kidRef, next, seen, depth+1); err != nil {
				return err
			}
		}
		return nil
	}
	for _, k := range inheritable {
		if _, ok := node.Get(k); !ok {
			if v, ok := inherited[k]; ok {
				node.Set(k, v)
			}
		}
	}
	if _, ok := node.Get("MediaBox"); !ok {
		node.Set("MediaBox", rectArray(letter))
	}
	d.pages = append(d.pages, ref.R)
	return nil
}

// PageCount returns the number of pages.
func (d *Document) PageCount() int {
	if d.check() != nil {
		return 0
	}
	return len(d.pages)
}

func (d *Document) pageRef(i int) (raw.ObjectRef, error) {
	if err := d.check(); err != nil {
		return raw.ObjectRef{}, err
	}
	if i < 0 || i >= len(d.pages) {
		return raw.ObjectRef{}, &PageIndexError{Index: i, Count: len(d.pages)}
	}
	return d.pages[i], nil
}

func (d *Document) pageDict(ref raw.ObjectRef) *raw.DictObj {
	page, _ := d.raw.Objects[ref].(*raw.DictObj)
	if page == nil {
		page = raw.Dict()
	}
	return page
}

// PageBox returns the MediaBox of page i in user space.
func (d *Document) PageBox(i int) (rect.Rect, error) {
	ref, err := d.pageRef(i)
	if err != nil {
		return rect.Rect{}, err
	}
	return d.mediaBox(d.pageDict(ref)), nil
}

func (d *Document) mediaBox(page *raw.DictObj) rect.Rect {
	obj, _ := page.Get("MediaBox")
	arr, ok := d.raw.ResolveArray(obj)
	if !ok || arr.Len() != 4 {
		return letter
	}
	var v [4]float64
	for i, item := range arr.Items {
		n, ok := d.raw.ResolveNumber(item)
		if !ok {
			return letter
		}
		v[i] = n
	}
	box := coords.Normalize(rect.Rect{LLx: v[0], LLy: v[1], URx: v[2], URy: v[3]})
	if box.URx-box.LLx <= 0 || box.URy-box.LLy <= 0 {
		return letter
	}
	return box
}

// PageSize returns the width and height of page i.
func (d *Document) PageSize(i int) (coords.Size, error) {
	box, err := d.PageBox(i)
	if err != nil {
		return coords.Size{}, err
	}
	return coords.Size{W: box.URx - box.LLx, H: box.URy - box.LLy}, nil
}

// AddPage appends an empty page of the given size and returns its index.
func (d *Document) AddPage(size coords.Size) (int, error) {
	if err := d.check(); err != nil {
		return 0, err
	}
	root, rootRef, err := d.pageTreeRoot()
	if err != nil {
		return 0, err
	}
	page := d.raw.Add(raw.DictOf(
		"Type", raw.NameLiteral("Page"),
		"Parent", rootRef,
		"MediaBox", rectArray(rect.Rect{URx: size.W, URy: size.H}),
		"Resources", raw.Dict(),
	))
	kids := d.rootKids(root)
	kids.Append(page)
	d.pages = append(d.pages, page.R)
	root.Set("Count", raw.NumberInt(int64(len(d.pages))))
	return len(d.pages) - 1, nil
}

func (d *Document) rootKids(root *raw.DictObj) *raw.ArrayObj {
	kidsObj, _ := root.Get("Kids")
	kids, ok := d.raw.ResolveArray(kidsObj)
	if !ok {
		kids = raw.NewArray()
		root.Set("Kids", kids)
	}
	return kids
}

// Bytes embeds the fonts used so far and serializes the document.
func (d *Document) Bytes(ctx context.Context) ([]byte, error) {
	if err := d.check(); err != nil {
		return nil, err
	}
	d.flushFonts()
	// Transparency groups and soft masks need 1.4.
	if d.raw.Version < "1.4" {
		d.raw.Version = "1.4"
	}
	return writer.Bytes(ctx, d.raw, writer.Config{Compress: true})
}

// flushFonts writes the font objects for every face whose glyph set grew
// since it was last embedded.
func (d *Document) flushFonts() {
	for _, face := range d.fontOrder {
		slot := d.fonts[face]
		if n := slot.usage.Len(); n != slot.embedded {
			slot.usage.Embed(d.raw, slot.ref)
			slot.embedded = n
		}
	}
}

// Close releases the document. It is safe to call more than once.
func (d *Document) Close() error {
	if d == nil || d.closed {
		return nil
	}
	d.closed = true
	d.raw = nil
	d.pages = nil
	d.fonts = nil
	d.fontOrder = nil
	return nil
}

func rectArray(r rect.Rect) *raw.ArrayObj {
	return raw.Floats(r.LLx, r.LLy, r.URx, r.URy)
}
