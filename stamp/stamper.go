package stamp

import (
	"context"
	"fmt"

	"seehuhn.de/go/geom/matrix"

	"github.com/wudi/pdfstamp/coords"
	"github.com/wudi/pdfstamp/document"
)

// Stamper draws one kind of payload onto the selected pages of a document.
// Implementations never return partial output: on error the result is nil.
type Stamper interface {
	Stamp(ctx context.Context, src []byte, spec Spec) ([]byte, error)
}

// target is an opened document together with the pages a spec selects.
type target struct {
	doc   *document.Document
	pages []int
}

// openTarget opens src and resolves the selector. It returns a nil target
// when nothing is selected; the caller then returns src unchanged.
func openTarget(ctx context.Context, src []byte, spec Spec) (*target, error) {
	doc, err := document.Open(ctx, src)
	if err != nil {
		if cerr := ctx.Err(); cerr != nil {
			return nil, cerr
		}
		return nil, invalid("file", "not a readable PDF document: %v", err)
	}
	pages, err := ResolvePages(spec.Pages(), doc.PageCount())
	if err != nil {
		doc.Close()
		return nil, err
	}
	if len(pages) == 0 {
		doc.Close()
		return nil, nil
	}
	return &target{doc: doc, pages: pages}, nil
}

// each calls fn for every selected page in ascending order. A cancelled
// context is honoured between pages.
func (t *target) each(ctx context.Context, kind Kind, fn func(i int, page coords.Size) error) error {
	for _, i := range t.pages {
		if err := ctx.Err(); err != nil {
			return err
		}
		page, err := t.doc.PageSize(i)
		if err == nil {
			err = fn(i, page)
		}
		if err != nil {
			return &StampingFailedError{Kind: kind, Page: i, Err: err}
		}
		if n, ok := ctx.Value(pagesStampedKey{}).(*int); ok {
			*n++
		}
	}
	return nil
}

type pagesStampedKey struct{}

// withPageCounter returns a context whose stamping loops count the pages
// they draw on into the returned int.
func withPageCounter(ctx context.Context) (context.Context, *int) {
	n := new(int)
	return context.WithValue(ctx, pagesStampedKey{}, n), n
}

func (t *target) finish(ctx context.Context) ([]byte, error) {
	out, err := t.doc.Bytes(ctx)
	if err != nil {
		return nil, fmt.Errorf("write document: %w", err)
	}
	return out, nil
}

// placedForm is a form drawn into a box of w×h units before scaling. fit maps
// the form's own box onto that box.
type placedForm struct {
	form  *document.Form
	fit   matrix.Matrix
	w, h  float64
	links []document.Link
}

// boxedForm fits f into an optional width×height override. With one
// dimension given the other follows the aspect ratio.
func boxedForm(f *document.Form, links []document.Link, width, height float64) placedForm {
	fw, fh := f.Size.W, f.Size.H
	w, h := fw, fh
	switch {
	case width > 0 && height > 0:
		w, h = width, height
	case width > 0 && fw > 0:
		w, h = width, fh*width/fw
	case height > 0 && fh > 0:
		w, h = fw*height/fh, height
	}
	pf := placedForm{form: f, fit: matrix.Identity, w: w, h: h}
	if fw > 0 && fh > 0 && (w != fw || h != fh) {
		pf.fit = matrix.Matrix{w / fw, 0, 0, h / fh, 0, 0}
	}
	for _, l := range links {
		pf.links = append(pf.links, document.Link{Rect: coords.TransformRect(pf.fit, l.Rect), URI: l.URI})
	}
	return pf
}

// drawPlaced positions pf on page i, draws it and copies its links.
func drawPlaced(t *target, i int, page coords.Size, pf placedForm, spec Spec) error {
	s, rot := spec.Scale(), spec.Rotation()
	at := Place(spec.Position(), spec.X(), spec.Y(), page, pf.w*s, pf.h*s, DefaultMargin)
	m := pf.fit.Mul(coords.StampMatrix(at.X, at.Y, s, rot, pf.w, pf.h))
	if err := t.doc.DrawForm(i, pf.form, m, spec.Opacity()); err != nil {
		return err
	}
	for _, l := range pf.links {
		r := coords.RemapRect(l.Rect, s, rot, pf.w, pf.h, at.X, at.Y)
		if err := t.doc.AddLink(i, document.Link{Rect: r, URI: l.URI}, rot); err != nil {
			return fmt.Errorf("add link %s: %w", l.URI, err)
		}
	}
	return nil
}
