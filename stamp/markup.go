package stamp

import (
	"context"
	"fmt"

	"github.com/wudi/pdfstamp/coords"
	"github.com/wudi/pdfstamp/document"
	"github.com/wudi/pdfstamp/layout"
)

// MarkupStamper renders HTML or Markdown once and draws the first rendered
// page on every selected page. Links in the markup stay clickable.
type MarkupStamper struct {
	Layout []layout.Option
}

func (s MarkupStamper) Stamp(ctx context.Context, src []byte, spec Spec) ([]byte, error) {
	p, ok := spec.Payload().(MarkupPayload)
	if !ok {
		return nil, invalid("payload", "markup stamper got %s payload", spec.Kind())
	}
	t, err := openTarget(ctx, src, spec)
	if err != nil {
		return nil, err
	}
	if t == nil {
		return src, nil
	}
	defer t.doc.Close()

	box := coords.Size{W: spec.Width(), H: spec.Height()}
	rendered, err := layout.Render(ctx, p.Source, p.Format, box, s.Layout...)
	if err != nil {
		return nil, &StampingFailedError{Kind: KindMarkup, Page: t.pages[0], Err: fmt.Errorf("render %s: %w", p.Format, err)}
	}
	pf, err := importFirstPage(ctx, t.doc, rendered)
	if err != nil {
		return nil, &StampingFailedError{Kind: KindMarkup, Page: t.pages[0], Err: err}
	}
	err = t.each(ctx, KindMarkup, func(i int, page coords.Size) error {
		return drawPlaced(t, i, page, pf, spec)
	})
	if err != nil {
		return nil, err
	}
	return t.finish(ctx)
}

// importFirstPage copies page 0 of src into dst as a form, collects its URI
// links and closes src.
func importFirstPage(ctx context.Context, dst, src *document.Document) (placedForm, error) {
	defer src.Close()
	form, err := dst.ImportPageAsForm(ctx, src, 0)
	if err != nil {
		return placedForm{}, err
	}
	links, err := src.Links(0)
	if err != nil {
		return placedForm{}, err
	}
	return boxedForm(form, links, 0, 0), nil
}
