package stamp

import (
	"context"

	"github.com/wudi/pdfstamp/coords"
	"github.com/wudi/pdfstamp/document"
)

// OverlayStamper draws the first page of another document. A box override
// stretches the page to Width×Height.
type OverlayStamper struct{}

func (OverlayStamper) Stamp(ctx context.Context, src []byte, spec Spec) ([]byte, error) {
	p, ok := spec.Payload().(OverlayPayload)
	if !ok {
		return nil, invalid("payload", "overlay stamper got %s payload", spec.Kind())
	}
	overlay, err := document.Open(ctx, p.Data)
	if err != nil {
		return nil, invalid("stampFile", "not a readable PDF document: %v", err)
	}
	if overlay.PageCount() == 0 {
		overlay.Close()
		return nil, invalid("stampFile", "overlay document has no pages")
	}
	t, err := openTarget(ctx, src, spec)
	if err != nil || t == nil {
		overlay.Close()
		if err != nil {
			return nil, err
		}
		return src, nil
	}
	defer t.doc.Close()

	pf, err := importFirstPage(ctx, t.doc, overlay)
	if err != nil {
		return nil, &StampingFailedError{Kind: KindOverlay, Page: t.pages[0], Err: err}
	}
	pf = boxedForm(pf.form, pf.links, spec.Width(), spec.Height())
	err = t.each(ctx, KindOverlay, func(i int, page coords.Size) error {
		return drawPlaced(t, i, page, pf, spec)
	})
	if err != nil {
		return nil, err
	}
	return t.finish(ctx)
}
