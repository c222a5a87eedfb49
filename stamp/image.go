package stamp

import (
	"context"

	"github.com/wudi/pdfstamp/coords"
	"github.com/wudi/pdfstamp/imaging"
)

// ImageStamper draws a raster image at one unit per pixel times the scale.
// The image is embedded once and shared by every page.
type ImageStamper struct {
	// MaxDimension bounds the stored pixels; see imaging.DecodeWithLimit.
	MaxDimension int
}

func (s ImageStamper) Stamp(ctx context.Context, src []byte, spec Spec) ([]byte, error) {
	p, ok := spec.Payload().(ImagePayload)
	if !ok {
		return nil, invalid("payload", "image stamper got %s payload", spec.Kind())
	}
	limit := s.MaxDimension
	if limit == 0 {
		limit = imaging.DefaultMaxDimension
	}
	img, err := imaging.DecodeWithLimit(p.Data, limit)
	if err != nil {
		return nil, invalid("stampFile", "%v", err)
	}
	t, err := openTarget(ctx, src, spec)
	if err != nil {
		return nil, err
	}
	if t == nil {
		return src, nil
	}
	defer t.doc.Close()

	form, err := t.doc.AddImage(img)
	if err != nil {
		return nil, &StampingFailedError{Kind: KindImage, Page: t.pages[0], Err: err}
	}
	pf := boxedForm(form, nil, 0, 0)
	err = t.each(ctx, KindImage, func(i int, page coords.Size) error {
		return drawPlaced(t, i, page, pf, spec)
	})
	if err != nil {
		return nil, err
	}
	return t.finish(ctx)
}
