package stamp

import (
	"context"

	"golang.org/x/text/unicode/norm"

	"github.com/wudi/pdfstamp/coords"
	"github.com/wudi/pdfstamp/document"
	"github.com/wudi/pdfstamp/fonts"
)

// LineHeight is the text line advance relative to the font size.
const LineHeight = 1.2

// TextStamper draws wrapped text in the bundled bold sans face. The scale
// multiplies the font size, so placement uses the measured box as is.
type TextStamper struct{}

func (TextStamper) Stamp(ctx context.Context, src []byte, spec Spec) ([]byte, error) {
	p, ok := spec.Payload().(TextPayload)
	if !ok {
		return nil, invalid("payload", "text stamper got %s payload", spec.Kind())
	}
	col, err := ParseHexColor(p.FontColor)
	if err != nil {
		return nil, err
	}
	t, err := openTarget(ctx, src, spec)
	if err != nil {
		return nil, err
	}
	if t == nil {
		return src, nil
	}
	defer t.doc.Close()

	text := norm.NFC.String(p.Text)
	face := fonts.Standard(fonts.Bold)
	size := p.FontSize * spec.Scale()
	err = t.each(ctx, KindText, func(i int, page coords.Size) error {
		block := layoutText(face, text, size, wrapWidth(spec.Width(), page))
		at := Place(spec.Position(), spec.X(), spec.Y(), page, block.w, block.h, DefaultMargin)
		runs := make([]document.TextRun, len(block.lines))
		for n, line := range block.lines {
			runs[n] = document.TextRun{
				Text:  line,
				Face:  face,
				Size:  size,
				Color: col,
				X:     at.X,
				Y:     at.Y + block.baseline(n),
			}
		}
		m := coords.RotateAbout(spec.Rotation(), at.X+block.w/2, at.Y+block.h/2)
		return t.doc.DrawText(i, m, spec.Opacity(), runs...)
	})
	if err != nil {
		return nil, err
	}
	return t.finish(ctx)
}

func wrapWidth(width float64, page coords.Size) float64 {
	if width > 0 {
		return width
	}
	if w := page.W - 2*DefaultMargin; w > 0 {
		return w
	}
	return page.W
}

// textBlock is wrapped text measured at its final size. Lines stack down
// from the top of a w×h box.
type textBlock struct {
	lines  []string
	w, h   float64
	lead   float64
	ascent float64
}

func layoutText(face *fonts.Face, text string, size, maxWidth float64) textBlock {
	b := textBlock{
		lines:  face.Wrap(text, size, maxWidth),
		lead:   LineHeight * size,
		ascent: face.AscentAt(size),
	}
	for _, line := range b.lines {
		if w := face.Measure(line, size); w > b.w {
			b.w = w
		}
	}
	b.h = b.lead * float64(len(b.lines))
	return b
}

// baseline is the y offset of line n above the bottom of the box.
func (b textBlock) baseline(n int) float64 {
	return b.h - float64(n)*b.lead - b.ascent
}
