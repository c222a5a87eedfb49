package stamp

import (
	"strings"

	"github.com/wudi/pdfstamp/layout"
)

// Request is the wire form of a stamp: the JSON options accepted by the
// service and mirrored by the command line flags. Pointer fields are
// optional; nil selects the default.
type Request struct {
	Type        string   `json:"type"`
	Text        string   `json:"text,omitempty"`
	FontSize    float64  `json:"fontSize,omitempty"`
	FontColor   string   `json:"fontColor,omitempty"`
	Position    string   `json:"position,omitempty"`
	X           *float64 `json:"x,omitempty"`
	Y           *float64 `json:"y,omitempty"`
	Opacity     *float64 `json:"opacity,omitempty"`
	Rotation    float64  `json:"rotation,omitempty"`
	Scale       *float64 `json:"scale,omitempty"`
	Pages       string   `json:"pages,omitempty"`
	StampWidth  *float64 `json:"stampWidth,omitempty"`
	StampHeight *float64 `json:"stampHeight,omitempty"`
}

// Spec builds a validated Spec. stampFile carries the image, markup or
// overlay bytes and is ignored for text stamps.
func (r Request) Spec(stampFile []byte) (Spec, error) {
	kind, err := ParseKind(r.Type)
	if err != nil {
		return Spec{}, err
	}
	payload, err := r.payload(kind, stampFile)
	if err != nil {
		return Spec{}, err
	}
	pos, err := ParsePosition(r.Position)
	if err != nil {
		return Spec{}, err
	}

	opts := []Option{WithPosition(pos), WithRotation(r.Rotation)}
	if r.X != nil {
		opts = append(opts, WithX(*r.X))
	}
	if r.Y != nil {
		opts = append(opts, WithY(*r.Y))
	}
	if r.Opacity != nil {
		opts = append(opts, WithOpacity(*r.Opacity))
	}
	if r.Scale != nil {
		opts = append(opts, WithScale(*r.Scale))
	}
	if strings.TrimSpace(r.Pages) != "" {
		opts = append(opts, WithPages(r.Pages))
	}
	if r.StampWidth != nil || r.StampHeight != nil {
		opts = append(opts, WithBox(deref(r.StampWidth), deref(r.StampHeight)))
	}
	return NewSpec(payload, opts...)
}

func (r Request) payload(kind Kind, stampFile []byte) (Payload, error) {
	switch kind {
	case KindText:
		return Text(r.Text, r.FontSize, r.FontColor)
	case KindImage:
		return Image(stampFile)
	case KindMarkup:
		format := layout.HTML
		if strings.EqualFold(strings.TrimSpace(r.Type), "markdown") {
			format = layout.Markdown
		}
		return Markup(string(stampFile), format)
	default:
		return Overlay(stampFile)
	}
}

func deref(f *float64) float64 {
	if f == nil {
		return 0
	}
	return *f
}
