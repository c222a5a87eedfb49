// Package stamp overlays text, images, rendered markup and pages of other
// documents onto existing PDF documents.
//
// A stamp is described by an immutable Spec built from a Payload and
// functional options:
//
//	spec, err := stamp.NewSpec(stamp.Text("CONFIDENTIAL", 0, ""),
//		stamp.WithPosition(stamp.Center),
//		stamp.WithRotation(45),
//		stamp.WithOpacity(0.3),
//	)
//	out, err := stamp.NewDispatcher().Apply(ctx, pdf, spec)
package stamp

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/wudi/pdfstamp/document"
	"github.com/wudi/pdfstamp/layout"
)

// Kind identifies the payload type of a stamp.
type Kind string

const (
	KindText    Kind = "text"
	KindImage   Kind = "image"
	KindMarkup  Kind = "markup"
	KindOverlay Kind = "overlay"
)

// ParseKind reads a kind name. The request names TEXT, IMAGE, HTML and PDF
// are accepted as well.
func ParseKind(s string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "text":
		return KindText, nil
	case "image":
		return KindImage, nil
	case "markup", "html", "markdown":
		return KindMarkup, nil
	case "overlay", "pdf":
		return KindOverlay, nil
	}
	return "", invalid("type", "unknown stamp type %q", s)
}

// Default text settings.
const (
	DefaultFontSize  = 14.0
	DefaultFontColor = "#000000"
)

// Payload is the content of a stamp. It is implemented by TextPayload,
// ImagePayload, MarkupPayload and OverlayPayload.
type Payload interface {
	Kind() Kind
	payload()
}

// TextPayload draws wrapped text in the bundled bold sans face.
type TextPayload struct {
	Text      string
	FontSize  float64
	FontColor string
}

// ImagePayload draws an encoded raster image.
type ImagePayload struct {
	Data []byte
}

// MarkupPayload renders HTML or Markdown and draws the first rendered page.
type MarkupPayload struct {
	Source string
	Format layout.Format
}

// OverlayPayload draws the first page of another PDF document.
type OverlayPayload struct {
	Data []byte
}

func (TextPayload) Kind() Kind    { return KindText }
func (ImagePayload) Kind() Kind   { return KindImage }
func (MarkupPayload) Kind() Kind  { return KindMarkup }
func (OverlayPayload) Kind() Kind { return KindOverlay }

func (TextPayload) payload()    {}
func (ImagePayload) payload()   {}
func (MarkupPayload) payload()  {}
func (OverlayPayload) payload() {}

// Text builds a text payload. A zero size or blank colour selects the defaults.
func Text(text string, fontSize float64, fontColor string) (TextPayload, error) {
	if strings.TrimSpace(text) == "" {
		return TextPayload{}, invalid("text", "text is required")
	}
	if fontSize == 0 {
		fontSize = DefaultFontSize
	}
	if strings.TrimSpace(fontColor) == "" {
		fontColor = DefaultFontColor
	}
	return TextPayload{Text: text, FontSize: fontSize, FontColor: strings.TrimSpace(fontColor)}, nil
}

// Image builds an image payload.
func Image(data []byte) (ImagePayload, error) {
	if len(data) == 0 {
		return ImagePayload{}, invalid("stampFile", "image data is required")
	}
	return ImagePayload{Data: data}, nil
}

// Markup builds a markup payload.
func Markup(source string, format layout.Format) (MarkupPayload, error) {
	if strings.TrimSpace(source) == "" {
		return MarkupPayload{}, invalid("stampFile", "markup source is required")
	}
	return MarkupPayload{Source: source, Format: format}, nil
}

// Overlay builds a document overlay payload.
func Overlay(data []byte) (OverlayPayload, error) {
	if len(data) == 0 {
		return OverlayPayload{}, invalid("stampFile", "overlay document is required")
	}
	return OverlayPayload{Data: data}, nil
}

// Spec is an immutable stamp description. Build it with NewSpec.
type Spec struct {
	payload  Payload
	position Position
	x, y     *float64
	opacity  float64
	rotation float64
	scale    float64
	pages    string
	width    float64
	height   float64
}

// Option customises a Spec.
type Option func(*Spec)

// WithPosition sets the symbolic position.
func WithPosition(p Position) Option {
	return func(s *Spec) { s.position = p }
}

// WithCoordinates selects Custom placement at (x, y).
func WithCoordinates(x, y float64) Option {
	return func(s *Spec) {
		s.position = Custom
		s.x, s.y = &x, &y
	}
}

// WithX sets only the custom x coordinate.
func WithX(x float64) Option {
	return func(s *Spec) { s.x = &x }
}

// WithY sets only the custom y coordinate.
func WithY(y float64) Option {
	return func(s *Spec) { s.y = &y }
}

// WithOpacity sets the constant opacity in [0, 1].
func WithOpacity(opacity float64) Option {
	return func(s *Spec) { s.opacity = opacity }
}

// WithRotation sets the counter-clockwise rotation in degrees.
func WithRotation(deg float64) Option {
	return func(s *Spec) { s.rotation = deg }
}

// WithScale sets the scale factor.
func WithScale(scale float64) Option {
	return func(s *Spec) { s.scale = scale }
}

// WithPages sets the page selector.
func WithPages(expr string) Option {
	return func(s *Spec) { s.pages = expr }
}

// WithBox overrides the content box. For text only the width is used, as
// the wrap width. Zero leaves a dimension unset.
func WithBox(width, height float64) Option {
	return func(s *Spec) { s.width, s.height = width, height }
}

// NewSpec applies opts over the defaults and validates the result.
func NewSpec(p Payload, opts ...Option) (Spec, error) {
	s := Spec{
		payload:  p,
		position: Center,
		opacity:  1,
		scale:    1,
		pages:    PagesAll,
	}
	for _, opt := range opts {
		opt(&s)
	}
	if err := s.Validate(); err != nil {
		return Spec{}, err
	}
	return s, nil
}

func (s Spec) Payload() Payload   { return s.payload }
func (s Spec) Position() Position { return s.position }
func (s Spec) X() *float64        { return s.x }
func (s Spec) Y() *float64        { return s.y }
func (s Spec) Opacity() float64   { return s.opacity }
func (s Spec) Rotation() float64  { return s.rotation }
func (s Spec) Scale() float64     { return s.scale }
func (s Spec) Pages() string      { return s.pages }
func (s Spec) Width() float64     { return s.width }
func (s Spec) Height() float64    { return s.height }

// Kind reports the payload kind, or "" for a spec without payload.
func (s Spec) Kind() Kind {
	if s.payload == nil {
		return ""
	}
	return s.payload.Kind()
}

// Validate checks the invariants a stamper relies on.
func (s Spec) Validate() error {
	if s.payload == nil {
		return invalid("payload", "payload is required")
	}
	switch {
	case math.IsNaN(s.opacity) || s.opacity < 0 || s.opacity > 1:
		return invalid("opacity", "must be between 0 and 1, got %v", s.opacity)
	case math.IsNaN(s.scale) || math.IsInf(s.scale, 0) || s.scale <= 0:
		return invalid("scale", "must be positive, got %v", s.scale)
	case math.IsNaN(s.rotation) || math.IsInf(s.rotation, 0):
		return invalid("rotation", "must be finite")
	case s.width < 0 || s.height < 0:
		return invalid("stampWidth", "box dimensions must not be negative")
	case s.position == Custom && (s.x == nil || s.y == nil):
		return invalid("position", "CUSTOM requires both x and y")
	case s.position < Center || s.position > Custom:
		return invalid("position", "unknown position %d", int(s.position))
	}
	if t, ok := s.payload.(TextPayload); ok {
		if !(t.FontSize > 0) {
			return invalid("fontSize", "must be positive, got %v", t.FontSize)
		}
		if _, err := ParseHexColor(t.FontColor); err != nil {
			return err
		}
	}
	return nil
}

// ParseHexColor reads #RRGGBB or #RGB.
func ParseHexColor(s string) (document.Color, error) {
	hex := strings.TrimPrefix(strings.TrimSpace(s), "#")
	if len(hex) == 3 {
		hex = string([]byte{hex[0], hex[0], hex[1], hex[1], hex[2], hex[2]})
	}
	if len(hex) != 6 || !strings.HasPrefix(strings.TrimSpace(s), "#") {
		return document.Color{}, invalid("fontColor", "expected #RRGGBB or #RGB, got %q", s)
	}
	v, err := strconv.ParseUint(hex, 16, 32)
	if err != nil {
		return document.Color{}, invalid("fontColor", "expected #RRGGBB or #RGB, got %q", s)
	}
	return document.Color{
		R: float64(v>>16&0xff) / 255,
		G: float64(v>>8&0xff) / 255,
		B: float64(v&0xff) / 255,
	}, nil
}

func (s Spec) String() string {
	return fmt.Sprintf("%s at %s pages=%s opacity=%g rotation=%g scale=%g",
		s.Kind(), s.position, s.pages, s.opacity, s.rotation, s.scale)
}
