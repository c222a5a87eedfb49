// Package fonts loads TrueType faces, shapes and measures text with them, and
// embeds them into documents as Type0/Identity-H fonts.
package fonts

import (
	"bytes"
	"fmt"
	"math"
	"strings"
	"sync"

	gotext "github.com/go-text/typesetting/font"
	xfont "golang.org/x/image/font"
	"golang.org/x/image/font/gofont/gobold"
	"golang.org/x/image/font/gofont/gobolditalic"
	"golang.org/x/image/font/gofont/goitalic"
	"golang.org/x/image/font/gofont/goregular"
	"golang.org/x/image/font/sfnt"
	"golang.org/x/image/math/fixed"
)

// Face is a parsed TrueType font. Metrics are in 1/1000 em.
// A Face is safe for concurrent use.
type Face struct {
	Name        string
	Ascent      float64
	Descent     float64
	CapHeight   float64
	ItalicAngle float64
	BBox        [4]float64

	data   []byte
	widths []int

	mu    sync.Mutex
	shape *gotext.Face
}

// Parse reads a TrueType/OpenType font and extracts the metrics needed for
// layout and embedding. The full font is kept for embedding.
func Parse(name string, data []byte) (*Face, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("truetype font data is empty")
	}
	font, err := sfnt.Parse(data)
	if err != nil {
		return nil, fmt.Errorf("parse truetype: %w", err)
	}
	unitsPerEm := font.UnitsPerEm()
	if unitsPerEm == 0 {
		return nil, fmt.Errorf("invalid unitsPerEm")
	}
	buf := &sfnt.Buffer{}
	ppem := fixed.Int26_6(unitsPerEm << 6)

	baseName := strings.TrimSpace(name)
	if ps, _ := font.Name(buf, sfnt.NameIDPostScript); len(ps) > 0 {
		baseName = ps
	}
	if baseName == "" {
		baseName = "CustomTT"
	}

	shaped, err := gotext.ParseTTF(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("load shaping face: %w", err)
	}

	f := &Face{
		Name:   baseName,
		data:   data,
		widths: glyphWidths(font, buf, unitsPerEm, ppem),
		shape:  shaped,
	}
	if metrics, err := font.Metrics(buf, ppem, xfont.HintingNone); err == nil {
		f.Ascent = scaleFixed(metrics.Ascent, unitsPerEm)
		f.Descent = -scaleFixed(metrics.Descent, unitsPerEm)
		f.CapHeight = scaleFixed(metrics.CapHeight, unitsPerEm)
	}
	if f.CapHeight == 0 {
		f.CapHeight = f.Ascent
	}
	// sfnt bounds grow downwards on the Y axis.
	if bounds, err := font.Bounds(buf, ppem, xfont.HintingNone); err == nil {
		f.BBox = [4]float64{
			scaleFixed(bounds.Min.X, unitsPerEm),
			-scaleFixed(bounds.Max.Y, unitsPerEm),
			scaleFixed(bounds.Max.X, unitsPerEm),
			-scaleFixed(bounds.Min.Y, unitsPerEm),
		}
	}
	if post := font.PostTable(); post != nil {
		f.ItalicAngle = post.ItalicAngle
	}
	return f, nil
}

func glyphWidths(font *sfnt.Font, buf *sfnt.Buffer, unitsPerEm sfnt.Units, ppem fixed.Int26_6) []int {
	glyphs := font.NumGlyphs()
	widths := make([]int, glyphs)
	for i := 0; i < glyphs; i++ {
		adv, err := font.GlyphAdvance(buf, sfnt.GlyphIndex(i), ppem, xfont.HintingNone)
		if err != nil {
			continue
		}
		widths[i] = int(math.Round(scaleFixed(adv, unitsPerEm)))
	}
	return widths
}

func scaleFixed(val fixed.Int26_6, unitsPerEm sfnt.Units) float64 {
	return float64(val) * 1000.0 / (64.0 * float64(unitsPerEm))
}

// GlyphWidth returns the advance of gid in 1/1000 em.
func (f *Face) GlyphWidth(gid uint16) int {
	if int(gid) < len(f.widths) {
		return f.widths[gid]
	}
	return 0
}

// AscentAt returns the ascent in points for the given font size.
func (f *Face) AscentAt(size float64) float64 { return f.Ascent * size / 1000 }

// DescentAt returns the (negative) descent in points for the given font size.
func (f *Face) DescentAt(size float64) float64 { return f.Descent * size / 1000 }

// Style selects one of the bundled Go fonts.
type Style int

const (
	Regular Style = iota
	Bold
	Italic
	BoldItalic
)

var bundled = [...]struct {
	name string
	ttf  []byte
}{
	Regular:    {"GoRegular", goregular.TTF},
	Bold:       {"GoBold", gobold.TTF},
	Italic:     {"GoItalic", goitalic.TTF},
	BoldItalic: {"GoBoldItalic", gobolditalic.TTF},
}

var (
	standardOnce  [len(bundled)]sync.Once
	standardFaces [len(bundled)]*Face
)

// Standard returns the shared face for a bundled style, parsing it on first use.
func Standard(style Style) *Face {
	if style < Regular || int(style) >= len(bundled) {
		style = Regular
	}
	standardOnce[style].Do(func() {
		f, err := Parse(bundled[style].name, bundled[style].ttf)
		if err != nil {
			panic(fmt.Sprintf("fonts: bundled %s does not parse: %v", bundled[style].name, err))
		}
		standardFaces[style] = f
	})
	return standardFaces[style]
}

// StyleFor maps bold/italic flags to a bundled style.
func StyleFor(bold, italic bool) Style {
	switch {
	case bold && italic:
		return BoldItalic
	case bold:
		return Bold
	case italic:
		return Italic
	}
	return Regular
}
