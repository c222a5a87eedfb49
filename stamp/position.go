package stamp

import (
	"fmt"
	"strings"

	"github.com/wudi/pdfstamp/coords"
)

// DefaultMargin is the distance kept from the page edges, in points.
const DefaultMargin = 20.0

// Position names where a stamp goes on the page.
type Position int

const (
	Center Position = iota
	TopLeft
	TopRight
	BottomLeft
	BottomRight
	Header
	Footer
	LeftMargin
	RightMargin
	Custom
)

var positionNames = [...]string{
	Center:      "CENTER",
	TopLeft:     "TOP_LEFT",
	TopRight:    "TOP_RIGHT",
	BottomLeft:  "BOTTOM_LEFT",
	BottomRight: "BOTTOM_RIGHT",
	Header:      "HEADER",
	Footer:      "FOOTER",
	LeftMargin:  "LEFT_MARGIN",
	RightMargin: "RIGHT_MARGIN",
	Custom:      "CUSTOM",
}

func (p Position) String() string {
	if p >= 0 && int(p) < len(positionNames) {
		return positionNames[p]
	}
	return fmt.Sprintf("Position(%d)", int(p))
}

// ParsePosition reads a position name such as "TOP_LEFT", "top-left" or
// "Top Left". Blank selects Center.
func ParsePosition(s string) (Position, error) {
	norm := strings.ToUpper(strings.TrimSpace(s))
	norm = strings.NewReplacer("-", "_", " ", "_").Replace(norm)
	if norm == "" {
		return Center, nil
	}
	for i, name := range positionNames {
		if name == norm {
			return Position(i), nil
		}
	}
	return Center, invalid("position", "unknown position %q", s)
}

// Place returns the lower-left corner of a w×h box on a page. Custom uses x
// and y as given, treating a missing coordinate as 0.
func Place(pos Position, x, y *float64, page coords.Size, w, h, margin float64) coords.Point {
	pw, ph, m := page.W, page.H, margin
	switch pos {
	case TopLeft:
		return coords.Point{X: m, Y: ph - h - m}
	case TopRight:
		return coords.Point{X: pw - w - m, Y: ph - h - m}
	case BottomLeft:
		return coords.Point{X: m, Y: m}
	case BottomRight:
		return coords.Point{X: pw - w - m, Y: m}
	case Header:
		return coords.Point{X: (pw - w) / 2, Y: ph - h - m}
	case Footer:
		return coords.Point{X: (pw - w) / 2, Y: m}
	case LeftMargin:
		return coords.Point{X: m, Y: (ph - h) / 2}
	case RightMargin:
		return coords.Point{X: pw - w - m, Y: (ph - h) / 2}
	case Custom:
		var p coords.Point
		if x != nil {
			p.X = *x
		}
		if y != nil {
			p.Y = *y
		}
		return p
	}
	return coords.Point{X: (pw - w) / 2, Y: (ph - h) / 2}
}
