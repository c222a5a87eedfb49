package layout

import (
	"strings"

	"golang.org/x/net/html"

	"github.com/wudi/pdfstamp/builder"
	"github.com/wudi/pdfstamp/fonts"
)

// mathBox is a laid-out MathML node. Offsets and the baseline are in PDF
// orientation: y grows upwards.
type mathBox struct {
	width    float64
	height   float64
	ascent   float64
	descent  float64
	children []*mathBox
	node     *html.Node
	x, y     float64 // Relative to parent
	text     string  // For text nodes
	face     *fonts.Face
	fontSize float64
}

// mathFrag lays out a display-mode <math> element as a block of its own.
func (e *Engine) mathFrag(n *html.Node, in inherited) frag {
	box := e.measureMath(n, in)
	if box == nil {
		return frag{base: -1}
	}
	h := box.ascent + box.descent
	return frag{
		items: []item{{kind: itemMath, x: 0, y: box.ascent, math: box, color: in.color, top: 0, bottom: h}},
		w:     box.width,
		h:     h,
		base:  box.ascent,
	}
}

func (e *Engine) measureMath(n *html.Node, in inherited) *mathBox {
	return e.measureMathNode(n, in.size, false)
}

func (e *Engine) measureMathNode(n *html.Node, fontSize float64, italic bool) *mathBox {
	box := &mathBox{node: n, fontSize: fontSize}

	if n.Type == html.TextNode {
		text := strings.TrimSpace(n.Data)
		if text == "" {
			return nil
		}
		face := fonts.Standard(fonts.StyleFor(false, italic))
		box.text = text
		box.face = face
		box.width = face.Measure(text, fontSize)
		box.ascent = face.AscentAt(fontSize)
		box.descent = -face.DescentAt(fontSize)
		box.height = box.ascent + box.descent
		return box
	}

	if n.Type != html.ElementNode {
		return nil
	}
	// Annotations carry the TeX source; only the presentation is drawn.
	if n.Data == "annotation" || n.Data == "annotation-xml" {
		return nil
	}
	// Single-letter identifiers are italic by default.
	childItalic := italic
	if n.Data == "mi" {
		childItalic = len([]rune(strings.TrimSpace(textContent(n)))) == 1 && attr(n, "mathvariant") != "normal"
	}

	var children []*mathBox
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		fs := fontSize
		switch n.Data {
		case "msup", "msub", "msubsup", "munder", "mover", "munderover":
			if len(children) > 0 {
				fs = fontSize * 0.7
			}
		case "mfrac":
			fs = fontSize * 0.85
		}
		childBox := e.measureMathNode(c, fs, childItalic)
		if childBox != nil {
			children = append(children, childBox)
		}
	}
	box.children = children

	switch n.Data {
	case "mfrac":
		if len(children) >= 2 {
			num := children[0]
			den := children[1]
			w := max(num.width, den.width)
			box.width = w + 4
			num.x = (box.width - num.width) / 2
			den.x = (box.width - den.width) / 2
			lineH := 0.5
			axis := fontSize * 0.25
			num.y = axis + num.descent + lineH + 1.5
			den.y = axis - (den.ascent + lineH + 1.5)
			box.ascent = num.y + num.ascent
			box.descent = max(-den.y+den.descent, 0)
			box.height = box.ascent + box.descent
			return box
		}
	case "msup":
		if len(children) >= 2 {
			base, sup := children[0], children[1]
			box.width = base.width + sup.width
			sup.x = base.width
			sup.y = base.ascent * 0.5
			box.ascent = max(base.ascent, sup.y+sup.ascent)
			box.descent = base.descent
			box.height = box.ascent + box.descent
			return box
		}
	case "msub":
		if len(children) >= 2 {
			base, sub := children[0], children[1]
			box.width = base.width + sub.width
			sub.x = base.width
			sub.y = -base.descent * 0.8
			box.ascent = base.ascent
			box.descent = max(base.descent, -sub.y+sub.descent)
			box.height = box.ascent + box.descent
			return box
		}
	case "msubsup":
		if len(children) >= 3 {
			base, sub, sup := children[0], children[1], children[2]
			box.width = base.width + max(sub.width, sup.width)
			sub.x, sup.x = base.width, base.width
			sub.y = -base.descent * 0.8
			sup.y = base.ascent * 0.5
			box.ascent = max(base.ascent, sup.y+sup.ascent)
			box.descent = max(base.descent, -sub.y+sub.descent)
			box.height = box.ascent + box.descent
			return box
		}
	case "msqrt":
		var w, asc, desc float64
		for _, c := range children {
			c.x = w + 5
			w += c.width
			asc, desc = max(asc, c.ascent), max(desc, c.descent)
		}
		box.width = w + 5
		box.ascent = asc + 2
		box.descent = desc
		box.height = box.ascent + box.descent
		return box
	}

	// mrow, math, mi, mn, mo and anything unknown lay out horizontally.
	var w, asc, desc float64
	for _, c := range children {
		c.x = w
		w += c.width
		asc, desc = max(asc, c.ascent), max(desc, c.descent)
	}
	if n.Data == "mo" && w > 0 {
		// Operators get a little room on both sides.
		pad := fontSize * 0.15
		for _, c := range children {
			c.x += pad
		}
		w += 2 * pad
	}
	box.width = w
	box.ascent = asc
	box.descent = desc
	box.height = asc + desc
	return box
}

func textContent(n *html.Node) string {
	var sb strings.Builder
	var f func(*html.Node)
	f = func(n *html.Node) {
		if n.Type == html.TextNode {
			sb.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			f(c)
		}
	}
	f(n)
	return sb.String()
}

// drawMathBox paints box with its baseline at (x, y) in PDF coordinates.
func drawMathBox(p builder.PageBuilder, box *mathBox, x, y float64, color builder.Color) {
	if box == nil {
		return
	}
	if box.text != "" {
		p.DrawText(box.text, x, y, builder.TextOptions{
			Face:     box.face,
			FontSize: box.fontSize,
			Color:    color,
		})
	}
	rule := builder.LineOptions{LineWidth: 0.5, StrokeColor: color}
	if box.node != nil {
		switch box.node.Data {
		case "mfrac":
			lineY := y + box.fontSize*0.25
			if len(box.children) >= 2 {
				lineY = y + (box.children[0].y-box.children[0].descent+box.children[1].y+box.children[1].ascent)/2
			}
			p.DrawLine(x, lineY, x+box.width, lineY, rule)
		case "msqrt":
			lineY := y + box.ascent - 1
			p.DrawLine(x+2, lineY, x+box.width, lineY, rule)
			p.DrawLine(x, y+box.ascent/2, x+2, y-box.descent, rule)
			p.DrawLine(x+2, y-box.descent, x+5, lineY, rule)
		}
	}
	for _, c := range box.children {
		drawMathBox(p, c, x+c.x, y+c.y, color)
	}
}
