package layout

import (
	"encoding/base64"
	"net/url"
	"strconv"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/wudi/pdfstamp/builder"
	"github.com/wudi/pdfstamp/imaging"
)

// RenderHTML renders an HTML string to the PDF.
func (e *Engine) RenderHTML(source string) error {
	root, err := parseHTML(source)
	if err != nil {
		return err
	}
	fl, err := e.layoutDocument(root, true)
	if err != nil {
		return err
	}
	return e.paint(fl)
}

func parseHTML(source string) (*html.Node, error) {
	return html.Parse(strings.NewReader(source))
}

var (
	linkColor = builder.Color{B: 238.0 / 255}
	ruleColor = builder.Color{R: 0.5, G: 0.5, B: 0.5}
)

var blockTags = map[string]bool{
	"address": true, "article": true, "aside": true, "blockquote": true, "center": true,
	"div": true, "dl": true, "dd": true, "dt": true, "fieldset": true, "figure": true,
	"figcaption": true, "footer": true, "form": true, "h1": true, "h2": true, "h3": true,
	"h4": true, "h5": true, "h6": true, "header": true, "hr": true, "li": true, "main": true,
	"nav": true, "ol": true, "p": true, "pre": true, "section": true, "table": true, "ul": true,
}

var skipTags = map[string]bool{
	"head": true, "script": true, "style": true, "title": true, "meta": true,
	"link": true, "noscript": true, "template": true,
}

var headingScale = map[atom.Atom]float64{
	atom.H1: 2.0, atom.H2: 1.5, atom.H3: 1.25, atom.H4: 1.1, atom.H5: 1.0, atom.H6: 0.9,
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if strings.EqualFold(a.Key, key) {
			return a.Val
		}
	}
	return ""
}

func findElement(n *html.Node, a atom.Atom) *html.Node {
	if n.Type == html.ElementNode && n.DataAtom == a {
		return n
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if found := findElement(c, a); found != nil {
			return found
		}
	}
	return nil
}

func (e *Engine) rootStyle() inherited {
	return inherited{size: e.DefaultFontSize, align: "left"}
}

// layoutDocument lays out the body. Percentage heights resolve against the
// page only when paged is set; measuring passes leave them unresolved.
func (e *Engine) layoutDocument(root *html.Node, paged bool) (*flow, error) {
	body := findElement(root, atom.Body)
	if body == nil {
		body = root
	}
	in, bs := e.elementStyle(body, e.rootStyle())
	m := e.Margins
	sides := []*float64{&m.Top, &m.Right, &m.Bottom, &m.Left}
	for i, side := range sides {
		if v, ok := bs.margin[i].resolve(e.pageWidth); ok {
			*side = v
		}
		*side += bs.padding[i]
	}
	width := e.pageWidth - m.Left - m.Right
	if width <= 0 {
		return nil, ErrPageTooSmall
	}
	var availH float64
	if paged {
		availH = e.pageHeight - m.Top - m.Bottom
	}
	f := e.layoutChildren(body, in, width, availH)
	fl := &flow{margins: m, used: f.w, height: f.h}
	for _, it := range f.items {
		it.x += m.Left
		fl.items = append(fl.items, it)
	}
	return fl, nil
}

// elementStyle computes the styles of element n: tag defaults first, then
// presentational attributes, then the style attribute.
func (e *Engine) elementStyle(n *html.Node, parent inherited) (inherited, boxStyle) {
	in := parent
	var bs boxStyle
	em := func(v float64) length { return length{v: v * in.size, set: true} }
	switch n.DataAtom {
	case atom.H1, atom.H2, atom.H3, atom.H4, atom.H5, atom.H6:
		in.size = parent.size * headingScale[n.DataAtom]
		in.bold = true
		bs.margin[0], bs.margin[2] = em(0.67), em(0.67)
	case atom.P, atom.Blockquote, atom.Dl, atom.Pre:
		bs.margin[0], bs.margin[2] = em(1), em(1)
		if n.DataAtom == atom.Blockquote {
			bs.margin[1], bs.margin[3] = length{v: 30, set: true}, length{v: 30, set: true}
		}
		in.pre = n.DataAtom == atom.Pre
	case atom.Ul, atom.Ol:
		bs.margin[0], bs.margin[2] = em(1), em(1)
		if n.Parent != nil && (n.Parent.DataAtom == atom.Li) {
			bs.margin[0], bs.margin[2] = length{}, length{}
		}
		bs.padding[3] = 30
	case atom.Dd:
		bs.margin[3] = length{v: 30, set: true}
	case atom.Hr:
		bs.margin[0], bs.margin[2] = em(0.5), em(0.5)
	case atom.B, atom.Strong, atom.Th, atom.Dt:
		in.bold = true
		if n.DataAtom == atom.Th {
			in.align = "center"
		}
	case atom.I, atom.Em, atom.Cite, atom.Var, atom.Dfn:
		in.italic = true
	case atom.U, atom.Ins:
		in.underline = true
	case atom.S, atom.Strike, atom.Del:
		in.strike = true
	case atom.Center:
		in.align = "center"
	case atom.Small, atom.Sub, atom.Sup:
		in.size = parent.size * 0.83
	case atom.Big:
		in.size = parent.size * 1.2
	case atom.A:
		if href := strings.TrimSpace(attr(n, "href")); href != "" {
			in.link = href
			in.color = linkColor
			in.underline = true
		}
	}
	if n.DataAtom == atom.Td || n.DataAtom == atom.Th {
		bs.padding = [4]float64{pxToPt, pxToPt, pxToPt, pxToPt}
	}

	if v := attr(n, "align"); v != "" {
		switch strings.ToLower(v) {
		case "left", "right", "center":
			if n.DataAtom == atom.Table || n.DataAtom == atom.Img {
				if strings.EqualFold(v, "center") {
					bs.margin[1], bs.margin[3] = length{auto: true, set: true}, length{auto: true, set: true}
				}
			} else {
				in.align = strings.ToLower(v)
			}
		}
	}
	if v := attr(n, "valign"); v != "" {
		bs.valign = strings.ToLower(v)
	}
	if v := attr(n, "bgcolor"); v != "" {
		if c, ok := parseColor(v); ok {
			bs.background = &c
		}
	}
	if n.DataAtom == atom.Font {
		if c, ok := parseColor(attr(n, "color")); ok {
			in.color = c.c
		}
	}
	for _, key := range []string{"width", "height"} {
		if v := attr(n, key); v != "" {
			if l, ok := parseLength(v, in.size); ok {
				if key == "width" {
					bs.width = l
				} else {
					bs.height = l
				}
			}
		}
	}
	if style := attr(n, "style"); style != "" {
		applyDeclarations(declarations(style), &in, &bs)
	}
	return in, bs
}

func (e *Engine) isBlock(n *html.Node, bs boxStyle) bool {
	switch bs.display {
	case "block", "list-item", "table", "flex":
		return true
	case "inline", "inline-block":
		return false
	}
	if n.DataAtom == atom.Math {
		return strings.EqualFold(attr(n, "display"), "block")
	}
	return blockTags[n.Data]
}

// layoutChildren stacks the children of n in a content box of the given width.
// Runs of inline content become anonymous paragraphs; vertical margins of
// adjacent blocks collapse.
func (e *Engine) layoutChildren(n *html.Node, in inherited, width, availH float64) frag {
	out := frag{base: -1}
	var y, pending float64
	var inline []piece
	flush := func() {
		if !hasContent(inline) {
			inline = nil
			return
		}
		f := e.layoutInline(inline, width, in.align)
		y += pending
		pending = 0
		if out.base < 0 && f.base >= 0 {
			out.base = y + f.base
		}
		out.place(f, 0, y)
		out.w = max(out.w, f.w)
		y += f.h
		inline = nil
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.ElementNode {
			if skipTags[c.Data] {
				continue
			}
			cin, bs := e.elementStyle(c, in)
			if bs.display == "none" {
				continue
			}
			if e.isBlock(c, bs) {
				flush()
				f, x := e.layoutBlock(c, cin, bs, width, availH)
				y += max(pending, bs.marginAt(0, width))
				if out.base < 0 && f.base >= 0 {
					out.base = y + f.base
				}
				out.place(f, x, y)
				out.w = max(out.w, bs.marginAt(3, width)+f.w+bs.marginAt(1, width))
				y += f.h
				pending = bs.marginAt(2, width)
				continue
			}
		}
		e.collectInline(c, in, width, &inline)
	}
	flush()
	out.h = y
	return out
}

// layoutBlock lays out a block-level element and returns it with its left offset.
func (e *Engine) layoutBlock(n *html.Node, in inherited, bs boxStyle, avail, availH float64) (frag, float64) {
	ml, mr := bs.marginAt(3, avail), bs.marginAt(1, avail)
	boxW := avail - ml - mr
	explicitW := false
	if w, ok := bs.width.resolve(avail); ok {
		boxW, explicitW = w, true
	}
	if mw, ok := bs.maxWidth.resolve(avail); ok && boxW > mw {
		boxW, explicitW = mw, true
	}
	x := ml
	if explicitW {
		switch {
		case bs.margin[1].auto && bs.margin[3].auto:
			x = (avail - boxW) / 2
		case bs.margin[3].auto:
			x = avail - boxW - mr
		}
	}
	pad := bs.padding
	cw := max(boxW-pad[1]-pad[3], 1)
	explicitH, hasH := bs.height.resolve(availH)
	innerH := 0.0
	if hasH {
		innerH = max(explicitH-pad[0]-pad[2], 0)
	}

	var content frag
	switch n.DataAtom {
	case atom.Table:
		content = e.layoutTable(n, in, bs, cw, explicitW, innerH)
	case atom.Hr:
		content = frag{
			items: []item{{kind: itemLine, x: 0, y: 0.5, w: cw, color: ruleColor, width: 1, top: 0, bottom: 1}},
			w:     cw, h: 1, base: -1,
		}
	case atom.Ul, atom.Ol:
		content = e.layoutList(n, in, cw)
	case atom.Img:
		var ok bool
		content, ok = e.imageAtom(n, bs, avail)
		if !ok {
			return frag{base: -1}, 0
		}
		if bs.margin[1].auto && bs.margin[3].auto || in.align == "center" {
			x = (avail - content.w) / 2
		} else if in.align == "right" {
			x = avail - content.w - mr
		}
		band(content.items, 0, content.h)
		return content, x
	case atom.Math:
		content = e.mathFrag(n, in)
		x = (avail - content.w) / 2
		return content, x
	default:
		content = e.layoutChildren(n, in, cw, innerH)
	}
	h := content.h + pad[0] + pad[2]
	if hasH {
		h = max(h, explicitH)
	}
	f := frag{base: -1, h: h}
	if bg := bs.background; bg != nil && bg.a > 0 {
		f.items = append(f.items, item{kind: itemRect, w: boxW, h: h, color: bg.c, alpha: bg.a})
	}
	f.place(content, pad[3], pad[0])
	if content.base >= 0 {
		f.base = content.base + pad[0]
	}
	if explicitW {
		f.w = boxW
	} else {
		f.w = content.w + pad[1] + pad[3]
	}
	return f, x
}

// layoutList lays out the items of a ul or ol with their markers hanging in
// the list's left padding.
func (e *Engine) layoutList(n *html.Node, in inherited, width float64) frag {
	out := frag{base: -1}
	ordered := n.DataAtom == atom.Ol
	num := 1
	if s, err := strconv.Atoi(attr(n, "start")); err == nil {
		num = s
	}
	var y, pending float64
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type != html.ElementNode || skipTags[c.Data] {
			continue
		}
		cin, bs := e.elementStyle(c, in)
		if bs.display == "none" {
			continue
		}
		f, x := e.layoutBlock(c, cin, bs, width, 0)
		y += max(pending, bs.marginAt(0, width))
		if c.DataAtom == atom.Li {
			marker := "•"
			if ordered {
				marker = strconv.Itoa(num) + "."
				num++
			}
			face := cin.face()
			mw := face.Measure(marker, cin.size)
			base := f.base
			if base < 0 {
				base = face.AscentAt(cin.size)
			}
			f.items = append(f.items, item{
				kind: itemText, x: -mw - 6, y: base, text: marker,
				face: face, size: cin.size, color: cin.color,
				top: 0, bottom: base,
			})
		}
		if out.base < 0 && f.base >= 0 {
			out.base = y + f.base
		}
		out.place(f, x, y)
		out.w = max(out.w, bs.marginAt(3, width)+f.w+bs.marginAt(1, width))
		y += f.h
		pending = bs.marginAt(2, width)
	}
	out.h = y
	return out
}

// imageAtom resolves an <img> to a sized image fragment. Missing or
// undecodable images yield false.
func (e *Engine) imageAtom(n *html.Node, bs boxStyle, avail float64) (frag, bool) {
	img := e.loadImage(strings.TrimSpace(attr(n, "src")))
	if img == nil {
		return frag{}, false
	}
	natW, natH := float64(img.Width)*pxToPt, float64(img.Height)*pxToPt
	w, hasW := bs.width.resolve(avail)
	h, hasH := bs.height.resolve(0)
	switch {
	case hasW && !hasH:
		h = w * natH / natW
	case hasH && !hasW:
		w = h * natW / natH
	case !hasW && !hasH:
		w, h = natW, natH
	}
	if mw, ok := bs.maxWidth.resolve(avail); ok && w > mw {
		h, w = h*mw/w, mw
	}
	if mh, ok := bs.maxHeight.resolve(0); ok && h > mh {
		w, h = w*mh/h, mh
	}
	if w > avail {
		h, w = h*avail/w, avail
	}
	if w <= 0 || h <= 0 {
		return frag{}, false
	}
	return frag{
		items: []item{{kind: itemImage, w: w, h: h, img: img}},
		w:     w, h: h, base: h,
	}, true
}

// loadImage decodes a data: URI, or fetches src through the resource loader.
func (e *Engine) loadImage(src string) *imaging.Image {
	if src == "" {
		return nil
	}
	if img, ok := e.images[src]; ok {
		return img
	}
	var data []byte
	if rest, ok := strings.CutPrefix(src, "data:"); ok {
		meta, payload, found := strings.Cut(rest, ",")
		if !found {
			return nil
		}
		var err error
		if strings.HasSuffix(strings.ToLower(meta), ";base64") {
			data, err = base64.StdEncoding.DecodeString(strings.Join(strings.Fields(payload), ""))
		} else {
			var s string
			s, err = url.PathUnescape(payload)
			data = []byte(s)
		}
		if err != nil {
			return nil
		}
	} else if e.loader != nil {
		var err error
		if data, err = e.loader(e.ctx, src); err != nil {
			e.images[src] = nil
			return nil
		}
	}
	img, err := imaging.Decode(data)
	if err != nil {
		img = nil
	}
	e.images[src] = img
	return img
}
