package layout

import (
	"math"
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

type pieceKind int

const (
	pieceWord pieceKind = iota
	pieceSpace
	pieceBreak
	pieceAtom
	pieceMath
)

// piece is one unit of inline content.
type piece struct {
	kind pieceKind
	text string
	st   inherited
	w    float64
	atom frag // sits on the baseline
	math *mathBox
}

func hasContent(pieces []piece) bool {
	for _, p := range pieces {
		if p.kind != pieceSpace {
			return true
		}
	}
	return false
}

func (e *Engine) word(text string, st inherited) piece {
	return piece{kind: pieceWord, text: text, st: st, w: st.face().Measure(text, st.size)}
}

func (e *Engine) space(st inherited) piece {
	return piece{kind: pieceSpace, text: " ", st: st, w: st.face().Measure(" ", st.size)}
}

// collectInline flattens n into inline pieces.
func (e *Engine) collectInline(n *html.Node, in inherited, avail float64, out *[]piece) {
	switch n.Type {
	case html.TextNode:
		e.collectText(n.Data, in, out)
		return
	case html.ElementNode:
	default:
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			e.collectInline(c, in, avail, out)
		}
		return
	}
	if skipTags[n.Data] {
		return
	}
	cin, bs := e.elementStyle(n, in)
	if bs.display == "none" {
		return
	}
	switch {
	case n.DataAtom == atom.Br:
		*out = append(*out, piece{kind: pieceBreak, st: in})
		return
	case n.DataAtom == atom.Img:
		if f, ok := e.imageAtom(n, bs, avail); ok {
			*out = append(*out, piece{kind: pieceAtom, st: cin, w: f.w, atom: f})
		} else if alt := strings.TrimSpace(attr(n, "alt")); alt != "" {
			e.collectText(alt, cin, out)
		}
		return
	case n.DataAtom == atom.Math:
		if box := e.measureMath(n, cin); box != nil {
			*out = append(*out, piece{kind: pieceMath, st: cin, w: box.width, math: box})
		}
		return
	case bs.display == "inline-block":
		f := e.layoutInlineBlock(n, cin, bs, avail)
		*out = append(*out, piece{kind: pieceAtom, st: cin, w: f.w, atom: f})
		return
	case e.isBlock(n, bs):
		// A block nested in inline content breaks the line around itself.
		*out = append(*out, piece{kind: pieceBreak, st: in})
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			e.collectInline(c, cin, avail, out)
		}
		*out = append(*out, piece{kind: pieceBreak, st: in})
		return
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		e.collectInline(c, cin, avail, out)
	}
}

func (e *Engine) collectText(text string, in inherited, out *[]piece) {
	if in.pre {
		lines := strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n")
		for i, line := range lines {
			if i > 0 {
				*out = append(*out, piece{kind: pieceBreak, st: in})
			}
			line = strings.ReplaceAll(line, "\t", "    ")
			if line != "" {
				*out = append(*out, e.word(line, in))
			}
		}
		return
	}
	if text == "" {
		return
	}
	words := strings.Fields(text)
	first, _ := utf8.DecodeRuneInString(text)
	last, _ := utf8.DecodeLastRuneInString(text)
	lead, trail := unicode.IsSpace(first), unicode.IsSpace(last)
	if lead || len(words) == 0 {
		*out = append(*out, e.space(in))
	}
	for i, w := range words {
		if i > 0 {
			*out = append(*out, e.space(in))
		}
		*out = append(*out, e.word(w, in))
	}
	if trail && len(words) > 0 {
		*out = append(*out, e.space(in))
	}
}

// layoutInlineBlock shrink-wraps n unless it has an explicit width.
func (e *Engine) layoutInlineBlock(n *html.Node, in inherited, bs boxStyle, avail float64) frag {
	bs.margin = [4]length{}
	if _, ok := bs.width.resolve(avail); !ok {
		pad := bs.padding[1] + bs.padding[3]
		trial := e.layoutChildren(n, in, max(avail-pad, 1), 0)
		bs.width = length{v: math.Min(math.Ceil(trial.w*100)/100+pad, avail), set: true}
	}
	f, _ := e.layoutBlock(n, in, bs, avail, 0)
	if f.base < 0 {
		f.base = f.h
	}
	return f
}

type line struct {
	pieces []piece
	strut  inherited
	w      float64
}

const fitEpsilon = 0.01

// breakLines fills lines greedily. Spaces never start or end a line.
func (e *Engine) breakLines(pieces []piece, width float64) []line {
	var lines []line
	cur := line{}
	var pending *piece
	flush := func(st inherited) {
		cur.strut = st
		lines = append(lines, cur)
		cur = line{}
		pending = nil
	}
	for i := range pieces {
		p := pieces[i]
		switch p.kind {
		case pieceBreak:
			flush(p.st)
			continue
		case pieceSpace:
			if len(cur.pieces) > 0 && pending == nil {
				pending = &pieces[i]
			}
			continue
		}
		sw := 0.0
		if pending != nil {
			sw = pending.w
		}
		if len(cur.pieces) > 0 && cur.w+sw+p.w > width+fitEpsilon {
			flush(p.st)
			sw = 0
		}
		if p.kind == pieceWord && len(cur.pieces) == 0 && p.w > width+fitEpsilon {
			chunks := e.splitWord(p, width)
			for _, c := range chunks[:len(chunks)-1] {
				cur.pieces = append(cur.pieces, c)
				cur.w = c.w
				flush(c.st)
			}
			p = chunks[len(chunks)-1]
		}
		if pending != nil && len(cur.pieces) > 0 {
			cur.pieces = append(cur.pieces, *pending)
			cur.w += sw
		}
		pending = nil
		cur.pieces = append(cur.pieces, p)
		cur.w += p.w
	}
	if len(cur.pieces) > 0 {
		cur.strut = cur.pieces[0].st
		lines = append(lines, cur)
	}
	return lines
}

func (e *Engine) splitWord(p piece, width float64) []piece {
	var out []piece
	var sb strings.Builder
	for _, r := range p.text {
		next := sb.String() + string(r)
		if sb.Len() > 0 && p.st.face().Measure(next, p.st.size) > width+fitEpsilon {
			out = append(out, e.word(sb.String(), p.st))
			sb.Reset()
		}
		sb.WriteRune(r)
	}
	return append(out, e.word(sb.String(), p.st))
}

// metrics returns the ascent and descent of a text style including half-leading.
func (e *Engine) metrics(st inherited) (float64, float64) {
	face := st.face()
	asc, desc := face.AscentAt(st.size), -face.DescentAt(st.size)
	half := (st.size*e.LineHeight - asc - desc) / 2
	return asc + half, desc + half
}

// layoutInline breaks pieces into lines and emits their display items.
func (e *Engine) layoutInline(pieces []piece, width float64, align string) frag {
	out := frag{base: -1}
	y := 0.0
	for _, ln := range e.breakLines(pieces, width) {
		var asc, desc float64
		if len(ln.pieces) == 0 {
			asc, desc = e.metrics(ln.strut)
		}
		for _, p := range ln.pieces {
			switch p.kind {
			case pieceWord, pieceSpace:
				a, d := e.metrics(p.st)
				asc, desc = max(asc, a), max(desc, d)
			case pieceAtom:
				asc = max(asc, p.atom.h)
			case pieceMath:
				asc, desc = max(asc, p.math.ascent), max(desc, p.math.descent)
			}
		}
		x := 0.0
		switch align {
		case "center":
			x = (width - ln.w) / 2
		case "right":
			x = width - ln.w
		}
		baseline := y + asc
		if out.base < 0 {
			out.base = baseline
		}
		start := len(out.items)
		e.emitLine(&out, ln.pieces, x, baseline, y, asc+desc)
		band(out.items[start:], y, y+asc+desc)
		out.w = max(out.w, ln.w)
		y += asc + desc
	}
	out.h = y
	return out
}

// emitLine merges runs of text sharing one style into single text items.
func (e *Engine) emitLine(out *frag, pieces []piece, x, baseline, top, height float64) {
	for i := 0; i < len(pieces); {
		p := pieces[i]
		switch p.kind {
		case pieceAtom:
			out.place(p.atom, x, baseline-p.atom.h)
			if p.st.link != "" {
				out.items = append(out.items, item{kind: itemLink, x: x, y: baseline - p.atom.h, w: p.w, h: p.atom.h, uri: p.st.link})
			}
			x += p.w
			i++
			continue
		case pieceMath:
			out.items = append(out.items, item{kind: itemMath, x: x, y: baseline, math: p.math, color: p.st.color})
			x += p.w
			i++
			continue
		}
		var sb strings.Builder
		w := 0.0
		j := i
		for ; j < len(pieces) && (pieces[j].kind == pieceWord || pieces[j].kind == pieceSpace) && pieces[j].st == p.st; j++ {
			sb.WriteString(pieces[j].text)
			w += pieces[j].w
		}
		st := p.st
		out.items = append(out.items, item{
			kind: itemText, x: x, y: baseline, text: sb.String(),
			face: st.face(), size: st.size, color: st.color,
		})
		thickness := math.Max(st.size*0.05, 0.5)
		if st.underline {
			out.items = append(out.items, item{kind: itemLine, x: x, y: baseline + st.size*0.1, w: w, color: st.color, width: thickness})
		}
		if st.strike {
			out.items = append(out.items, item{kind: itemLine, x: x, y: baseline - st.size*0.3, w: w, color: st.color, width: thickness})
		}
		if st.link != "" {
			out.items = append(out.items, item{kind: itemLink, x: x, y: top, w: w, h: height, uri: st.link})
		}
		x += w
		i = j
	}
}
