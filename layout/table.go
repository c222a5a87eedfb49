package layout

import (
	"strconv"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/wudi/pdfstamp/builder"
)

type tableCell struct {
	n    *html.Node
	in   inherited
	bs   boxStyle
	col  int
	span int
}

type tableRow struct {
	cells  []tableCell
	bs     boxStyle
	height float64
}

var borderColor = builder.Color{R: 0.4, G: 0.4, B: 0.4}

func (e *Engine) collectRows(n *html.Node, in inherited, rows *[]tableRow) {
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type != html.ElementNode {
			continue
		}
		switch c.DataAtom {
		case atom.Thead, atom.Tbody, atom.Tfoot:
			e.collectRows(c, in, rows)
		case atom.Tr:
			rin, rbs := e.elementStyle(c, in)
			if rbs.display == "none" {
				continue
			}
			row := tableRow{bs: rbs}
			col := 0
			for td := c.FirstChild; td != nil; td = td.NextSibling {
				if td.Type != html.ElementNode || (td.DataAtom != atom.Td && td.DataAtom != atom.Th) {
					continue
				}
				cin, cbs := e.elementStyle(td, rin)
				if cbs.valign == "" {
					cbs.valign = rbs.valign
				}
				if cbs.background == nil {
					cbs.background = rbs.background
				}
				span, err := strconv.Atoi(attr(td, "colspan"))
				if err != nil || span < 1 {
					span = 1
				}
				row.cells = append(row.cells, tableCell{n: td, in: cin, bs: cbs, col: col, span: span})
				col += span
			}
			*rows = append(*rows, row)
		}
	}
}

// layoutTable sizes columns from explicit widths and content, then stacks
// the rows. Each row is one pagination band.
func (e *Engine) layoutTable(n *html.Node, in inherited, bs boxStyle, width float64, explicitW bool, height float64) frag {
	var rows []tableRow
	e.collectRows(n, in, &rows)
	out := frag{base: -1}
	if len(rows) == 0 {
		return out
	}
	ncol := 0
	for _, r := range rows {
		if len(r.cells) > 0 {
			last := r.cells[len(r.cells)-1]
			ncol = max(ncol, last.col+last.span)
		}
	}
	if ncol == 0 {
		return out
	}
	cellPad := -1.0
	if v, err := strconv.ParseFloat(strings.TrimSpace(attr(n, "cellpadding")), 64); err == nil && v >= 0 {
		cellPad = v * pxToPt
	}
	border := 0.0
	if v, err := strconv.ParseFloat(strings.TrimSpace(attr(n, "border")), 64); err == nil && v > 0 {
		border = 0.75
	}
	pads := func(c *tableCell) [4]float64 {
		if cellPad >= 0 && !strings.Contains(strings.ToLower(attr(c.n, "style")), "padding") {
			return [4]float64{cellPad, cellPad, cellPad, cellPad}
		}
		return c.bs.padding
	}

	fixed := make([]float64, ncol)
	isFixed := make([]bool, ncol)
	pref := make([]float64, ncol)
	for _, r := range rows {
		for i := range r.cells {
			c := &r.cells[i]
			if c.span != 1 {
				continue
			}
			p := pads(c)
			if w, ok := c.bs.width.resolve(width); ok && !isFixed[c.col] {
				fixed[c.col], isFixed[c.col] = w, true
			}
			trial := e.layoutChildren(c.n, c.in, max(width-p[1]-p[3], 1), 0)
			pref[c.col] = max(pref[c.col], trial.w+p[1]+p[3])
		}
	}
	widths := columnWidths(fixed, isFixed, pref, width, explicitW)
	tableW := 0.0
	for _, w := range widths {
		tableW += w
	}

	type laidCell struct {
		f    frag
		x, w float64
		pad  [4]float64
		cell *tableCell
	}
	laid := make([][]laidCell, len(rows))
	total := 0.0
	for ri := range rows {
		r := &rows[ri]
		rowH := 0.0
		if h, ok := r.bs.height.resolve(0); ok {
			rowH = h
		}
		for ci := range r.cells {
			c := &r.cells[ci]
			x, w := 0.0, 0.0
			for k := 0; k < c.col+c.span && k < ncol; k++ {
				if k < c.col {
					x += widths[k]
				} else {
					w += widths[k]
				}
			}
			p := pads(c)
			f := e.layoutChildren(c.n, c.in, max(w-p[1]-p[3], 1), 0)
			h := f.h + p[0] + p[2]
			if ch, ok := c.bs.height.resolve(0); ok {
				h = max(h, ch)
			}
			rowH = max(rowH, h)
			laid[ri] = append(laid[ri], laidCell{f: f, x: x, w: w, pad: p, cell: c})
		}
		r.height = rowH
		total += rowH
	}
	if th, ok := bs.height.resolve(height); ok && th > total {
		extra := (th - total) / float64(len(rows))
		for i := range rows {
			rows[i].height += extra
		}
	}

	y := 0.0
	for ri, r := range rows {
		start := len(out.items)
		for _, lc := range laid[ri] {
			if bg := lc.cell.bs.background; bg != nil && bg.a > 0 {
				out.items = append(out.items, item{kind: itemRect, x: lc.x, y: y, w: lc.w, h: r.height, color: bg.c, alpha: bg.a})
			}
			inner := r.height - lc.pad[0] - lc.pad[2]
			dy := lc.pad[0]
			switch lc.cell.bs.valign {
			case "top", "baseline", "text-top":
				// top
			case "bottom", "text-bottom":
				dy += inner - lc.f.h
			default:
				dy += (inner - lc.f.h) / 2
			}
			if out.base < 0 && lc.f.base >= 0 {
				out.base = y + dy + lc.f.base
			}
			out.place(lc.f, lc.x+lc.pad[3], y+dy)
			if border > 0 {
				out.items = append(out.items, item{kind: itemStroke, x: lc.x, y: y, w: lc.w, h: r.height, color: borderColor, width: border})
			}
		}
		band(out.items[start:], y, y+r.height)
		y += r.height
	}
	out.h = y
	out.w = tableW
	return out
}

// columnWidths resolves the width of every column. Explicit widths are kept;
// the remaining space goes to the other columns, in proportion to their
// preferred widths when the table is auto-sized and equally otherwise.
func columnWidths(fixed []float64, isFixed []bool, pref []float64, width float64, explicitW bool) []float64 {
	n := len(fixed)
	out := make([]float64, n)
	used, autos, prefSum := 0.0, 0, 0.0
	for i := range fixed {
		if isFixed[i] {
			out[i] = fixed[i]
			used += fixed[i]
		} else {
			autos++
			prefSum += pref[i]
		}
	}
	remaining := max(width-used, 0)
	switch {
	case autos == 0:
		if explicitW && used > 0 && used < width {
			for i := range out {
				out[i] *= width / used
			}
		}
	case explicitW:
		for i := range out {
			if !isFixed[i] {
				out[i] = remaining / float64(autos)
			}
		}
	default:
		scale := 1.0
		if prefSum > remaining && prefSum > 0 {
			scale = remaining / prefSum
		}
		for i := range out {
			if !isFixed[i] {
				out[i] = pref[i] * scale
			}
		}
	}
	return out
}
