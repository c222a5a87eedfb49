package layout

import (
	"math"
	"strconv"
	"strings"

	"github.com/wudi/pdfstamp/builder"
	"github.com/wudi/pdfstamp/fonts"
)

// pxToPt converts CSS pixels to points.
const pxToPt = 0.75

// inherited carries the properties a child takes from its parent.
type inherited struct {
	bold, italic bool
	underline    bool
	strike       bool
	pre          bool
	size         float64
	color        builder.Color
	align        string
	link         string
}

func (s inherited) face() *fonts.Face { return fonts.Standard(fonts.StyleFor(s.bold, s.italic)) }

// length is a CSS length that may be relative to its containing block.
type length struct {
	v    float64
	pct  bool
	auto bool
	set  bool
}

func (l length) resolve(base float64) (float64, bool) {
	switch {
	case !l.set || l.auto:
		return 0, false
	case l.pct:
		if base <= 0 {
			return 0, false
		}
		return l.v * base / 100, true
	}
	return l.v, true
}

// rgba is a colour with an alpha component in [0,1].
type rgba struct {
	c builder.Color
	a float64
}

// boxStyle holds the non-inherited properties of one element.
type boxStyle struct {
	display    string
	margin     [4]length // top right bottom left
	padding    [4]float64
	width      length
	height     length
	maxWidth   length
	maxHeight  length
	background *rgba
	valign     string
}

func (b boxStyle) marginAt(i int, base float64) float64 {
	v, _ := b.margin[i].resolve(base)
	return v
}

// declarations splits an inline style attribute into lower-cased properties.
func declarations(s string) map[string]string {
	out := make(map[string]string)
	for _, decl := range strings.Split(s, ";") {
		k, v, ok := strings.Cut(decl, ":")
		if !ok {
			continue
		}
		k = strings.ToLower(strings.TrimSpace(k))
		v = strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(v), "!important"))
		if k != "" && v != "" {
			out[k] = v
		}
	}
	return out
}

// parseLength reads px, pt, em, % and unitless (pixel) values.
func parseLength(s string, fontSize float64) (length, bool) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "auto" {
		return length{auto: true, set: true}, true
	}
	unit := ""
	for _, u := range []string{"px", "pt", "em", "rem", "%", "cm", "mm", "in"} {
		if strings.HasSuffix(s, u) {
			unit = u
			s = strings.TrimSpace(strings.TrimSuffix(s, u))
			break
		}
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return length{}, false
	}
	switch unit {
	case "", "px":
		v *= pxToPt
	case "em", "rem":
		v *= fontSize
	case "cm":
		v *= 72 / 2.54
	case "mm":
		v *= 72 / 25.4
	case "in":
		v *= 72
	case "%":
		return length{v: v, pct: true, set: true}, true
	}
	return length{v: v, set: true}, true
}

// boxSides expands a 1-4 value shorthand into top, right, bottom, left.
func boxSides(s string, fontSize float64) ([4]length, bool) {
	var out [4]length
	var vals []length
	for _, f := range strings.Fields(s) {
		l, ok := parseLength(f, fontSize)
		if !ok {
			return out, false
		}
		vals = append(vals, l)
	}
	switch len(vals) {
	case 1:
		out = [4]length{vals[0], vals[0], vals[0], vals[0]}
	case 2:
		out = [4]length{vals[0], vals[1], vals[0], vals[1]}
	case 3:
		out = [4]length{vals[0], vals[1], vals[2], vals[1]}
	case 4:
		out = [4]length{vals[0], vals[1], vals[2], vals[3]}
	default:
		return out, false
	}
	return out, true
}

var namedColors = map[string]builder.Color{
	"black":   {},
	"white":   {R: 1, G: 1, B: 1},
	"red":     {R: 1},
	"green":   {G: 128.0 / 255},
	"lime":    {G: 1},
	"blue":    {B: 1},
	"navy":    {B: 128.0 / 255},
	"gray":    {R: 128.0 / 255, G: 128.0 / 255, B: 128.0 / 255},
	"grey":    {R: 128.0 / 255, G: 128.0 / 255, B: 128.0 / 255},
	"silver":  {R: 192.0 / 255, G: 192.0 / 255, B: 192.0 / 255},
	"maroon":  {R: 128.0 / 255},
	"orange":  {R: 1, G: 165.0 / 255},
	"yellow":  {R: 1, G: 1},
	"purple":  {R: 128.0 / 255, B: 128.0 / 255},
	"teal":    {G: 128.0 / 255, B: 128.0 / 255},
	"darkred": {R: 139.0 / 255},
}

// parseColor reads #rgb, #rrggbb, rgb(), rgba(), transparent and a few names.
func parseColor(s string) (rgba, bool) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "transparent" {
		return rgba{a: 0}, true
	}
	if c, ok := namedColors[s]; ok {
		return rgba{c: c, a: 1}, true
	}
	if strings.HasPrefix(s, "#") {
		hex := s[1:]
		if len(hex) == 3 {
			hex = string([]byte{hex[0], hex[0], hex[1], hex[1], hex[2], hex[2]})
		}
		if len(hex) != 6 {
			return rgba{}, false
		}
		v, err := strconv.ParseUint(hex, 16, 32)
		if err != nil {
			return rgba{}, false
		}
		return rgba{c: builder.Color{
			R: float64(v>>16&0xff) / 255,
			G: float64(v>>8&0xff) / 255,
			B: float64(v&0xff) / 255,
		}, a: 1}, true
	}
	fn, args, ok := strings.Cut(s, "(")
	if !ok || (fn != "rgb" && fn != "rgba") || !strings.HasSuffix(args, ")") {
		return rgba{}, false
	}
	parts := strings.Split(strings.TrimSuffix(args, ")"), ",")
	if len(parts) != 3 && len(parts) != 4 {
		return rgba{}, false
	}
	var ch [3]float64
	for i := 0; i < 3; i++ {
		p := strings.TrimSpace(parts[i])
		pct := strings.HasSuffix(p, "%")
		v, err := strconv.ParseFloat(strings.TrimSuffix(p, "%"), 64)
		if err != nil {
			return rgba{}, false
		}
		if pct {
			v = v * 255 / 100
		}
		ch[i] = clamp(v/255, 0, 1)
	}
	out := rgba{c: builder.Color{R: ch[0], G: ch[1], B: ch[2]}, a: 1}
	if len(parts) == 4 {
		a, err := strconv.ParseFloat(strings.TrimSpace(parts[3]), 64)
		if err != nil {
			return rgba{}, false
		}
		out.a = clamp(a, 0, 1)
	}
	return out, true
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// applyDeclarations updates the inherited and box styles from CSS properties.
func applyDeclarations(decls map[string]string, in *inherited, box *boxStyle) {
	// font-size first: em lengths below depend on it.
	if v, ok := decls["font-size"]; ok {
		if l, ok := parseLength(v, in.size); ok && !l.auto {
			if l.pct {
				in.size = in.size * l.v / 100
			} else if l.v > 0 {
				in.size = l.v
			}
		}
	}
	for k, v := range decls {
		lv := strings.ToLower(v)
		switch k {
		case "color":
			if c, ok := parseColor(v); ok {
				in.color = c.c
			}
		case "font-weight":
			n, err := strconv.Atoi(lv)
			in.bold = lv == "bold" || lv == "bolder" || (err == nil && n >= 600)
		case "font-style":
			in.italic = lv == "italic" || lv == "oblique"
		case "text-decoration", "text-decoration-line":
			in.underline = strings.Contains(lv, "underline")
			in.strike = strings.Contains(lv, "line-through")
		case "text-align":
			switch lv {
			case "left", "right", "center":
				in.align = lv
			case "start":
				in.align = "left"
			case "end":
				in.align = "right"
			}
		case "white-space":
			in.pre = strings.HasPrefix(lv, "pre")
		case "display":
			box.display = lv
		case "vertical-align":
			box.valign = lv
		case "background", "background-color":
			for _, f := range splitTopLevel(v) {
				if c, ok := parseColor(f); ok {
					box.background = &c
					break
				}
			}
		case "margin":
			if sides, ok := boxSides(v, in.size); ok {
				box.margin = sides
			}
		case "margin-top", "margin-right", "margin-bottom", "margin-left":
			if l, ok := parseLength(v, in.size); ok {
				box.margin[sideIndex(k)] = l
			}
		case "padding":
			if sides, ok := boxSides(v, in.size); ok {
				for i, s := range sides {
					box.padding[i], _ = s.resolve(0)
				}
			}
		case "padding-top", "padding-right", "padding-bottom", "padding-left":
			if l, ok := parseLength(v, in.size); ok {
				box.padding[sideIndex(k)], _ = l.resolve(0)
			}
		case "width":
			box.width, _ = parseLength(v, in.size)
		case "height":
			box.height, _ = parseLength(v, in.size)
		case "max-width":
			box.maxWidth, _ = parseLength(v, in.size)
		case "max-height":
			box.maxHeight, _ = parseLength(v, in.size)
		}
	}
}

// splitTopLevel splits on spaces that are not inside parentheses.
func splitTopLevel(s string) []string {
	var out []string
	depth, start := 0, 0
	for i, r := range s {
		switch r {
		case '(':
			depth++
		case ')':
			depth--
		case ' ':
			if depth == 0 {
				if i > start {
					out = append(out, s[start:i])
				}
				start = i + 1
			}
		}
	}
	if start < len(s) {
		out = append(out, s[start:])
	}
	return out
}

func sideIndex(prop string) int {
	switch {
	case strings.HasSuffix(prop, "-top"):
		return 0
	case strings.HasSuffix(prop, "-right"):
		return 1
	case strings.HasSuffix(prop, "-bottom"):
		return 2
	}
	return 3
}
