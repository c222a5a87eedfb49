package fonts

import (
	"sort"
	"unicode"

	"github.com/go-text/typesetting/di"
	"github.com/go-text/typesetting/language"
	"github.com/go-text/typesetting/shaping"
	"golang.org/x/image/math/fixed"
)

// Glyph is one shaped glyph. Text holds the characters it stands for; only
// the first glyph of a cluster carries them.
type Glyph struct {
	ID      uint16
	Text    []rune
	Advance float64 // 1/1000 em, from the font's hmtx widths
}

// Shape converts text into glyphs in visual order. Widths come from the
// embedded width table so that measurement agrees with what viewers draw.
func (f *Face) Shape(text string) []Glyph {
	runes := []rune(text)
	if len(runes) == 0 {
		return nil
	}
	script := DetectScript(runes)
	input := shaping.Input{
		Text:      runes,
		RunStart:  0,
		RunEnd:    len(runes),
		Direction: scriptDirection(script),
		Face:      f.shape,
		Size:      fixed.I(1000),
		Script:    script,
		Language:  language.DefaultLanguage(),
	}

	f.mu.Lock()
	var shaper shaping.HarfbuzzShaper
	out := shaper.Shape(input)
	f.mu.Unlock()

	// Cluster boundaries let each cluster's text be attributed once.
	starts := make([]int, 0, len(out.Glyphs))
	for _, g := range out.Glyphs {
		starts = append(starts, g.ClusterIndex)
	}
	sort.Ints(starts)
	clusterEnd := func(start int) int {
		i := sort.SearchInts(starts, start+1)
		if i < len(starts) {
			return starts[i]
		}
		return len(runes)
	}

	seen := make(map[int]bool, len(out.Glyphs))
	glyphs := make([]Glyph, 0, len(out.Glyphs))
	for _, g := range out.Glyphs {
		gid := uint16(g.GlyphID)
		glyph := Glyph{ID: gid, Advance: float64(f.GlyphWidth(gid))}
		if c := g.ClusterIndex; !seen[c] && c >= 0 && c < len(runes) {
			seen[c] = true
			glyph.Text = runes[c:clusterEnd(c)]
		}
		glyphs = append(glyphs, glyph)
	}
	return glyphs
}

// Width returns the advance of glyphs at size, in points.
func Width(glyphs []Glyph, size float64) float64 {
	var sum float64
	for _, g := range glyphs {
		sum += g.Advance
	}
	return sum * size / 1000
}

// Measure returns the advance width of text at size, in points.
func (f *Face) Measure(text string, size float64) float64 {
	return Width(f.Shape(text), size)
}

func scriptDirection(script language.Script) di.Direction {
	switch script {
	case language.Arabic, language.Hebrew, language.Syriac, language.Thaana, language.Nko:
		return di.DirectionRTL
	default:
		return di.DirectionLTR
	}
}

// DetectScript returns the script most runes belong to, defaulting to Latin.
// Ties keep the script counted first.
func DetectScript(runes []rune) language.Script {
	counts := make(map[language.Script]int)
	maxCount := 0
	bestScript := language.Latin

	for _, r := range runes {
		script := scriptFromRune(r)
		if script == language.Unknown {
			continue
		}
		counts[script]++
		if counts[script] > maxCount {
			maxCount = counts[script]
			bestScript = script
		}
	}
	return bestScript
}

func scriptFromRune(r rune) language.Script {
	switch {
	case unicode.Is(unicode.Latin, r):
		return language.Latin
	case unicode.Is(unicode.Arabic, r):
		return language.Arabic
	case unicode.Is(unicode.Hebrew, r):
		return language.Hebrew
	case unicode.Is(unicode.Cyrillic, r):
		return language.Cyrillic
	case unicode.Is(unicode.Greek, r):
		return language.Greek
	case unicode.Is(unicode.Han, r):
		return language.Han
	case unicode.Is(unicode.Hiragana, r):
		return language.Hiragana
	case unicode.Is(unicode.Katakana, r):
		return language.Katakana
	case unicode.Is(unicode.Hangul, r):
		return language.Hangul
	case unicode.Is(unicode.Thai, r):
		return language.Thai
	case unicode.Is(unicode.Devanagari, r):
		return language.Devanagari
	}
	return language.Unknown
}
