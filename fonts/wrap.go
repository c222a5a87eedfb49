package fonts

import "strings"

// Wrap breaks text into lines no wider than maxWidth at the given size.
// Explicit newlines always break; words wider than a line are split by rune.
func (f *Face) Wrap(text string, size, maxWidth float64) []string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	var lines []string
	for _, para := range strings.Split(text, "\n") {
		lines = append(lines, f.wrapParagraph(para, size, maxWidth)...)
	}
	return lines
}

func (f *Face) wrapParagraph(para string, size, maxWidth float64) []string {
	words := strings.Fields(para)
	if len(words) == 0 {
		return []string{""}
	}
	space := f.Measure(" ", size)
	var (
		lines []string
		cur   strings.Builder
		curW  float64
	)
	flush := func() {
		lines = append(lines, cur.String())
		cur.Reset()
		curW = 0
	}
	for _, word := range words {
		w := f.Measure(word, size)
		if cur.Len() > 0 && curW+space+w <= maxWidth {
			cur.WriteByte(' ')
			cur.WriteString(word)
			curW += space + w
			continue
		}
		if cur.Len() > 0 {
			flush()
		}
		if w <= maxWidth {
			cur.WriteString(word)
			curW = w
			continue
		}
		for _, piece := range f.splitWord(word, size, maxWidth) {
			if cur.Len() > 0 {
				flush()
			}
			cur.WriteString(piece)
			curW = f.Measure(piece, size)
		}
	}
	if cur.Len() > 0 {
		flush()
	}
	return lines
}

// splitWord cuts an over-long word into pieces that fit; every piece holds at
// least one rune so the loop always advances.
func (f *Face) splitWord(word string, size, maxWidth float64) []string {
	var pieces []string
	runes := []rune(word)
	start := 0
	for start < len(runes) {
		end := start + 1
		for end < len(runes) && f.Measure(string(runes[start:end+1]), size) <= maxWidth {
			end++
		}
		pieces = append(pieces, string(runes[start:end]))
		start = end
	}
	return pieces
}
