package fonts

import (
	"strings"
	"testing"
)

func TestWrapRespectsWidth(t *testing.T) {
	face := Standard(Bold)
	text := "The quick brown fox jumps over the lazy dog again and again"
	maxWidth := 120.0
	lines := face.Wrap(text, 14, maxWidth)
	if len(lines) < 2 {
		t.Fatalf("expected several lines, got %q", lines)
	}
	for _, l := range lines {
		if w := face.Measure(l, 14); w > maxWidth {
			t.Fatalf("line %q is %.2f wide, limit %.2f", l, w, maxWidth)
		}
	}
	if got := strings.Join(lines, " "); got != text {
		t.Fatalf("wrapping lost words: %q", got)
	}
}

func TestWrapKeepsExplicitBreaks(t *testing.T) {
	lines := Standard(Regular).Wrap("one\r\n\ntwo", 12, 500)
	want := []string{"one", "", "two"}
	if len(lines) != len(want) {
		t.Fatalf("got %q, want %q", lines, want)
	}
	for i := range want {
		if lines[i] != want[i] {
			t.Fatalf("got %q, want %q", lines, want)
		}
	}
}

func TestWrapSplitsLongWords(t *testing.T) {
	face := Standard(Regular)
	lines := face.Wrap("Supercalifragilisticexpialidocious", 12, 40)
	if len(lines) < 2 {
		t.Fatalf("expected the word to be split, got %q", lines)
	}
	if strings.Join(lines, "") != "Supercalifragilisticexpialidocious" {
		t.Fatalf("split lost runes: %q", lines)
	}
}
