package layout

import (
	"bytes"
	"fmt"

	treeblood "github.com/wyatt915/goldmark-treeblood"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/renderer/html"
)

// markdown converts CommonMark with GFM tables and strikethrough, raw HTML
// passthrough and $…$ / $$…$$ math rendered as MathML.
var markdown = goldmark.New(
	goldmark.WithExtensions(
		extension.GFM,
		treeblood.MathML(),
	),
	goldmark.WithRendererOptions(
		html.WithUnsafe(),
	),
)

// MarkdownToHTML converts Markdown source to an HTML fragment.
func MarkdownToHTML(source string) (string, error) {
	var buf bytes.Buffer
	if err := markdown.Convert([]byte(source), &buf); err != nil {
		return "", fmt.Errorf("convert markdown: %w", err)
	}
	return buf.String(), nil
}

// RenderMarkdown renders a markdown string to the PDF using goldmark.
func (e *Engine) RenderMarkdown(source string) error {
	converted, err := MarkdownToHTML(source)
	if err != nil {
		return err
	}
	return e.RenderHTML(converted)
}
