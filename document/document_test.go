package document

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"seehuhn.de/go/geom/matrix"
	"seehuhn.de/go/geom/rect"

	"github.com/wudi/pdfstamp/coords"
	"github.com/wudi/pdfstamp/fonts"
	"github.com/wudi/pdfstamp/ir/raw"
)

func reopen(t *testing.T, d *Document) *Document {
	t.Helper()
	out, err := d.Bytes(context.Background())
	if err != nil {
		t.Fatalf("bytes: %v", err)
	}
	re, err := Open(context.Background(), out)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	return re
}

func TestNewDocumentWithText(t *testing.T) {
	d := New()
	defer d.Close()
	i, err := d.AddPage(coords.Size{W: 300, H: 200})
	if err != nil {
		t.Fatalf("add page: %v", err)
	}
	err = d.DrawText(i, matrix.Identity, 1, TextRun{
		Text: "Hello", Face: fonts.Standard(fonts.Bold), Size: 14, X: 20, Y: 100,
	})
	if err != nil {
		t.Fatalf("draw text: %v", err)
	}

	re := reopen(t, d)
	defer re.Close()
	if re.PageCount() != 1 {
		t.Fatalf("page count = %d", re.PageCount())
	}
	size, _ := re.PageSize(0)
	if diff := cmp.Diff(coords.Size{W: 300, H: 200}, size); diff != "" {
		t.Fatalf("page size (-want +got):\n%s", diff)
	}
	fontsDict := re.categoryDict(re.pages[0], "Font")
	if fontsDict.Len() != 1 {
		t.Fatalf("expected one font resource, got %v", fontsDict.Keys())
	}
	font, _ := re.raw.ResolveDict(fontsDict.KV["F1"])
	if font.Name("Subtype") != "Type0" {
		t.Fatalf("font not embedded as Type0: %v", font.Keys())
	}
}

func TestOpenInheritsMediaBoxAndReadsLinks(t *testing.T) {
	d, err := Open(context.Background(), linkedPDF())
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer d.Close()
	box, _ := d.PageBox(0)
	if diff := cmp.Diff(rect.Rect{LLx: 10, LLy: 20, URx: 210, URy: 320}, box); diff != "" {
		t.Fatalf("inherited box (-want +got):\n%s", diff)
	}
	size, _ := d.PageSize(0)
	if size.W != 200 || size.H != 300 {
		t.Fatalf("size = %+v", size)
	}
	links, err := d.Links(0)
	if err != nil {
		t.Fatalf("links: %v", err)
	}
	want := []Link{{Rect: rect.Rect{LLx: 50, LLy: 50, URx: 100, URy: 70}, URI: "https://example.org/a"}}
	if diff := cmp.Diff(want, links); diff != "" {
		t.Fatalf("links (-want +got):\n%s", diff)
	}
}

func TestAddLinkRoundTrip(t *testing.T) {
	d, err := Open(context.Background(), linkedPDF())
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if err := d.AddLink(0, Link{Rect: rect.Rect{LLx: 1, LLy: 2, URx: 3, URy: 4}, URI: "https://x.test"}, -90); err != nil {
		t.Fatalf("add link: %v", err)
	}
	re := reopen(t, d)
	d.Close()
	defer re.Close()

	links, _ := re.Links(0)
	if len(links) != 2 || links[1].URI != "https://x.test" {
		t.Fatalf("links = %+v", links)
	}
	if diff := cmp.Diff(rect.Rect{LLx: 1, LLy: 2, URx: 3, URy: 4}, links[1].Rect); diff != "" {
		t.Fatalf("page-local rect changed (-want +got):\n%s", diff)
	}
	annots, _ := re.raw.ResolveArray(re.pageDict(re.pages[0]).KV["Annots"])
	annot, _ := re.raw.ResolveDict(annots.Items[2])
	if rot, _ := re.raw.ResolveNumber(annot.KV["Rotate"]); rot != 270 {
		t.Fatalf("Rotate = %v, want 270", rot)
	}
	border, _ := re.raw.ResolveArray(annot.KV["Border"])
	if border.Len() != 3 {
		t.Fatalf("Border missing")
	}
}

func TestDrawFormWrapsExistingContent(t *testing.T) {
	ctx := context.Background()
	d, err := Open(ctx, linkedPDF())
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer d.Close()
	src, err := Open(ctx, linkedPDF())
	if err != nil {
		t.Fatalf("open src: %v", err)
	}
	form, err := d.ImportPageAsForm(ctx, src, 0)
	src.Close()
	if err != nil {
		t.Fatalf("import: %v", err)
	}
	if form.Size != (coords.Size{W: 200, H: 300}) {
		t.Fatalf("form size = %+v", form.Size)
	}
	if err := d.DrawForm(0, form, matrix.Translate(5, 5), 0.5); err != nil {
		t.Fatalf("draw form: %v", err)
	}

	page := d.pageDict(d.pages[0])
	contents := page.KV["Contents"].(*raw.ArrayObj)
	if contents.Len() != 3 {
		t.Fatalf("expected q + original + new, got %d streams", contents.Len())
	}
	first := d.raw.Resolve(contents.Items[0]).(*raw.StreamObj)
	last := d.raw.Resolve(contents.Items[2]).(*raw.StreamObj)
	if string(first.Data) != "q\n" || !bytes.HasPrefix(last.Data, []byte("\nQ\nq\n")) {
		t.Fatalf("content not wrapped: %q ... %q", first.Data, last.Data)
	}
	// The page box is offset, so drawing starts by moving to its corner.
	if !bytes.Contains(last.Data, []byte("1 0 0 1 10 20 cm")) {
		t.Fatalf("origin shift missing: %q", last.Data)
	}
	if !bytes.Contains(last.Data, []byte("/GS1 gs")) || !bytes.Contains(last.Data, []byte("/Fm1 Do")) {
		t.Fatalf("opacity or form missing: %q", last.Data)
	}
	gs, _ := d.raw.ResolveDict(d.categoryDict(d.pages[0], "ExtGState").KV["GS1"])
	if ca, _ := d.raw.ResolveNumber(gs.KV["ca"]); ca != 0.5 {
		t.Fatalf("ca = %v", ca)
	}
}

func TestDrawForeignFormFails(t *testing.T) {
	a, b := New(), New()
	defer a.Close()
	defer b.Close()
	a.AddPage(coords.Size{W: 10, H: 10})
	b.AddPage(coords.Size{W: 10, H: 10})
	form, err := b.ImportPageAsForm(context.Background(), b, 0)
	if err != nil {
		t.Fatalf("import: %v", err)
	}
	if err := a.DrawForm(0, form, matrix.Identity, 1); !errors.Is(err, ErrForeignForm) {
		t.Fatalf("expected ErrForeignForm, got %v", err)
	}
}

func TestPrependKeepsOrder(t *testing.T) {
	target := New()
	target.AddPage(coords.Size{W: 100, H: 100})
	target.AddPage(coords.Size{W: 200, H: 200})
	front := New()
	front.AddPage(coords.Size{W: 300, H: 300})
	if err := front.DrawText(0, matrix.Identity, 1, TextRun{Text: "Cover", Size: 12, X: 10, Y: 10}); err != nil {
		t.Fatalf("draw: %v", err)
	}
	if err := target.Prepend(front); err != nil {
		t.Fatalf("prepend: %v", err)
	}
	front.Close()

	re := reopen(t, target)
	target.Close()
	defer re.Close()
	var widths []float64
	for i := 0; i < re.PageCount(); i++ {
		s, _ := re.PageSize(i)
		widths = append(widths, s.W)
	}
	if diff := cmp.Diff([]float64{300, 100, 200}, widths); diff != "" {
		t.Fatalf("page order (-want +got):\n%s", diff)
	}
	font, ok := re.raw.ResolveDict(re.categoryDict(re.pages[0], "Font").KV["F1"])
	if !ok || font.Name("Subtype") != "Type0" {
		t.Fatalf("prepended page lost its font")
	}
}

func TestPrependIntoItselfFails(t *testing.T) {
	d := New()
	defer d.Close()
	if err := d.Prepend(d); !errors.Is(err, ErrSelfMerge) {
		t.Fatalf("expected ErrSelfMerge, got %v", err)
	}
}

func TestClosedDocument(t *testing.T) {
	d := New()
	d.Close()
	d.Close()
	if d.PageCount() != 0 {
		t.Fatalf("closed document reports pages")
	}
	if _, err := d.Bytes(context.Background()); !errors.Is(err, ErrClosed) {
		t.Fatalf("expected ErrClosed, got %v", err)
	}
	var pe *PageIndexError
	open := New()
	defer open.Close()
	if _, err := open.PageSize(3); !errors.As(err, &pe) || pe.Count != 0 {
		t.Fatalf("expected PageIndexError, got %v", err)
	}
}

func TestOpenRejectsEmpty(t *testing.T) {
	if _, err := Open(context.Background(), nil); !errors.Is(err, ErrEmpty) {
		t.Fatalf("expected ErrEmpty, got %v", err)
	}
}
