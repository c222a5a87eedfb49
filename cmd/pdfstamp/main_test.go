package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/wudi/pdfstamp/builder"
	"github.com/wudi/pdfstamp/document"
)

func writePDF(t *testing.T, dir string, pages int) string {
	t.Helper()
	b := builder.NewBuilder()
	for i := 0; i < pages; i++ {
		b.NewPage(300, 400)
	}
	doc, err := b.Build()
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	defer doc.Close()
	data, err := doc.Bytes(context.Background())
	if err != nil {
		t.Fatalf("bytes: %v", err)
	}
	path := filepath.Join(dir, "in.pdf")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func pagesIn(t *testing.T, path string) int {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	doc, err := document.Open(context.Background(), data)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer doc.Close()
	return doc.PageCount()
}

func TestPagesCommand(t *testing.T) {
	in := writePDF(t, t.TempDir(), 8)
	out, err := execute(t, "pages", in, "--pages", "1,3,5-7")
	if err != nil {
		t.Fatal(err)
	}
	if strings.TrimSpace(out) != "1,3,5,6,7" {
		t.Fatalf("output %q", out)
	}
	if _, err := execute(t, "pages", in, "--pages", "5-9"); err == nil {
		t.Fatal("range past the end accepted")
	}
}

func TestStampCommand(t *testing.T) {
	dir := t.TempDir()
	in := writePDF(t, dir, 2)
	outPath := filepath.Join(dir, "out.pdf")
	if _, err := execute(t, "stamp", in, "--text", "DRAFT", "--position", "custom", "--x", "10", "--y", "10", "-o", outPath); err != nil {
		t.Fatal(err)
	}
	if pagesIn(t, outPath) != 2 {
		t.Fatal("page count changed")
	}
}

func TestStampCommandToWriter(t *testing.T) {
	in := writePDF(t, t.TempDir(), 1)
	out, err := execute(t, "stamp", in, "--text", "DRAFT")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(out, "%PDF-") {
		t.Fatalf("stdout does not hold a PDF: %.20q", out)
	}
}

func TestStampCommandErrors(t *testing.T) {
	in := writePDF(t, t.TempDir(), 1)
	tests := [][]string{
		{"stamp", in},
		{"stamp", in, "--text", "x", "--image", "logo.png"},
		{"stamp", in, "--text", "x", "--position", "CUSTOM"},
		{"stamp", in, "--image", filepath.Join(t.TempDir(), "missing.png")},
	}
	for _, args := range tests {
		if _, err := execute(t, args...); err == nil {
			t.Errorf("%v: no error", args)
		}
	}
}

func TestAdsCommandFromFile(t *testing.T) {
	dir := t.TempDir()
	in := writePDF(t, dir, 1)
	ads := filepath.Join(dir, "ads.json")
	body := `{"section":[{"adLocation":[{"positionName":"pdf ad one","adData":[{"adHtml":"<p>Sponsored</p>"}]}]}]}`
	if err := os.WriteFile(ads, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	outPath := filepath.Join(dir, "out.pdf")
	if _, err := execute(t, "ads", in, "--file", ads, "-o", outPath); err != nil {
		t.Fatal(err)
	}
	if n := pagesIn(t, outPath); n != 2 {
		t.Fatalf("pages = %d", n)
	}
	if _, err := execute(t, "ads", in); err == nil {
		t.Fatal("missing source accepted")
	}
}

func TestCoverCommand(t *testing.T) {
	dir := t.TempDir()
	in := writePDF(t, dir, 1)
	outPath := filepath.Join(dir, "out.pdf")
	if _, err := execute(t, "cover", in, "--title", "On Stamps", "--date", "-o", outPath); err != nil {
		t.Fatal(err)
	}
	if n := pagesIn(t, outPath); n != 2 {
		t.Fatalf("pages = %d", n)
	}
}

func TestValidateRejectsGarbage(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.pdf")
	if err := os.WriteFile(path, []byte("not a pdf"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := execute(t, "validate", path); err == nil {
		t.Fatal("garbage validated")
	}
}
