package writer

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/wudi/pdfstamp/ir/raw"
	"github.com/wudi/pdfstamp/parser"
)

func sampleDoc() *raw.Document {
	doc := raw.NewDocument("1.7")
	content := doc.Add(raw.NewStream(nil, bytes.Repeat([]byte("0 0 m 10 10 l S\n"), 20)))
	pages := raw.ObjectRef{Num: 10}
	page := doc.Add(raw.DictOf(
		"Type", raw.NameLiteral("Page"),
		"Parent", raw.RefObj{R: pages},
		"MediaBox", raw.Floats(0, 0, 612, 792),
		"Contents", content,
	))
	doc.Objects[pages] = raw.DictOf(
		"Type", raw.NameLiteral("Pages"),
		"Kids", raw.NewArray(page),
		"Count", raw.NumberInt(1),
	)
	cat := doc.Add(raw.DictOf("Type", raw.NameLiteral("Catalog"), "Pages", raw.RefObj{R: pages}))
	doc.Trailer.Set("Root", cat)
	// orphan: unreachable from the trailer
	doc.Add(raw.DictOf("Type", raw.NameLiteral("Orphan")))
	return doc
}

func TestWriterRoundTrip(t *testing.T) {
	out, err := Bytes(context.Background(), sampleDoc(), Config{Compress: true, Deterministic: true})
	if err != nil {
		t.Fatalf("write: %v", err)
	}
	if !bytes.HasPrefix(out, []byte("%PDF-1.7\n")) {
		t.Fatalf("missing header: %q", out[:16])
	}
	doc, err := parser.NewDocumentParser(parser.DefaultConfig()).Parse(context.Background(), out)
	if err != nil {
		t.Fatalf("parse back: %v", err)
	}
	for _, obj := range doc.Objects {
		if d, ok := obj.(*raw.DictObj); ok && d.Name("Type") == "Orphan" {
			t.Fatalf("unreachable object was written")
		}
	}
	stm, ok := doc.Objects[raw.ObjectRef{Num: 1}].(*raw.StreamObj)
	if !ok {
		t.Fatalf("content stream missing")
	}
	if stm.Dict.Name("Filter") != "FlateDecode" {
		t.Fatalf("expected compressed content stream")
	}
	if _, ok := doc.Trailer.Get("ID"); !ok {
		t.Fatalf("expected trailer /ID")
	}
}

func TestWriterDeterministic(t *testing.T) {
	a, err := Bytes(context.Background(), sampleDoc(), Config{Deterministic: true})
	if err != nil {
		t.Fatalf("write: %v", err)
	}
	b, _ := Bytes(context.Background(), sampleDoc(), Config{Deterministic: true})
	if !bytes.Equal(a, b) {
		t.Fatalf("deterministic output differs between runs")
	}
}

func TestWriterRequiresRoot(t *testing.T) {
	if _, err := Bytes(context.Background(), raw.NewDocument(""), Config{}); !errors.Is(err, ErrNoRoot) {
		t.Fatalf("expected ErrNoRoot, got %v", err)
	}
}

func TestSerializeEscapes(t *testing.T) {
	obj := raw.DictOf(
		"A B", raw.Str([]byte(`x(y)\z`)),
		"H", raw.StringObj{Bytes: []byte{0xde, 0xad}, Hex: true},
		"F", raw.NumberFloat(0.1234567),
	)
	out, _ := New().SerializeObject(raw.ObjectRef{Num: 1}, obj)
	want := "1 0 obj\n<</A#20B (x\\(y\\)\\\\z)/F 0.12346/H <dead>>>\nendobj\n"
	if string(out) != want {
		t.Fatalf("got %q want %q", out, want)
	}
}
