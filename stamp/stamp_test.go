package stamp

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"math"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"seehuhn.de/go/geom/rect"

	"github.com/wudi/pdfstamp/builder"
	"github.com/wudi/pdfstamp/document"
	"github.com/wudi/pdfstamp/fonts"
	"github.com/wudi/pdfstamp/layout"
	"github.com/wudi/pdfstamp/observability"
)

// blankPDF builds a document with one empty page per size.
func blankPDF(t *testing.T, sizes ...[2]float64) []byte {
	t.Helper()
	b := builder.NewBuilder()
	for _, s := range sizes {
		b.NewPage(s[0], s[1])
	}
	return build(t, b)
}

func build(t *testing.T, b builder.PDFBuilder) []byte {
	t.Helper()
	doc, err := b.Build()
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	defer doc.Close()
	out, err := doc.Bytes(context.Background())
	if err != nil {
		t.Fatalf("bytes: %v", err)
	}
	return out
}

func open(t *testing.T, data []byte) *document.Document {
	t.Helper()
	doc, err := document.Open(context.Background(), data)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { doc.Close() })
	return doc
}

func pngBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for x := 0; x < w; x++ {
		img.Set(x, 0, color.NRGBA{B: 255, A: 128})
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode: %v", err)
	}
	return buf.Bytes()
}

func rects(links []document.Link) []rect.Rect {
	out := make([]rect.Rect, len(links))
	for i, l := range links {
		out[i] = l.Rect
	}
	return out
}

func TestTextStampIdentity(t *testing.T) {
	src := blankPDF(t, [2]float64{595, 842})
	spec, err := NewSpec(mustText(t, "CONFIDENTIAL"))
	if err != nil {
		t.Fatalf("spec: %v", err)
	}
	out, err := NewDispatcher().Apply(context.Background(), src, spec)
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	if len(out) <= len(src) {
		t.Fatalf("output did not grow: %d <= %d", len(out), len(src))
	}
	if n := open(t, out).PageCount(); n != 1 {
		t.Fatalf("page count = %d", n)
	}
}

func TestTextBlockGeometry(t *testing.T) {
	face := fonts.Standard(fonts.Bold)
	block := layoutText(face, "one\ntwo three", 10, 1000)
	if len(block.lines) != 2 {
		t.Fatalf("lines = %q", block.lines)
	}
	if math.Abs(block.h-24) > 1e-9 {
		t.Fatalf("height = %v", block.h)
	}
	if want := face.Measure("two three", 10); block.w != want {
		t.Fatalf("width = %v, want %v", block.w, want)
	}
	if math.Abs(block.baseline(0)-block.baseline(1)-12) > 1e-9 {
		t.Fatalf("line advance = %v", block.baseline(0)-block.baseline(1))
	}
}

func TestImageStampAllPages(t *testing.T) {
	src := blankPDF(t, [2]float64{300, 300}, [2]float64{200, 400})
	payload, err := Image(pngBytes(t, 8, 4))
	if err != nil {
		t.Fatalf("payload: %v", err)
	}
	spec, err := NewSpec(payload, WithPosition(BottomRight), WithScale(2), WithOpacity(0.5))
	if err != nil {
		t.Fatalf("spec: %v", err)
	}
	out, err := NewDispatcher().Apply(context.Background(), src, spec)
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	if !bytes.Contains(out, []byte("/SMask")) {
		t.Fatal("alpha channel not embedded as soft mask")
	}
	if n := open(t, out).PageCount(); n != 2 {
		t.Fatalf("page count = %d", n)
	}
}

func overlayPDF(t *testing.T) []byte {
	t.Helper()
	b := builder.NewBuilder()
	b.NewPage(100, 50).
		DrawRectangle(0, 0, 100, 50, builder.RectOptions{Fill: true, FillColor: builder.Color{R: 1}}).
		AddLink(10, 10, 30, 2, "https://example.org/overlay")
	return build(t, b)
}

func TestOverlayRemapsLinks(t *testing.T) {
	approx := cmpopts.EquateApprox(0, 1e-6)
	tests := []struct {
		name string
		opts []Option
		want rect.Rect
	}{
		{
			name: "scaled",
			opts: []Option{WithCoordinates(5, 7), WithScale(2)},
			want: rect.Rect{LLx: 25, LLy: 27, URx: 85, URy: 31},
		},
		{
			name: "quarter turn",
			opts: []Option{WithCoordinates(100, 100), WithRotation(90)},
			// (x, y) -> (75-y, x-25) about the box centre (50, 25).
			want: rect.Rect{LLx: 163, LLy: 85, URx: 165, URy: 115},
		},
		{
			name: "stretched box",
			opts: []Option{WithCoordinates(0, 0), WithBox(200, 0)},
			want: rect.Rect{LLx: 20, LLy: 20, URx: 80, URy: 24},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			payload, err := Overlay(overlayPDF(t))
			if err != nil {
				t.Fatalf("payload: %v", err)
			}
			spec, err := NewSpec(payload, tt.opts...)
			if err != nil {
				t.Fatalf("spec: %v", err)
			}
			out, err := NewDispatcher().Apply(context.Background(), blankPDF(t, [2]float64{400, 400}), spec)
			if err != nil {
				t.Fatalf("apply: %v", err)
			}
			links, err := open(t, out).Links(0)
			if err != nil {
				t.Fatalf("links: %v", err)
			}
			if len(links) != 1 || links[0].URI != "https://example.org/overlay" {
				t.Fatalf("links = %+v", links)
			}
			if diff := cmp.Diff([]rect.Rect{tt.want}, rects(links), approx); diff != "" {
				t.Errorf("link rect mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestMarkupStampCarriesLinks(t *testing.T) {
	payload, err := Markup(`<p>See <a href="https://example.org/doc">the docs</a></p>`, layout.HTML)
	if err != nil {
		t.Fatalf("payload: %v", err)
	}
	spec, err := NewSpec(payload, WithPosition(TopRight), WithPages("LAST"))
	if err != nil {
		t.Fatalf("spec: %v", err)
	}
	out, err := NewDispatcher().Apply(context.Background(), blankPDF(t, [2]float64{595, 842}, [2]float64{595, 842}), spec)
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	doc := open(t, out)
	first, _ := doc.Links(0)
	last, _ := doc.Links(1)
	if len(first) != 0 || len(last) != 1 {
		t.Fatalf("links per page = %d, %d", len(first), len(last))
	}
	if last[0].URI != "https://example.org/doc" {
		t.Fatalf("uri = %q", last[0].URI)
	}
	if r := last[0].Rect; r.URx > 595-DefaultMargin+1e-6 || r.URy > 842-DefaultMargin+1e-6 {
		t.Fatalf("link %+v escapes the top right margin", r)
	}
}

func TestEmptyDocumentUnchanged(t *testing.T) {
	src := blankPDF(t)
	spec, err := NewSpec(mustText(t, "x"))
	if err != nil {
		t.Fatalf("spec: %v", err)
	}
	out, err := NewDispatcher().Apply(context.Background(), src, spec)
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	if len(out) != len(src) || &out[0] != &src[0] {
		t.Fatal("empty document was rewritten")
	}
}

func TestApplyErrors(t *testing.T) {
	ctx := context.Background()
	spec, err := NewSpec(mustText(t, "x"), WithPages("4"))
	if err != nil {
		t.Fatalf("spec: %v", err)
	}
	d := NewDispatcher()

	var reqErr *InvalidRequestError
	if _, err := d.Apply(ctx, nil, spec); !errors.As(err, &reqErr) {
		t.Fatalf("empty doc: got %v", err)
	}
	if _, err := d.Apply(ctx, []byte("not a pdf"), spec); !errors.As(err, &reqErr) {
		t.Fatalf("garbage doc: got %v", err)
	}
	if _, err := d.Apply(ctx, blankPDF(t, [2]float64{100, 100}), Spec{}); !errors.As(err, &reqErr) {
		t.Fatalf("zero spec: got %v", err)
	}
	var numErr *PageNumberError
	if _, err := d.Apply(ctx, blankPDF(t, [2]float64{100, 100}), spec); !errors.As(err, &numErr) {
		t.Fatalf("page 4 of 1: got %v", err)
	}
}

type failingStamper struct{ calls int }

func (f *failingStamper) Stamp(context.Context, []byte, Spec) ([]byte, error) {
	f.calls++
	return nil, &StampingFailedError{Kind: KindText, Page: 0, Err: errors.New("boom")}
}

type rejectAll struct{}

func (rejectAll) Validate(context.Context, []byte) error { return errors.New("not conforming") }

func TestDispatcherNoRetryAndValidator(t *testing.T) {
	ctx := context.Background()
	src := blankPDF(t, [2]float64{100, 100})
	spec, err := NewSpec(mustText(t, "x"))
	if err != nil {
		t.Fatalf("spec: %v", err)
	}

	fs := &failingStamper{}
	_, err = NewDispatcher(WithStamper(KindText, fs)).Apply(ctx, src, spec)
	var failed *StampingFailedError
	if !errors.As(err, &failed) || fs.calls != 1 {
		t.Fatalf("err = %v after %d calls", err, fs.calls)
	}

	if _, err := NewDispatcher(WithValidator(rejectAll{})).Apply(ctx, src, spec); err == nil {
		t.Fatal("validator failure was ignored")
	}
}

func TestCancelledContextStopsBetweenPages(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	spec, err := NewSpec(mustText(t, "x"))
	if err != nil {
		t.Fatalf("spec: %v", err)
	}
	_, err = NewDispatcher().Apply(ctx, blankPDF(t, [2]float64{100, 100}), spec)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v", err)
	}
}

type tagSpan struct{ tags map[string]interface{} }

func (s *tagSpan) SetTag(k string, v interface{}) { s.tags[k] = v }
func (s *tagSpan) SetError(error)                 {}
func (s *tagSpan) Finish()                        {}

type tagTracer struct{ spans []*tagSpan }

func (tt *tagTracer) StartSpan(ctx context.Context, _ string) (context.Context, observability.Span) {
	s := &tagSpan{tags: map[string]interface{}{}}
	tt.spans = append(tt.spans, s)
	return ctx, s
}

func TestApplyReportsPagesAndBytes(t *testing.T) {
	src := blankPDF(t, [2]float64{300, 400}, [2]float64{300, 400}, [2]float64{300, 400})
	spec, err := NewSpec(mustText(t, "DRAFT"), WithPages("1,3"))
	if err != nil {
		t.Fatal(err)
	}
	tracer := &tagTracer{}
	out, err := NewDispatcher(WithTracer(tracer)).Apply(context.Background(), src, spec)
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	if len(tracer.spans) != 1 {
		t.Fatalf("spans = %d", len(tracer.spans))
	}
	tags := tracer.spans[0].tags
	if tags[observability.MetricPagesStamped] != 2 {
		t.Errorf("pages stamped = %v, want 2", tags[observability.MetricPagesStamped])
	}
	if tags[observability.MetricOutputBytes] != len(out) {
		t.Errorf("output bytes = %v, want %d", tags[observability.MetricOutputBytes], len(out))
	}
	if tags["kind"] != string(KindText) {
		t.Errorf("kind tag = %v", tags["kind"])
	}
}

func TestWithLayoutOptionsReachesMarkupStamper(t *testing.T) {
	d := NewDispatcher(WithLayoutOptions(layout.WithDefaultFontSize(18)))
	m, ok := d.stampers[KindMarkup].(MarkupStamper)
	if !ok || len(m.Layout) != 1 {
		t.Fatalf("markup stamper = %#v", d.stampers[KindMarkup])
	}
}
