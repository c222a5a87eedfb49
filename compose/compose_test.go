package compose

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/wudi/pdfstamp/adsource"
	"github.com/wudi/pdfstamp/builder"
	"github.com/wudi/pdfstamp/document"
	"github.com/wudi/pdfstamp/stamp"
)

func blankPDF(t *testing.T, pages int, w, h float64) []byte {
	t.Helper()
	b := builder.NewBuilder()
	for i := 0; i < pages; i++ {
		b.NewPage(w, h)
	}
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

// recordingStamper counts calls and returns its input.
type recordingStamper struct {
	specs   []stamp.Spec
	markups []string
}

func (r *recordingStamper) Stamp(_ context.Context, src []byte, spec stamp.Spec) ([]byte, error) {
	r.specs = append(r.specs, spec)
	r.markups = append(r.markups, spec.Payload().(stamp.MarkupPayload).Source)
	return src, nil
}

type failingSource struct{}

func (failingSource) AdLocations(context.Context) ([]adsource.AdLocation, error) {
	return nil, errors.New("ad system down")
}

func fixedClock() time.Time { return time.Date(2026, 1, 2, 15, 0, 0, 0, time.UTC) }

func TestComposeHeaderOnly(t *testing.T) {
	rec := &recordingStamper{}
	p := NewPipeline(WithStamper(rec))
	src := blankPDF(t, 2, 300, 400)
	ads := adsource.Static{{
		PositionName: "Header",
		AdData:       []adsource.AdData{{AdID: "h1", AdHTML: `<a href="/click"><img src="/b.png"></a>`}},
	}}

	out, err := p.Compose(context.Background(), src, ads, FilterAll)
	if err != nil {
		t.Fatalf("compose: %v", err)
	}
	if len(rec.specs) != 1 {
		t.Fatalf("stamp calls = %d", len(rec.specs))
	}
	if rec.specs[0].Position() != stamp.TopRight {
		t.Fatalf("position = %s", rec.specs[0].Position())
	}
	want := `<a href="` + DefaultAdBaseURL + `click"><img src="` + DefaultAdBaseURL + `b.png"></a>`
	if rec.markups[0] != want {
		t.Fatalf("markup = %q", rec.markups[0])
	}
	if n := open(t, out).PageCount(); n != 2 {
		t.Fatalf("page count = %d", n)
	}
}

func TestComposeFullPageOnly(t *testing.T) {
	rec := &recordingStamper{}
	p := NewPipeline(WithStamper(rec))
	src := blankPDF(t, 2, 300, 400)
	ads := adsource.Static{{
		PositionName: "pdf ad one",
		AdData: []adsource.AdData{
			{AdID: "empty"},
			{AdID: "p1", AdHTML: `<p>Subscribe <a href="/promo">now</a></p>`},
			{AdID: "p2", AdHTML: `<p>ignored <a href="https://example.org/other">x</a></p>`},
		},
	}}

	out, err := p.Compose(context.Background(), src, ads, FilterFullPage)
	if err != nil {
		t.Fatalf("compose: %v", err)
	}
	if len(rec.specs) != 0 {
		t.Fatalf("full-page ad went through the stamper")
	}
	doc := open(t, out)
	if n := doc.PageCount(); n != 3 {
		t.Fatalf("page count = %d", n)
	}
	size, err := doc.PageSize(0)
	if err != nil || size.W != 300 || size.H != 400 {
		t.Fatalf("first page size = %+v, %v", size, err)
	}
	links, err := doc.Links(0)
	if err != nil {
		t.Fatalf("links: %v", err)
	}
	if len(links) != 1 || links[0].URI != DefaultAdBaseURL+"promo" {
		t.Fatalf("links on new first page = %+v", links)
	}
}

func TestComposeNothingToDo(t *testing.T) {
	tests := []struct {
		name   string
		ads    adsource.Static
		filter Filter
	}{
		{"no ad data", adsource.Static{{PositionName: "header"}, {PositionName: "pdf ad one"}}, FilterAll},
		{"blank html", adsource.Static{{PositionName: "header", AdData: []adsource.AdData{{AdHTML: "  "}}}}, FilterAll},
		{"filtered out", adsource.Static{{PositionName: "header", AdData: []adsource.AdData{{AdHTML: "<p>x</p>"}}}}, FilterFullPage},
		{"unknown slot", adsource.Static{{PositionName: "sidebar", AdData: []adsource.AdData{{AdHTML: "<p>x</p>"}}}}, FilterAll},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := &recordingStamper{}
			src := blankPDF(t, 1, 200, 200)
			out, err := NewPipeline(WithStamper(rec)).Compose(context.Background(), src, tt.ads, tt.filter)
			if err != nil {
				t.Fatalf("compose: %v", err)
			}
			if len(rec.specs) != 0 {
				t.Fatalf("stamp calls = %d", len(rec.specs))
			}
			if len(out) != len(src) || &out[0] != &src[0] {
				t.Fatal("input was rewritten")
			}
		})
	}
}

func TestComposeErrors(t *testing.T) {
	p := NewPipeline(WithStamper(&recordingStamper{}))
	var compErr *CompositionError
	if _, err := p.Compose(context.Background(), blankPDF(t, 1, 100, 100), failingSource{}, FilterAll); !errors.As(err, &compErr) || compErr.Stage != "fetch" {
		t.Fatalf("fetch failure: %v", err)
	}
	var reqErr *stamp.InvalidRequestError
	if _, err := p.Compose(context.Background(), nil, adsource.Static{}, FilterAll); !errors.As(err, &reqErr) {
		t.Fatalf("empty document: %v", err)
	}
}

func TestParseFilter(t *testing.T) {
	for in, want := range map[string]Filter{"": FilterAll, "ALL": FilterAll, "Header": FilterHeader, "PDF AD ONE": FilterFullPage} {
		got, err := ParseFilter(in)
		if err != nil || got != want {
			t.Errorf("ParseFilter(%q) = %q, %v", in, got, err)
		}
	}
	var reqErr *stamp.InvalidRequestError
	if _, err := ParseFilter("footer"); !errors.As(err, &reqErr) {
		t.Fatalf("unknown filter: %v", err)
	}
}

func TestEnsureHTML(t *testing.T) {
	if got := ensureHTML("  <HTML><body>x</body></html>"); got != "  <HTML><body>x</body></html>" {
		t.Fatalf("document was rewrapped: %q", got)
	}
	if got := ensureHTML("<!doctype html><p>x</p>"); !strings.HasPrefix(got, "<!doctype") {
		t.Fatalf("doctype was rewrapped: %q", got)
	}
	got := ensureHTML("<p>x</p>")
	if !strings.HasPrefix(got, "<!DOCTYPE html>\n<html>") || !strings.Contains(got, "<body>\n<p>x</p>\n</body>") {
		t.Fatalf("fragment wrap = %q", got)
	}
}

func TestCoverPageWithDateOnly(t *testing.T) {
	p := NewPipeline(WithClock(fixedClock))
	markup := BuildFrontPage(CoverPage{IncludeDate: true}, fixedClock())
	if !strings.Contains(markup, "of January 2, 2026.") {
		t.Fatalf("date missing from %q", markup)
	}
	out, err := p.CoverPage(context.Background(), blankPDF(t, 1, 612, 792), CoverPage{IncludeDate: true})
	if err != nil {
		t.Fatalf("cover page: %v", err)
	}
	doc := open(t, out)
	if n := doc.PageCount(); n != 2 {
		t.Fatalf("page count = %d", n)
	}
	if size, _ := doc.PageSize(0); size.W != 612 || size.H != 792 {
		t.Fatalf("cover size = %+v", size)
	}
}

func TestBuildFrontPage(t *testing.T) {
	got := BuildFrontPage(CoverPage{
		LogoText:       "GR",
		Title:          "Line one\nLine <two>",
		Authors:        "A. Author",
		Citation:       "Genome Res. 2026",
		DOI:            "10.1101/gr.1",
		AdditionalLink: "example.org/more",
	}, fixedClock())
	for _, want := range []string{
		`font-size: 64px; margin-top: 0; font-weight: bold;">GR</h1>`,
		`Line one<br/>Line &lt;two&gt;</h2>`,
		`<a href="https://doi.org/10.1101/gr.1"`,
		`<a href="https://example.org/more"`,
		`<i>Genome Res. 2026</i>`,
	} {
		if !strings.Contains(got, want) {
			t.Errorf("missing %q", want)
		}
	}
	if strings.Contains(got, "current as") {
		t.Error("date rendered without IncludeDate")
	}
	if strings.Contains(BuildFrontPage(CoverPage{DOI: "https://doi.org/x"}, fixedClock()), "doi.org/https") {
		t.Error("absolute DOI was prefixed")
	}
}

func TestBlockFragmentsInOrder(t *testing.T) {
	p := NewPipeline(WithClock(fixedClock))
	ads := adsource.Static{
		{PositionName: "pdf ad one", AdData: []adsource.AdData{{AdHTML: "<p>full</p>"}}},
		{PositionName: "header", AdData: []adsource.AdData{{AdHTML: ""}, {AdHTML: `<img src="/ad.png">`}}},
	}
	block, err := p.Block(context.Background(), Dynamic{
		Logo:        []byte("\x89PNG\r\n\x1a\n"),
		Text:        "Hello\n<World>",
		HTML:        "<b>raw</b>",
		IncludeDOI:  true,
		JournalCode: "genome",
		IncludeDate: true,
		Ads:         ads,
	})
	if err != nil {
		t.Fatalf("block: %v", err)
	}
	order := []string{
		`src="data:image/png;base64,`,
		`Hello<br/>&lt;World&gt;`,
		`<b>raw</b>`,
		`https://doi.org/genome`,
		`Date Generated: January 2, 2026`,
		`src="` + DefaultAdBaseURL + `ad.png"`,
	}
	last := -1
	for _, want := range order {
		i := strings.Index(block, want)
		if i < 0 || i < last {
			t.Fatalf("%q missing or out of order in %q", want, block)
		}
		last = i
	}
	if strings.Contains(block, "full") {
		t.Fatal("full-page ad leaked into the block")
	}
}

func TestOverlayFor(t *testing.T) {
	tests := []struct {
		pos  stamp.Position
		want overlay
	}{
		{stamp.Center, overlay{hAlign: "center", vAlign: "middle", padding: 10, w: 600, h: 800}},
		{stamp.Header, overlay{hAlign: "center", vAlign: "top", padding: 10, w: 600, h: 800}},
		{stamp.BottomRight, overlay{hAlign: "right", vAlign: "bottom", padding: 50, w: 600, h: 800}},
		{stamp.TopLeft, overlay{hAlign: "left", vAlign: "top", padding: 50, w: 600, h: 800}},
		{stamp.LeftMargin, overlay{hAlign: "center", vAlign: "top", padding: 50, rotation: 90, w: 800, h: 600}},
		{stamp.RightMargin, overlay{hAlign: "center", vAlign: "top", padding: 50, rotation: 270, w: 800, h: 600}},
	}
	for _, tt := range tests {
		if diff := cmp.Diff(tt.want, overlayFor(tt.pos, 600, 800), cmp.AllowUnexported(overlay{})); diff != "" {
			t.Errorf("%s mismatch (-want +got):\n%s", tt.pos, diff)
		}
	}
}

func TestDynamicOverlayStampsCentredPageBox(t *testing.T) {
	rec := &recordingStamper{}
	p := NewPipeline(WithStamper(rec), WithClock(fixedClock))
	_, err := p.Dynamic(context.Background(), blankPDF(t, 2, 600, 800), Dynamic{
		Text:     "Accepted manuscript",
		Position: stamp.RightMargin,
		Strategy: StrategyOverlay,
	})
	if err != nil {
		t.Fatalf("dynamic: %v", err)
	}
	if len(rec.specs) != 1 {
		t.Fatalf("stamp calls = %d", len(rec.specs))
	}
	spec := rec.specs[0]
	if spec.Position() != stamp.Center || spec.Rotation() != 270 || spec.Width() != 800 || spec.Height() != 600 {
		t.Fatalf("spec = %s box %vx%v", spec, spec.Width(), spec.Height())
	}
	if !strings.Contains(rec.markups[0], "rgba(255,255,255,0.8)") || !strings.Contains(rec.markups[0], "Accepted manuscript") {
		t.Fatalf("overlay markup = %q", rec.markups[0])
	}
}

func TestDynamicNewPage(t *testing.T) {
	p := NewPipeline(WithClock(fixedClock))
	out, err := p.Dynamic(context.Background(), blankPDF(t, 1, 400, 500), Dynamic{
		Text:        "Hello",
		IncludeDate: true,
		Strategy:    StrategyNewPage,
	})
	if err != nil {
		t.Fatalf("dynamic: %v", err)
	}
	if n := open(t, out).PageCount(); n != 2 {
		t.Fatalf("page count = %d", n)
	}
}

func TestDynamicOverlayRenders(t *testing.T) {
	out, err := NewPipeline().Dynamic(context.Background(), blankPDF(t, 1, 400, 500), Dynamic{
		Text:       "Preprint",
		IncludeDOI: true,
		DOI:        "10.1/x",
		Position:   stamp.Footer,
	})
	if err != nil {
		t.Fatalf("dynamic: %v", err)
	}
	doc := open(t, out)
	links, err := doc.Links(0)
	if err != nil || len(links) != 1 || links[0].URI != "https://doi.org/10.1/x" {
		t.Fatalf("links = %+v, %v", links, err)
	}
	if links[0].Rect.LLy > 250 {
		t.Fatalf("footer block sits in the upper half: %+v", links[0].Rect)
	}
}

func TestParseStrategy(t *testing.T) {
	for in, want := range map[string]Strategy{"": StrategyOverlay, "OVERLAY": StrategyOverlay, "new-page": StrategyNewPage, "new_page": StrategyNewPage} {
		if got, err := ParseStrategy(in); err != nil || got != want {
			t.Errorf("ParseStrategy(%q) = %q, %v", in, got, err)
		}
	}
	if _, err := ParseStrategy("sideways"); err == nil {
		t.Fatal("expected error")
	}
}
