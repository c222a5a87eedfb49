package compose

import (
	"context"
	"encoding/base64"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/wudi/pdfstamp/adsource"
	"github.com/wudi/pdfstamp/coords"
	"github.com/wudi/pdfstamp/document"
	"github.com/wudi/pdfstamp/layout"
	"github.com/wudi/pdfstamp/observability"
	"github.com/wudi/pdfstamp/stamp"
)

// Strategy decides how a dynamic block reaches the document.
type Strategy string

const (
	// StrategyOverlay stamps the block over every page.
	StrategyOverlay Strategy = "overlay"
	// StrategyNewPage prepends the block as its own page.
	StrategyNewPage Strategy = "new_page"
)

// ParseStrategy reads a strategy name. Blank selects StrategyOverlay.
func ParseStrategy(s string) (Strategy, error) {
	switch strings.ReplaceAll(strings.ToLower(strings.TrimSpace(s)), "-", "_") {
	case "", string(StrategyOverlay):
		return StrategyOverlay, nil
	case string(StrategyNewPage):
		return StrategyNewPage, nil
	}
	return "", &stamp.InvalidRequestError{Field: "strategy", Reason: fmt.Sprintf("unknown strategy %q", s)}
}

// Dynamic is a unified block of optional fragments, rendered in this order:
// logo, text, raw markup, DOI line, generation date, header ad.
type Dynamic struct {
	Logo        []byte
	LogoType    string // MIME type; sniffed when empty
	Text        string
	HTML        string
	IncludeDOI  bool
	DOI         string
	JournalCode string
	IncludeDate bool
	Ads         AdSource // first header ad, when set

	Position stamp.Position
	Strategy Strategy
}

// Block builds the block markup. Only the ad fragment does I/O.
func (p *Pipeline) Block(ctx context.Context, d Dynamic) (string, error) {
	var sb strings.Builder
	sb.WriteString(`<div style="font-family: Arial, sans-serif; text-align: center;">`)
	if len(d.Logo) > 0 {
		mime := d.LogoType
		if mime == "" {
			mime = http.DetectContentType(d.Logo)
		}
		sb.WriteString(`<img src="data:` + mime + `;base64,` + base64.StdEncoding.EncodeToString(d.Logo) + `"`)
		sb.WriteString(` style="max-width: 200px; max-height: 60px; display: block; margin: 0 auto; margin-bottom: 8px;" />`)
	}
	if strings.TrimSpace(d.Text) != "" {
		sb.WriteString(`<p style="font-size: 14px; margin: 4px 0; font-weight: bold;">` + multiline(d.Text) + `</p>`)
	}
	if strings.TrimSpace(d.HTML) != "" {
		sb.WriteString(`<div style="margin: 8px 0;">` + d.HTML + `</div>`)
	}
	if d.IncludeDOI {
		var link string
		switch {
		case strings.TrimSpace(d.DOI) != "":
			link = doiURL(strings.TrimSpace(d.DOI))
		case strings.TrimSpace(d.JournalCode) != "":
			link = doiURL(strings.TrimSpace(d.JournalCode))
		}
		if link != "" {
			sb.WriteString(`<p style="margin: 4px 0; font-size: 12px; color: blue;">doi: ` + anchor(link) + `</p>`)
		}
	}
	if d.IncludeDate {
		sb.WriteString(`<p style="margin: 4px 0; font-size: 12px; color: #555;">Date Generated: ` + p.now().Format(DateLayout) + `</p>`)
	}
	if d.Ads != nil {
		ad, err := firstHeaderAd(ctx, d.Ads)
		if err != nil {
			return "", &CompositionError{Stage: "fetch", Err: err}
		}
		if ad != "" {
			sb.WriteString(`<div style="margin-top: 10px;">` + p.rewriteLinks(ad) + `</div>`)
		}
	}
	sb.WriteString(`</div>`)
	return sb.String(), nil
}

func firstHeaderAd(ctx context.Context, src AdSource) (string, error) {
	locs, err := src.AdLocations(ctx)
	if err != nil {
		return "", err
	}
	for _, loc := range locs {
		if !loc.Is(adsource.SlotHeader) {
			continue
		}
		for _, ad := range loc.AdData {
			if strings.TrimSpace(ad.AdHTML) != "" {
				return ad.AdHTML, nil
			}
		}
	}
	return "", nil
}

// Dynamic places the block built from d on doc.
func (p *Pipeline) Dynamic(ctx context.Context, doc []byte, d Dynamic) (out []byte, err error) {
	if len(doc) == 0 {
		return nil, errEmptyDocument
	}
	defer p.logTiming("dynamic block placed", time.Now(), &err,
		observability.String("strategy", string(d.Strategy)),
		observability.String("position", d.Position.String()))

	block, err := p.Block(ctx, d)
	if err != nil {
		return nil, err
	}
	if d.Strategy == StrategyNewPage {
		page := `<!DOCTYPE html><html><head><meta charset="UTF-8"/></head><body style="margin: 50px;">` + block + `</body></html>`
		return p.prependMarkup(ctx, doc, page)
	}

	size, err := firstPageSize(ctx, doc)
	if err != nil {
		return nil, err
	}
	o := overlayFor(d.Position, size.W, size.H)
	payload, err := stamp.Markup(o.wrap(block), layout.HTML)
	if err != nil {
		return nil, err
	}
	spec, err := stamp.NewSpec(payload,
		stamp.WithPosition(stamp.Center),
		stamp.WithOpacity(1),
		stamp.WithRotation(o.rotation),
		stamp.WithScale(1),
		stamp.WithPages(stamp.PagesAll),
		stamp.WithBox(o.w, o.h),
	)
	if err != nil {
		return nil, err
	}
	return p.markup.Stamp(ctx, doc, spec)
}

// overlay is a page-sized cell holding the block at an aligned spot.
type overlay struct {
	hAlign, vAlign string
	padding        int
	rotation       float64
	w, h           float64
}

// overlayFor maps a position onto cell alignment. The margin positions turn
// the page-sized cell a quarter turn so the block's top faces that edge.
func overlayFor(pos stamp.Position, pageW, pageH float64) overlay {
	o := overlay{hAlign: "center", vAlign: "middle", padding: 50, w: pageW, h: pageH}
	name := pos.String()
	switch pos {
	case stamp.Header, stamp.Footer, stamp.Center:
		o.padding = 10
	}
	if strings.Contains(name, "LEFT") {
		o.hAlign = "left"
	}
	if strings.Contains(name, "RIGHT") {
		o.hAlign = "right"
	}
	if pos == stamp.Header || strings.Contains(name, "TOP") {
		o.vAlign = "top"
	}
	if pos == stamp.Footer || strings.Contains(name, "BOTTOM") {
		o.vAlign = "bottom"
	}
	switch pos {
	case stamp.LeftMargin:
		o.rotation = 90
	case stamp.RightMargin:
		o.rotation = 270
	}
	if o.rotation != 0 {
		o.w, o.h = pageH, pageW
		o.hAlign, o.vAlign = "center", "top"
	}
	return o
}

func (o overlay) wrap(block string) string {
	return `<!DOCTYPE html><html><head><meta charset="UTF-8"/></head><body style="margin: 0; padding: 0;">` +
		`<table style="width: 100%; height: 100%; border-collapse: collapse; margin: 0; padding: 0;">` +
		fmt.Sprintf(`<tr><td style="vertical-align: %s; text-align: %s; padding: %dpx;">`, o.vAlign, o.hAlign, o.padding) +
		`<div style="display: inline-block; background-color: rgba(255,255,255,0.8); padding: 10px; text-align: center;">` +
		block + `</div></td></tr></table></body></html>`
}

func firstPageSize(ctx context.Context, doc []byte) (coords.Size, error) {
	d, err := document.Open(ctx, doc)
	if err != nil {
		return coords.Size{}, &stamp.InvalidRequestError{Field: "file", Reason: fmt.Sprintf("not a readable PDF document: %v", err)}
	}
	defer d.Close()
	if d.PageCount() == 0 {
		return layout.A4, nil
	}
	return d.PageSize(0)
}
