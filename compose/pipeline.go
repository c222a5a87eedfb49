// Package compose builds multi-part documents: ads stamped inline or
// prepended as whole pages, metadata cover pages, and a unified dynamic
// block placed either as an overlay or as a new first page.
package compose

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/wudi/pdfstamp/adsource"
	"github.com/wudi/pdfstamp/document"
	"github.com/wudi/pdfstamp/layout"
	"github.com/wudi/pdfstamp/observability"
	"github.com/wudi/pdfstamp/stamp"
)

// DefaultAdBaseURL resolves root-relative src and href attributes in ad HTML.
const DefaultAdBaseURL = "https://hwmaint.genome.cshlp.org/adsystem/"

var errEmptyDocument = &stamp.InvalidRequestError{Field: "file", Reason: "document is empty"}

// AdSource yields the ad locations to compose.
type AdSource interface {
	AdLocations(ctx context.Context) ([]adsource.AdLocation, error)
}

// Filter selects which ad slots are composed.
type Filter string

const (
	FilterAll      Filter = "all"
	FilterHeader   Filter = adsource.SlotHeader
	FilterFullPage Filter = adsource.SlotFullPage
)

// ParseFilter reads a filter name, ignoring case. Blank selects FilterAll.
func ParseFilter(s string) (Filter, error) {
	switch f := Filter(strings.ToLower(strings.TrimSpace(s))); f {
	case "":
		return FilterAll, nil
	case FilterAll, FilterHeader, FilterFullPage:
		return f, nil
	}
	return "", &stamp.InvalidRequestError{Field: "filter", Reason: fmt.Sprintf("unknown ad filter %q", s)}
}

func (f Filter) includes(slot string) bool {
	return f == FilterAll || string(f) == slot
}

// CompositionError reports a failed composition stage: fetch, render or merge.
type CompositionError struct {
	Stage string
	Err   error
}

func (e *CompositionError) Error() string {
	return fmt.Sprintf("composition %s: %v", e.Stage, e.Err)
}

func (e *CompositionError) Unwrap() error { return e.Err }

// Pipeline composes documents. It holds no per-call state and is safe for
// concurrent use.
type Pipeline struct {
	markup  stamp.Stamper
	logger  observability.Logger
	baseURL string
	layout  []layout.Option
	now     func() time.Time
}

type Option func(*Pipeline)

// WithStamper replaces the markup stamper used for inline content.
func WithStamper(s stamp.Stamper) Option {
	return func(p *Pipeline) { p.markup = s }
}

func WithLogger(l observability.Logger) Option {
	return func(p *Pipeline) {
		if l != nil {
			p.logger = l
		}
	}
}

// WithAdBaseURL sets the base for root-relative ad links.
func WithAdBaseURL(base string) Option {
	return func(p *Pipeline) {
		if base != "" {
			p.baseURL = base
		}
	}
}

// WithLayoutOptions configures rendering of prepended pages.
func WithLayoutOptions(opts ...layout.Option) Option {
	return func(p *Pipeline) { p.layout = opts }
}

// WithClock sets the time source for generated dates.
func WithClock(now func() time.Time) Option {
	return func(p *Pipeline) { p.now = now }
}

func NewPipeline(opts ...Option) *Pipeline {
	p := &Pipeline{
		logger:  observability.NopLogger{},
		baseURL: DefaultAdBaseURL,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.markup == nil {
		p.markup = stamp.MarkupStamper{Layout: p.layout}
	}
	return p
}

// Compose applies the ads src yields. Header ads are stamped inline at the
// top right, one after another; the first non-empty full-page ad is
// rendered at the first page's size and prepended. Without stampable
// content doc is returned as is.
func (p *Pipeline) Compose(ctx context.Context, doc []byte, src AdSource, filter Filter) (out []byte, err error) {
	if len(doc) == 0 {
		return nil, errEmptyDocument
	}
	start := time.Now()
	defer p.logTiming("ads composed", start, &err, observability.String("filter", string(filter)))

	locs, err := src.AdLocations(ctx)
	if err != nil {
		return nil, &CompositionError{Stage: "fetch", Err: err}
	}

	out = doc
	var fullPage string
	for _, loc := range locs {
		if filter.includes(adsource.SlotHeader) && loc.Is(adsource.SlotHeader) {
			for _, ad := range loc.AdData {
				if strings.TrimSpace(ad.AdHTML) == "" {
					continue
				}
				p.logger.Info("applying header ad", observability.String("ad_id", ad.AdID))
				if out, err = p.stampInline(ctx, out, p.rewriteLinks(ad.AdHTML)); err != nil {
					return nil, err
				}
			}
		}
		if fullPage == "" && filter.includes(adsource.SlotFullPage) && loc.Is(adsource.SlotFullPage) {
			for _, ad := range loc.AdData {
				if strings.TrimSpace(ad.AdHTML) != "" {
					fullPage = ad.AdHTML
					break
				}
			}
		}
	}

	if fullPage == "" {
		if filter.includes(adsource.SlotFullPage) {
			p.logger.Info("no full-page ad content found, skipping page prepend")
		}
		return out, nil
	}
	return p.prependMarkup(ctx, out, ensureHTML(p.rewriteLinks(fullPage)))
}

func (p *Pipeline) stampInline(ctx context.Context, doc []byte, markup string) ([]byte, error) {
	payload, err := stamp.Markup(markup, layout.HTML)
	if err != nil {
		return nil, err
	}
	spec, err := stamp.NewSpec(payload, stamp.WithPosition(stamp.TopRight))
	if err != nil {
		return nil, err
	}
	return p.markup.Stamp(ctx, doc, spec)
}

// prependMarkup renders markup at the size of doc's first page and puts
// every rendered page in front.
func (p *Pipeline) prependMarkup(ctx context.Context, doc []byte, markup string) ([]byte, error) {
	target, err := document.Open(ctx, doc)
	if err != nil {
		return nil, &stamp.InvalidRequestError{Field: "file", Reason: fmt.Sprintf("not a readable PDF document: %v", err)}
	}
	defer target.Close()

	size := layout.A4
	if target.PageCount() > 0 {
		if size, err = target.PageSize(0); err != nil {
			return nil, &CompositionError{Stage: "render", Err: err}
		}
	}
	rendered, err := layout.Render(ctx, markup, layout.HTML, size, p.layout...)
	if err != nil {
		return nil, &CompositionError{Stage: "render", Err: err}
	}
	err = target.Prepend(rendered)
	rendered.Close()
	if err != nil {
		return nil, &CompositionError{Stage: "merge", Err: err}
	}
	out, err := target.Bytes(ctx)
	if err != nil {
		return nil, &CompositionError{Stage: "merge", Err: err}
	}
	return out, nil
}

func (p *Pipeline) logTiming(msg string, start time.Time, err *error, fields ...observability.Field) {
	fields = append(fields,
		observability.String("metric", observability.MetricComposeDuration),
		observability.Duration("duration", time.Since(start)),
	)
	if *err != nil {
		p.logger.Error(msg+" with error", append(fields, observability.Error("error", *err))...)
		return
	}
	p.logger.Info(msg, fields...)
}
