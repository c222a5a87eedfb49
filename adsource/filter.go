package adsource

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/wudi/pdfstamp/scripting"
)

// adView is what an eligibility script sees as `ad`.
type adView struct {
	ID        string `json:"id"`
	HTML      string `json:"html"`
	Text      string `json:"text"`
	StartDate string `json:"startDate"`
	EndDate   string `json:"endDate"`
	Frequency string `json:"frequency"`
	Position  string `json:"position"`
}

// ScriptFilter drops ads for which a JavaScript predicate is false. The
// script sees `ad` and `today` (YYYY-MM-DD), for example:
//
//	(ad.startDate === "" || ad.startDate <= today) &&
//	(ad.endDate === "" || ad.endDate >= today)
type ScriptFilter struct {
	next Source
	prog *scripting.Program
	now  func() time.Time

	mu     sync.Mutex
	engine *scripting.GojaEngine
}

// NewScriptFilter compiles source and wraps next.
func NewScriptFilter(next Source, source string) (*ScriptFilter, error) {
	prog, err := scripting.Compile("eligibility.js", source)
	if err != nil {
		return nil, err
	}
	return &ScriptFilter{next: next, prog: prog, now: time.Now, engine: scripting.NewEngine()}, nil
}

func (f *ScriptFilter) Fetch(ctx context.Context, url string) (*Response, error) {
	resp, err := f.next.Fetch(ctx, url)
	if err != nil {
		return nil, err
	}
	return f.Filter(ctx, resp)
}

// Filter returns a copy of resp without ineligible ads. Locations left
// without ads are kept.
func (f *ScriptFilter) Filter(ctx context.Context, resp *Response) (*Response, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	today := f.now().Format("2006-01-02")
	if err := f.engine.Bind("today", today); err != nil {
		return nil, err
	}
	out := *resp
	out.Sections = make([]Section, len(resp.Sections))
	for si, s := range resp.Sections {
		s.AdLocations = append([]AdLocation(nil), s.AdLocations...)
		for li, loc := range s.AdLocations {
			var kept []AdData
			for _, ad := range loc.AdData {
				ok, err := f.eligible(ctx, loc, ad)
				if err != nil {
					return nil, fmt.Errorf("eligibility of ad %q: %w", ad.AdID, err)
				}
				if ok {
					kept = append(kept, ad)
				}
			}
			s.AdLocations[li].AdData = kept
		}
		out.Sections[si] = s
	}
	return &out, nil
}

func (f *ScriptFilter) eligible(ctx context.Context, loc AdLocation, ad AdData) (bool, error) {
	view := adView{
		ID:        ad.AdID,
		HTML:      ad.AdHTML,
		Text:      ad.AdString,
		StartDate: ad.AdStartDate,
		EndDate:   ad.AdEndDate,
		Frequency: ad.AdFrequency,
		Position:  loc.PositionName,
	}
	if err := f.engine.Bind("ad", view); err != nil {
		return false, err
	}
	return f.engine.Test(ctx, f.prog)
}
