// Package adsource fetches ad placements for composition. A Source returns
// the parsed ad-system response; wrappers add caching and eligibility rules.
package adsource

import "strings"

// Response is the ad-system document for one journal.
type Response struct {
	PublisherID string    `json:"publisherId"`
	JournalCode string    `json:"journlcode"`
	Sections    []Section `json:"section"`
}

type Section struct {
	SectionID   string       `json:"sectionId"`
	SectionPath []string     `json:"sectionPath"`
	AdLocations []AdLocation `json:"adLocation"`
}

// AdLocation is a named slot and the ads booked into it.
type AdLocation struct {
	PositionID   string   `json:"positionId"`
	PositionName string   `json:"positionName"`
	AdData       []AdData `json:"adData"`
}

type AdData struct {
	AdString    string `json:"adString"`
	AdHTML      string `json:"adHtml"`
	AdID        string `json:"adId"`
	AdStartDate string `json:"adStartDate"`
	AdEndDate   string `json:"adEndDate"`
	AdFrequency string `json:"adFrequency"`
}

// Slot names used by composition.
const (
	SlotHeader   = "header"
	SlotFullPage = "pdf ad one"
)

// Is reports whether the location has the given slot name, ignoring case.
func (l AdLocation) Is(slot string) bool {
	return strings.EqualFold(strings.TrimSpace(l.PositionName), slot)
}

// Locations flattens every section's locations in document order.
func (r *Response) Locations() []AdLocation {
	if r == nil {
		return nil
	}
	var out []AdLocation
	for _, s := range r.Sections {
		out = append(out, s.AdLocations...)
	}
	return out
}
