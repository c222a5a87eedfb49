package adsource

import "context"

// Feed binds a Source to one URL.
type Feed struct {
	Source Source
	URL    string
}

// AdLocations fetches the feed and flattens its locations.
func (f Feed) AdLocations(ctx context.Context) ([]AdLocation, error) {
	resp, err := f.Source.Fetch(ctx, f.URL)
	if err != nil {
		return nil, err
	}
	return resp.Locations(), nil
}

// Static is a fixed set of locations.
type Static []AdLocation

func (s Static) AdLocations(context.Context) ([]AdLocation, error) { return s, nil }
