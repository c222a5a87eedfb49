package adsource

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/redis/go-redis/v9"
)

const sampleJSON = `{
  "publisherId": "cshl",
  "journlcode": "genome",
  "section": [{
    "sectionId": "s1",
    "sectionPath": ["home"],
    "adLocation": [
      {"positionId": "1", "positionName": "header",
       "adData": [{"adId": "h1", "adHtml": "<img src=\"/banner.png\">", "adEndDate": "2030-01-01"}]},
      {"positionId": "2", "positionName": "pdf ad one",
       "adData": [{"adId": "p1", "adHtml": "<p>full</p>", "adEndDate": "2020-01-01"},
                  {"adId": "p2", "adHtml": "<p>second</p>"}]}
    ]
  }]
}`

func TestFetcherDecodesResponse(t *testing.T) {
	var calls int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if r.Header.Get("Accept") != "application/json" {
			t.Errorf("accept = %q", r.Header.Get("Accept"))
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(sampleJSON))
	}))
	defer srv.Close()

	resp, err := NewFetcher().Fetch(context.Background(), srv.URL)
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if resp.JournalCode != "genome" || calls != 1 {
		t.Fatalf("journal %q after %d calls", resp.JournalCode, calls)
	}
	locs := resp.Locations()
	var names []string
	for _, l := range locs {
		names = append(names, l.PositionName)
	}
	if diff := cmp.Diff([]string{"header", "pdf ad one"}, names); diff != "" {
		t.Fatalf("locations mismatch (-want +got):\n%s", diff)
	}
	if !locs[1].Is(SlotFullPage) || locs[1].Is(SlotHeader) {
		t.Fatal("slot matching is wrong")
	}
	if locs[0].AdData[0].AdHTML != `<img src="/banner.png">` {
		t.Fatalf("html = %q", locs[0].AdData[0].AdHTML)
	}
}

func TestFetcherStatusAndLimits(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/big" {
			_, _ = w.Write([]byte(strings.Repeat(" ", 64) + "{}"))
			return
		}
		http.Error(w, "nope", http.StatusBadGateway)
	}))
	defer srv.Close()

	_, err := NewFetcher().Fetch(context.Background(), srv.URL+"/missing")
	var statusErr *StatusError
	if !errors.As(err, &statusErr) || statusErr.StatusCode != http.StatusBadGateway {
		t.Fatalf("err = %v", err)
	}
	if _, err := NewFetcher(WithMaxBytes(16)).Fetch(context.Background(), srv.URL+"/big"); err == nil {
		t.Fatal("oversized body accepted")
	}
}

type memStore struct {
	data map[string]string
	sets int
	fail error
}

func (m *memStore) Get(_ context.Context, key string) *redis.StringCmd {
	if m.fail != nil {
		return redis.NewStringResult("", m.fail)
	}
	v, ok := m.data[key]
	if !ok {
		return redis.NewStringResult("", redis.Nil)
	}
	return redis.NewStringResult(v, nil)
}

func (m *memStore) Set(_ context.Context, key string, value interface{}, _ time.Duration) *redis.StatusCmd {
	if m.fail != nil {
		return redis.NewStatusResult("", m.fail)
	}
	m.sets++
	m.data[key] = string(value.([]byte))
	return redis.NewStatusResult("OK", nil)
}

type countingSource struct {
	calls int
	resp  *Response
}

func (c *countingSource) Fetch(context.Context, string) (*Response, error) {
	c.calls++
	return c.resp, nil
}

func TestRedisCache(t *testing.T) {
	src := &countingSource{resp: &Response{JournalCode: "genome"}}
	store := &memStore{data: map[string]string{}}
	cache := NewRedisCache(src, store, time.Minute, nil)

	for i := 0; i < 3; i++ {
		resp, err := cache.Fetch(context.Background(), "https://ads.example/genome.json")
		if err != nil {
			t.Fatalf("fetch: %v", err)
		}
		if resp.JournalCode != "genome" {
			t.Fatalf("journal = %q", resp.JournalCode)
		}
	}
	if src.calls != 1 || store.sets != 1 {
		t.Fatalf("source calls %d, cache writes %d", src.calls, store.sets)
	}
	if _, ok := store.data[CacheKey("https://ads.example/genome.json")]; !ok {
		t.Fatal("response not stored under its key")
	}
}

func TestRedisCacheFallsThroughOnErrors(t *testing.T) {
	src := &countingSource{resp: &Response{JournalCode: "genome"}}
	cache := NewRedisCache(src, &memStore{fail: errors.New("connection refused")}, time.Minute, nil)
	for i := 0; i < 2; i++ {
		if _, err := cache.Fetch(context.Background(), "u"); err != nil {
			t.Fatalf("fetch: %v", err)
		}
	}
	if src.calls != 2 {
		t.Fatalf("source calls = %d", src.calls)
	}
}

func TestCacheKey(t *testing.T) {
	a, b := CacheKey("a"), CacheKey("b")
	if a == b || !strings.HasPrefix(a, KeyPrefix) || len(a) != len(KeyPrefix)+64 {
		t.Fatalf("keys %q %q", a, b)
	}
}

func TestScriptFilter(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(sampleJSON))
	}))
	defer srv.Close()

	f, err := NewScriptFilter(NewFetcher(), `ad.endDate === "" || ad.endDate >= today`)
	if err != nil {
		t.Fatalf("filter: %v", err)
	}
	f.now = func() time.Time { return time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC) }

	resp, err := f.Fetch(context.Background(), srv.URL)
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	var ids []string
	for _, l := range resp.Locations() {
		for _, ad := range l.AdData {
			ids = append(ids, ad.AdID)
		}
	}
	if diff := cmp.Diff([]string{"h1", "p2"}, ids); diff != "" {
		t.Fatalf("eligible ads mismatch (-want +got):\n%s", diff)
	}
}

func TestScriptFilterKeepsInputIntact(t *testing.T) {
	in := &Response{Sections: []Section{{AdLocations: []AdLocation{{
		PositionName: "header",
		AdData:       []AdData{{AdID: "x"}},
	}}}}}
	f, err := NewScriptFilter(&countingSource{resp: in}, `ad.position !== "header"`)
	if err != nil {
		t.Fatalf("filter: %v", err)
	}
	out, err := f.Filter(context.Background(), in)
	if err != nil {
		t.Fatalf("filter: %v", err)
	}
	if len(out.Locations()[0].AdData) != 0 || len(in.Locations()[0].AdData) != 1 {
		t.Fatal("filter must copy, not mutate")
	}
}

func TestFeed(t *testing.T) {
	src := &countingSource{resp: &Response{Sections: []Section{{AdLocations: []AdLocation{{PositionName: "header"}}}}}}
	locs, err := Feed{Source: src, URL: "u"}.AdLocations(context.Background())
	if err != nil || len(locs) != 1 {
		t.Fatalf("locs = %v, %v", locs, err)
	}
}
