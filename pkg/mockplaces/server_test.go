package mockplaces_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/gastromap/location-enricher/pkg/mockplaces"
)

func getJSON(t *testing.T, url string) map[string]any {
	t.Helper()
	resp, err := http.Get(url)
	if err != nil {
		t.Fatalf("get %s: %v", url, err)
	}
	defer func() { _ = resp.Body.Close() }()
	var out map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	return out
}

func TestMockPlaces_LoadFixturesAndSearch(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	fixture := `[{"place_id":"p1","name":"Cafe Test","lat":50.06,"lng":19.94},{"place_id":"p2","name":"Bar Mleczny"}]`
	if err := os.WriteFile(filepath.Join(dir, "krakow.json"), []byte(fixture), 0o600); err != nil {
		t.Fatalf("write fixture: %v", err)
	}

	srv := mockplaces.New()
	if err := srv.LoadFixtures(dir); err != nil {
		t.Fatalf("load fixtures: %v", err)
	}
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	got := getJSON(t, ts.URL+"/maps/api/place/textsearch/json?query=Cafe+Test,+Krakow&key=k")
	if got["status"] != "OK" {
		t.Fatalf("expected OK, got %v", got["status"])
	}
	results := got["results"].([]any)
	if len(results) != 1 {
		t.Fatalf("expected 1 result, got %d", len(results))
	}

	got = getJSON(t, ts.URL+"/maps/api/place/textsearch/json?query=Pierogarnia&key=k")
	if got["status"] != "ZERO_RESULTS" {
		t.Fatalf("expected ZERO_RESULTS, got %v", got["status"])
	}

	calls := srv.Calls()
	if len(calls) != 2 {
		t.Fatalf("expected 2 calls, got %d", len(calls))
	}
	if calls[0].Query.Get("key") != "" {
		t.Fatalf("key must not be recorded")
	}
}

func TestMockPlaces_RejectsWrongKey(t *testing.T) {
	t.Parallel()

	srv := mockplaces.New()
	srv.RequireKey("secret")
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	got := getJSON(t, ts.URL+"/maps/api/place/details/json?place_id=p1&key=nope")
	if got["status"] != "REQUEST_DENIED" {
		t.Fatalf("expected REQUEST_DENIED, got %v", got["status"])
	}
}

func TestMockPlaces_ForcedStatus(t *testing.T) {
	t.Parallel()

	srv := mockplaces.New()
	srv.AddPlace(mockplaces.Place{PlaceID: "p1", Name: "Cafe Test"})
	srv.ForceStatus("textsearch", "OVER_QUERY_LIMIT")
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	got := getJSON(t, ts.URL+"/maps/api/place/textsearch/json?query=Cafe+Test")
	if got["status"] != "OVER_QUERY_LIMIT" {
		t.Fatalf("expected OVER_QUERY_LIMIT, got %v", got["status"])
	}

	srv.ForceStatus("textsearch", "")
	got = getJSON(t, ts.URL+"/maps/api/place/textsearch/json?query=Cafe+Test")
	if got["status"] != "OK" {
		t.Fatalf("expected OK after clearing override, got %v", got["status"])
	}
}

func TestMockPlaces_FixtureWithoutPlaceID(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "bad.json"), []byte(`{"name":"No Id"}`), 0o600); err != nil {
		t.Fatalf("write fixture: %v", err)
	}
	if err := mockplaces.New().LoadFixtures(dir); err == nil {
		t.Fatalf("expected error for fixture without place_id")
	}
}
