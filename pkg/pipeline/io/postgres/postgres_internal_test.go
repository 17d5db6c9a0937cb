package postgres

import (
	"context"
	"strings"
	"testing"

	"github.com/gastromap/location-enricher/pkg/enrich"
)

func TestBuildUpdate(t *testing.T) {
	lat, lng, rating := 50.06, 19.94, 4.5
	query, args, ok := buildUpdate("public.locations", "7", enrich.Delta{
		Latitude:     &lat,
		Longitude:    &lng,
		GoogleRating: &rating,
		OpeningHours: []string{"Monday: Closed"},
		Website:      "https://hamsa.pl",
	})
	if !ok {
		t.Fatalf("expected an update")
	}
	want := "UPDATE public.locations SET " +
		"latitude = CASE WHEN (latitude IS NULL OR longitude IS NULL OR (latitude = 0 AND longitude = 0)) THEN $2 ELSE latitude END, " +
		"longitude = CASE WHEN (latitude IS NULL OR longitude IS NULL OR (latitude = 0 AND longitude = 0)) THEN $3 ELSE longitude END, " +
		"google_rating = $4, " +
		"opening_hours = COALESCE(NULLIF(opening_hours, '{}'), $5), " +
		"website = COALESCE(NULLIF(website, ''), $6) " +
		"WHERE id::text = $1"
	if query != want {
		t.Fatalf("query:\n got %s\nwant %s", query, want)
	}
	if len(args) != 6 || args[0] != "7" || args[5] != "https://hamsa.pl" {
		t.Fatalf("unexpected args: %#v", args)
	}
}

func TestBuildUpdate_CoordinatesShareOneCondition(t *testing.T) {
	lat, lng := 50.06, 19.94
	query, args, ok := buildUpdate("locations", "7", enrich.Delta{Latitude: &lat, Longitude: &lng})
	if !ok {
		t.Fatalf("expected an update")
	}
	if strings.Contains(query, "COALESCE(latitude") || strings.Contains(query, "COALESCE(longitude") {
		t.Fatalf("columns must not be coalesced independently: %s", query)
	}
	if got := strings.Count(query, missingCoordinates); got != 2 {
		t.Fatalf("want the pair condition on both columns, got %d in %s", got, query)
	}
	if !strings.Contains(missingCoordinates, "latitude = 0 AND longitude = 0") {
		t.Fatalf("0,0 must count as missing: %s", missingCoordinates)
	}
	if len(args) != 3 || args[1] != lat || args[2] != lng {
		t.Fatalf("unexpected args: %#v", args)
	}
}

func TestBuildUpdate_SkipsHalfCoordinates(t *testing.T) {
	lat := 50.06
	query, _, ok := buildUpdate("locations", "7", enrich.Delta{Latitude: &lat, Phone: "+48 12 000 00 00"})
	if !ok {
		t.Fatalf("expected an update")
	}
	if strings.Contains(query, "latitude") {
		t.Fatalf("lone latitude must not be written: %s", query)
	}
}

func TestBuildUpdate_EmptyDelta(t *testing.T) {
	if _, _, ok := buildUpdate("locations", "7", enrich.Delta{}); ok {
		t.Fatalf("empty delta should produce no update")
	}
}

func TestNewRepository_ValidatesTable(t *testing.T) {
	tests := []struct {
		table   string
		wantErr bool
	}{
		{table: "", wantErr: false},
		{table: "locations", wantErr: false},
		{table: "public.locations", wantErr: false},
		{table: "locations; DROP TABLE users", wantErr: true},
		{table: "1locations", wantErr: true},
	}
	for _, tt := range tests {
		repo, err := NewRepository(nil, tt.table)
		if (err != nil) != tt.wantErr {
			t.Fatalf("NewRepository(%q) err=%v wantErr=%t", tt.table, err, tt.wantErr)
		}
		if err == nil && tt.table == "" && repo.table != DefaultTable {
			t.Fatalf("empty table should default, got %q", repo.table)
		}
	}
}

func TestApplyResults_LengthMismatch(t *testing.T) {
	repo, err := NewRepository(nil, "")
	if err != nil {
		t.Fatal(err)
	}
	_, err = repo.ApplyResults(context.Background(), []enrich.LocationRecord{{ID: "1"}}, nil)
	if err == nil || !strings.Contains(err.Error(), "0 results for 1 records") {
		t.Fatalf("expected mismatch error, got %v", err)
	}
}
