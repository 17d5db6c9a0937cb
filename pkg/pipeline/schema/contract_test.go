package schema_test

import (
	"testing"

	"github.com/gastromap/location-enricher/pkg/enrich"
	"github.com/gastromap/location-enricher/pkg/pipeline/schema"
)

func TestNormalizeFormat(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want schema.Format
	}{
		{name: "csv default", in: "", want: schema.FormatCSV},
		{name: "csv explicit", in: "csv", want: schema.FormatCSV},
		{name: "json", in: "JSON", want: schema.FormatJSON},
		{name: "extension", in: ".json", want: schema.FormatJSON},
		{name: "sqlite", in: "db", want: schema.FormatSQLite},
		{name: "sqlite3", in: "sqlite3", want: schema.FormatSQLite},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := schema.NormalizeFormat(tt.in); got != tt.want {
				t.Fatalf("NormalizeFormat(%q)=%q want=%q", tt.in, got, tt.want)
			}
		})
	}
}

func TestFormatForPath(t *testing.T) {
	if got := schema.FormatForPath("out/results.db", ""); got != schema.FormatSQLite {
		t.Fatalf("got %q", got)
	}
	if got := schema.FormatForPath("out/results.db", "json"); got != schema.FormatJSON {
		t.Fatalf("override ignored: got %q", got)
	}
}

func TestHeaderMatchesRowValues(t *testing.T) {
	if got, want := len(schema.Row{}.Values()), len(schema.Header()); got != want {
		t.Fatalf("Row.Values has %d columns, Header has %d", got, want)
	}
}

func TestRowFromResult(t *testing.T) {
	lat, lng, rating, total, open := 50.06, 19.94, 4.6, 812, true
	res := &enrich.Result{
		Original: enrich.LocationRecord{ID: "42", Name: "Cafe Mleczarnia", City: "Krakow", Country: "Poland"},
		Enriched: enrich.Delta{
			Latitude:           &lat,
			Longitude:          &lng,
			GoogleRating:       &rating,
			GoogleRatingsTotal: &total,
			OpeningHours:       []string{"Monday: 8:00 AM - 10:00 PM", "Tuesday: Closed"},
			OpenNow:            &open,
			Address:            "Rabina Meiselsa 20, 31-058 Krakow, Poland",
		},
		Metadata: enrich.Metadata{
			Success:        true,
			Timestamp:      "2024-05-01T12:00:00Z",
			FieldsEnriched: []string{"coordinates", "rating"},
			Errors:         []string{},
		},
	}

	row := schema.RowFromResult(res)
	if row.Latitude != "50.06" || row.Longitude != "19.94" {
		t.Fatalf("coordinates: %q %q", row.Latitude, row.Longitude)
	}
	if row.RatingsTotal != "812" || row.GoogleRating != "4.6" || row.OpenNow != "true" {
		t.Fatalf("rating columns: %#v", row)
	}
	if row.FieldsEnriched != "coordinates | rating" {
		t.Fatalf("fields: %q", row.FieldsEnriched)
	}
	if row.OpeningHours != "Monday: 8:00 AM - 10:00 PM | Tuesday: Closed" {
		t.Fatalf("opening hours: %q", row.OpeningHours)
	}

	rec := row.Record()
	if rec["website"] != nil {
		t.Fatalf("empty column should be nil, got %#v", rec["website"])
	}
	if rec["enriched_address"] != "Rabina Meiselsa 20, 31-058 Krakow, Poland" {
		t.Fatalf("enriched_address: %#v", rec["enriched_address"])
	}
}
