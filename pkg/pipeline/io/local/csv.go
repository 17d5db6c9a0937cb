package local

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/gastromap/location-enricher/pkg/enrich"
	"github.com/gastromap/location-enricher/pkg/pipeline/schema"
)

// columnAliases maps accepted header spellings to record fields.
var columnAliases = map[string]string{
	"id":                   "id",
	"name":                 "name",
	"address":              "address",
	"street":               "address",
	"city":                 "city",
	"country":              "country",
	"lat":                  "latitude",
	"latitude":             "latitude",
	"lng":                  "longitude",
	"lon":                  "longitude",
	"longitude":            "longitude",
	"website":              "website",
	"url":                  "website",
	"image_url":            "image_url",
	"image":                "image_url",
	"price_range":          "price_range",
	"price":                "price_range",
	"phone":                "phone",
	"opening_hours":        "opening_hours",
	"description":          "description",
	"google_place_id":      "google_place_id",
	"place_id":             "google_place_id",
	"google_rating":        "google_rating",
	"google_ratings_total": "google_ratings_total",
}

var requiredColumns = []string{"name", "city", "country"}

// ReadLocationsCSV reads venue records from a CSV file with a header row. Header names are
// case-insensitive; name, city and country columns are required. Fully blank rows are skipped.
func ReadLocationsCSV(r io.Reader) ([]enrich.LocationRecord, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	index := make(map[string]int, len(header))
	for i, col := range header {
		key := strings.ToLower(strings.TrimSpace(strings.TrimPrefix(col, "\ufeff")))
		if field, ok := columnAliases[key]; ok {
			if _, dup := index[field]; !dup {
				index[field] = i
			}
		}
	}
	for _, col := range requiredColumns {
		if _, ok := index[col]; !ok {
			return nil, fmt.Errorf("missing required column %q", col)
		}
	}

	var out []enrich.LocationRecord
	for line := 2; ; line++ {
		rec, err := cr.Read()
		if err == io.EOF {
			return out, nil
		}
		if err != nil {
			return nil, fmt.Errorf("read row: %w", err)
		}
		if blank(rec) {
			continue
		}

		get := func(col string) string {
			i, ok := index[col]
			if !ok || i >= len(rec) {
				return ""
			}
			return strings.TrimSpace(rec[i])
		}

		loc := enrich.LocationRecord{
			ID:            get("id"),
			Name:          get("name"),
			Address:       get("address"),
			City:          get("city"),
			Country:       get("country"),
			Website:       get("website"),
			ImageURL:      get("image_url"),
			PriceRange:    get("price_range"),
			Phone:         get("phone"),
			Description:   get("description"),
			GooglePlaceID: get("google_place_id"),
		}
		if hours := get("opening_hours"); hours != "" {
			loc.OpeningHours = splitList(hours)
		}
		if loc.Latitude, err = parseFloat(get("latitude")); err != nil {
			return nil, fmt.Errorf("line %d: latitude: %w", line, err)
		}
		if loc.Longitude, err = parseFloat(get("longitude")); err != nil {
			return nil, fmt.Errorf("line %d: longitude: %w", line, err)
		}
		if loc.GoogleRating, err = parseFloat(get("google_rating")); err != nil {
			return nil, fmt.Errorf("line %d: google_rating: %w", line, err)
		}
		if raw := get("google_ratings_total"); raw != "" {
			n, err := strconv.Atoi(raw)
			if err != nil {
				return nil, fmt.Errorf("line %d: google_ratings_total: %w", line, err)
			}
			loc.GoogleRatingsTotal = &n
		}
		out = append(out, loc)
	}
}

// WriteResultsCSV writes results as a CSV with the stable schema.Header() ordering.
func WriteResultsCSV(w io.Writer, results []*enrich.Result) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(schema.Header()); err != nil {
		return err
	}
	for _, r := range results {
		if r == nil {
			continue
		}
		if err := cw.Write(schema.RowFromResult(r).Values()); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func parseFloat(raw string) (*float64, error) {
	if raw == "" {
		return nil, nil
	}
	v, err := strconv.ParseFloat(strings.ReplaceAll(raw, ",", "."), 64)
	if err != nil {
		return nil, err
	}
	return &v, nil
}

func splitList(raw string) []string {
	sep := schema.ListSep
	if !strings.Contains(raw, sep) {
		sep = ";"
	}
	var out []string
	for _, part := range strings.Split(raw, sep) {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func blank(rec []string) bool {
	for _, v := range rec {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}
