// Package schema defines the flat result row written by file, database and stream sinks, and
// the file formats the CLI reads and writes.
package schema

import (
	"path/filepath"
	"strconv"
	"strings"

	"github.com/gastromap/location-enricher/pkg/enrich"
)

// Format is the encoding of a location or result file.
type Format string

const (
	FormatCSV    Format = "csv"
	FormatJSON   Format = "json"
	FormatSQLite Format = "sqlite"
)

func NormalizeFormat(raw string) Format {
	s := strings.TrimPrefix(strings.TrimSpace(strings.ToLower(raw)), ".")
	switch s {
	case "json":
		return FormatJSON
	case "db", "sqlite", "sqlite3":
		return FormatSQLite
	default:
		return FormatCSV
	}
}

// FormatForPath picks the format from override when set, else from the file extension.
func FormatForPath(path, override string) Format {
	if strings.TrimSpace(override) != "" {
		return NormalizeFormat(override)
	}
	return NormalizeFormat(filepath.Ext(path))
}

// Field captures the minimal behavior-relevant schema fields.
type Field struct {
	Name     string
	Type     string
	Nullable bool
}

// Contract is the logical schema of a result row.
type Contract struct {
	Fields []Field
}

// ResultContract returns the stable result row schema. Column order matches Header.
func ResultContract() Contract {
	return Contract{Fields: []Field{
		{Name: "id", Type: "string", Nullable: true},
		{Name: "name", Type: "string"},
		{Name: "address", Type: "string", Nullable: true},
		{Name: "city", Type: "string"},
		{Name: "country", Type: "string"},
		{Name: "success", Type: "boolean"},
		{Name: "fields_enriched", Type: "string", Nullable: true},
		{Name: "errors", Type: "string", Nullable: true},
		{Name: "timestamp", Type: "timestamp"},
		{Name: "latitude", Type: "double", Nullable: true},
		{Name: "longitude", Type: "double", Nullable: true},
		{Name: "google_rating", Type: "double", Nullable: true},
		{Name: "google_ratings_total", Type: "integer", Nullable: true},
		{Name: "opening_hours", Type: "string", Nullable: true},
		{Name: "open_now", Type: "boolean", Nullable: true},
		{Name: "image_url", Type: "string", Nullable: true},
		{Name: "website", Type: "string", Nullable: true},
		{Name: "price_range", Type: "string", Nullable: true},
		{Name: "phone", Type: "string", Nullable: true},
		{Name: "enriched_address", Type: "string", Nullable: true},
		{Name: "google_place_id", Type: "string", Nullable: true},
		{Name: "description", Type: "string", Nullable: true},
	}}
}

// Header returns the stable CSV header for Row.
func Header() []string {
	fields := ResultContract().Fields
	out := make([]string, len(fields))
	for i, f := range fields {
		out[i] = f.Name
	}
	return out
}

// ListSep joins multi-valued columns (fields, errors, opening hours).
const ListSep = " | "

// Row is one result flattened to strings. Empty strings mean "no value".
type Row struct {
	ID              string
	Name            string
	Address         string
	City            string
	Country         string
	Success         string
	FieldsEnriched  string
	Errors          string
	Timestamp       string
	Latitude        string
	Longitude       string
	GoogleRating    string
	RatingsTotal    string
	OpeningHours    string
	OpenNow         string
	ImageURL        string
	Website         string
	PriceRange      string
	Phone           string
	EnrichedAddress string
	GooglePlaceID   string
	Description     string
}

// RowFromResult flattens r. Only the enriched delta is written to the value columns; the
// original record contributes its identity columns.
func RowFromResult(r *enrich.Result) Row {
	o, d := r.Original, r.Enriched
	return Row{
		ID:              o.ID,
		Name:            o.Name,
		Address:         o.Address,
		City:            o.City,
		Country:         o.Country,
		Success:         strconv.FormatBool(r.Metadata.Success),
		FieldsEnriched:  strings.Join(r.Metadata.FieldsEnriched, ListSep),
		Errors:          strings.Join(r.Metadata.Errors, ListSep),
		Timestamp:       r.Metadata.Timestamp,
		Latitude:        formatFloat(d.Latitude),
		Longitude:       formatFloat(d.Longitude),
		GoogleRating:    formatFloat(d.GoogleRating),
		RatingsTotal:    formatInt(d.GoogleRatingsTotal),
		OpeningHours:    strings.Join(d.OpeningHours, ListSep),
		OpenNow:         formatBool(d.OpenNow),
		ImageURL:        d.ImageURL,
		Website:         d.Website,
		PriceRange:      d.PriceRange,
		Phone:           d.Phone,
		EnrichedAddress: d.Address,
		GooglePlaceID:   d.GooglePlaceID,
		Description:     d.Description,
	}
}

// Values returns the row in Header order.
func (r Row) Values() []string {
	return []string{
		r.ID,
		r.Name,
		r.Address,
		r.City,
		r.Country,
		r.Success,
		r.FieldsEnriched,
		r.Errors,
		r.Timestamp,
		r.Latitude,
		r.Longitude,
		r.GoogleRating,
		r.RatingsTotal,
		r.OpeningHours,
		r.OpenNow,
		r.ImageURL,
		r.Website,
		r.PriceRange,
		r.Phone,
		r.EnrichedAddress,
		r.GooglePlaceID,
		r.Description,
	}
}

// Record returns the row keyed by column name. Empty values map to nil so nullable columns
// read as missing rather than "".
func (r Row) Record() map[string]any {
	header := Header()
	values := r.Values()
	out := make(map[string]any, len(header))
	for i, name := range header {
		if strings.TrimSpace(values[i]) == "" {
			out[name] = nil
			continue
		}
		out[name] = values[i]
	}
	return out
}

func formatFloat(v *float64) string {
	if v == nil {
		return ""
	}
	return strconv.FormatFloat(*v, 'f', -1, 64)
}

func formatInt(v *int) string {
	if v == nil {
		return ""
	}
	return strconv.Itoa(*v)
}

func formatBool(v *bool) string {
	if v == nil {
		return ""
	}
	return strconv.FormatBool(*v)
}
