// Package enrich defines the location enrichment domain: the venue record being enriched,
// the per-run options, the result envelope and the capabilities the engine depends on.
package enrich

import (
	"encoding/json"
	"slices"
	"strings"
	"time"
)

// Canonical field names reported in Metadata.FieldsEnriched.
const (
	FieldCoordinates  = "coordinates"
	FieldRating       = "rating"
	FieldOpeningHours = "opening_hours"
	FieldPhotos       = "photos"
	FieldWebsite      = "website"
	FieldPriceRange   = "price_range"
	FieldPhone        = "phone"
	FieldAddress      = "address"
	FieldDescription  = "description"
)

// SourceGooglePlaces is the Metadata.Source value for results produced by the engine.
const SourceGooglePlaces = "google_places"

// MsgPlaceNotFound is recorded when the provider has no match for a venue.
const MsgPlaceNotFound = "Place not found in Google Maps"

// LocationRecord is a venue as owned by the caller. The pipeline never mutates it.
type LocationRecord struct {
	ID      string `json:"id,omitempty"`
	Name    string `json:"name"`
	Address string `json:"address,omitempty"`
	City    string `json:"city"`
	Country string `json:"country"`

	Latitude  *float64 `json:"latitude,omitempty"`
	Longitude *float64 `json:"longitude,omitempty"`

	Website      string   `json:"website,omitempty"`
	ImageURL     string   `json:"image_url,omitempty"`
	PriceRange   string   `json:"price_range,omitempty"`
	Phone        string   `json:"phone,omitempty"`
	OpeningHours []string `json:"opening_hours,omitempty"`
	Description  string   `json:"description,omitempty"`

	GooglePlaceID      string   `json:"google_place_id,omitempty"`
	GoogleRating       *float64 `json:"google_rating,omitempty"`
	GoogleRatingsTotal *int     `json:"google_ratings_total,omitempty"`
}

// Clone returns a deep copy of l.
func (l LocationRecord) Clone() LocationRecord {
	out := l
	out.Latitude = clonePtr(l.Latitude)
	out.Longitude = clonePtr(l.Longitude)
	out.GoogleRating = clonePtr(l.GoogleRating)
	out.GoogleRatingsTotal = clonePtr(l.GoogleRatingsTotal)
	out.OpeningHours = slices.Clone(l.OpeningHours)
	return out
}

// HasCoordinates reports whether both latitude and longitude are set and non-zero.
func (l LocationRecord) HasCoordinates() bool {
	return l.Latitude != nil && l.Longitude != nil && (*l.Latitude != 0 || *l.Longitude != 0)
}

// SearchQuery joins the non-empty identity fields in name, address, city, country order.
func (l LocationRecord) SearchQuery() string {
	parts := make([]string, 0, 4)
	for _, v := range []string{l.Name, l.Address, l.City, l.Country} {
		if v = strings.TrimSpace(v); v != "" {
			parts = append(parts, v)
		}
	}
	return strings.Join(parts, ", ")
}

func clonePtr[T any](p *T) *T {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

// Options toggles which fields an enrichment pass may resolve.
type Options struct {
	EnrichCoordinates  bool `json:"enrichCoordinates" yaml:"enrichCoordinates"`
	EnrichRating       bool `json:"enrichRating" yaml:"enrichRating"`
	EnrichOpeningHours bool `json:"enrichOpeningHours" yaml:"enrichOpeningHours"`
	EnrichPhotos       bool `json:"enrichPhotos" yaml:"enrichPhotos"`
	EnrichWebsite      bool `json:"enrichWebsite" yaml:"enrichWebsite"`
	EnrichPriceRange   bool `json:"enrichPriceRange" yaml:"enrichPriceRange"`
	EnrichDescription  bool `json:"enrichDescription" yaml:"enrichDescription"`

	// DelayMs is the pause between consecutive items of a sequential batch.
	DelayMs int `json:"delayMs" yaml:"delayMs"`
}

// DefaultDelayMs is the default pause between sequential batch items.
const DefaultDelayMs = 200

// DefaultOptions returns the options used when a caller does not override them.
func DefaultOptions() Options {
	return Options{
		EnrichCoordinates: true,
		EnrichRating:      true,
		EnrichPhotos:      true,
		EnrichWebsite:     true,
		EnrichPriceRange:  true,
		DelayMs:           DefaultDelayMs,
	}
}

// Delay returns DelayMs as a duration. Negative values are treated as zero.
func (o Options) Delay() time.Duration {
	if o.DelayMs <= 0 {
		return 0
	}
	return time.Duration(o.DelayMs) * time.Millisecond
}

// UnmarshalJSON decodes on top of DefaultOptions so omitted keys keep their defaults.
func (o *Options) UnmarshalJSON(b []byte) error {
	type plain Options
	out := plain(DefaultOptions())
	if err := json.Unmarshal(b, &out); err != nil {
		return err
	}
	*o = Options(out)
	return nil
}

// Delta holds the values discovered by one enrichment pass. Nil/empty fields were not resolved.
type Delta struct {
	Latitude           *float64 `json:"latitude,omitempty"`
	Longitude          *float64 `json:"longitude,omitempty"`
	GoogleRating       *float64 `json:"google_rating,omitempty"`
	GoogleRatingsTotal *int     `json:"google_ratings_total,omitempty"`
	OpeningHours       []string `json:"opening_hours,omitempty"`
	OpenNow            *bool    `json:"open_now,omitempty"`
	ImageURL           string   `json:"image_url,omitempty"`
	Website            string   `json:"website,omitempty"`
	PriceRange         string   `json:"price_range,omitempty"`
	Phone              string   `json:"phone,omitempty"`
	Address            string   `json:"address,omitempty"`
	GooglePlaceID      string   `json:"google_place_id,omitempty"`
	Description        string   `json:"description,omitempty"`
}

// IsEmpty reports whether d carries no values.
func (d Delta) IsEmpty() bool {
	return d.Latitude == nil && d.Longitude == nil &&
		d.GoogleRating == nil && d.GoogleRatingsTotal == nil &&
		len(d.OpeningHours) == 0 && d.OpenNow == nil &&
		d.ImageURL == "" && d.Website == "" && d.PriceRange == "" &&
		d.Phone == "" && d.Address == "" && d.GooglePlaceID == "" &&
		d.Description == ""
}

// Apply returns a copy of l with the delta merged in. Values already present on l are kept,
// except the Google rating pair which is always refreshed.
func (d Delta) Apply(l LocationRecord) LocationRecord {
	out := l.Clone()
	if !out.HasCoordinates() && d.Latitude != nil && d.Longitude != nil {
		out.Latitude = clonePtr(d.Latitude)
		out.Longitude = clonePtr(d.Longitude)
	}
	if d.GoogleRating != nil {
		out.GoogleRating = clonePtr(d.GoogleRating)
	}
	if d.GoogleRatingsTotal != nil {
		out.GoogleRatingsTotal = clonePtr(d.GoogleRatingsTotal)
	}
	if len(out.OpeningHours) == 0 && len(d.OpeningHours) > 0 {
		out.OpeningHours = slices.Clone(d.OpeningHours)
	}
	setIfEmpty(&out.ImageURL, d.ImageURL)
	setIfEmpty(&out.Website, d.Website)
	setIfEmpty(&out.PriceRange, d.PriceRange)
	setIfEmpty(&out.Phone, d.Phone)
	setIfEmpty(&out.Address, d.Address)
	setIfEmpty(&out.GooglePlaceID, d.GooglePlaceID)
	setIfEmpty(&out.Description, d.Description)
	return out
}

func setIfEmpty(dst *string, v string) {
	if strings.TrimSpace(*dst) == "" && v != "" {
		*dst = v
	}
}

// Metadata describes how an enrichment pass went.
type Metadata struct {
	Success        bool     `json:"success"`
	Source         string   `json:"source"`
	Timestamp      string   `json:"timestamp"`
	FieldsEnriched []string `json:"fieldsEnriched"`
	Errors         []string `json:"errors"`
}

// Result is the output of enriching one LocationRecord.
type Result struct {
	Original LocationRecord `json:"original"`
	Enriched Delta          `json:"enriched"`
	Metadata Metadata       `json:"metadata"`
}

// NewResult starts an empty result for l stamped with now.
func NewResult(l LocationRecord, now time.Time) *Result {
	return &Result{
		Original: l.Clone(),
		Metadata: Metadata{
			Source:         SourceGooglePlaces,
			Timestamp:      now.UTC().Format(time.RFC3339),
			FieldsEnriched: []string{},
			Errors:         []string{},
		},
	}
}

// FailedResult builds an unsuccessful result carrying a single error message.
func FailedResult(l LocationRecord, now time.Time, msg string) *Result {
	r := NewResult(l, now)
	r.AddError(msg)
	return r
}

// MarkField records name as enriched. Duplicate names are ignored.
func (r *Result) MarkField(name string) {
	if slices.Contains(r.Metadata.FieldsEnriched, name) {
		return
	}
	r.Metadata.FieldsEnriched = append(r.Metadata.FieldsEnriched, name)
}

// AddError appends a human-readable error message.
func (r *Result) AddError(msg string) {
	msg = strings.TrimSpace(msg)
	if msg == "" {
		return
	}
	r.Metadata.Errors = append(r.Metadata.Errors, msg)
}

// Finalize sets Success from FieldsEnriched.
func (r *Result) Finalize() *Result {
	r.Metadata.Success = len(r.Metadata.FieldsEnriched) > 0
	return r
}
