package enrich_test

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/gastromap/location-enricher/pkg/enrich"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ptr[T any](v T) *T { return &v }

func TestSearchQuery(t *testing.T) {
	tests := []struct {
		name string
		in   enrich.LocationRecord
		want string
	}{
		{
			name: "all fields",
			in:   enrich.LocationRecord{Name: "Cafe Test", Address: "Rynek 1", City: "Krakow", Country: "Poland"},
			want: "Cafe Test, Rynek 1, Krakow, Poland",
		},
		{
			name: "empty address skipped",
			in:   enrich.LocationRecord{Name: "Cafe Test", City: "Krakow", Country: "Poland"},
			want: "Cafe Test, Krakow, Poland",
		},
		{
			name: "whitespace trimmed",
			in:   enrich.LocationRecord{Name: "  Cafe Test ", Address: "  ", City: "Krakow "},
			want: "Cafe Test, Krakow",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.in.SearchQuery())
		})
	}
}

func TestCloneDoesNotAlias(t *testing.T) {
	in := enrich.LocationRecord{
		Name:         "Cafe",
		Latitude:     ptr(1.5),
		OpeningHours: []string{"Monday: 9-17"},
	}
	out := in.Clone()

	*out.Latitude = 9
	out.OpeningHours[0] = "changed"

	assert.Equal(t, 1.5, *in.Latitude)
	assert.Equal(t, "Monday: 9-17", in.OpeningHours[0])
}

func TestOptionsUnmarshalKeepsDefaults(t *testing.T) {
	var opts enrich.Options
	require.NoError(t, json.Unmarshal([]byte(`{"enrichPhotos":false,"enrichOpeningHours":true}`), &opts))

	want := enrich.DefaultOptions()
	want.EnrichPhotos = false
	want.EnrichOpeningHours = true
	assert.Equal(t, want, opts)
	assert.Equal(t, 200*time.Millisecond, opts.Delay())
}

func TestDefaultOptions(t *testing.T) {
	opts := enrich.DefaultOptions()
	assert.True(t, opts.EnrichCoordinates)
	assert.True(t, opts.EnrichRating)
	assert.False(t, opts.EnrichOpeningHours)
	assert.True(t, opts.EnrichPhotos)
	assert.True(t, opts.EnrichWebsite)
	assert.True(t, opts.EnrichPriceRange)
	assert.False(t, opts.EnrichDescription)
	assert.Equal(t, enrich.DefaultDelayMs, opts.DelayMs)
}

func TestResultMarkFieldAndFinalize(t *testing.T) {
	r := enrich.NewResult(enrich.LocationRecord{Name: "Cafe"}, time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC))
	assert.False(t, r.Finalize().Metadata.Success)
	assert.Equal(t, "2024-05-01T12:00:00Z", r.Metadata.Timestamp)

	r.MarkField(enrich.FieldWebsite)
	r.MarkField(enrich.FieldWebsite)
	r.AddError("  ")
	r.AddError("boom")

	r.Finalize()
	assert.True(t, r.Metadata.Success)
	assert.Equal(t, []string{enrich.FieldWebsite}, r.Metadata.FieldsEnriched)
	assert.Equal(t, []string{"boom"}, r.Metadata.Errors)
}

func TestResultJSONShape(t *testing.T) {
	r := enrich.NewResult(enrich.LocationRecord{Name: "Cafe", City: "Krakow", Country: "Poland"}, time.Unix(0, 0))
	r.Enriched.Latitude = ptr(50.06)
	r.Enriched.Longitude = ptr(19.94)
	r.MarkField(enrich.FieldCoordinates)
	r.Finalize()

	b, err := json.Marshal(r)
	require.NoError(t, err)

	var got map[string]any
	require.NoError(t, json.Unmarshal(b, &got))
	enriched := got["enriched"].(map[string]any)
	assert.Equal(t, 50.06, enriched["latitude"])
	assert.Equal(t, 19.94, enriched["longitude"])
	assert.Len(t, enriched, 2)

	meta := got["metadata"].(map[string]any)
	assert.Equal(t, true, meta["success"])
	assert.Equal(t, []any{"coordinates"}, meta["fieldsEnriched"])
	assert.Equal(t, []any{}, meta["errors"])
}

func TestDeltaApplyKeepsExistingValues(t *testing.T) {
	in := enrich.LocationRecord{
		Name:         "Cafe",
		Website:      "https://existing.example",
		GoogleRating: ptr(3.9),
	}
	d := enrich.Delta{
		Latitude:     ptr(50.06),
		Longitude:    ptr(19.94),
		Website:      "https://new.example",
		Phone:        "+48 12 000 00 00",
		GoogleRating: ptr(4.5),
	}

	out := d.Apply(in)
	assert.Equal(t, "https://existing.example", out.Website)
	assert.Equal(t, "+48 12 000 00 00", out.Phone)
	assert.Equal(t, 4.5, *out.GoogleRating)
	assert.Equal(t, 50.06, *out.Latitude)
	assert.Equal(t, 3.9, *in.GoogleRating)
	assert.False(t, d.IsEmpty())
	assert.True(t, enrich.Delta{}.IsEmpty())
}

func TestConvertPriceLevel(t *testing.T) {
	tests := []struct {
		in   *int
		want string
	}{
		{in: nil, want: ""},
		{in: ptr(0), want: "$"},
		{in: ptr(1), want: "$"},
		{in: ptr(2), want: "$$"},
		{in: ptr(3), want: "$$$"},
		{in: ptr(4), want: "$$$$"},
		{in: ptr(7), want: ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, enrich.ConvertPriceLevel(tt.in))
	}
}
