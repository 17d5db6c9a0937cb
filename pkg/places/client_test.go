package places_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/gastromap/location-enricher/pkg/enrich"
	"github.com/gastromap/location-enricher/pkg/mockplaces"
	"github.com/gastromap/location-enricher/pkg/pipeline/core"
	"github.com/gastromap/location-enricher/pkg/places"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ptr[T any](v T) *T { return &v }

const testKey = "test-places-key"

func newMock(t *testing.T) (*mockplaces.Server, *places.Client) {
	t.Helper()

	srv := mockplaces.New()
	srv.RequireKey(testKey)
	srv.AddPlace(mockplaces.Place{
		PlaceID:          "place-cafe",
		Name:             "Cafe Test",
		FormattedAddress: "Rynek Glowny 1, 31-042 Krakow, Poland",
		Lat:              ptr(50.06),
		Lng:              ptr(19.94),
		Rating:           ptr(4.6),
		RatingsTotal:     ptr(321),
		PriceLevel:       ptr(2),
		Website:          "https://cafetest.example",
		Phone:            "+48 12 345 67 89",
		WeekdayText:      []string{"Monday: 8:00 AM – 6:00 PM", "Tuesday: 8:00 AM – 6:00 PM"},
		OpenNow:          ptr(true),
		PhotoRefs:        []string{"ref-1", "ref-2"},
	})

	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)

	client := places.NewClient(testKey,
		places.WithBaseURL(ts.URL+"/maps/api/place"),
		places.WithRateLimiter(nil),
	)
	return srv, client
}

func TestSearchPlace_FirstResult(t *testing.T) {
	srv, client := newMock(t)

	got, err := client.SearchPlace(context.Background(), "Cafe Test, Krakow, Poland")
	require.NoError(t, err)
	require.NotNil(t, got)

	assert.Equal(t, "place-cafe", got.PlaceID)
	assert.Equal(t, &enrich.LatLng{Lat: 50.06, Lng: 19.94}, got.Location)
	assert.Equal(t, []string{"ref-1", "ref-2"}, got.PhotoRefs)
	assert.Equal(t, 2, *got.PriceLevel)

	calls := srv.Calls()
	require.Len(t, calls, 1)
	assert.Equal(t, "/maps/api/place/textsearch/json", calls[0].Path)
	assert.Equal(t, "Cafe Test, Krakow, Poland", calls[0].Query.Get("query"))
}

func TestSearchPlace_ZeroResults(t *testing.T) {
	_, client := newMock(t)

	got, err := client.SearchPlace(context.Background(), "Nowhere Bistro, Oslo, Norway")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestSearchPlace_OverQueryLimit(t *testing.T) {
	srv, client := newMock(t)
	srv.ForceStatus("textsearch", "OVER_QUERY_LIMIT")

	_, err := client.SearchPlace(context.Background(), "Cafe Test")
	require.Error(t, err)
	assert.True(t, enrich.IsQuotaExceeded(err))
	assert.Contains(t, err.Error(), "quota exceeded")
}

func TestSearchPlace_RequestDenied(t *testing.T) {
	srv, _ := newMock(t)
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	client := places.NewClient("wrong-key", places.WithBaseURL(ts.URL+"/maps/api/place"), places.WithRateLimiter(nil))
	_, err := client.SearchPlace(context.Background(), "Cafe Test")
	require.Error(t, err)

	assert.True(t, enrich.IsProviderError(err))
	assert.Equal(t, "google places error: REQUEST_DENIED: The provided API key is invalid.", err.Error())
}

func TestSearchPlace_LocationBias(t *testing.T) {
	srv, _ := newMock(t)
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	client := places.NewClient(testKey,
		places.WithBaseURL(ts.URL+"/maps/api/place"),
		places.WithRateLimiter(nil),
		places.WithLocationBias(places.LocationBias{Lat: 50.06, Lng: 19.94, RadiusM: 5000}),
		places.WithLanguage("pl"),
	)
	_, err := client.SearchPlace(context.Background(), "Cafe Test")
	require.NoError(t, err)

	calls := srv.Calls()
	require.NotEmpty(t, calls)
	q := calls[len(calls)-1].Query
	assert.Equal(t, "50.06,19.94", q.Get("location"))
	assert.Equal(t, "5000", q.Get("radius"))
	assert.Equal(t, "pl", q.Get("language"))
	assert.Empty(t, q.Get("key"))
}

func TestPlaceDetails(t *testing.T) {
	srv, client := newMock(t)

	got, err := client.PlaceDetails(context.Background(), "place-cafe")
	require.NoError(t, err)
	require.NotNil(t, got)

	assert.Equal(t, 4.6, *got.Rating)
	assert.Equal(t, 321, *got.RatingsTotal)
	assert.Equal(t, "https://cafetest.example", got.Website)
	assert.Equal(t, "+48 12 345 67 89", got.Phone)
	assert.Len(t, got.WeekdayText, 2)
	assert.True(t, *got.OpenNow)
	assert.Equal(t, "Rynek Glowny 1, 31-042 Krakow, Poland", got.FormattedAddress)

	calls := srv.Calls()
	require.Len(t, calls, 1)
	fields := strings.Split(calls[0].Query.Get("fields"), ",")
	assert.ElementsMatch(t, []string{
		"name", "rating", "user_ratings_total", "formatted_address", "geometry",
		"opening_hours", "photos", "website", "formatted_phone_number", "price_level",
	}, fields)
}

func TestPlaceDetails_NonOKIsNil(t *testing.T) {
	_, client := newMock(t)

	got, err := client.PlaceDetails(context.Background(), "unknown-place")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestNotConfiguredMakesNoCalls(t *testing.T) {
	srv, _ := newMock(t)
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	client := places.NewClient("  ", places.WithBaseURL(ts.URL+"/maps/api/place"))
	assert.False(t, client.Configured())

	_, err := client.SearchPlace(context.Background(), "Cafe Test")
	assert.True(t, enrich.IsNotConfigured(err))
	_, err = client.PlaceDetails(context.Background(), "place-cafe")
	assert.True(t, enrich.IsNotConfigured(err))
	assert.Empty(t, client.PhotoURL("ref-1", 400))
	assert.Empty(t, srv.Calls())
}

func TestPhotoURL(t *testing.T) {
	client := places.NewClient("k3y", places.WithBaseURL("https://maps.example/place/"))

	u, err := url.Parse(client.PhotoURL("ref-1", 0))
	require.NoError(t, err)
	assert.Equal(t, "/place/photo", u.Path)
	assert.Equal(t, "800", u.Query().Get("maxwidth"))
	assert.Equal(t, "ref-1", u.Query().Get("photo_reference"))
	assert.Equal(t, "k3y", u.Query().Get("key"))

	assert.Empty(t, client.PhotoURL("", 400))
}

func TestHTTPErrors(t *testing.T) {
	tests := []struct {
		name  string
		code  int
		check func(t *testing.T, err error)
	}{
		{
			name: "429 is quota",
			code: http.StatusTooManyRequests,
			check: func(t *testing.T, err error) {
				assert.True(t, enrich.IsQuotaExceeded(err))
			},
		},
		{
			name: "5xx is transient",
			code: http.StatusBadGateway,
			check: func(t *testing.T, err error) {
				var te *core.TransientError
				assert.ErrorAs(t, err, &te)
				var he *places.HTTPError
				require.ErrorAs(t, err, &he)
				assert.Equal(t, http.StatusBadGateway, he.StatusCode)
			},
		},
		{
			name: "4xx is a sanitized http error",
			code: http.StatusForbidden,
			check: func(t *testing.T, err error) {
				var he *places.HTTPError
				require.ErrorAs(t, err, &he)
				assert.NotContains(t, err.Error(), testKey)
				assert.Contains(t, err.Error(), "op=textsearch")
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv, _ := newMock(t)
			srv.ForceHTTPStatus("textsearch", tt.code)
			ts := httptest.NewServer(srv.Handler())
			defer ts.Close()

			client := places.NewClient(testKey, places.WithBaseURL(ts.URL+"/maps/api/place"), places.WithRateLimiter(nil))
			_, err := client.SearchPlace(context.Background(), "Cafe Test")
			require.Error(t, err)
			tt.check(t, err)
		})
	}
}

func TestHTTPErrorRedactsEchoedKey(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "bad request for "+r.URL.RequestURI(), http.StatusBadRequest)
	}))
	defer ts.Close()

	client := places.NewClient(testKey, places.WithBaseURL(ts.URL), places.WithRateLimiter(nil))
	_, err := client.SearchPlace(context.Background(), "Cafe Test")
	require.Error(t, err)
	assert.NotContains(t, err.Error(), testKey)
	assert.Contains(t, err.Error(), "key=<redacted>")
}

func TestTransportErrorRedactsKey(t *testing.T) {
	ts := httptest.NewServer(http.NotFoundHandler())
	base := ts.URL
	ts.Close()

	client := places.NewClient(testKey, places.WithBaseURL(base), places.WithRateLimiter(nil))
	_, err := client.SearchPlace(context.Background(), "Cafe Test")
	require.Error(t, err)
	assert.NotContains(t, err.Error(), testKey)
}
