package places

import (
	"context"
	"net/url"
	"strconv"
	"strings"

	"github.com/gastromap/location-enricher/pkg/enrich"
)

type geometry struct {
	Location *struct {
		Lat float64 `json:"lat"`
		Lng float64 `json:"lng"`
	} `json:"location"`
}

func (g *geometry) latLng() *enrich.LatLng {
	if g == nil || g.Location == nil {
		return nil
	}
	return &enrich.LatLng{Lat: g.Location.Lat, Lng: g.Location.Lng}
}

type photo struct {
	PhotoReference string `json:"photo_reference"`
	Width          int    `json:"width"`
	Height         int    `json:"height"`
}

func photoRefs(photos []photo) []string {
	var out []string
	for _, p := range photos {
		if ref := strings.TrimSpace(p.PhotoReference); ref != "" {
			out = append(out, ref)
		}
	}
	return out
}

type searchResult struct {
	PlaceID          string    `json:"place_id"`
	Name             string    `json:"name"`
	FormattedAddress string    `json:"formatted_address"`
	Geometry         *geometry `json:"geometry"`
	Rating           *float64  `json:"rating"`
	UserRatingsTotal *int      `json:"user_ratings_total"`
	PriceLevel       *int      `json:"price_level"`
	Photos           []photo   `json:"photos"`
}

type searchResponse struct {
	Status       string         `json:"status"`
	ErrorMessage string         `json:"error_message"`
	Results      []searchResult `json:"results"`
}

// SearchPlace runs a text search and returns the first candidate. It returns (nil, nil) when
// the provider reports ZERO_RESULTS.
func (c *Client) SearchPlace(ctx context.Context, query string) (*enrich.PlaceSummary, error) {
	if !c.Configured() {
		return nil, c.notConfigured()
	}

	q := url.Values{}
	q.Set("query", strings.TrimSpace(query))
	if c.bias != nil {
		q.Set("location", strconv.FormatFloat(c.bias.Lat, 'f', -1, 64)+","+strconv.FormatFloat(c.bias.Lng, 'f', -1, 64))
		q.Set("radius", strconv.Itoa(c.bias.RadiusM))
	}

	var resp searchResponse
	if err := c.getJSON(ctx, "textsearch", "textsearch/json", q, &resp); err != nil {
		return nil, err
	}

	switch resp.Status {
	case "OK":
	case "ZERO_RESULTS":
		return nil, nil
	default:
		return nil, statusError(resp.Status, resp.ErrorMessage)
	}
	if len(resp.Results) == 0 {
		return nil, nil
	}

	r := resp.Results[0]
	return &enrich.PlaceSummary{
		PlaceID:          r.PlaceID,
		Name:             r.Name,
		FormattedAddress: r.FormattedAddress,
		Location:         r.Geometry.latLng(),
		Rating:           r.Rating,
		RatingsTotal:     r.UserRatingsTotal,
		PriceLevel:       r.PriceLevel,
		PhotoRefs:        photoRefs(r.Photos),
	}, nil
}
