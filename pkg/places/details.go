package places

import (
	"context"
	"net/url"
	"strings"

	"github.com/gastromap/location-enricher/pkg/enrich"
)

type detailsResult struct {
	PlaceID              string    `json:"place_id"`
	Name                 string    `json:"name"`
	FormattedAddress     string    `json:"formatted_address"`
	Geometry             *geometry `json:"geometry"`
	Rating               *float64  `json:"rating"`
	UserRatingsTotal     *int      `json:"user_ratings_total"`
	PriceLevel           *int      `json:"price_level"`
	Photos               []photo   `json:"photos"`
	Website              string    `json:"website"`
	FormattedPhoneNumber string    `json:"formatted_phone_number"`
	OpeningHours         *struct {
		OpenNow     *bool    `json:"open_now"`
		WeekdayText []string `json:"weekday_text"`
	} `json:"opening_hours"`
}

type detailsResponse struct {
	Status       string        `json:"status"`
	ErrorMessage string        `json:"error_message"`
	Result       detailsResult `json:"result"`
}

// PlaceDetails fetches the details record for placeID. Any non-OK provider status yields
// (nil, nil); transport and HTTP failures are returned as errors.
func (c *Client) PlaceDetails(ctx context.Context, placeID string) (*enrich.PlaceDetails, error) {
	if !c.Configured() {
		return nil, c.notConfigured()
	}
	placeID = strings.TrimSpace(placeID)
	if placeID == "" {
		return nil, nil
	}

	q := url.Values{}
	q.Set("place_id", placeID)
	q.Set("fields", detailsFields)

	var resp detailsResponse
	if err := c.getJSON(ctx, "details", "details/json", q, &resp); err != nil {
		return nil, err
	}
	if resp.Status != "OK" {
		return nil, nil
	}

	r := resp.Result
	out := &enrich.PlaceDetails{
		PlaceID:          r.PlaceID,
		Name:             r.Name,
		FormattedAddress: r.FormattedAddress,
		Location:         r.Geometry.latLng(),
		Rating:           r.Rating,
		RatingsTotal:     r.UserRatingsTotal,
		PriceLevel:       r.PriceLevel,
		PhotoRefs:        photoRefs(r.Photos),
		Website:          strings.TrimSpace(r.Website),
		Phone:            strings.TrimSpace(r.FormattedPhoneNumber),
	}
	if out.PlaceID == "" {
		out.PlaceID = placeID
	}
	if r.OpeningHours != nil {
		out.OpenNow = r.OpeningHours.OpenNow
		out.WeekdayText = r.OpeningHours.WeekdayText
	}
	return out, nil
}
