package enrich

import "context"

// LatLng is a WGS84 coordinate pair.
type LatLng struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// PlaceSummary is the first text-search candidate for a venue.
type PlaceSummary struct {
	PlaceID          string   `json:"place_id"`
	Name             string   `json:"name"`
	FormattedAddress string   `json:"formatted_address,omitempty"`
	Location         *LatLng  `json:"location,omitempty"`
	Rating           *float64 `json:"rating,omitempty"`
	RatingsTotal     *int     `json:"user_ratings_total,omitempty"`
	PriceLevel       *int     `json:"price_level,omitempty"`
	PhotoRefs        []string `json:"photo_refs,omitempty"`
}

// PlaceDetails is the richer record returned for a known place id.
type PlaceDetails struct {
	PlaceID          string   `json:"place_id"`
	Name             string   `json:"name"`
	FormattedAddress string   `json:"formatted_address,omitempty"`
	Location         *LatLng  `json:"location,omitempty"`
	Rating           *float64 `json:"rating,omitempty"`
	RatingsTotal     *int     `json:"user_ratings_total,omitempty"`
	WeekdayText      []string `json:"weekday_text,omitempty"`
	OpenNow          *bool    `json:"open_now,omitempty"`
	PhotoRefs        []string `json:"photo_refs,omitempty"`
	Website          string   `json:"website,omitempty"`
	Phone            string   `json:"formatted_phone_number,omitempty"`
	PriceLevel       *int     `json:"price_level,omitempty"`
}

// Source is the places capability the engine enriches from. It is satisfied by the direct
// Google Places client and by the remote proxy client.
type Source interface {
	// Configured reports whether a credential (or proxy endpoint) is available.
	Configured() bool
	// SearchPlace returns the first match for query, or nil when there is none.
	SearchPlace(ctx context.Context, query string) (*PlaceSummary, error)
	// PlaceDetails returns details for placeID, or nil when the provider has none.
	PlaceDetails(ctx context.Context, placeID string) (*PlaceDetails, error)
	// PhotoURL builds a fetchable URL for a photo reference, or "" when it cannot.
	PhotoURL(ref string, maxWidth int) string
}

// Describer writes a short venue description from the record and any details found.
type Describer interface {
	DescribeVenue(ctx context.Context, record LocationRecord, details *PlaceDetails) (string, error)
}

// ConvertPriceLevel maps a provider price level (0-4) to the "$".."$$$$" scale.
// It returns "" for nil or out-of-range input.
func ConvertPriceLevel(level *int) string {
	if level == nil {
		return ""
	}
	switch *level {
	case 0, 1:
		return "$"
	case 2:
		return "$$"
	case 3:
		return "$$$"
	case 4:
		return "$$$$"
	default:
		return ""
	}
}
