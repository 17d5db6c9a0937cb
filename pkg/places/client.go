// Package places is a client for the Google Places web service (text search, details and
// photo URLs). It implements enrich.Source.
package places

import (
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/gastromap/location-enricher/internal/ratelimit"
	"github.com/gastromap/location-enricher/pkg/enrich"
)

const (
	// DefaultBaseURL is the Places web service root.
	DefaultBaseURL = "https://maps.googleapis.com/maps/api/place"

	serviceName          = "google places"
	defaultRatePerSecond = 10
	defaultPhotoWidth    = 800
)

// detailsFields is the field mask requested from the details endpoint.
const detailsFields = "name,rating,user_ratings_total,formatted_address,geometry,opening_hours,photos,website,formatted_phone_number,price_level"

// HTTPDoer is the subset of *http.Client the client needs.
type HTTPDoer interface {
	Do(*http.Request) (*http.Response, error)
}

// LocationBias narrows text search to a circle around a point.
type LocationBias struct {
	Lat     float64
	Lng     float64
	RadiusM int
}

// Client calls the Places web service.
type Client struct {
	apiKey     string
	baseURL    string
	language   string
	bias       *LocationBias
	httpClient HTTPDoer
	limiter    *ratelimit.Limiter
}

var _ enrich.Source = (*Client)(nil)

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(c HTTPDoer) Option {
	return func(client *Client) {
		if c != nil {
			client.httpClient = c
		}
	}
}

// WithBaseURL points the client at a different Places root, e.g. a mock server.
func WithBaseURL(base string) Option {
	return func(client *Client) {
		if base = strings.TrimSpace(base); base != "" {
			client.baseURL = strings.TrimSuffix(base, "/")
		}
	}
}

// WithRateLimiter replaces the default process-wide limiter. Pass nil to disable limiting.
func WithRateLimiter(l *ratelimit.Limiter) Option {
	return func(client *Client) {
		client.limiter = l
	}
}

// WithLocationBias biases text search results toward a point.
func WithLocationBias(b LocationBias) Option {
	return func(client *Client) {
		if b.RadiusM > 0 {
			client.bias = &b
		}
	}
}

// WithLanguage sets the response language (e.g. "en", "pl").
func WithLanguage(lang string) Option {
	return func(client *Client) {
		client.language = strings.TrimSpace(lang)
	}
}

// NewClient creates a Places client. An empty apiKey yields an unconfigured client whose
// lookups fail with enrich.NotConfiguredError without touching the network.
func NewClient(apiKey string, opts ...Option) *Client {
	c := &Client{
		apiKey:     strings.TrimSpace(apiKey),
		baseURL:    DefaultBaseURL,
		httpClient: &http.Client{Timeout: 15 * time.Second},
		limiter:    ratelimit.New(serviceName, defaultRatePerSecond),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Configured reports whether an API key is set.
func (c *Client) Configured() bool {
	return c.apiKey != ""
}

// PhotoURL builds the fetchable URL for a photo reference. It returns "" without a reference
// or an API key.
func (c *Client) PhotoURL(ref string, maxWidth int) string {
	ref = strings.TrimSpace(ref)
	if ref == "" || !c.Configured() {
		return ""
	}
	if maxWidth <= 0 {
		maxWidth = defaultPhotoWidth
	}
	q := url.Values{}
	q.Set("maxwidth", strconv.Itoa(maxWidth))
	q.Set("photo_reference", ref)
	q.Set("key", c.apiKey)
	return c.baseURL + "/photo?" + q.Encode()
}

func (c *Client) notConfigured() error {
	return &enrich.NotConfiguredError{Service: serviceName}
}
