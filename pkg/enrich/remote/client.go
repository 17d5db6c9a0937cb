package remote

import (
	"bytes"
	"context"
	"crypto/tls"
	"crypto/x509"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/gastromap/location-enricher/pkg/enrich"
	"github.com/gastromap/location-enricher/pkg/pipeline/core"
	"github.com/gastromap/location-enricher/pkg/pipeline/redact"
)

const maxBodyBytes = 16 << 20

// HTTPDoer is the subset of *http.Client the clients need.
type HTTPDoer interface {
	Do(*http.Request) (*http.Response, error)
}

type config struct {
	token      string
	photoTTL   time.Duration
	timeout    time.Duration
	caPath     string
	httpClient HTTPDoer
}

// Option configures a Source or BatchClient.
type Option func(*config)

// WithToken sends "Authorization: Bearer <token>" on every request.
func WithToken(token string) Option {
	return func(c *config) { c.token = strings.TrimSpace(token) }
}

// WithPhotoTTL makes signed photo URLs expire after d. Zero (the default) keeps them valid
// for as long as the service token is unchanged, which suits image_url values that are stored.
func WithPhotoTTL(d time.Duration) Option {
	return func(c *config) { c.photoTTL = d }
}

// WithHTTPClient sets a custom HTTP client. It takes precedence over WithCAFile and WithTimeout.
func WithHTTPClient(h HTTPDoer) Option {
	return func(c *config) { c.httpClient = h }
}

// WithTimeout sets the HTTP client timeout (default 60s).
func WithTimeout(d time.Duration) Option {
	return func(c *config) { c.timeout = d }
}

// WithCAFile trusts only the PEM certificates in path, for a service behind a private CA.
func WithCAFile(path string) Option {
	return func(c *config) { c.caPath = strings.TrimSpace(path) }
}

type client struct {
	base     *url.URL
	token    string
	photoTTL time.Duration
	http     HTTPDoer
	now      func() time.Time
}

func newClient(baseURL string, opts []Option) (*client, error) {
	var cfg config
	for _, opt := range opts {
		opt(&cfg)
	}

	raw := strings.TrimSpace(baseURL)
	if raw == "" {
		return &client{http: http.DefaultClient, now: time.Now}, nil
	}
	u, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("parse enrichment service url: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("enrichment service url must be absolute: %q", raw)
	}
	u.Path = strings.TrimSuffix(u.Path, "/")
	u.RawQuery = ""
	u.Fragment = ""

	h := cfg.httpClient
	if h == nil {
		h, err = newHTTPClient(cfg.caPath, timeoutOrDefault(cfg.timeout))
		if err != nil {
			return nil, err
		}
	}
	return &client{base: u, token: cfg.token, photoTTL: cfg.photoTTL, http: h, now: time.Now}, nil
}

func newHTTPClient(caPath string, timeout time.Duration) (*http.Client, error) {
	tr := http.DefaultTransport.(*http.Transport).Clone()
	if caPath != "" {
		b, err := os.ReadFile(caPath)
		if err != nil {
			return nil, fmt.Errorf("read CA file: %w", err)
		}
		pool := x509.NewCertPool()
		if ok := pool.AppendCertsFromPEM(b); !ok {
			return nil, fmt.Errorf("parse CA file: no certs found")
		}
		tr.TLSClientConfig = &tls.Config{RootCAs: pool, MinVersion: tls.VersionTLS12}
	}
	return &http.Client{Transport: tr, Timeout: timeout}, nil
}

func (c *client) configured() bool {
	return c.base != nil
}

func (c *client) resolve(path string, q url.Values) string {
	u := *c.base
	u.Path = c.base.Path + path
	if q != nil {
		u.RawQuery = q.Encode()
	}
	return u.String()
}

// do sends the request and decodes a 2xx JSON body into target. Non-2xx responses become the
// service's typed error; 5xx and transport failures are marked transient.
func (c *client) do(ctx context.Context, method, path string, q url.Values, in, target any) error {
	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.resolve(path, q), body)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return err
		}
		return &core.TransientError{Err: fmt.Errorf("%s %s: %s", method, path, redact.Secrets(err.Error()))}
	}
	defer func() { _ = resp.Body.Close() }()

	b, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return &core.TransientError{Err: fmt.Errorf("%s %s: read response: %w", method, path, err)}
	}

	if resp.StatusCode/100 != 2 {
		return responseError(method, path, resp, b)
	}
	if err := json.Unmarshal(b, target); err != nil {
		return fmt.Errorf("%s %s: decode response: %w", method, path, err)
	}
	return nil
}

func responseError(method, path string, resp *http.Response, body []byte) error {
	var env ErrorBody
	var err error
	if json.Unmarshal(body, &env) == nil && env.Error.Kind != "" {
		err = env.Error.Err()
	} else {
		err = fmt.Errorf("%s %s: enrichment service returned %s", method, path, resp.Status)
	}
	if resp.StatusCode/100 == 5 && !enrich.IsNotConfigured(err) {
		return &core.TransientError{Err: err}
	}
	return err
}

// Source implements enrich.Source by calling the places endpoints of an enrichment service.
type Source struct {
	c *client
}

var _ enrich.Source = (*Source)(nil)

// NewSource builds a Source for the service at baseURL. An empty baseURL yields an
// unconfigured Source.
func NewSource(baseURL string, opts ...Option) (*Source, error) {
	c, err := newClient(baseURL, opts)
	if err != nil {
		return nil, err
	}
	return &Source{c: c}, nil
}

// Configured reports whether a service URL is set.
func (s *Source) Configured() bool {
	return s.c.configured()
}

func (s *Source) SearchPlace(ctx context.Context, query string) (*enrich.PlaceSummary, error) {
	if !s.Configured() {
		return nil, &enrich.NotConfiguredError{Service: "enrichment service"}
	}
	var out SearchResponse
	if err := s.c.do(ctx, http.MethodGet, "/places/search", url.Values{"query": {query}}, nil, &out); err != nil {
		return nil, err
	}
	return out.Place, nil
}

func (s *Source) PlaceDetails(ctx context.Context, placeID string) (*enrich.PlaceDetails, error) {
	if !s.Configured() {
		return nil, &enrich.NotConfiguredError{Service: "enrichment service"}
	}
	var out DetailsResponse
	if err := s.c.do(ctx, http.MethodGet, "/places/details", url.Values{"place_id": {placeID}}, nil, &out); err != nil {
		return nil, err
	}
	return out.Details, nil
}

// PhotoURL points at the service's photo proxy, so the provider key never leaves the service.
// With a token configured the URL carries a signature for this photo only, so it works in an
// <img> tag without exposing the token.
func (s *Source) PhotoURL(ref string, maxWidth int) string {
	ref = strings.TrimSpace(ref)
	if ref == "" || !s.Configured() {
		return ""
	}
	maxWidth = max(maxWidth, 0)
	q := url.Values{"ref": {ref}}
	if maxWidth > 0 {
		q.Set("maxwidth", strconv.Itoa(maxWidth))
	}
	if s.c.token != "" {
		var expires int64
		if s.c.photoTTL > 0 {
			expires = s.c.now().Add(s.c.photoTTL).Unix()
			q.Set("expires", strconv.FormatInt(expires, 10))
		}
		q.Set("sig", SignPhoto(s.c.token, ref, maxWidth, expires))
	}
	return s.c.resolve("/places/photo", q)
}

// BatchClient calls POST /enrich-batch. Its EnrichBatch method fits batch.GroupFunc.
type BatchClient struct {
	c *client
}

// NewBatchClient builds a BatchClient for the service at baseURL.
func NewBatchClient(baseURL string, opts ...Option) (*BatchClient, error) {
	if strings.TrimSpace(baseURL) == "" {
		return nil, fmt.Errorf("enrichment service url is required")
	}
	c, err := newClient(baseURL, opts)
	if err != nil {
		return nil, err
	}
	return &BatchClient{c: c}, nil
}

// EnrichBatch enriches locs on the service in one call.
func (b *BatchClient) EnrichBatch(ctx context.Context, locs []enrich.LocationRecord, opts enrich.Options) ([]*enrich.Result, error) {
	var out BatchResponse
	if err := b.c.do(ctx, http.MethodPost, "/enrich-batch", nil, BatchRequest{Locations: locs, Options: &opts}, &out); err != nil {
		return nil, err
	}
	return out.Results, nil
}
