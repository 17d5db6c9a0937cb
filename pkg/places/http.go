package places

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/gastromap/location-enricher/pkg/enrich"
	"github.com/gastromap/location-enricher/pkg/pipeline/core"
	"github.com/gastromap/location-enricher/pkg/pipeline/redact"
)

const maxBodyBytes = 4 << 20

// HTTPError is a sanitized summary of a non-2xx Places response.
//
// Raw bodies are never kept: error payloads can echo the request URL and its key.
type HTTPError struct {
	Op         string
	StatusCode int
	Status     string

	// Snippet is a redacted, truncated hint of the response body.
	Snippet string
}

func (e *HTTPError) Error() string {
	if e == nil {
		return "places http error"
	}
	msg := fmt.Sprintf("places api error: op=%s status=%s", strings.TrimSpace(e.Op), strings.TrimSpace(e.Status))
	if s := strings.TrimSpace(e.Snippet); s != "" {
		msg += " body=" + s
	}
	return msg
}

func newHTTPError(op string, resp *http.Response, body []byte) error {
	h := &HTTPError{Op: op}
	if resp != nil {
		h.StatusCode = resp.StatusCode
		h.Status = resp.Status
	}
	h.Snippet = redactAndTruncate(body)

	switch {
	case h.StatusCode == http.StatusTooManyRequests:
		return &enrich.QuotaExceededError{Service: serviceName, Status: h.Status}
	case h.StatusCode >= 500:
		return &core.TransientError{Err: h}
	default:
		return h
	}
}

func redactAndTruncate(body []byte) string {
	if len(body) == 0 {
		return ""
	}
	const max = 256
	b := body
	if len(b) > max {
		b = b[:max]
	}
	s := redact.Secrets(string(b))
	s = strings.ReplaceAll(s, "\n", " ")
	s = strings.ReplaceAll(s, "\r", " ")
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}
	if len(body) > max {
		return s + "..."
	}
	return s
}

// getJSON performs a rate-limited GET of {baseURL}/{path}?{q} and decodes the body into target.
func (c *Client) getJSON(ctx context.Context, op, path string, q url.Values, target any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}

	q.Set("key", c.apiKey)
	if c.language != "" {
		q.Set("language", c.language)
	}
	endpoint := c.baseURL + "/" + path + "?" + q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return fmt.Errorf("%s: build request: %s", op, redact.Secrets(err.Error()))
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		// url.Error embeds the request URL, which carries the key.
		var urlErr *url.Error
		if errors.As(err, &urlErr) {
			urlErr.URL = redact.Secrets(urlErr.URL)
		}
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return fmt.Errorf("%s: read response: %w", op, err)
	}
	if resp.StatusCode/100 != 2 {
		return newHTTPError(op, resp, body)
	}
	if err := json.Unmarshal(body, target); err != nil {
		return fmt.Errorf("%s: decode response: %w", op, err)
	}
	return nil
}

// statusError maps a non-OK Places status to a typed error.
func statusError(status, message string) error {
	switch strings.TrimSpace(status) {
	case "OVER_QUERY_LIMIT":
		return &enrich.QuotaExceededError{Service: serviceName, Status: status}
	default:
		return &enrich.ProviderError{Service: serviceName, Status: status, Message: message}
	}
}
