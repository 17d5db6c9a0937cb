// Package remote talks to a running enrichment service, so tools without provider
// credentials can enrich through it.
package remote

import (
	"errors"
	"strings"
	"time"

	"github.com/gastromap/location-enricher/pkg/enrich"
)

// BatchRequest is the body of POST /enrich-batch.
type BatchRequest struct {
	Locations []enrich.LocationRecord `json:"locations"`
	Options   *enrich.Options         `json:"options,omitempty"`
}

// BatchResponse is the body returned by POST /enrich-batch.
type BatchResponse struct {
	Results []*enrich.Result `json:"results"`
}

// SearchResponse is the body returned by GET /places/search.
type SearchResponse struct {
	Place *enrich.PlaceSummary `json:"place"`
}

// DetailsResponse is the body returned by GET /places/details.
type DetailsResponse struct {
	Details *enrich.PlaceDetails `json:"details"`
}

// ErrorBody is the error envelope every endpoint uses for non-2xx responses.
type ErrorBody struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail carries the error kind (see enrich.ErrorKind) and message.
type ErrorDetail struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
	Status  string `json:"status,omitempty"`
	Service string `json:"service,omitempty"`
}

// NewErrorBody builds the envelope for err.
func NewErrorBody(err error) ErrorBody {
	d := ErrorDetail{Kind: enrich.ErrorKind(err), Message: err.Error()}
	var quota *enrich.QuotaExceededError
	var provider *enrich.ProviderError
	switch {
	case errors.As(err, &quota):
		d.Status, d.Service = quota.Status, quota.Service
	case errors.As(err, &provider):
		d.Status, d.Service = provider.Status, provider.Service
	}
	return ErrorBody{Error: d}
}

// Err converts the envelope back into an error that keeps the service's message and matches
// the enrich.IsXxx predicates for its kind.
func (d ErrorDetail) Err() error {
	msg := strings.TrimSpace(d.Message)
	if msg == "" {
		msg = "enrichment service error"
	}
	var typed error
	switch d.Kind {
	case "not_configured":
		typed = &enrich.NotConfiguredError{Service: d.Service}
	case "quota":
		typed = &enrich.QuotaExceededError{Service: d.Service, Status: d.Status}
	case "provider":
		typed = &enrich.ProviderError{Service: d.Service, Status: d.Status}
	case "timeout":
		typed = &enrich.TimeoutError{Op: "remote call"}
	case "parse":
		typed = &enrich.ParseError{Err: errors.New(msg)}
	}
	return &Error{Detail: d, msg: msg, typed: typed}
}

// Error is an error reported by the enrichment service.
type Error struct {
	Detail ErrorDetail
	msg    string
	typed  error
}

func (e *Error) Error() string { return e.msg }

func (e *Error) Unwrap() error { return e.typed }

// timeoutOrDefault keeps a zero duration out of client construction.
func timeoutOrDefault(d time.Duration) time.Duration {
	if d <= 0 {
		return 60 * time.Second
	}
	return d
}
