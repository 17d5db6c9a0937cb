package enrich

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// NotConfiguredError is returned when a provider credential is missing. Callers should hide
// or disable enrichment entirely.
type NotConfiguredError struct {
	Service string
}

func (e *NotConfiguredError) Error() string {
	return "not configured"
}

// QuotaExceededError is returned when a provider reports it is over quota or rate limited.
type QuotaExceededError struct {
	Service string
	Status  string
}

func (e *QuotaExceededError) Error() string {
	service := strings.TrimSpace(e.Service)
	if service == "" {
		service = "provider"
	}
	if strings.TrimSpace(e.Status) == "" {
		return fmt.Sprintf("quota exceeded: %s rate limit reached, retry later", service)
	}
	return fmt.Sprintf("quota exceeded: %s returned %s, retry later", service, e.Status)
}

// ProviderError is any other non-OK provider status. Status carries the raw provider value.
type ProviderError struct {
	Service string
	Status  string
	Message string
}

func (e *ProviderError) Error() string {
	service := strings.TrimSpace(e.Service)
	if service == "" {
		service = "provider"
	}
	msg := fmt.Sprintf("%s error: %s", service, strings.TrimSpace(e.Status))
	if m := strings.TrimSpace(e.Message); m != "" {
		msg += ": " + m
	}
	return msg
}

// TimeoutError is returned when a single external call exceeds its deadline.
type TimeoutError struct {
	Op    string
	After time.Duration
}

func (e *TimeoutError) Error() string {
	if e.After > 0 {
		return fmt.Sprintf("timeout: %s did not complete within %s", e.Op, e.After)
	}
	return fmt.Sprintf("timeout: %s did not complete", e.Op)
}

// ParseError is returned when structured generation output is not valid JSON.
// Raw keeps the model text so callers may still use it.
type ParseError struct {
	Raw string
	Err error
}

func (e *ParseError) Error() string {
	if e.Err == nil {
		return "parse structured output"
	}
	return "parse structured output: " + e.Err.Error()
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// IsNotConfigured reports whether err is a NotConfiguredError (even when wrapped).
func IsNotConfigured(err error) bool {
	var target *NotConfiguredError
	return errors.As(err, &target)
}

// IsQuotaExceeded reports whether err is a QuotaExceededError (even when wrapped).
func IsQuotaExceeded(err error) bool {
	var target *QuotaExceededError
	return errors.As(err, &target)
}

// IsProviderError reports whether err is a ProviderError (even when wrapped).
func IsProviderError(err error) bool {
	var target *ProviderError
	return errors.As(err, &target)
}

// IsTimeout reports whether err is a TimeoutError (even when wrapped).
func IsTimeout(err error) bool {
	var target *TimeoutError
	return errors.As(err, &target)
}

// IsParseError reports whether err is a ParseError (even when wrapped).
func IsParseError(err error) bool {
	var target *ParseError
	return errors.As(err, &target)
}

// ErrorKind classifies err for wire envelopes and metrics labels.
func ErrorKind(err error) string {
	switch {
	case err == nil:
		return ""
	case IsNotConfigured(err):
		return "not_configured"
	case IsQuotaExceeded(err):
		return "quota"
	case IsTimeout(err):
		return "timeout"
	case IsParseError(err):
		return "parse"
	case IsProviderError(err):
		return "provider"
	default:
		return "internal"
	}
}
