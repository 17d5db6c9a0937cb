package app

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/gastromap/location-enricher/pkg/enrich"
	"github.com/gastromap/location-enricher/pkg/pipeline/redact"
)

// tracedSource logs every provider call at debug level with its duration and outcome.
type tracedSource struct {
	next   enrich.Source
	logger *slog.Logger

	mu       sync.Mutex
	attempts map[string]int
}

func newTracedSource(next enrich.Source, logger *slog.Logger) enrich.Source {
	if next == nil {
		return nil
	}
	return &tracedSource{
		next:     next,
		logger:   logger,
		attempts: make(map[string]int),
	}
}

func (t *tracedSource) Configured() bool {
	return t.next.Configured()
}

func (t *tracedSource) PhotoURL(ref string, maxWidth int) string {
	return t.next.PhotoURL(ref, maxWidth)
}

func (t *tracedSource) SearchPlace(ctx context.Context, query string) (*enrich.PlaceSummary, error) {
	attempt := t.nextAttempt("search:" + query)
	t.logRequest(ctx, "places search", "query", query, attempt)

	start := time.Now()
	out, err := t.next.SearchPlace(ctx, query)
	found := out != nil
	placeID := ""
	if found {
		placeID = out.PlaceID
	}
	t.logResponse("places search", "query", query, attempt, start, err, "found", found, "place_id", placeID)
	return out, err
}

func (t *tracedSource) PlaceDetails(ctx context.Context, placeID string) (*enrich.PlaceDetails, error) {
	attempt := t.nextAttempt("details:" + placeID)
	t.logRequest(ctx, "place details", "place_id", placeID, attempt)

	start := time.Now()
	out, err := t.next.PlaceDetails(ctx, placeID)
	t.logResponse("place details", "place_id", placeID, attempt, start, err, "found", out != nil)
	return out, err
}

func (t *tracedSource) logRequest(ctx context.Context, op, key, value string, attempt int) {
	deadlineIn := "none"
	if d, ok := ctx.Deadline(); ok {
		deadlineIn = time.Until(d).Round(time.Millisecond).String()
	}
	t.logger.Debug(op+" request", key, value, "attempt", attempt, "deadline_in", deadlineIn)
}

func (t *tracedSource) logResponse(op, key, value string, attempt int, start time.Time, err error, extra ...any) {
	elapsed := time.Since(start).Round(time.Millisecond)
	if err != nil {
		t.logger.Debug(op+" response",
			key, value,
			"attempt", attempt,
			"duration", elapsed,
			"status", "error",
			"error", redact.Secrets(err.Error()),
		)
		return
	}
	args := append([]any{key, value, "attempt", attempt, "duration", elapsed, "status", "ok"}, extra...)
	t.logger.Debug(op+" response", args...)
}

func (t *tracedSource) nextAttempt(key string) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.attempts[key]++
	return t.attempts[key]
}
