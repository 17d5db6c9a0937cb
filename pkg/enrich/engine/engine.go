// Package engine resolves the missing fields of a single venue record against an
// enrich.Source and assembles the enrichment result.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/gastromap/location-enricher/pkg/enrich"
	"github.com/gastromap/location-enricher/pkg/enrich/cache"
	"github.com/gastromap/location-enricher/pkg/pipeline/redact"
)

const (
	defaultCallTimeout = 10 * time.Second
	defaultPhotoWidth  = 800
	defaultGroupSize   = 5
)

// Observer receives one notification per EnrichOne call.
type Observer interface {
	ObserveResult(res *enrich.Result, cached bool, elapsed time.Duration)
}

// Engine enriches location records. It is safe for concurrent use.
type Engine struct {
	source      enrich.Source
	describer   enrich.Describer
	cache       *cache.Cache
	logger      *slog.Logger
	observer    Observer
	callTimeout time.Duration
	photoWidth  int
	groupSize   int
	now         func() time.Time
}

// Option configures an Engine.
type Option func(*Engine)

// WithCache replaces the engine-owned cache, e.g. to share one between engines.
func WithCache(c *cache.Cache) Option {
	return func(e *Engine) {
		if c != nil {
			e.cache = c
		}
	}
}

// WithDescriber enables description generation for records that request it.
func WithDescriber(d enrich.Describer) Option {
	return func(e *Engine) {
		e.describer = d
	}
}

// WithLogger sets the logger used for non-fatal lookup failures.
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.logger = l
		}
	}
}

// WithObserver registers a metrics observer.
func WithObserver(o Observer) Option {
	return func(e *Engine) {
		e.observer = o
	}
}

// WithCallTimeout bounds every individual external call. Zero disables the bound.
func WithCallTimeout(d time.Duration) Option {
	return func(e *Engine) {
		if d >= 0 {
			e.callTimeout = d
		}
	}
}

// WithPhotoWidth sets the max width requested for photo URLs.
func WithPhotoWidth(w int) Option {
	return func(e *Engine) {
		if w > 0 {
			e.photoWidth = w
		}
	}
}

// WithGroupSize bounds how many records EnrichGroup runs at once.
func WithGroupSize(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.groupSize = n
		}
	}
}

// WithClock overrides the timestamp source.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		if now != nil {
			e.now = now
		}
	}
}

// New builds an Engine over source.
func New(source enrich.Source, opts ...Option) *Engine {
	e := &Engine{
		source:      source,
		cache:       cache.New(),
		logger:      slog.Default(),
		callTimeout: defaultCallTimeout,
		photoWidth:  defaultPhotoWidth,
		groupSize:   defaultGroupSize,
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Cache returns the cache owned by the engine.
func (e *Engine) Cache() *cache.Cache {
	return e.cache
}

// Configured reports whether the underlying source can make calls.
func (e *Engine) Configured() bool {
	return e.source != nil && e.source.Configured()
}

// EnrichOne resolves the missing fields of loc. It always returns a well-formed result;
// failures are recorded in Metadata.Errors.
func (e *Engine) EnrichOne(ctx context.Context, loc enrich.LocationRecord, opts enrich.Options) *enrich.Result {
	res, _ := e.enrichOne(ctx, loc, opts)
	return res
}

// enrichOne also returns the quota error that ended the lookup, if any.
func (e *Engine) enrichOne(ctx context.Context, loc enrich.LocationRecord, opts enrich.Options) (*enrich.Result, error) {
	start := time.Now()

	if cached, ok := e.cache.Get(loc); ok {
		e.observe(cached, true, start)
		return cached, nil
	}

	res := enrich.NewResult(loc, e.now())
	if !e.Configured() {
		res.AddError((&enrich.NotConfiguredError{Service: "google places"}).Error())
		e.observe(res.Finalize(), false, start)
		return res, nil
	}

	searchErr := e.resolve(ctx, loc, opts, res)
	res.Finalize()

	// A cancelled caller or an unconfigured upstream says nothing about the venue.
	if ctx.Err() == nil && !enrich.IsNotConfigured(searchErr) {
		e.cache.Set(loc, res)
	}
	e.observe(res, false, start)
	if enrich.IsQuotaExceeded(searchErr) {
		return res, searchErr
	}
	return res, nil
}

// EnrichGroup enriches records with at most the configured group size in flight. Results are
// returned in input order. Once a lookup reports the provider over quota, records of the group
// that have not started yet fail with that error instead of calling the provider. The error is
// non-nil only when ctx ends before the group started.
func (e *Engine) EnrichGroup(ctx context.Context, records []enrich.LocationRecord, opts enrich.Options) ([]*enrich.Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var (
		mu      sync.Mutex
		tripped error
	)
	out := make([]*enrich.Result, len(records))
	sem := make(chan struct{}, e.groupSize)
	var wg sync.WaitGroup
	for i, rec := range records {
		wg.Add(1)
		sem <- struct{}{}
		go func(i int, rec enrich.LocationRecord) {
			defer wg.Done()
			defer func() { <-sem }()

			mu.Lock()
			quota := tripped
			mu.Unlock()
			if quota != nil {
				res := enrich.FailedResult(rec, e.now(), redact.Secrets(quota.Error()))
				e.observe(res, false, time.Now())
				out[i] = res
				return
			}

			res, quota := e.enrichOne(ctx, rec, opts)
			if quota != nil {
				mu.Lock()
				if tripped == nil {
					tripped = quota
				}
				mu.Unlock()
			}
			out[i] = res
		}(i, rec)
	}
	wg.Wait()
	return out, nil
}

func (e *Engine) resolve(ctx context.Context, loc enrich.LocationRecord, opts enrich.Options, res *enrich.Result) (searchErr error) {
	defer func() {
		if r := recover(); r != nil {
			res.AddError(fmt.Sprintf("internal error: %v", r))
		}
	}()

	query := loc.SearchQuery()
	if query == "" {
		res.AddError("empty search query: name, city or country required")
		return nil
	}

	place, err := e.searchPlace(ctx, query)
	if err != nil {
		res.AddError(redact.Secrets(err.Error()))
		return err
	}
	if place == nil {
		res.AddError(enrich.MsgPlaceNotFound)
		return nil
	}

	details, err := e.placeDetails(ctx, place.PlaceID)
	if err != nil {
		e.logger.Warn("place details lookup failed, using search candidate",
			"place_id", place.PlaceID,
			"error", redact.Secrets(err.Error()),
		)
		details = nil
	}

	if strings.TrimSpace(loc.GooglePlaceID) == "" {
		res.Enriched.GooglePlaceID = place.PlaceID
	}

	if opts.EnrichCoordinates && !loc.HasCoordinates() {
		if ll := pickLocation(details, place); ll != nil {
			lat, lng := ll.Lat, ll.Lng
			res.Enriched.Latitude = &lat
			res.Enriched.Longitude = &lng
			res.MarkField(enrich.FieldCoordinates)
		}
	}

	if opts.EnrichRating && details != nil && details.Rating != nil {
		rating := *details.Rating
		res.Enriched.GoogleRating = &rating
		if details.RatingsTotal != nil {
			total := *details.RatingsTotal
			res.Enriched.GoogleRatingsTotal = &total
		}
		res.MarkField(enrich.FieldRating)
	}

	if opts.EnrichOpeningHours && len(loc.OpeningHours) == 0 && details != nil && len(details.WeekdayText) > 0 {
		res.Enriched.OpeningHours = append([]string(nil), details.WeekdayText...)
		if details.OpenNow != nil {
			open := *details.OpenNow
			res.Enriched.OpenNow = &open
		}
		res.MarkField(enrich.FieldOpeningHours)
	}

	if opts.EnrichPhotos && isBlank(loc.ImageURL) {
		if ref := pickPhotoRef(details, place); ref != "" {
			if u := e.source.PhotoURL(ref, e.photoWidth); u != "" {
				res.Enriched.ImageURL = u
				res.MarkField(enrich.FieldPhotos)
			}
		}
	}

	if opts.EnrichWebsite && isBlank(loc.Website) && details != nil && !isBlank(details.Website) {
		res.Enriched.Website = strings.TrimSpace(details.Website)
		res.MarkField(enrich.FieldWebsite)
	}

	if opts.EnrichPriceRange && isBlank(loc.PriceRange) {
		if pr := enrich.ConvertPriceLevel(pickPriceLevel(details, place)); pr != "" {
			res.Enriched.PriceRange = pr
			res.MarkField(enrich.FieldPriceRange)
		}
	}

	if opts.EnrichWebsite && isBlank(loc.Phone) && details != nil && !isBlank(details.Phone) {
		res.Enriched.Phone = strings.TrimSpace(details.Phone)
		res.MarkField(enrich.FieldPhone)
	}

	if isBlank(loc.Address) {
		if addr := pickAddress(details, place); addr != "" {
			res.Enriched.Address = addr
			res.MarkField(enrich.FieldAddress)
		}
	}

	if opts.EnrichDescription && isBlank(loc.Description) && e.describer != nil {
		desc, err := e.describe(ctx, loc, details)
		switch {
		case err != nil:
			if enrich.IsParseError(err) {
				e.logger.Warn("description output was not valid JSON", "name", loc.Name, "error", err)
			}
			res.AddError(redact.Secrets(err.Error()))
		case strings.TrimSpace(desc) != "":
			res.Enriched.Description = strings.TrimSpace(desc)
			res.MarkField(enrich.FieldDescription)
		}
	}
	return nil
}

func (e *Engine) searchPlace(ctx context.Context, query string) (*enrich.PlaceSummary, error) {
	callCtx, cancel := e.callContext(ctx)
	defer cancel()
	place, err := e.source.SearchPlace(callCtx, query)
	return place, e.timeoutErr(ctx, callCtx, "places search", err)
}

func (e *Engine) placeDetails(ctx context.Context, placeID string) (*enrich.PlaceDetails, error) {
	callCtx, cancel := e.callContext(ctx)
	defer cancel()
	details, err := e.source.PlaceDetails(callCtx, placeID)
	return details, e.timeoutErr(ctx, callCtx, "place details", err)
}

func (e *Engine) describe(ctx context.Context, loc enrich.LocationRecord, details *enrich.PlaceDetails) (string, error) {
	callCtx, cancel := e.callContext(ctx)
	defer cancel()
	desc, err := e.describer.DescribeVenue(callCtx, loc, details)
	return desc, e.timeoutErr(ctx, callCtx, "venue description", err)
}

func (e *Engine) callContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if e.callTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, e.callTimeout)
}

// timeoutErr converts a deadline hit on the per-call context into a TimeoutError. A deadline
// inherited from the parent is left as is.
func (e *Engine) timeoutErr(parent, call context.Context, op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.DeadlineExceeded) && parent.Err() == nil && call.Err() != nil {
		return &enrich.TimeoutError{Op: op, After: e.callTimeout}
	}
	return err
}

func (e *Engine) observe(res *enrich.Result, cached bool, start time.Time) {
	if e.observer == nil {
		return
	}
	e.observer.ObserveResult(res, cached, time.Since(start))
}

func pickLocation(details *enrich.PlaceDetails, place *enrich.PlaceSummary) *enrich.LatLng {
	if details != nil && details.Location != nil {
		return details.Location
	}
	return place.Location
}

func pickPhotoRef(details *enrich.PlaceDetails, place *enrich.PlaceSummary) string {
	if details != nil && len(details.PhotoRefs) > 0 {
		return details.PhotoRefs[0]
	}
	if len(place.PhotoRefs) > 0 {
		return place.PhotoRefs[0]
	}
	return ""
}

func pickPriceLevel(details *enrich.PlaceDetails, place *enrich.PlaceSummary) *int {
	if details != nil && details.PriceLevel != nil {
		return details.PriceLevel
	}
	return place.PriceLevel
}

func pickAddress(details *enrich.PlaceDetails, place *enrich.PlaceSummary) string {
	if details != nil && !isBlank(details.FormattedAddress) {
		return strings.TrimSpace(details.FormattedAddress)
	}
	return strings.TrimSpace(place.FormattedAddress)
}

func isBlank(s string) bool {
	return strings.TrimSpace(s) == ""
}
