package app

import (
	"context"
	"fmt"

	"github.com/gastromap/location-enricher/pkg/enrich"
	"github.com/gastromap/location-enricher/pkg/pipeline/io/postgres"
)

// LocationRepository loads pending venues and writes accepted deltas back.
type LocationRepository interface {
	LoadPending(ctx context.Context, limit int) ([]enrich.LocationRecord, error)
	ApplyResults(ctx context.Context, records []enrich.LocationRecord, results []*enrich.Result) (postgres.ApplySummary, error)
}

// DatabaseOptions configures a database run.
type DatabaseOptions struct {
	RunOptions

	// Limit caps how many pending venues are loaded. Zero loads all.
	Limit int
	// Apply writes successful deltas back; otherwise the run is a dry run.
	Apply bool
}

// RunDatabase enriches venues from the locations table that are missing fields.
func (r *Runner) RunDatabase(ctx context.Context, repo LocationRepository, opts DatabaseOptions) (Summary, error) {
	rn := r.start(opts.RunOptions)
	rn.logger.Info("database run start", "limit", opts.Limit, "apply", opts.Apply)

	records, err := repo.LoadPending(ctx, opts.Limit)
	if err != nil {
		return Summary{}, fmt.Errorf("load pending locations: %w", err)
	}
	rn.logger.Info("loaded pending locations", "count", len(records))
	if len(records) == 0 {
		return r.finish(ctx, rn, nil, 0)
	}

	results, err := r.enrich(ctx, rn, records, opts.RunOptions)
	if err != nil {
		return Summary{}, err
	}

	var applied postgres.ApplySummary
	if opts.Apply {
		applied, err = repo.ApplyResults(ctx, records, results)
		if err != nil {
			return Summary{}, fmt.Errorf("apply results: %w", err)
		}
		rn.logger.Info("deltas applied", "updated", applied.Updated, "skipped", applied.Skipped)
	} else {
		rn.logger.Info("dry run, no rows updated")
	}

	sum, err := r.finish(ctx, rn, results, 0)
	sum.Applied = applied
	return sum, err
}
