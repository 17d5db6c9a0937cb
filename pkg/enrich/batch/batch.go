// Package batch drives the enrichment engine across many location records while keeping
// results in input order and isolating per-item failures.
package batch

import (
	"context"
	"fmt"
	"time"

	"github.com/gastromap/location-enricher/pkg/enrich"
	"github.com/gastromap/location-enricher/pkg/pipeline/redact"
)

// Enricher enriches a single record. *engine.Engine satisfies it.
type Enricher interface {
	EnrichOne(ctx context.Context, loc enrich.LocationRecord, opts enrich.Options) *enrich.Result
}

// GroupFunc enriches one group of records in a single call, e.g. a remote batch RPC or
// engine.EnrichGroup. It must return one result per record, in order.
type GroupFunc func(ctx context.Context, locs []enrich.LocationRecord, opts enrich.Options) ([]*enrich.Result, error)

// ProgressFunc is called once per record, in input order, after its result is final.
type ProgressFunc func(index, total int, loc enrich.LocationRecord, res *enrich.Result)

// Options configures the coordinator. Zero values fall back to defaults.
type Options struct {
	// GroupSize is the number of records per GroupFunc call.
	GroupSize int
	// GroupPause is the sleep between consecutive groups.
	GroupPause time.Duration

	// MaxRetries bounds retries of a GroupFunc call that failed with a transient error.
	MaxRetries int
	// BackoffInitial is the initial sleep before retrying a transient failure.
	BackoffInitial time.Duration
	// BackoffMax caps exponential backoff.
	BackoffMax time.Duration
	// BackoffJitterFrac applies +/- jitter to backoff sleeps (0.2 = +/-20%).
	BackoffJitterFrac float64

	// Now stamps synthesized failures. Defaults to time.Now.
	Now func() time.Time
}

const (
	DefaultGroupSize  = 5
	DefaultGroupPause = 300 * time.Millisecond
)

func (o Options) withDefaults() Options {
	if o.GroupSize <= 0 {
		o.GroupSize = DefaultGroupSize
	}
	if o.GroupPause < 0 {
		o.GroupPause = 0
	} else if o.GroupPause == 0 {
		o.GroupPause = DefaultGroupPause
	}
	if o.MaxRetries < 0 {
		o.MaxRetries = 0
	}
	if o.BackoffInitial <= 0 {
		o.BackoffInitial = 200 * time.Millisecond
	}
	if o.BackoffMax <= 0 {
		o.BackoffMax = 2 * time.Second
	}
	if o.BackoffJitterFrac < 0 {
		o.BackoffJitterFrac = 0
	}
	if o.Now == nil {
		o.Now = time.Now
	}
	return o
}

// Sequential enriches one record at a time, pausing opts.Delay() between records.
//
// The returned slice always has len(locs) entries. When ctx ends, the remaining records get
// synthesized failures and ctx.Err() is returned alongside the full slice.
func Sequential(
	ctx context.Context,
	locs []enrich.LocationRecord,
	enricher Enricher,
	opts enrich.Options,
	batchOpts Options,
	onProgress ProgressFunc,
) ([]*enrich.Result, error) {
	batchOpts = batchOpts.withDefaults()
	out := make([]*enrich.Result, len(locs))
	total := len(locs)

	for i, loc := range locs {
		if err := ctx.Err(); err != nil {
			cancelRemaining(out, locs, i, err, batchOpts, onProgress)
			return out, err
		}

		res := enricher.EnrichOne(ctx, loc, opts)
		if res == nil {
			res = enrich.FailedResult(loc, batchOpts.Now(), "enrichment returned no result")
		}
		out[i] = res
		if onProgress != nil {
			onProgress(i, total, loc, res)
		}

		if i < total-1 {
			// A cancelled sleep is picked up by the ctx check at the top of the loop.
			_ = sleep(ctx, opts.Delay())
		}
	}
	return out, nil
}

// Grouped enriches records in groups of batchOpts.GroupSize through fn, pausing
// batchOpts.GroupPause between groups. A group whose call fails, after transient retries, or
// whose response does not line up with its input yields synthesized failures for each of its
// records. The remaining groups still run.
//
// Cancellation behaves as in Sequential.
func Grouped(
	ctx context.Context,
	locs []enrich.LocationRecord,
	fn GroupFunc,
	opts enrich.Options,
	batchOpts Options,
	onProgress ProgressFunc,
) ([]*enrich.Result, error) {
	batchOpts = batchOpts.withDefaults()
	out := make([]*enrich.Result, len(locs))
	total := len(locs)

	for start := 0; start < total; start += batchOpts.GroupSize {
		if err := ctx.Err(); err != nil {
			cancelRemaining(out, locs, start, err, batchOpts, onProgress)
			return out, err
		}

		end := min(start+batchOpts.GroupSize, total)
		group := locs[start:end]

		results, err := callWithRetry(ctx, batchOpts, func(ctx context.Context) ([]*enrich.Result, error) {
			return fn(ctx, group, opts)
		})
		if err == nil && len(results) != len(group) {
			err = fmt.Errorf("batch response has %d results for %d locations", len(results), len(group))
		}

		for j, loc := range group {
			var res *enrich.Result
			switch {
			case err != nil:
				res = enrich.FailedResult(loc, batchOpts.Now(), redact.Secrets(err.Error()))
			case results[j] == nil:
				res = enrich.FailedResult(loc, batchOpts.Now(), "enrichment returned no result")
			default:
				res = results[j]
			}
			out[start+j] = res
			if onProgress != nil {
				onProgress(start+j, total, loc, res)
			}
		}

		if end < total {
			_ = sleep(ctx, batchOpts.GroupPause)
		}
	}
	return out, nil
}

func cancelRemaining(
	out []*enrich.Result,
	locs []enrich.LocationRecord,
	from int,
	cause error,
	opts Options,
	onProgress ProgressFunc,
) {
	msg := "batch cancelled: " + cause.Error()
	for i := from; i < len(locs); i++ {
		out[i] = enrich.FailedResult(locs[i], opts.Now(), msg)
		if onProgress != nil {
			onProgress(i, len(locs), locs[i], out[i])
		}
	}
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
