// Package app wires the enrichment engine, batch coordinator and IO adapters into the runs the
// CLI exposes: file runs and database runs.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/gastromap/location-enricher/pkg/enrich"
	"github.com/gastromap/location-enricher/pkg/enrich/batch"
	"github.com/gastromap/location-enricher/pkg/enrich/engine"
	"github.com/gastromap/location-enricher/pkg/pipeline/io/objectstore"
	"github.com/gastromap/location-enricher/pkg/pipeline/io/postgres"
	"github.com/gastromap/location-enricher/pkg/pipeline/redact"
	"github.com/google/uuid"
)

const (
	ModeSequential = "sequential"
	ModeGrouped    = "grouped"
	ModeRemote     = "remote"
)

// ResultPublisher receives each result as soon as it is final.
type ResultPublisher interface {
	Publish(ctx context.Context, runID string, res *enrich.Result) error
}

// ReportUploader stores the end-of-run report.
type ReportUploader interface {
	UploadReport(ctx context.Context, rep objectstore.RunReport) (string, error)
}

// BatchObserver records per-run batch sizes.
type BatchObserver interface {
	ObserveBatch(mode string, items int)
}

// Runner executes enrichment runs. Source is required; the rest is optional.
type Runner struct {
	Source    enrich.Source
	Describer enrich.Describer
	// Remote, when set, sends grouped runs to an enrichment service instead of the local engine.
	Remote        batch.GroupFunc
	EngineOptions []engine.Option
	Observer      engine.Observer
	Batches       BatchObserver
	Publisher     ResultPublisher
	Reports       ReportUploader
	Logger        *slog.Logger
	Now           func() time.Time

	// ReportResults embeds every result in the uploaded report.
	ReportResults bool
}

// RunOptions are the knobs shared by file and database runs.
type RunOptions struct {
	Options enrich.Options
	Grouped bool
	Batch   batch.Options
}

// Summary describes a finished run.
type Summary struct {
	Report    objectstore.RunReport
	ReportKey string
	Applied   postgres.ApplySummary
}

type run struct {
	id      string
	mode    string
	started time.Time
	logger  *slog.Logger
}

func (r *Runner) start(opts RunOptions) run {
	logger := r.Logger
	if logger == nil {
		logger = slog.Default()
	}
	id := uuid.NewString()
	mode := ModeSequential
	if opts.Grouped {
		mode = ModeGrouped
		if r.Remote != nil {
			mode = ModeRemote
		}
	}
	return run{
		id:      id,
		mode:    mode,
		started: r.now(),
		logger:  logger.With("run", id),
	}
}

func (r *Runner) now() time.Time {
	if r.Now != nil {
		return r.Now()
	}
	return time.Now()
}

func (r *Runner) engine(rn run) *engine.Engine {
	opts := []engine.Option{
		engine.WithLogger(rn.logger),
		engine.WithDescriber(r.Describer),
	}
	if r.Observer != nil {
		opts = append(opts, engine.WithObserver(r.Observer))
	}
	opts = append(opts, r.EngineOptions...)
	return engine.New(newTracedSource(r.Source, rn.logger), opts...)
}

// enrich runs records through the configured coordinator. Results are published as they
// complete; a publish failure cancels the rest of the run.
func (r *Runner) enrich(ctx context.Context, rn run, records []enrich.LocationRecord, opts RunOptions) ([]*enrich.Result, error) {
	if r.Source == nil && (r.Remote == nil || !opts.Grouped) {
		return nil, errors.New("no enrichment source configured")
	}

	ctx, cancel := context.WithCancelCause(ctx)
	defer cancel(nil)

	enrichStart := time.Now()
	rn.logger.Info("enrichment start",
		"mode", rn.mode,
		"records", len(records),
		"group_size", opts.Batch.GroupSize,
		"delay_ms", opts.Options.DelayMs,
	)

	var ok, failed int
	onProgress := func(index, total int, loc enrich.LocationRecord, res *enrich.Result) {
		if res.Metadata.Success {
			ok++
		} else {
			failed++
		}
		rn.logger.Info("location enriched",
			"completed", fmt.Sprintf("%d/%d", index+1, total),
			"name", loc.Name,
			"success", res.Metadata.Success,
			"fields", res.Metadata.FieldsEnriched,
			"errors", res.Metadata.Errors,
		)
		if r.Publisher == nil || context.Cause(ctx) != nil {
			return
		}
		if err := r.Publisher.Publish(ctx, rn.id, res); err != nil {
			cancel(fmt.Errorf("publish: %w", err))
		}
	}

	var (
		results []*enrich.Result
		err     error
	)
	switch rn.mode {
	case ModeRemote:
		results, err = batch.Grouped(ctx, records, r.Remote, opts.Options, opts.Batch, onProgress)
	case ModeGrouped:
		eng := r.engine(rn)
		results, err = batch.Grouped(ctx, records, eng.EnrichGroup, opts.Options, opts.Batch, onProgress)
	default:
		eng := r.engine(rn)
		results, err = batch.Sequential(ctx, records, eng, opts.Options, opts.Batch, onProgress)
	}
	if r.Batches != nil {
		r.Batches.ObserveBatch(rn.mode, len(records))
	}

	if cause := context.Cause(ctx); cause != nil && !errors.Is(cause, context.Canceled) {
		return results, cause
	}
	if err != nil {
		return results, err
	}
	rn.logger.Info("enrichment complete",
		"produced", len(results),
		"ok", ok,
		"error", failed,
		"duration", time.Since(enrichStart).Round(time.Millisecond),
	)
	return results, nil
}

// finish builds and, when an uploader is set, stores the run report.
func (r *Runner) finish(ctx context.Context, rn run, results []*enrich.Result, reused int) (Summary, error) {
	rep := objectstore.BuildReport(rn.id, rn.mode, rn.started, r.now(), results, r.ReportResults)
	rep.Cached = reused
	sum := Summary{Report: rep}

	if r.Reports != nil {
		key, err := r.Reports.UploadReport(ctx, rep)
		if err != nil {
			return sum, fmt.Errorf("upload report: %s", redact.Secrets(err.Error()))
		}
		sum.ReportKey = key
		rn.logger.Info("run report uploaded", "key", key)
	}
	rn.logger.Info("run complete",
		"total", rep.Total,
		"succeeded", rep.Succeeded,
		"failed", rep.Failed,
		"reused", reused,
		"duration", time.Since(rn.started).Round(time.Millisecond),
	)
	return sum, nil
}
