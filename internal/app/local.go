package app

import (
	"context"
	"fmt"

	"github.com/gastromap/location-enricher/pkg/enrich"
	"github.com/gastromap/location-enricher/pkg/pipeline/io/local"
	"github.com/gastromap/location-enricher/pkg/pipeline/io/sqlite"
	"github.com/gastromap/location-enricher/pkg/pipeline/schema"
)

// LocalOptions configures a file run.
type LocalOptions struct {
	RunOptions

	InputPath    string
	OutputPath   string
	InputFormat  string
	OutputFormat string

	// Resume reuses successful results already stored in a SQLite output instead of
	// enriching those venues again.
	Resume bool
}

// RunLocal reads venue records from a local file, enriches them and writes the results to a
// CSV, JSON or SQLite output.
func (r *Runner) RunLocal(ctx context.Context, opts LocalOptions) (Summary, error) {
	if opts.InputPath == "" || opts.OutputPath == "" {
		return Summary{}, fmt.Errorf("input and output paths are required")
	}
	rn := r.start(opts.RunOptions)

	inFormat := schema.FormatForPath(opts.InputPath, opts.InputFormat)
	outFormat := schema.FormatForPath(opts.OutputPath, opts.OutputFormat)
	rn.logger.Info("local run start",
		"input", opts.InputPath,
		"input_format", inFormat,
		"output", opts.OutputPath,
		"output_format", outFormat,
		"resume", opts.Resume,
	)

	records, err := local.ReadLocationsFile(opts.InputPath, inFormat)
	if err != nil {
		return Summary{}, fmt.Errorf("read %s: %w", opts.InputPath, err)
	}
	rn.logger.Info("loaded locations", "count", len(records))

	var store *sqlite.Store
	if outFormat == schema.FormatSQLite {
		store, err = sqlite.Open(ctx, opts.OutputPath)
		if err != nil {
			return Summary{}, err
		}
		defer func() {
			_ = store.Close()
		}()
	} else if opts.Resume {
		rn.logger.Warn("resume needs a SQLite output, enriching every record")
	}

	prior := map[string]*enrich.Result{}
	if store != nil && opts.Resume {
		if prior, err = store.LatestSuccessful(ctx); err != nil {
			return Summary{}, err
		}
	}
	plan := buildResumePlan(records, prior)
	rn.logger.Info("resume plan",
		"input_rows", len(records),
		"reused_rows", plan.reused,
		"rows_to_enrich", len(plan.pending),
	)

	if len(plan.pending) > 0 {
		fresh, err := r.enrich(ctx, rn, plan.pending, opts.RunOptions)
		if fresh == nil && err != nil {
			return Summary{}, err
		}
		if applyErr := plan.apply(fresh); applyErr != nil {
			return Summary{}, applyErr
		}
		if err != nil {
			// Keep what finished; a cancelled run still leaves a usable output.
			if writeErr := r.writeOutput(ctx, rn, store, opts.OutputPath, outFormat, plan.resultsForOutput(store != nil)); writeErr != nil {
				rn.logger.Error("write partial output failed", "error", writeErr)
			}
			return Summary{}, err
		}
	}

	if err := r.writeOutput(ctx, rn, store, opts.OutputPath, outFormat, plan.resultsForOutput(store != nil)); err != nil {
		return Summary{}, err
	}
	return r.finish(ctx, rn, plan.results, plan.reused)
}

// writeOutput appends to the SQLite store, or replaces a CSV/JSON file.
func (r *Runner) writeOutput(ctx context.Context, rn run, store *sqlite.Store, path string, format schema.Format, results []*enrich.Result) error {
	if store != nil {
		if err := store.Save(context.WithoutCancel(ctx), rn.id, results); err != nil {
			return fmt.Errorf("save results: %w", err)
		}
		rn.logger.Info("results saved", "store", store.Path(), "rows", len(results))
		return nil
	}
	if err := local.WriteResultsFile(path, format, results); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	rn.logger.Info("results written", "output", path, "rows", len(results))
	return nil
}
