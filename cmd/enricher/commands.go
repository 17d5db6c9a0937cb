package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gastromap/location-enricher/internal/app"
	"github.com/gastromap/location-enricher/internal/metrics"
	"github.com/gastromap/location-enricher/internal/server"
	"github.com/gastromap/location-enricher/internal/version"
	"github.com/gastromap/location-enricher/pkg/enrich/engine"
	"github.com/gastromap/location-enricher/pkg/pipeline/io/postgres"
)

// EnrichCmd enriches a local file.
type EnrichCmd struct {
	RunFlags

	Input        string `short:"i" required:"" help:"Input file (.csv or .json)" type:"existingfile"`
	Output       string `short:"o" required:"" help:"Output file (.csv, .json, .db/.sqlite)" type:"path"`
	InputFormat  string `help:"Override the input format"`
	OutputFormat string `help:"Override the output format"`
	Resume       bool   `help:"Reuse successful results already stored in a SQLite output"`
}

func (c *EnrichCmd) Run(rt *runEnv) error {
	opts, err := c.runOptions(rt.cfg)
	if err != nil {
		return err
	}
	runner, cleanup, err := newRunner(rt, c.RunFlags)
	if err != nil {
		return err
	}
	defer cleanup()

	sum, err := runner.RunLocal(rt.ctx, app.LocalOptions{
		RunOptions:   opts,
		InputPath:    c.Input,
		OutputPath:   c.Output,
		InputFormat:  c.InputFormat,
		OutputFormat: c.OutputFormat,
		Resume:       c.Resume,
	})
	if err != nil {
		return err
	}
	logSummary(rt, sum)
	return nil
}

// DBCmd enriches venues in Postgres.
type DBCmd struct {
	RunFlags

	Table string `help:"Locations table name" default:"locations"`
	Limit int    `help:"Maximum pending venues to load (0 = all)"`
	Apply bool   `help:"Write accepted deltas back; without it the run is a dry run"`
}

func (c *DBCmd) Run(rt *runEnv) error {
	if rt.cfg.DatabaseURL == "" {
		return errors.New("DATABASE_URL is required for db runs")
	}
	opts, err := c.runOptions(rt.cfg)
	if err != nil {
		return err
	}

	pool, err := postgres.Connect(rt.ctx, rt.cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer pool.Close()
	repo, err := postgres.NewRepository(pool, c.Table)
	if err != nil {
		return err
	}

	runner, cleanup, err := newRunner(rt, c.RunFlags)
	if err != nil {
		return err
	}
	defer cleanup()

	sum, err := runner.RunDatabase(rt.ctx, repo, app.DatabaseOptions{
		RunOptions: opts,
		Limit:      c.Limit,
		Apply:      c.Apply,
	})
	if err != nil {
		return err
	}
	logSummary(rt, sum)
	return nil
}

func logSummary(rt *runEnv, sum app.Summary) {
	rep := sum.Report
	args := []any{
		"run", rep.RunID,
		"mode", rep.Mode,
		"total", rep.Total,
		"succeeded", rep.Succeeded,
		"failed", rep.Failed,
		"reused", rep.Cached,
	}
	if sum.ReportKey != "" {
		args = append(args, "report", sum.ReportKey)
	}
	if sum.Applied.Updated > 0 || sum.Applied.Skipped > 0 {
		args = append(args, "updated", sum.Applied.Updated, "skipped", sum.Applied.Skipped)
	}
	rt.logger.Info("run complete", args...)
}

// ServeCmd runs the HTTP service.
type ServeCmd struct {
	Addr     string        `help:"Listen address" default:":8080"`
	MaxBatch int           `help:"Maximum locations per /enrich-batch request" default:"100"`
	Shutdown time.Duration `help:"Graceful shutdown timeout" default:"15s"`
}

func (c *ServeCmd) Run(rt *runEnv) error {
	cfg := rt.cfg
	src := newPlacesClient(cfg)
	if !src.Configured() {
		rt.logger.Warn("GOOGLE_PLACES_API_KEY is not set; lookups will report \"not configured\"")
	}

	m := metrics.New()
	opts := []engine.Option{
		engine.WithLogger(rt.logger),
		engine.WithObserver(m),
		engine.WithCallTimeout(cfg.CallTimeout),
		engine.WithGroupSize(cfg.GroupSize),
	}
	desc, err := newDescriber(rt.ctx, cfg, rt.logger)
	if err != nil {
		return err
	}
	if desc != nil {
		opts = append(opts, engine.WithDescriber(desc))
	}
	eng := engine.New(src, opts...)

	srv := server.New(eng, src, m, rt.logger, server.Config{
		Token:        cfg.APIToken,
		AllowOrigins: cfg.AllowOrigins,
		MaxBatch:     c.MaxBatch,
		CallTimeout:  cfg.CallTimeout,
	})
	if cfg.APIToken == "" {
		rt.logger.Warn("ENRICHER_API_TOKEN is not set; the service accepts unauthenticated requests")
	}

	httpSrv := &http.Server{
		Addr:              c.Addr,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		rt.logger.Info("enrichment service listening", "addr", c.Addr, "version", version.Current)
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		if ok {
			return fmt.Errorf("listen: %w", err)
		}
		return nil
	case <-rt.ctx.Done():
	}

	rt.logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), c.Shutdown)
	defer cancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}
