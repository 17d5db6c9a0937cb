package main

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/gastromap/location-enricher/internal/app"
	"github.com/gastromap/location-enricher/internal/config"
	"github.com/gastromap/location-enricher/internal/ratelimit"
	"github.com/gastromap/location-enricher/pkg/enrich"
	"github.com/gastromap/location-enricher/pkg/enrich/batch"
	"github.com/gastromap/location-enricher/pkg/enrich/engine"
	"github.com/gastromap/location-enricher/pkg/enrich/remote"
	"github.com/gastromap/location-enricher/pkg/pipeline/io/objectstore"
	"github.com/gastromap/location-enricher/pkg/pipeline/io/stream"
	"github.com/gastromap/location-enricher/pkg/places"
	"github.com/gastromap/location-enricher/pkg/textgen"
)

// RunFlags are shared by the enrich and db commands.
type RunFlags struct {
	Presets string `help:"YAML file of named enrichment option presets" type:"existingfile"`
	Preset  string `help:"Preset name to start from (default: built-in defaults)"`

	OpeningHours bool `help:"Also enrich opening hours"`
	Describe     bool `help:"Also write a venue description with Gemini (needs GEMINI_API_KEY)"`
	NoPhotos     bool `help:"Skip photo enrichment"`
	DelayMs      int  `name:"delay-ms" help:"Pause between records in sequential mode; negative keeps the preset value" default:"-1"`

	Grouped   bool   `help:"Enrich in concurrent groups instead of one record at a time"`
	GroupSize int    `help:"Records per group (env: GROUP_SIZE)"`
	Remote    string `help:"Enrichment service URL; the service holds the Places key (env: ENRICHER_REMOTE_URL)"`

	StreamTopic  string `help:"Publish each result to this Kafka topic (env: KAFKA_TOPIC)"`
	ReportBucket string `help:"Upload the run report to this bucket (env: S3_BUCKET)"`
	ReportPrefix string `help:"Object key prefix for run reports" default:"enrichment-reports"`
	ReportFull   bool   `help:"Embed every result in the uploaded report"`
}

func (f RunFlags) runOptions(cfg config.Config) (app.RunOptions, error) {
	presets := config.Presets{}
	if f.Presets != "" {
		p, err := config.LoadPresets(f.Presets)
		if err != nil {
			return app.RunOptions{}, err
		}
		presets = p
	}
	opts, err := presets.Resolve(f.Preset)
	if err != nil {
		return app.RunOptions{}, err
	}
	if f.OpeningHours {
		opts.EnrichOpeningHours = true
	}
	if f.Describe {
		opts.EnrichDescription = true
	}
	if f.NoPhotos {
		opts.EnrichPhotos = false
	}
	if f.DelayMs >= 0 {
		opts.DelayMs = f.DelayMs
	}

	groupSize := cfg.GroupSize
	if f.GroupSize > 0 {
		groupSize = f.GroupSize
	}
	return app.RunOptions{
		Options: opts,
		Grouped: f.Grouped,
		Batch: batch.Options{
			GroupSize:  groupSize,
			GroupPause: cfg.GroupPause,
			MaxRetries: cfg.MaxRetries,
		},
	}, nil
}

// newRunner assembles the runner for a file or database run.
func newRunner(rt *runEnv, f RunFlags) (*app.Runner, func(), error) {
	cfg := rt.cfg
	cleanup := func() {}

	remoteURL := strings.TrimSpace(f.Remote)
	if remoteURL == "" {
		remoteURL = cfg.RemoteURL
	}

	r := &app.Runner{
		Logger:        rt.logger,
		ReportResults: f.ReportFull,
		EngineOptions: []engine.Option{
			engine.WithCallTimeout(cfg.CallTimeout),
			engine.WithGroupSize(cfg.GroupSize),
		},
	}

	if remoteURL != "" {
		opts := []remote.Option{remote.WithToken(cfg.APIToken), remote.WithCAFile(cfg.RemoteCAFile)}
		src, err := remote.NewSource(remoteURL, opts...)
		if err != nil {
			return nil, cleanup, err
		}
		bc, err := remote.NewBatchClient(remoteURL, opts...)
		if err != nil {
			return nil, cleanup, err
		}
		r.Source = src
		r.Remote = bc.EnrichBatch
		rt.logger.Info("using remote enrichment service", "url", remoteURL)
	} else {
		r.Source = newPlacesClient(cfg)
		if !r.Source.Configured() {
			rt.logger.Warn("GOOGLE_PLACES_API_KEY is not set; every record will report \"not configured\"")
		}
	}

	desc, err := newDescriber(rt.ctx, cfg, rt.logger)
	if err != nil {
		return nil, cleanup, err
	}
	if desc != nil {
		r.Describer = desc
	}

	streamCfg := cfg.Stream
	if topic := strings.TrimSpace(f.StreamTopic); topic != "" {
		streamCfg.Topic = topic
	}
	switch {
	case streamCfg.Enabled():
		w, err := stream.NewWriter(stream.Config{Brokers: streamCfg.Brokers, Topic: streamCfg.Topic})
		if err != nil {
			return nil, cleanup, err
		}
		pub := stream.NewPublisher(w)
		r.Publisher = pub
		cleanup = func() {
			if err := pub.Close(); err != nil {
				rt.logger.Warn("close stream writer", "error", err)
			}
		}
		rt.logger.Info("publishing results", "topic", streamCfg.Topic, "brokers", streamCfg.Brokers)
	case streamCfg.Topic != "":
		return nil, cleanup, fmt.Errorf("KAFKA_BROKERS is required to publish to topic %q", streamCfg.Topic)
	}

	storeCfg := cfg.Storage
	if bucket := strings.TrimSpace(f.ReportBucket); bucket != "" {
		storeCfg.Bucket = bucket
	}
	switch {
	case storeCfg.Enabled():
		up, err := objectstore.New(objectstore.Config{
			Endpoint:  storeCfg.Endpoint,
			AccessKey: storeCfg.AccessKey,
			SecretKey: storeCfg.SecretKey,
			Bucket:    storeCfg.Bucket,
			Region:    storeCfg.Region,
			UseSSL:    storeCfg.UseSSL,
			Prefix:    f.ReportPrefix,
		})
		if err == nil {
			err = up.EnsureBucket(rt.ctx)
		}
		if err != nil {
			cleanup()
			return nil, func() {}, err
		}
		r.Reports = up
	case storeCfg.Bucket != "":
		rt.logger.Warn("report bucket set but S3_ENDPOINT is empty; skipping report upload")
	}
	return r, cleanup, nil
}

func newPlacesClient(cfg config.Config) *places.Client {
	opts := []places.Option{}
	if cfg.PlacesBaseURL != "" {
		opts = append(opts, places.WithBaseURL(cfg.PlacesBaseURL))
	}
	if cfg.PlacesRPS > 0 {
		opts = append(opts, places.WithRateLimiter(ratelimit.New("google places", cfg.PlacesRPS)))
	} else {
		opts = append(opts, places.WithRateLimiter(nil))
	}
	return places.NewClient(cfg.PlacesAPIKey, opts...)
}

// newDescriber returns nil when no Gemini key is configured.
func newDescriber(ctx context.Context, cfg config.Config, logger *slog.Logger) (enrich.Describer, error) {
	if cfg.GeminiAPIKey == "" {
		return nil, nil
	}
	c, err := textgen.New(ctx, textgen.Config{
		APIKey:  cfg.GeminiAPIKey,
		Model:   cfg.GeminiModel,
		BaseURL: cfg.GeminiBaseURL,
		Logger:  logger,
	})
	if err != nil {
		return nil, fmt.Errorf("gemini config: %w", err)
	}
	return c, nil
}
