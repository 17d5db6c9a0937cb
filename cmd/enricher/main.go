package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/alecthomas/kong"
	"github.com/gastromap/location-enricher/internal/config"
	"github.com/gastromap/location-enricher/internal/version"
	"github.com/gastromap/location-enricher/pkg/pipeline/redact"
	"github.com/lepinkainen/humanlog"
)

// CLI is the enricher command tree.
type CLI struct {
	Config   string   `help:"Path to an enricher.yaml config file (default: ./enricher.yaml when present)" type:"path"`
	EnvFile  []string `name:"env-file" help:"Dotenv files loaded before reading the environment" default:".env"`
	LogLevel string   `help:"Log level" default:"info" enum:"debug,info,warn,error"`
	LogJSON  bool     `name:"log-json" help:"Emit JSON logs instead of human-readable output"`

	Enrich  EnrichCmd  `cmd:"" help:"Enrich venue records from a CSV or JSON file"`
	DB      DBCmd      `cmd:"" name:"db" help:"Enrich venues stored in the Postgres locations table"`
	Serve   ServeCmd   `cmd:"" help:"Run the enrichment HTTP service"`
	Version VersionCmd `cmd:"" help:"Print the version"`
}

// runEnv is bound into every command's Run method.
type runEnv struct {
	ctx    context.Context
	cfg    config.Config
	logger *slog.Logger
}

func main() {
	var cli CLI
	kctx := kong.Parse(&cli,
		kong.Name("enricher"),
		kong.Description("GastroMap location enrichment: fills missing venue fields from Google Places and Gemini."),
		kong.UsageOnError(),
	)

	logger := newLogger(cli.LogLevel, cli.LogJSON)
	slog.SetDefault(logger)

	if err := config.LoadDotEnv(cli.EnvFile...); err != nil {
		fatal(logger, "config error", err)
	}
	v, err := config.New(cli.Config)
	if err != nil {
		fatal(logger, "config error", err)
	}
	cfg, err := config.Load(v)
	if err != nil {
		fatal(logger, "config error", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := kctx.Run(&runEnv{ctx: ctx, cfg: cfg, logger: logger}); err != nil {
		stop()
		fatal(logger, "command failed", err)
	}
}

func newLogger(level string, asJSON bool) *slog.Logger {
	var lvl slog.Level
	switch strings.ToLower(level) {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	if asJSON {
		return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl}))
	}
	return slog.New(humanlog.NewHandler(os.Stdout, &humanlog.Options{Level: lvl}))
}

func fatal(logger *slog.Logger, msg string, err error) {
	logger.Error(msg, "error", redact.Secrets(err.Error()))
	os.Exit(1)
}

// VersionCmd prints the build version.
type VersionCmd struct{}

func (c *VersionCmd) Run(_ *runEnv) error {
	_, err := fmt.Fprintln(os.Stdout, version.Current)
	return err
}
