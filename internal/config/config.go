// Package config resolves runtime settings from the environment, an optional .env file and an
// optional enricher.yaml, and loads enrichment option presets.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config is the resolved runtime configuration shared by the CLI subcommands.
type Config struct {
	PlacesAPIKey  string
	PlacesBaseURL string
	PlacesRPS     float64

	GeminiAPIKey  string
	GeminiModel   string
	GeminiBaseURL string

	// APIToken guards the HTTP service when set.
	APIToken string
	// RemoteURL points the CLI at a running enrichment service instead of calling Places directly.
	RemoteURL    string
	RemoteCAFile string

	DatabaseURL string

	CallTimeout time.Duration
	MaxRetries  int
	GroupSize   int
	GroupPause  time.Duration

	AllowOrigins []string

	Storage StorageConfig
	Stream  StreamConfig
}

// StorageConfig addresses an S3-compatible bucket for run reports.
type StorageConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	Region    string
	UseSSL    bool
}

// Enabled reports whether enough is set to build a client.
func (s StorageConfig) Enabled() bool {
	return s.Endpoint != "" && s.Bucket != ""
}

// StreamConfig addresses the Kafka topic results are published to.
type StreamConfig struct {
	Brokers []string
	Topic   string
}

// Enabled reports whether enough is set to build a writer.
func (s StreamConfig) Enabled() bool {
	return len(s.Brokers) > 0 && s.Topic != ""
}

// envBindings maps viper keys to the environment variables that feed them.
var envBindings = map[string]string{
	"places.api_key":    "GOOGLE_PLACES_API_KEY",
	"places.base_url":   "GOOGLE_PLACES_BASE_URL",
	"places.rps":        "PLACES_RATE_LIMIT_RPS",
	"gemini.api_key":    "GEMINI_API_KEY",
	"gemini.model":      "GEMINI_MODEL",
	"gemini.base_url":   "GEMINI_BASE_URL",
	"server.api_token":  "ENRICHER_API_TOKEN",
	"server.origins":    "ENRICHER_ALLOW_ORIGINS",
	"remote.url":        "ENRICHER_REMOTE_URL",
	"remote.ca_file":    "ENRICHER_REMOTE_CA_FILE",
	"database.url":      "DATABASE_URL",
	"enrich.timeout":    "REQUEST_TIMEOUT",
	"enrich.retries":    "MAX_RETRIES",
	"enrich.group_size": "GROUP_SIZE",
	"enrich.group_wait": "GROUP_PAUSE",
	"storage.endpoint":  "S3_ENDPOINT",
	"storage.access":    "S3_ACCESS_KEY",
	"storage.secret":    "S3_SECRET_KEY",
	"storage.bucket":    "S3_BUCKET",
	"storage.region":    "S3_REGION",
	"storage.ssl":       "S3_USE_SSL",
	"stream.brokers":    "KAFKA_BROKERS",
	"stream.topic":      "KAFKA_TOPIC",
}

// LoadDotEnv loads .env into the process environment unless APP_ENV=production. A missing
// file is not an error.
func LoadDotEnv(paths ...string) error {
	if strings.EqualFold(strings.TrimSpace(os.Getenv("APP_ENV")), "production") {
		return nil
	}
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	for _, p := range paths {
		if err := godotenv.Load(p); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("load %s: %w", p, err)
		}
	}
	return nil
}

// New returns a viper instance with defaults and environment bindings applied. configFile may
// be empty, in which case enricher.yaml is looked up in the working directory.
func New(configFile string) (*viper.Viper, error) {
	v := viper.New()

	v.SetDefault("places.rps", 10.0)
	v.SetDefault("gemini.model", "gemini-2.5-flash")
	v.SetDefault("server.origins", []string{"http://localhost:3000", "http://localhost:5173"})
	v.SetDefault("enrich.timeout", "10s")
	v.SetDefault("enrich.retries", 3)
	v.SetDefault("enrich.group_size", 5)
	v.SetDefault("enrich.group_wait", "300ms")
	v.SetDefault("storage.region", "us-east-1")
	v.SetDefault("storage.ssl", true)

	v.AutomaticEnv()
	for key, env := range envBindings {
		if err := v.BindEnv(key, env); err != nil {
			return nil, fmt.Errorf("bind %s: %w", env, err)
		}
	}

	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName("enricher")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if configFile != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}
	return v, nil
}

// Load resolves a Config from v.
func Load(v *viper.Viper) (Config, error) {
	timeout, err := duration(v, "enrich.timeout")
	if err != nil {
		return Config{}, err
	}
	groupPause, err := duration(v, "enrich.group_wait")
	if err != nil {
		return Config{}, err
	}

	cfg := Config{
		PlacesAPIKey:  strings.TrimSpace(v.GetString("places.api_key")),
		PlacesBaseURL: strings.TrimSpace(v.GetString("places.base_url")),
		PlacesRPS:     v.GetFloat64("places.rps"),
		GeminiAPIKey:  strings.TrimSpace(v.GetString("gemini.api_key")),
		GeminiModel:   strings.TrimSpace(v.GetString("gemini.model")),
		GeminiBaseURL: strings.TrimSpace(v.GetString("gemini.base_url")),
		APIToken:      strings.TrimSpace(v.GetString("server.api_token")),
		RemoteURL:     strings.TrimSpace(v.GetString("remote.url")),
		RemoteCAFile:  strings.TrimSpace(v.GetString("remote.ca_file")),
		DatabaseURL:   strings.TrimSpace(v.GetString("database.url")),
		CallTimeout:   timeout,
		MaxRetries:    v.GetInt("enrich.retries"),
		GroupSize:     v.GetInt("enrich.group_size"),
		GroupPause:    groupPause,
		AllowOrigins:  list(v, "server.origins"),
		Storage: StorageConfig{
			Endpoint:  strings.TrimSpace(v.GetString("storage.endpoint")),
			AccessKey: strings.TrimSpace(v.GetString("storage.access")),
			SecretKey: strings.TrimSpace(v.GetString("storage.secret")),
			Bucket:    strings.TrimSpace(v.GetString("storage.bucket")),
			Region:    strings.TrimSpace(v.GetString("storage.region")),
			UseSSL:    v.GetBool("storage.ssl"),
		},
		Stream: StreamConfig{
			Brokers: list(v, "stream.brokers"),
			Topic:   strings.TrimSpace(v.GetString("stream.topic")),
		},
	}
	if cfg.PlacesRPS < 0 {
		return Config{}, fmt.Errorf("invalid places rate limit %g: must be >= 0", cfg.PlacesRPS)
	}
	if cfg.MaxRetries < 0 {
		return Config{}, fmt.Errorf("invalid max retries %d: must be >= 0", cfg.MaxRetries)
	}
	return cfg, nil
}

func duration(v *viper.Viper, key string) (time.Duration, error) {
	raw := strings.TrimSpace(v.GetString(key))
	if raw == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s=%q: %w", key, raw, err)
	}
	return d, nil
}

// list accepts both YAML sequences and comma-separated environment values.
func list(v *viper.Viper, key string) []string {
	var out []string
	for _, item := range v.GetStringSlice(key) {
		for _, part := range strings.Split(item, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}
