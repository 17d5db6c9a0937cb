package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func chdirTemp(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Chdir(dir)
	return dir
}

func TestLoad_Defaults(t *testing.T) {
	chdirTemp(t)
	for _, env := range envBindings {
		t.Setenv(env, "")
	}

	v, err := New("")
	require.NoError(t, err)
	cfg, err := Load(v)
	require.NoError(t, err)

	assert.Empty(t, cfg.PlacesAPIKey)
	assert.Equal(t, 10.0, cfg.PlacesRPS)
	assert.Equal(t, "gemini-2.5-flash", cfg.GeminiModel)
	assert.Equal(t, 10*time.Second, cfg.CallTimeout)
	assert.Equal(t, 300*time.Millisecond, cfg.GroupPause)
	assert.Equal(t, 5, cfg.GroupSize)
	assert.Equal(t, 3, cfg.MaxRetries)
	assert.Equal(t, []string{"http://localhost:3000", "http://localhost:5173"}, cfg.AllowOrigins)
	assert.False(t, cfg.Storage.Enabled())
	assert.False(t, cfg.Stream.Enabled())
}

func TestLoad_Environment(t *testing.T) {
	chdirTemp(t)
	t.Setenv("GOOGLE_PLACES_API_KEY", " AIzaTest ")
	t.Setenv("ENRICHER_API_TOKEN", "tok")
	t.Setenv("REQUEST_TIMEOUT", "2s")
	t.Setenv("KAFKA_BROKERS", "kafka-1:9092, kafka-2:9092")
	t.Setenv("KAFKA_TOPIC", "enrichment-results")
	t.Setenv("S3_ENDPOINT", "project.supabase.co")
	t.Setenv("S3_BUCKET", "reports")
	t.Setenv("S3_USE_SSL", "false")

	v, err := New("")
	require.NoError(t, err)
	cfg, err := Load(v)
	require.NoError(t, err)

	assert.Equal(t, "AIzaTest", cfg.PlacesAPIKey)
	assert.Equal(t, "tok", cfg.APIToken)
	assert.Equal(t, 2*time.Second, cfg.CallTimeout)
	assert.Equal(t, []string{"kafka-1:9092", "kafka-2:9092"}, cfg.Stream.Brokers)
	assert.True(t, cfg.Stream.Enabled())
	assert.True(t, cfg.Storage.Enabled())
	assert.False(t, cfg.Storage.UseSSL)
}

func TestLoad_ConfigFileAndEnvPrecedence(t *testing.T) {
	dir := chdirTemp(t)
	t.Setenv("GEMINI_MODEL", "")
	t.Setenv("MAX_RETRIES", "7")
	require.NoError(t, os.WriteFile(filepath.Join(dir, "enricher.yaml"), []byte(`
gemini:
  model: gemini-2.0-flash
enrich:
  retries: 1
  group_size: 3
server:
  origins:
    - https://admin.gastromap.app
`), 0o600))

	v, err := New("")
	require.NoError(t, err)
	cfg, err := Load(v)
	require.NoError(t, err)

	assert.Equal(t, "gemini-2.0-flash", cfg.GeminiModel)
	assert.Equal(t, 7, cfg.MaxRetries)
	assert.Equal(t, 3, cfg.GroupSize)
	assert.Equal(t, []string{"https://admin.gastromap.app"}, cfg.AllowOrigins)
}

func TestNew_ExplicitMissingFileFails(t *testing.T) {
	chdirTemp(t)
	_, err := New("does-not-exist.yaml")
	require.Error(t, err)
}

func TestLoad_InvalidDuration(t *testing.T) {
	chdirTemp(t)
	t.Setenv("REQUEST_TIMEOUT", "soon")

	v, err := New("")
	require.NoError(t, err)
	_, err = Load(v)
	require.ErrorContains(t, err, `invalid enrich.timeout="soon"`)
}

func TestLoadDotEnv(t *testing.T) {
	dir := chdirTemp(t)
	t.Setenv("APP_ENV", "")
	t.Setenv("GEMINI_BASE_URL", "")
	require.NoError(t, os.Unsetenv("GEMINI_BASE_URL"))
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("GEMINI_BASE_URL=http://127.0.0.1:9999\n"), 0o600))

	require.NoError(t, LoadDotEnv())
	assert.Equal(t, "http://127.0.0.1:9999", os.Getenv("GEMINI_BASE_URL"))
}

func TestLoadDotEnv_MissingFileIsFine(t *testing.T) {
	chdirTemp(t)
	t.Setenv("APP_ENV", "")
	require.NoError(t, LoadDotEnv())
}

func TestLoadDotEnv_SkippedInProduction(t *testing.T) {
	dir := chdirTemp(t)
	t.Setenv("APP_ENV", "production")
	t.Setenv("ENRICHER_REMOTE_URL", "")
	require.NoError(t, os.Unsetenv("ENRICHER_REMOTE_URL"))
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("ENRICHER_REMOTE_URL=http://x\n"), 0o600))

	require.NoError(t, LoadDotEnv())
	_, ok := os.LookupEnv("ENRICHER_REMOTE_URL")
	assert.False(t, ok)
}
