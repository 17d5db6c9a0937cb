package sqlite_test

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/gastromap/location-enricher/pkg/enrich"
	"github.com/gastromap/location-enricher/pkg/enrich/cache"
	"github.com/gastromap/location-enricher/pkg/pipeline/io/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openStore(t *testing.T) *sqlite.Store {
	t.Helper()
	store, err := sqlite.Open(context.Background(), filepath.Join(t.TempDir(), "results.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func result(name, website string, success bool) *enrich.Result {
	r := &enrich.Result{
		Original: enrich.LocationRecord{Name: name, City: "Krakow", Country: "Poland"},
		Metadata: enrich.Metadata{
			Success:        success,
			Source:         enrich.SourceGooglePlaces,
			Timestamp:      "2024-05-01T12:00:00Z",
			FieldsEnriched: []string{},
			Errors:         []string{},
		},
	}
	if website != "" {
		r.Enriched.Website = website
		r.Metadata.FieldsEnriched = []string{enrich.FieldWebsite}
	}
	if !success {
		r.Metadata.Errors = []string{enrich.MsgPlaceNotFound}
	}
	return r
}

func TestStore_SaveAndSummary(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	store := openStore(t)

	require.NoError(t, store.Save(ctx, "run-1", []*enrich.Result{
		result("Hamsa", "https://hamsa.pl", true),
		nil,
		result("Nowhere", "", false),
	}))

	summary, err := store.Summary(ctx, "run-1")
	require.NoError(t, err)
	assert.Equal(t, sqlite.RunSummary{RunID: "run-1", Total: 2, Succeeded: 1}, summary)

	empty, err := store.Summary(ctx, "run-unknown")
	require.NoError(t, err)
	assert.Zero(t, empty.Total)
}

func TestStore_LatestSuccessfulWins(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	store := openStore(t)

	require.NoError(t, store.Save(ctx, "run-1", []*enrich.Result{result("Hamsa", "https://old.hamsa.pl", true)}))
	require.NoError(t, store.Save(ctx, "run-2", []*enrich.Result{
		result("Hamsa", "https://hamsa.pl", true),
		result("Nowhere", "", false),
	}))
	require.NoError(t, store.Save(ctx, "run-3", []*enrich.Result{result("hamsa ", "", false)}))

	got, err := store.LatestSuccessful(ctx)
	require.NoError(t, err)
	require.Len(t, got, 1)

	key := cache.Key(enrich.LocationRecord{Name: "Hamsa", City: "Krakow", Country: "Poland"})
	require.Contains(t, got, key)
	assert.Equal(t, "https://hamsa.pl", got[key].Enriched.Website)
	assert.True(t, got[key].Metadata.Success)
}

func TestStore_ReopenKeepsData(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "results.db")

	store, err := sqlite.Open(ctx, path)
	require.NoError(t, err)
	require.NoError(t, store.Save(ctx, "run-1", []*enrich.Result{result("Hamsa", "https://hamsa.pl", true)}))
	require.NoError(t, store.Close())

	reopened, err := sqlite.Open(ctx, path)
	require.NoError(t, err)
	defer func() { _ = reopened.Close() }()

	got, err := reopened.LatestSuccessful(ctx)
	require.NoError(t, err)
	assert.Len(t, got, 1)
	assert.Equal(t, path, reopened.Path())
}
