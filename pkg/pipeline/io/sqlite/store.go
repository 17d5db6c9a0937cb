// Package sqlite persists enrichment results to a local SQLite database so runs can be
// inspected later and resumed without re-querying venues that already succeeded.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/gastromap/location-enricher/pkg/enrich"
	"github.com/gastromap/location-enricher/pkg/enrich/cache"
	_ "modernc.org/sqlite"
)

const resultsSchema = `
CREATE TABLE IF NOT EXISTS enrichment_results (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	run_id TEXT NOT NULL,
	venue_key TEXT NOT NULL,
	name TEXT NOT NULL,
	city TEXT NOT NULL,
	country TEXT NOT NULL,
	success INTEGER NOT NULL,
	fields_enriched INTEGER NOT NULL,
	enriched_at TEXT NOT NULL,
	data TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_results_venue ON enrichment_results(venue_key, id);
CREATE INDEX IF NOT EXISTS idx_results_run ON enrichment_results(run_id);
`

// Store is a SQLite-backed result log. Every saved result is a new row; the latest row per
// venue wins on read.
type Store struct {
	db   *sql.DB
	path string
}

// Open opens (creating if needed) the database at path and applies the schema.
func Open(ctx context.Context, path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open result store: %w", err)
	}
	// SQLite serializes writers; one connection avoids SQLITE_BUSY between them.
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		closeErr := db.Close()
		return nil, errors.Join(fmt.Errorf("connect result store: %w", err), closeErr)
	}
	if _, err := db.ExecContext(ctx, resultsSchema); err != nil {
		closeErr := db.Close()
		return nil, errors.Join(fmt.Errorf("create result table: %w", err), closeErr)
	}
	return &Store{db: db, path: path}, nil
}

// Path returns the database file path.
func (s *Store) Path() string {
	return s.path
}

// Close closes the database.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Save appends results under runID in a single transaction. Nil entries are skipped.
func (s *Store) Save(ctx context.Context, runID string, results []*enrich.Result) (err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO enrichment_results
			(run_id, venue_key, name, city, country, success, fields_enriched, enriched_at, data)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer func() {
		_ = stmt.Close()
	}()

	for _, r := range results {
		if r == nil {
			continue
		}
		data, err := json.Marshal(r)
		if err != nil {
			return fmt.Errorf("encode result for %q: %w", r.Original.Name, err)
		}
		if _, err := stmt.ExecContext(ctx,
			runID,
			cache.Key(r.Original),
			r.Original.Name,
			r.Original.City,
			r.Original.Country,
			r.Metadata.Success,
			len(r.Metadata.FieldsEnriched),
			r.Metadata.Timestamp,
			string(data),
		); err != nil {
			return fmt.Errorf("insert result for %q: %w", r.Original.Name, err)
		}
	}
	return tx.Commit()
}

// LatestSuccessful returns the most recent successful result per venue identity, keyed by
// cache.Key of the original record.
func (s *Store) LatestSuccessful(ctx context.Context) (map[string]*enrich.Result, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT r.venue_key, r.data
		FROM enrichment_results r
		JOIN (
			SELECT venue_key, MAX(id) AS id
			FROM enrichment_results
			WHERE success = 1
			GROUP BY venue_key
		) latest ON latest.id = r.id`)
	if err != nil {
		return nil, fmt.Errorf("query results: %w", err)
	}
	defer func() {
		_ = rows.Close()
	}()

	out := make(map[string]*enrich.Result)
	for rows.Next() {
		var key, data string
		if err := rows.Scan(&key, &data); err != nil {
			return nil, fmt.Errorf("scan result: %w", err)
		}
		var r enrich.Result
		if err := json.Unmarshal([]byte(data), &r); err != nil {
			return nil, fmt.Errorf("decode result %q: %w", key, err)
		}
		out[key] = &r
	}
	return out, rows.Err()
}

// RunSummary counts the results saved for one run.
type RunSummary struct {
	RunID     string
	Total     int
	Succeeded int
}

// Summary returns counts for runID.
func (s *Store) Summary(ctx context.Context, runID string) (RunSummary, error) {
	out := RunSummary{RunID: runID}
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*), COALESCE(SUM(success), 0)
		FROM enrichment_results
		WHERE run_id = ?`, runID).Scan(&out.Total, &out.Succeeded)
	if err != nil {
		return RunSummary{}, fmt.Errorf("summarize run %s: %w", runID, err)
	}
	return out, nil
}
