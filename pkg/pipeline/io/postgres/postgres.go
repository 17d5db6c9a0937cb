// Package postgres loads venue records from the GastroMap Postgres (Supabase) locations table
// and writes accepted enrichment deltas back to it.
package postgres

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/gastromap/location-enricher/pkg/enrich"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// DefaultTable is the locations table in the GastroMap schema.
const DefaultTable = "locations"

// DB is the subset of *pgxpool.Pool the repository needs.
type DB interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// Connect opens a pool for dsn and verifies it with a ping.
func Connect(ctx context.Context, dsn string) (*pgxpool.Pool, error) {
	if strings.TrimSpace(dsn) == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse database url: %w", err)
	}
	cfg.MaxConns = 4
	cfg.MinConns = 1
	cfg.MaxConnLifetime = time.Hour

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("connect database: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return pool, nil
}

var identRe = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*(\.[A-Za-z_][A-Za-z0-9_]*)?$`)

// Repository reads and updates one locations table.
type Repository struct {
	db    DB
	table string
}

// NewRepository returns a repository over table (DefaultTable when empty). The table name is
// interpolated into SQL, so it must be a plain or schema-qualified identifier.
func NewRepository(db DB, table string) (*Repository, error) {
	table = strings.TrimSpace(table)
	if table == "" {
		table = DefaultTable
	}
	if !identRe.MatchString(table) {
		return nil, fmt.Errorf("invalid table name %q", table)
	}
	return &Repository{db: db, table: table}, nil
}

// LoadPending returns records missing at least one enrichable field, oldest id first. A
// non-positive limit returns all of them.
func (r *Repository) LoadPending(ctx context.Context, limit int) ([]enrich.LocationRecord, error) {
	query := fmt.Sprintf(`
		SELECT
			id::text,
			COALESCE(name, ''),
			COALESCE(address, ''),
			COALESCE(city, ''),
			COALESCE(country, ''),
			latitude,
			longitude,
			COALESCE(website, ''),
			COALESCE(image_url, ''),
			COALESCE(price_range, ''),
			COALESCE(phone, ''),
			opening_hours,
			COALESCE(description, ''),
			COALESCE(google_place_id, ''),
			google_rating,
			google_ratings_total
		FROM %s
		WHERE %s
			OR COALESCE(google_place_id, '') = ''
			OR COALESCE(image_url, '') = ''
			OR COALESCE(website, '') = ''
			OR COALESCE(price_range, '') = ''
		ORDER BY id`, r.table, missingCoordinates)
	args := []any{}
	if limit > 0 {
		query += " LIMIT $1"
		args = append(args, limit)
	}

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", r.table, err)
	}
	defer rows.Close()

	var out []enrich.LocationRecord
	for rows.Next() {
		var loc enrich.LocationRecord
		if err := rows.Scan(
			&loc.ID,
			&loc.Name,
			&loc.Address,
			&loc.City,
			&loc.Country,
			&loc.Latitude,
			&loc.Longitude,
			&loc.Website,
			&loc.ImageURL,
			&loc.PriceRange,
			&loc.Phone,
			&loc.OpeningHours,
			&loc.Description,
			&loc.GooglePlaceID,
			&loc.GoogleRating,
			&loc.GoogleRatingsTotal,
		); err != nil {
			return nil, fmt.Errorf("scan %s: %w", r.table, err)
		}
		out = append(out, loc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read %s: %w", r.table, err)
	}
	return out, nil
}

// ApplyDelta writes d to the row with id. Columns that already hold a value are left alone,
// except the Google rating pair which is refreshed. It reports whether a row was updated.
func (r *Repository) ApplyDelta(ctx context.Context, id string, d enrich.Delta) (bool, error) {
	query, args, ok := buildUpdate(r.table, id, d)
	if !ok {
		return false, nil
	}
	tag, err := r.db.Exec(ctx, query, args...)
	if err != nil {
		return false, fmt.Errorf("update %s id=%s: %w", r.table, id, err)
	}
	return tag.RowsAffected() > 0, nil
}

// ApplySummary counts the outcome of ApplyResults.
type ApplySummary struct {
	Updated int
	Skipped int
}

// ApplyResults writes the delta of every successful result to the row of the record at the
// same index. Records without an id are skipped. It stops at the first database error.
func (r *Repository) ApplyResults(ctx context.Context, records []enrich.LocationRecord, results []*enrich.Result) (ApplySummary, error) {
	var sum ApplySummary
	if len(records) != len(results) {
		return sum, fmt.Errorf("apply mismatch: %d results for %d records", len(results), len(records))
	}
	for i, res := range results {
		id := strings.TrimSpace(records[i].ID)
		if res == nil || !res.Metadata.Success || id == "" {
			sum.Skipped++
			continue
		}
		updated, err := r.ApplyDelta(ctx, id, res.Enriched)
		if err != nil {
			return sum, err
		}
		if updated {
			sum.Updated++
		} else {
			sum.Skipped++
		}
	}
	return sum, nil
}

// missingCoordinates matches rows whose stored pair is unusable. 0,0 counts as missing.
const missingCoordinates = "(latitude IS NULL OR longitude IS NULL OR (latitude = 0 AND longitude = 0))"

// buildUpdate renders the UPDATE for d. ok is false when d has nothing to write.
func buildUpdate(table, id string, d enrich.Delta) (query string, args []any, ok bool) {
	var sets []string
	args = []any{id}
	add := func(expr string, v any) {
		args = append(args, v)
		sets = append(sets, fmt.Sprintf(expr, len(args)))
	}
	text := func(col, v string) {
		if v != "" {
			add(col+" = COALESCE(NULLIF("+col+", ''), $%d)", v)
		}
	}

	if d.Latitude != nil && d.Longitude != nil {
		// SET expressions read the pre-update row, so both columns see the same condition.
		add("latitude = CASE WHEN "+missingCoordinates+" THEN $%d ELSE latitude END", *d.Latitude)
		add("longitude = CASE WHEN "+missingCoordinates+" THEN $%d ELSE longitude END", *d.Longitude)
	}
	if d.GoogleRating != nil {
		add("google_rating = $%d", *d.GoogleRating)
	}
	if d.GoogleRatingsTotal != nil {
		add("google_ratings_total = $%d", *d.GoogleRatingsTotal)
	}
	if len(d.OpeningHours) > 0 {
		add("opening_hours = COALESCE(NULLIF(opening_hours, '{}'), $%d)", d.OpeningHours)
	}
	text("image_url", d.ImageURL)
	text("website", d.Website)
	text("price_range", d.PriceRange)
	text("phone", d.Phone)
	text("address", d.Address)
	text("google_place_id", d.GooglePlaceID)
	text("description", d.Description)

	if len(sets) == 0 {
		return "", nil, false
	}
	query = fmt.Sprintf("UPDATE %s SET %s WHERE id::text = $1", table, strings.Join(sets, ", "))
	return query, args, true
}
