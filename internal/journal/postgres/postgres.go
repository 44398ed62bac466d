package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/FranksOps/shopscrape/internal/journal"
)

// ensure postgresBackend implements journal.Backend
var _ journal.Backend = (*postgresBackend)(nil)

type postgresBackend struct {
	pool *pgxpool.Pool
}

const schema = `
CREATE TABLE IF NOT EXISTS scrape_attempts (
	id TEXT PRIMARY KEY,
	url TEXT NOT NULL,
	source TEXT NOT NULL,
	success BOOLEAN NOT NULL,
	error TEXT NOT NULL DEFAULT '',
	error_type TEXT NOT NULL DEFAULT '',
	product_id TEXT NOT NULL DEFAULT '',
	duration_ms BIGINT NOT NULL,
	detected_bot BOOLEAN NOT NULL,
	detection_src TEXT NOT NULL DEFAULT '',
	created_at TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS scrape_attempts_created_at ON scrape_attempts (created_at);
`

const columns = `id, url, source, success, error, error_type, product_id, duration_ms, detected_bot, detection_src, created_at`

// New creates a new Postgres-backed journal.Backend.
func New(ctx context.Context, dsn string) (journal.Backend, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres: connect: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres: ping: %w", err)
	}

	if _, err := pool.Exec(ctx, schema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres: create schema: %w", err)
	}

	return &postgresBackend{pool: pool}, nil
}

func (b *postgresBackend) Save(ctx context.Context, entry *journal.Entry) error {
	query := `INSERT INTO scrape_attempts (` + columns + `) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`

	_, err := b.pool.Exec(ctx, query,
		entry.ID,
		entry.URL,
		entry.Source,
		entry.Success,
		entry.Error,
		entry.ErrorType,
		entry.ProductID,
		entry.Duration.Milliseconds(),
		entry.DetectedBot,
		entry.DetectionSrc,
		entry.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("postgres: save entry %s: %w", entry.ID, err)
	}

	return nil
}

func (b *postgresBackend) Query(ctx context.Context, filter journal.Filter) ([]*journal.Entry, error) {
	query := `SELECT ` + columns + ` FROM scrape_attempts WHERE 1=1`
	args := []any{}
	paramCount := 1

	add := func(clause string, v any) {
		query += fmt.Sprintf(clause, paramCount)
		args = append(args, v)
		paramCount++
	}

	if filter.URL != "" {
		add(` AND url = $%d`, filter.URL)
	}
	if filter.Source != "" {
		add(` AND source = $%d`, filter.Source)
	}
	if filter.Success != nil {
		add(` AND success = $%d`, *filter.Success)
	}
	if filter.DetectedBot != nil {
		add(` AND detected_bot = $%d`, *filter.DetectedBot)
	}
	if filter.Since != nil {
		add(` AND created_at >= $%d`, *filter.Since)
	}

	query += ` ORDER BY created_at DESC`

	if filter.Limit > 0 {
		add(` LIMIT $%d`, filter.Limit)
	}
	if filter.Offset > 0 {
		add(` OFFSET $%d`, filter.Offset)
	}

	rows, err := b.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: query: %w", err)
	}
	defer rows.Close()

	var entries []*journal.Entry
	for rows.Next() {
		var e journal.Entry
		var durationMs int64

		err := rows.Scan(
			&e.ID, &e.URL, &e.Source, &e.Success, &e.Error, &e.ErrorType, &e.ProductID,
			&durationMs, &e.DetectedBot, &e.DetectionSrc, &e.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("postgres: scan: %w", err)
		}

		e.Duration = time.Duration(durationMs) * time.Millisecond
		entries = append(entries, &e)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: rows: %w", err)
	}

	return entries, nil
}

func (b *postgresBackend) Close() error {
	b.pool.Close()
	return nil
}
