package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/FranksOps/shopscrape/internal/journal"
)

// ensure sqliteBackend implements journal.Backend
var _ journal.Backend = (*sqliteBackend)(nil)

type sqliteBackend struct {
	db *sql.DB
}

const schema = `
CREATE TABLE IF NOT EXISTS scrape_attempts (
	id TEXT PRIMARY KEY,
	url TEXT NOT NULL,
	source TEXT NOT NULL,
	success BOOLEAN NOT NULL,
	error TEXT,
	error_type TEXT,
	product_id TEXT,
	duration_ms INTEGER NOT NULL,
	detected_bot BOOLEAN NOT NULL,
	detection_src TEXT,
	created_at DATETIME NOT NULL
);
CREATE INDEX IF NOT EXISTS scrape_attempts_created_at ON scrape_attempts (created_at);
`

const columns = `id, url, source, success, error, error_type, product_id, duration_ms, detected_bot, detection_src, created_at`

// New creates a new SQLite-backed journal.Backend.
func New(dsn string) (journal.Backend, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("sqlite: open: %w", err)
	}

	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("sqlite: create schema: %w", err)
	}

	return &sqliteBackend{db: db}, nil
}

func (b *sqliteBackend) Save(ctx context.Context, entry *journal.Entry) error {
	query := `INSERT INTO scrape_attempts (` + columns + `) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	_, err := b.db.ExecContext(ctx, query,
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
		entry.CreatedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("sqlite: save entry %s: %w", entry.ID, err)
	}

	return nil
}

func (b *sqliteBackend) Query(ctx context.Context, filter journal.Filter) ([]*journal.Entry, error) {
	query := `SELECT ` + columns + ` FROM scrape_attempts WHERE 1=1`
	args := []any{}

	if filter.URL != "" {
		query += ` AND url = ?`
		args = append(args, filter.URL)
	}
	if filter.Source != "" {
		query += ` AND source = ?`
		args = append(args, filter.Source)
	}
	if filter.Success != nil {
		query += ` AND success = ?`
		args = append(args, *filter.Success)
	}
	if filter.DetectedBot != nil {
		query += ` AND detected_bot = ?`
		args = append(args, *filter.DetectedBot)
	}
	if filter.Since != nil {
		query += ` AND created_at >= ?`
		args = append(args, filter.Since.UTC())
	}

	query += ` ORDER BY created_at DESC`

	// SQLite only accepts OFFSET after LIMIT; -1 means no limit.
	if filter.Limit > 0 || filter.Offset > 0 {
		limit := filter.Limit
		if limit <= 0 {
			limit = -1
		}
		query += ` LIMIT ? OFFSET ?`
		args = append(args, limit, filter.Offset)
	}

	rows, err := b.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("sqlite: query: %w", err)
	}
	defer rows.Close()

	var entries []*journal.Entry
	for rows.Next() {
		var e journal.Entry
		var durationMs int64
		var errText, errType, productID, detectionSrc sql.NullString

		err := rows.Scan(
			&e.ID, &e.URL, &e.Source, &e.Success, &errText, &errType, &productID,
			&durationMs, &e.DetectedBot, &detectionSrc, &e.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("sqlite: scan: %w", err)
		}

		e.Error = errText.String
		e.ErrorType = errType.String
		e.ProductID = productID.String
		e.DetectionSrc = detectionSrc.String
		e.Duration = time.Duration(durationMs) * time.Millisecond

		entries = append(entries, &e)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: rows: %w", err)
	}

	return entries, nil
}

func (b *sqliteBackend) Close() error {
	return b.db.Close()
}
