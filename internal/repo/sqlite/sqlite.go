// Package sqlite archives check results in a local SQLite file.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/hamed0406/sitemonitor/internal/domain"
	"github.com/hamed0406/sitemonitor/internal/repo"
)

var _ repo.ResultArchive = (*Store)(nil)

// Times are stored as fixed-width UTC text so lexical order is chronological.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

type Store struct {
	db *sql.DB
}

// New opens (or creates) the database file and applies the schema.
func New(ctx context.Context, path string) (*Store, error) {
	db, err := sql.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}
	s := &Store{db: db}
	if err := s.migrate(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

func (s *Store) Close() error { return s.db.Close() }

func (s *Store) migrate(ctx context.Context) error {
	const schema = `
CREATE TABLE IF NOT EXISTS results (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	site        TEXT NOT NULL,
	url         TEXT NOT NULL,
	up          INTEGER NOT NULL,
	http_status INTEGER,
	latency_ms  INTEGER,
	category    TEXT NOT NULL DEFAULT '',
	reason      TEXT NOT NULL,
	checked_at  TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_results_site_time ON results (site, checked_at DESC);
`
	_, err := s.db.ExecContext(ctx, schema)
	return err
}

func (s *Store) Append(ctx context.Context, r domain.StatusReport) error {
	row := repo.RowFromReport(r)
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO results (site, url, up, http_status, latency_ms, category, reason, checked_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		row.Site, row.URL, row.Up, row.HTTPStatus, row.LatencyMS, string(row.Category), row.Reason,
		row.CheckedAt.UTC().Format(timeLayout),
	)
	if err != nil {
		return fmt.Errorf("insert result: %w", err)
	}
	return nil
}

func (s *Store) Latest(ctx context.Context) ([]repo.LatestRow, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT r.site, r.url, r.up, r.http_status, r.latency_ms, r.category, r.reason, r.checked_at
  FROM results r
 WHERE r.id = (SELECT id FROM results x WHERE x.site = r.site ORDER BY x.checked_at DESC, x.id DESC LIMIT 1)
 ORDER BY r.site`)
	if err != nil {
		return nil, fmt.Errorf("latest: %w", err)
	}
	defer rows.Close()
	return scanRows(rows)
}

func (s *Store) History(ctx context.Context, site string, limit int) ([]repo.LatestRow, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := s.db.QueryContext(ctx, `
SELECT site, url, up, http_status, latency_ms, category, reason, checked_at
  FROM results
 WHERE site = ?
 ORDER BY checked_at DESC, id DESC
 LIMIT ?`, site, limit)
	if err != nil {
		return nil, fmt.Errorf("history: %w", err)
	}
	defer rows.Close()
	return scanRows(rows)
}

func scanRows(rows *sql.Rows) ([]repo.LatestRow, error) {
	var out []repo.LatestRow
	for rows.Next() {
		var (
			row       repo.LatestRow
			status    sql.NullInt64
			latency   sql.NullInt64
			category  string
			checkedAt string
		)
		if err := rows.Scan(&row.Site, &row.URL, &row.Up, &status, &latency, &category, &row.Reason, &checkedAt); err != nil {
			return nil, fmt.Errorf("scan result: %w", err)
		}
		if status.Valid {
			v := int(status.Int64)
			row.HTTPStatus = &v
		}
		if latency.Valid {
			v := latency.Int64
			row.LatencyMS = &v
		}
		row.Category = domain.ErrorCategory(category)
		t, err := time.Parse(timeLayout, checkedAt)
		if err != nil {
			return nil, fmt.Errorf("parse checked_at %q: %w", checkedAt, err)
		}
		row.CheckedAt = t
		out = append(out, row)
	}
	return out, rows.Err()
}
