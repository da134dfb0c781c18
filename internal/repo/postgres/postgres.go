package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/hamed0406/sitemonitor/internal/domain"
	"github.com/hamed0406/sitemonitor/internal/repo"
)

var _ repo.ResultArchive = (*Store)(nil)

const schemaSQL = `
CREATE TABLE IF NOT EXISTS check_results (
  id          BIGSERIAL PRIMARY KEY,
  site        TEXT NOT NULL,
  url         TEXT NOT NULL,
  up          BOOLEAN NOT NULL,
  http_status INTEGER NULL,
  latency_ms  BIGINT NULL,
  category    TEXT NOT NULL DEFAULT '',
  reason      TEXT NOT NULL,
  checked_at  TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_check_results_site_time ON check_results (site, checked_at DESC);
`

type Store struct {
	pool *pgxpool.Pool
	log  *zap.Logger
}

func New(ctx context.Context, dsn string, log *zap.Logger) (*Store, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("pgxpool.New: %w", err)
	}
	ctxPing, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := pool.Ping(ctxPing); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping: %w", err)
	}
	s := &Store{pool: pool, log: log}
	if err := s.EnsureSchema(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) EnsureSchema(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, schemaSQL); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}

func (s *Store) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

func (s *Store) Append(ctx context.Context, r domain.StatusReport) error {
	row := repo.RowFromReport(r)
	_, err := s.pool.Exec(ctx,
		`INSERT INTO check_results
		   (site, url, up, http_status, latency_ms, category, reason, checked_at)
		 VALUES
		   ($1, $2, $3, $4, $5, $6, $7, $8)`,
		row.Site, row.URL, row.Up, row.HTTPStatus, row.LatencyMS, string(row.Category), row.Reason, row.CheckedAt,
	)
	if err != nil {
		return fmt.Errorf("insert result: %w", err)
	}
	s.log.Debug("result_archived", zap.String("site", row.Site), zap.Bool("up", row.Up))
	return nil
}

func (s *Store) Latest(ctx context.Context) ([]repo.LatestRow, error) {
	rows, err := s.pool.Query(ctx, `
SELECT DISTINCT ON (r.site)
       r.site,
       r.url,
       r.up,
       r.http_status,
       r.latency_ms,
       r.category,
       r.reason,
       r.checked_at
  FROM check_results r
 ORDER BY r.site, r.checked_at DESC, r.id DESC`)
	if err != nil {
		return nil, fmt.Errorf("latest: %w", err)
	}
	defer rows.Close()

	var out []repo.LatestRow
	for rows.Next() {
		row, err := scanRow(rows)
		if err != nil {
			return nil, fmt.Errorf("scan latest: %w", err)
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

func (s *Store) History(ctx context.Context, site string, limit int) ([]repo.LatestRow, error) {
	var lim *int
	if limit > 0 {
		lim = &limit
	}
	rows, err := s.pool.Query(ctx, `
SELECT site, url, up, http_status, latency_ms, category, reason, checked_at
  FROM check_results
 WHERE site = $1
 ORDER BY checked_at DESC, id DESC
 LIMIT $2`, site, lim)
	if err != nil {
		return nil, fmt.Errorf("history: %w", err)
	}
	defer rows.Close()

	var out []repo.LatestRow
	for rows.Next() {
		row, err := scanRow(rows)
		if err != nil {
			return nil, fmt.Errorf("scan history: %w", err)
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRow(sc scanner) (repo.LatestRow, error) {
	var (
		row      repo.LatestRow
		httpNull sql.NullInt32
		latNull  sql.NullInt64
		category string
	)
	if err := sc.Scan(&row.Site, &row.URL, &row.Up, &httpNull, &latNull, &category, &row.Reason, &row.CheckedAt); err != nil {
		return row, err
	}
	// Build pointers with per-row copies
	if httpNull.Valid {
		v := int(httpNull.Int32)
		row.HTTPStatus = &v
	}
	if latNull.Valid {
		v := latNull.Int64
		row.LatencyMS = &v
	}
	row.Category = domain.ErrorCategory(category)
	return row, nil
}
