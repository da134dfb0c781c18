// Package archive picks the result archive backend from configuration.
package archive

import (
	"context"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/hamed0406/sitemonitor/internal/repo"
	"github.com/hamed0406/sitemonitor/internal/repo/postgres"
	"github.com/hamed0406/sitemonitor/internal/repo/sqlite"
)

// Open returns the Postgres archive when dsn is set, else the SQLite archive
// when sqlitePath is set, else nil. The returned close func is never nil.
func Open(ctx context.Context, dsn, sqlitePath string, log *zap.Logger) (repo.ResultArchive, func(), error) {
	switch {
	case dsn != "":
		pg, err := postgres.New(ctx, dsn, log)
		if err != nil {
			return nil, func() {}, err
		}
		log.Info("archive_opened", zap.String("backend", "postgres"))
		return pg, pg.Close, nil
	case sqlitePath != "":
		if dir := filepath.Dir(sqlitePath); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, func() {}, err
			}
		}
		lite, err := sqlite.New(ctx, sqlitePath)
		if err != nil {
			return nil, func() {}, err
		}
		log.Info("archive_opened", zap.String("backend", "sqlite"), zap.String("path", sqlitePath))
		return lite, func() { _ = lite.Close() }, nil
	default:
		return nil, func() {}, nil
	}
}
