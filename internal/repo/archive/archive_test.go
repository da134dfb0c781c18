package archive

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/hamed0406/sitemonitor/internal/domain"
)

func TestOpen_None(t *testing.T) {
	a, closeFn, err := Open(context.Background(), "", "", zap.NewNop())
	require.NoError(t, err)
	assert.Nil(t, a)
	closeFn()
}

func TestOpen_SQLite(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "data", "results.db")

	a, closeFn, err := Open(ctx, "", path, zap.NewNop())
	require.NoError(t, err)
	require.NotNil(t, a)
	defer closeFn()

	r := domain.StatusReport{SiteName: "Example", URL: "https://example.com", IsUp: true, StatusCode: 200, TimestampISO: time.Now().UTC()}
	require.NoError(t, a.Append(ctx, r))

	rows, err := a.Latest(ctx)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "Example", rows[0].Site)
}
