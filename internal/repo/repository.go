package repo

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/hamed0406/sitemonitor/internal/domain"
)

// MaxMetricsEntries bounds a site's metrics history; oldest entries go first.
const MaxMetricsEntries = 1000

var ErrNotFound = errors.New("not found")

// Ports (interfaces) — swap in any adapter later.

// StatusStore owns the latest report of every site and its metrics history.
// LoadPrevious never fails: missing or malformed data means "no history".
type StatusStore interface {
	LoadPrevious(ctx context.Context, site string) *domain.StatusReport
	Save(ctx context.Context, site string, r domain.StatusReport) error
	AppendMetrics(ctx context.Context, site string, e domain.MetricsEntry) error
	LoadMetrics(ctx context.Context, site string, limit int) ([]domain.MetricsEntry, error)
	ListStatuses(ctx context.Context) ([]domain.StatusReport, error)
}

// ResultArchive keeps every finished report for history queries.
type ResultArchive interface {
	Append(ctx context.Context, r domain.StatusReport) error
	Latest(ctx context.Context) ([]LatestRow, error)
	History(ctx context.Context, site string, limit int) ([]LatestRow, error)
}

// LatestRow is the archived view of one check.
type LatestRow struct {
	Site       string               `json:"site"`
	URL        string               `json:"url"`
	Up         bool                 `json:"up"`
	HTTPStatus *int                 `json:"http_status,omitempty"`
	LatencyMS  *int64               `json:"latency_ms,omitempty"`
	Category   domain.ErrorCategory `json:"category,omitempty"`
	Reason     string               `json:"reason"`
	CheckedAt  time.Time            `json:"checked_at"`
}

// RowFromReport flattens a report into its archive row.
func RowFromReport(r domain.StatusReport) LatestRow {
	row := LatestRow{
		Site:      r.SiteName,
		URL:       r.URL,
		Up:        r.IsUp,
		LatencyMS: r.LoadTimeMS,
		Category:  r.ErrorCategory,
		Reason:    r.Message(),
		CheckedAt: r.TimestampISO,
	}
	if r.StatusCode != 0 {
		v := r.StatusCode
		row.HTTPStatus = &v
	}
	if row.Reason == "" {
		row.Reason = r.Status
	}
	return row
}

// SafeName maps a site name onto a filesystem-safe key: every rune outside
// [A-Za-z0-9] becomes '-'.
func SafeName(name string) string {
	var b strings.Builder
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			b.WriteRune(r)
		default:
			b.WriteByte('-')
		}
	}
	return b.String()
}

// TrimMetrics keeps the newest max entries in original order.
func TrimMetrics(entries []domain.MetricsEntry, max int) []domain.MetricsEntry {
	if max <= 0 || len(entries) <= max {
		return entries
	}
	return append([]domain.MetricsEntry(nil), entries[len(entries)-max:]...)
}

// Tail returns the last n entries, or all of them when n <= 0.
func Tail(entries []domain.MetricsEntry, n int) []domain.MetricsEntry {
	if n <= 0 || n >= len(entries) {
		return entries
	}
	return entries[len(entries)-n:]
}
