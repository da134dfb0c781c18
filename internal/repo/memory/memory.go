package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/hamed0406/sitemonitor/internal/domain"
	"github.com/hamed0406/sitemonitor/internal/repo"
)

var (
	_ repo.StatusStore   = (*Store)(nil)
	_ repo.ResultArchive = (*Store)(nil)
)

// Store keeps statuses, metrics and the archive in process memory.
// It backs tests and runs without a results directory or database.
type Store struct {
	mu       sync.RWMutex
	statuses map[string]domain.StatusReport
	metrics  map[string][]domain.MetricsEntry
	results  []repo.LatestRow
}

func New() *Store {
	return &Store{
		statuses: make(map[string]domain.StatusReport),
		metrics:  make(map[string][]domain.MetricsEntry),
		results:  make([]repo.LatestRow, 0, 128),
	}
}

// ---- StatusStore ----

func (m *Store) LoadPrevious(_ context.Context, site string) *domain.StatusReport {
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, ok := m.statuses[repo.SafeName(site)]
	if !ok {
		return nil
	}
	return &r
}

func (m *Store) Save(_ context.Context, site string, r domain.StatusReport) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.statuses[repo.SafeName(site)] = r
	return nil
}

func (m *Store) AppendMetrics(_ context.Context, site string, e domain.MetricsEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := repo.SafeName(site)
	m.metrics[key] = repo.TrimMetrics(append(m.metrics[key], e), repo.MaxMetricsEntries)
	return nil
}

func (m *Store) LoadMetrics(_ context.Context, site string, limit int) ([]domain.MetricsEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	tail := repo.Tail(m.metrics[repo.SafeName(site)], limit)
	return append([]domain.MetricsEntry{}, tail...), nil
}

func (m *Store) ListStatuses(_ context.Context) ([]domain.StatusReport, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]domain.StatusReport, 0, len(m.statuses))
	for _, r := range m.statuses {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SiteName < out[j].SiteName })
	return out, nil
}

// ---- ResultArchive ----

func (m *Store) Append(_ context.Context, r domain.StatusReport) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.results = append(m.results, repo.RowFromReport(r))
	return nil
}

func (m *Store) Latest(_ context.Context) ([]repo.LatestRow, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	latest := make(map[string]repo.LatestRow)
	for _, r := range m.results {
		cur, ok := latest[r.Site]
		if !ok || !r.CheckedAt.Before(cur.CheckedAt) {
			latest[r.Site] = r
		}
	}

	out := make([]repo.LatestRow, 0, len(latest))
	for _, r := range latest {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Site < out[j].Site })
	return out, nil
}

// History returns the newest rows of a site first.
func (m *Store) History(_ context.Context, site string, limit int) ([]repo.LatestRow, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []repo.LatestRow
	for i := len(m.results) - 1; i >= 0; i-- {
		if m.results[i].Site != site {
			continue
		}
		out = append(out, m.results[i])
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}
