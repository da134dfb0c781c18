// Package filestore keeps per-site status reports and metrics history as JSON
// files under a results directory. Every write replaces the file atomically.
package filestore

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"

	"github.com/natefinch/atomic"

	"github.com/hamed0406/sitemonitor/internal/domain"
	"github.com/hamed0406/sitemonitor/internal/repo"
)

var _ repo.StatusStore = (*Store)(nil)

// Store lays files out as
//
//	<dir>/screenshots/<safe>/status.json
//	<dir>/metrics/<safe>.json
type Store struct {
	dir        string
	maxMetrics int
}

func New(dir string) *Store {
	return &Store{dir: dir, maxMetrics: repo.MaxMetricsEntries}
}

func (s *Store) Dir() string { return s.dir }

// SiteDir is where the status file and screenshots of a site live.
func (s *Store) SiteDir(site string) string {
	return filepath.Join(s.dir, "screenshots", repo.SafeName(site))
}

func (s *Store) statusPath(site string) string {
	return filepath.Join(s.SiteDir(site), "status.json")
}

func (s *Store) metricsPath(site string) string {
	return filepath.Join(s.dir, "metrics", repo.SafeName(site)+".json")
}

func (s *Store) LoadPrevious(_ context.Context, site string) *domain.StatusReport {
	b, err := os.ReadFile(s.statusPath(site))
	if err != nil {
		return nil
	}
	var r domain.StatusReport
	if err := json.Unmarshal(b, &r); err != nil {
		return nil
	}
	return &r
}

func (s *Store) Save(_ context.Context, site string, r domain.StatusReport) error {
	return WriteJSON(s.statusPath(site), r)
}

func (s *Store) AppendMetrics(_ context.Context, site string, e domain.MetricsEntry) error {
	path := s.metricsPath(site)
	entries, err := readMetrics(path)
	if err != nil {
		// A corrupt history is replaced rather than blocking new entries.
		entries = nil
	}
	entries = repo.TrimMetrics(append(entries, e), s.maxMetrics)
	return WriteJSON(path, entries)
}

func (s *Store) LoadMetrics(_ context.Context, site string, limit int) ([]domain.MetricsEntry, error) {
	entries, err := readMetrics(s.metricsPath(site))
	if err != nil {
		return nil, err
	}
	return repo.Tail(entries, limit), nil
}

// ListStatuses returns the latest report of every site, sorted by name.
func (s *Store) ListStatuses(_ context.Context) ([]domain.StatusReport, error) {
	paths, err := filepath.Glob(filepath.Join(s.dir, "screenshots", "*", "status.json"))
	if err != nil {
		return nil, fmt.Errorf("glob status files: %w", err)
	}
	out := make([]domain.StatusReport, 0, len(paths))
	for _, p := range paths {
		b, err := os.ReadFile(p)
		if err != nil {
			continue
		}
		var r domain.StatusReport
		if err := json.Unmarshal(b, &r); err != nil {
			continue
		}
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SiteName < out[j].SiteName })
	return out, nil
}

func readMetrics(path string) ([]domain.MetricsEntry, error) {
	b, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return []domain.MetricsEntry{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read metrics: %w", err)
	}
	var entries []domain.MetricsEntry
	if err := json.Unmarshal(b, &entries); err != nil {
		return nil, fmt.Errorf("decode metrics %s: %w", path, err)
	}
	return entries, nil
}

// WriteJSON encodes v in memory and replaces path in one atomic write.
func WriteJSON(path string, v any) error {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encode %s: %w", filepath.Base(path), err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("mkdir: %w", err)
	}
	if err := atomic.WriteFile(path, bytes.NewReader(b)); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}
