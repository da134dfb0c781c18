package filestore

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hamed0406/sitemonitor/internal/domain"
)

func sampleReport() domain.StatusReport {
	load := int64(1200)
	days := 42
	expiry := time.Date(2025, 9, 29, 0, 0, 0, 0, time.UTC)
	score := domain.ScoreExcellent
	msg := "HTTP 503 Service Unavailable"
	prev := domain.StatusUp
	return domain.StatusReport{
		SiteName:               "My Site",
		Timestamp:              "2025-08-18 19:00:00 (Asia/Bangkok)",
		TimestampISO:           time.Date(2025, 8, 18, 12, 0, 0, 0, time.UTC),
		Timezone:               "Asia/Bangkok",
		URL:                    "https://example.com",
		FinalURL:               "https://example.com/",
		Status:                 domain.StatusDown,
		StatusCode:             503,
		StatusText:             "Service Unavailable",
		LoadTimeMS:             &load,
		PageTitle:              "Example",
		ErrorMessage:           &msg,
		ErrorCategory:          domain.CategoryHTTP,
		Severity:               domain.SeverityCritical,
		CheckDurationMS:        1500,
		PerformanceThresholdMS: 5000,
		PerformanceScore:       &score,
		DNS:                    domain.DNSResult{Success: true, ResolutionTimeMS: 4, IPv4: []string{"93.184.216.34"}, IPv6: []string{}},
		TLS:                    domain.TLSResult{Valid: true, ExpirationDate: &expiry, DaysUntilExpiry: &days, Issuer: "R3", Subject: "example.com"},
		Change:                 &domain.ChangeInfo{Changed: true, IsDowntime: true, PreviousStatus: &prev, CurrentStatus: domain.StatusDown},
	}
}

func TestStore_SaveLoadRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := New(t.TempDir())

	assert.Nil(t, s.LoadPrevious(ctx, "My Site"))

	r := sampleReport()
	require.NoError(t, s.Save(ctx, r.SiteName, r))

	_, err := os.Stat(filepath.Join(s.Dir(), "screenshots", "My-Site", "status.json"))
	require.NoError(t, err)

	got := s.LoadPrevious(ctx, r.SiteName)
	require.NotNil(t, got)
	assert.Equal(t, r, *got)
}

func TestStore_SaveOverwrites(t *testing.T) {
	ctx := context.Background()
	s := New(t.TempDir())
	r := sampleReport()
	require.NoError(t, s.Save(ctx, r.SiteName, r))

	r.IsUp, r.Status, r.ErrorMessage = true, domain.StatusUp, nil
	require.NoError(t, s.Save(ctx, r.SiteName, r))
	got := s.LoadPrevious(ctx, r.SiteName)
	require.NotNil(t, got)
	assert.True(t, got.IsUp)
	assert.Nil(t, got.ErrorMessage)
}

func TestStore_MalformedStatusIsNoHistory(t *testing.T) {
	s := New(t.TempDir())
	path := s.statusPath("Broken")
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o644))

	assert.Nil(t, s.LoadPrevious(context.Background(), "Broken"))
}

func TestStore_MetricsBoundedFIFO(t *testing.T) {
	ctx := context.Background()
	s := New(t.TempDir())
	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

	for i := 0; i < 1500; i++ {
		e := domain.MetricsEntry{LoadTimeMS: int64(i), IsUp: true, StatusCode: 200, Timestamp: base.Add(time.Duration(i) * time.Minute)}
		require.NoError(t, s.AppendMetrics(ctx, "Example", e))
	}

	all, err := s.LoadMetrics(ctx, "Example", 0)
	require.NoError(t, err)
	require.Len(t, all, 1000)
	for i, e := range all {
		require.Equal(t, int64(500+i), e.LoadTimeMS)
	}

	last, err := s.LoadMetrics(ctx, "Example", 24)
	require.NoError(t, err)
	require.Len(t, last, 24)
	assert.Equal(t, int64(1499), last[23].LoadTimeMS)
}

func TestStore_MetricsMissingAndCorrupt(t *testing.T) {
	ctx := context.Background()
	s := New(t.TempDir())

	none, err := s.LoadMetrics(ctx, "Nobody", 10)
	require.NoError(t, err)
	assert.Empty(t, none)

	path := s.metricsPath("Corrupt")
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte("[{"), 0o644))

	_, err = s.LoadMetrics(ctx, "Corrupt", 0)
	assert.Error(t, err)

	require.NoError(t, s.AppendMetrics(ctx, "Corrupt", domain.MetricsEntry{LoadTimeMS: 7}))
	got, err := s.LoadMetrics(ctx, "Corrupt", 0)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, int64(7), got[0].LoadTimeMS)
}

func TestStore_ListStatusesSorted(t *testing.T) {
	ctx := context.Background()
	s := New(t.TempDir())
	for _, name := range []string{"Zeta", "Alpha", "Mid"} {
		require.NoError(t, s.Save(ctx, name, domain.StatusReport{SiteName: name, IsUp: true}))
	}
	require.NoError(t, os.WriteFile(filepath.Join(s.SiteDir("Alpha"), "..", "junk.json"), []byte("x"), 0o644))

	list, err := s.ListStatuses(ctx)
	require.NoError(t, err)
	require.Len(t, list, 3)
	assert.Equal(t, []string{"Alpha", "Mid", "Zeta"}, []string{list[0].SiteName, list[1].SiteName, list[2].SiteName})
}
