package monitor

import (
	"context"
	"errors"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/hamed0406/sitemonitor/internal/domain"
	"github.com/hamed0406/sitemonitor/internal/notify"
	"github.com/hamed0406/sitemonitor/internal/probe"
	"github.com/hamed0406/sitemonitor/internal/repo/memory"
)

// --- fakes ---

type fakeProber struct{}

func (fakeProber) Probe(context.Context, string) (domain.DNSResult, domain.TLSResult) {
	days := 90
	return domain.DNSResult{Success: true, IPv4: []string{"93.184.216.34"}, IPv6: []string{}},
		domain.TLSResult{Valid: true, DaysUntilExpiry: &days}
}

type fetchResult struct {
	page  domain.PageResult
	err   error
	delay time.Duration
	panic bool
}

type fakeFetcher struct {
	mu      sync.Mutex
	results map[string]fetchResult
}

func (f *fakeFetcher) Fetch(ctx context.Context, url string, _ time.Duration) (domain.PageResult, error) {
	f.mu.Lock()
	res := f.results[url]
	f.mu.Unlock()
	if res.panic {
		panic("browser crashed")
	}
	if res.delay > 0 {
		time.Sleep(res.delay)
	}
	return res.page, res.err
}

type fakeChat struct {
	mu     sync.Mutex
	alerts []notify.Alert
}

func (c *fakeChat) Notify(_ context.Context, a notify.Alert) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.alerts = append(c.alerts, a)
	return nil
}

func ms(v int64) *int64 { return &v }

func okPage(url string, load int64) fetchResult {
	return fetchResult{page: domain.PageResult{StatusCode: 200, StatusText: "OK", FinalURL: url + "/", BodyText: "<html>ok</html>", LoadTimeMS: ms(load)}}
}

func newTestRunner(t *testing.T, f *fakeFetcher, concurrency int) (*Runner, *memory.Store, *fakeChat) {
	t.Helper()
	store := memory.New()
	chat := &fakeChat{}
	d := &notify.Dispatcher{Chat: chat, Log: zap.NewNop()}
	r := NewRunner(zap.NewNop(), fakeProber{}, f, store, d, Options{
		FetchTimeout: 30 * time.Second,
		Concurrency:  concurrency,
	})
	return r, store, chat
}

// --- tests ---

func TestRunner_HealthySiteIsUpAndSilent(t *testing.T) {
	f := &fakeFetcher{results: map[string]fetchResult{"https://example.com": okPage("https://example.com", 1200)}}
	r, store, chat := newTestRunner(t, f, 1)

	res := r.Run(context.Background(), []domain.Site{{Name: "Example", URL: "https://example.com"}})

	require.Len(t, res.Reports, 1)
	rep := res.Reports[0]
	assert.True(t, rep.IsUp)
	require.NotNil(t, rep.PerformanceScore)
	assert.Equal(t, domain.ScoreExcellent, *rep.PerformanceScore)
	assert.Empty(t, rep.ErrorCategory)
	assert.Nil(t, rep.ErrorMessage)
	assert.Empty(t, chat.alerts)
	assert.False(t, res.Outcomes[0].Notified)

	require.NotNil(t, rep.Change)
	assert.True(t, rep.Change.Changed)
	assert.False(t, rep.Change.IsDowntime)

	saved := store.LoadPrevious(context.Background(), "Example")
	require.NotNil(t, saved)
	assert.Equal(t, rep, *saved)
	metrics, _ := store.LoadMetrics(context.Background(), "Example", 0)
	assert.Len(t, metrics, 1)

	assert.Equal(t, 1, res.Summary.Up)
	assert.Equal(t, float64(100), res.Summary.UptimePercentage)
	assert.NotEmpty(t, res.Summary.RunID)
}

func TestRunner_NavigationTimeoutNotifies(t *testing.T) {
	f := &fakeFetcher{results: map[string]fetchResult{
		"https://example.com": {err: &probe.NavigationError{Code: probe.CodeTimeout, URL: "https://example.com", Timeout: 30 * time.Second}},
	}}
	r, _, chat := newTestRunner(t, f, 1)

	res := r.Run(context.Background(), []domain.Site{{Name: "Example", URL: "https://example.com"}})
	rep := res.Reports[0]
	assert.False(t, rep.IsUp)
	assert.Equal(t, domain.CategoryTimeout, rep.ErrorCategory)
	assert.Equal(t, domain.SeverityCritical, rep.Severity)
	assert.Equal(t, "Navigation timeout after 30000ms", rep.Message())
	assert.Nil(t, rep.LoadTimeMS)

	require.Len(t, chat.alerts, 1)
	assert.Equal(t, domain.CategoryTimeout, chat.alerts[0].Report.ErrorCategory)
	assert.True(t, res.Outcomes[0].ChatSent)
	assert.Equal(t, 1, res.Summary.Down)
	assert.Equal(t, "Example", res.Summary.DownSites[0].Name)
}

func TestRunner_TransitionsAcrossRuns(t *testing.T) {
	site := domain.Site{Name: "Example", URL: "https://example.com"}
	f := &fakeFetcher{results: map[string]fetchResult{site.URL: okPage(site.URL, 800)}}
	r, _, chat := newTestRunner(t, f, 1)
	ctx := context.Background()

	r.Run(ctx, []domain.Site{site})

	f.results[site.URL] = fetchResult{page: domain.PageResult{StatusCode: 503, StatusText: "Service Unavailable", FinalURL: site.URL, LoadTimeMS: ms(100)}}
	down := r.Run(ctx, []domain.Site{site}).Reports[0]
	require.NotNil(t, down.Change)
	assert.True(t, down.Change.IsDowntime)
	assert.Equal(t, "HTTP 503 Service Unavailable", down.Message())
	require.Len(t, chat.alerts, 1)
	require.NotNil(t, chat.alerts[0].Previous)
	assert.True(t, chat.alerts[0].Previous.IsUp)

	f.results[site.URL] = okPage(site.URL, 700)
	up := r.Run(ctx, []domain.Site{site}).Reports[0]
	assert.True(t, up.Change.IsRecovery)
	require.NotNil(t, up.Change.DowntimeDurationMS)
	assert.GreaterOrEqual(t, *up.Change.DowntimeDurationMS, int64(0))
	assert.Len(t, chat.alerts, 1)
}

func TestRunner_StableOrderWithConcurrency(t *testing.T) {
	f := &fakeFetcher{results: map[string]fetchResult{}}
	var sites []domain.Site
	for i, name := range []string{"a", "b", "c", "d", "e"} {
		url := "https://" + name + ".example"
		res := okPage(url, 100)
		res.delay = time.Duration(5-i) * 10 * time.Millisecond
		f.results[url] = res
		sites = append(sites, domain.Site{Name: name, URL: url})
	}
	off := false
	sites = append(sites, domain.Site{Name: "disabled", URL: "https://off.example", Enabled: &off})

	r, _, _ := newTestRunner(t, f, 4)
	res := r.Run(context.Background(), sites)

	require.Len(t, res.Reports, 5)
	for i, name := range []string{"a", "b", "c", "d", "e"} {
		assert.Equal(t, name, res.Reports[i].SiteName)
		assert.Equal(t, name, res.Summary.Sites[i].Name)
	}
}

func TestRunner_PanicBecomesTestFailure(t *testing.T) {
	f := &fakeFetcher{results: map[string]fetchResult{
		"https://boom.example": {panic: true},
		"https://ok.example":   okPage("https://ok.example", 100),
	}}
	core, logs := observer.New(zapcore.InfoLevel)
	r, _, _ := newTestRunner(t, f, 1)
	r.Logger = zap.New(core)

	res := r.Run(context.Background(), []domain.Site{
		{Name: "boom", URL: "https://boom.example"},
		{Name: "ok", URL: "https://ok.example"},
	})
	assert.False(t, res.Reports[0].IsUp)
	assert.Equal(t, domain.CategoryTest, res.Reports[0].ErrorCategory)
	assert.Contains(t, res.Reports[0].Message(), "browser crashed")
	assert.True(t, res.Reports[1].IsUp)
	assert.Equal(t, 1, logs.FilterMessage("site_check_panic").Len())
}

type failingStore struct{ *memory.Store }

func (failingStore) Save(context.Context, string, domain.StatusReport) error {
	return errors.New("disk full")
}

func TestRunner_PersistenceFailureIsLogged(t *testing.T) {
	f := &fakeFetcher{results: map[string]fetchResult{"https://example.com": {err: &probe.NavigationError{Code: probe.CodeConnectionRefused, URL: "https://example.com", Err: errors.New("connect: connection refused")}}}}
	core, logs := observer.New(zapcore.InfoLevel)
	chat := &fakeChat{}
	r := NewRunner(zap.New(core), fakeProber{}, f, failingStore{memory.New()}, &notify.Dispatcher{Chat: chat}, Options{})

	res := r.Run(context.Background(), []domain.Site{{Name: "Example", URL: "https://example.com"}})
	assert.Equal(t, domain.CategoryConnection, res.Reports[0].ErrorCategory)
	assert.Equal(t, 1, logs.FilterMessage("status_save_failed").Len())
	assert.Len(t, chat.alerts, 1)
}

type shootingFetcher struct {
	*fakeFetcher
}

func (shootingFetcher) CaptureScreenshot(_ context.Context, dest string) error {
	return os.WriteFile(dest, []byte("png"), 0o644)
}

func TestRunner_CapturesScreenshots(t *testing.T) {
	dir := t.TempDir()
	f := shootingFetcher{&fakeFetcher{results: map[string]fetchResult{"https://example.com": okPage("https://example.com", 100)}}}
	r := NewRunner(zap.NewNop(), fakeProber{}, f, memory.New(), nil, Options{ScreenshotDir: dir})

	res := r.Run(context.Background(), []domain.Site{{Name: "My Site", URL: "https://example.com"}})
	path := res.Reports[0].ScreenshotPath
	require.NotEmpty(t, path)
	assert.Equal(t, "latest.png", path[len(path)-len("latest.png"):])
	b, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "png", string(b))
}

func TestRunner_ArchivesReports(t *testing.T) {
	f := &fakeFetcher{results: map[string]fetchResult{"https://example.com": okPage("https://example.com", 100)}}
	r, _, _ := newTestRunner(t, f, 1)
	archive := memory.New()
	r.Archive = archive

	r.Run(context.Background(), []domain.Site{{Name: "Example", URL: "https://example.com"}})
	rows, err := archive.Latest(context.Background())
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.True(t, rows[0].Up)
}
