// Package monitor runs one monitoring pass over the configured sites.
package monitor

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/natefinch/atomic"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/hamed0406/sitemonitor/internal/change"
	"github.com/hamed0406/sitemonitor/internal/domain"
	"github.com/hamed0406/sitemonitor/internal/evaluate"
	"github.com/hamed0406/sitemonitor/internal/notify"
	"github.com/hamed0406/sitemonitor/internal/probe"
	"github.com/hamed0406/sitemonitor/internal/repo"
)

type Prober interface {
	Probe(ctx context.Context, target string) (domain.DNSResult, domain.TLSResult)
}

type Dispatcher interface {
	Dispatch(ctx context.Context, r domain.StatusReport, previous *domain.StatusReport, webhook string) notify.Outcome
}

type Options struct {
	FetchTimeout  time.Duration
	Concurrency   int            // 1 checks sites one after another
	Location      *time.Location // display timezone of reports
	ScreenshotDir string         // results root; empty disables screenshots
}

// Runner checks every enabled site: probes, fetch, evaluation, change
// detection, persistence, then notification.
type Runner struct {
	Logger     *zap.Logger
	Prober     Prober
	Fetcher    probe.PageFetcher
	Store      repo.StatusStore
	Archive    repo.ResultArchive // optional
	Dispatcher Dispatcher         // optional
	Options    Options

	now   func() time.Time
	newID func() string
}

func NewRunner(
	logger *zap.Logger,
	prober Prober,
	fetcher probe.PageFetcher,
	store repo.StatusStore,
	dispatcher Dispatcher,
	opts Options,
) *Runner {
	if opts.Concurrency < 1 {
		opts.Concurrency = 1
	}
	if opts.FetchTimeout <= 0 {
		opts.FetchTimeout = probe.DefaultFetchTimeout
	}
	if opts.Location == nil {
		opts.Location = time.UTC
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Runner{
		Logger:     logger,
		Prober:     prober,
		Fetcher:    fetcher,
		Store:      store,
		Dispatcher: dispatcher,
		Options:    opts,
		now:        time.Now,
		newID:      func() string { return uuid.NewString() },
	}
}

// Result is everything one run produced. Reports and Outcomes follow the
// order of the enabled sites, whatever the concurrency.
type Result struct {
	Summary  domain.RunSummary
	Reports  []domain.StatusReport
	Outcomes []notify.Outcome
}

func (r *Runner) Run(ctx context.Context, sites []domain.Site) Result {
	runID := r.newID()
	started := r.now()

	enabled := make([]domain.Site, 0, len(sites))
	for _, s := range sites {
		if s.IsEnabled() {
			enabled = append(enabled, s)
		} else {
			r.Logger.Info("site_skipped", zap.String("site", s.Name), zap.String("reason", "disabled"))
		}
	}
	r.Logger.Info("run_started",
		zap.String("run_id", runID),
		zap.Int("sites", len(enabled)),
		zap.Int("concurrency", r.Options.Concurrency),
	)

	reports := make([]domain.StatusReport, len(enabled))
	outcomes := make([]notify.Outcome, len(enabled))

	var g errgroup.Group
	g.SetLimit(r.Options.Concurrency)
	for i, site := range enabled {
		i, site := i, site
		g.Go(func() error {
			reports[i], outcomes[i] = r.CheckSite(ctx, site)
			return nil
		})
	}
	_ = g.Wait()

	summary := domain.Summarize(runID, started, r.now(), reports)
	r.Logger.Info("run_completed",
		zap.String("run_id", runID),
		zap.Int("total", summary.Total),
		zap.Int("up", summary.Up),
		zap.Int("down", summary.Down),
		zap.Float64("uptime_pct", summary.UptimePercentage),
	)
	return Result{Summary: summary, Reports: reports, Outcomes: outcomes}
}

// CheckSite runs the pipeline for one site. It never fails: a panic inside
// the pipeline becomes a down report with the test_failure category.
func (r *Runner) CheckSite(ctx context.Context, site domain.Site) (report domain.StatusReport, outcome notify.Outcome) {
	log := r.Logger.With(zap.String("site", site.Name), zap.String("url", site.URL))
	start := r.now()

	defer func() {
		if p := recover(); p != nil {
			log.Error("site_check_panic", zap.Any("panic", p))
			report = r.failureReport(site, start, fmt.Sprintf("check failed unexpectedly: %v", p))
			outcome = notify.Outcome{}
		}
	}()

	dns, tls := r.Prober.Probe(ctx, site.URL)
	page, navErr := r.Fetcher.Fetch(ctx, site.URL, r.Options.FetchTimeout)

	report = evaluate.Evaluate(evaluate.Input{
		Site:         site,
		Page:         page,
		NavErr:       navErr,
		DNS:          dns,
		TLS:          tls,
		CheckedAt:    start,
		Duration:     r.now().Sub(start),
		Location:     r.Options.Location,
		FetchTimeout: r.Options.FetchTimeout,
	})
	if navErr != nil {
		log.Debug("navigation_failed", zap.Error(navErr))
	}

	if path := r.captureScreenshot(ctx, log, site, start); path != "" {
		report = report.WithScreenshot(path)
	}

	previous := r.Store.LoadPrevious(ctx, site.Name)
	report = report.WithChange(change.Detect(report, previous, r.now()))

	r.persist(ctx, log, report)

	fields := []zap.Field{
		zap.Bool("up", report.IsUp),
		zap.Int("status", report.StatusCode),
		zap.Int64("check_ms", report.CheckDurationMS),
		zap.Bool("changed", report.Change.Changed),
	}
	if report.LoadTimeMS != nil {
		fields = append(fields, zap.Int64("load_ms", *report.LoadTimeMS))
	}
	if !report.IsUp {
		fields = append(fields,
			zap.String("category", string(report.ErrorCategory)),
			zap.String("severity", string(report.Severity)),
			zap.String("reason", report.Message()),
		)
		log.Warn("site_down", fields...)
	} else {
		log.Info("site_checked", fields...)
	}

	if r.Dispatcher != nil {
		outcome = r.Dispatcher.Dispatch(ctx, report, previous, site.WebhookURL)
	}
	return report, outcome
}

// persist writes the report, its metrics entry and the archive row. Failures
// are logged: the next run then sees stale history.
func (r *Runner) persist(ctx context.Context, log *zap.Logger, report domain.StatusReport) {
	if err := r.Store.Save(ctx, report.SiteName, report); err != nil {
		log.Error("status_save_failed", zap.Error(err))
	}
	if err := r.Store.AppendMetrics(ctx, report.SiteName, domain.MetricsFromReport(report)); err != nil {
		log.Error("metrics_append_failed", zap.Error(err))
	}
	if r.Archive != nil {
		if err := r.Archive.Append(ctx, report); err != nil {
			log.Warn("archive_append_failed", zap.Error(err))
		}
	}
}

// captureScreenshot stores a timestamped capture and refreshes latest.png.
// It returns the latest.png path, or "" when nothing was captured.
func (r *Runner) captureScreenshot(ctx context.Context, log *zap.Logger, site domain.Site, at time.Time) string {
	shooter, ok := r.Fetcher.(probe.Screenshotter)
	if !ok || r.Options.ScreenshotDir == "" {
		return ""
	}
	dir := filepath.Join(r.Options.ScreenshotDir, "screenshots", repo.SafeName(site.Name))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		log.Warn("screenshot_dir_failed", zap.Error(err))
		return ""
	}
	stamped := filepath.Join(dir, at.UTC().Format("20060102T150405Z")+".png")
	if err := shooter.CaptureScreenshot(ctx, stamped); err != nil {
		if !errors.Is(err, probe.ErrScreenshotUnsupported) {
			log.Warn("screenshot_failed", zap.Error(err))
		}
		return ""
	}
	latest := filepath.Join(dir, "latest.png")
	if err := copyFile(stamped, latest); err != nil {
		log.Warn("screenshot_copy_failed", zap.Error(err))
		return stamped
	}
	return latest
}

func copyFile(src, dst string) error {
	f, err := os.Open(src)
	if err != nil {
		return err
	}
	defer f.Close()
	return atomic.WriteFile(dst, f)
}

func (r *Runner) failureReport(site domain.Site, at time.Time, msg string) domain.StatusReport {
	loc := r.Options.Location
	return domain.StatusReport{
		SiteName:               site.Name,
		Timestamp:              evaluate.DisplayTimestamp(at, loc),
		TimestampISO:           at.UTC(),
		Timezone:               loc.String(),
		URL:                    site.URL,
		FinalURL:               site.URL,
		Status:                 domain.StatusDown,
		ErrorMessage:           &msg,
		ErrorCategory:          domain.CategoryTest,
		Severity:               evaluate.Severity(false, domain.CategoryTest, 0),
		CheckDurationMS:        r.now().Sub(at).Milliseconds(),
		PerformanceThresholdMS: site.Threshold(),
	}
}
