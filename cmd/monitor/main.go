package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"
	_ "time/tzdata"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/hamed0406/sitemonitor/internal/config"
	"github.com/hamed0406/sitemonitor/internal/logging"
	"github.com/hamed0406/sitemonitor/internal/monitor"
	"github.com/hamed0406/sitemonitor/internal/notify"
	"github.com/hamed0406/sitemonitor/internal/probe"
	"github.com/hamed0406/sitemonitor/internal/repo/archive"
	"github.com/hamed0406/sitemonitor/internal/repo/filestore"
)

const notifyTimeout = 15 * time.Second

func main() {
	_ = godotenv.Load()

	cfg := config.FromEnv()
	sitesPath := flag.String("sites", cfg.SitesPath, "path to the sites JSON file")
	resultsDir := flag.String("results", cfg.ResultsDir, "directory for status, metrics and reports")
	flag.Parse()
	cfg.SitesPath, cfg.ResultsDir = *sitesPath, *resultsDir

	logger, err := logging.NewLogger(cfg.LogDir, cfg.LogLevel)
	if err != nil {
		log.Fatal(err)
	}

	code := run(cfg, logger)
	_ = logger.Sync()
	os.Exit(code)
}

// run performs one monitoring pass and returns the process exit code.
func run(cfg config.Config, logger *zap.Logger) int {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := cfg.Validate(); err != nil {
		logger.Error("config_invalid", zap.Error(err))
		return 2
	}
	sites, err := config.LoadSites(cfg.SitesPath)
	if err != nil {
		logger.Error("sites_invalid", zap.String("path", cfg.SitesPath), zap.Error(err))
		return 2
	}
	for _, w := range cfg.Warnings() {
		logger.Warn("config_warning", zap.String("detail", w))
	}

	prober := probe.NewProber(
		probe.NewDNSProber(cfg.ProbeTimeout),
		probe.NewTLSInspector(cfg.ProbeTimeout, cfg.AllowSelfSigned),
	)
	var fetcher probe.PageFetcher = probe.NewHTTPFetcher(cfg.AllowSelfSigned, cfg.UserAgent)
	if cfg.RetryAttempts > 1 {
		fetcher = &probe.RetryFetcher{Inner: fetcher, Attempts: cfg.RetryAttempts, Backoff: cfg.RetryBackoff}
	}

	store := filestore.New(cfg.ResultsDir)
	results, closeArchive, err := archive.Open(ctx, cfg.DatabaseURL, cfg.SQLitePath, logger)
	if err != nil {
		// the archive is optional; a broken one must not stop the checks
		logger.Warn("archive_unavailable", zap.Error(err))
	}
	defer closeArchive()

	client := notify.NewRetryClient(notify.DefaultAttempts, notify.DefaultWaitMin, notify.DefaultWaitMax, notifyTimeout)
	dispatcher := &notify.Dispatcher{
		Chat:            notify.NewSlack(cfg.Slack, client),
		Run:             cfg.Run,
		CloseOnRecovery: cfg.CloseOnRecovery,
		Log:             logger,
	}
	if gh := notify.NewGitHub(cfg.GitHub, client); gh != nil {
		dispatcher.Issues = gh
	}

	runner := monitor.NewRunner(logger, prober, fetcher, store, dispatcher, monitor.Options{
		FetchTimeout:  cfg.FetchTimeout,
		Concurrency:   cfg.MaxConcurrent,
		Location:      cfg.Location(),
		ScreenshotDir: cfg.ResultsDir,
	})
	runner.Archive = results

	res := runner.Run(ctx, sites)

	if err := monitor.WriteSummary(cfg.ResultsDir, res.Summary); err != nil {
		logger.Error("summary_write_failed", zap.Error(err))
	}
	if err := monitor.WriteJUnit(cfg.ResultsDir, res.Summary, res.Reports); err != nil {
		logger.Error("junit_write_failed", zap.Error(err))
	}

	printSummary(res)

	if errors.Is(ctx.Err(), context.Canceled) {
		logger.Warn("run_interrupted")
		return 130
	}
	if cfg.FailOnDown && res.Summary.Down > 0 {
		return 1
	}
	return 0
}

func printSummary(res monitor.Result) {
	s := res.Summary
	fmt.Printf("%d/%d sites up (%.2f%%)\n", s.Up, s.Total, s.UptimePercentage)
	for _, d := range s.DownSites {
		fmt.Printf("  DOWN %-30s %s [%s]\n", d.Name, d.ErrorMessage, d.ErrorCategory)
	}
}
