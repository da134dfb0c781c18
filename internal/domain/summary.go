package domain

import (
	"math"
	"time"
)

// SiteResult is the per-site line of a run summary.
type SiteResult struct {
	Name            string        `json:"name"`
	URL             string        `json:"url"`
	IsUp            bool          `json:"isUp"`
	StatusCode      int           `json:"statusCode"`
	LoadTimeMS      *int64        `json:"loadTime"`
	CheckDurationMS int64         `json:"checkDuration"`
	ErrorMessage    string        `json:"errorMessage,omitempty"`
	ErrorCategory   ErrorCategory `json:"errorCategory,omitempty"`
	Severity        Severity      `json:"severity"`
}

// RunSummary aggregates one monitoring run. Sites keeps configuration order.
type RunSummary struct {
	RunID            string       `json:"runId"`
	StartedAt        time.Time    `json:"startedAt"`
	FinishedAt       time.Time    `json:"finishedAt"`
	Total            int          `json:"total"`
	Up               int          `json:"up"`
	Down             int          `json:"down"`
	UptimePercentage float64      `json:"uptimePercentage"`
	Sites            []SiteResult `json:"sites"`
	DownSites        []SiteResult `json:"downSites"`
}

// Summarize builds the run totals from finished reports.
func Summarize(runID string, started, finished time.Time, reports []StatusReport) RunSummary {
	s := RunSummary{
		RunID:      runID,
		StartedAt:  started,
		FinishedAt: finished,
		Total:      len(reports),
		Sites:      make([]SiteResult, 0, len(reports)),
		DownSites:  []SiteResult{},
	}
	for _, r := range reports {
		line := SiteResult{
			Name:            r.SiteName,
			URL:             r.URL,
			IsUp:            r.IsUp,
			StatusCode:      r.StatusCode,
			LoadTimeMS:      r.LoadTimeMS,
			CheckDurationMS: r.CheckDurationMS,
			ErrorMessage:    r.Message(),
			ErrorCategory:   r.ErrorCategory,
			Severity:        r.Severity,
		}
		s.Sites = append(s.Sites, line)
		if r.IsUp {
			s.Up++
		} else {
			s.Down++
			s.DownSites = append(s.DownSites, line)
		}
	}
	s.UptimePercentage = UptimePercentage(s.Up, s.Total)
	return s
}

// UptimePercentage returns up/total as a percentage rounded to two decimals; 0 when total is 0.
func UptimePercentage(up, total int) float64 {
	if total == 0 {
		return 0
	}
	return math.Round(float64(up)/float64(total)*10000) / 100
}
