package domain

import "time"

// DefaultPerformanceThresholdMS applies when a site does not set its own threshold.
const DefaultPerformanceThresholdMS int64 = 5000

// Site is one monitored website as loaded from the sites configuration file.
type Site struct {
	Name                   string `json:"name"`
	URL                    string `json:"url"`
	Enabled                *bool  `json:"enabled,omitempty"`
	PerformanceThresholdMS *int64 `json:"performanceThreshold,omitempty"`
	ExpectedRedirect       string `json:"expectedRedirect,omitempty"`
	Priority               string `json:"priority,omitempty"`
	WebhookURL             string `json:"webhookUrl,omitempty"`
}

// IsEnabled reports whether the site should be checked. Missing means enabled.
func (s Site) IsEnabled() bool {
	return s.Enabled == nil || *s.Enabled
}

// Threshold returns the configured performance threshold or the default.
func (s Site) Threshold() int64 {
	if s.PerformanceThresholdMS == nil {
		return DefaultPerformanceThresholdMS
	}
	return *s.PerformanceThresholdMS
}

type ErrorCategory string

const (
	CategoryTimeout    ErrorCategory = "timeout"
	CategorySSL        ErrorCategory = "ssl_error"
	CategoryDNS        ErrorCategory = "dns_error"
	CategoryConnection ErrorCategory = "connection_error"
	CategoryHTTP       ErrorCategory = "http_error"
	CategoryContent    ErrorCategory = "content_error"
	CategoryTest       ErrorCategory = "test_failure"
	CategoryUnknown    ErrorCategory = "unknown_error"
)

// Categories lists every error category in classification priority order.
var Categories = []ErrorCategory{
	CategoryTimeout,
	CategorySSL,
	CategoryDNS,
	CategoryConnection,
	CategoryHTTP,
	CategoryContent,
	CategoryTest,
	CategoryUnknown,
}

type Severity string

const (
	SeverityInfo     Severity = "info"
	SeverityWarning  Severity = "warning"
	SeverityCritical Severity = "critical"
)

type PerformanceScore string

const (
	ScoreExcellent  PerformanceScore = "excellent"
	ScoreGood       PerformanceScore = "good"
	ScoreAcceptable PerformanceScore = "acceptable"
	ScorePoor       PerformanceScore = "poor"
)

const (
	StatusUp   = "UP"
	StatusDown = "DOWN"
)

// PageResult is what a page fetcher observed while navigating to a URL.
// LoadTimeMS is nil when navigation never produced a response.
type PageResult struct {
	StatusCode int    `json:"statusCode"`
	StatusText string `json:"statusText"`
	FinalURL   string `json:"finalUrl"`
	Title      string `json:"title"`
	BodyText   string `json:"bodyText"`
	LoadTimeMS *int64 `json:"loadTime"`
}

type DNSResult struct {
	Success          bool     `json:"success"`
	ResolutionTimeMS int64    `json:"time"`
	IPv4             []string `json:"addresses"`
	IPv6             []string `json:"ipv6Addresses"`
	Error            *string  `json:"error"`
}

type TLSResult struct {
	Valid           bool       `json:"valid"`
	ExpirationDate  *time.Time `json:"expirationDate"`
	DaysUntilExpiry *int       `json:"daysUntilExpiry"`
	Issuer          string     `json:"issuer,omitempty"`
	Subject         string     `json:"subject,omitempty"`
	Error           *string    `json:"error"`
	ExpiringSoon    bool       `json:"expiringSoon"`
}

// ExpiresWithin reports whether the certificate expiry is known and closer than days.
func (t TLSResult) ExpiresWithin(days int) bool {
	return t.DaysUntilExpiry != nil && *t.DaysUntilExpiry < days
}

// ChangeInfo classifies the transition between two consecutive reports of a site.
type ChangeInfo struct {
	Changed            bool    `json:"changed"`
	IsRecovery         bool    `json:"isRecovery"`
	IsDowntime         bool    `json:"isDowntime"`
	PreviousStatus     *string `json:"previousStatus"`
	CurrentStatus      string  `json:"currentStatus"`
	DowntimeDurationMS *int64  `json:"downtimeDuration"`
}

// StatusReport is the canonical record of one site check. It is built once,
// enriched through the With* copies and never mutated after being persisted.
type StatusReport struct {
	SiteName               string            `json:"name"`
	Timestamp              string            `json:"timestamp"`
	TimestampISO           time.Time         `json:"timestampISO"`
	Timezone               string            `json:"timezone,omitempty"`
	URL                    string            `json:"url"`
	FinalURL               string            `json:"finalUrl"`
	IsUp                   bool              `json:"isUp"`
	Status                 string            `json:"status"`
	StatusCode             int               `json:"statusCode"`
	StatusText             string            `json:"statusText"`
	LoadTimeMS             *int64            `json:"loadTime"`
	PageTitle              string            `json:"title"`
	RedirectedToExpected   bool              `json:"redirectedToExpected"`
	ErrorMessage           *string           `json:"errorMessage"`
	ErrorCategory          ErrorCategory     `json:"errorCategory,omitempty"`
	Severity               Severity          `json:"severity"`
	CheckDurationMS        int64             `json:"checkDuration"`
	IsSlow                 bool              `json:"isSlow"`
	PerformanceThresholdMS int64             `json:"performanceThreshold"`
	PerformanceScore       *PerformanceScore `json:"performanceScore"`
	DNS                    DNSResult         `json:"dns"`
	TLS                    TLSResult         `json:"ssl"`
	Change                 *ChangeInfo       `json:"changeInfo,omitempty"`
	ScreenshotPath         string            `json:"screenshotPath,omitempty"`
}

// Message returns the error message or "" when none was recorded.
func (r StatusReport) Message() string {
	if r.ErrorMessage == nil {
		return ""
	}
	return *r.ErrorMessage
}

// WithChange returns a copy of r carrying the change classification.
func (r StatusReport) WithChange(c ChangeInfo) StatusReport {
	r.Change = &c
	return r
}

// WithScreenshot returns a copy of r referencing a captured screenshot.
func (r StatusReport) WithScreenshot(path string) StatusReport {
	r.ScreenshotPath = path
	return r
}

// MetricsEntry is one point of a site's bounded performance history.
type MetricsEntry struct {
	LoadTimeMS    int64         `json:"loadTime"`
	DNSTimeMS     int64         `json:"dnsTime"`
	TotalTimeMS   int64         `json:"totalTime"`
	IsUp          bool          `json:"isUp"`
	StatusCode    int           `json:"statusCode"`
	ErrorCategory ErrorCategory `json:"errorCategory,omitempty"`
	Timestamp     time.Time     `json:"timestamp"`
}

// MetricsFromReport derives the history entry recorded for a finished check.
func MetricsFromReport(r StatusReport) MetricsEntry {
	var load int64
	if r.LoadTimeMS != nil {
		load = *r.LoadTimeMS
	}
	return MetricsEntry{
		LoadTimeMS:    load,
		DNSTimeMS:     r.DNS.ResolutionTimeMS,
		TotalTimeMS:   r.CheckDurationMS,
		IsUp:          r.IsUp,
		StatusCode:    r.StatusCode,
		ErrorCategory: r.ErrorCategory,
		Timestamp:     r.TimestampISO,
	}
}
