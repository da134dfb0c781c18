// Package evaluate turns a fetch outcome plus probe results into a StatusReport.
package evaluate

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/hamed0406/sitemonitor/internal/classify"
	"github.com/hamed0406/sitemonitor/internal/domain"
)

// DisplayLayout is the local wall-clock part of StatusReport.Timestamp.
const DisplayLayout = "2006-01-02 15:04:05"

const emptyBodyMessage = "Page loaded but appears to be empty (no body content)"

// ContentErrorMarkers are body fragments that mark a 2xx/3xx page as broken.
var ContentErrorMarkers = []string{"404 Not Found", "NoSuchBucket", "Code: NoSuchBucket"}

// Input is everything observed during one site check.
type Input struct {
	Site   domain.Site
	Page   domain.PageResult
	NavErr error // set when navigation produced no response
	DNS    domain.DNSResult
	TLS    domain.TLSResult

	CheckedAt    time.Time
	Duration     time.Duration
	Location     *time.Location // nil means UTC
	FetchTimeout time.Duration
}

// Evaluate applies the up/down policy and builds the report.
func Evaluate(in Input) domain.StatusReport {
	loc := in.Location
	if loc == nil {
		loc = time.UTC
	}
	threshold := in.Site.Threshold()

	r := domain.StatusReport{
		SiteName:               in.Site.Name,
		Timestamp:              DisplayTimestamp(in.CheckedAt, loc),
		TimestampISO:           in.CheckedAt.UTC(),
		Timezone:               loc.String(),
		URL:                    in.Site.URL,
		FinalURL:               in.Page.FinalURL,
		StatusCode:             in.Page.StatusCode,
		StatusText:             in.Page.StatusText,
		LoadTimeMS:             in.Page.LoadTimeMS,
		PageTitle:              in.Page.Title,
		CheckDurationMS:        in.Duration.Milliseconds(),
		PerformanceThresholdMS: threshold,
		DNS:                    in.DNS,
		TLS:                    in.TLS,
	}
	if r.FinalURL == "" {
		r.FinalURL = in.Site.URL
	}

	isUp, msg := decide(in, &r)

	if !isUp && msg == "" {
		switch {
		case r.StatusCode >= 400:
			msg = strings.TrimSpace(fmt.Sprintf("HTTP %d %s", r.StatusCode, r.StatusText))
		case r.StatusCode == 0:
			msg = "No response received"
		}
	}

	r.IsUp = isUp
	r.Status = domain.StatusDown
	if isUp {
		r.Status = domain.StatusUp
	} else {
		r.ErrorMessage = &msg
		if r.ErrorCategory == "" {
			r.ErrorCategory = classify.Categorize(msg, r.StatusCode)
		}
	}
	r.Severity = Severity(isUp, r.ErrorCategory, r.StatusCode)
	r.PerformanceScore = Score(r.LoadTimeMS, threshold)
	r.IsSlow = r.LoadTimeMS != nil && *r.LoadTimeMS > threshold
	return r
}

// decide walks the policy steps in order and may pin the category.
func decide(in Input, r *domain.StatusReport) (bool, string) {
	if in.NavErr != nil {
		return false, navigationMessage(in.NavErr, in.FetchTimeout)
	}

	code := in.Page.StatusCode
	switch {
	case code >= 200 && code < 400:
		if marker, ok := findMarker(in.Page.BodyText); ok {
			r.ErrorCategory = domain.CategoryContent
			return false, fmt.Sprintf("Page contains error: %q", marker)
		}
		if exp := in.Site.ExpectedRedirect; exp != "" && strings.Contains(r.FinalURL, exp) {
			r.RedirectedToExpected = true
			return true, ""
		}
		if sameHost(in.Site.URL, r.FinalURL) {
			if strings.TrimSpace(in.Page.BodyText) == "" {
				return false, emptyBodyMessage
			}
			return true, ""
		}
		// Reached a 2xx/3xx on another host with no detectable error content.
		return true, ""
	case code >= 400:
		return false, ""
	default:
		return false, ""
	}
}

func navigationMessage(err error, timeout time.Duration) string {
	raw := err.Error()
	lower := strings.ToLower(raw)
	switch {
	case strings.Contains(lower, "timeout"):
		return fmt.Sprintf("Navigation timeout after %dms", timeout.Milliseconds())
	case strings.Contains(lower, "ssl") || strings.Contains(lower, "tls") || strings.Contains(lower, "cert"):
		return "SSL/TLS error: " + raw
	case strings.Contains(lower, "name_not_resolved"):
		return "DNS resolution failed: " + raw
	case strings.Contains(lower, "connection_refused"):
		return "Connection refused: " + raw
	default:
		return "Navigation error: " + raw
	}
}

func findMarker(body string) (string, bool) {
	for _, m := range ContentErrorMarkers {
		if strings.Contains(body, m) {
			return m, true
		}
	}
	return "", false
}

func sameHost(a, b string) bool {
	ua, err := url.Parse(a)
	if err != nil {
		return false
	}
	ub, err := url.Parse(b)
	if err != nil {
		return false
	}
	return ua.Hostname() != "" && strings.EqualFold(ua.Hostname(), ub.Hostname())
}

// DisplayTimestamp renders t in loc followed by the zone name.
func DisplayTimestamp(t time.Time, loc *time.Location) string {
	return t.In(loc).Format(DisplayLayout) + " (" + loc.String() + ")"
}

// Score buckets a load time against the site threshold. Nil means no load time.
func Score(loadMS *int64, thresholdMS int64) *domain.PerformanceScore {
	if loadMS == nil {
		return nil
	}
	ms := float64(*loadMS)
	t := float64(thresholdMS)
	var s domain.PerformanceScore
	switch {
	case ms <= 0.5*t:
		s = domain.ScoreExcellent
	case ms <= 0.75*t:
		s = domain.ScoreGood
	case ms <= t:
		s = domain.ScoreAcceptable
	default:
		s = domain.ScorePoor
	}
	return &s
}

func Severity(isUp bool, c domain.ErrorCategory, statusCode int) domain.Severity {
	if isUp {
		return domain.SeverityInfo
	}
	if c == domain.CategoryTimeout || c == domain.CategoryConnection || statusCode >= 500 {
		return domain.SeverityCritical
	}
	return domain.SeverityWarning
}
