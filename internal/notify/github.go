package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/hashicorp/go-retryablehttp"

	"github.com/hamed0406/sitemonitor/internal/domain"
)

const (
	DefaultGitHubAPIURL = "https://api.github.com"

	maxIssuePages = 10
)

var baseLabels = []string{"monitoring", "website-down"}

type GitHubConfig struct {
	Token      string
	Repository string // owner/repo
	APIURL     string
}

type Issue struct {
	Number  int    `json:"number"`
	Title   string `json:"title"`
	State   string `json:"state"`
	HTMLURL string `json:"html_url"`
}

// GitHub files one issue per down site and closes it on recovery.
type GitHub struct {
	cfg    GitHubConfig
	client *retryablehttp.Client
}

// NewGitHub returns nil when the token or repository is missing.
func NewGitHub(cfg GitHubConfig, client *retryablehttp.Client) *GitHub {
	if cfg.Token == "" || !strings.Contains(cfg.Repository, "/") {
		return nil
	}
	if cfg.APIURL == "" {
		cfg.APIURL = DefaultGitHubAPIURL
	}
	cfg.APIURL = strings.TrimRight(cfg.APIURL, "/")
	return &GitHub{cfg: cfg, client: client}
}

func IssueTitle(site string) string {
	return fmt.Sprintf("🚨 Website Monitoring Alert: %s is DOWN", site)
}

func (g *GitHub) headers() http.Header {
	h := http.Header{}
	h.Set("Authorization", "token "+g.cfg.Token)
	h.Set("Accept", "application/vnd.github.v3+json")
	h.Set("User-Agent", "sitemonitor")
	return h
}

func (g *GitHub) issuesURL() string {
	return g.cfg.APIURL + "/repos/" + g.cfg.Repository + "/issues"
}

// FindOpenIssue returns the open alert issue for site, or nil when none exists.
// It follows the Link rel="next" pages up to maxIssuePages.
func (g *GitHub) FindOpenIssue(ctx context.Context, site string) (*Issue, error) {
	q := url.Values{}
	q.Set("state", "open")
	q.Set("labels", strings.Join(baseLabels, ","))
	q.Set("per_page", "100")

	title := IssueTitle(site)
	next := g.issuesURL() + "?" + q.Encode()
	for page := 0; next != "" && page < maxIssuePages; page++ {
		b, h, err := exchange(ctx, g.client, "github", http.MethodGet, next, g.headers(), nil)
		if err != nil {
			return nil, err
		}
		var issues []Issue
		if err := json.Unmarshal(b, &issues); err != nil {
			return nil, fmt.Errorf("github: decode issues: %w", err)
		}
		for i := range issues {
			if issues[i].Title == title && issues[i].State == "open" {
				return &issues[i], nil
			}
		}
		next = nextPage(h.Get("Link"))
	}
	return nil, nil
}

// nextPage extracts the rel="next" target of a GitHub Link header.
func nextPage(link string) string {
	for _, part := range strings.Split(link, ",") {
		segs := strings.Split(part, ";")
		if len(segs) < 2 {
			continue
		}
		target := strings.TrimSpace(segs[0])
		if !strings.HasPrefix(target, "<") || !strings.HasSuffix(target, ">") {
			continue
		}
		for _, p := range segs[1:] {
			if strings.TrimSpace(p) == `rel="next"` {
				return target[1 : len(target)-1]
			}
		}
	}
	return ""
}

func (g *GitHub) CreateIssue(ctx context.Context, r domain.StatusReport, run RunInfo) (*Issue, error) {
	body, err := json.Marshal(map[string]any{
		"title":  IssueTitle(r.SiteName),
		"body":   IssueBody(r, run),
		"labels": IssueLabels(r),
	})
	if err != nil {
		return nil, fmt.Errorf("encode issue: %w", err)
	}
	b, err := send(ctx, g.client, "github", http.MethodPost, g.issuesURL(), g.headers(), body)
	if err != nil {
		return nil, err
	}
	var issue Issue
	if err := json.Unmarshal(b, &issue); err != nil {
		return nil, fmt.Errorf("github: decode issue: %w", err)
	}
	return &issue, nil
}

// CloseIssue leaves comment on the issue (when non-empty) and closes it.
func (g *GitHub) CloseIssue(ctx context.Context, number int, comment string) error {
	issueURL := fmt.Sprintf("%s/%d", g.issuesURL(), number)
	if comment != "" {
		body, _ := json.Marshal(map[string]string{"body": comment})
		if _, err := send(ctx, g.client, "github", http.MethodPost, issueURL+"/comments", g.headers(), body); err != nil {
			return err
		}
	}
	body, _ := json.Marshal(map[string]string{"state": "closed"})
	_, err := send(ctx, g.client, "github", http.MethodPatch, issueURL, g.headers(), body)
	return err
}

// IssueLabels are the base labels plus the error category and, for critical
// reports, "critical".
func IssueLabels(r domain.StatusReport) []string {
	labels := append([]string{}, baseLabels...)
	labels = append(labels, "automated")
	if r.ErrorCategory != "" {
		labels = append(labels, string(r.ErrorCategory))
	} else {
		labels = append(labels, string(domain.CategoryUnknown))
	}
	if r.Severity == domain.SeverityCritical {
		labels = append(labels, "critical")
	}
	return labels
}

func IssueBody(r domain.StatusReport, run RunInfo) string {
	var b strings.Builder
	line := func(format string, args ...any) {
		fmt.Fprintf(&b, format+"\n", args...)
	}

	line("## Website Monitoring Alert")
	line("")
	line("**Website**: %s", r.SiteName)
	line("**URL**: %s", r.URL)
	line("**Status**: %s", r.Status)
	line("**Status Code**: %d", r.StatusCode)
	line("**Error**: %s", orDefault(r.Message(), "Unknown error"))
	line("**Error Category**: %s", orDefault(string(r.ErrorCategory), string(domain.CategoryUnknown)))
	line("**Severity**: %s", r.Severity)
	line("**Load Time**: %s", orNA(r.LoadTimeMS != nil, msText(r.LoadTimeMS)))
	line("**Timestamp**: %s", r.Timestamp)
	line("")
	line("### Details")
	line("- **Final URL**: %s", orDefault(r.FinalURL, r.URL))
	line("- **Page Title**: %s", orDefault(r.PageTitle, "N/A"))
	if r.DNS.Success {
		line("- **DNS Resolution**: ✅ Success (%s)", strings.Join(r.DNS.IPv4, ", "))
	} else {
		line("- **DNS Resolution**: ❌ Failed")
	}
	switch {
	case r.TLS.Valid && r.TLS.DaysUntilExpiry != nil:
		line("- **SSL Certificate**: ✅ Valid, expires in %d days", *r.TLS.DaysUntilExpiry)
	case r.TLS.Valid:
		line("- **SSL Certificate**: ✅ Valid")
	default:
		line("- **SSL Certificate**: ❌ Invalid")
	}
	line("- **Check Duration**: %dms", r.CheckDurationMS)
	if r.PerformanceScore != nil {
		line("- **Performance Score**: %s", *r.PerformanceScore)
	}
	line("")
	line("### Change Information")
	if c := r.Change; c != nil && c.Changed {
		line("- **Status Changed**: 🔴 Downtime detected")
		if c.PreviousStatus != nil {
			line("- **Previous Status**: %s", *c.PreviousStatus)
		}
	} else {
		line("- **Status**: No change detected")
	}
	line("")
	line("### Run Information")
	if run.RunID != "" {
		line("- **Workflow Run ID**: %s", run.RunID)
	}
	if run.RunURL != "" {
		line("- **Workflow Run**: [View Run](%s)", run.RunURL)
	}
	if run.CommitSHA != "" {
		sha := run.CommitSHA
		if len(sha) > 7 {
			sha = sha[:7]
		}
		line("- **Commit**: %s", sha)
	}
	if run.Branch != "" {
		line("- **Branch**: %s", run.Branch)
	}
	if run.Actor != "" {
		line("- **Author**: %s", run.Actor)
	}
	line("")
	line("---")
	line("*This issue was created automatically by sitemonitor and is closed when the website recovers.*")
	return b.String()
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}
