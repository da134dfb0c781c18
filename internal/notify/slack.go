package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/hashicorp/go-retryablehttp"

	"github.com/hamed0406/sitemonitor/internal/classify"
	"github.com/hamed0406/sitemonitor/internal/probe"
)

const (
	DefaultSlackAPIURL = "https://slack.com/api"

	colorUp   = "#36a64f"
	colorDown = "#ff0000"

	maxErrorField = 500
)

type SlackConfig struct {
	BotToken   string
	Channel    string
	BotEnabled bool // SLACK_NOTIFICATION=true
	WebhookURL string
	APIURL     string
}

// Slack posts alerts through chat.postMessage when a bot token and channel
// are configured, otherwise through an incoming webhook.
type Slack struct {
	cfg    SlackConfig
	client *retryablehttp.Client
	now    func() time.Time
}

func NewSlack(cfg SlackConfig, client *retryablehttp.Client) *Slack {
	if cfg.APIURL == "" {
		cfg.APIURL = DefaultSlackAPIURL
	}
	cfg.APIURL = strings.TrimRight(cfg.APIURL, "/")
	return &Slack{cfg: cfg, client: client, now: time.Now}
}

func (s *Slack) useBot() bool {
	return s.cfg.BotEnabled && s.cfg.BotToken != "" && s.cfg.Channel != ""
}

func (s *Slack) Notify(ctx context.Context, a Alert) error {
	payload := BuildSlackPayload(a, s.now())

	if s.useBot() {
		payload.Channel = s.cfg.Channel
		payload.Text = payload.Attachments[0].Title
		body, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("encode slack payload: %w", err)
		}
		h := http.Header{}
		h.Set("Authorization", "Bearer "+s.cfg.BotToken)
		resp, err := send(ctx, s.client, "slack", http.MethodPost, s.cfg.APIURL+"/chat.postMessage", h, body)
		if err != nil {
			return err
		}
		var out struct {
			OK    bool   `json:"ok"`
			Error string `json:"error"`
		}
		if err := json.Unmarshal(resp, &out); err != nil {
			return fmt.Errorf("slack: decode response: %w", err)
		}
		if !out.OK {
			return fmt.Errorf("slack api error %q: %w", out.Error, ErrPermanent)
		}
		return nil
	}

	hook := a.Webhook
	if hook == "" {
		hook = s.cfg.WebhookURL
	}
	if hook == "" {
		return ErrNotConfigured
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode slack payload: %w", err)
	}
	_, err = send(ctx, s.client, "slack webhook", http.MethodPost, hook, nil, body)
	return err
}

type SlackPayload struct {
	Channel     string       `json:"channel,omitempty"`
	Text        string       `json:"text,omitempty"`
	Username    string       `json:"username"`
	IconEmoji   string       `json:"icon_emoji"`
	Attachments []Attachment `json:"attachments"`
}

type Attachment struct {
	Color  string  `json:"color"`
	Title  string  `json:"title"`
	Text   string  `json:"text"`
	Fields []Field `json:"fields"`
	Footer string  `json:"footer"`
	TS     int64   `json:"ts"`
}

type Field struct {
	Title string `json:"title"`
	Value string `json:"value"`
	Short bool   `json:"short"`
}

// BuildSlackPayload renders the attachment for one report.
func BuildSlackPayload(a Alert, now time.Time) SlackPayload {
	r := a.Report
	color, verdict := colorDown, "DOWN - Issues Detected!"
	if r.IsUp {
		color, verdict = colorUp, "UP - Running Fine!"
	}

	var fields []Field
	add := func(title, value string, short bool) {
		fields = append(fields, Field{Title: title, Value: value, Short: short})
	}

	add("URL", r.URL, true)
	if r.FinalURL != "" && r.FinalURL != r.URL {
		add("Final URL", r.FinalURL, true)
	}
	if r.PageTitle != "" {
		add("Page Title", r.PageTitle, false)
	}
	add("Status", r.Status, true)
	add("Status Code", orNA(r.StatusCode != 0, fmt.Sprint(r.StatusCode)), true)
	add("Load Time", orNA(r.LoadTimeMS != nil, msText(r.LoadTimeMS)), true)

	var prevLoad *int64
	if a.Previous != nil {
		prevLoad = a.Previous.LoadTimeMS
	}
	if trend := LoadTimeTrend(r.LoadTimeMS, prevLoad); trend != "" {
		add("Response Time Trend", trend, true)
	}
	add("Check Duration", fmt.Sprintf("%dms", r.CheckDurationMS), true)
	add("Check Time", r.Timestamp, true)
	if r.RedirectedToExpected {
		add("Redirected", "Yes (Expected)", true)
	}

	if !r.IsUp {
		msg := r.Message()
		msg = truncate(msg, maxErrorField)
		add("Error", msg, false)
		if r.ErrorCategory != "" {
			meta := classify.MetadataFor(r.ErrorCategory)
			add("Error Category", string(r.ErrorCategory), true)
			add("Severity", strings.ToUpper(string(r.Severity)), true)
			add("Priority", fmt.Sprintf("P%d", meta.Priority), true)
		}
	}

	switch {
	case !r.TLS.Valid && r.TLS.Error != nil:
		add("SSL Certificate", *r.TLS.Error, true)
	case r.TLS.ExpiresWithin(probe.ExpiryWarningDays):
		add("SSL Certificate", fmt.Sprintf("Expires in %d days", *r.TLS.DaysUntilExpiry), true)
	}

	if c := r.Change; c != nil && c.Changed && (c.IsRecovery || c.IsDowntime) {
		text := "Downtime detected"
		if c.IsRecovery {
			text = "Recovered"
		}
		add("Status Change", text, false)
	}
	if r.ScreenshotPath != "" {
		add("Screenshot", "Saved at: `"+r.ScreenshotPath+"`", false)
	}

	return SlackPayload{
		Username:  "Website Monitor",
		IconEmoji: ":bar_chart:",
		Attachments: []Attachment{{
			Color:  color,
			Title:  fmt.Sprintf("Website Monitoring: %s", r.SiteName),
			Text:   "Website Status: " + verdict,
			Fields: fields,
			Footer: "sitemonitor",
			TS:     now.Unix(),
		}},
	}
}

// LoadTimeTrend compares a load time with the previous one. Within 5% is
// "same"; otherwise the change is reported as faster or slower.
func LoadTimeTrend(current, previous *int64) string {
	if current == nil || previous == nil || *previous == 0 || *current == 0 {
		return ""
	}
	diff := float64(*current - *previous)
	pct := diff / float64(*previous) * 100
	switch {
	case math.Abs(pct) < 5:
		return "same as previous check"
	case diff < 0:
		return fmt.Sprintf("%.1f%% faster than previous", math.Abs(pct))
	default:
		return fmt.Sprintf("%.1f%% slower than previous", pct)
	}
}

func msText(v *int64) string {
	if v == nil {
		return ""
	}
	return fmt.Sprintf("%dms", *v)
}

func orNA(ok bool, v string) string {
	if !ok {
		return "N/A"
	}
	return v
}

// truncate cuts s to at most n bytes without splitting a UTF-8 sequence.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}
