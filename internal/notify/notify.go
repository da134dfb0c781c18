// Package notify delivers down alerts to chat and to an issue tracker.
package notify

import (
	"context"
	"errors"

	"github.com/hamed0406/sitemonitor/internal/domain"
)

// ErrNotConfigured is returned by a channel that has no destination.
var ErrNotConfigured = errors.New("notification channel not configured")

// Alert is what a chat channel renders for one finished check.
type Alert struct {
	Report   domain.StatusReport
	Previous *domain.StatusReport // nil when the site has no history
	Webhook  string               // per-site override
}

type ChatNotifier interface {
	Notify(ctx context.Context, a Alert) error
}

type IssueTracker interface {
	FindOpenIssue(ctx context.Context, site string) (*Issue, error)
	CreateIssue(ctx context.Context, r domain.StatusReport, run RunInfo) (*Issue, error)
	CloseIssue(ctx context.Context, number int, comment string) error
}

// RunInfo identifies the CI run that produced a report.
type RunInfo struct {
	RunID     string
	RunURL    string
	CommitSHA string
	Branch    string
	Actor     string
}
