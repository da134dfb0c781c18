package notify

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/hamed0406/sitemonitor/internal/domain"
)

// Outcome records what a dispatch actually did.
type Outcome struct {
	Notified     bool `json:"notified"`
	ChatSent     bool `json:"chatSent"`
	IssueNumber  int  `json:"issueNumber,omitempty"`
	IssueCreated bool `json:"issueCreated"`
	IssueClosed  bool `json:"issueClosed"`
}

// Dispatcher decides which channels fire for a finished report. Channels are
// independent and best-effort: failures are logged and never returned.
type Dispatcher struct {
	Chat            ChatNotifier // may be nil
	Issues          IssueTracker // may be nil
	Run             RunInfo
	CloseOnRecovery bool
	Log             *zap.Logger
}

func (d *Dispatcher) Dispatch(ctx context.Context, r domain.StatusReport, previous *domain.StatusReport, webhook string) Outcome {
	var out Outcome
	log := d.logger().With(zap.String("site", r.SiteName))

	if r.IsUp {
		if r.Change != nil && r.Change.IsRecovery && d.CloseOnRecovery && d.Issues != nil {
			out.IssueNumber, out.IssueClosed = d.closeIssue(ctx, log, r)
		}
		return out
	}
	out.Notified = true

	if d.Chat != nil {
		err := d.Chat.Notify(ctx, Alert{Report: r, Previous: previous, Webhook: webhook})
		switch {
		case err == nil:
			out.ChatSent = true
			log.Info("chat_notified")
		case errors.Is(err, ErrNotConfigured):
			log.Debug("chat_skipped", zap.Error(err))
		default:
			log.Warn("chat_notify_failed", zap.String("cause", FailureKind(err)), zap.Error(err))
		}
	}

	if d.Issues != nil {
		out.IssueNumber, out.IssueCreated = d.fileIssue(ctx, log, r)
	}
	return out
}

func (d *Dispatcher) fileIssue(ctx context.Context, log *zap.Logger, r domain.StatusReport) (int, bool) {
	existing, err := d.Issues.FindOpenIssue(ctx, r.SiteName)
	if err != nil {
		// Filing blind would risk duplicates.
		log.Warn("issue_lookup_failed", zap.String("cause", FailureKind(err)), zap.Error(err))
		return 0, false
	}
	if existing != nil {
		log.Info("issue_exists", zap.Int("issue", existing.Number))
		return existing.Number, false
	}
	issue, err := d.Issues.CreateIssue(ctx, r, d.Run)
	if err != nil {
		log.Warn("issue_create_failed", zap.String("cause", FailureKind(err)), zap.Error(err))
		return 0, false
	}
	log.Info("issue_created", zap.Int("issue", issue.Number))
	return issue.Number, true
}

func (d *Dispatcher) closeIssue(ctx context.Context, log *zap.Logger, r domain.StatusReport) (int, bool) {
	existing, err := d.Issues.FindOpenIssue(ctx, r.SiteName)
	if err != nil {
		log.Warn("issue_lookup_failed", zap.String("cause", FailureKind(err)), zap.Error(err))
		return 0, false
	}
	if existing == nil {
		return 0, false
	}
	if err := d.Issues.CloseIssue(ctx, existing.Number, RecoveryComment(r)); err != nil {
		log.Warn("issue_close_failed", zap.Int("issue", existing.Number), zap.String("cause", FailureKind(err)), zap.Error(err))
		return existing.Number, false
	}
	log.Info("issue_closed", zap.Int("issue", existing.Number))
	return existing.Number, true
}

// RecoveryComment is posted on an alert issue before it is closed.
func RecoveryComment(r domain.StatusReport) string {
	down := "unknown"
	if r.Change != nil && r.Change.DowntimeDurationMS != nil {
		down = (time.Duration(*r.Change.DowntimeDurationMS) * time.Millisecond).Round(time.Second).String()
	}
	return fmt.Sprintf("🟢 %s recovered at %s (status %d). Downtime: %s.", r.SiteName, r.Timestamp, r.StatusCode, down)
}

func (d *Dispatcher) logger() *zap.Logger {
	if d.Log == nil {
		return zap.NewNop()
	}
	return d.Log
}
