// Package change classifies the transition between consecutive reports of a site.
package change

import (
	"time"

	"github.com/hamed0406/sitemonitor/internal/domain"
)

// Detect compares current against the last persisted report. A nil previous
// is a first observation, never a transition. Downtime duration is only set
// on recovery and measured from the previous report's timestamp to now.
func Detect(current domain.StatusReport, previous *domain.StatusReport, now time.Time) domain.ChangeInfo {
	info := domain.ChangeInfo{CurrentStatus: statusOf(current)}
	if previous == nil {
		info.Changed = true
		info.IsDowntime = !current.IsUp
		return info
	}

	prev := statusOf(*previous)
	info.PreviousStatus = &prev
	info.Changed = previous.IsUp != current.IsUp
	info.IsRecovery = !previous.IsUp && current.IsUp
	info.IsDowntime = previous.IsUp && !current.IsUp

	if info.IsRecovery {
		d := now.Sub(previous.TimestampISO).Milliseconds()
		if d < 0 || previous.TimestampISO.IsZero() {
			d = 0
		}
		info.DowntimeDurationMS = &d
	}
	return info
}

func statusOf(r domain.StatusReport) string {
	if r.Status != "" {
		return r.Status
	}
	if r.IsUp {
		return domain.StatusUp
	}
	return domain.StatusDown
}
