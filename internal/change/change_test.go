package change

import (
	"testing"
	"time"

	"github.com/hamed0406/sitemonitor/internal/domain"
)

var now = time.Date(2025, 8, 18, 12, 0, 0, 0, time.UTC)

func report(up bool, at time.Time) domain.StatusReport {
	st := domain.StatusDown
	if up {
		st = domain.StatusUp
	}
	return domain.StatusReport{SiteName: "A", IsUp: up, Status: st, TimestampISO: at}
}

func TestDetect_NoPrevious(t *testing.T) {
	for _, up := range []bool{true, false} {
		c := Detect(report(up, now), nil, now)
		if !c.Changed || c.IsRecovery || c.IsDowntime != !up {
			t.Fatalf("up=%v: unexpected %+v", up, c)
		}
		if c.PreviousStatus != nil || c.DowntimeDurationMS != nil {
			t.Fatalf("first observation should carry no history: %+v", c)
		}
	}
}

func TestDetect_UpToDown(t *testing.T) {
	prev := report(true, now.Add(-5*time.Minute))
	c := Detect(report(false, now), &prev, now)
	if !c.Changed || !c.IsDowntime || c.IsRecovery {
		t.Fatalf("unexpected %+v", c)
	}
	if c.PreviousStatus == nil || *c.PreviousStatus != domain.StatusUp || c.CurrentStatus != domain.StatusDown {
		t.Fatalf("statuses wrong: %+v", c)
	}
	if c.DowntimeDurationMS != nil {
		t.Fatalf("downtime duration only applies on recovery")
	}
}

func TestDetect_Recovery(t *testing.T) {
	prev := report(false, now.Add(-90*time.Second))
	c := Detect(report(true, now), &prev, now)
	if !c.Changed || !c.IsRecovery || c.IsDowntime {
		t.Fatalf("unexpected %+v", c)
	}
	if c.DowntimeDurationMS == nil || *c.DowntimeDurationMS != 90000 {
		t.Fatalf("want 90000ms downtime, got %v", c.DowntimeDurationMS)
	}
}

func TestDetect_RecoveryWithSkewedClockIsClamped(t *testing.T) {
	prev := report(false, now.Add(time.Minute))
	c := Detect(report(true, now), &prev, now)
	if c.DowntimeDurationMS == nil || *c.DowntimeDurationMS != 0 {
		t.Fatalf("want clamped 0, got %v", c.DowntimeDurationMS)
	}
}

func TestDetect_NoChange(t *testing.T) {
	for _, up := range []bool{true, false} {
		prev := report(up, now.Add(-time.Minute))
		c := Detect(report(up, now), &prev, now)
		if c.Changed || c.IsRecovery || c.IsDowntime {
			t.Fatalf("up=%v: unexpected %+v", up, c)
		}
	}
}
