package domain

const (
	TrendStable           = "stable"
	TrendImproving        = "improving"
	TrendDegrading        = "degrading"
	TrendInsufficientData = "insufficient_data"
)

// Trends summarizes a site's metrics history.
type Trends struct {
	Direction        string   `json:"trendDirection"`
	AvgLoadTimeMS    *int64   `json:"avgLoadTime"`
	MinLoadTimeMS    *int64   `json:"minLoadTime"`
	MaxLoadTimeMS    *int64   `json:"maxLoadTime"`
	UptimePercentage *float64 `json:"uptimePercentage"`
	DataPoints       int      `json:"dataPoints"`
}

// ComputeTrends compares the average load time of the newest window entries
// against the entries before them. Entries must be oldest first.
func ComputeTrends(entries []MetricsEntry, window int) Trends {
	t := Trends{Direction: TrendInsufficientData, DataPoints: len(entries)}
	if len(entries) < 2 {
		return t
	}
	if window <= 0 || window > len(entries) {
		window = len(entries)
	}
	recent := entries[len(entries)-window:]
	older := entries[:len(entries)-window]

	recentAvg := avgLoad(recent)
	olderAvg := recentAvg
	if len(older) > 0 {
		olderAvg = avgLoad(older)
	}

	t.Direction = TrendStable
	switch {
	case recentAvg > olderAvg*1.1:
		t.Direction = TrendDegrading
	case recentAvg < olderAvg*0.9:
		t.Direction = TrendImproving
	}

	avg := int64(recentAvg + 0.5)
	t.AvgLoadTimeMS = &avg

	up := 0
	var lo, hi int64
	seen := false
	for _, e := range entries {
		if e.IsUp {
			up++
		}
		if e.LoadTimeMS <= 0 {
			continue
		}
		if !seen || e.LoadTimeMS < lo {
			lo = e.LoadTimeMS
		}
		if !seen || e.LoadTimeMS > hi {
			hi = e.LoadTimeMS
		}
		seen = true
	}
	if seen {
		t.MinLoadTimeMS = &lo
		t.MaxLoadTimeMS = &hi
	}
	pct := UptimePercentage(up, len(entries))
	t.UptimePercentage = &pct
	return t
}

func avgLoad(entries []MetricsEntry) float64 {
	var sum int64
	for _, e := range entries {
		sum += e.LoadTimeMS
	}
	return float64(sum) / float64(len(entries))
}
