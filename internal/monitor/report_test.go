package monitor

import (
	"encoding/json"
	"encoding/xml"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hamed0406/sitemonitor/internal/domain"
)

func sampleRun() (domain.RunSummary, []domain.StatusReport) {
	msg := `Page contains error: "NoSuchBucket"`
	reports := []domain.StatusReport{
		{SiteName: "up", URL: "https://up.example", IsUp: true, StatusCode: 200, LoadTimeMS: ms(321), CheckDurationMS: 400},
		{SiteName: "down", URL: "https://down.example", StatusCode: 200, ErrorMessage: &msg, ErrorCategory: domain.CategoryContent, Severity: domain.SeverityWarning, CheckDurationMS: 1500},
	}
	start := time.Date(2025, 8, 18, 12, 0, 0, 0, time.UTC)
	return domain.Summarize("run-1", start, start.Add(2*time.Second), reports), reports
}

func TestBuildJUnit(t *testing.T) {
	s, reports := sampleRun()
	b, err := BuildJUnit(s, reports)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(b), xml.Header))

	var doc junitSuites
	require.NoError(t, xml.Unmarshal(b, &doc))
	assert.Equal(t, 2, doc.Tests)
	assert.Equal(t, 1, doc.Failures)
	require.Len(t, doc.Suites, 1)
	cases := doc.Suites[0].Cases
	require.Len(t, cases, 2)
	assert.Nil(t, cases[0].Failure)
	assert.Equal(t, "0.400", cases[0].Time)
	require.NotNil(t, cases[1].Failure)
	assert.Equal(t, "content_error", cases[1].Failure.Type)
	assert.Equal(t, `Page contains error: "NoSuchBucket"`, cases[1].Failure.Message)
}

func TestWriteSummaryAndJUnit(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "out")
	s, reports := sampleRun()
	require.NoError(t, WriteSummary(dir, s))
	require.NoError(t, WriteJUnit(dir, s, reports))

	raw, err := os.ReadFile(filepath.Join(dir, SummaryFile))
	require.NoError(t, err)
	var got domain.RunSummary
	require.NoError(t, json.Unmarshal(raw, &got))
	assert.Equal(t, 50.0, got.UptimePercentage)
	require.Len(t, got.DownSites, 1)
	assert.Equal(t, "down", got.DownSites[0].Name)

	_, err = os.Stat(filepath.Join(dir, JUnitFile))
	assert.NoError(t, err)
}
