package monitor

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"os"
	"path/filepath"

	"github.com/natefinch/atomic"

	"github.com/hamed0406/sitemonitor/internal/domain"
	"github.com/hamed0406/sitemonitor/internal/repo/filestore"
)

const (
	SummaryFile = "summary.json"
	JUnitFile   = "junit.xml"
)

// WriteSummary stores the run summary as <dir>/summary.json.
func WriteSummary(dir string, s domain.RunSummary) error {
	return filestore.WriteJSON(filepath.Join(dir, SummaryFile), s)
}

type junitSuites struct {
	XMLName  xml.Name     `xml:"testsuites"`
	Name     string       `xml:"name,attr"`
	Tests    int          `xml:"tests,attr"`
	Failures int          `xml:"failures,attr"`
	Time     string       `xml:"time,attr"`
	Suites   []junitSuite `xml:"testsuite"`
}

type junitSuite struct {
	Name      string      `xml:"name,attr"`
	Tests     int         `xml:"tests,attr"`
	Failures  int         `xml:"failures,attr"`
	Time      string      `xml:"time,attr"`
	Timestamp string      `xml:"timestamp,attr"`
	Cases     []junitCase `xml:"testcase"`
}

type junitCase struct {
	Name      string        `xml:"name,attr"`
	Classname string        `xml:"classname,attr"`
	Time      string        `xml:"time,attr"`
	Failure   *junitFailure `xml:"failure,omitempty"`
	SystemOut string        `xml:"system-out,omitempty"`
}

type junitFailure struct {
	Message string `xml:"message,attr"`
	Type    string `xml:"type,attr"`
	Text    string `xml:",chardata"`
}

func seconds(ms int64) string {
	return fmt.Sprintf("%.3f", float64(ms)/1000)
}

// BuildJUnit maps a run onto one test suite with a test case per site. Down
// sites are failures typed by their error category.
func BuildJUnit(s domain.RunSummary, reports []domain.StatusReport) ([]byte, error) {
	suite := junitSuite{
		Name:      "website-monitoring",
		Tests:     s.Total,
		Failures:  s.Down,
		Time:      seconds(s.FinishedAt.Sub(s.StartedAt).Milliseconds()),
		Timestamp: s.StartedAt.UTC().Format("2006-01-02T15:04:05"),
	}
	for _, r := range reports {
		c := junitCase{
			Name:      r.SiteName,
			Classname: "sitemonitor." + r.SiteName,
			Time:      seconds(r.CheckDurationMS),
		}
		if r.IsUp {
			load := "n/a"
			if r.LoadTimeMS != nil {
				load = fmt.Sprintf("%dms", *r.LoadTimeMS)
			}
			c.SystemOut = fmt.Sprintf("%s is UP (status %d, load %s)", r.URL, r.StatusCode, load)
		} else {
			c.Failure = &junitFailure{
				Message: r.Message(),
				Type:    string(r.ErrorCategory),
				Text:    fmt.Sprintf("%s is DOWN\nstatus: %d\ncategory: %s\nseverity: %s\nerror: %s", r.URL, r.StatusCode, r.ErrorCategory, r.Severity, r.Message()),
			}
		}
		suite.Cases = append(suite.Cases, c)
	}
	doc := junitSuites{
		Name:     "sitemonitor " + s.RunID,
		Tests:    suite.Tests,
		Failures: suite.Failures,
		Time:     suite.Time,
		Suites:   []junitSuite{suite},
	}
	b, err := xml.MarshalIndent(doc, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode junit: %w", err)
	}
	return append([]byte(xml.Header), b...), nil
}

// WriteJUnit stores the JUnit report as <dir>/junit.xml.
func WriteJUnit(dir string, s domain.RunSummary, reports []domain.StatusReport) error {
	b, err := BuildJUnit(s, reports)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("mkdir: %w", err)
	}
	return atomic.WriteFile(filepath.Join(dir, JUnitFile), bytes.NewReader(b))
}
