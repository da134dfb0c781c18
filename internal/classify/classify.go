// Package classify maps raw check failures onto a fixed set of error categories.
package classify

import (
	"strings"

	"github.com/hamed0406/sitemonitor/internal/domain"
)

// Meta is the triage metadata attached to every error category.
type Meta struct {
	Severity  string `json:"severity"` // low | medium | high
	Retryable bool   `json:"retryable"`
	Priority  int    `json:"priority"` // 1 is most urgent
}

var metadata = map[domain.ErrorCategory]Meta{
	domain.CategoryTimeout:    {Severity: "high", Retryable: true, Priority: 1},
	domain.CategoryConnection: {Severity: "high", Retryable: true, Priority: 1},
	domain.CategorySSL:        {Severity: "high", Retryable: false, Priority: 1},
	domain.CategoryDNS:        {Severity: "medium", Retryable: true, Priority: 2},
	domain.CategoryHTTP:       {Severity: "medium", Retryable: false, Priority: 2},
	domain.CategoryContent:    {Severity: "low", Retryable: false, Priority: 3},
	domain.CategoryTest:       {Severity: "high", Retryable: true, Priority: 1},
	domain.CategoryUnknown:    {Severity: "medium", Retryable: false, Priority: 2},
}

// MetadataFor returns the metadata of c, falling back to unknown_error.
func MetadataFor(c domain.ErrorCategory) Meta {
	if m, ok := metadata[c]; ok {
		return m
	}
	return metadata[domain.CategoryUnknown]
}

// Transport causes are matched before HTTP status, HTTP status before body content.
var rules = []struct {
	category domain.ErrorCategory
	keywords []string
}{
	{domain.CategoryTimeout, []string{"timeout"}},
	{domain.CategorySSL, []string{"ssl", "tls", "certificate"}},
	{domain.CategoryDNS, []string{"dns", "name_not_resolved"}},
	{domain.CategoryConnection, []string{"connection_refused", "connection_error"}},
}

var contentMarkers = []string{"404", "nosuchbucket", "error"}

// Categorize classifies an error message and HTTP status code. An empty
// message always yields unknown_error.
func Categorize(message string, statusCode int) domain.ErrorCategory {
	if message == "" {
		return domain.CategoryUnknown
	}
	msg := strings.ToLower(message)
	for _, r := range rules {
		if containsAny(msg, r.keywords) {
			return r.category
		}
	}
	if statusCode >= 400 {
		return domain.CategoryHTTP
	}
	if containsAny(msg, contentMarkers) {
		return domain.CategoryContent
	}
	return domain.CategoryUnknown
}

func containsAny(s string, subs []string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
