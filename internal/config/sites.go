package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"os"
	"strings"

	"go.uber.org/multierr"

	"github.com/hamed0406/sitemonitor/internal/domain"
	"github.com/hamed0406/sitemonitor/internal/repo"
)

// ErrInvalidConfig wraps every configuration validation failure.
var ErrInvalidConfig = errors.New("invalid configuration")

// LoadSites reads and validates the site list. Any problem aborts the load
// so that no check runs against a half-valid configuration.
func LoadSites(path string) ([]domain.Site, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: read sites: %w", ErrInvalidConfig, err)
	}
	var sites []domain.Site
	if err := json.Unmarshal(b, &sites); err != nil {
		return nil, fmt.Errorf("%w: parse %s: must be a JSON array of sites: %w", ErrInvalidConfig, path, err)
	}
	if err := ValidateSites(sites); err != nil {
		return nil, err
	}
	return sites, nil
}

// ValidateSites checks every site and returns all problems at once.
func ValidateSites(sites []domain.Site) error {
	var errs error
	seen := make(map[string]bool, len(sites))
	keys := make(map[string]string, len(sites)) // lowercased file key -> first name using it
	for i, s := range sites {
		name := strings.TrimSpace(s.Name)
		switch key := strings.ToLower(repo.SafeName(name)); {
		case name == "":
			errs = multierr.Append(errs, fmt.Errorf("site %d: name is required", i))
		case seen[name]:
			errs = multierr.Append(errs, fmt.Errorf("site %d: duplicate name %q", i, name))
		case keys[key] != "":
			errs = multierr.Append(errs, fmt.Errorf("site %d: name %q shares the file name %q with %q", i, name, key, keys[key]))
		default:
			keys[key] = name
		}
		seen[name] = true

		if !isHTTPURL(s.URL) {
			errs = multierr.Append(errs, fmt.Errorf("site %d: url %q must be an absolute http or https URL", i, s.URL))
		}
		if s.PerformanceThresholdMS != nil && *s.PerformanceThresholdMS <= 0 {
			errs = multierr.Append(errs, fmt.Errorf("site %d: performanceThreshold must be positive", i))
		}
		if w := strings.TrimSpace(s.WebhookURL); w != "" && !isHTTPURL(w) {
			errs = multierr.Append(errs, fmt.Errorf("site %d: invalid webhookUrl %q", i, w))
		}
	}
	if errs != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, errs)
	}
	return nil
}

// EnabledSites keeps configuration order and drops disabled sites.
func EnabledSites(sites []domain.Site) []domain.Site {
	out := make([]domain.Site, 0, len(sites))
	for _, s := range sites {
		if s.IsEnabled() {
			out = append(out, s)
		}
	}
	return out
}

func isHTTPURL(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return false
	}
	return u.Scheme == "http" || u.Scheme == "https"
}
