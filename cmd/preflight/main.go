// cmd/preflight/main.go
package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"go.uber.org/multierr"

	"github.com/hamed0406/sitemonitor/internal/config"
)

func main() {
	failed := false
	fail := func(msg string) {
		fmt.Fprintln(os.Stderr, "✖", msg)
		failed = true
	}
	warn := func(msg string) { fmt.Fprintln(os.Stderr, "⚠", msg) }
	ok := func(msg string) { fmt.Println("✔", msg) }

	if err := godotenv.Load(); err != nil {
		warn(".env not found; using the process environment only")
	} else {
		ok(".env loaded")
	}

	cfg := config.FromEnv()
	report := func(err error) {
		for _, e := range problems(err) {
			fail(e.Error())
		}
	}

	if err := cfg.Validate(); err != nil {
		report(err)
	} else {
		ok("environment settings valid (timezone " + cfg.Timezone + ")")
	}

	sites, err := config.LoadSites(cfg.SitesPath)
	if err != nil {
		report(err)
	} else {
		enabled := config.EnabledSites(sites)
		if len(enabled) == 0 {
			warn("no enabled sites in " + cfg.SitesPath)
		} else {
			ok(fmt.Sprintf("%d enabled site(s) in %s", len(enabled), cfg.SitesPath))
		}
	}

	for _, w := range cfg.Warnings() {
		warn(w)
	}

	if len(cfg.AdminAPIKeys) == 0 {
		warn("ADMIN_API_KEYS is empty; admin routes are open.")
	}
	if len(cfg.PublicAPIKeys) == 0 {
		warn("PUBLIC_API_KEYS is empty; read routes are open.")
	}
	for _, k := range append(append([]string{}, cfg.AdminAPIKeys...), cfg.PublicAPIKeys...) {
		if strings.ContainsAny(k, " \t") {
			warn("an API key contains whitespace")
			break
		}
	}

	switch {
	case cfg.DatabaseURL != "":
		ok("DATABASE_URL present; results archived in Postgres")
	case cfg.SQLitePath != "":
		ok("SQLITE_PATH=" + cfg.SQLitePath)
	default:
		warn("no result archive configured; /api/results endpoints will 404.")
	}

	if len(cfg.AllowedOrigins) == 0 {
		warn("ALLOWED_ORIGINS empty; the status API accepts any origin.")
	} else {
		ok("ALLOWED_ORIGINS=" + strings.Join(cfg.AllowedOrigins, ","))
	}

	if failed {
		fmt.Fprintln(os.Stderr, "preflight failed")
		os.Exit(1)
	}
	ok("preflight passed")
}

// problems splits an aggregated validation error into its parts.
func problems(err error) []error {
	if u, ok := err.(interface{ Unwrap() []error }); ok {
		for _, e := range u.Unwrap() {
			if e == config.ErrInvalidConfig {
				continue
			}
			if errs := multierr.Errors(e); len(errs) > 1 {
				return errs
			}
		}
	}
	return []error{err}
}
