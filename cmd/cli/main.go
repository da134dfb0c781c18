package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/hamed0406/sitemonitor/internal/domain"
	"github.com/hamed0406/sitemonitor/internal/httpapi"
)

func main() {
	_ = godotenv.Load()

	api := os.Getenv("API_BASE")
	if api == "" {
		api = "http://localhost:8080"
	}
	base := flag.String("api", api, "status API base URL")
	key := flag.String("key", os.Getenv("API_KEY"), "API key sent as X-API-Key")
	site := flag.String("site", "", "show the full status of one site")
	flag.Parse()

	c := &client{base: strings.TrimRight(*base, "/"), key: *key, http: &http.Client{Timeout: 10 * time.Second}}

	var err error
	if *site != "" {
		err = c.printSite(*site)
	} else {
		err = c.printOverview()
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error contacting API:", err)
		os.Exit(1)
	}
}

type client struct {
	base string
	key  string
	http *http.Client
}

func (c *client) get(path string, v any) error {
	req, err := http.NewRequest(http.MethodGet, c.base+path, nil)
	if err != nil {
		return err
	}
	if c.key != "" {
		req.Header.Set("X-API-Key", c.key)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("GET %s: %s", path, resp.Status)
	}
	return json.NewDecoder(resp.Body).Decode(v)
}

func (c *client) printOverview() error {
	var sum httpapi.StatusSummary
	if err := c.get("/api/summary", &sum); err != nil {
		return err
	}
	var statuses []domain.StatusReport
	if err := c.get("/api/status", &statuses); err != nil {
		return err
	}

	fmt.Printf("%d/%d sites up (%.2f%%)\n\n", sum.Up, sum.Total, sum.Uptime)
	for _, s := range statuses {
		load := "-"
		if s.LoadTimeMS != nil {
			load = fmt.Sprintf("%dms", *s.LoadTimeMS)
		}
		line := fmt.Sprintf("%-4s %-30s %3d %8s  %s", s.Status, s.SiteName, s.StatusCode, load, s.Timestamp)
		if !s.IsUp {
			line += "  " + s.Message()
		}
		fmt.Println(line)
	}
	return nil
}

func (c *client) printSite(name string) error {
	var s domain.StatusReport
	if err := c.get("/api/status/"+url.PathEscape(name), &s); err != nil {
		return err
	}
	out, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(out))
	return nil
}
