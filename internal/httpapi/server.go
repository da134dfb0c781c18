package httpapi

import (
	"encoding/json"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"github.com/hamed0406/sitemonitor/internal/domain"
	apimw "github.com/hamed0406/sitemonitor/internal/httpapi/middleware"
	"github.com/hamed0406/sitemonitor/internal/repo"
)

const (
	// MaxSiteNameLength bounds the {name} path parameter.
	MaxSiteNameLength = 200
	// DefaultTrendDays is the trend window when ?days is not given.
	DefaultTrendDays = 7
	// DefaultHistoryLimit caps archive history responses.
	DefaultHistoryLimit = 100
)

// Server serves the persisted monitoring state read-only.
type Server struct {
	Logger  *zap.Logger
	Store   repo.StatusStore
	Archive repo.ResultArchive // optional
	Sites   []domain.Site
	Version string

	started time.Time
	now     func() time.Time
}

func NewServer(l *zap.Logger, store repo.StatusStore, archive repo.ResultArchive, sites []domain.Site) *Server {
	return &Server{
		Logger:  l,
		Store:   store,
		Archive: archive,
		Sites:   sites,
		Version: "dev",
		started: time.Now(),
		now:     time.Now,
	}
}

// Router builds the HTTP handler. An empty origins list allows any origin,
// rpm <= 0 disables rate limiting.
func (s *Server) Router(keys apimw.Keys, origins []string, rpm, burst int) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(s.accessLog)
	r.Use(corsHandler(origins))

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	r.Get("/api/health", s.handleHealth)

	r.Group(func(r chi.Router) {
		r.Use(apimw.RateLimit(rpm, burst))
		r.Use(apimw.RequireAny(keys))

		r.Get("/api/status", s.handleListStatuses)
		r.Get("/api/status/{name}", s.handleGetStatus)
		r.Get("/api/summary", s.handleSummary)
		r.Get("/api/metrics/{name}", s.handleMetrics)
		r.Get("/api/results/latest", s.handleLatest)
		r.Get("/api/results/{name}", s.handleHistory)

		r.With(apimw.RequireAdmin(keys)).Get("/api/config/sites", s.handleSites)
	})

	return r
}

func corsHandler(origins []string) func(http.Handler) http.Handler {
	if len(origins) == 0 || (len(origins) == 1 && origins[0] == "*") {
		return cors.AllowAll().Handler
	}
	return cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{http.MethodGet, http.MethodOptions},
		AllowedHeaders: []string{"Content-Type", "Authorization", "X-API-Key"},
		MaxAge:         300,
	})
}

func (s *Server) accessLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.Logger.Debug("http_request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Duration("took", time.Since(start)),
			zap.String("request_id", middleware.GetReqID(r.Context())),
		)
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	statuses, err := s.Store.ListStatuses(r.Context())
	if err != nil {
		s.Logger.Warn("list_statuses_failed", zap.Error(err))
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status":         "healthy",
		"uptime":         int64(s.now().Sub(s.started).Seconds()),
		"timestamp":      s.now().UTC(),
		"version":        s.Version,
		"monitoredSites": len(statuses),
	})
}

func (s *Server) handleListStatuses(w http.ResponseWriter, r *http.Request) {
	statuses, err := s.Store.ListStatuses(r.Context())
	if err != nil {
		s.Logger.Error("list_statuses_failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "could not load statuses")
		return
	}
	if statuses == nil {
		statuses = []domain.StatusReport{}
	}
	writeJSON(w, http.StatusOK, statuses)
}

// StatusSummary is the aggregate returned by /api/summary.
type StatusSummary struct {
	Total     int       `json:"total"`
	Up        int       `json:"up"`
	Down      int       `json:"down"`
	Uptime    float64   `json:"uptime"`
	Timestamp time.Time `json:"timestamp"`
}

func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	statuses, err := s.Store.ListStatuses(r.Context())
	if err != nil {
		s.Logger.Error("list_statuses_failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "could not load statuses")
		return
	}
	sum := StatusSummary{Total: len(statuses), Timestamp: s.now().UTC()}
	for _, st := range statuses {
		if st.IsUp {
			sum.Up++
		}
	}
	sum.Down = sum.Total - sum.Up
	sum.Uptime = domain.UptimePercentage(sum.Up, sum.Total)
	writeJSON(w, http.StatusOK, sum)
}

func (s *Server) handleGetStatus(w http.ResponseWriter, r *http.Request) {
	name, ok := siteName(w, r)
	if !ok {
		return
	}
	statuses, err := s.Store.ListStatuses(r.Context())
	if err != nil {
		s.Logger.Error("list_statuses_failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "could not load statuses")
		return
	}
	// sites are stored under their safe name, so match on it
	key := repo.SafeName(name)
	for _, st := range statuses {
		if repo.SafeName(st.SiteName) == key {
			writeJSON(w, http.StatusOK, st)
			return
		}
	}
	writeError(w, http.StatusNotFound, "website not found")
}

// MetricsResponse carries a site's history together with its trends.
type MetricsResponse struct {
	Site    string                `json:"site"`
	Trends  domain.Trends         `json:"trends"`
	Entries []domain.MetricsEntry `json:"entries"`
}

func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	name, ok := siteName(w, r)
	if !ok {
		return
	}
	limit := queryInt(r, "limit", repo.MaxMetricsEntries)
	days := queryInt(r, "days", DefaultTrendDays)

	entries, err := s.Store.LoadMetrics(r.Context(), name, limit)
	if err != nil {
		s.Logger.Error("load_metrics_failed", zap.String("site", name), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "could not load metrics")
		return
	}
	if len(entries) == 0 {
		writeError(w, http.StatusNotFound, "no metrics for website")
		return
	}
	writeJSON(w, http.StatusOK, MetricsResponse{
		Site:    name,
		Trends:  domain.ComputeTrends(entries, days*24),
		Entries: entries,
	})
}

func (s *Server) handleLatest(w http.ResponseWriter, r *http.Request) {
	if s.Archive == nil {
		writeError(w, http.StatusNotFound, "result archive not configured")
		return
	}
	rows, err := s.Archive.Latest(r.Context())
	if err != nil {
		s.Logger.Error("archive_latest_failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "could not load results")
		return
	}
	if rows == nil {
		rows = []repo.LatestRow{}
	}
	writeJSON(w, http.StatusOK, rows)
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	if s.Archive == nil {
		writeError(w, http.StatusNotFound, "result archive not configured")
		return
	}
	name, ok := siteName(w, r)
	if !ok {
		return
	}
	rows, err := s.Archive.History(r.Context(), name, queryInt(r, "limit", DefaultHistoryLimit))
	if err != nil {
		s.Logger.Error("archive_history_failed", zap.String("site", name), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "could not load results")
		return
	}
	if len(rows) == 0 {
		writeError(w, http.StatusNotFound, "website not found")
		return
	}
	writeJSON(w, http.StatusOK, rows)
}

func (s *Server) handleSites(w http.ResponseWriter, r *http.Request) {
	sites := s.Sites
	if sites == nil {
		sites = []domain.Site{}
	}
	writeJSON(w, http.StatusOK, sites)
}

// siteName reads the {name} path parameter, writing a 400 when it is
// unusable. Escaped separators such as %2F are decoded; the name only ever
// reaches the file store through repo.SafeName.
func siteName(w http.ResponseWriter, r *http.Request) (string, bool) {
	raw := chi.URLParam(r, "name")
	name, err := url.PathUnescape(raw)
	if err != nil {
		name = raw
	}
	name = strings.TrimSpace(name)
	if len(name) > MaxSiteNameLength {
		writeError(w, http.StatusBadRequest, "website name too long")
		return "", false
	}
	if name == "" {
		writeError(w, http.StatusBadRequest, "website name required")
		return "", false
	}
	return name, true
}

func queryInt(r *http.Request, key string, def int) int {
	v, err := strconv.Atoi(r.URL.Query().Get(key))
	if err != nil || v <= 0 {
		return def
	}
	return v
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, map[string]string{"error": msg})
}
