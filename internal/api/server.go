// v1
// internal/api/server.go
package api

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"golang.org/x/time/rate"

	"nrgchamp/ventilation/internal/bands"
	"nrgchamp/ventilation/internal/cache"
	"nrgchamp/ventilation/internal/metrics"
	"nrgchamp/ventilation/internal/models"
	"nrgchamp/ventilation/internal/pipeline"
	"nrgchamp/ventilation/internal/storage"
	"nrgchamp/ventilation/internal/validate"
)

const (
	maxBody        = 64 << 10
	defaultHistory = 20
	maxHistory     = 500
)

// Options wires the server to the running service. Latest, History, Reload and
// Metrics may be nil; the matching routes then answer 404 or 501.
type Options struct {
	Processor   *pipeline.Processor
	Latest      cache.LatestStore
	History     storage.HistoryReader
	Reload      func() (bands.Thresholds, error)
	Metrics     *metrics.Metrics
	IngestRate  float64
	IngestBurst int
	Source      string
	Sinks       []string
	Store       string
	Logger      *slog.Logger
}

type Server struct {
	opts    Options
	limiter *rate.Limiter
	lg      *slog.Logger
	started time.Time
}

func NewServer(opts Options) *Server {
	lg := opts.Logger
	if lg == nil {
		lg = slog.Default()
	}
	limit := rate.Inf
	if opts.IngestRate > 0 {
		limit = rate.Limit(opts.IngestRate)
	}
	return &Server{
		opts:    opts,
		limiter: rate.NewLimiter(limit, max(opts.IngestBurst, 1)),
		lg:      lg,
		started: time.Now(),
	}
}

// Router registers every route, each instrumented under its path template.
func (s *Server) Router() *mux.Router {
	r := mux.NewRouter()
	s.route(r, "/health", http.MethodGet, s.health)
	s.route(r, "/status", http.MethodGet, s.status)
	s.route(r, "/status/latest", http.MethodGet, s.latest)
	s.route(r, "/config/bands", http.MethodGet, s.configBands)
	s.route(r, "/config/reload", http.MethodPost, s.configReload)
	s.route(r, "/readings", http.MethodPost, s.ingest)
	s.route(r, "/evaluate", http.MethodPost, s.evaluate)
	s.route(r, "/ventilation/history", http.MethodGet, s.history)
	r.Handle("/metrics", s.opts.Metrics.Handler()).Methods(http.MethodGet)
	return r
}

// Handler is the router behind an Apache-style access log written to accessLog.
func (s *Server) Handler(accessLog io.Writer) http.Handler {
	return handlers.LoggingHandler(accessLog, s.Router())
}

func (s *Server) route(r *mux.Router, path, method string, fn http.HandlerFunc) {
	r.Handle(path, s.opts.Metrics.WrapHandler(path, fn)).Methods(method)
}

func (s *Server) health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok"})
}

func (s *Server) status(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":         "ok",
		"uptime_seconds": int64(time.Since(s.started).Seconds()),
		"source":         s.opts.Source,
		"sinks":          s.opts.Sinks,
		"store":          s.opts.Store,
		"stats":          s.opts.Processor.Stats(),
	})
}

func (s *Server) latest(w http.ResponseWriter, r *http.Request) {
	if s.opts.Latest == nil {
		writeError(w, http.StatusNotFound, "no snapshot yet")
		return
	}
	snap, ok, err := s.opts.Latest.Latest(r.Context())
	if err != nil {
		s.lg.Error("snapshot_read_failed", "error", err)
		writeError(w, http.StatusServiceUnavailable, "snapshot unavailable")
		return
	}
	if !ok {
		writeError(w, http.StatusNotFound, "no snapshot yet")
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

func (s *Server) configBands(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.opts.Processor.Evaluator().Thresholds())
}

func (s *Server) configReload(w http.ResponseWriter, _ *http.Request) {
	if s.opts.Reload == nil {
		writeError(w, http.StatusNotImplemented, "reload not configured")
		return
	}
	th, err := s.opts.Reload()
	if err == nil {
		err = s.opts.Processor.Evaluator().SetThresholds(th)
	}
	if err != nil {
		s.lg.Warn("thresholds_reload_failed", "error", err)
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}
	s.lg.Info("thresholds_reloaded")
	writeJSON(w, http.StatusOK, th)
}

func (s *Server) ingest(w http.ResponseWriter, r *http.Request) {
	if !s.limiter.Allow() {
		w.Header().Set("Retry-After", "1")
		writeError(w, http.StatusTooManyRequests, "rate limit exceeded")
		return
	}
	reading, ok := s.readReading(w, r, true)
	if !ok {
		return
	}
	out, err := s.opts.Processor.Process(r.Context(), reading)
	resp := map[string]any{"result": out}
	if err != nil {
		resp["errors"] = err.Error()
		writeJSON(w, http.StatusAccepted, resp)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) evaluate(w http.ResponseWriter, r *http.Request) {
	reading, ok := s.readReading(w, r, false)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, s.opts.Processor.Assess(reading))
}

// readReading decodes the body; ingest marks payloads that count toward the rejected stats.
func (s *Server) readReading(w http.ResponseWriter, r *http.Request, ingest bool) (reading models.Reading, ok bool) {
	defer r.Body.Close()
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBody))
	if err != nil {
		writeError(w, http.StatusRequestEntityTooLarge, "body too large")
		return reading, false
	}
	reading, err = validate.ParseReading(body)
	if err != nil {
		if ingest {
			s.opts.Processor.Reject(err, len(body))
		}
		status := http.StatusUnprocessableEntity
		if errors.Is(err, validate.ErrMalformed) {
			status = http.StatusBadRequest
		}
		writeError(w, status, err.Error())
		return reading, false
	}
	return reading, true
}

func (s *Server) history(w http.ResponseWriter, r *http.Request) {
	if s.opts.History == nil {
		writeError(w, http.StatusNotImplemented, "store keeps no history")
		return
	}
	limit := defaultHistory
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = min(n, maxHistory)
	}
	h, err := s.opts.History.VentilationHistory(r.Context(), limit)
	if errors.Is(err, storage.ErrNoHistory) {
		writeError(w, http.StatusNotImplemented, "store keeps no history")
		return
	}
	if err != nil {
		s.lg.Error("history_read_failed", "error", err)
		writeError(w, http.StatusServiceUnavailable, "history unavailable")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"count": len(h), "items": h})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	_ = enc.Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
