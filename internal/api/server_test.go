// v1
// internal/api/server_test.go
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"nrgchamp/ventilation/internal/bands"
	"nrgchamp/ventilation/internal/cache"
	"nrgchamp/ventilation/internal/evaluate"
	"nrgchamp/ventilation/internal/metrics"
	"nrgchamp/ventilation/internal/models"
	"nrgchamp/ventilation/internal/pipeline"
)

const reading = `{"timestamp":"2025-03-01T10:00:00Z","temp":20,"pressure":1013,"co_mean":2,"co_max":5,"co_valid":true,"pm2_5":8,"pm10":20,"co2":600}`

type fakeHistory struct {
	items []models.VentilationAction
	limit atomic.Int64
}

func (f *fakeHistory) VentilationHistory(_ context.Context, limit int) ([]models.VentilationAction, error) {
	f.limit.Store(int64(limit))
	return f.items[:min(limit, len(f.items))], nil
}

type fixture struct {
	srv    *httptest.Server
	proc   *pipeline.Processor
	latest *cache.Memory
	hist   *fakeHistory
}

func newFixture(t *testing.T, reload func() (bands.Thresholds, error), rateLimit float64, burst int) *fixture {
	t.Helper()
	lg := slog.New(slog.NewTextHandler(io.Discard, nil))
	m := metrics.New()
	latest := cache.NewMemory(time.Minute, m)
	proc := pipeline.New(pipeline.Deps{Evaluator: evaluate.New(bands.Default()), Latest: latest, Metrics: m, Logger: lg})
	hist := &fakeHistory{items: []models.VentilationAction{{Mode: models.ModeCO2Purge}, {Mode: models.ModeNormal}}}
	s := NewServer(Options{
		Processor:   proc,
		Latest:      latest,
		History:     hist,
		Reload:      reload,
		Metrics:     m,
		IngestRate:  rateLimit,
		IngestBurst: burst,
		Source:      "mqtt",
		Store:       "none",
		Logger:      lg,
	})
	srv := httptest.NewServer(s.Handler(io.Discard))
	t.Cleanup(srv.Close)
	return &fixture{srv: srv, proc: proc, latest: latest, hist: hist}
}

func (f *fixture) do(t *testing.T, method, path, body string) (*http.Response, map[string]any) {
	t.Helper()
	req, err := http.NewRequest(method, f.srv.URL+path, strings.NewReader(body))
	if err != nil {
		t.Fatal(err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	raw, _ := io.ReadAll(resp.Body)
	var out map[string]any
	_ = json.Unmarshal(raw, &out)
	return resp, out
}

func TestHealthAndMethodRouting(t *testing.T) {
	f := newFixture(t, nil, 0, 0)
	if resp, body := f.do(t, http.MethodGet, "/health", ""); resp.StatusCode != http.StatusOK || body["status"] != "ok" {
		t.Fatalf("health = %d %v", resp.StatusCode, body)
	}
	if resp, _ := f.do(t, http.MethodPost, "/health", ""); resp.StatusCode != http.StatusMethodNotAllowed {
		t.Fatalf("POST /health = %d", resp.StatusCode)
	}
}

func TestIngestThenLatestAndStatus(t *testing.T) {
	f := newFixture(t, nil, 0, 0)
	if resp, _ := f.do(t, http.MethodGet, "/status/latest", ""); resp.StatusCode != http.StatusNotFound {
		t.Fatalf("empty latest = %d", resp.StatusCode)
	}
	resp, body := f.do(t, http.MethodPost, "/readings", reading)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("ingest = %d %v", resp.StatusCode, body)
	}
	resp, body = f.do(t, http.MethodGet, "/status/latest", "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("latest = %d", resp.StatusCode)
	}
	vent := body["ventilation"].(map[string]any)
	if vent["ventilation_mode"] != "NORMAL" || vent["fan_supply_speed"] != float64(40) {
		t.Fatalf("ventilation = %v", vent)
	}
	_, body = f.do(t, http.MethodGet, "/status", "")
	if stats := body["stats"].(map[string]any); stats["processed"] != float64(1) {
		t.Fatalf("stats = %v", stats)
	}
}

func TestIngestValidation(t *testing.T) {
	f := newFixture(t, nil, 0, 0)
	if resp, _ := f.do(t, http.MethodPost, "/readings", `{"temp":`); resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("malformed = %d", resp.StatusCode)
	}
	resp, body := f.do(t, http.MethodPost, "/readings", `{"temp":20}`)
	if resp.StatusCode != http.StatusUnprocessableEntity || !strings.Contains(body["error"].(string), "co2") {
		t.Fatalf("missing = %d %v", resp.StatusCode, body)
	}
	if f.proc.Stats().Processed != 0 {
		t.Fatal("invalid reading processed")
	}
	_, body = f.do(t, http.MethodGet, "/status", "")
	if stats := body["stats"].(map[string]any); stats["rejected"] != float64(2) {
		t.Fatalf("stats = %v", stats)
	}
	f.do(t, http.MethodPost, "/evaluate", `{"temp":20}`)
	if got := f.proc.Stats().Rejected; got != 2 {
		t.Fatalf("dry run counted as rejected: %d", got)
	}
}

func TestIngestRateLimited(t *testing.T) {
	f := newFixture(t, nil, 0.001, 1)
	if resp, _ := f.do(t, http.MethodPost, "/readings", reading); resp.StatusCode != http.StatusOK {
		t.Fatalf("first = %d", resp.StatusCode)
	}
	resp, _ := f.do(t, http.MethodPost, "/readings", reading)
	if resp.StatusCode != http.StatusTooManyRequests || resp.Header.Get("Retry-After") == "" {
		t.Fatalf("second = %d", resp.StatusCode)
	}
}

func TestEvaluateIsDryRun(t *testing.T) {
	f := newFixture(t, nil, 0, 0)
	payload := strings.Replace(reading, `"co_max":5`, `"co_max":250`, 1)
	resp, body := f.do(t, http.MethodPost, "/evaluate", payload)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("evaluate = %d", resp.StatusCode)
	}
	if vent := body["ventilation"].(map[string]any); vent["ventilation_mode"] != "EMERGENCY_PURGE" {
		t.Fatalf("ventilation = %v", vent)
	}
	if alert := body["alert"].(map[string]any); alert["gas"] != "co" || alert["level"] != "critical" {
		t.Fatalf("alert = %v", alert)
	}
	if _, ok, _ := f.latest.Latest(context.Background()); ok || f.proc.Stats().Processed != 0 {
		t.Fatal("dry run had side effects")
	}
}

func TestConfigBandsAndReload(t *testing.T) {
	next := bands.Default()
	next.CO.Ceiling = 150
	var failReload atomic.Bool
	f := newFixture(t, func() (bands.Thresholds, error) {
		if failReload.Load() {
			return bands.Thresholds{}, errors.New("bad band.temp")
		}
		return next, nil
	}, 0, 0)

	_, body := f.do(t, http.MethodGet, "/config/bands", "")
	if body["co_limits"].(map[string]any)["ceiling"] != float64(200) {
		t.Fatalf("bands = %v", body["co_limits"])
	}
	if resp, _ := f.do(t, http.MethodPost, "/config/reload", ""); resp.StatusCode != http.StatusOK {
		t.Fatalf("reload = %d", resp.StatusCode)
	}
	if got := f.proc.Evaluator().Thresholds().CO.Ceiling; got != 150 {
		t.Fatalf("ceiling after reload = %v", got)
	}
	failReload.Store(true)
	if resp, _ := f.do(t, http.MethodPost, "/config/reload", ""); resp.StatusCode != http.StatusUnprocessableEntity {
		t.Fatalf("failed reload = %d", resp.StatusCode)
	}
	if got := f.proc.Evaluator().Thresholds().CO.Ceiling; got != 150 {
		t.Fatalf("failed reload changed thresholds: %v", got)
	}
}

func TestHistoryLimit(t *testing.T) {
	f := newFixture(t, nil, 0, 0)
	resp, body := f.do(t, http.MethodGet, "/ventilation/history?limit=1", "")
	if resp.StatusCode != http.StatusOK || body["count"] != float64(1) || f.hist.limit.Load() != 1 {
		t.Fatalf("history = %d %v", resp.StatusCode, body)
	}
	f.do(t, http.MethodGet, "/ventilation/history?limit=100000", "")
	if got := f.hist.limit.Load(); got != maxHistory {
		t.Fatalf("limit not capped: %d", got)
	}
	if resp, _ := f.do(t, http.MethodGet, "/ventilation/history?limit=x", ""); resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("bad limit = %d", resp.StatusCode)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	f := newFixture(t, nil, 0, 0)
	f.do(t, http.MethodGet, "/health", "")
	resp, err := http.Get(f.srv.URL + "/metrics")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	raw, _ := io.ReadAll(resp.Body)
	if !bytes.Contains(raw, []byte("http_requests_total")) {
		t.Fatalf("metrics output missing http counter")
	}
}
