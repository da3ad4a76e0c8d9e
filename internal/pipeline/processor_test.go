// v0
// internal/pipeline/processor_test.go
package pipeline

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"nrgchamp/ventilation/internal/bands"
	"nrgchamp/ventilation/internal/cache"
	"nrgchamp/ventilation/internal/evaluate"
	"nrgchamp/ventilation/internal/metrics"
	"nrgchamp/ventilation/internal/models"
	"nrgchamp/ventilation/internal/validate"
	"nrgchamp/ventilation/internal/visual"
)

type memStore struct {
	mu          sync.Mutex
	readings    int
	metrics     []models.MetricRecord
	alerts      []models.AlertRecord
	ventilation []models.VentilationAction
	failAlerts  error
}

func (s *memStore) SaveReading(context.Context, models.Reading) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.readings++
	return nil
}

func (s *memStore) SaveMetrics(_ context.Context, ms []models.MetricRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.metrics = append(s.metrics, ms...)
	return nil
}

func (s *memStore) SaveAlerts(_ context.Context, as []models.AlertRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.alerts = append(s.alerts, as...)
	return s.failAlerts
}

func (s *memStore) SaveVentilation(_ context.Context, a models.VentilationAction) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ventilation = append(s.ventilation, a)
	return nil
}

func (s *memStore) Close() error { return nil }

type recordingPublisher struct {
	mu       sync.Mutex
	commands []models.VentilationCommand
	statuses []visual.StatusColors
	alerts   []models.RankedAlert
}

func (p *recordingPublisher) PublishVentilation(_ context.Context, c models.VentilationCommand) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.commands = append(p.commands, c)
	return nil
}

func (p *recordingPublisher) PublishStatus(_ context.Context, s visual.StatusColors) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.statuses = append(p.statuses, s)
	return nil
}

func (p *recordingPublisher) PublishAlert(_ context.Context, a models.RankedAlert) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.alerts = append(p.alerts, a)
	return nil
}

func calm() models.Reading {
	return models.Reading{
		Timestamp: "2025-03-01T10:00:00Z",
		Temp:      20,
		Pressure:  1013,
		COMean:    2,
		COMax:     5,
		COValid:   true,
		PM25:      8,
		PM10:      20,
		CO2:       600,
	}
}

func newTestProcessor(store *memStore, pub *recordingPublisher, latest cache.LatestStore) *Processor {
	d := Deps{
		Evaluator: evaluate.New(bands.Default()),
		Latest:    latest,
		Metrics:   metrics.New(),
		Logger:    slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	if store != nil {
		d.Store = store
	}
	if pub != nil {
		d.Publisher = pub
	}
	return New(d)
}

func TestProcessCalmReading(t *testing.T) {
	store, pub := &memStore{}, &recordingPublisher{}
	latest := cache.NewMemory(time.Minute, nil)
	p := newTestProcessor(store, pub, latest)

	out, err := p.Process(context.Background(), calm())
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if out.Action.Mode != models.ModeNormal || out.Alert != nil {
		t.Fatalf("outcome = %+v", out)
	}
	if store.readings != 1 || len(store.metrics) != 7 || len(store.ventilation) != 1 {
		t.Fatalf("store = %+v", store)
	}
	if len(pub.commands) != 1 || len(pub.statuses) != 1 || len(pub.alerts) != 0 {
		t.Fatalf("published = %+v", pub)
	}
	if pub.statuses[0].Temp != "green" {
		t.Fatalf("status = %+v", pub.statuses[0])
	}
	snap, ok, _ := latest.Latest(context.Background())
	if !ok || snap.Action.Mode != models.ModeNormal || snap.Packet.Timestamp != "2025-03-01T10:00:00Z" {
		t.Fatalf("snapshot = %+v", snap)
	}
}

func TestProcessCOEmergencyPublishesOneAlert(t *testing.T) {
	store, pub := &memStore{}, &recordingPublisher{}
	p := newTestProcessor(store, pub, nil)
	r := calm()
	r.COMax = 250

	out, err := p.Process(context.Background(), r)
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if out.Action.Mode != models.ModeEmergencyPurge || out.Action.FanExhaustSpeed != 100 {
		t.Fatalf("action = %+v", out.Action)
	}
	if len(pub.alerts) != 1 || pub.alerts[0].Gas != "co" || pub.alerts[0].Level != models.SeverityCritical {
		t.Fatalf("alerts = %+v", pub.alerts)
	}
	if pub.commands[0].Mode != models.ModeEmergencyPurge {
		t.Fatalf("command = %+v", pub.commands[0])
	}
	if len(store.alerts) == 0 {
		t.Fatal("alert records not persisted")
	}
}

func TestProcessJoinsCollaboratorErrors(t *testing.T) {
	boom := errors.New("disk full")
	store, pub := &memStore{failAlerts: boom}, &recordingPublisher{}
	p := newTestProcessor(store, pub, nil)

	out, err := p.Process(context.Background(), calm())
	if !errors.Is(err, boom) {
		t.Fatalf("err = %v", err)
	}
	if out.Action.Mode != models.ModeNormal || len(pub.commands) != 1 || len(store.ventilation) != 1 {
		t.Fatal("a store failure stopped the remaining stages")
	}
	if st := p.Stats(); st.StageErrors != 1 || st.Processed != 1 {
		t.Fatalf("stats = %+v", st)
	}
}

func TestHandleRejectsInvalidPayload(t *testing.T) {
	store := &memStore{}
	p := newTestProcessor(store, nil, nil)
	err := p.Handle(context.Background(), []byte(`{"temp":20}`))
	if !errors.Is(err, validate.ErrMissingField) {
		t.Fatalf("err = %v", err)
	}
	if st := p.Stats(); st.Rejected != 1 || st.Processed != 0 || store.readings != 0 {
		t.Fatalf("stats = %+v, readings = %d", st, store.readings)
	}
	ok := `{"timestamp":"t","temp":20,"pressure":1013,"co_mean":2,"co_max":5,"co_valid":true,"pm2_5":8,"pm10":20,"co2":600}`
	if err := p.Handle(context.Background(), []byte(ok)); err != nil {
		t.Fatalf("Handle: %v", err)
	}
	if store.readings != 1 {
		t.Fatalf("readings = %d", store.readings)
	}
}

func TestProcessConcurrent(t *testing.T) {
	store, pub := &memStore{}, &recordingPublisher{}
	p := newTestProcessor(store, pub, cache.NewMemory(0, nil))
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			r := calm()
			r.CO2 = float64(400 + i*20)
			_, _ = p.Process(context.Background(), r)
		}(i)
	}
	wg.Wait()
	if st := p.Stats(); st.Processed != 50 {
		t.Fatalf("processed = %d", st.Processed)
	}
	if len(store.ventilation) != 50 || len(pub.commands) != 50 {
		t.Fatalf("store=%d published=%d", len(store.ventilation), len(pub.commands))
	}
}

func TestAssessHasNoSideEffects(t *testing.T) {
	store, pub := &memStore{}, &recordingPublisher{}
	p := newTestProcessor(store, pub, nil)
	r := calm()
	r.Temp = 36
	out := p.Assess(r)
	if out.Action.Mode != models.ModeHeatStress || out.Alert == nil {
		t.Fatalf("mode = %s", out.Action.Mode)
	}
	if store.readings != 0 || len(pub.commands) != 0 || p.Stats().Processed != 0 {
		t.Fatal("Assess touched collaborators")
	}
}
