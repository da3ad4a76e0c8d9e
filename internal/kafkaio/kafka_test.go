// v0
// internal/kafkaio/kafka_test.go
package kafkaio

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"

	"nrgchamp/ventilation/internal/models"
	"nrgchamp/ventilation/internal/sink"
	"nrgchamp/ventilation/internal/visual"
)

func quiet() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

type stubReader struct {
	mu        sync.Mutex
	queue     []kafka.Message
	failFirst bool
	committed []int64
	closed    bool
}

func (r *stubReader) FetchMessage(ctx context.Context) (kafka.Message, error) {
	r.mu.Lock()
	if r.failFirst {
		r.failFirst = false
		r.mu.Unlock()
		return kafka.Message{}, errors.New("leader not available")
	}
	if len(r.queue) > 0 {
		m := r.queue[0]
		r.queue = r.queue[1:]
		r.mu.Unlock()
		return m, nil
	}
	r.mu.Unlock()
	<-ctx.Done()
	return kafka.Message{}, ctx.Err()
}

func (r *stubReader) CommitMessages(_ context.Context, msgs ...kafka.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, m := range msgs {
		r.committed = append(r.committed, m.Offset)
	}
	return nil
}

func (r *stubReader) Close() error { r.closed = true; return nil }

func TestSourceHandlesAndCommitsEveryMessage(t *testing.T) {
	r := &stubReader{
		failFirst: true,
		queue: []kafka.Message{
			{Offset: 1, Value: []byte(`good`)},
			{Offset: 2, Value: []byte(`bad`)},
		},
	}
	s := newSource(r, "readings", nil, quiet())
	s.backoff = time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	var mu sync.Mutex
	var seen []string
	done := make(chan error, 1)
	go func() {
		done <- s.Run(ctx, func(_ context.Context, p []byte) error {
			mu.Lock()
			defer mu.Unlock()
			seen = append(seen, string(p))
			if len(seen) == 2 {
				cancel()
			}
			if string(p) == "bad" {
				return errors.New("rejected")
			}
			return nil
		})
	}()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not stop")
	}
	if len(seen) != 2 || seen[0] != "good" || seen[1] != "bad" {
		t.Fatalf("seen = %v", seen)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.committed) == 0 || r.committed[0] != 1 {
		t.Fatalf("committed = %v", r.committed)
	}
	_ = s.Close()
	if !r.closed {
		t.Fatal("reader not closed")
	}
}

type stubWriter struct {
	msgs   []kafka.Message
	err    error
	closed bool
}

func (w *stubWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	w.msgs = append(w.msgs, msgs...)
	return w.err
}

func (w *stubWriter) Close() error { w.closed = true; return nil }

func TestSinkRoutesByKind(t *testing.T) {
	vent, alert := &stubWriter{}, &stubWriter{err: errors.New("no leader")}
	s := newSink(map[string]messageWriter{sink.KindVentilation: vent, sink.KindAlert: alert}, nil, quiet())

	cmd := models.VentilationCommand{Timestamp: "2025-03-01T10:00:00Z", Mode: models.ModeNormal, FanSupplySpeed: 40}
	if err := s.PublishVentilation(context.Background(), cmd); err != nil {
		t.Fatalf("PublishVentilation: %v", err)
	}
	if len(vent.msgs) != 1 || string(vent.msgs[0].Key) != cmd.Timestamp {
		t.Fatalf("ventilation msgs = %+v", vent.msgs)
	}
	var back models.VentilationCommand
	if err := json.Unmarshal(vent.msgs[0].Value, &back); err != nil || back != cmd {
		t.Fatalf("decoded %+v, err %v", back, err)
	}
	if err := s.PublishAlert(context.Background(), models.RankedAlert{Gas: "co"}); err == nil {
		t.Fatal("expected alert write error")
	}
	if err := s.PublishStatus(context.Background(), visual.StatusColors{Timestamp: "t", Temp: "yellow"}); err != nil {
		t.Fatalf("unconfigured status topic should be skipped: %v", err)
	}
	if err := s.Close(); err != nil || !vent.closed || !alert.closed {
		t.Fatalf("close: %v", err)
	}
}
