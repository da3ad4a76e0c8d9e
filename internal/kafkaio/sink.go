// v0
// internal/kafkaio/sink.go
package kafkaio

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/segmentio/kafka-go"

	"nrgchamp/ventilation/internal/circuitbreaker"
	"nrgchamp/ventilation/internal/models"
	"nrgchamp/ventilation/internal/sink"
	"nrgchamp/ventilation/internal/visual"
)

type messageWriter interface {
	circuitbreaker.KafkaMessageWriter
	io.Closer
}

// Sink writes ventilation commands, status colors and ranked alerts to one topic each.
type Sink struct {
	writers map[string]*circuitbreaker.CBKafkaWriter
	raw     map[string]messageWriter
	lg      *slog.Logger
}

func NewSink(cfg Config, guard *circuitbreaker.Guard, lg *slog.Logger) (*Sink, error) {
	if len(cfg.Brokers) == 0 {
		return nil, fmt.Errorf("kafka sink needs brokers")
	}
	raw := map[string]messageWriter{}
	for kind, topic := range map[string]string{
		sink.KindVentilation: cfg.VentilationTopic,
		sink.KindStatus:      cfg.StatusTopic,
		sink.KindAlert:       cfg.AlertTopic,
	} {
		if topic == "" {
			continue
		}
		raw[kind] = &kafka.Writer{
			Addr:         kafka.TCP(cfg.Brokers...),
			Topic:        topic,
			Balancer:     &kafka.Hash{},
			RequiredAcks: kafka.RequireAll,
		}
		lg.Info("kafka_sink_wired", "kind", kind, "topic", topic)
	}
	return newSink(raw, guard, lg), nil
}

func newSink(raw map[string]messageWriter, guard *circuitbreaker.Guard, lg *slog.Logger) *Sink {
	s := &Sink{writers: map[string]*circuitbreaker.CBKafkaWriter{}, raw: raw, lg: lg}
	for kind, w := range raw {
		s.writers[kind] = circuitbreaker.NewCBKafkaWriter(w, guard)
	}
	return s
}

func (s *Sink) Name() string { return "kafka" }

func (s *Sink) PublishVentilation(ctx context.Context, cmd models.VentilationCommand) error {
	return s.write(ctx, sink.KindVentilation, cmd.Timestamp, cmd)
}

func (s *Sink) PublishStatus(ctx context.Context, status visual.StatusColors) error {
	return s.write(ctx, sink.KindStatus, status.Timestamp, status)
}

func (s *Sink) PublishAlert(ctx context.Context, alert models.RankedAlert) error {
	return s.write(ctx, sink.KindAlert, alert.Gas, alert)
}

func (s *Sink) write(ctx context.Context, kind, key string, v any) error {
	w, ok := s.writers[kind]
	if !ok {
		return nil
	}
	payload, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", kind, err)
	}
	return w.WriteMessages(ctx, kafka.Message{Key: []byte(key), Value: payload, Time: time.Now().UTC()})
}

func (s *Sink) Close() error {
	var errs []error
	for kind, w := range s.raw {
		if err := w.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close %s writer: %w", kind, err))
		}
	}
	return errors.Join(errs...)
}
