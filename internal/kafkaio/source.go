// v0
// internal/kafkaio/source.go
package kafkaio

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/segmentio/kafka-go"

	"nrgchamp/ventilation/internal/circuitbreaker"
)

type messageReader interface {
	circuitbreaker.KafkaMessageReader
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Source consumes sensor readings from a consumer group. Offsets are committed once
// the handler returns, whether or not it accepted the payload.
type Source struct {
	raw     messageReader
	cb      *circuitbreaker.CBKafkaReader
	topic   string
	backoff time.Duration
	lg      *slog.Logger
}

func NewSource(cfg Config, guard *circuitbreaker.Guard, lg *slog.Logger) (*Source, error) {
	if len(cfg.Brokers) == 0 || cfg.ReadingsTopic == "" {
		return nil, fmt.Errorf("kafka source needs brokers and a readings topic")
	}
	r := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  cfg.Brokers,
		GroupID:  cfg.GroupID,
		Topic:    cfg.ReadingsTopic,
		MinBytes: 1,
		MaxBytes: 10e6,
		MaxWait:  200 * time.Millisecond,
	})
	lg.Info("kafka_source_wired", "topic", cfg.ReadingsTopic, "group", cfg.GroupID, "breaker", guard.Enabled())
	return newSource(r, cfg.ReadingsTopic, guard, lg), nil
}

func newSource(r messageReader, topic string, guard *circuitbreaker.Guard, lg *slog.Logger) *Source {
	return &Source{
		raw:     r,
		cb:      circuitbreaker.NewCBKafkaReader(r, guard),
		topic:   topic,
		backoff: 500 * time.Millisecond,
		lg:      lg,
	}
}

func (s *Source) Name() string { return "kafka" }

// Run fetches messages and hands their values to handle until ctx ends.
func (s *Source) Run(ctx context.Context, handle func(context.Context, []byte) error) error {
	for {
		msg, err := s.cb.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			s.lg.Error("kafka_fetch_failed", "topic", s.topic, "error", err)
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(s.backoff):
			}
			continue
		}
		if err := handle(ctx, msg.Value); err != nil {
			s.lg.Debug("kafka_message_rejected", "topic", msg.Topic, "partition", msg.Partition, "offset", msg.Offset, "error", err)
		}
		if err := s.raw.CommitMessages(ctx, msg); err != nil && ctx.Err() == nil {
			s.lg.Warn("kafka_commit_failed", "offset", msg.Offset, "error", err)
		}
	}
}

func (s *Source) Close() error {
	return s.raw.Close()
}
