// v0
// internal/kafkaio/kafka.go
package kafkaio

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/segmentio/kafka-go"
)

// Config carries the broker list and the four topics the service touches.
type Config struct {
	Brokers          []string
	GroupID          string
	ReadingsTopic    string
	VentilationTopic string
	StatusTopic      string
	AlertTopic       string
	Partitions       int
	Replication      int
}

// EnsureTopics creates any missing topic through the cluster controller. Topic
// creation errors are logged and tolerated since the topics may already exist.
func EnsureTopics(ctx context.Context, cfg Config, lg *slog.Logger) error {
	if len(cfg.Brokers) == 0 {
		return fmt.Errorf("no kafka brokers configured")
	}
	conn, err := kafka.DialContext(ctx, "tcp", cfg.Brokers[0])
	if err != nil {
		return fmt.Errorf("dial broker: %w", err)
	}
	defer func() {
		if err := conn.Close(); err != nil {
			lg.Warn("kafka_conn_close_failed", "error", err)
		}
	}()
	ctrl, err := conn.Controller()
	if err != nil {
		return fmt.Errorf("controller: %w", err)
	}
	c, err := kafka.DialContext(ctx, "tcp", fmt.Sprintf("%s:%d", ctrl.Host, ctrl.Port))
	if err != nil {
		return fmt.Errorf("dial controller: %w", err)
	}
	defer func() {
		if err := c.Close(); err != nil {
			lg.Warn("kafka_controller_close_failed", "error", err)
		}
	}()

	parts := max(cfg.Partitions, 1)
	repl := max(cfg.Replication, 1)
	var cfgs []kafka.TopicConfig
	for _, t := range []string{cfg.ReadingsTopic, cfg.VentilationTopic, cfg.StatusTopic, cfg.AlertTopic} {
		if t == "" {
			continue
		}
		cfgs = append(cfgs, kafka.TopicConfig{Topic: t, NumPartitions: parts, ReplicationFactor: repl})
	}
	if err := c.CreateTopics(cfgs...); err != nil {
		lg.Warn("kafka_create_topics_failed", "error", err)
	}
	lg.Info("kafka_topics_ensured", "topics", len(cfgs), "partitions", parts, "replication", repl)
	return nil
}
