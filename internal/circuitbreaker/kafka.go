// v3
// internal/circuitbreaker/kafka.go
package circuitbreaker

import (
	"context"
	"errors"

	"github.com/segmentio/kafka-go"
)

// KafkaMessageWriter mirrors the subset of kafka.Writer used by the breaker wrappers.
type KafkaMessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
}

// KafkaMessageReader mirrors the subset of kafka.Reader used by the breaker wrappers.
type KafkaMessageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
}

// CBKafkaWriter wraps a kafka.Writer with circuit-breaker protection.
type CBKafkaWriter struct {
	guard  *Guard
	writer KafkaMessageWriter
}

func NewCBKafkaWriter(writer KafkaMessageWriter, guard *Guard) *CBKafkaWriter {
	return &CBKafkaWriter{writer: writer, guard: guard}
}

// WriteMessages publishes messages with retry/back-off driven by the breaker policy.
func (w *CBKafkaWriter) WriteMessages(ctx context.Context, msgs ...kafka.Message) error {
	if w == nil || w.writer == nil {
		return errors.New("nil kafka writer")
	}
	return w.guard.Do(ctx, func(execCtx context.Context) error {
		return w.writer.WriteMessages(execCtx, msgs...)
	})
}

// CBKafkaReader wraps a kafka.Reader with breaker protections.
type CBKafkaReader struct {
	guard  *Guard
	reader KafkaMessageReader
}

func NewCBKafkaReader(reader KafkaMessageReader, guard *Guard) *CBKafkaReader {
	return &CBKafkaReader{reader: reader, guard: guard}
}

// FetchMessage retrieves a message with breaker-enforced retry/back-off. The fetch
// carries no attempt deadline: an idle topic is not a broker failure.
func (r *CBKafkaReader) FetchMessage(ctx context.Context) (kafka.Message, error) {
	if r == nil || r.reader == nil {
		return kafka.Message{}, errors.New("nil kafka reader")
	}
	var msg kafka.Message
	err := r.guard.DoBlocking(ctx, func(execCtx context.Context) error {
		var innerErr error
		msg, innerErr = r.reader.FetchMessage(execCtx)
		return innerErr
	})
	return msg, err
}
