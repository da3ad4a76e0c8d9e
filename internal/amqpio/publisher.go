// v0
// internal/amqpio/publisher.go
package amqpio

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"

	"nrgchamp/ventilation/internal/circuitbreaker"
	"nrgchamp/ventilation/internal/models"
	"nrgchamp/ventilation/internal/sink"
	"nrgchamp/ventilation/internal/visual"
)

type channel interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Close() error
}

// Publisher sends every payload to a durable topic exchange, routed by payload kind.
type Publisher struct {
	conn     *amqp.Connection
	ch       channel
	exchange string
	guard    *circuitbreaker.Guard
	lg       *slog.Logger
}

func Dial(url, exchange string, guard *circuitbreaker.Guard, lg *slog.Logger) (*Publisher, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("amqp dial: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("amqp channel: %w", err)
	}
	if err := ch.ExchangeDeclare(exchange, "topic", true, false, false, false, nil); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("declare exchange %s: %w", exchange, err)
	}
	lg.Info("amqp_sink_wired", "exchange", exchange)
	p := newPublisher(ch, exchange, guard, lg)
	p.conn = conn
	return p, nil
}

func newPublisher(ch channel, exchange string, guard *circuitbreaker.Guard, lg *slog.Logger) *Publisher {
	return &Publisher{ch: ch, exchange: exchange, guard: guard, lg: lg}
}

func (p *Publisher) Name() string { return "amqp" }

func (p *Publisher) PublishVentilation(ctx context.Context, cmd models.VentilationCommand) error {
	return p.publish(ctx, sink.KindVentilation, cmd)
}

func (p *Publisher) PublishStatus(ctx context.Context, status visual.StatusColors) error {
	return p.publish(ctx, sink.KindStatus, status)
}

func (p *Publisher) PublishAlert(ctx context.Context, alert models.RankedAlert) error {
	return p.publish(ctx, sink.KindAlert, alert)
}

func (p *Publisher) publish(ctx context.Context, key string, v any) error {
	body, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	msg := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    uuid.NewString(),
		Timestamp:    time.Now().UTC(),
		Type:         key,
		Body:         body,
	}
	return p.guard.Do(ctx, func(ctx context.Context) error {
		return p.ch.PublishWithContext(ctx, p.exchange, key, false, false, msg)
	})
}

func (p *Publisher) Close() error {
	var errs []error
	if err := p.ch.Close(); err != nil && !errors.Is(err, amqp.ErrClosed) {
		errs = append(errs, err)
	}
	if p.conn != nil {
		if err := p.conn.Close(); err != nil && !errors.Is(err, amqp.ErrClosed) {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
