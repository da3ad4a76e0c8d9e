// v0
// internal/mqttio/client.go
package mqttio

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"nrgchamp/ventilation/internal/circuitbreaker"
	"nrgchamp/ventilation/internal/models"
	"nrgchamp/ventilation/internal/sink"
	"nrgchamp/ventilation/internal/visual"
)

var ErrTimeout = errors.New("mqtt: token timeout")

// Topics names the inbound readings topic and the three outbound topics.
type Topics struct {
	Readings    string
	Ventilation string
	Status      string
	Alert       string
}

type Options struct {
	Broker   string
	ClientID string
	QoS      byte
	Topics   Topics
	Timeout  time.Duration
}

// pubsub is the subset of mqtt.Client the service drives.
type pubsub interface {
	Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token
	Subscribe(topic string, qos byte, callback mqtt.MessageHandler) mqtt.Token
	Unsubscribe(topics ...string) mqtt.Token
	Disconnect(quiesce uint)
}

// Client is both the MQTT reading source and an MQTT sink.
type Client struct {
	c     pubsub
	opts  Options
	guard *circuitbreaker.Guard
	lg    *slog.Logger

	mu      sync.Mutex
	onMsg   mqtt.MessageHandler
	closing bool
}

// Dial connects to the broker. Subscriptions made through Run survive reconnects.
func Dial(ctx context.Context, opts Options, guard *circuitbreaker.Guard, lg *slog.Logger) (*Client, error) {
	if opts.Timeout <= 0 {
		opts.Timeout = 5 * time.Second
	}
	cl := &Client{opts: opts, guard: guard, lg: lg}

	o := mqtt.NewClientOptions().
		AddBroker(opts.Broker).
		SetClientID(opts.ClientID).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetOrderMatters(false)
	o.SetConnectionLostHandler(func(_ mqtt.Client, err error) {
		lg.Warn("mqtt_connection_lost", "broker", opts.Broker, "error", err)
	})
	o.SetOnConnectHandler(func(c mqtt.Client) {
		lg.Info("mqtt_connected", "broker", opts.Broker, "client_id", opts.ClientID)
		cl.resubscribe(c)
	})

	c := mqtt.NewClient(o)
	cl.c = c
	if err := waitToken(ctx, c.Connect(), opts.Timeout); err != nil {
		c.Disconnect(0)
		return nil, fmt.Errorf("mqtt connect %s: %w", opts.Broker, err)
	}
	return cl, nil
}

func newClient(c pubsub, opts Options, guard *circuitbreaker.Guard, lg *slog.Logger) *Client {
	if opts.Timeout <= 0 {
		opts.Timeout = 5 * time.Second
	}
	return &Client{c: c, opts: opts, guard: guard, lg: lg}
}

func (c *Client) Name() string { return "mqtt" }

// Run subscribes to the readings topic and hands every payload to handle until ctx ends.
func (c *Client) Run(ctx context.Context, handle func(context.Context, []byte) error) error {
	cb := func(_ mqtt.Client, m mqtt.Message) {
		if err := handle(ctx, m.Payload()); err != nil {
			c.lg.Debug("mqtt_message_rejected", "topic", m.Topic(), "error", err)
		}
	}
	c.mu.Lock()
	c.onMsg = cb
	c.mu.Unlock()

	if err := waitToken(ctx, c.c.Subscribe(c.opts.Topics.Readings, c.opts.QoS, cb), c.opts.Timeout); err != nil {
		return fmt.Errorf("mqtt subscribe %s: %w", c.opts.Topics.Readings, err)
	}
	c.lg.Info("mqtt_subscribed", "topic", c.opts.Topics.Readings, "qos", c.opts.QoS)

	<-ctx.Done()

	c.mu.Lock()
	c.onMsg = nil
	c.mu.Unlock()
	if err := waitToken(context.Background(), c.c.Unsubscribe(c.opts.Topics.Readings), c.opts.Timeout); err != nil {
		c.lg.Warn("mqtt_unsubscribe_failed", "topic", c.opts.Topics.Readings, "error", err)
	}
	return nil
}

func (c *Client) resubscribe(pc mqtt.Client) {
	c.mu.Lock()
	cb := c.onMsg
	c.mu.Unlock()
	if cb == nil {
		return
	}
	tok := pc.Subscribe(c.opts.Topics.Readings, c.opts.QoS, cb)
	if err := waitToken(context.Background(), tok, c.opts.Timeout); err != nil {
		c.lg.Error("mqtt_resubscribe_failed", "topic", c.opts.Topics.Readings, "error", err)
	}
}

func (c *Client) PublishVentilation(ctx context.Context, cmd models.VentilationCommand) error {
	return c.publish(ctx, sink.KindVentilation, c.opts.Topics.Ventilation, cmd)
}

func (c *Client) PublishStatus(ctx context.Context, status visual.StatusColors) error {
	return c.publish(ctx, sink.KindStatus, c.opts.Topics.Status, status)
}

func (c *Client) PublishAlert(ctx context.Context, alert models.RankedAlert) error {
	return c.publish(ctx, sink.KindAlert, c.opts.Topics.Alert, alert)
}

func (c *Client) publish(ctx context.Context, kind, topic string, v any) error {
	if topic == "" {
		return nil
	}
	payload, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", kind, err)
	}
	return c.guard.Do(ctx, func(ctx context.Context) error {
		return waitToken(ctx, c.c.Publish(topic, c.opts.QoS, false, payload), c.opts.Timeout)
	})
}

// Close disconnects once, leaving 250ms for in-flight work.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closing {
		return nil
	}
	c.closing = true
	c.c.Disconnect(250)
	return nil
}

func waitToken(ctx context.Context, tok mqtt.Token, timeout time.Duration) error {
	var expire <-chan time.Time
	if timeout > 0 {
		t := time.NewTimer(timeout)
		defer t.Stop()
		expire = t.C
	}
	select {
	case <-tok.Done():
		return tok.Error()
	case <-ctx.Done():
		return ctx.Err()
	case <-expire:
		return ErrTimeout
	}
}
