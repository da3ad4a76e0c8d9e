// v0
// cmd/ventilation/main.go
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"nrgchamp/ventilation/internal/amqpio"
	"nrgchamp/ventilation/internal/api"
	"nrgchamp/ventilation/internal/cache"
	"nrgchamp/ventilation/internal/circuitbreaker"
	"nrgchamp/ventilation/internal/config"
	"nrgchamp/ventilation/internal/evaluate"
	"nrgchamp/ventilation/internal/kafkaio"
	"nrgchamp/ventilation/internal/logging"
	"nrgchamp/ventilation/internal/metrics"
	"nrgchamp/ventilation/internal/mqttio"
	"nrgchamp/ventilation/internal/pipeline"
	"nrgchamp/ventilation/internal/sink"
	"nrgchamp/ventilation/internal/storage"
)

func main() {
	cfg, err := config.LoadEnvAndFiles(os.Args[1:])
	if err != nil {
		slog.Error("config", "error", err)
		os.Exit(1)
	}
	lg, lf := logging.Init(cfg.LogDir, cfg.LogLevel)
	defer func() {
		if err := lf.Close(); err != nil {
			lg.Error("log_file_close_failed", "error", err)
		}
	}()
	lg.Info("ventilation starting", "source", cfg.Source, "sinks", cfg.Sinks, "store", cfg.StoreBackend, "cache", cfg.CacheBackend)

	if err := run(cfg, lg); err != nil {
		lg.Error("ventilation stopped with error", "error", err)
		os.Exit(1)
	}
	lg.Info("ventilation stopped")
}

func run(cfg *config.AppConfig, lg *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	m := metrics.New()
	w := &wiring{cfg: cfg, lg: lg, m: m}

	storeGuard, err := w.guard("store", "store")
	if err != nil {
		return err
	}
	rawStore, err := storage.Open(ctx, storage.Options{
		Backend:           cfg.StoreBackend,
		SQLitePath:        cfg.SQLitePath,
		PostgresDSN:       cfg.PostgresDSN,
		MongoURI:          cfg.MongoURI,
		MongoDatabase:     cfg.MongoDatabase,
		DynamoTablePrefix: cfg.DynamoTablePrefix,
		AWSRegion:         cfg.AWSRegion,
	}, lg)
	if err != nil {
		return err
	}
	store := storage.NewGuarded(rawStore, storeGuard)
	defer closeLogged(lg, "store", store.Close)

	latest, err := w.latest(ctx)
	if err != nil {
		return err
	}
	defer closeLogged(lg, "cache", latest.Close)

	mqttClient, err := w.mqtt(ctx)
	if err != nil {
		return err
	}
	if mqttClient != nil {
		defer closeLogged(lg, "mqtt", mqttClient.Close)
	}

	fan, err := w.sinks(ctx, mqttClient)
	if err != nil {
		return err
	}
	defer closeLogged(lg, "sinks", fan.Close)

	eval := evaluate.New(cfg.Thresholds)
	proc := pipeline.New(pipeline.Deps{
		Evaluator: eval,
		Store:     store,
		Publisher: fan,
		Latest:    latest,
		Metrics:   m,
		Logger:    lg,
	})

	src, err := w.source(mqttClient)
	if err != nil {
		return err
	}
	if src != nil {
		defer closeLogged(lg, "source", src.Close)
	}

	srv := api.NewServer(api.Options{
		Processor:   proc,
		Latest:      latest,
		History:     store,
		Reload:      cfg.ReloadThresholds,
		Metrics:     m,
		IngestRate:  cfg.IngestRate,
		IngestBurst: cfg.IngestBurst,
		Source:      cfg.Source,
		Sinks:       cfg.Sinks,
		Store:       cfg.StoreBackend,
		Logger:      lg,
	})
	httpSrv := &http.Server{
		Addr:              cfg.HTTPBind,
		Handler:           srv.Handler(os.Stdout),
		ReadHeaderTimeout: 5 * time.Second,
	}
	httpErr := make(chan error, 1)
	go func() {
		lg.Info("http_listening", "addr", cfg.HTTPBind)
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			httpErr <- err
		}
	}()

	srcDone := make(chan error, 1)
	if src != nil {
		go func() {
			lg.Info("source_started", "source", src.Name())
			srcDone <- src.Run(ctx, proc.Handle)
		}()
	}

	var runErr error
	sourceRunning := src != nil
	select {
	case <-ctx.Done():
		lg.Info("shutdown_requested")
	case err := <-httpErr:
		runErr = fmt.Errorf("http: %w", err)
	case err := <-srcDone:
		sourceRunning = false
		if err != nil {
			runErr = fmt.Errorf("source %s: %w", src.Name(), err)
		}
	}
	stop()

	sh, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := httpSrv.Shutdown(sh); err != nil {
		lg.Warn("http_shutdown_failed", "error", err)
	}
	if sourceRunning {
		select {
		case <-srcDone:
		case <-sh.Done():
			lg.Warn("source_stop_timeout", "source", src.Name())
		}
	}
	st := proc.Stats()
	lg.Info("final_stats", "processed", st.Processed, "rejected", st.Rejected, "alerts", st.Alerts, "stage_errors", st.StageErrors)
	return runErr
}

type wiring struct {
	cfg *config.AppConfig
	lg  *slog.Logger
	m   *metrics.Metrics
}

// guard builds a breaker guard for kind and mirrors its state into the cb_state gauge.
func (w *wiring) guard(kind, name string) (*circuitbreaker.Guard, error) {
	g, err := circuitbreaker.NewGuardFromEnv(kind, name, nil, w.lg)
	if err != nil {
		return nil, fmt.Errorf("%s breaker: %w", kind, err)
	}
	if b := g.Breaker(); b != nil {
		w.m.SetCircuitBreakerState(name, b.State().GaugeValue())
		b.OnStateChange(func(n string, s circuitbreaker.State) {
			w.m.SetCircuitBreakerState(n, s.GaugeValue())
		})
	}
	w.lg.Info("breaker_configured", "kind", kind, "name", name, "enabled", g.Enabled())
	return g, nil
}

func (w *wiring) latest(ctx context.Context) (cache.LatestStore, error) {
	switch w.cfg.CacheBackend {
	case "redis":
		return cache.DialRedis(ctx, w.cfg.RedisAddr, w.cfg.RedisPassword, w.cfg.RedisDB, w.cfg.RedisKey, w.cfg.CacheTTL, w.m)
	case "", "memory":
		return cache.NewMemory(w.cfg.CacheTTL, w.m), nil
	default:
		return nil, fmt.Errorf("unknown cache backend %q", w.cfg.CacheBackend)
	}
}

// mqtt dials the broker only when MQTT is the source or one of the sinks.
func (w *wiring) mqtt(ctx context.Context) (*mqttio.Client, error) {
	if w.cfg.Source != "mqtt" && !w.cfg.HasSink("mqtt") {
		return nil, nil
	}
	g, err := w.guard("mqtt", "mqtt-publisher")
	if err != nil {
		return nil, err
	}
	return mqttio.Dial(ctx, mqttio.Options{
		Broker:   w.cfg.MQTTBroker,
		ClientID: w.cfg.MQTTClientID,
		QoS:      w.cfg.MQTTQoS,
		Topics: mqttio.Topics{
			Readings:    w.cfg.MQTTReadingsTopic,
			Ventilation: w.cfg.MQTTVentilationTopic,
			Status:      w.cfg.MQTTStatusTopic,
			Alert:       w.cfg.MQTTAlertTopic,
		},
	}, g, w.lg)
}

func (w *wiring) kafkaConfig() kafkaio.Config {
	return kafkaio.Config{
		Brokers:          w.cfg.KafkaBrokers,
		GroupID:          w.cfg.KafkaGroupID,
		ReadingsTopic:    w.cfg.KafkaReadingsTopic,
		VentilationTopic: w.cfg.KafkaVentilationTopic,
		StatusTopic:      w.cfg.KafkaStatusTopic,
		AlertTopic:       w.cfg.KafkaAlertTopic,
		Partitions:       w.cfg.TopicPartitions,
		Replication:      w.cfg.TopicReplication,
	}
}

func (w *wiring) sinks(ctx context.Context, mc *mqttio.Client) (*sink.Fanout, error) {
	var out []sink.Sink
	if w.cfg.HasSink("mqtt") {
		out = append(out, mc)
	}
	if w.cfg.HasSink("kafka") {
		if err := kafkaio.EnsureTopics(ctx, w.kafkaConfig(), w.lg); err != nil {
			w.lg.Warn("kafka_topic_ensure_failed", "error", err)
		}
		g, err := w.guard("kafka", "kafka-writer")
		if err != nil {
			return nil, err
		}
		ks, err := kafkaio.NewSink(w.kafkaConfig(), g, w.lg)
		if err != nil {
			return nil, err
		}
		out = append(out, ks)
	}
	if w.cfg.HasSink("amqp") {
		g, err := w.guard("amqp", "amqp-publisher")
		if err != nil {
			return nil, err
		}
		p, err := amqpio.Dial(w.cfg.AMQPURL, w.cfg.AMQPExchange, g, w.lg)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return sink.NewFanout(w.lg, out...), nil
}

// source returns nil when readings only arrive over HTTP.
func (w *wiring) source(mc *mqttio.Client) (pipeline.Source, error) {
	switch w.cfg.Source {
	case "mqtt":
		return mc, nil
	case "kafka":
		g, err := w.guard("kafka", "kafka-reader")
		if err != nil {
			return nil, err
		}
		return kafkaio.NewSource(w.kafkaConfig(), g, w.lg)
	default:
		return nil, nil
	}
}

func closeLogged(lg *slog.Logger, what string, fn func() error) {
	if err := fn(); err != nil {
		lg.Warn("close_failed", "component", what, "error", err)
	}
}
