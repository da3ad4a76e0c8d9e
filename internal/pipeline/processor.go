// v1
// internal/pipeline/processor.go
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"nrgchamp/ventilation/internal/alerting"
	"nrgchamp/ventilation/internal/cache"
	"nrgchamp/ventilation/internal/evaluate"
	"nrgchamp/ventilation/internal/hvac"
	"nrgchamp/ventilation/internal/metrics"
	"nrgchamp/ventilation/internal/models"
	"nrgchamp/ventilation/internal/storage"
	"nrgchamp/ventilation/internal/validate"
	"nrgchamp/ventilation/internal/visual"
)

// Source delivers raw reading payloads until ctx ends.
type Source interface {
	Name() string
	Run(ctx context.Context, handle func(context.Context, []byte) error) error
	Close() error
}

// Publisher is the outbound side of a processed reading.
type Publisher interface {
	PublishVentilation(ctx context.Context, cmd models.VentilationCommand) error
	PublishStatus(ctx context.Context, status visual.StatusColors) error
	PublishAlert(ctx context.Context, alert models.RankedAlert) error
}

// Outcome is the complete derived state of one reading.
type Outcome struct {
	Evaluation evaluate.Result          `json:"evaluation"`
	Action     models.VentilationAction `json:"ventilation"`
	Status     visual.StatusColors      `json:"status"`
	Alert      *models.RankedAlert      `json:"alert,omitempty"`
}

type Stats struct {
	Processed   uint64 `json:"processed"`
	Rejected    uint64 `json:"rejected"`
	Alerts      uint64 `json:"alerts"`
	StageErrors uint64 `json:"stage_errors"`
}

// Processor runs readings through the evaluation core and its collaborators. Any
// collaborator may be nil. It is safe for concurrent use.
type Processor struct {
	eval    *evaluate.Evaluator
	store   storage.Store
	pub     Publisher
	latest  cache.LatestStore
	metrics *metrics.Metrics
	lg      *slog.Logger
	now     func() time.Time

	processed   atomic.Uint64
	rejected    atomic.Uint64
	alerts      atomic.Uint64
	stageErrors atomic.Uint64
}

type Deps struct {
	Evaluator *evaluate.Evaluator
	Store     storage.Store
	Publisher Publisher
	Latest    cache.LatestStore
	Metrics   *metrics.Metrics
	Logger    *slog.Logger
}

func New(d Deps) *Processor {
	lg := d.Logger
	if lg == nil {
		lg = slog.Default()
	}
	return &Processor{
		eval:    d.Evaluator,
		store:   d.Store,
		pub:     d.Publisher,
		latest:  d.Latest,
		metrics: d.Metrics,
		lg:      lg,
		now:     time.Now,
	}
}

// Assess runs the pure core: evaluation, decision, ranking and color reduction.
func (p *Processor) Assess(r models.Reading) Outcome {
	res := p.eval.Evaluate(r)
	out := Outcome{
		Evaluation: res,
		Action:     hvac.Decide(&res.Packet),
		Status:     visual.FromPacket(&res.Packet),
	}
	if a, ok := alerting.Rank(&res.Packet); ok {
		out.Alert = &a
	}
	return out
}

// Handle validates one raw payload and processes it.
func (p *Processor) Handle(ctx context.Context, payload []byte) error {
	r, err := validate.ParseReading(payload)
	if err != nil {
		p.Reject(err, len(payload))
		return err
	}
	_, err = p.Process(ctx, r)
	return err
}

// Reject counts a payload that failed validation on any ingest path.
func (p *Processor) Reject(err error, size int) {
	p.rejected.Add(1)
	p.metrics.ReadingRejected()
	p.lg.Warn("reading_rejected", "error", err, "bytes", size)
}

// Process assesses r, persists it, publishes it and records the snapshot. The outcome
// is always returned; collaborator failures are logged and joined into the error.
func (p *Processor) Process(ctx context.Context, r models.Reading) (Outcome, error) {
	start := p.now()
	out := p.Assess(r)

	var errs []error
	stage := func(name string, err error) {
		if err == nil {
			return
		}
		p.stageErrors.Add(1)
		p.metrics.StageError(name)
		p.lg.Error(name+"_failed", "timestamp", r.Timestamp, "error", err)
		errs = append(errs, fmt.Errorf("%s: %w", name, err))
	}

	if p.store != nil {
		stage("store_reading", p.store.SaveReading(ctx, r))
		stage("store_metrics", p.store.SaveMetrics(ctx, out.Evaluation.Metrics))
		stage("store_alerts", p.store.SaveAlerts(ctx, out.Evaluation.Alerts))
		stage("store_ventilation", p.store.SaveVentilation(ctx, out.Action))
	}
	if p.pub != nil {
		stage("publish_ventilation", p.pub.PublishVentilation(ctx, out.Action.Command()))
		stage("publish_status", p.pub.PublishStatus(ctx, out.Status))
		if out.Alert != nil {
			stage("publish_alert", p.pub.PublishAlert(ctx, *out.Alert))
		}
	}
	if p.latest != nil {
		stage("snapshot", p.latest.Put(ctx, models.Snapshot{
			Packet:    out.Evaluation.Packet,
			Action:    out.Action,
			Alert:     out.Alert,
			UpdatedAt: p.now().UTC(),
		}))
	}

	p.processed.Add(1)
	p.alerts.Add(uint64(len(out.Evaluation.Alerts)))
	p.metrics.Alerts(out.Evaluation.Alerts)
	p.metrics.Decision(out.Action)
	p.metrics.ReadingProcessed(p.now().Sub(start))
	p.lg.Info("reading_processed",
		"timestamp", r.Timestamp,
		"mode", out.Action.Mode,
		"fan_supply", out.Action.FanSupplySpeed,
		"fan_exhaust", out.Action.FanExhaustSpeed,
		"ac_power", out.Action.ACPower,
		"alerts", len(out.Evaluation.Alerts),
	)
	return out, errors.Join(errs...)
}

func (p *Processor) Stats() Stats {
	return Stats{
		Processed:   p.processed.Load(),
		Rejected:    p.rejected.Load(),
		Alerts:      p.alerts.Load(),
		StageErrors: p.stageErrors.Load(),
	}
}

// Evaluator exposes the evaluator whose thresholds drive the processor.
func (p *Processor) Evaluator() *evaluate.Evaluator { return p.eval }
