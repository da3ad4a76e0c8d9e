// v0
// internal/sink/sink.go
package sink

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"nrgchamp/ventilation/internal/models"
	"nrgchamp/ventilation/internal/visual"
)

// Payload kinds, used as routing keys and log attributes by every transport.
const (
	KindVentilation = "ventilation"
	KindStatus      = "status"
	KindAlert       = "alert"
)

// Sink publishes the three outbound payloads of a processed reading.
type Sink interface {
	Name() string
	PublishVentilation(ctx context.Context, cmd models.VentilationCommand) error
	PublishStatus(ctx context.Context, status visual.StatusColors) error
	PublishAlert(ctx context.Context, alert models.RankedAlert) error
	Close() error
}

// Fanout delivers each payload to every registered sink. A failing sink never stops
// delivery to the others; failures come back joined.
type Fanout struct {
	sinks []Sink
	lg    *slog.Logger
}

func NewFanout(lg *slog.Logger, sinks ...Sink) *Fanout {
	if lg == nil {
		lg = slog.Default()
	}
	return &Fanout{sinks: sinks, lg: lg}
}

func (f *Fanout) Name() string { return "fanout" }

// Len reports how many sinks are attached.
func (f *Fanout) Len() int {
	if f == nil {
		return 0
	}
	return len(f.sinks)
}

func (f *Fanout) PublishVentilation(ctx context.Context, cmd models.VentilationCommand) error {
	return f.each(KindVentilation, func(s Sink) error { return s.PublishVentilation(ctx, cmd) })
}

func (f *Fanout) PublishStatus(ctx context.Context, status visual.StatusColors) error {
	return f.each(KindStatus, func(s Sink) error { return s.PublishStatus(ctx, status) })
}

func (f *Fanout) PublishAlert(ctx context.Context, alert models.RankedAlert) error {
	return f.each(KindAlert, func(s Sink) error { return s.PublishAlert(ctx, alert) })
}

// Close closes every sink and joins the errors.
func (f *Fanout) Close() error {
	if f == nil {
		return nil
	}
	var errs []error
	for _, s := range f.sinks {
		if err := s.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close %s: %w", s.Name(), err))
		}
	}
	return errors.Join(errs...)
}

func (f *Fanout) each(kind string, fn func(Sink) error) error {
	if f == nil {
		return nil
	}
	var errs []error
	for _, s := range f.sinks {
		if err := fn(s); err != nil {
			f.lg.Warn("sink_publish_failed", "sink", s.Name(), "kind", kind, "error", err)
			errs = append(errs, fmt.Errorf("%s %s: %w", s.Name(), kind, err))
		}
	}
	return errors.Join(errs...)
}
