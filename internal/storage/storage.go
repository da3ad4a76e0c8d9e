// v0
// internal/storage/storage.go
package storage

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"nrgchamp/ventilation/internal/circuitbreaker"
	"nrgchamp/ventilation/internal/models"
	"nrgchamp/ventilation/internal/storage/dynamostore"
	"nrgchamp/ventilation/internal/storage/gormstore"
	"nrgchamp/ventilation/internal/storage/mongostore"
)

var (
	ErrUnknownBackend = errors.New("unknown store backend")
	ErrNoHistory      = errors.New("store does not keep ventilation history")
)

// Store persists every processed reading: the raw sample, its metric rows, its alerts
// and the ventilation decision.
type Store interface {
	SaveReading(ctx context.Context, r models.Reading) error
	SaveMetrics(ctx context.Context, ms []models.MetricRecord) error
	SaveAlerts(ctx context.Context, as []models.AlertRecord) error
	SaveVentilation(ctx context.Context, a models.VentilationAction) error
	Close() error
}

// HistoryReader is implemented by stores that can list past decisions, newest first.
type HistoryReader interface {
	VentilationHistory(ctx context.Context, limit int) ([]models.VentilationAction, error)
}

type Options struct {
	Backend           string
	SQLitePath        string
	PostgresDSN       string
	MongoURI          string
	MongoDatabase     string
	DynamoTablePrefix string
	AWSRegion         string
}

// Open builds the store named by opts.Backend.
func Open(ctx context.Context, opts Options, lg *slog.Logger) (Store, error) {
	var (
		s   Store
		err error
	)
	switch opts.Backend {
	case "", "none":
		return Nop{}, nil
	case "sqlite":
		s, err = gormstore.OpenSQLite(opts.SQLitePath, lg)
	case "postgres":
		if opts.PostgresDSN == "" {
			return nil, errors.New("postgres backend needs POSTGRES_DSN")
		}
		s, err = gormstore.OpenPostgres(opts.PostgresDSN, lg)
	case "mongo":
		if opts.MongoURI == "" {
			return nil, errors.New("mongo backend needs MONGO_URI")
		}
		s, err = mongostore.Open(ctx, opts.MongoURI, opts.MongoDatabase, lg)
	case "dynamodb":
		s, err = dynamostore.Open(ctx, opts.AWSRegion, opts.DynamoTablePrefix, lg)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownBackend, opts.Backend)
	}
	if err != nil {
		return nil, fmt.Errorf("open %s store: %w", opts.Backend, err)
	}
	return s, nil
}

// Nop discards everything.
type Nop struct{}

func (Nop) SaveReading(context.Context, models.Reading) error               { return nil }
func (Nop) SaveMetrics(context.Context, []models.MetricRecord) error        { return nil }
func (Nop) SaveAlerts(context.Context, []models.AlertRecord) error          { return nil }
func (Nop) SaveVentilation(context.Context, models.VentilationAction) error { return nil }
func (Nop) Close() error                                                    { return nil }

// Guarded runs every write of s through guard. History reads bypass the breaker.
type Guarded struct {
	s     Store
	guard *circuitbreaker.Guard
}

func NewGuarded(s Store, guard *circuitbreaker.Guard) *Guarded {
	return &Guarded{s: s, guard: guard}
}

func (g *Guarded) SaveReading(ctx context.Context, r models.Reading) error {
	return g.guard.Do(ctx, func(ctx context.Context) error { return g.s.SaveReading(ctx, r) })
}

func (g *Guarded) SaveMetrics(ctx context.Context, ms []models.MetricRecord) error {
	return g.guard.Do(ctx, func(ctx context.Context) error { return g.s.SaveMetrics(ctx, ms) })
}

func (g *Guarded) SaveAlerts(ctx context.Context, as []models.AlertRecord) error {
	return g.guard.Do(ctx, func(ctx context.Context) error { return g.s.SaveAlerts(ctx, as) })
}

func (g *Guarded) SaveVentilation(ctx context.Context, a models.VentilationAction) error {
	return g.guard.Do(ctx, func(ctx context.Context) error { return g.s.SaveVentilation(ctx, a) })
}

func (g *Guarded) VentilationHistory(ctx context.Context, limit int) ([]models.VentilationAction, error) {
	h, ok := g.s.(HistoryReader)
	if !ok {
		return nil, ErrNoHistory
	}
	return h.VentilationHistory(ctx, limit)
}

func (g *Guarded) Close() error { return g.s.Close() }
