// v1
// internal/storage/mongostore/mongostore.go
package mongostore

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"nrgchamp/ventilation/internal/models"
)

const (
	collReadings    = "sensor_readings"
	collMetrics     = "metrics"
	collAlerts      = "alerts"
	collVentilation = "ventilation_history"
)

type readingDoc struct {
	Timestamp  string    `bson:"timestamp"`
	Temp       float64   `bson:"temp"`
	Pressure   float64   `bson:"pressure"`
	COMean     float64   `bson:"co_mean"`
	COMax      float64   `bson:"co_max"`
	COValid    bool      `bson:"co_valid"`
	PM25       float64   `bson:"pm2_5"`
	PM10       float64   `bson:"pm10"`
	CO2        float64   `bson:"co2"`
	RecordedAt time.Time `bson:"recorded_at"`
}

const duplicateKeyCode = 11000

var docNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("nrgchamp/ventilation/mongo"))

// docID is stable for the same collection, reading timestamp and record position.
func docID(coll, timestamp string, index int, kind string) string {
	return uuid.NewSHA1(docNamespace, []byte(fmt.Sprintf("%s|%s|%d|%s", coll, timestamp, index, kind))).String()
}

type metricDoc struct {
	ID         string   `bson:"_id"`
	Timestamp  string   `bson:"timestamp"`
	MetricType string   `bson:"metric_type"`
	Value      float64  `bson:"value"`
	Window     string   `bson:"window"`
	LimitValue *float64 `bson:"limit_value"`
	Status     string   `bson:"status"`
}

type alertDoc struct {
	ID         string   `bson:"_id"`
	Timestamp  string   `bson:"timestamp"`
	Category   string   `bson:"category"`
	Value      float64  `bson:"value"`
	LimitValue *float64 `bson:"limit_value"`
	Severity   string   `bson:"severity"`
	Message    string   `bson:"message"`
}

type ventilationDoc struct {
	Timestamp  string    `bson:"timestamp"`
	Mode       string    `bson:"mode"`
	FanSupply  int       `bson:"fan_supply"`
	FanExhaust int       `bson:"fan_exhaust"`
	ACPower    int       `bson:"ac_power"`
	Reasons    []string  `bson:"reasons"`
	RecordedAt time.Time `bson:"recorded_at"`
}

// Store writes one collection per record kind in a single database.
type Store struct {
	client *mongo.Client
	db     *mongo.Database
	lg     *slog.Logger
}

func Open(ctx context.Context, uri, database string, lg *slog.Logger) (*Store, error) {
	cctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	client, err := mongo.Connect(cctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("connect: %w", err)
	}
	if err := client.Ping(cctx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("ping: %w", err)
	}
	lg.Info("store_opened", "backend", "mongo", "database", database)
	return &Store{client: client, db: client.Database(database), lg: lg}, nil
}

func (s *Store) SaveReading(ctx context.Context, r models.Reading) error {
	_, err := s.db.Collection(collReadings).InsertOne(ctx, readingDocFrom(r, time.Now().UTC()))
	return err
}

func (s *Store) SaveMetrics(ctx context.Context, ms []models.MetricRecord) error {
	if len(ms) == 0 {
		return nil
	}
	return s.insertBatch(ctx, collMetrics, metricDocs(ms))
}

func (s *Store) SaveAlerts(ctx context.Context, as []models.AlertRecord) error {
	if len(as) == 0 {
		return nil
	}
	return s.insertBatch(ctx, collAlerts, alertDocs(as))
}

func (s *Store) SaveVentilation(ctx context.Context, a models.VentilationAction) error {
	_, err := s.db.Collection(collVentilation).InsertOne(ctx, ventilationDocFrom(a, time.Now().UTC()))
	return err
}

// insertBatch writes every doc it can. Documents already stored by an earlier attempt
// of the same batch are skipped.
func (s *Store) insertBatch(ctx context.Context, coll string, docs []interface{}) error {
	_, err := s.db.Collection(coll).InsertMany(ctx, docs, options.InsertMany().SetOrdered(false))
	if err == nil || onlyDuplicates(err) {
		return nil
	}
	return fmt.Errorf("insert %s: %w", coll, err)
}

func onlyDuplicates(err error) bool {
	var bwe mongo.BulkWriteException
	if !errors.As(err, &bwe) || bwe.WriteConcernError != nil || len(bwe.WriteErrors) == 0 {
		return false
	}
	for _, we := range bwe.WriteErrors {
		if we.Code != duplicateKeyCode {
			return false
		}
	}
	return true
}

// VentilationHistory returns up to limit decisions ordered by insertion time, newest first.
func (s *Store) VentilationHistory(ctx context.Context, limit int) ([]models.VentilationAction, error) {
	opts := options.Find().SetSort(bson.D{{Key: "recorded_at", Value: -1}}).SetLimit(int64(limit))
	cur, err := s.db.Collection(collVentilation).Find(ctx, bson.D{}, opts)
	if err != nil {
		return nil, err
	}
	var docs []ventilationDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, err
	}
	out := make([]models.VentilationAction, 0, len(docs))
	for _, d := range docs {
		out = append(out, d.action())
	}
	return out, nil
}

func (s *Store) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.client.Disconnect(ctx)
}

func readingDocFrom(r models.Reading, at time.Time) readingDoc {
	return readingDoc{
		Timestamp:  r.Timestamp,
		Temp:       r.Temp,
		Pressure:   r.Pressure,
		COMean:     r.COMean,
		COMax:      r.COMax,
		COValid:    r.COValid,
		PM25:       r.PM25,
		PM10:       r.PM10,
		CO2:        r.CO2,
		RecordedAt: at,
	}
}

func metricDocs(ms []models.MetricRecord) []interface{} {
	docs := make([]interface{}, 0, len(ms))
	for i, m := range ms {
		docs = append(docs, metricDoc{
			ID:         docID(collMetrics, m.Timestamp, i, m.Type),
			Timestamp:  m.Timestamp,
			MetricType: m.Type,
			Value:      m.Value,
			Window:     m.Window,
			LimitValue: m.Limit,
			Status:     m.Status,
		})
	}
	return docs
}

func alertDocs(as []models.AlertRecord) []interface{} {
	docs := make([]interface{}, 0, len(as))
	for i, a := range as {
		docs = append(docs, alertDoc{
			ID:         docID(collAlerts, a.Timestamp, i, a.Category),
			Timestamp:  a.Timestamp,
			Category:   a.Category,
			Value:      a.Value,
			LimitValue: a.Limit,
			Severity:   string(a.Severity),
			Message:    a.Message,
		})
	}
	return docs
}

func ventilationDocFrom(a models.VentilationAction, at time.Time) ventilationDoc {
	reasons := a.Reasons
	if reasons == nil {
		reasons = []string{}
	}
	return ventilationDoc{
		Timestamp:  a.Timestamp,
		Mode:       string(a.Mode),
		FanSupply:  a.FanSupplySpeed,
		FanExhaust: a.FanExhaustSpeed,
		ACPower:    a.ACPower,
		Reasons:    reasons,
		RecordedAt: at,
	}
}

func (d ventilationDoc) action() models.VentilationAction {
	reasons := d.Reasons
	if reasons == nil {
		reasons = []string{}
	}
	return models.VentilationAction{
		Timestamp:       d.Timestamp,
		Mode:            models.VentilationMode(d.Mode),
		FanSupplySpeed:  d.FanSupply,
		FanExhaustSpeed: d.FanExhaust,
		ACPower:         d.ACPower,
		Reasons:         reasons,
	}
}
