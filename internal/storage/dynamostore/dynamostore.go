// v1
// internal/storage/dynamostore/dynamostore.go
package dynamostore

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/google/uuid"

	"nrgchamp/ventilation/internal/models"
)

var itemNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("nrgchamp/ventilation/dynamodb"))

// itemID is stable for the same table, reading timestamp and record position.
func itemID(table, timestamp string, index int, kind string) string {
	return uuid.NewSHA1(itemNamespace, []byte(fmt.Sprintf("%s|%s|%d|%s", table, timestamp, index, kind))).String()
}

type putter interface {
	PutItem(ctx context.Context, in *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
}

type readingItem struct {
	ID         string  `dynamodbav:"id"`
	Timestamp  string  `dynamodbav:"timestamp"`
	Temp       float64 `dynamodbav:"temp"`
	Pressure   float64 `dynamodbav:"pressure"`
	COMean     float64 `dynamodbav:"co_mean"`
	COMax      float64 `dynamodbav:"co_max"`
	COValid    bool    `dynamodbav:"co_valid"`
	PM25       float64 `dynamodbav:"pm2_5"`
	PM10       float64 `dynamodbav:"pm10"`
	CO2        float64 `dynamodbav:"co2"`
	RecordedAt int64   `dynamodbav:"recorded_at"`
}

type metricItem struct {
	ID         string   `dynamodbav:"id"`
	Timestamp  string   `dynamodbav:"timestamp"`
	MetricType string   `dynamodbav:"metric_type"`
	Value      float64  `dynamodbav:"value"`
	Window     string   `dynamodbav:"window"`
	LimitValue *float64 `dynamodbav:"limit_value,omitempty"`
	Status     string   `dynamodbav:"status"`
}

type alertItem struct {
	ID         string   `dynamodbav:"id"`
	Timestamp  string   `dynamodbav:"timestamp"`
	Category   string   `dynamodbav:"category"`
	Value      float64  `dynamodbav:"value"`
	LimitValue *float64 `dynamodbav:"limit_value,omitempty"`
	Severity   string   `dynamodbav:"severity"`
	Message    string   `dynamodbav:"message"`
}

type ventilationItem struct {
	ID         string   `dynamodbav:"id"`
	Timestamp  string   `dynamodbav:"timestamp"`
	Mode       string   `dynamodbav:"mode"`
	FanSupply  int      `dynamodbav:"fan_supply"`
	FanExhaust int      `dynamodbav:"fan_exhaust"`
	ACPower    int      `dynamodbav:"ac_power"`
	Reasons    []string `dynamodbav:"reasons"`
	RecordedAt int64    `dynamodbav:"recorded_at"`
}

// Store puts one item per record into <prefix><table>. Tables are keyed by the string
// attribute "id" and must exist beforehand. Ids are derived from the reading timestamp
// and the record's position, so a retried write overwrites instead of duplicating.
type Store struct {
	client putter
	prefix string
	lg     *slog.Logger
	now    func() time.Time
}

func Open(ctx context.Context, region, prefix string, lg *slog.Logger) (*Store, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	lg.Info("store_opened", "backend", "dynamodb", "region", region, "prefix", prefix)
	return newStore(dynamodb.NewFromConfig(cfg), prefix, lg), nil
}

func newStore(c putter, prefix string, lg *slog.Logger) *Store {
	return &Store{client: c, prefix: prefix, lg: lg, now: time.Now}
}

func (s *Store) SaveReading(ctx context.Context, r models.Reading) error {
	return s.put(ctx, "sensor_readings", readingItem{
		ID:         itemID("sensor_readings", r.Timestamp, 0, ""),
		Timestamp:  r.Timestamp,
		Temp:       r.Temp,
		Pressure:   r.Pressure,
		COMean:     r.COMean,
		COMax:      r.COMax,
		COValid:    r.COValid,
		PM25:       r.PM25,
		PM10:       r.PM10,
		CO2:        r.CO2,
		RecordedAt: s.now().Unix(),
	})
}

func (s *Store) SaveMetrics(ctx context.Context, ms []models.MetricRecord) error {
	var errs []error
	for i, m := range ms {
		errs = append(errs, s.put(ctx, "metrics", metricItem{
			ID:         itemID("metrics", m.Timestamp, i, m.Type),
			Timestamp:  m.Timestamp,
			MetricType: m.Type,
			Value:      m.Value,
			Window:     m.Window,
			LimitValue: m.Limit,
			Status:     m.Status,
		}))
	}
	return errors.Join(errs...)
}

func (s *Store) SaveAlerts(ctx context.Context, as []models.AlertRecord) error {
	var errs []error
	for i, a := range as {
		errs = append(errs, s.put(ctx, "alerts", alertItem{
			ID:         itemID("alerts", a.Timestamp, i, a.Category),
			Timestamp:  a.Timestamp,
			Category:   a.Category,
			Value:      a.Value,
			LimitValue: a.Limit,
			Severity:   string(a.Severity),
			Message:    a.Message,
		}))
	}
	return errors.Join(errs...)
}

func (s *Store) SaveVentilation(ctx context.Context, a models.VentilationAction) error {
	reasons := a.Reasons
	if reasons == nil {
		reasons = []string{}
	}
	return s.put(ctx, "ventilation_history", ventilationItem{
		ID:         itemID("ventilation_history", a.Timestamp, 0, ""),
		Timestamp:  a.Timestamp,
		Mode:       string(a.Mode),
		FanSupply:  a.FanSupplySpeed,
		FanExhaust: a.FanExhaustSpeed,
		ACPower:    a.ACPower,
		Reasons:    reasons,
		RecordedAt: s.now().Unix(),
	})
}

func (s *Store) Close() error { return nil }

func (s *Store) put(ctx context.Context, table string, v any) error {
	item, err := attributevalue.MarshalMap(v)
	if err != nil {
		return fmt.Errorf("marshal %s item: %w", table, err)
	}
	_, err = s.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(s.prefix + table),
		Item:      item,
	})
	if err != nil {
		return fmt.Errorf("put %s item: %w", table, err)
	}
	return nil
}
