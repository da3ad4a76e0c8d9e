// v0
// internal/storage/gormstore/gormstore.go
package gormstore

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/glebarez/sqlite"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"nrgchamp/ventilation/internal/models"
)

type readingRow struct {
	ID        uint   `gorm:"primaryKey"`
	Timestamp string `gorm:"index"`
	Temp      float64
	Pressure  float64
	COMean    float64 `gorm:"column:co_mean"`
	COMax     float64 `gorm:"column:co_max"`
	COValid   bool    `gorm:"column:co_valid"`
	PM25      float64 `gorm:"column:pm2_5"`
	PM10      float64 `gorm:"column:pm10"`
	CO2       float64 `gorm:"column:co2"`
	CreatedAt time.Time
}

func (readingRow) TableName() string { return "sensor_readings" }

type metricRow struct {
	ID         uint   `gorm:"primaryKey"`
	Timestamp  string `gorm:"not null;index"`
	MetricType string `gorm:"not null"`
	Value      float64
	Window     string   `gorm:"not null"`
	LimitValue *float64 `gorm:"column:limit_value"`
	Status     string   `gorm:"not null"`
}

func (metricRow) TableName() string { return "metrics" }

type alertRow struct {
	ID         uint   `gorm:"primaryKey"`
	Timestamp  string `gorm:"not null;index"`
	Category   string `gorm:"not null"`
	Value      float64
	LimitValue *float64 `gorm:"column:limit_value"`
	Severity   string   `gorm:"not null"`
	Message    string   `gorm:"not null"`
}

func (alertRow) TableName() string { return "alerts" }

type ventilationRow struct {
	ID         uint   `gorm:"primaryKey"`
	Timestamp  string `gorm:"not null;index"`
	Mode       string `gorm:"not null"`
	FanSupply  int    `gorm:"not null"`
	FanExhaust int    `gorm:"not null"`
	ACPower    int    `gorm:"column:ac_power;not null"`
	Reasons    string `gorm:"not null"`
}

func (ventilationRow) TableName() string { return "ventilation_history" }

// Store keeps the four tables in any gorm dialect.
type Store struct {
	db *gorm.DB
	lg *slog.Logger
}

// OpenSQLite opens (creating if needed) the database file at path.
func OpenSQLite(path string, lg *slog.Logger) (*Store, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create db dir: %w", err)
		}
	}
	return open(sqlite.Open(path), "sqlite", lg)
}

func OpenPostgres(dsn string, lg *slog.Logger) (*Store, error) {
	return open(postgres.Open(dsn), "postgres", lg)
}

func open(d gorm.Dialector, name string, lg *slog.Logger) (*Store, error) {
	db, err := gorm.Open(d, &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	if err != nil {
		return nil, err
	}
	if err := db.AutoMigrate(&readingRow{}, &metricRow{}, &alertRow{}, &ventilationRow{}); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}
	lg.Info("store_opened", "backend", name)
	return &Store{db: db, lg: lg}, nil
}

func (s *Store) SaveReading(ctx context.Context, r models.Reading) error {
	row := readingRow{
		Timestamp: r.Timestamp,
		Temp:      r.Temp,
		Pressure:  r.Pressure,
		COMean:    r.COMean,
		COMax:     r.COMax,
		COValid:   r.COValid,
		PM25:      r.PM25,
		PM10:      r.PM10,
		CO2:       r.CO2,
	}
	return s.db.WithContext(ctx).Create(&row).Error
}

func (s *Store) SaveMetrics(ctx context.Context, ms []models.MetricRecord) error {
	if len(ms) == 0 {
		return nil
	}
	rows := make([]metricRow, 0, len(ms))
	for _, m := range ms {
		rows = append(rows, metricRow{
			Timestamp:  m.Timestamp,
			MetricType: m.Type,
			Value:      m.Value,
			Window:     m.Window,
			LimitValue: m.Limit,
			Status:     m.Status,
		})
	}
	return s.db.WithContext(ctx).Create(&rows).Error
}

func (s *Store) SaveAlerts(ctx context.Context, as []models.AlertRecord) error {
	if len(as) == 0 {
		return nil
	}
	rows := make([]alertRow, 0, len(as))
	for _, a := range as {
		rows = append(rows, alertRow{
			Timestamp:  a.Timestamp,
			Category:   a.Category,
			Value:      a.Value,
			LimitValue: a.Limit,
			Severity:   string(a.Severity),
			Message:    a.Message,
		})
	}
	return s.db.WithContext(ctx).Create(&rows).Error
}

func (s *Store) SaveVentilation(ctx context.Context, a models.VentilationAction) error {
	reasons, err := json.Marshal(nonNil(a.Reasons))
	if err != nil {
		return err
	}
	row := ventilationRow{
		Timestamp:  a.Timestamp,
		Mode:       string(a.Mode),
		FanSupply:  a.FanSupplySpeed,
		FanExhaust: a.FanExhaustSpeed,
		ACPower:    a.ACPower,
		Reasons:    string(reasons),
	}
	return s.db.WithContext(ctx).Create(&row).Error
}

// VentilationHistory returns up to limit decisions, newest first.
func (s *Store) VentilationHistory(ctx context.Context, limit int) ([]models.VentilationAction, error) {
	var rows []ventilationRow
	if err := s.db.WithContext(ctx).Order("id desc").Limit(limit).Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]models.VentilationAction, 0, len(rows))
	for _, r := range rows {
		var reasons []string
		if err := json.Unmarshal([]byte(r.Reasons), &reasons); err != nil {
			s.lg.Warn("history_reasons_corrupt", "id", r.ID, "error", err)
		}
		out = append(out, models.VentilationAction{
			Timestamp:       r.Timestamp,
			Mode:            models.VentilationMode(r.Mode),
			FanSupplySpeed:  r.FanSupply,
			FanExhaustSpeed: r.FanExhaust,
			ACPower:         r.ACPower,
			Reasons:         nonNil(reasons),
		})
	}
	return out, nil
}

func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
