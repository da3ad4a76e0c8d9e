// v0
// internal/storage/gormstore/gormstore_test.go
package gormstore

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"testing"

	"nrgchamp/ventilation/internal/models"
)

func openTemp(t *testing.T) *Store {
	t.Helper()
	s, err := OpenSQLite(filepath.Join(t.TempDir(), "db", "ventilation.db"), slog.New(slog.NewTextHandler(io.Discard, nil)))
	if err != nil {
		t.Fatalf("OpenSQLite: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestSaveAndCount(t *testing.T) {
	s := openTemp(t)
	ctx := context.Background()
	limit := 35.0

	if err := s.SaveReading(ctx, models.Reading{Timestamp: "t1", Temp: 22, COValid: true}); err != nil {
		t.Fatalf("SaveReading: %v", err)
	}
	metrics := []models.MetricRecord{
		{Timestamp: "t1", Type: "PM25_LEVEL", Value: 40, Window: models.WindowInstant, Limit: &limit, Status: "orange"},
		{Timestamp: "t1", Type: "WBGT", Value: 18, Window: models.WindowInstant, Status: "green"},
	}
	if err := s.SaveMetrics(ctx, metrics); err != nil {
		t.Fatalf("SaveMetrics: %v", err)
	}
	if err := s.SaveMetrics(ctx, nil); err != nil {
		t.Fatalf("empty SaveMetrics: %v", err)
	}
	alerts := []models.AlertRecord{{Timestamp: "t1", Category: "PM2.5", Value: 40, Limit: &limit, Severity: models.SeverityWarning, Message: "m"}}
	if err := s.SaveAlerts(ctx, alerts); err != nil {
		t.Fatalf("SaveAlerts: %v", err)
	}

	for table, want := range map[string]int64{"sensor_readings": 1, "metrics": 2, "alerts": 1} {
		var n int64
		if err := s.db.Table(table).Count(&n).Error; err != nil || n != want {
			t.Fatalf("%s count = %d (err %v), want %d", table, n, err, want)
		}
	}
	var stored metricRow
	if err := s.db.Where("metric_type = ?", "WBGT").First(&stored).Error; err != nil {
		t.Fatalf("load metric: %v", err)
	}
	if stored.LimitValue != nil {
		t.Fatalf("nil limit stored as %v", *stored.LimitValue)
	}
}

func TestVentilationHistoryNewestFirst(t *testing.T) {
	s := openTemp(t)
	ctx := context.Background()
	for i, m := range []models.VentilationMode{models.ModeNormal, models.ModeCO2Purge, models.ModeEmergencyPurge} {
		a := models.VentilationAction{
			Timestamp:       string(rune('a' + i)),
			Mode:            m,
			FanSupplySpeed:  40 + i,
			FanExhaustSpeed: 30,
			Reasons:         []string{"reason " + string(m)},
		}
		if m == models.ModeNormal {
			a.Reasons = nil
		}
		if err := s.SaveVentilation(ctx, a); err != nil {
			t.Fatalf("SaveVentilation: %v", err)
		}
	}
	got, err := s.VentilationHistory(ctx, 2)
	if err != nil {
		t.Fatalf("VentilationHistory: %v", err)
	}
	if len(got) != 2 || got[0].Mode != models.ModeEmergencyPurge || got[1].Mode != models.ModeCO2Purge {
		t.Fatalf("history = %+v", got)
	}
	if got[0].FanSupplySpeed != 42 || len(got[0].Reasons) != 1 || got[0].Reasons[0] != "reason EMERGENCY_PURGE" {
		t.Fatalf("first = %+v", got[0])
	}
	all, _ := s.VentilationHistory(ctx, 10)
	if last := all[len(all)-1]; last.Reasons == nil || len(last.Reasons) != 0 {
		t.Fatalf("empty reasons = %#v", last.Reasons)
	}
}
