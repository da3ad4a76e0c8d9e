// v0
// internal/evaluate/evaluator.go
package evaluate

import (
	"fmt"
	"strings"
	"sync/atomic"

	"nrgchamp/ventilation/internal/bands"
	"nrgchamp/ventilation/internal/models"
	"nrgchamp/ventilation/internal/wbgt"
)

// Metric record types, in emission order.
const (
	TypeCOCeiling     = "CO_CEILING"
	TypePM25Level     = "PM2_5_LEVEL"
	TypePM10Level     = "PM10_LEVEL"
	TypeTempLevel     = "TEMP_LEVEL"
	TypePressureLevel = "PRESSURE_LEVEL"
	TypeCO2Level      = "CO2_LEVEL"
	TypeWBGT          = "WBGT"
)

// Alert categories.
const (
	CategoryCO        = "CO"
	CategoryCOSTEL    = "CO_STEL"
	CategoryCOTWA     = "CO_TWA"
	CategoryCOCeiling = "CO_CEILING"
	CategoryPM25      = "PM2.5"
	CategoryPM10      = "PM10"
	CategoryTemp      = "TEMP"
	CategoryPressure  = "PRESSURE"
	CategoryCO2       = "CO2"
	CategoryWBGT      = "WBGT"
)

// Result is everything derived from one reading.
type Result struct {
	Metrics []models.MetricRecord `json:"metrics"`
	Alerts  []models.AlertRecord  `json:"alerts"`
	Packet  models.StatusPacket   `json:"status_packet"`
}

// Evaluator classifies readings against an injected threshold set. The set can be
// replaced while evaluations are running; each evaluation sees exactly one set.
type Evaluator struct {
	th atomic.Pointer[bands.Thresholds]
}

func New(th bands.Thresholds) *Evaluator {
	e := &Evaluator{}
	c := th.Clone()
	e.th.Store(&c)
	return e
}

// Thresholds returns a copy of the active thresholds.
func (e *Evaluator) Thresholds() bands.Thresholds {
	return e.th.Load().Clone()
}

// SetThresholds validates th and makes it the active set.
func (e *Evaluator) SetThresholds(th bands.Thresholds) error {
	if err := th.Validate(); err != nil {
		return fmt.Errorf("reject thresholds: %w", err)
	}
	c := th.Clone()
	e.th.Store(&c)
	return nil
}

type assessment struct {
	value    float64
	class    bands.Classification
	severity models.Severity
}

func assess(v float64, t bands.Table, sev bands.SeverityTable) assessment {
	c := bands.Classify(v, t)
	return assessment{value: v, class: c, severity: sev.Of(c.Level)}
}

func (a assessment) entry() *models.StatusEntry {
	return &models.StatusEntry{Value: a.value, Level: a.class.Level, Severity: a.severity}
}

func (a assessment) record(ts, typ string) models.MetricRecord {
	return models.MetricRecord{
		Timestamp: ts,
		Type:      typ,
		Value:     a.value,
		Window:    models.WindowInstant,
		Limit:     a.class.High,
		Status:    a.class.Level,
	}
}

func (a assessment) bandAlert(ts, category string) (models.AlertRecord, bool) {
	if a.severity == models.SeverityNone {
		return models.AlertRecord{}, false
	}
	return models.AlertRecord{
		Timestamp: ts,
		Category:  category,
		Value:     a.value,
		Limit:     a.class.High,
		Severity:  a.severity,
		Message: fmt.Sprintf("%s=%s is %s (%s-%s)", category, formatValue(a.value),
			strings.ToUpper(a.class.Level), boundText(a.class.Low), boundText(a.class.High)),
	}, true
}

func (a assessment) wbgtAlert(ts string) (models.AlertRecord, bool) {
	if a.severity == models.SeverityNone {
		return models.AlertRecord{}, false
	}
	return models.AlertRecord{
		Timestamp: ts,
		Category:  CategoryWBGT,
		Value:     a.value,
		Limit:     a.class.High,
		Severity:  a.severity,
		Message:   fmt.Sprintf("WBGT=%.1f°C → %s risk level", a.value, strings.ToUpper(a.class.Level)),
	}, true
}

func boundText(b *float64) string {
	if b == nil {
		return "None"
	}
	return formatBound(*b)
}

// Evaluate produces metric records, alert records and the status packet of one reading.
func (e *Evaluator) Evaluate(r models.Reading) Result {
	th := e.th.Load()
	ts := r.Timestamp

	co := assess(r.COMax, th.Table(bands.MetricCO), bands.ParticulateSeverity)
	pm25 := assess(r.PM25, th.Table(bands.MetricPM25), bands.ParticulateSeverity)
	pm10 := assess(r.PM10, th.Table(bands.MetricPM10), bands.ParticulateSeverity)
	temp := assess(r.Temp, th.Table(bands.MetricTemp), bands.EnvironmentalSeverity)
	press := assess(r.Pressure, th.Table(bands.MetricPressure), bands.EnvironmentalSeverity)
	co2 := assess(r.CO2, th.Table(bands.MetricCO2), bands.EnvironmentalSeverity)
	heat := assess(wbgt.Compute(r.Temp, th.Humidity), th.Table(bands.MetricWBGT), bands.HeatIndexSeverity)

	metrics := []models.MetricRecord{
		co.record(ts, TypeCOCeiling),
		pm25.record(ts, TypePM25Level),
		pm10.record(ts, TypePM10Level),
		temp.record(ts, TypeTempLevel),
		press.record(ts, TypePressureLevel),
		co2.record(ts, TypeCO2Level),
		heat.record(ts, TypeWBGT),
	}

	alerts := make([]models.AlertRecord, 0, 4)
	if a, ok := co.bandAlert(ts, CategoryCO); ok {
		alerts = append(alerts, a)
	}
	alerts = append(alerts, CheckCOLimits(ts, COExposure{Ceiling: r.COMax}, th.CO)...)
	for _, c := range []struct {
		a        assessment
		category string
	}{
		{pm25, CategoryPM25},
		{pm10, CategoryPM10},
		{temp, CategoryTemp},
		{press, CategoryPressure},
		{co2, CategoryCO2},
	} {
		if a, ok := c.a.bandAlert(ts, c.category); ok {
			alerts = append(alerts, a)
		}
	}
	if a, ok := heat.wbgtAlert(ts); ok {
		alerts = append(alerts, a)
	}

	return Result{
		Metrics: metrics,
		Alerts:  alerts,
		Packet: models.StatusPacket{
			Timestamp:     ts,
			COEntry:       co.entry(),
			CO2Entry:      co2.entry(),
			PM:            &models.PMStatus{PM25: pm25.entry(), PM10: pm10.entry()},
			TempEntry:     temp.entry(),
			WBGTEntry:     heat.entry(),
			PressureEntry: press.entry(),
		},
	}
}
