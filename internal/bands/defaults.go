// v0
// internal/bands/defaults.go
package bands

import (
	"errors"
	"fmt"
)

// Metric keys used for tables, properties and metric labels.
const (
	MetricCO       = "co"
	MetricCO2      = "co2"
	MetricPM25     = "pm2_5"
	MetricPM10     = "pm10"
	MetricTemp     = "temp"
	MetricPressure = "pressure"
	MetricWBGT     = "wbgt"
)

// Metrics lists every metric key in a stable order.
var Metrics = []string{MetricCO, MetricCO2, MetricPM25, MetricPM10, MetricTemp, MetricPressure, MetricWBGT}

// COLimits are the fixed CO exposure limits in ppm.
type COLimits struct {
	Ceiling float64 `json:"ceiling"`
	STEL    float64 `json:"stel"`
	TWA     float64 `json:"twa"`
}

// DefaultHumidity is the relative humidity (%) assumed when no humidity sensor is present.
const DefaultHumidity = 40.0

// Thresholds is the full, injectable threshold surface of the evaluator.
type Thresholds struct {
	Tables   map[string]Table `json:"tables"`
	CO       COLimits         `json:"co_limits"`
	Humidity float64          `json:"wbgt_humidity"`
}

// Table returns the table registered for metric, or nil.
func (t Thresholds) Table(metric string) Table {
	return t.Tables[metric]
}

// Clone deep-copies the thresholds so callers can modify the result freely.
func (t Thresholds) Clone() Thresholds {
	out := Thresholds{CO: t.CO, Humidity: t.Humidity, Tables: make(map[string]Table, len(t.Tables))}
	for k, v := range t.Tables {
		out.Tables[k] = append(Table(nil), v...)
	}
	return out
}

// Validate checks every known table and the scalar limits. All problems are reported.
func (t Thresholds) Validate() error {
	var errs []error
	for _, m := range Metrics {
		tbl, ok := t.Tables[m]
		if !ok {
			errs = append(errs, fmt.Errorf("%s: %w", m, ErrEmptyTable))
			continue
		}
		if err := tbl.Validate(); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", m, err))
		}
	}
	if t.CO.Ceiling <= 0 || t.CO.STEL <= 0 || t.CO.TWA <= 0 {
		errs = append(errs, fmt.Errorf("co limits must be positive: %+v", t.CO))
	}
	if t.Humidity < 0 || t.Humidity > 100 {
		errs = append(errs, fmt.Errorf("wbgt humidity out of range: %g", t.Humidity))
	}
	return errors.Join(errs...)
}

// Default returns the factory band tables and CO limits.
func Default() Thresholds {
	return Thresholds{
		Tables: map[string]Table{
			MetricCO: {
				{"green", 0, 15},
				{"yellow", 15, 30},
				{"orange", 30, 100},
				{"red", 100, 200},
				{"dark-red", 200, 400},
				{"purple", 400, 999999},
			},
			MetricCO2: {
				{"green", 400, 800},
				{"yellow", 800, 1200},
				{"orange", 1200, 5000},
				{"red", 5000, 10000},
				{"dark-red", 10000, 30000},
				{"purple", 30000, 999999},
			},
			MetricPM25: {
				{"green", 0, 15},
				{"yellow", 15, 30},
				{"orange", 30, 60},
				{"red", 60, 100},
				{"dark-red", 100, 999999},
			},
			MetricPM10: {
				{"green", 5, 40},
				{"yellow", 40, 80},
				{"orange", 80, 120},
				{"red", 120, 150},
				{"dark-red", 150, 999999},
			},
			MetricTemp: {
				{"green", -273, 22},
				{"yellow", 22, 26},
				{"orange", 26, 30},
				{"red", 30, 32},
				{"dark-red", 32, 35},
				{"purple", 35, 100},
			},
			MetricPressure: {
				{"purple-low", 0, 800},
				{"dark-red-low", 800, 850},
				{"red-low", 850, 900},
				{"orange-low", 900, 950},
				{"yellow-low", 950, 980},
				{"green", 980, 1030},
				{"yellow-high", 1030, 1050},
				{"orange-high", 1050, 1080},
				{"red-high", 1080, 1100},
				{"dark-red-high", 1100, 1150},
				{"purple-high", 1150, 2000},
			},
			MetricWBGT: {
				{"green", 0, 25},
				{"yellow", 25, 28},
				{"orange", 28, 31},
				{"red", 31, 33},
				{"dark_red", 33, 35},
				{"purple", 35, 100},
			},
		},
		CO:       COLimits{Ceiling: 200, STEL: 200, TWA: 35},
		Humidity: DefaultHumidity,
	}
}
