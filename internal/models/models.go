// v0
// internal/models/models.go
package models

import "time"

// Reading is one validated sensor sample from the factory floor.
type Reading struct {
	Timestamp string  `json:"timestamp"` // ISO-8601 UTC
	Temp      float64 `json:"temp"`      // °C
	Pressure  float64 `json:"pressure"`  // hPa
	COMean    float64 `json:"co_mean"`   // ppm
	COMax     float64 `json:"co_max"`    // ppm
	COValid   bool    `json:"co_valid"`
	PM25      float64 `json:"pm2_5"` // µg/m³
	PM10      float64 `json:"pm10"`  // µg/m³
	CO2       float64 `json:"co2"`   // ppm
}

type Severity string

const (
	SeverityNone     Severity = "none"
	SeverityWarning  Severity = "warning"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// Rank orders severities none < warning < high < critical. Unknown values rank as none.
func (s Severity) Rank() int {
	switch s {
	case SeverityWarning:
		return 1
	case SeverityHigh:
		return 2
	case SeverityCritical:
		return 3
	default:
		return 0
	}
}

// AtLeastHigh reports whether the severity is high or critical.
func (s Severity) AtLeastHigh() bool { return s == SeverityHigh || s == SeverityCritical }

type StatusEntry struct {
	Value    float64  `json:"value"`
	Level    string   `json:"level"`
	Severity Severity `json:"severity"`
}

// DefaultEntry is substituted for any status leaf missing from a packet.
var DefaultEntry = StatusEntry{Value: 0.0, Level: "green", Severity: SeverityNone}

type PMStatus struct {
	PM25 *StatusEntry `json:"pm2_5,omitempty"`
	PM10 *StatusEntry `json:"pm10,omitempty"`
}

// StatusPacket aggregates the classification of one reading. Leaves are optional so
// that partially populated packets (e.g. decoded from the wire) still decide safely.
type StatusPacket struct {
	Timestamp     string       `json:"timestamp"`
	COEntry       *StatusEntry `json:"co,omitempty"`
	CO2Entry      *StatusEntry `json:"co2,omitempty"`
	PM            *PMStatus    `json:"pm,omitempty"`
	TempEntry     *StatusEntry `json:"temp,omitempty"`
	WBGTEntry     *StatusEntry `json:"wbgt,omitempty"`
	PressureEntry *StatusEntry `json:"pressure,omitempty"`
}

func entryOrDefault(e *StatusEntry) StatusEntry {
	if e == nil {
		return DefaultEntry
	}
	return *e
}

func (p *StatusPacket) CO() StatusEntry {
	if p == nil {
		return DefaultEntry
	}
	return entryOrDefault(p.COEntry)
}

func (p *StatusPacket) CO2() StatusEntry {
	if p == nil {
		return DefaultEntry
	}
	return entryOrDefault(p.CO2Entry)
}

func (p *StatusPacket) PM25() StatusEntry {
	if p == nil || p.PM == nil {
		return DefaultEntry
	}
	return entryOrDefault(p.PM.PM25)
}

func (p *StatusPacket) PM10() StatusEntry {
	if p == nil || p.PM == nil {
		return DefaultEntry
	}
	return entryOrDefault(p.PM.PM10)
}

func (p *StatusPacket) Temp() StatusEntry {
	if p == nil {
		return DefaultEntry
	}
	return entryOrDefault(p.TempEntry)
}

func (p *StatusPacket) WBGT() StatusEntry {
	if p == nil {
		return DefaultEntry
	}
	return entryOrDefault(p.WBGTEntry)
}

func (p *StatusPacket) Pressure() StatusEntry {
	if p == nil {
		return DefaultEntry
	}
	return entryOrDefault(p.PressureEntry)
}

// TimestampOr returns the packet timestamp, or def when absent.
func (p *StatusPacket) TimestampOr(def string) string {
	if p == nil || p.Timestamp == "" {
		return def
	}
	return p.Timestamp
}

const WindowInstant = "instant"

// MetricRecord is persisted one row per evaluated metric.
type MetricRecord struct {
	Timestamp string   `json:"timestamp"`
	Type      string   `json:"type"`
	Value     float64  `json:"value"`
	Window    string   `json:"window"`
	Limit     *float64 `json:"limit"`
	Status    string   `json:"status"`
}

// AlertRecord is emitted only for severities other than none.
type AlertRecord struct {
	Timestamp string   `json:"timestamp"`
	Category  string   `json:"category"`
	Value     float64  `json:"value"`
	Limit     *float64 `json:"limit"`
	Severity  Severity `json:"severity"`
	Message   string   `json:"message"`
}

type VentilationMode string

const (
	ModeNormal             VentilationMode = "NORMAL"
	ModeEmergencyPurge     VentilationMode = "EMERGENCY_PURGE"
	ModeCO2Purge           VentilationMode = "CO2_PURGE"
	ModeDustControl        VentilationMode = "DUST_CONTROL"
	ModeHeatStress         VentilationMode = "HEAT_STRESS"
	ModePressureCorrection VentilationMode = "PRESSURE_CORRECTION"
)

// VentilationAction is the decision for one reading cycle. Speeds and AC power are
// always within [0,100] once the action leaves the decision engine.
type VentilationAction struct {
	Timestamp       string          `json:"timestamp"`
	Mode            VentilationMode `json:"ventilation_mode"`
	FanSupplySpeed  int             `json:"fan_supply_speed"`
	FanExhaustSpeed int             `json:"fan_exhaust_speed"`
	ACPower         int             `json:"ac_power"`
	Reasons         []string        `json:"reasons"`
}

// VentilationCommand is the actuator-facing form of a VentilationAction.
type VentilationCommand struct {
	Timestamp       string          `json:"timestamp"`
	Mode            VentilationMode `json:"ventilation_mode"`
	FanSupplySpeed  int             `json:"fan_supply_speed"`
	FanExhaustSpeed int             `json:"fan_exhaust_speed"`
	ACPower         int             `json:"ac_power"`
}

// Command drops the reasons, which never travel to the actuators.
func (a VentilationAction) Command() VentilationCommand {
	return VentilationCommand{
		Timestamp:       a.Timestamp,
		Mode:            a.Mode,
		FanSupplySpeed:  a.FanSupplySpeed,
		FanExhaustSpeed: a.FanExhaustSpeed,
		ACPower:         a.ACPower,
	}
}

// RankedAlert is the single worst active condition of a reading, sent to the alert channel.
type RankedAlert struct {
	Gas            string   `json:"gas"`
	PredictedValue float64  `json:"predicted_value"`
	Level          Severity `json:"level"`
	Timestamp      string   `json:"timestamp"`
}

// Snapshot is the latest processed state exposed over HTTP.
type Snapshot struct {
	Packet    StatusPacket      `json:"status_packet"`
	Action    VentilationAction `json:"ventilation"`
	Alert     *RankedAlert      `json:"alert,omitempty"`
	UpdatedAt time.Time         `json:"updated_at"`
}
