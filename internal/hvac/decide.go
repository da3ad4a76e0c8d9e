// v0
// internal/hvac/decide.go
package hvac

import (
	"fmt"
	"strings"
	"time"

	"nrgchamp/ventilation/internal/bands"
	"nrgchamp/ventilation/internal/models"
)

// Baseline setpoints of NORMAL mode.
const (
	BaseSupply  = 40
	BaseExhaust = 30
	BaseAC      = 0

	pressureStep     = 15
	pressureLowEdge  = 1005.0
	pressureHighEdge = 1025.0
)

// Now is the clock used when a packet carries no timestamp.
var Now = func() time.Time { return time.Now().UTC() }

type state struct {
	mode    models.VentilationMode
	supply  int
	exhaust int
	ac      int
	reasons []string
}

// Decide runs the rule cascade over a status packet. Missing leaves count as green;
// a nil packet yields the NORMAL baseline.
func Decide(p *models.StatusPacket) models.VentilationAction {
	s := &state{mode: models.ModeNormal, supply: BaseSupply, exhaust: BaseExhaust, ac: BaseAC}
	ts := p.TimestampOr(Now().Format(time.RFC3339Nano))

	// CO is the only rule allowed to short-circuit.
	co := p.CO()
	if co.Severity.AtLeastHigh() {
		s.mode = models.ModeEmergencyPurge
		s.exhaust = 100
		s.supply = 40
		s.ac = 0
		s.reason(fmt.Sprintf("CO %s (%.1f ppm) → EMERGENCY_PURGE", strings.ToUpper(co.Level), co.Value))
		return s.finalize(ts)
	}

	co2 := p.CO2()
	switch {
	case co2.Severity.AtLeastHigh():
		s.mode = models.ModeCO2Purge
		s.supply = max(s.supply, 90)
		s.exhaust = max(s.exhaust, 75)
		s.reason(fmt.Sprintf("CO2 %s (%.0f ppm) → increase fresh air", strings.ToUpper(co2.Level), co2.Value))
	case co2.Severity == models.SeverityWarning:
		s.supply = max(s.supply, 70)
		s.exhaust = max(s.exhaust, 55)
		s.reason(fmt.Sprintf("CO2 warning (%.0f ppm) → boost ventilation", co2.Value))
	}

	pm25, pm10 := p.PM25(), p.PM10()
	switch {
	case pm25.Severity.AtLeastHigh() || pm10.Severity.AtLeastHigh():
		s.mode = models.ModeDustControl
		s.exhaust = 90
		s.supply = 60
		s.ac = 0
		s.reason(pmReason("danger", pm25, pm10))
	case pm25.Severity == models.SeverityWarning || pm10.Severity == models.SeverityWarning:
		s.mode = models.ModeDustControl
		s.exhaust = max(s.exhaust, 70)
		s.supply = max(s.supply, 50)
		s.reason(pmReason("warning", pm25, pm10))
	}

	temp, heat := p.Temp(), p.WBGT()
	switch {
	case temp.Severity.AtLeastHigh() || heat.Severity.AtLeastHigh():
		s.mode = models.ModeHeatStress
		s.supply = max(s.supply, 80)
		s.exhaust = max(s.exhaust, 60)
		s.ac = max(s.ac, 80)
		s.reason(heatReason("danger", temp, heat))
	case temp.Severity == models.SeverityWarning || heat.Severity == models.SeverityWarning:
		if s.mode == models.ModeNormal {
			s.mode = models.ModeHeatStress
		}
		s.supply = max(s.supply, 60)
		s.exhaust = max(s.exhaust, 50)
		s.ac = max(s.ac, 50)
		s.reason(heatReason("warning", temp, heat))
	}

	// Pressure steps are additive and may overshoot 100 until finalize clamps.
	press := p.Pressure()
	color := bands.StripSide(press.Level)
	if color == "orange" || color == "red" {
		if press.Value < pressureLowEdge {
			s.supply += pressureStep
			s.reason(fmt.Sprintf("Low pressure (%.1f hPa) → increase supply", press.Value))
		}
		if press.Value > pressureHighEdge {
			s.exhaust += pressureStep
			s.reason(fmt.Sprintf("High pressure (%.1f hPa) → increase exhaust", press.Value))
		}
	}
	if press.Severity.AtLeastHigh() {
		if s.mode == models.ModeNormal {
			s.mode = models.ModePressureCorrection
		}
		s.reason(fmt.Sprintf("Pressure anomaly severity=%s", press.Severity))
	}

	return s.finalize(ts)
}

func pmReason(kind string, pm25, pm10 models.StatusEntry) string {
	return fmt.Sprintf("PM %s: PM2.5=%.1fµg/m³ (%s), PM10=%.1fµg/m³ (%s)", kind, pm25.Value, pm25.Level, pm10.Value, pm10.Level)
}

func heatReason(kind string, temp, heat models.StatusEntry) string {
	return fmt.Sprintf("Heat %s: Temp=%.1f°C (%s), WBGT=%.1f°C (%s)", kind, temp.Value, temp.Level, heat.Value, heat.Level)
}

func (s *state) reason(r string) { s.reasons = append(s.reasons, r) }

func (s *state) finalize(ts string) models.VentilationAction {
	return models.VentilationAction{
		Timestamp:       ts,
		Mode:            s.mode,
		FanSupplySpeed:  clampPercent(s.supply),
		FanExhaustSpeed: clampPercent(s.exhaust),
		ACPower:         clampPercent(s.ac),
		Reasons:         dedupe(s.reasons),
	}
}

func clampPercent(v int) int {
	return min(100, max(0, v))
}

func dedupe(in []string) []string {
	out := make([]string, 0, len(in))
	seen := make(map[string]struct{}, len(in))
	for _, r := range in {
		if _, ok := seen[r]; ok {
			continue
		}
		seen[r] = struct{}{}
		out = append(out, r)
	}
	return out
}
