// v0
// internal/alerting/rank.go
package alerting

import (
	"time"

	"nrgchamp/ventilation/internal/models"
)

// Gas keys reported on the alert channel, in extraction order.
const (
	GasCO       = "co"
	GasCO2      = "co2"
	GasPM25     = "pm2_5"
	GasPM10     = "pm10"
	GasTemp     = "temp"
	GasWBGT     = "wbgt"
	GasPressure = "pressure"
)

// Candidates extracts one alert per packet leaf whose severity is not none.
func Candidates(p *models.StatusPacket) []models.RankedAlert {
	ts := p.TimestampOr(time.Now().UTC().Format(time.RFC3339Nano))
	leaves := []struct {
		gas string
		e   models.StatusEntry
	}{
		{GasCO, p.CO()},
		{GasCO2, p.CO2()},
		{GasPM25, p.PM25()},
		{GasPM10, p.PM10()},
		{GasTemp, p.Temp()},
		{GasWBGT, p.WBGT()},
		{GasPressure, p.Pressure()},
	}
	var out []models.RankedAlert
	for _, l := range leaves {
		if l.e.Severity.Rank() == 0 {
			continue
		}
		out = append(out, models.RankedAlert{Gas: l.gas, PredictedValue: l.e.Value, Level: l.e.Severity, Timestamp: ts})
	}
	return out
}

// Worst picks the alert with the highest (severity rank, value). The earliest alert
// wins exact ties.
func Worst(alerts []models.RankedAlert) (models.RankedAlert, bool) {
	if len(alerts) == 0 {
		return models.RankedAlert{}, false
	}
	best := alerts[0]
	for _, a := range alerts[1:] {
		if greater(a, best) {
			best = a
		}
	}
	return best, true
}

func greater(a, b models.RankedAlert) bool {
	ra, rb := a.Level.Rank(), b.Level.Rank()
	if ra != rb {
		return ra > rb
	}
	return a.PredictedValue > b.PredictedValue
}

// Rank returns the single alert to notify for a packet, if any.
func Rank(p *models.StatusPacket) (models.RankedAlert, bool) {
	return Worst(Candidates(p))
}
