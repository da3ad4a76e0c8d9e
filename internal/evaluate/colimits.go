// v0
// internal/evaluate/colimits.go
package evaluate

import (
	"fmt"

	"nrgchamp/ventilation/internal/bands"
	"nrgchamp/ventilation/internal/models"
)

// COExposure carries the CO inputs of the fixed-limit check. STEL and TWA need a
// 15-minute and an 8-hour window respectively; nothing upstream computes them yet, so
// the evaluator passes nil and only the ceiling check fires in production.
type COExposure struct {
	STEL    *float64
	TWA     *float64
	Ceiling float64
}

// CheckCOLimits compares the exposure against the fixed limits in the order STEL, TWA,
// CEILING. Each exceeded limit yields one alert.
func CheckCOLimits(ts string, exp COExposure, lim bands.COLimits) []models.AlertRecord {
	var out []models.AlertRecord
	if exp.STEL != nil && *exp.STEL > lim.STEL {
		out = append(out, limitAlert(ts, CategoryCOSTEL, "CO STEL", *exp.STEL, lim.STEL, models.SeverityHigh))
	}
	if exp.TWA != nil && *exp.TWA > lim.TWA {
		out = append(out, limitAlert(ts, CategoryCOTWA, "CO TWA", *exp.TWA, lim.TWA, models.SeverityWarning))
	}
	if exp.Ceiling > lim.Ceiling {
		out = append(out, limitAlert(ts, CategoryCOCeiling, "CO CEILING", exp.Ceiling, lim.Ceiling, models.SeverityCritical))
	}
	return out
}

func limitAlert(ts, category, name string, value, limit float64, sev models.Severity) models.AlertRecord {
	l := limit
	return models.AlertRecord{
		Timestamp: ts,
		Category:  category,
		Value:     value,
		Limit:     &l,
		Severity:  sev,
		Message:   fmt.Sprintf("%s exceeded: %s > %s", name, formatValue(value), formatBound(limit)),
	}
}
