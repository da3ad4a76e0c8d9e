// v0
// internal/bands/severity.go
package bands

import "nrgchamp/ventilation/internal/models"

// SeverityTable maps a band label to a coarse severity. Labels absent from the table
// map to none.
type SeverityTable map[string]models.Severity

// Of looks up a label.
func (t SeverityTable) Of(level string) models.Severity {
	if s, ok := t[level]; ok {
		return s
	}
	return models.SeverityNone
}

// EnvironmentalSeverity applies to temperature, pressure and CO2.
var EnvironmentalSeverity = SeverityTable{
	"green":         models.SeverityNone,
	"yellow":        models.SeverityWarning,
	"yellow-low":    models.SeverityWarning,
	"yellow-high":   models.SeverityWarning,
	"orange":        models.SeverityWarning,
	"orange-low":    models.SeverityWarning,
	"orange-high":   models.SeverityWarning,
	"red":           models.SeverityHigh,
	"red-low":       models.SeverityHigh,
	"red-high":      models.SeverityHigh,
	"dark-red":      models.SeverityCritical,
	"dark_red":      models.SeverityCritical,
	"dark-red-low":  models.SeverityCritical,
	"dark-red-high": models.SeverityCritical,
	"purple":        models.SeverityCritical,
	"purple-low":    models.SeverityCritical,
	"purple-high":   models.SeverityCritical,
}

// ParticulateSeverity applies to CO, PM2.5 and PM10. Yellow is tolerated (none) here,
// unlike EnvironmentalSeverity.
var ParticulateSeverity = SeverityTable{
	"green":         models.SeverityNone,
	"yellow":        models.SeverityNone,
	"yellow-low":    models.SeverityNone,
	"yellow-high":   models.SeverityNone,
	"orange":        models.SeverityWarning,
	"orange-low":    models.SeverityWarning,
	"orange-high":   models.SeverityWarning,
	"red":           models.SeverityHigh,
	"red-low":       models.SeverityHigh,
	"red-high":      models.SeverityHigh,
	"dark-red":      models.SeverityCritical,
	"dark_red":      models.SeverityCritical,
	"dark-red-low":  models.SeverityCritical,
	"dark-red-high": models.SeverityCritical,
	"purple":        models.SeverityCritical,
	"purple-low":    models.SeverityCritical,
	"purple-high":   models.SeverityCritical,
}

// HeatIndexSeverity applies to WBGT: anything past orange is critical.
var HeatIndexSeverity = SeverityTable{
	"green":    models.SeverityNone,
	"yellow":   models.SeverityNone,
	"orange":   models.SeverityWarning,
	"red":      models.SeverityCritical,
	"dark-red": models.SeverityCritical,
	"dark_red": models.SeverityCritical,
	"purple":   models.SeverityCritical,
}
