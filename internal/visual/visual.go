// v0
// internal/visual/visual.go
package visual

import (
	"strings"

	"nrgchamp/ventilation/internal/models"
)

// StatusColors is the per-metric color view consumed by the 3D floor visualization.
type StatusColors struct {
	Timestamp string `json:"timestamp"`
	CO        string `json:"co"`
	CO2       string `json:"co2"`
	PM25      string `json:"pm2_5"`
	PM10      string `json:"pm10"`
	Temp      string `json:"temp"`
	WBGT      string `json:"wbgt"`
	Pressure  string `json:"pressure"`
}

// BaseColor reduces a band label to its leading color token: "orange-low" -> "orange",
// "dark_red" -> "dark".
func BaseColor(level string) string {
	l := strings.ReplaceAll(level, "_", "-")
	head, _, _ := strings.Cut(l, "-")
	if head == "" {
		return "unknown"
	}
	return head
}

func FromPacket(p *models.StatusPacket) StatusColors {
	return StatusColors{
		Timestamp: p.TimestampOr(""),
		CO:        BaseColor(p.CO().Level),
		CO2:       BaseColor(p.CO2().Level),
		PM25:      BaseColor(p.PM25().Level),
		PM10:      BaseColor(p.PM10().Level),
		Temp:      BaseColor(p.Temp().Level),
		WBGT:      BaseColor(p.WBGT().Level),
		Pressure:  BaseColor(p.Pressure().Level),
	}
}
