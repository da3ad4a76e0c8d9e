// v0
// internal/evaluate/format.go
package evaluate

import (
	"math"
	"strconv"
	"strings"
)

// formatValue renders a reading value the way operators see it in alert texts:
// shortest representation, always with a fractional part ("23.0", "0.25").
func formatValue(v float64) string {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return strconv.FormatFloat(v, 'f', -1, 64)
	}
	s := strconv.FormatFloat(v, 'f', -1, 64)
	if !strings.ContainsAny(s, ".e") {
		s += ".0"
	}
	return s
}

// formatBound renders a band bound or fixed limit without a trailing ".0".
func formatBound(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
