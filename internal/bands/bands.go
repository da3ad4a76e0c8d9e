// v0
// internal/bands/bands.go
package bands

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"
)

// LevelUnknown is returned when no band of a table contains the value.
const LevelUnknown = "unknown"

// Band is a labeled half-open interval [Low, High).
type Band struct {
	Label string  `json:"label"`
	Low   float64 `json:"low"`
	High  float64 `json:"high"`
}

// Table is the ordered band set of one metric.
type Table []Band

// Classification is the outcome of Classify. Low and High are nil for unknown levels.
type Classification struct {
	Level string   `json:"level"`
	Low   *float64 `json:"low"`
	High  *float64 `json:"high"`
}

// Known reports whether a band matched.
func (c Classification) Known() bool { return c.Level != LevelUnknown }

var (
	ErrEmptyTable     = errors.New("band table is empty")
	ErrNotContiguous  = errors.New("band table is not contiguous")
	ErrInvalidBand    = errors.New("invalid band")
	ErrDuplicateLabel = errors.New("duplicate band label")
)

// Sorted returns a copy of the table ordered by ascending Low.
func (t Table) Sorted() Table {
	out := append(Table(nil), t...)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Low < out[j].Low })
	return out
}

// Validate checks that every band is well formed and that, once sorted, each band ends
// exactly where the next one starts.
func (t Table) Validate() error {
	if len(t) == 0 {
		return ErrEmptyTable
	}
	seen := make(map[string]struct{}, len(t))
	for _, b := range t {
		if strings.TrimSpace(b.Label) == "" {
			return fmt.Errorf("%w: empty label", ErrInvalidBand)
		}
		if math.IsNaN(b.Low) || math.IsNaN(b.High) || !(b.Low < b.High) {
			return fmt.Errorf("%w: %s [%g,%g)", ErrInvalidBand, b.Label, b.Low, b.High)
		}
		if _, dup := seen[b.Label]; dup {
			return fmt.Errorf("%w: %s", ErrDuplicateLabel, b.Label)
		}
		seen[b.Label] = struct{}{}
	}
	s := t.Sorted()
	for i := 0; i+1 < len(s); i++ {
		if s[i].High != s[i+1].Low {
			return fmt.Errorf("%w: %s ends at %g, %s starts at %g", ErrNotContiguous, s[i].Label, s[i].High, s[i+1].Label, s[i+1].Low)
		}
	}
	return nil
}

// Classify returns the first band, in ascending Low order, with Low <= value < High.
// It never fails: values outside the table (and NaN) classify as LevelUnknown.
func Classify(value float64, t Table) Classification {
	for _, b := range t.Sorted() {
		if b.Low <= value && value < b.High {
			low, high := b.Low, b.High
			return Classification{Level: b.Label, Low: &low, High: &high}
		}
	}
	return Classification{Level: LevelUnknown}
}

// StripSide removes a trailing "-low"/"-high" (or "_low"/"_high") qualifier so that
// dual-sided pressure labels compare against their plain color.
func StripSide(level string) string {
	for _, suffix := range []string{"-low", "-high", "_low", "_high"} {
		if strings.HasSuffix(level, suffix) {
			return strings.TrimSuffix(level, suffix)
		}
	}
	return level
}
