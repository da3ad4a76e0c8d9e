// v1
// internal/config/properties.go
package config

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"nrgchamp/ventilation/internal/bands"
)

// LoadThresholds reads band tables and limits from a properties file on top of the
// built-in defaults. A missing file yields the defaults.
//
//	band.<metric>=label:low:high,label:low:high,...
//	limit.co.ceiling=200
//	limit.co.stel=200
//	limit.co.twa=35
//	wbgt.humidity=40
func LoadThresholds(path string) (bands.Thresholds, error) {
	if strings.TrimSpace(path) == "" {
		return bands.Default(), nil
	}
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return bands.Default(), nil
		}
		return bands.Thresholds{}, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()
	th, err := ParseThresholds(f)
	if err != nil {
		return bands.Thresholds{}, fmt.Errorf("%s: %w", path, err)
	}
	return th, nil
}

// ParseThresholds applies properties read from r to the default thresholds and
// validates the result.
func ParseThresholds(r io.Reader) (bands.Thresholds, error) {
	th := bands.Default()
	s := bufio.NewScanner(r)
	line := 0
	for s.Scan() {
		line++
		raw := strings.TrimSpace(s.Text())
		if raw == "" || strings.HasPrefix(raw, "#") || strings.HasPrefix(raw, "//") {
			continue
		}
		k, v, ok := strings.Cut(raw, "=")
		if !ok {
			return bands.Thresholds{}, fmt.Errorf("line %d: expected key=value", line)
		}
		k = strings.TrimSpace(k)
		v = strings.TrimSpace(v)
		if err := setProperty(&th, k, v); err != nil {
			return bands.Thresholds{}, fmt.Errorf("line %d: %s: %w", line, k, err)
		}
	}
	if err := s.Err(); err != nil {
		return bands.Thresholds{}, fmt.Errorf("read properties: %w", err)
	}
	if err := th.Validate(); err != nil {
		return bands.Thresholds{}, err
	}
	return th, nil
}

func setProperty(th *bands.Thresholds, k, v string) error {
	switch k {
	case "limit.co.ceiling":
		return parsePositive(v, &th.CO.Ceiling)
	case "limit.co.stel":
		return parsePositive(v, &th.CO.STEL)
	case "limit.co.twa":
		return parsePositive(v, &th.CO.TWA)
	case "wbgt.humidity":
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return err
		}
		th.Humidity = f
	default:
		if metric, ok := strings.CutPrefix(k, "band."); ok {
			if !knownMetric(metric) {
				return fmt.Errorf("unknown metric %q", metric)
			}
			tbl, err := parseTable(v)
			if err != nil {
				return err
			}
			th.Tables[metric] = tbl
		}
		// other keys are ignored
	}
	return nil
}

func parseTable(v string) (bands.Table, error) {
	var tbl bands.Table
	for _, item := range split(v, ",") {
		parts := strings.Split(item, ":")
		if len(parts) != 3 {
			return nil, fmt.Errorf("band %q: want label:low:high", item)
		}
		low, err := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
		if err != nil {
			return nil, fmt.Errorf("band %q low: %w", item, err)
		}
		high, err := strconv.ParseFloat(strings.TrimSpace(parts[2]), 64)
		if err != nil {
			return nil, fmt.Errorf("band %q high: %w", item, err)
		}
		tbl = append(tbl, bands.Band{Label: strings.TrimSpace(parts[0]), Low: low, High: high})
	}
	if err := tbl.Validate(); err != nil {
		return nil, err
	}
	return tbl, nil
}

func parsePositive(v string, dst *float64) error {
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return err
	}
	if f <= 0 {
		return fmt.Errorf("must be positive, got %g", f)
	}
	*dst = f
	return nil
}

func knownMetric(m string) bool {
	for _, k := range bands.Metrics {
		if k == m {
			return true
		}
	}
	return false
}
