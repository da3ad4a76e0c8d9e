// v0
// internal/validate/reading.go
package validate

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"nrgchamp/ventilation/internal/models"
)

var (
	ErrMalformed    = errors.New("malformed payload")
	ErrMissingField = errors.New("missing field")
	ErrInvalidField = errors.New("invalid field")
)

// Required lists the reading fields every payload must carry.
var Required = []string{"timestamp", "temp", "pressure", "co_mean", "co_max", "co_valid", "pm2_5", "pm10", "co2"}

// ParseReading decodes and validates one sensor payload. Numeric fields accept JSON
// numbers or numeric strings; co_valid accepts booleans, 0/1 and "true"/"false".
func ParseReading(payload []byte) (models.Reading, error) {
	var raw map[string]json.RawMessage
	dec := json.NewDecoder(bytes.NewReader(payload))
	dec.UseNumber()
	if err := dec.Decode(&raw); err != nil {
		return models.Reading{}, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if raw == nil {
		return models.Reading{}, fmt.Errorf("%w: not a JSON object", ErrMalformed)
	}
	var missing []error
	for _, k := range Required {
		if v, ok := raw[k]; !ok || bytes.Equal(bytes.TrimSpace(v), []byte("null")) {
			missing = append(missing, fmt.Errorf("%w: %s", ErrMissingField, k))
		}
	}
	if len(missing) > 0 {
		return models.Reading{}, errors.Join(missing...)
	}

	var r models.Reading
	var errs []error
	ts, err := parseString(raw["timestamp"])
	if err != nil || strings.TrimSpace(ts) == "" {
		errs = append(errs, fmt.Errorf("%w: timestamp", ErrInvalidField))
	}
	r.Timestamp = ts

	for _, f := range []struct {
		key string
		dst *float64
	}{
		{"temp", &r.Temp},
		{"pressure", &r.Pressure},
		{"co_mean", &r.COMean},
		{"co_max", &r.COMax},
		{"pm2_5", &r.PM25},
		{"pm10", &r.PM10},
		{"co2", &r.CO2},
	} {
		v, err := parseFloat(raw[f.key])
		if err != nil {
			errs = append(errs, fmt.Errorf("%w: %s: %v", ErrInvalidField, f.key, err))
			continue
		}
		*f.dst = v
	}

	valid, err := parseBool(raw["co_valid"])
	if err != nil {
		errs = append(errs, fmt.Errorf("%w: co_valid: %v", ErrInvalidField, err))
	}
	r.COValid = valid

	if len(errs) > 0 {
		return models.Reading{}, errors.Join(errs...)
	}
	return r, nil
}

func parseString(raw json.RawMessage) (string, error) {
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return "", err
	}
	return s, nil
}

func parseFloat(raw json.RawMessage) (float64, error) {
	var n json.Number
	if err := json.Unmarshal(raw, &n); err != nil {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return 0, errors.New("not a number")
		}
		n = json.Number(strings.TrimSpace(s))
	}
	f, err := strconv.ParseFloat(n.String(), 64)
	if err != nil {
		return 0, err
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, errors.New("not finite")
	}
	return f, nil
}

func parseBool(raw json.RawMessage) (bool, error) {
	var b bool
	if err := json.Unmarshal(raw, &b); err == nil {
		return b, nil
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err == nil {
		switch n.String() {
		case "0":
			return false, nil
		case "1":
			return true, nil
		}
		return false, fmt.Errorf("numeric flag %s", n)
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		if v, err := strconv.ParseBool(strings.TrimSpace(s)); err == nil {
			return v, nil
		}
	}
	return false, errors.New("not a boolean")
}
