package config

import (
	"encoding/json"
	"fmt"
	"time"
)

// Duration is a time.Duration that decodes from "3s"-style strings or
// integer nanoseconds.
type Duration time.Duration

// Std returns the value as a time.Duration.
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

// MarshalJSON encodes the duration as a string.
func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Duration(d).String())
}

// UnmarshalJSON implements custom JSON unmarshaling for Duration
func (d *Duration) UnmarshalJSON(data []byte) error {
	var raw any
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	parsed, err := parseDurationField(raw)
	if err != nil {
		return err
	}
	*d = Duration(parsed)
	return nil
}

// parseDurationField accepts a duration string or a number of nanoseconds.
func parseDurationField(v any) (time.Duration, error) {
	switch val := v.(type) {
	case nil:
		return 0, nil
	case string:
		if val == "" {
			return 0, nil
		}
		return time.ParseDuration(val)
	case float64:
		return time.Duration(val), nil
	case int:
		return time.Duration(val), nil
	default:
		return 0, fmt.Errorf("invalid duration %v (%T)", v, v)
	}
}
