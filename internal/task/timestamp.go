package task

import (
	"encoding/json"
	"fmt"
	"time"
)

// legacyLayout matches timestamps written without a zone offset.
const legacyLayout = "2006-01-02T15:04:05.999999999"

// Timestamp is an ISO-8601 instant. It encodes as RFC 3339 with nanoseconds and
// also decodes zone-less values, which are read as local time.
type Timestamp struct {
	time.Time
}

func (t Timestamp) String() string {
	return t.Time.Format(time.RFC3339Nano)
}

func (t Timestamp) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.String())
}

func (t *Timestamp) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("timestamp: %w", err)
	}
	parsed, err := ParseTimestamp(s)
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

func (t Timestamp) MarshalYAML() (any, error) {
	return t.String(), nil
}

func ParseTimestamp(s string) (Timestamp, error) {
	if ts, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return Timestamp{ts}, nil
	}
	ts, err := time.ParseInLocation(legacyLayout, s, time.Local)
	if err != nil {
		return Timestamp{}, fmt.Errorf("parse timestamp %q: %w", s, err)
	}
	return Timestamp{ts}, nil
}
