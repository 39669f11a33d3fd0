package events

import (
	"bytes"
	"encoding/json"
	"strings"
	"time"

	dateparser "github.com/markusmobius/go-dateparser"
)

// ParseDeadline reads a deadline as sent by clients. It accepts JSON null or
// an empty string (no deadline), a number of Unix milliseconds, an RFC 3339
// timestamp, or a free-form date such as "12 March 2026 18:00".
func ParseDeadline(raw json.RawMessage) (*time.Time, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return nil, nil
	}

	if trimmed[0] != '"' {
		var millis json.Number
		if err := json.Unmarshal(trimmed, &millis); err != nil {
			return nil, FieldError{Field: "deadline", Message: "must be a date string or Unix milliseconds"}
		}
		n, err := millis.Int64()
		if err != nil {
			return nil, FieldError{Field: "deadline", Message: "must be a whole number of milliseconds"}
		}
		t := time.UnixMilli(n).UTC()
		return &t, nil
	}

	var value string
	if err := json.Unmarshal(trimmed, &value); err != nil {
		return nil, FieldError{Field: "deadline", Message: "must be a date string or Unix milliseconds"}
	}
	value = strings.TrimSpace(value)
	if value == "" {
		return nil, nil
	}

	if t, err := time.Parse(time.RFC3339Nano, value); err == nil {
		t = t.UTC()
		return &t, nil
	}

	parsed, err := dateparser.Parse(nil, value)
	if err != nil || parsed.Time.IsZero() {
		return nil, FieldError{Field: "deadline", Message: "unrecognized date"}
	}
	t := parsed.Time.UTC()
	return &t, nil
}
