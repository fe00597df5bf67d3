package domain

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// ErrInvalidTimestamp is returned when a message timestamp cannot be converted to an instant.
var ErrInvalidTimestamp = errors.New("invalid timestamp")

// epochMillisThreshold separates epoch seconds from epoch milliseconds.
// 1e12 ms is 2001-09-09; any second-resolution value below year 33658 stays under it.
const epochMillisThreshold = 1_000_000_000_000

// RawMessage is one broadcast message as delivered by the message source.
// Immutable once received.
type RawMessage struct {
	ID        int64  // unique, monotonically increasing per source
	Timestamp int64  // message time (ms)
	Text      string // empty when the message carried no text
}

// HasText reports whether the message carries any non-blank text.
func (m RawMessage) HasText() bool {
	return strings.TrimSpace(m.Text) != ""
}

type rawMessageJSON struct {
	ID   int64           `json:"id"`
	Date json.RawMessage `json:"date"`
	Text *string         `json:"text"`
}

// MarshalJSON writes the message with its timestamp as epoch milliseconds.
func (m RawMessage) MarshalJSON() ([]byte, error) {
	text := m.Text
	return json.Marshal(struct {
		ID   int64   `json:"id"`
		Date int64   `json:"date"`
		Text *string `json:"text"`
	}{ID: m.ID, Date: m.Timestamp, Text: &text})
}

// UnmarshalJSON accepts RFC 3339 strings and epoch seconds or milliseconds for "date".
// A null or missing "text" decodes to an empty string.
func (m *RawMessage) UnmarshalJSON(data []byte) error {
	var raw rawMessageJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	ts, err := ParseTimestamp(raw.Date)
	if err != nil {
		return fmt.Errorf("message %d: %w", raw.ID, err)
	}
	m.ID = raw.ID
	m.Timestamp = ts
	m.Text = ""
	if raw.Text != nil {
		m.Text = *raw.Text
	}
	return nil
}

// ParseTimestamp converts a JSON timestamp value to epoch milliseconds.
// Supported forms: RFC 3339 string (with or without fractional seconds),
// numeric string, integer epoch seconds, integer epoch milliseconds.
func ParseTimestamp(raw json.RawMessage) (int64, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return 0, fmt.Errorf("%w: missing", ErrInvalidTimestamp)
	}

	if raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return 0, fmt.Errorf("%w: %v", ErrInvalidTimestamp, err)
		}
		return parseTimestampString(s)
	}

	n, err := strconv.ParseInt(string(raw), 10, 64)
	if err != nil {
		f, ferr := strconv.ParseFloat(string(raw), 64)
		if ferr != nil {
			return 0, fmt.Errorf("%w: %s", ErrInvalidTimestamp, raw)
		}
		n = int64(f)
	}
	return normalizeEpoch(n)
}

func parseTimestampString(s string) (int64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("%w: empty", ErrInvalidTimestamp)
	}
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return normalizeEpoch(n)
	}
	for _, layout := range []string{time.RFC3339Nano, "2006-01-02T15:04:05", "2006-01-02 15:04:05Z07:00", "2006-01-02 15:04:05"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UnixMilli(), nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrInvalidTimestamp, s)
}

func normalizeEpoch(n int64) (int64, error) {
	if n <= 0 {
		return 0, fmt.Errorf("%w: %d", ErrInvalidTimestamp, n)
	}
	if n < epochMillisThreshold {
		n *= 1000
	}
	if !ValidTimestamp(n) {
		return 0, fmt.Errorf("%w: %d out of range", ErrInvalidTimestamp, n)
	}
	return n, nil
}

// maxTimestamp is 9999-12-31T23:59:59.999Z in epoch milliseconds.
const maxTimestamp = 253402300799999

// ValidTimestamp reports whether ms is a usable epoch-millisecond instant.
func ValidTimestamp(ms int64) bool {
	return ms > 0 && ms <= maxTimestamp
}

// MonthKey returns the "YYYY-MM" calendar month of ms in loc.
func MonthKey(ms int64, loc *time.Location) string {
	if loc == nil {
		loc = time.UTC
	}
	return time.UnixMilli(ms).In(loc).Format("2006-01")
}
