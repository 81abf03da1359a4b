package model

import (
	"encoding/json"
	"strconv"
	"time"
)

// Time is an integer count of milliseconds since the Unix epoch, the
// server's native timestamp representation. It totally orders and
// round-trips losslessly through the ISO-8601 strings some endpoints use.
type Time int64

// Zero is the server's sentinel for "unset" on optional timestamp fields.
const Zero Time = 0

// FromUnixMilli builds a Time from a raw millisecond count.
func FromUnixMilli(ms int64) Time {
	return Time(ms)
}

// FromISO8601 parses an ISO-8601 timestamp string into a Time.
func FromISO8601(s string) (Time, error) {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return 0, err
	}

	return Time(t.UnixMilli()), nil
}

// ISO8601 renders the Time as an ISO-8601 / RFC3339 string, the inverse
// of FromISO8601.
func (t Time) ISO8601() string {
	return time.UnixMilli(int64(t)).UTC().Format(time.RFC3339Nano)
}

// Before reports whether t is strictly earlier than other.
func (t Time) Before(other Time) bool { return t < other }

// After reports whether t is strictly later than other.
func (t Time) After(other Time) bool { return t > other }

func (t Time) String() string {
	return strconv.FormatInt(int64(t), 10)
}

// MarshalJSON encodes a Time as the server's native integer-millisecond form.
func (t Time) MarshalJSON() ([]byte, error) {
	return json.Marshal(int64(t))
}

// UnmarshalJSON decodes a Time from the server's native integer-millisecond form.
func (t *Time) UnmarshalJSON(data []byte) error {
	var raw int64
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	*t = Time(raw)

	return nil
}
