package protocol

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/relvacode/iso8601"
)

const dateTimeLayout = "2006-01-02T15:04:05.000Z07:00"

// DateTime is an OCPP dateTime. It is always written in UTC with millisecond
// precision and read with a lenient ISO-8601 parser, since charge points disagree
// on offsets and fractional seconds.
type DateTime struct {
	time.Time
}

// NewDateTime wraps t.
func NewDateTime(t time.Time) DateTime {
	return DateTime{Time: t}
}

// MarshalJSON implements json.Marshaler.
func (d DateTime) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.UTC().Format(dateTimeLayout))
}

// UnmarshalJSON implements json.Unmarshaler.
func (d *DateTime) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	raw = strings.TrimSpace(raw)
	if raw == "" {
		d.Time = time.Time{}
		return nil
	}
	t, err := iso8601.ParseString(raw)
	if err != nil {
		return err
	}
	d.Time = t
	return nil
}
