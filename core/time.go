package core

import (
	"strings"
	"time"

	"github.com/pkg/errors"
)

var NowFunc = time.Now // mockable

// timeLayouts are the timestamp shapes the backend is known to send.
var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	dayLayout,
}

// Time is a timestamp that also accepts zone-less values (read as local time).
type Time struct {
	time.Time
}

func ParseTime(s string) (Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range timeLayouts {
		if t, err := time.ParseInLocation(layout, s, time.Local); err == nil {
			return Time{t}, nil
		}
	}
	return Time{}, errors.Errorf("invalid timestamp %q", s)
}

func (t Time) MarshalJSON() ([]byte, error) {
	if t.IsZero() {
		return []byte("null"), nil
	}
	return []byte(`"` + t.Format(time.RFC3339) + `"`), nil
}

func (t *Time) UnmarshalJSON(data []byte) error {
	s := strings.Trim(string(data), `"`)
	if s == "" || s == "null" {
		*t = Time{}
		return nil
	}
	parsed, err := ParseTime(s)
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

// Day returns the local calendar day of t.
func (t Time) Day() Day { return DayOf(t.Time) }
