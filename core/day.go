package core

import (
	"fmt"
	"strings"
	"time"

	"github.com/pkg/errors"
)

const dayLayout = "2006-01-02"

var errInvalidDay = errors.New("invalid day, expected YYYY-MM-DD")

// Day is a calendar date with no time of day and no zone.
type Day struct {
	Year  int
	Month time.Month
	Day   int
}

// DayOf returns the local calendar day of t.
// Local components are used on purpose: converting to UTC first shifts late-evening times to the next day.
func DayOf(t time.Time) Day {
	y, m, d := t.Local().Date()
	return Day{Year: y, Month: m, Day: d}
}

// DayKey is the YYYY-MM-DD key of t's local calendar day.
func DayKey(t time.Time) string {
	return DayOf(t).Key()
}

func Today() Day { return DayOf(NowFunc()) }

// ParseDay parses a day key. Longer timestamps ("2025-03-01T00:00:00Z") are accepted and
// their date part is taken literally, without zone conversion.
func ParseDay(s string) (Day, error) {
	s = strings.TrimSpace(s)
	if len(s) > len(dayLayout) {
		s = s[:len(dayLayout)]
	}
	t, err := time.Parse(dayLayout, s)
	if err != nil {
		return Day{}, errInvalidDay
	}
	return Day{Year: t.Year(), Month: t.Month(), Day: t.Day()}, nil
}

func MustParseDay(s string) Day {
	d, err := ParseDay(s)
	if err != nil {
		panic(err)
	}
	return d
}

func (d Day) IsZero() bool { return d == Day{} }

func (d Day) Key() string {
	if d.IsZero() {
		return ""
	}
	return fmt.Sprintf("%04d-%02d-%02d", d.Year, int(d.Month), d.Day)
}

func (d Day) String() string { return d.Key() }

// Time returns midnight of d in loc.
func (d Day) Time(loc *time.Location) time.Time {
	return time.Date(d.Year, d.Month, d.Day, 0, 0, 0, 0, loc)
}

func (d Day) AddDays(n int) Day {
	return DayOf(d.Time(time.Local).AddDate(0, 0, n))
}

func (d Day) Before(o Day) bool { return d.Key() < o.Key() }
func (d Day) After(o Day) bool  { return d.Key() > o.Key() }

// Within reports whether d is in [from, to]; a zero bound is open.
func (d Day) Within(from, to Day) bool {
	if !from.IsZero() && d.Before(from) {
		return false
	}
	if !to.IsZero() && d.After(to) {
		return false
	}
	return true
}

func (d Day) MarshalJSON() ([]byte, error) {
	if d.IsZero() {
		return []byte("null"), nil
	}
	return []byte(`"` + d.Key() + `"`), nil
}

func (d *Day) UnmarshalJSON(data []byte) error {
	s := strings.Trim(string(data), `"`)
	if s == "" || s == "null" {
		*d = Day{}
		return nil
	}
	day, err := ParseDay(s)
	if err != nil {
		return errors.Wrapf(err, "parsing %q", s)
	}
	*d = day
	return nil
}

// UnmarshalParam lets echo bind query params straight into a Day.
func (d *Day) UnmarshalParam(param string) error {
	return d.UnmarshalJSON([]byte(param))
}
