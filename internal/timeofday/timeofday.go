// Package timeofday implements wall-clock arithmetic on a single calendar day.
//
// A Time is the number of minutes since midnight. The "HH:MM" string form only
// exists at the boundary (config files, HTTP, persisted columns).
package timeofday

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"time"
)

// MinutesPerDay is the length of a calendar day in minutes.
const MinutesPerDay = 24 * 60

var (
	ErrMalformedTime   = errors.New("malformed time of day")
	ErrInvalidDuration = errors.New("duration must be positive")
	ErrInvalidInterval = errors.New("interval start must be before end")
)

// Persisted TIME columns come back as "HH:MM:SS"; seconds must be zero.
var clockPattern = regexp.MustCompile(`^(\d{1,2}):(\d{2})(?::(00))?$`)

// Time is a wall-clock time expressed in minutes since midnight.
type Time int

// Parse converts "HH:MM" into a Time.
func Parse(s string) (Time, error) {
	m := clockPattern.FindStringSubmatch(s)
	if m == nil {
		return 0, fmt.Errorf("%w: %q", ErrMalformedTime, s)
	}
	hour, _ := strconv.Atoi(m[1])
	minute, _ := strconv.Atoi(m[2])
	if hour > 23 || minute > 59 {
		return 0, fmt.Errorf("%w: %q out of range", ErrMalformedTime, s)
	}
	return Time(hour*60 + minute), nil
}

// MustParse is like Parse but panics on malformed input.
func MustParse(s string) Time {
	t, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return t
}

// ToMinutes parses s and returns its minute offset from midnight.
func ToMinutes(s string) (int, error) {
	t, err := Parse(s)
	if err != nil {
		return 0, err
	}
	return int(t), nil
}

// FromClock returns the time of day of t in t's location, truncated to the minute.
func FromClock(t time.Time) Time {
	return Time(t.Hour()*60 + t.Minute())
}

// Minutes returns the minute offset from midnight.
func (t Time) Minutes() int { return int(t) }

// Add returns t shifted by duration minutes. The result must stay on the same
// calendar day; wrapping past midnight is rejected with ErrInvalidInterval.
func (t Time) Add(duration int) (Time, error) {
	if duration <= 0 {
		return 0, fmt.Errorf("%w: %d", ErrInvalidDuration, duration)
	}
	end := int(t) + duration
	if end >= MinutesPerDay {
		return 0, fmt.Errorf("%w: %s + %d min crosses midnight", ErrInvalidInterval, t, duration)
	}
	return Time(end), nil
}

// AddMinutes is the string form of Time.Add.
func AddMinutes(s string, duration int) (string, error) {
	t, err := Parse(s)
	if err != nil {
		return "", err
	}
	end, err := t.Add(duration)
	if err != nil {
		return "", err
	}
	return end.String(), nil
}

// On places t on the calendar day of date in date's location.
func (t Time) On(date time.Time) time.Time {
	y, m, d := date.Date()
	return time.Date(y, m, d, int(t)/60, int(t)%60, 0, 0, date.Location())
}

func (t Time) String() string {
	return fmt.Sprintf("%02d:%02d", int(t)/60, int(t)%60)
}

// MarshalText renders "HH:MM".
func (t Time) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

// UnmarshalText parses "HH:MM".
func (t *Time) UnmarshalText(b []byte) error {
	v, err := Parse(string(b))
	if err != nil {
		return err
	}
	*t = v
	return nil
}
