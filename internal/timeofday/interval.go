package timeofday

import "fmt"

// Interval is a half-open [Start, End) stretch of one calendar day.
type Interval struct {
	Start Time `json:"start"`
	End   Time `json:"end"`
}

// NewInterval builds an interval, rejecting zero-length and inverted ranges.
func NewInterval(start, end Time) (Interval, error) {
	iv := Interval{Start: start, End: end}
	if err := iv.Validate(); err != nil {
		return Interval{}, err
	}
	return iv, nil
}

// ParseInterval parses two "HH:MM" strings into an interval.
func ParseInterval(start, end string) (Interval, error) {
	s, err := Parse(start)
	if err != nil {
		return Interval{}, err
	}
	e, err := Parse(end)
	if err != nil {
		return Interval{}, err
	}
	return NewInterval(s, e)
}

// MustInterval is like ParseInterval but panics on error.
func MustInterval(start, end string) Interval {
	iv, err := ParseInterval(start, end)
	if err != nil {
		panic(err)
	}
	return iv
}

// IntervalFrom derives [start, start+duration).
func IntervalFrom(start Time, duration int) (Interval, error) {
	end, err := start.Add(duration)
	if err != nil {
		return Interval{}, err
	}
	return Interval{Start: start, End: end}, nil
}

// Validate reports ErrInvalidInterval when Start >= End.
func (iv Interval) Validate() error {
	if iv.Start >= iv.End {
		return fmt.Errorf("%w: %s", ErrInvalidInterval, iv)
	}
	return nil
}

// Duration returns the length in minutes.
func (iv Interval) Duration() int {
	return int(iv.End - iv.Start)
}

// Overlaps reports whether iv and other share at least one minute.
func (iv Interval) Overlaps(other Interval) bool {
	return Overlaps(iv, other)
}

// Contains reports whether other lies entirely within iv.
func (iv Interval) Contains(other Interval) bool {
	return iv.Start <= other.Start && other.End <= iv.End
}

func (iv Interval) String() string {
	return iv.Start.String() + "-" + iv.End.String()
}

// Overlaps implements the half-open rule: a ends at 10:00 and b starts at
// 10:00 do not overlap.
func Overlaps(a, b Interval) bool {
	return a.Start < b.End && b.Start < a.End
}
