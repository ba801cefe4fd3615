package model

import (
	"time"

	"praxis/internal/timeofday"
)

type Staff struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	IsActive  bool      `json:"is_active"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type Room struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	IsActive  bool      `json:"is_active"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// StaffSchedule is one working window of a staff member on a weekday.
// Several rows for the same weekday are separate shifts.
type StaffSchedule struct {
	ID         int64     `json:"id"`
	StaffID    string    `json:"staff_id"`
	DayOfWeek  int       `json:"day_of_week"` // 0-6 (Sunday-Saturday)
	StartTime  string    `json:"start_time"`  // "09:00"
	EndTime    string    `json:"end_time"`    // "17:00"
	BreakStart string    `json:"break_start,omitempty"`
	BreakEnd   string    `json:"break_end,omitempty"`
	IsActive   bool      `json:"is_active"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// WorkingInterval parses the working window.
func (s *StaffSchedule) WorkingInterval() (timeofday.Interval, error) {
	return timeofday.ParseInterval(s.StartTime, s.EndTime)
}

// BreakInterval parses the break window. ok is false when no break is set.
func (s *StaffSchedule) BreakInterval() (iv timeofday.Interval, ok bool, err error) {
	if s.BreakStart == "" || s.BreakEnd == "" {
		return timeofday.Interval{}, false, nil
	}
	iv, err = timeofday.ParseInterval(s.BreakStart, s.BreakEnd)
	if err != nil {
		return timeofday.Interval{}, false, err
	}
	return iv, true, nil
}

// StaffLeave blocks a staff member for whole days, inclusive on both ends.
type StaffLeave struct {
	ID        int64     `json:"id"`
	StaffID   string    `json:"staff_id"`
	StartDate time.Time `json:"start_date"`
	EndDate   time.Time `json:"end_date"`
	Reason    string    `json:"reason,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// Covers reports whether date falls inside the leave range.
func (l *StaffLeave) Covers(date time.Time) bool {
	d := DateOnly(date)
	return !d.Before(DateOnly(l.StartDate)) && !d.After(DateOnly(l.EndDate))
}

// DateOnly truncates t to midnight in UTC, keeping its calendar date.
func DateOnly(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// SameDay reports whether a and b share a calendar date.
func SameDay(a, b time.Time) bool {
	return DateOnly(a).Equal(DateOnly(b))
}
