package model

import (
	"time"

	"praxis/internal/timeofday"
)

type AppointmentStatus string

const (
	StatusScheduled AppointmentStatus = "SCHEDULED"
	StatusCompleted AppointmentStatus = "COMPLETED"
	StatusCancelled AppointmentStatus = "CANCELLED"
	StatusNoShow    AppointmentStatus = "NO_SHOW"
)

// Valid reports whether s is a known status.
func (s AppointmentStatus) Valid() bool {
	switch s {
	case StatusScheduled, StatusCompleted, StatusCancelled, StatusNoShow:
		return true
	}
	return false
}

type Appointment struct {
	ID            string            `json:"id"`
	PatientID     string            `json:"patient_id"`
	PackageItemID string            `json:"package_item_id,omitempty"`
	ServiceID     string            `json:"service_id"`
	StaffID       string            `json:"staff_id"`
	RoomID        string            `json:"room_id"`
	Date          time.Time         `json:"date"`
	StartTime     string            `json:"start_time"` // "10:00"
	EndTime       string            `json:"end_time"`   // "10:30"
	Status        AppointmentStatus `json:"status"`
	Notes         string            `json:"notes,omitempty"`
	CreatedAt     time.Time         `json:"created_at"`
	UpdatedAt     time.Time         `json:"updated_at"`
}

// Interval parses the booked time range.
func (a *Appointment) Interval() (timeofday.Interval, error) {
	return timeofday.ParseInterval(a.StartTime, a.EndTime)
}

// Duration returns the booked length in minutes, zero if the times are invalid.
func (a *Appointment) Duration() int {
	iv, err := a.Interval()
	if err != nil {
		return 0
	}
	return iv.Duration()
}

// Blocking reports whether the appointment occupies its slot. Cancelled
// appointments free their slot.
func (a *Appointment) Blocking() bool {
	return a.Status != StatusCancelled
}

// OverlapsWith reports whether both appointments are on the same date with
// overlapping intervals.
func (a *Appointment) OverlapsWith(other *Appointment) bool {
	if !SameDay(a.Date, other.Date) {
		return false
	}
	iv1, err := a.Interval()
	if err != nil {
		return false
	}
	iv2, err := other.Interval()
	if err != nil {
		return false
	}
	return iv1.Overlaps(iv2)
}

// StartsAt returns the start as an instant on the appointment date in loc.
func (a *Appointment) StartsAt(loc *time.Location) (time.Time, error) {
	start, err := timeofday.Parse(a.StartTime)
	if err != nil {
		return time.Time{}, err
	}
	y, m, d := a.Date.Date()
	return start.On(time.Date(y, m, d, 0, 0, 0, 0, loc)), nil
}
