// Package availability defines the read-only view of persisted state that the
// scheduling core depends on.
package availability

import (
	"context"
	"time"

	"praxis/internal/model"
	"praxis/internal/timeofday"
)

// Occupant tells which filter an existing booking blocks through.
type Occupant uint8

const (
	ByStaff Occupant = 1 << iota
	ByRoom
)

// Has reports whether o includes x.
func (o Occupant) Has(x Occupant) bool { return o&x != 0 }

func (o Occupant) String() string {
	switch o {
	case ByStaff:
		return "staff"
	case ByRoom:
		return "room"
	case ByStaff | ByRoom:
		return "staff+room"
	}
	return "none"
}

// Booking is an existing non-cancelled appointment as seen by the conflict checker.
type Booking struct {
	AppointmentID string
	StaffID       string
	RoomID        string
	Interval      timeofday.Interval
	By            Occupant
}

// BookingQuery selects bookings on Date that match StaffID or RoomID.
// Empty identifiers are not filtered on.
type BookingQuery struct {
	Date                 time.Time
	StaffID              string
	RoomID               string
	ExcludeAppointmentID string
}

// Source is implemented by the persistence layer. Implementations must
// exclude cancelled appointments and the excluded appointment id from
// BookedIntervals.
type Source interface {
	WorkingIntervals(ctx context.Context, staffID string, weekday time.Weekday) ([]timeofday.Interval, error)
	BreakIntervals(ctx context.Context, staffID string, weekday time.Weekday) ([]timeofday.Interval, error)
	IsOnLeave(ctx context.Context, staffID string, date time.Time) (bool, error)
	BookedIntervals(ctx context.Context, q BookingQuery) ([]Booking, error)
}

// Classify returns how an appointment blocks the query, zero when it does not.
func Classify(a *model.Appointment, q BookingQuery) Occupant {
	if !a.Blocking() || (q.ExcludeAppointmentID != "" && a.ID == q.ExcludeAppointmentID) {
		return 0
	}
	var by Occupant
	if q.StaffID != "" && a.StaffID == q.StaffID {
		by |= ByStaff
	}
	if q.RoomID != "" && a.RoomID == q.RoomID {
		by |= ByRoom
	}
	return by
}

// ToBooking converts a blocking appointment into a Booking.
func ToBooking(a *model.Appointment, by Occupant) (Booking, error) {
	iv, err := a.Interval()
	if err != nil {
		return Booking{}, err
	}
	return Booking{
		AppointmentID: a.ID,
		StaffID:       a.StaffID,
		RoomID:        a.RoomID,
		Interval:      iv,
		By:            by,
	}, nil
}
