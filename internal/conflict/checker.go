package conflict

import (
	"context"
	"fmt"
	"time"

	"praxis/internal/availability"
	"praxis/internal/timeofday"
)

// Query is a proposed booking. StaffID and RoomID are optional;
// ExcludeAppointmentID skips the appointment being edited.
type Query struct {
	Date                 time.Time
	Interval             timeofday.Interval
	StaffID              string
	RoomID               string
	ExcludeAppointmentID string
}

// Checker evaluates proposals against an availability.Source. It keeps no
// state between calls.
type Checker struct {
	src availability.Source
}

// NewChecker creates a checker over src.
func NewChecker(src availability.Source) *Checker {
	return &Checker{src: src}
}

// LoadDay fetches everything needed to evaluate proposals for one
// staff member and room on date. Any read failure aborts.
func (c *Checker) LoadDay(ctx context.Context, date time.Time, staffID, roomID, excludeID string) (*Day, error) {
	day := &Day{Date: date, StaffID: staffID, RoomID: roomID}
	weekday := date.Weekday()

	if staffID != "" {
		var err error
		if day.Working, err = c.src.WorkingIntervals(ctx, staffID, weekday); err != nil {
			return nil, fmt.Errorf("working intervals: %w", err)
		}
		if day.Breaks, err = c.src.BreakIntervals(ctx, staffID, weekday); err != nil {
			return nil, fmt.Errorf("break intervals: %w", err)
		}
		if day.OnLeave, err = c.src.IsOnLeave(ctx, staffID, date); err != nil {
			return nil, fmt.Errorf("leave: %w", err)
		}
	}

	if staffID != "" || roomID != "" {
		bookings, err := c.src.BookedIntervals(ctx, availability.BookingQuery{
			Date:                 date,
			StaffID:              staffID,
			RoomID:               roomID,
			ExcludeAppointmentID: excludeID,
		})
		if err != nil {
			return nil, fmt.Errorf("booked intervals: %w", err)
		}
		sortBookings(bookings)
		day.Bookings = bookings
	}
	return day, nil
}

// ValidateAppointmentTime reports whether iv lies inside the staff member's
// working hours, avoids breaks, and the staff member is not on leave.
// Existing bookings are not considered.
func (c *Checker) ValidateAppointmentTime(ctx context.Context, staffID string, date time.Time, iv timeofday.Interval) (bool, error) {
	if err := iv.Validate(); err != nil {
		return false, err
	}
	day, err := c.LoadDay(ctx, date, staffID, "", "")
	if err != nil {
		return false, err
	}
	return len(day.StaffConflicts(iv)) == 0, nil
}

// CheckTimeConflict returns every conflict for the proposal, staff checks
// first, then bookings in chronological order. An empty result means the
// slot is free at the time of the read.
func (c *Checker) CheckTimeConflict(ctx context.Context, q Query) ([]Conflict, error) {
	if err := q.Interval.Validate(); err != nil {
		return nil, err
	}
	day, err := c.LoadDay(ctx, q.Date, q.StaffID, q.RoomID, q.ExcludeAppointmentID)
	if err != nil {
		return nil, err
	}
	return day.Conflicts(q.Interval), nil
}
