// Package conflict decides whether a proposed appointment interval collides
// with working hours, breaks, leave or existing bookings.
package conflict

import (
	"fmt"

	"praxis/internal/timeofday"
)

// Kind tags a conflict so callers can render a specific message.
type Kind string

const (
	KindOutsideHours    Kind = "OUTSIDE_HOURS"
	KindOnBreak         Kind = "ON_BREAK"
	KindStaffLeave      Kind = "STAFF_LEAVE"
	KindStaffDoubleBook Kind = "STAFF_DOUBLE_BOOK"
	KindRoomDoubleBook  Kind = "ROOM_DOUBLE_BOOK"
)

// Conflict describes one reason a proposed interval cannot be booked.
// Interval is the blocking range: the proposal itself for OUTSIDE_HOURS and
// STAFF_LEAVE, the break for ON_BREAK, the existing booking otherwise.
type Conflict struct {
	Kind          Kind               `json:"kind"`
	Interval      timeofday.Interval `json:"interval"`
	AppointmentID string             `json:"appointment_id,omitempty"`
	StaffID       string             `json:"staff_id,omitempty"`
	RoomID        string             `json:"room_id,omitempty"`
	Message       string             `json:"message"`
}

func newConflict(kind Kind, iv timeofday.Interval) Conflict {
	c := Conflict{Kind: kind, Interval: iv}
	switch kind {
	case KindOutsideHours:
		c.Message = fmt.Sprintf("%s is outside working hours", iv)
	case KindOnBreak:
		c.Message = fmt.Sprintf("overlaps break %s", iv)
	case KindStaffLeave:
		c.Message = "staff member is on leave"
	case KindStaffDoubleBook:
		c.Message = fmt.Sprintf("staff member already booked %s", iv)
	case KindRoomDoubleBook:
		c.Message = fmt.Sprintf("room already booked %s", iv)
	}
	return c
}

// HasKind reports whether any conflict in list has kind k.
func HasKind(list []Conflict, k Kind) bool {
	for i := range list {
		if list[i].Kind == k {
			return true
		}
	}
	return false
}
