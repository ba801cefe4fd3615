package conflict

import (
	"sort"
	"time"

	"praxis/internal/availability"
	"praxis/internal/timeofday"
)

// Day is the fetched availability state for one date, one staff member and
// optionally one room. Evaluating intervals against a Day does no I/O.
type Day struct {
	Date     time.Time
	StaffID  string
	RoomID   string
	Working  []timeofday.Interval
	Breaks   []timeofday.Interval
	OnLeave  bool
	Bookings []availability.Booking
}

// StaffConflicts checks working hours, breaks and leave.
func (d *Day) StaffConflicts(iv timeofday.Interval) []Conflict {
	if d.StaffID == "" {
		return nil
	}
	var out []Conflict

	contained := false
	for _, w := range d.Working {
		if w.Contains(iv) {
			contained = true
			break
		}
	}
	if !contained {
		c := newConflict(KindOutsideHours, iv)
		c.StaffID = d.StaffID
		out = append(out, c)
	}

	for _, b := range d.Breaks {
		if !d.insideWorking(b) {
			continue
		}
		if b.Overlaps(iv) {
			c := newConflict(KindOnBreak, b)
			c.StaffID = d.StaffID
			out = append(out, c)
		}
	}

	if d.OnLeave {
		c := newConflict(KindStaffLeave, iv)
		c.StaffID = d.StaffID
		out = append(out, c)
	}
	return out
}

// BookingConflicts reports every existing booking overlapping iv, once per
// filter it matched.
func (d *Day) BookingConflicts(iv timeofday.Interval) []Conflict {
	var out []Conflict
	for _, b := range d.Bookings {
		if !b.Interval.Overlaps(iv) {
			continue
		}
		if b.By.Has(availability.ByStaff) {
			c := newConflict(KindStaffDoubleBook, b.Interval)
			c.AppointmentID = b.AppointmentID
			c.StaffID = b.StaffID
			out = append(out, c)
		}
		if b.By.Has(availability.ByRoom) {
			c := newConflict(KindRoomDoubleBook, b.Interval)
			c.AppointmentID = b.AppointmentID
			c.RoomID = b.RoomID
			out = append(out, c)
		}
	}
	return out
}

// Conflicts returns staff conflicts followed by booking conflicts.
func (d *Day) Conflicts(iv timeofday.Interval) []Conflict {
	out := d.StaffConflicts(iv)
	return append(out, d.BookingConflicts(iv)...)
}

// A break only counts when it sits inside some working window.
func (d *Day) insideWorking(b timeofday.Interval) bool {
	for _, w := range d.Working {
		if w.Contains(b) {
			return true
		}
	}
	return false
}

func sortBookings(bs []availability.Booking) {
	sort.SliceStable(bs, func(i, j int) bool {
		if bs[i].Interval.Start != bs[j].Interval.Start {
			return bs[i].Interval.Start < bs[j].Interval.Start
		}
		return bs[i].AppointmentID < bs[j].AppointmentID
	})
}
