package db

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"praxis/internal/availability"
	"praxis/internal/model"
	"praxis/internal/timeofday"
)

var _ availability.Source = (*DB)(nil)

// WorkingIntervals returns active shifts of a staff member on weekday in
// insertion order. Inactive staff have no working time.
func (db *DB) WorkingIntervals(ctx context.Context, staffID string, weekday time.Weekday) ([]timeofday.Interval, error) {
	schedules, err := db.activeSchedules(ctx, staffID, weekday)
	if err != nil {
		return nil, err
	}

	out := make([]timeofday.Interval, 0, len(schedules))
	for i := range schedules {
		iv, err := schedules[i].WorkingInterval()
		if err != nil {
			return nil, fmt.Errorf("schedule %d: %w", schedules[i].ID, err)
		}
		out = append(out, iv)
	}
	return out, nil
}

// BreakIntervals returns the breaks of active shifts on weekday.
func (db *DB) BreakIntervals(ctx context.Context, staffID string, weekday time.Weekday) ([]timeofday.Interval, error) {
	schedules, err := db.activeSchedules(ctx, staffID, weekday)
	if err != nil {
		return nil, err
	}

	var out []timeofday.Interval
	for i := range schedules {
		iv, ok, err := schedules[i].BreakInterval()
		if err != nil {
			return nil, fmt.Errorf("schedule %d break: %w", schedules[i].ID, err)
		}
		if ok {
			out = append(out, iv)
		}
	}
	return out, nil
}

// IsOnLeave reports whether any leave range of the staff member covers date.
func (db *DB) IsOnLeave(ctx context.Context, staffID string, date time.Time) (bool, error) {
	var count int
	d := formatDate(date)
	err := db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM staff_leaves
		WHERE staff_id = ? AND start_date <= ? AND end_date >= ?`,
		staffID, d, d,
	).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("query leave: %w", err)
	}
	return count > 0, nil
}

// BookedIntervals returns non-cancelled appointments on q.Date that share the
// staff member or the room with the query.
func (db *DB) BookedIntervals(ctx context.Context, q availability.BookingQuery) ([]availability.Booking, error) {
	return bookedIntervals(ctx, db.DB, q)
}

type querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

func bookedIntervals(ctx context.Context, qr querier, q availability.BookingQuery) ([]availability.Booking, error) {
	if q.StaffID == "" && q.RoomID == "" {
		return nil, nil
	}

	rows, err := qr.QueryContext(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE date = ? AND status != ? AND (staff_id = ? OR room_id = ?)
		ORDER BY start_time, id`,
		formatDate(q.Date), model.StatusCancelled, q.StaffID, q.RoomID,
	)
	if err != nil {
		return nil, fmt.Errorf("query bookings: %w", err)
	}
	defer rows.Close()

	var out []availability.Booking
	for rows.Next() {
		a, err := scanAppointment(rows)
		if err != nil {
			return nil, err
		}
		by := availability.Classify(a, q)
		if by == 0 {
			continue
		}
		b, err := availability.ToBooking(a, by)
		if err != nil {
			return nil, fmt.Errorf("appointment %s: %w", a.ID, err)
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

func (db *DB) activeSchedules(ctx context.Context, staffID string, weekday time.Weekday) ([]model.StaffSchedule, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT s.id, s.staff_id, s.day_of_week, s.start_time, s.end_time,
		       s.break_start, s.break_end, s.is_active, s.created_at, s.updated_at
		FROM staff_schedules s
		JOIN staff st ON st.id = s.staff_id
		WHERE s.staff_id = ? AND s.day_of_week = ? AND s.is_active = 1 AND st.is_active = 1
		ORDER BY s.id`,
		staffID, int(weekday),
	)
	if err != nil {
		return nil, fmt.Errorf("query schedules: %w", err)
	}
	defer rows.Close()

	var out []model.StaffSchedule
	for rows.Next() {
		var s model.StaffSchedule
		var breakStart, breakEnd sql.NullString
		if err := rows.Scan(
			&s.ID, &s.StaffID, &s.DayOfWeek, &s.StartTime, &s.EndTime,
			&breakStart, &breakEnd, &s.IsActive, &s.CreatedAt, &s.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan schedule: %w", err)
		}
		s.BreakStart = breakStart.String
		s.BreakEnd = breakEnd.String
		out = append(out, s)
	}
	return out, rows.Err()
}
