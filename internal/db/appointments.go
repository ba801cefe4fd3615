package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"praxis/internal/availability"
	"praxis/internal/model"
)

const appointmentColumns = `id, patient_id, package_item_id, service_id, staff_id, room_id,
		       date, start_time, end_time, status, notes, created_at, updated_at`

type scanner interface {
	Scan(dest ...any) error
}

func scanAppointment(s scanner) (*model.Appointment, error) {
	var (
		a           model.Appointment
		packageItem sql.NullString
		notes       sql.NullString
		date        string
		status      string
	)
	if err := s.Scan(
		&a.ID, &a.PatientID, &packageItem, &a.ServiceID, &a.StaffID, &a.RoomID,
		&date, &a.StartTime, &a.EndTime, &status, &notes, &a.CreatedAt, &a.UpdatedAt,
	); err != nil {
		return nil, err
	}
	d, err := parseDate(date)
	if err != nil {
		return nil, fmt.Errorf("appointment %s date: %w", a.ID, err)
	}
	a.Date = d
	a.Status = model.AppointmentStatus(status)
	a.PackageItemID = packageItem.String
	a.Notes = notes.String
	return &a, nil
}

// CreateAppointment inserts a SCHEDULED appointment. Staff and room overlap
// are re-checked inside the write transaction; an overlap committed after the
// caller's advisory check yields ErrSlotTaken.
func (db *DB) CreateAppointment(ctx context.Context, a *model.Appointment) error {
	iv, err := a.Interval()
	if err != nil {
		return err
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if err := ensureFree(ctx, tx, a, ""); err != nil {
		return err
	}

	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	a.StartTime = iv.Start.String()
	a.EndTime = iv.End.String()
	if a.Status == "" {
		a.Status = model.StatusScheduled
	}
	now := time.Now()
	a.CreatedAt, a.UpdatedAt = now, now

	_, err = tx.ExecContext(ctx, `
		INSERT INTO appointments (
			id, patient_id, package_item_id, service_id, staff_id, room_id,
			date, start_time, end_time, status, notes, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		a.ID, a.PatientID, nullString(a.PackageItemID), a.ServiceID, a.StaffID, a.RoomID,
		formatDate(a.Date), a.StartTime, a.EndTime, string(a.Status), nullString(a.Notes), now, now,
	)
	if err != nil {
		return fmt.Errorf("insert appointment: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}

	db.logger.Debug().
		Str("appointment_id", a.ID).
		Str("staff_id", a.StaffID).
		Str("room_id", a.RoomID).
		Str("date", formatDate(a.Date)).
		Str("start", a.StartTime).
		Msg("Appointment created")
	return nil
}

// RescheduleAppointment moves a SCHEDULED appointment to a new date, time,
// staff member and room, re-checking overlap while holding the write lock.
func (db *DB) RescheduleAppointment(ctx context.Context, a *model.Appointment) error {
	iv, err := a.Interval()
	if err != nil {
		return err
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if err := ensureFree(ctx, tx, a, a.ID); err != nil {
		return err
	}

	now := time.Now()
	res, err := tx.ExecContext(ctx, `
		UPDATE appointments
		SET date = ?, start_time = ?, end_time = ?, staff_id = ?, room_id = ?, updated_at = ?
		WHERE id = ? AND status = ?`,
		formatDate(a.Date), iv.Start.String(), iv.End.String(), a.StaffID, a.RoomID, now,
		a.ID, model.StatusScheduled,
	)
	if err != nil {
		return fmt.Errorf("update appointment: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrStatusChanged
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	a.StartTime, a.EndTime, a.UpdatedAt = iv.Start.String(), iv.End.String(), now
	return nil
}

func ensureFree(ctx context.Context, tx *sql.Tx, a *model.Appointment, excludeID string) error {
	iv, err := a.Interval()
	if err != nil {
		return err
	}
	bookings, err := bookedIntervals(ctx, tx, availability.BookingQuery{
		Date:                 a.Date,
		StaffID:              a.StaffID,
		RoomID:               a.RoomID,
		ExcludeAppointmentID: excludeID,
	})
	if err != nil {
		return err
	}
	for _, b := range bookings {
		if b.Interval.Overlaps(iv) {
			return fmt.Errorf("%w: overlaps appointment %s (%s, %s)", ErrSlotTaken, b.AppointmentID, b.Interval, b.By)
		}
	}
	return nil
}

// GetAppointment returns appointment by ID.
func (db *DB) GetAppointment(ctx context.Context, id string) (*model.Appointment, error) {
	row := db.QueryRowContext(ctx, `SELECT `+appointmentColumns+` FROM appointments WHERE id = ?`, id)
	a, err := scanAppointment(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get appointment: %w", err)
	}
	return a, nil
}

// ListAppointmentsOnDate returns all appointments of a day ordered by staff and start.
func (db *DB) ListAppointmentsOnDate(ctx context.Context, date time.Time) ([]model.Appointment, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE date = ?
		ORDER BY staff_id, start_time, id`,
		formatDate(date),
	)
	if err != nil {
		return nil, fmt.Errorf("list appointments: %w", err)
	}
	defer rows.Close()

	var out []model.Appointment
	for rows.Next() {
		a, err := scanAppointment(rows)
		if err != nil {
			return nil, fmt.Errorf("scan appointment: %w", err)
		}
		out = append(out, *a)
	}
	return out, rows.Err()
}

// TransitionAppointment moves an appointment from one status to another.
// When sessionsUsed is positive and the appointment belongs to a package
// item, the item's completed-session counter is increased in the same
// transaction.
func (db *DB) TransitionAppointment(
	ctx context.Context,
	id string,
	from, to model.AppointmentStatus,
	sessionsUsed int,
) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var packageItem sql.NullString
	err = tx.QueryRowContext(ctx, `SELECT package_item_id FROM appointments WHERE id = ?`, id).Scan(&packageItem)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("get appointment: %w", err)
	}

	now := time.Now()
	res, err := tx.ExecContext(ctx, `
		UPDATE appointments SET status = ?, updated_at = ?
		WHERE id = ? AND status = ?`,
		string(to), now, id, string(from),
	)
	if err != nil {
		return fmt.Errorf("update status: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrStatusChanged
	}

	if sessionsUsed > 0 && packageItem.Valid {
		if err := addCompletedSessions(ctx, tx, packageItem.String, sessionsUsed, now); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}

	db.logger.Debug().
		Str("appointment_id", id).
		Str("from", string(from)).
		Str("to", string(to)).
		Msg("Appointment status changed")
	return nil
}
