package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"praxis/internal/model"
	"praxis/internal/sessions"
)

// GetService returns service by ID.
func (db *DB) GetService(ctx context.Context, id string) (*model.Service, error) {
	var s model.Service
	err := db.QueryRowContext(ctx, `
		SELECT id, name, duration_minutes, session_count, is_active, created_at, updated_at
		FROM services WHERE id = ?`, id,
	).Scan(&s.ID, &s.Name, &s.DurationMinutes, &s.SessionCount, &s.IsActive, &s.CreatedAt, &s.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get service: %w", err)
	}
	return &s, nil
}

// ListActiveStaff returns active staff ordered by name.
func (db *DB) ListActiveStaff(ctx context.Context) ([]model.Staff, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT id, name, is_active, created_at, updated_at
		FROM staff WHERE is_active = 1 ORDER BY name, id`)
	if err != nil {
		return nil, fmt.Errorf("list staff: %w", err)
	}
	defer rows.Close()

	var out []model.Staff
	for rows.Next() {
		var s model.Staff
		if err := rows.Scan(&s.ID, &s.Name, &s.IsActive, &s.CreatedAt, &s.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan staff: %w", err)
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// GetRoom returns room by ID.
func (db *DB) GetRoom(ctx context.Context, id string) (*model.Room, error) {
	var r model.Room
	err := db.QueryRowContext(ctx, `
		SELECT id, name, is_active, created_at, updated_at FROM rooms WHERE id = ?`, id,
	).Scan(&r.ID, &r.Name, &r.IsActive, &r.CreatedAt, &r.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get room: %w", err)
	}
	return &r, nil
}

// CreateSchedule adds one shift row.
func (db *DB) CreateSchedule(ctx context.Context, s *model.StaffSchedule) error {
	now := time.Now()
	res, err := db.ExecContext(ctx, `
		INSERT INTO staff_schedules (
			staff_id, day_of_week, start_time, end_time, break_start, break_end, is_active, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, 1, ?, ?)`,
		s.StaffID, s.DayOfWeek, s.StartTime, s.EndTime, nullString(s.BreakStart), nullString(s.BreakEnd), now, now,
	)
	if err != nil {
		return fmt.Errorf("create schedule: %w", err)
	}
	s.ID, _ = res.LastInsertId()
	s.IsActive = true
	s.CreatedAt, s.UpdatedAt = now, now
	return nil
}

// CreateLeave adds a manual leave range.
func (db *DB) CreateLeave(ctx context.Context, l *model.StaffLeave) error {
	now := time.Now()
	res, err := db.ExecContext(ctx, `
		INSERT INTO staff_leaves (staff_id, start_date, end_date, reason, source, created_at)
		VALUES (?, ?, ?, ?, 'manual', ?)`,
		l.StaffID, formatDate(l.StartDate), formatDate(l.EndDate), nullString(l.Reason), now,
	)
	if err != nil {
		return fmt.Errorf("create leave: %w", err)
	}
	l.ID, _ = res.LastInsertId()
	l.CreatedAt = now
	return nil
}

// CreatePackageItem stores a purchased service with
// session_count = units × service.session_count.
func (db *DB) CreatePackageItem(ctx context.Context, item *model.PackageItem) error {
	svc, err := db.GetService(ctx, item.ServiceID)
	if err != nil {
		return fmt.Errorf("service %s: %w", item.ServiceID, err)
	}
	total, err := sessions.TotalForPackageItem(item.Units, svc.SessionCount)
	if err != nil {
		return err
	}

	if item.ID == "" {
		item.ID = uuid.NewString()
	}
	now := time.Now()
	_, err = db.ExecContext(ctx, `
		INSERT INTO package_items (
			id, package_id, patient_id, service_id, units, session_count, completed_sessions, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, 0, ?, ?)`,
		item.ID, item.PackageID, item.PatientID, item.ServiceID, item.Units, total, now, now,
	)
	if err != nil {
		return fmt.Errorf("create package item: %w", err)
	}
	item.SessionCount = total
	item.CompletedSessions = 0
	item.CreatedAt, item.UpdatedAt = now, now
	return nil
}

// GetPackageItem returns package item by ID.
func (db *DB) GetPackageItem(ctx context.Context, id string) (*model.PackageItem, error) {
	var p model.PackageItem
	err := db.QueryRowContext(ctx, `
		SELECT id, package_id, patient_id, service_id, units, session_count, completed_sessions, created_at, updated_at
		FROM package_items WHERE id = ?`, id,
	).Scan(&p.ID, &p.PackageID, &p.PatientID, &p.ServiceID, &p.Units, &p.SessionCount,
		&p.CompletedSessions, &p.CreatedAt, &p.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get package item: %w", err)
	}
	return &p, nil
}

func addCompletedSessions(ctx context.Context, tx *sql.Tx, id string, n int, now time.Time) error {
	res, err := tx.ExecContext(ctx, `
		UPDATE package_items SET completed_sessions = completed_sessions + ?, updated_at = ?
		WHERE id = ?`, n, now, id)
	if err != nil {
		return fmt.Errorf("update package item: %w", err)
	}
	if rows, _ := res.RowsAffected(); rows == 0 {
		return fmt.Errorf("package item %s: %w", id, ErrNotFound)
	}
	return nil
}
