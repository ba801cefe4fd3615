package db

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"praxis/internal/config"
)

// SyncClinicFromConfig applies clinic.yaml to the database. It upserts staff,
// rooms and services, replaces every staff member's weekly shifts and
// config-sourced leave, and marks entries missing from the file inactive.
// Holidays become one-day leave for every configured staff member.
func (db *DB) SyncClinicFromConfig(ctx context.Context, cfg *config.ClinicConfig) error {
	if cfg == nil {
		return fmt.Errorf("clinic config is nil")
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	now := time.Now()

	if _, err := tx.ExecContext(ctx, `UPDATE staff SET is_active = 0, updated_at = ?`, now); err != nil {
		return fmt.Errorf("reset staff: %w", err)
	}
	for i := range cfg.Staff {
		s := &cfg.Staff[i]
		// Preserve created_at if the row already exists.
		_, err := tx.ExecContext(ctx, `
			INSERT INTO staff (id, name, is_active, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?)
			ON CONFLICT(id) DO UPDATE SET
				name = excluded.name,
				is_active = excluded.is_active,
				updated_at = excluded.updated_at`,
			s.ID, s.Name, boolToInt(s.IsActive), now, now,
		)
		if err != nil {
			return fmt.Errorf("sync staff %s: %w", s.ID, err)
		}
		if err := syncShifts(ctx, tx, s, now); err != nil {
			return fmt.Errorf("sync staff %s shifts: %w", s.ID, err)
		}
		if err := syncLeave(ctx, tx, s, cfg.Holidays, now); err != nil {
			return fmt.Errorf("sync staff %s leave: %w", s.ID, err)
		}
	}

	if _, err := tx.ExecContext(ctx, `UPDATE rooms SET is_active = 0, updated_at = ?`, now); err != nil {
		return fmt.Errorf("reset rooms: %w", err)
	}
	for _, r := range cfg.Rooms {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO rooms (id, name, is_active, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?)
			ON CONFLICT(id) DO UPDATE SET
				name = excluded.name,
				is_active = excluded.is_active,
				updated_at = excluded.updated_at`,
			r.ID, r.Name, boolToInt(r.IsActive), now, now,
		)
		if err != nil {
			return fmt.Errorf("sync room %s: %w", r.ID, err)
		}
	}

	if _, err := tx.ExecContext(ctx, `UPDATE services SET is_active = 0, updated_at = ?`, now); err != nil {
		return fmt.Errorf("reset services: %w", err)
	}
	for i := range cfg.Services {
		s := &cfg.Services[i]
		_, err := tx.ExecContext(ctx, `
			INSERT INTO services (id, name, duration_minutes, session_count, is_active, created_at, updated_at)
			VALUES (?, ?, ?, ?, 1, ?, ?)
			ON CONFLICT(id) DO UPDATE SET
				name = excluded.name,
				duration_minutes = excluded.duration_minutes,
				session_count = excluded.session_count,
				is_active = 1,
				updated_at = excluded.updated_at`,
			s.ID, s.Name, s.DurationMinutes, s.SessionsPerUnit(), now, now,
		)
		if err != nil {
			return fmt.Errorf("sync service %s: %w", s.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}

	db.logger.Info().
		Int("staff", len(cfg.Staff)).
		Int("rooms", len(cfg.Rooms)).
		Int("services", len(cfg.Services)).
		Msg("Clinic configuration synced")
	return nil
}

func syncShifts(ctx context.Context, tx *sql.Tx, s *config.StaffConfig, now time.Time) error {
	if _, err := tx.ExecContext(ctx, `DELETE FROM staff_schedules WHERE staff_id = ?`, s.ID); err != nil {
		return err
	}
	for _, sh := range s.Shifts {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO staff_schedules (
				staff_id, day_of_week, start_time, end_time, break_start, break_end, is_active, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, 1, ?, ?)`,
			s.ID, sh.Weekday, sh.StartTime, sh.EndTime, nullString(sh.BreakStart), nullString(sh.BreakEnd), now, now,
		)
		if err != nil {
			return err
		}
	}
	return nil
}

func syncLeave(ctx context.Context, tx *sql.Tx, s *config.StaffConfig, holidays []config.HolidayConfig, now time.Time) error {
	if _, err := tx.ExecContext(ctx, `DELETE FROM staff_leaves WHERE staff_id = ? AND source = 'config'`, s.ID); err != nil {
		return err
	}

	insert := func(from, to, reason string) error {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO staff_leaves (staff_id, start_date, end_date, reason, source, created_at)
			VALUES (?, ?, ?, ?, 'config', ?)`,
			s.ID, from, to, nullString(reason), now,
		)
		return err
	}

	for _, l := range s.Leave {
		if err := insert(l.From, l.To, l.Reason); err != nil {
			return err
		}
	}
	for _, h := range holidays {
		if err := insert(h.Date, h.Date, h.Name); err != nil {
			return err
		}
	}
	return nil
}
