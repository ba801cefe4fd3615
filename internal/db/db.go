package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3" // sqlite3 driver
	"github.com/rs/zerolog"
)

const dateLayout = "2006-01-02"

var (
	ErrNotFound = errors.New("not found")
	// ErrSlotTaken is returned when an overlapping booking was committed
	// between the advisory check and the insert.
	ErrSlotTaken = errors.New("slot already taken")
	// ErrStatusChanged means the appointment was not in the expected status.
	ErrStatusChanged = errors.New("appointment status changed concurrently")
)

// DB wraps sql.DB for the scheduling core.
type DB struct {
	*sql.DB
	logger *zerolog.Logger
}

// NewDB opens the database at path and runs migrations.
func NewDB(path string, logger *zerolog.Logger) (*DB, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	// WAL, busy timeout and immediate write transactions so that the
	// overlap re-check and the insert hold the write lock together.
	dsn := path + "?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000&_txlock=immediate&_foreign_keys=on"
	sqlDB, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	sqlDB.SetMaxOpenConns(10)
	sqlDB.SetMaxIdleConns(5)
	sqlDB.SetConnMaxLifetime(time.Hour)

	if err := sqlDB.Ping(); err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	instance := New(sqlDB, logger)
	if err := instance.createTables(context.Background()); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	logger.Info().Str("path", path).Msg("Database initialized")
	return instance, nil
}

// New wraps an already opened connection without running migrations.
func New(sqlDB *sql.DB, logger *zerolog.Logger) *DB {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	return &DB{DB: sqlDB, logger: logger}
}

func (db *DB) createTables(ctx context.Context) error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS staff (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			is_active BOOLEAN NOT NULL DEFAULT 1,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,

		`CREATE TABLE IF NOT EXISTS rooms (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			is_active BOOLEAN NOT NULL DEFAULT 1,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,

		// Several rows per staff and weekday are separate shifts.
		`CREATE TABLE IF NOT EXISTS staff_schedules (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			staff_id TEXT NOT NULL,
			day_of_week INTEGER NOT NULL,
			start_time TEXT NOT NULL,
			end_time TEXT NOT NULL,
			break_start TEXT,
			break_end TEXT,
			is_active BOOLEAN NOT NULL DEFAULT 1,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			updated_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			FOREIGN KEY (staff_id) REFERENCES staff(id)
		)`,

		`CREATE TABLE IF NOT EXISTS staff_leaves (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			staff_id TEXT NOT NULL,
			start_date TEXT NOT NULL,
			end_date TEXT NOT NULL,
			reason TEXT,
			source TEXT NOT NULL DEFAULT 'manual',
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			FOREIGN KEY (staff_id) REFERENCES staff(id)
		)`,

		`CREATE TABLE IF NOT EXISTS services (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			duration_minutes INTEGER NOT NULL,
			session_count INTEGER NOT NULL DEFAULT 1,
			is_active BOOLEAN NOT NULL DEFAULT 1,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,

		`CREATE TABLE IF NOT EXISTS package_items (
			id TEXT PRIMARY KEY,
			package_id TEXT NOT NULL,
			patient_id TEXT NOT NULL,
			service_id TEXT NOT NULL,
			units INTEGER NOT NULL,
			session_count INTEGER NOT NULL,
			completed_sessions INTEGER NOT NULL DEFAULT 0,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			updated_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			FOREIGN KEY (service_id) REFERENCES services(id)
		)`,

		`CREATE TABLE IF NOT EXISTS appointments (
			id TEXT PRIMARY KEY,
			patient_id TEXT NOT NULL,
			package_item_id TEXT,
			service_id TEXT NOT NULL,
			staff_id TEXT NOT NULL,
			room_id TEXT NOT NULL,
			date TEXT NOT NULL,
			start_time TEXT NOT NULL,
			end_time TEXT NOT NULL,
			status TEXT NOT NULL DEFAULT 'SCHEDULED',
			notes TEXT,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,

		`CREATE INDEX IF NOT EXISTS idx_schedules_staff_day ON staff_schedules(staff_id, day_of_week)`,
		`CREATE INDEX IF NOT EXISTS idx_leaves_staff ON staff_leaves(staff_id, start_date, end_date)`,
		`CREATE INDEX IF NOT EXISTS idx_appointments_staff_date ON appointments(staff_id, date)`,
		`CREATE INDEX IF NOT EXISTS idx_appointments_room_date ON appointments(room_id, date)`,
		`CREATE INDEX IF NOT EXISTS idx_appointments_status ON appointments(status)`,
	}

	for _, q := range queries {
		if _, err := db.ExecContext(ctx, q); err != nil {
			return fmt.Errorf("exec migration %s: %w", trimSQL(q), err)
		}
	}
	return nil
}

func trimSQL(s string) string {
	s = strings.TrimSpace(s)
	if len(s) > 60 {
		return s[:60] + "..."
	}
	return s
}

func formatDate(t time.Time) string {
	return t.Format(dateLayout)
}

func parseDate(s string) (time.Time, error) {
	return time.Parse(dateLayout, s)
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
