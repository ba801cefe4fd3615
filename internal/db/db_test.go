package db

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"praxis/internal/availability"
	"praxis/internal/config"
	"praxis/internal/model"
	"praxis/internal/timeofday"
)

const testClinic = `
staff:
  - id: anna
    name: Anna Becker
    is_active: true
    shifts:
      - {weekday: 1, start_time: "09:00", end_time: "17:00", break_start: "12:00", break_end: "13:00"}
      - {weekday: 3, start_time: "08:00", end_time: "12:00"}
      - {weekday: 3, start_time: "14:00", end_time: "18:00"}
    leave:
      - {from: "2026-07-01", to: "2026-07-14", reason: Urlaub}
  - id: ben
    name: Ben Keller
    is_active: true
    shifts:
      - {weekday: 1, start_time: "08:00", end_time: "16:00"}
  - id: clara
    name: Clara Vogt
    is_active: false
    shifts:
      - {weekday: 1, start_time: "08:00", end_time: "16:00"}
rooms:
  - {id: r1, name: Raum 1, is_active: true}
  - {id: r2, name: Raum 2, is_active: true}
services:
  - {id: kg, name: Krankengymnastik, duration_minutes: 30}
  - {id: tm10, name: "10 Teilmassage + 1 Teilmassage gratis", duration_minutes: 20}
holidays:
  - {date: "2026-12-25", name: "1. Weihnachtstag"}
`

// 2026-06-01 is a Monday.
var monday = time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)

func newTestDB(t *testing.T) *DB {
	t.Helper()
	logger := zerolog.New(os.Stderr).Level(zerolog.Disabled)
	db, err := NewDB(filepath.Join(t.TempDir(), "test.db"), &logger)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	cfg, err := config.ParseClinicConfig([]byte(testClinic))
	require.NoError(t, err)
	require.NoError(t, db.SyncClinicFromConfig(context.Background(), cfg))
	return db
}

func appt(staff, room, start, end string) *model.Appointment {
	return &model.Appointment{
		PatientID: "p1",
		ServiceID: "kg",
		StaffID:   staff,
		RoomID:    room,
		Date:      monday,
		StartTime: start,
		EndTime:   end,
	}
}

func TestSource_WorkingAndBreakIntervals(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	working, err := db.WorkingIntervals(ctx, "anna", time.Monday)
	require.NoError(t, err)
	assert.Equal(t, []timeofday.Interval{timeofday.MustInterval("09:00", "17:00")}, working)

	breaks, err := db.BreakIntervals(ctx, "anna", time.Monday)
	require.NoError(t, err)
	assert.Equal(t, []timeofday.Interval{timeofday.MustInterval("12:00", "13:00")}, breaks)

	working, err = db.WorkingIntervals(ctx, "anna", time.Wednesday)
	require.NoError(t, err)
	assert.Equal(t, []timeofday.Interval{
		timeofday.MustInterval("08:00", "12:00"),
		timeofday.MustInterval("14:00", "18:00"),
	}, working, "shifts in insertion order")

	breaks, err = db.BreakIntervals(ctx, "anna", time.Wednesday)
	require.NoError(t, err)
	assert.Empty(t, breaks)

	working, err = db.WorkingIntervals(ctx, "anna", time.Sunday)
	require.NoError(t, err)
	assert.Empty(t, working)

	working, err = db.WorkingIntervals(ctx, "clara", time.Monday)
	require.NoError(t, err)
	assert.Empty(t, working, "inactive staff have no working time")
}

func TestSource_IsOnLeave(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	tests := []struct {
		date time.Time
		want bool
	}{
		{time.Date(2026, 6, 30, 0, 0, 0, 0, time.UTC), false},
		{time.Date(2026, 7, 1, 0, 0, 0, 0, time.UTC), true},
		{time.Date(2026, 7, 8, 15, 0, 0, 0, time.UTC), true},
		{time.Date(2026, 7, 14, 0, 0, 0, 0, time.UTC), true},
		{time.Date(2026, 7, 15, 0, 0, 0, 0, time.UTC), false},
		{time.Date(2026, 12, 25, 0, 0, 0, 0, time.UTC), true},
	}
	for _, tt := range tests {
		t.Run(tt.date.Format(dateLayout), func(t *testing.T) {
			got, err := db.IsOnLeave(ctx, "anna", tt.date)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	onLeave, err := db.IsOnLeave(ctx, "ben", time.Date(2026, 12, 25, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.True(t, onLeave, "holidays apply to every staff member")
}

func TestCreateAppointment_AndBookedIntervals(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	a := appt("anna", "r1", "10:00", "10:30")
	require.NoError(t, db.CreateAppointment(ctx, a))
	assert.NotEmpty(t, a.ID)
	assert.Equal(t, model.StatusScheduled, a.Status)

	b := appt("ben", "r2", "9:00", "9:30")
	require.NoError(t, db.CreateAppointment(ctx, b))
	assert.Equal(t, "09:00", b.StartTime, "times are normalized")

	bookings, err := db.BookedIntervals(ctx, availability.BookingQuery{Date: monday, StaffID: "anna", RoomID: "r2"})
	require.NoError(t, err)
	require.Len(t, bookings, 2)
	assert.Equal(t, b.ID, bookings[0].AppointmentID)
	assert.Equal(t, availability.ByRoom, bookings[0].By)
	assert.Equal(t, a.ID, bookings[1].AppointmentID)
	assert.Equal(t, availability.ByStaff, bookings[1].By)

	bookings, err = db.BookedIntervals(ctx, availability.BookingQuery{
		Date: monday, StaffID: "anna", ExcludeAppointmentID: a.ID,
	})
	require.NoError(t, err)
	assert.Empty(t, bookings)

	bookings, err = db.BookedIntervals(ctx, availability.BookingQuery{Date: monday.AddDate(0, 0, 7), StaffID: "anna"})
	require.NoError(t, err)
	assert.Empty(t, bookings)

	got, err := db.GetAppointment(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, "anna", got.StaffID)
	assert.Equal(t, monday, got.Date)
	assert.Equal(t, "10:30", got.EndTime)

	_, err = db.GetAppointment(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestCreateAppointment_SlotTaken(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	require.NoError(t, db.CreateAppointment(ctx, appt("anna", "r1", "10:00", "11:00")))

	tests := []struct {
		name    string
		a       *model.Appointment
		wantErr error
	}{
		{"same staff other room", appt("anna", "r2", "10:30", "11:30"), ErrSlotTaken},
		{"same room other staff", appt("ben", "r1", "09:30", "10:01"), ErrSlotTaken},
		{"adjacent before", appt("anna", "r1", "09:00", "10:00"), nil},
		{"adjacent after", appt("anna", "r1", "11:00", "11:30"), nil},
		{"unrelated", appt("ben", "r2", "10:00", "11:00"), nil},
		{"invalid interval", appt("ben", "r2", "12:00", "12:00"), timeofday.ErrInvalidInterval},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := db.CreateAppointment(ctx, tt.a)
			if tt.wantErr == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestCancelledAppointmentFreesSlot(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	a := appt("anna", "r1", "10:00", "11:00")
	require.NoError(t, db.CreateAppointment(ctx, a))
	require.NoError(t, db.TransitionAppointment(ctx, a.ID, model.StatusScheduled, model.StatusCancelled, 0))

	require.NoError(t, db.CreateAppointment(ctx, appt("anna", "r1", "10:00", "11:00")))

	err := db.TransitionAppointment(ctx, a.ID, model.StatusScheduled, model.StatusCompleted, 0)
	assert.ErrorIs(t, err, ErrStatusChanged)

	err = db.TransitionAppointment(ctx, "missing", model.StatusScheduled, model.StatusCompleted, 0)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRescheduleAppointment(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	a := appt("anna", "r1", "10:00", "11:00")
	require.NoError(t, db.CreateAppointment(ctx, a))
	other := appt("ben", "r2", "14:00", "15:00")
	require.NoError(t, db.CreateAppointment(ctx, other))

	// Overlapping its own old slot is fine.
	a.StartTime, a.EndTime = "10:30", "11:30"
	require.NoError(t, db.RescheduleAppointment(ctx, a))

	a.RoomID = "r2"
	a.StartTime, a.EndTime = "14:30", "15:30"
	assert.ErrorIs(t, db.RescheduleAppointment(ctx, a), ErrSlotTaken)

	got, err := db.GetAppointment(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, "10:30", got.StartTime)
	assert.Equal(t, "r1", got.RoomID)
}

func TestPackageItems(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	svc, err := db.GetService(ctx, "tm10")
	require.NoError(t, err)
	assert.Equal(t, 11, svc.SessionCount)

	item := &model.PackageItem{PackageID: "pkg1", PatientID: "p1", ServiceID: "tm10", Units: 2}
	require.NoError(t, db.CreatePackageItem(ctx, item))
	assert.Equal(t, 22, item.SessionCount)

	a := appt("anna", "r1", "10:00", "10:20")
	a.ServiceID = "tm10"
	a.PackageItemID = item.ID
	require.NoError(t, db.CreateAppointment(ctx, a))
	require.NoError(t, db.TransitionAppointment(ctx, a.ID, model.StatusScheduled, model.StatusCompleted, 11))

	got, err := db.GetPackageItem(ctx, item.ID)
	require.NoError(t, err)
	assert.Equal(t, 11, got.CompletedSessions)
	assert.Equal(t, 11, got.RemainingSessions())

	err = db.CreatePackageItem(ctx, &model.PackageItem{ServiceID: "nope", Units: 1})
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = db.GetPackageItem(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSyncClinicFromConfig_Deactivates(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	cfg, err := config.ParseClinicConfig([]byte(`
staff:
  - id: ben
    name: Ben Keller
    is_active: true
    shifts:
      - {weekday: 2, start_time: "10:00", end_time: "12:00"}
services:
  - {id: kg, name: Krankengymnastik, duration_minutes: 45}
`))
	require.NoError(t, err)
	require.NoError(t, db.SyncClinicFromConfig(ctx, cfg))

	staff, err := db.ListActiveStaff(ctx)
	require.NoError(t, err)
	require.Len(t, staff, 1)
	assert.Equal(t, "ben", staff[0].ID)

	working, err := db.WorkingIntervals(ctx, "ben", time.Monday)
	require.NoError(t, err)
	assert.Empty(t, working, "old shifts replaced")

	onLeave, err := db.IsOnLeave(ctx, "anna", time.Date(2026, 7, 2, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.True(t, onLeave, "leave rows survive deactivation")

	svc, err := db.GetService(ctx, "kg")
	require.NoError(t, err)
	assert.Equal(t, 45, svc.DurationMinutes)

	svc, err = db.GetService(ctx, "tm10")
	require.NoError(t, err)
	assert.False(t, svc.IsActive)

	room, err := db.GetRoom(ctx, "r1")
	require.NoError(t, err)
	assert.False(t, room.IsActive)

	assert.Error(t, db.SyncClinicFromConfig(ctx, nil))
}

func TestListAppointmentsOnDate(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	require.NoError(t, db.CreateAppointment(ctx, appt("ben", "r2", "09:00", "09:30")))
	require.NoError(t, db.CreateAppointment(ctx, appt("anna", "r1", "11:00", "11:30")))
	require.NoError(t, db.CreateAppointment(ctx, appt("anna", "r1", "09:00", "09:30")))

	list, err := db.ListAppointmentsOnDate(ctx, monday)
	require.NoError(t, err)
	require.Len(t, list, 3)
	assert.Equal(t, "anna", list[0].StaffID)
	assert.Equal(t, "09:00", list[0].StartTime)
	assert.Equal(t, "11:00", list[1].StartTime)
	assert.Equal(t, "ben", list[2].StaffID)
}

func TestBackupService(t *testing.T) {
	db := newTestDB(t)
	dir := filepath.Join(t.TempDir(), "backups")
	logger := zerolog.Nop()

	svc := NewBackupService(db, BackupConfig{Enabled: true, Path: dir, RetentionDays: 7}, &logger)
	svc.now = func() time.Time { return time.Date(2026, 6, 1, 3, 0, 0, 0, time.UTC) }

	path, err := svc.PerformBackup(context.Background())
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "backup_20260601_030000.db"), path)
	assert.FileExists(t, path)

	old := filepath.Join(dir, "backup_20260101_030000.db")
	require.NoError(t, os.WriteFile(old, []byte("x"), 0o600))
	oldTime := time.Date(2026, 1, 1, 3, 0, 0, 0, time.UTC)
	require.NoError(t, os.Chtimes(old, oldTime, oldTime))
	// Pin the fresh backup inside the retention window.
	require.NoError(t, os.Chtimes(path, svc.now(), svc.now()))

	assert.Equal(t, 1, svc.CleanupOldBackups())
	assert.NoFileExists(t, old)
	assert.FileExists(t, path)
}

func TestSource_PropagatesQueryErrors(t *testing.T) {
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer sqlDB.Close()

	db := New(sqlDB, nil)
	ctx := context.Background()
	boom := errors.New("disk I/O error")

	mock.ExpectQuery("SELECT COUNT").WillReturnError(boom)
	_, err = db.IsOnLeave(ctx, "anna", monday)
	assert.ErrorIs(t, err, boom)

	mock.ExpectQuery("FROM staff_schedules").WillReturnError(boom)
	_, err = db.WorkingIntervals(ctx, "anna", time.Monday)
	assert.ErrorIs(t, err, boom)

	mock.ExpectQuery("FROM appointments").WillReturnError(boom)
	_, err = db.BookedIntervals(ctx, availability.BookingQuery{Date: monday, StaffID: "anna"})
	assert.ErrorIs(t, err, boom)

	mock.ExpectBegin().WillReturnError(boom)
	err = db.CreateAppointment(ctx, appt("anna", "r1", "10:00", "10:30"))
	assert.ErrorIs(t, err, boom)

	mock.ExpectBegin()
	mock.ExpectQuery("FROM appointments").WillReturnError(boom)
	mock.ExpectRollback()
	err = db.CreateAppointment(ctx, appt("anna", "r1", "10:00", "10:30"))
	assert.ErrorIs(t, err, boom)

	assert.NoError(t, mock.ExpectationsWereMet())
}
