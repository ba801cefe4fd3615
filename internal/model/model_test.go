package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func date(year int, month time.Month, day int) time.Time {
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}

func TestAppointment_Interval(t *testing.T) {
	a := Appointment{StartTime: "10:00", EndTime: "12:30"}
	iv, err := a.Interval()
	require.NoError(t, err)
	assert.Equal(t, 150, iv.Duration())
	assert.Equal(t, 150, a.Duration())

	broken := Appointment{StartTime: "12:30", EndTime: "10:00"}
	_, err = broken.Interval()
	assert.Error(t, err)
	assert.Equal(t, 0, broken.Duration())
}

func TestAppointment_Blocking(t *testing.T) {
	for _, s := range []AppointmentStatus{StatusScheduled, StatusCompleted, StatusNoShow} {
		a := Appointment{Status: s}
		assert.True(t, a.Blocking(), s)
	}
	cancelled := Appointment{Status: StatusCancelled}
	assert.False(t, cancelled.Blocking())
}

func TestAppointment_OverlapsWith(t *testing.T) {
	existing := Appointment{Date: date(2026, 1, 15), StartTime: "10:00", EndTime: "14:00"}

	before := Appointment{Date: date(2026, 1, 15), StartTime: "08:00", EndTime: "10:00"}
	assert.False(t, existing.OverlapsWith(&before))

	after := Appointment{Date: date(2026, 1, 15), StartTime: "14:00", EndTime: "16:00"}
	assert.False(t, existing.OverlapsWith(&after))

	during := Appointment{Date: date(2026, 1, 15), StartTime: "12:00", EndTime: "16:00"}
	assert.True(t, existing.OverlapsWith(&during))

	contained := Appointment{Date: date(2026, 1, 15), StartTime: "11:00", EndTime: "13:00"}
	assert.True(t, existing.OverlapsWith(&contained))

	otherDay := Appointment{Date: date(2026, 1, 16), StartTime: "11:00", EndTime: "13:00"}
	assert.False(t, existing.OverlapsWith(&otherDay))
}

func TestAppointment_StartsAt(t *testing.T) {
	loc := time.FixedZone("CET", 3600)
	a := Appointment{Date: date(2026, 1, 15), StartTime: "09:45", EndTime: "10:15"}

	got, err := a.StartsAt(loc)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, 1, 15, 9, 45, 0, 0, loc), got)
}

func TestAppointmentStatus_Valid(t *testing.T) {
	assert.True(t, StatusNoShow.Valid())
	assert.False(t, AppointmentStatus("pending").Valid())
}

func TestStaffLeave_Covers(t *testing.T) {
	leave := StaffLeave{StartDate: date(2026, 1, 15), EndDate: date(2026, 1, 17)}

	assert.True(t, leave.Covers(date(2026, 1, 15)))
	assert.True(t, leave.Covers(time.Date(2026, 1, 16, 14, 0, 0, 0, time.UTC)))
	assert.True(t, leave.Covers(time.Date(2026, 1, 17, 23, 59, 0, 0, time.UTC)))
	assert.False(t, leave.Covers(date(2026, 1, 14)))
	assert.False(t, leave.Covers(date(2026, 1, 18)))
}

func TestStaffSchedule_Intervals(t *testing.T) {
	s := StaffSchedule{StartTime: "09:00", EndTime: "17:00", BreakStart: "12:00", BreakEnd: "13:00"}

	work, err := s.WorkingInterval()
	require.NoError(t, err)
	assert.Equal(t, "09:00-17:00", work.String())

	brk, ok, err := s.BreakInterval()
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "12:00-13:00", brk.String())

	noBreak := StaffSchedule{StartTime: "09:00", EndTime: "17:00"}
	_, ok, err = noBreak.BreakInterval()
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestPackageItem_RemainingSessions(t *testing.T) {
	p := PackageItem{SessionCount: 22, CompletedSessions: 5}
	assert.Equal(t, 17, p.RemainingSessions())

	p.CompletedSessions = 30
	assert.Equal(t, 0, p.RemainingSessions())
}
