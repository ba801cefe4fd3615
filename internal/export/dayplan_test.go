package export

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"praxis/internal/model"
)

type stubSource struct {
	staff []model.Staff
	appts []model.Appointment
	err   error
}

func (s stubSource) ListActiveStaff(context.Context) ([]model.Staff, error) {
	return s.staff, s.err
}

func (s stubSource) ListAppointmentsOnDate(context.Context, time.Time) ([]model.Appointment, error) {
	return s.appts, nil
}

var monday = time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)

func TestWriteDayPlan(t *testing.T) {
	src := stubSource{
		staff: []model.Staff{{ID: "anna", Name: "Anna Becker"}, {ID: "ben", Name: "Ben Keller"}},
		appts: []model.Appointment{
			{ID: "a1", StaffID: "anna", RoomID: "r1", PatientID: "p1", ServiceID: "kg",
				StartTime: "09:00", EndTime: "09:30", Status: model.StatusScheduled},
			{ID: "a2", StaffID: "anna", RoomID: "r2", PatientID: "p2", ServiceID: "mt",
				StartTime: "10:00", EndTime: "11:30", Status: model.StatusCompleted, Notes: "Rücken"},
			{ID: "a3", StaffID: "gone", RoomID: "r1", PatientID: "p3", ServiceID: "kg",
				StartTime: "14:00", EndTime: "14:30", Status: model.StatusCancelled},
		},
	}

	var buf bytes.Buffer
	require.NoError(t, WriteDayPlan(context.Background(), src, monday, &buf))

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close()

	assert.Equal(t, []string{"Anna Becker", "Ben Keller", "gone"}, f.GetSheetList())

	rows, err := f.GetRows("Anna Becker")
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, dayPlanColumns, rows[0])
	assert.Equal(t, []string{"09:00", "09:30", "30 Min.", "p1", "kg", "r1", "SCHEDULED"}, rows[1])
	assert.Equal(t, []string{"10:00", "11:30", "1 Std. 30 Min.", "p2", "mt", "r2", "COMPLETED", "Rücken"}, rows[2])

	rows, err = f.GetRows("Ben Keller")
	require.NoError(t, err)
	assert.Len(t, rows, 1, "header only")

	rows, err = f.GetRows("gone")
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "CANCELLED", rows[1][6])
}

func TestWriteDayPlan_Empty(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteDayPlan(context.Background(), stubSource{}, monday, &buf))

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close()
	assert.Equal(t, []string{"2026-06-01"}, f.GetSheetList())
}

func TestWriteDayPlan_SourceError(t *testing.T) {
	var buf bytes.Buffer
	err := WriteDayPlan(context.Background(), stubSource{err: assert.AnError}, monday, &buf)
	assert.ErrorIs(t, err, assert.AnError)
	assert.Zero(t, buf.Len())
}

func TestSheetName(t *testing.T) {
	tests := []struct{ in, want string }{
		{"Anna Becker", "Anna Becker"},
		{"Dr. Müller/Schulz", "Dr. Müller Schulz"},
		{"[Team]", "(Team)"},
		{"", "Sheet"},
		{"Maximilian-Alexander von Hohenzollern", "Maximilian-Alexander von Hohenz"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, SheetName(tt.in), tt.in)
	}
}
