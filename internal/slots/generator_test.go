package slots

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"praxis/internal/availability"
	"praxis/internal/conflict"
	"praxis/internal/model"
	"praxis/internal/timeofday"
)

// 2026-03-11 is a Wednesday.
var wednesday = time.Date(2026, 3, 11, 0, 0, 0, 0, time.UTC)

func scenarioSource() *availability.Memory {
	src := availability.NewMemory()
	src.AddSchedule(model.StaffSchedule{
		StaffID: "anna", DayOfWeek: int(time.Wednesday),
		StartTime: "09:00", EndTime: "17:00", BreakStart: "12:00", BreakEnd: "13:00",
	})
	src.AddAppointment(model.Appointment{
		ID: "a1", StaffID: "anna", RoomID: "room-1", Date: wednesday,
		StartTime: "10:00", EndTime: "10:30", Status: model.StatusScheduled,
	})
	return src
}

func newGenerator(src availability.Source) *Generator {
	return NewGenerator(conflict.NewChecker(src), Config{})
}

func TestAvailableTimeSlots_Scenario(t *testing.T) {
	g := newGenerator(scenarioSource())

	got, err := g.AvailableTimeSlots(context.Background(), wednesday, "anna", 30, 30)
	require.NoError(t, err)

	assert.Equal(t, []string{
		"09:00", "09:30",
		"10:30", "11:00", "11:30",
		"13:00", "13:30", "14:00", "14:30", "15:00", "15:30", "16:00", "16:30",
	}, got)
	assert.NotContains(t, got, "10:00")
	assert.NotContains(t, got, "12:00")
	assert.NotContains(t, got, "12:30")
	assert.NotContains(t, got, "16:45")
	assert.NotContains(t, got, "17:00")
}

func TestAvailableTimeSlots_DefaultInterval(t *testing.T) {
	g := newGenerator(scenarioSource())

	explicit, err := g.AvailableTimeSlots(context.Background(), wednesday, "anna", 30, 30)
	require.NoError(t, err)
	implicit, err := g.AvailableTimeSlots(context.Background(), wednesday, "anna", 30, 0)
	require.NoError(t, err)
	assert.Equal(t, explicit, implicit)
}

func TestAvailableTimeSlots_LongServiceFineGrid(t *testing.T) {
	g := newGenerator(scenarioSource())

	got, err := g.AvailableTimeSlots(context.Background(), wednesday, "anna", 60, 15)
	require.NoError(t, err)

	assert.Equal(t, []string{
		"09:00",
		"10:30", "10:45", "11:00",
		"13:00", "13:15", "13:30", "13:45", "14:00", "14:15", "14:30", "14:45",
		"15:00", "15:15", "15:30", "15:45", "16:00",
	}, got)
}

func TestAvailableTimeSlots_NeverOverlapsBookingsOrLeavesWindow(t *testing.T) {
	src := scenarioSource()
	src.AddAppointment(model.Appointment{
		ID: "a2", StaffID: "anna", RoomID: "room-2", Date: wednesday,
		StartTime: "14:10", EndTime: "14:55", Status: model.StatusCompleted,
	})
	g := newGenerator(src)
	work := timeofday.MustInterval("09:00", "17:00")
	booked := []timeofday.Interval{
		timeofday.MustInterval("10:00", "10:30"),
		timeofday.MustInterval("14:10", "14:55"),
	}

	for _, duration := range []int{15, 20, 30, 45, 50, 90} {
		for _, step := range []int{5, 10, 15, 30} {
			for start, err := range g.Slots(context.Background(), wednesday, "anna", duration, step) {
				require.NoError(t, err)
				iv, err := timeofday.IntervalFrom(start, duration)
				require.NoError(t, err)
				assert.True(t, work.Contains(iv), "%s escapes working hours", iv)
				for _, b := range booked {
					assert.False(t, iv.Overlaps(b), "%s overlaps booking %s", iv, b)
				}
			}
		}
	}
}

func TestAvailableTimeSlots_OnLeave(t *testing.T) {
	src := scenarioSource()
	src.AddLeave(model.StaffLeave{StaffID: "anna", StartDate: wednesday, EndDate: wednesday})
	g := newGenerator(src)

	got, err := g.AvailableTimeSlots(context.Background(), wednesday, "anna", 30, 30)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestAvailableTimeSlots_NoSchedule(t *testing.T) {
	g := newGenerator(scenarioSource())

	got, err := g.AvailableTimeSlots(context.Background(), wednesday.AddDate(0, 0, 1), "anna", 30, 30)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestAvailableTimeSlots_MultipleWindowsInDefinitionOrder(t *testing.T) {
	src := availability.NewMemory()
	src.AddSchedule(model.StaffSchedule{StaffID: "ben", DayOfWeek: int(time.Wednesday), StartTime: "15:00", EndTime: "16:00"})
	src.AddSchedule(model.StaffSchedule{StaffID: "ben", DayOfWeek: int(time.Wednesday), StartTime: "08:00", EndTime: "09:00"})
	src.AddSchedule(model.StaffSchedule{StaffID: "ben", DayOfWeek: int(time.Wednesday), StartTime: "08:00", EndTime: "09:00"})
	g := newGenerator(src)

	got, err := g.AvailableTimeSlots(context.Background(), wednesday, "ben", 30, 30)
	require.NoError(t, err)
	assert.Equal(t, []string{"15:00", "15:30", "08:00", "08:30"}, got)
}

func TestAvailableTimeSlots_ContiguousWindowsNotSpanned(t *testing.T) {
	src := availability.NewMemory()
	src.AddSchedule(model.StaffSchedule{StaffID: "ben", DayOfWeek: int(time.Wednesday), StartTime: "09:00", EndTime: "10:00"})
	src.AddSchedule(model.StaffSchedule{StaffID: "ben", DayOfWeek: int(time.Wednesday), StartTime: "10:00", EndTime: "11:00"})
	g := newGenerator(src)

	got, err := g.AvailableTimeSlots(context.Background(), wednesday, "ben", 60, 30)
	require.NoError(t, err)
	assert.Equal(t, []string{"09:00", "10:00"}, got)
}

func TestAvailableTimeSlots_Deterministic(t *testing.T) {
	g := newGenerator(scenarioSource())

	first, err := g.AvailableTimeSlots(context.Background(), wednesday, "anna", 45, 15)
	require.NoError(t, err)
	for i := 0; i < 5; i++ {
		again, err := g.AvailableTimeSlots(context.Background(), wednesday, "anna", 45, 15)
		require.NoError(t, err)
		assert.Equal(t, first, again)
	}
}

func TestSlots_StopsEarly(t *testing.T) {
	g := newGenerator(scenarioSource())

	var got []string
	for start, err := range g.Slots(context.Background(), wednesday, "anna", 30, 30) {
		require.NoError(t, err)
		got = append(got, start.String())
		if len(got) == 3 {
			break
		}
	}
	assert.Equal(t, []string{"09:00", "09:30", "10:30"}, got)
}

func TestSlots_InvalidDuration(t *testing.T) {
	g := newGenerator(scenarioSource())

	_, err := g.AvailableTimeSlots(context.Background(), wednesday, "anna", 0, 30)
	assert.ErrorIs(t, err, timeofday.ErrInvalidDuration)

	_, err = g.Grid(context.Background(), wednesday, "anna", -5, 30)
	assert.ErrorIs(t, err, timeofday.ErrInvalidDuration)
}

type brokenSource struct {
	availability.Source
}

var errUnreachable = errors.New("unreachable")

func (brokenSource) WorkingIntervals(context.Context, string, time.Weekday) ([]timeofday.Interval, error) {
	return nil, errUnreachable
}

func TestSlots_SourceFailure(t *testing.T) {
	g := newGenerator(brokenSource{})

	got, err := g.AvailableTimeSlots(context.Background(), wednesday, "anna", 30, 30)
	assert.ErrorIs(t, err, errUnreachable)
	assert.Nil(t, got)
}

func TestSlots_HidesPastStartTimes(t *testing.T) {
	now := time.Date(2026, 3, 11, 13, 40, 20, 0, time.UTC)
	g := NewGenerator(conflict.NewChecker(scenarioSource()), Config{
		MinAdvance: 30 * time.Minute,
		Now:        func() time.Time { return now },
	})

	got, err := g.AvailableTimeSlots(context.Background(), wednesday, "anna", 30, 30)
	require.NoError(t, err)
	assert.Equal(t, []string{"14:30", "15:00", "15:30", "16:00", "16:30"}, got)

	tomorrow, err := g.AvailableTimeSlots(context.Background(), wednesday.AddDate(0, 0, 7), "anna", 30, 30)
	require.NoError(t, err)
	assert.Len(t, tomorrow, 14)

	yesterday, err := g.AvailableTimeSlots(context.Background(), wednesday.AddDate(0, 0, -7), "anna", 30, 30)
	require.NoError(t, err)
	assert.Empty(t, yesterday)
}

func TestGrid(t *testing.T) {
	g := newGenerator(scenarioSource())

	grid, err := g.Grid(context.Background(), wednesday, "anna", 30, 30)
	require.NoError(t, err)
	require.Len(t, grid, 16)

	byStart := make(map[string]Slot)
	for _, s := range grid {
		byStart[s.Start.String()] = s
	}
	assert.True(t, byStart["09:00"].Available)
	assert.False(t, byStart["10:00"].Available)
	assert.Equal(t, []conflict.Kind{conflict.KindStaffDoubleBook}, byStart["10:00"].Conflicts)
	assert.Equal(t, []conflict.Kind{conflict.KindOnBreak}, byStart["12:30"].Conflicts)

	groups := FindConsecutiveSlots(grid)
	require.Len(t, groups, 3)
	assert.Len(t, groups[0], 2)
	assert.Len(t, groups[1], 3)
	assert.Len(t, groups[2], 8)

	infos := ToSlotInfo(grid[:2])
	assert.Equal(t, SlotInfo{Start: "09:00", End: "09:30", Available: true}, infos[0])
}

func TestGrid_OnLeaveMarksEverything(t *testing.T) {
	src := scenarioSource()
	src.AddLeave(model.StaffLeave{StaffID: "anna", StartDate: wednesday, EndDate: wednesday})
	g := newGenerator(src)

	grid, err := g.Grid(context.Background(), wednesday, "anna", 60, 60)
	require.NoError(t, err)
	require.NotEmpty(t, grid)
	for _, s := range grid {
		assert.False(t, s.Available)
		assert.Contains(t, s.Conflicts, conflict.KindStaffLeave)
	}
}

func TestFormatDuration(t *testing.T) {
	tests := []struct {
		minutes  int
		expected string
	}{
		{30, "30 Min."},
		{60, "1 Std."},
		{90, "1 Std. 30 Min."},
		{120, "2 Std."},
	}

	for _, tt := range tests {
		t.Run(tt.expected, func(t *testing.T) {
			assert.Equal(t, tt.expected, FormatDuration(tt.minutes))
		})
	}
}
