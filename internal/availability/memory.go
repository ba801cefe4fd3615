package availability

import (
	"context"
	"fmt"
	"sync"
	"time"

	"praxis/internal/model"
	"praxis/internal/timeofday"
)

// Memory is an in-process Source over a snapshot of schedules, leave and
// appointments. Every row it holds is treated as active.
type Memory struct {
	mu           sync.RWMutex
	schedules    []model.StaffSchedule
	leaves       []model.StaffLeave
	appointments []model.Appointment
}

// NewMemory returns an empty source.
func NewMemory() *Memory {
	return &Memory{}
}

func (m *Memory) AddSchedule(s model.StaffSchedule) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.schedules = append(m.schedules, s)
}

func (m *Memory) AddLeave(l model.StaffLeave) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.leaves = append(m.leaves, l)
}

func (m *Memory) AddAppointment(a model.Appointment) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.appointments = append(m.appointments, a)
}

// WorkingIntervals returns windows in insertion order.
func (m *Memory) WorkingIntervals(_ context.Context, staffID string, weekday time.Weekday) ([]timeofday.Interval, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []timeofday.Interval
	for i := range m.schedules {
		s := &m.schedules[i]
		if s.StaffID != staffID || s.DayOfWeek != int(weekday) {
			continue
		}
		iv, err := s.WorkingInterval()
		if err != nil {
			return nil, fmt.Errorf("schedule %d: %w", s.ID, err)
		}
		out = append(out, iv)
	}
	return out, nil
}

func (m *Memory) BreakIntervals(_ context.Context, staffID string, weekday time.Weekday) ([]timeofday.Interval, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []timeofday.Interval
	for i := range m.schedules {
		s := &m.schedules[i]
		if s.StaffID != staffID || s.DayOfWeek != int(weekday) {
			continue
		}
		iv, ok, err := s.BreakInterval()
		if err != nil {
			return nil, fmt.Errorf("schedule %d break: %w", s.ID, err)
		}
		if ok {
			out = append(out, iv)
		}
	}
	return out, nil
}

func (m *Memory) IsOnLeave(_ context.Context, staffID string, date time.Time) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for i := range m.leaves {
		if m.leaves[i].StaffID == staffID && m.leaves[i].Covers(date) {
			return true, nil
		}
	}
	return false, nil
}

func (m *Memory) BookedIntervals(_ context.Context, q BookingQuery) ([]Booking, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []Booking
	for i := range m.appointments {
		a := &m.appointments[i]
		if !model.SameDay(a.Date, q.Date) {
			continue
		}
		by := Classify(a, q)
		if by == 0 {
			continue
		}
		b, err := ToBooking(a, by)
		if err != nil {
			return nil, fmt.Errorf("appointment %s: %w", a.ID, err)
		}
		out = append(out, b)
	}
	return out, nil
}
