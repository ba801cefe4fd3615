// Package booking runs the appointment lifecycle on top of the conflict
// checker and the persistence layer.
package booking

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"praxis/internal/conflict"
	"praxis/internal/db"
	"praxis/internal/events"
	"praxis/internal/metrics"
	"praxis/internal/model"
	"praxis/internal/sessions"
	"praxis/internal/timeofday"
)

var (
	ErrConflict          = errors.New("appointment conflicts with existing schedule")
	ErrInvalidTransition = errors.New("invalid status transition")
	ErrTooSoon           = errors.New("appointment starts too soon")
	ErrTooFar            = errors.New("appointment is too far in the future")
	ErrInactiveService   = errors.New("service is not active")
)

// ConflictError carries the conflicts that blocked a booking. It matches
// ErrConflict with errors.Is.
type ConflictError struct {
	Conflicts []conflict.Conflict
}

func (e *ConflictError) Error() string {
	msgs := make([]string, 0, len(e.Conflicts))
	for _, c := range e.Conflicts {
		msgs = append(msgs, c.Message)
	}
	return fmt.Sprintf("%s: %s", ErrConflict, strings.Join(msgs, "; "))
}

func (e *ConflictError) Unwrap() error { return ErrConflict }

// Repository provides appointment persistence. CreateAppointment and
// RescheduleAppointment must re-check overlap at commit time.
type Repository interface {
	GetService(ctx context.Context, id string) (*model.Service, error)
	GetAppointment(ctx context.Context, id string) (*model.Appointment, error)
	CreateAppointment(ctx context.Context, a *model.Appointment) error
	RescheduleAppointment(ctx context.Context, a *model.Appointment) error
	TransitionAppointment(ctx context.Context, id string, from, to model.AppointmentStatus, sessionsUsed int) error
}

// Publisher receives lifecycle events.
type Publisher interface {
	Publish(event events.Event) error
}

type Config struct {
	MinAdvance time.Duration
	MaxAdvance time.Duration // 0 means unlimited
	Location   *time.Location
	Now        func() time.Time
}

// BookRequest describes a new appointment. DurationMinutes of 0 uses the
// service's nominal duration.
type BookRequest struct {
	PatientID       string
	PackageItemID   string
	ServiceID       string
	StaffID         string
	RoomID          string
	Date            time.Time
	Start           timeofday.Time
	DurationMinutes int
	Notes           string
}

// RescheduleRequest moves an appointment. Empty StaffID/RoomID keep the
// current assignment; the duration is kept.
type RescheduleRequest struct {
	Date    time.Time
	Start   timeofday.Time
	StaffID string
	RoomID  string
}

// Service provides appointment lifecycle operations.
type Service struct {
	repo      Repository
	checker   *conflict.Checker
	bus       Publisher
	lifecycle *Lifecycle
	cfg       Config
	logger    *zerolog.Logger
}

// NewService creates a new booking service. bus may be nil.
func NewService(repo Repository, checker *conflict.Checker, bus Publisher, cfg Config, logger *zerolog.Logger) *Service {
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Service{
		repo:      repo,
		checker:   checker,
		bus:       bus,
		lifecycle: NewLifecycle(),
		cfg:       cfg,
		logger:    logger,
	}
}

// Book checks the proposal and stores a SCHEDULED appointment.
func (s *Service) Book(ctx context.Context, req BookRequest) (*model.Appointment, error) {
	svc, err := s.repo.GetService(ctx, req.ServiceID)
	if err != nil {
		return nil, fmt.Errorf("get service: %w", err)
	}
	if !svc.IsActive {
		return nil, fmt.Errorf("%w: %s", ErrInactiveService, svc.ID)
	}

	duration := req.DurationMinutes
	if duration == 0 {
		duration = svc.DurationMinutes
	}
	iv, err := timeofday.IntervalFrom(req.Start, duration)
	if err != nil {
		return nil, err
	}

	a := &model.Appointment{
		PatientID:     req.PatientID,
		PackageItemID: req.PackageItemID,
		ServiceID:     svc.ID,
		StaffID:       req.StaffID,
		RoomID:        req.RoomID,
		Date:          model.DateOnly(req.Date),
		StartTime:     iv.Start.String(),
		EndTime:       iv.End.String(),
		Status:        model.StatusScheduled,
		Notes:         req.Notes,
	}

	if err := s.checkWindow(a); err != nil {
		return nil, err
	}
	if err := s.checkConflicts(ctx, conflict.Query{
		Date:     a.Date,
		Interval: iv,
		StaffID:  a.StaffID,
		RoomID:   a.RoomID,
	}); err != nil {
		return nil, err
	}

	if err := s.repo.CreateAppointment(ctx, a); err != nil {
		return nil, s.storeError("create appointment", err)
	}

	metrics.IncAppointmentTransition(string(model.StatusScheduled))
	s.publish(events.AppointmentBooked, a)
	s.logger.Info().
		Str("appointment_id", a.ID).
		Str("staff_id", a.StaffID).
		Str("room_id", a.RoomID).
		Str("date", a.Date.Format("2006-01-02")).
		Str("interval", iv.String()).
		Msg("Appointment booked")
	return a, nil
}

// Reschedule moves a SCHEDULED appointment, ignoring its own current slot
// during the conflict check.
func (s *Service) Reschedule(ctx context.Context, id string, req RescheduleRequest) (*model.Appointment, error) {
	a, err := s.repo.GetAppointment(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get appointment: %w", err)
	}
	if a.Status != model.StatusScheduled {
		return nil, fmt.Errorf("%w: cannot reschedule %s appointment", ErrInvalidTransition, a.Status)
	}

	iv, err := timeofday.IntervalFrom(req.Start, a.Duration())
	if err != nil {
		return nil, err
	}

	moved := *a
	moved.Date = model.DateOnly(req.Date)
	moved.StartTime = iv.Start.String()
	moved.EndTime = iv.End.String()
	if req.StaffID != "" {
		moved.StaffID = req.StaffID
	}
	if req.RoomID != "" {
		moved.RoomID = req.RoomID
	}

	if err := s.checkWindow(&moved); err != nil {
		return nil, err
	}
	if err := s.checkConflicts(ctx, conflict.Query{
		Date:                 moved.Date,
		Interval:             iv,
		StaffID:              moved.StaffID,
		RoomID:               moved.RoomID,
		ExcludeAppointmentID: a.ID,
	}); err != nil {
		return nil, err
	}

	if err := s.repo.RescheduleAppointment(ctx, &moved); err != nil {
		return nil, s.storeError("reschedule appointment", err)
	}

	s.publish(events.AppointmentRescheduled, &moved)
	s.logger.Info().
		Str("appointment_id", a.ID).
		Str("from", a.Date.Format("2006-01-02")+" "+a.StartTime).
		Str("to", moved.Date.Format("2006-01-02")+" "+moved.StartTime).
		Msg("Appointment rescheduled")
	return &moved, nil
}

func (s *Service) Cancel(ctx context.Context, id string) (*model.Appointment, error) {
	return s.transition(ctx, id, model.StatusCancelled, events.AppointmentCancelled)
}

// Complete marks the appointment done and, for package appointments,
// books the service's sessions-per-unit against the package item.
func (s *Service) Complete(ctx context.Context, id string) (*model.Appointment, error) {
	return s.transition(ctx, id, model.StatusCompleted, events.AppointmentCompleted)
}

func (s *Service) MarkNoShow(ctx context.Context, id string) (*model.Appointment, error) {
	return s.transition(ctx, id, model.StatusNoShow, events.AppointmentNoShow)
}

// SetStatus dispatches to Cancel, Complete or MarkNoShow.
func (s *Service) SetStatus(ctx context.Context, id string, to model.AppointmentStatus) (*model.Appointment, error) {
	switch to {
	case model.StatusCancelled:
		return s.Cancel(ctx, id)
	case model.StatusCompleted:
		return s.Complete(ctx, id)
	case model.StatusNoShow:
		return s.MarkNoShow(ctx, id)
	}
	return nil, fmt.Errorf("%w: unsupported target status %q", ErrInvalidTransition, to)
}

func (s *Service) transition(ctx context.Context, id string, to model.AppointmentStatus, eventType string) (*model.Appointment, error) {
	a, err := s.repo.GetAppointment(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get appointment: %w", err)
	}
	if !s.lifecycle.CanTransition(a.Status, to) {
		return nil, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, a.Status, to)
	}

	used := 0
	if to == model.StatusCompleted && a.PackageItemID != "" {
		svc, err := s.repo.GetService(ctx, a.ServiceID)
		if err != nil {
			return nil, fmt.Errorf("get service: %w", err)
		}
		if used, err = sessions.UsedForPackageItem(1, svc.SessionCount); err != nil {
			return nil, err
		}
	}

	if err := s.repo.TransitionAppointment(ctx, a.ID, a.Status, to, used); err != nil {
		return nil, fmt.Errorf("update status: %w", err)
	}

	from := a.Status
	a.Status = to
	metrics.IncAppointmentTransition(string(to))
	s.publish(eventType, a)
	s.logger.Info().
		Str("appointment_id", a.ID).
		Str("from", string(from)).
		Str("to", string(to)).
		Int("sessions_used", used).
		Msg("Appointment status changed")
	return a, nil
}

func (s *Service) checkWindow(a *model.Appointment) error {
	startsAt, err := a.StartsAt(s.cfg.Location)
	if err != nil {
		return err
	}
	now := s.cfg.Now()
	if startsAt.Before(now.Add(s.cfg.MinAdvance)) {
		metrics.IncBookingRejected("too_soon")
		return fmt.Errorf("%w: %s", ErrTooSoon, startsAt.Format("2006-01-02 15:04"))
	}
	if s.cfg.MaxAdvance > 0 && startsAt.After(now.Add(s.cfg.MaxAdvance)) {
		metrics.IncBookingRejected("too_far")
		return fmt.Errorf("%w: %s", ErrTooFar, startsAt.Format("2006-01-02 15:04"))
	}
	return nil
}

func (s *Service) checkConflicts(ctx context.Context, q conflict.Query) error {
	conflicts, err := s.checker.CheckTimeConflict(ctx, q)
	if err != nil {
		return fmt.Errorf("check conflicts: %w", err)
	}
	kinds := make([]string, 0, len(conflicts))
	for _, c := range conflicts {
		kinds = append(kinds, string(c.Kind))
	}
	metrics.ObserveConflictCheck(kinds)

	if len(conflicts) > 0 {
		metrics.IncBookingRejected("conflict")
		return &ConflictError{Conflicts: conflicts}
	}
	return nil
}

// storeError maps a commit-time overlap from the store onto ErrConflict.
func (s *Service) storeError(op string, err error) error {
	if errors.Is(err, db.ErrSlotTaken) {
		metrics.IncBookingRejected("slot_taken")
		return fmt.Errorf("%w: %w", ErrConflict, err)
	}
	return fmt.Errorf("%s: %w", op, err)
}

func (s *Service) publish(eventType string, a *model.Appointment) {
	if s.bus == nil {
		return
	}
	ev, err := events.NewAppointmentEvent(eventType, a)
	if err != nil {
		s.logger.Error().Err(err).Str("event", eventType).Msg("Failed to build event")
		return
	}
	if err := s.bus.Publish(ev); err != nil {
		s.logger.Warn().Err(err).Str("event", eventType).Str("appointment_id", a.ID).Msg("Event handler failed")
	}
}
