package booking

import "praxis/internal/model"

// Lifecycle holds the allowed appointment status transitions.
type Lifecycle struct {
	transitions map[model.AppointmentStatus][]model.AppointmentStatus
}

// NewLifecycle creates the appointment lifecycle. Only SCHEDULED appointments
// move; COMPLETED, CANCELLED and NO_SHOW are terminal.
func NewLifecycle() *Lifecycle {
	return &Lifecycle{
		transitions: map[model.AppointmentStatus][]model.AppointmentStatus{
			model.StatusScheduled: {model.StatusCompleted, model.StatusCancelled, model.StatusNoShow},
		},
	}
}

// CanTransition checks if transition is allowed.
func (l *Lifecycle) CanTransition(from, to model.AppointmentStatus) bool {
	for _, s := range l.transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// IsTerminal reports whether no transition leaves s.
func (l *Lifecycle) IsTerminal(s model.AppointmentStatus) bool {
	return len(l.transitions[s]) == 0
}
