package model

import "time"

// Service is a catalog entry. SessionCount is how many billable sessions one
// unit represents ("10 sessions + 1 free" is 11).
type Service struct {
	ID              string    `json:"id"`
	Name            string    `json:"name"`
	DurationMinutes int       `json:"duration_minutes"`
	SessionCount    int       `json:"session_count"`
	IsActive        bool      `json:"is_active"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// PackageItem is a Service sold inside a package.
type PackageItem struct {
	ID                string    `json:"id"`
	PackageID         string    `json:"package_id"`
	PatientID         string    `json:"patient_id"`
	ServiceID         string    `json:"service_id"`
	Units             int       `json:"units"`
	SessionCount      int       `json:"session_count"`
	CompletedSessions int       `json:"completed_sessions"`
	CreatedAt         time.Time `json:"created_at"`
	UpdatedAt         time.Time `json:"updated_at"`
}

// RemainingSessions never goes below zero.
func (p *PackageItem) RemainingSessions() int {
	if p.CompletedSessions >= p.SessionCount {
		return 0
	}
	return p.SessionCount - p.CompletedSessions
}
