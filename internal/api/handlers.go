package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"praxis/internal/booking"
	"praxis/internal/conflict"
	"praxis/internal/export"
	"praxis/internal/metrics"
	"praxis/internal/model"
	"praxis/internal/slots"
	"praxis/internal/timeofday"
)

const dateLayout = "2006-01-02"

// SlotsResponse is the response for GET /api/v1/slots.
type SlotsResponse struct {
	Date     string           `json:"date"`
	StaffID  string           `json:"staff_id"`
	Duration int              `json:"duration_minutes"`
	Interval int              `json:"interval_minutes,omitempty"`
	Slots    []string         `json:"slots"`
	Grid     []slots.SlotInfo `json:"grid,omitempty"`
}

// handleSlots returns free start times for a staff member.
// GET /api/v1/slots?date=2026-06-01&staff_id=anna&service_id=kg[&duration=45][&interval=15][&grid=true]
func (s *HTTPServer) handleSlots(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	date, err := parseDate(q.Get("date"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	staffID := q.Get("staff_id")
	if staffID == "" {
		writeError(w, http.StatusBadRequest, "staff_id is required")
		return
	}

	duration, err := s.resolveDuration(r, q.Get("service_id"), q.Get("duration"))
	if err != nil {
		s.writeServiceError(w, err)
		return
	}

	interval := 0
	if v := q.Get("interval"); v != "" {
		if interval, err = strconv.Atoi(v); err != nil || interval <= 0 {
			writeError(w, http.StatusBadRequest, "interval must be a positive integer")
			return
		}
	}

	resp := SlotsResponse{
		Date:     date.Format(dateLayout),
		StaffID:  staffID,
		Duration: duration,
		Interval: interval,
	}

	if q.Get("grid") == "true" {
		grid, err := s.slots.Grid(r.Context(), date, staffID, duration, interval)
		if err != nil {
			s.writeServiceError(w, err)
			return
		}
		resp.Grid = slots.ToSlotInfo(grid)
		resp.Slots = make([]string, 0, len(grid))
		for _, sl := range grid {
			if sl.Available {
				resp.Slots = append(resp.Slots, sl.Start.String())
			}
		}
	} else {
		resp.Slots, err = s.slots.AvailableTimeSlots(r.Context(), date, staffID, duration, interval)
		if err != nil {
			s.writeServiceError(w, err)
			return
		}
	}

	metrics.ObserveSlotQuery(len(resp.Slots))
	writeJSON(w, http.StatusOK, resp)
}

func (s *HTTPServer) resolveDuration(r *http.Request, serviceID, raw string) (int, error) {
	if raw != "" {
		d, err := strconv.Atoi(raw)
		if err != nil {
			return 0, fmt.Errorf("%w: duration %q", timeofday.ErrInvalidDuration, raw)
		}
		return d, nil
	}
	if serviceID == "" {
		return 0, fmt.Errorf("%w: service_id or duration is required", timeofday.ErrInvalidDuration)
	}
	svc, err := s.store.GetService(r.Context(), serviceID)
	if err != nil {
		return 0, fmt.Errorf("service %s: %w", serviceID, err)
	}
	return svc.DurationMinutes, nil
}

// ConflictRequest is the request body for POST /api/v1/conflicts.
type ConflictRequest struct {
	Date                 string `json:"date"`
	Start                string `json:"start"`
	End                  string `json:"end"`
	StaffID              string `json:"staff_id,omitempty"`
	RoomID               string `json:"room_id,omitempty"`
	ExcludeAppointmentID string `json:"exclude_appointment_id,omitempty"`
}

type ConflictResponse struct {
	Conflicts []conflict.Conflict `json:"conflicts"`
}

// handleConflicts checks a proposed interval. 200 when free, 409 with the list otherwise.
// POST /api/v1/conflicts
func (s *HTTPServer) handleConflicts(w http.ResponseWriter, r *http.Request) {
	var req ConflictRequest
	if !decodeBody(w, r, &req) {
		return
	}

	date, err := parseDate(req.Date)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	iv, err := timeofday.ParseInterval(req.Start, req.End)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}

	conflicts, err := s.checker.CheckTimeConflict(r.Context(), conflict.Query{
		Date:                 date,
		Interval:             iv,
		StaffID:              req.StaffID,
		RoomID:               req.RoomID,
		ExcludeAppointmentID: req.ExcludeAppointmentID,
	})
	if err != nil {
		s.writeServiceError(w, err)
		return
	}

	kinds := make([]string, 0, len(conflicts))
	for _, c := range conflicts {
		kinds = append(kinds, string(c.Kind))
	}
	metrics.ObserveConflictCheck(kinds)

	status := http.StatusOK
	if len(conflicts) > 0 {
		status = http.StatusConflict
	} else {
		conflicts = []conflict.Conflict{}
	}
	writeJSON(w, status, ConflictResponse{Conflicts: conflicts})
}

// BookRequest is the request body for POST /api/v1/appointments.
type BookRequest struct {
	PatientID       string `json:"patient_id"`
	PackageItemID   string `json:"package_item_id,omitempty"`
	ServiceID       string `json:"service_id"`
	StaffID         string `json:"staff_id"`
	RoomID          string `json:"room_id"`
	Date            string `json:"date"`
	Start           string `json:"start"`
	DurationMinutes int    `json:"duration_minutes,omitempty"`
	Notes           string `json:"notes,omitempty"`
}

// handleBook creates an appointment.
// POST /api/v1/appointments
func (s *HTTPServer) handleBook(w http.ResponseWriter, r *http.Request) {
	var req BookRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.PatientID == "" || req.ServiceID == "" || req.StaffID == "" || req.RoomID == "" {
		writeError(w, http.StatusBadRequest, "patient_id, service_id, staff_id and room_id are required")
		return
	}
	date, err := parseDate(req.Date)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	start, err := timeofday.Parse(req.Start)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}

	a, err := s.bookings.Book(r.Context(), booking.BookRequest{
		PatientID:       req.PatientID,
		PackageItemID:   req.PackageItemID,
		ServiceID:       req.ServiceID,
		StaffID:         req.StaffID,
		RoomID:          req.RoomID,
		Date:            date,
		Start:           start,
		DurationMinutes: req.DurationMinutes,
		Notes:           req.Notes,
	})
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, a)
}

// GET /api/v1/appointments/{id}
func (s *HTTPServer) handleGetAppointment(w http.ResponseWriter, r *http.Request) {
	a, err := s.store.GetAppointment(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, a)
}

type StatusRequest struct {
	Status model.AppointmentStatus `json:"status"`
}

// POST /api/v1/appointments/{id}/status
func (s *HTTPServer) handleSetStatus(w http.ResponseWriter, r *http.Request) {
	var req StatusRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if !req.Status.Valid() {
		writeError(w, http.StatusBadRequest, "status must be one of SCHEDULED, COMPLETED, CANCELLED, NO_SHOW")
		return
	}

	a, err := s.bookings.SetStatus(r.Context(), r.PathValue("id"), req.Status)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, a)
}

type RescheduleRequest struct {
	Date    string `json:"date"`
	Start   string `json:"start"`
	StaffID string `json:"staff_id,omitempty"`
	RoomID  string `json:"room_id,omitempty"`
}

// POST /api/v1/appointments/{id}/reschedule
func (s *HTTPServer) handleReschedule(w http.ResponseWriter, r *http.Request) {
	var req RescheduleRequest
	if !decodeBody(w, r, &req) {
		return
	}
	date, err := parseDate(req.Date)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	start, err := timeofday.Parse(req.Start)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}

	a, err := s.bookings.Reschedule(r.Context(), r.PathValue("id"), booking.RescheduleRequest{
		Date:    date,
		Start:   start,
		StaffID: req.StaffID,
		RoomID:  req.RoomID,
	})
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, a)
}

// handleExportDay streams the day plan as .xlsx.
// GET /api/v1/export/day?date=2026-06-01
func (s *HTTPServer) handleExportDay(w http.ResponseWriter, r *http.Request) {
	date, err := parseDate(r.URL.Query().Get("date"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="tagesplan_%s.xlsx"`, date.Format(dateLayout)))
	if err := export.WriteDayPlan(r.Context(), s.store, date, w); err != nil {
		w.Header().Del("Content-Disposition")
		s.writeServiceError(w, err)
	}
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return false
	}
	return true
}

func parseDate(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, fmt.Errorf("date is required")
	}
	d, err := time.Parse(dateLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date format; expected YYYY-MM-DD")
	}
	return d, nil
}
