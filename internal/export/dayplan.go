// Package export renders the appointments of one day as a spreadsheet.
package export

import (
	"context"
	"fmt"
	"io"
	"time"

	"praxis/internal/model"
	"praxis/internal/slots"
)

// Source lists what goes into a day plan.
type Source interface {
	ListActiveStaff(ctx context.Context) ([]model.Staff, error)
	ListAppointmentsOnDate(ctx context.Context, date time.Time) ([]model.Appointment, error)
}

var dayPlanColumns = []string{"Beginn", "Ende", "Dauer", "Patient", "Leistung", "Raum", "Status", "Notiz"}

// WriteDayPlan writes one sheet per active staff member with that member's
// appointments on date. Appointments of staff no longer active get a sheet
// named after the staff id.
func WriteDayPlan(ctx context.Context, src Source, date time.Time, w io.Writer) error {
	staff, err := src.ListActiveStaff(ctx)
	if err != nil {
		return fmt.Errorf("list staff: %w", err)
	}
	appts, err := src.ListAppointmentsOnDate(ctx, date)
	if err != nil {
		return fmt.Errorf("list appointments: %w", err)
	}

	byStaff := make(map[string][]model.Appointment)
	var order []string
	for _, s := range staff {
		order = append(order, s.ID)
	}
	known := make(map[string]bool, len(staff))
	for _, s := range staff {
		known[s.ID] = true
	}
	for _, a := range appts {
		if !known[a.StaffID] {
			known[a.StaffID] = true
			order = append(order, a.StaffID)
		}
		byStaff[a.StaffID] = append(byStaff[a.StaffID], a)
	}

	names := make(map[string]string, len(staff))
	for _, s := range staff {
		names[s.ID] = s.Name
	}

	sw := newSheetWriter()
	defer sw.Close()

	if len(order) == 0 {
		if err := sw.AddSheet(date.Format("2006-01-02")); err != nil {
			return err
		}
		if err := sw.WriteHeader(dayPlanColumns); err != nil {
			return err
		}
	}

	used := make(map[string]bool)
	for _, id := range order {
		name := names[id]
		if name == "" {
			name = id
		}
		sheet := SheetName(name)
		if used[sheet] {
			sheet = SheetName(name + " " + id)
		}
		used[sheet] = true

		if err := sw.AddSheet(sheet); err != nil {
			return err
		}
		if err := sw.WriteHeader(dayPlanColumns); err != nil {
			return err
		}
		for _, a := range byStaff[id] {
			row := []any{
				a.StartTime,
				a.EndTime,
				slots.FormatDuration(a.Duration()),
				a.PatientID,
				a.ServiceID,
				a.RoomID,
				string(a.Status),
				a.Notes,
			}
			if err := sw.WriteRow(row); err != nil {
				return err
			}
		}
	}

	return sw.Save(w)
}
