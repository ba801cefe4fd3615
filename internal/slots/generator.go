// Package slots enumerates bookable start times for a staff member on a day.
package slots

import (
	"context"
	"iter"
	"time"

	"praxis/internal/conflict"
	"praxis/internal/timeofday"
)

// DefaultInterval is the grid step in minutes when none is configured.
const DefaultInterval = 30

// Config holds enumeration settings. Now, when set, hides start times earlier
// than Now()+MinAdvance in Location.
type Config struct {
	IntervalMinutes int
	MinAdvance      time.Duration
	Location        *time.Location
	Now             func() time.Time
}

// Slot is one grid position with its availability.
type Slot struct {
	Start     timeofday.Time
	End       timeofday.Time
	Available bool
	Conflicts []conflict.Kind
}

// SlotInfo is a simplified representation for UI.
type SlotInfo struct {
	Start     string `json:"start"` // "10:00"
	End       string `json:"end"`   // "10:30"
	Available bool   `json:"available"`
}

// Generator enumerates slots over a conflict.Checker.
type Generator struct {
	checker *conflict.Checker
	cfg     Config
}

// NewGenerator creates a new slot generator.
func NewGenerator(checker *conflict.Checker, cfg Config) *Generator {
	if cfg.IntervalMinutes <= 0 {
		cfg.IntervalMinutes = DefaultInterval
	}
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	return &Generator{checker: checker, cfg: cfg}
}

// Slots returns the lazy sequence of free start times for a service of
// duration minutes, stepping by step minutes (0 uses the configured
// interval). Each iteration re-reads availability. A read failure is yielded
// once as the error and ends the sequence.
func (g *Generator) Slots(ctx context.Context, date time.Time, staffID string, duration, step int) iter.Seq2[timeofday.Time, error] {
	return func(yield func(timeofday.Time, error) bool) {
		if duration <= 0 {
			yield(0, timeofday.ErrInvalidDuration)
			return
		}
		if step <= 0 {
			step = g.cfg.IntervalMinutes
		}

		day, err := g.checker.LoadDay(ctx, date, staffID, "", "")
		if err != nil {
			yield(0, err)
			return
		}
		if day.OnLeave {
			return
		}

		cutoff, hasCutoff := g.cutoff(date)
		seen := make(map[timeofday.Time]struct{})
		for _, w := range day.Working {
			for start := w.Start; int(start)+duration <= int(w.End); start += timeofday.Time(step) {
				if _, dup := seen[start]; dup {
					continue
				}
				if hasCutoff && start < cutoff {
					continue
				}
				iv := timeofday.Interval{Start: start, End: start + timeofday.Time(duration)}
				if len(day.Conflicts(iv)) > 0 {
					continue
				}
				seen[start] = struct{}{}
				if !yield(start, nil) {
					return
				}
			}
		}
	}
}

// AvailableTimeSlots collects Slots as "HH:MM" strings.
func (g *Generator) AvailableTimeSlots(ctx context.Context, date time.Time, staffID string, duration, step int) ([]string, error) {
	out := make([]string, 0)
	for start, err := range g.Slots(ctx, date, staffID, duration, step) {
		if err != nil {
			return nil, err
		}
		out = append(out, start.String())
	}
	return out, nil
}

// Grid returns every candidate position inside the working windows, free or
// not, with the conflict kinds that block it.
func (g *Generator) Grid(ctx context.Context, date time.Time, staffID string, duration, step int) ([]Slot, error) {
	if duration <= 0 {
		return nil, timeofday.ErrInvalidDuration
	}
	if step <= 0 {
		step = g.cfg.IntervalMinutes
	}

	day, err := g.checker.LoadDay(ctx, date, staffID, "", "")
	if err != nil {
		return nil, err
	}

	cutoff, hasCutoff := g.cutoff(date)
	var slots []Slot
	for _, w := range day.Working {
		for start := w.Start; int(start)+duration <= int(w.End); start += timeofday.Time(step) {
			iv := timeofday.Interval{Start: start, End: start + timeofday.Time(duration)}
			var kinds []conflict.Kind
			for _, c := range day.Conflicts(iv) {
				kinds = append(kinds, c.Kind)
			}
			past := hasCutoff && start < cutoff
			slots = append(slots, Slot{
				Start:     iv.Start,
				End:       iv.End,
				Available: len(kinds) == 0 && !past,
				Conflicts: kinds,
			})
		}
	}
	return slots, nil
}

// cutoff is the earliest bookable time of day on date, if any.
func (g *Generator) cutoff(date time.Time) (timeofday.Time, bool) {
	if g.cfg.Now == nil {
		return 0, false
	}
	earliest := g.cfg.Now().Add(g.cfg.MinAdvance).In(g.cfg.Location)
	y, m, d := date.Date()
	dayStart := time.Date(y, m, d, 0, 0, 0, 0, g.cfg.Location)
	switch {
	case earliest.Before(dayStart):
		return 0, false
	case !earliest.Before(dayStart.AddDate(0, 0, 1)):
		return timeofday.MinutesPerDay, true
	}
	// Round up to the next whole minute.
	t := timeofday.FromClock(earliest)
	if earliest.Second() > 0 || earliest.Nanosecond() > 0 {
		t++
	}
	return t, true
}

// ToSlotInfo converts slots to SlotInfo for UI.
func ToSlotInfo(slots []Slot) []SlotInfo {
	result := make([]SlotInfo, len(slots))
	for i, s := range slots {
		result[i] = SlotInfo{
			Start:     s.Start.String(),
			End:       s.End.String(),
			Available: s.Available,
		}
	}
	return result
}

// FindConsecutiveSlots groups available slots that touch end-to-start.
func FindConsecutiveSlots(slots []Slot) [][]Slot {
	var groups [][]Slot
	var current []Slot
	for _, s := range slots {
		if !s.Available {
			continue
		}
		if len(current) > 0 && current[len(current)-1].End != s.Start {
			groups = append(groups, current)
			current = nil
		}
		current = append(current, s)
	}
	if len(current) > 0 {
		groups = append(groups, current)
	}
	return groups
}
