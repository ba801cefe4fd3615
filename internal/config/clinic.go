package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"praxis/internal/sessions"
	"praxis/internal/timeofday"
)

// ShiftConfig is one working window on a weekday (0=Sunday..6=Saturday).
type ShiftConfig struct {
	Weekday    int    `yaml:"weekday"`
	StartTime  string `yaml:"start_time"`            // "09:00"
	EndTime    string `yaml:"end_time"`              // "17:00"
	BreakStart string `yaml:"break_start,omitempty"` // "12:00"
	BreakEnd   string `yaml:"break_end,omitempty"`   // "13:00"
}

// LeaveConfig is an inclusive date range.
type LeaveConfig struct {
	From   string `yaml:"from"` // "2026-07-01"
	To     string `yaml:"to"`   // "2026-07-14"
	Reason string `yaml:"reason,omitempty"`
}

type StaffConfig struct {
	ID       string        `yaml:"id"`
	Name     string        `yaml:"name"`
	IsActive bool          `yaml:"is_active"`
	Shifts   []ShiftConfig `yaml:"shifts,omitempty"`
	Leave    []LeaveConfig `yaml:"leave,omitempty"`
}

type RoomConfig struct {
	ID       string `yaml:"id"`
	Name     string `yaml:"name"`
	IsActive bool   `yaml:"is_active"`
}

type ServiceConfig struct {
	ID              string `yaml:"id"`
	Name            string `yaml:"name"`
	DurationMinutes int    `yaml:"duration_minutes"`
	SessionCount    int    `yaml:"session_count,omitempty"` // derived from name when 0
}

// SessionsPerUnit returns the explicit session count or the one encoded in the name.
func (s *ServiceConfig) SessionsPerUnit() int {
	if s.SessionCount > 0 {
		return s.SessionCount
	}
	return sessions.CountFromServiceName(s.Name)
}

// HolidayConfig closes the whole clinic for a day.
type HolidayConfig struct {
	Date string `yaml:"date"` // "2026-12-25"
	Name string `yaml:"name"` // "1. Weihnachtstag"
}

type DefaultsConfig struct {
	Shifts []ShiftConfig `yaml:"shifts"`
}

// ClinicConfig is the root of clinic.yaml.
type ClinicConfig struct {
	Staff    []StaffConfig   `yaml:"staff"`
	Rooms    []RoomConfig    `yaml:"rooms"`
	Services []ServiceConfig `yaml:"services"`
	Defaults DefaultsConfig  `yaml:"defaults"`
	Holidays []HolidayConfig `yaml:"holidays"`
}

// LoadClinicConfig loads and validates clinic configuration from YAML file.
func LoadClinicConfig(path string) (*ClinicConfig, error) {
	if path == "" {
		path = "configs/clinic.yaml"
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read clinic config: %w", err)
	}

	return ParseClinicConfig(data)
}

// ParseClinicConfig parses, validates and applies defaults.
func ParseClinicConfig(data []byte) (*ClinicConfig, error) {
	var cfg ClinicConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse clinic config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate clinic config: %w", err)
	}

	cfg.applyDefaults()
	return &cfg, nil
}

// Validate checks the configuration for errors.
func (c *ClinicConfig) Validate() error {
	if len(c.Staff) == 0 {
		return fmt.Errorf("no staff defined")
	}

	ids := make(map[string]bool)
	for i, s := range c.Staff {
		if s.ID == "" {
			return fmt.Errorf("staff[%d]: id is required", i)
		}
		if ids[s.ID] {
			return fmt.Errorf("staff[%d]: duplicate id '%s'", i, s.ID)
		}
		ids[s.ID] = true
		if s.Name == "" {
			return fmt.Errorf("staff[%d]: name is required", i)
		}
		for j := range s.Shifts {
			if err := validateShift(&s.Shifts[j], fmt.Sprintf("staff[%d].shifts[%d]", i, j)); err != nil {
				return err
			}
		}
		for j, l := range s.Leave {
			if err := validateLeave(l, fmt.Sprintf("staff[%d].leave[%d]", i, j)); err != nil {
				return err
			}
		}
	}

	roomIDs := make(map[string]bool)
	for i, r := range c.Rooms {
		if r.ID == "" {
			return fmt.Errorf("room[%d]: id is required", i)
		}
		if roomIDs[r.ID] {
			return fmt.Errorf("room[%d]: duplicate id '%s'", i, r.ID)
		}
		roomIDs[r.ID] = true
	}

	serviceIDs := make(map[string]bool)
	for i, s := range c.Services {
		if s.ID == "" {
			return fmt.Errorf("service[%d]: id is required", i)
		}
		if serviceIDs[s.ID] {
			return fmt.Errorf("service[%d]: duplicate id '%s'", i, s.ID)
		}
		serviceIDs[s.ID] = true
		if s.DurationMinutes <= 0 {
			return fmt.Errorf("service[%d]: duration_minutes must be positive", i)
		}
		if s.SessionCount < 0 {
			return fmt.Errorf("service[%d]: session_count cannot be negative", i)
		}
	}

	for i := range c.Defaults.Shifts {
		if err := validateShift(&c.Defaults.Shifts[i], fmt.Sprintf("defaults.shifts[%d]", i)); err != nil {
			return err
		}
	}

	for i, h := range c.Holidays {
		if h.Date == "" {
			return fmt.Errorf("holiday[%d]: date is required", i)
		}
		if _, err := time.Parse("2006-01-02", h.Date); err != nil {
			return fmt.Errorf("holiday[%d]: invalid date format '%s', expected YYYY-MM-DD", i, h.Date)
		}
	}

	return nil
}

func validateShift(s *ShiftConfig, prefix string) error {
	if s.Weekday < 0 || s.Weekday > 6 {
		return fmt.Errorf("%s.weekday: invalid day %d, must be 0-6 (0=Sun)", prefix, s.Weekday)
	}

	work, err := timeofday.ParseInterval(s.StartTime, s.EndTime)
	if err != nil {
		return fmt.Errorf("%s: working hours: %w", prefix, err)
	}

	if s.BreakStart == "" && s.BreakEnd == "" {
		return nil
	}
	if s.BreakStart == "" || s.BreakEnd == "" {
		return fmt.Errorf("%s: break_start and break_end must be set together", prefix)
	}
	brk, err := timeofday.ParseInterval(s.BreakStart, s.BreakEnd)
	if err != nil {
		return fmt.Errorf("%s: break: %w", prefix, err)
	}
	if !work.Contains(brk) {
		return fmt.Errorf("%s: break must be within working hours", prefix)
	}
	return nil
}

func validateLeave(l LeaveConfig, prefix string) error {
	from, err := time.Parse("2006-01-02", l.From)
	if err != nil {
		return fmt.Errorf("%s.from: invalid date format '%s', expected YYYY-MM-DD", prefix, l.From)
	}
	to, err := time.Parse("2006-01-02", l.To)
	if err != nil {
		return fmt.Errorf("%s.to: invalid date format '%s', expected YYYY-MM-DD", prefix, l.To)
	}
	if to.Before(from) {
		return fmt.Errorf("%s: to must not be before from", prefix)
	}
	return nil
}

// applyDefaults gives staff without shifts the default week.
func (c *ClinicConfig) applyDefaults() {
	for i := range c.Staff {
		if len(c.Staff[i].Shifts) == 0 && len(c.Defaults.Shifts) > 0 {
			c.Staff[i].Shifts = append([]ShiftConfig(nil), c.Defaults.Shifts...)
		}
	}
}

// GetStaffByID returns staff config by ID.
func (c *ClinicConfig) GetStaffByID(id string) *StaffConfig {
	for i := range c.Staff {
		if c.Staff[i].ID == id {
			return &c.Staff[i]
		}
	}
	return nil
}

// GetServiceByID returns service config by ID.
func (c *ClinicConfig) GetServiceByID(id string) *ServiceConfig {
	for i := range c.Services {
		if c.Services[i].ID == id {
			return &c.Services[i]
		}
	}
	return nil
}

// IsHoliday checks if a date is a holiday.
func (c *ClinicConfig) IsHoliday(date time.Time) (bool, string) {
	dateStr := date.Format("2006-01-02")
	for _, h := range c.Holidays {
		if h.Date == dateStr {
			return true, h.Name
		}
	}
	return false, ""
}

// String returns a summary of the configuration.
func (c *ClinicConfig) String() string {
	active := 0
	for _, s := range c.Staff {
		if s.IsActive {
			active++
		}
	}
	return fmt.Sprintf("ClinicConfig: %d staff (%d active), %d rooms, %d services, %d holidays",
		len(c.Staff), active, len(c.Rooms), len(c.Services), len(c.Holidays))
}
