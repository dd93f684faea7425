package models

import (
	"fmt"
	"strings"
	"time"

	"stagebased/errors"

	"github.com/robfig/cron/v3"
)

// Schedule defines the rate and frequency at which messages are sent.
// Each field is a crontab field; blanks normalise to "*".
type Schedule struct {
	ID          int64      `gorm:"primary_key;AUTO_INCREMENT" json:"id"`
	Minute      string     `gorm:"size:64;not null" json:"minute"`
	Hour        string     `gorm:"size:64;not null" json:"hour"`
	DayOfWeek   string     `gorm:"size:64;not null" json:"day_of_week"`
	DayOfMonth  string     `gorm:"size:64;not null" json:"day_of_month"`
	MonthOfYear string     `gorm:"size:64;not null" json:"month_of_year"`
	CreatedAt   *time.Time `json:"created_at"`
	UpdatedAt   *time.Time `json:"updated_at"`
}

// ScheduleOrdering is the default listing order.
const ScheduleOrdering = "month_of_year, day_of_month, day_of_week, hour, minute"

func rfield(s string) string {
	s = strings.ReplaceAll(s, " ", "")
	if s == "" {
		return "*"
	}
	return s
}

// Normalize strips whitespace and fills wildcards in place.
func (s *Schedule) Normalize() {
	s.Minute = rfield(s.Minute)
	s.Hour = rfield(s.Hour)
	s.DayOfWeek = rfield(s.DayOfWeek)
	s.DayOfMonth = rfield(s.DayOfMonth)
	s.MonthOfYear = rfield(s.MonthOfYear)
}

// CronString renders "minute hour day_of_week day_of_month month_of_year".
func (s Schedule) CronString() string {
	return fmt.Sprintf("%s %s %s %s %s",
		rfield(s.Minute), rfield(s.Hour), rfield(s.DayOfWeek),
		rfield(s.DayOfMonth), rfield(s.MonthOfYear))
}

func (s Schedule) String() string {
	return s.CronString() + " (m/h/d/dM/MY)"
}

// Validate checks each field with the standard crontab parser. The field
// order of CronString is not crontab order, so the fields are rearranged
// before parsing.
func (s Schedule) Validate() error {
	expr := fmt.Sprintf("%s %s %s %s %s",
		rfield(s.Minute), rfield(s.Hour), rfield(s.DayOfMonth),
		rfield(s.MonthOfYear), rfield(s.DayOfWeek))
	if _, err := cron.ParseStandard(expr); err != nil {
		fe := errors.FieldErrors{}
		fe.Add("schedule", err.Error())
		return fe.Err()
	}
	return nil
}

func (s *Schedule) BeforeSave() error {
	s.Normalize()
	return s.Validate()
}
