package models

import (
	"strings"
	"time"

	"stagebased/errors"

	"github.com/google/uuid"
	"github.com/jinzhu/gorm"
)

/************************************************
/**** MARK: PROCESS STATUS ****/
/************************************************/
const PROCESS_STATUS_BROKEN = -1
const PROCESS_STATUS_READY = 0
const PROCESS_STATUS_IN_PROCESS = 1
const PROCESS_STATUS_COMPLETED = 2

// Subscription tracks one recipient's progress through a MessageSet.
type Subscription struct {
	ID                 string     `gorm:"primary_key;type:varchar(36)" json:"id"`
	Identity           string     `gorm:"size:36;not null;index" json:"identity"`
	MessageSetID       int64      `gorm:"column:messageset_id;not null;index" json:"messageset"`
	NextSequenceNumber int        `gorm:"not null" json:"next_sequence_number"`
	Lang               string     `gorm:"size:6;not null" json:"lang"`
	Active             bool       `gorm:"not null;index" json:"active"`
	Completed          bool       `gorm:"not null" json:"completed"`
	ScheduleID         int64      `gorm:"column:schedule_id" json:"schedule"`
	ProcessStatus      int        `gorm:"not null;index" json:"process_status"`
	Version            int        `gorm:"not null" json:"version"`
	Metadata           Metadata   `gorm:"type:text" json:"metadata"`
	CreatedAt          *time.Time `json:"created_at"`
	UpdatedAt          *time.Time `json:"updated_at"`
}

func (s *Subscription) BeforeCreate(scope *gorm.Scope) error {
	if s.ID == "" {
		return scope.SetColumn("ID", uuid.NewString())
	}
	return nil
}

// ApplyDefaults fills the creation defaults: sequence 1, version 1, ready.
func (s *Subscription) ApplyDefaults() {
	if s.NextSequenceNumber <= 0 {
		s.NextSequenceNumber = 1
	}
	if s.Version <= 0 {
		s.Version = 1
	}
}

// Validate reports missing required fields.
func (s Subscription) Validate() error {
	fe := errors.FieldErrors{}
	if strings.TrimSpace(s.Identity) == "" {
		fe.Required("identity")
	} else if _, err := uuid.Parse(s.Identity); err != nil {
		fe.Add("identity", "Must be a valid UUID.")
	}
	if s.MessageSetID == 0 {
		fe.Required("messageset")
	}
	if strings.TrimSpace(s.Lang) == "" {
		fe.Required("lang")
	}
	if s.ScheduleID == 0 {
		fe.Required("schedule")
	}
	return fe.Err()
}

// IsReady is the only state from which a dispatch may start.
func (s Subscription) IsReady() bool {
	return s.ProcessStatus == PROCESS_STATUS_READY && s.Active && !s.Completed
}

/************************************************
/**** MARK: EFFECTS ****/
/************************************************/

// Realtime event counters.
const METRIC_CREATED_SUM = "subscriptions.created.sum"
const METRIC_SEND_ERRORED_SUM = "subscriptions.send_next_message_errored.sum"

type EffectKind int

const (
	EffectScheduleCreate EffectKind = iota + 1
	EffectScheduleDisable
	EffectIncrementMetric
)

func (k EffectKind) String() string {
	switch k {
	case EffectScheduleCreate:
		return "schedule_create"
	case EffectScheduleDisable:
		return "schedule_disable"
	case EffectIncrementMetric:
		return "increment_metric"
	}
	return "unknown"
}

// Effect is a side effect the caller must run after persisting a transition.
type Effect struct {
	Kind           EffectKind
	SubscriptionID string
	Metric         string
}

/************************************************
/**** MARK: TRANSITIONS ****/
/************************************************/

const OUTCOME_ADVANCED = "advanced"
const OUTCOME_SWITCHED = "switched"
const OUTCOME_COMPLETED = "completed"

// Created returns the effects of a newly stored subscription.
func (s *Subscription) Created() []Effect {
	effects := []Effect{{Kind: EffectIncrementMetric, SubscriptionID: s.ID, Metric: METRIC_CREATED_SUM}}
	if s.Active && s.Metadata.ScheduleID() == "" {
		effects = append(effects, Effect{Kind: EffectScheduleCreate, SubscriptionID: s.ID})
	}
	return effects
}

// Claim moves ready -> in-process.
func (s *Subscription) Claim() error {
	if !s.IsReady() {
		return errors.Mark(errors.Newf("subscription %s has process_status %d", s.ID, s.ProcessStatus), errors.ErrNotReady)
	}
	s.ProcessStatus = PROCESS_STATUS_IN_PROCESS
	return nil
}

// Advance applies a successful send. messageCount is the number of messages
// in the current set for the subscription's lang; successor is the current
// set's next set, or nil. Only one successor hop is taken per call.
func (s *Subscription) Advance(messageCount int, successor *MessageSet) (string, []Effect, error) {
	if s.ProcessStatus != PROCESS_STATUS_IN_PROCESS {
		return "", nil, errors.Mark(errors.Newf("advance from process_status %d", s.ProcessStatus), errors.ErrNotReady)
	}
	s.Version++

	if s.NextSequenceNumber+1 <= messageCount {
		s.NextSequenceNumber++
		s.ProcessStatus = PROCESS_STATUS_READY
		return OUTCOME_ADVANCED, nil, nil
	}

	if successor != nil {
		s.MessageSetID = successor.ID
		s.NextSequenceNumber = 1
		s.ProcessStatus = PROCESS_STATUS_READY
		return OUTCOME_SWITCHED, nil, nil
	}

	s.Completed = true
	s.Active = false
	s.ProcessStatus = PROCESS_STATUS_COMPLETED
	return OUTCOME_COMPLETED, []Effect{{Kind: EffectScheduleDisable, SubscriptionID: s.ID}}, nil
}

// Break marks a failed dispatch. next_sequence_number and active are left alone.
func (s *Subscription) Break() []Effect {
	s.ProcessStatus = PROCESS_STATUS_BROKEN
	s.Version++
	return []Effect{{Kind: EffectIncrementMetric, SubscriptionID: s.ID, Metric: METRIC_SEND_ERRORED_SUM}}
}

// Deactivate turns the subscription off and disables its remote schedule.
func (s *Subscription) Deactivate() []Effect {
	if !s.Active {
		return nil
	}
	s.Active = false
	s.Version++
	return []Effect{{Kind: EffectScheduleDisable, SubscriptionID: s.ID}}
}

// Activate turns the subscription on; a remote schedule is created only when
// none was registered before.
func (s *Subscription) Activate() []Effect {
	if s.Active {
		return nil
	}
	s.Active = true
	s.Version++
	if s.Metadata.ScheduleID() != "" {
		return nil
	}
	return []Effect{{Kind: EffectScheduleCreate, SubscriptionID: s.ID}}
}
