package models

import "time"

/************************************************
/**** MARK: CONTENT TYPES ****/
/************************************************/
const CONTENT_TYPE_TEXT = "text"
const CONTENT_TYPE_AUDIO = "audio"

// MessageSet is a named linear sequence of messages sent on a default
// schedule, optionally chained to a successor set.
type MessageSet struct {
	ID                int64      `gorm:"primary_key;AUTO_INCREMENT" json:"id"`
	ShortName         string     `gorm:"size:100;not null;unique" json:"short_name"`
	Notes             string     `gorm:"type:text" json:"notes"`
	NextSetID         *int64     `gorm:"column:next_set_id" json:"next_set"`
	DefaultScheduleID int64      `gorm:"column:default_schedule_id;not null" json:"default_schedule"`
	ContentType       string     `gorm:"size:20;not null" json:"content_type"`
	CreatedAt         *time.Time `json:"created_at"`
	UpdatedAt         *time.Time `json:"updated_at"`
}

func (set MessageSet) MissingFields() string {
	if set.ShortName == "" {
		return "short_name"
	} else if set.DefaultScheduleID == 0 {
		return "default_schedule"
	}
	return ""
}

func (set MessageSet) IsAudio() bool {
	return set.ContentType == CONTENT_TYPE_AUDIO
}

func (set *MessageSet) BeforeSave() error {
	if set.ContentType == "" {
		set.ContentType = CONTENT_TYPE_TEXT
	}
	return nil
}

func IsValidContentType(ct string) bool {
	return ct == CONTENT_TYPE_TEXT || ct == CONTENT_TYPE_AUDIO
}
