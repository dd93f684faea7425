package models

import (
	"fmt"
	"strings"
	"time"

	"stagebased/errors"
)

// Message is one item of a MessageSet, keyed by (set, sequence number, lang).
// At least one of TextContent and BinaryContentID must be set.
type Message struct {
	ID              int64          `gorm:"primary_key;AUTO_INCREMENT" json:"id"`
	MessageSetID    int64          `gorm:"column:messageset_id;not null;unique_index:idx_message_set_seq_lang" json:"messageset"`
	SequenceNumber  int            `gorm:"not null;unique_index:idx_message_set_seq_lang" json:"sequence_number"`
	Lang            string         `gorm:"size:6;not null;unique_index:idx_message_set_seq_lang" json:"lang"`
	TextContent     string         `gorm:"type:text" json:"text_content"`
	BinaryContentID *int64         `gorm:"column:binary_content_id" json:"binary_content"`
	BinaryContent   *BinaryContent `gorm:"association_autoupdate:false;association_autocreate:false" json:"-"`
	CreatedAt       *time.Time     `json:"created_at"`
	UpdatedAt       *time.Time     `json:"updated_at"`
}

// MessageOrdering is the default listing order.
const MessageOrdering = "sequence_number asc"

func (m Message) HasText() bool {
	return strings.TrimSpace(m.TextContent) != ""
}

func (m Message) HasBinary() bool {
	return m.BinaryContentID != nil && *m.BinaryContentID > 0
}

// Validate rejects messages with neither text nor a file attached.
func (m Message) Validate() error {
	fe := errors.FieldErrors{}
	if !m.HasText() && !m.HasBinary() {
		fe.Add("non_field_errors", "Messages must have text or file attached")
	}
	if m.MessageSetID == 0 {
		fe.Required("messageset")
	}
	if m.SequenceNumber <= 0 {
		fe.Add("sequence_number", "Ensure this value is greater than or equal to 1.")
	}
	if strings.TrimSpace(m.Lang) == "" {
		fe.Required("lang")
	}
	return fe.Err()
}

func (m *Message) BeforeSave() error {
	return m.Validate()
}

func (m Message) String() string {
	return fmt.Sprintf("Message %d in %s from set %d", m.SequenceNumber, m.Lang, m.MessageSetID)
}
