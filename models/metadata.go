package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
)

const (
	META_SCHEDULER_SCHEDULE_ID = "scheduler_schedule_id"
	META_PREPEND_NEXT_DELIVERY = "prepend_next_delivery"
	META_SOURCE                = "source"
)

// Metadata holds the recognised subscription metadata keys as typed fields.
// Unknown keys survive a round trip through Extra.
type Metadata struct {
	SchedulerScheduleID *string
	PrependNextDelivery *string
	Source              *string
	Extra               map[string]any
}

func strPtr(s string) *string { return &s }

func (m Metadata) ScheduleID() string {
	if m.SchedulerScheduleID == nil {
		return ""
	}
	return *m.SchedulerScheduleID
}

func (m Metadata) Prepend() string {
	if m.PrependNextDelivery == nil {
		return ""
	}
	return *m.PrependNextDelivery
}

func (m *Metadata) SetScheduleID(id string) { m.SchedulerScheduleID = strPtr(id) }
func (m *Metadata) SetPrepend(v string)     { m.PrependNextDelivery = strPtr(v) }
func (m *Metadata) ClearPrepend()           { m.PrependNextDelivery = nil }

func (m Metadata) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(m.Extra)+3)
	for k, v := range m.Extra {
		out[k] = v
	}
	if m.SchedulerScheduleID != nil {
		out[META_SCHEDULER_SCHEDULE_ID] = *m.SchedulerScheduleID
	}
	if m.PrependNextDelivery != nil {
		out[META_PREPEND_NEXT_DELIVERY] = *m.PrependNextDelivery
	}
	if m.Source != nil {
		out[META_SOURCE] = *m.Source
	}
	return json.Marshal(out)
}

func (m *Metadata) UnmarshalJSON(b []byte) error {
	var raw map[string]any
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	*m = Metadata{}
	for k, v := range raw {
		switch k {
		case META_SCHEDULER_SCHEDULE_ID, META_PREPEND_NEXT_DELIVERY, META_SOURCE:
			if v == nil {
				continue
			}
			s, ok := v.(string)
			if !ok {
				s = fmt.Sprint(v)
			}
			switch k {
			case META_SCHEDULER_SCHEDULE_ID:
				m.SchedulerScheduleID = strPtr(s)
			case META_PREPEND_NEXT_DELIVERY:
				m.PrependNextDelivery = strPtr(s)
			default:
				m.Source = strPtr(s)
			}
		default:
			if m.Extra == nil {
				m.Extra = map[string]any{}
			}
			m.Extra[k] = v
		}
	}
	return nil
}

// Value stores metadata as a JSON text column.
func (m Metadata) Value() (driver.Value, error) {
	b, err := json.Marshal(m)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

func (m *Metadata) Scan(src any) error {
	switch v := src.(type) {
	case nil:
		*m = Metadata{}
		return nil
	case []byte:
		if len(v) == 0 {
			*m = Metadata{}
			return nil
		}
		return m.UnmarshalJSON(v)
	case string:
		if v == "" {
			*m = Metadata{}
			return nil
		}
		return m.UnmarshalJSON([]byte(v))
	default:
		return fmt.Errorf("metadata: unsupported scan type %T", src)
	}
}
