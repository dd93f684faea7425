package tools

import (
	"context"
	"encoding/json"
	"net/url"
	"strconv"

	"stagebased/errors"
)

// Scheduler registers recurring callbacks in the remote scheduler.
type Scheduler interface {
	CreateSchedule(ctx context.Context, req ScheduleRequest) (string, error)
	UpdateSchedule(ctx context.Context, id string, enabled bool) error
}

type ScheduleRequest struct {
	CronDefinition string `json:"cron_definition"`
	Endpoint       string `json:"endpoint"`
}

// remote ids come back as numbers or strings depending on the deployment
type scheduleCreated struct {
	ID json.RawMessage `json:"id"`
}

type SchedulerClient struct {
	*Client
}

func NewSchedulerClient(c *Client) *SchedulerClient {
	return &SchedulerClient{Client: c}
}

func (c *SchedulerClient) CreateSchedule(ctx context.Context, req ScheduleRequest) (string, error) {
	var out scheduleCreated
	if err := c.post(ctx, "schedule/", req, &out); err != nil {
		return "", err
	}
	id, err := rawID(out.ID)
	if err != nil {
		return "", errors.Mark(errors.Wrap(err, "scheduler returned no schedule id"), errors.ErrCollaborator)
	}
	return id, nil
}

func (c *SchedulerClient) UpdateSchedule(ctx context.Context, id string, enabled bool) error {
	return c.patch(ctx, "schedule/"+url.PathEscape(id)+"/", map[string]bool{"enabled": enabled}, nil)
}

func rawID(raw json.RawMessage) (string, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return "", errors.New("empty id")
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil && s != "" {
		return s, nil
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err != nil {
		return "", errors.Wrap(err, "decode id")
	}
	if i, err := n.Int64(); err == nil {
		return strconv.FormatInt(i, 10), nil
	}
	return n.String(), nil
}
