package workers

import (
	"context"
	"testing"
	"time"

	"stagebased/config"
	"stagebased/errors"
	"stagebased/models"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScheduleCreate_RegistersCallback(t *testing.T) {
	h := newHarness(t)
	set := h.messageSet(t, "messageset_one", models.CONTENT_TYPE_TEXT, 1, nil)
	sub := h.subscription(t, set, func(s *models.Subscription) { s.Metadata.SetPrepend("hello") })

	id, err := h.engine.ScheduleCreate(context.Background(), sub.ID)
	require.NoError(t, err)
	assert.Equal(t, "sched-1", id)

	require.Len(t, h.scheduler.created, 1)
	assert.Equal(t, "1 6 1 * *", h.scheduler.created[0].CronDefinition)
	assert.Equal(t, "http://example.com/api/v1/subscriptions/"+sub.ID+"/send", h.scheduler.created[0].Endpoint)

	after := h.reload(t, sub.ID)
	assert.Equal(t, "sched-1", after.Metadata.ScheduleID())
	assert.Equal(t, "hello", after.Metadata.Prepend())
	assert.Equal(t, sub.Version, after.Version)

	// already registered
	id, err = h.engine.ScheduleCreate(context.Background(), sub.ID)
	require.NoError(t, err)
	assert.Equal(t, "sched-1", id)
	assert.Len(t, h.scheduler.created, 1)
}

func TestScheduleCreate_FallsBackToMessageSetSchedule(t *testing.T) {
	h := newHarness(t)
	set := h.messageSet(t, "messageset_one", models.CONTENT_TYPE_TEXT, 1, nil)
	sub := h.subscription(t, set, func(s *models.Subscription) { s.ScheduleID = 0 })

	_, err := h.engine.ScheduleCreate(context.Background(), sub.ID)
	require.NoError(t, err)
	require.Len(t, h.scheduler.created, 1)
	assert.Equal(t, "1 6 1 * *", h.scheduler.created[0].CronDefinition)
}

func TestScheduleCreate_FailureLeavesSubscription(t *testing.T) {
	h := newHarness(t)
	set := h.messageSet(t, "messageset_one", models.CONTENT_TYPE_TEXT, 1, nil)
	sub := h.subscription(t, set, nil)
	h.scheduler.err = errors.Mark(errors.New("scheduler down"), errors.ErrCollaborator)

	_, err := h.engine.ScheduleCreate(context.Background(), sub.ID)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrCollaborator))

	after := h.reload(t, sub.ID)
	assert.Equal(t, "", after.Metadata.ScheduleID())
	assert.Equal(t, sub.Version, after.Version)
	assert.True(t, after.Active)
}

func TestScheduleDisable(t *testing.T) {
	h := newHarness(t)
	set := h.messageSet(t, "messageset_one", models.CONTENT_TYPE_TEXT, 1, nil)
	without := h.subscription(t, set, nil)
	with := h.subscription(t, set, func(s *models.Subscription) { s.Metadata.SetScheduleID("42") })

	done, err := h.engine.ScheduleDisable(context.Background(), without.ID)
	require.NoError(t, err)
	assert.False(t, done)
	assert.Empty(t, h.scheduler.disabled)

	done, err = h.engine.ScheduleDisable(context.Background(), with.ID)
	require.NoError(t, err)
	assert.True(t, done)
	assert.Equal(t, []string{"42"}, h.scheduler.disabled)
}

func TestApply_CreatedEffects(t *testing.T) {
	h := newHarness(t)
	set := h.messageSet(t, "messageset_one", models.CONTENT_TYPE_TEXT, 1, nil)
	sub := h.subscription(t, set, nil)

	require.NoError(t, h.engine.Apply(context.Background(), sub.Created()))
	assert.Equal(t, []float64{1.0}, h.metrics.values(models.METRIC_CREATED_SUM))
	require.Len(t, h.scheduler.created, 1)
	assert.Equal(t, "sched-1", h.reload(t, sub.ID).Metadata.ScheduleID())
}

func TestApply_DeactivateDisablesSchedule(t *testing.T) {
	h := newHarness(t)
	set := h.messageSet(t, "messageset_one", models.CONTENT_TYPE_TEXT, 1, nil)
	sub := h.subscription(t, set, func(s *models.Subscription) { s.Metadata.SetScheduleID("7") })

	effects := sub.Deactivate()
	require.NoError(t, h.db.Save(&sub).Error)
	require.NoError(t, h.engine.Apply(context.Background(), effects))
	assert.Equal(t, []string{"7"}, h.scheduler.disabled)
}

func TestApply_SurfacesScheduleErrors(t *testing.T) {
	h := newHarness(t)
	set := h.messageSet(t, "messageset_one", models.CONTENT_TYPE_TEXT, 1, nil)
	sub := h.subscription(t, set, func(s *models.Subscription) { s.Metadata.SetScheduleID("7") })
	h.scheduler.err = errors.Mark(errors.New("down"), errors.ErrCollaborator)

	err := h.engine.Apply(context.Background(), sub.Deactivate())
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrCollaborator))
}

func TestScheduleCreate_StoreFailureIsNotRetried(t *testing.T) {
	h := newHarness(t)
	set := h.messageSet(t, "messageset_one", models.CONTENT_TYPE_TEXT, 1, nil)
	sub := h.subscription(t, set, nil)
	// the row disappears after the remote job exists, so the id cannot be stored
	h.scheduler.onCreate = func() {
		assert.NoError(t, h.db.Where("id = ?", sub.ID).Delete(&models.Subscription{}).Error)
	}

	q := NewQueue(config.WorkersConfig{Count: 1, QueueSize: 1, RetryMax: 3, RetryBase: time.Millisecond}, zerolog.Nop())
	done := make(chan error, 1)
	q.onDone = func(_ string, err error) { done <- err }
	q.Start(context.Background())
	defer q.Stop()

	require.NoError(t, q.Enqueue(context.Background(), Task{
		Name: TASK_SCHEDULE_CREATE,
		Key:  sub.ID,
		Run: func(ctx context.Context) error {
			_, err := h.engine.ScheduleCreate(ctx, sub.ID)
			return err
		},
	}))

	select {
	case err := <-done:
		require.Error(t, err)
		assert.True(t, errors.Is(err, errNoRetry))
	case <-time.After(5 * time.Second):
		t.Fatal("task never finished")
	}
	assert.Len(t, h.scheduler.created, 1)
}
