package workers

import (
	"context"

	"stagebased/errors"
	"stagebased/models"
	"stagebased/tools"
)

const metadataWriteAttempts = 3

// ScheduleCreate registers the subscription's recurring callback with the
// remote scheduler and stores the returned id in metadata. It returns the
// existing id without a remote call when one is already stored.
func (e *Engine) ScheduleCreate(ctx context.Context, subscriptionID string) (string, error) {
	sub, err := e.loadSubscription(e.db, subscriptionID)
	if err != nil {
		return "", err
	}
	if id := sub.Metadata.ScheduleID(); id != "" {
		return id, nil
	}

	scheduleID := sub.ScheduleID
	if scheduleID == 0 {
		var set models.MessageSet
		if err := e.db.First(&set, sub.MessageSetID).Error; err != nil {
			return "", lookupErr(err, "messageset %d", sub.MessageSetID)
		}
		scheduleID = set.DefaultScheduleID
	}
	var schedule models.Schedule
	if err := e.db.First(&schedule, scheduleID).Error; err != nil {
		return "", lookupErr(err, "schedule %d", scheduleID)
	}
	if err := schedule.Validate(); err != nil {
		return "", NoRetry(errors.Wrapf(err, "schedule %d", schedule.ID))
	}

	remoteID, err := e.scheduler.CreateSchedule(ctx, tools.ScheduleRequest{
		CronDefinition: schedule.CronString(),
		Endpoint:       e.callbackURL(sub.ID),
	})
	if err != nil {
		return "", e.collaborator("scheduler", err)
	}

	if err := e.storeScheduleID(sub, remoteID); err != nil {
		// a retry would register a second remote job
		e.log.Error().Err(err).Str("subscription_id", sub.ID).Str("scheduler_schedule_id", remoteID).
			Msg("remote schedule created but its id was not stored; remove it on the scheduler")
		return remoteID, NoRetry(err)
	}
	e.log.Info().Str("subscription_id", sub.ID).Str("scheduler_schedule_id", remoteID).
		Str("cron", schedule.CronString()).Msg("remote schedule created")
	return remoteID, nil
}

// storeScheduleID compares-and-swaps the metadata column so that a
// concurrent metadata write is re-read instead of overwritten.
func (e *Engine) storeScheduleID(sub models.Subscription, remoteID string) error {
	for attempt := 0; attempt < metadataWriteAttempts; attempt++ {
		before, err := sub.Metadata.Value()
		if err != nil {
			return errors.Wrap(err, "encode metadata")
		}
		md := sub.Metadata
		md.SetScheduleID(remoteID)

		res := e.db.Model(&models.Subscription{}).
			Where("id = ? AND metadata = ?", sub.ID, before).
			Update("metadata", md)
		if res.Error != nil {
			return errors.Wrapf(res.Error, "store schedule id for %s", sub.ID)
		}
		if res.RowsAffected == 1 {
			return nil
		}
		if sub, err = e.loadSubscription(e.db, sub.ID); err != nil {
			return err
		}
	}
	return errors.Newf("metadata of subscription %s kept changing", sub.ID)
}

// ScheduleDisable disables the remote schedule. It reports false without a
// remote call when no schedule id is stored.
func (e *Engine) ScheduleDisable(ctx context.Context, subscriptionID string) (bool, error) {
	sub, err := e.loadSubscription(e.db, subscriptionID)
	if err != nil {
		return false, err
	}
	remoteID := sub.Metadata.ScheduleID()
	if remoteID == "" {
		return false, nil
	}
	if err := e.scheduler.UpdateSchedule(ctx, remoteID, false); err != nil {
		return false, e.collaborator("scheduler", err)
	}
	e.log.Info().Str("subscription_id", sub.ID).Str("scheduler_schedule_id", remoteID).Msg("remote schedule disabled")
	return true, nil
}
