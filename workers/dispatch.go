package workers

import (
	"context"
	"time"

	"stagebased/errors"
	"stagebased/models"
	"stagebased/tools"

	"github.com/jinzhu/gorm"
)

const OUTCOME_NOT_READY = "not_ready"
const OUTCOME_BROKEN = "broken"
const OUTCOME_RELEASED = "released"

// DispatchResult describes one AdvanceOne call.
type DispatchResult struct {
	SubscriptionID string
	Outcome        string
	SequenceSent   int
	Outbound       *tools.Outbound
}

// delivery is everything resolved before the outbound call so that nothing
// after a successful send can fail on a lookup.
type delivery struct {
	set       models.MessageSet
	message   models.Message
	outbound  tools.Outbound
	count     int
	successor *models.MessageSet
}

// AdvanceOne sends the next message of a subscription and advances it.
// A subscription that is not ready, or whose claim is lost to a concurrent
// caller, yields OUTCOME_NOT_READY with no collaborator calls.
func (e *Engine) AdvanceOne(ctx context.Context, subscriptionID string) (DispatchResult, error) {
	started := time.Now()
	result := DispatchResult{SubscriptionID: subscriptionID, Outcome: OUTCOME_NOT_READY}
	log := e.log.With().Str("subscription_id", subscriptionID).Logger()

	sub, err := e.loadSubscription(e.db, subscriptionID)
	if err != nil {
		return result, err
	}
	if !sub.IsReady() {
		log.Debug().Int("process_status", sub.ProcessStatus).Msg("subscription not ready")
		e.inst.observeDispatch(OUTCOME_NOT_READY, started)
		return result, nil
	}

	claimed, err := e.claim(sub.ID, sub.Version)
	if err != nil {
		return result, err
	}
	if !claimed {
		log.Debug().Msg("claim lost")
		e.inst.observeDispatch(OUTCOME_NOT_READY, started)
		return result, nil
	}
	if err := sub.Claim(); err != nil {
		return result, err
	}
	loadedVersion := sub.Version
	result.SequenceSent = sub.NextSequenceNumber

	d, err := e.prepare(ctx, &sub)
	if err == nil {
		_, err = e.sender.CreateOutbound(ctx, d.outbound)
		err = e.collaborator("message_sender", err)
	}
	if err != nil && ctx.Err() != nil {
		// interrupted, not failed: hand the row back unchanged
		result.Outcome = OUTCOME_RELEASED
		if rerr := e.release(sub.ID, loadedVersion); rerr != nil {
			log.Error().Err(rerr).Msg("release claim failed")
			err = errors.CombineErrors(err, rerr)
		}
		log.Warn().Err(err).Int("sequence", result.SequenceSent).Msg("dispatch interrupted")
		e.inst.observeDispatch(OUTCOME_RELEASED, started)
		return result, err
	}
	if err != nil {
		if !errors.IsAny(err, errors.ErrLookup, errors.ErrCollaborator) {
			err = errors.Mark(err, errors.ErrLookup)
		}
		result.Outcome = OUTCOME_BROKEN
		effects := sub.Break()
		if perr := e.finish(sub, loadedVersion, false); perr != nil {
			log.Error().Err(perr).Msg("persist broken state failed")
			err = errors.CombineErrors(err, perr)
		}
		_ = e.Apply(ctx, effects)
		log.Error().Err(err).Int("sequence", result.SequenceSent).Str("outcome", result.Outcome).Msg("dispatch failed")
		e.inst.observeDispatch(OUTCOME_BROKEN, started)
		return result, err
	}
	result.Outbound = &d.outbound

	hadPrepend := sub.Metadata.PrependNextDelivery != nil
	sub.Metadata.ClearPrepend()
	outcome, effects, err := sub.Advance(d.count, d.successor)
	if err != nil {
		return result, err
	}
	result.Outcome = outcome
	if err := e.finish(sub, loadedVersion, hadPrepend); err != nil {
		log.Error().Err(err).Msg("persist advance failed")
		return result, err
	}
	if err := e.Apply(ctx, effects); err != nil {
		log.Warn().Err(err).Msg("post-dispatch effects failed")
	}

	log.Info().Str("outcome", outcome).Int("sequence", result.SequenceSent).
		Int64("messageset", sub.MessageSetID).Msg("message dispatched")
	e.inst.observeDispatch(outcome, started)
	return result, nil
}

// claim is the ready -> in-process compare-and-set. It only matches the row
// as it was loaded, so a dispatch completed in between makes it lose.
func (e *Engine) claim(id string, version int) (bool, error) {
	res := e.db.Model(&models.Subscription{}).
		Where("id = ? AND process_status = ? AND active = ? AND version = ?", id, models.PROCESS_STATUS_READY, true, version).
		Update("process_status", models.PROCESS_STATUS_IN_PROCESS)
	if res.Error != nil {
		return false, errors.Wrapf(res.Error, "claim subscription %s", id)
	}
	return res.RowsAffected == 1, nil
}

// finish writes the state out of in-process, guarded by the version loaded
// at claim time. Metadata is written only when it changed.
func (e *Engine) finish(sub models.Subscription, loadedVersion int, writeMetadata bool) error {
	fields := map[string]any{
		"messageset_id":        sub.MessageSetID,
		"next_sequence_number": sub.NextSequenceNumber,
		"active":               sub.Active,
		"completed":            sub.Completed,
		"process_status":       sub.ProcessStatus,
		"version":              sub.Version,
	}
	if writeMetadata {
		fields["metadata"] = sub.Metadata
	}
	res := e.db.Model(&models.Subscription{}).
		Where("id = ? AND process_status = ? AND version = ?", sub.ID, models.PROCESS_STATUS_IN_PROCESS, loadedVersion).
		Updates(fields)
	if res.Error != nil {
		return errors.Wrapf(res.Error, "update subscription %s", sub.ID)
	}
	if res.RowsAffected == 0 {
		return errors.Newf("subscription %s left in-process by another writer", sub.ID)
	}
	return nil
}

// release returns a claimed row to ready without touching anything else.
func (e *Engine) release(id string, loadedVersion int) error {
	res := e.db.Model(&models.Subscription{}).
		Where("id = ? AND process_status = ? AND version = ?", id, models.PROCESS_STATUS_IN_PROCESS, loadedVersion).
		Update("process_status", models.PROCESS_STATUS_READY)
	if res.Error != nil {
		return errors.Wrapf(res.Error, "release subscription %s", id)
	}
	return nil
}

// prepare resolves recipient, message and chain state for the next send.
func (e *Engine) prepare(ctx context.Context, sub *models.Subscription) (delivery, error) {
	var d delivery

	if err := e.db.First(&d.set, sub.MessageSetID).Error; err != nil {
		return d, lookupErr(err, "messageset %d", sub.MessageSetID)
	}

	profile, address, err := e.resolveRecipient(ctx, sub.Identity)
	if err != nil {
		return d, err
	}

	err = e.db.Where("messageset_id = ? AND sequence_number = ? AND lang = ?",
		sub.MessageSetID, sub.NextSequenceNumber, sub.Lang).First(&d.message).Error
	if err != nil {
		return d, lookupErr(err, "message %d/%d/%s", sub.MessageSetID, sub.NextSequenceNumber, sub.Lang)
	}

	audio := e.wantsAudio(d.set, d.message, profile)
	if audio {
		if !d.message.HasBinary() {
			return d, errors.Mark(errors.Newf("message %d has no binary content", d.message.ID), errors.ErrLookup)
		}
		var bin models.BinaryContent
		if err := e.db.First(&bin, *d.message.BinaryContentID).Error; err != nil {
			return d, lookupErr(err, "binary content %d", *d.message.BinaryContentID)
		}
		media := tools.MediaURL(e.conf.PublicDomain, e.conf.UseSSL, e.conf.MediaURL, bin.Content)
		if prepend := sub.Metadata.Prepend(); prepend != "" {
			d.outbound.VoiceSpeechURL = []string{prepend, media}
		} else {
			d.outbound.VoiceSpeechURL = []string{media}
		}
	} else {
		if !d.message.HasText() {
			return d, errors.Mark(errors.Newf("message %d has no text content", d.message.ID), errors.ErrLookup)
		}
		d.outbound.Content = d.message.TextContent
		if prepend := sub.Metadata.Prepend(); prepend != "" {
			d.outbound.Content = prepend + "\n" + d.message.TextContent
		}
	}
	d.outbound.ToAddr = address

	var count int
	if err := e.db.Model(&models.Message{}).
		Where("messageset_id = ? AND lang = ?", sub.MessageSetID, sub.Lang).
		Count(&count).Error; err != nil {
		return d, errors.Wrap(err, "count messages")
	}
	d.count = count

	if d.set.NextSetID != nil && sub.NextSequenceNumber+1 > count {
		var next models.MessageSet
		if err := e.db.First(&next, *d.set.NextSetID).Error; err != nil {
			return d, lookupErr(err, "successor messageset %d", *d.set.NextSetID)
		}
		d.successor = &next
	}
	return d, nil
}

// resolveRecipient follows one communicate_through hop. Address and profile
// come from whoever actually receives the message.
func (e *Engine) resolveRecipient(ctx context.Context, identityID string) (*tools.Identity, string, error) {
	profile, err := e.identity.GetIdentity(ctx, identityID)
	if err != nil {
		return nil, "", e.collaborator("identity_store", err)
	}
	target := identityID
	if through := profile.Through(); through != "" && through != identityID {
		target = through
		profile, err = e.identity.GetIdentity(ctx, target)
		if err != nil {
			return nil, "", e.collaborator("identity_store", err)
		}
	}
	address, err := e.identity.GetDefaultAddress(ctx, target, e.conf.DefaultAddressType)
	if err != nil {
		return nil, "", e.collaborator("identity_store", err)
	}
	return profile, address, nil
}

// wantsAudio picks the delivery format: the set's content type, unless the
// receiving profile prefers the other format and the message carries it.
func (e *Engine) wantsAudio(set models.MessageSet, msg models.Message, profile *tools.Identity) bool {
	switch profile.PreferredMsgType() {
	case models.CONTENT_TYPE_AUDIO:
		if msg.HasBinary() {
			return true
		}
	case models.CONTENT_TYPE_TEXT:
		if msg.HasText() {
			return false
		}
	}
	return set.IsAudio()
}

func lookupErr(err error, format string, args ...any) error {
	if gorm.IsRecordNotFoundError(err) {
		return errors.Mark(errors.Newf(format+" not found", args...), errors.ErrLookup)
	}
	return errors.Wrapf(err, "load "+format, args...)
}
