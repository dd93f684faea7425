package controllers

import (
	"encoding/json"
	"net/http"
	"strings"

	"stagebased/errors"
	"stagebased/models"
	"stagebased/workers"

	"github.com/gin-gonic/gin"
	"github.com/jinzhu/gorm"
)

// GET /api/v1/subscriptions/
func GetSubscriptions(c *gin.Context) {
	db, ok := getDB(c)
	if !ok {
		return
	}

	q := db.Order("created_at asc")
	if v := c.Query("identity"); v != "" {
		q = q.Where("identity = ?", v)
	}
	if v := c.Query("messageset_id"); v != "" {
		q = q.Where("messageset_id = ?", v)
	} else if v := c.Query("messageset"); v != "" {
		q = q.Where("messageset_id = ?", v)
	}
	if v := c.Query("lang"); v != "" {
		q = q.Where("lang = ?", v)
	}
	if v := c.Query("schedule"); v != "" {
		q = q.Where("schedule_id = ?", v)
	}
	if v := c.Query("process_status"); v != "" {
		q = q.Where("process_status = ?", v)
	}
	if b, ok := boolQuery(c, "active"); ok {
		q = q.Where("active = ?", b)
	}
	if b, ok := boolQuery(c, "completed"); ok {
		q = q.Where("completed = ?", b)
	}
	if v := c.Query("metadata"); v != "" {
		var err error
		if q, err = filterMetadata(q, v); err != nil {
			RespondError(c, err.Error(), http.StatusBadRequest)
			return
		}
	}

	subs := []models.Subscription{}
	paginate(c, q, &models.Subscription{}, &subs)
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// filterMetadata keeps subscriptions whose metadata holds every key/value
// pair of the JSON object raw. Metadata is stored as compact JSON, so each
// pair is matched as a substring of the column.
func filterMetadata(q *gorm.DB, raw string) (*gorm.DB, error) {
	var want map[string]any
	if err := json.Unmarshal([]byte(raw), &want); err != nil {
		return q, errors.New("metadata must be a JSON object")
	}
	for k, v := range want {
		pair, err := json.Marshal(map[string]any{k: v})
		if err != nil {
			return q, errors.Wrap(err, "encode metadata filter")
		}
		inner := string(pair[1 : len(pair)-1])
		q = q.Where(`metadata LIKE ? ESCAPE '\'`, "%"+likeEscaper.Replace(inner)+"%")
	}
	return q, nil
}

// GET /api/v1/subscriptions/:id/
func GetSubscriptionByID(c *gin.Context) {
	db, ok := getDB(c)
	if !ok {
		return
	}
	var sub models.Subscription
	if err := db.Where("id = ?", c.Param("id")).First(&sub).Error; err != nil {
		RespondError(c, "subscription not found", http.StatusNotFound)
		return
	}
	RespondSuccess(c, sub)
}

// POST /api/v1/subscriptions/
func CreateSubscription(c *gin.Context) {
	sub := models.Subscription{Active: true}
	if err := c.ShouldBindJSON(&sub); err != nil {
		RespondError(c, err.Error(), http.StatusBadRequest)
		return
	}
	created, err := storeSubscription(c, sub)
	if err != nil {
		return
	}
	RespondCreated(c, created)
}

// storeSubscription validates and creates sub, then runs its creation
// effects. It writes the error response itself.
func storeSubscription(c *gin.Context, sub models.Subscription) (models.Subscription, error) {
	e, ok := getEngine(c)
	if !ok {
		return sub, errors.New("no engine")
	}
	db := e.DB()

	sub.ID = ""
	sub.Completed = false
	sub.ProcessStatus = models.PROCESS_STATUS_READY
	sub.Version = 0
	sub.ApplyDefaults()

	if sub.ScheduleID == 0 && sub.MessageSetID != 0 {
		var set models.MessageSet
		if err := db.First(&set, sub.MessageSetID).Error; err == nil {
			sub.ScheduleID = set.DefaultScheduleID
		}
	}
	if err := validateReferences(db, sub); err != nil {
		RespondValidation(c, err)
		return sub, err
	}

	if err := db.Create(&sub).Error; err != nil {
		RespondStoreError(c, err)
		return sub, err
	}
	if err := e.Apply(c.Request.Context(), sub.Created()); err != nil {
		workerLog(c).Warn().Err(err).Str("subscription_id", sub.ID).Msg("creation effects failed")
	}
	return sub, nil
}

func validateReferences(db *gorm.DB, sub models.Subscription) error {
	fe := errors.FieldErrors{}
	if err := sub.Validate(); err != nil {
		if got, ok := errors.AsFieldErrors(err); ok {
			fe = got
		}
	}
	if _, bad := fe["messageset"]; !bad && sub.MessageSetID != 0 {
		if db.First(&models.MessageSet{}, sub.MessageSetID).RecordNotFound() {
			fe.Add("messageset", "Invalid pk - object does not exist.")
		}
	}
	if _, bad := fe["schedule"]; !bad && sub.ScheduleID != 0 {
		if db.First(&models.Schedule{}, sub.ScheduleID).RecordNotFound() {
			fe.Add("schedule", "Invalid pk - object does not exist.")
		}
	}
	return fe.Err()
}

// PATCH /api/v1/subscriptions/:id/
func UpdateSubscription(c *gin.Context) {
	e, ok := getEngine(c)
	if !ok {
		return
	}
	db := e.DB()

	var sub models.Subscription
	if err := db.Where("id = ?", c.Param("id")).First(&sub).Error; err != nil {
		RespondError(c, "subscription not found", http.StatusNotFound)
		return
	}
	if sub.ProcessStatus == models.PROCESS_STATUS_IN_PROCESS {
		RespondError(c, "subscription is being dispatched, try again", http.StatusConflict)
		return
	}
	before := sub
	if err := c.ShouldBindJSON(&sub); err != nil {
		RespondError(c, err.Error(), http.StatusBadRequest)
		return
	}
	sub.ID = before.ID
	sub.CreatedAt = before.CreatedAt
	sub.Version = before.Version
	if sub.ProcessStatus == models.PROCESS_STATUS_IN_PROCESS {
		sub.ProcessStatus = before.ProcessStatus
	}

	// active toggles go through the state machine for their schedule effects
	wantActive := sub.Active
	sub.Active = before.Active
	var effects []models.Effect
	if wantActive && !sub.Active {
		effects = sub.Activate()
	} else if !wantActive && sub.Active {
		effects = sub.Deactivate()
	} else {
		sub.Version++
	}

	if err := validateReferences(db, sub); err != nil {
		RespondValidation(c, err)
		return
	}
	res := db.Model(&models.Subscription{}).
		Where("id = ? AND version = ? AND process_status <> ?", before.ID, before.Version, models.PROCESS_STATUS_IN_PROCESS).
		Updates(map[string]any{
			"identity":             sub.Identity,
			"messageset_id":        sub.MessageSetID,
			"next_sequence_number": sub.NextSequenceNumber,
			"lang":                 sub.Lang,
			"active":               sub.Active,
			"completed":            sub.Completed,
			"schedule_id":          sub.ScheduleID,
			"process_status":       sub.ProcessStatus,
			"version":              sub.Version,
			"metadata":             sub.Metadata,
		})
	if res.Error != nil {
		RespondStoreError(c, res.Error)
		return
	}
	if res.RowsAffected == 0 {
		RespondError(c, "subscription changed while updating, reload and try again", http.StatusConflict)
		return
	}
	if err := e.Apply(c.Request.Context(), effects); err != nil {
		workerLog(c).Warn().Err(err).Str("subscription_id", sub.ID).Msg("update effects failed")
	}
	RespondSuccess(c, sub)
}

// DELETE /api/v1/subscriptions/:id/
func DeleteSubscription(c *gin.Context) {
	db, ok := getDB(c)
	if !ok {
		return
	}
	res := db.Where("id = ?", c.Param("id")).Delete(&models.Subscription{})
	if res.Error != nil {
		RespondError(c, res.Error.Error(), http.StatusBadRequest)
		return
	}
	if res.RowsAffected == 0 {
		RespondError(c, "subscription not found", http.StatusNotFound)
		return
	}
	c.Status(http.StatusNoContent)
}

// POST /api/v1/subscriptions/:id/send
func SendSubscription(c *gin.Context) {
	e, ok := getEngine(c)
	if !ok {
		return
	}
	id := c.Param("id")
	if e.DB().Where("id = ?", id).First(&models.Subscription{}).RecordNotFound() {
		c.JSON(http.StatusBadRequest, gin.H{"accepted": false, "reason": "Missing subscription in control"})
		return
	}

	err := e.EnqueueSendNextMessage(c.Request.Context(), id)
	if errors.IsAny(err, workers.ErrQueueFull, workers.ErrQueueStopped) {
		RespondError(c, err.Error(), http.StatusServiceUnavailable)
		return
	}
	if err != nil {
		// the dispatch ran inline and its outcome is recorded on the subscription
		workerLog(c).Warn().Err(err).Str("subscription_id", id).Msg("dispatch failed")
	}
	RespondCreated(c, gin.H{"accepted": true})
}
