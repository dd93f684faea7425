package controllers

import (
	"net/http"

	"stagebased/errors"
	"stagebased/models"

	"github.com/gin-gonic/gin"
	"github.com/jinzhu/gorm"
)

// GET /api/v1/messageset/
func GetMessageSets(c *gin.Context) {
	db, ok := getDB(c)
	if !ok {
		return
	}
	q := db.Order("short_name asc")
	if v := c.Query("short_name"); v != "" {
		q = q.Where("short_name = ?", v)
	}
	if v := c.Query("content_type"); v != "" {
		q = q.Where("content_type = ?", v)
	}
	items := []models.MessageSet{}
	paginate(c, q, &models.MessageSet{}, &items)
}

// GET /api/v1/messageset/:id/
func GetMessageSetByID(c *gin.Context) {
	id, ok := ParamID(c, "id")
	if !ok {
		return
	}
	db, ok := getDB(c)
	if !ok {
		return
	}
	var set models.MessageSet
	if err := db.First(&set, id).Error; err != nil {
		RespondError(c, "messageset not found", http.StatusNotFound)
		return
	}
	RespondSuccess(c, set)
}

// GET /api/v1/messageset/:id/messages
func GetMessageSetMessages(c *gin.Context) {
	id, ok := ParamID(c, "id")
	if !ok {
		return
	}
	db, ok := getDB(c)
	if !ok {
		return
	}
	q := db.Where("messageset_id = ?", id).Order("lang asc, " + models.MessageOrdering)
	if v := c.Query("lang"); v != "" {
		q = q.Where("lang = ?", v)
	}
	items := []models.Message{}
	paginate(c, q, &models.Message{}, &items)
}

func validateMessageSet(db *gorm.DB, set models.MessageSet) error {
	fe := errors.FieldErrors{}
	if missing := set.MissingFields(); missing != "" {
		fe.Required(missing)
	}
	if set.ContentType != "" && !models.IsValidContentType(set.ContentType) {
		fe.Add("content_type", "\""+set.ContentType+"\" is not a valid choice.")
	}
	if set.DefaultScheduleID != 0 && db.First(&models.Schedule{}, set.DefaultScheduleID).RecordNotFound() {
		fe.Add("default_schedule", "Invalid pk - object does not exist.")
	}
	if set.NextSetID != nil && db.First(&models.MessageSet{}, *set.NextSetID).RecordNotFound() {
		fe.Add("next_set", "Invalid pk - object does not exist.")
	}
	return fe.Err()
}

// POST /api/v1/messageset/
func CreateMessageSet(c *gin.Context) {
	var set models.MessageSet
	if err := c.ShouldBindJSON(&set); err != nil {
		RespondError(c, err.Error(), http.StatusBadRequest)
		return
	}
	db, ok := getDB(c)
	if !ok {
		return
	}
	set.ID = 0
	if err := validateMessageSet(db, set); err != nil {
		RespondValidation(c, err)
		return
	}
	if err := db.Create(&set).Error; err != nil {
		RespondStoreError(c, err)
		return
	}
	RespondCreated(c, set)
}

// PUT|PATCH /api/v1/messageset/:id/
func UpdateMessageSet(c *gin.Context) {
	id, ok := ParamID(c, "id")
	if !ok {
		return
	}
	db, ok := getDB(c)
	if !ok {
		return
	}
	var set models.MessageSet
	if err := db.First(&set, id).Error; err != nil {
		RespondError(c, "messageset not found", http.StatusNotFound)
		return
	}
	if err := c.ShouldBindJSON(&set); err != nil {
		RespondError(c, err.Error(), http.StatusBadRequest)
		return
	}
	set.ID = id
	if err := validateMessageSet(db, set); err != nil {
		RespondValidation(c, err)
		return
	}
	if err := db.Save(&set).Error; err != nil {
		RespondStoreError(c, err)
		return
	}
	RespondSuccess(c, set)
}

// DELETE /api/v1/messageset/:id/
func DeleteMessageSet(c *gin.Context) {
	id, ok := ParamID(c, "id")
	if !ok {
		return
	}
	db, ok := getDB(c)
	if !ok {
		return
	}
	deleteByID(c, db, &models.MessageSet{}, id)
}

func deleteByID(c *gin.Context, db *gorm.DB, model any, id int64) {
	res := db.Delete(model, "id = ?", id)
	if res.Error != nil {
		RespondError(c, res.Error.Error(), http.StatusBadRequest)
		return
	}
	if res.RowsAffected == 0 {
		RespondError(c, "not found", http.StatusNotFound)
		return
	}
	c.Status(http.StatusNoContent)
}
