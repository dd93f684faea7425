package controllers

import (
	"net/http"

	"stagebased/models"

	"github.com/gin-gonic/gin"
)

// GET /api/v1/message/
func GetMessages(c *gin.Context) {
	db, ok := getDB(c)
	if !ok {
		return
	}
	q := db.Order("messageset_id asc, " + models.MessageOrdering)
	if v := c.Query("messageset"); v != "" {
		q = q.Where("messageset_id = ?", v)
	}
	if v := c.Query("lang"); v != "" {
		q = q.Where("lang = ?", v)
	}
	items := []models.Message{}
	paginate(c, q, &models.Message{}, &items)
}

// GET /api/v1/message/:id/
func GetMessageByID(c *gin.Context) {
	id, ok := ParamID(c, "id")
	if !ok {
		return
	}
	db, ok := getDB(c)
	if !ok {
		return
	}
	var m models.Message
	if err := db.First(&m, id).Error; err != nil {
		RespondError(c, "message not found", http.StatusNotFound)
		return
	}
	RespondSuccess(c, m)
}

// POST /api/v1/message/
func CreateMessage(c *gin.Context) {
	var m models.Message
	if err := c.ShouldBindJSON(&m); err != nil {
		RespondError(c, err.Error(), http.StatusBadRequest)
		return
	}
	db, ok := getDB(c)
	if !ok {
		return
	}
	m.ID = 0
	if err := m.Validate(); err != nil {
		RespondValidation(c, err)
		return
	}
	if db.First(&models.MessageSet{}, m.MessageSetID).RecordNotFound() {
		c.JSON(http.StatusBadRequest, gin.H{"messageset": []string{"Invalid pk - object does not exist."}})
		return
	}
	if err := db.Create(&m).Error; err != nil {
		RespondStoreError(c, err)
		return
	}
	RespondCreated(c, m)
}

// PUT|PATCH /api/v1/message/:id/
func UpdateMessage(c *gin.Context) {
	id, ok := ParamID(c, "id")
	if !ok {
		return
	}
	db, ok := getDB(c)
	if !ok {
		return
	}
	var m models.Message
	if err := db.First(&m, id).Error; err != nil {
		RespondError(c, "message not found", http.StatusNotFound)
		return
	}
	if err := c.ShouldBindJSON(&m); err != nil {
		RespondError(c, err.Error(), http.StatusBadRequest)
		return
	}
	m.ID = id
	if err := db.Save(&m).Error; err != nil {
		RespondStoreError(c, err)
		return
	}
	RespondSuccess(c, m)
}

// DELETE /api/v1/message/:id/
func DeleteMessage(c *gin.Context) {
	id, ok := ParamID(c, "id")
	if !ok {
		return
	}
	db, ok := getDB(c)
	if !ok {
		return
	}
	deleteByID(c, db, &models.Message{}, id)
}
