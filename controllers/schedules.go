package controllers

import (
	"net/http"

	"stagebased/models"

	"github.com/gin-gonic/gin"
)

// GET /api/v1/schedule/
func GetSchedules(c *gin.Context) {
	db, ok := getDB(c)
	if !ok {
		return
	}
	items := []models.Schedule{}
	paginate(c, db.Order(models.ScheduleOrdering), &models.Schedule{}, &items)
}

// GET /api/v1/schedule/:id/
func GetScheduleByID(c *gin.Context) {
	id, ok := ParamID(c, "id")
	if !ok {
		return
	}
	db, ok := getDB(c)
	if !ok {
		return
	}
	var s models.Schedule
	if err := db.First(&s, id).Error; err != nil {
		RespondError(c, "schedule not found", http.StatusNotFound)
		return
	}
	RespondSuccess(c, s)
}

// POST /api/v1/schedule/
func CreateSchedule(c *gin.Context) {
	var s models.Schedule
	if err := c.ShouldBindJSON(&s); err != nil {
		RespondError(c, err.Error(), http.StatusBadRequest)
		return
	}
	db, ok := getDB(c)
	if !ok {
		return
	}
	s.ID = 0
	if err := db.Create(&s).Error; err != nil {
		RespondStoreError(c, err)
		return
	}
	RespondCreated(c, s)
}

// PUT|PATCH /api/v1/schedule/:id/
func UpdateSchedule(c *gin.Context) {
	id, ok := ParamID(c, "id")
	if !ok {
		return
	}
	db, ok := getDB(c)
	if !ok {
		return
	}
	var s models.Schedule
	if err := db.First(&s, id).Error; err != nil {
		RespondError(c, "schedule not found", http.StatusNotFound)
		return
	}
	if err := c.ShouldBindJSON(&s); err != nil {
		RespondError(c, err.Error(), http.StatusBadRequest)
		return
	}
	s.ID = id
	if err := db.Save(&s).Error; err != nil {
		RespondStoreError(c, err)
		return
	}
	RespondSuccess(c, s)
}

// DELETE /api/v1/schedule/:id/
func DeleteSchedule(c *gin.Context) {
	id, ok := ParamID(c, "id")
	if !ok {
		return
	}
	db, ok := getDB(c)
	if !ok {
		return
	}
	deleteByID(c, db, &models.Schedule{}, id)
}
