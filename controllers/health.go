package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// GET /api/health/
func Health(c *gin.Context) {
	db, ok := getDB(c)
	if !ok {
		return
	}
	if err := db.DB().PingContext(c.Request.Context()); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"up": false, "result": gin.H{"database": "Inaccessible"}})
		return
	}
	RespondSuccess(c, gin.H{"up": true, "result": gin.H{"database": "Accessible"}})
}
