package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// GET /api/metrics/
func GetMetrics(c *gin.Context) {
	e, ok := getEngine(c)
	if !ok {
		return
	}
	names, err := e.AvailableMetrics()
	if err != nil {
		RespondError(c, err.Error(), http.StatusInternalServerError)
		return
	}
	RespondSuccess(c, gin.H{"metrics_available": names})
}

// POST /api/metrics/
func PostMetrics(c *gin.Context) {
	e, ok := getEngine(c)
	if !ok {
		return
	}
	if err := e.EnqueueScheduledMetrics(c.Request.Context()); err != nil {
		workerLog(c).Warn().Err(err).Msg("scheduled metrics failed")
	}
	RespondCreated(c, gin.H{"scheduled_metrics_initiated": true})
}
