package controllers

import (
	"net/http"
	"strconv"

	dbpkg "stagebased/db"
	"stagebased/workers"

	"github.com/gin-gonic/gin"
	"github.com/jinzhu/gorm"
	"github.com/rs/zerolog"
)

const defaultPageSize = 100
const maxPageSize = 1000

func ParamID(c *gin.Context, name string) (int64, bool) {
	v := c.Param(name)
	if v == "" {
		RespondError(c, name+" is required", http.StatusBadRequest)
		return 0, false
	}
	id, err := strconv.ParseInt(v, 10, 64)
	if err != nil || id <= 0 {
		RespondError(c, name+" is invalid", http.StatusBadRequest)
		return 0, false
	}
	return id, true
}

func getDB(c *gin.Context) (*gorm.DB, bool) {
	db := dbpkg.DBInstance(c)
	if db == nil {
		RespondError(c, "db not configured in context", http.StatusInternalServerError)
		return nil, false
	}
	return db, true
}

func getEngine(c *gin.Context) (*workers.Engine, bool) {
	e := workers.EngineInstance(c)
	if e == nil {
		RespondError(c, "engine not configured in context", http.StatusInternalServerError)
		return nil, false
	}
	return e, true
}

// paginate counts q, then loads one limit/offset page of it into out and
// writes {count, results}.
func paginate(c *gin.Context, q *gorm.DB, model any, out any) {
	limit := defaultPageSize
	if v, err := strconv.Atoi(c.Query("limit")); err == nil && v > 0 {
		limit = v
	}
	if limit > maxPageSize {
		limit = maxPageSize
	}
	offset := 0
	if v, err := strconv.Atoi(c.Query("offset")); err == nil && v > 0 {
		offset = v
	}

	var count int
	if err := q.Model(model).Count(&count).Error; err != nil {
		RespondError(c, err.Error(), http.StatusBadRequest)
		return
	}
	if err := q.Limit(limit).Offset(offset).Find(out).Error; err != nil {
		RespondError(c, err.Error(), http.StatusBadRequest)
		return
	}
	RespondSuccess(c, gin.H{"count": count, "results": out})
}

// boolQuery reads "true"/"false"/"1"/"0" style filters; ok is false when the
// parameter is absent or unparsable.
func boolQuery(c *gin.Context, name string) (bool, bool) {
	v, present := c.GetQuery(name)
	if !present {
		return false, false
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, false
	}
	return b, true
}

var nopLogger = zerolog.Nop()

func workerLog(c *gin.Context) *zerolog.Logger {
	if e := workers.EngineInstance(c); e != nil {
		return e.Logger()
	}
	return &nopLogger
}
