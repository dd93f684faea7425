package controllers

import (
	"net/http"
	"os"
	"path/filepath"
	"time"

	"stagebased/models"
	"stagebased/tools"
	"stagebased/workers"

	"github.com/gin-gonic/gin"
)

type binaryContentResponse struct {
	models.BinaryContent
	URL string `json:"url"`
}

func withURL(c *gin.Context, b models.BinaryContent) binaryContentResponse {
	out := binaryContentResponse{BinaryContent: b}
	if e := workers.EngineInstance(c); e != nil {
		conf := e.Config()
		out.URL = tools.MediaURL(conf.PublicDomain, conf.UseSSL, conf.MediaURL, b.Content)
	}
	return out
}

// GET /api/v1/binarycontent/
func GetBinaryContents(c *gin.Context) {
	db, ok := getDB(c)
	if !ok {
		return
	}
	items := []models.BinaryContent{}
	paginate(c, db.Order("id asc"), &models.BinaryContent{}, &items)
}

// GET /api/v1/binarycontent/:id/
func GetBinaryContentByID(c *gin.Context) {
	id, ok := ParamID(c, "id")
	if !ok {
		return
	}
	db, ok := getDB(c)
	if !ok {
		return
	}
	var b models.BinaryContent
	if err := db.First(&b, id).Error; err != nil {
		RespondError(c, "binary content not found", http.StatusNotFound)
		return
	}
	RespondSuccess(c, withURL(c, b))
}

// POST /api/v1/binarycontent/ (multipart, file field "content")
func CreateBinaryContent(c *gin.Context) {
	e, ok := getEngine(c)
	if !ok {
		return
	}
	file, err := c.FormFile("content")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"content": []string{"No file was submitted."}})
		return
	}

	name := models.GenerateFilename(file.Filename, time.Now())
	root := e.Config().MediaRoot
	if err := os.MkdirAll(root, 0o755); err != nil {
		RespondError(c, err.Error(), http.StatusInternalServerError)
		return
	}
	if err := c.SaveUploadedFile(file, filepath.Join(root, name)); err != nil {
		RespondError(c, err.Error(), http.StatusInternalServerError)
		return
	}

	b := models.BinaryContent{Content: name}
	if err := e.DB().Create(&b).Error; err != nil {
		RespondStoreError(c, err)
		return
	}
	RespondCreated(c, withURL(c, b))
}

// DELETE /api/v1/binarycontent/:id/
func DeleteBinaryContent(c *gin.Context) {
	id, ok := ParamID(c, "id")
	if !ok {
		return
	}
	e, ok := getEngine(c)
	if !ok {
		return
	}
	var b models.BinaryContent
	if err := e.DB().First(&b, id).Error; err != nil {
		RespondError(c, "binary content not found", http.StatusNotFound)
		return
	}
	if err := e.DB().Delete(&b).Error; err != nil {
		RespondError(c, err.Error(), http.StatusBadRequest)
		return
	}
	_ = os.Remove(filepath.Join(e.Config().MediaRoot, b.Filename()))
	c.Status(http.StatusNoContent)
}
