package controllers

import (
	"net/http"

	"stagebased/errors"

	"github.com/gin-gonic/gin"
)

func RespondError(c *gin.Context, msg string, code int) {
	c.JSON(code, gin.H{"error": msg})
}

func RespondSuccess(c *gin.Context, payload any) {
	c.JSON(200, payload)
}

func RespondCreated(c *gin.Context, payload any) {
	c.JSON(http.StatusCreated, payload)
}

// RespondValidation writes field errors as the response body, or falls back
// to a plain error when err carries none.
func RespondValidation(c *gin.Context, err error) {
	if fe, ok := errors.AsFieldErrors(err); ok {
		c.JSON(http.StatusBadRequest, fe)
		return
	}
	RespondError(c, err.Error(), http.StatusBadRequest)
}

// RespondStoreError maps a write error: validation to 400, anything else 500.
func RespondStoreError(c *gin.Context, err error) {
	if errors.Is(err, errors.ErrValidation) {
		RespondValidation(c, err)
		return
	}
	RespondError(c, err.Error(), http.StatusInternalServerError)
}
