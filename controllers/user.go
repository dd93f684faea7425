package controllers

import (
	"net/http"
	"strings"

	"stagebased/errors"
	"stagebased/models"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

type userTokenRequest struct {
	Email string `json:"email" form:"email"`
}

// POST /api/v1/user/token/
// Creates the user when missing and returns its token; an existing user
// gets the same token back.
func CreateUserToken(c *gin.Context) {
	db, ok := getDB(c)
	if !ok {
		return
	}
	var req userTokenRequest
	if err := c.ShouldBind(&req); err != nil {
		RespondError(c, err.Error(), http.StatusBadRequest)
		return
	}

	email := strings.TrimSpace(req.Email)
	fe := errors.FieldErrors{}
	if email == "" {
		fe.Required("email")
	} else if err := validate.Var(email, "email"); err != nil {
		fe.Add("email", "Enter a valid email address.")
	}
	if err := fe.Err(); err != nil {
		RespondValidation(c, err)
		return
	}

	user, token, err := models.EnsureUserToken(db, email)
	if err != nil {
		RespondError(c, err.Error(), http.StatusInternalServerError)
		return
	}
	workerLog(c).Info().Int64("user_id", user.ID).Msg("user token issued")
	RespondCreated(c, gin.H{"token": token.Key})
}
