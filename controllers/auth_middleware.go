package controllers

import (
	"crypto/subtle"
	"net/http"
	"strings"

	dbpkg "stagebased/db"
	"stagebased/models"

	"github.com/gin-gonic/gin"
)

const ctxUserKey = "auth_user"

// serviceUser is the principal of a configured static token.
var serviceUser = models.User{Email: "service", Admin: true}

// TokenRequired accepts "Authorization: Token <t>" or "Bearer <t>" where t
// is one of the static tokens or a stored user token, and puts the caller
// in the context. Requests without valid credentials are always refused.
func TokenRequired(tokens []string) gin.HandlerFunc {
	accepted := make([][]byte, 0, len(tokens))
	for _, t := range tokens {
		if t = strings.TrimSpace(t); t != "" {
			accepted = append(accepted, []byte(t))
		}
	}
	return func(c *gin.Context) {
		token, ok := bearer(c.GetHeader("Authorization"))
		if !ok {
			RespondError(c, "Authentication credentials were not provided.", http.StatusUnauthorized)
			c.Abort()
			return
		}
		for _, a := range accepted {
			if subtle.ConstantTimeCompare(a, []byte(token)) == 1 {
				c.Set(ctxUserKey, serviceUser)
				c.Next()
				return
			}
		}
		if db := dbpkg.DBInstance(c); db != nil {
			if user, found := models.UserByToken(db, token); found {
				c.Set(ctxUserKey, user)
				c.Next()
				return
			}
		}
		RespondError(c, "Invalid token.", http.StatusUnauthorized)
		c.Abort()
	}
}

// GetUserLogged returns the caller put in the context by TokenRequired.
func GetUserLogged(c *gin.Context) (models.User, bool) {
	v, ok := c.Get(ctxUserKey)
	if !ok {
		return models.User{}, false
	}
	user, ok := v.(models.User)
	return user, ok
}

func bearer(header string) (string, bool) {
	scheme, token, found := strings.Cut(strings.TrimSpace(header), " ")
	if !found {
		return "", false
	}
	switch strings.ToLower(scheme) {
	case "token", "bearer":
		token = strings.TrimSpace(token)
		return token, token != ""
	}
	return "", false
}
