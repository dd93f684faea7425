package router

import (
	"net/http"

	"stagebased/controllers"

	"github.com/gin-gonic/gin"
)

// Adminizer blocks access when user is not admin.
func Adminizer() gin.HandlerFunc {
	return func(c *gin.Context) {
		user, ok := controllers.GetUserLogged(c)
		if !ok {
			controllers.RespondError(c, "Authentication credentials were not provided.", http.StatusUnauthorized)
			c.Abort()
			return
		}
		if !user.Admin {
			controllers.RespondError(c, "You do not have permission to perform this action.", http.StatusForbidden)
			c.Abort()
			return
		}
		c.Next()
	}
}
