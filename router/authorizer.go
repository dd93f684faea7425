package router

import (
	"stagebased/controllers"

	"github.com/gin-gonic/gin"
)

// Authorizer guards the API with the configured static tokens and the
// stored user tokens.
func Authorizer(tokens []string) gin.HandlerFunc {
	return controllers.TokenRequired(tokens)
}
