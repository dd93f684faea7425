package workers

import "github.com/gin-gonic/gin"

const engineKey = "engine"

func SetEngineToContext(e *Engine) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set(engineKey, e)
		c.Next()
	}
}

func EngineInstance(c *gin.Context) *Engine {
	v, ok := c.Get(engineKey)
	if !ok {
		return nil
	}
	e, _ := v.(*Engine)
	return e
}
