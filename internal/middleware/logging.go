package middleware

import (
	"log"
	"time"

	"github.com/gin-gonic/gin"
)

// Logger is a middleware that logs HTTP requests with the caller's scope.
// The query string is left out so tokens passed there never reach the log.
func Logger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path

		c.Next()

		actor := "-"
		if _, ok := c.Get(ScopeContextKey); ok {
			actor = GetScope(c).Actor()
		}

		log.Printf("[%s] %s %s %s %d %v",
			c.Request.Method,
			path,
			c.ClientIP(),
			actor,
			c.Writer.Status(),
			time.Since(start),
		)
	}
}
