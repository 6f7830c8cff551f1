package api

import (
	"log"
	"time"

	"github.com/gin-gonic/gin"
)

// LatencyMiddleware logs the duration of each request
func LatencyMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		log.Printf("[LATENCY] %s %s %d - %v", c.Request.Method, c.Request.URL.Path, c.Writer.Status(), time.Since(start))
	}
}
