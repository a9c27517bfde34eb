package middleware

import (
	"github.com/gin-gonic/gin"
)

// CacheStatusHeader reports whether a response was served from cache.
const CacheStatusHeader = "X-Cache"

// SetCacheHit marks the response as a cache HIT or MISS. Call before writing the body.
func SetCacheHit(c *gin.Context, hit bool) {
	if hit {
		c.Header(CacheStatusHeader, "HIT")
		return
	}
	c.Header(CacheStatusHeader, "MISS")
}
