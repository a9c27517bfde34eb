package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func TestSetCacheHitWritesHeader(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.GET("/cached/:hit", func(c *gin.Context) {
		SetCacheHit(c, c.Param("hit") == "yes")
		c.Status(http.StatusOK)
	})

	for hit, want := range map[string]string{"yes": "HIT", "no": "MISS"} {
		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/cached/"+hit, nil))
		assert.Equal(t, want, w.Header().Get(CacheStatusHeader), hit)
	}
}
