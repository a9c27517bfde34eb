package handler

import (
	"bytes"
	"net/http/httptest"

	"github.com/gin-gonic/gin"

	"github.com/Tech-Dev-Skill/tiger-mind/internal/middleware"
	"github.com/Tech-Dev-Skill/tiger-mind/internal/models"
)

func newTestContext(method, path string, body []byte, contentType string) (*gin.Context, *httptest.ResponseRecorder) {
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req := httptest.NewRequest(method, path, bytes.NewReader(body))
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	c.Request = req
	return c, w
}

func asUser(c *gin.Context, id string, role models.Role) {
	c.Set(middleware.ContextUserKey, &models.JWTClaims{UserID: id, Role: role, Email: id + "@example.com", FullName: "Test " + id})
}

func acceptJSON(c *gin.Context) {
	c.Request.Header.Set("Accept", "application/json")
}

