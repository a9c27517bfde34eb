package response

import (
	"net/http"

	"github.com/gin-gonic/gin"

	appErrors "github.com/Tech-Dev-Skill/tiger-mind/pkg/errors"
)

// JSON sends a success envelope: {"success": true, "<key>": value, ...}.
func JSON(c *gin.Context, status int, fields gin.H) {
	c.Header("Cache-Control", "no-store")
	c.Header("Pragma", "no-cache")
	body := gin.H{"success": true}
	for k, v := range fields {
		body[k] = v
	}
	c.JSON(status, body)
}

// OK responds with HTTP 200 carrying a single named resource.
func OK(c *gin.Context, key string, value interface{}) {
	JSON(c, http.StatusOK, gin.H{key: value})
}

// Created responds with HTTP 201 Created carrying a single named resource.
func Created(c *gin.Context, key string, value interface{}) {
	JSON(c, http.StatusCreated, gin.H{key: value})
}

// Error sends an error response converting the error to the common structure.
func Error(c *gin.Context, err error) {
	appErr := appErrors.FromError(err)
	c.Header("Cache-Control", "no-store")
	c.Header("Pragma", "no-cache")
	c.AbortWithStatusJSON(appErr.Status, gin.H{"error": appErr.Message, "code": appErr.Code})
}

// NoContent sends a 204 response.
func NoContent(c *gin.Context) {
	c.Status(http.StatusNoContent)
}
