package handlers

import "github.com/gin-gonic/gin"

// errorResponse writes the API error envelope: {"error":{"code","message"}}.
func errorResponse(c *gin.Context, status int, code, message string) {
	c.JSON(status, gin.H{"error": gin.H{"code": code, "message": message}})
}
