package utils

import "github.com/gin-gonic/gin"

// Success writes a 200 response with success=true merged into the payload.
func Success(c *gin.Context, data gin.H) {
	out := gin.H{"success": true}
	for k, v := range data {
		out[k] = v
	}
	c.JSON(200, out)
}

// Error writes a failure response with the given status code.
func Error(c *gin.Context, code int, msg string) {
	c.JSON(code, gin.H{
		"success": false,
		"error":   msg,
	})
}
