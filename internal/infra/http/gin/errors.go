package ginserver

import (
	gin "github.com/gin-gonic/gin"
)

// abortDetail ends the request with the {"detail": ...} error body clients expect.
func abortDetail(c *gin.Context, status int, detail string) {
	c.AbortWithStatusJSON(status, gin.H{"detail": detail})
}
