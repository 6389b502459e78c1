package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// Checker reports whether a named resource exists
type Checker func(name string) bool

// RequireKnown rejects requests whose path parameter names an unknown
// resource before they reach the handler.
func RequireKnown(param string, known Checker, what string) gin.HandlerFunc {
	return func(c *gin.Context) {
		name := c.Param(param)
		if name == "" {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "missing " + what})
			return
		}
		if !known(name) {
			c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": what + " not found"})
			return
		}
		c.Next()
	}
}
