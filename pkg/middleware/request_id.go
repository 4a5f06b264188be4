// Package middleware contains any custom middleware used in the app
package middleware

import (
	"github.com/gin-gonic/gin"
	gonanoid "github.com/matoous/go-nanoid/v2"
)

const requestIDCharset = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// NewRequestIDMiddleware returns a new middleware function that generates a request ID for
// each incoming request and sets it as requestID. The ID is echoed in the
// X-Request-Id response header so users can quote it.
func NewRequestIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := gonanoid.Generate(requestIDCharset, 12)
		if err != nil {
			id = gonanoid.Must(12)
		}

		c.Set("requestID", id)
		c.Header("X-Request-Id", id)
		c.Next()
	}
}

// RequestID returns the id set by NewRequestIDMiddleware, or "" when the
// middleware didn't run
func RequestID(c *gin.Context) string {
	return c.GetString("requestID")
}
