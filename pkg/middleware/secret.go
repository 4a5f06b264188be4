package middleware

import (
	"crypto/subtle"
	"net/http"

	"github.com/gin-gonic/gin"
)

// NewSecretMiddleware only lets through requests whose "secret" header equals
// secret. It runs before the body is touched so a rejected caller can't make
// the server read an upload.
func NewSecretMiddleware(secret string) gin.HandlerFunc {
	want := []byte(secret)

	return func(c *gin.Context) {
		got := []byte(c.GetHeader("secret"))

		if len(want) == 0 || subtle.ConstantTimeCompare(got, want) != 1 {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error":     "Unauthorized",
				"requestID": RequestID(c),
			})
			return
		}

		c.Next()
	}
}
