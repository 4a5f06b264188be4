package auth

import (
	"bitwise74/course-archive/internal"
	"bitwise74/course-archive/pkg/middleware"
	"net/http"

	"github.com/gin-gonic/gin"
)

// AuthMe returns the identity behind the current session
func AuthMe(c *gin.Context, d *internal.Deps) {
	who, ok := middleware.Identity(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{
			"error":     "Please log in to continue",
			"requestID": middleware.RequestID(c),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"email":     who.Email,
		"name":      who.DisplayName(),
		"moderator": d.Config.IsModerator(who.Email),
	})
}
