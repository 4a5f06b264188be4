// Package auth handles logging in through the identity provider
package auth

import (
	"bitwise74/course-archive/internal"
	"bitwise74/course-archive/pkg/middleware"
	"net/http"

	"github.com/gin-gonic/gin"
	gonanoid "github.com/matoous/go-nanoid/v2"
	"go.uber.org/zap"
)

const (
	stateCookie = "oauth_state"
	stateTTL    = 10 * 60
)

// AuthLogin sends the browser to the identity provider
func AuthLogin(c *gin.Context, d *internal.Deps) {
	requestID := middleware.RequestID(c)

	state, err := gonanoid.New(32)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":     "Internal server error",
			"requestID": requestID,
		})

		zap.L().Error("Failed to generate oauth state", zap.String("requestID", requestID), zap.Error(err))
		return
	}

	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(stateCookie, state, stateTTL, "/", "", d.Config.Host.SSLEnabled, true)
	c.Redirect(http.StatusFound, d.Provider.AuthCodeURL(state))
}
