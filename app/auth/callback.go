package auth

import (
	"bitwise74/course-archive/internal"
	"bitwise74/course-archive/pkg/middleware"
	"bitwise74/course-archive/pkg/validators"
	"crypto/subtle"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// AuthCallback finishes the login started by AuthLogin. Only identities of
// the institution's domain get a session.
func AuthCallback(c *gin.Context, d *internal.Deps) {
	requestID := middleware.RequestID(c)
	loginURL := d.Config.Auth.LoginURL

	state, _ := c.Cookie(stateCookie)
	c.SetCookie(stateCookie, "", -1, "/", "", d.Config.Host.SSLEnabled, true)

	code := c.Query("code")
	if code == "" || state == "" || subtle.ConstantTimeCompare([]byte(state), []byte(c.Query("state"))) != 1 {
		c.Redirect(http.StatusFound, middleware.WithQuery(loginURL, "error", "auth-code-error"))
		return
	}

	id, err := d.Provider.Exchange(c.Request.Context(), code)
	if err != nil {
		c.Redirect(http.StatusFound, middleware.WithQuery(loginURL, "error", "auth-code-error"))

		zap.L().Warn("Failed to exchange oauth code", zap.String("requestID", requestID), zap.Error(err))
		return
	}

	if !validators.InDomain(id.Email, d.Config.Auth.Domain) {
		c.Redirect(http.StatusFound, middleware.WithQuery(loginURL, "error", "domain"))

		zap.L().Info("Refused login from foreign domain", zap.String("requestID", requestID), zap.String("email", id.Email))
		return
	}

	if err := d.Sessions.Start(c, id); err != nil {
		c.Redirect(http.StatusFound, middleware.WithQuery(loginURL, "error", "auth-code-error"))

		zap.L().Error("Failed to start session", zap.String("requestID", requestID), zap.Error(err))
		return
	}

	zap.L().Info("User logged in", zap.String("requestID", requestID), zap.String("email", id.Email))
	c.Redirect(http.StatusFound, "/")
}
