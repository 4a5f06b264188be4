package middleware

import (
	"bitwise74/course-archive/internal/model"
	"bitwise74/course-archive/internal/session"
	"bitwise74/course-archive/pkg/validators"
	"net/http"
	"net/url"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const identityKey = "identity"

// NewAccessGate resolves the session of every request and lets it through
// only when the email belongs to domain. Browser navigations are redirected
// to loginURL, API calls get a JSON error. A session from a foreign domain
// is terminated on the spot.
//
// The gate only decides who gets to see pages. Handlers behind it still check
// ownership themselves.
func NewAccessGate(r session.Resolver, domain, loginURL string) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := r.Resolve(c)
		if err != nil {
			if navigation(c) {
				c.Redirect(http.StatusFound, loginURL)
				c.Abort()
				return
			}

			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error":     "Please log in to continue",
				"requestID": RequestID(c),
			})
			return
		}

		if !validators.InDomain(id.Email, domain) {
			zap.L().Info("Rejected session from foreign domain",
				zap.String("email", id.Email),
				zap.String("requestID", RequestID(c)),
			)

			r.Terminate(c)

			if navigation(c) {
				c.Redirect(http.StatusFound, WithQuery(loginURL, "error", "domain"))
				c.Abort()
				return
			}

			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
				"error":     "Please use your institute email address",
				"requestID": RequestID(c),
			})
			return
		}

		c.Set(identityKey, id)
		c.Next()
	}
}

// Identity returns the identity stored by the access gate
func Identity(c *gin.Context) (*model.Identity, bool) {
	v, ok := c.Get(identityKey)
	if !ok {
		return nil, false
	}

	id, ok := v.(*model.Identity)
	return id, ok && id != nil
}

func navigation(c *gin.Context) bool {
	return c.Request.Method == http.MethodGet &&
		strings.Contains(c.GetHeader("Accept"), "text/html")
}

// WithQuery sets key=value in the query of raw, e.g. the login page with an
// error indicator. raw is returned unchanged when it doesn't parse.
func WithQuery(raw, key, value string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return raw
	}

	q := u.Query()
	q.Set(key, value)
	u.RawQuery = q.Encode()

	return u.String()
}
