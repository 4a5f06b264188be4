// Package session issues and resolves the signed cookie that carries a
// logged in user's identity between requests
package session

import (
	"bitwise74/course-archive/config"
	"bitwise74/course-archive/internal/model"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrNoSession      = errors.New("no session")
	ErrInvalidSession = errors.New("session invalid or expired")
)

const tokenType = "session"

// Resolver finds the identity behind a request. Handlers get one injected
// instead of reaching for a shared client.
type Resolver interface {
	Resolve(c *gin.Context) (*model.Identity, error)
	Terminate(c *gin.Context)
}

// Service is a Resolver that can also start sessions
type Service interface {
	Resolver
	Start(c *gin.Context, id *model.Identity) error
}

// Manager keeps sessions in HS256 signed JWTs
type Manager struct {
	secret []byte
	ttl    time.Duration
	cookie string
	secure bool
	now    func() time.Time
}

func NewManager(cfg config.SessionConfig, secure bool) *Manager {
	cookie := cfg.CookieName
	if cookie == "" {
		cookie = "auth_token"
	}

	return &Manager{
		secret: []byte(cfg.Secret),
		ttl:    cfg.TTL,
		cookie: cookie,
		secure: secure,
		now:    time.Now,
	}
}

// Issue signs a session token for id
func (m *Manager) Issue(id *model.Identity) (string, error) {
	if id == nil || id.Email == "" {
		return "", errors.New("identity without email")
	}

	now := m.now()
	t := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"email": id.Email,
		"name":  id.Name,
		"type":  tokenType,
		"iat":   now.Unix(),
		"exp":   now.Add(m.ttl).Unix(),
	})

	return t.SignedString(m.secret)
}

// Parse validates a token and returns the identity inside it
func (m *Manager) Parse(tokenStr string) (*model.Identity, error) {
	token, err := jwt.Parse(tokenStr, func(t *jwt.Token) (any, error) {
		if t.Method.Alg() != jwt.SigningMethodHS256.Alg() {
			return nil, fmt.Errorf("unexpected signing method: %s", t.Method.Alg())
		}

		return m.secret, nil
	}, jwt.WithTimeFunc(m.now), jwt.WithExpirationRequired())
	if err != nil || !token.Valid {
		return nil, ErrInvalidSession
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return nil, ErrInvalidSession
	}

	if typ, _ := claims["type"].(string); typ != tokenType {
		return nil, ErrInvalidSession
	}

	email, _ := claims["email"].(string)
	if email == "" {
		return nil, ErrInvalidSession
	}

	name, _ := claims["name"].(string)
	return &model.Identity{Email: email, Name: name}, nil
}

// Start issues a token for id and sets it as an http-only cookie
func (m *Manager) Start(c *gin.Context, id *model.Identity) error {
	token, err := m.Issue(id)
	if err != nil {
		return err
	}

	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(m.cookie, token, int(m.ttl.Seconds()), "/", "", m.secure, true)
	return nil
}

// Resolve reads the session from the cookie, falling back to a bearer token
// for non-browser clients
func (m *Manager) Resolve(c *gin.Context) (*model.Identity, error) {
	tokenStr, err := c.Cookie(m.cookie)
	if err != nil || tokenStr == "" {
		h := c.GetHeader("Authorization")
		if !strings.HasPrefix(h, "Bearer ") {
			return nil, ErrNoSession
		}

		tokenStr = strings.TrimPrefix(h, "Bearer ")
	}

	return m.Parse(tokenStr)
}

// Terminate expires the session cookie
func (m *Manager) Terminate(c *gin.Context) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(m.cookie, "", -1, "/", "", m.secure, true)
}
