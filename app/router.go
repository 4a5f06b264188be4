// Package app wires every endpoint of the archive into a gin router
package app

import (
	"bitwise74/course-archive/app/auth"
	"bitwise74/course-archive/app/course"
	"bitwise74/course-archive/app/proxy"
	"bitwise74/course-archive/app/relay"
	"bitwise74/course-archive/app/resource"
	"bitwise74/course-archive/app/root"
	"bitwise74/course-archive/internal"
	"bitwise74/course-archive/pkg/metrics"
	"bitwise74/course-archive/pkg/middleware"
	"bitwise74/course-archive/pkg/validators"
	"fmt"
	"time"

	cache "github.com/chenyahui/gin-cache"
	"github.com/chenyahui/gin-cache/persist"
	"github.com/gin-contrib/cors"
	ginzap "github.com/gin-contrib/zap"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Room for the multipart boundaries and text fields around the file
const formOverhead = 1 << 20

func NewRouter(d *internal.Deps) (*gin.Engine, error) {
	cfg := d.Config

	if err := validators.RegisterBindings(); err != nil {
		return nil, fmt.Errorf("failed to register validators, %w", err)
	}

	router := gin.New()

	router.Use(
		cors.New(cors.Config{
			AllowOrigins:     cfg.Host.CORS,
			AllowMethods:     []string{"GET", "HEAD", "POST", "PATCH", "PUT", "DELETE", "OPTIONS"},
			AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization", "TurnstileToken", "Range", "secret"},
			ExposeHeaders:    []string{"Content-Length", "Content-Range", "Content-Disposition", "X-Request-Id"},
			AllowCredentials: true,
			MaxAge:           12 * time.Hour,
		}),
		gin.Recovery(),
		middleware.NewRequestIDMiddleware(),
		metrics.Middleware(),
		ginzap.GinzapWithConfig(zap.L(), &ginzap.Config{
			TimeFormat: "15:04:05.000",
			UTC:        true,
			Skipper: func(c *gin.Context) bool {
				return c.Request.Method == "HEAD"
			},
			Context: func(c *gin.Context) []zapcore.Field {
				fields := []zapcore.Field{}

				if v := c.GetString("requestID"); v != "" {
					fields = append(fields, zap.String("request_id", v))
				}

				if id, ok := middleware.Identity(c); ok {
					fields = append(fields, zap.String("email", id.Email))
				}

				return fields
			},
		}),
	)

	router.HandleMethodNotAllowed = true
	router.RedirectFixedPath = true
	router.MaxMultipartMemory = 8 << 20

	store := persist.NewMemoryStore(time.Minute)
	cacheFor := func(sec int) gin.HandlerFunc {
		if sec <= 0 {
			return func(c *gin.Context) { c.Next() }
		}

		return cache.CacheByRequestURI(store, time.Second*time.Duration(sec))
	}

	gate := middleware.NewAccessGate(d.Sessions, cfg.Auth.Domain, cfg.Auth.LoginURL)
	turnstile := middleware.NewTurnstileMiddleware(middleware.TurnstileConfig{
		Enabled: cfg.Security.TurnstileOn,
		Secret:  cfg.Security.TurnstileSecret,
	})
	limiter := middleware.NewRateLimiter(middleware.RateLimiterConfig{
		RequestsPerSecond: cfg.Security.RateLimit,
		Burst:             cfg.Security.RateLimit * 2,
	})
	d.OnClose(limiter.Stop)
	rateLimiter := limiter.Handler()
	jsonBody := middleware.BodySizeLimiter(1 << 20)

	// GET /metrics			-> Prometheus metrics
	router.GET("/metrics", gin.WrapH(metrics.Handler()))

	m := router.Group("/api")
	{
		// HEAD /api/heartbeat 		-> Used to check if the server is alive
		m.HEAD("/heartbeat", func(c *gin.Context) { root.Heartbeat(c, d) })

		// GET /api/files?path=		-> Streams a stored file from the object store
		m.GET("/files", func(c *gin.Context) { proxy.ProxyFetch(c, d) })
		m.HEAD("/files", func(c *gin.Context) { proxy.ProxyFetch(c, d) })
	}

	r := m.Group("/relay", middleware.NewSecretMiddleware(cfg.Relay.Secret))
	{
		// POST /api/relay		-> Stores an uploaded file and returns its path
		r.POST("", middleware.BodySizeLimiter(cfg.Upload.MaxSize+formOverhead), func(c *gin.Context) { relay.RelayUpload(c, d) })

		// DELETE /api/relay?path=	-> Removes a stored file
		r.DELETE("", func(c *gin.Context) { relay.RelayDelete(c, d) })
	}

	a := m.Group("/auth", rateLimiter)
	{
		// GET /api/auth/login		-> Redirects to the identity provider
		a.GET("/login", func(c *gin.Context) { auth.AuthLogin(c, d) })

		// GET /api/auth/callback	-> Finishes a login and starts the session
		a.GET("/callback", func(c *gin.Context) { auth.AuthCallback(c, d) })

		// POST /api/auth/logout	-> Ends the session
		a.POST("/logout", func(c *gin.Context) { auth.AuthLogout(c, d) })

		// GET /api/auth/me		-> Returns the logged in user
		a.GET("/me", gate, func(c *gin.Context) { auth.AuthMe(c, d) })
	}

	cc := m.Group("/courses", rateLimiter, gate)
	{
		// GET /api/courses?query=	-> Lists courses with their resource counts
		cc.GET("", cacheFor(cfg.Security.CacheTTL), func(c *gin.Context) { course.CourseList(c, d) })

		// PUT /api/courses/:id		-> Creates or renames a course
		cc.PUT("/:id", jsonBody, func(c *gin.Context) { course.CourseUpsert(c, d) })

		// GET /api/courses/:id/resources -> Resources of a course grouped by type
		cc.GET("/:id/resources", func(c *gin.Context) { course.CourseResources(c, d) })
	}

	rr := m.Group("/resources", rateLimiter, gate)
	{
		// GET /api/resources/exists?hash= -> Checks for a visible resource with the same content
		rr.GET("/exists", func(c *gin.Context) { resource.ResourceExists(c, d) })

		// POST /api/resources		-> Adds a stored file to the catalog
		rr.POST("", jsonBody, func(c *gin.Context) { resource.ResourceCreate(c, d) })

		// DELETE /api/resources/:id	-> Deletes a resource uploaded by the caller
		rr.DELETE("/:id", func(c *gin.Context) { resource.ResourceDelete(c, d) })

		// POST /api/resources/:id/upvote -> Upvotes a resource once
		rr.POST("/:id/upvote", func(c *gin.Context) { resource.ResourceUpvote(c, d) })

		// POST /api/resources/:id/report -> Reports a resource once
		rr.POST("/:id/report", turnstile, func(c *gin.Context) { resource.ResourceReport(c, d) })

		// PATCH /api/resources/:id/visibility -> Hides or restores a resource
		rr.PATCH("/:id/visibility", jsonBody, func(c *gin.Context) { resource.ResourceVisibility(c, d) })
	}

	return router, nil
}
