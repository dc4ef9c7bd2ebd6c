// Package api wires together the HTTP routes for the organization registry.
//
// Route grouping philosophy:
//   - Create, get, update, and login are unauthenticated: create and login
//     bootstrap credentials, get returns non-sensitive metadata only, and
//     update deliberately mirrors the upstream surface, which carries no
//     auth check on this route.
//   - Delete is destructive and sits behind bearer auth; the lifecycle
//     service additionally enforces that the token names the organization
//     being deleted.
//
// Login gets its own, much stricter rate limit bucket so password guessing
// is throttled independently of normal API traffic.
package api

import (
	"database/sql"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/org-registry/org-registry/internal/auth"
	"github.com/org-registry/org-registry/internal/config"
	"github.com/org-registry/org-registry/internal/db/repositories"
	"github.com/org-registry/org-registry/internal/middleware"
	"github.com/org-registry/org-registry/internal/orgs"
	"github.com/org-registry/org-registry/internal/partition"
)

// Version is the reported service version. Overridden at build time via
// -ldflags "-X github.com/org-registry/org-registry/internal/api.Version=...".
var Version = "0.1.0"

// Background holds resources with goroutines that must be stopped during
// graceful shutdown. The caller (cmd/server) calls Shutdown after the HTTP
// server has drained in-flight requests.
type Background struct {
	rateLimiters []*middleware.RateLimiter
}

// Shutdown stops all background goroutines.
func (bg *Background) Shutdown() {
	for _, rl := range bg.rateLimiters {
		rl.Stop()
	}
	slog.Info("api background resources stopped")
}

// NewRouter creates and configures the Gin router.
func NewRouter(cfg *config.Config, db *sql.DB, tokens *auth.TokenIssuer) (*gin.Engine, *Background) {
	router := gin.New()

	registry := repositories.NewOrganizationRepository(db)
	partitions := partition.NewManager(db)
	svc := orgs.NewService(registry, partitions, tokens)
	h := NewHandlers(svc)

	router.Use(gin.Recovery())
	router.Use(middleware.RequestID())
	router.Use(middleware.Metrics())
	router.Use(LoggerMiddleware())
	router.Use(middleware.SecurityHeaders(middleware.APISecurityHeadersConfig()))

	bg := &Background{}

	if cfg.RateLimit.Enabled {
		general := middleware.NewRateLimiter(middleware.GeneralRateLimitConfig(cfg.RateLimit))
		bg.rateLimiters = append(bg.rateLimiters, general)
		router.Use(middleware.RateLimit(general))
	}

	router.GET("/health", healthCheckHandler(db))
	router.GET("/version", versionHandler())

	org := router.Group("/org")
	{
		org.POST("/create", h.CreateOrganizationHandler())
		org.GET("/get", h.GetOrganizationHandler())
		org.PUT("/update", h.UpdateOrganizationHandler())
		org.DELETE("/delete", middleware.BearerAuth(tokens), h.DeleteOrganizationHandler())
	}

	admin := router.Group("/admin")
	if cfg.RateLimit.Enabled {
		login := middleware.NewRateLimiter(middleware.LoginRateLimitConfig(cfg.RateLimit))
		bg.rateLimiters = append(bg.rateLimiters, login)
		admin.Use(middleware.RateLimit(login))
	}
	admin.POST("/login", h.LoginHandler())

	return router, bg
}

// healthCheckHandler reports liveness, including a database ping.
func healthCheckHandler(db *sql.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := db.PingContext(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"status": "unhealthy",
				"error":  "database connection failed",
			})
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"status": "healthy",
			"time":   time.Now().UTC().Format(time.RFC3339),
		})
	}
}

func versionHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"version":     Version,
			"api_version": "v1",
		})
	}
}

// LoggerMiddleware emits one structured log line per request. The output
// format (json or text) is decided by the global slog handler configured in
// telemetry.SetupLogger.
func LoggerMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		query := c.Request.URL.RawQuery

		c.Next()

		requestID, _ := c.Get(middleware.RequestIDKey)
		slog.LogAttrs(
			c.Request.Context(),
			slog.LevelInfo,
			"http request",
			slog.String("method", c.Request.Method),
			slog.String("path", path),
			slog.String("query", query),
			slog.Int("status", c.Writer.Status()),
			slog.Int("size", c.Writer.Size()),
			slog.Duration("latency", time.Since(start)),
			slog.String("ip", c.ClientIP()),
			slog.Any("request_id", requestID),
			slog.String("user_agent", c.Request.UserAgent()),
		)
	}
}
