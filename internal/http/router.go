// Package httpapi wires the HTTP transport (Gin) to the ingestion and read
// services. It owns middleware ordering and the route table:
//
//	GET  /health, /ready, /metrics, /swagger/*any
//	GET  {base}/webhook          handshake
//	POST {base}/webhook          ingest one payload
//	GET  {base}/messages         all conversations
//	POST {base}/messages         raw message create
//	GET  {base}/messages/:wa_id  one conversation
package httpapi

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"gorm.io/gorm"

	_ "github.com/tbourn/wa-inbox/docs"
	"github.com/tbourn/wa-inbox/internal/config"
	"github.com/tbourn/wa-inbox/internal/http/handlers"
	"github.com/tbourn/wa-inbox/internal/http/middleware"
	"github.com/tbourn/wa-inbox/internal/repo"
	"github.com/tbourn/wa-inbox/internal/services"
)

const readyTimeout = 2 * time.Second

// RegisterRoutes attaches middleware and endpoints to r. ingest is shared
// with the background retry loop so both see the same limits.
//
// Middleware order matters:
//  1. OpenTelemetry
//  2. RequestID
//  3. AccessLog (redacting; seeds the request context logger)
//  4. Recovery
//  5. Body size limit (WEBHOOK_MAX_BYTES)
//  6. Metrics
//  7. Idempotency validator (before the limiter so replays bypass it)
//  8. Rate limiter
//  9. CORS, security headers, gzip
func RegisterRoutes(r *gin.Engine, db *gorm.DB, ingest *services.IngestService, cfg config.Config) {
	r.HandleMethodNotAllowed = true

	r.Use(otelgin.Middleware(cfg.OTEL.ServiceName))
	r.Use(middleware.RequestID())
	r.Use(middleware.AccessLog(middleware.AccessLogOptions{}))
	r.Use(middleware.Recovery())
	r.Use(limitBody(cfg.WebhookMaxBytes))
	r.Use(middleware.Metrics())
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	r.Use(middleware.IdempotencyValidator(middleware.IdempotencyOptions{MaxLen: 200},
		func(ctx context.Context, key string, now time.Time) (bool, error) {
			rec, err := repo.GetDelivery(ctx, db, key, now)
			if err != nil {
				return false, err
			}
			return rec.Replayable(true), nil
		},
	))

	rl := middleware.NewRateLimiter(cfg.RateRPS, cfg.RateBurst, middleware.KeyByClientIP())
	r.Use(rl.Handler())

	r.Use(corsHandlers(cfg.CORS.AllowedOrigins)...)
	r.Use(middleware.SecurityHeaders(middleware.SecurityOptions{
		EnableHSTS:   cfg.Security.EnableHSTS,
		HSTSMaxAge:   cfg.Security.HSTSMaxAge,
		EnablePolicy: true,
	}))
	r.Use(gzip.Gzip(gzip.DefaultCompression, gzip.WithExcludedPaths([]string{"/metrics"})))

	r.NoRoute(func(c *gin.Context) {
		handlers.Fail(c, http.StatusNotFound, handlers.ErrCodeNotFound, "route not found")
	})
	r.NoMethod(func(c *gin.Context) {
		handlers.Fail(c, http.StatusMethodNotAllowed, handlers.ErrCodeMethodNotAllowed, "method not allowed")
	})

	r.GET("/health", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "ok"}) })
	r.GET("/ready", func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), readyTimeout)
		defer cancel()
		if err := repo.Ping(ctx, db); err != nil {
			middleware.LoggerFrom(c).Warn().Err(err).Msg("readiness check failed")
			handlers.Fail(c, http.StatusServiceUnavailable, handlers.ErrCodeStoreUnavailable, "message store unavailable")
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})
	if cfg.SwaggerEnabled {
		r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	h := handlers.New(
		&services.ConversationService{DB: db},
		ingest.Store,
		ingest,
		handlers.Options{
			VerifyToken: cfg.WebhookVerifyToken,
			Version: func(ctx context.Context, waID string) (int64, *time.Time, error) {
				if waID == "" {
					return repo.MessagesStats(ctx, db)
				}
				return repo.ConversationStats(ctx, db, waID)
			},
		},
	)

	api := groupWithPrefix(r, cfg.APIBasePath)
	{
		api.GET("/webhook", h.VerifyWebhook)
		api.POST("/webhook", h.ReceiveWebhook)

		api.GET("/messages", h.ListConversations)
		api.POST("/messages", h.CreateMessage)
		api.GET("/messages/:wa_id", h.GetConversation)
	}
}

// corsHandlers allows every origin when none are configured; otherwise it
// echoes allowlisted origins.
func corsHandlers(origins []string) []gin.HandlerFunc {
	base := cors.Config{
		AllowMethods:     []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization", "If-None-Match", middleware.HeaderIdempotencyKey},
		ExposeHeaders:    []string{"X-Request-ID", "ETag", "Idempotency-Replayed", "Content-Length"},
		AllowCredentials: false,
		MaxAge:           12 * time.Hour,
	}
	if len(origins) == 0 {
		base.AllowAllOrigins = true
		// Also answer non-CORS requests (health checks, curl) with ACAO: *.
		star := func(c *gin.Context) {
			c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
			c.Next()
		}
		return []gin.HandlerFunc{star, cors.New(base)}
	}
	base.AllowOrigins = origins
	return []gin.HandlerFunc{cors.New(base)}
}

// limitBody caps request bodies at maxBytes; reads past the cap fail with
// *http.MaxBytesError.
func limitBody(maxBytes int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)
		c.Next()
	}
}

// groupWithPrefix mounts a group at prefix, treating "/" (or empty) as root.
func groupWithPrefix(r *gin.Engine, prefix string) *gin.RouterGroup {
	if prefix == "" || prefix == "/" {
		return r.Group("")
	}
	return r.Group(prefix)
}
