package router

import (
	"context"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/stemsi/formcraft/internal/config"
	"github.com/stemsi/formcraft/internal/handler"
	"github.com/stemsi/formcraft/internal/middleware"
	"github.com/stemsi/formcraft/internal/monitoring"
	"github.com/stemsi/formcraft/internal/response"
)

// Handlers groups all handler instances for route setup.
type Handlers struct {
	Form     *handler.FormHandler
	Response *handler.ResponseHandler
	Media    *handler.MediaHandler
	WS       *handler.WSHandler
	System   *handler.SystemHandler
}

// SetupRouter configures all Gin route groups with appropriate middlewares.
// ctx bounds background work started by middleware.
func SetupRouter(ctx context.Context, handlers *Handlers, cfg *config.Config) *gin.Engine {
	gin.SetMode(cfg.GinMode)
	router := gin.New()
	router.Use(gin.Recovery())

	// ─── CORS ──────────────────────────────────────────────────────────
	// Restrict to AllowedOrigins when set; otherwise allow all so dev works
	// without extra config.
	corsConfig := cors.DefaultConfig()
	if len(cfg.AllowedOrigins) > 0 {
		corsConfig.AllowOrigins = cfg.AllowedOrigins
	} else {
		corsConfig.AllowAllOrigins = true
	}
	corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "X-Request-ID"}
	corsConfig.ExposeHeaders = []string{"X-Request-ID", "Retry-After"}
	corsConfig.MaxAge = 12 * time.Hour
	router.Use(cors.New(corsConfig))

	router.Use(response.RequestIDMiddleware())
	router.Use(monitoring.MetricsMiddleware())
	router.Use(middleware.Brotli())

	// Uploaded media is addressed by UUID and never rewritten.
	if cfg.StorageDriver == config.StorageLocal {
		uploadsGroup := router.Group("/uploads")
		uploadsGroup.Use(middleware.CacheControl(31536000))
		{
			uploadsGroup.Static("/", cfg.UploadDir)
		}
	}

	router.GET("/health", handlers.System.Health)
	router.GET("/metrics", monitoring.PrometheusHandler())

	limiter := middleware.NewRateLimiter(ctx, cfg.RateLimitPerMinute, time.Minute)

	api := router.Group("/api/v1")
	api.Use(middleware.NoStore(), limiter.Middleware())
	{
		api.GET("/system/stats", handlers.System.Stats)
		api.POST("/media/upload", handlers.Media.UploadMedia)

		// ─── Builder ───────────────────────────────────────────────────
		forms := api.Group("/forms")
		{
			forms.GET("", handlers.Form.List)
			forms.POST("", handlers.Form.Create)
			forms.POST("/import", handlers.Form.Import)

			forms.GET("/:id", handlers.Form.Get)
			forms.PATCH("/:id", handlers.Form.Update)
			forms.POST("/:id/open", handlers.Form.Open)
			forms.PATCH("/:id/theme", handlers.Form.UpdateTheme)
			forms.PUT("/:id/preview", handlers.Form.SetPreviewMode)
			forms.POST("/:id/save", handlers.Form.Save)
			forms.DELETE("/:id/session", handlers.Form.CloseSession)
			forms.GET("/:id/submissions", handlers.Form.ListSubmissions)

			forms.POST("/:id/questions", handlers.Form.AddQuestion)
			forms.POST("/:id/questions/reorder", handlers.Form.ReorderQuestions)
			forms.PATCH("/:id/questions/:qid", handlers.Form.UpdateQuestion)
			forms.DELETE("/:id/questions/:qid", handlers.Form.DeleteQuestion)
			forms.POST("/:id/questions/:qid/edits", handlers.Form.EditQuestion)

			// ─── Respondent ────────────────────────────────────────────
			forms.POST("/:id/responses", handlers.Response.Start)
		}

		responses := api.Group("/responses/:sid")
		{
			responses.GET("", handlers.Response.Get)
			responses.POST("/categorize", handlers.Response.Categorize)
			responses.POST("/cloze", handlers.Response.Cloze)
			responses.POST("/comprehension", handlers.Response.Comprehension)
			responses.POST("/submit", handlers.Response.Submit)
		}
	}

	// ─── WebSocket ─────────────────────────────────────────────────────
	ws := router.Group("/ws/v1")
	{
		ws.GET("/forms/:id/stream", handlers.WS.FormStream)
		ws.GET("/responses/:sid/stream", handlers.WS.ResponseStream)
	}

	return router
}
