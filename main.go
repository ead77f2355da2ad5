package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/LoboMiguelBR/anrielly-cerimonias-elegancia-sub000/config"
	"github.com/LoboMiguelBR/anrielly-cerimonias-elegancia-sub000/handler"
	"github.com/LoboMiguelBR/anrielly-cerimonias-elegancia-sub000/middleware"
	"github.com/LoboMiguelBR/anrielly-cerimonias-elegancia-sub000/model"
	"github.com/LoboMiguelBR/anrielly-cerimonias-elegancia-sub000/pkg/logger"
	"github.com/LoboMiguelBR/anrielly-cerimonias-elegancia-sub000/render"
	"github.com/LoboMiguelBR/anrielly-cerimonias-elegancia-sub000/service"
)

func main() {
	configPath := os.Getenv("ACE_CONFIG")
	if configPath == "" {
		configPath = "config.yaml"
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		slog.Error("failed to load config", "path", configPath, "error", err)
		os.Exit(1)
	}

	logger.Init(&logger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
	})

	slog.Info("configuration loaded successfully", "path", configPath)

	ctx := context.Background()

	// Records live in PostgreSQL when a DSN is configured, otherwise in memory.
	var store service.Store
	if cfg.Database.DSN != "" {
		pg, err := service.OpenPostgres(ctx, &cfg.Database)
		if err != nil {
			slog.Error("failed to open database", "error", err)
			os.Exit(1)
		}
		defer pg.Close()
		store = pg
		slog.Info("using postgres store", "migrate", cfg.Database.Migrate)
	} else {
		store = service.NewMemoryStore()
		slog.Warn("no database configured, records are kept in memory")
	}

	// Gallery and testimonial reads go through redis when it is available.
	var content service.ContentStore = store
	rdb, err := service.NewRedisClient(ctx, &cfg.Redis)
	if err != nil {
		slog.Warn("redis unavailable, content cache disabled", "error", err)
	} else if rdb != nil {
		defer rdb.Close()
		content = service.NewCachedContentSource(store, rdb, config.Seconds(cfg.Redis.TTLSeconds))
		slog.Info("content cache enabled", "addr", cfg.Redis.Addr)
	}

	var storage service.BinaryStorage
	if cfg.Minio.Endpoint != "" {
		minioSvc, err := service.NewMinioService(&cfg.Minio)
		if err != nil {
			slog.Error("failed to initialize MINIO service", "error", err)
			os.Exit(1)
		}
		if err := minioSvc.EnsureBucket(ctx); err != nil {
			slog.Error("failed to ensure MINIO bucket", "error", err)
			os.Exit(1)
		}
		storage = minioSvc
	} else {
		slog.Warn("no object storage configured, signature images and signed documents are not stored")
	}

	catalog := service.NewCatalog(store, content)
	seeded, err := catalog.SeedTemplates(ctx)
	if err != nil {
		slog.Error("failed to seed templates", "error", err)
		os.Exit(1)
	}
	slog.Info("templates ready", "seeded", seeded)

	formatter := render.NewFormatter(render.FormatOptions{
		Locale:         cfg.Render.Locale,
		CurrencySymbol: cfg.Render.CurrencySymbol,
		Undefined:      cfg.Render.Undefined,
		TimeZone:       cfg.Render.TimeZone,
	})
	renderer := render.NewRenderer(formatter, render.NewBlockFetcher(content, config.Seconds(cfg.Render.BlockTimeoutSeconds)))

	access := service.NewAccessResolver(store, cfg.Public.BaseURL)
	workflow := service.NewWorkflow(service.WorkflowDeps{
		Store:       store,
		Renderer:    renderer,
		Notifier:    service.NewMailService(&cfg.Mail),
		Storage:     storage,
		Exporter:    service.NewGotenbergExporter(&cfg.Exporter, cfg.Public.BaseURL),
		Access:      access,
		Company:     cfg.Company,
		EditRetries: cfg.Store.EditRetries,
	})

	authHandler := handler.NewAuthHandler(cfg)
	recordHandler := handler.NewRecordHandler(workflow)
	catalogHandler := handler.NewCatalogHandler(catalog)
	reportHandler := handler.NewReportHandler(store)
	publicHandler := handler.NewPublicHandler(workflow, access)

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()

	router.Use(middleware.RequestID())
	router.Use(middleware.Recovery())
	router.Use(middleware.RequestLogger())
	router.Use(corsMiddleware())
	router.Use(cacheMiddleware())

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":    "ok",
			"timestamp": time.Now().Format(time.RFC3339),
		})
	})

	publicLimit := middleware.RateLimit(cfg.Public.RateLimitPerMin, cfg.Public.RateLimitBurst)
	publicHandler.Register(router, publicLimit)

	api := router.Group("/api")
	{
		api.POST("/auth/login", publicLimit, authHandler.Login)
		api.GET("/public/gallery", catalogHandler.ListGallery)
		api.GET("/public/testimonials", catalogHandler.PublicTestimonials)
	}

	protected := api.Group("/")
	protected.Use(middleware.AuthMiddleware(&cfg.Auth))
	{
		protected.GET("/auth/me", authHandler.GetCurrentUser)

		protected.POST("/records", recordHandler.Create)
		protected.GET("/records", recordHandler.List)
		protected.GET("/records/:id", recordHandler.Get)
		protected.PATCH("/records/:id", recordHandler.Update)
		protected.DELETE("/records/:id", recordHandler.Delete)
		protected.POST("/records/:id/send", recordHandler.Send)
		protected.POST("/records/:id/cancel", recordHandler.Cancel)
		protected.GET("/records/:id/render", recordHandler.Render)
		protected.GET("/records/:id/export", recordHandler.Export)
		protected.GET("/records/:id/audit", recordHandler.Audit)

		protected.GET("/templates", catalogHandler.ListTemplates)
		protected.GET("/templates/:id", catalogHandler.GetTemplate)
		protected.GET("/gallery", catalogHandler.ListGallery)
		protected.POST("/gallery", catalogHandler.AddGalleryImage)
		protected.GET("/testimonials", catalogHandler.ListTestimonials)
		protected.POST("/testimonials", catalogHandler.AddTestimonial)

		protected.GET("/reports/records.xlsx", reportHandler.Records)
	}

	admin := protected.Group("/")
	admin.Use(middleware.RequireRole(middleware.RoleAdmin))
	{
		admin.POST("/templates", catalogHandler.SaveTemplate)
		admin.POST("/testimonials/:id/approve", catalogHandler.ApproveTestimonial)
	}

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  60 * time.Second,
		WriteTimeout: 120 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		slog.Info("server starting", "port", cfg.Server.Port, "public_base_url", cfg.Public.BaseURL)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("failed to start server", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	slog.Info("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), config.Seconds(cfg.Server.ShutdownSeconds))
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("server forced to shutdown", "error", err)
		os.Exit(1)
	}

	slog.Info("server exited gracefully")
}

// corsMiddleware handles CORS headers
func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, Authorization, accept, origin, Cache-Control, X-Requested-With, X-Request-ID")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS, GET, PATCH, DELETE")
		c.Writer.Header().Set("Access-Control-Expose-Headers", "X-Request-ID, X-Missing-Images, Retry-After, Content-Disposition")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}

// cacheMiddleware keeps API answers and client documents out of shared
// caches. Documents change with every edit and carry personal data.
func cacheMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		path := c.Request.URL.Path
		if strings.HasPrefix(path, "/api/public/") {
			c.Header("Cache-Control", "public, max-age=300")
			c.Next()
			return
		}
		if strings.HasPrefix(path, "/api") ||
			strings.HasPrefix(path, "/"+string(model.KindProposal)+"/") ||
			strings.HasPrefix(path, "/"+string(model.KindContract)+"/") {
			c.Header("Cache-Control", "no-cache, no-store, must-revalidate")
			c.Header("Pragma", "no-cache")
			c.Header("Expires", "0")
		}
		c.Next()
	}
}
