package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/GTDGit/apparel_tracker/internal/cache"
	"github.com/GTDGit/apparel_tracker/internal/config"
	"github.com/GTDGit/apparel_tracker/internal/database"
	"github.com/GTDGit/apparel_tracker/internal/handler"
	"github.com/GTDGit/apparel_tracker/internal/metrics"
	"github.com/GTDGit/apparel_tracker/internal/middleware"
	"github.com/GTDGit/apparel_tracker/internal/models"
	"github.com/GTDGit/apparel_tracker/internal/repository"
	"github.com/GTDGit/apparel_tracker/internal/service"
	"github.com/GTDGit/apparel_tracker/internal/sse"
	"github.com/GTDGit/apparel_tracker/internal/utils"
	"github.com/GTDGit/apparel_tracker/internal/worker"
)

// main is the application entrypoint for the apparel tracker API.
func main() {
	// 1. Load config
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// 2. Setup logger
	setupLogger(cfg.Env)
	log.Info().Str("env", cfg.Env).Str("timezone", cfg.Timezone.String()).Msg("starting apparel tracker api")

	// 3. Connect database
	store, err := database.Connect(&cfg.Mongo)
	if err != nil {
		log.Error().Err(err).Msg("database connection failed")
		fmt.Fprintf(os.Stderr, "database connection failed: %v\n", err)
		os.Exit(1)
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = store.Close(ctx)
	}()

	// 3a. Run migrations (indexes)
	if err := database.RunMigrations(cfg.Mongo.MigrationsPath, cfg.Mongo.URI, cfg.Mongo.Database); err != nil {
		log.Error().Err(err).Msg("migration failed")
		fmt.Fprintf(os.Stderr, "migration failed: %v\n", err)
		os.Exit(1)
	}
	log.Info().Msg("migrations completed successfully")

	// 3b. Connect to Redis. The dashboard cache is optional; without Redis
	// every dashboard request aggregates.
	var (
		redisClient    *cache.RedisClient
		dashboardCache service.DashboardCache
		redisPinger    handler.Pinger
	)
	if cfg.Redis.Enabled {
		redisClient, err = cache.NewRedisClient(&cfg.Redis)
		if err != nil {
			log.Warn().Err(err).Msg("redis unavailable, dashboard cache disabled")
		} else {
			defer redisClient.Close()
			dashboardCache = cache.NewDashboardCache(redisClient, cfg.Redis.DashboardTTL)
			redisPinger = redisClient
			log.Info().Msg("redis connected successfully")
		}
	}

	// 3c. Product image storage
	var images service.ImageStore
	s3svc, err := service.NewS3Service(context.Background(), &cfg.S3)
	if err != nil {
		log.Error().Err(err).Msg("s3 setup failed")
		fmt.Fprintf(os.Stderr, "s3 setup failed: %v\n", err)
		os.Exit(1)
	}
	if s3svc != nil {
		images = s3svc
	} else {
		log.Info().Msg("S3_BUCKET not set, image upload disabled")
	}

	// 4. Metrics and live events
	m := metrics.New()
	hub := sse.NewHub()
	notifier := sse.NewHubNotifier(hub)

	// 5. Initialize repositories
	productRepo := repository.NewProductRepository(store.DB, cfg.Mongo.QueryTimeout)
	saleRepo := repository.NewSaleRepository(store.DB, cfg.Mongo.QueryTimeout)
	userRepo := repository.NewUserRepository(store.DB, cfg.Mongo.QueryTimeout)
	movementRepo := repository.NewStockMovementRepository(store.DB, cfg.Mongo.QueryTimeout)

	// 6. Initialize services
	tokens := utils.NewTokenIssuer(cfg.Auth.JWTSecret, cfg.Auth.JWTExpiry)
	authSvc := service.NewAuthService(userRepo, tokens, cfg.Auth.BcryptCost)
	productSvc := service.NewProductService(productRepo, movementRepo, userRepo, dashboardCache, notifier, images, m)
	saleSvc := service.NewSaleService(
		saleRepo, userRepo, productSvc,
		utils.NewInvoiceGenerator(cfg.Timezone),
		dashboardCache, notifier, m, cfg.Timezone,
	)
	reportSvc := service.NewReportService(productRepo, saleRepo, dashboardCache, cfg.Timezone)

	// 7. Initialize handlers
	authLimiter := middleware.NewInvalidAuthRateLimiter(5, time.Minute)
	handlers := &Handlers{
		Health:  handler.NewHealthHandler(store, redisPinger),
		Auth:    handler.NewAuthHandler(authSvc, authLimiter),
		Product: handler.NewProductHandler(productSvc),
		Sale:    handler.NewSaleHandler(saleSvc),
		Report:  handler.NewReportHandler(reportSvc),
		SSE:     handler.NewSSEHandler(hub),
	}

	// 8. Initialize middleware
	jwtMw := middleware.NewJWTMiddleware(authSvc, authLimiter)

	// 9. Setup router
	if cfg.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.CORSMiddleware(cfg.CORS.AllowedOrigins))
	router.Use(middleware.LoggingMiddleware())
	router.Use(m.Middleware())
	router.GET("/metrics", gin.WrapH(m.Handler()))
	setupRoutes(router, handlers, jwtMw)

	// 10. Create context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// 11. Start workers
	go worker.NewLowStockWorker(productRepo, m, cfg.Worker.LowStockReconcileInterval).Start(ctx)

	// 12. Start HTTP server. No WriteTimeout: the event stream is long-lived.
	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Info().Str("port", cfg.Port).Msg("Starting server")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Server failed")
		}
	}()

	// 13. Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")

	// 14. Cancel context to stop workers
	cancel()

	// 15. Shutdown HTTP server with timeout
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}
	log.Info().Msg("Server exited")
}

// Handlers groups all HTTP handlers used by the server.
type Handlers struct {
	Health  *handler.HealthHandler
	Auth    *handler.AuthHandler
	Product *handler.ProductHandler
	Sale    *handler.SaleHandler
	Report  *handler.ReportHandler
	SSE     *handler.SSEHandler
}

// setupRoutes registers all routes.
func setupRoutes(router *gin.Engine, handlers *Handlers, jwtMiddleware *middleware.JWTMiddleware) {
	api := router.Group("/api")
	api.GET("/health", handlers.Health.GetHealth)

	// Public auth routes
	api.POST("/auth/register", handlers.Auth.Register)
	api.POST("/auth/login", handlers.Auth.Login)

	// Event stream authenticates with ?token=
	api.GET("/events", jwtMiddleware.HandleStream(), handlers.SSE.Stream)

	authed := api.Group("")
	authed.Use(jwtMiddleware.Handle())

	stock := middleware.RequireRole(models.RoleAdmin, models.RoleInventory)
	selling := middleware.RequireRole(models.RoleAdmin, models.RoleSales)
	adminOnly := middleware.RequireRole(models.RoleAdmin)

	auth := authed.Group("/auth")
	{
		auth.GET("/me", handlers.Auth.Me)
		auth.PUT("/settings", handlers.Auth.UpdateSettings)
		auth.POST("/users", adminOnly, handlers.Auth.CreateStaff)
	}

	products := authed.Group("/products")
	{
		products.GET("", handlers.Product.List)
		products.GET("/low-stock", handlers.Product.LowStock)
		products.GET("/:id", handlers.Product.Get)
		products.GET("/:id/movements", handlers.Product.Movements)
		products.POST("", stock, handlers.Product.Create)
		products.PUT("/:id", stock, handlers.Product.Update)
		products.DELETE("/:id", stock, handlers.Product.Delete)
		products.POST("/:id/stock", stock, handlers.Product.AdjustStock)
		products.POST("/:id/image", stock, handlers.Product.UploadImage)
	}

	sales := authed.Group("/sales")
	{
		sales.GET("", handlers.Sale.List)
		sales.POST("", selling, handlers.Sale.Create)
		sales.GET("/:id", handlers.Sale.Get)
		sales.PATCH("/:id/status", adminOnly, handlers.Sale.ChangeStatus)
	}

	reports := authed.Group("/reports")
	{
		reports.GET("/dashboard", handlers.Report.Dashboard)
		reports.GET("/sale/:id", handlers.Report.Sale)
		reports.GET("/sales-summary", handlers.Report.SalesSummary)
	}
}

func setupLogger(env string) {
	if env == "production" {
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	} else {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}
	log.Logger = zerolog.New(os.Stdout).With().Timestamp().Logger()
}
