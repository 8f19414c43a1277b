package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/tutorlink/tutorlink-api/config"
	"github.com/tutorlink/tutorlink-api/internal/cache"
	"github.com/tutorlink/tutorlink-api/internal/handlers"
	"github.com/tutorlink/tutorlink-api/internal/middleware"
	"github.com/tutorlink/tutorlink-api/internal/repository"
	"github.com/tutorlink/tutorlink-api/internal/services"
	"github.com/tutorlink/tutorlink-api/pkg/db"
	"github.com/tutorlink/tutorlink-api/pkg/httpclient"
	"github.com/tutorlink/tutorlink-api/pkg/logger"
	"github.com/tutorlink/tutorlink-api/pkg/metrics"
	"github.com/tutorlink/tutorlink-api/pkg/profiling"
	"github.com/tutorlink/tutorlink-api/pkg/storage"
	"github.com/tutorlink/tutorlink-api/pkg/tracing"
	"github.com/tutorlink/tutorlink-api/pkg/trigger"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.uber.org/zap"
)

// registerRoutes wires the help request and auth endpoints onto the router
func registerRoutes(
	router *gin.Engine,
	generalRateLimiter, submitRateLimiter, authRateLimiter *middleware.RateLimiter,
	helpRequestHandler *handlers.HelpRequestHandler,
	authHandler *handlers.AuthHandler,
	authService services.AuthServiceInterface,
) {
	sessionMW := middleware.SessionMiddleware(
		authService.GetTokenManager(),
		authService.GetCookieDomain(),
		authService.GetCookieSecure(),
	)

	// Authentication routes (public)
	auth := router.Group("/api/v1/auth")
	auth.POST("/request-login", authRateLimiter.Middleware(), middleware.BodySizeLimitMiddleware(10*1024), authHandler.RequestLogin)
	auth.POST("/verify", generalRateLimiter.Middleware(), middleware.BodySizeLimitMiddleware(10*1024), authHandler.VerifyLogin)
	auth.POST("/logout", generalRateLimiter.Middleware(), authHandler.Logout)
	auth.GET("/session", generalRateLimiter.Middleware(), sessionMW, authHandler.GetSession)

	// Help request routes (session protected)
	requests := router.Group("/api/v1/help-requests")
	requests.Use(generalRateLimiter.Middleware(), sessionMW)

	// Multipart submissions carry up to 5 files of 10MB each
	requests.POST("", submitRateLimiter.Middleware(), middleware.BodySizeLimitMiddleware(60*1024*1024), helpRequestHandler.Submit)
	requests.GET("/my-requests", helpRequestHandler.ListMine)
	requests.GET("/available", helpRequestHandler.ListAvailable)
	requests.GET("/history", helpRequestHandler.ListHistory)
	requests.GET("/:id", helpRequestHandler.GetByID)
	requests.POST("/:id/accept", helpRequestHandler.Accept)
	requests.PATCH("/:id/status", middleware.BodySizeLimitMiddleware(10*1024), helpRequestHandler.UpdateStatus)
	requests.POST("/:id/feedback", middleware.BodySizeLimitMiddleware(100*1024), helpRequestHandler.SubmitFeedback)
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	err = logger.Initialize(logger.Config{
		Level:       cfg.Logging.Level,
		LogDir:      cfg.Logging.Dir,
		Environment: cfg.Server.AppEnv,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Info("Starting TutorLink API",
		zap.String("version", cfg.Observability.ServiceVersion),
		zap.String("environment", cfg.Server.AppEnv),
	)

	// Distributed tracing
	tracerShutdown, err := tracing.InitTracer(
		cfg.Observability.ServiceName,
		cfg.Observability.ServiceNamespace,
		cfg.Observability.ServiceVersion,
		cfg.Observability.ServiceInstanceID,
		cfg.Server.AppEnv,
		cfg.Observability.CollectorEndpoint,
	)
	if err != nil {
		logger.Fatal("Failed to initialize tracer", zap.Error(err))
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if shutdownErr := tracerShutdown(ctx); shutdownErr != nil {
			logger.Error("Failed to shutdown tracer", zap.Error(shutdownErr))
		}
	}()

	// Continuous profiling (optional)
	if cfg.Profiling.Enabled {
		profilerStop, err := profiling.Start(cfg.Profiling, profiling.Identity{
			Service:     cfg.Observability.ServiceName,
			Namespace:   cfg.Observability.ServiceNamespace,
			Version:     cfg.Observability.ServiceVersion,
			InstanceID:  cfg.Observability.ServiceInstanceID,
			Environment: cfg.Server.AppEnv,
		})
		if err != nil {
			logger.Error("Failed to initialize profiler", zap.Error(err))
		} else {
			defer profilerStop()
		}
	}

	// Infrastructure metrics collection
	metrics.RecordInfrastructureMetrics()

	// PostgreSQL connection pool
	pool, err := db.NewPool(context.Background(), db.PoolConfig{
		URL:      cfg.Database.URL,
		MaxConns: cfg.Database.MaxConns,
		MinConns: cfg.Database.MinConns,
	})
	if err != nil {
		logger.Fatal("Failed to initialize database connection pool", zap.Error(err))
	}
	defer pool.Close()

	// Migrations run separately via the migrate command before startup

	// Object storage for attachments (optional)
	var objectStorage *storage.ObjectStorage
	if cfg.Storage.AccessKeyID != "" && cfg.Storage.SecretAccessKey != "" {
		objectStorage, err = storage.NewObjectStorage(
			cfg.Storage.AccessKeyID,
			cfg.Storage.SecretAccessKey,
			cfg.Storage.BucketName,
			cfg.Storage.Endpoint,
			cfg.Storage.Region,
		)
		if err != nil {
			logger.Fatal("Failed to initialize object storage client", zap.Error(err))
		}
	} else {
		logger.Warn("Object storage not configured, attachments will be skipped")
	}

	// Repositories
	helpRequestRepo := repository.NewHelpRequestRepository(pool)
	userRepo := repository.NewUserRepository(pool)

	// Mentor targeting cache feeds the notification fan-out
	mentorCache := cache.NewMentorCache(userRepo.FindActiveMentorsBySubject, cfg.Cache.MentorTTLSeconds)

	httpClient := httpclient.NewStandardClient()
	notifyDispatcher := trigger.NewWebhookDispatcher(cfg.EventTriggers.MentorNotifyWebhookURL, httpClient)
	sessionFinishedDispatcher := trigger.NewWebhookDispatcher(cfg.EventTriggers.SessionFinishedTriggerURL, httpClient)

	// Services
	notificationService := services.NewNotificationService(mentorCache, notifyDispatcher, sessionFinishedDispatcher, helpRequestRepo)
	ratingService := services.NewRatingService(helpRequestRepo, userRepo)
	helpRequestService := services.NewHelpRequestService(helpRequestRepo, userRepo, objectStorage, notificationService, ratingService)
	authService := services.NewAuthService(userRepo, cfg, httpClient)

	// Handlers
	helpRequestHandler := handlers.NewHelpRequestHandler(helpRequestService)
	authHandler := handlers.NewAuthHandler(authService)
	healthHandler := handlers.NewHealthHandler(pool)

	// Gin router
	gin.SetMode(cfg.Server.GinMode)
	router := gin.New()

	router.Use(gin.Recovery())
	router.Use(otelgin.Middleware(cfg.Observability.ServiceName))
	router.Use(middleware.ObservabilityMiddleware())
	router.Use(middleware.SecurityHeadersMiddleware())

	allowedOrigins := cfg.Server.AllowedOrigins
	if cfg.IsDevelopment() {
		allowedOrigins = append(allowedOrigins, "http://localhost:3000", "http://127.0.0.1:3000")
	}

	router.Use(cors.New(cors.Config{
		AllowOrigins:     allowedOrigins,
		AllowMethods:     []string{"GET", "POST", "PATCH", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization", "X-CSRF-Token", "traceparent", "tracestate"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true, // Required for session cookies
		MaxAge:           12 * time.Hour,
	}))

	// Rate limiters scaled to endpoint sensitivity
	generalRateLimiter := middleware.NewRateLimiter(100, 200) // 100 req/sec, burst of 200
	submitRateLimiter := middleware.NewRateLimiter(2, 5)      // 2 req/sec, burst of 5 (submission spam)
	authRateLimiter := middleware.NewRateLimiter(0.0334, 3)   // ~2 req/min, burst of 3 (login abuse)

	// Operational endpoints
	api := router.Group("/api")
	api.GET("/healthcheck", generalRateLimiter.Middleware(), healthHandler.Healthcheck)
	api.GET("/metrics", generalRateLimiter.Middleware(), gin.WrapH(promhttp.HandlerFor(metrics.Registry, promhttp.HandlerOpts{})))

	registerRoutes(router, generalRateLimiter, submitRateLimiter, authRateLimiter,
		helpRequestHandler, authHandler, authService)

	srv := &http.Server{
		Addr:              "0.0.0.0:" + cfg.Server.Port,
		Handler:           router,
		ReadHeaderTimeout: 15 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
		MaxHeaderBytes:    1 << 20,
	}

	go func() {
		logger.Info("Server started", zap.String("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Server failed to start", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Fatal("Server forced to shutdown", zap.Error(err))
	}

	logger.Info("Server exited")
}
