package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	billingapp "github.com/soundfoundry/backend/internal/application/billing"
	identityapp "github.com/soundfoundry/backend/internal/application/identity"
	"github.com/soundfoundry/backend/internal/infrastructure/auth"
	infrabilling "github.com/soundfoundry/backend/internal/infrastructure/billing"
	"github.com/soundfoundry/backend/internal/infrastructure/cache"
	"github.com/soundfoundry/backend/internal/infrastructure/config"
	"github.com/soundfoundry/backend/internal/infrastructure/logger"
	"github.com/soundfoundry/backend/internal/infrastructure/persistence"
	"github.com/soundfoundry/backend/internal/infrastructure/telemetry"
	"github.com/soundfoundry/backend/internal/interfaces/http/handler"
	"github.com/soundfoundry/backend/internal/interfaces/http/middleware"
	"github.com/soundfoundry/backend/internal/interfaces/http/router"
	"go.uber.org/zap"
)

//	@title			SoundFoundry Backend API
//	@version		1.0
//	@description	Token ledger and Stripe billing backend for the SoundFoundry music generation platform

//	@host		localhost:8080
//	@BasePath	/api/v1

//	@securityDefinitions.apikey	BearerAuth
//	@in							header
//	@name						Authorization
//	@description				Bearer token authentication. Format: "Bearer {token}"

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		panic("Failed to load configuration: " + err.Error())
	}

	// Initialize logger
	log, err := logger.New(&logger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: cfg.Log.Output,
	})
	if err != nil {
		panic("Failed to initialize logger: " + err.Error())
	}
	defer func() {
		_ = logger.Sync(log)
	}()

	log.Info("Starting SoundFoundry Backend",
		zap.String("app", cfg.App.Name),
		zap.String("env", cfg.App.Env),
		zap.String("port", cfg.App.Port),
	)

	// Initialize tracing (if enabled)
	tracerProvider, err := telemetry.NewTracerProvider(context.Background(), telemetry.Config{
		Enabled:           cfg.Telemetry.Enabled,
		CollectorEndpoint: cfg.Telemetry.CollectorEndpoint,
		SamplingRatio:     cfg.Telemetry.SamplingRatio,
		ServiceName:       cfg.Telemetry.ServiceName,
		Insecure:          cfg.Telemetry.Insecure,
	}, log)
	if err != nil {
		log.Fatal("Failed to initialize tracer provider", zap.Error(err))
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tracerProvider.Shutdown(shutdownCtx); err != nil {
			log.Error("Error shutting down tracer provider", zap.Error(err))
		}
	}()

	// Create GORM logger backed by zap
	gormLogLevel := logger.MapGormLogLevel(cfg.Log.Level)
	gormLog := logger.NewGormLogger(log, gormLogLevel)

	// Initialize database connection with custom logger
	db, err := persistence.NewDatabaseWithCustomLogger(&cfg.Database, gormLog)
	if err != nil {
		log.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer func() {
		if err := db.Close(); err != nil {
			log.Error("Error closing database", zap.Error(err))
		}
	}()
	log.Info("Database connected successfully")

	// Register database query tracing (if enabled)
	if cfg.Telemetry.Enabled && cfg.Telemetry.DBTraceEnabled {
		dbTracing := telemetry.NewDBTracingPlugin(telemetry.DBTracingConfig{
			Enabled:          true,
			DBSystem:         "postgresql",
			SlowQueryThresh:  200 * time.Millisecond,
			WithoutVariables: true,
		}, log)
		if err := dbTracing.RegisterOtelGorm(db.DB); err != nil {
			log.Fatal("Failed to register database tracing", zap.Error(err))
		}
	}

	// Initialize repositories
	userRepo := persistence.NewGormUserRepository(db.DB)
	ledgerStore := persistence.NewGormLedgerStore(db.DB)
	billingCustomerRepo := persistence.NewGormBillingCustomerRepository(db.DB)

	// Identity services
	jwtService := auth.NewJWTService(cfg.JWT)
	authService := identityapp.NewAuthService(userRepo, jwtService, log)

	// Stripe configuration shared by checkout and webhook services
	stripeConfig := &infrabilling.StripeConfig{
		SecretKey:              cfg.Stripe.SecretKey,
		PublishableKey:         cfg.Stripe.PublishableKey,
		WebhookSecret:          cfg.Stripe.WebhookSecret,
		IsTestMode:             cfg.Stripe.IsTestMode,
		DefaultCurrency:        cfg.Stripe.DefaultCurrency,
		SuccessURL:             cfg.Stripe.SuccessURL,
		CancelURL:              cfg.Stripe.CancelURL,
		BillingPortalReturnURL: cfg.Stripe.BillingPortalReturnURL,
		TokenPacks:             cfg.Stripe.TokenPacks,
		SubscriptionGrants:     cfg.Stripe.SubscriptionGrants,
	}
	stripeGateway, err := infrabilling.NewStripeAdapter(stripeConfig, log)
	if err != nil {
		log.Fatal("Invalid Stripe configuration", zap.Error(err))
	}

	// Billing services
	ledgerService := billingapp.NewLedgerService(ledgerStore, log)
	checkoutService := billingapp.NewCheckoutService(billingapp.CheckoutServiceConfig{
		Gateway:   stripeGateway,
		Customers: billingCustomerRepo,
		Users:     userRepo,
		Config:    stripeConfig,
		Logger:    log,
	})
	webhookService := billingapp.NewStripeWebhookService(billingapp.StripeWebhookServiceConfig{
		Config:    stripeConfig,
		Store:     ledgerStore,
		Customers: billingCustomerRepo,
		Logger:    log,
	})

	// Initialize HTTP handlers
	authHandler := handler.NewAuthHandler(authService)
	tokensHandler := handler.NewTokensHandler(ledgerService)
	billingHandler := handler.NewBillingHandler(checkoutService)
	adminHandler := handler.NewAdminHandler(ledgerService)
	webhookHandler := handler.NewStripeWebhookHandler(webhookService)
	systemHandler := handler.NewSystemHandler()

	// Set Gin mode based on environment
	if cfg.App.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	// Setup validation
	middleware.SetupValidator()

	// Initialize router with custom middleware
	engine := gin.New()

	// Configure trusted proxies
	if len(cfg.HTTP.TrustedProxies) > 0 {
		if err := engine.SetTrustedProxies(cfg.HTTP.TrustedProxies); err != nil {
			log.Warn("Failed to set trusted proxies", zap.Error(err))
		}
	}

	// Apply middleware stack in order:
	// 1. RequestID - Generate/propagate request ID
	// 2. Recovery - Catch panics
	// 3. Logger - Log requests
	// 4. Security - Add security headers
	// 5. CORS - Handle cross-origin requests
	// 6. Tracing - OpenTelemetry spans (if enabled)
	// 7. BodyLimit - Limit request body size
	// 8. RateLimit - Apply rate limiting (if enabled)
	engine.Use(middleware.RequestID())
	engine.Use(logger.Recovery(log))
	engine.Use(logger.GinMiddleware(log))
	engine.Use(middleware.Secure())

	// Configure CORS from config
	corsConfig := middleware.CORSConfig{
		AllowOrigins:     cfg.HTTP.CORSAllowOrigins,
		AllowMethods:     cfg.HTTP.CORSAllowMethods,
		AllowHeaders:     cfg.HTTP.CORSAllowHeaders,
		ExposeHeaders:    []string{"X-Request-ID", "X-RateLimit-Limit", "X-RateLimit-Remaining"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}
	engine.Use(middleware.CORSWithConfig(corsConfig))

	if cfg.Telemetry.Enabled {
		engine.Use(middleware.TracingWithConfig(middleware.TracingConfig{
			ServiceName: cfg.Telemetry.ServiceName,
			Enabled:     true,
		}))
	}

	// Body size limit
	engine.Use(middleware.BodyLimit(cfg.HTTP.MaxBodySize))

	// Rate limiting (if enabled). The Redis store is shared across replicas;
	// if Redis is unreachable at startup we fall back to a per-process store
	// rather than refusing to boot.
	var checkoutLimiter gin.HandlerFunc
	if cfg.HTTP.RateLimitEnabled {
		var rateLimitStore cache.RateLimitStore
		redisStore, err := cache.NewRedisRateLimitStore(cache.RedisConfig{
			Host:     cfg.Redis.Host,
			Port:     cfg.Redis.Port,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err != nil {
			log.Warn("Redis unavailable, using in-memory rate limit store", zap.Error(err))
			rateLimitStore = cache.NewInMemoryRateLimitStore()
		} else {
			rateLimitStore = redisStore
			defer func() {
				if err := redisStore.Close(); err != nil {
					log.Error("Error closing Redis client", zap.Error(err))
				}
			}()
		}

		engine.Use(middleware.RateLimit(middleware.RateLimitConfig{
			Store:  rateLimitStore,
			Limit:  int64(cfg.HTTP.RateLimitRequests),
			Window: cfg.HTTP.RateLimitWindow,
			Logger: log,
		}))
		checkoutLimiter = middleware.RateLimit(middleware.RateLimitConfig{
			Store:  rateLimitStore,
			Limit:  int64(cfg.HTTP.CheckoutRateRequests),
			Window: cfg.HTTP.CheckoutRateWindow,
			Logger: log,
		})
		log.Info("Rate limiting enabled",
			zap.Int("requests", cfg.HTTP.RateLimitRequests),
			zap.Duration("window", cfg.HTTP.RateLimitWindow),
			zap.Int("checkout_requests", cfg.HTTP.CheckoutRateRequests),
			zap.Duration("checkout_window", cfg.HTTP.CheckoutRateWindow),
		)
	}

	// Health check endpoint (outside API versioning)
	engine.GET("/health", healthHandler(db, log))

	// Stripe webhook endpoint (no authentication; signature-verified).
	// Registered directly on the engine so it bypasses the JWT middleware,
	// with a tighter body limit since Stripe events are small.
	webhookGroup := engine.Group("/api/v1/webhooks")
	webhookGroup.Use(middleware.BodyLimit(cfg.HTTP.WebhookMaxBodySize))
	webhookGroup.POST("/stripe", webhookHandler.HandleStripeWebhook)

	// Setup API routes using router
	r := router.NewRouter(engine, router.WithAPIVersion("v1"))

	// Apply JWT authentication middleware to API routes
	// Configure skip paths for public endpoints
	jwtConfig := middleware.JWTMiddlewareConfig{
		JWTService: jwtService,
		SkipPaths: []string{
			"/api/v1/auth/register",
			"/api/v1/auth/login",
			"/api/v1/billing/packs",
			"/api/v1/system/ping",
			"/api/v1/system/info",
		},
		SkipPathPrefixes: []string{
			"/api/v1/webhooks",
		},
		Logger: log,
	}
	r.Use(middleware.JWTAuthMiddlewareWithConfig(jwtConfig))

	// Identity domain (registration, login, profile)
	authRoutes := router.NewDomainGroup("auth", "/auth")
	authRoutes.POST("/register", authHandler.Register)
	authRoutes.POST("/login", authHandler.Login)
	authRoutes.GET("/me", authHandler.GetCurrentUser)
	authRoutes.PUT("/password", authHandler.ChangePassword)

	// Tokens domain (balance, ledger, render debits and refunds)
	tokensRoutes := router.NewDomainGroup("tokens", "/tokens")
	tokensRoutes.GET("/balance", tokensHandler.GetBalance)
	tokensRoutes.GET("/ledger", tokensHandler.GetLedger)
	tokensRoutes.POST("/render/debit", tokensHandler.DebitRender)
	tokensRoutes.POST("/render/refund", tokensHandler.RefundRender)

	// Billing domain (catalog, Stripe checkout and portal sessions)
	billingRoutes := router.NewDomainGroup("billing", "/billing")
	billingRoutes.GET("/packs", billingHandler.ListPacks)
	if checkoutLimiter != nil {
		billingRoutes.POST("/checkout-session", checkoutLimiter, billingHandler.CreateCheckoutSession)
		billingRoutes.POST("/portal-session", checkoutLimiter, billingHandler.CreatePortalSession)
	} else {
		billingRoutes.POST("/checkout-session", billingHandler.CreateCheckoutSession)
		billingRoutes.POST("/portal-session", billingHandler.CreatePortalSession)
	}

	// Admin domain (manual credits, balance verification)
	adminRoutes := router.NewDomainGroup("admin", "/admin")
	adminRoutes.Use(middleware.RequireAdmin())
	adminRoutes.POST("/tokens/credit", adminHandler.CreditTokens)
	adminRoutes.GET("/tokens/verify/:user_id", adminHandler.VerifyBalance)

	// System routes
	systemRoutes := router.NewDomainGroup("system", "/system")
	systemRoutes.GET("/info", systemHandler.GetSystemInfo)
	systemRoutes.GET("/ping", systemHandler.Ping)

	// Register all domain groups
	r.Register(authRoutes).
		Register(tokensRoutes).
		Register(billingRoutes).
		Register(adminRoutes).
		Register(systemRoutes)

	// Setup routes
	r.Setup()

	// Create HTTP server with config
	srv := &http.Server{
		Addr:           ":" + cfg.App.Port,
		Handler:        engine,
		ReadTimeout:    cfg.HTTP.ReadTimeout,
		WriteTimeout:   cfg.HTTP.WriteTimeout,
		IdleTimeout:    cfg.HTTP.IdleTimeout,
		MaxHeaderBytes: cfg.HTTP.MaxHeaderBytes,
	}

	// Start server in goroutine
	go func() {
		log.Info("Server starting", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal("Server forced to shutdown", zap.Error(err))
	}

	log.Info("Server exited gracefully")
}

// healthHandler returns a handler for health check endpoints
func healthHandler(db *persistence.Database, _ *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		reqLog := logger.GetGinLogger(c)
		if err := db.Ping(); err != nil {
			reqLog.Warn("Health check failed", zap.Error(err))
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"status":   "unhealthy",
				"time":     time.Now().Format(time.RFC3339),
				"database": "error",
			})
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"status":   "healthy",
			"time":     time.Now().Format(time.RFC3339),
			"database": "ok",
		})
	}
}
