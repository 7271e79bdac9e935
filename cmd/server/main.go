package main

import (
	"context"
	"strconv"
	"time"

	"github.com/zhanikpanik/restaurant-checklist-sub001/internal/handler"
	"github.com/zhanikpanik/restaurant-checklist-sub001/internal/messaging"
	"github.com/zhanikpanik/restaurant-checklist-sub001/internal/middleware"
	"github.com/zhanikpanik/restaurant-checklist-sub001/internal/tenant"
	"github.com/zhanikpanik/restaurant-checklist-sub001/pkg/config"
	"github.com/zhanikpanik/restaurant-checklist-sub001/pkg/csrf"
	"github.com/zhanikpanik/restaurant-checklist-sub001/pkg/database"
	"github.com/zhanikpanik/restaurant-checklist-sub001/pkg/jwtutil"
	"github.com/zhanikpanik/restaurant-checklist-sub001/pkg/logger"
	"github.com/zhanikpanik/restaurant-checklist-sub001/pkg/ratelimit"
	"github.com/zhanikpanik/restaurant-checklist-sub001/pkg/tenantdb"
	"github.com/zhanikpanik/restaurant-checklist-sub001/prometheus"

	"github.com/labstack/echo/v4"
	echomiddleware "github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

func main() {
	// Load configuration from .env file and environment variables
	cfg, err := config.Load()
	if err != nil {
		panic("Failed to load configuration: " + err.Error())
	}

	// Initialize logger with config
	if err := logger.InitLogger(cfg); err != nil {
		panic("Failed to initialize logger: " + err.Error())
	}
	log := logger.GetLogger()
	log.Info("Starting restaurant checklist service...", zap.String("environment", cfg.Server.Env))

	// Initialize JWT utilities
	jwtutil.Initialize(&cfg.JWT)
	log.Info("JWT utilities initialized")

	// Initialize Prometheus metrics
	prometheus.InitMetrics(cfg)
	log.Info("Prometheus metrics initialized")

	// Initialize database, run migrations and apply RLS policies
	if err := database.Initialize(&cfg.DB); err != nil {
		log.Fatal("Failed to initialize database", zap.Error(err))
	}
	log.Info("Database connection established and migrations completed",
		zap.String("db_host", cfg.DB.Host), zap.String("db_name", cfg.DB.DBName))

	// Anti-forgery token codec
	codec := csrf.NewCodecWithTTL(cfg.CSRF.Secret, cfg.CSRF.TTL)

	// Rate limit counter store: shared Redis backend when configured, the
	// in-process store otherwise
	var store ratelimit.Store
	if cfg.RateLimit.RedisAddr != "" {
		redisStore := ratelimit.NewRedisStore(redis.NewClient(&redis.Options{
			Addr:     cfg.RateLimit.RedisAddr,
			Password: cfg.RateLimit.RedisPassword,
			DB:       cfg.RateLimit.RedisDB,
		}))
		pingCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := redisStore.Ping(pingCtx); err != nil {
			// The limiter fails open anyway; a dead Redis at boot downgrades
			// to per-instance limits instead of blocking startup
			log.Warn("Redis unreachable, falling back to in-memory rate limit store", zap.Error(err))
			store = ratelimit.NewMemoryStore(cfg.RateLimit.SweepInterval)
		} else {
			store = redisStore
			log.Info("Rate limit store using Redis", zap.String("addr", cfg.RateLimit.RedisAddr))
		}
		cancel()
	} else {
		store = ratelimit.NewMemoryStore(cfg.RateLimit.SweepInterval)
		log.Info("Rate limit store using in-process counters")
	}
	limiter := ratelimit.NewLimiter(store, log)

	// Tenant-scoped database sessions
	sessions, err := tenantdb.NewSessionManager(database.GetDB(), cfg.DB.AcquireTimeout, log)
	if err != nil {
		log.Fatal("Failed to create tenant session manager", zap.Error(err))
	}

	// Restaurant registry cache in front of the perimeter
	restaurants := tenant.NewCache(tenant.GormLookup(database.GetDB), 5*time.Minute, 1024)

	// Order dispatch publisher is optional: without a broker URL dispatch
	// events are simply not emitted
	var publisher *messaging.Publisher
	if cfg.AMQP.URL != "" {
		publisher, err = messaging.NewPublisher(cfg.AMQP.URL, log)
		if err != nil {
			log.Warn("RabbitMQ unreachable, dispatch events disabled", zap.Error(err))
			publisher = nil
		} else {
			defer publisher.Close()
			log.Info("Order dispatch publisher connected")
		}
	}

	// Handlers
	authHandler := handler.NewAuthHandler(sessions, cfg)
	csrfHandler := handler.NewCSRFHandler(codec)
	supplierHandler := handler.NewSupplierHandler(sessions)
	productHandler := handler.NewProductHandler(sessions)
	catalogHandler := handler.NewCatalogHandler(sessions)
	orderHandler := handler.NewOrderHandler(sessions, publisher)
	syncHandler := handler.NewSyncHandler(sessions, restaurants, nil)

	// Create Echo instance
	e := echo.New()

	// Middleware
	e.Use(echomiddleware.Recover())
	e.Use(echomiddleware.CORS())
	e.Use(middleware.RequestIDMiddleware)

	// Request logging middleware
	e.Use(func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()

			// Process request
			err := next(c)

			// Calculate duration
			duration := time.Since(start).Seconds()
			status := c.Response().Status

			// Log request details
			log := logger.FromContext(c)
			log.Info("HTTP Request",
				zap.String("method", c.Request().Method),
				zap.String("path", c.Request().URL.Path),
				zap.Int("status", status),
				zap.Float64("duration_s", duration),
				zap.String("ip", c.RealIP()),
			)

			prometheus.HttpRequestsTotal.WithLabelValues(
				c.Request().Method,
				c.Path(),
				strconv.Itoa(status),
			).Inc()

			prometheus.HttpRequestDuration.WithLabelValues(
				c.Request().Method,
				c.Path(),
				strconv.Itoa(status),
			).Observe(duration)

			return err
		}
	})

	// Perimeter building blocks. Order within a route is fixed: rate limit
	// first (cheapest), then authentication, CSRF, restaurant verification.
	authLimit := middleware.RateLimit(limiter, ratelimit.AuthPolicy)
	readLimit := middleware.RateLimit(limiter, ratelimit.ReadPolicy)
	writeLimit := middleware.RateLimit(limiter, ratelimit.WritePolicy)
	exportLimit := middleware.RateLimit(limiter, ratelimit.ExportPolicy)
	csrfGuard := middleware.CSRF(codec)
	requireRestaurant := middleware.RequireRestaurant(restaurants)

	read := []echo.MiddlewareFunc{readLimit, middleware.Auth, requireRestaurant}
	write := []echo.MiddlewareFunc{writeLimit, middleware.Auth, csrfGuard, requireRestaurant}
	export := []echo.MiddlewareFunc{exportLimit, middleware.Auth, requireRestaurant}

	// Public routes
	e.GET("/", handler.HealthCheck)
	e.GET("/health", handler.HealthCheck)
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))
	e.GET("/api/csrf", csrfHandler.IssueToken, readLimit)

	// Authentication
	e.POST("/api/auth/login", authHandler.Login, authLimit, csrfGuard)
	e.POST("/api/auth/logout", authHandler.Logout, writeLimit, middleware.Auth, csrfGuard)
	e.GET("/api/auth/me", authHandler.Me, readLimit, middleware.Auth)

	// Suppliers
	e.GET("/api/suppliers", supplierHandler.ListSuppliers, read...)
	e.GET("/api/suppliers/:id", supplierHandler.GetSupplier, read...)
	e.POST("/api/suppliers", supplierHandler.CreateSupplier, write...)
	e.PUT("/api/suppliers/:id", supplierHandler.UpdateSupplier, write...)
	e.DELETE("/api/suppliers/:id", supplierHandler.DeleteSupplier, write...)

	// Products
	e.GET("/api/products", productHandler.ListProducts, read...)
	e.GET("/api/products/:id", productHandler.GetProduct, read...)
	e.POST("/api/products", productHandler.CreateProduct, write...)
	e.PUT("/api/products/:id", productHandler.UpdateProduct, write...)
	e.DELETE("/api/products/:id", productHandler.DeleteProduct, write...)

	// Sections and categories
	e.GET("/api/sections", catalogHandler.ListSections, read...)
	e.POST("/api/sections", catalogHandler.CreateSection, write...)
	e.GET("/api/categories", catalogHandler.ListCategories, read...)
	e.POST("/api/categories", catalogHandler.CreateCategory, write...)

	// Orders
	e.GET("/api/orders", orderHandler.ListOrders, read...)
	e.GET("/api/orders/export", orderHandler.ExportOrders, export...)
	e.GET("/api/orders/:id", orderHandler.GetOrder, read...)
	e.POST("/api/orders", orderHandler.CreateOrder, write...)
	e.PUT("/api/orders/:id/status", orderHandler.UpdateOrderStatus, write...)

	// POS sync
	e.POST("/api/sync/pos", syncHandler.SyncFromPOS, write...)

	// Start server
	port := cfg.Server.Port
	log.Info("Starting server", zap.String("port", port))
	if err := e.Start(":" + port); err != nil {
		log.Fatal("Failed to start server", zap.Error(err))
	}
}
