package main

import (
	"context"   // context package is needed for Redis operations and shutdown
	"errors"    // Error inspection
	"net/http"  // HTTP server
	"os"        // Signals
	"os/signal" // Signal notification
	"syscall"   // SIGTERM
	"time"      // Timeouts

	"storefront/internal/api"        // Custom package for API handlers
	"storefront/internal/config"     // Custom package for configuration
	"storefront/internal/db"         // Database connection
	"storefront/internal/middleware" // Custom package for middleware
	"storefront/internal/payment"    // Remote payment functions
	"storefront/internal/storage"    // Product image storage

	"github.com/gin-gonic/gin"     // Gin web framework
	"github.com/redis/go-redis/v9" // Redis client
	"github.com/sirupsen/logrus"   // Logrus for structured logging
)

// Main function to set up and run the server
func main() {
	cfg := config.LoadConfig() // Load configuration

	// Setup logger
	if cfg.IsProd {
		logrus.SetFormatter(&logrus.JSONFormatter{})
	} else {
		logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
		logrus.SetLevel(logrus.DebugLevel)
	}

	// Connect to the database
	conn, err := db.Open(cfg.DSN())
	if err != nil {
		logrus.Fatalf("failed to connect to DB: %v", err) // Fatal error if DB connection fails
	}

	// Setup Redis client; without REDIS_ADDR the cache is off
	var redisClient *redis.Client
	if cfg.RedisAddr != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr, // Redis server address
			Password: cfg.RedisPass, // Redis password
			DB:       cfg.RedisDB,   // Redis database number
		})
		// Test Redis connection
		if _, err := redisClient.Ping(context.Background()).Result(); err != nil {
			logrus.Fatalf("failed to connect to Redis: %v", err)
		}
	} else {
		logrus.Warn("REDIS_ADDR not set, catalog cache disabled")
	}

	// Object storage for product images is optional
	var images storage.ObjectStorage
	if s3Store, err := storage.NewS3Storage(cfg); err == nil {
		images = s3Store
	} else if errors.Is(err, storage.ErrNotConfigured) {
		logrus.Warn("S3 not configured, image uploads disabled")
	} else {
		logrus.Fatalf("failed to set up object storage: %v", err)
	}

	gateway := payment.NewClient(cfg.PaymentsURL, cfg.PaymentsKey)
	if cfg.PaymentsURL == "" {
		logrus.Warn("PAYMENTS_URL not set, payments will fail")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Poll pending payments until shutdown
	poller := payment.NewPoller(conn, gateway, time.Duration(cfg.PaymentPollSeconds)*time.Second)
	go poller.Run(ctx)

	// Set Mode to Release if in production
	if cfg.IsProd {
		gin.SetMode(gin.ReleaseMode)
	}
	middleware.SetupValidator() // Register storefront validation tags

	// Setup Gin
	r := gin.Default() // Gin router instance

	// Set trusted proxies for Gin
	if err := r.SetTrustedProxies([]string{"127.0.0.1"}); err != nil {
		logrus.Fatalf("failed to set trusted proxies: %v", err)
	}

	api.Register(r, api.Deps{
		DB:        conn,
		Redis:     redisClient,
		Gateway:   gateway,
		Storage:   images,
		JWTSecret: cfg.JWTSecret,
		Limiter:   middleware.NewRateLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst),
	})

	srv := &http.Server{
		Addr:              ":" + cfg.AppPort,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		logrus.Info("Server running on " + cfg.AppPort) // Log server start
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logrus.Fatalf("server failed: %v", err)
		}
	}()

	<-ctx.Done() // Wait for SIGINT or SIGTERM
	logrus.Info("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logrus.Errorf("graceful shutdown failed: %v", err)
	}
	if redisClient != nil {
		_ = redisClient.Close()
	}
}
