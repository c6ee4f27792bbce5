package main

import (
	"context"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/liamwears/flowkh/internal/cache"
	"github.com/liamwears/flowkh/internal/config"
	"github.com/liamwears/flowkh/internal/database"
	"github.com/liamwears/flowkh/internal/handlers"
	"github.com/liamwears/flowkh/internal/middleware"
	"github.com/liamwears/flowkh/internal/services"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Initialize logger, teed into a rotating file when one is configured
	var out io.Writer = os.Stdout
	if cfg.Log.File != "" {
		rotator := &lumberjack.Logger{
			Filename:   cfg.Log.File,
			MaxSize:    cfg.Log.MaxSizeMB,
			MaxBackups: cfg.Log.MaxBackups,
			Compress:   true,
		}
		defer rotator.Close()
		out = io.MultiWriter(os.Stdout, rotator)
	}
	logger := log.New(out, "[flowkh] ", log.LstdFlags|log.Lshortfile)
	logger.Printf("Starting flowkh server in %s mode", cfg.Server.Env)

	// Redis is optional: it shares proxy responses and rate limits between instances
	var redisClient *database.RedisClient
	if cfg.Redis.Enabled {
		redisClient, err = database.NewRedisClient(database.RedisConfig{
			Addr:     cfg.RedisAddr(),
			Password: cfg.Redis.Password,
			DB:       0,
			TLS:      cfg.Redis.TLS,
		})
		if err != nil {
			logger.Fatalf("Failed to connect to Redis: %v", err)
		}
		defer redisClient.Close()
	}

	// Initialize services
	tmdbService := services.NewTMDBService(services.TMDBConfig{
		APIKey:       cfg.TMDB.APIKey,
		ReadToken:    cfg.TMDB.ReadToken,
		BaseURL:      cfg.TMDB.BaseURL,
		ImageBaseURL: cfg.TMDB.ImageBaseURL,
		Logger:       logger,
	})
	catalogService := services.NewCatalogService(tmdbService, cache.New(cfg.Cache.TTL), services.NewGenreLookup(), logger)

	// Warm the genre lookup so the first page load doesn't pay for it
	warmCtx, cancelWarm := context.WithTimeout(context.Background(), 10*time.Second)
	if err := catalogService.EnsureGenres(warmCtx); err != nil {
		logger.Printf("Genre warm-up failed, retrying on first request: %v", err)
	}
	cancelWarm()

	// Initialize rate limiter
	var limiter middleware.Limiter
	if redisClient != nil {
		limiter = middleware.NewRedisLimiter(redisClient.Client, cfg.RateLimit.Requests, cfg.RateLimit.Window)
	} else {
		memoryLimiter := middleware.NewMemoryLimiter(cfg.RateLimit.Requests, cfg.RateLimit.Window)
		defer memoryLimiter.Close()
		limiter = memoryLimiter
	}
	rateLimiter := middleware.NewRateLimiter(limiter, logger)

	// Initialize handlers
	proxyConfig := handlers.ProxyConfig{
		BaseURL:   cfg.TMDB.BaseURL,
		APIKey:    cfg.TMDB.APIKey,
		ReadToken: cfg.TMDB.ReadToken,
	}
	var healthPinger handlers.Pinger
	if redisClient != nil {
		proxyConfig.Cache = database.NewResponseStore(redisClient, "tmdb:proxy:", time.Hour)
		healthPinger = redisClient
	}
	proxyHandler := handlers.NewProxyHandler(proxyConfig, logger)
	catalogHandler := handlers.NewCatalogHandler(catalogService, services.NewSuperseder(), logger)
	healthHandler := handlers.NewHealthHandler(healthPinger)

	// Set up HTTP router
	mux := http.NewServeMux()

	mux.Handle("GET /tmdb/{path...}", rateLimiter.Limit(http.HandlerFunc(proxyHandler.Forward)))
	catalogHandler.Register(mux, rateLimiter.Limit)
	mux.HandleFunc("GET /health", healthHandler.Check)

	// Wrap with client identification and logging middleware
	handler := middleware.Logger(logger)(middleware.ClientID(cfg.IsProduction())(mux))

	// Create HTTP server
	addr := ":" + cfg.Server.Port
	srv := &http.Server{
		Addr:         addr,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in a goroutine
	go func() {
		logger.Printf("Server listening on %s", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatalf("Server failed to start: %v", err)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Println("Shutting down server...")

	// Graceful shutdown with timeout
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Fatalf("Server forced to shutdown: %v", err)
	}

	logger.Println("Server exited")
}
