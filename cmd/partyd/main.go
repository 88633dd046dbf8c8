package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"watchparty/internal/core/services"
	httphandlers "watchparty/internal/handlers/http"
	"watchparty/internal/infrastructure/gateway"
	"watchparty/internal/infrastructure/middleware"
	"watchparty/internal/infrastructure/monitoring"
	redisrepo "watchparty/internal/infrastructure/repositories/redis"
	"watchparty/pkg/config"
	"watchparty/pkg/logger"
	"watchparty/pkg/retry"
	"watchparty/pkg/tracing"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
)

func main() {
	startTime := time.Now()

	// Try multiple config paths
	configPaths := []string{
		"configs/config.yaml",
		"./configs/config.yaml",
		"/etc/watchparty/config.yaml",
		"config.yaml",
	}

	var cfg *config.Config
	var err error

	for _, path := range configPaths {
		cfg, err = config.Load(path)
		if err == nil {
			break
		}
	}

	if err != nil {
		// Fallback to defaults if config cannot be loaded
		cfg = config.DefaultConfig()
	}

	// Initialize logger
	zapLogger := logger.New(cfg.Logging.Level, cfg.Logging.Format)
	defer zapLogger.Sync()

	log := zapLogger.Sugar()

	// Initialize tracing
	tracerProvider, err := tracing.Init(tracing.Config{
		Enabled:     cfg.Tracing.Enabled,
		ServiceName: "watchparty",
		JaegerURL:   cfg.Tracing.JaegerURL,
		SampleRate:  cfg.Tracing.SamplingRate,
	})
	if err != nil {
		log.Fatalw("failed to initialize tracing", "error", err)
	}

	// Connect to Redis with startup retries
	var client *redis.Client
	err = retry.Retry(context.Background(), retry.DefaultConfig(), func() error {
		var connErr error
		client, connErr = redisrepo.NewRedisClient(
			cfg.Redis.Address,
			cfg.Redis.Password,
			cfg.Redis.DB,
			cfg.Redis.PoolSize,
			log,
		)
		return connErr
	})
	if err != nil {
		log.Fatalw("failed to connect to Redis", "address", cfg.Redis.Address, "error", err)
	}

	// Initialize repositories
	roomRepo := redisrepo.NewRedisRoomRepository(client, log)
	signalRepo := redisrepo.NewRedisSignalRepository(client, log)
	participantRepo := redisrepo.NewRedisParticipantRepository(client, log)
	chatRepo := redisrepo.NewRedisChatRepository(client, log)
	userRepo := redisrepo.NewRedisUserRepository(client)

	// Initialize monitoring
	collector := monitoring.NewPrometheusCollector()

	// Initialize services
	authService := services.NewAuthService(userRepo, cfg.Auth.JWTSecret, cfg.Auth.AccessTokenTTL)
	roomService := services.NewRoomService(roomRepo, signalRepo, log)
	chatService := services.NewChatService(
		chatRepo,
		cfg.RateLimiting.Chat.MessagesPerSecond,
		cfg.RateLimiting.Chat.Burst,
		collector,
		log,
	)

	// Initialize WebSocket gateway
	gw := gateway.NewGateway(authService, roomRepo, participantRepo, chatService, log)
	gw.SetPingInterval(cfg.Gateway.PingInterval)
	gw.SetPongTimeout(cfg.Gateway.PongTimeout)
	gw.SetLivenessWindow(cfg.Presence.LivenessWindow)

	// Initialize health checks
	healthChecker := monitoring.NewHealthChecker()
	healthChecker.AddCheck("redis", func(ctx context.Context) (bool, error) {
		if err := client.Ping(ctx).Err(); err != nil {
			return false, err
		}
		return true, nil
	}, 2*time.Second)

	// Initialize HTTP handlers
	authHandler := httphandlers.NewAuthHandler(authService, cfg.Auth.AccessTokenTTL)
	roomHandler := httphandlers.NewRoomHandler(roomService, chatService, authService)

	// Configure Gin
	if cfg.Logging.Level != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()

	router.Use(middleware.RecoveryMiddleware(log))
	router.Use(middleware.RequestLoggingMiddleware(zapLogger))
	router.Use(middleware.ErrorHandlerMiddleware(log))
	if cfg.Tracing.Enabled {
		router.Use(middleware.TracingMiddleware())
	}
	router.Use(middleware.NewHTTPRateLimitMiddleware(cfg))

	authHandler.SetupRoutes(router)
	roomHandler.SetupRoutes(router)

	// WebSocket gateway endpoint
	router.GET("/ws", gin.WrapF(gw.HandleWebSocket))

	// Health check endpoint
	router.GET("/health", func(c *gin.Context) {
		status := healthChecker.CheckAll(c.Request.Context())
		code := http.StatusOK
		if status.Status != "healthy" {
			code = http.StatusServiceUnavailable
		}
		c.JSON(code, gin.H{
			"status": status.Status,
			"checks": status.Checks,
			"uptime": time.Since(startTime).String(),
		})
	})

	// Prometheus metrics endpoint
	if cfg.Monitoring.PrometheusEnabled {
		router.GET("/metrics", gin.WrapH(promhttp.Handler()))
		log.Info("Prometheus metrics enabled")
	}

	// Refresh gateway gauges in the background
	statsCtx, statsCancel := context.WithCancel(context.Background())
	defer statsCancel()
	go func() {
		ticker := time.NewTicker(15 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-statsCtx.Done():
				return
			case <-ticker.C:
				stats := gw.Stats()
				collector.UpdateGatewayStats(stats.GatewayConnections, stats.WatchedRooms)
			}
		}
	}()

	// Create HTTP server with timeouts
	srv := &http.Server{
		Addr:         cfg.Server.Address,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	// Start server in goroutine
	serverErr := make(chan error, 1)
	go func() {
		log.Infof("Starting watchparty server on %s", cfg.Server.Address)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErr <- err
		}
	}()

	// Wait for shutdown signals or server error
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-serverErr:
		log.Fatalw("Server failed", "error", err)
	case sig := <-sigChan:
		log.Infow("Received shutdown signal", "signal", fmt.Sprint(sig))
	}

	log.Info("Shutting down watchparty server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Errorw("Error during server shutdown", "error", err)
		if closeErr := srv.Close(); closeErr != nil {
			log.Errorw("Error force closing server", "error", closeErr)
		}
	} else {
		log.Info("Server shutdown gracefully")
	}

	if err := tracerProvider.Shutdown(shutdownCtx); err != nil {
		log.Errorw("Error shutting down tracer", "error", err)
	}
	if err := redisrepo.CloseRedisClient(client); err != nil {
		log.Errorw("Error closing Redis client", "error", err)
	}

	log.Info("watchparty server stopped")
}
