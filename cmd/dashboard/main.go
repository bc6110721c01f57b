package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/richxcame/ridedemand/internal/dashboard"
	"github.com/richxcame/ridedemand/pkg/config"
	"github.com/richxcame/ridedemand/pkg/errortracking"
	"github.com/richxcame/ridedemand/pkg/health"
	"github.com/richxcame/ridedemand/pkg/logger"
	"github.com/richxcame/ridedemand/pkg/redis"
	"github.com/richxcame/ridedemand/pkg/tracing"
	ws "github.com/richxcame/ridedemand/pkg/websocket"
	"go.uber.org/zap"
)

const serviceName = "ridedemand-dashboard"

func main() {
	// Load configuration
	cfg, err := config.Load(serviceName)
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	if err := logger.Init(cfg.Server.Environment); err != nil {
		panic("failed to initialize logger: " + err.Error())
	}
	defer logger.Sync()

	logger.Info("Starting ride demand dashboard",
		zap.String("environment", cfg.Server.Environment),
		zap.String("version", cfg.Server.Version),
	)

	if err := errortracking.Init(cfg.Sentry, cfg.Server.Environment, cfg.Server.Version); err != nil {
		logger.Warn("Sentry initialization failed", zap.Error(err))
	}
	defer errortracking.Flush(2 * time.Second)

	ctx := context.Background()
	shutdownTracing, err := tracing.Init(ctx, cfg.Tracing, serviceName, cfg.Server.Version)
	if err != nil {
		logger.Fatal("Failed to initialize tracing", zap.Error(err))
	}

	// Optional shared chart cache
	var deps dashboard.Deps
	checks := map[string]func() error{}
	if cfg.Redis.Enabled {
		redisClient, err := redis.NewRedisClient(&cfg.Redis)
		if err != nil {
			logger.Fatal("Failed to connect to Redis", zap.Error(err))
		}
		defer redisClient.Close()
		deps.Redis = redisClient
		checks["redis"] = health.RedisChecker(redisClient.Client)
		logger.Info("Connected to Redis", zap.String("addr", cfg.Redis.RedisAddr()))
	}

	// Dataset and model are loaded once; the dashboard does not start without them
	app, err := dashboard.Load(ctx, cfg, deps)
	if err != nil {
		errortracking.CaptureError(nil, err)
		errortracking.Flush(2 * time.Second)
		logger.Fatal("Failed to load dashboard state", zap.Error(err))
	}
	app.Warm(ctx)

	hub := ws.NewHub()
	go hub.Run()
	logger.Info("WebSocket hub started")

	if cfg.Server.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := dashboard.NewRouter(app, dashboard.RouterOptions{Hub: hub, Checks: checks})

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
	}

	go func() {
		logger.Info("Dashboard listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down dashboard...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	hub.Stop()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server shutdown failed", zap.Error(err))
	}
	if err := shutdownTracing(shutdownCtx); err != nil {
		logger.Warn("Tracing shutdown failed", zap.Error(err))
	}

	logger.Info("Dashboard stopped")
}
