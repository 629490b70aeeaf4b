package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.uber.org/zap"

	"github.com/quietloop/syncradio/internal/v1/bus"
	"github.com/quietloop/syncradio/internal/v1/clock"
	"github.com/quietloop/syncradio/internal/v1/config"
	"github.com/quietloop/syncradio/internal/v1/dispatch"
	"github.com/quietloop/syncradio/internal/v1/health"
	"github.com/quietloop/syncradio/internal/v1/hub"
	"github.com/quietloop/syncradio/internal/v1/logging"
	"github.com/quietloop/syncradio/internal/v1/middleware"
	"github.com/quietloop/syncradio/internal/v1/ratelimit"
	"github.com/quietloop/syncradio/internal/v1/tracing"
	"github.com/quietloop/syncradio/internal/v1/transport"
)

func main() {
	// Load .env file for local development. Try multiple paths to handle
	// different ways of running the app.
	envPaths := []string{".env", "../../.env", "../../../.env"}
	var envLoaded bool
	for _, path := range envPaths {
		if err := godotenv.Load(path); err == nil {
			envLoaded = true
			break
		}
	}

	cfg := config.Load()

	if err := logging.Initialize(cfg.GoEnv == "development"); err != nil {
		panic(err)
	}
	if !envLoaded {
		logging.Warn(nil, "no .env file found in any expected location, relying on environment variables")
	}

	if endpoint := os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"); endpoint != "" {
		tp, err := tracing.InitTracer(context.Background(), "syncradio-hub", endpoint)
		if err != nil {
			logging.Warn(nil, "tracing disabled: failed to init tracer", zap.Error(err))
		} else {
			defer func() {
				ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				_ = tp.Shutdown(ctx)
			}()
		}
	}

	c := clock.NewSystem()

	var busSvc *bus.Service
	if cfg.RedisEnabled {
		var err error
		busSvc, err = bus.NewService(cfg.RedisAddr, cfg.RedisPassword)
		if err != nil {
			logging.Warn(nil, "broadcast bus disabled: failed to connect to redis", zap.Error(err))
			busSvc = nil
		} else {
			defer func() { _ = busSvc.Close() }()
		}
	}

	var registry *hub.Registry
	if busSvc != nil {
		registry = hub.NewWithBus(c, busSvc)
	} else {
		registry = hub.New(c)
	}

	dispatcher := dispatch.New(registry, c)

	limiter, err := ratelimit.New(cfg.RateLimitWsIP, busSvc.Client())
	if err != nil {
		logging.Warn(nil, "connection rate limiting disabled: invalid rate", zap.Error(err))
		limiter = nil
	}

	server := transport.NewServer(dispatcher, cfg.AllowedOrigins, limiter, c)
	healthHandler := health.NewHandler(busSvc, registry)

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(otelgin.Middleware("syncradio-hub"))
	router.Use(middleware.CorrelationID())

	corsConfig := cors.DefaultConfig()
	if len(cfg.AllowedOrigins) > 0 {
		corsConfig.AllowOrigins = cfg.AllowedOrigins
	} else {
		corsConfig.AllowAllOrigins = true
	}
	router.Use(cors.New(corsConfig))

	router.GET("/ws/hub/:roomId", server.Handle)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	router.GET("/health/live", healthHandler.Liveness)
	router.GET("/health/ready", healthHandler.Readiness)

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}

	serverErrors := make(chan error, 1)
	go func() {
		logging.Info(nil, "hub starting", zap.String("port", cfg.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErrors <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		logging.Error(nil, "server failed to start", zap.Error(err))
		os.Exit(1)
	case <-quit:
		logging.Info(nil, "shutting down")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logging.Error(nil, "server forced to shutdown", zap.Error(err))
	}

	logging.Info(nil, "hub exited")
}
