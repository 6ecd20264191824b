package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/zonelab/geozone/internal/consumer"
	"github.com/zonelab/geozone/internal/di"
	"github.com/zonelab/geozone/pkg/config"
	"github.com/zonelab/geozone/pkg/database"
	"github.com/zonelab/geozone/pkg/logger"
	"github.com/zonelab/geozone/pkg/middleware"
	"github.com/zonelab/geozone/pkg/redis"
	"github.com/zonelab/geozone/pkg/telemetry"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	if err := logger.Init(cfg.App.Environment); err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer logger.Sync()

	appLog := logger.Get()
	appLog.Info("Starting zone service", zap.String("version", cfg.App.Version))

	ctx := context.Background()

	// OpenTelemetry
	telemetryCfg := &telemetry.Config{
		Enabled:        cfg.OTel.Enabled,
		ServiceName:    cfg.OTel.ServiceName,
		ServiceVersion: cfg.App.Version,
		Environment:    cfg.App.Environment,
		CollectorAddr:  cfg.OTel.CollectorAddr,
		SampleRatio:    cfg.OTel.SampleRatio,
	}
	if err := telemetry.Init(ctx, telemetryCfg); err != nil {
		appLog.Warn("Failed to initialize telemetry", zap.Error(err))
	} else if telemetryCfg.Enabled {
		appLog.Info("Telemetry initialized", zap.String("collector", telemetryCfg.CollectorAddr))
	}
	defer telemetry.Shutdown(ctx)

	// Database
	dbCfg := &database.PostgresConfig{
		Host:            cfg.Database.Host,
		Port:            cfg.Database.Port,
		User:            cfg.Database.User,
		Password:        cfg.Database.Password,
		Database:        cfg.Database.DBName,
		SSLMode:         cfg.Database.SSLMode,
		MaxConns:        int32(cfg.Database.MaxOpenConns),
		MinConns:        int32(cfg.Database.MaxIdleConns),
		MaxConnLifetime: cfg.Database.ConnMaxLifetime,
		MaxConnIdleTime: cfg.Database.ConnMaxIdleTime,
		ConnectTimeout:  5 * time.Second,
		MaxRetries:      3,
		RetryInterval:   time.Second,
		EnableTracing:   cfg.OTel.Enabled,
		ServiceName:     cfg.OTel.ServiceName,
	}
	db, err := database.NewPostgres(ctx, dbCfg)
	if err != nil {
		appLog.Fatal("Database connection failed", zap.Error(err))
	}
	defer db.Close()
	appLog.Info("Database connected",
		zap.Int32("min_conns", dbCfg.MinConns),
		zap.Int32("max_conns", dbCfg.MaxConns))

	// Redis is optional: rate limiting and idempotency degrade without it
	var redisClient *redis.Client
	if cfg.Redis.Enabled {
		redisCfg := &redis.Config{
			Host:          cfg.Redis.Host,
			Port:          cfg.Redis.Port,
			Password:      cfg.Redis.Password,
			DB:            cfg.Redis.DB,
			PoolSize:      cfg.Redis.PoolSize,
			MinIdleConns:  cfg.Redis.MinIdleConns,
			DialTimeout:   cfg.Redis.DialTimeout,
			ReadTimeout:   cfg.Redis.ReadTimeout,
			WriteTimeout:  cfg.Redis.WriteTimeout,
			MaxRetries:    3,
			RetryInterval: time.Second,
		}
		redisClient, err = redis.NewClient(ctx, redisCfg)
		if err != nil {
			appLog.Warn("Redis connection failed, continuing without it", zap.Error(err))
			redisClient = nil
		} else {
			defer redisClient.Close()
			appLog.Info("Redis connected", zap.String("addr", redisCfg.Addr()))
		}
	}

	container := di.NewContainer(&di.ContainerConfig{
		DB:    db,
		Redis: redisClient,
	})

	// Identity-system event consumer
	var userConsumer *consumer.UserEventsConsumer
	if cfg.Kafka.Enabled {
		userConsumer, err = consumer.NewUserEventsConsumer(ctx, &consumer.UserEventsConsumerConfig{
			Brokers:  cfg.Kafka.Brokers,
			GroupID:  cfg.Kafka.ConsumerGroup,
			ClientID: cfg.Kafka.ClientID,
		}, container.ZoneService, container.UserService)
		if err != nil {
			appLog.Fatal("Kafka consumer setup failed", zap.Error(err))
		}
		go func() {
			if err := userConsumer.Start(ctx); err != nil && ctx.Err() == nil {
				appLog.Error("User events consumer stopped", zap.Error(err))
			}
		}()
		appLog.Info("User events consumer started", zap.Strings("brokers", cfg.Kafka.Brokers))
	}

	// Gin setup
	if cfg.IsDevelopment() {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.RequestID())
	router.Use(middleware.Logger(appLog))
	if cfg.OTel.Enabled {
		router.Use(telemetry.TracingMiddleware(cfg.OTel.ServiceName))
	}
	if cfg.RateLimit.Enabled && redisClient != nil {
		rlCfg := middleware.DefaultRateLimitConfig()
		rlCfg.Requests = cfg.RateLimit.Requests
		rlCfg.Window = cfg.RateLimit.Window
		router.Use(middleware.RateLimit(redisClient, rlCfg))
	}

	// Health check endpoints
	router.GET("/health", container.HealthHandler.Health)
	router.GET("/ready", container.HealthHandler.Ready)

	// API routes, all authenticated
	v1 := router.Group("/api/v1")
	v1.Use(middleware.JWTAuth(cfg.JWT.Secret, cfg.JWT.Issuer))
	if redisClient != nil {
		// Retried mutations replay their original response when the
		// client sends an X-Idempotency-Key
		v1.Use(middleware.Idempotency(redisClient, middleware.DefaultIdempotencyConfig()))
	}
	{
		zones := v1.Group("/zones")
		{
			zones.GET("", container.ZoneHandler.List)
			zones.POST("", container.ZoneHandler.Create)
			zones.POST("/import", container.ZoneHandler.Import)
			zones.GET("/:id", container.ZoneHandler.Get)
			zones.PATCH("/:id", container.ZoneHandler.Update)
			zones.POST("/:id/status", container.ZoneHandler.ChangeStatus)
			zones.GET("/:id/history", container.ZoneHandler.History)
			zones.GET("/:id/export", container.ZoneHandler.Export)
			zones.GET("/:id/permissions", container.ZoneHandler.ListPermissions)
			zones.PUT("/:id/permissions/:user_id", container.ZoneHandler.GrantPermission)

			// Hard delete is administrative; the normal path is the
			// status workflow
			admin := zones.Group("")
			admin.Use(middleware.RequireRole("admin"))
			{
				admin.DELETE("/:id", container.ZoneHandler.Purge)
			}
		}
	}

	srv := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		appLog.Info("HTTP server listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			appLog.Fatal("HTTP server failed", zap.Error(err))
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	appLog.Info("Shutting down...")

	if userConsumer != nil {
		userConsumer.Stop()
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		appLog.Error("Server forced to shutdown", zap.Error(err))
	}

	appLog.Info("Server exited")
}
