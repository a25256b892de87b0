package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/kurantoB/TwitterClone-sub000/internal/config"
	"github.com/kurantoB/TwitterClone-sub000/internal/consumer"
	"github.com/kurantoB/TwitterClone-sub000/internal/domain"
	"github.com/kurantoB/TwitterClone-sub000/internal/events"
	"github.com/kurantoB/TwitterClone-sub000/internal/handler"
	"github.com/kurantoB/TwitterClone-sub000/internal/reconciler"
	"github.com/kurantoB/TwitterClone-sub000/internal/repository"
	"github.com/kurantoB/TwitterClone-sub000/internal/service"
	"github.com/kurantoB/TwitterClone-sub000/internal/store"
	"github.com/kurantoB/TwitterClone-sub000/pkg/database"
	"github.com/kurantoB/TwitterClone-sub000/pkg/jwt"
	pkglog "github.com/kurantoB/TwitterClone-sub000/pkg/log"
	"github.com/kurantoB/TwitterClone-sub000/pkg/middleware"
	"github.com/kurantoB/TwitterClone-sub000/pkg/pubsub"
)

const serviceName = "social-graph-service"

func main() {
	// 1. Configuration and logging
	cfg, err := config.Load()
	if err != nil {
		l := pkglog.L()
		l.Fatal().Err(err).Msg("failed to load config")
	}

	pkglog.Init(pkglog.Config{
		Level:       cfg.Log.Level,
		Pretty:      cfg.Log.Pretty || cfg.Log.Level == "debug",
		ServiceName: serviceName,
	})
	logger := pkglog.L()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// 2. Tracing
	shutdownTracer := func(context.Context) error { return nil }
	if cfg.Telemetry.Enabled {
		tp, err := initTracer(ctx, cfg.Telemetry)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to init tracer")
		}
		shutdownTracer = tp.Shutdown
		logger.Info().Str("endpoint", cfg.Telemetry.Endpoint).Msg("tracing enabled")
	}

	// 3. Database
	db, err := database.New(&database.Config{
		Driver:          cfg.Database.Driver,
		Host:            cfg.Database.Host,
		Port:            cfg.Database.Port,
		User:            cfg.Database.User,
		Password:        cfg.Database.Password,
		DBName:          cfg.Database.DBName,
		SSLMode:         cfg.Database.SSLMode,
		TimeZone:        cfg.Database.TimeZone,
		FilePath:        cfg.Database.FilePath,
		MaxIdleConns:    cfg.Database.MaxIdleConns,
		MaxOpenConns:    cfg.Database.MaxOpenConns,
		ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
		LogLevel:        cfg.Database.LogLevel,
		SlowThreshold:   cfg.Database.SlowThreshold,
	}, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer database.Close(db)

	if err := database.AutoMigrate(db, domain.Models()...); err != nil {
		logger.Fatal().Err(err).Msg("failed to auto-migrate")
	}
	logger.Info().Str("driver", cfg.Database.Driver).Msg("database migration completed")

	if cfg.Database.Driver == database.DriverPostgres {
		// Delete events on the edge tables must carry the full before-row
		// for the CDC consumer to know both endpoints.
		for _, table := range []string{"follows", "blocks"} {
			if err := db.Exec(fmt.Sprintf("ALTER TABLE %s REPLICA IDENTITY FULL", table)).Error; err != nil {
				logger.Warn().Err(err).Str("table", table).Msg("failed to set REPLICA IDENTITY FULL")
			}
		}
	}

	// 4. Redis: dirty set and hot keys for the reconciler
	counterStore, err := store.NewRedisCounterStore(cfg.Redis.Address, cfg.Redis.Password, cfg.Redis.DB, cfg.Redis.HotKeyTTL)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to redis")
	}
	defer counterStore.Close()
	logger.Info().Str("addr", cfg.Redis.Address).Msg("redis connected")

	// 5. Relationship events
	var bus pubsub.Publisher
	if cfg.Events.Driver == pubsub.DriverRedis {
		bus = pubsub.NewRedisPublisherFromClient(counterStore.Client())
	} else {
		bus, err = pubsub.NewPublisher(pubsub.Config{
			Driver: cfg.Events.Driver,
			Kafka: pubsub.KafkaConfig{
				Brokers:    cfg.Kafka.Brokers,
				Partitions: cfg.Events.Partitions,
			},
		}, cfg.Events.Topic)
		if err != nil {
			logger.Fatal().Err(err).Str("driver", cfg.Events.Driver).Msg("failed to create event publisher")
		}
	}
	defer bus.Close()

	// 6. Repositories and services
	graphRepo := repository.NewGormGraphRepository(db)
	blockRepo := repository.NewGormBlockRepository(db)
	coordinator := service.NewFollowCoordinator(graphRepo, counterStore, events.NewBusPublisher(bus, cfg.Events.Topic), cfg.Graph)
	queries := service.NewRelationshipQueryEngine(graphRepo, blockRepo, counterStore, cfg.Graph)

	validator, err := jwt.NewValidatorFromFile(cfg.Auth.PublicKeyPath, cfg.Auth.Issuer, cfg.Auth.Leeway)
	if err != nil {
		logger.Fatal().Err(err).Str("path", cfg.Auth.PublicKeyPath).Msg("failed to load auth public key")
	}
	authMiddleware := middleware.NewAuthMiddleware(validator)

	// 7. CDC consumer
	var cdcConsumer *consumer.ConfluentConsumer
	if cfg.Kafka.Brokers != "" {
		kc, err := consumer.NewConfluentConsumer(cfg.Kafka.Brokers, cfg.Kafka.GroupID, cfg.Kafka.CDCTopics, service.NewCounterSync(counterStore))
		if err != nil {
			logger.Warn().Err(err).Msg("failed to create kafka consumer, CDC updates disabled")
		} else if err := kc.Start(ctx); err != nil {
			logger.Warn().Err(err).Msg("failed to start kafka consumer")
		} else {
			cdcConsumer = kc
			logger.Info().Strs("topics", cfg.Kafka.CDCTopics).Msg("kafka CDC consumer started")
		}
	} else {
		logger.Warn().Msg("KAFKA_BROKERS not configured; CDC consumer disabled")
	}

	// 8. Reconciler
	rec := reconciler.New(counterStore, graphRepo, cfg.Reconciler)
	rec.Start(ctx)
	logger.Info().Dur("interval", cfg.Reconciler.Interval).Int("top_n", cfg.Reconciler.TopN).Msg("reconciler started")

	// 9. HTTP
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(pkglog.GinMiddleware(logger))

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	handler.NewHandler(coordinator, queries, authMiddleware).RegisterRoutes(r)

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr: addr,
		Handler: otelhttp.NewHandler(r, serviceName, otelhttp.WithSpanNameFormatter(func(_ string, req *http.Request) string {
			return req.Method + " " + req.URL.Path
		})),
	}

	go func() {
		logger.Info().Str("addr", addr).Msg("social-graph-service starting")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("HTTP server error")
		}
	}()

	// 10. Shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info().Msg("shutdown signal received")

	shutdownDone := make(chan struct{})
	go func() {
		defer close(shutdownDone)

		cancel()

		if cdcConsumer != nil {
			if err := cdcConsumer.Close(); err != nil {
				logger.Warn().Err(err).Msg("error closing kafka consumer")
			}
		}

		rec.Stop()
		<-rec.Done()

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Warn().Err(err).Msg("HTTP server forced to shutdown")
		}
		if err := shutdownTracer(shutdownCtx); err != nil {
			logger.Warn().Err(err).Msg("failed to flush traces")
		}
	}()

	select {
	case <-shutdownDone:
		logger.Info().Msg("social-graph-service stopped")
	case <-time.After(cfg.Server.ShutdownTimeout):
		logger.Warn().Dur("timeout", cfg.Server.ShutdownTimeout).Msg("shutdown timed out")
	}
}
