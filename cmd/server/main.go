package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/spwotton/sms/internal/auth"
	authHandler "github.com/spwotton/sms/internal/auth/handler"
	"github.com/spwotton/sms/internal/classify"
	classifyMetrics "github.com/spwotton/sms/internal/classify/metrics"
	"github.com/spwotton/sms/internal/classify/remote"
	"github.com/spwotton/sms/internal/directory"
	"github.com/spwotton/sms/internal/directory/cache"
	cacheMetrics "github.com/spwotton/sms/internal/directory/cache/metrics"
	directoryHandler "github.com/spwotton/sms/internal/directory/handler"
	contactStore "github.com/spwotton/sms/internal/directory/store/contact"
	"github.com/spwotton/sms/internal/dispatch"
	dispatchMetrics "github.com/spwotton/sms/internal/dispatch/metrics"
	"github.com/spwotton/sms/internal/events"
	"github.com/spwotton/sms/internal/gateway"
	gatewayHandler "github.com/spwotton/sms/internal/gateway/handler"
	jwttoken "github.com/spwotton/sms/internal/jwt_token"
	"github.com/spwotton/sms/internal/message"
	messageHandler "github.com/spwotton/sms/internal/message/handler"
	messageStore "github.com/spwotton/sms/internal/message/store/message"
	"github.com/spwotton/sms/internal/pipeline"
	pipelineMetrics "github.com/spwotton/sms/internal/pipeline/metrics"
	"github.com/spwotton/sms/internal/platform/config"
	"github.com/spwotton/sms/internal/platform/httpserver"
	"github.com/spwotton/sms/internal/platform/logger"
	platformMetrics "github.com/spwotton/sms/internal/platform/metrics"
	"github.com/spwotton/sms/internal/platform/postgres"
	"github.com/spwotton/sms/internal/platform/redis"
	httptransport "github.com/spwotton/sms/internal/transport/http"
)

const shutdownGrace = 10 * time.Second

// main wires dependencies and owns the process lifecycle. Business logic
// lives in the internal services packages.
func main() {
	cfg := config.FromEnv()
	log := logger.New(cfg.Server.LogLevel)

	if err := run(context.Background(), cfg, log); err != nil {
		log.Error("hub exited", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config.Config, log *slog.Logger) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Backends register a /healthz ping as they come up.
	pingers := map[string]httptransport.Pinger{}

	// Stores: Postgres when a database URL is configured, in-memory
	// otherwise. Both backends sit behind the same store interfaces.
	var (
		msgStore message.Store   = messageStore.NewInMemory()
		cStore   directory.Store = contactStore.NewInMemory()
	)
	if cfg.Database.URL != "" {
		db, err := postgres.Open(ctx, cfg.Database)
		if err != nil {
			return fmt.Errorf("open database: %w", err)
		}
		defer db.Close()
		msgStore = messageStore.NewPostgres(db)
		cStore = contactStore.NewPostgres(db)
		pingers["postgres"] = db.PingContext
		log.Info("stores backed by postgres")
	} else {
		log.Warn("no database configured, messages and contacts are volatile")
	}

	// Lifecycle events go to Kafka when brokers are configured; without
	// them the sink is the structured log.
	var sink events.Sink = events.NewLogSink(log)
	if len(cfg.Kafka.Brokers) > 0 {
		kafkaSink, err := events.NewKafkaSink(cfg.Kafka.Brokers, cfg.Kafka.Topic)
		if err != nil {
			return fmt.Errorf("kafka sink: %w", err)
		}
		defer kafkaSink.Close()
		sink = kafkaSink
		log.Info("events published to kafka", "topic", cfg.Kafka.Topic)
	}
	publisher := events.NewPublisher(sink,
		events.WithAsyncBuffer(1024),
		events.WithPublisherLogger(log),
		events.WithPublisherMetrics(events.NewMetrics()),
	)
	defer publisher.Close()

	// Recipient cache entries live in Redis when configured, so several hub
	// replicas share one cache; otherwise in-process LRU.
	var cacheStore cache.Store = cache.NewMemory(cfg.Cache.Capacity)
	redisClient, err := redis.New(cfg.Redis)
	if err != nil {
		return fmt.Errorf("redis: %w", err)
	}
	if redisClient != nil {
		defer redisClient.Close()
		cacheStore = cache.NewRedis(redisClient.Client)
		pingers["redis"] = redisClient.Health
		log.Info("recipient cache backed by redis")
	}
	resolver := cache.New(cStore, cacheStore,
		cache.WithTTL(cfg.Cache.TTL),
		cache.WithLogger(log),
		cache.WithMetrics(cacheMetrics.New()),
	)

	directorySvc := directory.New(cStore,
		directory.WithLogger(log),
		directory.WithCacheInvalidator(resolver),
		directory.WithPublisher(publisher),
	)
	messages := message.New(msgStore,
		message.WithLogger(log),
		message.WithContactCounter(directorySvc),
	)

	var gw gateway.Client = gateway.NewLoopback()
	if cfg.Gateway.URL != "" {
		gw = gateway.NewJasmin(cfg.Gateway.URL, cfg.Gateway.Username, cfg.Gateway.Password,
			cfg.Gateway.Timeout, gateway.WithFrom(cfg.Gateway.From))
		log.Info("sending through jasmin", "url", cfg.Gateway.URL)
	} else {
		log.Warn("no gateway configured, sends loop back locally")
	}

	queue := dispatch.New(gw, messages,
		dispatch.WithLogger(log),
		dispatch.WithMetrics(dispatchMetrics.New()),
		dispatch.WithPublisher(publisher),
		dispatch.WithWorkers(cfg.Dispatch.Workers),
		dispatch.WithMaxAttempts(cfg.Dispatch.MaxAttempts),
		dispatch.WithRetryPolicy(dispatch.RetryPolicy{Base: cfg.Dispatch.BaseBackoff, Factor: 2, Jitter: 0.5}),
		dispatch.WithPollInterval(cfg.Dispatch.PollInterval),
	)

	classifyOpts := []classify.Option{
		classify.WithLogger(log),
		classify.WithMetrics(classifyMetrics.New()),
		classify.WithThreshold(cfg.Classifier.Threshold),
		classify.WithTimeout(cfg.Classifier.RemoteTimeout),
	}
	if cfg.Classifier.RemoteURL != "" {
		classifyOpts = append(classifyOpts,
			classify.WithRemote(remote.New(cfg.Classifier.RemoteURL, cfg.Classifier.RemoteTimeout)))
		log.Info("classifier escalates to remote model", "url", cfg.Classifier.RemoteURL)
	}
	classifier := classify.New(classifyOpts...)

	pipe := pipeline.New(resolver, classifier, messages, queue,
		pipeline.WithLogger(log),
		pipeline.WithMetrics(pipelineMetrics.New()),
		pipeline.WithPublisher(publisher),
	)

	// Re-admit outbound messages a previous process left pending. A failed
	// sweep is not fatal; those messages wait for the next restart.
	if recovered, err := pipe.RecoverPending(ctx); err != nil {
		log.Error("recovery sweep failed", "error", err)
	} else if recovered > 0 {
		log.Info("recovered pending outbound messages", "count", recovered)
	}

	tokens := jwttoken.NewJWTService(cfg.Auth.JWTSigningKey, "sms-hub", "sms-api")
	authSvc := auth.New(auth.Credential{
		Username:     cfg.Auth.AdminUser,
		PasswordHash: cfg.Auth.AdminPasswordHash,
		Password:     cfg.Auth.AdminPassword,
	}, tokens,
		auth.WithLogger(log),
		auth.WithTokenTTL(cfg.Auth.TokenTTL),
	)

	router := httptransport.NewRouter(httptransport.Config{
		Logger:    log,
		Metrics:   platformMetrics.NewHTTP(),
		Validator: jwttoken.NewJWTServiceAdapter(tokens),
		Pingers:   pingers,
		Public: []httptransport.Registrar{
			authHandler.New(authSvc, log),
		},
		Protected: []httptransport.Registrar{
			messageHandler.New(pipe, messages, queue, log),
			directoryHandler.New(directorySvc, log),
			gatewayHandler.New(gw, queue, messages, log, publisher),
		},
	})
	srv := httpserver.New(cfg.Server.Addr, router)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return queue.Run(gctx)
	})
	g.Go(func() error {
		log.Info("sms hub listening", "addr", cfg.Server.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	log.Info("sms hub stopped")
	return nil
}
