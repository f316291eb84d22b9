package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/legacykeep/chat-store/internal/auth"
	"github.com/legacykeep/chat-store/internal/config"
	"github.com/legacykeep/chat-store/internal/db"
	"github.com/legacykeep/chat-store/internal/expiry"
	"github.com/legacykeep/chat-store/internal/ingest"
	"github.com/legacykeep/chat-store/internal/logger"
	"github.com/legacykeep/chat-store/internal/middleware"
	"github.com/legacykeep/chat-store/internal/session"
	"github.com/legacykeep/chat-store/internal/store"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	dev := cfg.App.Env == "dev"
	zlog, err := logger.Init(cfg.Log, dev)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer func() { _ = zlog.Sync() }()
	if !dev {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx := context.Background()

	// Database and index provisioning. An incomplete index set means a
	// query pattern would silently degrade to a collection scan, so a
	// provisioning failure blocks startup outright.
	dbClient, err := db.New(ctx, cfg.Mongo.URI, cfg.Mongo.Database)
	if err != nil {
		zlog.Fatal("failed to connect to MongoDB", zap.Error(err))
	}
	defer func() { _ = dbClient.Close(ctx) }()

	if err := dbClient.EnsureIndexes(ctx); err != nil {
		zlog.Fatal("failed to provision index catalog", zap.Error(err))
	}
	zlog.Info("index catalog provisioned",
		zap.Int("indexes", len(db.Catalog)))

	// Stores.
	messages := store.NewMessagesStore(dbClient.MessagesCollection())
	media := store.NewMediaStore(dbClient.MediaFilesCollection())
	sessions := store.NewSessionsStore(dbClient.ChatSessionsCollection())

	// Redis-backed session liveness cache.
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer func() { _ = rdb.Close() }()
	sessionCache := session.New(rdb, sessions, cfg.SessionTTL, 0)

	// Background expiry sweep, decoupled from the request path.
	sweeper := expiry.New(messages, sessions, cfg.SweepInterval, zlog)
	sweeper.Start()
	defer sweeper.Stop()

	// Ingestion feed (optional: a deployment may run HTTP-only).
	ingestCtx, stopIngest := context.WithCancel(ctx)
	defer stopIngest()
	if len(cfg.Kafka.Brokers) > 0 {
		consumer := ingest.New(ingest.Config{
			Brokers: cfg.Kafka.Brokers,
			Topic:   cfg.Kafka.Topic,
			GroupID: cfg.Kafka.GroupID,
		}, messages, zlog)
		defer func() { _ = consumer.Close() }()
		go consumer.Run(ingestCtx)
		zlog.Info("ingestion consumer started",
			zap.Strings("brokers", cfg.Kafka.Brokers),
			zap.String("topic", cfg.Kafka.Topic))
	}

	// Collaborator auth and rate limiting.
	if len(cfg.Auth.Keys) == 0 {
		zlog.Fatal("auth.keys must be set")
	}
	jwtMgr := auth.NewJWTManagerFromKeys(cfg.Auth.Keys, cfg.Auth.ActiveKid, cfg.TokenTTL)
	limiter := middleware.NewLimiterStore(cfg.RateLimit.PerMinute, cfg.RateLimit.Burst, time.Minute)
	defer limiter.Stop()

	srv := newServer(messages, media, sessions, sessionCache, jwtMgr, limiter, zlog)

	httpSrv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.App.Port),
		Handler: srv.routes(),
	}

	go func() {
		zlog.Info("http server listening", zap.String("addr", httpSrv.Addr))
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			zlog.Fatal("http server exit", zap.Error(err))
		}
	}()

	// Graceful shutdown on SIGINT/SIGTERM: stop taking requests, stop
	// the ingestion feed, then let the deferred sweeper/clients close.
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	zlog.Info("shutting down")
	stopIngest()
	shutdownCtx, cancel := context.WithTimeout(ctx, cfg.ShutdownTimeout)
	defer cancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		zlog.Error("http shutdown", zap.Error(err))
	}
}
