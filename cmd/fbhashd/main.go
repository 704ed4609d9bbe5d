package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/Adithya-Monish-Kumar-K/FbHash-Similarity-Platform/internal/analytics"
	"github.com/Adithya-Monish-Kumar-K/FbHash-Similarity-Platform/internal/reference"
	"github.com/Adithya-Monish-Kumar-K/FbHash-Similarity-Platform/internal/service/cache"
	"github.com/Adithya-Monish-Kumar-K/FbHash-Similarity-Platform/internal/service/handler"
	"github.com/Adithya-Monish-Kumar-K/FbHash-Similarity-Platform/internal/store"
	"github.com/Adithya-Monish-Kumar-K/FbHash-Similarity-Platform/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/FbHash-Similarity-Platform/pkg/health"
	"github.com/Adithya-Monish-Kumar-K/FbHash-Similarity-Platform/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/FbHash-Similarity-Platform/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/FbHash-Similarity-Platform/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/FbHash-Similarity-Platform/pkg/middleware"
	"github.com/Adithya-Monish-Kumar-K/FbHash-Similarity-Platform/pkg/postgres"
	pkgredis "github.com/Adithya-Monish-Kumar-K/FbHash-Similarity-Platform/pkg/redis"
)

func main() {
	configPath := flag.String("config", "configs/development.yaml", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger.Setup(cfg.Logging.Level, cfg.Logging.Format)
	slog.Info("starting digest service", "port", cfg.Server.Port, "corpus", cfg.Corpus.Path, "mode", cfg.Corpus.Mode)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	ref, err := reference.Load(ctx, cfg.Corpus)
	if err != nil {
		slog.Error("failed to load corpus", "error", err)
		os.Exit(1)
	}
	stats := ref.Corpus.Stats()
	slog.Info("corpus ready",
		"id", stats.ID,
		"documents", stats.Documents,
		"distinct_fingerprints", stats.DistinctFingerprints,
	)

	m := metrics.New()
	m.CorpusDocuments.Set(float64(stats.Documents))
	m.CorpusFingerprints.Set(float64(stats.DistinctFingerprints))
	if cfg.Metrics.Enabled {
		go func() {
			if err := metrics.Serve(ctx, metrics.NewServer(cfg.Metrics.Port, nil)); err != nil {
				slog.Error("metrics server error", "error", err)
			}
		}()
	}

	var digestCache *cache.DigestCache
	var redisClient *pkgredis.Client
	if cfg.Redis.Enabled {
		redisClient, err = pkgredis.NewClient(ctx, cfg.Redis)
		if err != nil {
			slog.Warn("redis unavailable, digest caching disabled", "error", err)
		} else {
			defer redisClient.Close()
			digestCache = cache.New(redisClient, cfg.Redis.CacheTTL)
			slog.Info("digest cache enabled", "addr", cfg.Redis.Addr, "ttl", cfg.Redis.CacheTTL)
		}
	}

	var digestStore handler.DigestStore
	var db *postgres.Client
	if cfg.Postgres.Enabled {
		db, err = postgres.New(ctx, cfg.Postgres)
		if err != nil {
			slog.Warn("postgres unavailable, digest store disabled", "error", err)
		} else {
			defer db.Close()
			s := store.New(db)
			if err := s.Migrate(ctx); err != nil {
				slog.Error("failed to migrate digest store", "error", err)
				os.Exit(1)
			}
			digestStore = s
			slog.Info("digest store enabled", "host", cfg.Postgres.Host, "database", cfg.Postgres.Database)
		}
	}

	var publisher analytics.Publisher
	if cfg.Kafka.Enabled {
		producer := kafka.NewProducer(cfg.Kafka, cfg.Kafka.Topics.Events)
		defer producer.Close()
		publisher = producer
		slog.Info("event publishing enabled", "topic", cfg.Kafka.Topics.Events)
	}
	collector := analytics.NewCollector(publisher, nil, analytics.CollectorConfig{})
	collector.Start(ctx)
	defer collector.Close()

	checker := health.NewChecker()
	checker.Require("corpus", func(ctx context.Context) health.ComponentHealth {
		if ref.Corpus.Size() == 0 {
			return health.ComponentHealth{Status: health.StatusDegraded, Message: "corpus is empty, every fingerprint weighs 1"}
		}
		return health.ComponentHealth{Status: health.StatusUp, Message: fmt.Sprintf("%d documents", ref.Corpus.Size())}
	})
	var redisPing, postgresPing func(context.Context) error
	if redisClient != nil {
		redisPing = redisClient.Ping
	}
	if db != nil {
		postgresPing = db.Ping
	}
	checker.Register("redis", health.Ping(redisPing))
	checker.Register("postgres", health.Ping(postgresPing))

	h := handler.New(ref, digestCache, digestStore, collector, m, handler.Options{
		MaxDocumentBytes: cfg.Digest.MaxDocumentBytes,
		RankLimit:        cfg.Digest.RankLimit,
	})

	mux := http.NewServeMux()
	h.Register(mux)
	mux.HandleFunc("GET /health/live", checker.LiveHandler())
	mux.HandleFunc("GET /health/ready", checker.ReadyHandler())
	mux.Handle("GET /metrics", metrics.HandlerFor(nil))

	var chain http.Handler = mux
	chain = middleware.Timeout(cfg.Server.RequestTimeout())(chain)
	chain = middleware.Metrics(m)(chain)
	chain = middleware.Tracing(chain)
	chain = middleware.RequestID(chain)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      chain,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	shutdownDone := make(chan struct{})
	go func() {
		defer close(shutdownDone)
		<-ctx.Done()
		slog.Info("shutdown signal received")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("server shutdown error", "error", err)
		}
	}()

	slog.Info("digest service listening", "addr", server.Addr)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}
	// ListenAndServe returns as soon as Shutdown starts; in-flight requests
	// still use the collector, db and redis until the drain finishes.
	<-shutdownDone

	slog.Info("digest service stopped")
}
