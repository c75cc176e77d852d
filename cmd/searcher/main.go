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

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"

	"github.com/Adithya-Monish-Kumar-K/catalog/internal/indexer/registry"
	"github.com/Adithya-Monish-Kumar-K/catalog/internal/searcher/cache"
	"github.com/Adithya-Monish-Kumar-K/catalog/internal/searcher/handler"
	"github.com/Adithya-Monish-Kumar-K/catalog/internal/searcher/live"
	"github.com/Adithya-Monish-Kumar-K/catalog/internal/searcher/reload"
	"github.com/Adithya-Monish-Kumar-K/catalog/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/catalog/pkg/health"
	"github.com/Adithya-Monish-Kumar-K/catalog/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/catalog/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/catalog/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/catalog/pkg/middleware"
	"github.com/Adithya-Monish-Kumar-K/catalog/pkg/postgres"
	pkgredis "github.com/Adithya-Monish-Kumar-K/catalog/pkg/redis"
)

const (
	pathSearch      = "/api/v1/search"
	pathIndex       = "/api/v1/index"
	pathIndexReload = "/api/v1/index/reload"
	pathCacheStats  = "/api/v1/cache/stats"
	pathLive        = "/health/live"
	pathReady       = "/health/ready"
	pathMetrics     = "/metrics"
)

func main() {
	_ = godotenv.Load()

	var configPath, artifactPath string
	var port int
	fs := pflag.NewFlagSet("searcher", pflag.ContinueOnError)
	fs.StringVarP(&configPath, "config", "c", "", "path to YAML config file")
	fs.StringVarP(&artifactPath, "input", "i", "", "index artifact to serve (default search.artifactPath)")
	fs.IntVarP(&port, "port", "p", 0, "HTTP port (default server.port)")
	if err := fs.Parse(os.Args[1:]); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return
		}
		fmt.Fprintf(os.Stderr, "searcher: %v\n", err)
		os.Exit(2)
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	if fs.Changed("input") {
		cfg.Search.ArtifactPath = artifactPath
	}
	if fs.Changed("port") {
		cfg.Server.Port = port
	}

	logger.Setup(cfg.Logging.Level, cfg.Logging.Format)
	slog.Info("starting search service", "port", cfg.Server.Port)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	m := metrics.New(nil)
	if cfg.Metrics.Enabled && cfg.Metrics.Port != cfg.Server.Port {
		shutdownMetrics := m.StartServer(cfg.Metrics.Port)
		defer shutdownMetrics(context.Background())
	}

	checker := health.NewChecker()

	var db *postgres.Client
	if cfg.Postgres.Enabled() {
		db, err = postgres.New(cfg.Postgres)
		if err != nil {
			slog.Warn("postgres unavailable, build registry lookups disabled", "error", err)
		} else {
			defer db.Close()
			checker.Register(health.ComponentRegistry, health.PingCheck(db.Ping, health.StatusDegraded))
		}
	}
	if !fs.Changed("input") && db != nil {
		latest, err := registry.NewStore(db).Latest(ctx)
		switch {
		case err == nil:
			cfg.Search.ArtifactPath = latest.ArtifactPath
			slog.Info("artifact resolved from registry", "build_id", latest.BuildID, "path", latest.ArtifactPath)
		case errors.Is(err, registry.ErrNoBuilds):
			slog.Info("build registry is empty, using configured artifact")
		default:
			slog.Warn("registry lookup failed, using configured artifact", "error", err)
		}
	}

	var redisClient *pkgredis.Client
	var store cache.Store
	if cfg.Redis.Addr != "" {
		redisClient, err = pkgredis.NewClient(cfg.Redis)
		if err != nil {
			slog.Warn("redis unavailable, search caching disabled", "error", err)
		} else {
			defer redisClient.Close()
			store = redisClient
			checker.Register(health.ComponentCache, health.PingCheck(redisClient.Ping, health.StatusDegraded))
			slog.Info("search cache enabled", "addr", cfg.Redis.Addr, "ttl", cfg.Redis.CacheTTL)
		}
	}
	queryCache := cache.New(store, cfg.Redis.CacheTTL, m)

	holder := live.New(nil)
	reloader := reload.New(holder, cfg.Search.ArtifactPath, queryCache, m)
	if _, err := reloader.Reload(ctx, reload.TriggerStartup); err != nil {
		slog.Error("initial index load failed, serving an empty index until reload", "error", err)
	}
	checker.Register(health.ComponentIndex, health.IndexCheck(func() health.IndexState {
		snap := holder.Current()
		return health.IndexState{
			Loaded:    snap.Path != "",
			BuildID:   snap.BuildID,
			Documents: snap.Index.DocCount(),
			Terms:     snap.Index.TermCount(),
		}
	}))

	if cfg.Kafka.Enabled() {
		host, _ := os.Hostname()
		consumer := kafka.NewConsumer(cfg.Kafka, cfg.Kafka.Topics.IndexPublished, reloader.HandleEvent,
			kafka.WithGroup(fmt.Sprintf("%s-%s", cfg.Kafka.ConsumerGroup, host)),
		)
		go func() {
			if err := consumer.Start(ctx); err != nil {
				slog.Error("index event consumer error", "error", err)
			}
		}()
		slog.Info("listening for published indexes", "topic", cfg.Kafka.Topics.IndexPublished)
	}

	h := handler.New(holder, queryCache, reloader, m, cfg.Search)

	mux := http.NewServeMux()
	mux.HandleFunc("GET "+pathSearch, h.Search)
	mux.HandleFunc("GET "+pathIndex, h.Info)
	mux.HandleFunc("POST "+pathIndexReload, h.Reload)
	mux.HandleFunc("GET "+pathCacheStats, h.CacheStats)
	mux.HandleFunc("GET "+pathLive, checker.LiveHandler())
	mux.HandleFunc("GET "+pathReady, checker.ReadyHandler())
	mux.Handle("GET "+pathMetrics, m.Handler())

	var chain http.Handler = mux
	chain = middleware.Timeout(cfg.Server.WriteTimeout)(chain)
	if cfg.Server.RateLimit > 0 {
		limiter := middleware.NewLimiter(cfg.Server.RateLimit, time.Minute)
		go limiter.Run(ctx, 5*time.Minute)
		chain = middleware.RateLimit(limiter)(chain)
		slog.Info("rate limiting enabled", "requests_per_minute", cfg.Server.RateLimit)
	}
	chain = middleware.CORS(cfg.Server.CORSOrigins)(chain)
	chain = middleware.Metrics(m, pathSearch, pathIndex, pathIndexReload, pathCacheStats, pathLive, pathReady, pathMetrics)(chain)
	chain = middleware.RequestID(chain)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      chain,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		<-ctx.Done()
		slog.Info("shutdown signal received")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("server shutdown error", "error", err)
		}
	}()

	slog.Info("search service listening", "addr", server.Addr, "artifact", reloader.Path())
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}

	slog.Info("search service stopped")
}
