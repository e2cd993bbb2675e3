package main

import (
	"context"
	"io"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"golang.org/x/time/rate"

	"tradevault/internal/broker"
	"tradevault/internal/broker/rawfeed"
	"tradevault/internal/config"
	"tradevault/internal/logger"
	"tradevault/internal/ratelimit"
	"tradevault/internal/registry"
	"tradevault/internal/store/gormstore"
	"tradevault/internal/store/synclog"
	syncsvc "tradevault/internal/sync"
	journalhttp "tradevault/internal/transport/http"
)

func main() {
	cfgPath := os.Getenv("TRADEVAULT_CONFIG")
	if cfgPath == "" {
		cfgPath = "configs/config.yaml"
	}

	watcher, err := config.NewWatcher(cfgPath)
	if err != nil {
		log.Fatalf("loading config failed: %v", err)
	}
	cfg := watcher.Current()

	logFile, err := setupLogOutput(cfg.App.LogPath)
	if err != nil {
		log.Fatalf("initializing log output failed: %v", err)
	}
	if logFile != nil {
		defer logFile.Close()
	}
	logger.SetLevel(cfg.App.LogLevel)
	watcher.Subscribe(func(fresh *config.Config) {
		logger.SetLevel(fresh.App.LogLevel)
	})
	logger.Infof("config loaded (env=%s, db=%s)", cfg.App.Env, cfg.Storage.DatabasePath)

	st, err := gormstore.New(cfg.Storage.DatabasePath)
	if err != nil {
		log.Fatalf("opening store failed: %v", err)
	}
	defer st.Close()

	audit, err := synclog.New(cfg.Storage.SyncLogPath)
	if err != nil {
		log.Fatalf("opening sync log failed: %v", err)
	}
	defer audit.Close()

	adapters := broker.NewFactory()
	if err := adapters.Register(rawfeed.New()); err != nil {
		log.Fatalf("registering rawfeed adapter failed: %v", err)
	}

	reg := registry.New(st)
	orchestrator := syncsvc.NewOrchestrator(st, reg, adapters, audit, syncsvc.Options{
		AdapterRate:      rate.Limit(cfg.Sync.AdapterRatePerSec),
		AdapterBurst:     cfg.Sync.AdapterBurst,
		AutoSyncInterval: cfg.AutoSyncInterval(),
	})
	defer orchestrator.Stop()

	limiter := ratelimit.New()
	defer limiter.Close()

	// The identity provider is external to this service. Deployments
	// plug their session validator in here; the passthrough below is
	// only suitable behind a trusted gateway that already resolved the
	// user.
	identity := journalhttp.HeaderIdentity(func(token string) (string, error) {
		return strings.TrimSpace(token), nil
	})

	server, err := journalhttp.NewServer(journalhttp.ServerConfig{
		Addr:            cfg.App.HTTPAddr,
		Identity:        identity,
		Store:           st,
		Registry:        reg,
		Orchestrator:    orchestrator,
		Limiter:         limiter,
		SyncLog:         audit,
		RateLimitMax:    cfg.RateLimit.MaxRequests,
		RateLimitWindow: time.Duration(cfg.RateLimit.WindowSeconds) * time.Second,
	})
	if err != nil {
		log.Fatalf("building http server failed: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := server.Run(ctx); err != nil {
		log.Fatalf("http server failed: %v", err)
	}
	logger.Infof("shutdown complete")
}

func setupLogOutput(path string) (*os.File, error) {
	trimmed := strings.TrimSpace(path)
	if trimmed == "" {
		return nil, nil
	}
	dir := filepath.Dir(trimmed)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
	}
	file, err := os.OpenFile(trimmed, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, err
	}
	mw := io.MultiWriter(os.Stdout, file)
	log.SetOutput(mw)
	logger.SetOutput(mw)
	return file, nil
}
