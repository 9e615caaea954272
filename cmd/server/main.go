package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"stock-screener/config"
	"stock-screener/internal/cache"
	"stock-screener/internal/marketdata"
	"stock-screener/internal/screener"
	"stock-screener/internal/server"
	"stock-screener/pkg/logger"
)

func main() {
	_ = godotenv.Load()
	cfg := config.Load()
	log := logger.New(cfg.LogLevel)
	defer log.Sync()

	log.Info("stock screener starting",
		zap.String("api_url", cfg.API.BaseURL),
		zap.String("addr", cfg.Server.Addr),
		zap.Int("scan_workers", cfg.Scan.Workers))

	store := buildCache(cfg, log)
	client := marketdata.NewClient(cfg.API.BaseURL, cfg.API.UseLocalCandles, log)
	mock := marketdata.NewMock(log)
	provider := marketdata.NewFallbackProvider(client, mock, store, log)
	scanner := screener.NewScanner(provider, client, store, cfg.Scan.Workers, log)
	svc := server.NewService(provider, client, scanner, store, log)
	router := server.NewRouter(svc, log)

	srv := &http.Server{
		Addr:    cfg.Server.Addr,
		Handler: router,
	}

	go func() {
		log.Info("listening", zap.String("addr", cfg.Server.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("server failed", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Error("shutdown failed", zap.Error(err))
	}
}

// buildCache prefers Redis, degrading to the in-process cache when the
// server is unreachable at boot.
func buildCache(cfg *config.AppConfig, log *zap.Logger) cache.Store {
	redisStore, err := cache.NewRedis(cfg.Cache.RedisURL, log)
	if err != nil {
		log.Warn("invalid redis url, using in-memory cache", zap.Error(err))
		return cache.NewMemory(log)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := redisStore.Ping(ctx); err != nil {
		log.Warn("redis unreachable, using in-memory cache", zap.Error(err))
		return cache.NewMemory(log)
	}
	log.Info("redis cache connected", zap.String("url", cfg.Cache.RedisURL))
	return redisStore
}
