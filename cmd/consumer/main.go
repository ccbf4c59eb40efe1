package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/samber/do"
	"github.com/serroba/chatid-bot/internal/config"
	"github.com/serroba/chatid-bot/internal/container"
	"github.com/serroba/chatid-bot/internal/messaging"
	"go.uber.org/zap"
)

func main() {
	cfg := &config.Config{
		Store: config.StoreConfig{RedisAddr: getEnv("REDIS_ADDR", "localhost:6379")},
		Log: config.LogConfig{
			Format: getEnv("LOG_FORMAT", "console"),
			Level:  getEnv("LOG_LEVEL", "info"),
		},
	}

	injector := do.New()
	do.ProvideValue(injector, cfg)
	container.LoggerPackage(injector)
	container.RedisPackage(injector)
	container.PubSubPackage(injector)
	container.ConsumerGroupPackage(injector)

	logger := do.MustInvoke[*zap.Logger](injector)
	group := do.MustInvoke[*messaging.ConsumerGroup](injector)

	ctx, cancel := context.WithCancel(context.Background())

	if err := group.Start(ctx); err != nil {
		logger.Fatal("failed to start consumer group", zap.Error(err))
	}

	logger.Info("analytics consumer running", zap.String("redis", cfg.Store.RedisAddr))

	// Wait for shutdown signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	logger.Info("shutting down")
	cancel()

	if err := injector.Shutdown(); err != nil {
		logger.Error("shutdown error", zap.Error(err))
	}

	logger.Info("shutdown complete")
}

func getEnv(key, defaultValue string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}

	return defaultValue
}
