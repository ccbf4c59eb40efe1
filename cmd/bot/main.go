package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/humacli"
	"github.com/go-chi/chi/v5"
	"github.com/samber/do"
	"github.com/serroba/chatid-bot/internal/bot"
	"github.com/serroba/chatid-bot/internal/config"
	"github.com/serroba/chatid-bot/internal/container"
	"github.com/serroba/chatid-bot/internal/messaging"
	"go.uber.org/zap"
)

func registerPackages(injector *do.Injector, options *container.Options) {
	do.ProvideValue(injector, options)
	container.ConfigPackage(injector)
	container.LoggerPackage(injector)
	container.RedisPackage(injector)
	container.PostgresPackage(injector)
	container.QuotaStorePackage(injector)
	container.PubSubPackage(injector)
	container.PublisherGroupPackage(injector)
	container.ConsumerGroupPackage(injector)
	container.QuotaPackage(injector)
	container.RateLimitPackage(injector)
	container.HTTPPackage(injector)
	container.BotPackage(injector)
}

// app holds everything the start and stop hooks share. It is built before
// the hooks run, so neither hook writes state the other reads.
type app struct {
	injector *do.Injector
	cfg      *config.Config
	logger   *zap.Logger
	server   *http.Server
	ctx      context.Context
	cancel   context.CancelFunc
}

func newApp(options *container.Options) (*app, error) {
	injector := do.New()
	registerPackages(injector, options)

	cfg, err := do.Invoke[*config.Config](injector)
	if err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	logger, err := do.Invoke[*zap.Logger](injector)
	if err != nil {
		return nil, fmt.Errorf("create logger: %w", err)
	}

	router := do.MustInvoke[*chi.Mux](injector)

	// Invoke API to trigger route registration
	_ = do.MustInvoke[huma.API](injector)

	ctx, cancel := context.WithCancel(context.Background())

	return &app{
		injector: injector,
		cfg:      cfg,
		logger:   logger,
		server: &http.Server{
			Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
			Handler:           router,
			ReadHeaderTimeout: 10 * time.Second,
		},
		ctx:    ctx,
		cancel: cancel,
	}, nil
}

// start runs until the bot stops polling.
func (a *app) start() {
	// Without Redis the analytics consumer runs in-process.
	if a.cfg.Store.RedisAddr == "" {
		group := do.MustInvoke[*messaging.ConsumerGroup](a.injector)
		if err := group.Start(a.ctx); err != nil {
			a.logger.Fatal("failed to start consumer group", zap.Error(err))
		}
	}

	go func() {
		a.logger.Info("health server starting", zap.Int("port", a.cfg.Server.Port))

		if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.logger.Error("health server failed", zap.Error(err))
		}
	}()

	telegram, err := do.Invoke[*bot.Telegram](a.injector)
	if err != nil {
		a.logger.Fatal("failed to create bot", zap.Error(err))
	}

	telegram.Run(a.ctx)
}

func (a *app) stop() {
	a.cancel()

	a.logger.Info("shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := a.server.Shutdown(ctx); err != nil {
		a.logger.Error("server shutdown error", zap.Error(err))
	}

	if err := a.injector.Shutdown(); err != nil {
		a.logger.Error("service shutdown error", zap.Error(err))
	}

	a.logger.Info("shutdown complete")
	_ = a.logger.Sync()
}

func main() {
	cli := humacli.New(func(hooks humacli.Hooks, options *container.Options) {
		a, err := newApp(options)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}

		hooks.OnStart(a.start)
		hooks.OnStop(a.stop)
	})

	cli.Run()
}
