// Package container wires the service graph with samber/do.
package container

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/ThreeDotsLabs/watermill-redisstream/pkg/redisstream"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humachi"
	_ "github.com/danielgtaylor/huma/v2/formats/cbor" // CBOR format support for huma
	"github.com/go-chi/chi/v5"
	tgbot "github.com/go-telegram/bot"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/samber/do"
	"github.com/serroba/chatid-bot/internal/analytics"
	analyticsstore "github.com/serroba/chatid-bot/internal/analytics/store"
	"github.com/serroba/chatid-bot/internal/bot"
	"github.com/serroba/chatid-bot/internal/config"
	"github.com/serroba/chatid-bot/internal/health"
	"github.com/serroba/chatid-bot/internal/messaging"
	"github.com/serroba/chatid-bot/internal/middleware"
	"github.com/serroba/chatid-bot/internal/quota"
	"github.com/serroba/chatid-bot/internal/ratelimit"
	"github.com/serroba/chatid-bot/internal/store"
	"go.uber.org/zap"
)

// Options are the command line flags of the bot binary.
type Options struct {
	Config string `help:"Path to an optional config file"             short:"c"`
	Port   int    `help:"Health endpoint port, overrides PORT when set" short:"p"`
}

// ConsumerGroupName is the Redis Streams consumer group for analytics.
const ConsumerGroupName = "chatid-analytics"

// RedisClient closes the Redis connection on injector shutdown.
type RedisClient struct {
	*redis.Client
}

func (c *RedisClient) Shutdown() error {
	return c.Close()
}

// PostgresPool closes the pool on injector shutdown.
type PostgresPool struct {
	*pgxpool.Pool
}

func (p *PostgresPool) Shutdown() error {
	p.Close()

	return nil
}

// QuotaBackend is the selected quota store together with its health probe.
type QuotaBackend struct {
	Name    string
	Store   quota.Store
	Checker health.Checker
}

// ConfigPackage loads *config.Config from the command line options.
func ConfigPackage(injector *do.Injector) {
	do.Provide(injector, func(i *do.Injector) (*config.Config, error) {
		opts := do.MustInvoke[*Options](i)

		cfg, err := config.Load(opts.Config)
		if err != nil {
			return nil, err
		}

		if opts.Port != 0 {
			cfg.Server.Port = opts.Port
		}

		return cfg, nil
	})
}

// LoggerPackage provides *zap.Logger configured from *config.Config.
func LoggerPackage(injector *do.Injector) {
	do.Provide(injector, func(i *do.Injector) (*zap.Logger, error) {
		cfg := do.MustInvoke[*config.Config](i)

		return NewLogger(cfg.Log.Format, cfg.Log.Level)
	})
}

// NewLogger builds a zap logger. Format "json" selects the production
// encoder; anything else gets the development console encoder.
func NewLogger(format, level string) (*zap.Logger, error) {
	zcfg := zap.NewDevelopmentConfig()
	if format == "json" {
		zcfg = zap.NewProductionConfig()
	}

	if level != "" {
		lvl, err := zap.ParseAtomicLevel(level)
		if err != nil {
			return nil, fmt.Errorf("parse log level: %w", err)
		}

		zcfg.Level = lvl
	}

	return zcfg.Build()
}

// RedisPackage provides *RedisClient. It is only invoked when an address is
// configured.
func RedisPackage(injector *do.Injector) {
	do.Provide(injector, func(i *do.Injector) (*RedisClient, error) {
		cfg := do.MustInvoke[*config.Config](i)

		client := redis.NewClient(&redis.Options{
			Addr: cfg.Store.RedisAddr,
		})

		return &RedisClient{Client: client}, nil
	})
}

// PostgresPackage provides *PostgresPool for the postgres backend.
func PostgresPackage(injector *do.Injector) {
	do.Provide(injector, func(i *do.Injector) (*PostgresPool, error) {
		cfg := do.MustInvoke[*config.Config](i)

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		pool, err := pgxpool.New(ctx, cfg.Store.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("connect postgres: %w", err)
		}

		return &PostgresPool{Pool: pool}, nil
	})
}

// QuotaStorePackage provides *QuotaBackend for the configured backend.
func QuotaStorePackage(injector *do.Injector) {
	do.Provide(injector, func(i *do.Injector) (*QuotaBackend, error) {
		cfg := do.MustInvoke[*config.Config](i)
		logger := do.MustInvoke[*zap.Logger](i)

		switch cfg.Store.Backend {
		case config.BackendRedis:
			client := do.MustInvoke[*RedisClient](i)
			s := store.NewRedisStore(client.Client, cfg.Store.RedisKey)

			return &QuotaBackend{Name: cfg.Store.Backend, Store: s, Checker: s}, nil
		case config.BackendPostgres:
			pool := do.MustInvoke[*PostgresPool](i)
			s := store.NewPostgresStore(pool.Pool, store.DefaultDocumentName)

			ctx, cancel := context.WithTimeout(context.Background(), cfg.Quota.Timeout)
			defer cancel()

			if err := s.Migrate(ctx); err != nil {
				return nil, fmt.Errorf("migrate quota store: %w", err)
			}

			return &QuotaBackend{Name: cfg.Store.Backend, Store: s, Checker: s}, nil
		case config.BackendMemory:
			s := store.NewMemoryStore()

			return &QuotaBackend{Name: cfg.Store.Backend, Store: s, Checker: s}, nil
		}

		if !cfg.GitHubEnabled() {
			logger.Warn("github credentials missing, using local mode")

			s := store.NewInert()

			return &QuotaBackend{Name: "inert", Store: s, Checker: s}, nil
		}

		s, err := store.NewGitHubStore(store.GitHubConfig{
			Token:   cfg.Store.GitHub.Token,
			Repo:    cfg.Store.GitHub.Repo,
			Path:    cfg.Store.GitHub.Path,
			Branch:  cfg.Store.GitHub.Branch,
			BaseURL: cfg.Store.GitHub.BaseURL,
			Timeout: cfg.Quota.Timeout,
		})
		if err != nil {
			return nil, err
		}

		return &QuotaBackend{Name: cfg.Store.Backend, Store: s, Checker: s}, nil
	})
}

// QuotaPackage provides *quota.Gate and the tracked quota.Limiter used by
// the bot.
func QuotaPackage(injector *do.Injector) {
	do.Provide(injector, func(i *do.Injector) (*quota.Gate, error) {
		cfg := do.MustInvoke[*config.Config](i)
		backend := do.MustInvoke[*QuotaBackend](i)
		logger := do.MustInvoke[*zap.Logger](i)

		loc, err := cfg.Location()
		if err != nil {
			return nil, err
		}

		privileged := ""
		if cfg.Bot.OwnerID != 0 {
			privileged = strconv.FormatInt(cfg.Bot.OwnerID, 10)
		}

		return quota.NewGate(backend.Store, quota.Config{
			DailyLimit:       cfg.Quota.DailyLimit,
			PrivilegedUserID: privileged,
			Timeout:          cfg.Quota.Timeout,
			Location:         loc,
		}, logger.Named("quota")), nil
	})

	do.Provide(injector, func(i *do.Injector) (quota.Limiter, error) {
		gate := do.MustInvoke[*quota.Gate](i)
		group := do.MustInvoke[*messaging.PublisherGroup](i)
		logger := do.MustInvoke[*zap.Logger](i)

		publish := analytics.NewPublishDecision(group.Publisher())

		return analytics.NewTrackedLimiter(gate, publish, logger), nil
	})
}

// RateLimitPackage provides the flood guard ratelimit.Limiter.
func RateLimitPackage(injector *do.Injector) {
	do.Provide(injector, func(i *do.Injector) (ratelimit.Limiter, error) {
		cfg := do.MustInvoke[*config.Config](i)

		return ratelimit.NewSlidingWindowLimiter(
			store.NewRateLimitMemoryStore(),
			cfg.Flood.Limit,
			cfg.Flood.Window,
		), nil
	})
}

// PubSubPackage provides the in-process GoChannel pub/sub used when Redis
// is not configured.
func PubSubPackage(injector *do.Injector) {
	do.Provide(injector, func(i *do.Injector) (*gochannel.GoChannel, error) {
		logger := do.MustInvoke[*zap.Logger](i)

		return gochannel.NewGoChannel(gochannel.Config{}, NewWatermillLogger(logger)), nil
	})
}

// PublisherGroupPackage provides *messaging.PublisherGroup backed by Redis
// Streams, or by the in-process pub/sub without Redis.
func PublisherGroupPackage(injector *do.Injector) {
	do.Provide(injector, func(i *do.Injector) (*messaging.PublisherGroup, error) {
		cfg := do.MustInvoke[*config.Config](i)
		logger := do.MustInvoke[*zap.Logger](i)

		if cfg.Store.RedisAddr == "" {
			return messaging.NewPublisherGroup(do.MustInvoke[*gochannel.GoChannel](i)), nil
		}

		client := do.MustInvoke[*RedisClient](i)

		publisher, err := redisstream.NewPublisher(
			redisstream.PublisherConfig{Client: client.Client},
			NewWatermillLogger(logger),
		)
		if err != nil {
			return nil, fmt.Errorf("create redis stream publisher: %w", err)
		}

		return messaging.NewPublisherGroup(publisher), nil
	})
}

// ConsumerGroupPackage provides *messaging.ConsumerGroup with the analytics
// consumer registered.
func ConsumerGroupPackage(injector *do.Injector) {
	do.Provide(injector, func(i *do.Injector) (*messaging.ConsumerGroup, error) {
		cfg := do.MustInvoke[*config.Config](i)
		logger := do.MustInvoke[*zap.Logger](i)

		var subscriber message.Subscriber

		if cfg.Store.RedisAddr == "" {
			subscriber = do.MustInvoke[*gochannel.GoChannel](i)
		} else {
			client := do.MustInvoke[*RedisClient](i)

			sub, err := redisstream.NewSubscriber(
				redisstream.SubscriberConfig{
					Client:        client.Client,
					ConsumerGroup: ConsumerGroupName,
				},
				NewWatermillLogger(logger),
			)
			if err != nil {
				return nil, fmt.Errorf("create redis stream subscriber: %w", err)
			}

			subscriber = sub
		}

		group := messaging.NewConsumerGroup(subscriber, logger)
		group.Add(analytics.NewConsumer(subscriber, analyticsstore.NewNoop(logger), logger))

		return group, nil
	})
}

// HTTPPackage provides the chi router and huma API serving the health
// endpoint.
func HTTPPackage(injector *do.Injector) {
	do.Provide(injector, func(_ *do.Injector) (*chi.Mux, error) {
		return chi.NewMux(), nil
	})

	do.Provide(injector, func(i *do.Injector) (huma.API, error) {
		router := do.MustInvoke[*chi.Mux](i)
		backend := do.MustInvoke[*QuotaBackend](i)

		api := humachi.New(router, huma.DefaultConfig("Chat ID Bot", "1.0.0"))
		health.RegisterRoutes(api, health.NewHandler(backend.Checker, backend.Name))

		return api, nil
	})
}

// BotPackage provides *bot.Telegram.
func BotPackage(injector *do.Injector) {
	do.Provide(injector, func(i *do.Injector) (*bot.Telegram, error) {
		cfg := do.MustInvoke[*config.Config](i)
		limiter := do.MustInvoke[quota.Limiter](i)
		guard := do.MustInvoke[ratelimit.Limiter](i)
		logger := do.MustInvoke[*zap.Logger](i)

		handler := bot.NewHandler(limiter, cfg.Bot.OwnerID, logger.Named("bot"))

		return bot.NewTelegram(
			cfg.Bot.Token,
			handler,
			logger.Named("bot"),
			[]tgbot.Middleware{middleware.FloodGuard(guard, logger.Named("flood"))},
		)
	})
}
