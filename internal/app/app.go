// Package app wires configuration into a ready-to-run poll pipeline.
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"announcement-radar/internal/api"
	"announcement-radar/internal/cache"
	"announcement-radar/internal/classifier"
	"announcement-radar/internal/config"
	"announcement-radar/internal/extraction"
	"announcement-radar/internal/fetcher"
	"announcement-radar/internal/llm"
	"announcement-radar/internal/logger"
	"announcement-radar/internal/normalization"
	"announcement-radar/internal/notify"
	"announcement-radar/internal/observability"
	"announcement-radar/internal/orchestrator"
	"announcement-radar/internal/storage"
	chstore "announcement-radar/internal/storage/clickhouse"
	"announcement-radar/internal/storage/memory"
	"announcement-radar/internal/storage/migrations"
	pgstore "announcement-radar/internal/storage/postgres"
	"announcement-radar/internal/subscription"
)

// Stores holds all storage implementations.
type Stores struct {
	Announcements     storage.AnnouncementStore
	Tokens            storage.TokenStore
	Notifications     storage.NotificationStore
	Subscriptions     storage.SubscriptionStore
	ClassificationLog storage.ClassificationLogStore // nil when disabled

	HealthChecks map[string]api.HealthCheck
}

// App is the assembled service.
type App struct {
	Config       *config.Config
	Stores       *Stores
	Hub          *api.Hub
	Orchestrator *orchestrator.Orchestrator
	Metrics      *observability.Metrics

	cleanup []func()
}

// Close releases connections in reverse order of creation.
func (a *App) Close() {
	for i := len(a.cleanup) - 1; i >= 0; i-- {
		a.cleanup[i]()
	}
}

// New builds every component from cfg. Metrics register with reg, nil meaning
// the default registerer. The returned App must be closed.
func New(ctx context.Context, cfg *config.Config, log logger.Logger, reg prometheus.Registerer) (*App, error) {
	a := &App{
		Config:  cfg,
		Metrics: observability.NewMetrics(observability.DefaultNamespace, reg),
		Hub:     api.NewHub(log.With(logger.String("component", "stream"))),
	}
	a.cleanup = append(a.cleanup, a.Hub.Close)

	stores, closeStores, err := CreateStores(ctx, cfg.Storage, log)
	if err != nil {
		return nil, err
	}
	a.Stores = stores
	a.cleanup = append(a.cleanup, closeStores)

	subCache, closeCache, err := newCache(ctx, cfg.Redis, stores)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.cleanup = append(a.cleanup, closeCache)

	completer, err := llm.New(ctx, cfg.LLMSettings())
	if err != nil && !errors.Is(err, llm.ErrMissingAPIKey) {
		a.Close()
		return nil, fmt.Errorf("create llm client: %w", err)
	}
	if completer == nil {
		// Analyze reports the missing credential as a configuration error.
		log.Warn("no llm api key configured, poll cycles will abort", logger.String("provider", cfg.LLM.Provider))
	}

	analyzer := classifier.New(completer,
		classifier.WithMaxAttempts(cfg.Poll.MaxAttempts),
		classifier.WithRetryDelay(cfg.Poll.RetryDelay),
		classifier.WithLogger(log.With(logger.String("component", "classifier"))),
	)

	strategies, err := cfg.Strategies()
	if err != nil {
		a.Close()
		return nil, err
	}
	normalizer := normalization.NewNormalizer(
		analyzer,
		extraction.NewRegexExtractor(),
		classifier.DefaultPrompts().Merge(cfg.Exchanges.Prompts),
		strategies,
	)

	notifier, err := newNotifier(cfg.Telegram, log)
	if err != nil {
		a.Close()
		return nil, err
	}

	matcher := subscription.NewMatcher(stores.Subscriptions, subCache, cfg.Redis.SubscriptionTTL)
	dispatcher := notify.NewDispatcher(
		stores.Subscriptions,
		stores.Notifications,
		matcher,
		notifier,
		a.Hub,
		log.With(logger.String("component", "dispatcher")),
	)

	fetchers, err := BuildFetchers(cfg.Exchanges)
	if err != nil {
		a.Close()
		return nil, err
	}

	a.Orchestrator = orchestrator.New(orchestrator.Options{
		Fetchers:               fetchers,
		Normalizer:             normalizer,
		AnnouncementStore:      stores.Announcements,
		TokenStore:             stores.Tokens,
		ClassificationLogStore: stores.ClassificationLog,
		Dispatcher:             dispatcher,
		Pages:                  cfg.Poll.Pages,
		ClassifyInterval:       disabledIfZero(cfg.Poll.ClassifyInterval),
		Metrics:                a.Metrics,
		Logger:                 log.With(logger.String("component", "orchestrator")),
	})

	return a, nil
}

// Router builds the HTTP router for the app.
func (a *App) Router(log logger.Logger) *api.Router {
	return api.NewRouter(api.Options{
		Runner:        a.Orchestrator,
		Announcements: a.Stores.Announcements,
		Hub:           a.Hub,
		HealthChecks:  a.Stores.HealthChecks,
		RecentLimit:   a.Config.Server.RecentLimit,
		Logger:        log.With(logger.String("component", "api")),
	})
}

// CreateStores creates all required stores.
func CreateStores(ctx context.Context, cfg config.StorageConfig, log logger.Logger) (*Stores, func(), error) {
	if cfg.Driver == config.DriverMemory {
		log.Warn("using in-memory storage, data is lost on restart")
		return &Stores{
			Announcements:     memory.NewAnnouncementStore(),
			Tokens:            memory.NewTokenStore(),
			Notifications:     memory.NewNotificationStore(),
			Subscriptions:     memory.NewSubscriptionStore(),
			ClassificationLog: memory.NewClassificationLogStore(),
			HealthChecks:      map[string]api.HealthCheck{},
		}, func() {}, nil
	}

	// PostgreSQL
	pool, err := pgstore.NewPool(ctx, cfg.PostgresDSN)
	if err != nil {
		return nil, nil, fmt.Errorf("connect to postgres: %w", err)
	}
	if cfg.Migrate {
		applied, err := migrations.RunPostgresMigrations(ctx, pool)
		if err != nil {
			pool.Close()
			return nil, nil, fmt.Errorf("migrate postgres: %w", err)
		}
		if len(applied) > 0 {
			log.Info("applied postgres migrations", logger.Strings("versions", applied))
		}
	}

	stores := &Stores{
		Announcements: pgstore.NewAnnouncementStore(pool),
		Tokens:        pgstore.NewTokenStore(pool),
		Notifications: pgstore.NewNotificationStore(pool),
		Subscriptions: pgstore.NewSubscriptionStore(pool),
		HealthChecks: map[string]api.HealthCheck{
			"postgres": func(ctx context.Context) error { return pool.Ping(ctx) },
		},
	}
	cleanup := []func(){pool.Close}

	// ClickHouse (optional audit log)
	if cfg.ClickHouseDSN != "" {
		var conn *chstore.Conn
		if cfg.Migrate {
			conn, err = migrations.RunClickhouseMigrations(ctx, cfg.ClickHouseDSN)
		} else {
			conn, err = chstore.NewConn(ctx, cfg.ClickHouseDSN)
		}
		if err != nil {
			pool.Close()
			return nil, nil, fmt.Errorf("connect to clickhouse: %w", err)
		}
		stores.ClassificationLog = chstore.NewClassificationLogStore(conn)
		stores.HealthChecks["clickhouse"] = func(ctx context.Context) error { return conn.Ping(ctx) }
		cleanup = append(cleanup, func() { _ = conn.Close() })
	} else {
		log.Info("clickhouse dsn not set, classification audit log disabled")
	}

	return stores, func() {
		for i := len(cleanup) - 1; i >= 0; i-- {
			cleanup[i]()
		}
	}, nil
}

func newCache(ctx context.Context, cfg config.RedisConfig, stores *Stores) (cache.Cache, func(), error) {
	if cfg.Address == "" {
		return cache.NewMemoryCache(nil), func() {}, nil
	}
	rc, err := cache.NewRedisCache(ctx, cache.RedisConfig{
		Address:  cfg.Address,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("connect to redis: %w", err)
	}
	stores.HealthChecks["redis"] = rc.Ping
	return rc, func() { _ = rc.Close() }, nil
}

func newNotifier(cfg config.TelegramConfig, log logger.Logger) (notify.Notifier, error) {
	if cfg.Token == "" {
		log.Warn("telegram token not set, notifications are logged only")
		return notify.NewLogNotifier(log.With(logger.String("component", "notifier"))), nil
	}
	n, err := notify.NewTelegramNotifier(cfg.Token, cfg.Endpoint, &http.Client{Timeout: fetcher.DefaultTimeout})
	if err != nil {
		return nil, fmt.Errorf("create telegram notifier: %w", err)
	}
	return n, nil
}

// BuildFetchers creates a fetcher per enabled exchange plus the configured
// RSS and HTML sources.
func BuildFetchers(cfg config.ExchangesConfig) ([]fetcher.Fetcher, error) {
	var fetchers []fetcher.Fetcher
	for _, exchange := range cfg.Enabled {
		switch exchange {
		case "binance":
			fetchers = append(fetchers, fetcher.NewBinanceFetcher(baseURL(cfg.Binance.BaseURL)...))
		case "bitget":
			fetchers = append(fetchers, fetcher.NewBitgetFetcher(cfg.Bitget.AnnType, baseURL(cfg.Bitget.BaseURL)...))
		case "okx":
			fetchers = append(fetchers, fetcher.NewOKXFetcher(cfg.OKX.AnnType, baseURL(cfg.OKX.BaseURL)...))
		default:
			return nil, fmt.Errorf("%w: unknown exchange %q", config.ErrConfigValidationFailed, exchange)
		}
	}
	for _, feed := range cfg.RSS {
		fetchers = append(fetchers, fetcher.NewRSSFetcher(feed.Exchange, feed.URL))
	}
	for _, h := range cfg.HTML {
		fetchers = append(fetchers, fetcher.NewHTMLFetcher(h.Exchange, h.URL, fetcher.HTMLSelectors{
			Item:       h.Item,
			Title:      h.Title,
			Link:       h.Link,
			Time:       h.Time,
			TimeLayout: h.TimeLayout,
		}))
	}
	return fetchers, nil
}

func baseURL(u string) []fetcher.Option {
	if u == "" {
		return nil
	}
	return []fetcher.Option{fetcher.WithBaseURL(u)}
}

// disabledIfZero maps a configured zero interval to "no spacing".
func disabledIfZero(d time.Duration) time.Duration {
	if d == 0 {
		return -1
	}
	return d
}
