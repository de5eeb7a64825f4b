package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"

	"github.com/maltedev/olx-scraper/internal/browser"
	"github.com/maltedev/olx-scraper/internal/config"
	"github.com/maltedev/olx-scraper/internal/database"
	"github.com/maltedev/olx-scraper/internal/events"
	"github.com/maltedev/olx-scraper/internal/jobs"
	"github.com/maltedev/olx-scraper/internal/parser"
	"github.com/maltedev/olx-scraper/internal/ratelimit"
	"github.com/maltedev/olx-scraper/internal/scraper"
	"github.com/maltedev/olx-scraper/internal/storage"
)

type app struct {
	manager *jobs.Manager
	closers []func()
}

func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
}

// newApp wires the retrieval cascade and the sinks from cfg. The database and
// the event stream are optional; when they cannot be reached the run goes on
// without them.
func newApp(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*app, error) {
	a := &app{}

	site := scraper.Site{BaseURL: cfg.Scraper.SiteBaseURL()}
	agents := scraper.NewUserAgentPool(cfg.Scraper.UserAgents)
	debug := storage.NewDebugStore(cfg.Output.DebugDir)

	direct, err := scraper.NewDirectSource(site, scraper.DirectOptions{
		Timeout: cfg.Scraper.RequestTimeout,
		Proxy:   cfg.Scraper.Proxy,
		Limiter: ratelimit.NewSimpleRateLimiter(cfg.Scraper.RequestDelayMin, cfg.Scraper.RequestDelayMax),
		Agents:  agents,
		Capture: debug,
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create direct source: %w", err)
	}

	api, err := scraper.NewAPISource(site, scraper.APIOptions{
		Timeout: cfg.Scraper.APITimeout,
		Proxy:   cfg.Scraper.Proxy,
		Agents:  agents,
		Capture: debug,
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create api source: %w", err)
	}

	engines, err := browser.ParseEngines(cfg.Browser.Engines)
	if err != nil {
		return nil, err
	}
	browserSource := scraper.NewBrowserSource(site, newSessionOpener(cfg, engines, agents, logger), scraper.BrowserOptions{
		MaxAttempts: cfg.Browser.MaxAttempts,
		RetryDelay:  cfg.Browser.RetryDelay,
		PageDelay:   ratelimit.NewSimpleRateLimiter(cfg.Browser.PageDelayMin, cfg.Browser.PageDelayMax),
		Capture:     debug,
	}, logger)

	coordinator := scraper.NewCoordinator(
		parser.NewOlxParser(site.BaseURL),
		[]scraper.Source{direct, api},
		browserSource,
		logger,
	)

	var opts []jobs.Option

	if cfg.Database.Enabled {
		if store := connectStore(ctx, cfg, logger); store != nil {
			a.closers = append(a.closers, store.db.Close)
			opts = append(opts, jobs.WithStore(store.repo))
		}
	}

	if cfg.Redis.Enabled {
		if client := connectRedis(ctx, cfg, logger); client != nil {
			a.closers = append(a.closers, func() { client.Close() })
			opts = append(opts, jobs.WithPublisher(events.NewPublisher(client, cfg.Redis.Stream, logger)))
		}
	}

	a.manager = jobs.NewManager(coordinator, storage.NewExporter(cfg.Output.Dir), logger, opts...)
	return a, nil
}

// newSessionOpener starts a browser with a freshly drawn user agent each time
// the browser source needs one.
func newSessionOpener(cfg *config.Config, engines []browser.Engine, agents *scraper.UserAgentPool, logger *slog.Logger) scraper.SessionOpener {
	return func(ctx context.Context) (browser.Session, error) {
		opts := browser.DefaultOptions()
		opts.Headless = cfg.Browser.Headless
		opts.NavigationTimeout = cfg.Browser.NavigationTimeout
		opts.ReadyTimeout = cfg.Browser.ReadyTimeout
		opts.SettleDelay = cfg.Browser.SettleDelay
		opts.ViewportWidth = cfg.Browser.ViewportWidth
		opts.ViewportHeight = cfg.Browser.ViewportHeight
		opts.Locale = cfg.Browser.Locale
		opts.ProxyServer = cfg.Scraper.Proxy
		if ua := agents.Random(); ua != "" {
			opts.UserAgent = ua
		}
		return browser.Open(ctx, engines, opts, logger)
	}
}

type listingStore struct {
	db   *database.DB
	repo *database.ListingRepository
}

func connectStore(ctx context.Context, cfg *config.Config, logger *slog.Logger) *listingStore {
	db, err := database.New(ctx, database.Config{
		DSN:      cfg.Database.DSN(),
		MaxConns: cfg.Database.MaxConns,
	})
	if err != nil {
		logger.Error("database unavailable, listings will not be stored", "error", err)
		return nil
	}

	repo := database.NewListingRepository(db)
	if err := repo.EnsureSchema(ctx); err != nil {
		logger.Error("failed to prepare database schema", "error", err)
		db.Close()
		return nil
	}

	logger.Info("connected to database", "host", cfg.Database.Host, "database", cfg.Database.Name)
	return &listingStore{db: db, repo: repo}
}

func connectRedis(ctx context.Context, cfg *config.Config, logger *slog.Logger) *redis.Client {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		logger.Error("redis unavailable, run events will not be published", "error", err)
		client.Close()
		return nil
	}

	logger.Info("connected to redis", "addr", cfg.Redis.Addr, "stream", cfg.Redis.Stream)
	return client
}
