package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"pokewatch/internal/config"
	"pokewatch/internal/db"
	"pokewatch/internal/httpapi"
	"pokewatch/internal/logger"
	"pokewatch/internal/model"
	"pokewatch/internal/providers/algolia"
	"pokewatch/internal/providers/browserless"
	"pokewatch/internal/providers/chromium"
	"pokewatch/internal/providers/collection"
	"pokewatch/internal/providers/common"
	"pokewatch/internal/providers/stealth"
	"pokewatch/internal/repositories"
	"pokewatch/internal/repositories/jsonfile"
	"pokewatch/internal/repositories/postgres"
	redisrepo "pokewatch/internal/repositories/redis"
	"pokewatch/internal/scheduler"
	"pokewatch/internal/services/scraping"
	"pokewatch/internal/snapshot"
	"pokewatch/internal/telegram"
)

type Builder struct {
	cfg          *config.Config
	ensureSchema bool

	logger    *zap.Logger
	pool      *pgxpool.Pool
	redis     *goredis.Client
	repo      repositories.SeenRepository
	notifier  scraping.Notifier
	providers map[string]scraping.Provider
	snapshots *snapshot.Store

	scheduler *scheduler.Scheduler
	server    *http.Server
}

type BuilderOption func(*Builder)

func NewBuilder(cfg *config.Config, options ...BuilderOption) *Builder {
	builder := &Builder{
		cfg:          cfg,
		ensureSchema: true,
	}
	for _, option := range options {
		option(builder)
	}
	return builder
}

func WithLogger(logger *zap.Logger) BuilderOption {
	return func(b *Builder) {
		b.logger = logger
	}
}

func WithEnsureSchema(enabled bool) BuilderOption {
	return func(b *Builder) {
		b.ensureSchema = enabled
	}
}

func WithDBPool(pool *pgxpool.Pool) BuilderOption {
	return func(b *Builder) {
		b.pool = pool
	}
}

func WithRedisClient(client *goredis.Client) BuilderOption {
	return func(b *Builder) {
		b.redis = client
	}
}

func WithRepository(repo repositories.SeenRepository) BuilderOption {
	return func(b *Builder) {
		b.repo = repo
	}
}

func WithNotifier(notifier scraping.Notifier) BuilderOption {
	return func(b *Builder) {
		b.notifier = notifier
	}
}

func WithProviders(providers map[string]scraping.Provider) BuilderOption {
	return func(b *Builder) {
		b.providers = providers
	}
}

func WithSnapshotStore(store *snapshot.Store) BuilderOption {
	return func(b *Builder) {
		b.snapshots = store
	}
}

func WithScheduler(scheduler *scheduler.Scheduler) BuilderOption {
	return func(b *Builder) {
		b.scheduler = scheduler
	}
}

func WithHTTPServer(server *http.Server) BuilderOption {
	return func(b *Builder) {
		b.server = server
	}
}

func (b *Builder) Build(ctx context.Context) (*App, error) {
	if b.cfg == nil {
		return nil, errors.New("config is required")
	}

	if b.logger == nil {
		log, err := logger.New(b.cfg.LogLevel, b.cfg.LogFormat)
		if err != nil {
			return nil, err
		}
		b.logger = log
	}

	app := &App{Config: b.cfg, Logger: b.logger}

	if b.repo == nil {
		repo, err := b.buildRepository(ctx, app)
		if err != nil {
			app.closeResources()
			return nil, err
		}
		b.repo = repo
	}
	app.Repo = b.repo

	if b.notifier == nil {
		b.notifier = telegram.NewSender(telegram.Options{
			Token:       b.cfg.TelegramToken,
			Chat:        b.cfg.TelegramChat,
			ThreadID:    b.cfg.TelegramThreadID,
			Header:      b.cfg.NotifyHeader,
			BatchSize:   b.cfg.BatchSize,
			MinInterval: telegram.DefaultMinInterval,
		}, b.logger)
	}
	app.Notifier = b.notifier

	if b.providers == nil {
		b.providers = b.buildProviders(app)
	}
	app.Providers = b.providers

	if b.snapshots == nil && b.cfg.SaveSnapshots {
		b.snapshots = snapshot.NewStore(b.cfg.SnapshotDir, b.logger)
	}
	app.Snapshots = b.snapshots

	var saver scraping.SnapshotSaver
	if b.snapshots != nil {
		saver = b.snapshots
	}
	targets := resolveTargets(b.cfg, b.providers, b.logger)
	app.ScrapeService = scraping.NewService(targets, b.providers, app.Repo, app.Notifier, saver, b.logger)

	if b.scheduler == nil {
		b.scheduler = scheduler.New(b.cfg.CronSpec, app.ScrapeService, b.logger)
	}
	app.Scheduler = b.scheduler

	if b.server == nil {
		handler := httpapi.NewHandler(app.ScrapeService, b.snapshots, httpapi.Options{
			RunAsync:    b.cfg.RunAsync,
			CORSOrigins: b.cfg.CORS,
			Profiling:   b.cfg.Pprof,
		}, b.logger)
		b.server = &http.Server{
			Addr:              ":" + b.cfg.HTTPPort,
			Handler:           handler.Router(),
			ReadHeaderTimeout: 5 * time.Second,
		}
	}
	app.Server = b.server

	return app, nil
}

func (b *Builder) buildRepository(ctx context.Context, app *App) (repositories.SeenRepository, error) {
	switch b.cfg.StoreBackend {
	case config.StorePostgres:
		if b.pool == nil {
			pool, err := db.NewPool(ctx, b.cfg.PostgresDSN())
			if err != nil {
				return nil, err
			}
			b.pool = pool
			app.closers = append(app.closers, func() error { pool.Close(); return nil })
		}
		app.Pool = b.pool
		if b.ensureSchema {
			if err := db.EnsureSchema(ctx, b.pool); err != nil {
				return nil, err
			}
		}
		return postgres.NewSeenRepository(b.pool), nil

	case config.StoreRedis:
		if b.redis == nil {
			client, err := db.NewRedis(ctx, b.cfg.RedisAddr, b.cfg.RedisPassword, b.cfg.RedisDB)
			if err != nil {
				return nil, err
			}
			b.redis = client
			app.closers = append(app.closers, client.Close)
		}
		app.Redis = b.redis
		return redisrepo.NewSeenRepository(b.redis), nil

	case config.StoreFile, "":
		return jsonfile.NewSeenRepository(b.cfg.CacheFile), nil

	default:
		return nil, fmt.Errorf("unknown store backend %q", b.cfg.StoreBackend)
	}
}

// buildProviders constructs only the providers some target asks for.
func (b *Builder) buildProviders(app *App) map[string]scraping.Provider {
	wanted := map[string]bool{}
	for _, t := range b.cfg.Targets {
		for _, name := range t.Providers {
			wanted[name] = true
		}
	}

	fetchOpts := common.ClientOptions{
		Timeout: b.cfg.FetchTimeout,
		Retries: b.cfg.FetchRetries,
		Backoff: b.cfg.FetchBackoff,
	}
	providers := map[string]scraping.Provider{}

	if wanted[model.ProviderAlgolia] {
		providers[model.ProviderAlgolia] = algolia.NewProvider(common.NewClient(fetchOpts), b.logger)
	}
	if wanted[model.ProviderCollection] {
		opts := fetchOpts
		opts.Transport = collection.StealthTransport
		providers[model.ProviderCollection] = collection.NewProvider(common.NewClient(opts), b.logger)
	}
	if wanted[model.ProviderBrowserless] && b.cfg.BrowserlessURL != "" {
		opts := fetchOpts
		opts.Timeout = b.cfg.RenderTimeout
		providers[model.ProviderBrowserless] = browserless.NewProvider(common.NewClient(opts), b.cfg.BrowserlessURL, b.logger)
	}
	if wanted[model.ProviderChromium] {
		opts := chromium.DefaultOptions()
		opts.Timeout = b.cfg.RenderTimeout
		providers[model.ProviderChromium] = chromium.NewProvider(opts, b.logger)
	}
	if wanted[model.ProviderStealth] {
		opts := stealth.DefaultOptions()
		opts.Timeout = b.cfg.RenderTimeout
		provider := stealth.NewProvider(opts, b.logger)
		providers[model.ProviderStealth] = provider
		app.closers = append(app.closers, provider.Close)
	}
	return providers
}

// resolveTargets drops providers a target cannot use: unknown or unavailable
// names, and the search index when the target has no credentials for it.
func resolveTargets(cfg *config.Config, providers map[string]scraping.Provider, log *zap.Logger) []model.Target {
	targets := make([]model.Target, 0, len(cfg.Targets))
	for _, t := range cfg.Targets {
		chain := make([]string, 0, len(t.Providers))
		for _, name := range t.Providers {
			switch {
			case providers[name] == nil:
				log.Warn("provider unavailable, removed from chain",
					zap.String("target", t.Name), zap.String("provider", name))
			case name == model.ProviderAlgolia && !t.Index.Configured():
				log.Warn("search index credentials missing, removed from chain", zap.String("target", t.Name))
			default:
				chain = append(chain, name)
			}
		}
		if len(chain) == 0 {
			log.Warn("target has no usable providers", zap.String("target", t.Name))
		}
		t.Providers = chain
		targets = append(targets, t)
	}
	return targets
}
