// Package app builds long-lived services from configuration and wires them into
// crawls, audits and enrichment passes.
package app

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/catalog-crawler/internal/audit"
	"github.com/JakeFAU/catalog-crawler/internal/clock/system"
	"github.com/JakeFAU/catalog-crawler/internal/config"
	"github.com/JakeFAU/catalog-crawler/internal/crawler"
	"github.com/JakeFAU/catalog-crawler/internal/enrich"
	collyfetcher "github.com/JakeFAU/catalog-crawler/internal/fetcher/colly"
	"github.com/JakeFAU/catalog-crawler/internal/id/uuid"
	"github.com/JakeFAU/catalog-crawler/internal/identity"
	"github.com/JakeFAU/catalog-crawler/internal/logging"
	"github.com/JakeFAU/catalog-crawler/internal/metrics"
	"github.com/JakeFAU/catalog-crawler/internal/parser"
	"github.com/JakeFAU/catalog-crawler/internal/policy/ratelimit"
	"github.com/JakeFAU/catalog-crawler/internal/publisher/pubsub"
	"github.com/JakeFAU/catalog-crawler/internal/storage/gcs"
	"github.com/JakeFAU/catalog-crawler/internal/storage/jsonfile"
	"github.com/JakeFAU/catalog-crawler/internal/storage/postgres"
)

// App holds the shared services of one CLI invocation.
type App struct {
	cfg     config.Config
	logger  *zap.Logger
	clock   *system.Clock
	fetcher crawler.Fetcher
	limiter *ratelimit.Limiter

	blobs   *gcs.BlobStore
	closers []closer
}

type closer struct {
	name string
	fn   func() error
}

// Option customizes New.
type Option func(*App)

// WithLogger replaces the logger built from cfg.Logging.
func WithLogger(logger *zap.Logger) Option {
	return func(a *App) { a.logger = logger }
}

// WithFetcher replaces the colly fetcher, mainly for tests.
func WithFetcher(f crawler.Fetcher) Option {
	return func(a *App) { a.fetcher = f }
}

// WithCloser registers an extra release func run by Close.
func WithCloser(name string, fn func() error) Option {
	return func(a *App) { a.addCloser(name, fn) }
}

// New builds the logger, fetcher and host limiter. Optional sinks are opened
// on demand by the Build* methods.
func New(cfg config.Config, opts ...Option) (*App, error) {
	a := &App{cfg: cfg, clock: system.New()}
	for _, opt := range opts {
		opt(a)
	}
	if a.logger == nil {
		logger, err := logging.New(cfg.Logging)
		if err != nil {
			return nil, err
		}
		a.logger = logger
	}
	if a.fetcher == nil {
		a.fetcher = collyfetcher.New(collyfetcher.Config{UserAgent: cfg.Crawler.UserAgent})
	}
	a.limiter = ratelimit.New(ratelimit.Config{DefaultRPS: cfg.Crawler.HostRPS, DefaultBurst: cfg.Crawler.HostBurst})
	return a, nil
}

// Logger returns the shared logger.
func (a *App) Logger() *zap.Logger {
	return a.logger
}

// Config returns the loaded configuration.
func (a *App) Config() config.Config {
	return a.cfg
}

// OpenStore opens the JSON store at path, mirrored to GCS when enabled.
func (a *App) OpenStore(ctx context.Context, path string) (*jsonfile.Store, error) {
	opts := []jsonfile.Option{jsonfile.WithLogger(a.logger)}
	if a.cfg.GCS.Enabled {
		if a.blobs == nil {
			blobs, err := gcs.Open(ctx, a.cfg.GCS.Config)
			if err != nil {
				return nil, fmt.Errorf("open gcs mirror: %w", err)
			}
			a.blobs = blobs
			a.addCloser("gcs", blobs.Close)
		}
		opts = append(opts, jsonfile.WithMirror(a.blobs, a.cfg.GCS.Prefix))
	}
	store, err := jsonfile.New(path, opts...)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	return store, nil
}

// Sinks opens the enabled record sinks.
func (a *App) Sinks(ctx context.Context) ([]crawler.RecordSink, error) {
	var sinks []crawler.RecordSink
	if a.cfg.PubSub.Enabled {
		pub, err := pubsub.Open(ctx, a.cfg.PubSub.Config, a.clock)
		if err != nil {
			return nil, fmt.Errorf("open pubsub sink: %w", err)
		}
		a.addCloser("pubsub", pub.Close)
		sinks = append(sinks, pub)
		a.logger.Info("publishing admissions", zap.String("topic", a.cfg.PubSub.TopicID))
	}
	if a.cfg.Postgres.Enabled {
		items, err := postgres.Open(ctx, a.cfg.Postgres.Config)
		if err != nil {
			return nil, fmt.Errorf("open postgres sink: %w", err)
		}
		a.addCloser("postgres", func() error { items.Close(); return nil })
		sinks = append(sinks, items)
		a.logger.Info("mirroring admissions to postgres", zap.String("table", a.cfg.Postgres.Table))
	}
	return sinks, nil
}

// BuildOrchestrator wires a ready-to-run crawl from configuration.
func (a *App) BuildOrchestrator(ctx context.Context) (*crawler.Orchestrator, error) {
	cfg := a.cfg
	persister, err := a.OpenStore(ctx, cfg.Store.Path)
	if err != nil {
		return nil, err
	}
	if cfg.Store.BackupOnStart {
		if backup, err := persister.Backup(ctx, system.NewLocal().Now()); err != nil {
			a.logger.Warn("store backup skipped", zap.Error(err))
		} else {
			a.logger.Info("store backed up", zap.String("path", backup))
		}
	}
	sinks, err := a.Sinks(ctx)
	if err != nil {
		return nil, err
	}

	index := identity.NewIndex()
	orch := crawler.NewOrchestrator(
		crawler.OrchestratorConfig{
			Categories:      cfg.Site.Categories,
			CategoryWorkers: cfg.Crawler.CategoryWorkers,
			SaveInterval:    cfg.Crawler.SaveInterval,
			StrictLoad:      cfg.Store.StrictLoad,
		},
		crawler.NewRecordStore(persister),
		index,
		a.logger,
		crawler.WithSinks(sinks...),
		crawler.WithIDGenerator(uuid.New()),
		crawler.WithClock(a.clock),
	)

	pageParser := parser.New(cfg.Site.Selectors, cfg.Site.BaseURL)
	resolver := crawler.NewResolver(crawler.ResolverConfig{
		Retry:    retryPolicy("item", cfg.Retry.Item),
		Delay:    cfg.Crawler.ItemDelay,
		MaxNodes: cfg.Crawler.MaxNodesPerItem,
	}, a.fetcher, pageParser, a.limiter, a.logger)
	worker := crawler.NewCategoryWorker(crawler.CategoryConfig{
		BaseURL:     cfg.Site.BaseURL,
		ListingPath: cfg.Site.ListingPath,
		Retry:       retryPolicy("listing", cfg.Retry.Listing),
		PageDelay:   cfg.Crawler.PageDelay,
		ItemWorkers: cfg.Crawler.ItemWorkers,
	}, a.fetcher, pageParser, index, resolver, orch, a.limiter, a.logger)
	orch.SetCategoryProcessor(worker)
	return orch, nil
}

// StartMetrics serves /metrics and /healthz when metrics.addr is set. The
// returned stop func is always safe to call.
func (a *App) StartMetrics() (stop func(), err error) {
	if a.cfg.Metrics.Addr == "" {
		return func() {}, nil
	}
	srv, err := metrics.Listen(a.cfg.Metrics.Addr, a.logger)
	if err != nil {
		return nil, err
	}
	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(ctx); err != nil {
			a.logger.Warn("metrics server shutdown", zap.Error(err))
		}
	}, nil
}

// BuildAuditor wires an auditor over the configured store.
func (a *App) BuildAuditor(ctx context.Context, path string) (*audit.Auditor, error) {
	store, err := a.OpenStore(ctx, path)
	if err != nil {
		return nil, err
	}
	return audit.New(store, system.NewLocal(), a.logger), nil
}

// BuildEnricher wires an enrichment runner writing to output.
func (a *App) BuildEnricher(ctx context.Context, output string) (*enrich.Runner, error) {
	cfg := a.cfg.Enrich
	out, err := a.OpenStore(ctx, output)
	if err != nil {
		return nil, err
	}
	policy := crawler.RetryPolicy{Name: "enrich", MaxAttempts: 1, Timeout: cfg.Timeout, BackoffBase: 2}
	pacer := ratelimit.New(ratelimit.Config{DefaultRPS: cfg.RPS, DefaultBurst: cfg.Workers})
	lookup := enrich.NewSuggestionLookup(a.fetcher, policy, cfg.Endpoint, pacer)
	return enrich.NewRunner(enrich.Config{
		Workers:      cfg.Workers,
		SaveInterval: cfg.SaveInterval,
		Candidates:   cfg.Candidates,
	}, lookup, out, a.clock, a.logger), nil
}

// Close releases every opened sink and flushes the logger.
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		c := a.closers[i]
		if err := c.fn(); err != nil {
			a.logger.Warn("error closing service", zap.String("service", c.name), zap.Error(err))
		}
	}
	a.closers = nil
	_ = a.logger.Sync()
}

func (a *App) addCloser(name string, fn func() error) {
	a.closers = append(a.closers, closer{name: name, fn: fn})
}

func retryPolicy(name string, grade config.RetryGrade) crawler.RetryPolicy {
	return crawler.RetryPolicy{
		Name:        name,
		MaxAttempts: grade.MaxAttempts,
		Timeout:     grade.Timeout,
		BackoffBase: grade.BackoffBase,
	}
}
