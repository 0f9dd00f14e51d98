package crawler

import (
	"context"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/JakeFAU/catalog-crawler/internal/metrics"
	"github.com/JakeFAU/catalog-crawler/internal/policy/ratelimit"
)

// CategoryConfig tunes listing pagination and item fan-out.
type CategoryConfig struct {
	BaseURL     string
	ListingPath string
	Retry       RetryPolicy
	// PageDelay spaces consecutive listing pages of one category.
	PageDelay   time.Duration
	ItemWorkers int
}

// CategoryWorker walks one category's listing and resolves its new items.
type CategoryWorker struct {
	cfg      CategoryConfig
	fetcher  Fetcher
	parser   PageParser
	index    DuplicateChecker
	resolver ItemResolver
	admitter Admitter
	pacer    Pacer
	logger   *zap.Logger
}

// NewCategoryWorker wires a CategoryWorker. hostPacer may be nil.
func NewCategoryWorker(
	cfg CategoryConfig,
	fetcher Fetcher,
	parser PageParser,
	index DuplicateChecker,
	resolver ItemResolver,
	admitter Admitter,
	hostPacer Pacer,
	logger *zap.Logger,
) *CategoryWorker {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.ItemWorkers <= 0 {
		cfg.ItemWorkers = 1
	}
	return &CategoryWorker{
		cfg:      cfg,
		fetcher:  fetcher,
		parser:   parser,
		index:    index,
		resolver: resolver,
		admitter: admitter,
		pacer:    hostPacer,
		logger:   logger,
	}
}

// Process collects entry URLs for key and resolves the unseen ones with at most
// ItemWorkers resolutions in flight. Failures are logged, never returned.
func (w *CategoryWorker) Process(ctx context.Context, key string) {
	logger := w.logger.With(zap.String("category", key))
	entries := w.collectEntries(ctx, key, logger)
	if len(entries) == 0 {
		logger.Info("no items found")
		return
	}

	fresh := w.filterSeen(entries)
	if len(fresh) == 0 {
		logger.Info("all items already processed", zap.Int("found", len(entries)))
		return
	}
	logger.Info("processing new items", zap.Int("new", len(fresh)), zap.Int("found", len(entries)))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(w.cfg.ItemWorkers)
	for _, entryURL := range fresh {
		g.Go(func() error {
			w.resolveAndAdmit(gctx, entryURL, logger)
			return nil
		})
	}
	_ = g.Wait()
	logger.Info("category completed")
}

// collectEntries pages through the listing until a page yields no entries or
// cannot be fetched.
func (w *CategoryWorker) collectEntries(ctx context.Context, key string, logger *zap.Logger) []string {
	pacer := ratelimit.Chain(ratelimit.NewInterval(w.cfg.PageDelay), w.pacer)
	var entries []string
	for page := 1; ; page++ {
		pageURL, err := ListingPageURL(w.cfg.BaseURL, w.cfg.ListingPath, key, page)
		if err != nil {
			logger.Error("bad listing url", zap.Error(err))
			break
		}
		if err := pacer.Wait(ctx, pageURL); err != nil {
			break
		}
		doc, err := w.cfg.Retry.Fetch(ctx, w.fetcher, pageURL)
		if err != nil {
			logger.Warn("listing page unreachable, stopping", zap.Int("page", page), zap.Error(err))
			break
		}
		links := w.parser.Parse(doc).EntryLinks
		if len(links) == 0 {
			break
		}
		logger.Debug("listing page parsed", zap.Int("page", page), zap.Int("entries", len(links)))
		entries = append(entries, links...)
	}
	logger.Info("listing collected", zap.Int("entries", len(entries)))
	return entries
}

// filterSeen drops URLs already in the index and repeats within the listing.
func (w *CategoryWorker) filterSeen(entries []string) []string {
	seen := make(map[string]struct{}, len(entries))
	out := make([]string, 0, len(entries))
	for _, u := range entries {
		if _, dup := seen[u]; dup {
			continue
		}
		seen[u] = struct{}{}
		if dup, reason := w.index.IsDuplicate(u, ""); dup {
			metrics.ObserveSkipped("prefilter", string(reason))
			continue
		}
		out = append(out, u)
	}
	return out
}

func (w *CategoryWorker) resolveAndAdmit(ctx context.Context, entryURL string, logger *zap.Logger) {
	if dup, reason := w.index.IsDuplicate(entryURL, ""); dup {
		metrics.ObserveSkipped("pre_resolve", string(reason))
		logger.Debug("skipping processed item", zap.String("url", entryURL), zap.String("reason", string(reason)))
		return
	}
	record := w.resolver.Resolve(ctx, entryURL)
	if ctx.Err() != nil {
		// A canceled traversal is incomplete; leave the URL unclaimed for the next run.
		return
	}
	if ok, reason := w.admitter.Admit(ctx, record); !ok {
		logger.Info("skipping duplicate item",
			zap.String("url", entryURL),
			zap.String("title", record.Title),
			zap.String("reason", string(reason)),
		)
		return
	}
}
