package crawler

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/catalog-crawler/internal/metrics"
	"github.com/JakeFAU/catalog-crawler/internal/policy/ratelimit"
)

// ResolverConfig tunes the per-item traversal.
type ResolverConfig struct {
	Retry RetryPolicy
	// Delay spaces consecutive link fetches within one item.
	Delay time.Duration
	// MaxNodes caps pages fetched per item after the entry page; 0 means unbounded.
	MaxNodes int
}

// Resolver follows listing-class links breadth-first from an item's entry page
// and collects every download-class link it meets.
type Resolver struct {
	cfg     ResolverConfig
	fetcher Fetcher
	parser  PageParser
	pacer   Pacer
	logger  *zap.Logger
}

// NewResolver builds a Resolver. hostPacer may be nil.
func NewResolver(cfg ResolverConfig, fetcher Fetcher, parser PageParser, hostPacer Pacer, logger *zap.Logger) *Resolver {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Resolver{
		cfg:     cfg,
		fetcher: fetcher,
		parser:  parser,
		pacer:   hostPacer,
		logger:  logger,
	}
}

// linkQueue is the FIFO frontier of one resolution plus its visited set.
type linkQueue struct {
	pending []string
	visited map[string]struct{}
}

func newLinkQueue(entryURL string) *linkQueue {
	return &linkQueue{visited: map[string]struct{}{entryURL: {}}}
}

func (q *linkQueue) push(links []string) {
	for _, link := range links {
		if _, seen := q.visited[link]; !seen {
			q.pending = append(q.pending, link)
		}
	}
}

// next pops until it finds a link not yet visited and marks it.
func (q *linkQueue) next() (string, bool) {
	for len(q.pending) > 0 {
		link := q.pending[0]
		q.pending = q.pending[1:]
		if _, seen := q.visited[link]; seen {
			continue
		}
		q.visited[link] = struct{}{}
		return link, true
	}
	return "", false
}

// Resolve never fails: an unreachable entry page yields an Unknown record with
// no links, and unreachable inner pages are skipped. The entry page supplies
// the title and the initial follow-on links only.
func (r *Resolver) Resolve(ctx context.Context, entryURL string) ItemRecord {
	record := ItemRecord{URL: entryURL, Title: UnknownTitle, DownloadLinks: []string{}}
	pacer := ratelimit.Chain(ratelimit.NewInterval(r.cfg.Delay), r.pacer)

	if err := pacer.Wait(ctx, entryURL); err != nil {
		return record
	}
	doc, err := r.cfg.Retry.Fetch(ctx, r.fetcher, entryURL)
	if err != nil {
		r.logger.Warn("item page unreachable", zap.String("url", entryURL), zap.Error(err))
		return record
	}
	entry := r.parser.Parse(doc)
	record.Title = entry.Title

	// Download links come only from pages reached through the queue.
	resources := linkSet{}
	queue := newLinkQueue(entryURL)
	queue.push(entry.ListingLinks)

	fetched := 1
	for {
		link, ok := queue.next()
		if !ok {
			break
		}
		if r.cfg.MaxNodes > 0 && fetched > r.cfg.MaxNodes {
			r.logger.Warn("item traversal capped",
				zap.String("url", entryURL),
				zap.Int("max_nodes", r.cfg.MaxNodes),
				zap.Int("pending", len(queue.pending)+1),
			)
			break
		}
		if err := pacer.Wait(ctx, link); err != nil {
			break
		}
		fetched++
		doc, err := r.cfg.Retry.Fetch(ctx, r.fetcher, link)
		if err != nil {
			r.logger.Debug("skipping unreachable link", zap.String("item", entryURL), zap.String("url", link), zap.Error(err))
			continue
		}
		page := r.parser.Parse(doc)
		queue.push(page.ListingLinks)
		for _, res := range page.ResourceLinks {
			resources.add(res)
		}
	}

	record.DownloadLinks = resources.sorted()
	metrics.ObservePagesPerItem(fetched)
	r.logger.Info("item resolved",
		zap.String("url", entryURL),
		zap.String("title", record.Title),
		zap.Int("download_links", len(record.DownloadLinks)),
		zap.Int("pages", fetched),
	)
	return record
}
