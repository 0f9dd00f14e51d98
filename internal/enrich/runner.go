package enrich

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/JakeFAU/catalog-crawler/internal/crawler"
)

// Config tunes a Runner.
type Config struct {
	Workers      int
	SaveInterval int
	// Candidates bounds how many hits are checked for a year match.
	Candidates int
}

// Stats summarizes one enrichment pass.
type Stats struct {
	Total    int
	Skipped  int
	Fetched  int
	Failed   int
	Duration time.Duration
}

// Runner fills in missing IMDb ids with bounded concurrency and saves progress
// to an output persister.
type Runner struct {
	cfg    Config
	lookup Lookup
	out    crawler.RecordPersister
	clock  crawler.Clock
	logger *zap.Logger
}

// NewRunner builds a Runner.
func NewRunner(cfg Config, lookup Lookup, out crawler.RecordPersister, clock crawler.Clock, logger *zap.Logger) *Runner {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 10
	}
	if cfg.SaveInterval <= 0 {
		cfg.SaveInterval = 50
	}
	if cfg.Candidates <= 0 {
		cfg.Candidates = 5
	}
	return &Runner{cfg: cfg, lookup: lookup, out: out, clock: clock, logger: logger}
}

type outcome int

const (
	outcomeSkipped outcome = iota
	outcomeFetched
	outcomeFailed
)

// Run enriches a copy of records and returns it. Only the final save error is
// returned; lookup failures are counted.
func (r *Runner) Run(ctx context.Context, records []crawler.ItemRecord) ([]crawler.ItemRecord, Stats, error) {
	start := r.clock.Now()
	work := append([]crawler.ItemRecord(nil), records...)
	stats := Stats{Total: len(work)}

	var (
		mu        sync.Mutex
		processed int
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.cfg.Workers)
	for i := range work {
		g.Go(func() error {
			mu.Lock()
			rec := work[i]
			mu.Unlock()

			id, result := r.enrichOne(gctx, i, rec)

			mu.Lock()
			defer mu.Unlock()
			switch result {
			case outcomeSkipped:
				stats.Skipped++
			case outcomeFetched:
				work[i].IMDbID = id
				stats.Fetched++
			case outcomeFailed:
				stats.Failed++
			}
			processed++
			if processed%r.cfg.SaveInterval == 0 {
				if err := r.out.Save(gctx, work); err != nil {
					r.logger.Warn("progress save failed", zap.Error(err))
				} else {
					elapsed := r.clock.Now().Sub(start)
					r.logger.Info("progress saved",
						zap.Int("processed", processed),
						zap.Int("total", len(work)),
						zap.Float64("per_second", rate(processed, elapsed)),
					)
				}
			}
			return nil
		})
	}
	_ = g.Wait()

	stats.Duration = r.clock.Now().Sub(start)
	if err := r.out.Save(context.WithoutCancel(ctx), work); err != nil {
		return work, stats, fmt.Errorf("save enriched records: %w", err)
	}
	r.logger.Info("enrichment completed",
		zap.Int("skipped", stats.Skipped),
		zap.Int("fetched", stats.Fetched),
		zap.Int("failed", stats.Failed),
		zap.Int("total", stats.Total),
		zap.Duration("duration", stats.Duration),
		zap.Float64("per_second", rate(stats.Total, stats.Duration)),
	)
	return work, stats, nil
}

func (r *Runner) enrichOne(ctx context.Context, index int, rec crawler.ItemRecord) (string, outcome) {
	if rec.IMDbID != "" {
		return "", outcomeSkipped
	}
	logger := r.logger.With(zap.Int("index", index), zap.String("title", rec.Title))
	title, year := ExtractTitleAndYear(rec.Title)
	if title == "" || title == crawler.UnknownTitle {
		logger.Info("no searchable title")
		return "", outcomeFailed
	}
	candidates, err := r.lookup.Search(ctx, title)
	if err != nil {
		logger.Warn("lookup failed", zap.Error(err))
		return "", outcomeFailed
	}
	best, ok := Choose(candidates, year, r.cfg.Candidates)
	if !ok {
		logger.Info("not found", zap.String("query", title))
		return "", outcomeFailed
	}
	logger.Info("found",
		zap.String("imdb_id", best.ID),
		zap.String("match", best.Title),
		zap.Int("year", best.Year),
	)
	return best.ID, outcomeFetched
}

func rate(n int, d time.Duration) float64 {
	if d <= 0 {
		return 0
	}
	return float64(n) / d.Seconds()
}
