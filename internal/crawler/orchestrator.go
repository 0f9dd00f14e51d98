package crawler

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/JakeFAU/catalog-crawler/internal/identity"
	"github.com/JakeFAU/catalog-crawler/internal/metrics"
)

// OrchestratorConfig controls the top-level run.
type OrchestratorConfig struct {
	Categories      []string
	CategoryWorkers int
	// SaveInterval triggers a flush every N admitted records.
	SaveInterval int
	// StrictLoad fails the run instead of starting empty on a corrupt store.
	StrictLoad bool
}

// CategoryProcessor walks one category.
type CategoryProcessor interface {
	Process(ctx context.Context, key string)
}

// Orchestrator loads prior results, fans out over categories, admits resolved
// records and flushes them periodically and at the end.
type Orchestrator struct {
	cfg    OrchestratorConfig
	store  *RecordStore
	index  *identity.Index
	sinks  []RecordSink
	ids    IDGenerator
	clock  Clock
	logger *zap.Logger

	categories CategoryProcessor

	// admitMu makes claim, append and counting one step.
	admitMu  sync.Mutex
	admitted int
	skipped  int
	runID    string
}

// OrchestratorOption customizes an Orchestrator.
type OrchestratorOption func(*Orchestrator)

// WithSinks registers sinks notified after every admission.
func WithSinks(sinks ...RecordSink) OrchestratorOption {
	return func(o *Orchestrator) {
		for _, s := range sinks {
			if s != nil {
				o.sinks = append(o.sinks, s)
			}
		}
	}
}

// WithIDGenerator sets the run ID source.
func WithIDGenerator(ids IDGenerator) OrchestratorOption {
	return func(o *Orchestrator) { o.ids = ids }
}

// WithClock sets the time source used for the run summary.
func WithClock(c Clock) OrchestratorOption {
	return func(o *Orchestrator) { o.clock = c }
}

// NewOrchestrator builds an Orchestrator. The category processor is attached
// with SetCategoryProcessor because it usually needs the Orchestrator as its
// Admitter.
func NewOrchestrator(cfg OrchestratorConfig, store *RecordStore, index *identity.Index, logger *zap.Logger, opts ...OrchestratorOption) *Orchestrator {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.CategoryWorkers <= 0 {
		cfg.CategoryWorkers = 5
	}
	if cfg.SaveInterval <= 0 {
		cfg.SaveInterval = 30
	}
	o := &Orchestrator{
		cfg:    cfg,
		store:  store,
		index:  index,
		logger: logger,
		clock:  systemClock{},
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// SetCategoryProcessor attaches the per-category worker.
func (o *Orchestrator) SetCategoryProcessor(p CategoryProcessor) {
	o.categories = p
}

// Run executes one crawl. Item-level failures are absorbed; only a strict load
// failure or a failed final flush is returned.
func (o *Orchestrator) Run(ctx context.Context) (Summary, error) {
	if o.categories == nil {
		return Summary{}, errors.New("orchestrator: no category processor configured")
	}
	start := o.clock.Now()
	o.runID = o.newRunID()
	logger := o.logger.With(zap.String("run_id", o.runID))

	loaded, err := o.loadPrior(ctx, logger)
	if err != nil {
		return Summary{RunID: o.runID}, err
	}
	logger.Info("crawl starting",
		zap.Int("categories", len(o.cfg.Categories)),
		zap.Int("category_workers", o.cfg.CategoryWorkers),
		zap.Int("loaded", loaded),
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(o.cfg.CategoryWorkers)
	for _, key := range o.cfg.Categories {
		g.Go(func() error {
			metrics.IncActiveCategories()
			defer metrics.DecActiveCategories()
			o.categories.Process(gctx, key)
			return nil
		})
	}
	_ = g.Wait()

	// The final flush must run even when ctx was canceled mid-crawl.
	flushErr := o.store.Flush(context.WithoutCancel(ctx))

	o.admitMu.Lock()
	summary := Summary{
		RunID:    o.runID,
		Loaded:   loaded,
		Admitted: o.admitted,
		Skipped:  o.skipped,
		Total:    o.store.Len(),
		Duration: o.clock.Now().Sub(start),
	}
	o.admitMu.Unlock()

	if flushErr != nil {
		logger.Error("final save failed", zap.Error(flushErr))
		return summary, flushErr
	}
	logger.Info("crawl completed",
		zap.Int("admitted", summary.Admitted),
		zap.Int("skipped", summary.Skipped),
		zap.Int("total", summary.Total),
		zap.Duration("duration", summary.Duration),
		zap.Float64("items_per_second", summary.Rate()),
	)
	return summary, nil
}

// Admit claims the record's URL and title and appends it to the store. It
// returns false with the reason when another record already owns either key.
func (o *Orchestrator) Admit(ctx context.Context, record ItemRecord) (bool, identity.Reason) {
	o.admitMu.Lock()
	ok, reason := o.index.Claim(record.URL, record.Title)
	if !ok {
		o.skipped++
		o.admitMu.Unlock()
		metrics.ObserveSkipped("admission", string(reason))
		return false, reason
	}
	size := o.store.Append(record)
	o.admitted++
	admitted := o.admitted
	o.admitMu.Unlock()

	metrics.ObserveAdmitted(size)
	for _, sink := range o.sinks {
		if err := sink.Record(ctx, o.runID, record); err != nil {
			o.logger.Warn("sink failed", zap.String("url", record.URL), zap.Error(err))
		}
	}
	if admitted%o.cfg.SaveInterval == 0 {
		if err := o.store.Flush(ctx); err != nil {
			o.logger.Error("periodic save failed", zap.Int("records", size), zap.Error(err))
		} else {
			o.logger.Info("progress saved", zap.Int("records", size), zap.Int("admitted", admitted))
		}
	}
	return true, identity.ReasonNone
}

// loadPrior restores the store and replays it into the index.
func (o *Orchestrator) loadPrior(ctx context.Context, logger *zap.Logger) (int, error) {
	records, err := o.store.Load(ctx)
	switch {
	case err == nil:
	case errors.Is(err, fs.ErrNotExist):
		logger.Info("no existing store, starting fresh")
		return 0, nil
	case errors.Is(err, ErrCorruptStore) && !o.cfg.StrictLoad:
		logger.Warn("existing store unreadable, starting fresh", zap.Error(err))
		return 0, nil
	default:
		return 0, fmt.Errorf("load store: %w", err)
	}

	titled := 0
	for _, rec := range records {
		o.index.MarkProcessed(rec.URL, rec.Title)
		if rec.HasTitle() {
			titled++
		}
	}
	urls, titles := o.index.Len()
	logger.Info("loaded existing records",
		zap.Int("records", len(records)),
		zap.Int("valid_titles", titled),
		zap.Int("indexed_urls", urls),
		zap.Int("indexed_titles", titles),
	)
	if titles < titled {
		logger.Warn("store contains title duplicates; run audit --fix",
			zap.Int("potential_duplicates", titled-titles))
	}
	return len(records), nil
}

func (o *Orchestrator) newRunID() string {
	if o.ids == nil {
		return ""
	}
	id, err := o.ids.NewID()
	if err != nil {
		o.logger.Warn("run id generation failed", zap.Error(err))
		return ""
	}
	return id
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }
