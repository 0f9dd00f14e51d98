// Package audit finds and removes records that share a URL or a normalized
// title with an earlier record in the store.
package audit

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/catalog-crawler/internal/crawler"
	"github.com/JakeFAU/catalog-crawler/internal/identity"
)

// ReportLimit is how many duplicates of each kind are logged in detail.
const ReportLimit = 10

// Duplicate is a record that repeats the key of an earlier record.
type Duplicate struct {
	Index      int
	FirstIndex int
	URL        string
	Title      string
	// Key is the URL for URL duplicates and the normalized title otherwise.
	Key        string
	FirstTitle string
}

// Report is the outcome of Analyze.
type Report struct {
	Total           int
	UniqueURLs      int
	UniqueTitles    int
	URLDuplicates   []Duplicate
	TitleDuplicates []Duplicate
}

// HasDuplicates reports whether anything would be removed by Clean.
func (r Report) HasDuplicates() bool {
	return len(r.URLDuplicates) > 0 || len(r.TitleDuplicates) > 0
}

// Analyze scans records in order. The first holder of a URL or normalized
// title wins; every later holder is reported. Both checks run independently,
// so one record can appear in both lists.
func Analyze(records []crawler.ItemRecord) Report {
	seenURLs := make(map[string]int)
	seenTitles := make(map[string]int)
	report := Report{Total: len(records)}

	for i, rec := range records {
		if rec.URL != "" {
			if first, ok := seenURLs[rec.URL]; ok {
				report.URLDuplicates = append(report.URLDuplicates, Duplicate{
					Index:      i,
					FirstIndex: first,
					URL:        rec.URL,
					Title:      rec.Title,
					Key:        rec.URL,
					FirstTitle: records[first].Title,
				})
			} else {
				seenURLs[rec.URL] = i
			}
		}
		if key := identity.NormalizeTitle(rec.Title); key != "" {
			if first, ok := seenTitles[key]; ok {
				report.TitleDuplicates = append(report.TitleDuplicates, Duplicate{
					Index:      i,
					FirstIndex: first,
					URL:        rec.URL,
					Title:      rec.Title,
					Key:        key,
					FirstTitle: records[first].Title,
				})
			} else {
				seenTitles[key] = i
			}
		}
	}
	report.UniqueURLs = len(seenURLs)
	report.UniqueTitles = len(seenTitles)
	return report
}

// Clean returns records without any index reported in r, preserving order.
func Clean(records []crawler.ItemRecord, r Report) []crawler.ItemRecord {
	drop := make(map[int]struct{}, len(r.URLDuplicates)+len(r.TitleDuplicates))
	for _, d := range r.URLDuplicates {
		drop[d.Index] = struct{}{}
	}
	for _, d := range r.TitleDuplicates {
		drop[d.Index] = struct{}{}
	}
	out := make([]crawler.ItemRecord, 0, len(records)-len(drop))
	for i, rec := range records {
		if _, ok := drop[i]; !ok {
			out = append(out, rec)
		}
	}
	return out
}

// Log writes the statistics and the first ReportLimit duplicates of each kind.
func (r Report) Log(logger *zap.Logger) {
	logger.Info("duplicate analysis",
		zap.Int("total", r.Total),
		zap.Int("unique_urls", r.UniqueURLs),
		zap.Int("unique_titles", r.UniqueTitles),
		zap.Int("url_duplicates", len(r.URLDuplicates)),
		zap.Int("title_duplicates", len(r.TitleDuplicates)),
	)
	logDuplicates(logger, "duplicate url", r.URLDuplicates)
	logDuplicates(logger, "duplicate title", r.TitleDuplicates)
}

func logDuplicates(logger *zap.Logger, msg string, dups []Duplicate) {
	for i, d := range dups {
		if i == ReportLimit {
			logger.Info(msg+"s truncated", zap.Int("more", len(dups)-ReportLimit))
			return
		}
		logger.Info(msg,
			zap.Int("index", d.Index),
			zap.Int("first_index", d.FirstIndex),
			zap.String("title", d.Title),
			zap.String("key", d.Key),
			zap.String("url", d.URL),
			zap.String("first_title", d.FirstTitle),
		)
	}
}

// Store is the persistence the auditor needs.
type Store interface {
	crawler.RecordPersister
	Backup(ctx context.Context, now time.Time) (string, error)
}

// Result summarizes an audit run.
type Result struct {
	Report     Report
	Removed    int
	Remaining  int
	BackupPath string
}

// Auditor runs Analyze against a store and optionally rewrites it.
type Auditor struct {
	store  Store
	clock  crawler.Clock
	logger *zap.Logger
}

// New builds an Auditor.
func New(store Store, clock crawler.Clock, logger *zap.Logger) *Auditor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Auditor{store: store, clock: clock, logger: logger}
}

// Run loads the store and reports duplicates. With fix set it backs the
// original up, then saves the cleaned sequence. The store is never rewritten
// when the backup fails.
func (a *Auditor) Run(ctx context.Context, fix bool) (Result, error) {
	records, err := a.store.Load(ctx)
	if err != nil {
		return Result{}, fmt.Errorf("load store: %w", err)
	}
	report := Analyze(records)
	report.Log(a.logger)
	result := Result{Report: report, Remaining: len(records)}

	if !report.HasDuplicates() {
		a.logger.Info("no duplicates found")
		return result, nil
	}
	if !fix {
		a.logger.Info("run with --fix to remove duplicates")
		return result, nil
	}

	cleaned := Clean(records, report)
	backup, err := a.store.Backup(ctx, a.clock.Now())
	if err != nil {
		return result, fmt.Errorf("backup store: %w", err)
	}
	if err := a.store.Save(ctx, cleaned); err != nil {
		return result, fmt.Errorf("save cleaned store: %w", err)
	}
	result.BackupPath = backup
	result.Removed = len(records) - len(cleaned)
	result.Remaining = len(cleaned)
	a.logger.Info("duplicates removed",
		zap.Int("original", len(records)),
		zap.Int("removed", result.Removed),
		zap.Int("remaining", result.Remaining),
		zap.String("backup", backup),
	)
	return result, nil
}
