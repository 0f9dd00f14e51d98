// Package cmd implements the catalog-crawler CLI.
//
// Architecture overview:
//   - crawl: the orchestrator loads the JSON record store, replays it into the
//     identity index and fans out over category keys with a bounded pool. Each
//     category worker pages through its listing until an empty page, drops
//     already-known entry URLs and resolves the rest with a second bounded pool.
//     Resolution is a breadth-first walk over follow-on links collecting every
//     download link. Admission claims the URL and normalized title atomically,
//     appends to the store and flushes every crawler.save_interval records.
//   - audit: reports records sharing a URL or normalized title with an earlier
//     record and, with --fix, backs the store up and rewrites it without them.
//   - enrich: looks up IMDb ids for records that lack one and writes the
//     result to a separate output file.
//
// Plumbing: Viper loads configuration from a file and CRAWLER_* environment
// variables, zap provides structured logging, colly performs HTTP fetches,
// goquery parses pages and Prometheus metrics are served with chi when
// metrics.addr is set. Admitted records can additionally be published to
// Pub/Sub, upserted into Postgres, and store snapshots mirrored to GCS.
package cmd
