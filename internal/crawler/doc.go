// Package crawler implements the catalog crawling engine: listing pagination,
// breadth-first item resolution, retry policies, the in-memory record store and
// the orchestrator that admits records exactly once per URL and title.
package crawler
