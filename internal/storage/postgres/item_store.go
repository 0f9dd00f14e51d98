// Package postgres mirrors admitted item records into a Postgres table.
package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/JakeFAU/catalog-crawler/internal/crawler"
	"github.com/JakeFAU/catalog-crawler/internal/identity"
)

var validTableName = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// Config controls the Postgres connection pool used for item rows.
type Config struct {
	DSN             string        `mapstructure:"dsn"`
	Table           string        `mapstructure:"table"`
	MaxConns        int32         `mapstructure:"max_conns"`
	MinConns        int32         `mapstructure:"min_conns"`
	MaxConnLifetime time.Duration `mapstructure:"max_conn_lifetime"`
	// CreateTable issues CREATE TABLE IF NOT EXISTS on open.
	CreateTable bool `mapstructure:"create_table"`
}

type execCloser interface {
	Exec(context.Context, string, ...any) (pgconn.CommandTag, error)
	Close()
}

// ItemStore upserts item rows keyed by URL. It implements crawler.RecordSink.
type ItemStore struct {
	pool  execCloser
	table string
}

// Open creates a pooled ItemStore using cfg.
func Open(ctx context.Context, cfg Config) (*ItemStore, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("postgres.dsn is required")
	}
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	if cfg.MinConns > 0 {
		poolCfg.MinConns = cfg.MinConns
	}
	if cfg.MaxConnLifetime > 0 {
		poolCfg.MaxConnLifetime = cfg.MaxConnLifetime
	}
	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	store, err := NewWithPool(pool, cfg.Table)
	if err != nil {
		pool.Close()
		return nil, err
	}
	if cfg.CreateTable {
		if err := store.EnsureSchema(ctx); err != nil {
			pool.Close()
			return nil, err
		}
	}
	return store, nil
}

// NewWithPool constructs a store from an existing pool (primarily for testing).
func NewWithPool(pool execCloser, table string) (*ItemStore, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is required")
	}
	if table == "" {
		table = "catalog_items"
	}
	if !validTableName.MatchString(table) {
		return nil, fmt.Errorf("invalid table name %q", table)
	}
	return &ItemStore{pool: pool, table: table}, nil
}

// EnsureSchema creates the item table when missing.
func (s *ItemStore) EnsureSchema(ctx context.Context) error {
	query := fmt.Sprintf(`
CREATE TABLE IF NOT EXISTS %s (
	url            TEXT PRIMARY KEY,
	title          TEXT NOT NULL,
	title_key      TEXT NOT NULL,
	download_links JSONB NOT NULL,
	imdb_id        TEXT,
	run_id         TEXT,
	updated_at     TIMESTAMPTZ NOT NULL DEFAULT now()
)`, s.table)
	if _, err := s.pool.Exec(ctx, query); err != nil {
		return fmt.Errorf("create table %s: %w", s.table, err)
	}
	return nil
}

// Close releases the underlying pool resources.
func (s *ItemStore) Close() {
	if s == nil || s.pool == nil {
		return
	}
	s.pool.Close()
}

// Record upserts one admitted record.
func (s *ItemStore) Record(ctx context.Context, runID string, record crawler.ItemRecord) error {
	if s == nil || s.pool == nil {
		return fmt.Errorf("item store is not configured")
	}
	if record.URL == "" {
		return fmt.Errorf("record url is required")
	}
	links := record.DownloadLinks
	if links == nil {
		links = []string{}
	}
	linksJSON, err := json.Marshal(links)
	if err != nil {
		return fmt.Errorf("marshal download links: %w", err)
	}
	query := fmt.Sprintf(`
INSERT INTO %s (
	url,
	title,
	title_key,
	download_links,
	imdb_id,
	run_id,
	updated_at
) VALUES (
	$1,$2,$3,$4,NULLIF($5, ''),$6,now()
)
ON CONFLICT (url) DO UPDATE SET
	title = EXCLUDED.title,
	title_key = EXCLUDED.title_key,
	download_links = EXCLUDED.download_links,
	imdb_id = COALESCE(EXCLUDED.imdb_id, %s.imdb_id),
	run_id = EXCLUDED.run_id,
	updated_at = now()`, s.table, s.table)

	args := []any{
		record.URL,
		record.Title,
		identity.NormalizeTitle(record.Title),
		linksJSON,
		record.IMDbID,
		runID,
	}
	if _, err := s.pool.Exec(ctx, query, args...); err != nil {
		return fmt.Errorf("upsert item: %w", err)
	}
	return nil
}
