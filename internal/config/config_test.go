package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Parallel()

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "https://moviesda1.io", cfg.Site.BaseURL)
	assert.Equal(t, "/tamil-movies/%s/", cfg.Site.ListingPath)
	assert.Len(t, cfg.Site.Categories, 26)
	assert.Equal(t, ".f>a", cfg.Site.Selectors.Entry)
	assert.Equal(t, 1, cfg.Site.Selectors.TitleIndex)
	assert.Equal(t, 5, cfg.Crawler.CategoryWorkers)
	assert.Equal(t, 10, cfg.Crawler.ItemWorkers)
	assert.Equal(t, 30, cfg.Crawler.SaveInterval)
	assert.Equal(t, 300*time.Millisecond, cfg.Crawler.PageDelay)
	assert.Equal(t, 200*time.Millisecond, cfg.Crawler.ItemDelay)
	assert.Equal(t, RetryGrade{MaxAttempts: 3, Timeout: 10 * time.Second, BackoffBase: 2}, cfg.Retry.Listing)
	assert.Equal(t, RetryGrade{MaxAttempts: 2, Timeout: 8 * time.Second, BackoffBase: 2}, cfg.Retry.Item)
	assert.Equal(t, "movies.json", cfg.Store.Path)
	assert.Equal(t, 50, cfg.Enrich.SaveInterval)
	assert.False(t, cfg.GCS.Enabled)
	assert.True(t, cfg.Logging.Development)
}

func TestLoadWithFileOverrides(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "config.yaml")
	configYAML := `
site:
  base_url: https://catalog.example
  listing_path: /browse/%s/
  categories: [x, y]
  selectors:
    title_index: 0
crawler:
  item_workers: 3
  page_delay: 1s
  max_nodes_per_item: 50
retry:
  item:
    max_attempts: 4
    timeout: 2s
store:
  path: /tmp/out.json
  strict_load: true
gcs:
  enabled: true
  bucket: snapshots-bucket
pubsub:
  enabled: true
  project_id: proj
  topic_id: items
postgres:
  enabled: true
  dsn: postgres://localhost/catalog
  max_conns: 4
logging:
  development: false
  level: warn
`
	require.NoError(t, os.WriteFile(path, []byte(configYAML), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "https://catalog.example", cfg.Site.BaseURL)
	assert.Equal(t, []string{"x", "y"}, cfg.Site.Categories)
	assert.Equal(t, 0, cfg.Site.Selectors.TitleIndex)
	assert.Equal(t, ".dlink a", cfg.Site.Selectors.Download)
	assert.Equal(t, 3, cfg.Crawler.ItemWorkers)
	assert.Equal(t, time.Second, cfg.Crawler.PageDelay)
	assert.Equal(t, 50, cfg.Crawler.MaxNodesPerItem)
	assert.Equal(t, 4, cfg.Retry.Item.MaxAttempts)
	assert.Equal(t, 2*time.Second, cfg.Retry.Item.Timeout)
	assert.Equal(t, 2.0, cfg.Retry.Item.BackoffBase)
	assert.True(t, cfg.Store.StrictLoad)
	assert.Equal(t, "snapshots-bucket", cfg.GCS.Bucket)
	assert.Equal(t, "snapshots", cfg.GCS.Prefix)
	assert.Equal(t, "items", cfg.PubSub.TopicID)
	assert.Equal(t, int32(4), cfg.Postgres.MaxConns)
	assert.Equal(t, "warn", cfg.Logging.Level)
}

func TestLoadMissingFile(t *testing.T) {
	t.Parallel()

	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}

func TestConfigValidateErrors(t *testing.T) {
	t.Parallel()

	base, err := Load("")
	require.NoError(t, err)

	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"relative base url", func(c *Config) { c.Site.BaseURL = "/movies" }, "site.base_url"},
		{"listing path verb", func(c *Config) { c.Site.ListingPath = "/movies/" }, "site.listing_path"},
		{"no categories", func(c *Config) { c.Site.Categories = nil }, "site.categories"},
		{"missing selector", func(c *Config) { c.Site.Selectors.Download = "" }, "site.selectors"},
		{"category workers", func(c *Config) { c.Crawler.CategoryWorkers = 0 }, "crawler.category_workers"},
		{"item workers", func(c *Config) { c.Crawler.ItemWorkers = -1 }, "crawler.item_workers"},
		{"save interval", func(c *Config) { c.Crawler.SaveInterval = 0 }, "crawler.save_interval"},
		{"max nodes", func(c *Config) { c.Crawler.MaxNodesPerItem = -1 }, "crawler.max_nodes_per_item"},
		{"retry attempts", func(c *Config) { c.Retry.Listing.MaxAttempts = 0 }, "retry.listing.max_attempts"},
		{"retry timeout", func(c *Config) { c.Retry.Item.Timeout = 0 }, "retry.item.timeout"},
		{"retry base", func(c *Config) { c.Retry.Item.BackoffBase = 0.5 }, "retry.item.backoff_base"},
		{"store path", func(c *Config) { c.Store.Path = " " }, "store.path"},
		{"gcs bucket", func(c *Config) { c.GCS.Enabled = true }, "gcs.bucket"},
		{"pubsub topic", func(c *Config) { c.PubSub.Enabled = true }, "pubsub.project_id"},
		{"postgres dsn", func(c *Config) { c.Postgres.Enabled = true }, "postgres.dsn"},
		{"enrich workers", func(c *Config) { c.Enrich.Workers = 0 }, "enrich.workers"},
		{"enrich endpoint", func(c *Config) { c.Enrich.Endpoint = "https://x" }, "enrich.endpoint"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			cfg := base
			cfg.Site.Categories = append([]string(nil), base.Site.Categories...)
			tt.mutate(&cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}
