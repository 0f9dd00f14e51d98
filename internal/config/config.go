// Package config loads and validates crawler configuration via Viper.
package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/JakeFAU/catalog-crawler/internal/logging"
	"github.com/JakeFAU/catalog-crawler/internal/parser"
	"github.com/JakeFAU/catalog-crawler/internal/publisher/pubsub"
	"github.com/JakeFAU/catalog-crawler/internal/storage/gcs"
	"github.com/JakeFAU/catalog-crawler/internal/storage/postgres"
)

// Config captures all configuration knobs loaded via Viper.
type Config struct {
	Site     SiteConfig     `mapstructure:"site"`
	Crawler  CrawlerConfig  `mapstructure:"crawler"`
	Retry    RetryConfig    `mapstructure:"retry"`
	Store    StoreConfig    `mapstructure:"store"`
	Metrics  MetricsConfig  `mapstructure:"metrics"`
	GCS      GCSConfig      `mapstructure:"gcs"`
	PubSub   PubSubConfig   `mapstructure:"pubsub"`
	Postgres PostgresConfig `mapstructure:"postgres"`
	Enrich   EnrichConfig   `mapstructure:"enrich"`
	Logging  logging.Config `mapstructure:"logging"`
}

// SiteConfig describes the catalog being crawled.
type SiteConfig struct {
	BaseURL string `mapstructure:"base_url"`
	// ListingPath holds one %s verb for the category key.
	ListingPath string           `mapstructure:"listing_path"`
	Categories  []string         `mapstructure:"categories"`
	Selectors   parser.Selectors `mapstructure:"selectors"`
}

// CrawlerConfig governs pool sizes, pacing and transport.
type CrawlerConfig struct {
	CategoryWorkers int           `mapstructure:"category_workers"`
	ItemWorkers     int           `mapstructure:"item_workers"`
	SaveInterval    int           `mapstructure:"save_interval"`
	PageDelay       time.Duration `mapstructure:"page_delay"`
	ItemDelay       time.Duration `mapstructure:"item_delay"`
	HostRPS         float64       `mapstructure:"host_rps"`
	HostBurst       int           `mapstructure:"host_burst"`
	MaxNodesPerItem int           `mapstructure:"max_nodes_per_item"`
	UserAgent       string        `mapstructure:"user_agent"`
}

// RetryConfig holds the two retry grades.
type RetryConfig struct {
	Listing RetryGrade `mapstructure:"listing"`
	Item    RetryGrade `mapstructure:"item"`
}

// RetryGrade is one retry policy's tunables.
type RetryGrade struct {
	MaxAttempts int           `mapstructure:"max_attempts"`
	Timeout     time.Duration `mapstructure:"timeout"`
	BackoffBase float64       `mapstructure:"backoff_base"`
}

// StoreConfig locates the JSON record store.
type StoreConfig struct {
	Path       string `mapstructure:"path"`
	StrictLoad bool   `mapstructure:"strict_load"`
	// BackupOnStart copies the existing store aside before a crawl.
	BackupOnStart bool `mapstructure:"backup_on_start"`
}

// MetricsConfig enables the /metrics and /healthz listener when Addr is set.
type MetricsConfig struct {
	Addr string `mapstructure:"addr"`
}

// GCSConfig enables the snapshot mirror.
type GCSConfig struct {
	gcs.Config `mapstructure:",squash"`

	Enabled bool `mapstructure:"enabled"`
}

// PubSubConfig enables admission events.
type PubSubConfig struct {
	pubsub.Config `mapstructure:",squash"`

	Enabled bool `mapstructure:"enabled"`
}

// PostgresConfig enables the relational record mirror.
type PostgresConfig struct {
	postgres.Config `mapstructure:",squash"`

	Enabled bool `mapstructure:"enabled"`
}

// EnrichConfig drives the metadata enrichment command.
type EnrichConfig struct {
	Input        string `mapstructure:"input"`
	Output       string `mapstructure:"output"`
	Workers      int    `mapstructure:"workers"`
	SaveInterval int    `mapstructure:"save_interval"`
	// Endpoint holds one %s verb for the escaped query.
	Endpoint   string        `mapstructure:"endpoint"`
	Candidates int           `mapstructure:"candidates"`
	Timeout    time.Duration `mapstructure:"timeout"`
	RPS        float64       `mapstructure:"rps"`
}

// Load builds a Config from disk/environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("CRAWLER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

// DefaultCategories are the listing keys of the catalog: one per letter.
func DefaultCategories() []string {
	keys := make([]string, 0, 26)
	for c := 'a'; c <= 'z'; c++ {
		keys = append(keys, string(c))
	}
	return keys
}

func setDefaults(v *viper.Viper) {
	sel := parser.DefaultSelectors()
	v.SetDefault("site.base_url", "https://moviesda1.io")
	v.SetDefault("site.listing_path", "/tamil-movies/%s/")
	v.SetDefault("site.categories", DefaultCategories())
	v.SetDefault("site.selectors.entry", sel.Entry)
	v.SetDefault("site.selectors.listing", sel.Listing)
	v.SetDefault("site.selectors.download", sel.Download)
	v.SetDefault("site.selectors.title", sel.Title)
	v.SetDefault("site.selectors.title_index", sel.TitleIndex)
	v.SetDefault("crawler.category_workers", 5)
	v.SetDefault("crawler.item_workers", 10)
	v.SetDefault("crawler.save_interval", 30)
	v.SetDefault("crawler.page_delay", 300*time.Millisecond)
	v.SetDefault("crawler.item_delay", 200*time.Millisecond)
	v.SetDefault("crawler.host_rps", 0)
	v.SetDefault("crawler.host_burst", 1)
	v.SetDefault("crawler.max_nodes_per_item", 0)
	v.SetDefault("crawler.user_agent", "Mozilla/5.0 (compatible; catalog-crawler/1.0)")
	v.SetDefault("retry.listing.max_attempts", 3)
	v.SetDefault("retry.listing.timeout", 10*time.Second)
	v.SetDefault("retry.listing.backoff_base", 2.0)
	v.SetDefault("retry.item.max_attempts", 2)
	v.SetDefault("retry.item.timeout", 8*time.Second)
	v.SetDefault("retry.item.backoff_base", 2.0)
	v.SetDefault("store.path", "movies.json")
	v.SetDefault("store.strict_load", false)
	v.SetDefault("store.backup_on_start", false)
	v.SetDefault("metrics.addr", "")
	v.SetDefault("gcs.enabled", false)
	v.SetDefault("gcs.bucket", "")
	v.SetDefault("gcs.prefix", "snapshots")
	v.SetDefault("gcs.endpoint", "")
	v.SetDefault("pubsub.enabled", false)
	v.SetDefault("pubsub.project_id", "")
	v.SetDefault("pubsub.topic_id", "")
	v.SetDefault("postgres.enabled", false)
	v.SetDefault("postgres.dsn", "")
	v.SetDefault("postgres.table", "catalog_items")
	v.SetDefault("postgres.create_table", true)
	v.SetDefault("enrich.input", "movies.json")
	v.SetDefault("enrich.output", "movies_with_imdb.json")
	v.SetDefault("enrich.workers", 10)
	v.SetDefault("enrich.save_interval", 50)
	v.SetDefault("enrich.endpoint", "https://v3.sg.media-imdb.com/suggestion/x/%s.json")
	v.SetDefault("enrich.candidates", 5)
	v.SetDefault("enrich.timeout", 10*time.Second)
	v.SetDefault("enrich.rps", 10.0)
	v.SetDefault("logging.development", true)
	v.SetDefault("logging.level", "")
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	u, err := url.Parse(c.Site.BaseURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("site.base_url must be an absolute http(s) URL")
	}
	if strings.Count(c.Site.ListingPath, "%s") != 1 {
		return fmt.Errorf("site.listing_path must contain exactly one %%s")
	}
	if len(c.Site.Categories) == 0 {
		return fmt.Errorf("site.categories must not be empty")
	}
	if c.Site.Selectors.Entry == "" || c.Site.Selectors.Listing == "" || c.Site.Selectors.Download == "" {
		return fmt.Errorf("site.selectors entry, listing and download are required")
	}
	if c.Crawler.CategoryWorkers <= 0 {
		return fmt.Errorf("crawler.category_workers must be > 0")
	}
	if c.Crawler.ItemWorkers <= 0 {
		return fmt.Errorf("crawler.item_workers must be > 0")
	}
	if c.Crawler.SaveInterval <= 0 {
		return fmt.Errorf("crawler.save_interval must be > 0")
	}
	if c.Crawler.MaxNodesPerItem < 0 {
		return fmt.Errorf("crawler.max_nodes_per_item must be >= 0")
	}
	for name, grade := range map[string]RetryGrade{"listing": c.Retry.Listing, "item": c.Retry.Item} {
		if grade.MaxAttempts < 1 {
			return fmt.Errorf("retry.%s.max_attempts must be >= 1", name)
		}
		if grade.Timeout <= 0 {
			return fmt.Errorf("retry.%s.timeout must be > 0", name)
		}
		if grade.BackoffBase < 1 {
			return fmt.Errorf("retry.%s.backoff_base must be >= 1", name)
		}
	}
	if strings.TrimSpace(c.Store.Path) == "" {
		return fmt.Errorf("store.path is required")
	}
	if c.GCS.Enabled && c.GCS.Bucket == "" {
		return fmt.Errorf("gcs.bucket must be set when gcs is enabled")
	}
	if c.PubSub.Enabled && (c.PubSub.ProjectID == "" || c.PubSub.TopicID == "") {
		return fmt.Errorf("pubsub.project_id and pubsub.topic_id must be set when pubsub is enabled")
	}
	if c.Postgres.Enabled && c.Postgres.DSN == "" {
		return fmt.Errorf("postgres.dsn must be set when postgres is enabled")
	}
	if c.Enrich.Workers <= 0 || c.Enrich.SaveInterval <= 0 {
		return fmt.Errorf("enrich.workers and enrich.save_interval must be > 0")
	}
	if strings.Count(c.Enrich.Endpoint, "%s") != 1 {
		return fmt.Errorf("enrich.endpoint must contain exactly one %%s")
	}
	return nil
}
