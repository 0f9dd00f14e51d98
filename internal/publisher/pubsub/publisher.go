// Package pubsub announces admitted records on a Google Cloud Pub/Sub topic.
package pubsub

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"cloud.google.com/go/pubsub"
	"google.golang.org/api/option"

	"github.com/JakeFAU/catalog-crawler/internal/crawler"
	"github.com/JakeFAU/catalog-crawler/internal/identity"
)

// Config names the topic admitted records are published to.
type Config struct {
	ProjectID string `mapstructure:"project_id"`
	TopicID   string `mapstructure:"topic_id"`
}

// Event is the JSON payload of one admission message.
type Event struct {
	RunID         string    `json:"run_id"`
	URL           string    `json:"url"`
	Title         string    `json:"title"`
	DownloadLinks []string  `json:"download_links"`
	IMDbID        string    `json:"imdb_id,omitempty"`
	AdmittedAt    time.Time `json:"admitted_at"`
}

// Publisher wraps a Pub/Sub topic. It implements crawler.RecordSink.
type Publisher struct {
	client *pubsub.Client
	topic  *pubsub.Topic
	clock  crawler.Clock
}

// Open creates a client for cfg.ProjectID and binds cfg.TopicID. PUBSUB_EMULATOR_HOST
// is honored by the client library.
func Open(ctx context.Context, cfg Config, clock crawler.Clock, opts ...option.ClientOption) (*Publisher, error) {
	if cfg.ProjectID == "" || cfg.TopicID == "" {
		return nil, fmt.Errorf("pubsub project_id and topic_id are required")
	}
	client, err := pubsub.NewClient(ctx, cfg.ProjectID, opts...)
	if err != nil {
		return nil, fmt.Errorf("create pubsub client: %w", err)
	}
	return &Publisher{client: client, topic: client.Topic(cfg.TopicID), clock: clock}, nil
}

// Record publishes record and waits for the server ack.
func (p *Publisher) Record(ctx context.Context, runID string, record crawler.ItemRecord) error {
	if p == nil || p.topic == nil {
		return fmt.Errorf("pubsub publisher is not configured")
	}
	event := Event{
		RunID:         runID,
		URL:           record.URL,
		Title:         record.Title,
		DownloadLinks: record.DownloadLinks,
		IMDbID:        record.IMDbID,
		AdmittedAt:    p.now(),
	}
	if event.DownloadLinks == nil {
		event.DownloadLinks = []string{}
	}
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	msg := &pubsub.Message{
		Data: data,
		Attributes: map[string]string{
			"run_id":    runID,
			"title_key": identity.NormalizeTitle(record.Title),
		},
	}
	if _, err := p.topic.Publish(ctx, msg).Get(ctx); err != nil {
		return fmt.Errorf("publish message: %w", err)
	}
	return nil
}

// Close flushes pending messages and releases the client.
func (p *Publisher) Close() error {
	if p == nil || p.client == nil {
		return nil
	}
	p.topic.Stop()
	if err := p.client.Close(); err != nil {
		return fmt.Errorf("close pubsub client: %w", err)
	}
	return nil
}

func (p *Publisher) now() time.Time {
	if p.clock == nil {
		return time.Now().UTC()
	}
	return p.clock.Now()
}
