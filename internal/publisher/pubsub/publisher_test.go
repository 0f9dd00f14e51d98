package pubsub_test

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	gpubsub "cloud.google.com/go/pubsub"
	"cloud.google.com/go/pubsub/pstest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/option"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/JakeFAU/catalog-crawler/internal/crawler"
	"github.com/JakeFAU/catalog-crawler/internal/publisher/pubsub"
)

type fixedClock time.Time

func (c fixedClock) Now() time.Time { return time.Time(c) }

func newFakeServer(t *testing.T) (*pstest.Server, []option.ClientOption) {
	t.Helper()
	srv := pstest.NewServer()
	t.Cleanup(func() { _ = srv.Close() })

	conn, err := grpc.NewClient(srv.Addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })

	opts := []option.ClientOption{option.WithGRPCConn(conn)}
	admin, err := gpubsub.NewClient(context.Background(), "proj", opts...)
	require.NoError(t, err)
	_, err = admin.CreateTopic(context.Background(), "items")
	require.NoError(t, err)
	return srv, opts
}

func TestPublisher_RecordPublishesEvent(t *testing.T) {
	t.Parallel()

	srv, opts := newFakeServer(t)
	at := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	pub, err := pubsub.Open(context.Background(), pubsub.Config{ProjectID: "proj", TopicID: "items"}, fixedClock(at), opts...)
	require.NoError(t, err)

	rec := crawler.ItemRecord{URL: "https://catalog.test/m/1", Title: "Jailer Tamil Movie"}
	require.NoError(t, pub.Record(context.Background(), "run-1", rec))
	require.NoError(t, pub.Close())

	msgs := srv.Messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, "run-1", msgs[0].Attributes["run_id"])
	assert.Equal(t, "jailer", msgs[0].Attributes["title_key"])

	var event pubsub.Event
	require.NoError(t, json.Unmarshal(msgs[0].Data, &event))
	assert.Equal(t, rec.URL, event.URL)
	assert.Equal(t, []string{}, event.DownloadLinks)
	assert.True(t, at.Equal(event.AdmittedAt))
}

func TestPublisher_MissingTopicFails(t *testing.T) {
	t.Parallel()

	_, opts := newFakeServer(t)
	pub, err := pubsub.Open(context.Background(), pubsub.Config{ProjectID: "proj", TopicID: "absent"}, nil, opts...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = pub.Close() })

	err = pub.Record(context.Background(), "run-1", crawler.ItemRecord{URL: "u", Title: "T"})
	assert.Error(t, err)
}

func TestPublisher_Validation(t *testing.T) {
	t.Parallel()

	_, err := pubsub.Open(context.Background(), pubsub.Config{ProjectID: "proj"}, nil)
	assert.Error(t, err)

	var nilPub *pubsub.Publisher
	assert.Error(t, nilPub.Record(context.Background(), "", crawler.ItemRecord{}))
	assert.NoError(t, nilPub.Close())
}
