package gcs_test

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/catalog-crawler/internal/storage/gcs"
)

func openTestStore(t *testing.T, handler http.Handler) *gcs.BlobStore {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	store, err := gcs.Open(context.Background(), gcs.Config{
		Bucket:                "test-bucket",
		Endpoint:              server.URL,
		WithoutAuthentication: true,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestBlobStore_PutObject(t *testing.T) {
	t.Parallel()

	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Contains(t, r.URL.Path, "/upload/storage/v1/b/test-bucket/o")
		assert.Equal(t, "snapshots/movies.json", r.URL.Query().Get("name"))
		body, err := io.ReadAll(r.Body)
		assert.NoError(t, err)
		assert.Contains(t, string(body), `[{"url":"u"}]`)
		assert.Contains(t, string(body), "application/json")
		fmt.Fprintln(w, `{"name": "snapshots/movies.json", "bucket": "test-bucket"}`)
	})
	store := openTestStore(t, handler)

	uri, err := store.PutObject(context.Background(), "snapshots/movies.json", "application/json", strings.NewReader(`[{"url":"u"}]`))
	require.NoError(t, err)
	assert.Equal(t, "gs://test-bucket/snapshots/movies.json", uri)
}

func TestBlobStore_PutObjectServerError(t *testing.T) {
	t.Parallel()

	store := openTestStore(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))

	_, err := store.PutObject(context.Background(), "movies.json", "", strings.NewReader("[]"))
	assert.Error(t, err)
}

func TestBlobStore_Validation(t *testing.T) {
	t.Parallel()

	_, err := gcs.New(nil, gcs.Config{Bucket: "b"})
	assert.Error(t, err)

	_, err = gcs.Open(context.Background(), gcs.Config{})
	assert.Error(t, err)

	store := openTestStore(t, http.NotFoundHandler())
	_, err = store.PutObject(context.Background(), " ", "", strings.NewReader(""))
	assert.Error(t, err)

	var nilStore *gcs.BlobStore
	assert.NoError(t, nilStore.Close())
}
