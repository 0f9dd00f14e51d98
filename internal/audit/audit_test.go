package audit

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/JakeFAU/catalog-crawler/internal/crawler"
	"github.com/JakeFAU/catalog-crawler/internal/storage/jsonfile"
)

type fixedClock time.Time

func (c fixedClock) Now() time.Time { return time.Time(c) }

func fixture() []crawler.ItemRecord {
	return []crawler.ItemRecord{
		{URL: "u0", Title: "Vikram Tamil Movie"},
		{URL: "u1", Title: "Unknown"},
		{URL: "u0", Title: "Vikram (Copy)"},
		{URL: "u3", Title: "vikram"},
		{URL: "u4", Title: "Unknown"},
		{URL: "u5", Title: "Leo"},
	}
}

func TestAnalyze(t *testing.T) {
	t.Parallel()

	report := Analyze(fixture())

	assert.Equal(t, 6, report.Total)
	assert.Equal(t, 5, report.UniqueURLs)
	assert.Equal(t, 3, report.UniqueTitles)
	require.Len(t, report.URLDuplicates, 1)
	assert.Equal(t, Duplicate{Index: 2, FirstIndex: 0, URL: "u0", Title: "Vikram (Copy)", Key: "u0", FirstTitle: "Vikram Tamil Movie"}, report.URLDuplicates[0])
	require.Len(t, report.TitleDuplicates, 1)
	assert.Equal(t, 3, report.TitleDuplicates[0].Index)
	assert.Equal(t, "vikram", report.TitleDuplicates[0].Key)
	assert.True(t, report.HasDuplicates())
}

func TestClean_KeepsFirstOccurrenceInOrder(t *testing.T) {
	t.Parallel()

	records := fixture()
	cleaned := Clean(records, Analyze(records))

	var urls []string
	for _, r := range cleaned {
		urls = append(urls, r.URL)
	}
	assert.Equal(t, []string{"u0", "u1", "u4", "u5"}, urls)
	assert.False(t, Analyze(cleaned).HasDuplicates())
}

func TestReportLog_Truncates(t *testing.T) {
	t.Parallel()

	var records []crawler.ItemRecord
	for i := 0; i < 13; i++ {
		records = append(records, crawler.ItemRecord{URL: "same", Title: fmt.Sprintf("Title %d", i)})
	}
	core, logs := observer.New(zap.InfoLevel)
	Analyze(records).Log(zap.New(core))

	assert.Equal(t, ReportLimit, logs.FilterMessage("duplicate url").Len())
	truncated := logs.FilterMessage("duplicate urls truncated").All()
	require.Len(t, truncated, 1)
	assert.EqualValues(t, 2, truncated[0].ContextMap()["more"])
}

func TestAuditor_FixWithJSONStore(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	store, err := jsonfile.New(filepath.Join(dir, "movies.json"))
	require.NoError(t, err)
	require.NoError(t, store.Save(context.Background(), fixture()))

	now := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	result, err := New(store, fixedClock(now), nil).Run(context.Background(), true)
	require.NoError(t, err)

	assert.Equal(t, 2, result.Removed)
	assert.Equal(t, 4, result.Remaining)
	assert.Equal(t, filepath.Join(dir, "movies_backup_20240102_030405.json"), result.BackupPath)

	cleaned, err := store.Load(context.Background())
	require.NoError(t, err)
	assert.Len(t, cleaned, 4)

	backup, err := jsonfile.New(result.BackupPath)
	require.NoError(t, err)
	original, err := backup.Load(context.Background())
	require.NoError(t, err)
	assert.Len(t, original, 6)
}

// MockStore is a mock implementation of the Store interface.
type MockStore struct {
	mock.Mock
}

func (m *MockStore) Load(ctx context.Context) ([]crawler.ItemRecord, error) {
	args := m.Called(ctx)
	records, _ := args.Get(0).([]crawler.ItemRecord)
	return records, args.Error(1)
}

func (m *MockStore) Save(ctx context.Context, records []crawler.ItemRecord) error {
	return m.Called(ctx, records).Error(0)
}

func (m *MockStore) Backup(ctx context.Context, now time.Time) (string, error) {
	args := m.Called(ctx, now)
	return args.String(0), args.Error(1)
}

func TestAuditor_ReportOnlyNeverWrites(t *testing.T) {
	t.Parallel()

	store := &MockStore{}
	store.On("Load", mock.Anything).Return(fixture(), nil)

	result, err := New(store, fixedClock(time.Now()), nil).Run(context.Background(), false)
	require.NoError(t, err)
	assert.Zero(t, result.Removed)
	assert.Equal(t, 6, result.Remaining)
	store.AssertNotCalled(t, "Save", mock.Anything, mock.Anything)
	store.AssertNotCalled(t, "Backup", mock.Anything, mock.Anything)
}

func TestAuditor_BackupFailureLeavesStore(t *testing.T) {
	t.Parallel()

	store := &MockStore{}
	store.On("Load", mock.Anything).Return(fixture(), nil)
	store.On("Backup", mock.Anything, mock.Anything).Return("", errors.New("read-only fs"))

	_, err := New(store, fixedClock(time.Now()), nil).Run(context.Background(), true)
	require.Error(t, err)
	store.AssertNotCalled(t, "Save", mock.Anything, mock.Anything)
}

func TestAuditor_LoadError(t *testing.T) {
	t.Parallel()

	store := &MockStore{}
	store.On("Load", mock.Anything).Return(nil, crawler.ErrCorruptStore)

	_, err := New(store, fixedClock(time.Now()), nil).Run(context.Background(), true)
	assert.ErrorIs(t, err, crawler.ErrCorruptStore)
}
