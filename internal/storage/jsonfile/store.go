// Package jsonfile persists item records as a pretty-printed JSON array with
// atomic replace-on-write semantics.
package jsonfile

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/catalog-crawler/internal/crawler"
)

// backupLayout is the timestamp format used in backup file names.
const backupLayout = "20060102_150405"

// Store reads and writes one JSON document holding every record.
type Store struct {
	path         string
	mirror       crawler.BlobStore
	mirrorPrefix string
	logger       *zap.Logger
}

// Option customizes a Store.
type Option func(*Store)

// WithMirror uploads every saved snapshot to blobs under prefix.
func WithMirror(blobs crawler.BlobStore, prefix string) Option {
	return func(s *Store) {
		s.mirror = blobs
		s.mirrorPrefix = prefix
	}
}

// WithLogger sets the logger used for mirror failures.
func WithLogger(logger *zap.Logger) Option {
	return func(s *Store) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// New validates that the parent directory of path exists (creating it when
// needed) and is a writable directory.
func New(path string, opts ...Option) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("store path is required")
	}
	dir := filepath.Dir(path)
	info, err := os.Stat(dir)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		if mkErr := os.MkdirAll(dir, 0o750); mkErr != nil {
			return nil, fmt.Errorf("create store directory: %w", mkErr)
		}
	case err != nil:
		return nil, fmt.Errorf("stat store directory: %w", err)
	case !info.IsDir():
		return nil, fmt.Errorf("store directory %q is not a directory", dir)
	}

	s := &Store{path: path, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Path returns the file backing the store.
func (s *Store) Path() string {
	return s.path
}

// Load decodes the persisted array. A missing file yields an error matching
// fs.ErrNotExist; undecodable content yields one matching crawler.ErrCorruptStore.
func (s *Store) Load(_ context.Context) ([]crawler.ItemRecord, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		return nil, fmt.Errorf("read store: %w", err)
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, fmt.Errorf("%w: %s is empty", crawler.ErrCorruptStore, s.path)
	}
	var records []crawler.ItemRecord
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", crawler.ErrCorruptStore, s.path, err)
	}
	for i := range records {
		if records[i].DownloadLinks == nil {
			records[i].DownloadLinks = []string{}
		}
	}
	return records, nil
}

// Save replaces the file with records. Readers observe either the previous
// complete file or the new one.
func (s *Store) Save(ctx context.Context, records []crawler.ItemRecord) error {
	data, err := Encode(records)
	if err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("save store: %w", err)
	}
	if err := writeAtomic(s.path, data); err != nil {
		return err
	}
	s.mirrorSnapshot(ctx, filepath.Base(s.path), data)
	return nil
}

// Backup copies the current file next to itself as <name>_backup_<ts>.json and
// returns the new path.
func (s *Store) Backup(ctx context.Context, now time.Time) (string, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		return "", fmt.Errorf("read store for backup: %w", err)
	}
	ext := filepath.Ext(s.path)
	if ext == "" {
		ext = ".json"
	}
	base := strings.TrimSuffix(s.path, filepath.Ext(s.path))
	backup := fmt.Sprintf("%s_backup_%s%s", base, now.Format(backupLayout), ext)
	if err := writeAtomic(backup, data); err != nil {
		return "", err
	}
	s.mirrorSnapshot(ctx, filepath.Base(backup), data)
	return backup, nil
}

// Encode renders records the way they are stored: a 2-space indented array
// with non-ASCII and HTML characters left unescaped.
func Encode(records []crawler.ItemRecord) ([]byte, error) {
	out := make([]crawler.ItemRecord, len(records))
	for i, rec := range records {
		if rec.DownloadLinks == nil {
			rec.DownloadLinks = []string{}
		}
		out[i] = rec
	}
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(out); err != nil {
		return nil, fmt.Errorf("encode records: %w", err)
	}
	return buf.Bytes(), nil
}

func (s *Store) mirrorSnapshot(ctx context.Context, name string, data []byte) {
	if s.mirror == nil {
		return
	}
	object := strings.TrimSuffix(s.mirrorPrefix, "/")
	if object != "" {
		object += "/"
	}
	object += name
	uri, err := s.mirror.PutObject(ctx, object, "application/json", bytes.NewReader(data))
	if err != nil {
		s.logger.Warn("snapshot mirror failed", zap.String("object", object), zap.Error(err))
		return
	}
	s.logger.Debug("snapshot mirrored", zap.String("uri", uri))
}

// writeAtomic writes data to a temp file in the target directory, syncs it and
// renames it over path.
func writeAtomic(path string, data []byte) (err error) {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer func() {
		if err != nil {
			_ = os.Remove(tmpName)
		}
	}()

	if _, err = tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("write temp file: %w", err)
	}
	if err = tmp.Sync(); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("sync temp file: %w", err)
	}
	if err = tmp.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}
	// #nosec G302 -- the store is meant to be readable by other tools.
	if err = os.Chmod(tmpName, 0o644); err != nil {
		return fmt.Errorf("chmod temp file: %w", err)
	}
	if err = os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("replace %s: %w", path, err)
	}
	return nil
}
