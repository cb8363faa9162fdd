// Package filestore persists the dataset document as a single JSON file.
//
// Writers are serialized by a mutex and an advisory file lock, and every write
// goes to a temporary file that is renamed over the data file. Readers never
// lock: Get returns the last committed snapshot, which is never mutated.
package filestore

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gofrs/flock"
	"go.uber.org/zap"

	"bytepad-backend/internal/domain"
	apperrors "bytepad-backend/internal/errors"
)

// DataFileName is the name of the document file inside the data directory.
const DataFileName = "bytepad-data.json"

const lockRetryDelay = 25 * time.Millisecond

// Store is the file-backed document store.
type Store struct {
	path     string
	fileLock *flock.Flock

	mu      sync.Mutex
	current atomic.Pointer[domain.Document]

	clock  func() time.Time
	logger *zap.Logger
}

// Option configures a Store.
type Option func(*Store)

// WithClock overrides the time source used to stamp lastModified.
func WithClock(clock func() time.Time) Option {
	return func(s *Store) { s.clock = clock }
}

// New creates a store for <dataDir>/bytepad-data.json. Load must be called
// before Get.
func New(dataDir string, logger *zap.Logger, opts ...Option) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	path := filepath.Join(dataDir, DataFileName)
	s := &Store{
		path:     path,
		fileLock: flock.New(path + ".lock"),
		clock:    time.Now,
		logger:   logger.Named("filestore"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Path returns the data file path.
func (s *Store) Path() string {
	return s.path
}

// Load reads the document from disk. A missing or corrupt file yields a fresh
// empty document, which is persisted immediately. A corrupt file is kept next
// to the data file for inspection.
func (s *Store) Load(ctx context.Context) (*domain.Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	raw, err := os.ReadFile(s.path)
	switch {
	case err == nil:
		var doc domain.Document
		jsonErr := json.Unmarshal(raw, &doc)
		if jsonErr == nil {
			doc.Normalize()
			s.current.Store(&doc)
			s.logger.Info("Loaded document",
				zap.String("path", s.path),
				zap.Int("items", doc.TotalItems()),
				zap.String("last_modified", doc.LastModified),
			)
			return &doc, nil
		}
		aside := fmt.Sprintf("%s.corrupt-%d", s.path, s.clock().Unix())
		if renameErr := os.Rename(s.path, aside); renameErr != nil {
			s.logger.Warn("Failed to move corrupt document aside", zap.Error(renameErr))
		}
		s.logger.Warn("Document is corrupt, starting empty",
			zap.String("path", s.path),
			zap.String("kept_as", aside),
			zap.Error(jsonErr),
		)
	case os.IsNotExist(err):
		s.logger.Info("No document on disk, starting empty", zap.String("path", s.path))
	default:
		return nil, apperrors.Internal(apperrors.CodeStoreReadFailed, "Failed to read document").
			WithResource(s.path).
			WithCause(err).
			Build()
	}

	doc := domain.NewEmpty(s.clock())
	if err := s.write(ctx, doc); err != nil {
		return nil, err
	}
	s.current.Store(doc)
	return doc, nil
}

// Get returns the current snapshot. Callers must not modify it.
func (s *Store) Get() (*domain.Document, error) {
	doc := s.current.Load()
	if doc == nil {
		return nil, apperrors.NotInitialized(apperrors.CodeStoreNotLoaded, "Store used before Load").
			WithResource(s.path).
			Build()
	}
	return doc, nil
}

// Save persists doc with lastModified set to the later of now and the
// previous value.
func (s *Store) Save(ctx context.Context, doc *domain.Document) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	next := doc.Clone()
	if prev := s.current.Load(); prev != nil && prev.ModifiedAt().After(next.ModifiedAt()) {
		next.LastModified = prev.LastModified
	}
	next.Touch(s.clock())
	return s.commit(ctx, next)
}

// Update applies fn to a copy of the current document and persists the
// result. Nothing is written when fn fails.
func (s *Store) Update(ctx context.Context, fn func(doc *domain.Document) error) (*domain.Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, err := s.Get()
	if err != nil {
		return nil, err
	}
	next := current.Clone()
	if err := fn(next); err != nil {
		return nil, err
	}
	if current.ModifiedAt().After(next.ModifiedAt()) {
		next.LastModified = current.LastModified
	}
	next.Touch(s.clock())
	if err := s.commit(ctx, next); err != nil {
		return nil, err
	}
	return next, nil
}

// Replace swaps in a document received from elsewhere, keeping its
// lastModified unless the current document is newer.
func (s *Store) Replace(ctx context.Context, doc *domain.Document) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	next := doc.Clone()
	if prev := s.current.Load(); prev != nil && prev.ModifiedAt().After(next.ModifiedAt()) {
		next.LastModified = prev.LastModified
	}
	if next.ModifiedAt().IsZero() {
		next.Touch(s.clock())
	}
	return s.commit(ctx, next)
}

func (s *Store) commit(ctx context.Context, doc *domain.Document) error {
	if err := s.write(ctx, doc); err != nil {
		return err
	}
	s.current.Store(doc)
	s.logger.Debug("Document saved",
		zap.Int("items", doc.TotalItems()),
		zap.String("last_modified", doc.LastModified),
	)
	return nil
}

// write must be called with s.mu held.
func (s *Store) write(ctx context.Context, doc *domain.Document) error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return s.writeError(err)
	}

	locked, err := s.fileLock.TryLockContext(ctx, lockRetryDelay)
	if err != nil || !locked {
		if err == nil {
			err = ctx.Err()
		}
		return apperrors.Internal(apperrors.CodeStoreLockFailed, "Failed to lock document file").
			WithResource(s.path).
			WithCause(err).
			Build()
	}
	defer func() {
		if err := s.fileLock.Unlock(); err != nil {
			s.logger.Warn("Failed to release document lock", zap.Error(err))
		}
	}()

	raw, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return s.writeError(err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(s.path), ".bytepad-data-*.tmp")
	if err != nil {
		return s.writeError(err)
	}
	tmpName := tmp.Name()
	cleanup := func() { _ = os.Remove(tmpName) }

	if _, err := tmp.Write(raw); err != nil {
		tmp.Close()
		cleanup()
		return s.writeError(err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		cleanup()
		return s.writeError(err)
	}
	if err := tmp.Close(); err != nil {
		cleanup()
		return s.writeError(err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		cleanup()
		return s.writeError(err)
	}
	return nil
}

func (s *Store) writeError(err error) error {
	return apperrors.Internal(apperrors.CodeStoreWriteFailed, "Failed to write document").
		WithResource(s.path).
		WithCause(err).
		Build()
}
