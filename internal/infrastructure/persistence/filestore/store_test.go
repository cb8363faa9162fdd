package filestore

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bytepad-backend/internal/domain"
	apperrors "bytepad-backend/internal/errors"
)

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func TestStore_GetBeforeLoad(t *testing.T) {
	s := New(t.TempDir(), nil)

	_, err := s.Get()
	require.Error(t, err)
	assert.True(t, apperrors.IsNotInitialized(err))

	_, err = s.Update(context.Background(), func(*domain.Document) error { return nil })
	assert.True(t, apperrors.IsNotInitialized(err))
}

func TestStore_LoadMissingFile(t *testing.T) {
	dir := t.TempDir()
	now := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	s := New(dir, nil, WithClock(fixedClock(now)))

	doc, err := s.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, doc.TotalItems())
	assert.Equal(t, "2024-03-01T09:00:00.000Z", doc.LastModified)

	_, err = os.Stat(filepath.Join(dir, DataFileName))
	assert.NoError(t, err, "empty document should be persisted")
}

func TestStore_LoadCorruptFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, DataFileName)
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o644))

	s := New(dir, nil)
	doc, err := s.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, doc.TotalItems())

	matches, err := filepath.Glob(path + ".corrupt-*")
	require.NoError(t, err)
	assert.Len(t, matches, 1)
}

func TestStore_SaveAndReload(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()
	start := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)

	s := New(dir, nil, WithClock(fixedClock(start)))
	_, err := s.Load(ctx)
	require.NoError(t, err)

	s.clock = fixedClock(start.Add(time.Minute))
	updated, err := s.Update(ctx, func(doc *domain.Document) error {
		notes, _ := doc.Collection(domain.CollectionNotes)
		_, err := notes.Create(map[string]any{"title": "hello"}, start)
		return err
	})
	require.NoError(t, err)
	assert.Equal(t, 1, updated.TotalItems())
	assert.Equal(t, "2024-03-01T09:01:00.000Z", updated.LastModified)

	reloaded, err := New(dir, nil).Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, reloaded.TotalItems())
	assert.Equal(t, "hello", reloaded.Notes[0].Title)
	assert.Equal(t, updated.LastModified, reloaded.LastModified)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	for _, e := range entries {
		assert.NotContains(t, e.Name(), ".tmp", "temp files must not be left behind")
	}
}

func TestStore_LastModifiedNeverDecreases(t *testing.T) {
	ctx := context.Background()
	later := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	s := New(t.TempDir(), nil, WithClock(fixedClock(later)))
	_, err := s.Load(ctx)
	require.NoError(t, err)

	s.clock = fixedClock(later.Add(-time.Hour))
	doc, _ := s.Get()
	require.NoError(t, s.Save(ctx, doc))

	saved, _ := s.Get()
	assert.True(t, saved.ModifiedAt().After(later))
}

func TestStore_UpdateFailureWritesNothing(t *testing.T) {
	ctx := context.Background()
	s := New(t.TempDir(), nil)
	before, err := s.Load(ctx)
	require.NoError(t, err)

	boom := errors.New("boom")
	_, err = s.Update(ctx, func(doc *domain.Document) error {
		doc.Notes = append(doc.Notes, domain.Note{ID: "x"})
		return boom
	})
	assert.ErrorIs(t, err, boom)

	after, _ := s.Get()
	assert.Same(t, before, after)
	assert.Equal(t, 0, after.TotalItems())
}

func TestStore_ReplaceKeepsIncomingTimestamp(t *testing.T) {
	ctx := context.Background()
	local := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	s := New(t.TempDir(), nil, WithClock(fixedClock(local)))
	_, err := s.Load(ctx)
	require.NoError(t, err)

	incoming := domain.NewEmpty(local.Add(time.Hour))
	incoming.Tasks = append(incoming.Tasks, domain.Task{ID: "t1", Title: "remote"})
	require.NoError(t, s.Replace(ctx, incoming))

	got, _ := s.Get()
	assert.Equal(t, incoming.LastModified, got.LastModified)
	assert.Equal(t, 1, got.TotalItems())
}

func TestStore_ConcurrentUpdates(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	s := New(dir, nil)
	_, err := s.Load(ctx)
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.Update(ctx, func(doc *domain.Document) error {
				ideas, _ := doc.Collection(domain.CollectionIdeas)
				_, err := ideas.Create(map[string]any{"title": "idea"}, time.Now())
				return err
			})
			assert.NoError(t, err)
		}()
		wg.Add(1)
		go func() {
			defer wg.Done()
			doc, err := s.Get()
			if assert.NoError(t, err) {
				_, err := json.Marshal(doc)
				assert.NoError(t, err)
			}
		}()
	}
	wg.Wait()

	doc, _ := s.Get()
	assert.Equal(t, 20, doc.TotalItems())

	raw, err := os.ReadFile(filepath.Join(dir, DataFileName))
	require.NoError(t, err)
	var onDisk domain.Document
	require.NoError(t, json.Unmarshal(raw, &onDisk))
	assert.Equal(t, 20, onDisk.TotalItems())
}
