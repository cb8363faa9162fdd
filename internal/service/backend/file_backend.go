package backend

import (
	"context"
	"encoding/json"
	"time"

	"bytepad-backend/internal/domain"
	apperrors "bytepad-backend/internal/errors"
	"bytepad-backend/internal/infrastructure/persistence/filestore"
)

// FileBackendName labels results served by the local file store.
const FileBackendName = "file_store"

// FileBackend applies mutations to the local file store.
type FileBackend struct {
	store *filestore.Store
	clock func() time.Time
}

// NewFileBackend creates a backend over store.
func NewFileBackend(store *filestore.Store) *FileBackend {
	return &FileBackend{store: store, clock: time.Now}
}

// Name implements MutationBackend.
func (b *FileBackend) Name() string { return FileBackendName }

// Apply implements MutationBackend.
func (b *FileBackend) Apply(ctx context.Context, m Mutation) (json.RawMessage, error) {
	if !m.Op.IsWrite() {
		doc, err := b.store.Get()
		if err != nil {
			return nil, err
		}
		result, err := read(doc, m)
		if err != nil {
			return nil, err
		}
		return marshal(result)
	}

	var result any
	_, err := b.store.Update(ctx, func(doc *domain.Document) error {
		var err error
		result, err = write(doc, m, b.clock())
		return err
	})
	if err != nil {
		return nil, err
	}
	return marshal(result)
}

func read(doc *domain.Document, m Mutation) (any, error) {
	switch m.Op {
	case OpList:
		c, err := doc.Collection(m.Collection)
		if err != nil {
			return nil, err
		}
		return c.List(), nil
	case OpGet:
		c, err := doc.Collection(m.Collection)
		if err != nil {
			return nil, err
		}
		return c.Get(m.ID)
	case OpGetSingleton:
		return doc.Singleton(m.Singleton)
	}
	return nil, unsupported(m.Op)
}

func write(doc *domain.Document, m Mutation, now time.Time) (any, error) {
	switch m.Op {
	case OpCreate:
		c, err := doc.Collection(m.Collection)
		if err != nil {
			return nil, err
		}
		return c.Create(m.Fields, now)
	case OpUpdate:
		c, err := doc.Collection(m.Collection)
		if err != nil {
			return nil, err
		}
		return c.Update(m.ID, m.Fields, now)
	case OpDelete:
		c, err := doc.Collection(m.Collection)
		if err != nil {
			return nil, err
		}
		if err := c.Delete(m.ID); err != nil {
			return nil, err
		}
		return Deleted{ID: m.ID, Deleted: true}, nil
	case OpUpsertJournal:
		fields := withDate(m.Fields, m.Date)
		entry, _, err := doc.UpsertJournal(fields, now)
		return entry, err
	case OpCompleteTask:
		return doc.CompleteTask(m.ID, now)
	case OpCheckHabit:
		return doc.CheckHabit(m.ID, m.Date, now)
	case OpPutSingleton:
		return doc.ReplaceSingleton(m.Singleton, m.Fields)
	}
	return nil, unsupported(m.Op)
}

func withDate(fields map[string]any, date string) map[string]any {
	out := make(map[string]any, len(fields)+1)
	for k, v := range fields {
		out[k] = v
	}
	if date != "" {
		out["date"] = date
	}
	return out
}

func marshal(v any) (json.RawMessage, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, apperrors.Wrap(err, "encode result")
	}
	return raw, nil
}

func unsupported(op Op) error {
	return apperrors.Validation(apperrors.CodeInvalidArguments, "Unsupported operation").
		WithOperation(string(op)).
		Build()
}
