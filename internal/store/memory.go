package store

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/freightdocs/bol-pipeline/constants"
	"github.com/freightdocs/bol-pipeline/internal/common"
	"github.com/freightdocs/bol-pipeline/internal/entity"
)

// MemoryStore is the default in-process document store. All reads
// return deep copies; all writes go through the mutex so Update is a
// true read-modify-write.
type MemoryStore struct {
	mu     sync.RWMutex
	docs   map[uuid.UUID]*entity.Document
	logger *slog.Logger
}

func NewMemoryStore(logger *slog.Logger) *MemoryStore {
	if logger == nil {
		logger = slog.Default()
	}
	return &MemoryStore{
		docs:   make(map[uuid.UUID]*entity.Document),
		logger: logger,
	}
}

func (s *MemoryStore) Create(_ context.Context, doc *entity.Document) (*entity.Document, error) {
	cp := doc.Clone()
	if cp.ID == uuid.Nil {
		cp.ID = uuid.New()
	}
	if cp.UploadedAt.IsZero() {
		cp.UploadedAt = time.Now().UTC()
	}
	if cp.Status == "" {
		cp.Status = constants.StatusProcessing
	}
	if cp.Generation == 0 {
		cp.Generation = 1
	}

	s.mu.Lock()
	s.docs[cp.ID] = cp
	s.mu.Unlock()

	s.logger.Debug("document created", "id", cp.ID, "filename", cp.Filename)
	return cp.Clone(), nil
}

func (s *MemoryStore) Get(_ context.Context, id uuid.UUID) (*entity.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	doc, ok := s.docs[id]
	if !ok {
		return nil, common.ErrNotFound
	}
	return doc.Clone(), nil
}

func (s *MemoryStore) ListAll(_ context.Context) ([]*entity.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshot(func(*entity.Document) bool { return true }), nil
}

func (s *MemoryStore) ListByStatus(_ context.Context, status constants.DocStatus) ([]*entity.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshot(func(d *entity.Document) bool { return d.Status == status }), nil
}

// snapshot copies matching documents ordered newest-upload-first.
// Callers must hold at least the read lock.
func (s *MemoryStore) snapshot(keep func(*entity.Document) bool) []*entity.Document {
	out := make([]*entity.Document, 0, len(s.docs))
	for _, d := range s.docs {
		if keep(d) {
			out = append(out, d.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].UploadedAt.Equal(out[j].UploadedAt) {
			return out[i].ID.String() > out[j].ID.String()
		}
		return out[i].UploadedAt.After(out[j].UploadedAt)
	})
	return out
}

func (s *MemoryStore) Update(_ context.Context, id uuid.UUID, mutate func(*entity.Document) error) (*entity.Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, ok := s.docs[id]
	if !ok {
		return nil, common.ErrNotFound
	}

	// Mutate a copy so a failed mutation never leaks partial state.
	next := doc.Clone()
	if err := mutate(next); err != nil {
		return nil, err
	}
	next.ID = doc.ID
	next.UploadedAt = doc.UploadedAt
	s.docs[id] = next
	return next.Clone(), nil
}

func (s *MemoryStore) Delete(_ context.Context, id uuid.UUID) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.docs[id]; !ok {
		return false, nil
	}
	delete(s.docs, id)
	s.logger.Debug("document deleted", "id", id)
	return true, nil
}
