package store

import (
	"context"

	"github.com/google/uuid"

	"github.com/freightdocs/bol-pipeline/constants"
	"github.com/freightdocs/bol-pipeline/internal/entity"
)

// DocumentStore is the persistence contract for documents. It is pure
// data access: no triage rules live here, and callers are responsible
// for keeping the document consistent across an Update.
//
// Update is read-modify-write against the latest version: the mutate
// function receives the current document under the store's lock (or
// transaction) and its changes apply atomically. Returning an error
// from mutate aborts the update and leaves the stored document
// untouched.
type DocumentStore interface {
	Create(ctx context.Context, doc *entity.Document) (*entity.Document, error)
	Get(ctx context.Context, id uuid.UUID) (*entity.Document, error)
	ListAll(ctx context.Context) ([]*entity.Document, error)
	ListByStatus(ctx context.Context, status constants.DocStatus) ([]*entity.Document, error)
	Update(ctx context.Context, id uuid.UUID, mutate func(*entity.Document) error) (*entity.Document, error)
	Delete(ctx context.Context, id uuid.UUID) (bool, error)
}
