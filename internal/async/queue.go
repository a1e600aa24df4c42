package async

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Job is one processing attempt for one document. Content is nil on
// retries; the extraction gateway handles that.
type Job struct {
	DocID       uuid.UUID
	Generation  uint64
	Content     []byte
	Filename    string
	ContentType string
	SubmittedAt time.Time
}

type Queue interface {
	Enqueue(ctx context.Context, job Job) error
	Shutdown(ctx context.Context)
}
