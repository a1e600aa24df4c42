package async

import (
	"context"
	"sync"
	"time"

	"log/slog"

	"github.com/freightdocs/bol-pipeline/internal/triage"
)

// TriageQueue drives the triage engine from a bounded channel with a
// fixed worker pool. Documents are fully independent, so workers never
// coordinate; per-document ordering is the engine's generation guard.
type TriageQueue struct {
	engine  *triage.Engine
	logger  *slog.Logger
	workers int
	timeout time.Duration

	ch   chan Job
	wg   sync.WaitGroup
	once sync.Once

	mu     sync.Mutex
	closed bool
}

type Option func(*TriageQueue)

func WithWorkers(n int) Option {
	return func(q *TriageQueue) {
		if n > 0 {
			q.workers = n
		}
	}
}
func WithQueueSize(n int) Option {
	return func(q *TriageQueue) {
		if n > 0 {
			q.ch = make(chan Job, n)
		}
	}
}
func WithProcessTimeout(d time.Duration) Option {
	return func(q *TriageQueue) {
		if d > 0 {
			q.timeout = d
		}
	}
}

func NewTriageQueue(engine *triage.Engine, logger *slog.Logger, opts ...Option) *TriageQueue {
	if logger == nil {
		logger = slog.Default()
	}
	q := &TriageQueue{
		engine:  engine,
		logger:  logger,
		workers: 4,
		timeout: 3 * time.Minute,
		ch:      make(chan Job, 256),
	}
	for _, o := range opts {
		o(q)
	}
	q.start()
	return q
}

func (q *TriageQueue) start() {
	q.once.Do(func() {
		for i := 0; i < q.workers; i++ {
			q.wg.Add(1)
			go func(workerID int) {
				defer q.wg.Done()
				q.logger.Info("triage worker started", "worker_id", workerID)

				for job := range q.ch {
					ctx, cancel := context.WithTimeout(context.Background(), q.timeout)
					err := q.engine.Run(ctx, job.DocID, job.Generation, job.Content, job.Filename, job.ContentType)
					cancel()

					if err != nil {
						q.logger.Error("triage run failed", "worker_id", workerID, "doc_id", job.DocID, "error", err)
					} else {
						q.logger.Debug("triage run finished", "worker_id", workerID, "doc_id", job.DocID)
					}
				}

				q.logger.Info("triage worker stopped", "worker_id", workerID)
			}(i + 1)
		}
	})
}

func (q *TriageQueue) Enqueue(_ context.Context, job Job) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		q.logger.Warn("cannot enqueue: queue is shutting down", "doc_id", job.DocID)
		return nil
	}
	select {
	case q.ch <- job:
		q.logger.Debug("queued document for triage", "doc_id", job.DocID, "generation", job.Generation)
	default:
		q.logger.Warn("queue full, applying backpressure", "doc_id", job.DocID)
		q.ch <- job
	}
	return nil
}

func (q *TriageQueue) Shutdown(ctx context.Context) {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	q.closed = true
	close(q.ch)
	q.mu.Unlock()

	done := make(chan struct{})
	go func() { defer close(done); q.wg.Wait() }()

	select {
	case <-ctx.Done():
		q.logger.Warn("shutdown interrupted by context")
	case <-done:
		q.logger.Info("queue drained, shutdown complete")
	}
}
