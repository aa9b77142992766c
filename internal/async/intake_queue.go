package async

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/joseph-ayodele/job-intake/internal/common"
	"github.com/joseph-ayodele/job-intake/internal/pipeline"
)

// RunFunc executes one pipeline run. It is called with a context detached
// from the request that enqueued the task.
type RunFunc func(ctx context.Context, in pipeline.Input) *pipeline.State

type IntakeQueue struct {
	run     RunFunc
	logger  *slog.Logger
	workers int
	timeout time.Duration

	ch   chan Task
	wg   sync.WaitGroup
	once sync.Once

	mu     sync.Mutex
	closed bool
}

var _ Queue = (*IntakeQueue)(nil)

type Option func(*IntakeQueue)

func WithWorkers(n int) Option {
	return func(q *IntakeQueue) {
		if n > 0 {
			q.workers = n
		}
	}
}
func WithQueueSize(n int) Option {
	return func(q *IntakeQueue) {
		if n > 0 {
			q.ch = make(chan Task, n)
		}
	}
}
func WithRunTimeout(d time.Duration) Option {
	return func(q *IntakeQueue) {
		if d > 0 {
			q.timeout = d
		}
	}
}

func NewIntakeQueue(run RunFunc, logger *slog.Logger, opts ...Option) *IntakeQueue {
	if logger == nil {
		logger = slog.Default()
	}
	q := &IntakeQueue{
		run:     run,
		logger:  logger,
		workers: 4,
		timeout: 3 * time.Minute,
		ch:      make(chan Task, 256),
	}
	for _, o := range opts {
		o(q)
	}
	q.start()
	return q
}

func (q *IntakeQueue) start() {
	q.once.Do(func() {
		for i := 0; i < q.workers; i++ {
			q.wg.Add(1)
			go func(workerID int) {
				defer q.wg.Done()
				q.logger.Info("worker started", "worker_id", workerID)

				for task := range q.ch {
					q.process(workerID, task)
				}

				q.logger.Info("worker stopped", "worker_id", workerID)
			}(i + 1)
		}
	})
}

func (q *IntakeQueue) process(workerID int, task Task) {
	ctx, cancel := context.WithTimeout(context.Background(), q.timeout)
	defer cancel()
	if task.RequestID != "" {
		ctx = common.WithRequestID(ctx, task.RequestID)
	}
	log := common.LoggerFrom(common.WithJobID(ctx, task.Input.JobID), q.logger)

	defer func() {
		if r := recover(); r != nil {
			log.Error("analysis panicked", "worker_id", workerID, "panic", fmt.Sprint(r))
		}
	}()

	start := time.Now()
	st := q.run(ctx, task.Input)
	switch {
	case st == nil:
		log.Error("analysis returned no state", "worker_id", workerID)
	case len(st.Errors) > 0:
		log.Warn("analysis finished with errors",
			"worker_id", workerID,
			"run_id", st.RunID,
			"errors", st.Errors,
			"persisted", st.Persisted,
			"queued_ms", start.Sub(task.SubmittedAt).Milliseconds(),
			"elapsed_ms", time.Since(start).Milliseconds(),
		)
	default:
		log.Info("analysis finished",
			"worker_id", workerID,
			"run_id", st.RunID,
			"persisted", st.Persisted,
			"elapsed_ms", time.Since(start).Milliseconds(),
		)
	}
}

// Enqueue never blocks: a full queue is reported as common.ErrQueueFull.
func (q *IntakeQueue) Enqueue(_ context.Context, task Task) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		q.logger.Warn("cannot enqueue: queue is shutting down", "job_id", task.Input.JobID)
		return common.ErrQueueClosed
	}
	if task.SubmittedAt.IsZero() {
		task.SubmittedAt = time.Now()
	}
	select {
	case q.ch <- task:
		q.logger.Info("queued job for analysis", "job_id", task.Input.JobID, "depth", len(q.ch))
		return nil
	default:
		q.logger.Warn("queue full, rejecting job", "job_id", task.Input.JobID, "capacity", cap(q.ch))
		return common.ErrQueueFull
	}
}

func (q *IntakeQueue) Shutdown(ctx context.Context) {
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
