package async

import (
	"context"
	"time"

	"github.com/joseph-ayodele/job-intake/internal/pipeline"
)

// Task is one background analysis of a saved job.
type Task struct {
	Input       pipeline.Input
	SubmittedAt time.Time
	RequestID   string
}

type Queue interface {
	Enqueue(ctx context.Context, task Task) error
	Shutdown(ctx context.Context)
}
