// Package checkpoint keeps the per-run audit trail of pipeline state.
package checkpoint

import (
	"context"
	"log/slog"
	"time"

	"github.com/joseph-ayodele/job-intake/internal/entity"
)

// Store persists checkpoints. Implementations must be safe for concurrent use.
type Store interface {
	Append(ctx context.Context, cp entity.Checkpoint) error
	// History returns the checkpoints of one run in sequence order.
	History(ctx context.Context, runID string) ([]entity.Checkpoint, error)
	// Runs returns the run ids recorded for a job, newest first.
	Runs(ctx context.Context, jobID string) ([]string, error)
	// Prune deletes checkpoints written before olderThan.
	Prune(ctx context.Context, olderThan time.Time) (int64, error)
}

// NopStore is used when no checkpoint database is configured.
type NopStore struct{}

var _ Store = NopStore{}

func (NopStore) Append(context.Context, entity.Checkpoint) error { return nil }

func (NopStore) History(context.Context, string) ([]entity.Checkpoint, error) { return nil, nil }

func (NopStore) Runs(context.Context, string) ([]string, error) { return nil, nil }

func (NopStore) Prune(context.Context, time.Time) (int64, error) { return 0, nil }

// OrNop returns s, or a NopStore when opening s failed. Runs then continue
// without an audit trail.
func OrNop(s Store, err error, logger *slog.Logger) Store {
	if logger == nil {
		logger = slog.Default()
	}
	if err != nil {
		logger.Warn("checkpoint.unavailable", "error", err)
		return NopStore{}
	}
	if s == nil {
		return NopStore{}
	}
	return s
}
