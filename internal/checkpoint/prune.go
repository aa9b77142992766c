package checkpoint

import (
	"context"
	"log/slog"
	"time"
)

// RunPruner deletes checkpoints older than retention every interval until ctx
// is done. A non-positive retention disables pruning.
func RunPruner(ctx context.Context, store Store, retention, interval time.Duration, logger *slog.Logger) {
	if logger == nil {
		logger = slog.Default()
	}
	if retention <= 0 || interval <= 0 {
		return
	}
	prune := func() {
		cutoff := time.Now().UTC().Add(-retention)
		n, err := store.Prune(ctx, cutoff)
		if err != nil {
			logger.Warn("checkpoint.prune_failed", "error", err)
			return
		}
		if n > 0 {
			logger.Info("checkpoint.pruned", "rows", n, "cutoff", cutoff)
		}
	}

	prune()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			prune()
		}
	}
}
