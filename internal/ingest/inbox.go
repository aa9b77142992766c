// Package ingest turns capture files dropped into a directory into saved jobs
// queued for analysis.
package ingest

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/joseph-ayodele/job-intake/constants"
	"github.com/joseph-ayodele/job-intake/internal/async"
	"github.com/joseph-ayodele/job-intake/internal/common"
	"github.com/joseph-ayodele/job-intake/internal/entity"
	"github.com/joseph-ayodele/job-intake/internal/pipeline"
)

// CaptureSaver persists a capture and returns the job it belongs to.
type CaptureSaver interface {
	SaveCapture(ctx context.Context, capture entity.Capture) (*entity.Job, error)
}

// IngestionResult is the outcome of ingesting one capture file.
type IngestionResult struct {
	SourcePath   string
	JobID        string
	HashHex      string
	Deduplicated bool
	Queued       bool
	Err          error
}

type DirStats struct {
	FilesSeen    int
	Queued       int
	Deduplicated int
	Skipped      int
	Errors       int
}

// Inbox saves capture files and queues them for the pipeline. Files whose
// content hash was already ingested are skipped.
type Inbox struct {
	saver  CaptureSaver
	queue  async.Queue
	logger *slog.Logger

	mu   sync.Mutex
	seen map[string]string // path -> content hash
}

func NewInbox(saver CaptureSaver, queue async.Queue, logger *slog.Logger) *Inbox {
	if logger == nil {
		logger = slog.Default()
	}
	return &Inbox{saver: saver, queue: queue, logger: logger, seen: map[string]string{}}
}

// ReadCapture decodes and validates a capture file.
func ReadCapture(path string) (entity.Capture, []byte, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return entity.Capture{}, nil, common.WrapError(err, "read capture")
	}
	var c entity.Capture
	if err := json.Unmarshal(b, &c); err != nil {
		return entity.Capture{}, nil, fmt.Errorf("decode capture: %w: %w", common.ErrInvalidInput, err)
	}
	if err := ValidateCapture(c); err != nil {
		return entity.Capture{}, nil, err
	}
	return c, b, nil
}

// MaxJobURLLen bounds the job_url column.
const MaxJobURLLen = 2048

// ValidateCapture requires an absolute job URL and either raw text or client
// fields. A client-supplied salary currency must be an ISO 4217 code.
func ValidateCapture(c entity.Capture) error {
	v := common.NewValidator().Field("jobUrl", c.JobURL, common.Required, common.HTTPURL, common.MaxLength(MaxJobURLLen))
	if strings.TrimSpace(c.RawText) == "" && len(c.ClientExtracted) == 0 {
		v.Field("rawText", c.RawText, common.Required)
	}
	if cur, ok := c.ClientExtracted[constants.FieldSalaryCurrency].(string); ok {
		v.Field(constants.FieldSalaryCurrency, cur, common.CurrencyCode)
	}
	return v.Error()
}

// IngestPath saves the capture at path and enqueues its analysis.
func (in *Inbox) IngestPath(ctx context.Context, path string) IngestionResult {
	res := IngestionResult{SourcePath: path}
	c, raw, err := ReadCapture(path)
	if err != nil {
		in.logger.Warn("capture rejected", "path", path, "error", err)
		res.Err = err
		return res
	}
	sum := sha256.Sum256(raw)
	res.HashHex = hex.EncodeToString(sum[:])

	in.mu.Lock()
	dup := in.seen[path] == res.HashHex
	in.mu.Unlock()
	if dup {
		in.logger.Debug("capture unchanged", "path", path)
		res.Deduplicated = true
		return res
	}

	job, err := in.saver.SaveCapture(ctx, c)
	if err != nil {
		res.Err = err
		return res
	}
	res.JobID = job.ID.String()

	task := async.Task{
		Input: pipeline.Input{
			JobID:           res.JobID,
			JobURL:          c.JobURL,
			RawText:         c.RawText,
			ClientExtracted: c.ClientExtracted,
		},
		SubmittedAt: time.Now().UTC(),
		RequestID:   "inbox:" + filepath.Base(path),
	}
	if err := in.queue.Enqueue(ctx, task); err != nil {
		in.logger.Error("capture not queued", "path", path, "job_id", res.JobID, "error", err)
		res.Err = err
		return res
	}
	res.Queued = true

	in.mu.Lock()
	in.seen[path] = res.HashHex
	in.mu.Unlock()
	in.logger.Info("capture queued", "path", path, "job_id", res.JobID)
	return res
}

// IngestDirectory ingests every visible capture file under root.
func (in *Inbox) IngestDirectory(ctx context.Context, root string) ([]IngestionResult, DirStats, error) {
	var (
		results []IngestionResult
		stats   DirStats
	)
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if d.IsDir() {
			if path != root && IsHidden(path) {
				return filepath.SkipDir
			}
			return nil
		}
		if IsHidden(path) || !allowed(path, defaultExts) {
			stats.Skipped++
			return nil
		}
		stats.FilesSeen++
		r := in.IngestPath(ctx, path)
		switch {
		case r.Err != nil:
			stats.Errors++
		case r.Deduplicated:
			stats.Deduplicated++
		case r.Queued:
			stats.Queued++
		}
		results = append(results, r)
		return nil
	})
	in.logger.Info("capture directory ingested", "root", root,
		"seen", stats.FilesSeen, "queued", stats.Queued, "dedup", stats.Deduplicated,
		"skipped", stats.Skipped, "errors", stats.Errors)
	return results, stats, err
}

// Watch ingests captures under dir as they appear until ctx is done.
func (in *Inbox) Watch(ctx context.Context, dir string, debounce time.Duration) error {
	paths, errs, err := StartWatcher(ctx, WatchConfig{
		Roots:       []string{dir},
		InitialScan: true,
		Debounce:    debounce,
		Logger:      in.logger,
	})
	if err != nil {
		return err
	}
	in.logger.Info("capture inbox watching", "dir", dir)
	for {
		select {
		case p, ok := <-paths:
			if !ok {
				return ctx.Err()
			}
			in.IngestPath(ctx, p)
		case e, ok := <-errs:
			if ok {
				in.logger.Warn("capture inbox watcher error", "error", e)
			} else {
				errs = nil
			}
		}
	}
}
