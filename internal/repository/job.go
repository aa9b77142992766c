package repository

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/joseph-ayodele/job-intake/constants"
	"github.com/joseph-ayodele/job-intake/internal/common"
	"github.com/joseph-ayodele/job-intake/internal/entity"
)

type JobRepository interface {
	FindByID(ctx context.Context, id string) (*entity.Job, error)
	// UpdateFields writes non-nil values only; a nil never clears a column.
	UpdateFields(ctx context.Context, id string, updates map[string]any) error
	// SaveCapture upserts the job record for capture.JobURL.
	SaveCapture(ctx context.Context, capture entity.Capture) (*entity.Job, error)
	// WithSession returns a repository on a fresh gorm session bound to ctx.
	WithSession(ctx context.Context) JobRepository
	Migrate(ctx context.Context) error
}

type jobRepository struct {
	db     *gorm.DB
	logger *slog.Logger
}

func NewJobRepository(db *gorm.DB, logger *slog.Logger) JobRepository {
	if logger == nil {
		logger = slog.Default()
	}
	return &jobRepository{db: db, logger: logger}
}

func (r *jobRepository) WithSession(ctx context.Context) JobRepository {
	return &jobRepository{db: r.db.Session(&gorm.Session{NewDB: true, Context: ctx}), logger: r.logger}
}

func (r *jobRepository) Migrate(ctx context.Context) error {
	if err := r.db.WithContext(ctx).AutoMigrate(&entity.Job{}); err != nil {
		return common.Mark(err, common.ErrDatabase)
	}
	return nil
}

func parseJobID(id string) (uuid.UUID, error) {
	uid, err := uuid.Parse(strings.TrimSpace(id))
	if err != nil {
		return uuid.Nil, fmt.Errorf("job id %q: %w", id, common.ErrInvalidInput)
	}
	return uid, nil
}

func (r *jobRepository) FindByID(ctx context.Context, id string) (*entity.Job, error) {
	uid, err := parseJobID(id)
	if err != nil {
		return nil, err
	}
	var job entity.Job
	if err := r.db.WithContext(ctx).First(&job, "id = ?", uid).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("job %s: %w", id, common.ErrNotFound)
		}
		r.logger.Error("failed to load job", "job_id", id, "error", err)
		return nil, common.Mark(err, common.ErrDatabase)
	}
	return &job, nil
}

func (r *jobRepository) UpdateFields(ctx context.Context, id string, updates map[string]any) error {
	uid, err := parseJobID(id)
	if err != nil {
		return err
	}
	clean := make(map[string]any, len(updates))
	for k, v := range updates {
		if v != nil {
			clean[k] = v
		}
	}
	if len(clean) == 0 {
		return nil
	}

	res := r.db.WithContext(ctx).Model(&entity.Job{}).Where("id = ?", uid).Updates(clean)
	if res.Error != nil {
		r.logger.Error("failed to update job", "job_id", id, "columns", len(clean), "error", res.Error)
		return common.Mark(res.Error, common.ErrDatabase)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("job %s: %w", id, common.ErrNotFound)
	}
	r.logger.Debug("job updated", "job_id", id, "columns", len(clean))
	return nil
}

func (r *jobRepository) SaveCapture(ctx context.Context, capture entity.Capture) (*entity.Job, error) {
	url := strings.TrimSpace(capture.JobURL)
	if url == "" {
		return nil, fmt.Errorf("job url: %w", common.ErrInvalidInput)
	}

	var job entity.Job
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where(entity.Job{JobURL: url}).FirstOrCreate(&job).Error; err != nil {
			return err
		}
		updates := entity.UpdatesFromDocument(capture.ClientExtracted)
		delete(updates, constants.FieldJobURL)
		if capture.RawText != "" {
			updates["scraped_text"] = capture.RawText
		}
		if len(updates) == 0 {
			return nil
		}
		if err := tx.Model(&job).Updates(updates).Error; err != nil {
			return err
		}
		return tx.First(&job, "id = ?", job.ID).Error
	})
	if err != nil {
		r.logger.Error("failed to save capture", "job_url", url, "error", err)
		return nil, common.Mark(err, common.ErrDatabase)
	}
	r.logger.Info("capture saved", "job_id", job.ID, "job_url", url)
	return &job, nil
}
