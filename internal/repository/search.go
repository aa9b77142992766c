package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/joseph-ayodele/job-intake/internal/common"
)

const searchTable = "job_search_index"

// SearchHit is one full-text match.
type SearchHit struct {
	DocID    string            `json:"doc_id"`
	Metadata map[string]string `json:"metadata"`
	Rank     float32           `json:"rank"`
	Snippet  string            `json:"snippet"`
}

type SearchIndex interface {
	// Upsert stores body under docID and returns the handle to keep on the job record.
	Upsert(ctx context.Context, docID, body string, metadata map[string]string) (string, error)
	Search(ctx context.Context, query string, limit int) ([]SearchHit, error)
	Migrate(ctx context.Context) error
}

type searchIndex struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

// NewSearchIndex returns a Postgres full-text index over pool.
func NewSearchIndex(pool *pgxpool.Pool, logger *slog.Logger) SearchIndex {
	if logger == nil {
		logger = slog.Default()
	}
	return &searchIndex{pool: pool, logger: logger}
}

func (s *searchIndex) Migrate(ctx context.Context) error {
	const ddl = `
CREATE TABLE IF NOT EXISTS ` + searchTable + ` (
	doc_id     TEXT PRIMARY KEY,
	body       TEXT NOT NULL,
	metadata   JSONB NOT NULL DEFAULT '{}'::jsonb,
	tsv        TSVECTOR GENERATED ALWAYS AS (to_tsvector('english', body)) STORED,
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS ` + searchTable + `_tsv ON ` + searchTable + ` USING GIN (tsv);`
	if _, err := s.pool.Exec(ctx, ddl); err != nil {
		return common.Mark(fmt.Errorf("migrate %s: %w", searchTable, err), common.ErrDatabase)
	}
	return nil
}

func (s *searchIndex) Upsert(ctx context.Context, docID, body string, metadata map[string]string) (string, error) {
	if strings.TrimSpace(docID) == "" {
		return "", fmt.Errorf("search doc id: %w", common.ErrInvalidInput)
	}
	meta, err := json.Marshal(metadata)
	if err != nil {
		return "", err
	}
	const q = `
INSERT INTO ` + searchTable + ` (doc_id, body, metadata, updated_at)
VALUES ($1, $2, $3, now())
ON CONFLICT (doc_id) DO UPDATE SET body = EXCLUDED.body, metadata = EXCLUDED.metadata, updated_at = now()`
	if _, err := s.pool.Exec(ctx, q, docID, body, meta); err != nil {
		s.logger.Error("search upsert failed", "doc_id", docID, "error", err)
		return "", common.Mark(err, common.ErrDatabase)
	}
	s.logger.Debug("search document upserted", "doc_id", docID, "body_chars", len(body))
	return docID, nil
}

func (s *searchIndex) Search(ctx context.Context, query string, limit int) ([]SearchHit, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, fmt.Errorf("search query: %w", common.ErrInvalidInput)
	}
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	const q = `
SELECT doc_id, metadata, ts_rank(tsv, q) AS rank,
       ts_headline('english', body, q, 'MaxFragments=1,MaxWords=30,MinWords=10') AS snippet
FROM ` + searchTable + `, websearch_to_tsquery('english', $1) AS q
WHERE tsv @@ q
ORDER BY rank DESC, updated_at DESC
LIMIT $2`
	rows, err := s.pool.Query(ctx, q, query, limit)
	if err != nil {
		return nil, common.Mark(err, common.ErrDatabase)
	}
	hits, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (SearchHit, error) {
		var (
			h    SearchHit
			meta []byte
		)
		if err := row.Scan(&h.DocID, &meta, &h.Rank, &h.Snippet); err != nil {
			return h, err
		}
		if len(meta) > 0 {
			if err := json.Unmarshal(meta, &h.Metadata); err != nil {
				return h, err
			}
		}
		return h, nil
	})
	if err != nil {
		return nil, common.Mark(err, common.ErrDatabase)
	}
	return hits, nil
}
