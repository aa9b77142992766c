package checkpoint

import (
	"context"
	stdsql "database/sql"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"entgo.io/ent/dialect"
	entsql "entgo.io/ent/dialect/sql"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"

	"github.com/joseph-ayodele/job-intake/constants"
	"github.com/joseph-ayodele/job-intake/internal/common"
	"github.com/joseph-ayodele/job-intake/internal/entity"
)

// Table holds every checkpoint row, keyed by (run_id, sequence).
const Table = "intake_checkpoints"

// SQLitePrefix selects the embedded SQLite store, e.g. "sqlite:file:cp.db" or "sqlite::memory:".
const SQLitePrefix = "sqlite:"

// SQLStore is a Store over an ent SQL driver (Postgres or SQLite).
type SQLStore struct {
	drv    *entsql.Driver
	logger *slog.Logger
}

var _ Store = (*SQLStore)(nil)

// Open connects to dsn and returns a store with its table in place. An empty
// dsn yields a NopStore.
func Open(ctx context.Context, dsn string, logger *slog.Logger) (Store, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if dsn == "" {
		logger.Info("checkpoint store disabled")
		return NopStore{}, nil
	}

	var drv *entsql.Driver
	if path, ok := strings.CutPrefix(dsn, SQLitePrefix); ok {
		db, err := stdsql.Open("sqlite", path)
		if err != nil {
			return nil, common.Mark(err, common.ErrDatabase)
		}
		// a single connection keeps ":memory:" databases alive and serialises writers
		db.SetMaxOpenConns(1)
		drv = entsql.OpenDB(dialect.SQLite, db)
	} else {
		pool, err := pgxpool.New(ctx, dsn)
		if err != nil {
			return nil, common.Mark(err, common.ErrDatabase)
		}
		drv = entsql.OpenDB(dialect.Postgres, stdlib.OpenDBFromPool(pool))
	}
	s, err := NewSQLStore(ctx, drv, logger)
	if err != nil {
		_ = drv.Close()
		return nil, err
	}
	return s, nil
}

// NewSQLStore creates the checkpoint table if needed.
func NewSQLStore(ctx context.Context, drv *entsql.Driver, logger *slog.Logger) (*SQLStore, error) {
	if logger == nil {
		logger = slog.Default()
	}
	s := &SQLStore{drv: drv, logger: logger}
	if err := s.migrate(ctx); err != nil {
		return nil, err
	}
	logger.Info("checkpoint store ready", "dialect", drv.Dialect())
	return s, nil
}

func (s *SQLStore) builder() *entsql.DialectBuilder { return entsql.Dialect(s.drv.Dialect()) }

func (s *SQLStore) migrate(ctx context.Context) error {
	jsonType, timeType := "TEXT", "DATETIME"
	if s.drv.Dialect() == dialect.Postgres {
		jsonType, timeType = "JSONB", "TIMESTAMPTZ"
	}
	q, args := s.builder().CreateTable(Table).
		IfNotExists().
		Columns(
			entsql.Column("run_id").Type("VARCHAR(64)").Attr("NOT NULL"),
			entsql.Column("sequence").Type("INTEGER").Attr("NOT NULL"),
			entsql.Column("job_id").Type("VARCHAR(64)").Attr("NOT NULL DEFAULT ''"),
			entsql.Column("parent_sequence").Type("INTEGER").Attr("NULL"),
			entsql.Column("stage").Type("VARCHAR(32)").Attr("NOT NULL"),
			entsql.Column("snapshot").Type(jsonType).Attr("NOT NULL"),
			entsql.Column("written_at").Type(timeType).Attr("NOT NULL"),
		).
		PrimaryKey("run_id", "sequence").
		Query()
	if err := s.drv.Exec(ctx, q, args, nil); err != nil {
		return common.NewAppError("CHECKPOINT_MIGRATE", "create "+Table, common.Mark(err, common.ErrDatabase))
	}
	return nil
}

func (s *SQLStore) Append(ctx context.Context, cp entity.Checkpoint) error {
	var parent any
	if cp.ParentSequence != nil {
		parent = *cp.ParentSequence
	}
	snapshot := string(cp.Snapshot)
	if snapshot == "" {
		snapshot = "{}"
	}
	q, args := s.builder().Insert(Table).
		Columns("run_id", "sequence", "job_id", "parent_sequence", "stage", "snapshot", "written_at").
		Values(cp.RunID, cp.Sequence, cp.JobID, parent, string(cp.Stage), snapshot, cp.WrittenAt.UTC()).
		Query()
	if err := s.drv.Exec(ctx, q, args, nil); err != nil {
		return fmt.Errorf("append checkpoint %s/%d: %w", cp.RunID, cp.Sequence, common.Mark(err, common.ErrDatabase))
	}
	return nil
}

func (s *SQLStore) History(ctx context.Context, runID string) ([]entity.Checkpoint, error) {
	q, args := s.builder().
		Select("run_id", "sequence", "job_id", "parent_sequence", "stage", "snapshot", "written_at").
		From(entsql.Table(Table)).
		Where(entsql.EQ("run_id", runID)).
		OrderBy("sequence").
		Query()

	var rows entsql.Rows
	if err := s.drv.Query(ctx, q, args, &rows); err != nil {
		return nil, fmt.Errorf("checkpoint history %s: %w", runID, common.Mark(err, common.ErrDatabase))
	}
	defer rows.Close()

	var out []entity.Checkpoint
	for rows.Next() {
		var (
			cp       entity.Checkpoint
			parent   stdsql.NullInt64
			stage    string
			snapshot []byte
		)
		if err := rows.Scan(&cp.RunID, &cp.Sequence, &cp.JobID, &parent, &stage, &snapshot, &cp.WrittenAt); err != nil {
			return nil, fmt.Errorf("scan checkpoint: %w", common.Mark(err, common.ErrDatabase))
		}
		if parent.Valid {
			p := int(parent.Int64)
			cp.ParentSequence = &p
		}
		cp.Stage = constants.Stage(stage)
		cp.Snapshot = append([]byte(nil), snapshot...)
		cp.WrittenAt = cp.WrittenAt.UTC()
		out = append(out, cp)
	}
	return out, rows.Err()
}

func (s *SQLStore) Runs(ctx context.Context, jobID string) ([]string, error) {
	q, args := s.builder().
		Select("run_id", entsql.As(entsql.Max("written_at"), "last_written")).
		From(entsql.Table(Table)).
		Where(entsql.EQ("job_id", jobID)).
		GroupBy("run_id").
		OrderBy(entsql.Desc("last_written")).
		Query()

	var rows entsql.Rows
	if err := s.drv.Query(ctx, q, args, &rows); err != nil {
		return nil, fmt.Errorf("checkpoint runs %s: %w", jobID, common.Mark(err, common.ErrDatabase))
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var (
			runID string
			last  any
		)
		if err := rows.Scan(&runID, &last); err != nil {
			return nil, fmt.Errorf("scan run: %w", common.Mark(err, common.ErrDatabase))
		}
		out = append(out, runID)
	}
	return out, rows.Err()
}

func (s *SQLStore) Prune(ctx context.Context, olderThan time.Time) (int64, error) {
	q, args := s.builder().Delete(Table).
		Where(entsql.LT("written_at", olderThan.UTC())).
		Query()
	var res stdsql.Result
	if err := s.drv.Exec(ctx, q, args, &res); err != nil {
		return 0, fmt.Errorf("prune checkpoints: %w", common.Mark(err, common.ErrDatabase))
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	if n > 0 {
		s.logger.Info("checkpoint.pruned", "rows", n, "older_than", olderThan.UTC())
	}
	return n, nil
}

// Close releases the underlying connection pool.
func (s *SQLStore) Close() error { return s.drv.Close() }
