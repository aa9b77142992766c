package export

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/joseph-ayodele/job-intake/constants"
	"github.com/joseph-ayodele/job-intake/internal/checkpoint"
	"github.com/joseph-ayodele/job-intake/internal/entity"
)

type memStore struct {
	checkpoint.NopStore
	runs    []string
	history map[string][]entity.Checkpoint
	err     error
}

func (m *memStore) Runs(context.Context, string) ([]string, error) { return m.runs, m.err }

func (m *memStore) History(_ context.Context, runID string) ([]entity.Checkpoint, error) {
	return m.history[runID], nil
}

func cp(t *testing.T, runID string, seq int, stage constants.Stage, snap checkpoint.Snapshot) entity.Checkpoint {
	t.Helper()
	b, err := snap.Encode()
	require.NoError(t, err)
	c := entity.Checkpoint{RunID: runID, JobID: "job-1", Sequence: seq, Stage: stage, Snapshot: b,
		WrittenAt: time.Date(2026, 3, 1, 12, 0, seq, 0, time.UTC)}
	if seq > 1 {
		p := seq - 1
		c.ParentSequence = &p
	}
	return c
}

func newStore(t *testing.T) *memStore {
	return &memStore{
		runs: []string{"run-new", "run-old"},
		history: map[string][]entity.Checkpoint{
			"run-new": {
				cp(t, "run-new", 1, constants.StageIngest, checkpoint.Snapshot{Writes: []string{"run_id", "job_url"}}),
				cp(t, "run-new", 2, constants.StageExtract, checkpoint.Snapshot{
					Merged: entity.Document{"job_title": "Backend Engineer", "company_name": "Acme", "salary_min": nil},
					Writes: []string{"merged", "evidence"},
				}),
			},
			"run-old": {
				cp(t, "run-old", 1, constants.StageIngest, checkpoint.Snapshot{Errors: []string{"job_url is required"}}),
			},
		},
	}
}

func TestService_History(t *testing.T) {
	svc := NewService(newStore(t), nil)

	runs, err := svc.History(context.Background(), "job-1")
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, "run-new", runs[0].RunID)
	require.Len(t, runs[0].Checkpoints, 2)
	assert.Equal(t, constants.StageExtract, runs[0].Checkpoints[1].Stage)
	assert.Equal(t, []string{"job_url is required"}, runs[1].Checkpoints[0].Errors)
}

func TestService_HistoryError(t *testing.T) {
	svc := NewService(&memStore{err: errors.New("db down")}, nil)
	_, err := svc.History(context.Background(), "job-1")
	assert.ErrorContains(t, err, "db down")

	_, err = svc.HistoryXLSX(context.Background(), "job-1")
	assert.Error(t, err)
}

func TestService_HistoryXLSX(t *testing.T) {
	svc := NewService(newStore(t), nil)

	b, err := svc.HistoryXLSX(context.Background(), "job-1")
	require.NoError(t, err)

	f, err := excelize.OpenReader(bytes.NewReader(b))
	require.NoError(t, err)
	defer func() { _ = f.Close() }()

	rows, err := f.GetRows(historySheet)
	require.NoError(t, err)
	require.Len(t, rows, 4)
	assert.Equal(t, "Run ID", rows[0][0])
	assert.Equal(t, []string{"run-new", "1", "", "ingest"}, rows[1][:4])
	assert.Equal(t, "2", rows[2][1])
	assert.Equal(t, "1", rows[2][2])
	assert.Equal(t, "merged, evidence", rows[2][5])
	assert.Equal(t, "company_name, job_title", rows[2][6])
	assert.Equal(t, "run-old", rows[3][0])
	assert.Equal(t, "job_url is required", rows[3][8])
}

func TestService_HistoryXLSXEmpty(t *testing.T) {
	svc := NewService(checkpoint.NopStore{}, nil)
	b, err := svc.HistoryXLSX(context.Background(), "job-1")
	require.NoError(t, err)

	f, err := excelize.OpenReader(bytes.NewReader(b))
	require.NoError(t, err)
	defer func() { _ = f.Close() }()
	rows, err := f.GetRows(historySheet)
	require.NoError(t, err)
	assert.Len(t, rows, 1)
}
