package export

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/joseph-ayodele/job-intake/internal/checkpoint"
	"github.com/joseph-ayodele/job-intake/internal/common"
	"github.com/joseph-ayodele/job-intake/internal/utils"
)

const historySheet = "History"

// Run is one pipeline run of a job with its condensed checkpoints.
type Run struct {
	RunID       string               `json:"run_id"`
	Checkpoints []checkpoint.Preview `json:"checkpoints"`
}

// Service is a tiny façade over the checkpoint store that serves job history.
type Service struct {
	store  checkpoint.Store
	logger *slog.Logger
}

func NewService(store checkpoint.Store, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{store: store, logger: logger}
}

// History returns the runs of a job, newest first.
func (s *Service) History(ctx context.Context, jobID string) ([]Run, error) {
	ids, err := s.store.Runs(ctx, jobID)
	if err != nil {
		return nil, common.WrapError(err, "list runs")
	}
	runs := make([]Run, 0, len(ids))
	for _, id := range ids {
		cps, err := s.store.History(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("run %s history: %w", id, err)
		}
		runs = append(runs, Run{RunID: id, Checkpoints: checkpoint.Previews(cps)})
	}
	return runs, nil
}

// HistoryXLSX returns the job history as an XLSX workbook, one row per checkpoint.
func (s *Service) HistoryXLSX(ctx context.Context, jobID string) ([]byte, error) {
	start := time.Now()
	runs, err := s.History(ctx, jobID)
	if err != nil {
		return nil, err
	}

	f := excelize.NewFile()
	defer func() { _ = f.Close() }()
	if err := f.SetSheetName("Sheet1", historySheet); err != nil {
		return nil, err
	}

	headers := []string{
		"Run ID",
		"Sequence",
		"Parent",
		"Stage",
		"Written At",
		"Writes",
		"Fields",
		"Persisted",
		"Errors",
		"Summary",
	}
	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		_ = f.SetCellValue(historySheet, cell, h)
	}

	row := 2
	for _, run := range runs {
		for _, cp := range run.Checkpoints {
			write := func(col int, v any) {
				cell, _ := excelize.CoordinatesToCellName(col, row)
				_ = f.SetCellValue(historySheet, cell, v)
			}
			write(1, run.RunID)
			write(2, cp.Sequence)
			if cp.ParentSequence != nil {
				write(3, *cp.ParentSequence)
			}
			write(4, string(cp.Stage))
			write(5, cp.WrittenAt.UTC().Format(time.RFC3339))
			write(6, strings.Join(cp.Writes, ", "))
			write(7, strings.Join(fieldNames(cp), ", "))
			write(8, cp.Persisted)
			write(9, strings.Join(cp.Errors, "; "))
			write(10, utils.FirstN(cp.SummaryPreview, 140))
			row++
		}
	}

	_ = f.SetColWidth(historySheet, "A", "A", 38) // run id
	_ = f.SetColWidth(historySheet, "B", "C", 10)
	_ = f.SetColWidth(historySheet, "D", "E", 22)
	_ = f.SetColWidth(historySheet, "F", "G", 40)
	_ = f.SetColWidth(historySheet, "I", "J", 60)

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, common.WrapError(err, "xlsx write")
	}
	s.logger.Info("export.history_xlsx.ok", "job_id", jobID, "runs", len(runs), "rows", row-2, "elapsed_ms", time.Since(start).Milliseconds())
	return buf.Bytes(), nil
}

func fieldNames(cp checkpoint.Preview) []string {
	names := make([]string, 0, len(cp.Merged))
	for k, v := range cp.Merged {
		if v != nil {
			names = append(names, k)
		}
	}
	sort.Strings(names)
	return names
}
