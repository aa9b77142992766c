package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/job-intake/constants"
	"github.com/joseph-ayodele/job-intake/internal/common"
	"github.com/joseph-ayodele/job-intake/internal/entity"
	"github.com/joseph-ayodele/job-intake/internal/segment"
)

// MinCharCount is the cleaned length below which a run ends after preprocessing.
const MinCharCount = 100

// Next is the transition table.
func Next(stage constants.Stage, s *State) constants.Stage {
	switch stage {
	case constants.StageIngest:
		if len(s.Errors) > 0 {
			return constants.StageEnd
		}
		return constants.StagePreprocess
	case constants.StagePreprocess:
		if s.DocStats.CharCount < MinCharCount {
			return constants.StageEnd
		}
		return constants.StageExtract
	case constants.StageExtract:
		if s.Merged.Title() != "" || len(s.Merged.RequiredSkills()) > 0 {
			return constants.StageSummarize
		}
		return constants.StagePersist
	case constants.StageSummarize:
		return constants.StagePersist
	case constants.StagePersist:
		return constants.StageDone
	}
	return constants.StageEnd
}

// errStageFailed marks an ingest whose recorded errors stop the run.
var errStageFailed = errors.New("stage failed")

func ingest(in State) (IngestOutput, error) {
	out := IngestOutput{RunID: uuid.NewString(), ClientExtracted: in.ClientExtracted}
	if out.ClientExtracted == nil {
		out.ClientExtracted = entity.Document{}
	}
	if strings.TrimSpace(in.JobURL) == "" {
		out.Errors = append(out.Errors, "job_url is required")
	}
	if in.RawText == "" && len(out.ClientExtracted) == 0 {
		out.Errors = append(out.Errors, "Either raw_text or client_extracted is required")
	}
	if len(out.Errors) > 0 {
		return out, fmt.Errorf("%w: %s", errStageFailed, strings.Join(out.Errors, "; "))
	}
	return out, nil
}

func preprocess(in State) (PreprocessOutput, error) {
	segs, stats, err := segment.Segment(in.RawText)
	out := PreprocessOutput{Segments: segs, Stats: stats}
	// empty text is recorded, and Next ends the run on the zero char count
	if err != nil {
		out.Errors = append(out.Errors, err.Error())
	}
	return out, nil
}

func (o *Orchestrator) extractFields(ctx context.Context, in State) ExtractOutput {
	return ExtractOutput{Output: o.extractor.Extract(ctx, in.Segments, in.ClientExtracted)}
}

func (o *Orchestrator) summarizePosting(ctx context.Context, in State) SummaryOutput {
	res := o.summarizer.Summarize(ctx, in.Segments, in.Merged)
	return SummaryOutput{Summary: res.Summary, SuccessCriteria: res.SuccessCriteria, Errors: res.Errors}
}

// SearchDocumentID is the index handle for a job.
func SearchDocumentID(jobID string) string { return "job_" + jobID }

// SearchDocument renders the indexed text and metadata for a job.
func SearchDocument(jobID string, doc entity.Document, summary string) (string, map[string]string) {
	var b strings.Builder
	fmt.Fprintf(&b, "Job Title: %s\n", doc.String(constants.FieldJobTitle))
	fmt.Fprintf(&b, "Company: %s\n", doc.String(constants.FieldCompanyName))
	fmt.Fprintf(&b, "Location: %s\n", doc.String(constants.FieldLocation))
	fmt.Fprintf(&b, "Skills: %s\n", strings.Join(doc.RequiredSkills(), ", "))
	fmt.Fprintf(&b, "\nSummary:\n%s\n", summary)
	return b.String(), map[string]string{
		"job_id":       jobID,
		"job_title":    doc.String(constants.FieldJobTitle),
		"company_name": doc.String(constants.FieldCompanyName),
		"seniority":    doc.String(constants.FieldSeniority),
	}
}

func (o *Orchestrator) persist(ctx context.Context, in State) PersistOutput {
	var out PersistOutput
	if in.JobID == "" {
		return out
	}
	indexable := true
	log := common.LoggerFrom(ctx, o.logger)

	if o.jobs != nil {
		if _, err := o.jobs.FindByID(ctx, in.JobID); err != nil {
			// without a job record there is nothing to link an index entry to
			indexable = false
			if errors.Is(err, common.ErrNotFound) {
				out.Errors = append(out.Errors, fmt.Sprintf("Job %s not found", in.JobID))
			} else {
				out.Errors = append(out.Errors, fmt.Sprintf("Database update failed: %v", err))
			}
		} else {
			updates := entity.UpdatesFromDocument(in.Merged)
			delete(updates, constants.FieldJobURL)
			if in.Summary != "" {
				updates["summary"] = in.Summary
				updates["summary_generated_at"] = o.now().UTC()
			}
			if err := o.jobs.UpdateFields(ctx, in.JobID, updates); err != nil {
				out.Errors = append(out.Errors, fmt.Sprintf("Database update failed: %v", err))
			} else {
				out.Persisted = true
				log.Info("pipeline.persist.job_updated", "columns", len(updates))
			}
		}
	}

	if o.index != nil && indexable {
		body, meta := SearchDocument(in.JobID, in.Merged, in.Summary)
		handle, err := o.index.Upsert(ctx, SearchDocumentID(in.JobID), body, meta)
		if err != nil {
			out.Errors = append(out.Errors, fmt.Sprintf("Search indexing failed: %v", err))
			return out
		}
		out.SearchIndexID = handle
		if o.jobs != nil {
			if err := o.jobs.UpdateFields(ctx, in.JobID, map[string]any{"search_index_id": handle}); err != nil {
				out.Errors = append(out.Errors, fmt.Sprintf("Search index link failed: %v", err))
			}
		}
	}
	return out
}

func elapsedMS(start time.Time) int64 { return time.Since(start).Milliseconds() }
