package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"time"

	"github.com/joseph-ayodele/job-intake/constants"
	"github.com/joseph-ayodele/job-intake/internal/checkpoint"
	"github.com/joseph-ayodele/job-intake/internal/common"
	"github.com/joseph-ayodele/job-intake/internal/entity"
	"github.com/joseph-ayodele/job-intake/internal/extract"
	"github.com/joseph-ayodele/job-intake/internal/segment"
	"github.com/joseph-ayodele/job-intake/internal/summarize"
	"github.com/joseph-ayodele/job-intake/internal/utils"
)

// FieldExtractor is satisfied by *extract.Extractor.
type FieldExtractor interface {
	Extract(ctx context.Context, segs segment.Segments, client entity.Document) extract.Output
}

// Summarizer is satisfied by *summarize.Generator.
type Summarizer interface {
	Summarize(ctx context.Context, segs segment.Segments, merged entity.Document) summarize.Output
}

// JobStore is the part of the job repository persistence needs.
type JobStore interface {
	FindByID(ctx context.Context, id string) (*entity.Job, error)
	UpdateFields(ctx context.Context, id string, updates map[string]any) error
}

// SearchIndexer stores the searchable rendering of a job.
type SearchIndexer interface {
	Upsert(ctx context.Context, docID, body string, metadata map[string]string) (string, error)
}

// Deps wires an Orchestrator. Jobs, Index and Checkpoints are optional.
type Deps struct {
	Logger      *slog.Logger
	Extractor   FieldExtractor
	Summarizer  Summarizer
	Jobs        JobStore
	Index       SearchIndexer
	Checkpoints checkpoint.Store
	Now         func() time.Time
}

type Orchestrator struct {
	logger      *slog.Logger
	extractor   FieldExtractor
	summarizer  Summarizer
	jobs        JobStore
	index       SearchIndexer
	checkpoints checkpoint.Store
	now         func() time.Time
}

func NewOrchestrator(d Deps) *Orchestrator {
	if d.Logger == nil {
		d.Logger = slog.Default()
	}
	if d.Checkpoints == nil {
		d.Checkpoints = checkpoint.NopStore{}
	}
	if d.Now == nil {
		d.Now = time.Now
	}
	return &Orchestrator{
		logger:      d.Logger,
		extractor:   d.Extractor,
		summarizer:  d.Summarizer,
		jobs:        d.Jobs,
		index:       d.Index,
		checkpoints: d.Checkpoints,
		now:         d.Now,
	}
}

// WithJobs returns a copy of o that persists through jobs.
func (o *Orchestrator) WithJobs(jobs JobStore) *Orchestrator {
	cp := *o
	cp.jobs = jobs
	return &cp
}

// Run drives one capture through the stages and returns the final state.
// Stage failures are recorded in State.Errors; Run itself never fails.
// emit may be nil.
func (o *Orchestrator) Run(ctx context.Context, in Input, emit Emitter) *State {
	if emit == nil {
		emit = func(Event) {}
	}
	st := &State{
		JobID:           in.JobID,
		JobURL:          in.JobURL,
		RawText:         in.RawText,
		ClientExtracted: in.ClientExtracted,
		Errors:          []string{},
		StartedAt:       o.now().UTC(),
	}
	if in.JobID != "" {
		ctx = common.WithJobID(ctx, in.JobID)
	}

	seq := 0
	stage := constants.StageIngest
	for stage != constants.StageEnd && stage != constants.StageDone {
		if err := ctx.Err(); err != nil {
			st.Errors = append(st.Errors, fmt.Sprintf("Run cancelled: %v", err))
			st.CurrentStage = constants.StageEnd
			emit(Event{Status: constants.EventFailed, Error: err.Error(), Message: "Extraction cancelled", Errors: st.Errors, RunID: st.RunID})
			return st
		}

		st.CurrentStage = stage
		progress := constants.Progress[stage]
		emit(Event{Node: stage, Status: constants.EventStarted, Progress: progress - startedOffset, Message: fmt.Sprintf("Running %s...", stage)})

		log := common.LoggerFrom(ctx, o.logger)
		start := time.Now()
		log.Debug("pipeline.stage.start", "stage", stage)

		out, err := o.runStage(ctx, stage, st.view())
		var writes []string
		if out != nil {
			out.apply(st)
			writes = out.writes()
			if len(out.errs()) > 0 {
				writes = append(writes, "errors")
			}
		} else if err != nil {
			st.Errors = append(st.Errors, fmt.Sprintf("Error in %s: %v", stage, err))
			writes = []string{"errors"}
		}
		if stage == constants.StageIngest && st.RunID != "" {
			ctx = common.WithRunID(ctx, st.RunID)
			log = common.LoggerFrom(ctx, o.logger)
		}

		seq++
		o.appendCheckpoint(ctx, st, stage, seq, writes)

		if err != nil {
			log.Warn("pipeline.stage.failed", "stage", stage, "error", err, "elapsed_ms", elapsedMS(start))
			emit(Event{
				Node:     stage,
				Status:   constants.EventError,
				Progress: progress,
				Error:    err.Error(),
				Message:  fmt.Sprintf("Error in %s: %s", stage, utils.FirstN(err.Error(), errorMessageLen)),
			})
			if stage == constants.StageIngest || stage == constants.StagePreprocess {
				st.CurrentStage = constants.StageEnd
				emit(Event{
					Status:  constants.EventFailed,
					Error:   err.Error(),
					Message: "Extraction failed - please retry",
					Errors:  st.Errors,
					RunID:   st.RunID,
				})
				return st
			}
		} else {
			log.Info("pipeline.stage.ok", "stage", stage, "errors", len(st.Errors), "elapsed_ms", elapsedMS(start))
			emit(completeEvent(stage, progress, st))
		}

		stage = Next(stage, st)
	}

	st.CurrentStage = stage
	emit(Event{
		Status:   constants.EventDone,
		Progress: 100,
		Message:  "Extraction complete",
		Fields:   st.Fields(),
		Summary:  st.Summary,
		Errors:   st.Errors,
		RunID:    st.RunID,
	})
	common.LoggerFrom(ctx, o.logger).Info("pipeline.run.done",
		"final_stage", stage,
		"persisted", st.Persisted,
		"errors", len(st.Errors),
		"elapsed_ms", elapsedMS(st.StartedAt),
	)
	return st
}

// runStage executes one stage on a read-only view of the state. A panic is
// returned as an error with a nil output.
func (o *Orchestrator) runStage(ctx context.Context, stage constants.Stage, view State) (out stageOutput, err error) {
	defer func() {
		if r := recover(); r != nil {
			common.LoggerFrom(ctx, o.logger).Error("pipeline.stage.panic", "stage", stage, "panic", r, "stack", string(debug.Stack()))
			out, err = nil, fmt.Errorf("panic: %v", r)
		}
	}()

	switch stage {
	case constants.StageIngest:
		return ingest(view)
	case constants.StagePreprocess:
		return preprocess(view)
	case constants.StageExtract:
		return o.extractFields(ctx, view), nil
	case constants.StageSummarize:
		return o.summarizePosting(ctx, view), nil
	case constants.StagePersist:
		return o.persist(ctx, view), nil
	}
	return nil, fmt.Errorf("unknown stage %q", stage)
}

func completeEvent(stage constants.Stage, progress int, st *State) Event {
	ev := Event{Node: stage, Status: constants.EventComplete, Progress: progress}
	switch stage {
	case constants.StageIngest:
		ev.Message = "Capture accepted"
		ev.RunID = st.RunID
	case constants.StagePreprocess:
		ev.Segments = st.Segments
		ev.Message = fmt.Sprintf("Found %d words", st.DocStats.WordCount)
	case constants.StageExtract:
		ev.Fields = st.Merged
		ev.Confidence = st.Confidence()
		ev.ComprehensiveAnalysis = st.Comprehensive
		ev.Message = fmt.Sprintf("Extracted %d fields", len(st.Merged))
	case constants.StageSummarize:
		ev.Summary = st.Summary
		ev.Message = "Summary generated"
	case constants.StagePersist:
		if st.Persisted {
			ev.Message = "Job saved"
		} else {
			ev.Message = "Nothing persisted"
		}
	}
	return ev
}

func (o *Orchestrator) appendCheckpoint(ctx context.Context, st *State, stage constants.Stage, seq int, writes []string) {
	snap := checkpoint.Snapshot{
		RunID:           st.RunID,
		JobID:           st.JobID,
		JobURL:          st.JobURL,
		RawText:         st.RawText,
		ClientExtracted: st.ClientExtracted,
		Segments:        st.Segments,
		Strategy:        st.Strategy,
		Merged:          st.Merged,
		Evidence:        st.Evidence,
		Summary:         st.Summary,
		SuccessCriteria: st.SuccessCriteria,
		Errors:          st.Errors,
		Persisted:       st.Persisted,
		SearchIndexID:   st.SearchIndexID,
		CurrentStage:    stage,
		Writes:          writes,
	}
	if st.Segments != nil {
		stats := st.DocStats
		snap.DocStats = &stats
	}
	log := common.LoggerFrom(ctx, o.logger)
	raw, err := snap.Encode()
	if err != nil {
		log.Error("checkpoint.encode_failed", "stage", stage, "error", err)
		return
	}
	cp := entity.Checkpoint{
		RunID:     st.RunID,
		JobID:     st.JobID,
		Sequence:  seq,
		Stage:     stage,
		Snapshot:  raw,
		WrittenAt: o.now().UTC(),
	}
	if seq > 1 {
		parent := seq - 1
		cp.ParentSequence = &parent
	}
	if err := o.checkpoints.Append(ctx, cp); err != nil {
		log.Error("checkpoint.append_failed", "stage", stage, "sequence", seq, "error", err)
	}
}
