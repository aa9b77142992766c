package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/job-intake/constants"
	"github.com/joseph-ayodele/job-intake/internal/common"
	"github.com/joseph-ayodele/job-intake/internal/entity"
	"github.com/joseph-ayodele/job-intake/internal/extract"
	"github.com/joseph-ayodele/job-intake/internal/llm/llmtest"
	"github.com/joseph-ayodele/job-intake/internal/segment"
	"github.com/joseph-ayodele/job-intake/internal/summarize"
)

const posting = `About the role We are hiring a Backend Engineer to build the ingestion services behind our job tracker.
Requirements 5+ years Python, strong SQL, experience operating distributed systems in production.
Benefits Remote-first team, generous learning budget and four weeks of paid leave every year.`

const yearsReply = "```json\n" + `{"extractions": {"years_experience_min": {"value": 5, "evidence": "5+ years Python", "confidence": "high"}}, "fields_not_found": []}` + "\n```"

const summaryReply = "## Role Overview\nBuild ingestion.\n\n## What Success Looks Like\nStable pipelines.\n\n## Red Flags\n- none"

var fixedNow = time.Date(2024, 6, 1, 9, 30, 0, 0, time.UTC)

type recordingStore struct {
	mu   sync.Mutex
	cps  []entity.Checkpoint
	fail error
}

func (s *recordingStore) Append(_ context.Context, cp entity.Checkpoint) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail != nil {
		return s.fail
	}
	s.cps = append(s.cps, cp)
	return nil
}

func (s *recordingStore) History(context.Context, string) ([]entity.Checkpoint, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]entity.Checkpoint(nil), s.cps...), nil
}

func (s *recordingStore) Runs(context.Context, string) ([]string, error) { return nil, nil }

func (s *recordingStore) Prune(context.Context, time.Time) (int64, error) { return 0, nil }

func (s *recordingStore) stages() []constants.Stage {
	out := make([]constants.Stage, 0, len(s.cps))
	for _, cp := range s.cps {
		out = append(out, cp.Stage)
	}
	return out
}

type fakeJobs struct {
	missing bool
	updates []map[string]any
}

func (f *fakeJobs) FindByID(_ context.Context, id string) (*entity.Job, error) {
	if f.missing {
		return nil, fmt.Errorf("job %s: %w", id, common.ErrNotFound)
	}
	return &entity.Job{}, nil
}

func (f *fakeJobs) UpdateFields(_ context.Context, _ string, updates map[string]any) error {
	f.updates = append(f.updates, updates)
	return nil
}

type fakeIndex struct {
	docID string
	body  string
	meta  map[string]string
	err   error
}

func (f *fakeIndex) Upsert(_ context.Context, docID, body string, meta map[string]string) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	f.docID, f.body, f.meta = docID, body, meta
	return docID, nil
}

type panickingExtractor struct{}

func (panickingExtractor) Extract(context.Context, segment.Segments, entity.Document) extract.Output {
	panic("boom")
}

type harness struct {
	fake   *llmtest.Fake
	store  *recordingStore
	orch   *Orchestrator
	events []Event
}

func newHarness(t *testing.T, d Deps, replies ...string) *harness {
	t.Helper()
	h := &harness{fake: llmtest.NewFake(replies...), store: &recordingStore{}}
	if d.Extractor == nil {
		d.Extractor = extract.NewExtractor(h.fake, nil, nil)
	}
	if d.Summarizer == nil {
		d.Summarizer = summarize.NewGenerator(h.fake, nil)
	}
	d.Checkpoints = h.store
	d.Now = func() time.Time { return fixedNow }
	h.orch = NewOrchestrator(d)
	return h
}

func (h *harness) run(in Input) *State {
	return h.orch.Run(context.Background(), in, func(e Event) { h.events = append(h.events, e) })
}

func (h *harness) statuses() []string {
	out := make([]string, 0, len(h.events))
	for _, e := range h.events {
		out = append(out, fmt.Sprintf("%s:%s:%d", e.Node, e.Status, e.Progress))
	}
	return out
}

func TestNext(t *testing.T) {
	tests := []struct {
		name  string
		stage constants.Stage
		state State
		want  constants.Stage
	}{
		{"ingest errors end", constants.StageIngest, State{Errors: []string{"job_url is required"}}, constants.StageEnd},
		{"ingest ok", constants.StageIngest, State{}, constants.StagePreprocess},
		{"99 chars end", constants.StagePreprocess, State{DocStats: segment.Stats{CharCount: 99}}, constants.StageEnd},
		{"100 chars extract", constants.StagePreprocess, State{DocStats: segment.Stats{CharCount: 100}}, constants.StageExtract},
		{"title summarizes", constants.StageExtract, State{Merged: entity.Document{"job_title": "SRE"}}, constants.StageSummarize},
		{"skills summarize", constants.StageExtract, State{Merged: entity.Document{"required_skills": []any{"Go"}}}, constants.StageSummarize},
		{"blank title skips", constants.StageExtract, State{Merged: entity.Document{"job_title": "  ", "required_skills": []string{}}}, constants.StagePersist},
		{"summarize persists", constants.StageSummarize, State{}, constants.StagePersist},
		{"persist done", constants.StagePersist, State{}, constants.StageDone},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Next(tt.stage, &tt.state))
		})
	}
}

func TestRun_CharCountBoundary(t *testing.T) {
	short := newHarness(t, Deps{}, yearsReply)
	st := short.run(Input{JobURL: "https://jobs.example.com/1", RawText: strings.Repeat("a", 99)})
	assert.Equal(t, 0, short.fake.CallCount())
	assert.Equal(t, constants.StageEnd, st.CurrentStage)
	assert.Equal(t, []constants.Stage{constants.StageIngest, constants.StagePreprocess}, short.store.stages())
	assert.Equal(t, constants.EventDone, short.events[len(short.events)-1].Status)

	enough := newHarness(t, Deps{}, `{"extractions": {}}`)
	st = enough.run(Input{JobURL: "https://jobs.example.com/1", RawText: strings.Repeat("a", 100)})
	assert.Equal(t, 100, st.DocStats.CharCount)
	assert.Equal(t, 1, enough.fake.CallCount())
}

func TestRun_SkipsSummaryWithoutTitleOrSkills(t *testing.T) {
	h := newHarness(t, Deps{}, `{"extractions": {}, "fields_not_found": ["job_title"]}`, summaryReply)
	st := h.run(Input{JobURL: "https://jobs.example.com/1", RawText: posting})

	assert.Equal(t, 1, h.fake.CallCount())
	assert.Empty(t, st.Summary)
	assert.Empty(t, st.Errors)
	assert.Equal(t, constants.StageDone, st.CurrentStage)
}

func TestRun_CheckpointOrdering(t *testing.T) {
	h := newHarness(t, Deps{}, `{"extractions": {}}`)
	st := h.run(Input{JobURL: "https://jobs.example.com/1", RawText: posting})

	require.Equal(t, []constants.Stage{
		constants.StageIngest, constants.StagePreprocess, constants.StageExtract, constants.StagePersist,
	}, h.store.stages())
	for i, cp := range h.store.cps {
		assert.Equal(t, i+1, cp.Sequence)
		assert.Equal(t, st.RunID, cp.RunID)
		assert.Equal(t, fixedNow, cp.WrittenAt)
		if i == 0 {
			assert.Nil(t, cp.ParentSequence)
			continue
		}
		require.NotNil(t, cp.ParentSequence)
		assert.Equal(t, i, *cp.ParentSequence)
	}
}

func TestRun_BackendEngineerScenario(t *testing.T) {
	h := newHarness(t, Deps{}, yearsReply, summaryReply)
	st := h.run(Input{
		JobURL:          "https://jobs.example.com/backend",
		RawText:         posting,
		ClientExtracted: entity.Document{"job_title": "Backend Engineer"},
	})

	require.Empty(t, st.Errors)
	assert.Equal(t, "Backend Engineer", st.Merged["job_title"])
	assert.Equal(t, 5, st.Merged["years_experience_min"])
	require.Len(t, st.Evidence, 2)
	assert.Equal(t, constants.SourceLLM, st.Evidence[0].Source)
	assert.Equal(t, constants.SourceClient, st.Evidence[1].Source)
	assert.Equal(t, summaryReply, st.Summary)
	assert.Equal(t, "Stable pipelines.", st.SuccessCriteria)
	assert.Equal(t, extract.StrategyFlat, st.Strategy)
	assert.False(t, st.Persisted)
	assert.Equal(t, 2, h.fake.CallCount())

	assert.Equal(t, []string{
		"ingest:started:5", "ingest:complete:20",
		"preprocess:started:25", "preprocess:complete:40",
		"extract:started:55", "extract:complete:70",
		"summarize:started:75", "summarize:complete:90",
		"persist:started:85", "persist:complete:100",
		":done:100",
	}, h.statuses())

	extractEv := h.events[5]
	assert.Equal(t, "Extracted 2 fields", extractEv.Message)
	assert.Equal(t, entity.FieldConfidence{Confidence: constants.ConfidenceMedium, Source: constants.SourceClient}, extractEv.Confidence["job_title"])
	assert.Equal(t, entity.FieldConfidence{Confidence: constants.ConfidenceHigh, Source: constants.SourceLLM}, extractEv.Confidence["years_experience_min"])
	assert.True(t, strings.HasPrefix(h.events[3].Message, "Found "))

	done := h.events[len(h.events)-1]
	assert.Equal(t, "Extraction complete", done.Message)
	assert.Equal(t, summaryReply, done.Summary)
	assert.Equal(t, "Backend Engineer", done.Fields["job_title"])
}

func TestRun_IngestValidation(t *testing.T) {
	h := newHarness(t, Deps{}, yearsReply)
	st := h.run(Input{RawText: posting})

	assert.Equal(t, []string{"job_url is required"}, st.Errors)
	assert.Equal(t, constants.StageEnd, st.CurrentStage)
	assert.Equal(t, 0, h.fake.CallCount())
	assert.Equal(t, []constants.Stage{constants.StageIngest}, h.store.stages())
	assert.Equal(t, []string{"ingest:started:5", "ingest:error:20", ":failed:0"}, h.statuses())
	assert.Equal(t, "Extraction failed - please retry", h.events[2].Message)

	h = newHarness(t, Deps{}, yearsReply)
	st = h.run(Input{JobURL: "https://jobs.example.com/1"})
	assert.Equal(t, []string{"Either raw_text or client_extracted is required"}, st.Errors)
	assert.NotNil(t, st.ClientExtracted)
}

func TestRun_EmptyTextEndsQuietly(t *testing.T) {
	h := newHarness(t, Deps{}, yearsReply)
	st := h.run(Input{JobURL: "https://jobs.example.com/1", RawText: "   ", ClientExtracted: entity.Document{"job_title": "SRE"}})

	assert.Equal(t, []string{"No text content after cleaning"}, st.Errors)
	assert.Equal(t, 0, h.fake.CallCount())
	assert.Equal(t, constants.StageEnd, st.CurrentStage)
	assert.Equal(t, segment.Segments{segment.FullText: ""}, st.Segments)

	statuses := h.statuses()
	assert.Contains(t, statuses, "preprocess:complete:40")
	for _, e := range h.events {
		assert.NotEqual(t, constants.EventFailed, e.Status)
		assert.NotEqual(t, constants.EventError, e.Status)
	}
	last := h.events[len(h.events)-1]
	assert.Equal(t, constants.EventDone, last.Status)
	assert.Equal(t, []string{"No text content after cleaning"}, last.Errors)
	assert.Equal(t, []constants.Stage{constants.StageIngest, constants.StagePreprocess}, h.store.stages())
}

func TestRun_StagePanicIsRecorded(t *testing.T) {
	h := newHarness(t, Deps{Extractor: panickingExtractor{}})
	st := h.run(Input{JobURL: "https://jobs.example.com/1", RawText: posting})

	assert.Equal(t, []string{"Error in extract: panic: boom"}, st.Errors)
	assert.Equal(t, constants.StageDone, st.CurrentStage)
	assert.Contains(t, h.statuses(), "extract:error:70")
	assert.Equal(t, constants.EventDone, h.events[len(h.events)-1].Status)
	assert.Equal(t, []constants.Stage{
		constants.StageIngest, constants.StagePreprocess, constants.StageExtract, constants.StagePersist,
	}, h.store.stages())
}

func TestRun_PersistUpdatesJobAndIndex(t *testing.T) {
	jobs := &fakeJobs{}
	index := &fakeIndex{}
	h := newHarness(t, Deps{Jobs: jobs, Index: index}, yearsReply, summaryReply)

	st := h.run(Input{
		JobID:           "0b7e4c5a-3a0e-4d57-9d7c-0d3c7e1f2a11",
		JobURL:          "https://jobs.example.com/backend",
		RawText:         posting,
		ClientExtracted: entity.Document{"job_title": "Backend Engineer", "location": nil},
	})

	require.Empty(t, st.Errors)
	assert.True(t, st.Persisted)
	assert.Equal(t, "job_0b7e4c5a-3a0e-4d57-9d7c-0d3c7e1f2a11", st.SearchIndexID)

	require.Len(t, jobs.updates, 2)
	first := jobs.updates[0]
	assert.Equal(t, "Backend Engineer", first["job_title"])
	assert.Equal(t, 5, first["years_experience_min"])
	assert.Equal(t, summaryReply, first["summary"])
	assert.Equal(t, fixedNow, first["summary_generated_at"])
	assert.NotContains(t, first, "location")
	assert.Equal(t, map[string]any{"search_index_id": st.SearchIndexID}, jobs.updates[1])

	assert.Equal(t, st.SearchIndexID, index.docID)
	assert.Contains(t, index.body, "Job Title: Backend Engineer\n")
	assert.Contains(t, index.body, "Summary:\n"+summaryReply)
	assert.Equal(t, "Backend Engineer", index.meta["job_title"])
	assert.Equal(t, "0b7e4c5a-3a0e-4d57-9d7c-0d3c7e1f2a11", index.meta["job_id"])
}

func TestRun_PersistFailuresAreRecorded(t *testing.T) {
	jobs := &fakeJobs{}
	index := &fakeIndex{err: errors.New("index down")}
	h := newHarness(t, Deps{Jobs: jobs, Index: index}, `{"extractions": {}}`)

	st := h.run(Input{
		JobID:           "job-1",
		JobURL:          "https://jobs.example.com/1",
		RawText:         posting,
		ClientExtracted: entity.Document{"company_name": "Acme"},
	})

	assert.Equal(t, []string{"Search indexing failed: index down"}, st.Errors)
	assert.True(t, st.Persisted)
	assert.Empty(t, st.SearchIndexID)
	assert.Len(t, jobs.updates, 1)
	assert.Equal(t, constants.StageDone, st.CurrentStage)
}

func TestRun_MissingJobIsNotIndexed(t *testing.T) {
	jobs := &fakeJobs{missing: true}
	index := &fakeIndex{}
	h := newHarness(t, Deps{Jobs: jobs, Index: index}, `{"extractions": {}}`)

	st := h.run(Input{JobID: "job-1", JobURL: "https://jobs.example.com/1", RawText: posting})

	assert.Equal(t, []string{"Job job-1 not found"}, st.Errors)
	assert.False(t, st.Persisted)
	assert.Empty(t, st.SearchIndexID)
	assert.Empty(t, index.docID)
	assert.Empty(t, jobs.updates)
	assert.Equal(t, constants.StageDone, st.CurrentStage)
}

func TestWithJobs(t *testing.T) {
	base := &fakeJobs{}
	scoped := &fakeJobs{}
	h := newHarness(t, Deps{Jobs: base}, `{"extractions": {}}`)

	st := h.orch.WithJobs(scoped).Run(context.Background(), Input{
		JobID:           "job-2",
		JobURL:          "https://jobs.example.com/2",
		RawText:         posting,
		ClientExtracted: entity.Document{"company_name": "Acme"},
	}, nil)

	assert.True(t, st.Persisted)
	assert.Len(t, scoped.updates, 1)
	assert.Empty(t, base.updates)
}

func TestRun_CheckpointFailureDoesNotFailRun(t *testing.T) {
	h := newHarness(t, Deps{}, `{"extractions": {}}`)
	h.store.fail = errors.New("disk full")
	st := h.run(Input{JobURL: "https://jobs.example.com/1", RawText: posting})
	assert.Empty(t, st.Errors)
	assert.Equal(t, constants.StageDone, st.CurrentStage)
}

func TestRun_CancelledContext(t *testing.T) {
	h := newHarness(t, Deps{}, yearsReply)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	st := h.orch.Run(ctx, Input{JobURL: "https://jobs.example.com/1", RawText: posting}, nil)
	require.Len(t, st.Errors, 1)
	assert.Contains(t, st.Errors[0], "Run cancelled")
	assert.Equal(t, 0, h.fake.CallCount())
}

func TestCheckpointSnapshotWrites(t *testing.T) {
	h := newHarness(t, Deps{}, yearsReply, summaryReply)
	h.run(Input{JobURL: "https://jobs.example.com/1", RawText: posting, ClientExtracted: entity.Document{"job_title": "SRE"}})

	require.Len(t, h.store.cps, 5)
	var snap struct {
		RawText string   `json:"raw_text"`
		Writes  []string `json:"writes"`
	}
	require.NoError(t, json.Unmarshal(h.store.cps[3].Snapshot, &snap))
	assert.Equal(t, constants.StageSummarize, h.store.cps[3].Stage)
	assert.Equal(t, []string{"summary", "success_criteria"}, snap.Writes)
	assert.True(t, strings.HasPrefix(snap.RawText, "<"))
}
