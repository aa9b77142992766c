package extract

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/job-intake/constants"
	"github.com/joseph-ayodele/job-intake/internal/entity"
	"github.com/joseph-ayodele/job-intake/internal/llm"
	"github.com/joseph-ayodele/job-intake/internal/llm/llmtest"
	"github.com/joseph-ayodele/job-intake/internal/segment"
)

const yearsReply = `{"extractions": {"years_experience_min": {"value": 5, "evidence": "5+ years Python", "confidence": "high"}}, "fields_not_found": ["salary_min"]}`

func postingSegments() segment.Segments {
	return segment.Segments{
		segment.FullText:         "Requirements 5+ years Python building distributed systems in production. Responsibilities Own the ingestion services end to end.",
		segment.Requirements:     "5+ years Python building distributed systems in production.",
		segment.Responsibilities: "Own the ingestion services end to end and mentor other engineers.",
	}
}

func TestMerge_Policy(t *testing.T) {
	client := entity.Document{
		constants.FieldJobTitle:    "Backend Engineer",
		constants.FieldCompanyName: "Acme",
		constants.FieldLocation:    nil,
	}
	ext := map[string]Extraction{
		constants.FieldJobTitle:    {Value: "Senior Backend Engineer", Confidence: constants.ConfidenceMedium},
		constants.FieldCompanyName: {Value: "Acme Corp", Confidence: constants.ConfidenceHigh},
		constants.FieldLocation:    {Value: "Berlin", Confidence: constants.ConfidenceLow},
		constants.FieldSeniority:   {Value: nil, Confidence: constants.ConfidenceHigh},
	}
	merged := Merge(client, ext)

	assert.Equal(t, "Backend Engineer", merged[constants.FieldJobTitle], "medium never overrides a client value")
	assert.Equal(t, "Acme Corp", merged[constants.FieldCompanyName], "high overrides")
	assert.Equal(t, "Berlin", merged[constants.FieldLocation], "absent client value takes the model value")
	assert.NotContains(t, merged, constants.FieldSeniority)
	assert.Equal(t, "Acme", client[constants.FieldCompanyName], "client document is not mutated")
}

func TestExtract_OnlyExactHighOverridesClient(t *testing.T) {
	reply := `{"extractions": {"job_title": {"value": "Staff Engineer", "evidence": "Staff Engineer", "confidence": "High"}}}`
	client := entity.Document{constants.FieldJobTitle: "Backend Engineer"}
	out := NewExtractor(llmtest.NewFake(reply), nil, nil).Extract(context.Background(), postingSegments(), client)

	require.Empty(t, out.Errors)
	assert.Equal(t, "Backend Engineer", out.Merged[constants.FieldJobTitle])
	require.NotEmpty(t, out.Evidence)
	assert.Equal(t, constants.ConfidenceLow, out.Evidence[0].Confidence)
}

func TestBuildEvidence_Order(t *testing.T) {
	ext := map[string]Extraction{
		constants.FieldSeniority: {Value: "senior", Quote: "Senior", Confidence: constants.ConfidenceHigh},
		constants.FieldJobTitle:  {Value: "Engineer", Quote: "Engineer", Confidence: constants.ConfidenceLow},
	}
	client := entity.Document{"custom": "x", constants.FieldJobURL: "https://jobs.example.com/1", constants.FieldIndustry: nil}
	ev := BuildEvidence(ext, client)
	require.Len(t, ev, 4)
	assert.Equal(t, []string{"job_title", "seniority", "job_url", "custom"},
		[]string{ev[0].Field, ev[1].Field, ev[2].Field, ev[3].Field})
	assert.Equal(t, constants.SourceLLM, ev[1].Source)
	assert.Equal(t, entity.Evidence{
		Field: "custom", Value: "x", Quote: "Client-side extraction",
		Confidence: constants.ConfidenceMedium, Source: constants.SourceClient,
	}, ev[3])
}

func TestExtract_NoTextSkipsCompletion(t *testing.T) {
	fake := llmtest.NewFake(yearsReply)
	client := entity.Document{constants.FieldJobTitle: "Backend Engineer"}

	out := NewExtractor(fake, nil, nil).Extract(context.Background(), segment.Segments{segment.FullText: ""}, client)

	assert.Equal(t, 0, fake.CallCount())
	assert.Equal(t, client, out.Merged)
	assert.Empty(t, out.Evidence)
	assert.Equal(t, []string{"No text available for extraction"}, out.Errors)
}

func TestExtract_FenceTolerance(t *testing.T) {
	variants := []string{
		"```json\n" + yearsReply + "\n```",
		"```\n" + yearsReply + "\n```",
		yearsReply,
	}
	var first entity.Document
	for i, reply := range variants {
		out := NewExtractor(llmtest.NewFake(reply), nil, nil).Extract(context.Background(), postingSegments(), nil)
		require.Empty(t, out.Errors, "variant %d", i)
		if i == 0 {
			first = out.Merged
			continue
		}
		assert.Equal(t, first, out.Merged, "variant %d", i)
	}
	assert.Equal(t, 5, first[constants.FieldYearsExperienceMin])
}

func TestExtract_MalformedJSON(t *testing.T) {
	client := entity.Document{constants.FieldJobTitle: "Backend Engineer"}
	out := NewExtractor(llmtest.NewFake("```json\n{\"extractions\": {oops}\n```"), nil, nil).
		Extract(context.Background(), postingSegments(), client)

	require.Len(t, out.Errors, 1)
	assert.True(t, strings.HasPrefix(out.Errors[0], "Failed to parse LLM response as JSON: "), out.Errors[0])
	assert.Equal(t, client, out.Merged)
	require.Len(t, out.Evidence, 1)
	assert.Equal(t, constants.SourceClient, out.Evidence[0].Source)
	assert.NotEmpty(t, out.Raw)
}

func TestExtract_CompletionError(t *testing.T) {
	out := NewExtractor(llmtest.Failing(errors.New("connection refused")), nil, nil).
		Extract(context.Background(), postingSegments(), entity.Document{})
	assert.Equal(t, []string{"LLM extraction failed: connection refused"}, out.Errors)
	assert.Empty(t, out.Merged)
}

func TestExtract_NothingExtractedKeepsClient(t *testing.T) {
	client := entity.Document{constants.FieldJobTitle: "Backend Engineer"}
	out := NewExtractor(llmtest.NewFake(`{"fields_not_found": ["salary_min"], "notes": "n/a"}`), nil, nil).
		Extract(context.Background(), postingSegments(), client)
	assert.Empty(t, out.Errors)
	assert.Equal(t, client, out.Merged)
	require.Len(t, out.Evidence, 1)
}

func TestExtract_BackendEngineerScenario(t *testing.T) {
	fake := llmtest.NewFake("```json\n" + yearsReply + "\n```")
	client := entity.Document{constants.FieldJobTitle: "Backend Engineer"}

	out := NewExtractor(fake, NewFlatStrategy(), nil).Extract(context.Background(), postingSegments(), client)

	require.Empty(t, out.Errors)
	assert.Equal(t, "Backend Engineer", out.Merged[constants.FieldJobTitle])
	assert.Equal(t, 5, out.Merged[constants.FieldYearsExperienceMin])
	require.Len(t, out.Evidence, 2)
	assert.Equal(t, constants.SourceLLM, out.Evidence[0].Source)
	assert.Equal(t, constants.FieldYearsExperienceMin, out.Evidence[0].Field)
	assert.Equal(t, constants.ConfidenceHigh, out.Evidence[0].Confidence)
	assert.Equal(t, constants.SourceClient, out.Evidence[1].Source)

	calls := fake.Calls()
	require.Len(t, calls, 1)
	assert.Equal(t, llm.ModePrecise, calls[0].Mode)
	require.Len(t, calls[0].Messages, 2)
	assert.Equal(t, llm.RoleSystem, calls[0].Messages[0].Role)
	user := calls[0].Messages[1].Content
	assert.Contains(t, user, `"job_title": "Backend Engineer"`)
	assert.Contains(t, user, "5+ years Python")
}

func TestSelectText_Bounds(t *testing.T) {
	segs := segment.Segments{
		segment.FullText:     strings.Repeat("f", 9000),
		segment.Requirements: "req",
		segment.Benefits:     "ben",
	}
	text := SelectText(segs)
	assert.True(t, strings.HasPrefix(text, "req\n\n\n\n\n\nben"))
	assert.Equal(t, FullTextContext, strings.Count(text, "f"))

	fake := llmtest.NewFake(yearsReply)
	NewExtractor(fake, nil, nil).Extract(context.Background(), segs, nil)
	assert.Less(t, strings.Count(fake.Calls()[0].Messages[1].Content, "f"), PromptTextLimit+200)
}

func TestStrategyByName(t *testing.T) {
	s, err := StrategyByName("")
	require.NoError(t, err)
	assert.Equal(t, StrategyFlat, s.Name())
	s, err = StrategyByName("comprehensive")
	require.NoError(t, err)
	assert.Equal(t, StrategyComprehensive, s.Name())
	_, err = StrategyByName("fancy")
	assert.Error(t, err)
}
