package extract

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/job-intake/constants"
	"github.com/joseph-ayodele/job-intake/internal/entity"
	"github.com/joseph-ayodele/job-intake/internal/llm/llmtest"
)

const comprehensiveReply = `{
  "job_basics": {"title": "Platform Engineer", "company": "Acme", "seniority": "Senior", "remote_type": "Hybrid", "posting_date": "2024-06-01", "location": null},
  "requirements": {
    "must_have": [{"text": "5+ years of Go", "importance": 9, "category": "technical"}],
    "nice_to_have": [{"text": "Rust", "importance": 3}]
  },
  "experience_profile": {"years_min": 5, "leadership": "mentoring"},
  "skills": {"technical": [
    {"name": "Kubernetes", "required": true, "importance": 6},
    {"name": "Go", "required": true, "importance": 9},
    {"name": "Rust", "required": false, "importance": 3}
  ]},
  "compensation": {"salary_min": 150000, "salary_max": 190000, "currency": "usd", "period": "annual"},
  "application_logistics": {"easy_apply": true},
  "parsing_confidence": {"overall": 0.85, "ambiguous": ["salary_min"], "missing": ["industry"]}
}`

func TestFlatten(t *testing.T) {
	years := 3
	min := int64(100)
	ca := ComprehensiveAnalysis{
		JobBasics: JobBasics{Title: " Data Engineer ", Seniority: "wizard", RoleType: "Full-Time", PostingDate: "soon"},
		ExperienceProfile: ExperienceProfile{YearsMin: &years},
		Compensation:      Compensation{SalaryMin: &min, Currency: "eur"},
		Skills: SkillsBreakdown{Technical: []Skill{
			{Name: "SQL", Required: true, Importance: 2},
			{Name: "Spark", Required: true, Importance: 8},
			{Name: "sql", Required: true, Importance: 1},
		}},
		ParsingConfidence: ParsingConfidence{Overall: 0.6, Ambiguous: []string{"Job_Title"}},
	}
	doc, conf := Flatten(ca)

	assert.Equal(t, entity.Document{
		constants.FieldJobTitle:           "Data Engineer",
		constants.FieldRoleType:           "full_time",
		constants.FieldYearsExperienceMin: 3,
		constants.FieldSalaryMin:          int64(100),
		constants.FieldSalaryCurrency:     "EUR",
		constants.FieldRequiredSkills:     []string{"Spark", "SQL"},
	}, doc)
	assert.Equal(t, constants.ConfidenceLow, conf[constants.FieldJobTitle])
	assert.Equal(t, constants.ConfidenceMedium, conf[constants.FieldRoleType])
	assert.Len(t, conf, len(doc))
}

func TestConfidenceFromScore(t *testing.T) {
	assert.Equal(t, constants.ConfidenceHigh, ConfidenceFromScore(0.8))
	assert.Equal(t, constants.ConfidenceMedium, ConfidenceFromScore(0.79))
	assert.Equal(t, constants.ConfidenceMedium, ConfidenceFromScore(0.5))
	assert.Equal(t, constants.ConfidenceLow, ConfidenceFromScore(0.49))
}

func TestComprehensiveSchema(t *testing.T) {
	schema, text := ComprehensiveSchema()
	props, ok := schema["properties"].(map[string]any)
	require.True(t, ok)
	for _, key := range []string{"job_basics", "requirements", "experience_profile", "education", "skills",
		"responsibilities", "achievement_indicators", "compensation", "culture_signals",
		"application_logistics", "parsing_confidence"} {
		assert.Contains(t, props, key)
	}
	assert.Contains(t, text, "strongly_preferred")
}

func TestComprehensiveStrategy_Extract(t *testing.T) {
	fake := llmtest.NewFake("```json\n" + comprehensiveReply + "\n```")
	client := entity.Document{constants.FieldSalaryMin: 140000, constants.FieldJobTitle: "Engineer"}

	out := NewExtractor(fake, NewComprehensiveStrategy(), nil).Extract(context.Background(), postingSegments(), client)

	require.Empty(t, out.Errors)
	require.NotNil(t, out.Comprehensive)
	assert.Equal(t, StrategyComprehensive, out.Strategy)
	assert.Equal(t, 9, out.Comprehensive.Requirements.MustHave[0].Importance)

	assert.Equal(t, "Platform Engineer", out.Merged[constants.FieldJobTitle], "overall 0.85 is high confidence")
	assert.Equal(t, 140000, out.Merged[constants.FieldSalaryMin], "ambiguous field is low and keeps the client value")
	assert.Equal(t, int64(190000), out.Merged[constants.FieldSalaryMax])
	assert.Equal(t, "senior", out.Merged[constants.FieldSeniority])
	assert.Equal(t, "hybrid", out.Merged[constants.FieldRemoteType])
	assert.Equal(t, "year", out.Merged[constants.FieldSalaryPeriod])
	assert.Equal(t, "USD", out.Merged[constants.FieldSalaryCurrency])
	assert.Equal(t, []string{"Go", "Kubernetes"}, out.Merged[constants.FieldRequiredSkills])
	assert.Equal(t, []string{"Rust"}, out.Merged[constants.FieldPreferredSkills])
	assert.Equal(t, true, out.Merged[constants.FieldEasyApply])
	assert.NotContains(t, out.Merged, constants.FieldLocation)

	sys := fake.Calls()[0].Messages[0].Content
	assert.Contains(t, sys, "parsing_confidence")
}

func TestComprehensiveStrategy_RejectsWrongShape(t *testing.T) {
	out := NewExtractor(llmtest.NewFake(`["not", "an", "object"]`), NewComprehensiveStrategy(), nil).
		Extract(context.Background(), postingSegments(), nil)
	require.Len(t, out.Errors, 1)
	assert.Contains(t, out.Errors[0], "Failed to parse LLM response as JSON")

	out = NewExtractor(llmtest.NewFake(`{"parsing_confidence": {"overall": 7}}`), NewComprehensiveStrategy(), nil).
		Extract(context.Background(), postingSegments(), nil)
	require.Len(t, out.Errors, 1)
	assert.Contains(t, out.Errors[0], "schema validation")
	assert.Nil(t, out.Comprehensive)
}
