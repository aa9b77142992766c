package entity

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/job-intake/constants"
)

func TestDocumentAccessors(t *testing.T) {
	doc := Document{
		constants.FieldJobTitle:       "  Backend Engineer ",
		constants.FieldRequiredSkills: []any{"Go", "", "Postgres", 3},
		constants.FieldSalaryMin:      120000.0,
		constants.FieldLocation:       nil,
	}
	assert.Equal(t, "Backend Engineer", doc.Title())
	assert.Equal(t, []string{"Go", "Postgres"}, doc.RequiredSkills())
	assert.False(t, doc.Has(constants.FieldLocation))
	n, ok := doc.Int(constants.FieldSalaryMin)
	require.True(t, ok)
	assert.Equal(t, int64(120000), n)

	var nilDoc Document
	assert.Empty(t, nilDoc.Clone())
	assert.Equal(t, "", nilDoc.Title())
}

func TestUpdatesFromDocument(t *testing.T) {
	doc := Document{
		constants.FieldJobTitle:           "Backend Engineer",
		constants.FieldCompanyName:        nil,
		constants.FieldYearsExperienceMin: 3.0,
		constants.FieldRequiredSkills:     []string{"Go"},
		constants.FieldPostingDate:        "2024-05-01",
		constants.FieldEasyApply:          true,
		"unknown_field":                   "ignored",
	}
	updates := UpdatesFromDocument(doc)
	assert.Equal(t, "Backend Engineer", updates[constants.FieldJobTitle])
	assert.NotContains(t, updates, constants.FieldCompanyName)
	assert.NotContains(t, updates, "unknown_field")
	assert.Equal(t, 3, updates[constants.FieldYearsExperienceMin])
	assert.Equal(t, StringList{"Go"}, updates[constants.FieldRequiredSkills])
	assert.Equal(t, time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC), updates[constants.FieldPostingDate])
	assert.Equal(t, true, updates[constants.FieldEasyApply])
}

func TestUpdatesFromDocument_KeepsStoredSkills(t *testing.T) {
	for name, v := range map[string]any{
		"empty list":   []any{},
		"blank items":  []any{"", "  "},
		"plain string": "Go, Python",
		"empty typed":  []string{},
	} {
		t.Run(name, func(t *testing.T) {
			updates := UpdatesFromDocument(Document{
				constants.FieldRequiredSkills:  v,
				constants.FieldPreferredSkills: v,
			})
			assert.NotContains(t, updates, constants.FieldRequiredSkills)
			assert.NotContains(t, updates, constants.FieldPreferredSkills)
		})
	}
}

func TestStringListValueScan(t *testing.T) {
	v, err := StringList{"Go", "SQL"}.Value()
	require.NoError(t, err)
	assert.Equal(t, `["Go","SQL"]`, v)

	var l StringList
	require.NoError(t, l.Scan([]byte(`["a","b"]`)))
	assert.Equal(t, StringList{"a", "b"}, l)
	require.NoError(t, l.Scan(nil))
	assert.Nil(t, l)
	assert.Error(t, l.Scan(42))
}

func TestJobDocumentRoundTrip(t *testing.T) {
	title := "Staff Engineer"
	years := 8
	j := &Job{JobURL: "https://example.com/j/1", JobTitle: &title, YearsExperienceMin: &years, RequiredSkills: StringList{"Go"}}
	doc := j.Document()
	assert.Equal(t, "https://example.com/j/1", doc[constants.FieldJobURL])
	assert.Equal(t, "Staff Engineer", doc.Title())
	assert.Equal(t, []string{"Go"}, doc.RequiredSkills())
	assert.NotContains(t, doc, constants.FieldCompanyName)

	updates := UpdatesFromDocument(doc)
	assert.Equal(t, 8, updates[constants.FieldYearsExperienceMin])
}

func TestConfidenceMapLaterEntryWins(t *testing.T) {
	m := ConfidenceMap([]Evidence{
		{Field: "job_title", Confidence: constants.ConfidenceHigh, Source: constants.SourceLLM},
		{Field: "job_title", Confidence: constants.ConfidenceMedium, Source: constants.SourceClient},
	})
	assert.Equal(t, FieldConfidence{Confidence: constants.ConfidenceMedium, Source: constants.SourceClient}, m["job_title"])
}
