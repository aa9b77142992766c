// Package pipeline runs the job-intake stages over one capture and records a
// checkpoint after each of them.
package pipeline

import (
	"slices"
	"time"

	"github.com/joseph-ayodele/job-intake/constants"
	"github.com/joseph-ayodele/job-intake/internal/entity"
	"github.com/joseph-ayodele/job-intake/internal/extract"
	"github.com/joseph-ayodele/job-intake/internal/segment"
)

// Input starts a run. JobID is empty for preview runs that persist nothing.
type Input struct {
	JobID           string
	JobURL          string
	RawText         string
	ClientExtracted entity.Document
}

// State is the canonical record of one run. Only the orchestrator mutates it.
type State struct {
	RunID           string
	JobID           string
	JobURL          string
	RawText         string
	ClientExtracted entity.Document

	Segments         segment.Segments
	DocStats         segment.Stats
	LLMExtractionRaw string
	Evidence         []entity.Evidence
	Merged           entity.Document
	Comprehensive    *extract.ComprehensiveAnalysis
	Strategy         string
	Summary          string
	SuccessCriteria  string

	// Errors only ever grows during a run.
	Errors        []string
	CurrentStage  constants.Stage
	Persisted     bool
	SearchIndexID string
	StartedAt     time.Time
}

// Fields is the best document known so far: the merged one once extraction
// ran, the client one before that.
func (s *State) Fields() entity.Document {
	if s.Merged != nil {
		return s.Merged
	}
	return s.ClientExtracted
}

// Confidence indexes the evidence by field.
func (s *State) Confidence() map[string]entity.FieldConfidence {
	return entity.ConfidenceMap(s.Evidence)
}

// view returns a copy stages may read without affecting s.
func (s *State) view() State {
	v := *s
	v.ClientExtracted = s.ClientExtracted.Clone()
	if s.Merged != nil {
		v.Merged = s.Merged.Clone()
	}
	if s.Segments != nil {
		v.Segments = make(segment.Segments, len(s.Segments))
		for k, t := range s.Segments {
			v.Segments[k] = t
		}
	}
	v.Evidence = slices.Clone(s.Evidence)
	v.Errors = slices.Clone(s.Errors)
	return v
}

// stageOutput is what a stage hands back to the orchestrator.
type stageOutput interface {
	apply(s *State)
	// writes names the state keys the stage produced.
	writes() []string
	errs() []string
}

type IngestOutput struct {
	RunID           string
	ClientExtracted entity.Document
	Errors          []string
}

func (o IngestOutput) apply(s *State) {
	s.RunID = o.RunID
	s.ClientExtracted = o.ClientExtracted
	s.Errors = append(s.Errors, o.Errors...)
}

func (o IngestOutput) writes() []string { return []string{"run_id", "client_extracted"} }
func (o IngestOutput) errs() []string   { return o.Errors }

type PreprocessOutput struct {
	Segments segment.Segments
	Stats    segment.Stats
	Errors   []string
}

func (o PreprocessOutput) apply(s *State) {
	s.Segments = o.Segments
	s.DocStats = o.Stats
	s.Errors = append(s.Errors, o.Errors...)
}

func (o PreprocessOutput) writes() []string { return []string{"segments", "doc_stats"} }
func (o PreprocessOutput) errs() []string   { return o.Errors }

type ExtractOutput struct {
	extract.Output
}

func (o ExtractOutput) apply(s *State) {
	s.LLMExtractionRaw = o.Raw
	s.Evidence = o.Evidence
	s.Merged = o.Merged
	s.Comprehensive = o.Comprehensive
	s.Strategy = o.Strategy
	s.Errors = append(s.Errors, o.Errors...)
}

func (o ExtractOutput) writes() []string {
	w := []string{"llm_extraction_raw", "evidence", "merged", "strategy"}
	if o.Comprehensive != nil {
		w = append(w, "comprehensive")
	}
	return w
}

func (o ExtractOutput) errs() []string { return o.Errors }

type SummaryOutput struct {
	Summary         string
	SuccessCriteria string
	Errors          []string
}

func (o SummaryOutput) apply(s *State) {
	s.Summary = o.Summary
	s.SuccessCriteria = o.SuccessCriteria
	s.Errors = append(s.Errors, o.Errors...)
}

func (o SummaryOutput) writes() []string { return []string{"summary", "success_criteria"} }
func (o SummaryOutput) errs() []string   { return o.Errors }

type PersistOutput struct {
	Persisted     bool
	SearchIndexID string
	Errors        []string
}

func (o PersistOutput) apply(s *State) {
	s.Persisted = o.Persisted
	if o.SearchIndexID != "" {
		s.SearchIndexID = o.SearchIndexID
	}
	s.Errors = append(s.Errors, o.Errors...)
}

func (o PersistOutput) writes() []string { return []string{"persisted", "search_index_id"} }
func (o PersistOutput) errs() []string   { return o.Errors }
