package checkpoint

import (
	"encoding/json"
	"fmt"
	"time"
	"unicode/utf8"

	"github.com/joseph-ayodele/job-intake/constants"
	"github.com/joseph-ayodele/job-intake/internal/entity"
	"github.com/joseph-ayodele/job-intake/internal/segment"
	"github.com/joseph-ayodele/job-intake/internal/utils"
)

const (
	SummaryPreviewLen = 500
	SegmentPreviewLen = 200
)

// Snapshot is the serialised pipeline state stored with a checkpoint.
// The raw capture is never stored, only its length marker.
type Snapshot struct {
	RunID           string            `json:"run_id"`
	JobID           string            `json:"job_id,omitempty"`
	JobURL          string            `json:"job_url"`
	RawText         string            `json:"raw_text"`
	ClientExtracted entity.Document   `json:"client_extracted,omitempty"`
	Segments        segment.Segments  `json:"segments,omitempty"`
	DocStats        *segment.Stats    `json:"doc_stats,omitempty"`
	Strategy        string            `json:"strategy,omitempty"`
	Merged          entity.Document   `json:"merged,omitempty"`
	Evidence        []entity.Evidence `json:"evidence,omitempty"`
	Summary         string            `json:"summary,omitempty"`
	SuccessCriteria string            `json:"success_criteria,omitempty"`
	Errors          []string          `json:"errors"`
	Persisted       bool              `json:"persisted"`
	SearchIndexID   string            `json:"search_index_id,omitempty"`
	CurrentStage    constants.Stage   `json:"current_stage"`
	Writes          []string          `json:"writes"`
}

// RedactRawText replaces a raw capture with its length marker.
func RedactRawText(raw string) string {
	return fmt.Sprintf("<%d chars>", utf8.RuneCountInString(raw))
}

// Encode redacts the raw text and marshals the snapshot.
func (s Snapshot) Encode() (json.RawMessage, error) {
	s.RawText = RedactRawText(s.RawText)
	if s.Errors == nil {
		s.Errors = []string{}
	}
	return json.Marshal(s)
}

// Preview is the condensed view of a checkpoint served by the history endpoint.
type Preview struct {
	Stage            constants.Stage   `json:"stage"`
	Sequence         int               `json:"sequence"`
	ParentSequence   *int              `json:"parent_sequence"`
	WrittenAt        time.Time         `json:"written_at"`
	Errors           []string          `json:"errors"`
	Persisted        bool              `json:"persisted"`
	HasSummary       bool              `json:"has_summary"`
	SummaryPreview   string            `json:"summary_preview,omitempty"`
	SegmentsPreview  map[string]string `json:"segments_preview,omitempty"`
	Merged           entity.Document   `json:"merged,omitempty"`
	Evidence         []entity.Evidence `json:"evidence,omitempty"`
	Writes           []string          `json:"writes"`
	SnapshotDecodeOK bool              `json:"-"`
}

// NewPreview condenses cp. A snapshot that fails to decode still yields the
// checkpoint metadata.
func NewPreview(cp entity.Checkpoint) Preview {
	p := Preview{
		Stage:          cp.Stage,
		Sequence:       cp.Sequence,
		ParentSequence: cp.ParentSequence,
		WrittenAt:      cp.WrittenAt,
		Errors:         []string{},
		Writes:         []string{},
	}
	var snap Snapshot
	if err := json.Unmarshal(cp.Snapshot, &snap); err != nil {
		return p
	}
	p.SnapshotDecodeOK = true
	if snap.Errors != nil {
		p.Errors = snap.Errors
	}
	if snap.Writes != nil {
		p.Writes = snap.Writes
	}
	p.Persisted = snap.Persisted
	p.HasSummary = snap.Summary != ""
	p.SummaryPreview = utils.Preview(snap.Summary, SummaryPreviewLen)
	if len(snap.Segments) > 0 {
		p.SegmentsPreview = make(map[string]string, len(snap.Segments))
		for name, text := range snap.Segments {
			p.SegmentsPreview[name] = utils.Preview(text, SegmentPreviewLen)
		}
	}
	p.Merged = snap.Merged
	p.Evidence = snap.Evidence
	return p
}

// Previews condenses a run's history in order.
func Previews(history []entity.Checkpoint) []Preview {
	out := make([]Preview, 0, len(history))
	for _, cp := range history {
		out = append(out, NewPreview(cp))
	}
	return out
}
