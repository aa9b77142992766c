package pipeline

import (
	"github.com/joseph-ayodele/job-intake/constants"
	"github.com/joseph-ayodele/job-intake/internal/entity"
	"github.com/joseph-ayodele/job-intake/internal/extract"
	"github.com/joseph-ayodele/job-intake/internal/segment"
)

// Event is one progress update of a run, streamed to clients as it happens.
type Event struct {
	Node                  constants.Stage                   `json:"node,omitempty"`
	Status                constants.EventStatus             `json:"status"`
	Progress              int                               `json:"progress"`
	Message               string                            `json:"message,omitempty"`
	Error                 string                            `json:"error,omitempty"`
	Segments              segment.Segments                  `json:"segments,omitempty"`
	Fields                entity.Document                   `json:"fields,omitempty"`
	Confidence            map[string]entity.FieldConfidence `json:"confidence,omitempty"`
	ComprehensiveAnalysis *extract.ComprehensiveAnalysis    `json:"comprehensive_analysis,omitempty"`
	Summary               string                            `json:"summary,omitempty"`
	Errors                []string                          `json:"errors,omitempty"`
	RunID                 string                            `json:"run_id,omitempty"`
}

// Emitter receives events in order on the goroutine calling Run.
type Emitter func(Event)

// startedOffset is subtracted from a stage's progress for its started event.
const startedOffset = 15

// errorMessageLen bounds the error text quoted in an error event message.
const errorMessageLen = 100
