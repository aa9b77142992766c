package entity

import "github.com/joseph-ayodele/job-intake/constants"

// Evidence records where an extracted field value came from.
type Evidence struct {
	Field      string               `json:"field"`
	Value      any                  `json:"value"`
	Quote      string               `json:"quote"`
	Confidence constants.Confidence `json:"confidence"`
	Source     constants.Source     `json:"source"`
}

// FieldConfidence is the per-field view streamed to clients.
type FieldConfidence struct {
	Confidence constants.Confidence `json:"confidence"`
	Source     constants.Source     `json:"source"`
}

// ConfidenceMap indexes evidence by field. Later entries win, so an LLM entry is
// replaced by the client entry for the same field.
func ConfidenceMap(evidence []Evidence) map[string]FieldConfidence {
	out := make(map[string]FieldConfidence, len(evidence))
	for _, e := range evidence {
		out[e.Field] = FieldConfidence{Confidence: e.Confidence, Source: e.Source}
	}
	return out
}
