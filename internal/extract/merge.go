package extract

import (
	"sort"

	"github.com/joseph-ayodele/job-intake/constants"
	"github.com/joseph-ayodele/job-intake/internal/entity"
)

// Merge folds model extractions into the client document. A model value wins
// only when the client has no value for the field or the model is highly
// confident. Nil model values are ignored.
func Merge(client entity.Document, extractions map[string]Extraction) entity.Document {
	merged := client.Clone()
	for _, field := range orderedFields(extractions) {
		x := extractions[field]
		if x.Value == nil {
			continue
		}
		if !merged.Has(field) || x.Confidence == constants.ConfidenceHigh {
			merged[field] = x.Value
		}
	}
	return merged
}

// BuildEvidence lists model evidence first, then one entry per non-nil client field.
func BuildEvidence(extractions map[string]Extraction, client entity.Document) []entity.Evidence {
	evidence := make([]entity.Evidence, 0, len(extractions)+len(client))
	for _, field := range orderedFields(extractions) {
		x := extractions[field]
		if x.Value == nil {
			continue
		}
		evidence = append(evidence, entity.Evidence{
			Field:      field,
			Value:      x.Value,
			Quote:      x.Quote,
			Confidence: x.Confidence,
			Source:     constants.SourceLLM,
		})
	}
	for _, field := range orderedFields(client) {
		if !client.Has(field) {
			continue
		}
		evidence = append(evidence, entity.Evidence{
			Field:      field,
			Value:      client[field],
			Quote:      constants.ClientEvidenceQuote,
			Confidence: constants.ConfidenceMedium,
			Source:     constants.SourceClient,
		})
	}
	return evidence
}

// orderedFields returns keys of m with known fields first in document order,
// then any others alphabetically.
func orderedFields[V any](m map[string]V) []string {
	out := make([]string, 0, len(m))
	seen := make(map[string]bool, len(m))
	for _, f := range constants.KnownFields {
		if _, ok := m[f]; ok {
			out = append(out, f)
			seen[f] = true
		}
	}
	var rest []string
	for k := range m {
		if !seen[k] {
			rest = append(rest, k)
		}
	}
	sort.Strings(rest)
	return append(out, rest...)
}
