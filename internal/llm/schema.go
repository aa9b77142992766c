package llm

import (
	"slices"

	"github.com/joseph-ayodele/job-intake/constants"
)

// EvidenceQuoteMax bounds the evidence quote carried by each extraction.
const EvidenceQuoteMax = 50

// BuildExtractionJSONSchema returns the JSON-Schema for a flat extraction response:
//
//	{"extractions": {"<field>": {"value": ..., "evidence": "...", "confidence": "high|medium|low"}},
//	 "fields_not_found": ["..."]}
func BuildExtractionJSONSchema() map[string]any {
	fields := map[string]any{}
	for _, f := range constants.KnownFields {
		fields[f] = map[string]any{
			"type": "object",
			"properties": map[string]any{
				"value":      valueProp(f),
				"evidence":   map[string]any{"type": "string"},
				"confidence": map[string]any{"type": "string", "enum": []string{"high", "medium", "low"}},
			},
			"required": []string{"value"},
		}
	}
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"extractions": map[string]any{
				"type":                 "object",
				"properties":           fields,
				"additionalProperties": false,
			},
			"fields_not_found": map[string]any{
				"type":  "array",
				"items": map[string]any{"type": "string"},
			},
		},
		"required": []string{"extractions"},
	}
}

func valueProp(field string) map[string]any {
	if allowed, ok := constants.EnumFields[field]; ok {
		return map[string]any{"type": "string", "enum": allowed}
	}
	if slices.Contains(constants.IntegerFields, field) {
		return map[string]any{"type": "integer", "minimum": 0}
	}
	switch field {
	case constants.FieldRequiredSkills:
		return skillsProp(constants.MaxRequiredSkills)
	case constants.FieldPreferredSkills:
		return skillsProp(constants.MaxPreferredSkills)
	case constants.FieldEasyApply:
		return map[string]any{"type": "boolean"}
	case constants.FieldPostingDate:
		return map[string]any{"type": "string", "pattern": `^\d{4}-\d{2}-\d{2}$`}
	case constants.FieldSalaryCurrency:
		return map[string]any{"type": "string", "pattern": `^[A-Z]{3}$`}
	}
	return map[string]any{"type": "string", "minLength": 1}
}

func skillsProp(max int) map[string]any {
	return map[string]any{
		"type":     "array",
		"items":    map[string]any{"type": "string", "minLength": 1},
		"maxItems": max,
	}
}
