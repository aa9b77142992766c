package constants

import "strings"

// Confidence is the confidence level attached to an extracted field.
type Confidence string

const (
	ConfidenceHigh   Confidence = "high"
	ConfidenceMedium Confidence = "medium"
	ConfidenceLow    Confidence = "low"
)

// ParseConfidence maps free text onto a confidence level. Matching is
// case-sensitive; anything but "high" or "medium" is low.
func ParseConfidence(s string) Confidence {
	switch Confidence(strings.TrimSpace(s)) {
	case ConfidenceHigh:
		return ConfidenceHigh
	case ConfidenceMedium:
		return ConfidenceMedium
	default:
		return ConfidenceLow
	}
}

// Source tags where an evidence entry came from.
type Source string

const (
	SourceClient Source = "client"
	SourceLLM    Source = "llm"
)

// ClientEvidenceQuote is the fixed quote recorded for client-supplied fields.
const ClientEvidenceQuote = "Client-side extraction"
