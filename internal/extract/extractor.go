// Package extract turns segmented posting text into structured job fields and
// merges them with what the client already knew.
package extract

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/joseph-ayodele/job-intake/internal/common"
	"github.com/joseph-ayodele/job-intake/internal/entity"
	"github.com/joseph-ayodele/job-intake/internal/llm"
	"github.com/joseph-ayodele/job-intake/internal/segment"
	"github.com/joseph-ayodele/job-intake/internal/utils"
)

const (
	// FullTextContext is how much of full_text is appended after the named sections.
	FullTextContext = 5000
	// PromptTextLimit bounds the posting text embedded in a prompt.
	PromptTextLimit = 8000
)

// ErrNoText is recorded when there is nothing to send to the model.
var ErrNoText = errors.New("No text available for extraction")

// Output is everything one extraction produced.
type Output struct {
	Merged        entity.Document
	Evidence      []entity.Evidence
	Raw           string
	Comprehensive *ComprehensiveAnalysis
	Strategy      string
	Errors        []string
}

// Extractor runs a Strategy against a Completer.
type Extractor struct {
	completer llm.Completer
	strategy  Strategy
	logger    *slog.Logger
}

func NewExtractor(c llm.Completer, s Strategy, logger *slog.Logger) *Extractor {
	if s == nil {
		s = NewFlatStrategy()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Extractor{completer: c, strategy: s, logger: logger}
}

// StrategyName reports which strategy this extractor runs.
func (e *Extractor) StrategyName() string { return e.strategy.Name() }

// Extract never returns a Go error: every failure degrades to the client fields
// and is reported in Output.Errors.
func (e *Extractor) Extract(ctx context.Context, segs segment.Segments, client entity.Document) Output {
	log := common.LoggerFrom(ctx, e.logger)
	client = client.Clone()
	out := Output{Merged: client, Strategy: e.strategy.Name()}

	text := SelectText(segs)
	if strings.TrimSpace(text) == "" {
		out.Errors = append(out.Errors, ErrNoText.Error())
		return out
	}

	start := time.Now()
	msgs := e.strategy.Messages(utils.FirstN(text, PromptTextLimit), client)
	raw, err := e.completer.Complete(ctx, llm.ModePrecise, msgs)
	if err != nil {
		log.Warn("extract.complete_failed", "strategy", e.strategy.Name(), "error", err)
		out.Errors = append(out.Errors, fmt.Sprintf("LLM extraction failed: %v", err))
		out.Evidence = BuildEvidence(nil, client)
		return out
	}
	out.Raw = raw

	res, err := e.strategy.Parse([]byte(llm.StripCodeFence(raw)))
	if err != nil {
		log.Warn("extract.parse_failed", "strategy", e.strategy.Name(), "error", err)
		out.Errors = append(out.Errors, describeParseError(err))
		out.Evidence = BuildEvidence(nil, client)
		return out
	}

	out.Merged = Merge(client, res.Extractions)
	out.Evidence = BuildEvidence(res.Extractions, client)
	out.Comprehensive = res.Comprehensive
	log.Info("extract.ok",
		"strategy", e.strategy.Name(),
		"llm_fields", len(res.Extractions),
		"merged_fields", len(out.Merged),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return out
}

// SelectText concatenates the most informative sections followed by the head of full_text.
func SelectText(segs segment.Segments) string {
	parts := []string{
		segs[segment.Requirements],
		segs[segment.Responsibilities],
		segs[segment.About],
		segs[segment.Benefits],
		segs[segment.Additional],
		segs[segment.Qualifications],
		utils.FirstN(segs[segment.FullText], FullTextContext),
	}
	return strings.Join(parts, "\n\n")
}

func describeParseError(err error) string {
	switch {
	case errors.Is(err, ErrInvalidJSON):
		return fmt.Sprintf("Failed to parse LLM response as JSON: %v", err)
	case errors.Is(err, ErrSchemaMismatch):
		return fmt.Sprintf("LLM response failed schema validation: %v", err)
	}
	return fmt.Sprintf("LLM extraction failed: %v", err)
}
