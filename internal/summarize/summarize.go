// Package summarize writes the candidate-facing markdown summary of a posting.
package summarize

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/joseph-ayodele/job-intake/constants"
	"github.com/joseph-ayodele/job-intake/internal/common"
	"github.com/joseph-ayodele/job-intake/internal/entity"
	"github.com/joseph-ayodele/job-intake/internal/llm"
	"github.com/joseph-ayodele/job-intake/internal/segment"
	"github.com/joseph-ayodele/job-intake/internal/utils"
)

const (
	// FullTextLimit bounds the posting text embedded in the prompt.
	FullTextLimit = 10000
	// factSheetSkills is how many required skills the fact sheet lists.
	factSheetSkills = 10
)

// ErrNoText is recorded when the posting has no text to summarize.
var ErrNoText = errors.New("No text available for summarization")

const systemPrompt = `You are a career advisor helping job seekers quickly understand job opportunities.

Create a concise, actionable summary of the job posting that helps a candidate decide if they should apply.

Your summary should include:

1. **Role Overview** (2-3 sentences): What is this job really about? What's the core mission?

2. **Key Responsibilities** (4-6 bullets): The most important things this person will do day-to-day

3. **Must-Have Qualifications** (3-5 bullets): Non-negotiable requirements

4. **Nice-to-Haves** (2-3 bullets): Things that would give a candidate an edge

5. **What Success Looks Like** (2-3 sentences): How would someone excel in this role? What would make them a top performer?

6. **Red Flags / Considerations** (1-2 bullets, optional): Anything a candidate should be aware of (travel, on-call, relocation, etc.)

Format your response as markdown with clear headers.

Be direct and specific. Avoid generic corporate speak. Focus on what would actually help someone decide if this job is right for them.
`

// Output is what one summarization produced. Both strings are empty on failure.
type Output struct {
	Summary         string
	SuccessCriteria string
	Errors          []string
}

type Generator struct {
	completer llm.Completer
	logger    *slog.Logger
}

func NewGenerator(c llm.Completer, logger *slog.Logger) *Generator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Generator{completer: c, logger: logger}
}

// Summarize never returns a Go error; failures are reported in Output.Errors.
func (g *Generator) Summarize(ctx context.Context, segs segment.Segments, merged entity.Document) Output {
	log := common.LoggerFrom(ctx, g.logger)

	fullText := segs[segment.FullText]
	if fullText == "" {
		return Output{Errors: []string{ErrNoText.Error()}}
	}

	start := time.Now()
	summary, err := g.completer.Complete(ctx, llm.ModeCreative, Messages(fullText, merged))
	if err != nil {
		log.Warn("summarize.complete_failed", "error", err)
		return Output{Errors: []string{fmt.Sprintf("Summary generation failed: %v", err)}}
	}

	log.Info("summarize.ok",
		"summary_chars", len(summary),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return Output{Summary: summary, SuccessCriteria: SuccessCriteria(summary)}
}

// Messages builds the system and user prompt for a posting.
func Messages(fullText string, merged entity.Document) []llm.Message {
	var b strings.Builder
	b.WriteString("Create a summary for this job posting.\n\nContext:\n")
	b.WriteString(FactSheet(merged))
	b.WriteString("\nFull Job Description:\n---\n")
	b.WriteString(utils.FirstN(fullText, FullTextLimit))
	b.WriteString("\n---\n\nCreate a concise, actionable summary.")
	return []llm.Message{llm.System(systemPrompt), llm.User(b.String())}
}

// FactSheet renders the merged fields the summary prompt leans on.
func FactSheet(doc entity.Document) string {
	valueOr := func(field, fallback string) string {
		if !doc.Has(field) {
			return fallback
		}
		if s, ok := doc[field].(string); ok {
			return strings.TrimSpace(s)
		}
		return fmt.Sprint(doc[field])
	}
	skills := doc.RequiredSkills()
	if len(skills) > factSheetSkills {
		skills = skills[:factSheetSkills]
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Job Title: %s\n", valueOr(constants.FieldJobTitle, "Unknown"))
	fmt.Fprintf(&b, "Company: %s\n", valueOr(constants.FieldCompanyName, "Unknown"))
	fmt.Fprintf(&b, "Location: %s\n", valueOr(constants.FieldLocation, "Unknown"))
	fmt.Fprintf(&b, "Remote: %s\n", valueOr(constants.FieldRemoteType, "Unknown"))
	fmt.Fprintf(&b, "Seniority: %s\n", valueOr(constants.FieldSeniority, "Unknown"))
	fmt.Fprintf(&b, "Salary Range: $%s - $%s\n", valueOr(constants.FieldSalaryMin, "?"), valueOr(constants.FieldSalaryMax, "?"))
	fmt.Fprintf(&b, "Required Skills: %s\n", strings.Join(skills, ", "))
	return b.String()
}

// SuccessCriteria pulls the body of the "What Success Looks Like" section out
// of a markdown summary. It returns "" when there is no such section.
func SuccessCriteria(markdown string) string {
	lines := strings.Split(markdown, "\n")
	var out []string
	capturing := false
	for _, line := range lines {
		if !capturing {
			capturing = strings.Contains(strings.ToLower(line), "success looks like")
			continue
		}
		if strings.HasPrefix(line, "#") || strings.HasPrefix(line, "**") {
			break
		}
		out = append(out, line)
	}
	return strings.TrimSpace(strings.Join(out, "\n"))
}
