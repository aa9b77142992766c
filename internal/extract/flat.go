package extract

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync"

	"github.com/joseph-ayodele/job-intake/constants"
	"github.com/joseph-ayodele/job-intake/internal/entity"
	"github.com/joseph-ayodele/job-intake/internal/llm"
)

const flatSystemPrompt = `You are a job posting analyzer. Extract structured information from job descriptions.

Your task is to extract ONLY the information that is explicitly stated or clearly implied in the text.
DO NOT hallucinate or infer information that isn't there.

For each field you extract, provide:
1. The extracted value
2. A short quote from the text as evidence (max 50 chars)
3. Confidence level: "high", "medium", or "low"

Return a JSON object with this structure:
{
    "extractions": {
        "field_name": {
            "value": <extracted value>,
            "evidence": "<quote from text>",
            "confidence": "high|medium|low"
        }
    },
    "fields_not_found": ["field1", "field2"]
}

Fields to extract:
- job_title: The job title/position name
- company_name: The hiring company name
- industry: The hiring company's industry
- seniority: One of: %s
- years_experience_min: Minimum years of experience required (integer)
- years_experience_max: Maximum years of experience (integer, if range given)
- salary_min: Minimum salary (integer, annual USD)
- salary_max: Maximum salary (integer, annual USD)
- salary_currency: ISO 4217 code of the advertised salary
- salary_period: One of: %s
- posting_date: Date the job was posted (YYYY-MM-DD)
- remote_type: One of: %s
- role_type: One of: %s
- location: Primary work location
- required_skills: Array of required technical skills (max %d)
- preferred_skills: Array of nice-to-have skills (max %d)

IMPORTANT:
- Only extract what you can find evidence for
- For skills, only include specific technical skills, not soft skills
- For salary, convert to annual USD if given in other formats
- If a field is already provided and looks correct, you can skip re-extracting it
`

// FlatStrategy asks for a flat field list with per-field evidence and confidence.
type FlatStrategy struct {
	logger *slog.Logger
	system string
}

var (
	flatSchemaOnce sync.Once
	flatSchema     map[string]any
)

func NewFlatStrategy() *FlatStrategy {
	return &FlatStrategy{
		logger: slog.Default(),
		system: fmt.Sprintf(flatSystemPrompt,
			strings.Join(constants.Seniorities, ", "),
			strings.Join(constants.SalaryPeriods, ", "),
			strings.Join(constants.RemoteTypes, ", "),
			strings.Join(constants.RoleTypes, ", "),
			constants.MaxRequiredSkills,
			constants.MaxPreferredSkills,
		),
	}
}

func (s *FlatStrategy) Name() string { return StrategyFlat }

func (s *FlatStrategy) Messages(text string, client entity.Document) []llm.Message {
	return []llm.Message{
		llm.System(s.system),
		llm.User(humanMessage(text, client)),
	}
}

// humanMessage is shared by both strategies.
func humanMessage(text string, client entity.Document) string {
	known := entity.Document{}
	for k, v := range client {
		if v != nil {
			known[k] = v
		}
	}
	hints, _ := json.MarshalIndent(known, "", "  ")

	var b strings.Builder
	b.WriteString("Analyze this job posting and extract structured fields.\n\n")
	b.WriteString("Already extracted by client (validate these):\n")
	b.Write(hints)
	b.WriteString("\n\nJob posting text:\n---\n")
	b.WriteString(text)
	b.WriteString("\n---\n\nExtract any missing fields and validate the existing ones. Return JSON only.")
	return b.String()
}

type flatResponse struct {
	Extractions map[string]struct {
		Value      any    `json:"value"`
		Evidence   string `json:"evidence"`
		Confidence string `json:"confidence"`
	} `json:"extractions"`
	FieldsNotFound []string `json:"fields_not_found"`
}

func (s *FlatStrategy) Parse(payload []byte) (Result, error) {
	if !json.Valid(payload) {
		var probe any
		return Result{}, invalidJSON(json.Unmarshal(payload, &probe))
	}
	cleaned, _, err := llm.NormalizeExtractionJSON(payload, s.logger)
	if err != nil {
		return Result{}, invalidJSON(err)
	}

	flatSchemaOnce.Do(func() { flatSchema = llm.BuildExtractionJSONSchema() })
	if err := llm.ValidateJSONAgainstSchema(flatSchema, cleaned); err != nil {
		return Result{}, schemaMismatch(err)
	}

	var resp flatResponse
	if err := json.Unmarshal(cleaned, &resp); err != nil {
		return Result{}, schemaMismatch(err)
	}

	res := Result{Extractions: make(map[string]Extraction, len(resp.Extractions))}
	for field, x := range resp.Extractions {
		res.Extractions[field] = Extraction{
			Value:      normalizeValue(field, x.Value),
			Quote:      x.Evidence,
			Confidence: constants.ParseConfidence(x.Confidence),
		}
	}
	return res, nil
}

// normalizeValue turns decoded JSON numbers and arrays into int and []string
// for integer and list fields.
func normalizeValue(field string, v any) any {
	switch t := v.(type) {
	case float64:
		if slices.Contains(constants.IntegerFields, field) {
			return int(t)
		}
	case []any:
		out := make([]string, 0, len(t))
		for _, item := range t {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	}
	return v
}
