package extract

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/invopop/jsonschema"

	"github.com/joseph-ayodele/job-intake/internal/entity"
	"github.com/joseph-ayodele/job-intake/internal/llm"
)

// ComprehensiveAnalysis is the nested taxonomy requested by ComprehensiveStrategy.
type ComprehensiveAnalysis struct {
	JobBasics             JobBasics            `json:"job_basics,omitempty"`
	Requirements          Requirements         `json:"requirements,omitempty"`
	ExperienceProfile     ExperienceProfile    `json:"experience_profile,omitempty"`
	Education             Education            `json:"education,omitempty"`
	Skills                SkillsBreakdown      `json:"skills,omitempty"`
	Responsibilities      []Responsibility     `json:"responsibilities,omitempty"`
	AchievementIndicators []string             `json:"achievement_indicators,omitempty" jsonschema:"description=outcomes or metrics the role is judged on"`
	Compensation          Compensation         `json:"compensation,omitempty"`
	CultureSignals        CultureSignals       `json:"culture_signals,omitempty"`
	ApplicationLogistics  ApplicationLogistics `json:"application_logistics,omitempty"`
	ParsingConfidence     ParsingConfidence    `json:"parsing_confidence,omitempty"`
}

type JobBasics struct {
	Title           string `json:"title,omitempty"`
	Company         string `json:"company,omitempty"`
	Industry        string `json:"industry,omitempty"`
	Seniority       string `json:"seniority,omitempty" jsonschema:"description=intern|junior|mid|senior|staff|principal|director|vp|cxo"`
	Location        string `json:"location,omitempty"`
	LocationCity    string `json:"location_city,omitempty"`
	LocationCountry string `json:"location_country,omitempty"`
	RemoteType      string `json:"remote_type,omitempty" jsonschema:"description=remote|hybrid|onsite"`
	RoleType        string `json:"role_type,omitempty" jsonschema:"description=full_time|part_time|contract"`
	PostingDate     string `json:"posting_date,omitempty" jsonschema:"description=YYYY-MM-DD"`
}

type Requirement struct {
	Text       string `json:"text"`
	Importance int    `json:"importance,omitempty" jsonschema:"minimum=1,maximum=10"`
	Category   string `json:"category,omitempty" jsonschema:"description=technical|experience|education|soft_skill|other"`
	Evidence   string `json:"evidence,omitempty" jsonschema:"description=verbatim quote of at most 50 characters"`
}

type Requirements struct {
	MustHave          []Requirement `json:"must_have,omitempty"`
	StronglyPreferred []Requirement `json:"strongly_preferred,omitempty"`
	NiceToHave        []Requirement `json:"nice_to_have,omitempty"`
}

type ExperienceProfile struct {
	YearsMin    *int     `json:"years_min,omitempty"`
	YearsMax    *int     `json:"years_max,omitempty"`
	Domains     []string `json:"domains,omitempty"`
	Leadership  string   `json:"leadership,omitempty" jsonschema:"description=none|mentoring|team_lead|manager"`
	CompanyType []string `json:"company_type,omitempty" jsonschema:"description=startup, enterprise, agency and similar backgrounds asked for"`
}

type Education struct {
	MinimumDegree          string   `json:"minimum_degree,omitempty"`
	PreferredDegree        string   `json:"preferred_degree,omitempty"`
	Fields                 []string `json:"fields,omitempty"`
	Certifications         []string `json:"certifications,omitempty"`
	EquivalentExperienceOK *bool    `json:"equivalent_experience_ok,omitempty"`
}

type Skill struct {
	Name       string `json:"name"`
	Required   bool   `json:"required,omitempty"`
	Importance int    `json:"importance,omitempty" jsonschema:"minimum=1,maximum=10"`
}

type SkillsBreakdown struct {
	Technical []Skill  `json:"technical,omitempty"`
	Tools     []string `json:"tools,omitempty"`
	Soft      []string `json:"soft,omitempty"`
}

type Responsibility struct {
	Text      string `json:"text"`
	Area      string `json:"area,omitempty"`
	TimeShare string `json:"time_share,omitempty"`
}

type Compensation struct {
	SalaryMin *int64   `json:"salary_min,omitempty"`
	SalaryMax *int64   `json:"salary_max,omitempty"`
	Currency  string   `json:"currency,omitempty" jsonschema:"description=ISO 4217 code"`
	Period    string   `json:"period,omitempty" jsonschema:"description=year|month|hour"`
	Raw       string   `json:"raw,omitempty"`
	Equity    *bool    `json:"equity,omitempty"`
	Benefits  []string `json:"benefits,omitempty"`
}

type CultureSignals struct {
	Values    []string `json:"values,omitempty"`
	WorkStyle string   `json:"work_style,omitempty"`
	TeamSize  string   `json:"team_size,omitempty"`
	RedFlags  []string `json:"red_flags,omitempty"`
}

type ApplicationLogistics struct {
	EasyApply       *bool    `json:"easy_apply,omitempty"`
	Deadline        string   `json:"deadline,omitempty"`
	Process         []string `json:"process,omitempty"`
	VisaSponsorship *bool    `json:"visa_sponsorship,omitempty"`
}

type ParsingConfidence struct {
	Overall   float64  `json:"overall,omitempty" jsonschema:"minimum=0,maximum=1"`
	Ambiguous []string `json:"ambiguous,omitempty" jsonschema:"description=flat field names whose value is uncertain"`
	Missing   []string `json:"missing,omitempty"`
}

const comprehensiveSystemPrompt = `You are an expert job posting analyst. Produce a comprehensive, structured analysis of the posting.

Rules:
- Extract ONLY what is stated or clearly implied. Never invent values; omit anything you cannot support.
- Rank every requirement by importance from 1 (trivia) to 10 (deal-breaker) and place it in exactly one bucket:
  must_have, strongly_preferred or nice_to_have.
- Split skills into technical (mark required ones), tools and soft skills.
- Capture the experience profile, education, responsibilities, achievement indicators, compensation,
  culture signals and application logistics.
- In parsing_confidence give an overall score between 0 and 1, list the flat field names whose value is
  ambiguous and the information the posting does not state.
- Respond with one JSON object matching this JSON Schema. No prose.

JSON Schema:
%s`

// ComprehensiveStrategy requests the nested taxonomy and flattens it.
type ComprehensiveStrategy struct{}

var (
	comprehensiveOnce   sync.Once
	comprehensiveSchema map[string]any
	comprehensiveText   string
)

func NewComprehensiveStrategy() *ComprehensiveStrategy { return &ComprehensiveStrategy{} }

func (s *ComprehensiveStrategy) Name() string { return StrategyComprehensive }

// ComprehensiveSchema returns the JSON schema reflected from ComprehensiveAnalysis.
func ComprehensiveSchema() (map[string]any, string) {
	comprehensiveOnce.Do(func() {
		r := &jsonschema.Reflector{
			Anonymous:                 true,
			DoNotReference:            true,
			ExpandedStruct:            true,
			AllowAdditionalProperties: true,
		}
		b, err := json.MarshalIndent(r.Reflect(&ComprehensiveAnalysis{}), "", "  ")
		if err != nil {
			panic(fmt.Sprintf("reflect comprehensive schema: %v", err))
		}
		comprehensiveText = string(b)
		if err := json.Unmarshal(b, &comprehensiveSchema); err != nil {
			panic(fmt.Sprintf("decode comprehensive schema: %v", err))
		}
	})
	return comprehensiveSchema, comprehensiveText
}

func (s *ComprehensiveStrategy) Messages(text string, client entity.Document) []llm.Message {
	_, schemaText := ComprehensiveSchema()
	return []llm.Message{
		llm.System(fmt.Sprintf(comprehensiveSystemPrompt, schemaText)),
		llm.User(humanMessage(text, client)),
	}
}

func (s *ComprehensiveStrategy) Parse(payload []byte) (Result, error) {
	var generic any
	if err := json.Unmarshal(payload, &generic); err != nil {
		return Result{}, invalidJSON(err)
	}
	obj, ok := generic.(map[string]any)
	if !ok {
		return Result{}, invalidJSON(fmt.Errorf("expected a JSON object, got %T", generic))
	}
	cleaned, err := json.Marshal(dropNulls(obj))
	if err != nil {
		return Result{}, invalidJSON(err)
	}

	schema, _ := ComprehensiveSchema()
	if err := llm.ValidateJSONAgainstSchema(schema, cleaned); err != nil {
		return Result{}, schemaMismatch(err)
	}
	var ca ComprehensiveAnalysis
	if err := json.Unmarshal(cleaned, &ca); err != nil {
		return Result{}, schemaMismatch(err)
	}

	doc, conf := Flatten(ca)
	res := Result{Extractions: make(map[string]Extraction, len(doc)), Comprehensive: &ca}
	for field, v := range doc {
		res.Extractions[field] = Extraction{Value: v, Confidence: conf[field]}
	}
	return res, nil
}

// dropNulls removes null members at every depth; models emit them for unknown values.
func dropNulls(v any) any {
	switch t := v.(type) {
	case map[string]any:
		for k, child := range t {
			if child == nil {
				delete(t, k)
				continue
			}
			t[k] = dropNulls(child)
		}
		return t
	case []any:
		out := t[:0]
		for _, child := range t {
			if child != nil {
				out = append(out, dropNulls(child))
			}
		}
		return out
	}
	return v
}
