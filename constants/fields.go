package constants

import (
	"strings"
)

// Document field names shared by the extractor, the job record and the search index.
const (
	FieldJobURL             = "job_url"
	FieldJobTitle           = "job_title"
	FieldCompanyName        = "company_name"
	FieldIndustry           = "industry"
	FieldSalaryMin          = "salary_min"
	FieldSalaryMax          = "salary_max"
	FieldSalaryCurrency     = "salary_currency"
	FieldSalaryPeriod       = "salary_period"
	FieldSalaryRaw          = "salary_raw"
	FieldLocation           = "location"
	FieldLocationCountry    = "location_country"
	FieldLocationCity       = "location_city"
	FieldRemoteType         = "remote_type"
	FieldRoleType           = "role_type"
	FieldSeniority          = "seniority"
	FieldRequiredSkills     = "required_skills"
	FieldPreferredSkills    = "preferred_skills"
	FieldYearsExperienceMin = "years_experience_min"
	FieldYearsExperienceMax = "years_experience_max"
	FieldSource             = "source"
	FieldEasyApply          = "easy_apply"
	FieldPostingDate        = "posting_date"
)

// KnownFields lists every field of the flat job document.
var KnownFields = []string{
	FieldJobURL, FieldJobTitle, FieldCompanyName, FieldIndustry,
	FieldSalaryMin, FieldSalaryMax, FieldSalaryCurrency, FieldSalaryPeriod, FieldSalaryRaw,
	FieldLocation, FieldLocationCountry, FieldLocationCity,
	FieldRemoteType, FieldRoleType, FieldSeniority,
	FieldRequiredSkills, FieldPreferredSkills,
	FieldYearsExperienceMin, FieldYearsExperienceMax,
	FieldSource, FieldEasyApply, FieldPostingDate,
}

// IntegerFields are numeric fields the LLM sometimes returns as strings.
var IntegerFields = []string{FieldSalaryMin, FieldSalaryMax, FieldYearsExperienceMin, FieldYearsExperienceMax}

const (
	MaxRequiredSkills  = 15
	MaxPreferredSkills = 10
)

// Enumerations the extraction prompt asks for.
var (
	Seniorities   = []string{"intern", "junior", "mid", "senior", "staff", "principal", "director", "vp", "cxo"}
	SalaryPeriods = []string{"year", "month", "hour"}
	RemoteTypes   = []string{"remote", "hybrid", "onsite"}
	RoleTypes     = []string{"full_time", "part_time", "contract"}
)

// EnumFields maps an enum-valued field to its allowed values.
var EnumFields = map[string][]string{
	FieldSeniority:    Seniorities,
	FieldSalaryPeriod: SalaryPeriods,
	FieldRemoteType:   RemoteTypes,
	FieldRoleType:     RoleTypes,
}

// CanonicalEnum normalises an enum value for field. ok is false when the value
// cannot be mapped onto the allowed set.
func CanonicalEnum(field, input string) (string, bool) {
	allowed, isEnum := EnumFields[field]
	if !isEnum {
		return input, true
	}
	normalized := strings.ToLower(strings.TrimSpace(input))
	normalized = strings.NewReplacer("-", "_", " ", "_").Replace(normalized)

	synonyms := map[string]string{
		"internship":     "intern",
		"entry_level":    "junior",
		"entry":          "junior",
		"mid_level":      "mid",
		"intermediate":   "mid",
		"sr":             "senior",
		"lead":           "staff",
		"vice_president": "vp",
		"executive":      "cxo",
		"annual":         "year",
		"yearly":         "year",
		"annually":       "year",
		"monthly":        "month",
		"hourly":         "hour",
		"on_site":        "onsite",
		"in_office":      "onsite",
		"fulltime":       "full_time",
		"parttime":       "part_time",
		"contractor":     "contract",
	}
	if v, ok := synonyms[normalized]; ok {
		normalized = v
	}
	for _, a := range allowed {
		if a == normalized {
			return a, true
		}
	}
	return "", false
}
