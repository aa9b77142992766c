package extract

import (
	"sort"
	"strings"

	"github.com/joseph-ayodele/job-intake/constants"
	"github.com/joseph-ayodele/job-intake/internal/entity"
	"github.com/joseph-ayodele/job-intake/internal/utils"
)

// ConfidenceFromScore buckets a 0..1 parsing score.
func ConfidenceFromScore(score float64) constants.Confidence {
	switch {
	case score >= 0.8:
		return constants.ConfidenceHigh
	case score >= 0.5:
		return constants.ConfidenceMedium
	default:
		return constants.ConfidenceLow
	}
}

// Flatten maps a comprehensive analysis onto the flat job document. Every
// field gets the overall parsing confidence, except fields the analysis lists
// as ambiguous, which are low.
func Flatten(ca ComprehensiveAnalysis) (entity.Document, map[string]constants.Confidence) {
	doc := entity.Document{}
	putStr := func(field, v string) {
		if v = strings.TrimSpace(v); v != "" {
			doc[field] = v
		}
	}
	putEnum := func(field, v string) {
		if v == "" {
			return
		}
		if canon, ok := constants.CanonicalEnum(field, v); ok {
			doc[field] = canon
		}
	}

	b := ca.JobBasics
	putStr(constants.FieldJobTitle, b.Title)
	putStr(constants.FieldCompanyName, b.Company)
	putStr(constants.FieldIndustry, b.Industry)
	putStr(constants.FieldLocation, b.Location)
	putStr(constants.FieldLocationCity, b.LocationCity)
	putStr(constants.FieldLocationCountry, b.LocationCountry)
	putEnum(constants.FieldSeniority, b.Seniority)
	putEnum(constants.FieldRemoteType, b.RemoteType)
	putEnum(constants.FieldRoleType, b.RoleType)
	if t, err := utils.ParseYMD(b.PostingDate); err == nil {
		doc[constants.FieldPostingDate] = t.Format("2006-01-02")
	}

	if v := ca.ExperienceProfile.YearsMin; v != nil {
		doc[constants.FieldYearsExperienceMin] = *v
	}
	if v := ca.ExperienceProfile.YearsMax; v != nil {
		doc[constants.FieldYearsExperienceMax] = *v
	}

	c := ca.Compensation
	if c.SalaryMin != nil {
		doc[constants.FieldSalaryMin] = *c.SalaryMin
	}
	if c.SalaryMax != nil {
		doc[constants.FieldSalaryMax] = *c.SalaryMax
	}
	if cur := strings.ToUpper(strings.TrimSpace(c.Currency)); len(cur) == 3 {
		doc[constants.FieldSalaryCurrency] = cur
	}
	putEnum(constants.FieldSalaryPeriod, c.Period)
	putStr(constants.FieldSalaryRaw, c.Raw)

	required, preferred := splitSkills(ca.Skills.Technical)
	if len(required) > 0 {
		doc[constants.FieldRequiredSkills] = required
	}
	if len(preferred) > 0 {
		doc[constants.FieldPreferredSkills] = preferred
	}

	if v := ca.ApplicationLogistics.EasyApply; v != nil {
		doc[constants.FieldEasyApply] = *v
	}

	overall := ConfidenceFromScore(ca.ParsingConfidence.Overall)
	ambiguous := make(map[string]bool, len(ca.ParsingConfidence.Ambiguous))
	for _, a := range ca.ParsingConfidence.Ambiguous {
		ambiguous[strings.ToLower(strings.TrimSpace(a))] = true
	}
	conf := make(map[string]constants.Confidence, len(doc))
	for field := range doc {
		if ambiguous[field] {
			conf[field] = constants.ConfidenceLow
		} else {
			conf[field] = overall
		}
	}
	return doc, conf
}

// splitSkills orders technical skills by importance and splits them on the
// required flag, capped at the flat document limits.
func splitSkills(skills []Skill) (required, preferred []string) {
	sorted := make([]Skill, 0, len(skills))
	for _, s := range skills {
		if strings.TrimSpace(s.Name) != "" {
			sorted = append(sorted, s)
		}
	}
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Importance > sorted[j].Importance })

	seen := map[string]bool{}
	for _, s := range sorted {
		name := strings.TrimSpace(s.Name)
		key := strings.ToLower(name)
		if seen[key] {
			continue
		}
		seen[key] = true
		if s.Required && len(required) < constants.MaxRequiredSkills {
			required = append(required, name)
		} else if !s.Required && len(preferred) < constants.MaxPreferredSkills {
			preferred = append(preferred, name)
		}
	}
	return required, preferred
}
