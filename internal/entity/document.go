package entity

import (
	"math"
	"strings"

	"github.com/joseph-ayodele/job-intake/constants"
	"github.com/joseph-ayodele/job-intake/internal/utils"
)

// Document is a flat job document keyed by snake_case field name. A key holding
// nil is treated the same as an absent key.
type Document map[string]any

// Clone returns a shallow copy; a nil receiver yields an empty document.
func (d Document) Clone() Document {
	out := make(Document, len(d))
	for k, v := range d {
		out[k] = v
	}
	return out
}

// Has reports whether field holds a non-nil value.
func (d Document) Has(field string) bool {
	v, ok := d[field]
	return ok && v != nil
}

// String returns field as a trimmed string, or "" when it is not a string.
func (d Document) String(field string) string {
	s, _ := d[field].(string)
	return strings.TrimSpace(s)
}

func (d Document) Title() string { return d.String(constants.FieldJobTitle) }

// RequiredSkills returns required_skills whether it was decoded as []string or []any.
func (d Document) RequiredSkills() []string { return d.Strings(constants.FieldRequiredSkills) }

func (d Document) Strings(field string) []string {
	switch v := d[field].(type) {
	case []string:
		return v
	case StringList:
		return v
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok && strings.TrimSpace(s) != "" {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}

// Int returns a numeric field as int64.
func (d Document) Int(field string) (int64, bool) {
	switch v := d[field].(type) {
	case int:
		return int64(v), true
	case int32:
		return int64(v), true
	case int64:
		return v, true
	case float64:
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return 0, false
		}
		return int64(math.Round(v)), true
	case float32:
		return int64(math.Round(float64(v))), true
	}
	return 0, false
}

// Known returns the non-nil known fields of d.
func (d Document) Known() Document {
	out := Document{}
	for _, f := range constants.KnownFields {
		if d.Has(f) {
			out[f] = d[f]
		}
	}
	return out
}

// UpdatesFromDocument converts the non-nil known fields of doc into job record
// column updates. Values that cannot be converted to the column type are skipped.
func UpdatesFromDocument(doc Document) map[string]any {
	updates := map[string]any{}
	for _, f := range constants.KnownFields {
		if !doc.Has(f) {
			continue
		}
		switch f {
		case constants.FieldSalaryMin, constants.FieldSalaryMax:
			if n, ok := doc.Int(f); ok {
				updates[f] = n
			}
		case constants.FieldYearsExperienceMin, constants.FieldYearsExperienceMax:
			if n, ok := doc.Int(f); ok {
				updates[f] = int(n)
			}
		case constants.FieldRequiredSkills, constants.FieldPreferredSkills:
			// an empty or unreadable list must not clear stored skills
			if skills := doc.Strings(f); len(skills) > 0 {
				updates[f] = StringList(skills)
			}
		case constants.FieldEasyApply:
			if b, ok := doc[f].(bool); ok {
				updates[f] = b
			}
		case constants.FieldPostingDate:
			if t, err := utils.ParseYMD(doc.String(f)); err == nil {
				updates[f] = t
			}
		default:
			if s := doc.String(f); s != "" {
				updates[f] = s
			}
		}
	}
	return updates
}
