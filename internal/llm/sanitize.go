package llm

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"regexp"
	"slices"
	"strconv"
	"strings"

	"github.com/joseph-ayodele/job-intake/constants"
	"github.com/joseph-ayodele/job-intake/internal/utils"
)

var reNumber = regexp.MustCompile(`\d[\d,]*(?:\.\d+)?\s*[kK]?`)

// NormalizeExtractionJSON makes a flat extraction response fit its schema:
//   - bare values are wrapped as {"value": v, "confidence": "low"}
//   - null/empty values and unknown fields are dropped
//   - confidence other than exactly "high" or "medium" becomes "low", evidence is cut to EvidenceQuoteMax characters
//   - integers, enums, dates, currency codes and skill lists are coerced or dropped
//
// The returned list names every dropped or rewritten entry.
func NormalizeExtractionJSON(raw []byte, logger *slog.Logger) ([]byte, []string, error) {
	if logger == nil {
		logger = slog.Default()
	}

	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, nil, fmt.Errorf("sanitize: decode: %w", err)
	}

	dropped := make([]string, 0, 8)
	ext, ok := m["extractions"].(map[string]any)
	if !ok {
		if m["extractions"] != nil {
			dropped = append(dropped, "extractions(type)")
		}
		ext = map[string]any{}
	}

	for field, entry := range ext {
		if !slices.Contains(constants.KnownFields, field) {
			delete(ext, field)
			dropped = append(dropped, field+"(unknown)")
			continue
		}
		obj, isObj := entry.(map[string]any)
		if !isObj {
			if entry == nil {
				delete(ext, field)
				dropped = append(dropped, field+"(null)")
				continue
			}
			obj = map[string]any{"value": entry, "confidence": string(constants.ConfidenceLow)}
			dropped = append(dropped, field+"(wrapped)")
		}

		v, keep := coerceValue(field, obj["value"])
		if !keep {
			delete(ext, field)
			dropped = append(dropped, field+"(value)")
			continue
		}
		conf, _ := obj["confidence"].(string)
		quote, _ := obj["evidence"].(string)
		ext[field] = map[string]any{
			"value":      v,
			"evidence":   utils.FirstN(strings.TrimSpace(quote), EvidenceQuoteMax),
			"confidence": string(constants.ParseConfidence(conf)),
		}
	}
	m["extractions"] = ext

	if nf, ok := m["fields_not_found"]; ok {
		list, isList := nf.([]any)
		clean := make([]string, 0, len(list))
		for _, item := range list {
			if s, ok := item.(string); ok {
				clean = append(clean, s)
			}
		}
		if !isList {
			dropped = append(dropped, "fields_not_found(type)")
		}
		m["fields_not_found"] = clean
	}

	// anything else the model volunteered is ignored downstream
	for k := range m {
		if k != "extractions" && k != "fields_not_found" {
			delete(m, k)
			dropped = append(dropped, k+"(unknown)")
		}
	}

	out, err := json.Marshal(m)
	if err != nil {
		return nil, dropped, fmt.Errorf("sanitize: encode: %w", err)
	}
	if len(dropped) > 0 {
		logger.Warn("llm.extract.normalize_sanitize", "dropped", dropped)
	}
	return out, dropped, nil
}

// coerceValue converts v to the type field expects. keep is false when nothing usable remains.
func coerceValue(field string, v any) (any, bool) {
	if v == nil {
		return nil, false
	}
	if _, isEnum := constants.EnumFields[field]; isEnum {
		s, ok := v.(string)
		if !ok {
			return nil, false
		}
		canon, ok := constants.CanonicalEnum(field, s)
		if !ok {
			return nil, false
		}
		return canon, true
	}
	if slices.Contains(constants.IntegerFields, field) {
		return coerceInt(v)
	}
	switch field {
	case constants.FieldRequiredSkills:
		return coerceSkills(v, constants.MaxRequiredSkills)
	case constants.FieldPreferredSkills:
		return coerceSkills(v, constants.MaxPreferredSkills)
	case constants.FieldEasyApply:
		switch t := v.(type) {
		case bool:
			return t, true
		case string:
			b, err := strconv.ParseBool(strings.TrimSpace(strings.ToLower(t)))
			if err != nil {
				return nil, false
			}
			return b, true
		}
		return nil, false
	case constants.FieldPostingDate:
		s, _ := v.(string)
		t, err := utils.ParseYMD(s)
		if err != nil {
			return nil, false
		}
		return t.Format("2006-01-02"), true
	case constants.FieldSalaryCurrency:
		s, _ := v.(string)
		s = strings.ToUpper(strings.TrimSpace(s))
		if len(s) != 3 {
			return nil, false
		}
		return s, true
	}

	switch t := v.(type) {
	case string:
		s := strings.TrimSpace(t)
		if s == "" || strings.EqualFold(s, "null") {
			return nil, false
		}
		return s, true
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64), true
	case bool:
		return strconv.FormatBool(t), true
	}
	return nil, false
}

func coerceInt(v any) (any, bool) {
	switch t := v.(type) {
	case float64:
		if math.IsNaN(t) || math.IsInf(t, 0) || t < 0 {
			return nil, false
		}
		return int64(math.Round(t)), true
	case string:
		match := reNumber.FindString(t)
		if match == "" {
			return nil, false
		}
		match = strings.TrimSpace(match)
		mult := 1.0
		if strings.HasSuffix(match, "k") || strings.HasSuffix(match, "K") {
			mult = 1000
			match = strings.TrimSpace(match[:len(match)-1])
		}
		f, err := strconv.ParseFloat(strings.ReplaceAll(match, ",", ""), 64)
		if err != nil {
			return nil, false
		}
		return int64(math.Round(f * mult)), true
	}
	return nil, false
}

func coerceSkills(v any, max int) (any, bool) {
	var items []string
	switch t := v.(type) {
	case []any:
		for _, item := range t {
			if s, ok := item.(string); ok {
				items = append(items, s)
			}
		}
	case string:
		items = strings.Split(t, ",")
	default:
		return nil, false
	}

	seen := map[string]bool{}
	out := make([]string, 0, len(items))
	for _, s := range items {
		s = strings.TrimSpace(s)
		key := strings.ToLower(s)
		if s == "" || seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, s)
		if len(out) == max {
			break
		}
	}
	if len(out) == 0 {
		return nil, false
	}
	return out, true
}
