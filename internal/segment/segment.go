// Package segment cleans scraped job text and splits it into named sections.
package segment

import (
	"errors"
	"regexp"
	"sort"
	"strings"
	"unicode/utf8"
)

// Section names. FullText always holds the whole cleaned text.
const (
	FullText         = "full_text"
	About            = "about"
	Responsibilities = "responsibilities"
	Requirements     = "requirements"
	Qualifications   = "qualifications"
	Benefits         = "benefits"
	CompanyInfo      = "company_info"
	Additional       = "additional"
)

// MinSectionLen is the exclusive lower bound, in characters, for recording a section.
const MinSectionLen = 50

// ErrNoContent is returned when nothing is left after cleaning.
var ErrNoContent = errors.New("No text content after cleaning")

// Segments maps section name to section text.
type Segments map[string]string

// Stats describes the cleaned document.
type Stats struct {
	CharCount    int    `json:"char_count"`
	WordCount    int    `json:"word_count"`
	TokenCount   int    `json:"token_count"`
	SectionCount int    `json:"section_count"`
	Language     string `json:"language"`
}

type family struct {
	re   *regexp.Regexp
	name string
}

// Header families in match-priority order.
var families = []family{
	{regexp.MustCompile(`(?i)\b(about\s+(?:the\s+)?(?:job|role|position|opportunity))\b`), About},
	{regexp.MustCompile(`(?i)\b(responsibilities|what\s+you(?:'ll)?\s+(?:do|be\s+doing)|your\s+role)\b`), Responsibilities},
	{regexp.MustCompile(`(?i)\b(requirements|qualifications|what\s+you(?:'ll)?\s+need|what\s+we(?:'re)?\s+looking\s+for|must\s+have)\b`), Requirements},
	{regexp.MustCompile(`(?i)\b(nice\s+to\s+have|preferred|bonus|ideal)\b`), Qualifications},
	{regexp.MustCompile(`(?i)\b(benefits|perks|what\s+we\s+offer|compensation|salary|pay\s+range|why\s+(?:is\s+this|join|work))\b`), Benefits},
	{regexp.MustCompile(`(?i)\b(about\s+(?:the\s+)?company|about\s+us|who\s+we\s+are)\b`), CompanyInfo},
	{regexp.MustCompile(`(?i)\b(additional\s+information|other\s+information)\b`), Additional},
}

var (
	reSpaces    = regexp.MustCompile(`[\s\p{Z}\x{85}]+`)
	reNewlines  = regexp.MustCompile(`\n{3,}`)
	reArtifacts = regexp.MustCompile(`(?i)(show more|show less|easy apply|apply now)`)
)

// Clean normalises raw scraped text. It is idempotent.
func Clean(raw string) string {
	if raw == "" {
		return ""
	}
	text := raw
	// goquery already decodes entities in markup
	if LooksLikeMarkup(text) {
		text = StripMarkup(text)
	} else {
		text = decodeEntities(text)
	}
	text = reSpaces.ReplaceAllString(text, " ")
	text = reNewlines.ReplaceAllString(text, "\n\n")
	text = reArtifacts.ReplaceAllString(text, "")
	// removed artifacts leave double spaces behind
	text = reSpaces.ReplaceAllString(text, " ")
	return strings.TrimSpace(text)
}

type header struct {
	start, end int
	name       string
}

// Segment cleans raw and splits it into sections. On empty input it returns
// Segments{"full_text": ""}, zero Stats and ErrNoContent.
func Segment(raw string) (Segments, Stats, error) {
	text := Clean(raw)
	if text == "" {
		return Segments{FullText: ""}, Stats{}, ErrNoContent
	}

	var headers []header
	for _, f := range families {
		for _, loc := range f.re.FindAllStringIndex(text, -1) {
			headers = append(headers, header{start: loc[0], end: loc[1], name: f.name})
		}
	}
	sort.SliceStable(headers, func(i, j int) bool { return headers[i].start < headers[j].start })

	segs := Segments{FullText: text}
	for i, h := range headers {
		stop := len(text)
		if i+1 < len(headers) {
			stop = headers[i+1].start
		}
		// overlapping headers from different families leave nothing between them
		if stop <= h.end {
			continue
		}
		content := strings.TrimSpace(text[h.end:stop])
		n := utf8.RuneCountInString(content)
		if n <= MinSectionLen {
			continue
		}
		if prev, ok := segs[h.name]; !ok || n > utf8.RuneCountInString(prev) {
			segs[h.name] = content
		}
	}

	chars := utf8.RuneCountInString(text)
	return segs, Stats{
		CharCount:    chars,
		WordCount:    len(strings.Fields(text)),
		TokenCount:   chars / 4,
		SectionCount: len(segs) - 1,
		Language:     "en",
	}, nil
}
