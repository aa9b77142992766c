package segment

import (
	"html"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

var reMarkup = regexp.MustCompile(`(?i)<(html|body|div|p|span|br|li|ul|ol|section|article|main|h[1-6]|script|style|table)\b[^>]*>`)

// LooksLikeMarkup reports whether s appears to be an HTML fragment rather than page text.
func LooksLikeMarkup(s string) bool {
	return reMarkup.MatchString(s)
}

// StripMarkup returns the visible text of an HTML fragment. Chrome such as
// navigation, scripts and frames is dropped. Unparseable input is returned as is.
func StripMarkup(s string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(s))
	if err != nil {
		return s
	}
	doc.Find("script, style, nav, header, footer, noscript, iframe").Remove()
	// keep block boundaries as word breaks
	doc.Find("p, div, li, br, tr, section, article, h1, h2, h3, h4, h5, h6").AppendHtml(" ")
	return doc.Text()
}

func decodeEntities(s string) string {
	if !strings.Contains(s, "&") {
		return s
	}
	return html.UnescapeString(s)
}
