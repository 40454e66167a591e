package content

import (
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

var whitespace = regexp.MustCompile(`\s+`)

// Clean turns a raw (possibly HTML-bearing) entry body into a plain-text
// summary. When the markup contains paragraphs, only the first paragraph's
// inner text is kept, which bounds summary length and drops the boilerplate
// sources append after the lead. Otherwise all markup is stripped from the
// whole text.
func Clean(raw string) string {
	if strings.TrimSpace(raw) == "" {
		return ""
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(raw))
	if err != nil {
		return collapse(raw)
	}

	if p := doc.Find("p").First(); p.Length() > 0 {
		return collapse(p.Text())
	}
	return collapse(doc.Text())
}

func collapse(s string) string {
	return strings.TrimSpace(whitespace.ReplaceAllString(s, " "))
}
