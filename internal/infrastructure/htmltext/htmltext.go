package htmltext

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// Extract reduces a crawled description to searchable text. Plain strings are
// returned unchanged; HTML fragments yield their visible text plus image alt
// and title attributes, which is where crawled pages usually name a poster or
// a logo.
func Extract(raw string) string {
	if !strings.ContainsRune(raw, '<') {
		return raw
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(raw))
	if err != nil {
		return raw
	}

	parts := []string{strings.TrimSpace(doc.Text())}
	doc.Find("[alt], [title]").Each(func(_ int, s *goquery.Selection) {
		if alt, ok := s.Attr("alt"); ok && strings.TrimSpace(alt) != "" {
			parts = append(parts, strings.TrimSpace(alt))
		}
		if title, ok := s.Attr("title"); ok && strings.TrimSpace(title) != "" {
			parts = append(parts, strings.TrimSpace(title))
		}
	})

	return strings.Join(strings.Fields(strings.Join(parts, " ")), " ")
}
