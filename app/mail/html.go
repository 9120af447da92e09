package mail

import (
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// HTMLText converts an HTML email body to clean plain text.
type HTMLText struct {
	whitespaceRegex *regexp.Regexp
	newlineRegex    *regexp.Regexp
}

func NewHTMLText() *HTMLText {
	return &HTMLText{
		whitespaceRegex: regexp.MustCompile(`[^\S\n]+`),
		newlineRegex:    regexp.MustCompile(`\n{3,}`),
	}
}

// Run strips markup and collapses whitespace, keeping one blank line between
// blocks at most.
func (p *HTMLText) Run(html string) (string, error) {
	if html == "" {
		return "", nil
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return "", err
	}

	doc.Find("script, style, head, meta, link").Remove()

	doc.Find("p, div, br, h1, h2, h3, h4, h5, h6, li, tr").Each(func(i int, s *goquery.Selection) {
		s.PrependHtml("\n")
	})

	text := doc.Text()
	text = p.whitespaceRegex.ReplaceAllString(text, " ")

	lines := strings.Split(text, "\n")
	var cleanLines []string
	for _, line := range lines {
		line = strings.TrimSpace(line)
		if line != "" {
			cleanLines = append(cleanLines, line)
		}
	}
	text = strings.Join(cleanLines, "\n")

	text = p.newlineRegex.ReplaceAllString(text, "\n\n")

	return strings.TrimSpace(text), nil
}
