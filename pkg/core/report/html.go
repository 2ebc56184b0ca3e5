package report

import (
	"fmt"
	"html"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"policy_compass/pkg/core/utils"
	"policy_compass/pkg/models"
)

const page = `<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<title>%s</title>
</head>
<body>
%s</body>
</html>
`

// HTML renders the record as a standalone HTML page.
func HTML(rec *models.AnalysisRecord) (string, error) {
	text, err := Markdown(rec)
	if err != nil {
		return "", err
	}
	body, err := utils.MarkdownToHTML(text)
	if err != nil {
		return "", fmt.Errorf("convert markdown: %w", err)
	}
	body, err = Sanitize(body)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf(page, html.EscapeString("Policy Comparison: "+rec.Topic), body), nil
}

// Sanitize drops active content from an HTML fragment and makes links open
// in a new tab without access to the opener.
func Sanitize(fragment string) (string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(fragment))
	if err != nil {
		return "", fmt.Errorf("failed to parse HTML: %w", err)
	}

	doc.Find("script, style, iframe, object, embed").Remove()

	doc.Find("*").Each(func(i int, sel *goquery.Selection) {
		var handlers []string
		for _, attr := range sel.Nodes[0].Attr {
			if strings.HasPrefix(strings.ToLower(attr.Key), "on") {
				handlers = append(handlers, attr.Key)
			}
		}
		for _, key := range handlers {
			sel.RemoveAttr(key)
		}
	})

	doc.Find("a[href]").Each(func(i int, sel *goquery.Selection) {
		href, _ := sel.Attr("href")
		if strings.HasPrefix(strings.ToLower(strings.TrimSpace(href)), "javascript:") {
			sel.RemoveAttr("href")
			return
		}
		sel.SetAttr("target", "_blank")
		sel.SetAttr("rel", "noopener noreferrer")
	})

	out, err := doc.Find("body").Html()
	if err != nil {
		return "", fmt.Errorf("failed to render HTML: %w", err)
	}
	return out, nil
}
