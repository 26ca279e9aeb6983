package textextract

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/joseph-ayodele/docextract/internal/entity"
)

// extractHTML keeps block structure: each heading, paragraph, list item and table row becomes a
// line. Scripts and styles are dropped.
func extractHTML(data []byte) (Extracted, error) {
	res := Extracted{Meta: entity.DocumentMeta{Method: "html"}}
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(data))
	if err != nil {
		return res, fmt.Errorf("parse html: %w", err)
	}
	doc.Find("script,style,noscript,template").Remove()

	var lines []string
	if title := strings.TrimSpace(doc.Find("title").First().Text()); title != "" {
		lines = append(lines, title)
	}
	doc.Find("h1,h2,h3,h4,h5,h6,p,li,pre,tr").Each(func(_ int, s *goquery.Selection) {
		// a tr is rendered cell by cell; nested blocks inside cells are covered by the row
		if goquery.NodeName(s) != "tr" && s.ParentsFiltered("tr").Length() > 0 {
			return
		}
		var text string
		if goquery.NodeName(s) == "tr" {
			var cells []string
			s.Find("th,td").Each(func(_ int, c *goquery.Selection) {
				cells = append(cells, strings.Join(strings.Fields(c.Text()), " "))
			})
			text = strings.Join(cells, " | ")
		} else {
			text = strings.Join(strings.Fields(s.Text()), " ")
		}
		if text != "" {
			lines = append(lines, text)
		}
	})
	if len(lines) == 0 {
		lines = append(lines, strings.Join(strings.Fields(doc.Find("body").Text()), " "))
	}
	res.Text = strings.Join(lines, "\n")
	return res, nil
}
