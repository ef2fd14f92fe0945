package crawler

import (
	"bytes"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// extracted is the structured content pulled out of one HTML document.
type extracted struct {
	title string
	text  string
	links []string
}

// extractContent parses an HTML body, drops script and style noise, and
// returns the title, visible text and resolved outbound links.
func extractContent(baseURL string, body []byte) extracted {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return extracted{}
	}

	doc.Find("script, style, noscript").Remove()

	out := extracted{
		title: strings.TrimSpace(doc.Find("title").First().Text()),
		text:  collapseWhitespace(doc.Find("body").Text()),
	}

	base, err := url.Parse(baseURL)
	if err != nil {
		return out
	}

	doc.Find("a[href]").Each(func(_ int, s *goquery.Selection) {
		href, ok := s.Attr("href")
		if !ok {
			return
		}
		u, err := url.Parse(href)
		if err != nil {
			return
		}
		resolved := base.ResolveReference(u)
		if resolved.Scheme != "http" && resolved.Scheme != "https" {
			return
		}
		resolved.Fragment = ""
		out.links = append(out.links, resolved.String())
	})

	return out
}

func collapseWhitespace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
