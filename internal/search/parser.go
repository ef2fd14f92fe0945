package search

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// resultSelectors is the ordered list of container selectors tried against
// a results page. Google rotates class names between layout experiments;
// trying the chain in order handles drift without hard-failing.
var resultSelectors = []string{
	"div.g",
	"div.MjjYud",
	"div[data-snf='x']",
	"div.v7W49e",
	"div.Gx5Zad",
	"div.tF2Cxc",
	"div.yuRUbf",
}

// Sub-selector chains tried within a result block.
var (
	titleSelectors = []string{"h3", "a h3", "div h3"}
	linkSelectors  = []string{"a[href]", "h3 a", "div > a"}
	descSelectors  = []string{"div.VwiC3b", "div[data-sncf='1']", "span.aCOpRe", "div.IsZvec"}
	statsSelectors = []string{"#result-stats", "div[aria-level='3']"}
)

// ParsedPage is the outcome of parsing one results page. An empty Results
// slice is a legitimate "no results or blocked" signal, not an error.
type ParsedPage struct {
	Results []Result
	Stats   string
	HasNext bool
}

// ParsePage extracts structured results from rendered page HTML. Relative
// links are resolved against pageURL. Results carry no page number yet;
// the aggregator assigns it.
func ParsePage(html, pageURL string) (*ParsedPage, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("parse results page: %w", err)
	}

	base, err := url.Parse(pageURL)
	if err != nil {
		base = nil
	}

	page := &ParsedPage{
		Stats:   extractStats(doc),
		HasNext: hasNextPage(doc),
	}

	for _, selector := range resultSelectors {
		blocks := doc.Find(selector)
		if blocks.Length() == 0 {
			continue
		}
		blocks.Each(func(_ int, block *goquery.Selection) {
			if r, ok := extractResult(block, base); ok {
				page.Results = append(page.Results, r)
			}
		})
		if len(page.Results) > 0 {
			return page, nil
		}
	}

	// Last resort: no container selector matched, scan bare outbound
	// links so a layout change degrades results instead of zeroing them.
	page.Results = extractGenericLinks(doc, base)
	return page, nil
}

// extractResult pulls title/url/description out of one candidate block.
// Description is optional; a block without a usable URL is discarded since
// the URL is the result's identity.
func extractResult(block *goquery.Selection, base *url.URL) (Result, bool) {
	var title string
	for _, sel := range titleSelectors {
		if el := block.Find(sel).First(); el.Length() > 0 {
			title = strings.TrimSpace(el.Text())
			if title != "" {
				break
			}
		}
	}

	var href string
	for _, sel := range linkSelectors {
		if el := block.Find(sel).First(); el.Length() > 0 {
			if v, ok := el.Attr("href"); ok && v != "" {
				href = v
				break
			}
		}
	}

	resolved := resolveURL(href, base)
	if resolved == "" || isGoogleInternal(resolved) {
		return Result{}, false
	}
	if title == "" && resolved == "" {
		return Result{}, false
	}

	var description string
	for _, sel := range descSelectors {
		if el := block.Find(sel).First(); el.Length() > 0 {
			description = strings.TrimSpace(el.Text())
			if description != "" {
				break
			}
		}
	}

	return Result{Title: title, URL: resolved, Description: description}, true
}

// extractGenericLinks harvests plausible result links when no structured
// selector matched.
func extractGenericLinks(doc *goquery.Document, base *url.URL) []Result {
	var results []Result
	doc.Find("a[href^='http']").Each(func(_ int, link *goquery.Selection) {
		href, ok := link.Attr("href")
		if !ok || isGoogleInternal(href) {
			return
		}

		title := strings.TrimSpace(link.Find("h3").First().Text())
		if title == "" {
			title = strings.TrimSpace(link.Text())
		}
		if title == "" {
			return
		}

		resolved := resolveURL(href, base)
		if resolved == "" {
			return
		}
		results = append(results, Result{Title: title, URL: resolved})
	})
	return results
}

// resolveURL makes href absolute against the page base. Unresolvable or
// non-HTTP links yield "".
func resolveURL(href string, base *url.URL) string {
	if href == "" {
		return ""
	}
	u, err := url.Parse(href)
	if err != nil {
		return ""
	}
	if base != nil {
		u = base.ResolveReference(u)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return ""
	}
	return u.String()
}

// isGoogleInternal filters links pointing back into Google surfaces.
func isGoogleInternal(href string) bool {
	return strings.Contains(href, "google.com") ||
		strings.Contains(href, "webcache.googleusercontent.com") ||
		strings.HasPrefix(href, "https://accounts.") ||
		strings.HasPrefix(href, "https://support.") ||
		strings.HasPrefix(href, "https://maps.")
}

// extractStats grabs the "About N results" banner text, best effort.
func extractStats(doc *goquery.Document) string {
	for _, sel := range statsSelectors {
		if el := doc.Find(sel).First(); el.Length() > 0 {
			if text := strings.TrimSpace(el.Text()); text != "" {
				return text
			}
		}
	}
	return ""
}
