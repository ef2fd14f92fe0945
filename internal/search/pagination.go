package search

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// resultsPerGooglePage is the offset step Google uses for the start
// parameter.
const resultsPerGooglePage = 10

// nextPageSelectors are the affordances Google renders for advancing to
// the next results page, across layout and locale variants.
var nextPageSelectors = []string{
	"a#pnnext",
	"a[aria-label='Pagina successiva']",
	"a[aria-label='Next page']",
	"a[aria-label='Next']",
	"a[aria-label='Page suivante']",
}

// PageURL builds the results URL for the given 1-based page. pws=0
// disables personalized results so pagination stays deterministic.
func PageURL(query, lang string, page int) string {
	country := lang
	if i := strings.Index(lang, "-"); i > 0 {
		country = lang[:i]
	}

	u := fmt.Sprintf("https://www.google.com/search?q=%s&hl=%s&pws=0&gl=%s",
		url.QueryEscape(query), url.QueryEscape(lang), url.QueryEscape(country))

	if start := (page - 1) * resultsPerGooglePage; start > 0 {
		u += fmt.Sprintf("&start=%d", start)
	}
	return u
}

// hasNextPage inspects the parsed document for a next-page affordance.
func hasNextPage(doc *goquery.Document) bool {
	for _, sel := range nextPageSelectors {
		if doc.Find(sel).Length() > 0 {
			return true
		}
	}
	return false
}
