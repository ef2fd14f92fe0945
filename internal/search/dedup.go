package search

import (
	"net/url"
	"strings"
)

// PageResults pairs a fetched page number with the results extracted from
// it, in extraction order.
type PageResults struct {
	Page    int
	Results []Result
}

// Merge folds per-page result lists into one ordered, duplicate-free
// sequence: pages in fetch order, results in extraction order within a
// page, first occurrence of a normalized URL wins. Merging is idempotent.
func Merge(pages []PageResults) []Result {
	agg := newAggregator()
	for _, p := range pages {
		agg.addPage(p.Page, p.Results)
	}
	return agg.results()
}

// aggregator accumulates per-page results with cross-page URL dedup. It is
// owned by a single search call and is not safe for concurrent use.
type aggregator struct {
	seen         map[string]struct{}
	merged       []Result
	pagesFetched int
}

func newAggregator() *aggregator {
	return &aggregator{seen: make(map[string]struct{})}
}

// addPage records one fetched page. Empty pages still count toward
// pagesFetched: they were fetched. Duplicates of previously seen URLs are
// silently dropped; kept results are tagged with their origin page.
func (a *aggregator) addPage(page int, results []Result) {
	a.pagesFetched++
	for _, r := range results {
		key := normalizeURL(r.URL)
		if key == "" {
			continue
		}
		if _, dup := a.seen[key]; dup {
			continue
		}
		a.seen[key] = struct{}{}
		r.Page = page
		a.merged = append(a.merged, r)
	}
}

func (a *aggregator) results() []Result {
	return a.merged
}

func (a *aggregator) pages() int {
	return a.pagesFetched
}

func (a *aggregator) count() int {
	return len(a.merged)
}

// normalizeURL derives the dedup identity of a result URL: lowercased
// scheme and host plus the verbatim path. Query string and fragment are
// dropped, since Google decorates outbound links with per-page tracking
// parameters that would defeat cross-page dedup. Unparseable URLs fall
// back to the raw string so they still dedup exactly.
func normalizeURL(raw string) string {
	if raw == "" {
		return ""
	}
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return raw
	}
	return strings.ToLower(u.Scheme) + "://" + strings.ToLower(u.Host) + u.Path
}
