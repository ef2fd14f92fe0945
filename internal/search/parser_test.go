package search

import (
	"fmt"
	"strings"
	"testing"
)

const googlePageURL = "https://www.google.com/search?q=test&hl=it&pws=0&gl=it"

// standardBlock renders one result in the classic div.g layout.
func standardBlock(title, href, desc string) string {
	return fmt.Sprintf(
		`<div class="g"><a href="%s"><h3>%s</h3></a><div class="VwiC3b">%s</div></div>`,
		href, title, desc)
}

func resultsPage(hasNext bool, blocks ...string) string {
	var b strings.Builder
	b.WriteString(`<html><body><div id="result-stats">Circa 1.230.000 risultati (0,42 secondi)</div><div id="search">`)
	for _, blk := range blocks {
		b.WriteString(blk)
	}
	b.WriteString(`</div>`)
	if hasNext {
		b.WriteString(`<a id="pnnext" href="/search?q=test&start=10"><span>Avanti</span></a>`)
	}
	b.WriteString(`</body></html>`)
	return b.String()
}

func TestParsePage_StandardLayout(t *testing.T) {
	html := resultsPage(true,
		standardBlock("First Result", "https://first.example/page", "first description"),
		standardBlock("Second Result", "https://second.example/page", "second description"),
	)

	parsed, err := ParsePage(html, googlePageURL)
	if err != nil {
		t.Fatalf("ParsePage: %v", err)
	}
	if len(parsed.Results) != 2 {
		t.Fatalf("expected 2 results, got %d: %+v", len(parsed.Results), parsed.Results)
	}
	r := parsed.Results[0]
	if r.Title != "First Result" || r.URL != "https://first.example/page" || r.Description != "first description" {
		t.Errorf("unexpected first result: %+v", r)
	}
	if !parsed.HasNext {
		t.Error("expected HasNext with a#pnnext present")
	}
	if !strings.Contains(parsed.Stats, "risultati") {
		t.Errorf("expected stats banner, got %q", parsed.Stats)
	}
}

func TestParsePage_AlternateContainers(t *testing.T) {
	// Same content under a rotated class name further down the chain.
	html := resultsPage(false,
		`<div class="tF2Cxc"><a href="https://alt.example/doc"><h3>Alt Layout</h3></a></div>`,
	)

	parsed, err := ParsePage(html, googlePageURL)
	if err != nil {
		t.Fatalf("ParsePage: %v", err)
	}
	if len(parsed.Results) != 1 {
		t.Fatalf("expected 1 result, got %d", len(parsed.Results))
	}
	if parsed.Results[0].URL != "https://alt.example/doc" {
		t.Errorf("unexpected URL: %q", parsed.Results[0].URL)
	}
	if parsed.HasNext {
		t.Error("no next-page affordance in fixture")
	}
}

func TestParsePage_MissingDescription(t *testing.T) {
	html := resultsPage(false,
		`<div class="g"><a href="https://bare.example/"><h3>No Description</h3></a></div>`,
	)

	parsed, err := ParsePage(html, googlePageURL)
	if err != nil {
		t.Fatalf("ParsePage: %v", err)
	}
	if len(parsed.Results) != 1 {
		t.Fatalf("expected 1 result, got %d", len(parsed.Results))
	}
	if parsed.Results[0].Description != "" {
		t.Errorf("expected empty description, got %q", parsed.Results[0].Description)
	}
}

func TestParsePage_MissingURLDiscarded(t *testing.T) {
	html := resultsPage(false,
		`<div class="g"><h3>Orphan Title</h3></div>`,
		standardBlock("Kept", "https://kept.example/", "desc"),
	)

	parsed, err := ParsePage(html, googlePageURL)
	if err != nil {
		t.Fatalf("ParsePage: %v", err)
	}
	if len(parsed.Results) != 1 {
		t.Fatalf("block without a URL must be discarded, got %d results", len(parsed.Results))
	}
	if parsed.Results[0].Title != "Kept" {
		t.Errorf("wrong survivor: %+v", parsed.Results[0])
	}
}

func TestParsePage_RelativeURLResolved(t *testing.T) {
	html := resultsPage(false,
		`<div class="g"><a href="/docs/guide"><h3>Relative</h3></a></div>`,
	)

	parsed, err := ParsePage(html, "https://portal.example/search?q=x")
	if err != nil {
		t.Fatalf("ParsePage: %v", err)
	}
	if len(parsed.Results) != 1 {
		t.Fatalf("expected 1 result, got %d", len(parsed.Results))
	}
	if got := parsed.Results[0].URL; got != "https://portal.example/docs/guide" {
		t.Errorf("relative link not resolved, got %q", got)
	}
}

func TestParsePage_GoogleInternalFiltered(t *testing.T) {
	html := resultsPage(false,
		`<div class="g"><a href="https://www.google.com/preferences"><h3>Settings</h3></a></div>`,
		`<div class="g"><a href="https://webcache.googleusercontent.com/x"><h3>Cache</h3></a></div>`,
		standardBlock("Real", "https://real.example/", "desc"),
	)

	parsed, err := ParsePage(html, googlePageURL)
	if err != nil {
		t.Fatalf("ParsePage: %v", err)
	}
	if len(parsed.Results) != 1 || parsed.Results[0].URL != "https://real.example/" {
		t.Errorf("internal links must be filtered, got %+v", parsed.Results)
	}
}

func TestParsePage_GenericLinkFallback(t *testing.T) {
	// No known container class at all.
	html := `<html><body>
		<a href="https://fallback.example/a">Fallback A</a>
		<a href="https://www.google.com/intl/it/about">About</a>
		<a href="https://fallback.example/b"><h3>Fallback B</h3></a>
	</body></html>`

	parsed, err := ParsePage(html, googlePageURL)
	if err != nil {
		t.Fatalf("ParsePage: %v", err)
	}
	if len(parsed.Results) != 2 {
		t.Fatalf("expected 2 fallback results, got %d: %+v", len(parsed.Results), parsed.Results)
	}
	if parsed.Results[1].Title != "Fallback B" {
		t.Errorf("h3 text should win as title, got %q", parsed.Results[1].Title)
	}
}

func TestParsePage_EmptyPage(t *testing.T) {
	parsed, err := ParsePage(`<html><body><div id="search"></div></body></html>`, googlePageURL)
	if err != nil {
		t.Fatalf("empty page must not error: %v", err)
	}
	if len(parsed.Results) != 0 {
		t.Errorf("expected no results, got %+v", parsed.Results)
	}
	if parsed.HasNext {
		t.Error("empty page cannot have a next page")
	}
}

func TestParsePage_NextPageAriaVariants(t *testing.T) {
	for _, label := range []string{"Pagina successiva", "Next page", "Next"} {
		html := fmt.Sprintf(
			`<html><body>%s<a aria-label="%s" href="/search?start=10">&gt;</a></body></html>`,
			standardBlock("R", "https://r.example/", ""), label)
		parsed, err := ParsePage(html, googlePageURL)
		if err != nil {
			t.Fatalf("ParsePage: %v", err)
		}
		if !parsed.HasNext {
			t.Errorf("aria-label %q not recognized as next-page affordance", label)
		}
	}
}
