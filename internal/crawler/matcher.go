package crawler

import (
	"strings"
	"unicode"
)

// TermMatch records occurrences of one search term within a page, with the
// sentences the term appeared in.
type TermMatch struct {
	Term      string   `json:"term"`
	Count     int      `json:"count"`
	Sentences []string `json:"sentences"`
}

// findTermMatches scans content for each term, case-insensitively.
// Sentences are split naively on '.', '!' and '?'.
func findTermMatches(content string, terms []string) []TermMatch {
	if len(content) == 0 || len(terms) == 0 {
		return nil
	}

	lowerContent := strings.ToLower(content)
	sentences := splitSentences(content)
	lowerSentences := make([]string, len(sentences))
	for i, s := range sentences {
		lowerSentences[i] = strings.ToLower(s)
	}

	matches := make([]TermMatch, 0, len(terms))
	for _, term := range terms {
		lowerTerm := strings.ToLower(term)
		count := strings.Count(lowerContent, lowerTerm)
		if count == 0 {
			continue
		}

		var matched []string
		for i, ls := range lowerSentences {
			if strings.Contains(ls, lowerTerm) {
				matched = append(matched, sentences[i])
			}
		}
		matches = append(matches, TermMatch{Term: term, Count: count, Sentences: matched})
	}
	return matches
}

// splitSentences splits text on sentence delimiters, keeping the delimiter
// attached and trimming surrounding whitespace.
func splitSentences(text string) []string {
	if len(text) == 0 {
		return nil
	}

	sentences := make([]string, 0, len(text)/50+1)
	start := 0
	for i, r := range text {
		if r == '.' || r == '!' || r == '?' {
			end := i + 1
			for end < len(text) && unicode.IsSpace(rune(text[end])) {
				end++
			}
			if s := strings.TrimSpace(text[start:end]); s != "" {
				sentences = append(sentences, s)
			}
			start = end
		}
	}
	if start < len(text) {
		if s := strings.TrimSpace(text[start:]); s != "" {
			sentences = append(sentences, s)
		}
	}
	return sentences
}
