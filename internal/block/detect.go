package block

import "strings"

// Detector examines rendered page HTML to determine whether the search
// target flagged the request as automated and served a block or challenge
// page instead of results.
type Detector func(html string) (detected bool, source string)

// DefaultDetectors returns the standard list of block-page detectors.
func DefaultDetectors() []Detector {
	return []Detector{
		detectUnusualTraffic,
		detectCaptcha,
		detectConsentWall,
	}
}

// FromPatterns builds detectors from raw substring patterns, typically
// loaded from configuration. The matching is case-insensitive. Pattern
// detection is heuristic and site-specific, which is why it is kept
// configurable instead of hard-coded.
func FromPatterns(patterns []string) []Detector {
	detectors := make([]Detector, 0, len(patterns))
	for _, p := range patterns {
		pattern := strings.ToLower(p)
		detectors = append(detectors, func(html string) (bool, string) {
			if strings.Contains(strings.ToLower(html), pattern) {
				return true, "pattern:" + pattern
			}
			return false, ""
		})
	}
	return detectors
}

// Analyze runs the HTML through all provided detectors and reports the
// first detection source, if any.
func Analyze(html string, detectors []Detector) (bool, string) {
	for _, d := range detectors {
		if detected, source := d(html); detected {
			return true, source
		}
	}
	return false, ""
}

// detectUnusualTraffic matches Google's "unusual traffic" interstitial,
// served in English regardless of the requested result language, plus the
// localized Terms of Service variant observed for it-IT sessions.
func detectUnusualTraffic(html string) (bool, string) {
	if strings.Contains(html, "detected unusual traffic") ||
		strings.Contains(html, "violazione dei Termini di servizio") {
		return true, "unusual-traffic"
	}
	return false, ""
}

// detectCaptcha matches CAPTCHA challenge pages.
func detectCaptcha(html string) (bool, string) {
	if strings.Contains(html, "solving the above CAPTCHA") ||
		strings.Contains(html, "g-recaptcha") ||
		strings.Contains(html, "recaptcha/api") {
		return true, "captcha"
	}
	return false, ""
}

// detectConsentWall matches the consent redirect page, which carries no
// results and indicates the session cookies were rejected.
func detectConsentWall(html string) (bool, string) {
	if strings.Contains(html, "consent.google.com") &&
		!strings.Contains(html, "id=\"search\"") {
		return true, "consent-wall"
	}
	return false, ""
}
