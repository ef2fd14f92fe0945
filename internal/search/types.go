package search

import (
	"errors"
	"fmt"
)

const (
	// maxResultsPerPage caps how many results are kept per page; Google
	// serves at most ~10 organic results per page anyway, the cap guards
	// against pathological requests.
	maxResultsPerPage = 20
	// maxPages caps how deep pagination may go.
	maxPages = 10
)

// Request describes one Google search call. It is validated once on
// acceptance and treated as immutable afterwards.
type Request struct {
	Query         string  `json:"query"`
	Lang          string  `json:"lang"`
	NumResults    int     `json:"num_results"`
	MaxPages      int     `json:"max_pages"`
	SleepInterval float64 `json:"sleep_interval"`
	UseStealth    bool    `json:"use_stealth"`
	UseProxy      bool    `json:"use_proxy"`
	RetryCount    int     `json:"retry_count"`
}

// Validate checks the request and fills the remaining zero values. Lang
// defaults to "it" mirroring the gateway's historical deployment.
func (r *Request) Validate() error {
	if r.Query == "" {
		return errors.New("query cannot be empty")
	}
	if r.Lang == "" {
		r.Lang = "it"
	}
	if r.NumResults <= 0 {
		r.NumResults = 5
	}
	if r.NumResults > maxResultsPerPage {
		return fmt.Errorf("num_results cannot exceed %d", maxResultsPerPage)
	}
	if r.MaxPages <= 0 {
		r.MaxPages = 1
	}
	if r.MaxPages > maxPages {
		return fmt.Errorf("max_pages cannot exceed %d", maxPages)
	}
	if r.SleepInterval < 0 {
		return errors.New("sleep_interval cannot be negative")
	}
	if r.RetryCount < 0 {
		return errors.New("retry_count cannot be negative")
	}
	return nil
}

// Result is one organic search result. Page is the 1-based results page
// the result was extracted from.
type Result struct {
	Title       string `json:"title"`
	URL         string `json:"url"`
	Description string `json:"description"`
	Page        int    `json:"page"`
}

// Response is the outcome of a completed search call. Results are in
// first-seen order: page-ascending, extraction order within a page, with
// cross-page duplicates removed.
type Response struct {
	Query        string   `json:"query"`
	Results      []Result `json:"results"`
	Stats        string   `json:"stats"`
	PagesFetched int      `json:"pages_fetched"`

	// Retries is how many retry attempts the call consumed. Not part of
	// the wire contract.
	Retries int `json:"-"`

	// Partial marks a call that stopped early on a block or fetch failure
	// but still carries results. Not part of the wire contract.
	Partial bool `json:"-"`
}
