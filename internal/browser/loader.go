package browser

import (
	"context"
	"encoding/json"
	"time"
)

// LoadRequest describes a single page-load operation for the gateway's
// browser endpoint.
type LoadRequest struct {
	URL        string  `json:"url"`
	UserAgent  string  `json:"user_agent,omitempty"`
	WaitMS     int     `json:"wait_time,omitempty"`
	UseStealth bool    `json:"use_stealth,omitempty"`
	UseProxy   bool    `json:"use_proxy,omitempty"`
	EvaluateJS string  `json:"evaluate_js,omitempty"`
	TimeoutSec float64 `json:"timeout,omitempty"`
}

// PageInfo is the result of a page load.
type PageInfo struct {
	URL      string          `json:"url"`
	FinalURL string          `json:"final_url"`
	Title    string          `json:"title"`
	HTML     string          `json:"html"`
	JSResult json.RawMessage `json:"js_result,omitempty"`
	Elapsed  float64         `json:"elapsed_seconds"`
}

// LoadPage opens a fresh session, renders the URL and returns the page
// content. The session is released on every path.
func (e *Engine) LoadPage(ctx context.Context, req LoadRequest) (*PageInfo, error) {
	timeout := time.Duration(req.TimeoutSec * float64(time.Second))
	if timeout <= 0 {
		timeout = 60 * time.Second
	}

	start := time.Now()

	session, err := e.NewSession(ctx, SessionOptions{
		UserAgent: req.UserAgent,
		Stealth:   req.UseStealth,
		UseProxy:  req.UseProxy,
		Timeout:   timeout,
	})
	if err != nil {
		return nil, err
	}
	defer session.Close()

	settle := time.Duration(req.WaitMS) * time.Millisecond
	html, err := session.FetchHTML(ctx, req.URL, settle)
	if err != nil {
		return nil, err
	}

	title, err := session.Title()
	if err != nil {
		return nil, err
	}
	finalURL, err := session.Location()
	if err != nil {
		return nil, err
	}

	info := &PageInfo{
		URL:      req.URL,
		FinalURL: finalURL,
		Title:    title,
		HTML:     html,
		Elapsed:  time.Since(start).Seconds(),
	}

	if req.EvaluateJS != "" {
		var raw json.RawMessage
		if err := session.Evaluate(req.EvaluateJS, &raw); err != nil {
			return nil, err
		}
		info.JSResult = raw
	}

	e.logger.Info("page loaded",
		"url", req.URL,
		"final_url", finalURL,
		"bytes", len(html),
		"elapsed", info.Elapsed)

	return info, nil
}
