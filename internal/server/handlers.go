package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/FranksOps/serpent/internal/browser"
	"github.com/FranksOps/serpent/internal/crawler"
	"github.com/FranksOps/serpent/internal/memory"
	"github.com/FranksOps/serpent/internal/metrics"
	"github.com/FranksOps/serpent/internal/search"
)

const crawlTimeout = 5 * time.Minute

func (s *Server) handleSearchGET(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	req := search.Request{
		Query: q.Get("query"),
		Lang:  q.Get("lang"),
	}
	if req.Query == "" {
		req.Query = q.Get("q")
	}

	var parseErr error
	intParam := func(name string) int {
		v := q.Get(name)
		if v == "" {
			return 0
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			parseErr = fmt.Errorf("invalid %s: %q", name, v)
		}
		return n
	}
	req.NumResults = intParam("num_results")
	req.MaxPages = intParam("max_pages")
	req.RetryCount = intParam("retry_count")

	if v := q.Get("sleep_interval"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			parseErr = fmt.Errorf("invalid sleep_interval: %q", v)
		}
		req.SleepInterval = f
	}
	req.UseStealth = q.Get("use_stealth") == "true"
	req.UseProxy = q.Get("use_proxy") == "true"

	if parseErr != nil {
		writeError(w, http.StatusBadRequest, parseErr.Error(), "ValidationError", nil)
		return
	}
	s.runSearch(w, r, req)
}

func (s *Server) handleSearchPOST(w http.ResponseWriter, r *http.Request) {
	var req search.Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body: "+err.Error(), "ValidationError", nil)
		return
	}
	s.runSearch(w, r, req)
}

func (s *Server) runSearch(w http.ResponseWriter, r *http.Request, req search.Request) {
	s.applySearchDefaults(&req)
	if err := req.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, err.Error(), "ValidationError", nil)
		return
	}

	// The budget scales with the requested depth: a 3-page search is
	// allowed three times the single-page time.
	timeout := time.Duration(s.cfg.Search.TimeoutSec) * time.Second * time.Duration(req.MaxPages)
	ctx, cancel := context.WithTimeout(r.Context(), timeout)
	defer cancel()

	resp, err := s.searcher.Search(ctx, req)
	if err != nil {
		s.writeSearchError(w, err)
		return
	}
	writeSuccess(w, http.StatusOK, resp,
		fmt.Sprintf("Found %d results for %q", len(resp.Results), req.Query))
}

func (s *Server) applySearchDefaults(req *search.Request) {
	sc := s.cfg.Search
	if req.Lang == "" {
		req.Lang = sc.DefaultLang
	}
	if req.NumResults <= 0 {
		req.NumResults = sc.MaxResults
	}
	if req.MaxPages <= 0 {
		req.MaxPages = sc.MaxPages
	}
	if req.SleepInterval <= 0 {
		req.SleepInterval = sc.SleepInterval
	}
	if req.RetryCount <= 0 {
		req.RetryCount = sc.RetryCount
	}
	if sc.UseStealth {
		req.UseStealth = true
	}
	if sc.UseProxy {
		req.UseProxy = true
	}
}

func (s *Server) writeSearchError(w http.ResponseWriter, err error) {
	errType := search.ErrorType(err)
	status := http.StatusInternalServerError
	switch errType {
	case search.TypeBlock:
		status = http.StatusBadGateway
	case search.TypeTimeout:
		status = http.StatusGatewayTimeout
	}
	writeError(w, status, err.Error(), errType, nil)
}

func (s *Server) handleBrowserLoad(w http.ResponseWriter, r *http.Request) {
	var req browser.LoadRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body: "+err.Error(), "ValidationError", nil)
		return
	}
	if req.URL == "" {
		writeError(w, http.StatusBadRequest, "url cannot be empty", "ValidationError", nil)
		return
	}

	timeoutSec := req.TimeoutSec
	if timeoutSec <= 0 {
		timeoutSec = float64(s.cfg.Browser.NavTimeoutSec)
	}
	ctx, cancel := context.WithTimeout(r.Context(), time.Duration(timeoutSec)*time.Second)
	defer cancel()

	info, err := s.loader.LoadPage(ctx, req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			writeError(w, http.StatusGatewayTimeout, err.Error(), "LoadTimeout", nil)
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error(), "LoadError", nil)
		return
	}
	writeSuccess(w, http.StatusOK, info, fmt.Sprintf("Loaded %s", info.FinalURL))
}

func (s *Server) handleCrawl(w http.ResponseWriter, r *http.Request) {
	var req crawler.Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body: "+err.Error(), "ValidationError", nil)
		return
	}
	if err := req.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, err.Error(), "ValidationError", nil)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), crawlTimeout)
	defer cancel()

	report, err := s.crawler.Crawl(ctx, req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			writeError(w, http.StatusGatewayTimeout, err.Error(), "CrawlTimeout", nil)
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error(), "CrawlError", nil)
		return
	}
	writeSuccess(w, http.StatusOK, report,
		fmt.Sprintf("Crawled %d pages", report.PagesFetched))
}

type saveInteractionRequest struct {
	AgentID  string         `json:"agent_id"`
	Command  string         `json:"command"`
	Prompt   string         `json:"prompt"`
	Response string         `json:"response"`
	Cost     float64        `json:"cost"`
	Metadata map[string]any `json:"metadata"`
}

func (s *Server) handleMemorySave(w http.ResponseWriter, r *http.Request) {
	var req saveInteractionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body: "+err.Error(), "ValidationError", nil)
		return
	}
	if req.AgentID == "" || req.Command == "" {
		writeError(w, http.StatusBadRequest, "agent_id and command are required", "ValidationError", nil)
		return
	}

	in := memory.NewInteraction(req.AgentID, req.Command, req.Prompt, req.Response, req.Cost, req.Metadata)
	if err := s.store.Save(r.Context(), in); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error(), "StorageError", nil)
		return
	}
	metrics.InteractionsSavedTotal.Inc()
	writeSuccess(w, http.StatusCreated, in, "interaction saved")
}

func (s *Server) handleMemoryList(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := memory.Filter{
		AgentID: q.Get("agent_id"),
		Command: q.Get("command"),
		Limit:   50,
	}
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "invalid limit", "ValidationError", nil)
			return
		}
		filter.Limit = n
	}
	if v := q.Get("offset"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "invalid offset", "ValidationError", nil)
			return
		}
		filter.Offset = n
	}
	if v := q.Get("since"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid since, expected RFC3339", "ValidationError", nil)
			return
		}
		filter.Since = &t
	}

	interactions, err := s.store.List(r.Context(), filter)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error(), "StorageError", nil)
		return
	}
	if interactions == nil {
		interactions = []*memory.Interaction{}
	}
	writeSuccess(w, http.StatusOK, interactions, "")
}

func (s *Server) handleMemoryGet(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	in, err := s.store.Get(r.Context(), id)
	if errors.Is(err, memory.ErrNotFound) {
		writeError(w, http.StatusNotFound, fmt.Sprintf("interaction %q not found", id), "NotFound", nil)
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error(), "StorageError", nil)
		return
	}
	writeSuccess(w, http.StatusOK, in, "")
}

func (s *Server) handleMemoryStats(w http.ResponseWriter, r *http.Request) {
	interactions, err := s.store.List(r.Context(), memory.Filter{})
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error(), "StorageError", nil)
		return
	}
	writeSuccess(w, http.StatusOK, memory.Summarize(interactions), "")
}
