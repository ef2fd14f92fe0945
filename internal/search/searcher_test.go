package search

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/FranksOps/serpent/internal/browser"
)

type pageResp struct {
	html string
	err  error
}

// fakeSession replays scripted page responses in order.
type fakeSession struct {
	t         *testing.T
	responses []pageResp
	next      int
	urls      []string
	cookies   map[string]string
	closed    bool
}

func (s *fakeSession) SetCookie(name, value, domain string) error {
	if s.cookies == nil {
		s.cookies = make(map[string]string)
	}
	s.cookies[name] = domain
	return nil
}

func (s *fakeSession) FetchHTML(ctx context.Context, pageURL string, settle time.Duration) (string, error) {
	if s.next >= len(s.responses) {
		s.t.Fatalf("unexpected fetch #%d of %q", s.next+1, pageURL)
	}
	s.urls = append(s.urls, pageURL)
	r := s.responses[s.next]
	s.next++
	return r.html, r.err
}

func (s *fakeSession) Close() { s.closed = true }

// fakeOpener hands out scripted sessions, one per attempt.
type fakeOpener struct {
	t        *testing.T
	sessions []*fakeSession
	openErr  error
	opened   int
	calls    int
}

func (o *fakeOpener) Open(ctx context.Context, opts browser.SessionOptions) (Session, error) {
	o.calls++
	if o.openErr != nil {
		return nil, o.openErr
	}
	if o.opened >= len(o.sessions) {
		o.t.Fatalf("unexpected session open #%d", o.opened+1)
	}
	s := o.sessions[o.opened]
	o.opened++
	return s, nil
}

func newTestSearcher(opener Opener) *Searcher {
	return New(opener, Config{
		BackoffBase: time.Millisecond,
		Logger:      slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
}

const blockHTML = `<html><body>Our systems have detected unusual traffic from your computer network.</body></html>`

func TestSearch_SinglePage(t *testing.T) {
	session := &fakeSession{t: t, responses: []pageResp{
		{html: resultsPage(true,
			standardBlock("A", "https://a.example/", "da"),
			standardBlock("B", "https://b.example/", "db"),
			standardBlock("C", "https://c.example/", "dc"),
		)},
	}}
	opener := &fakeOpener{t: t, sessions: []*fakeSession{session}}

	resp, err := newTestSearcher(opener).Search(context.Background(),
		Request{Query: "golang", NumResults: 5, MaxPages: 1})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(resp.Results) != 3 {
		t.Errorf("expected 3 results, got %d", len(resp.Results))
	}
	if resp.PagesFetched != 1 {
		t.Errorf("pages_fetched=%d, want 1", resp.PagesFetched)
	}
	if resp.Retries != 0 {
		t.Errorf("retries=%d, want 0", resp.Retries)
	}
	if !strings.Contains(resp.Stats, "risultati") {
		t.Errorf("stats not propagated from page 1, got %q", resp.Stats)
	}
	if len(session.urls) != 1 || session.urls[0] != PageURL("golang", "it", 1) {
		t.Errorf("unexpected fetched URLs: %v", session.urls)
	}
	if !session.closed {
		t.Error("session must be closed after a successful call")
	}
	if session.cookies["CONSENT"] != ".google.com" {
		t.Errorf("consent cookie not set, got %v", session.cookies)
	}
}

func TestSearch_EmptyFirstPageIsSuccess(t *testing.T) {
	session := &fakeSession{t: t, responses: []pageResp{
		{html: `<html><body><div id="search"></div></body></html>`},
	}}
	opener := &fakeOpener{t: t, sessions: []*fakeSession{session}}

	resp, err := newTestSearcher(opener).Search(context.Background(),
		Request{Query: "no hits whatsoever", MaxPages: 3})
	if err != nil {
		t.Fatalf("a genuinely empty first page is not an error: %v", err)
	}
	if len(resp.Results) != 0 {
		t.Errorf("expected no results, got %+v", resp.Results)
	}
	if resp.PagesFetched != 1 {
		t.Errorf("pages_fetched=%d, want 1", resp.PagesFetched)
	}
	if !session.closed {
		t.Error("session not closed")
	}
}

func TestSearch_NumResultsCapsPerPage(t *testing.T) {
	session := &fakeSession{t: t, responses: []pageResp{
		{html: resultsPage(false,
			standardBlock("1", "https://r.example/1", ""),
			standardBlock("2", "https://r.example/2", ""),
			standardBlock("3", "https://r.example/3", ""),
			standardBlock("4", "https://r.example/4", ""),
		)},
	}}
	opener := &fakeOpener{t: t, sessions: []*fakeSession{session}}

	resp, err := newTestSearcher(opener).Search(context.Background(),
		Request{Query: "capped", NumResults: 2})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(resp.Results) != 2 {
		t.Errorf("expected per-page cap of 2, got %d results", len(resp.Results))
	}
}

func TestSearch_TwoPagesWithOverlap(t *testing.T) {
	session := &fakeSession{t: t, responses: []pageResp{
		{html: resultsPage(true,
			standardBlock("A", "https://a.example/", ""),
			standardBlock("B", "https://b.example/", ""),
			standardBlock("C", "https://c.example/", ""),
		)},
		{html: resultsPage(true,
			standardBlock("C again", "https://c.example/?ved=2ahUK", ""),
			standardBlock("D", "https://d.example/", ""),
			standardBlock("E", "https://e.example/", ""),
		)},
	}}
	opener := &fakeOpener{t: t, sessions: []*fakeSession{session}}

	resp, err := newTestSearcher(opener).Search(context.Background(),
		Request{Query: "overlap", NumResults: 5, MaxPages: 2})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(resp.Results) != 5 {
		t.Fatalf("expected 5 deduplicated results, got %d: %+v", len(resp.Results), resp.Results)
	}
	if resp.PagesFetched != 2 {
		t.Errorf("pages_fetched=%d, want 2", resp.PagesFetched)
	}
	wantPages := []int{1, 1, 1, 2, 2}
	for i, r := range resp.Results {
		if r.Page != wantPages[i] {
			t.Errorf("result %d tagged page %d, want %d", i, r.Page, wantPages[i])
		}
	}
	if resp.Results[2].Title != "C" {
		t.Errorf("first occurrence of duplicate must win, got %q", resp.Results[2].Title)
	}
	if len(session.urls) != 2 || !strings.Contains(session.urls[1], "start=10") {
		t.Errorf("second fetch must target the start=10 offset, got %v", session.urls)
	}
}

func TestSearch_StopsWithoutNextPage(t *testing.T) {
	session := &fakeSession{t: t, responses: []pageResp{
		{html: resultsPage(false, standardBlock("Only", "https://only.example/", ""))},
	}}
	opener := &fakeOpener{t: t, sessions: []*fakeSession{session}}

	resp, err := newTestSearcher(opener).Search(context.Background(),
		Request{Query: "short tail", MaxPages: 5})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if resp.PagesFetched != 1 {
		t.Errorf("pagination must stop when no next page exists, pages_fetched=%d", resp.PagesFetched)
	}
}

func TestSearch_BlockOnFirstPageIsTerminal(t *testing.T) {
	session := &fakeSession{t: t, responses: []pageResp{{html: blockHTML}}}
	opener := &fakeOpener{t: t, sessions: []*fakeSession{session}}

	_, err := newTestSearcher(opener).Search(context.Background(),
		Request{Query: "blocked", RetryCount: 3})
	if err == nil {
		t.Fatal("expected a block error")
	}
	var be *BlockError
	if !errors.As(err, &be) {
		t.Fatalf("expected BlockError, got %T: %v", err, err)
	}
	if be.Source != "unusual-traffic" {
		t.Errorf("source=%q", be.Source)
	}
	if got := ErrorType(err); got != TypeBlock {
		t.Errorf("ErrorType=%q, want %q", got, TypeBlock)
	}
	if opener.calls != 1 {
		t.Errorf("a block must never be retried, attempts=%d", opener.calls)
	}
	if !session.closed {
		t.Error("session not closed on block")
	}
}

func TestSearch_PartialOnMidPaginationBlock(t *testing.T) {
	session := &fakeSession{t: t, responses: []pageResp{
		{html: resultsPage(true,
			standardBlock("A", "https://a.example/", ""),
			standardBlock("B", "https://b.example/", ""),
		)},
		{html: blockHTML},
	}}
	opener := &fakeOpener{t: t, sessions: []*fakeSession{session}}

	resp, err := newTestSearcher(opener).Search(context.Background(),
		Request{Query: "partial", MaxPages: 3})
	if err != nil {
		t.Fatalf("partial results must beat total failure: %v", err)
	}
	if len(resp.Results) != 2 {
		t.Errorf("expected 2 kept results, got %d", len(resp.Results))
	}
	if resp.PagesFetched != 1 {
		t.Errorf("blocked page must not count as fetched, pages_fetched=%d", resp.PagesFetched)
	}
	if !resp.Partial {
		t.Error("response not flagged partial")
	}
}

func TestSearch_PartialOnMidPaginationFetchFailure(t *testing.T) {
	session := &fakeSession{t: t, responses: []pageResp{
		{html: resultsPage(true, standardBlock("A", "https://a.example/", ""))},
		{err: &browser.NavigationError{URL: "https://www.google.com/search", Err: errors.New("net::ERR_TIMED_OUT")}},
	}}
	opener := &fakeOpener{t: t, sessions: []*fakeSession{session}}

	resp, err := newTestSearcher(opener).Search(context.Background(),
		Request{Query: "flaky tail", MaxPages: 2, RetryCount: 2})
	if err != nil {
		t.Fatalf("fetch failure after results must not fail the call: %v", err)
	}
	if len(resp.Results) != 1 || resp.PagesFetched != 1 || !resp.Partial {
		t.Errorf("unexpected partial response: %+v", resp)
	}
	if opener.calls != 1 {
		t.Errorf("partial success must not trigger a retry, attempts=%d", opener.calls)
	}
}

func TestSearch_RetriesTransientFailure(t *testing.T) {
	failing := &fakeSession{t: t, responses: []pageResp{
		{err: &browser.NavigationError{URL: "https://www.google.com/search", Err: errors.New("net::ERR_CONNECTION_RESET")}},
	}}
	recovering := &fakeSession{t: t, responses: []pageResp{
		{html: resultsPage(false, standardBlock("Recovered", "https://ok.example/", ""))},
	}}
	opener := &fakeOpener{t: t, sessions: []*fakeSession{failing, recovering}}

	resp, err := newTestSearcher(opener).Search(context.Background(),
		Request{Query: "transient", RetryCount: 2})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if resp.Retries != 1 {
		t.Errorf("retries=%d, want 1", resp.Retries)
	}
	if len(resp.Results) != 1 {
		t.Errorf("expected 1 result after retry, got %d", len(resp.Results))
	}
	if !failing.closed || !recovering.closed {
		t.Error("every attempt's session must be closed")
	}
}

func TestSearch_RetriesExhausted(t *testing.T) {
	navErr := func() pageResp {
		return pageResp{err: &browser.NavigationError{URL: "https://www.google.com/search", Err: errors.New("net::ERR_TIMED_OUT")}}
	}
	first := &fakeSession{t: t, responses: []pageResp{navErr()}}
	second := &fakeSession{t: t, responses: []pageResp{navErr()}}
	opener := &fakeOpener{t: t, sessions: []*fakeSession{first, second}}

	_, err := newTestSearcher(opener).Search(context.Background(),
		Request{Query: "doomed", RetryCount: 1})
	if err == nil {
		t.Fatal("expected failure after exhausting retries")
	}
	if !strings.Contains(err.Error(), "after 2 attempts") {
		t.Errorf("error should report attempt count: %v", err)
	}
	if got := ErrorType(err); got != TypeNavigation {
		t.Errorf("ErrorType=%q, want %q", got, TypeNavigation)
	}
	if opener.calls != 2 {
		t.Errorf("attempts=%d, want 2", opener.calls)
	}
	if !first.closed || !second.closed {
		t.Error("sessions leaked on failure path")
	}
}

func TestSearch_LaunchFailureIsTerminal(t *testing.T) {
	opener := &fakeOpener{t: t, openErr: &browser.LaunchError{Err: errors.New("chrome executable not found")}}

	_, err := newTestSearcher(opener).Search(context.Background(),
		Request{Query: "no browser", RetryCount: 3})
	if err == nil {
		t.Fatal("expected launch error")
	}
	if got := ErrorType(err); got != TypeLaunch {
		t.Errorf("ErrorType=%q, want %q", got, TypeLaunch)
	}
	if opener.calls != 1 {
		t.Errorf("launch failures must not be retried, attempts=%d", opener.calls)
	}
}

func TestSearch_CancellationStopsRetries(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	session := &fakeSession{t: t, responses: []pageResp{{err: context.Canceled}}}
	opener := &fakeOpener{t: t, sessions: []*fakeSession{session}}

	cancel()
	_, err := newTestSearcher(opener).Search(ctx,
		Request{Query: "cancelled", RetryCount: 5})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if opener.calls > 1 {
		t.Errorf("cancelled call must not retry, attempts=%d", opener.calls)
	}
}

func TestRequestValidate(t *testing.T) {
	tests := []struct {
		name    string
		req     Request
		wantErr bool
	}{
		{"empty query", Request{}, true},
		{"defaults filled", Request{Query: "x"}, false},
		{"num_results too high", Request{Query: "x", NumResults: 21}, true},
		{"max_pages too high", Request{Query: "x", MaxPages: 11}, true},
		{"negative sleep", Request{Query: "x", SleepInterval: -1}, true},
		{"negative retries", Request{Query: "x", RetryCount: -1}, true},
	}

	for _, tt := range tests {
		err := tt.req.Validate()
		if (err != nil) != tt.wantErr {
			t.Errorf("%s: err=%v, wantErr=%v", tt.name, err, tt.wantErr)
		}
	}

	r := Request{Query: "x"}
	if err := r.Validate(); err != nil {
		t.Fatal(err)
	}
	if r.Lang != "it" || r.NumResults != 5 || r.MaxPages != 1 {
		t.Errorf("defaults not applied: %+v", r)
	}
}

func TestErrorType_Timeout(t *testing.T) {
	wrapped := &browser.NavigationError{URL: "https://www.google.com/search", Err: context.DeadlineExceeded}
	if got := ErrorType(wrapped); got != TypeNavigation {
		t.Errorf("explicit navigation error wins over timeout, got %q", got)
	}
	if got := ErrorType(context.DeadlineExceeded); got != TypeTimeout {
		t.Errorf("ErrorType=%q, want %q", got, TypeTimeout)
	}
	if got := ErrorType(errors.New("boom")); got != TypeUnclassified {
		t.Errorf("ErrorType=%q, want %q", got, TypeUnclassified)
	}
}
