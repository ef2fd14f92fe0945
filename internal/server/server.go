// Package server exposes the scraping toolkit as a REST gateway.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/FranksOps/serpent/internal/browser"
	"github.com/FranksOps/serpent/internal/config"
	"github.com/FranksOps/serpent/internal/crawler"
	"github.com/FranksOps/serpent/internal/memory"
	"github.com/FranksOps/serpent/internal/search"
	"github.com/rs/cors"
)

// Searcher runs Google search calls. *search.Searcher satisfies it.
type Searcher interface {
	Search(ctx context.Context, req search.Request) (*search.Response, error)
}

// PageLoader renders arbitrary pages. *browser.Engine satisfies it.
type PageLoader interface {
	LoadPage(ctx context.Context, req browser.LoadRequest) (*browser.PageInfo, error)
}

// Crawler runs site crawls. *crawler.Crawler satisfies it.
type Crawler interface {
	Crawl(ctx context.Context, req crawler.Request) (*crawler.Report, error)
}

// Options bundles the gateway's dependencies.
type Options struct {
	Config   *config.Config
	Searcher Searcher
	Loader   PageLoader
	Crawler  Crawler
	Store    memory.Store
	Logger   *slog.Logger
}

// Server is the REST gateway.
type Server struct {
	cfg       *config.Config
	searcher  Searcher
	loader    PageLoader
	crawler   Crawler
	store     memory.Store
	logger    *slog.Logger
	authToken string
	srv       *http.Server
}

// New assembles the gateway from its dependencies.
func New(opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		cfg:       opts.Config,
		searcher:  opts.Searcher,
		loader:    opts.Loader,
		crawler:   opts.Crawler,
		store:     opts.Store,
		logger:    logger,
		authToken: opts.Config.Auth.Token,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", s.handleHealth)

	api := http.NewServeMux()
	api.HandleFunc("GET /api/search/google", s.handleSearchGET)
	api.HandleFunc("POST /api/search/google", s.handleSearchPOST)
	api.HandleFunc("POST /api/browser/load", s.handleBrowserLoad)
	api.HandleFunc("POST /api/crawl", s.handleCrawl)
	api.HandleFunc("POST /api/memory/interactions", s.handleMemorySave)
	api.HandleFunc("GET /api/memory/interactions", s.handleMemoryList)
	api.HandleFunc("GET /api/memory/interactions/{id}", s.handleMemoryGet)
	api.HandleFunc("GET /api/memory/stats", s.handleMemoryStats)
	mux.Handle("/api/", s.authMiddleware(api))

	var handler http.Handler = s.logMiddleware(mux)
	if opts.Config.Server.CORSEnabled {
		handler = cors.New(cors.Options{
			AllowedOrigins: []string{opts.Config.Server.CORSOrigin},
			AllowedMethods: []string{http.MethodGet, http.MethodPost},
			AllowedHeaders: []string{"Content-Type", "X-API-Token"},
		}).Handler(handler)
	}

	s.srv = &http.Server{
		Addr:              fmt.Sprintf("%s:%d", opts.Config.Server.Host, opts.Config.Server.Port),
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// Handler exposes the assembled handler, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.srv.Handler
}

// Start blocks serving HTTP until Shutdown is called.
func (s *Server) Start() error {
	s.logger.Info("gateway listening", "addr", s.srv.Addr)
	if err := s.srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("gateway server: %w", err)
	}
	return nil
}

// Shutdown drains in-flight requests and stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeSuccess(w, http.StatusOK, map[string]string{"status": "ok"}, "")
}
