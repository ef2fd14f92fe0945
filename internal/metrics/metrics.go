package metrics

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	SearchesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "serpent_searches_total",
			Help: "Total number of search calls executed",
		},
		[]string{"lang", "outcome"},
	)

	SearchDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "serpent_search_duration_seconds",
			Help:    "Duration of search calls in seconds",
			Buckets: []float64{1, 2, 5, 10, 30, 60, 120},
		},
		[]string{"lang"},
	)

	SearchPagesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "serpent_search_pages_fetched_total",
			Help: "Total results pages fetched across all searches",
		},
	)

	SearchResultsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "serpent_search_results_total",
			Help: "Total deduplicated results returned across all searches",
		},
	)

	SearchRetriesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "serpent_search_retries_total",
			Help: "Total retry attempts consumed by searches",
		},
	)

	BlockDetectionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "serpent_block_detections_total",
			Help: "Total block/challenge pages detected",
		},
		[]string{"source"},
	)

	CrawlRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "serpent_crawl_requests_total",
			Help: "Total crawl requests executed",
		},
		[]string{"outcome"},
	)

	CrawlPagesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "serpent_crawl_pages_total",
			Help: "Total pages fetched by the crawler",
		},
	)

	InteractionsSavedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "serpent_interactions_saved_total",
			Help: "Total agent interactions persisted to memory",
		},
	)
)

// RecordSearch updates the search metrics for one completed call.
// outcome is "success", "partial", or the classified error type.
func RecordSearch(lang, outcome string, duration time.Duration, pages, results, retries int) {
	SearchesTotal.WithLabelValues(lang, outcome).Inc()
	SearchDuration.WithLabelValues(lang).Observe(duration.Seconds())
	SearchPagesTotal.Add(float64(pages))
	SearchResultsTotal.Add(float64(results))
	SearchRetriesTotal.Add(float64(retries))
}

// Server encapsulates an HTTP server exposing Prometheus metrics.
type Server struct {
	srv *http.Server
}

// Start begins listening on the specified port and exposes /metrics.
func Start(port int) *Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", port),
		Handler: mux,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			fmt.Printf("metrics server failed: %v\n", err)
		}
	}()

	return &Server{srv: srv}
}

// Stop gracefully shuts down the metrics server.
func (s *Server) Stop(ctx context.Context) error {
	if s.srv == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	return s.srv.Shutdown(ctx)
}
