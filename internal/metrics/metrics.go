package metrics

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	SearchRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "signlead_search_requests_total",
			Help: "Search backend calls by engine and outcome",
		},
		[]string{"engine", "outcome"},
	)

	SearchDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "signlead_search_duration_seconds",
			Help:    "Duration of search backend calls in seconds",
			Buckets: []float64{0.1, 0.25, 0.5, 1, 2, 5, 10},
		},
		[]string{"engine"},
	)

	FetchRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "signlead_fetch_requests_total",
			Help: "HTML search page fetches by host, status and detected protection",
		},
		[]string{"host", "status", "detection_src"},
	)

	FetchBytesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "signlead_fetch_bytes_total",
			Help: "Bytes downloaded from HTML search backends",
		},
		[]string{"host"},
	)

	ProxyFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "signlead_proxy_failures_total",
			Help: "Proxy failures and blocks during fetches",
		},
		[]string{"proxy_url"},
	)

	CredentialsExhausted = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "signlead_credentials_exhausted_total",
			Help: "Search API credentials that hit their daily quota",
		},
	)

	ResultsRejected = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "signlead_results_rejected_total",
			Help: "Search results rejected by the classifier, by reason",
		},
		[]string{"reason"},
	)

	LeadsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "signlead_leads_total",
			Help: "Accepted leads by state and temperature",
		},
		[]string{"state", "temperature"},
	)

	StateDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "signlead_state_duration_seconds",
			Help:    "Wall time spent gathering one state",
			Buckets: []float64{5, 15, 30, 60, 120, 300, 600},
		},
	)

	PublishTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "signlead_publish_total",
			Help: "State page publish attempts by outcome",
		},
		[]string{"outcome"},
	)
)

// RecordSearch counts one search call. outcome is a short label such as
// "ok", "empty", "rate_limited", "transient", "error" or "exhausted".
func RecordSearch(engine, outcome string, d time.Duration) {
	SearchRequestsTotal.WithLabelValues(engine, outcome).Inc()
	SearchDuration.WithLabelValues(engine).Observe(d.Seconds())
}

// RecordFetch counts one HTML page fetch. status 0 means the request failed
// before a response arrived.
func RecordFetch(host string, status int, detection string, bytes int) {
	statusStr := strconv.Itoa(status)
	if status == 0 {
		statusStr = "error"
	}
	FetchRequestsTotal.WithLabelValues(host, statusStr, detection).Inc()
	FetchBytesTotal.WithLabelValues(host).Add(float64(bytes))
}

// Server encapsulates an HTTP server for Prometheus metrics.
type Server struct {
	srv    *http.Server
	logger *slog.Logger
}

// NewServer prepares a server exposing /metrics on addr (e.g. ":9090").
func NewServer(addr string, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	return &Server{
		srv: &http.Server{
			Addr:              addr,
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
		},
		logger: logger,
	}
}

// Serve listens until ctx is canceled, then shuts the server down. It is
// meant to run in an errgroup next to the scrape.
func (s *Server) Serve(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.srv.Addr)
	if err != nil {
		return err
	}
	s.logger.Info("metrics listening", "addr", ln.Addr().String())

	errCh := make(chan error, 1)
	go func() {
		if err := s.srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		return s.Stop(context.Background())
	}
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
