// Package web provides the HTTP server that receives delivered listings and
// answers queries against the latest snapshot.
package web

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/evcraddock/listing-tracker/internal/listing"
	"github.com/evcraddock/listing-tracker/internal/logging"
)

// maxBodyBytes bounds POST /update_properties bodies.
const maxBodyBytes = 50 << 20

// DefaultRadiusMiles is used by /properties_within_radius when no miles parameter is given.
const DefaultRadiusMiles = 65.0

// Snapshots is the read side of the snapshot store the server queries.
type Snapshots interface {
	Latest(ctx context.Context) (int, []listing.Record, error)
	Load(ctx context.Context, day int) ([]listing.Record, error)
}

// Options configures a Server.
type Options struct {
	// ReceivedPath is where POST /update_properties writes the delivered records.
	ReceivedPath string
	// RadiusMiles overrides DefaultRadiusMiles when positive.
	RadiusMiles float64
	Logger      *slog.Logger
}

// Server is the listing HTTP server.
type Server struct {
	snapshots    Snapshots
	receivedPath string
	radiusMiles  float64
	logger       *slog.Logger
	mux          *http.ServeMux
}

// NewServer creates a server reading snapshots from snaps.
func NewServer(snaps Snapshots, opts Options) (*Server, error) {
	if snaps == nil {
		return nil, errors.New("snapshot source is required")
	}
	if opts.ReceivedPath == "" {
		return nil, errors.New("received path is required")
	}

	s := &Server{
		snapshots:    snaps,
		receivedPath: opts.ReceivedPath,
		radiusMiles:  opts.RadiusMiles,
		logger:       opts.Logger,
		mux:          http.NewServeMux(),
	}
	if s.radiusMiles <= 0 {
		s.radiusMiles = DefaultRadiusMiles
	}
	if s.logger == nil {
		s.logger = logging.For("web")
	}

	s.mux.HandleFunc("/update_properties", s.handleUpdateProperties)
	s.mux.HandleFunc("/properties_within_radius", s.handleWithinRadius)
	s.mux.HandleFunc("GET /api/snapshots/latest", s.handleLatestSnapshot)
	s.mux.HandleFunc("GET /api/snapshots/{day}", s.handleSnapshot)
	s.mux.HandleFunc("/health", handleHealth)
	s.mux.Handle("GET /metrics", promhttp.Handler())

	return s, nil
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

// Handler returns the server wrapped in request logging.
func (s *Server) Handler() http.Handler {
	return logging.RequestLogger(s)
}

// ListenAndServe serves on port until ctx is done, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context, port int) error {
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("listening", "addr", "http://localhost"+srv.Addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutting down: %w", err)
		}
		return nil
	}
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	apiJSON(w, map[string]string{"status": "ok"}, http.StatusOK)
}
