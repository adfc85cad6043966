package http

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"time"

	"github.com/andrew-lee-architect/netidx/path"
	"github.com/andrew-lee-architect/netidx/resolver"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// Prober abstracts a readiness check against the default backend: can the
// probe still resolve a known path through it. Satisfied by
// *resolver.ResolverRead.
type Prober interface {
	Resolve(ctx context.Context, paths []path.Path) ([]resolver.Resolution, error)
}

type Server struct {
	srv       *http.Server
	probePath path.Path
	prober    Prober
	writerOK  func() bool
	logger    *zap.Logger
}

// NewServer wires the health/ready/metrics endpoints. prober checks the
// default read connection by resolving probePath; writerOK (optional) also
// folds in a liveness signal from the write side, such as "has the last
// heartbeat succeeded within the configured interval".
func NewServer(addr string, probePath path.Path, prober Prober, writerOK func() bool, logger *zap.Logger) *Server {
	s := &Server{
		srv:       &http.Server{Addr: addr},
		probePath: probePath,
		prober:    prober,
		writerOK:  writerOK,
		logger:    logger,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", s.handleHealthz)
	mux.HandleFunc("/readyz", s.handleReadyz)
	mux.Handle("/metrics", promhttp.Handler())
	s.srv.Handler = mux

	return s
}

func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.srv.Addr)
	if err != nil {
		return err
	}
	s.logger.Info("HTTP server listening", zap.String("addr", s.srv.Addr))
	go func() {
		if err := s.srv.Serve(ln); err != nil && err != http.ErrServerClosed {
			s.logger.Error("HTTP server error", zap.Error(err))
		}
	}()
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

func (s *Server) handleReadyz(w http.ResponseWriter, r *http.Request) {
	checks := map[string]string{}
	allOK := true

	if s.prober != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		if _, err := s.prober.Resolve(ctx, []path.Path{s.probePath}); err != nil {
			checks["resolver_read"] = "error"
			allOK = false
		} else {
			checks["resolver_read"] = "ok"
		}
	} else {
		checks["resolver_read"] = "error"
		allOK = false
	}

	if s.writerOK != nil {
		if s.writerOK() {
			checks["resolver_write"] = "ok"
		} else {
			checks["resolver_write"] = "stale_heartbeat"
			allOK = false
		}
	}

	w.Header().Set("Content-Type", "application/json")
	status := "ready"
	httpStatus := http.StatusOK
	if !allOK {
		status = "not_ready"
		httpStatus = http.StatusServiceUnavailable
	}

	w.WriteHeader(httpStatus)
	json.NewEncoder(w).Encode(map[string]any{
		"status": status,
		"checks": checks,
	})
}
