package server

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/ahmethakanbesel/fxreport/internal/metrics"
	"github.com/ahmethakanbesel/fxreport/internal/report"
)

type Server struct {
	srv *http.Server
}

// New creates a server. baseCtx is the base context of every request, so
// cancelling it stops in-flight upstream fetches during shutdown.
func New(baseCtx context.Context, port string, reportSvc *report.Service, m *metrics.Metrics) *Server {
	return &Server{
		srv: &http.Server{
			Addr:    fmt.Sprintf(":%s", port),
			Handler: newMux(reportSvc, m),
			BaseContext: func(_ net.Listener) context.Context {
				return baseCtx
			},
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 120 * time.Second,
			IdleTimeout:  120 * time.Second,
		},
	}
}

func (s *Server) Start() error {
	slog.Info("starting server", "addr", s.srv.Addr)
	return s.srv.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	slog.Info("shutting down server")
	return s.srv.Shutdown(ctx)
}
