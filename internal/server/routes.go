package server

import (
	"net/http"

	"github.com/ahmethakanbesel/fxreport/internal/metrics"
	"github.com/ahmethakanbesel/fxreport/internal/report"
)

// NewHandler creates the full HTTP handler with routes and middleware.
// Exported for use in tests (e.g., httptest.NewServer).
func NewHandler(reportSvc *report.Service, m *metrics.Metrics) http.Handler {
	return newMux(reportSvc, m)
}

func newMux(reportSvc *report.Service, m *metrics.Metrics) http.Handler {
	h := &handler{
		reportSvc: reportSvc,
		metrics:   m,
	}

	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", h.health)
	mux.HandleFunc("GET /api/v1/currencies", h.listCurrencies)
	mux.HandleFunc("GET /api/v1/reports/{type}", h.getReport)
	if m != nil {
		mux.Handle("GET /metrics", m.Handler())
	}

	// Apply middleware stack: recovery -> requestID -> logging -> instrument
	var handler http.Handler = mux
	handler = instrument(m, handler)
	handler = logging(handler)
	handler = requestID(handler)
	handler = recovery(handler)

	return handler
}
