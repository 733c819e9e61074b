package server

import (
	"bytes"
	"net/http"
	"time"

	"github.com/ahmethakanbesel/fxreport/internal/apperror"
	"github.com/ahmethakanbesel/fxreport/internal/metrics"
	"github.com/ahmethakanbesel/fxreport/internal/rate"
	"github.com/ahmethakanbesel/fxreport/internal/report"
)

const dateFormat = "2006-01-02"

type handler struct {
	reportSvc *report.Service
	metrics   *metrics.Metrics
}

type currenciesResponse struct {
	Reference  string          `json:"reference_currency"`
	Currencies []rate.Currency `json:"currencies"`
}

func (h *handler) health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *handler) listCurrencies(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, currenciesResponse{
		Reference:  rate.ReferenceCurrency,
		Currencies: rate.SupportedCurrencies(),
	})
}

func (h *handler) getReport(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	typ, err := report.ParseType(r.PathValue("type"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "report type must be historical or analytical")
		return
	}

	currencies, err := rate.ParseCurrencies(q.Get("currencies"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	var startDate, endDate time.Time
	if v := q.Get("startDate"); v != "" {
		startDate, err = time.Parse(dateFormat, v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid startDate format, expected YYYY-MM-DD")
			return
		}
	}
	if v := q.Get("endDate"); v != "" {
		endDate, err = time.Parse(dateFormat, v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid endDate format, expected YYYY-MM-DD")
			return
		}
	}

	format := report.FormatJSON
	if v := q.Get("format"); v != "" {
		format, err = report.ParseFormat(v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "format must be json or csv")
			return
		}
	}

	req := report.Request{
		Type:       typ,
		Currencies: currencies,
		StartDate:  startDate,
		EndDate:    endDate,
	}

	rep, err := h.reportSvc.Generate(r.Context(), req)
	if err != nil {
		if ae, ok := apperror.As(err); ok {
			writeError(w, ae.HTTPStatus(), ae.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	if h.metrics != nil {
		h.metrics.ObserveReport(string(typ), string(format))
	}

	if format == report.FormatCSV {
		writeCSV(w, rep, string(typ)+".csv")
		return
	}

	switch v := rep.(type) {
	case *report.HistoricalReport:
		writeJSON(w, http.StatusOK, report.NewHistoricalResponse(v))
	case *report.AnalyticalReport:
		writeJSON(w, http.StatusOK, report.NewAnalyticalResponse(v))
	}
}

// writeCSV renders into a buffer first so a failed encode never leaves a
// truncated body behind a 200.
func writeCSV(w http.ResponseWriter, rep report.Report, filename string) {
	var buf bytes.Buffer
	if err := report.Encode(&buf, rep, report.FormatCSV); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	w.Header().Set("Content-Type", report.FormatCSV.ContentType())
	w.Header().Set("Content-Disposition", "attachment; filename="+filename)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}
