package report

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/ahmethakanbesel/fxreport/internal/rate"
)

const (
	kindMaxRise = "max_rise"
	kindMaxFall = "max_fall"
)

// ContentType returns the MIME type of f.
func (f Format) ContentType() string {
	if f == FormatJSON {
		return "application/json"
	}
	return "text/csv; charset=utf-8"
}

// Encode writes r to w in format f.
func Encode(w io.Writer, r Report, f Format) error {
	switch f {
	case FormatJSON:
		return encodeJSON(w, r)
	case FormatCSV:
		return encodeCSV(w, r)
	default:
		return fmt.Errorf("unsupported format %q", f)
	}
}

func encodeJSON(w io.Writer, r Report) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")

	switch rep := r.(type) {
	case *HistoricalReport:
		return enc.Encode(NewHistoricalResponse(rep))
	case *AnalyticalReport:
		return enc.Encode(NewAnalyticalResponse(rep))
	default:
		return fmt.Errorf("unknown report %T", r)
	}
}

func encodeCSV(w io.Writer, r Report) error {
	cw := csv.NewWriter(w)

	switch rep := r.(type) {
	case *HistoricalReport:
		if err := cw.Write([]string{"currency_code", "date", "rate"}); err != nil {
			return err
		}
		for _, s := range rep.Series {
			for _, p := range s.Points {
				if err := cw.Write([]string{string(s.Currency), p.Date.Format(time.DateOnly), p.Rate.String()}); err != nil {
					return err
				}
			}
		}
	case *AnalyticalReport:
		if err := cw.Write([]string{"currency_code", "delta", "kind"}); err != nil {
			return err
		}
		for _, row := range []struct {
			m    *Movement
			kind string
		}{{rep.MaxRise, kindMaxRise}, {rep.MaxFall, kindMaxFall}} {
			if row.m == nil {
				continue
			}
			if err := cw.Write([]string{string(row.m.Currency), row.m.Delta.String(), row.kind}); err != nil {
				return err
			}
		}
	default:
		return fmt.Errorf("unknown report %T", r)
	}

	cw.Flush()
	return cw.Error()
}

func NewHistoricalResponse(h *HistoricalReport) HistoricalResponse {
	resp := HistoricalResponse{
		Type:      TypeHistorical,
		Reference: rate.ReferenceCurrency,
		Series:    make([]SeriesResponse, 0, len(h.Series)),
	}
	for _, s := range h.Series {
		rates := make([]RateResponse, 0, len(s.Points))
		for _, p := range s.Points {
			rates = append(rates, RateResponse{Date: p.Date.Format(time.DateOnly), Rate: p.Rate.String()})
		}
		resp.Series = append(resp.Series, SeriesResponse{Currency: string(s.Currency), Rates: rates})
	}
	return resp
}

func NewAnalyticalResponse(a *AnalyticalReport) AnalyticalResponse {
	return AnalyticalResponse{
		Type:    TypeAnalytical,
		MaxRise: movementResponse(a.MaxRise),
		MaxFall: movementResponse(a.MaxFall),
	}
}

func movementResponse(m *Movement) *MovementResponse {
	if m == nil {
		return nil
	}
	return &MovementResponse{
		Currency: string(m.Currency),
		Delta:    m.Delta.String(),
		From:     m.From.Format(time.DateOnly),
		To:       m.To.Format(time.DateOnly),
	}
}
