package report

import (
	"time"

	"github.com/ahmethakanbesel/fxreport/internal/apperror"
	"github.com/ahmethakanbesel/fxreport/internal/rate"
)

// Request describes one report. Zero dates default to today; an empty
// currency list means every supported currency.
type Request struct {
	Type       Type
	Currencies []rate.Currency
	StartDate  time.Time
	EndDate    time.Time
}

func (r Request) Validate() *apperror.AppError {
	if r.Type != TypeHistorical && r.Type != TypeAnalytical {
		return apperror.New(apperror.Validation, "report type must be historical or analytical")
	}
	for _, c := range r.Currencies {
		if !c.IsSupported() {
			return apperror.New(apperror.Validation, "unsupported currency "+string(c))
		}
	}
	if !r.StartDate.IsZero() && !r.EndDate.IsZero() && r.StartDate.After(r.EndDate) {
		return apperror.New(apperror.Validation, "startDate must not be after endDate")
	}
	return nil
}

type MovementResponse struct {
	Currency string `json:"currency_code"`
	Delta    string `json:"delta"`
	From     string `json:"from"`
	To       string `json:"to"`
}

type AnalyticalResponse struct {
	Type    Type              `json:"type"`
	MaxRise *MovementResponse `json:"max_rise"`
	MaxFall *MovementResponse `json:"max_fall"`
}

type RateResponse struct {
	Date string `json:"date"`
	Rate string `json:"rate"`
}

type SeriesResponse struct {
	Currency string         `json:"currency_code"`
	Rates    []RateResponse `json:"rates"`
}

type HistoricalResponse struct {
	Type      Type             `json:"type"`
	Reference string           `json:"reference_currency"`
	Series    []SeriesResponse `json:"currencies"`
}
