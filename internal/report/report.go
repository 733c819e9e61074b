// Package report turns reconciled rate series into historical and analytical
// reports and renders them as CSV or JSON.
package report

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/ahmethakanbesel/fxreport/internal/rate"
)

type Type string

const (
	TypeHistorical Type = "historical"
	TypeAnalytical Type = "analytical"
)

// ParseType accepts the long names and their one letter aliases.
func ParseType(s string) (Type, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "h", "historical":
		return TypeHistorical, nil
	case "a", "analytical":
		return TypeAnalytical, nil
	default:
		return "", fmt.Errorf("unknown report type %q", s)
	}
}

type Format string

const (
	FormatCSV  Format = "csv"
	FormatJSON Format = "json"
)

func ParseFormat(s string) (Format, error) {
	switch Format(strings.ToLower(strings.TrimSpace(s))) {
	case FormatCSV:
		return FormatCSV, nil
	case FormatJSON:
		return FormatJSON, nil
	default:
		return "", fmt.Errorf("unsupported format %q", s)
	}
}

// Report is either a *HistoricalReport or an *AnalyticalReport.
type Report interface {
	Type() Type
}

// HistoricalReport holds every requested series ordered by currency code.
type HistoricalReport struct {
	Series []rate.Series
}

func (*HistoricalReport) Type() Type { return TypeHistorical }

// Movement is the change in rate of one currency between two days.
type Movement struct {
	Currency rate.Currency
	Delta    decimal.Decimal
	From     time.Time
	To       time.Time
}

// AnalyticalReport holds the largest rise and the largest fall found over all
// requested series. A nil field means no series had two points.
type AnalyticalReport struct {
	MaxRise *Movement
	MaxFall *Movement
}

func (*AnalyticalReport) Type() Type { return TypeAnalytical }
