// Package rate holds the exchange rate domain: points, series, the store and
// provider contracts, and the reconciler that keeps the local cache gap-free.
package rate

import (
	"time"

	"github.com/shopspring/decimal"
)

// ReferenceCurrency is the currency every published rate is quoted against.
const ReferenceCurrency = "PLN"

// Status distinguishes a stored rate from a stored confirmation that no rate
// was published that day. A date with no stored row at all is unknown.
type Status uint8

const (
	StatusPresent Status = iota + 1
	StatusAbsent
)

func (s Status) String() string {
	switch s {
	case StatusPresent:
		return "present"
	case StatusAbsent:
		return "absent"
	default:
		return "unknown"
	}
}

type Point struct {
	Currency  Currency
	Date      time.Time
	Rate      decimal.Decimal
	Status    Status
	UpdatedAt time.Time
}

// NewPoint returns a present point for the given day.
func NewPoint(c Currency, date time.Time, r decimal.Decimal) Point {
	return Point{Currency: c, Date: Day(date), Rate: r, Status: StatusPresent}
}

// Absent returns the sentinel recorded for a day without a published rate.
func Absent(c Currency, date time.Time) Point {
	return Point{Currency: c, Date: Day(date), Status: StatusAbsent}
}

func (p Point) IsPresent() bool { return p.Status == StatusPresent }

// Series is the date-ordered sequence of published rates for one currency.
type Series struct {
	Currency Currency
	Points   []Point
}

func (s Series) Len() int { return len(s.Points) }

// Day truncates t to midnight UTC of its calendar date.
func Day(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
