package rate

import (
	"context"
	"errors"
	"fmt"
)

// Provider fetches published rates for one currency over a date range.
type Provider interface {
	Fetch(ctx context.Context, c Currency, r DateRange) ([]Point, error)
}

// TableProvider is implemented by providers that can return every currency
// of the published table in one query. The Reconciler prefers it when
// several currencies miss the same range.
type TableProvider interface {
	FetchTable(ctx context.Context, r DateRange) ([]Point, error)
}

type Reason string

const (
	ReasonNotFound        Reason = "not_found"
	ReasonUnavailable     Reason = "unavailable"
	ReasonInvalidCurrency Reason = "invalid_currency"
)

// FetchError is returned by a Provider when a fetch could not produce points.
// Currency is empty for table queries.
type FetchError struct {
	Reason   Reason
	Currency Currency
	Range    DateRange
	Err      error
}

func (e *FetchError) Error() string {
	subject := string(e.Currency)
	if subject == "" {
		subject = "table"
	}
	msg := fmt.Sprintf("fetch %s %s: %s", subject, e.Range, e.Reason)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *FetchError) Unwrap() error { return e.Err }

// ReasonOf returns the reason carried by err, or ReasonUnavailable when err
// is not a FetchError.
func ReasonOf(err error) Reason {
	var fe *FetchError
	if errors.As(err, &fe) {
		return fe.Reason
	}
	return ReasonUnavailable
}
