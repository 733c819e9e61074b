package report

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/ahmethakanbesel/fxreport/internal/apperror"
	"github.com/ahmethakanbesel/fxreport/internal/rate"
)

// FirstAvailable is the earliest date the upstream publishes rates for.
var FirstAvailable = time.Date(2002, 1, 2, 0, 0, 0, 0, time.UTC)

type Reconciler interface {
	Reconcile(ctx context.Context, currencies []rate.Currency, dr rate.DateRange) (map[rate.Currency]rate.Series, error)
}

type Service struct {
	reconciler Reconciler
	now        func() time.Time
	loc        *time.Location
}

func NewService(rec Reconciler, opts ...Option) *Service {
	s := &Service{
		reconciler: rec,
		now:        time.Now,
		loc:        time.UTC,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

type Option func(*Service)

func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func WithLocation(loc *time.Location) Option {
	return func(s *Service) {
		if loc != nil {
			s.loc = loc
		}
	}
}

// Today returns the current calendar day in the service's zone.
func (s *Service) Today() time.Time {
	return rate.Day(s.now().In(s.loc))
}

// Generate reconciles the requested window and builds the report. Nothing is
// returned unless every requested currency was reconciled.
func (s *Service) Generate(ctx context.Context, req Request) (Report, error) {
	dr, err := s.Range(req)
	if err != nil {
		return nil, err
	}

	series, err := s.reconciler.Reconcile(ctx, req.Currencies, dr)
	if err != nil {
		return nil, fmt.Errorf("reconcile %s: %w", dr, err)
	}

	switch req.Type {
	case TypeAnalytical:
		return BuildAnalytical(series), nil
	default:
		return BuildHistorical(series), nil
	}
}

// Range validates req and resolves its date window: missing bounds become
// today, the start is raised to FirstAvailable and the end lowered to today.
func (s *Service) Range(req Request) (rate.DateRange, error) {
	if req.Type == "" {
		req.Type = TypeHistorical
	}
	if verr := req.Validate(); verr != nil {
		return rate.DateRange{}, verr
	}

	today := s.Today()
	start, end := rate.Day(req.StartDate), rate.Day(req.EndDate)
	if req.StartDate.IsZero() {
		start = today
	}
	if req.EndDate.IsZero() {
		end = today
	}

	if start.Before(FirstAvailable) {
		slog.Warn("start date precedes archive, clamping", "startDate", start.Format(time.DateOnly), "clampedTo", FirstAvailable.Format(time.DateOnly))
		start = FirstAvailable
	}
	if end.After(today) {
		slog.Warn("end date is in the future, clamping", "endDate", end.Format(time.DateOnly), "clampedTo", today.Format(time.DateOnly))
		end = today
	}

	dr, err := rate.NewDateRange(start, end)
	if err != nil {
		return rate.DateRange{}, apperror.Wrap(apperror.Validation, "invalid date range", err)
	}
	return dr, nil
}
