package rate

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/ahmethakanbesel/fxreport/internal/apperror"
)

// Observer receives cache and fetch outcomes from a Reconciler.
type Observer interface {
	ObserveCache(c Currency, hits, misses int)
	ObserveFetch(c Currency, outcome string)
	ObserveReconcile(outcome string, elapsed time.Duration)
}

type nopObserver struct{}

func (nopObserver) ObserveCache(Currency, int, int)        {}
func (nopObserver) ObserveFetch(Currency, string)          {}
func (nopObserver) ObserveReconcile(string, time.Duration) {}

// Reconciler fills the gaps of the local store from a Provider and returns
// complete series. A request either succeeds for every currency or fails.
type Reconciler struct {
	store    Store
	provider Provider
	table    TableProvider
	tableMin int
	workers  int
	now      func() time.Time
	loc      *time.Location
	observer Observer
}

func NewReconciler(store Store, provider Provider, opts ...Option) *Reconciler {
	r := &Reconciler{
		store:    store,
		provider: provider,
		tableMin: 2,
		workers:  4,
		now:      time.Now,
		loc:      time.UTC,
		observer: nopObserver{},
	}
	if tp, ok := provider.(TableProvider); ok {
		r.table = tp
	}
	for _, o := range opts {
		o(r)
	}
	return r
}

type Option func(*Reconciler)

func WithWorkers(n int) Option {
	return func(r *Reconciler) {
		if n > 0 {
			r.workers = n
		}
	}
}

// WithTableThreshold sets how many currencies must share a gap before it is
// fetched through the provider's table query. Zero disables table queries.
func WithTableThreshold(n int) Option {
	return func(r *Reconciler) {
		if n >= 0 {
			r.tableMin = n
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(r *Reconciler) { r.now = now }
}

// WithLocation sets the zone in which "today" is evaluated. Days before today
// that the provider answered without a rate are stored as sentinels.
func WithLocation(loc *time.Location) Option {
	return func(r *Reconciler) {
		if loc != nil {
			r.loc = loc
		}
	}
}

func WithObserver(o Observer) Option {
	return func(r *Reconciler) {
		if o != nil {
			r.observer = o
		}
	}
}

// gapTask is one provider query. A task with several currencies is served by
// a single table query.
type gapTask struct {
	currencies []Currency
	gap        DateRange
}

// Reconcile returns one series per requested currency covering dr. An empty
// currency list means every supported currency.
func (r *Reconciler) Reconcile(ctx context.Context, currencies []Currency, dr DateRange) (map[Currency]Series, error) {
	start := r.now()
	result, err := r.reconcile(ctx, currencies, dr)

	outcome := "ok"
	if err != nil {
		outcome = string(apperror.CodeOf(err))
	}
	r.observer.ObserveReconcile(outcome, r.now().Sub(start))
	return result, err
}

func (r *Reconciler) reconcile(ctx context.Context, currencies []Currency, dr DateRange) (map[Currency]Series, error) {
	if len(currencies) == 0 {
		currencies = SupportedCurrencies()
	}

	cached := make(map[Currency][]Point, len(currencies))
	gaps := make(map[Currency][]DateRange, len(currencies))
	for _, c := range currencies {
		stored, err := r.store.GetRange(ctx, c, dr)
		if err != nil {
			return nil, apperror.Wrap(apperror.StoreUnavailable, "rate store unavailable",
				fmt.Errorf("load %s %s: %w", c, dr, err))
		}
		cached[c] = stored

		gaps[c] = Gaps(dr, stored)
		misses := 0
		for _, g := range gaps[c] {
			misses += g.Days()
		}
		r.observer.ObserveCache(c, dr.Days()-misses, misses)
		if len(gaps[c]) > 0 {
			slog.Debug("cache gaps found", "currency", c, "range", dr.String(), "gaps", len(gaps[c]), "missingDays", misses)
		}
	}

	tasks := r.plan(currencies, gaps)

	fetched := make([][]Point, len(tasks))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.workers)

	for i, t := range tasks {
		g.Go(func() error {
			points, err := r.fill(gctx, t)
			if err != nil {
				return err
			}
			fetched[i] = points
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	for _, points := range fetched {
		for _, p := range points {
			cached[p.Currency] = append(cached[p.Currency], p)
		}
	}

	out := make(map[Currency]Series, len(currencies))
	for _, c := range currencies {
		out[c] = buildSeries(c, cached[c])
	}
	return out, nil
}

// plan turns per-currency gaps into provider queries. Identical gaps shared
// by at least tableMin currencies become one table query when the provider
// supports it; every other gap is fetched per currency.
func (r *Reconciler) plan(currencies []Currency, gaps map[Currency][]DateRange) []gapTask {
	var (
		order  []DateRange
		shared = make(map[string][]Currency)
	)
	for _, c := range currencies {
		for _, g := range gaps[c] {
			key := g.String()
			if _, ok := shared[key]; !ok {
				order = append(order, g)
			}
			shared[key] = append(shared[key], c)
		}
	}

	var tasks []gapTask
	for _, g := range order {
		cs := shared[g.String()]
		if r.table != nil && r.tableMin > 0 && len(cs) >= r.tableMin {
			tasks = append(tasks, gapTask{currencies: cs, gap: g})
			continue
		}
		for _, c := range cs {
			tasks = append(tasks, gapTask{currencies: []Currency{c}, gap: g})
		}
	}
	return tasks
}

// fill runs one query, persists what the provider confirmed and returns the
// new present points.
func (r *Reconciler) fill(ctx context.Context, t gapTask) ([]Point, error) {
	points, err := r.fetch(ctx, t)
	if err != nil {
		reason := ReasonOf(err)
		for _, c := range t.currencies {
			r.observer.ObserveFetch(c, string(reason))
		}
		if reason != ReasonNotFound {
			slog.Error("fetch rates failed", "currencies", t.currencies, "range", t.gap.String(), "reason", reason, "error", err)
			return nil, fetchFailure(err)
		}
		points = nil
	} else {
		for _, c := range t.currencies {
			r.observer.ObserveFetch(c, "ok")
		}
	}

	byCurrency := make(map[Currency][]Point, len(t.currencies))
	for _, p := range points {
		byCurrency[p.Currency] = append(byCurrency[p.Currency], p)
	}

	var toStore []Point
	for _, c := range t.currencies {
		toStore = append(toStore, r.withSentinels(c, t.gap, byCurrency[c])...)
	}
	if len(toStore) == 0 {
		return nil, nil
	}

	n, err := r.store.Put(ctx, toStore)
	if err != nil {
		return nil, apperror.Wrap(apperror.StoreUnavailable, "rate store unavailable",
			fmt.Errorf("save %v %s: %w", t.currencies, t.gap, err))
	}
	slog.Info("saved exchange rates", "currencies", t.currencies, "range", t.gap.String(), "fetched", len(points), "changed", n)

	present := make([]Point, 0, len(toStore))
	for _, p := range toStore {
		if p.IsPresent() {
			present = append(present, p)
		}
	}
	return present, nil
}

func (r *Reconciler) fetch(ctx context.Context, t gapTask) ([]Point, error) {
	if len(t.currencies) > 1 {
		return r.table.FetchTable(ctx, t.gap)
	}

	c := t.currencies[0]
	points, err := r.provider.Fetch(ctx, c, t.gap)
	for i := range points {
		points[i].Currency = c
	}
	return points, err
}

// withSentinels keeps the fetched points of c inside gap and adds a sentinel
// for every earlier-than-today gap day the provider did not return.
func (r *Reconciler) withSentinels(c Currency, gap DateRange, points []Point) []Point {
	today := Day(r.now().In(r.loc))

	seen := make(map[time.Time]bool, len(points))
	out := make([]Point, 0, gap.Days())
	for _, p := range points {
		p.Date = Day(p.Date)
		p.Status = StatusPresent
		if !gap.Contains(p.Date) || seen[p.Date] {
			continue
		}
		seen[p.Date] = true
		out = append(out, p)
	}
	for _, d := range gap.Dates() {
		if seen[d] || !d.Before(today) {
			continue
		}
		out = append(out, Absent(c, d))
	}
	return out
}

func fetchFailure(err error) error {
	if ReasonOf(err) == ReasonInvalidCurrency {
		return apperror.Wrap(apperror.InvalidCurrency, "currency not published by provider", err)
	}
	return apperror.Wrap(apperror.FetchUnavailable, "rate provider unavailable", err)
}

// Gaps returns the minimal contiguous ranges of dr that have no stored row.
func Gaps(dr DateRange, stored []Point) []DateRange {
	known := make(map[time.Time]bool, len(stored))
	for _, p := range stored {
		known[Day(p.Date)] = true
	}

	var missing []time.Time
	for _, d := range dr.Dates() {
		if !known[d] {
			missing = append(missing, d)
		}
	}
	return Coalesce(missing)
}

func buildSeries(c Currency, points []Point) Series {
	present := make([]Point, 0, len(points))
	for _, p := range points {
		if p.IsPresent() {
			present = append(present, p)
		}
	}
	slices.SortFunc(present, func(a, b Point) int { return a.Date.Compare(b.Date) })
	return Series{Currency: c, Points: present}
}
