package rate_test

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ahmethakanbesel/fxreport/internal/apperror"
	"github.com/ahmethakanbesel/fxreport/internal/platform/sqlite"
	"github.com/ahmethakanbesel/fxreport/internal/rate"
	raterepo "github.com/ahmethakanbesel/fxreport/internal/repository/rate"
)

func day(d int) time.Time {
	return time.Date(2024, 3, d, 0, 0, 0, 0, time.UTC)
}

func rng(from, to int) rate.DateRange {
	return rate.DateRange{From: day(from), To: day(to)}
}

// fakeProvider serves rates from a fixed table and records every call.
type fakeProvider struct {
	mu     sync.Mutex
	rates  map[rate.Currency]map[time.Time]decimal.Decimal
	errs   map[rate.Currency]error
	calls  []call
	onCall func(c rate.Currency)
}

type call struct {
	Currency rate.Currency
	Range    rate.DateRange
}

func newFakeProvider() *fakeProvider {
	return &fakeProvider{
		rates: make(map[rate.Currency]map[time.Time]decimal.Decimal),
		errs:  make(map[rate.Currency]error),
	}
}

func (f *fakeProvider) set(c rate.Currency, d int, v string) {
	if f.rates[c] == nil {
		f.rates[c] = make(map[time.Time]decimal.Decimal)
	}
	f.rates[c][day(d)] = decimal.RequireFromString(v)
}

func (f *fakeProvider) Fetch(_ context.Context, c rate.Currency, r rate.DateRange) ([]rate.Point, error) {
	f.mu.Lock()
	f.calls = append(f.calls, call{Currency: c, Range: r})
	err := f.errs[c]
	f.mu.Unlock()

	if f.onCall != nil {
		f.onCall(c)
	}
	if err != nil {
		return nil, err
	}

	var out []rate.Point
	for _, d := range r.Dates() {
		if v, ok := f.rates[c][d]; ok {
			out = append(out, rate.NewPoint(c, d, v))
		}
	}
	if len(out) == 0 {
		return nil, &rate.FetchError{Reason: rate.ReasonNotFound, Currency: c, Range: r}
	}
	return out, nil
}

func (f *fakeProvider) callsFor(c rate.Currency) []rate.DateRange {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []rate.DateRange
	for _, cl := range f.calls {
		if cl.Currency == c {
			out = append(out, cl.Range)
		}
	}
	return out
}

func (f *fakeProvider) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func fixedClock() func() time.Time {
	return func() time.Time { return time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC) }
}

func TestReconcile_FetchesOnlyComplementGaps(t *testing.T) {
	store := raterepo.NewMemory()
	ctx := context.Background()

	// Cached: 3..5 and 9..10
	_, err := store.Put(ctx, []rate.Point{
		rate.NewPoint("USD", day(3), decimal.RequireFromString("3.90")),
		rate.NewPoint("USD", day(4), decimal.RequireFromString("3.91")),
		rate.NewPoint("USD", day(5), decimal.RequireFromString("3.92")),
		rate.NewPoint("USD", day(9), decimal.RequireFromString("3.96")),
		rate.NewPoint("USD", day(10), decimal.RequireFromString("3.97")),
	})
	require.NoError(t, err)

	p := newFakeProvider()
	for d := 1; d <= 12; d++ {
		p.set("USD", d, "4.00")
	}

	r := rate.NewReconciler(store, p, rate.WithClock(fixedClock()))
	got, err := r.Reconcile(ctx, []rate.Currency{"USD"}, rng(1, 12))
	require.NoError(t, err)

	assert.ElementsMatch(t, []rate.DateRange{rng(1, 2), rng(6, 8), rng(11, 12)}, p.callsFor("USD"))

	series := got["USD"]
	require.Equal(t, 12, series.Len())
	for i, pt := range series.Points {
		assert.True(t, pt.Date.Equal(day(i+1)), "points must be date ordered")
	}
	assert.True(t, series.Points[2].Rate.Equal(decimal.RequireFromString("3.90")), "cached value is kept")
}

func TestReconcile_FullyCachedMakesNoCalls(t *testing.T) {
	store := raterepo.NewMemory()
	ctx := context.Background()
	p := newFakeProvider()
	p.set("EUR", 4, "4.31")
	p.set("EUR", 5, "4.32")

	r := rate.NewReconciler(store, p, rate.WithClock(fixedClock()))
	_, err := r.Reconcile(ctx, []rate.Currency{"EUR"}, rng(1, 7))
	require.NoError(t, err)
	first := p.callCount()

	got, err := r.Reconcile(ctx, []rate.Currency{"EUR"}, rng(1, 7))
	require.NoError(t, err)
	assert.Equal(t, first, p.callCount(), "second reconcile must be served from the store")
	assert.Equal(t, 2, got["EUR"].Len())
}

func TestReconcile_SentinelPreventsRefetch(t *testing.T) {
	store := raterepo.NewMemory()
	ctx := context.Background()
	p := newFakeProvider()

	r := rate.NewReconciler(store, p, rate.WithClock(fixedClock()))

	got, err := r.Reconcile(ctx, []rate.Currency{"CHF"}, rng(2, 3))
	require.NoError(t, err)
	assert.Zero(t, got["CHF"].Len(), "no published rates is an empty series, not an error")
	assert.Len(t, p.callsFor("CHF"), 1)

	ok, err := store.Has(ctx, "CHF", day(2))
	require.NoError(t, err)
	assert.True(t, ok, "not found must be cached as a sentinel")

	_, err = r.Reconcile(ctx, []rate.Currency{"CHF"}, rng(2, 3))
	require.NoError(t, err)
	assert.Len(t, p.callsFor("CHF"), 1, "sentinel days must not be queried again")
}

func TestReconcile_MissingDaysInResponseBecomeSentinels(t *testing.T) {
	store := raterepo.NewMemory()
	ctx := context.Background()
	p := newFakeProvider()
	p.set("GBP", 1, "5.01")
	p.set("GBP", 4, "5.04")

	r := rate.NewReconciler(store, p, rate.WithClock(fixedClock()))
	got, err := r.Reconcile(ctx, []rate.Currency{"GBP"}, rng(1, 4))
	require.NoError(t, err)
	assert.Equal(t, 2, got["GBP"].Len())

	stored, err := store.GetRange(ctx, "GBP", rng(1, 4))
	require.NoError(t, err)
	require.Len(t, stored, 4)
	assert.Equal(t, rate.StatusAbsent, stored[1].Status)
	assert.Equal(t, rate.StatusAbsent, stored[2].Status)
}

func TestReconcile_NoSentinelForToday(t *testing.T) {
	store := raterepo.NewMemory()
	ctx := context.Background()
	p := newFakeProvider()
	p.set("USD", 3, "3.95")

	warsaw, err := time.LoadLocation("Europe/Warsaw")
	require.NoError(t, err)

	// 2024-03-04 08:00 in Warsaw, before the daily table is published.
	now := func() time.Time { return time.Date(2024, 3, 4, 7, 0, 0, 0, time.UTC) }
	r := rate.NewReconciler(store, p, rate.WithClock(now), rate.WithLocation(warsaw))

	_, err = r.Reconcile(ctx, []rate.Currency{"USD"}, rng(3, 4))
	require.NoError(t, err)

	ok, err := store.Has(ctx, "USD", day(4))
	require.NoError(t, err)
	assert.False(t, ok, "today must stay unknown so it is queried again")

	p.set("USD", 4, "3.97")
	got, err := r.Reconcile(ctx, []rate.Currency{"USD"}, rng(3, 4))
	require.NoError(t, err)
	assert.Equal(t, []rate.DateRange{rng(3, 4), rng(4, 4)}, p.callsFor("USD"))
	assert.Equal(t, 2, got["USD"].Len())
}

func TestReconcile_OneUnavailableFailsAll(t *testing.T) {
	store := raterepo.NewMemory()
	ctx := context.Background()
	p := newFakeProvider()
	for d := 1; d <= 5; d++ {
		p.set("EUR", d, "4.30")
		p.set("USD", d, "3.90")
	}
	p.errs["GBP"] = &rate.FetchError{Reason: rate.ReasonUnavailable, Currency: "GBP", Range: rng(1, 5), Err: errors.New("connection refused")}

	r := rate.NewReconciler(store, p, rate.WithClock(fixedClock()), rate.WithWorkers(1))
	got, err := r.Reconcile(ctx, []rate.Currency{"EUR", "GBP", "USD"}, rng(1, 5))

	require.Error(t, err)
	assert.Nil(t, got, "no series may be returned on failure")
	assert.Equal(t, apperror.FetchUnavailable, apperror.CodeOf(err))
}

func TestReconcile_InvalidCurrency(t *testing.T) {
	store := raterepo.NewMemory()
	p := newFakeProvider()
	p.errs["XDR"] = &rate.FetchError{Reason: rate.ReasonInvalidCurrency, Currency: "XDR"}

	r := rate.NewReconciler(store, p, rate.WithClock(fixedClock()))
	_, err := r.Reconcile(context.Background(), []rate.Currency{"XDR"}, rng(1, 2))

	require.Error(t, err)
	assert.Equal(t, apperror.InvalidCurrency, apperror.CodeOf(err))
}

type failingStore struct{ rate.Store }

func (failingStore) GetRange(context.Context, rate.Currency, rate.DateRange) ([]rate.Point, error) {
	return nil, errors.New("database is locked")
}

func TestReconcile_StoreUnavailable(t *testing.T) {
	p := newFakeProvider()
	r := rate.NewReconciler(failingStore{}, p, rate.WithClock(fixedClock()))

	_, err := r.Reconcile(context.Background(), []rate.Currency{"USD"}, rng(1, 2))

	require.Error(t, err)
	assert.Equal(t, apperror.StoreUnavailable, apperror.CodeOf(err))
	assert.Zero(t, p.callCount(), "nothing is fetched without a store")
}

func TestReconcile_EmptyCurrenciesMeansAll(t *testing.T) {
	store := raterepo.NewMemory()
	p := newFakeProvider()

	r := rate.NewReconciler(store, p, rate.WithClock(fixedClock()), rate.WithWorkers(8))
	got, err := r.Reconcile(context.Background(), nil, rng(1, 1))
	require.NoError(t, err)

	assert.Len(t, got, len(rate.SupportedCurrencies()))
	assert.Equal(t, len(rate.SupportedCurrencies()), p.callCount())
}

func TestReconcile_RespectsWorkerLimit(t *testing.T) {
	store := raterepo.NewMemory()
	p := newFakeProvider()

	var mu sync.Mutex
	active, peak := 0, 0
	p.onCall = func(rate.Currency) {
		mu.Lock()
		active++
		peak = max(peak, active)
		mu.Unlock()
		time.Sleep(5 * time.Millisecond)
		mu.Lock()
		active--
		mu.Unlock()
	}

	r := rate.NewReconciler(store, p, rate.WithClock(fixedClock()), rate.WithWorkers(2))
	_, err := r.Reconcile(context.Background(), []rate.Currency{"AUD", "CAD", "EUR", "HUF", "USD"}, rng(1, 1))
	require.NoError(t, err)
	assert.LessOrEqual(t, peak, 2)
}

type recordingObserver struct {
	mu       sync.Mutex
	hits     int
	misses   int
	outcomes []string
	result   string
}

func (o *recordingObserver) ObserveCache(_ rate.Currency, hits, misses int) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.hits += hits
	o.misses += misses
}

func (o *recordingObserver) ObserveFetch(_ rate.Currency, outcome string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.outcomes = append(o.outcomes, outcome)
}

func (o *recordingObserver) ObserveReconcile(outcome string, _ time.Duration) {
	o.result = outcome
}

func TestReconcile_ReportsToObserver(t *testing.T) {
	store := raterepo.NewMemory()
	ctx := context.Background()
	_, err := store.Put(ctx, []rate.Point{rate.NewPoint("USD", day(1), decimal.RequireFromString("3.9"))})
	require.NoError(t, err)

	p := newFakeProvider()
	p.set("USD", 2, "3.91")
	obs := &recordingObserver{}

	r := rate.NewReconciler(store, p, rate.WithClock(fixedClock()), rate.WithObserver(obs))
	_, err = r.Reconcile(ctx, []rate.Currency{"USD"}, rng(1, 3))
	require.NoError(t, err)

	assert.Equal(t, 1, obs.hits)
	assert.Equal(t, 2, obs.misses)
	assert.Equal(t, []string{"ok"}, obs.outcomes)
	assert.Equal(t, "ok", obs.result)
}

func TestGaps(t *testing.T) {
	stored := []rate.Point{
		rate.NewPoint("USD", day(2), decimal.NewFromInt(1)),
		rate.Absent("USD", day(3)),
		rate.NewPoint("USD", day(6), decimal.NewFromInt(1)),
	}

	got := rate.Gaps(rng(1, 7), stored)
	assert.Equal(t, []rate.DateRange{rng(1, 1), rng(4, 5), rng(7, 7)}, got)

	assert.Empty(t, rate.Gaps(rng(2, 3), stored))
	assert.Equal(t, []rate.DateRange{rng(1, 7)}, rate.Gaps(rng(1, 7), nil))
}

// fakeTableProvider adds a whole-table query on top of fakeProvider.
type fakeTableProvider struct {
	*fakeProvider
	tableErr   error
	tableCalls []rate.DateRange
}

func (f *fakeTableProvider) FetchTable(_ context.Context, r rate.DateRange) ([]rate.Point, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.tableCalls = append(f.tableCalls, r)
	if f.tableErr != nil {
		return nil, f.tableErr
	}

	var out []rate.Point
	for c, byDay := range f.rates {
		for _, d := range r.Dates() {
			if v, ok := byDay[d]; ok {
				out = append(out, rate.NewPoint(c, d, v))
			}
		}
	}
	if len(out) == 0 {
		return nil, &rate.FetchError{Reason: rate.ReasonNotFound, Range: r}
	}
	return out, nil
}

func TestReconcile_SharedGapUsesOneTableQuery(t *testing.T) {
	store := raterepo.NewMemory()
	p := &fakeTableProvider{fakeProvider: newFakeProvider()}
	for d := 1; d <= 3; d++ {
		p.set("EUR", d, "4.30")
		p.set("USD", d, "3.90")
	}

	r := rate.NewReconciler(store, p, rate.WithClock(fixedClock()))
	got, err := r.Reconcile(context.Background(), []rate.Currency{"CHF", "EUR", "USD"}, rng(1, 3))
	require.NoError(t, err)

	assert.Equal(t, []rate.DateRange{rng(1, 3)}, p.tableCalls)
	assert.Zero(t, p.callCount(), "no per-currency queries for a shared gap")
	assert.Equal(t, 3, got["EUR"].Len())
	assert.Equal(t, 3, got["USD"].Len())
	assert.Zero(t, got["CHF"].Len())

	// CHF was absent from the table, so its days are now known.
	has, err := store.Has(context.Background(), "CHF", day(2))
	require.NoError(t, err)
	assert.True(t, has)

	_, err = r.Reconcile(context.Background(), []rate.Currency{"CHF", "EUR", "USD"}, rng(1, 3))
	require.NoError(t, err)
	assert.Len(t, p.tableCalls, 1, "second request is served from the store")
}

func TestReconcile_DistinctGapsFallBackToPerCurrency(t *testing.T) {
	store := raterepo.NewMemory()
	ctx := context.Background()
	_, err := store.Put(ctx, []rate.Point{rate.NewPoint("USD", day(1), decimal.RequireFromString("3.90"))})
	require.NoError(t, err)

	p := &fakeTableProvider{fakeProvider: newFakeProvider()}
	for d := 1; d <= 3; d++ {
		p.set("EUR", d, "4.30")
		p.set("GBP", d, "5.00")
		p.set("USD", d, "3.90")
	}

	r := rate.NewReconciler(store, p, rate.WithClock(fixedClock()))
	got, err := r.Reconcile(ctx, []rate.Currency{"EUR", "GBP", "USD"}, rng(1, 3))
	require.NoError(t, err)

	assert.Equal(t, []rate.DateRange{rng(1, 3)}, p.tableCalls, "EUR and GBP share 1..3")
	assert.Equal(t, []rate.DateRange{rng(2, 3)}, p.callsFor("USD"))
	assert.Empty(t, p.callsFor("EUR"))
	for _, c := range []rate.Currency{"EUR", "GBP", "USD"} {
		assert.Equal(t, 3, got[c].Len(), c)
	}
}

func TestReconcile_TableThresholdDisablesTable(t *testing.T) {
	store := raterepo.NewMemory()
	p := &fakeTableProvider{fakeProvider: newFakeProvider()}
	p.set("EUR", 1, "4.30")
	p.set("USD", 1, "3.90")

	r := rate.NewReconciler(store, p, rate.WithClock(fixedClock()), rate.WithTableThreshold(0))
	_, err := r.Reconcile(context.Background(), []rate.Currency{"EUR", "USD"}, rng(1, 1))
	require.NoError(t, err)

	assert.Empty(t, p.tableCalls)
	assert.Equal(t, 2, p.callCount())
}

func TestReconcile_TableFailureFailsAll(t *testing.T) {
	store := raterepo.NewMemory()
	p := &fakeTableProvider{fakeProvider: newFakeProvider()}
	p.tableErr = &rate.FetchError{Reason: rate.ReasonUnavailable, Range: rng(1, 5), Err: errors.New("connection reset")}

	obs := &recordingObserver{}
	r := rate.NewReconciler(store, p, rate.WithClock(fixedClock()), rate.WithObserver(obs))
	got, err := r.Reconcile(context.Background(), []rate.Currency{"EUR", "USD"}, rng(1, 5))

	require.Error(t, err)
	assert.Nil(t, got)
	assert.Equal(t, apperror.FetchUnavailable, apperror.CodeOf(err))
	assert.Equal(t, []string{"unavailable", "unavailable"}, obs.outcomes)

	points, err := store.GetRange(context.Background(), "EUR", rng(1, 5))
	require.NoError(t, err)
	assert.Empty(t, points, "a failed query stores nothing")
}

func TestReconcile_AllCurrenciesOnFileStore(t *testing.T) {
	db, err := sqlite.Open(filepath.Join(t.TempDir(), "rates.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	p := newFakeProvider()
	for _, c := range rate.SupportedCurrencies() {
		for d := 1; d <= 31; d += 2 {
			p.set(c, d, "1.25")
		}
	}

	r := rate.NewReconciler(raterepo.NewRepository(db.DB), p, rate.WithClock(fixedClock()), rate.WithWorkers(4))
	got, err := r.Reconcile(context.Background(), nil, rng(1, 31))
	require.NoError(t, err)

	assert.Len(t, got, len(rate.SupportedCurrencies()))
	assert.Equal(t, 16, got["USD"].Len())
}
