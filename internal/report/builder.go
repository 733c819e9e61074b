package report

import (
	"slices"

	"github.com/ahmethakanbesel/fxreport/internal/rate"
)

// BuildHistorical orders the series by currency code and each series by date.
func BuildHistorical(series map[rate.Currency]rate.Series) *HistoricalReport {
	out := make([]rate.Series, 0, len(series))
	for _, c := range sortedCurrencies(series) {
		s := series[c]
		points := slices.Clone(s.Points)
		slices.SortStableFunc(points, func(a, b rate.Point) int { return a.Date.Compare(b.Date) })
		out = append(out, rate.Series{Currency: c, Points: points})
	}
	return &HistoricalReport{Series: out}
}

// BuildAnalytical finds, over every ordered pair of days in each series, the
// largest later-minus-earlier difference and the smallest one. Ties between
// currencies go to the lexicographically smaller code.
func BuildAnalytical(series map[rate.Currency]rate.Series) *AnalyticalReport {
	r := &AnalyticalReport{}
	for _, c := range sortedCurrencies(series) {
		rise, fall, ok := extremes(c, series[c].Points)
		if !ok {
			continue
		}
		if r.MaxRise == nil || rise.Delta.GreaterThan(r.MaxRise.Delta) {
			r.MaxRise = &rise
		}
		if r.MaxFall == nil || fall.Delta.LessThan(r.MaxFall.Delta) {
			r.MaxFall = &fall
		}
	}
	return r
}

// extremes scans date-ordered points once, keeping the lowest and highest
// rate seen so far.
func extremes(c rate.Currency, points []rate.Point) (rise, fall Movement, ok bool) {
	if len(points) < 2 {
		return Movement{}, Movement{}, false
	}

	lo, hi := points[0], points[0]
	for i, p := range points[1:] {
		up := Movement{Currency: c, Delta: p.Rate.Sub(lo.Rate), From: lo.Date, To: p.Date}
		down := Movement{Currency: c, Delta: p.Rate.Sub(hi.Rate), From: hi.Date, To: p.Date}
		if i == 0 || up.Delta.GreaterThan(rise.Delta) {
			rise = up
		}
		if i == 0 || down.Delta.LessThan(fall.Delta) {
			fall = down
		}
		if p.Rate.LessThan(lo.Rate) {
			lo = p
		}
		if p.Rate.GreaterThan(hi.Rate) {
			hi = p
		}
	}
	return rise, fall, true
}

func sortedCurrencies(series map[rate.Currency]rate.Series) []rate.Currency {
	codes := make([]rate.Currency, 0, len(series))
	for c := range series {
		codes = append(codes, c)
	}
	slices.Sort(codes)
	return codes
}
