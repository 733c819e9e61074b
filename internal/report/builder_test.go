package report

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ahmethakanbesel/fxreport/internal/rate"
)

func day(d int) time.Time {
	return time.Date(2024, 5, d, 0, 0, 0, 0, time.UTC)
}

func series(c rate.Currency, values ...string) rate.Series {
	s := rate.Series{Currency: c}
	for i, v := range values {
		s.Points = append(s.Points, rate.NewPoint(c, day(i+1), decimal.RequireFromString(v)))
	}
	return s
}

func seriesMap(ss ...rate.Series) map[rate.Currency]rate.Series {
	m := make(map[rate.Currency]rate.Series, len(ss))
	for _, s := range ss {
		m[s.Currency] = s
	}
	return m
}

func TestBuildAnalytical_NonAdjacentPairs(t *testing.T) {
	got := BuildAnalytical(seriesMap(
		series("AUD", "1.0", "1.5", "1.2"),
		series("BGN", "2.0", "1.0", "3.0"),
	))

	require.NotNil(t, got.MaxRise)
	require.NotNil(t, got.MaxFall)

	assert.Equal(t, rate.Currency("BGN"), got.MaxRise.Currency)
	assert.True(t, got.MaxRise.Delta.Equal(decimal.RequireFromString("2.0")), "rise = %s", got.MaxRise.Delta)
	assert.Equal(t, day(2), got.MaxRise.From)
	assert.Equal(t, day(3), got.MaxRise.To)

	assert.Equal(t, rate.Currency("BGN"), got.MaxFall.Currency)
	assert.True(t, got.MaxFall.Delta.Equal(decimal.RequireFromString("-1.0")), "fall = %s", got.MaxFall.Delta)
	assert.Equal(t, day(1), got.MaxFall.From)
	assert.Equal(t, day(2), got.MaxFall.To)
}

func TestBuildAnalytical_RiseNeedsNonConsecutiveDays(t *testing.T) {
	// Best consecutive step is +0.2, best hold is 1.0 -> 1.6.
	got := BuildAnalytical(seriesMap(series("USD", "1.0", "1.2", "1.1", "1.3", "1.5", "1.6")))

	require.NotNil(t, got.MaxRise)
	assert.True(t, got.MaxRise.Delta.Equal(decimal.RequireFromString("0.6")))
	assert.Equal(t, day(1), got.MaxRise.From)
	assert.Equal(t, day(6), got.MaxRise.To)
}

func TestBuildAnalytical_TieBreakPrefersSmallerCode(t *testing.T) {
	got := BuildAnalytical(seriesMap(
		series("USD", "1.0", "2.0"),
		series("EUR", "3.0", "4.0"),
		series("GBP", "5.0", "6.0"),
	))

	require.NotNil(t, got.MaxRise)
	assert.Equal(t, rate.Currency("EUR"), got.MaxRise.Currency)
	assert.Equal(t, rate.Currency("EUR"), got.MaxFall.Currency)
}

func TestBuildAnalytical_MonotonicSeriesFallIsSmallestChange(t *testing.T) {
	got := BuildAnalytical(seriesMap(series("CHF", "1.0", "1.1", "1.3")))

	require.NotNil(t, got.MaxFall)
	assert.True(t, got.MaxFall.Delta.Equal(decimal.RequireFromString("0.1")))
}

func TestBuildAnalytical_NoCandidates(t *testing.T) {
	got := BuildAnalytical(seriesMap(
		series("USD", "3.9"),
		series("EUR"),
	))

	assert.Nil(t, got.MaxRise)
	assert.Nil(t, got.MaxFall)

	empty := BuildAnalytical(nil)
	assert.Nil(t, empty.MaxRise)
}

func TestBuildHistorical_SortsByCodeThenDate(t *testing.T) {
	usd := series("USD", "3.9", "3.8")
	usd.Points[0], usd.Points[1] = usd.Points[1], usd.Points[0]

	got := BuildHistorical(seriesMap(usd, series("EUR", "4.3"), series("CHF")))

	require.Len(t, got.Series, 3)
	assert.Equal(t, rate.Currency("CHF"), got.Series[0].Currency)
	assert.Empty(t, got.Series[0].Points, "a currency without points is an empty series")
	assert.Equal(t, rate.Currency("EUR"), got.Series[1].Currency)
	assert.Equal(t, rate.Currency("USD"), got.Series[2].Currency)
	assert.Equal(t, day(1), got.Series[2].Points[0].Date)
	assert.Equal(t, day(2), got.Series[2].Points[1].Date)
}
