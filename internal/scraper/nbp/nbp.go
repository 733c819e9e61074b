// Package nbp fetches table A mid rates from the Narodowy Bank Polski API.
package nbp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"slices"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/ahmethakanbesel/fxreport/internal/rate"
	"github.com/ahmethakanbesel/fxreport/internal/scraper"
)

const (
	defaultBaseURL = "https://api.nbp.pl"
	ratesPath      = "/api/exchangerates/rates/%s/%s/%s/%s/?format=json"
	tablesPath     = "/api/exchangerates/tables/%s/%s/%s/?format=json"
	dateFormat     = "2006-01-02"
	table          = "A"

	// MaxSpanDays is the longest range the API accepts in one query.
	MaxSpanDays = 93
)

var (
	_ rate.Provider      = (*Client)(nil)
	_ rate.TableProvider = (*Client)(nil)
)

type ratesResponse struct {
	Table    string `json:"table"`
	Currency string `json:"currency"`
	Code     string `json:"code"`
	Rates    []struct {
		No            string          `json:"no"`
		EffectiveDate string          `json:"effectiveDate"`
		Mid           decimal.Decimal `json:"mid"`
	} `json:"rates"`
}

type tableResponse struct {
	Table         string `json:"table"`
	No            string `json:"no"`
	EffectiveDate string `json:"effectiveDate"`
	Rates         []struct {
		Currency string          `json:"currency"`
		Code     string          `json:"code"`
		Mid      decimal.Decimal `json:"mid"`
	} `json:"rates"`
}

var errNoData = errors.New("no data for range")

type Client struct {
	workers int
	client  *http.Client
	baseURL string
}

func New(opts ...Option) *Client {
	c := &Client{
		workers: 2,
		client:  http.DefaultClient,
		baseURL: defaultBaseURL,
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

type Option func(*Client)

func WithWorkers(n int) Option {
	return func(c *Client) {
		if n > 0 {
			c.workers = n
		}
	}
}

func WithClient(hc *http.Client) Option {
	return func(c *Client) { c.client = hc }
}

func WithBaseURL(url string) Option {
	return func(c *Client) { c.baseURL = url }
}

// Fetch returns the published rates of cur in r. Ranges longer than
// MaxSpanDays are split and queried concurrently. A chunk without data
// contributes nothing; if no chunk has data the error reason is NotFound.
func (c *Client) Fetch(ctx context.Context, cur rate.Currency, r rate.DateRange) ([]rate.Point, error) {
	if !cur.IsSupported() {
		return nil, &rate.FetchError{Reason: rate.ReasonInvalidCurrency, Currency: cur, Range: r,
			Err: fmt.Errorf("%s is not published in table %s", cur, table)}
	}

	return c.fetchChunks(ctx, cur, r, func(ctx context.Context, ch rate.DateRange) ([]rate.Point, error) {
		return c.getRates(ctx, cur, ch)
	})
}

// FetchTable returns every supported currency published in table A within r,
// one query per chunk.
func (c *Client) FetchTable(ctx context.Context, r rate.DateRange) ([]rate.Point, error) {
	return c.fetchChunks(ctx, "", r, c.getTable)
}

func (c *Client) fetchChunks(ctx context.Context, cur rate.Currency, r rate.DateRange,
	get func(context.Context, rate.DateRange) ([]rate.Point, error)) ([]rate.Point, error) {
	chunks := scraper.SplitDateRange(r, MaxSpanDays)
	results := make([][]rate.Point, len(chunks))
	empty := make([]bool, len(chunks))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.workers)

	for i, ch := range chunks {
		g.Go(func() error {
			points, err := get(gctx, ch)
			if errors.Is(err, errNoData) {
				slog.Debug("no nbp data for range", "currency", cur, "startDate", ch.From.Format(dateFormat), "endDate", ch.To.Format(dateFormat))
				empty[i] = true
				return nil
			}
			if err != nil {
				return &rate.FetchError{Reason: rate.ReasonUnavailable, Currency: cur, Range: ch, Err: err}
			}
			results[i] = points
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	if !slices.Contains(empty, false) {
		return nil, &rate.FetchError{Reason: rate.ReasonNotFound, Currency: cur, Range: r, Err: errNoData}
	}

	var all []rate.Point
	for _, pts := range results {
		all = append(all, pts...)
	}
	return all, nil
}

func (c *Client) getRates(ctx context.Context, cur rate.Currency, r rate.DateRange) ([]rate.Point, error) {
	url := c.baseURL + fmt.Sprintf(ratesPath, table, cur, r.From.Format(dateFormat), r.To.Format(dateFormat))

	var rr ratesResponse
	if err := c.getJSON(ctx, url, &rr); err != nil {
		return nil, err
	}

	points := make([]rate.Point, 0, len(rr.Rates))
	for _, item := range rr.Rates {
		d, err := time.Parse(dateFormat, item.EffectiveDate)
		if err != nil {
			return nil, fmt.Errorf("parse effective date %q: %w", item.EffectiveDate, err)
		}
		points = append(points, rate.NewPoint(cur, d, item.Mid))
	}

	slog.Info("retrieved nbp rates", "currency", cur, "startDate", r.From.Format(dateFormat),
		"endDate", r.To.Format(dateFormat), "count", len(points))
	return points, nil
}

func (c *Client) getTable(ctx context.Context, r rate.DateRange) ([]rate.Point, error) {
	url := c.baseURL + fmt.Sprintf(tablesPath, table, r.From.Format(dateFormat), r.To.Format(dateFormat))

	var tables []tableResponse
	if err := c.getJSON(ctx, url, &tables); err != nil {
		return nil, err
	}

	var points []rate.Point
	for _, t := range tables {
		d, err := time.Parse(dateFormat, t.EffectiveDate)
		if err != nil {
			return nil, fmt.Errorf("parse effective date %q: %w", t.EffectiveDate, err)
		}
		for _, item := range t.Rates {
			cur := rate.Currency(item.Code)
			if !cur.IsSupported() {
				continue
			}
			points = append(points, rate.NewPoint(cur, d, item.Mid))
		}
	}

	slog.Info("retrieved nbp table", "table", table, "startDate", r.From.Format(dateFormat),
		"endDate", r.To.Format(dateFormat), "days", len(tables), "count", len(points))
	return points, nil
}

// getJSON decodes the body of url into v. A 404 is reported as errNoData.
func (c *Client) getJSON(ctx context.Context, url string, v any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")

	res, err := c.client.Do(req) //nolint:gosec // URL built from internal config
	if err != nil {
		return err
	}
	defer func() { _ = res.Body.Close() }()

	switch {
	case res.StatusCode == http.StatusNotFound:
		return errNoData
	case res.StatusCode != http.StatusOK:
		return fmt.Errorf("nbp returned HTTP %d for %s", res.StatusCode, req.URL.Path)
	}

	body, err := io.ReadAll(res.Body)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, v); err != nil {
		return fmt.Errorf("parse nbp response: %w", err)
	}
	return nil
}
