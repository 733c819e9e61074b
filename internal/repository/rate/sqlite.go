package rate

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	domain "github.com/ahmethakanbesel/fxreport/internal/rate"
)

const dateFormat = "2006-01-02"

var _ domain.Store = (*Repository)(nil)

// Repository is the SQLite backed rate store. A NULL rate is the sentinel
// for a day the provider confirmed has no published rate.
type Repository struct {
	db  *sql.DB
	now func() time.Time
}

func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db, now: time.Now}
}

func (r *Repository) Has(ctx context.Context, c domain.Currency, date time.Time) (bool, error) {
	const query = `SELECT 1 FROM exchange_rates WHERE currency_code = ? AND date = ?`

	var one int
	err := r.db.QueryRowContext(ctx, query, string(c), date.Format(dateFormat)).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("has rate: %w", err)
	}
	return true, nil
}

func (r *Repository) GetRange(ctx context.Context, c domain.Currency, dr domain.DateRange) ([]domain.Point, error) {
	const query = `SELECT date, rate, updated_at
		FROM exchange_rates
		WHERE currency_code = ? AND date >= ? AND date <= ?
		ORDER BY date ASC`

	rows, err := r.db.QueryContext(ctx, query, string(c), dr.From.Format(dateFormat), dr.To.Format(dateFormat))
	if err != nil {
		return nil, fmt.Errorf("list rates: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var points []domain.Point
	for rows.Next() {
		var dateStr, updatedStr string
		var rateStr sql.NullString
		if err := rows.Scan(&dateStr, &rateStr, &updatedStr); err != nil {
			return nil, fmt.Errorf("scan rate: %w", err)
		}
		p, err := toPoint(c, dateStr, rateStr.String, rateStr.Valid)
		if err != nil {
			return nil, err
		}
		p.UpdatedAt, _ = time.Parse(time.RFC3339, updatedStr)
		points = append(points, p)
	}

	return points, rows.Err()
}

func (r *Repository) Put(ctx context.Context, points []domain.Point) (int64, error) {
	if len(points) == 0 {
		return 0, nil
	}

	const batchSize = 500
	var total int64
	updatedAt := r.now().UTC().Format(time.RFC3339)

	for i := 0; i < len(points); i += batchSize {
		end := min(i+batchSize, len(points))
		batch := points[i:end]

		placeholders := make([]string, len(batch))
		args := make([]any, 0, len(batch)*4)
		for j, p := range batch {
			placeholders[j] = "(?, ?, ?, ?)"
			args = append(args, string(p.Currency), p.Date.Format(dateFormat), rateArg(p), updatedAt)
		}

		query := fmt.Sprintf( //nolint:gosec // placeholders are not user input
			`INSERT INTO exchange_rates (currency_code, date, rate, updated_at) VALUES %s
			ON CONFLICT (currency_code, date) DO UPDATE SET
				rate = excluded.rate,
				updated_at = excluded.updated_at
			WHERE excluded.rate IS NOT NULL
				AND (exchange_rates.rate IS NULL OR exchange_rates.rate <> excluded.rate)`,
			strings.Join(placeholders, ", "),
		)

		res, err := r.db.ExecContext(ctx, query, args...)
		if err != nil {
			return total, fmt.Errorf("save rates: %w", err)
		}

		n, _ := res.RowsAffected()
		total += n
	}

	return total, nil
}

// rateArg returns the canonical text of a present rate or nil for a sentinel.
func rateArg(p domain.Point) any {
	if !p.IsPresent() {
		return nil
	}
	return p.Rate.String()
}

func toPoint(c domain.Currency, dateStr, rateStr string, present bool) (domain.Point, error) {
	date, err := time.Parse(dateFormat, dateStr)
	if err != nil {
		return domain.Point{}, fmt.Errorf("parse date %q: %w", dateStr, err)
	}
	if !present {
		return domain.Absent(c, date), nil
	}
	v, err := decimal.NewFromString(strings.TrimSpace(rateStr))
	if err != nil {
		return domain.Point{}, fmt.Errorf("parse rate %s %s=%q: %w", c, dateStr, rateStr, err)
	}
	return domain.NewPoint(c, date, v), nil
}
