package rate

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	domain "github.com/ahmethakanbesel/fxreport/internal/rate"
)

var _ domain.Store = (*Postgres)(nil)

type Postgres struct {
	pool *pgxpool.Pool
}

func NewPostgres(pool *pgxpool.Pool) *Postgres {
	return &Postgres{pool: pool}
}

func (p *Postgres) Has(ctx context.Context, c domain.Currency, date time.Time) (bool, error) {
	var ok bool
	err := p.pool.QueryRow(ctx, `
select exists (
  select 1 from exchange_rates where currency_code = $1 and date = $2::date
);
`, string(c), date.Format(dateFormat)).Scan(&ok)
	if err != nil {
		return false, fmt.Errorf("has rate: %w", err)
	}
	return ok, nil
}

func (p *Postgres) GetRange(ctx context.Context, c domain.Currency, dr domain.DateRange) ([]domain.Point, error) {
	rows, err := p.pool.Query(ctx, `
select to_char(date, 'YYYY-MM-DD'), rate::text, updated_at
from exchange_rates
where currency_code = $1 and date between $2::date and $3::date
order by date;
`, string(c), dr.From.Format(dateFormat), dr.To.Format(dateFormat))
	if err != nil {
		return nil, fmt.Errorf("list rates: %w", err)
	}
	defer rows.Close()

	var points []domain.Point
	for rows.Next() {
		var dateStr string
		var rateText *string
		var updatedAt time.Time
		if err := rows.Scan(&dateStr, &rateText, &updatedAt); err != nil {
			return nil, fmt.Errorf("scan rate: %w", err)
		}

		var pt domain.Point
		if rateText == nil {
			pt, err = toPoint(c, dateStr, "", false)
		} else {
			pt, err = toPoint(c, dateStr, *rateText, true)
		}
		if err != nil {
			return nil, err
		}
		pt.UpdatedAt = updatedAt.UTC()
		points = append(points, pt)
	}
	return points, rows.Err()
}

func (p *Postgres) Put(ctx context.Context, points []domain.Point) (int64, error) {
	if len(points) == 0 {
		return 0, nil
	}

	tx, err := p.pool.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	batch := &pgx.Batch{}
	for _, pt := range points {
		batch.Queue(`
insert into exchange_rates (currency_code, date, rate, updated_at)
values ($1, $2::date, $3::numeric, now())
on conflict (currency_code, date)
do update set
  rate = excluded.rate,
  updated_at = now()
where excluded.rate is not null
  and (exchange_rates.rate is null or exchange_rates.rate <> excluded.rate);
`, string(pt.Currency), pt.Date.Format(dateFormat), rateArg(pt))
	}

	br := tx.SendBatch(ctx, batch)
	var total int64
	for _, pt := range points {
		tag, err := br.Exec()
		if err != nil {
			_ = br.Close()
			return 0, fmt.Errorf("upsert %s %s: %w", pt.Currency, pt.Date.Format(dateFormat), err)
		}
		total += tag.RowsAffected()
	}
	if err := br.Close(); err != nil {
		return 0, fmt.Errorf("close batch: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("commit tx: %w", err)
	}
	return total, nil
}
