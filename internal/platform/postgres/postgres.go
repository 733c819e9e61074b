package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

const schema = `
create table if not exists exchange_rates (
  currency_code char(3) not null,
  date          date not null,
  rate          numeric(20, 10),
  updated_at    timestamptz not null default now(),
  primary key (currency_code, date)
);

create index if not exists idx_exchange_rates_date
  on exchange_rates (date);
`

// Open connects to dsn, verifies the connection and ensures the schema.
func Open(ctx context.Context, dsn string) (*pgxpool.Pool, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if _, err := pool.Exec(ctx, schema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ensure table exchange_rates: %w", err)
	}

	return pool, nil
}
