package rate

import (
	"context"
	"time"
)

// Store is the local cache of published rates and confirmed absences.
// Implementations must be safe for concurrent use.
type Store interface {
	// Has reports whether a row, rate or sentinel, exists for the day.
	Has(ctx context.Context, c Currency, date time.Time) (bool, error)
	// GetRange returns the stored rows in r ordered by date, sentinels included.
	GetRange(ctx context.Context, c Currency, r DateRange) ([]Point, error)
	// Put upserts points and returns the number of rows that changed.
	// Re-storing an identical value is a no-op, a different rate overwrites,
	// and a sentinel never replaces a stored rate.
	Put(ctx context.Context, points []Point) (int64, error)
}
