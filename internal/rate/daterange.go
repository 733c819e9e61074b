package rate

import (
	"fmt"
	"time"
)

const dateFormat = "2006-01-02"

// DateRange is an inclusive span of calendar days.
type DateRange struct {
	From time.Time
	To   time.Time
}

// NewDateRange truncates both bounds to days and rejects from > to.
func NewDateRange(from, to time.Time) (DateRange, error) {
	r := DateRange{From: Day(from), To: Day(to)}
	if r.From.After(r.To) {
		return DateRange{}, fmt.Errorf("start date %s is after end date %s",
			r.From.Format(dateFormat), r.To.Format(dateFormat))
	}
	return r, nil
}

// SingleDay is the range covering only d.
func SingleDay(d time.Time) DateRange {
	return DateRange{From: Day(d), To: Day(d)}
}

func (r DateRange) String() string {
	return r.From.Format(dateFormat) + ".." + r.To.Format(dateFormat)
}

// Days returns the number of calendar days covered.
func (r DateRange) Days() int {
	if r.From.After(r.To) {
		return 0
	}
	return int(r.To.Sub(r.From).Hours()/24) + 1
}

func (r DateRange) Contains(d time.Time) bool {
	d = Day(d)
	return !d.Before(r.From) && !d.After(r.To)
}

// Dates lists every day in the range in ascending order.
func (r DateRange) Dates() []time.Time {
	out := make([]time.Time, 0, r.Days())
	for d := r.From; !d.After(r.To); d = d.AddDate(0, 0, 1) {
		out = append(out, d)
	}
	return out
}

// Coalesce merges ascending days into the minimal set of contiguous ranges.
// Input must be sorted and free of duplicates.
func Coalesce(days []time.Time) []DateRange {
	if len(days) == 0 {
		return nil
	}

	var out []DateRange
	cur := DateRange{From: days[0], To: days[0]}
	for _, d := range days[1:] {
		if d.Equal(cur.To.AddDate(0, 0, 1)) {
			cur.To = d
			continue
		}
		out = append(out, cur)
		cur = DateRange{From: d, To: d}
	}
	return append(out, cur)
}
