package scraper

import "github.com/ahmethakanbesel/fxreport/internal/rate"

// SplitDateRange cuts r into consecutive inclusive ranges of at most
// chunkDays days, in ascending order. Upstreams with a maximum query span
// (NBP accepts 93 days per rates or tables query) fetch each chunk
// separately. A range that already fits is returned as a single chunk.
func SplitDateRange(r rate.DateRange, chunkDays int) []rate.DateRange {
	if r.From.After(r.To) || chunkDays <= 0 {
		return nil
	}
	if r.Days() <= chunkDays {
		return []rate.DateRange{r}
	}

	chunks := make([]rate.DateRange, 0, (r.Days()+chunkDays-1)/chunkDays)
	for from := r.From; !from.After(r.To); from = from.AddDate(0, 0, chunkDays) {
		to := from.AddDate(0, 0, chunkDays-1)
		if to.After(r.To) {
			to = r.To
		}
		chunks = append(chunks, rate.DateRange{From: from, To: to})
	}
	return chunks
}
