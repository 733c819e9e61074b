package rate

import (
	"context"
	"slices"
	"sync"
	"time"

	domain "github.com/ahmethakanbesel/fxreport/internal/rate"
)

var _ domain.Store = (*Memory)(nil)

type memoryKey struct {
	currency domain.Currency
	date     time.Time
}

// Memory is a process-local rate store. Its contents are lost on exit.
type Memory struct {
	mu     sync.RWMutex
	points map[memoryKey]domain.Point
	now    func() time.Time
}

func NewMemory() *Memory {
	return &Memory{
		points: make(map[memoryKey]domain.Point),
		now:    time.Now,
	}
}

func (m *Memory) Has(_ context.Context, c domain.Currency, date time.Time) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	_, ok := m.points[memoryKey{c, domain.Day(date)}]
	return ok, nil
}

func (m *Memory) GetRange(_ context.Context, c domain.Currency, dr domain.DateRange) ([]domain.Point, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []domain.Point
	for k, p := range m.points {
		if k.currency == c && dr.Contains(k.date) {
			out = append(out, p)
		}
	}
	slices.SortFunc(out, func(a, b domain.Point) int { return a.Date.Compare(b.Date) })
	return out, nil
}

func (m *Memory) Put(_ context.Context, points []domain.Point) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now().UTC()
	var changed int64
	for _, p := range points {
		p.Date = domain.Day(p.Date)
		k := memoryKey{p.Currency, p.Date}

		if prev, ok := m.points[k]; ok {
			if !p.IsPresent() {
				continue
			}
			if prev.IsPresent() && prev.Rate.Equal(p.Rate) {
				continue
			}
		}
		if !p.IsPresent() {
			p = domain.Absent(p.Currency, p.Date)
		}
		p.UpdatedAt = now
		m.points[k] = p
		changed++
	}
	return changed, nil
}
